package mqrecv

import (
	"context"

	"github.com/kallstrom/mqrecv/internal/packets"
)

// Transport is the Handler's outbound write interface. The handler
// never imports a concrete transport; it is satisfied by the
// transport package's TCP and WebSocket implementations, or by a test
// double.
type Transport interface {
	// WriteAck writes a PUBACK and invokes onComplete exactly once with
	// the outcome of the write. The handler uses onComplete to decide
	// whether to clear the identifier table entry (§4.3.4): success
	// clears it, failure leaves the cached PUBACK for retransmission.
	WriteAck(ctx context.Context, pkt *packets.PubAckPacket, onComplete func(error))

	// WriteFireAndForget writes a PUBREC, PUBCOMP or DISCONNECT without
	// a completion promise.
	WriteFireAndForget(pkt packets.Packet)
}
