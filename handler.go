package mqrecv

import (
	"context"
	"fmt"
	"sync"

	"github.com/kallstrom/mqrecv/internal/identstate"
	"github.com/kallstrom/mqrecv/internal/packets"
)

// ackCompletion carries a PUBACK write outcome from the transport's
// writer (which may run on any goroutine) back onto the I/O loop.
type ackCompletion struct {
	id  uint16
	err error
}

// loopChannels is the set of channels that make up one attachment's I/O
// loop. A fresh set is created on every Attach so that a detached
// Handler's stale channels can never be mistaken for the current
// attachment's.
type loopChannels struct {
	events      chan packets.Packet
	acks        chan Publish
	completions chan ackCompletion
	stop        chan struct{}
	stopOnce    sync.Once
}

func newLoopChannels() *loopChannels {
	return &loopChannels{
		events:      make(chan packets.Packet),
		acks:        make(chan Publish),
		completions: make(chan ackCompletion),
		stop:        make(chan struct{}),
	}
}

func (io *loopChannels) requestStop() {
	io.stopOnce.Do(func() { close(io.stop) })
}

// Handler is the incoming QoS handler: the per-connection state machine
// that receives PUBLISH/PUBREL packets, runs the QoS 1/2 acknowledgement
// handshakes, enforces Receive Maximum, and disconnects on protocol
// violations.
//
// A Handler is non-shareable: it holds per-connection state and must be
// Attached to at most one transport at a time (§9's "ready to be
// attached" predicate). HandlePacket is the only entry point called
// from the transport's own I/O loop; Ack may be called from any
// goroutine and hops onto the I/O loop before touching any state.
type Handler struct {
	opts  HandlerOptions
	table *identstate.Table

	mu        sync.Mutex
	transport Transport
	ctx       context.Context
	io        *loopChannels
	wg        sync.WaitGroup
}

// NewHandler returns a Handler configured with defaults overridden by
// opts, in the Detached state.
func NewHandler(opts ...Option) *Handler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Handler{
		opts:  o,
		table: identstate.New(),
	}
}

// Attached reports whether the Handler currently holds a transport.
func (h *Handler) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.io != nil
}

// Attach binds the Handler to transport and starts its I/O loop.
// Returns ErrAlreadyAttached if the Handler is already bound; per §9,
// Detach first to reuse a Handler across connections.
func (h *Handler) Attach(ctx context.Context, transport Transport) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.io != nil {
		return ErrAlreadyAttached
	}

	h.table.Clear()
	io := newLoopChannels()
	h.io = io
	h.transport = transport
	h.ctx = ctx

	h.wg.Add(1)
	go h.loop(ctx, io)
	return nil
}

// Detach tears down the Handler's I/O loop and clears all per-connection
// state. It is not graceful: cached acknowledgements are discarded and
// the transport reference is released. Detach blocks until the loop has
// finished tearing down, so Attach may be called again as soon as
// Detach returns.
func (h *Handler) Detach(cause error) {
	h.mu.Lock()
	io := h.io
	h.mu.Unlock()

	if io == nil {
		return
	}

	io.requestStop()
	h.wg.Wait()

	if cause != nil {
		h.opts.Logger.Debug("handler detached", "cause", cause)
	}
}

// HandlePacket feeds an inbound packet to the Handler's I/O loop. Only
// PublishPacket and PubRelPacket are recognized (§6); anything else is
// forwarded to opts.Unrecognized, if set, unchanged.
func (h *Handler) HandlePacket(pkt packets.Packet) {
	h.mu.Lock()
	io := h.io
	h.mu.Unlock()

	if io == nil {
		return
	}

	switch pkt.(type) {
	case *packets.PublishPacket, *packets.PubRelPacket:
		select {
		case io.events <- pkt:
		case <-io.stop:
		}
	default:
		if h.opts.Unrecognized != nil {
			h.opts.Unrecognized(pkt)
		}
	}
}

// Ack is the application's acknowledgement entry point (§5's "ack on
// another thread" mailbox). It may be called from any goroutine; the
// call hops onto the I/O loop before touching the identifier table or
// emitting a packet, and returns immediately without waiting for the
// hand-off to be processed. A call after Detach is a deliberate no-op
// (§9's resolved open question).
func (h *Handler) Ack(p Publish) {
	h.mu.Lock()
	io := h.io
	h.mu.Unlock()

	if io == nil {
		return
	}

	select {
	case io.acks <- p:
	case <-io.stop:
	}
}

// loop is the single-threaded I/O event loop: every state mutation in
// this file happens only from inside this goroutine.
func (h *Handler) loop(ctx context.Context, io *loopChannels) {
	violated := false
	defer func() {
		// A self-terminated loop (protocol violation, ctx cancellation)
		// must still close io.stop: any write-completion callback
		// already in flight, or a caller blocked in HandlePacket/Ack,
		// is selecting on it and would otherwise hang forever.
		io.requestStop()
		// After a protocol violation the table is left as it stood when
		// the DISCONNECT was written, with the offending event reverted;
		// the next Attach clears it.
		if !violated {
			h.table.Clear()
		}
		h.mu.Lock()
		h.transport = nil
		h.ctx = nil
		h.io = nil
		h.mu.Unlock()
		h.wg.Done()
	}()

	for {
		select {
		case pkt := <-io.events:
			if !h.dispatch(pkt) {
				violated = true
				return
			}
		case p := <-io.acks:
			if !h.applyAck(p) {
				violated = true
				return
			}
		case c := <-io.completions:
			h.onAckWriteComplete(c.id, c.err)
		case <-ctx.Done():
			return
		case <-io.stop:
			return
		}
	}
}

func (h *Handler) dispatch(pkt packets.Packet) bool {
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		return h.handlePublish(p)
	case *packets.PubRelPacket:
		return h.handlePubRel(p)
	default:
		return true
	}
}

func (h *Handler) receiveMax() int {
	if h.opts.ReceiveMaximum == 0 {
		return 65535
	}
	return int(h.opts.ReceiveMaximum)
}

// handlePublish implements §4.3.1-§4.3.3: the QoS 0/1/2 receive path.
func (h *Handler) handlePublish(p *packets.PublishPacket) bool {
	switch p.QoS {
	case packets.QoS0:
		// §9 open question, resolved: QoS 0 still participates in the
		// window count and the return value is ignored; this is final
		// behavior for this release, not a pending fix.
		h.opts.PublishService.Offer(publishFromPacket(p), h.receiveMax())
		return true
	case packets.QoS1:
		return h.handlePublishQoS1(p)
	case packets.QoS2:
		return h.handlePublishQoS2(p)
	default:
		return h.violate(p.PacketID, ReasonCodeProtocolError, fmt.Sprintf("invalid QoS %d in PUBLISH", p.QoS))
	}
}

func (h *Handler) handlePublishQoS1(p *packets.PublishPacket) bool {
	id := p.PacketID
	prev := h.table.GetAndSet(id, identstate.State{Kind: identstate.Qos1Pending})

	switch prev.Kind {
	case identstate.Absent:
		if !h.opts.PublishService.Offer(publishFromPacket(p), h.receiveMax()) {
			h.table.Put(id, prev)
			return h.violate(id, ReasonCodeReceiveMaximumExceeded, "receive maximum exceeded")
		}
		return true

	case identstate.Qos1Pending:
		if !p.Dup {
			h.table.Put(id, prev)
			return h.violate(id, ReasonCodeProtocolError, "DUP flag must be set for a resent QoS 1 PUBLISH")
		}
		return true // duplicate before application ack: drop silently

	case identstate.Qos1Acked:
		if !p.Dup {
			h.table.Put(id, prev)
			return h.violate(id, ReasonCodeProtocolError, "DUP flag must be set for a resent QoS 1 PUBLISH")
		}
		// Retransmit, not a transition: restore the Qos1Acked state
		// the tentative get_and_set clobbered, then resend the cached
		// PUBACK (§3 invariant I5).
		h.table.Put(id, prev)
		h.writeAck(prev.PubAck)
		return true

	default: // Qos2Pending / Qos2Acked: invariant I1
		h.table.Put(id, prev)
		return h.violate(id, ReasonCodeProtocolError, "QoS 1 PUBLISH must not be received with the same packet identifier as a QoS 2 PUBLISH")
	}
}

func (h *Handler) handlePublishQoS2(p *packets.PublishPacket) bool {
	id := p.PacketID
	prev := h.table.GetAndSet(id, identstate.State{Kind: identstate.Qos2Pending})

	switch prev.Kind {
	case identstate.Absent:
		if !h.opts.PublishService.Offer(publishFromPacket(p), h.receiveMax()) {
			h.table.Put(id, prev)
			return h.violate(id, ReasonCodeReceiveMaximumExceeded, "receive maximum exceeded")
		}
		return true

	case identstate.Qos2Pending:
		if !p.Dup {
			h.table.Put(id, prev)
			return h.violate(id, ReasonCodeProtocolError, "DUP flag must be set for a resent QoS 2 PUBLISH")
		}
		return true // duplicate before PUBREC sent: drop silently

	case identstate.Qos2Acked:
		if !p.Dup {
			h.table.Put(id, prev)
			return h.violate(id, ReasonCodeProtocolError, "DUP flag must be set for a resent QoS 2 PUBLISH")
		}
		h.table.Put(id, prev)
		h.transport.WriteFireAndForget(prev.PubRec) // retransmit, fire-and-forget
		return true

	default: // Qos1Pending / Qos1Acked: invariant I1
		h.table.Put(id, prev)
		return h.violate(id, ReasonCodeProtocolError, "QoS 2 PUBLISH must not be received with the same packet identifier as a QoS 1 PUBLISH")
	}
}

// applyAck implements §4.3.4: the application's acknowledgement of a
// publish it was handed by the PublishService.
func (h *Handler) applyAck(p Publish) bool {
	switch p.QoS {
	case AtMostOnce:
		return true // no-op

	case AtLeastOnce:
		b := newPubAckBuilder(p.PacketID)
		if v := h.callQos1Interceptor(p, b); v != nil {
			return h.emitViolation(v)
		}
		pubAck := b.build()
		h.table.Put(p.PacketID, identstate.State{Kind: identstate.Qos1Acked, PubAck: pubAck})
		h.writeAck(pubAck)
		return true

	case ExactlyOnce:
		b := newPubRecBuilder(p.PacketID)
		if v := h.callQos2OnPublish(p, b); v != nil {
			return h.emitViolation(v)
		}
		pubRec := b.build()
		h.table.Put(p.PacketID, identstate.State{Kind: identstate.Qos2Acked, PubRec: pubRec})
		h.transport.WriteFireAndForget(pubRec) // PUBREC is fire-and-forget; entry lives until PUBREL
		return true

	default:
		return true
	}
}

// handlePubRel implements §4.3.5.
func (h *Handler) handlePubRel(p *packets.PubRelPacket) bool {
	id := p.PacketID
	prev := h.table.Remove(id)

	switch prev.Kind {
	case identstate.Qos2Acked:
		b := newPubCompBuilder(id, ReasonCodeSuccess)
		if v := h.callQos2OnPubRel(PubRel{PacketID: id}, b); v != nil {
			return h.emitViolation(v)
		}
		h.transport.WriteFireAndForget(b.build())
		return true

	case identstate.Absent:
		// Idempotent replay: PUBCOMP was sent previously and lost.
		h.opts.Logger.Debug("pubrel for unknown packet identifier, replying idempotently", "packet_id", id)
		b := newPubCompBuilder(id, ReasonCodePacketIdentifierNotFound)
		if v := h.callQos2OnPubRel(PubRel{PacketID: id}, b); v != nil {
			return h.emitViolation(v)
		}
		h.transport.WriteFireAndForget(b.build())
		return true

	case identstate.Qos2Pending:
		h.table.Put(id, prev)
		return h.violate(id, ReasonCodeProtocolError, "PUBREL received when no PUBREC has been sent yet")

	default: // Qos1Pending / Qos1Acked
		h.table.Put(id, prev)
		return h.violate(id, ReasonCodeProtocolError, "PUBREL must not be received with the same packet identifier as a QoS 1 exchange")
	}
}

// writeAck writes pubAck and arranges for the completion to be
// delivered back onto the I/O loop (§5: write-completion callbacks are
// serialized on the loop even though the transport's writer may invoke
// them from a different goroutine).
func (h *Handler) writeAck(pubAck *packets.PubAckPacket) {
	io := h.io
	id := pubAck.PacketID
	h.transport.WriteAck(h.ctx, pubAck, func(err error) {
		select {
		case io.completions <- ackCompletion{id: id, err: err}:
		case <-io.stop:
		}
	})
}

// onAckWriteComplete implements the second half of §4.3.4: on success
// the table entry is cleared; on failure it is left for the broker's
// resend to find (§7 category 4, transport failures).
func (h *Handler) onAckWriteComplete(id uint16, err error) {
	if err != nil {
		h.opts.Logger.Debug("puback write failed, leaving cached ack for retransmit", "packet_id", id, "error", err)
		return
	}
	h.table.Remove(id)
}

// violate logs and emits a client-originated DISCONNECT for a detected
// protocol violation, then signals the loop to stop processing further
// inbound packets on this connection (§4.3.7).
func (h *Handler) violate(id uint16, code uint8, reason string) bool {
	return h.emitViolation(newProtocolViolation(code, fmt.Sprintf("packet identifier %d: %s", id, reason)))
}

func (h *Handler) emitViolation(v *ProtocolViolation) bool {
	h.opts.Logger.Warn("protocol violation, disconnecting", "reason_code", v.Code, "reason", v.Reason)
	h.transport.WriteFireAndForget(&packets.DisconnectPacket{
		ReasonCode: v.Code,
		Properties: &packets.Properties{Presence: packets.PresReasonString, ReasonString: v.Reason},
	})
	return false
}

// callQos1Interceptor invokes the configured Qos1 interceptor, if any,
// recovering a panic into a ProtocolViolation per §7 category 5.
func (h *Handler) callQos1Interceptor(p Publish, b *PubAckBuilder) (violation *ProtocolViolation) {
	if h.opts.Qos1 == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			violation = newProtocolViolation(ReasonCodeImplementationError, fmt.Sprintf("qos1 interceptor panicked: %v", r))
		}
	}()
	h.opts.Qos1(p, b)
	return nil
}

func (h *Handler) callQos2OnPublish(p Publish, b *PubRecBuilder) (violation *ProtocolViolation) {
	if h.opts.Qos2 == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			violation = newProtocolViolation(ReasonCodeImplementationError, fmt.Sprintf("qos2 interceptor panicked: %v", r))
		}
	}()
	h.opts.Qos2.OnPublish(p, b)
	return nil
}

func (h *Handler) callQos2OnPubRel(r PubRel, b *PubCompBuilder) (violation *ProtocolViolation) {
	if h.opts.Qos2 == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			violation = newProtocolViolation(ReasonCodeImplementationError, fmt.Sprintf("qos2 interceptor panicked: %v", rec))
		}
	}()
	h.opts.Qos2.OnPubRel(r, b)
	return nil
}
