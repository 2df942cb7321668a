package packets

import (
	"fmt"
	"io"
)

// ReadPacket reads one complete control packet from r and decodes it into
// its concrete type. The six packet types this package models (PUBLISH,
// PUBACK, PUBREC, PUBREL, PUBCOMP, DISCONNECT) are recognized; anything
// else is returned as an error, since the surrounding connection layer is
// responsible for routing packet types this handler does not own.
func ReadPacket(r io.Reader) (Packet, error) {
	header, err := DecodeFixedHeader(r)
	if err != nil {
		return nil, err
	}

	var body []byte
	var bufPtr *[]byte
	if header.RemainingLength > 0 {
		bufPtr = GetBuffer(header.RemainingLength)
		body = (*bufPtr)[:header.RemainingLength]
		if _, err := io.ReadFull(r, body); err != nil {
			PutBuffer(bufPtr)
			return nil, fmt.Errorf("reading packet body: %w", err)
		}
	}
	defer func() {
		if bufPtr != nil {
			PutBuffer(bufPtr)
		}
	}()

	switch header.PacketType {
	case PUBLISH:
		return DecodePublish(header, body)
	case PUBREL:
		return DecodePubRel(header, body)
	case PUBACK:
		return DecodePubAck(header, body)
	case PUBREC:
		return DecodePubRec(header, body)
	case PUBCOMP:
		return DecodePubComp(header, body)
	case DISCONNECT:
		return DecodeDisconnect(header, body)
	default:
		return nil, fmt.Errorf("unsupported packet type %d", header.PacketType)
	}
}
