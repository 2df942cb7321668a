package packets

import (
	"fmt"
	"io"
)

// Reason codes a PUBCOMP can carry. Success is the zero value; the other
// is returned when a PUBREL arrives for a packet identifier the handler
// has no record of (already completed, or never started).
const (
	ReasonCodeSuccess                 uint8 = 0x00
	ReasonCodePacketIdentifierNotFound uint8 = 0x92
)

// PubCompPacket is the final step of a QoS 2 handshake, sent in response
// to PUBREL.
type PubCompPacket struct {
	PacketID   uint16
	ReasonCode uint8
	Properties *Properties
}

func (p *PubCompPacket) Type() uint8 { return PUBCOMP }

// WriteTo encodes the packet and writes it to w.
func (p *PubCompPacket) WriteTo(w io.Writer) (int64, error) {
	body := []byte{byte(p.PacketID >> 8), byte(p.PacketID)}

	if p.ReasonCode != ReasonCodeSuccess || hasProperties(p.Properties) {
		body = append(body, p.ReasonCode)
		body = appendProperties(body, p.Properties)
	}

	header := FixedHeader{PacketType: PUBCOMP, RemainingLength: len(body)}
	buf := header.appendBytes(make([]byte, 0, len(body)+5))
	buf = append(buf, body...)

	n, err := w.Write(buf)
	return int64(n), err
}

// DecodePubComp decodes a PUBCOMP packet body given its fixed header.
func DecodePubComp(header *FixedHeader, body []byte) (*PubCompPacket, error) {
	if len(body) != header.RemainingLength {
		return nil, fmt.Errorf("pubcomp: body length %d does not match remaining length %d", len(body), header.RemainingLength)
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("pubcomp: buffer too short for packet identifier")
	}

	p := &PubCompPacket{
		PacketID: uint16(body[0])<<8 | uint16(body[1]),
	}
	if len(body) == 2 {
		return p, nil
	}

	p.ReasonCode = body[2]
	if len(body) > 3 {
		props, _, err := decodeProperties(body[3:])
		if err != nil {
			return nil, fmt.Errorf("pubcomp: properties: %w", err)
		}
		p.Properties = props
	}
	return p, nil
}
