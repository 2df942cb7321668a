package packets

import (
	"fmt"
	"io"
)

// pubrelFlags is the mandatory reserved bit pattern in the PUBREL fixed
// header, per MQTT v5.0 section 3.6.1.
const pubrelFlags = 0x02

// PubRelPacket is the second step of a QoS 2 handshake, sent by the
// publisher in response to PUBREC.
type PubRelPacket struct {
	PacketID   uint16
	ReasonCode uint8
	Properties *Properties
}

func (p *PubRelPacket) Type() uint8 { return PUBREL }

// WriteTo encodes the packet and writes it to w.
func (p *PubRelPacket) WriteTo(w io.Writer) (int64, error) {
	body := []byte{byte(p.PacketID >> 8), byte(p.PacketID)}

	if p.ReasonCode != 0x00 || hasProperties(p.Properties) {
		body = append(body, p.ReasonCode)
		body = appendProperties(body, p.Properties)
	}

	header := FixedHeader{PacketType: PUBREL, Flags: pubrelFlags, RemainingLength: len(body)}
	buf := header.appendBytes(make([]byte, 0, len(body)+5))
	buf = append(buf, body...)

	n, err := w.Write(buf)
	return int64(n), err
}

// DecodePubRel decodes a PUBREL packet body given its fixed header.
func DecodePubRel(header *FixedHeader, body []byte) (*PubRelPacket, error) {
	if header.Flags != pubrelFlags {
		return nil, fmt.Errorf("pubrel: malformed fixed header flags 0x%x", header.Flags)
	}
	if len(body) != header.RemainingLength {
		return nil, fmt.Errorf("pubrel: body length %d does not match remaining length %d", len(body), header.RemainingLength)
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("pubrel: buffer too short for packet identifier")
	}

	p := &PubRelPacket{
		PacketID: uint16(body[0])<<8 | uint16(body[1]),
	}
	if len(body) == 2 {
		return p, nil
	}

	p.ReasonCode = body[2]
	if len(body) > 3 {
		props, _, err := decodeProperties(body[3:])
		if err != nil {
			return nil, fmt.Errorf("pubrel: properties: %w", err)
		}
		p.Properties = props
	}
	return p, nil
}
