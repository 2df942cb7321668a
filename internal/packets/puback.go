package packets

import (
	"fmt"
	"io"
)

// PubAckPacket acknowledges a QoS 1 PUBLISH.
type PubAckPacket struct {
	PacketID   uint16
	ReasonCode uint8
	Properties *Properties
}

func (p *PubAckPacket) Type() uint8 { return PUBACK }

// WriteTo encodes the packet and writes it to w.
//
// MQTT v5 allows omitting the reason code and properties entirely when
// the reason code is Success (0x00) and there are no properties, per
// section 3.4.2.1.
func (p *PubAckPacket) WriteTo(w io.Writer) (int64, error) {
	body := []byte{byte(p.PacketID >> 8), byte(p.PacketID)}

	if p.ReasonCode != 0x00 || hasProperties(p.Properties) {
		body = append(body, p.ReasonCode)
		body = appendProperties(body, p.Properties)
	}

	header := FixedHeader{PacketType: PUBACK, RemainingLength: len(body)}
	buf := header.appendBytes(make([]byte, 0, len(body)+5))
	buf = append(buf, body...)

	n, err := w.Write(buf)
	return int64(n), err
}

// DecodePubAck decodes a PUBACK packet body given its fixed header.
func DecodePubAck(header *FixedHeader, body []byte) (*PubAckPacket, error) {
	if len(body) != header.RemainingLength {
		return nil, fmt.Errorf("puback: body length %d does not match remaining length %d", len(body), header.RemainingLength)
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("puback: buffer too short for packet identifier")
	}

	p := &PubAckPacket{
		PacketID: uint16(body[0])<<8 | uint16(body[1]),
	}
	if len(body) == 2 {
		return p, nil // reason code and properties omitted, implies Success
	}

	p.ReasonCode = body[2]
	if len(body) > 3 {
		props, _, err := decodeProperties(body[3:])
		if err != nil {
			return nil, fmt.Errorf("puback: properties: %w", err)
		}
		p.Properties = props
	}
	return p, nil
}

func hasProperties(p *Properties) bool {
	if p == nil {
		return false
	}
	return p.Presence != 0 || len(p.CorrelationData) > 0 || len(p.SubscriptionIdentifier) > 0 || len(p.UserProperties) > 0
}
