package packets

import (
	"fmt"
	"io"
)

// PublishFlags bit positions within the PUBLISH fixed header flags nibble.
const (
	publishFlagRetain = 0x01
	publishFlagQoSPos = 1
	publishFlagQoSMsk = 0x03
	publishFlagDup    = 0x08
)

// PublishPacket is an MQTT PUBLISH control packet.
type PublishPacket struct {
	Dup             bool
	QoS             uint8
	Retain          bool
	TopicName       string
	PacketID        uint16 // absent (zero) when QoS == QoS0
	Properties      *Properties
	Payload         []byte
}

func (p *PublishPacket) Type() uint8 { return PUBLISH }

// WriteTo encodes the packet and writes it to w.
func (p *PublishPacket) WriteTo(w io.Writer) (int64, error) {
	var body []byte
	body = appendString(body, p.TopicName)
	if p.QoS != QoS0 {
		body = append(body, byte(p.PacketID>>8), byte(p.PacketID))
	}
	body = appendProperties(body, p.Properties)
	body = append(body, p.Payload...)

	flags := uint8(0)
	if p.Retain {
		flags |= publishFlagRetain
	}
	flags |= (p.QoS & publishFlagQoSMsk) << publishFlagQoSPos
	if p.Dup {
		flags |= publishFlagDup
	}

	header := FixedHeader{PacketType: PUBLISH, Flags: flags, RemainingLength: len(body)}
	buf := header.appendBytes(make([]byte, 0, len(body)+5))
	buf = append(buf, body...)

	n, err := w.Write(buf)
	return int64(n), err
}

// DecodePublish decodes a PUBLISH packet body given its fixed header.
func DecodePublish(header *FixedHeader, body []byte) (*PublishPacket, error) {
	if len(body) != header.RemainingLength {
		return nil, fmt.Errorf("publish: body length %d does not match remaining length %d", len(body), header.RemainingLength)
	}

	p := &PublishPacket{
		Retain: header.Flags&publishFlagRetain != 0,
		QoS:    (header.Flags >> publishFlagQoSPos) & publishFlagQoSMsk,
		Dup:    header.Flags&publishFlagDup != 0,
	}
	if p.QoS > QoS2 {
		return nil, fmt.Errorf("publish: invalid QoS %d in fixed header flags", p.QoS)
	}

	topic, n, err := decodeString(body)
	if err != nil {
		return nil, fmt.Errorf("publish: topic name: %w", err)
	}
	p.TopicName = topic
	offset := n

	if p.QoS != QoS0 {
		if len(body) < offset+2 {
			return nil, fmt.Errorf("publish: buffer too short for packet identifier")
		}
		p.PacketID = uint16(body[offset])<<8 | uint16(body[offset+1])
		offset += 2
		if p.PacketID == 0 {
			return nil, fmt.Errorf("publish: packet identifier must be non-zero for QoS %d", p.QoS)
		}
	}

	props, n, err := decodeProperties(body[offset:])
	if err != nil {
		return nil, fmt.Errorf("publish: properties: %w", err)
	}
	p.Properties = props
	offset += n

	// Copied rather than sliced: body may be a pooled buffer the caller
	// (ReadPacket) returns to the pool as soon as this function returns.
	p.Payload = make([]byte, len(body)-offset)
	copy(p.Payload, body[offset:])
	return p, nil
}
