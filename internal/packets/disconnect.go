package packets

import (
	"fmt"
	"io"
)

// DisconnectPacket tells the peer the connection is being closed, and why.
type DisconnectPacket struct {
	ReasonCode uint8
	Properties *Properties
}

func (p *DisconnectPacket) Type() uint8 { return DISCONNECT }

// WriteTo encodes the packet and writes it to w. An all-zero disconnect
// (Normal, no properties) may be sent as a bare fixed header with
// RemainingLength 0, per section 3.14.2.1.
func (p *DisconnectPacket) WriteTo(w io.Writer) (int64, error) {
	var body []byte

	if p.ReasonCode != ReasonCodeSuccess || hasProperties(p.Properties) {
		body = append(body, p.ReasonCode)
		body = appendProperties(body, p.Properties)
	}

	header := FixedHeader{PacketType: DISCONNECT, RemainingLength: len(body)}
	buf := header.appendBytes(make([]byte, 0, len(body)+5))
	buf = append(buf, body...)

	n, err := w.Write(buf)
	return int64(n), err
}

// DecodeDisconnect decodes a DISCONNECT packet body given its fixed header.
func DecodeDisconnect(header *FixedHeader, body []byte) (*DisconnectPacket, error) {
	if len(body) != header.RemainingLength {
		return nil, fmt.Errorf("disconnect: body length %d does not match remaining length %d", len(body), header.RemainingLength)
	}

	p := &DisconnectPacket{}
	if len(body) == 0 {
		return p, nil
	}

	p.ReasonCode = body[0]
	if len(body) > 1 {
		props, _, err := decodeProperties(body[1:])
		if err != nil {
			return nil, fmt.Errorf("disconnect: properties: %w", err)
		}
		p.Properties = props
	}
	return p, nil
}
