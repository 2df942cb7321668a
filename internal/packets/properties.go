package packets

import (
	"encoding/binary"
	"fmt"
)

// Property IDs used by PUBLISH, PUBACK, PUBREC, PUBREL, PUBCOMP and
// DISCONNECT — the only packet kinds the incoming QoS handler touches.
// CONNECT/CONNACK/SUBSCRIBE properties (session expiry negotiation,
// authentication data, topic alias maximum, etc.) belong to collaborators
// this module does not implement.
const (
	PropPayloadFormatIndicator uint8 = 0x01
	PropMessageExpiryInterval  uint8 = 0x02
	PropContentType            uint8 = 0x03
	PropResponseTopic          uint8 = 0x08
	PropCorrelationData        uint8 = 0x09
	PropSubscriptionIdentifier uint8 = 0x0B
	PropSessionExpiryInterval  uint8 = 0x11
	PropServerReference        uint8 = 0x1C
	PropReasonString           uint8 = 0x1F
	PropUserProperty           uint8 = 0x26
)

// Presence flags for optional scalar and string properties. Binary and
// repeated properties (correlation data, subscription identifiers, user
// properties) are detected by non-zero length instead of a presence bit.
const (
	PresPayloadFormatIndicator uint32 = 1 << 0
	PresMessageExpiryInterval  uint32 = 1 << 1
	PresContentType            uint32 = 1 << 2
	PresResponseTopic          uint32 = 1 << 3
	PresSessionExpiryInterval  uint32 = 1 << 4
	PresServerReference        uint32 = 1 << 5
	PresReasonString           uint32 = 1 << 6
)

// UserProperty is a single MQTT 5.0 user property key-value pair.
type UserProperty struct {
	Key   string
	Value string
}

// Properties holds the MQTT 5.0 properties relevant to the publish
// acknowledgement handshake.
type Properties struct {
	Presence                uint32
	PayloadFormatIndicator  uint8
	MessageExpiryInterval   uint32
	ContentType             string
	ResponseTopic           string
	CorrelationData         []byte
	SubscriptionIdentifier  []int
	SessionExpiryInterval   uint32
	ServerReference         string
	ReasonString            string
	UserProperties          []UserProperty
}

// encodeProperties serializes p into the MQTT v5 "Properties" wire format
// (a length-prefixed run of property id/value pairs).
func encodeProperties(p *Properties) []byte {
	if p == nil {
		return []byte{0x00}
	}
	return appendProperties(make([]byte, 0, 64), p)
}

// appendProperties appends the serialized properties to dst.
func appendProperties(dst []byte, p *Properties) []byte {
	if p == nil {
		return append(dst, 0x00)
	}

	startLen := len(dst)
	dst = append(dst, 0) // placeholder length byte, optimistic 1-byte case
	propsStart := len(dst)

	dst = p.appendNumeric(dst)
	dst = p.appendStringOrBinary(dst)
	dst = p.appendSpecial(dst)

	propLen := len(dst) - propsStart
	if propLen < 128 {
		dst[startLen] = byte(propLen)
		return dst
	}

	lenBuf := appendVarInt(nil, propLen)
	lenDiff := len(lenBuf) - 1
	dst = append(dst, make([]byte, lenDiff)...)
	copy(dst[propsStart+lenDiff:], dst[propsStart:propsStart+propLen])
	copy(dst[startLen:], lenBuf)

	return dst
}

// decodeProperties reads the properties section from buf, returning the
// decoded properties and the number of bytes consumed (including the
// length prefix).
func decodeProperties(buf []byte) (*Properties, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("buffer too short for properties length")
	}

	propLen, n, err := decodeVarIntBuf(buf)
	if err != nil {
		return nil, 0, err
	}
	totalLen := n + propLen
	if len(buf) < totalLen {
		return nil, 0, fmt.Errorf("buffer too short for properties data")
	}
	if propLen == 0 {
		return nil, totalLen, nil
	}

	p := &Properties{}
	slice := buf[n:totalLen]
	offset := 0

	for offset < len(slice) {
		id := slice[offset]
		offset++

		consumed, ok, err := p.decodeNumeric(id, slice[offset:])
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			consumed, ok, err = p.decodeStringOrBinary(id, slice[offset:])
			if err != nil {
				return nil, 0, err
			}
		}
		if !ok {
			consumed, ok, err = p.decodeSpecial(id, slice[offset:])
			if err != nil {
				return nil, 0, err
			}
		}
		if !ok {
			return nil, 0, fmt.Errorf("unsupported property ID: 0x%02x", id)
		}
		offset += consumed
	}

	return p, totalLen, nil
}

func (p *Properties) appendNumeric(dst []byte) []byte {
	if p.Presence&PresPayloadFormatIndicator != 0 {
		dst = append(dst, PropPayloadFormatIndicator, p.PayloadFormatIndicator)
	}
	if p.Presence&PresMessageExpiryInterval != 0 {
		dst = append(dst, PropMessageExpiryInterval)
		dst = binary.BigEndian.AppendUint32(dst, p.MessageExpiryInterval)
	}
	if p.Presence&PresSessionExpiryInterval != 0 {
		dst = append(dst, PropSessionExpiryInterval)
		dst = binary.BigEndian.AppendUint32(dst, p.SessionExpiryInterval)
	}
	return dst
}

func (p *Properties) appendStringOrBinary(dst []byte) []byte {
	if p.Presence&PresContentType != 0 {
		dst = append(dst, PropContentType)
		dst = appendString(dst, p.ContentType)
	}
	if p.Presence&PresResponseTopic != 0 {
		dst = append(dst, PropResponseTopic)
		dst = appendString(dst, p.ResponseTopic)
	}
	if len(p.CorrelationData) > 0 {
		dst = append(dst, PropCorrelationData)
		dst = appendBinary(dst, p.CorrelationData)
	}
	if p.Presence&PresServerReference != 0 {
		dst = append(dst, PropServerReference)
		dst = appendString(dst, p.ServerReference)
	}
	if p.Presence&PresReasonString != 0 {
		dst = append(dst, PropReasonString)
		dst = appendString(dst, p.ReasonString)
	}
	return dst
}

func (p *Properties) appendSpecial(dst []byte) []byte {
	for _, id := range p.SubscriptionIdentifier {
		dst = append(dst, PropSubscriptionIdentifier)
		dst = appendVarInt(dst, id)
	}
	for _, up := range p.UserProperties {
		dst = append(dst, PropUserProperty)
		dst = appendString(dst, up.Key)
		dst = appendString(dst, up.Value)
	}
	return dst
}

func (p *Properties) decodeNumeric(id byte, data []byte) (int, bool, error) {
	switch id {
	case PropPayloadFormatIndicator:
		if len(data) < 1 {
			return 0, false, fmt.Errorf("malformed property 0x%02x", id)
		}
		p.PayloadFormatIndicator = data[0]
		p.Presence |= PresPayloadFormatIndicator
		return 1, true, nil
	case PropMessageExpiryInterval:
		if len(data) < 4 {
			return 0, false, fmt.Errorf("malformed property 0x%02x", id)
		}
		p.MessageExpiryInterval = binary.BigEndian.Uint32(data)
		p.Presence |= PresMessageExpiryInterval
		return 4, true, nil
	case PropSessionExpiryInterval:
		if len(data) < 4 {
			return 0, false, fmt.Errorf("malformed property 0x%02x", id)
		}
		p.SessionExpiryInterval = binary.BigEndian.Uint32(data)
		p.Presence |= PresSessionExpiryInterval
		return 4, true, nil
	}
	return 0, false, nil
}

func (p *Properties) decodeStringOrBinary(id byte, data []byte) (int, bool, error) {
	switch id {
	case PropContentType:
		s, n, err := decodeString(data)
		if err != nil {
			return 0, false, err
		}
		p.ContentType = s
		p.Presence |= PresContentType
		return n, true, nil
	case PropResponseTopic:
		s, n, err := decodeString(data)
		if err != nil {
			return 0, false, err
		}
		p.ResponseTopic = s
		p.Presence |= PresResponseTopic
		return n, true, nil
	case PropCorrelationData:
		b, n, err := decodeBinary(data)
		if err != nil {
			return 0, false, err
		}
		// Copied rather than sliced: the source buffer may be pooled and
		// returned by the caller as soon as decoding finishes.
		p.CorrelationData = append([]byte(nil), b...)
		return n, true, nil
	case PropServerReference:
		s, n, err := decodeString(data)
		if err != nil {
			return 0, false, err
		}
		p.ServerReference = s
		p.Presence |= PresServerReference
		return n, true, nil
	case PropReasonString:
		s, n, err := decodeString(data)
		if err != nil {
			return 0, false, err
		}
		p.ReasonString = s
		p.Presence |= PresReasonString
		return n, true, nil
	}
	return 0, false, nil
}

func (p *Properties) decodeSpecial(id byte, data []byte) (int, bool, error) {
	switch id {
	case PropUserProperty:
		k, nK, err := decodeString(data)
		if err != nil {
			return 0, false, err
		}
		v, nV, err := decodeString(data[nK:])
		if err != nil {
			return 0, false, err
		}
		p.UserProperties = append(p.UserProperties, UserProperty{Key: k, Value: v})
		return nK + nV, true, nil
	case PropSubscriptionIdentifier:
		val, n, err := decodeVarIntBuf(data)
		if err != nil {
			return 0, false, err
		}
		p.SubscriptionIdentifier = append(p.SubscriptionIdentifier, val)
		return n, true, nil
	}
	return 0, false, nil
}
