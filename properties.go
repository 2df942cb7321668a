package mqrecv

import "github.com/kallstrom/mqrecv/internal/packets"

// UserProperty is a single MQTT 5.0 user property key-value pair.
type UserProperty struct {
	Key   string
	Value string
}

// Properties holds the MQTT 5.0 properties relevant to publish
// acknowledgement packets. It mirrors internal/packets.Properties but is
// the type application code and interceptors see, keeping the wire
// codec's encode/decode concerns out of the public API.
type Properties struct {
	ReasonString   string
	UserProperties []UserProperty
}

func fromWireProperties(p *packets.Properties) *Properties {
	if p == nil {
		return nil
	}
	out := &Properties{}
	if p.Presence&packets.PresReasonString != 0 {
		out.ReasonString = p.ReasonString
	}
	for _, up := range p.UserProperties {
		out.UserProperties = append(out.UserProperties, UserProperty{Key: up.Key, Value: up.Value})
	}
	return out
}

func (p *Properties) toWireProperties() *packets.Properties {
	if p == nil {
		return nil
	}
	out := &packets.Properties{}
	if p.ReasonString != "" {
		out.ReasonString = p.ReasonString
		out.Presence |= packets.PresReasonString
	}
	for _, up := range p.UserProperties {
		out.UserProperties = append(out.UserProperties, packets.UserProperty{Key: up.Key, Value: up.Value})
	}
	return out
}
