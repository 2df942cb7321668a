package mqrecv

import "github.com/kallstrom/mqrecv/internal/packets"

// Publish is a decoded PUBLISH carrying everything the handler needs to
// run the acknowledgement handshake and everything the downstream
// consumer needs to process the message.
type Publish struct {
	// TopicName is the topic the message was published to.
	TopicName string

	// Payload is the message body. Owned by the caller after Offer
	// returns true; the handler keeps no reference to it.
	Payload []byte

	// QoS is the delivery guarantee requested by the broker.
	QoS QoS

	// PacketID scopes a QoS 1 or QoS 2 exchange. Zero for QoS 0.
	PacketID uint16

	// Dup is set when the broker is resending a previously sent
	// PUBLISH whose acknowledgement it has not yet seen.
	Dup bool

	// Retain is the PUBLISH RETAIN flag, as received.
	Retain bool

	// Properties carries the MQTT 5.0 PUBLISH properties, or nil if
	// none were present.
	Properties *Properties
}

func publishFromPacket(p *packets.PublishPacket) Publish {
	return Publish{
		TopicName:  p.TopicName,
		Payload:    p.Payload,
		QoS:        QoS(p.QoS),
		PacketID:   p.PacketID,
		Dup:        p.Dup,
		Retain:     p.Retain,
		Properties: fromWireProperties(p.Properties),
	}
}
