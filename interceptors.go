package mqrecv

import "github.com/kallstrom/mqrecv/internal/packets"

// PubRel is the inbound PUBREL that triggers a QoS 2 Qos2Interceptor's
// OnPubRel hook.
type PubRel struct {
	PacketID uint16
}

// Qos1Interceptor customizes the PUBACK built in response to a QoS 1
// PUBLISH. It is invoked synchronously on the Handler's I/O loop while
// it processes the application's Ack, is permitted
// to set the reason code, reason string and user properties on b, and
// must not retain b past the call.
type Qos1Interceptor func(p Publish, b *PubAckBuilder)

// Qos2Interceptor customizes both halves of the QoS 2 handshake: the
// PUBREC built in response to the PUBLISH, and the PUBCOMP built in
// response to the subsequent PUBREL. Absence of configuration means the
// default (success, no properties) acknowledgement is sent.
type Qos2Interceptor interface {
	OnPublish(p Publish, b *PubRecBuilder)
	OnPubRel(r PubRel, b *PubCompBuilder)
}

// builderBase is embedded by every ack builder and tracks whether build
// has already run, so a late call from an interceptor that ignored "must
// not retain the builder" is a loud panic rather than silent corruption.
type builderBase struct {
	built bool
}

func (b *builderBase) checkMutable() {
	if b.built {
		panic("mqrecv: ack builder mutated after build()")
	}
}

// PubAckBuilder builds the PUBACK sent for a QoS 1 PUBLISH.
type PubAckBuilder struct {
	builderBase
	packetID   uint16
	reasonCode uint8
	properties *Properties
}

func newPubAckBuilder(packetID uint16) *PubAckBuilder {
	return &PubAckBuilder{packetID: packetID}
}

// SetReasonCode overrides the default ReasonCodeSuccess.
func (b *PubAckBuilder) SetReasonCode(code uint8) {
	b.checkMutable()
	b.reasonCode = code
}

// SetReasonString attaches a human-readable reason string.
func (b *PubAckBuilder) SetReasonString(s string) {
	b.checkMutable()
	b.ensureProperties().ReasonString = s
}

// SetUserProperty appends a user property.
func (b *PubAckBuilder) SetUserProperty(key, value string) {
	b.checkMutable()
	p := b.ensureProperties()
	p.UserProperties = append(p.UserProperties, UserProperty{Key: key, Value: value})
}

func (b *PubAckBuilder) ensureProperties() *Properties {
	if b.properties == nil {
		b.properties = &Properties{}
	}
	return b.properties
}

func (b *PubAckBuilder) build() *packets.PubAckPacket {
	b.built = true
	return &packets.PubAckPacket{
		PacketID:   b.packetID,
		ReasonCode: b.reasonCode,
		Properties: b.properties.toWireProperties(),
	}
}

// PubRecBuilder builds the PUBREC sent for a QoS 2 PUBLISH.
type PubRecBuilder struct {
	builderBase
	packetID   uint16
	reasonCode uint8
	properties *Properties
}

func newPubRecBuilder(packetID uint16) *PubRecBuilder {
	return &PubRecBuilder{packetID: packetID}
}

// SetReasonCode overrides the default ReasonCodeSuccess.
func (b *PubRecBuilder) SetReasonCode(code uint8) {
	b.checkMutable()
	b.reasonCode = code
}

// SetReasonString attaches a human-readable reason string.
func (b *PubRecBuilder) SetReasonString(s string) {
	b.checkMutable()
	b.ensureProperties().ReasonString = s
}

// SetUserProperty appends a user property.
func (b *PubRecBuilder) SetUserProperty(key, value string) {
	b.checkMutable()
	p := b.ensureProperties()
	p.UserProperties = append(p.UserProperties, UserProperty{Key: key, Value: value})
}

func (b *PubRecBuilder) ensureProperties() *Properties {
	if b.properties == nil {
		b.properties = &Properties{}
	}
	return b.properties
}

func (b *PubRecBuilder) build() *packets.PubRecPacket {
	b.built = true
	return &packets.PubRecPacket{
		PacketID:   b.packetID,
		ReasonCode: b.reasonCode,
		Properties: b.properties.toWireProperties(),
	}
}

// PubCompBuilder builds the PUBCOMP sent in response to a PUBREL.
type PubCompBuilder struct {
	builderBase
	packetID   uint16
	reasonCode uint8
	properties *Properties
}

func newPubCompBuilder(packetID uint16, reasonCode uint8) *PubCompBuilder {
	return &PubCompBuilder{packetID: packetID, reasonCode: reasonCode}
}

// SetReasonCode overrides the reason code the builder was created with
// (ReasonCodeSuccess for a normal handshake, or
// ReasonCodePacketIdentifierNotFound for an idempotent replay).
func (b *PubCompBuilder) SetReasonCode(code uint8) {
	b.checkMutable()
	b.reasonCode = code
}

// SetReasonString attaches a human-readable reason string.
func (b *PubCompBuilder) SetReasonString(s string) {
	b.checkMutable()
	b.ensureProperties().ReasonString = s
}

// SetUserProperty appends a user property.
func (b *PubCompBuilder) SetUserProperty(key, value string) {
	b.checkMutable()
	p := b.ensureProperties()
	p.UserProperties = append(p.UserProperties, UserProperty{Key: key, Value: value})
}

func (b *PubCompBuilder) ensureProperties() *Properties {
	if b.properties == nil {
		b.properties = &Properties{}
	}
	return b.properties
}

func (b *PubCompBuilder) build() *packets.PubCompPacket {
	b.built = true
	return &packets.PubCompPacket{
		PacketID:   b.packetID,
		ReasonCode: b.reasonCode,
		Properties: b.properties.toWireProperties(),
	}
}
