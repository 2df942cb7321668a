package mqrecv

import (
	"log/slog"

	"github.com/kallstrom/mqrecv/internal/packets"
)

// HandlerOptions holds the configuration a Handler is built with by
// NewHandler: the negotiated Receive Maximum and the optional
// interceptors that customize outgoing acknowledgements.
type HandlerOptions struct {
	// ReceiveMaximum caps the concurrent count of QoS 1/2 exchanges
	// unacknowledged by the application. Must be in [1, 65535]; 0 is
	// treated as the MQTT 5.0 default of 65535.
	ReceiveMaximum uint16

	// PublishService is the downstream consumer façade. Required.
	PublishService PublishService

	// Qos1 customizes the PUBACK built for a QoS 1 PUBLISH. Nil means
	// the default (ReasonCodeSuccess, no properties) ack is sent.
	Qos1 Qos1Interceptor

	// Qos2 customizes both the PUBREC and PUBCOMP built during a QoS 2
	// handshake. Nil means default acks are sent.
	Qos2 Qos2Interceptor

	// Logger receives structured Debug/Warn entries for every
	// protocol-violation and idempotent-replay branch. Defaults to a
	// discarding logger.
	Logger *slog.Logger

	// Unrecognized is called with any inbound packet kind other than
	// PUBLISH/PUBREL that reaches HandlePacket (§6: "unrecognized kinds
	// are forwarded unchanged up the pipeline"). Nil drops them.
	Unrecognized func(packets.Packet)
}

// Option mutates a HandlerOptions in place, following the functional
// options pattern used throughout this module.
type Option func(*HandlerOptions)

// WithReceiveMaximum sets the negotiated Receive Maximum.
func WithReceiveMaximum(max uint16) Option {
	return func(o *HandlerOptions) {
		o.ReceiveMaximum = max
	}
}

// WithPublishService sets the downstream consumer façade.
func WithPublishService(svc PublishService) Option {
	return func(o *HandlerOptions) {
		o.PublishService = svc
	}
}

// WithQos1Interceptor sets the QoS 1 PUBACK interceptor.
func WithQos1Interceptor(i Qos1Interceptor) Option {
	return func(o *HandlerOptions) {
		o.Qos1 = i
	}
}

// WithQos2Interceptor sets the QoS 2 PUBREC/PUBCOMP interceptor.
func WithQos2Interceptor(i Qos2Interceptor) Option {
	return func(o *HandlerOptions) {
		o.Qos2 = i
	}
}

// WithUnrecognizedHandler sets the callback for inbound packet kinds
// this handler does not itself process.
func WithUnrecognizedHandler(fn func(packets.Packet)) Option {
	return func(o *HandlerOptions) {
		o.Unrecognized = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *HandlerOptions) {
		o.Logger = logger
	}
}

func defaultOptions() HandlerOptions {
	return HandlerOptions{
		ReceiveMaximum: 65535,
		Logger:         slog.New(slog.DiscardHandler),
	}
}
