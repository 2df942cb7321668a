// Package mqrecv implements the incoming QoS handler of an MQTT v5.0
// client: the protocol state machine that receives PUBLISH packets from
// the broker, drives the QoS 1 and QoS 2 acknowledgement handshakes,
// enforces Receive Maximum, and disconnects on protocol violations.
//
// # Scope
//
// In scope: the per-identifier state machine (internal/identstate), the
// QoS 0/1/2 receive path, PUBACK/PUBREC/PUBCOMP generation and
// retransmit-safe caching, Receive Maximum enforcement, and interceptor
// hooks that let application code mutate outgoing acknowledgements.
//
// Out of scope, reachable only through the interfaces in this package:
// CONNECT/CONNACK negotiation, subscription management, downstream
// dispatch of publishes to subscriber callbacks, and persistent session
// storage across reconnects. The transport and wire-codec packages
// (transport, internal/packets) ship concrete, minimal implementations
// so the handler is runnable end-to-end, but the handler itself only
// ever touches them through its external interfaces.
//
// # Quick start
//
//	var h *mqrecv.Handler
//	h = mqrecv.NewHandler(
//	    mqrecv.WithReceiveMaximum(32),
//	    mqrecv.WithPublishService(mqrecv.NewChannelPublishService(64, func(p mqrecv.Publish) {
//	        fmt.Printf("%s: %s\n", p.TopicName, p.Payload)
//	        h.Ack(p)
//	    })),
//	)
//	conn, err := transport.DialTCP(ctx, addr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Attach(ctx, conn); err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    pkt, err := conn.Read()
//	    if err != nil {
//	        h.Detach(err)
//	        return
//	    }
//	    h.HandlePacket(pkt)
//	}
//
// # Interceptors
//
// Advanced configuration may supply a Qos1Interceptor and/or
// Qos2Interceptor to customize outgoing acknowledgements before they are
// written:
//
//	opts.Qos1 = func(p mqrecv.Publish, b *mqrecv.PubAckBuilder) {
//	    b.SetReasonString("accepted")
//	}
//
// # Errors
//
// Protocol violations never reach the application as errors: the
// Handler logs a ProtocolViolation carrying the MQTT 5 reason code,
// sends it in a client-originated DISCONNECT and stops processing the
// connection. Handler lifecycle misuse surfaces as the package-level
// sentinel error ErrAlreadyAttached.
package mqrecv
