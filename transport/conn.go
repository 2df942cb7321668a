// Package transport provides concrete mqrecv.Transport implementations
// backed by a net.Conn: a plain/TLS TCP connection and a WebSocket
// connection. The handler package never imports this package directly;
// it only depends on the mqrecv.Transport interface these types satisfy.
package transport

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/kallstrom/mqrecv/internal/packets"
)

// writeJob is one outbound packet queued on the connection's writer
// goroutine, mirroring the teacher's outgoing-channel writeLoop idiom so
// a slow write never blocks the caller directly; the queue itself is
// the "external" blocking point spec.md §5 allows for.
type writeJob struct {
	pkt        packets.Packet
	onComplete func(error) // nil for fire-and-forget writes
}

// Conn adapts a net.Conn (TCP, TLS, or a WebSocket wrapped as a
// net.Conn) into an mqrecv.Transport.
type Conn struct {
	nc        net.Conn
	outgoing  chan writeJob
	closeOnce sync.Once
	done      chan struct{}
}

const outgoingQueueLen = 64

// NewConn starts a writer goroutine over nc and returns a ready Conn.
func NewConn(nc net.Conn) *Conn {
	c := &Conn{
		nc:       nc,
		outgoing: make(chan writeJob, outgoingQueueLen),
		done:     make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for job := range c.outgoing {
		_, err := job.pkt.WriteTo(c.nc)
		if job.onComplete != nil {
			job.onComplete(err)
		}
	}
}

// WriteAck implements mqrecv.Transport.
func (c *Conn) WriteAck(ctx context.Context, pkt *packets.PubAckPacket, onComplete func(error)) {
	job := writeJob{pkt: pkt, onComplete: onComplete}
	select {
	case c.outgoing <- job:
	case <-ctx.Done():
		onComplete(ctx.Err())
	case <-c.done:
		onComplete(io.ErrClosedPipe)
	}
}

// WriteFireAndForget implements mqrecv.Transport.
func (c *Conn) WriteFireAndForget(pkt packets.Packet) {
	select {
	case c.outgoing <- writeJob{pkt: pkt}:
	case <-c.done:
	}
}

// Read reads one decoded packet off the wire, blocking until a full
// packet arrives or the connection errors. Callers drive their own read
// loop with this and feed results to Handler.HandlePacket.
func (c *Conn) Read() (packets.Packet, error) {
	return packets.ReadPacket(c.nc)
}

// Close closes the underlying connection and releases callers waiting
// on a full write queue. The writer goroutine is not stopped: packets
// still queued fail to write on the closed connection and report that
// error to their onComplete.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.nc.Close()
}
