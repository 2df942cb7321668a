package mqrecv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kallstrom/mqrecv/internal/identstate"
	"github.com/kallstrom/mqrecv/internal/packets"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport records every packet a Handler writes, completing
// WriteAck asynchronously (on its own goroutine) exactly as the real
// transport package's writer does, so a test never sees the deadlock a
// synchronous callback from inside Handler.loop would otherwise cause.
type fakeTransport struct {
	mu            sync.Mutex
	acks          []*packets.PubAckPacket
	fireAndForget []packets.Packet
	failNextAck   bool
	holdAcks      chan struct{} // non-nil: WriteAck blocks until this is closed
}

func (f *fakeTransport) WriteAck(ctx context.Context, pkt *packets.PubAckPacket, onComplete func(error)) {
	f.mu.Lock()
	fail := f.failNextAck
	f.failNextAck = false
	hold := f.holdAcks
	f.acks = append(f.acks, pkt)
	f.mu.Unlock()

	go func() {
		if hold != nil {
			<-hold
		}
		if fail {
			onComplete(errors.New("fakeTransport: simulated write failure"))
			return
		}
		onComplete(nil)
	}()
}

func (f *fakeTransport) WriteFireAndForget(pkt packets.Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fireAndForget = append(f.fireAndForget, pkt)
}

func (f *fakeTransport) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks)
}

func (f *fakeTransport) lastDisconnect() *packets.DisconnectPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.fireAndForget) - 1; i >= 0; i-- {
		if d, ok := f.fireAndForget[i].(*packets.DisconnectPacket); ok {
			return d
		}
	}
	return nil
}

func (f *fakeTransport) lastPubRec() *packets.PubRecPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.fireAndForget) - 1; i >= 0; i-- {
		if p, ok := f.fireAndForget[i].(*packets.PubRecPacket); ok {
			return p
		}
	}
	return nil
}

func (f *fakeTransport) lastPubComp() *packets.PubCompPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.fireAndForget) - 1; i >= 0; i-- {
		if p, ok := f.fireAndForget[i].(*packets.PubCompPacket); ok {
			return p
		}
	}
	return nil
}

func (f *fakeTransport) pubRecCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, pkt := range f.fireAndForget {
		if _, ok := pkt.(*packets.PubRecPacket); ok {
			n++
		}
	}
	return n
}

// newTestHandler attaches h to a fresh fakeTransport and returns both,
// along with a teardown func the caller should defer.
func newTestHandler(t testingT, opts ...Option) (*Handler, *fakeTransport) {
	t.Helper()
	base := []Option{WithLogger(testLogger())}
	h := NewHandler(append(base, opts...)...)
	ft := &fakeTransport{}
	if err := h.Attach(context.Background(), ft); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return h, ft
}

// testingT is the subset of *testing.T this file needs, so it can be
// shared between handler_test.go and handler_qos2_test.go without an
// import cycle on the testing package's concrete type.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// waitForState polls the identifier table until id reaches want or the
// timeout elapses. The table is only ever mutated from the Handler's own
// loop goroutine, so polling from the test goroutine is the simplest way
// to observe an asynchronous transition without adding test-only hooks
// to Handler itself.
func waitForState(t testingT, h *Handler, id uint16, want identstate.Kind, timeout time.Duration) identstate.State {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		s := h.table.Get(id)
		if s.Kind == want {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("packet id %d: timed out waiting for state %v, last seen %v", id, want, s.Kind)
		}
		time.Sleep(time.Millisecond)
	}
}

const testTimeout = 2 * time.Second

// timeoutPoll polls cond until it reports true or timeout elapses,
// returning whether it ever became true.
func timeoutPoll(t testingT, cond func() bool, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// waitForDisconnect polls ft until a DISCONNECT has been written, or
// fails the test after timeout.
func waitForDisconnect(t testingT, ft *fakeTransport, timeout time.Duration) *packets.DisconnectPacket {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if d := ft.lastDisconnect(); d != nil {
			return d
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a DISCONNECT to be written")
		}
		time.Sleep(time.Millisecond)
	}
}
