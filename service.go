package mqrecv

import "sync/atomic"

// PublishService is the façade to the downstream consumer. It owns no
// protocol state; its only contract is admitting a publish into the
// receive window and reporting whether there was room.
type PublishService interface {
	// Offer hands p to the downstream pipeline. It returns false iff
	// admitting p would take the adapter's own in-flight count above
	// receiveMaximum; on true, p is now owned by the downstream
	// pipeline, which will eventually call Handler.Ack(p) from its own
	// goroutine. Offer must never block the caller.
	Offer(p Publish, receiveMaximum int) bool
}

// ChannelPublishService is the default PublishService: a bounded-channel
// façade grounded on the teacher's subscription dispatch in
// logic.go's handlePublish, which runs matched handlers in their own
// goroutines so the I/O loop is never blocked by slow consumer code.
//
// Admission is a simple count compared against receiveMaximum; the
// count is incremented when Offer admits a publish and decremented when
// the dispatched handler goroutine returns, so it reflects consumer
// throughput rather than the protocol-level ack state tracked
// separately by internal/identstate.
type ChannelPublishService struct {
	handler  func(Publish)
	inFlight atomic.Int64
	queue    chan Publish
}

// NewChannelPublishService returns a PublishService that dispatches
// admitted publishes to handler, each call in its own goroutine. queueLen
// bounds the internal dispatch channel; a full channel never causes
// Offer to block, it makes Offer return false instead.
func NewChannelPublishService(queueLen int, handler func(Publish)) *ChannelPublishService {
	if queueLen <= 0 {
		queueLen = 1
	}
	s := &ChannelPublishService{
		handler: handler,
		queue:   make(chan Publish, queueLen),
	}
	go s.dispatchLoop()
	return s
}

func (s *ChannelPublishService) dispatchLoop() {
	for p := range s.queue {
		go func(p Publish) {
			defer s.inFlight.Add(-1)
			s.handler(p)
		}(p)
	}
}

// Offer implements PublishService.
func (s *ChannelPublishService) Offer(p Publish, receiveMaximum int) bool {
	for {
		current := s.inFlight.Load()
		if int(current) >= receiveMaximum {
			return false
		}
		if s.inFlight.CompareAndSwap(current, current+1) {
			break
		}
	}

	select {
	case s.queue <- p:
		return true
	default:
		s.inFlight.Add(-1)
		return false
	}
}
