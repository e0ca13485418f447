package audit

import (
	"context"
	"sync"
)

// AsyncPublisher decouples event emission from request latency: Emit enqueues
// onto a bounded channel and returns immediately, while a background goroutine
// drains to the wrapped publisher. When the buffer is full the event is
// dropped rather than blocking the request path; audit is best-effort.
type AsyncPublisher struct {
	next    Publisher
	inbox   chan Event
	dropped func(Event)

	closeOnce sync.Once
	done      chan struct{}
}

// AsyncOption configures an AsyncPublisher.
type AsyncOption func(*AsyncPublisher)

// WithDropHandler observes events discarded because the buffer was full.
func WithDropHandler(fn func(Event)) AsyncOption {
	return func(p *AsyncPublisher) { p.dropped = fn }
}

// NewAsyncPublisher wraps next with a buffered drain loop.
func NewAsyncPublisher(next Publisher, buffer int, opts ...AsyncOption) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &AsyncPublisher{
		next:  next,
		inbox: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		// Delivery failures are the wrapped publisher's concern; by the
		// time an event reaches the drain loop the request has moved on.
		_ = p.next.Emit(context.Background(), event)
	}
}

func (p *AsyncPublisher) Emit(_ context.Context, event Event) error {
	select {
	case p.inbox <- event:
	default:
		if p.dropped != nil {
			p.dropped(event)
		}
	}
	return nil
}

// Close drains pending events, then closes the wrapped publisher.
func (p *AsyncPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.inbox)
		<-p.done
		p.next.Close()
	})
}
