package notify

import (
	"errors"
	"log"
	"sync"
	"time"
)

// EventType distinguishes the outcomes the orchestrator announces.
type EventType string

const (
	SignatureCompleted EventType = "signature_completed"
	SignatureFailed    EventType = "signature_failed"
)

// Event is the typed message published when a signature request reaches a
// terminal outcome. The notification subsystem subscribes to these instead
// of being called inline, so ledger correctness never depends on delivery.
type Event struct {
	Type        EventType `json:"type"`
	RequestID   string    `json:"request_id"`
	SignatureID string    `json:"signature_id,omitempty"`
	Recipients  []string  `json:"recipients"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrChannelFull is returned when a subscriber cannot keep up; the caller
// retries independently.
var ErrChannelFull = errors.New("notification channel full")

const subscriberBuffer = 64

// Publisher fans events out to subscribers over buffered channels.
type Publisher struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers a new subscriber channel.
func (p *Publisher) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Publish delivers the event to every subscriber without blocking. A full
// subscriber buffer surfaces as ErrChannelFull so the publish can be
// retried later.
func (p *Publisher) Publish(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	p.mu.Lock()
	subs := append([]chan Event(nil), p.subs...)
	p.mu.Unlock()

	var err error
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			err = ErrChannelFull
		}
	}
	return err
}

// StartLogSubscriber consumes events and logs them, standing in for the
// external notification system. Returns a stop function.
func StartLogSubscriber(p *Publisher) func() {
	ch := p.Subscribe()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev := <-ch:
				log.Printf("[NOTIFY] type=%s request=%s signature=%s reason=%q",
					ev.Type, ev.RequestID, ev.SignatureID, ev.Reason)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
