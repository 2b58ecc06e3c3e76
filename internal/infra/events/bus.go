package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Envelope is what subscribers receive.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Bus is an in-process publish/subscribe fan-out keyed by recipient.
// Delivery is best effort: a subscriber with a full buffer misses the
// event rather than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int64]map[chan Envelope]struct{}
	logger *logrus.Logger
}

func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{
		subs:   make(map[int64]map[chan Envelope]struct{}),
		logger: logger,
	}
}

// Subscribe registers a buffered channel for one recipient. The caller
// must call the returned cancel function when done.
func (b *Bus) Subscribe(recipientID int64) (<-chan Envelope, func()) {
	ch := make(chan Envelope, 16)

	b.mu.Lock()
	if b.subs[recipientID] == nil {
		b.subs[recipientID] = make(map[chan Envelope]struct{})
	}
	b.subs[recipientID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[recipientID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, recipientID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Emit delivers the event to every live subscriber of the recipient.
func (b *Bus) Emit(recipientID int64, event string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[recipientID] {
		select {
		case ch <- Envelope{Event: event, Payload: payload}:
		default:
			b.logger.WithFields(logrus.Fields{
				"recipient_id": recipientID,
				"event":        event,
			}).Warn("Subscriber buffer full, event dropped")
		}
	}
	return nil
}
