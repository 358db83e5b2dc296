// Package events provides the in-process publish/subscribe mechanism for
// settlement lifecycle events. Handlers run synchronously inside a recover
// boundary so one handler's panic cannot corrupt the publisher or block
// sibling handlers.
package events

import (
	"log"
	"sync"
	"time"
)

// Event names.
const (
	PaymentSucceededEvent = "payment.succeeded"
	PaymentReleasedEvent  = "payment.released"
	PaymentSettledEvent   = "payment.settled"
	PayoutSubmittedEvent  = "payout.submitted"
	PayoutPaidEvent       = "payout.paid"
	PayoutFailedEvent     = "payout.failed"
	RefundCompletedEvent  = "refund.completed"
)

// Event is a typed record published on the bus.
type Event interface {
	EventName() string
}

// PaymentEvent carries payment lifecycle facts.
type PaymentEvent struct {
	Name      string
	PaymentID uint
	Amount    int64
	Currency  string
	At        time.Time
}

func (e PaymentEvent) EventName() string { return e.Name }

// PayoutEvent carries payout lifecycle facts.
type PayoutEvent struct {
	Name      string
	PayoutID  uint
	PaymentID uint
	SellerID  uint
	NetAmount int64
	At        time.Time
}

func (e PayoutEvent) EventName() string { return e.Name }

// RefundEvent carries refund lifecycle facts.
type RefundEvent struct {
	Name      string
	RefundID  uint
	PaymentID uint
	Amount    int64
	At        time.Time
}

func (e RefundEvent) EventName() string { return e.Name }

// Handler consumes one event.
type Handler func(Event)

// Bus is a synchronous in-process pub/sub dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish invokes every handler registered for the event's name. Each
// handler runs behind its own failure boundary.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	hs := b.handlers[e.EventName()]
	b.mu.RUnlock()

	for _, h := range hs {
		b.invoke(e, h)
	}
}

func (b *Bus) invoke(e Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event handler panic on %s: %v", e.EventName(), r)
		}
	}()
	h(e)
}
