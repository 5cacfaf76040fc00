// Package events provides in-process pub/sub for booking lifecycle events.
// The webhook dispatcher and analytics collector subscribe to it.
package events

import (
	"sync"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// Booking lifecycle event types.
const (
	BookingCreated     = "booking.created"
	BookingCanceled    = "booking.canceled"
	BookingRescheduled = "booking.rescheduled"
)

// Event represents a lightweight domain event.
type Event struct {
	ID         string
	Type       string
	Booking    *models.Booking
	OccurredAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event) error

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}
