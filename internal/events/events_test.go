package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

func TestPublishReachesOnlyMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var created, canceled int
	bus.Subscribe(BookingCreated, func(Event) error { created++; return nil })
	bus.Subscribe(BookingCreated, func(Event) error { created++; return nil })
	bus.Subscribe(BookingCanceled, func(Event) error { canceled++; return nil })

	bus.Publish(Event{Type: BookingCreated, Booking: &models.Booking{ID: "b-1"}})

	assert.Equal(t, 2, created)
	assert.Zero(t, canceled)
}

func TestPublishFillsOccurredAt(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(BookingCreated, func(ev Event) error { got = ev; return nil })
	bus.Publish(Event{Type: BookingCreated})

	assert.False(t, got.OccurredAt.IsZero())
	assert.WithinDuration(t, time.Now(), got.OccurredAt, time.Minute)
}

func TestHandlerErrorDoesNotStopFanout(t *testing.T) {
	bus := NewBus()

	var reached bool
	bus.Subscribe(BookingCanceled, func(Event) error { return errors.New("handler failed") })
	bus.Subscribe(BookingCanceled, func(Event) error { reached = true; return nil })

	bus.Publish(Event{Type: BookingCanceled})
	assert.True(t, reached)
}
