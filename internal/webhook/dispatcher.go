package webhook

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/events"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/metrics"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// Transport delivers one signed payload. The HTTP client behind it is out of
// scope here; failures are reported through the error.
type Transport interface {
	Deliver(ctx context.Context, payload []byte, signature string) error
}

// payload is the wire shape of one delivered event.
type payload struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Booking    *models.Booking `json:"booking,omitempty"`
}

type delivery struct {
	attempt models.WebhookDeliveryAttempt
	body    []byte
}

// Dispatcher consumes booking events and delivers them with exponential
// backoff retries.
type Dispatcher struct {
	transport   Transport
	secret      []byte
	maxAttempts int
	log         zerolog.Logger
	now         func() time.Time

	mu    sync.Mutex
	queue []*delivery
}

// NewDispatcher builds a dispatcher. maxAttempts <= 0 uses the default.
func NewDispatcher(transport Transport, secret []byte, maxAttempts int, log zerolog.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Dispatcher{
		transport:   transport,
		secret:      secret,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// WithClock overrides the dispatcher clock for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Attach subscribes the dispatcher to all booking lifecycle events.
func (d *Dispatcher) Attach(bus *events.Bus) {
	for _, t := range []string{events.BookingCreated, events.BookingCanceled, events.BookingRescheduled} {
		bus.Subscribe(t, d.Enqueue)
	}
}

// Enqueue schedules an event for immediate delivery.
func (d *Dispatcher) Enqueue(ev events.Event) error {
	body, err := json.Marshal(payload{
		ID:         ev.ID,
		Type:       ev.Type,
		OccurredAt: ev.OccurredAt,
		Booking:    ev.Booking,
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.queue = append(d.queue, &delivery{
		attempt: models.WebhookDeliveryAttempt{
			EventID:       ev.ID,
			NextAttemptAt: d.now(),
			MaxAttempts:   d.maxAttempts,
		},
		body: body,
	})
	d.mu.Unlock()
	return nil
}

// Run processes the queue until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.ProcessDue(ctx)
		}
	}
}

// ProcessDue attempts every delivery whose NextAttemptAt has passed.
// Exported so tests and shutdown paths can drive the queue directly.
func (d *Dispatcher) ProcessDue(ctx context.Context) {
	now := d.now()

	d.mu.Lock()
	var due, rest []*delivery
	for _, dl := range d.queue {
		if dl.attempt.NextAttemptAt.After(now) {
			rest = append(rest, dl)
			continue
		}
		due = append(due, dl)
	}
	d.queue = rest
	d.mu.Unlock()

	for _, dl := range due {
		sig := Sign(d.secret, dl.body, now)
		err := d.transport.Deliver(ctx, dl.body, sig)
		dl.attempt.AttemptCount++
		if err == nil {
			metrics.IncWebhookDelivery("success")
			continue
		}

		metrics.IncWebhookDelivery("failure")
		if IsExhausted(dl.attempt.AttemptCount, dl.attempt.MaxAttempts) {
			d.log.Warn().
				Str("event_id", dl.attempt.EventID).
				Int("attempts", dl.attempt.AttemptCount).
				Err(err).
				Msg("webhook delivery exhausted")
			continue
		}

		dl.attempt.NextAttemptAt = NextAttemptAt(dl.attempt.AttemptCount, now)
		d.mu.Lock()
		d.queue = append(d.queue, dl)
		d.mu.Unlock()
	}
}

// Pending returns the number of deliveries still queued.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
