package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/events"
)

type fakeTransport struct {
	failures  int
	delivered [][]byte
	sigs      []string
}

func (f *fakeTransport) Deliver(_ context.Context, payload []byte, signature string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("upstream unavailable")
	}
	f.delivered = append(f.delivered, payload)
	f.sigs = append(f.sigs, signature)
	return nil
}

func testDispatcher(transport Transport, maxAttempts int, clock *time.Time) *Dispatcher {
	d := NewDispatcher(transport, secret, maxAttempts, zerolog.Nop())
	return d.WithClock(func() time.Time { return *clock })
}

func TestDispatcherDeliversSignedPayload(t *testing.T) {
	now := signedAt
	transport := &fakeTransport{}
	d := testDispatcher(transport, 6, &now)

	require.NoError(t, d.Enqueue(events.Event{ID: "evt-1", Type: events.BookingCreated, OccurredAt: now}))
	d.ProcessDue(context.Background())

	require.Len(t, transport.delivered, 1)
	assert.NoError(t, Verify(secret, transport.delivered[0], transport.sigs[0], now, time.Minute))
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherRetriesWithBackoff(t *testing.T) {
	now := signedAt
	transport := &fakeTransport{failures: 2}
	d := testDispatcher(transport, 6, &now)

	require.NoError(t, d.Enqueue(events.Event{ID: "evt-1", Type: events.BookingCanceled}))

	// First attempt fails; the retry is due 30 seconds later, not sooner.
	d.ProcessDue(context.Background())
	assert.Equal(t, 1, d.Pending())
	now = now.Add(10 * time.Second)
	d.ProcessDue(context.Background())
	assert.Empty(t, transport.delivered, "retry must wait out the backoff")

	// Second attempt at +30s fails; third at +60s more succeeds.
	now = now.Add(25 * time.Second)
	d.ProcessDue(context.Background())
	assert.Equal(t, 1, d.Pending())
	now = now.Add(61 * time.Second)
	d.ProcessDue(context.Background())

	require.Len(t, transport.delivered, 1)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	now := signedAt
	transport := &fakeTransport{failures: 100}
	d := testDispatcher(transport, 3, &now)

	require.NoError(t, d.Enqueue(events.Event{ID: "evt-1", Type: events.BookingRescheduled}))
	for i := 0; i < 10; i++ {
		d.ProcessDue(context.Background())
		now = now.Add(2 * time.Hour)
	}

	assert.Empty(t, transport.delivered)
	assert.Equal(t, 0, d.Pending(), "exhausted deliveries leave the queue")
	assert.Equal(t, 97, transport.failures, "exactly maxAttempts deliveries were tried")
}
