// Package analytics aggregates funnel, booking and webhook counts into
// daily rollups and exports them as Excel reports.
package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/events"
)

// DayRollup is the aggregated counts for one UTC calendar day.
type DayRollup struct {
	Date                string
	SlotViews           int
	BookingsCreated     int
	BookingsCanceled    int
	BookingsRescheduled int
	WebhooksDelivered   int
	WebhooksFailed      int
}

// Collector accumulates rollups in memory. All methods are safe for
// concurrent use.
type Collector struct {
	mu   sync.Mutex
	days map[string]*DayRollup
	now  func() time.Time
}

// NewCollector constructs an empty collector.
func NewCollector() *Collector {
	return &Collector{days: make(map[string]*DayRollup), now: time.Now}
}

// WithClock overrides the collector clock for tests.
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Attach subscribes the collector to booking lifecycle events.
func (c *Collector) Attach(bus *events.Bus) {
	bus.Subscribe(events.BookingCreated, func(ev events.Event) error {
		c.bump(ev.OccurredAt, func(r *DayRollup) { r.BookingsCreated++ })
		return nil
	})
	bus.Subscribe(events.BookingCanceled, func(ev events.Event) error {
		c.bump(ev.OccurredAt, func(r *DayRollup) { r.BookingsCanceled++ })
		return nil
	})
	bus.Subscribe(events.BookingRescheduled, func(ev events.Event) error {
		c.bump(ev.OccurredAt, func(r *DayRollup) { r.BookingsRescheduled++ })
		return nil
	})
}

// RecordSlotView counts one served slot-listing request (the top of the
// booking funnel).
func (c *Collector) RecordSlotView() {
	c.bump(c.now(), func(r *DayRollup) { r.SlotViews++ })
}

// RecordWebhookDelivered counts one successful webhook delivery.
func (c *Collector) RecordWebhookDelivered() {
	c.bump(c.now(), func(r *DayRollup) { r.WebhooksDelivered++ })
}

// RecordWebhookFailed counts one failed webhook delivery attempt.
func (c *Collector) RecordWebhookFailed() {
	c.bump(c.now(), func(r *DayRollup) { r.WebhooksFailed++ })
}

func (c *Collector) bump(at time.Time, apply func(*DayRollup)) {
	if at.IsZero() {
		at = c.now()
	}
	date := at.UTC().Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.days[date]
	if !ok {
		r = &DayRollup{Date: date}
		c.days[date] = r
	}
	apply(r)
}

// Snapshot returns the rollups sorted by date ascending.
func (c *Collector) Snapshot() []DayRollup {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]DayRollup, 0, len(c.days))
	for _, r := range c.days {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
