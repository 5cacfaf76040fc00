package analytics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/events"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

func TestCollectorRollups(t *testing.T) {
	day1 := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
	now := day1

	c := NewCollector().WithClock(func() time.Time { return now })
	bus := events.NewBus()
	c.Attach(bus)

	booking := &models.Booking{ID: "b-1"}
	bus.Publish(events.Event{Type: events.BookingCreated, Booking: booking, OccurredAt: day1})
	bus.Publish(events.Event{Type: events.BookingCreated, Booking: booking, OccurredAt: day1})
	bus.Publish(events.Event{Type: events.BookingCanceled, Booking: booking, OccurredAt: day2})
	bus.Publish(events.Event{Type: events.BookingRescheduled, Booking: booking, OccurredAt: day2})
	c.RecordSlotView()
	c.RecordWebhookDelivered()
	now = day2
	c.RecordWebhookFailed()

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, DayRollup{
		Date: "2026-03-02", SlotViews: 1, BookingsCreated: 2, WebhooksDelivered: 1,
	}, got[0])
	assert.Equal(t, DayRollup{
		Date: "2026-03-03", BookingsCanceled: 1, BookingsRescheduled: 1, WebhooksFailed: 1,
	}, got[1])
}

func TestExportExcel(t *testing.T) {
	rollups := []DayRollup{
		{Date: "2026-03-02", SlotViews: 12, BookingsCreated: 3},
		{Date: "2026-03-03", BookingsCanceled: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportExcel(&buf, rollups))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Daily Rollups")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "2026-03-02", rows[1][0])
	assert.Equal(t, "12", rows[1][1])
	assert.Equal(t, "2026-03-03", rows[2][0])
}
