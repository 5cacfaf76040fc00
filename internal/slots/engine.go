// Package slots derives offerable availability slots for one organizer from
// weekly rules, date overrides and existing commitments. The computation is
// pure: callers supply all rows, nothing here touches storage.
package slots

import (
	"sort"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/interval"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

const (
	// DefaultIncrementMinutes is the step between candidate slot starts.
	DefaultIncrementMinutes = 15

	MinDays             = 1
	MaxDays             = 30
	MinIncrementMinutes = 5
	MaxIncrementMinutes = 60
)

// Request carries everything needed to compute slots for one organizer.
// RangeStart is an RFC 3339 UTC instant; an unparseable value yields an empty
// result rather than an error, bad availability input must never hard-fail.
type Request struct {
	Timezone             string
	RangeStart           string
	Days                 int
	DurationMinutes      int
	SlotIncrementMinutes int
	Rules                []models.AvailabilityRule
	Overrides            []models.AvailabilityOverride
	Bookings             []models.Booking
}

// Compute returns the deduplicated, ascending list of offerable slots.
func Compute(req Request) []models.AvailabilitySlot {
	if req.DurationMinutes <= 0 {
		return nil
	}

	days := clamp(req.Days, MinDays, MaxDays)
	inc := req.SlotIncrementMinutes
	if inc == 0 {
		inc = DefaultIncrementMinutes
	}
	inc = clamp(inc, MinIncrementMinutes, MaxIncrementMinutes)

	rangeStart, err := time.Parse(time.RFC3339, req.RangeStart)
	if err != nil {
		return nil
	}
	rangeStart = rangeStart.UTC()
	rangeEnd := rangeStart.Add(time.Duration(days) * 24 * time.Hour)

	loc := loadLocation(req.Timezone)
	duration := time.Duration(req.DurationMinutes) * time.Minute

	var blocking []models.AvailabilityOverride
	var open []models.AvailabilityOverride
	for _, o := range req.Overrides {
		if o.IsAvailable {
			open = append(open, o)
		} else {
			blocking = append(blocking, o)
		}
	}

	var confirmed []models.Booking
	for _, b := range req.Bookings {
		if b.Status == models.BookingStatusConfirmed {
			confirmed = append(confirmed, b)
		}
	}

	type slotKey struct{ start, end int64 }
	seen := make(map[slotKey]struct{})
	var out []models.AvailabilitySlot

	addCandidate := func(start time.Time, bufferBefore, bufferAfter int) {
		cand := interval.Span{Start: start, End: start.Add(duration)}
		if !cand.Contains(rangeStart, rangeEnd) {
			return
		}
		for _, o := range blocking {
			if cand.Overlaps(interval.Span{Start: o.StartAt, End: o.EndAt}) {
				return
			}
		}
		buffered := cand.WithBuffers(bufferBefore, bufferAfter)
		for _, b := range confirmed {
			// The booking keeps the buffers frozen in its own metadata; the
			// candidate carries the buffers of its originating rule.
			other := interval.Span{Start: b.StartsAt, End: b.EndsAt}.
				WithBuffers(b.Metadata.BufferBeforeMinutes, b.Metadata.BufferAfterMinutes)
			if buffered.Overlaps(other) {
				return
			}
		}
		key := slotKey{cand.Start.Unix(), cand.End.Unix()}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, models.AvailabilitySlot{
			StartsAt:            cand.Start,
			EndsAt:              cand.End,
			BufferBeforeMinutes: bufferBefore,
			BufferAfterMinutes:  bufferAfter,
		})
	}

	// Rule-derived candidates: walk each organizer-local calendar day from
	// rangeStart through rangeEnd, boundary days included.
	localStart := rangeStart.In(loc)
	localEnd := rangeEnd.In(loc)
	first := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, loc)
	last := time.Date(localEnd.Year(), localEnd.Month(), localEnd.Day(), 0, 0, 0, 0, loc)

	for day := first; !day.After(last); day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc) {
		weekday := int(day.Weekday())
		for _, rule := range req.Rules {
			if rule.DayOfWeek != weekday {
				continue
			}
			latestStart := rule.EndMinute - req.DurationMinutes
			for m := rule.StartMinute; m <= latestStart; m += inc {
				start := time.Date(day.Year(), day.Month(), day.Day(), 0, m, 0, 0, loc)
				addCandidate(start.UTC(), rule.BufferBeforeMinutes, rule.BufferAfterMinutes)
			}
		}
	}

	// Open-override candidates inherit the strictest buffer policy seen
	// across all weekly rules.
	maxBefore, maxAfter := maxBuffers(req.Rules)
	for _, o := range open {
		for start := o.StartAt; !start.Add(duration).After(o.EndAt); start = start.Add(time.Duration(inc) * time.Minute) {
			addCandidate(start.UTC(), maxBefore, maxAfter)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].EndsAt.Before(out[j].EndsAt)
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

// loadLocation resolves a zone identifier, falling back to UTC on anything
// unrecognized so availability never fails on bad timezone data.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func maxBuffers(rules []models.AvailabilityRule) (before, after int) {
	for _, r := range rules {
		if r.BufferBeforeMinutes > before {
			before = r.BufferBeforeMinutes
		}
		if r.BufferAfterMinutes > after {
			after = r.BufferAfterMinutes
		}
	}
	return before, after
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
