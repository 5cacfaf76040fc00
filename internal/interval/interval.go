// Package interval provides half-open time interval arithmetic used by the
// availability engine. All intervals are [start, end).
package interval

import "time"

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Overlaps reports whether s intersects o.
func (s Span) Overlaps(o Span) bool {
	return Overlaps(s.Start, s.End, o.Start, o.End)
}

// Contains reports whether s lies fully inside [start, end].
func (s Span) Contains(start, end time.Time) bool {
	return !s.Start.Before(start) && !s.End.After(end)
}

// WithBuffers expands the span by the given buffer minutes on each side.
func (s Span) WithBuffers(beforeMinutes, afterMinutes int) Span {
	return Span{
		Start: s.Start.Add(-time.Duration(beforeMinutes) * time.Minute),
		End:   s.End.Add(time.Duration(afterMinutes) * time.Minute),
	}
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
