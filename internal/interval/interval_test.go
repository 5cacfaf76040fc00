package interval

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"disjoint before", at(9, 0), at(10, 0), at(10, 30), at(11, 0), false},
		{"touching edges do not overlap", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"partial overlap", at(9, 0), at(10, 0), at(9, 30), at(10, 30), true},
		{"contained", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"disjoint after", at(12, 0), at(13, 0), at(9, 0), at(10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpanWithBuffers(t *testing.T) {
	s := Span{Start: at(10, 0), End: at(10, 30)}
	buffered := s.WithBuffers(15, 10)

	if !buffered.Start.Equal(at(9, 45)) {
		t.Errorf("buffered start = %v, want 09:45", buffered.Start)
	}
	if !buffered.End.Equal(at(10, 40)) {
		t.Errorf("buffered end = %v, want 10:40", buffered.End)
	}

	// Zero buffers leave the span untouched.
	same := s.WithBuffers(0, 0)
	if !same.Start.Equal(s.Start) || !same.End.Equal(s.End) {
		t.Errorf("zero buffers changed span: %v", same)
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{Start: at(10, 0), End: at(10, 30)}

	if !s.Contains(at(10, 0), at(10, 30)) {
		t.Error("span should contain its own bounds")
	}
	if !s.Contains(at(9, 0), at(12, 0)) {
		t.Error("span should fit inside a wider range")
	}
	if s.Contains(at(10, 15), at(12, 0)) {
		t.Error("span starting before range start should not fit")
	}
	if s.Contains(at(9, 0), at(10, 15)) {
		t.Error("span ending after range end should not fit")
	}
}
