// Package team composes per-member availability into round-robin or
// collective team slots. The round-robin cursor is caller-owned state: it is
// passed in, returned advanced, and never stored here.
package team

import (
	"sort"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/slots"
)

// Mode selects how member availability is combined.
type Mode string

const (
	// ModeCollective keeps only slots where every member is available.
	ModeCollective Mode = "collective"
	// ModeRoundRobin assigns each slot to one member, rotating fairly.
	ModeRoundRobin Mode = "round_robin"
)

// Slot is a team-level availability slot with its assigned members.
type Slot struct {
	models.AvailabilitySlot
	AssignmentUserIDs []string `json:"assignment_user_ids"`
}

// Result carries the composed slots and the advanced round-robin cursor.
// Collective mode returns the cursor unchanged.
type Result struct {
	Slots      []Slot
	NextCursor int
}

type slotKey struct{ start, end int64 }

// cell is one matrix entry: a slot interval and the ordered member indices
// available for it. Buffers keep the max seen across members.
type cell struct {
	slot      models.AvailabilitySlot
	available []int
}

// ComputeTeamSlots runs the slot engine per member and composes the results.
// Members are ordered by UserID ascending, not input order, so round-robin
// rotation is reproducible across calls.
func ComputeTeamSlots(mode Mode, members []models.TeamMemberSchedule, rangeStart string, days, durationMinutes, cursor int) Result {
	if len(members) == 0 {
		return Result{NextCursor: 0}
	}

	ordered := make([]models.TeamMemberSchedule, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UserID < ordered[j].UserID })

	matrix := make(map[slotKey]*cell)
	for idx, m := range ordered {
		memberSlots := slots.Compute(slots.Request{
			Timezone:        m.Timezone,
			RangeStart:      rangeStart,
			Days:            days,
			DurationMinutes: durationMinutes,
			Rules:           m.Rules,
			Overrides:       m.Overrides,
			Bookings:        m.Bookings,
		})
		for _, s := range memberSlots {
			key := slotKey{s.StartsAt.Unix(), s.EndsAt.Unix()}
			c, ok := matrix[key]
			if !ok {
				c = &cell{slot: s}
				matrix[key] = c
			}
			if s.BufferBeforeMinutes > c.slot.BufferBeforeMinutes {
				c.slot.BufferBeforeMinutes = s.BufferBeforeMinutes
			}
			if s.BufferAfterMinutes > c.slot.BufferAfterMinutes {
				c.slot.BufferAfterMinutes = s.BufferAfterMinutes
			}
			c.available = append(c.available, idx)
		}
	}

	keys := make([]slotKey, 0, len(matrix))
	for k := range matrix {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].start == keys[j].start {
			return keys[i].end < keys[j].end
		}
		return keys[i].start < keys[j].start
	})

	if mode == ModeCollective {
		return collective(ordered, matrix, keys, cursor)
	}
	return roundRobin(ordered, matrix, keys, cursor)
}

func collective(ordered []models.TeamMemberSchedule, matrix map[slotKey]*cell, keys []slotKey, cursor int) Result {
	all := make([]string, len(ordered))
	for i, m := range ordered {
		all[i] = m.UserID
	}

	var out []Slot
	for _, k := range keys {
		c := matrix[k]
		if len(c.available) != len(ordered) {
			continue
		}
		out = append(out, Slot{AvailabilitySlot: c.slot, AssignmentUserIDs: all})
	}
	return Result{Slots: out, NextCursor: cursor}
}

func roundRobin(ordered []models.TeamMemberSchedule, matrix map[slotKey]*cell, keys []slotKey, cursor int) Result {
	n := len(ordered)
	if cursor < 0 {
		cursor = 0
	}
	cursor %= n

	var out []Slot
	for _, k := range keys {
		c := matrix[k]
		assigned := -1
		// Scan from the cursor so rotation stays fair even when some
		// members are unavailable for this slot.
		for i := 0; i < n; i++ {
			idx := (cursor + i) % n
			if containsIndex(c.available, idx) {
				assigned = idx
				break
			}
		}
		if assigned < 0 {
			continue
		}
		cursor = (assigned + 1) % n
		out = append(out, Slot{
			AvailabilitySlot:  c.slot,
			AssignmentUserIDs: []string{ordered[assigned].UserID},
		})
	}
	return Result{Slots: out, NextCursor: cursor}
}

func containsIndex(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
