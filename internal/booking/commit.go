// Package booking implements the transactional protocol that converts an
// offered slot into a durable booking, and the single-use action tokens that
// govern cancel/reschedule links.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/events"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/metrics"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/slots"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/team"
)

// recheckWindow is how far around a requested start the commit path
// recomputes availability. One day on each side covers any timezone offset
// between the caller and the organizer.
const recheckWindow = 24 * time.Hour

// Service runs the booking commit protocol and the token actions on top of
// the data-access port.
type Service struct {
	da  DataAccess
	bus *events.Bus
	log zerolog.Logger
	now func() time.Time
}

// NewService wires a booking service. bus may be nil when no event consumers
// are attached (tests).
func NewService(da DataAccess, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{da: da, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the service clock; tests use it to freeze time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CommitRequest is a caller's attempt to claim one slot.
type CommitRequest struct {
	Username     string
	EventSlug    string
	StartsAt     string // RFC 3339
	Timezone     string
	InviteeName  string
	InviteeEmail string
	Answers      map[string]string
}

// CommitResult is the successful outcome of a commit: the booking plus the
// raw action links, which exist only in this response.
type CommitResult struct {
	EventType   *models.EventType
	Booking     *models.Booking
	ActionLinks map[models.ActionType]string
}

// CommitBooking re-validates the requested slot inside a locked transaction
// and persists the booking. It never trusts a slot computed earlier by the
// caller: the race between "slot shown" and "slot claimed" is closed by the
// in-transaction recompute, and the storage unique constraint backstops the
// remaining commit-time gap.
func (s *Service) CommitBooking(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	et, err := s.da.GetPublicEventType(ctx, req.Username, req.EventSlug)
	if err != nil {
		return nil, err
	}
	if et == nil || !et.IsActive {
		return nil, &NotFoundError{Resource: "event type"}
	}

	if req.InviteeEmail == "" {
		return nil, &ValidationError{Field: "invitee_email", Reason: "required"}
	}
	if req.InviteeName == "" {
		return nil, &ValidationError{Field: "invitee_name", Reason: "required"}
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, &ValidationError{Field: "starts_at", Reason: "must be an RFC 3339 timestamp"}
	}
	startsAt = startsAt.UTC()
	endsAt := startsAt.Add(time.Duration(et.DurationMinutes) * time.Minute)

	result := &CommitResult{EventType: et}
	err = s.da.WithEventTypeTransaction(ctx, et.ID, func(tx Tx) error {
		// Locking the event type row implicitly pins its owning user row,
		// preventing concurrent deactivation or ownership changes mid-commit.
		locked, err := tx.LockEventType(ctx, et.ID)
		if err != nil {
			return err
		}
		if locked == nil || !locked.IsActive {
			return &NotFoundError{Resource: "event type"}
		}

		slot, err := s.recheckSlot(ctx, tx, locked, startsAt, endsAt, "")
		if err != nil {
			return err
		}

		now := s.now()
		b := &models.Booking{
			ID:           uuid.NewString(),
			EventTypeID:  locked.ID,
			OrganizerID:  locked.OwnerUserID,
			StartsAt:     startsAt,
			EndsAt:       endsAt,
			Status:       models.BookingStatusConfirmed,
			InviteeName:  req.InviteeName,
			InviteeEmail: req.InviteeEmail,
			Metadata: models.BookingMetadata{
				Answers:             req.Answers,
				Timezone:            req.Timezone,
				BufferBeforeMinutes: slot.BufferBeforeMinutes,
				BufferAfterMinutes:  slot.BufferAfterMinutes,
			},
			CreatedAt: now,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			if errors.Is(err, ErrDuplicateBooking) {
				// A second committer won the race between the recheck and
				// the insert.
				return &ConflictError{Reason: "slot is no longer available"}
			}
			return err
		}

		links, tokens, err := NewActionTokenPair(b.ID, now)
		if err != nil {
			return err
		}
		if err := tx.InsertActionTokens(ctx, b.ID, tokens); err != nil {
			return err
		}

		result.Booking = b
		result.ActionLinks = links
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCreated(string(et.SchedulingType))
	s.publish(events.BookingCreated, result.Booking)
	s.log.Info().
		Str("event_type", et.Slug).
		Str("booking_id", result.Booking.ID).
		Time("starts_at", startsAt).
		Msg("booking committed")
	return result, nil
}

// recheckSlot recomputes availability for a narrow window around the
// requested interval using freshly read rows and returns the matching slot,
// or a ConflictError when the interval is not offerable.
func (s *Service) recheckSlot(ctx context.Context, tx Tx, et *models.EventType, startsAt, endsAt time.Time, excludeBookingID string) (*models.AvailabilitySlot, error) {
	winStart := startsAt.Add(-recheckWindow)
	winEnd := endsAt.Add(recheckWindow)

	rules, err := tx.ListRules(ctx, et.OwnerUserID)
	if err != nil {
		return nil, err
	}
	overrides, err := tx.ListOverrides(ctx, et.OwnerUserID, winStart, winEnd)
	if err != nil {
		return nil, err
	}
	bookings, err := tx.ListConfirmedBookings(ctx, et.OwnerUserID, winStart, winEnd)
	if err != nil {
		return nil, err
	}
	busy, err := tx.ListExternalBusyWindows(ctx, et.OwnerUserID, winStart, winEnd)
	if err != nil {
		return nil, err
	}

	conflicts := make([]models.Booking, 0, len(bookings)+len(busy))
	for _, b := range bookings {
		if excludeBookingID != "" && b.ID == excludeBookingID {
			continue
		}
		conflicts = append(conflicts, b)
	}
	for _, w := range busy {
		conflicts = append(conflicts, w.AsBooking())
	}

	computed := slots.Compute(slots.Request{
		Timezone:        et.OwnerTimezone,
		RangeStart:      winStart.Format(time.RFC3339),
		Days:            2,
		DurationMinutes: et.DurationMinutes,
		Rules:           rules,
		Overrides:       overrides,
		Bookings:        conflicts,
	})
	for i := range computed {
		if computed[i].StartsAt.Equal(startsAt) && computed[i].EndsAt.Equal(endsAt) {
			return &computed[i], nil
		}
	}
	return nil, &ConflictError{Reason: "requested time is not an offerable slot"}
}

// TeamSlots composes team availability for an event type and advances its
// round-robin cursor under the event-type lock, so two concurrent listings
// cannot both hand out the same rotation position.
func (s *Service) TeamSlots(ctx context.Context, eventTypeID string, members []models.TeamMemberSchedule, rangeStart string, days int) (team.Result, error) {
	var result team.Result
	err := s.da.WithEventTypeTransaction(ctx, eventTypeID, func(tx Tx) error {
		et, err := tx.LockEventType(ctx, eventTypeID)
		if err != nil {
			return err
		}
		if et == nil || !et.IsActive {
			return &NotFoundError{Resource: "event type"}
		}

		mode := team.ModeRoundRobin
		if et.SchedulingType == models.SchedulingCollective {
			mode = team.ModeCollective
		}
		result = team.ComputeTeamSlots(mode, members, rangeStart, days, et.DurationMinutes, et.RoundRobinCursor)

		if mode == team.ModeRoundRobin && result.NextCursor != et.RoundRobinCursor {
			return tx.UpdateRoundRobinCursor(ctx, eventTypeID, result.NextCursor)
		}
		return nil
	})
	if err != nil {
		return team.Result{}, err
	}
	return result, nil
}

func (s *Service) publish(eventType string, b *models.Booking) {
	if s.bus == nil || b == nil {
		return
	}
	s.bus.Publish(events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Booking:    b,
		OccurredAt: s.now(),
	})
}
