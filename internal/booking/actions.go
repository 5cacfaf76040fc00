package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/events"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/metrics"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// ActionResult is the outcome of a cancel or reschedule action. ActionLinks
// is set only when a reschedule minted a fresh token pair; Replayed marks an
// idempotent replay of an already-completed action.
type ActionResult struct {
	Booking     *models.Booking
	ActionLinks map[models.ActionType]string
	Replayed    bool
}

// Cancel consumes a cancel link. A replayed cancel returns the already
// canceled booking through the success path.
func (s *Service) Cancel(ctx context.Context, rawToken, reason string) (*ActionResult, error) {
	tok, bk, err := s.resolveToken(ctx, rawToken, models.ActionCancel)
	if err != nil {
		return nil, err
	}

	var result *ActionResult
	err = s.da.WithEventTypeTransaction(ctx, bk.EventTypeID, func(tx Tx) error {
		if _, err := tx.LockEventType(ctx, bk.EventTypeID); err != nil {
			return err
		}
		// Re-evaluate under the lock; a concurrent reschedule may have
		// flipped the booking since the unlocked read.
		tok, err := tx.GetActionTokenForUpdate(ctx, tok.ID)
		if err != nil {
			return err
		}
		bk, err := tx.GetBookingForUpdate(ctx, tok.BookingID)
		if err != nil {
			return err
		}

		now := s.now()
		switch EvaluateToken(models.ActionCancel, bk.Status, tok.ExpiresAt, tok.ConsumedAt, now) {
		case TokenIdempotentReplay:
			result = &ActionResult{Booking: bk, Replayed: true}
			return nil
		case TokenGone:
			return &GoneError{Reason: "cancellation link is no longer valid"}
		}

		if err := tx.UpdateBookingStatus(ctx, bk.ID, models.BookingStatusCanceled, reason); err != nil {
			return err
		}
		if err := tx.MarkTokenConsumed(ctx, tok.ID, now, ""); err != nil {
			return err
		}
		bk.Status = models.BookingStatusCanceled
		bk.CancelReason = reason
		result = &ActionResult{Booking: bk}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		metrics.IncBookingCanceled()
		s.publish(events.BookingCanceled, result.Booking)
		s.log.Info().Str("booking_id", result.Booking.ID).Msg("booking canceled")
	}
	return result, nil
}

// Reschedule consumes a reschedule link: it re-validates the new time the
// same way a commit does (excluding the booking being replaced), creates a
// linked confirmed booking with a fresh token pair, and retires the old one.
// A replay locates the previously created booking through the consumed
// token's ConsumedBookingID instead of creating a duplicate.
func (s *Service) Reschedule(ctx context.Context, rawToken, newStartsAt string) (*ActionResult, error) {
	tok, bk, err := s.resolveToken(ctx, rawToken, models.ActionReschedule)
	if err != nil {
		return nil, err
	}

	var result *ActionResult
	err = s.da.WithEventTypeTransaction(ctx, bk.EventTypeID, func(tx Tx) error {
		et, err := tx.LockEventType(ctx, bk.EventTypeID)
		if err != nil {
			return err
		}
		if et == nil {
			return &NotFoundError{Resource: "event type"}
		}
		tok, err := tx.GetActionTokenForUpdate(ctx, tok.ID)
		if err != nil {
			return err
		}
		old, err := tx.GetBookingForUpdate(ctx, tok.BookingID)
		if err != nil {
			return err
		}

		now := s.now()
		switch EvaluateToken(models.ActionReschedule, old.Status, tok.ExpiresAt, tok.ConsumedAt, now) {
		case TokenIdempotentReplay:
			replacement, err := tx.GetBooking(ctx, tok.ConsumedBookingID)
			if err != nil {
				return err
			}
			if replacement == nil {
				return &GoneError{Reason: "reschedule link is no longer valid"}
			}
			result = &ActionResult{Booking: replacement, Replayed: true}
			return nil
		case TokenGone:
			return &GoneError{Reason: "reschedule link is no longer valid"}
		}

		startsAt, err := time.Parse(time.RFC3339, newStartsAt)
		if err != nil {
			return &ValidationError{Field: "starts_at", Reason: "must be an RFC 3339 timestamp"}
		}
		startsAt = startsAt.UTC()
		endsAt := startsAt.Add(time.Duration(et.DurationMinutes) * time.Minute)

		slot, err := s.recheckSlot(ctx, tx, et, startsAt, endsAt, old.ID)
		if err != nil {
			return err
		}

		next := &models.Booking{
			ID:                       uuid.NewString(),
			EventTypeID:              et.ID,
			OrganizerID:              et.OwnerUserID,
			StartsAt:                 startsAt,
			EndsAt:                   endsAt,
			Status:                   models.BookingStatusConfirmed,
			InviteeName:              old.InviteeName,
			InviteeEmail:             old.InviteeEmail,
			RescheduledFromBookingID: old.ID,
			Metadata: models.BookingMetadata{
				Answers:             old.Metadata.Answers,
				Timezone:            old.Metadata.Timezone,
				BufferBeforeMinutes: slot.BufferBeforeMinutes,
				BufferAfterMinutes:  slot.BufferAfterMinutes,
			},
			CreatedAt: now,
		}
		if err := tx.InsertBooking(ctx, next); err != nil {
			if errors.Is(err, ErrDuplicateBooking) {
				return &ConflictError{Reason: "slot is no longer available"}
			}
			return err
		}
		links, tokens, err := NewActionTokenPair(next.ID, now)
		if err != nil {
			return err
		}
		if err := tx.InsertActionTokens(ctx, next.ID, tokens); err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, old.ID, models.BookingStatusRescheduled, ""); err != nil {
			return err
		}
		// ConsumedBookingID is how a replayed reschedule finds its way back
		// to the booking this request created.
		if err := tx.MarkTokenConsumed(ctx, tok.ID, now, next.ID); err != nil {
			return err
		}
		result = &ActionResult{Booking: next, ActionLinks: links}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		metrics.IncBookingRescheduled()
		s.publish(events.BookingRescheduled, result.Booking)
		s.log.Info().
			Str("old_booking_id", bk.ID).
			Str("new_booking_id", result.Booking.ID).
			Msg("booking rescheduled")
	}
	return result, nil
}

// resolveToken finds the token by hash outside any transaction, so the
// action knows which event type to lock. State is re-evaluated under the
// lock before anything mutates.
func (s *Service) resolveToken(ctx context.Context, rawToken string, action models.ActionType) (*models.BookingActionToken, *models.Booking, error) {
	tok, bk, err := s.da.FindActionToken(ctx, HashToken(rawToken))
	if err != nil {
		return nil, nil, err
	}
	if tok == nil || bk == nil || tok.ActionType != action {
		return nil, nil, &GoneError{Reason: "unknown or invalid action link"}
	}
	return tok, bk, nil
}
