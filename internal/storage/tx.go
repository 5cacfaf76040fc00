package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/booking"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// sqliteTx implements booking.Tx over one immediate transaction.
type sqliteTx struct {
	tx *sql.Tx
}

// LockEventType reads the event type row inside the transaction. The writer
// lock was already taken at BEGIN IMMEDIATE; this read pins the row state the
// rest of the transaction validates against.
func (t *sqliteTx) LockEventType(ctx context.Context, eventTypeID string) (*models.EventType, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT et.id, et.owner_user_id, u.username, u.timezone, et.slug, et.title,
		       et.duration_minutes, et.scheduling_type, et.is_active, et.round_robin_cursor
		FROM event_types et
		JOIN users u ON u.id = et.owner_user_id
		WHERE et.id = ?`, eventTypeID)
	et, err := scanEventType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return et, err
}

func (t *sqliteTx) ListRules(ctx context.Context, userID string) ([]models.AvailabilityRule, error) {
	return listRules(ctx, t.tx, userID)
}

func (t *sqliteTx) ListOverrides(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]models.AvailabilityOverride, error) {
	return listOverrides(ctx, t.tx, userID, rangeStart, rangeEnd)
}

func (t *sqliteTx) ListExternalBusyWindows(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]models.BusyWindow, error) {
	return listBusyWindows(ctx, t.tx, userID, rangeStart, rangeEnd)
}

func (t *sqliteTx) ListConfirmedBookings(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]models.Booking, error) {
	return listConfirmedBookings(ctx, t.tx, userID, rangeStart, rangeEnd)
}

func (t *sqliteTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	var rescheduledFrom any
	if b.RescheduledFromBookingID != "" {
		rescheduledFrom = b.RescheduledFromBookingID
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bookings (id, event_type_id, organizer_id, starts_at, ends_at,
			status, invitee_name, invitee_email, cancel_reason,
			rescheduled_from_booking_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		b.ID, b.EventTypeID, b.OrganizerID, encodeTime(b.StartsAt), encodeTime(b.EndsAt),
		string(b.Status), b.InviteeName, b.InviteeEmail,
		rescheduledFrom, b.Metadata.Encode(), encodeTime(b.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert booking %s: %w", b.ID, booking.ErrDuplicateBooking)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (t *sqliteTx) InsertActionTokens(ctx context.Context, bookingID string, tokens []models.BookingActionToken) error {
	for _, tok := range tokens {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO action_tokens (id, booking_id, action_type, token_hash,
				expires_at, consumed_at, consumed_booking_id, created_at)
			VALUES (?, ?, ?, ?, ?, NULL, NULL, ?)`,
			tok.ID, bookingID, string(tok.ActionType), tok.TokenHash,
			encodeTime(tok.ExpiresAt), encodeTime(tok.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert action token: %w", err)
		}
	}
	return nil
}

func (t *sqliteTx) GetBookingForUpdate(ctx context.Context, bookingID string) (*models.Booking, error) {
	return getBooking(ctx, t.tx, bookingID)
}

func (t *sqliteTx) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return getBooking(ctx, t.tx, bookingID)
}

func (t *sqliteTx) GetActionTokenForUpdate(ctx context.Context, tokenID string) (*models.BookingActionToken, error) {
	return getActionToken(ctx, t.tx, "id", tokenID)
}

func (t *sqliteTx) UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus, reason string) error {
	var cancelReason any
	if reason != "" {
		cancelReason = reason
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancel_reason = ? WHERE id = ?`,
		string(status), cancelReason, bookingID,
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("update booking status: booking %s not found", bookingID)
	}
	return nil
}

func (t *sqliteTx) MarkTokenConsumed(ctx context.Context, tokenID string, consumedAt time.Time, consumedBookingID string) error {
	var consumed any
	if consumedBookingID != "" {
		consumed = consumedBookingID
	}
	_, err := t.tx.ExecContext(ctx,
		`UPDATE action_tokens SET consumed_at = ?, consumed_booking_id = ? WHERE id = ?`,
		encodeTime(consumedAt), consumed, tokenID,
	)
	if err != nil {
		return fmt.Errorf("mark token consumed: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateRoundRobinCursor(ctx context.Context, eventTypeID string, cursor int) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE event_types SET round_robin_cursor = ? WHERE id = ?`,
		cursor, eventTypeID,
	)
	if err != nil {
		return fmt.Errorf("update round robin cursor: %w", err)
	}
	return nil
}

var _ booking.Tx = (*sqliteTx)(nil)
var _ booking.DataAccess = (*DB)(nil)
