package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// Schedule is a read-only snapshot of everything the slot engine needs for
// one organizer over a window. Served without a transaction; the commit
// protocol re-reads everything under its own lock anyway.
type Schedule struct {
	Rules     []models.AvailabilityRule
	Overrides []models.AvailabilityOverride
	Bookings  []models.Booking
	Busy      []models.BusyWindow
}

// ReadSchedule loads the snapshot for the public slot-listing path.
func (db *DB) ReadSchedule(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) (*Schedule, error) {
	rules, err := listRules(ctx, db.DB, userID)
	if err != nil {
		return nil, err
	}
	overrides, err := listOverrides(ctx, db.DB, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	bookings, err := listConfirmedBookings(ctx, db.DB, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	busy, err := listBusyWindows(ctx, db.DB, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	return &Schedule{Rules: rules, Overrides: overrides, Bookings: bookings, Busy: busy}, nil
}

func listRules(ctx context.Context, q querier, userID string) ([]models.AvailabilityRule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, day_of_week, start_minute, end_minute,
		       buffer_before_minutes, buffer_after_minutes
		FROM availability_rules WHERE user_id = ?
		ORDER BY day_of_week, start_minute`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []models.AvailabilityRule
	for rows.Next() {
		var r models.AvailabilityRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.DayOfWeek, &r.StartMinute, &r.EndMinute,
			&r.BufferBeforeMinutes, &r.BufferAfterMinutes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listOverrides(ctx context.Context, q querier, userID string, rangeStart, rangeEnd time.Time) ([]models.AvailabilityOverride, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, start_at, end_at, is_available, COALESCE(reason, '')
		FROM availability_overrides
		WHERE user_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at`, userID, encodeTime(rangeEnd), encodeTime(rangeStart))
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []models.AvailabilityOverride
	for rows.Next() {
		var o models.AvailabilityOverride
		var startAt, endAt string
		if err := rows.Scan(&o.ID, &o.UserID, &startAt, &endAt, &o.IsAvailable, &o.Reason); err != nil {
			return nil, err
		}
		if o.StartAt, err = decodeTime(startAt); err != nil {
			return nil, fmt.Errorf("override %d start_at: %w", o.ID, err)
		}
		if o.EndAt, err = decodeTime(endAt); err != nil {
			return nil, fmt.Errorf("override %d end_at: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func listBusyWindows(ctx context.Context, q querier, userID string, rangeStart, rangeEnd time.Time) ([]models.BusyWindow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, starts_at, ends_at
		FROM external_busy_windows
		WHERE user_id = ? AND starts_at < ? AND ends_at > ?
		ORDER BY starts_at`, userID, encodeTime(rangeEnd), encodeTime(rangeStart))
	if err != nil {
		return nil, fmt.Errorf("list busy windows: %w", err)
	}
	defer rows.Close()

	var out []models.BusyWindow
	for rows.Next() {
		var w models.BusyWindow
		var startsAt, endsAt string
		if err := rows.Scan(&w.UserID, &startsAt, &endsAt); err != nil {
			return nil, err
		}
		if w.StartsAt, err = decodeTime(startsAt); err != nil {
			return nil, err
		}
		if w.EndsAt, err = decodeTime(endsAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func listConfirmedBookings(ctx context.Context, q querier, userID string, rangeStart, rangeEnd time.Time) ([]models.Booking, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, event_type_id, organizer_id, starts_at, ends_at, status,
		       invitee_name, invitee_email, COALESCE(cancel_reason, ''),
		       COALESCE(rescheduled_from_booking_id, ''), metadata, created_at
		FROM bookings
		WHERE organizer_id = ? AND status = 'confirmed'
		  AND starts_at < ? AND ends_at > ?
		ORDER BY starts_at`, userID, encodeTime(rangeEnd), encodeTime(rangeStart))
	if err != nil {
		return nil, fmt.Errorf("list confirmed bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Seed helpers used by the admin surface and tests.

func (db *DB) CreateUser(ctx context.Context, id, username, timezone string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, username, timezone) VALUES (?, ?, ?)`,
		id, username, timezone)
	return err
}

func (db *DB) CreateEventType(ctx context.Context, et *models.EventType) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO event_types (id, owner_user_id, slug, title, duration_minutes,
			scheduling_type, is_active, round_robin_cursor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		et.ID, et.OwnerUserID, et.Slug, et.Title, et.DurationMinutes,
		string(et.SchedulingType), et.IsActive, et.RoundRobinCursor)
	return err
}

// ReplaceRules swaps an organizer's weekly rules wholesale, the way rule
// edits arrive from the (out of scope) settings surface.
func (db *DB) ReplaceRules(ctx context.Context, userID string, rules []models.AvailabilityRule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for _, r := range rules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO availability_rules (user_id, day_of_week, start_minute,
				end_minute, buffer_before_minutes, buffer_after_minutes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			userID, r.DayOfWeek, r.StartMinute, r.EndMinute,
			r.BufferBeforeMinutes, r.BufferAfterMinutes)
		if err != nil {
			return fmt.Errorf("insert rule: %w", err)
		}
	}
	return tx.Commit()
}

func (db *DB) AddOverride(ctx context.Context, o models.AvailabilityOverride) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_overrides (user_id, start_at, end_at, is_available, reason)
		VALUES (?, ?, ?, ?, ?)`,
		o.UserID, encodeTime(o.StartAt), encodeTime(o.EndAt), o.IsAvailable, o.Reason)
	return err
}

// ReplaceBusyWindows refreshes the imported calendar busy intervals for one
// user, as the (out of scope) provider sync would after each fetch.
func (db *DB) ReplaceBusyWindows(ctx context.Context, userID string, windows []models.BusyWindow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM external_busy_windows WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear busy windows: %w", err)
	}
	for _, w := range windows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO external_busy_windows (user_id, starts_at, ends_at)
			VALUES (?, ?, ?)`,
			userID, encodeTime(w.StartsAt), encodeTime(w.EndsAt))
		if err != nil {
			return fmt.Errorf("insert busy window: %w", err)
		}
	}
	return tx.Commit()
}
