// Package storage implements the data-access port on sqlite. It is the
// reference implementation of the port the booking engine consumes; all
// timestamps are stored as RFC 3339 UTC strings so the unique constraint on
// (organizer_id, starts_at, ends_at) compares canonically.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/booking"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// DB wraps sql.DB for the scheduling service.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations. The _txlock=immediate
// option makes every transaction take the writer lock up front, which is the
// pessimistic locking discipline the commit protocol relies on.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_fk=1&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS event_types (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			slug TEXT NOT NULL,
			title TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			scheduling_type TEXT NOT NULL DEFAULT 'individual',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			round_robin_cursor INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (owner_user_id, slug),
			FOREIGN KEY (owner_user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS availability_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			buffer_before_minutes INTEGER NOT NULL DEFAULT 0,
			buffer_after_minutes INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS availability_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			is_available BOOLEAN NOT NULL,
			reason TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS external_busy_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			starts_at TEXT NOT NULL,
			ends_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			event_type_id TEXT NOT NULL,
			organizer_id TEXT NOT NULL,
			starts_at TEXT NOT NULL,
			ends_at TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			invitee_name TEXT NOT NULL,
			invitee_email TEXT NOT NULL,
			cancel_reason TEXT,
			rescheduled_from_booking_id TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY (event_type_id) REFERENCES event_types(id),
			FOREIGN KEY (organizer_id) REFERENCES users(id)
		)`,

		// The backstop behind the in-transaction availability recheck: a
		// second committer racing on the same interval fails here.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot
			ON bookings(organizer_id, starts_at, ends_at) WHERE status = 'confirmed'`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_organizer_time
			ON bookings(organizer_id, starts_at)`,

		`CREATE TABLE IF NOT EXISTS action_tokens (
			id TEXT PRIMARY KEY,
			booking_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			token_hash TEXT UNIQUE NOT NULL,
			expires_at TEXT NOT NULL,
			consumed_at TEXT,
			consumed_booking_id TEXT,
			created_at TEXT NOT NULL,
			UNIQUE (booking_id, action_type),
			FOREIGN KEY (booking_id) REFERENCES bookings(id)
		)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// GetPublicEventType resolves an event type by owner username and slug.
// Inactive event types are returned as-is; the commit protocol rejects them.
func (db *DB) GetPublicEventType(ctx context.Context, username, slug string) (*models.EventType, error) {
	row := db.QueryRowContext(ctx, `
		SELECT et.id, et.owner_user_id, u.username, u.timezone, et.slug, et.title,
		       et.duration_minutes, et.scheduling_type, et.is_active, et.round_robin_cursor
		FROM event_types et
		JOIN users u ON u.id = et.owner_user_id
		WHERE u.username = ? AND et.slug = ?`,
		username, slug,
	)
	et, err := scanEventType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return et, err
}

// FindActionToken resolves a token by hash together with its booking.
func (db *DB) FindActionToken(ctx context.Context, tokenHash string) (*models.BookingActionToken, *models.Booking, error) {
	tok, err := getActionToken(ctx, db.DB, "token_hash", tokenHash)
	if err != nil {
		return nil, nil, err
	}
	if tok == nil {
		return nil, nil, nil
	}
	bk, err := getBooking(ctx, db.DB, tok.BookingID)
	if err != nil {
		return nil, nil, err
	}
	return tok, bk, nil
}

// WithEventTypeTransaction runs fn inside an immediate transaction. The
// writer lock is held from the first statement until commit or rollback.
func (db *DB) WithEventTypeTransaction(ctx context.Context, eventTypeID string, fn func(booking.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	wrapped := &sqliteTx{tx: tx}
	if err := fn(wrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// querier is the subset of sql.DB/sql.Tx the row helpers need.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventType(row rowScanner) (*models.EventType, error) {
	var et models.EventType
	err := row.Scan(
		&et.ID, &et.OwnerUserID, &et.OwnerUsername, &et.OwnerTimezone, &et.Slug,
		&et.Title, &et.DurationMinutes, &et.SchedulingType, &et.IsActive, &et.RoundRobinCursor,
	)
	if err != nil {
		return nil, err
	}
	return &et, nil
}

func getBooking(ctx context.Context, q querier, id string) (*models.Booking, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, event_type_id, organizer_id, starts_at, ends_at, status,
		       invitee_name, invitee_email, COALESCE(cancel_reason, ''),
		       COALESCE(rescheduled_from_booking_id, ''), metadata, created_at
		FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var startsAt, endsAt, createdAt string
	var metadata []byte
	err := row.Scan(
		&b.ID, &b.EventTypeID, &b.OrganizerID, &startsAt, &endsAt, &b.Status,
		&b.InviteeName, &b.InviteeEmail, &b.CancelReason,
		&b.RescheduledFromBookingID, &metadata, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.StartsAt, err = decodeTime(startsAt); err != nil {
		return nil, fmt.Errorf("booking %s starts_at: %w", b.ID, err)
	}
	if b.EndsAt, err = decodeTime(endsAt); err != nil {
		return nil, fmt.Errorf("booking %s ends_at: %w", b.ID, err)
	}
	if b.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("booking %s created_at: %w", b.ID, err)
	}
	b.Metadata = models.ParseBookingMetadata(metadata)
	return &b, nil
}

func getActionToken(ctx context.Context, q querier, column, value string) (*models.BookingActionToken, error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, booking_id, action_type, token_hash, expires_at,
		       consumed_at, COALESCE(consumed_booking_id, ''), created_at
		FROM action_tokens WHERE %s = ?`, column), value)

	var tok models.BookingActionToken
	var expiresAt, createdAt string
	var consumedAt sql.NullString
	err := row.Scan(
		&tok.ID, &tok.BookingID, &tok.ActionType, &tok.TokenHash,
		&expiresAt, &consumedAt, &tok.ConsumedBookingID, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tok.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return nil, fmt.Errorf("token %s expires_at: %w", tok.ID, err)
	}
	if tok.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("token %s created_at: %w", tok.ID, err)
	}
	if consumedAt.Valid {
		t, err := decodeTime(consumedAt.String)
		if err != nil {
			return nil, fmt.Errorf("token %s consumed_at: %w", tok.ID, err)
		}
		tok.ConsumedAt = &t
	}
	return &tok, nil
}
