package booking

import (
	"context"
	"errors"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// ErrDuplicateBooking is returned by Tx.InsertBooking when the storage-level
// unique constraint on (organizer, starts_at, ends_at) rejects the row. It is
// the final line of defense behind the availability recheck.
var ErrDuplicateBooking = errors.New("booking already exists for this interval")

// DataAccess is the port the commit protocol and action handlers consume.
// The storage layer implements it; the engine depends only on this interface.
type DataAccess interface {
	// GetPublicEventType resolves an active event type by owner username and
	// slug. Returns (nil, nil) when no such event type exists.
	GetPublicEventType(ctx context.Context, username, slug string) (*models.EventType, error)

	// FindActionToken resolves a token by its SHA-256 hash, with its booking.
	// Returns (nil, nil, nil) when the hash is unknown.
	FindActionToken(ctx context.Context, tokenHash string) (*models.BookingActionToken, *models.Booking, error)

	// WithEventTypeTransaction runs fn inside a storage transaction scoped to
	// the event type. The transaction must hold the pessimistic lock acquired
	// by Tx.LockEventType for the duration of re-validation plus write.
	WithEventTypeTransaction(ctx context.Context, eventTypeID string, fn func(Tx) error) error
}

// Tx is the transaction-scoped view of the store. Locks taken through it are
// held until the enclosing WithEventTypeTransaction returns. Lock order is
// always event type first, then booking/token rows; both mutating paths follow
// it, so no deadlock is possible.
type Tx interface {
	LockEventType(ctx context.Context, eventTypeID string) (*models.EventType, error)
	ListRules(ctx context.Context, userID string) ([]models.AvailabilityRule, error)
	ListOverrides(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]models.AvailabilityOverride, error)
	// ListExternalBusyWindows returns calendar-sync busy intervals, treated
	// identically to confirmed bookings for conflict purposes.
	ListExternalBusyWindows(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]models.BusyWindow, error)
	ListConfirmedBookings(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]models.Booking, error)
	InsertBooking(ctx context.Context, b *models.Booking) error
	InsertActionTokens(ctx context.Context, bookingID string, tokens []models.BookingActionToken) error

	GetBookingForUpdate(ctx context.Context, bookingID string) (*models.Booking, error)
	GetActionTokenForUpdate(ctx context.Context, tokenID string) (*models.BookingActionToken, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus, reason string) error
	MarkTokenConsumed(ctx context.Context, tokenID string, consumedAt time.Time, consumedBookingID string) error
	UpdateRoundRobinCursor(ctx context.Context, eventTypeID string, cursor int) error
}
