package booking

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// TokenTTL is how long cancel/reschedule links stay valid. It is measured
// from issuance, independent of the meeting start, so links keep working
// long after the meeting itself.
const TokenTTL = 365 * 24 * time.Hour

// TokenState is the outcome of evaluating an action token.
type TokenState string

const (
	// TokenUsable means the action may proceed.
	TokenUsable TokenState = "usable"
	// TokenIdempotentReplay means the action already completed; return the
	// original result through the success path, not an error.
	TokenIdempotentReplay TokenState = "idempotent-replay"
	// TokenGone means the link is expired or terminally invalid.
	TokenGone TokenState = "gone"
)

// terminalStatusFor maps an action to the booking status it produces.
func terminalStatusFor(action models.ActionType) models.BookingStatus {
	if action == models.ActionCancel {
		return models.BookingStatusCanceled
	}
	return models.BookingStatusRescheduled
}

// EvaluateToken decides what a previously issued action link may do now.
// The client cannot distinguish "my request succeeded but the response was
// lost" from "this link was already used", so a consumed token whose booking
// reached the matching terminal state replays the original success.
func EvaluateToken(action models.ActionType, bookingStatus models.BookingStatus, expiresAt time.Time, consumedAt *time.Time, now time.Time) TokenState {
	terminal := terminalStatusFor(action)

	if consumedAt != nil && bookingStatus == terminal {
		return TokenIdempotentReplay
	}
	if !now.Before(expiresAt) {
		return TokenGone
	}
	if consumedAt != nil {
		// Consumed, but the booking went terminal some other way, e.g. a
		// cancel token on a booking that was separately rescheduled.
		return TokenGone
	}
	if bookingStatus == models.BookingStatusConfirmed {
		return TokenUsable
	}
	if bookingStatus == terminal {
		// Terminal without a recorded consumption; treat as replay.
		return TokenIdempotentReplay
	}
	return TokenGone
}

// HashToken derives the storage key for a raw action token. Only this hash
// is ever persisted; the raw value is shown to the end user exactly once.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// newRawToken returns an opaque high-entropy URL-safe token.
func newRawToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate action token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewActionTokenPair mints the cancel and reschedule tokens issued alongside
// a booking. The returned map holds the raw values keyed by action; the
// token rows carry only hashes.
func NewActionTokenPair(bookingID string, now time.Time) (map[models.ActionType]string, []models.BookingActionToken, error) {
	raw := make(map[models.ActionType]string, 2)
	tokens := make([]models.BookingActionToken, 0, 2)

	for _, action := range []models.ActionType{models.ActionCancel, models.ActionReschedule} {
		value, err := newRawToken()
		if err != nil {
			return nil, nil, err
		}
		raw[action] = value
		tokens = append(tokens, models.BookingActionToken{
			ID:         uuid.NewString(),
			BookingID:  bookingID,
			ActionType: action,
			TokenHash:  HashToken(value),
			ExpiresAt:  now.Add(TokenTTL),
			CreatedAt:  now,
		})
	}
	return raw, tokens, nil
}
