package booking

import (
	"testing"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateToken(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)
	consumed := now.Add(-time.Hour)

	tests := []struct {
		name       string
		action     models.ActionType
		status     models.BookingStatus
		expiresAt  time.Time
		consumedAt *time.Time
		want       TokenState
	}{
		{
			name:   "fresh token on confirmed booking is usable",
			action: models.ActionCancel, status: models.BookingStatusConfirmed,
			expiresAt: future, want: TokenUsable,
		},
		{
			name:   "consumed cancel on canceled booking replays",
			action: models.ActionCancel, status: models.BookingStatusCanceled,
			expiresAt: future, consumedAt: &consumed, want: TokenIdempotentReplay,
		},
		{
			name:   "consumed reschedule on rescheduled booking replays",
			action: models.ActionReschedule, status: models.BookingStatusRescheduled,
			expiresAt: future, consumedAt: &consumed, want: TokenIdempotentReplay,
		},
		{
			name:   "replay wins even past expiry",
			action: models.ActionCancel, status: models.BookingStatusCanceled,
			expiresAt: past, consumedAt: &consumed, want: TokenIdempotentReplay,
		},
		{
			name:   "expired unconsumed token is gone",
			action: models.ActionCancel, status: models.BookingStatusConfirmed,
			expiresAt: past, want: TokenGone,
		},
		{
			name:   "expiry boundary is inclusive",
			action: models.ActionCancel, status: models.BookingStatusConfirmed,
			expiresAt: now, want: TokenGone,
		},
		{
			name:   "cancel token consumed while booking was rescheduled elsewhere is gone",
			action: models.ActionCancel, status: models.BookingStatusRescheduled,
			expiresAt: future, consumedAt: &consumed, want: TokenGone,
		},
		{
			name:   "terminal state without recorded consumption replays defensively",
			action: models.ActionCancel, status: models.BookingStatusCanceled,
			expiresAt: future, want: TokenIdempotentReplay,
		},
		{
			name:   "cancel token on rescheduled booking is gone",
			action: models.ActionCancel, status: models.BookingStatusRescheduled,
			expiresAt: future, want: TokenGone,
		},
		{
			name:   "reschedule token on canceled booking is gone",
			action: models.ActionReschedule, status: models.BookingStatusCanceled,
			expiresAt: future, want: TokenGone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateToken(tt.action, tt.status, tt.expiresAt, tt.consumedAt, now)
			assert.Equal(t, tt.want, got)

			// Replay law: the evaluation is pure, repeated calls with frozen
			// inputs yield the same result every time.
			for i := 0; i < 3; i++ {
				assert.Equal(t, got, EvaluateToken(tt.action, tt.status, tt.expiresAt, tt.consumedAt, now))
			}
		})
	}
}

func TestNewActionTokenPair(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	raw, tokens, err := NewActionTokenPair("booking-1", now)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Len(t, raw, 2)

	byAction := map[models.ActionType]models.BookingActionToken{}
	for _, tok := range tokens {
		byAction[tok.ActionType] = tok
	}
	require.Contains(t, byAction, models.ActionCancel)
	require.Contains(t, byAction, models.ActionReschedule)

	for action, tok := range byAction {
		assert.Equal(t, "booking-1", tok.BookingID)
		assert.Equal(t, now.Add(TokenTTL), tok.ExpiresAt)
		assert.Nil(t, tok.ConsumedAt)
		// Only the hash is persisted; it must match the raw value.
		assert.Equal(t, HashToken(raw[action]), tok.TokenHash)
		assert.NotContains(t, tok.TokenHash, raw[action])
	}
	assert.NotEqual(t, raw[models.ActionCancel], raw[models.ActionReschedule])
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
