package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/analytics"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/booking"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/cache"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.CreateUser(ctx, "user-1", "alice", "UTC"))
	require.NoError(t, db.CreateEventType(ctx, &models.EventType{
		ID:              "et-1",
		OwnerUserID:     "user-1",
		Slug:            "intro-call",
		Title:           "Intro Call",
		DurationMinutes: 30,
		SchedulingType:  models.SchedulingIndividual,
		IsActive:        true,
	}))
	require.NoError(t, db.ReplaceRules(ctx, "user-1", []models.AvailabilityRule{
		{UserID: "user-1", DayOfWeek: 1, StartMinute: 600, EndMinute: 660},
	}))

	svc := booking.NewService(db, nil, zerolog.Nop())
	return NewServer(db, svc, zerolog.Nop()).WithRateLimit(1000, 1000)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const slotsPath = "/api/v1/users/alice/event-types/intro-call/slots?range_start=2026-03-02T00:00:00Z&days=1"

func TestSlotsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := doJSON(t, h, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		EventType struct {
			Slug            string `json:"slug"`
			DurationMinutes int    `json:"duration_minutes"`
		} `json:"event_type"`
		Slots []models.AvailabilitySlot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "intro-call", resp.EventType.Slug)
	// 10:00-11:00 window, 30 minute slots on a 15 minute grid.
	require.Len(t, resp.Slots, 3)
	assert.True(t, resp.Slots[0].StartsAt.Equal(time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)))
}

func TestSlotsEndpointErrors(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/alice/event-types/no-such/slots?range_start=2026-03-02T00:00:00Z", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/alice/event-types/intro-call/slots?days=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unparseable range start is an empty listing, not an error.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/alice/event-types/intro-call/slots?range_start=tomorrow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Slots []models.AvailabilitySlot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Slots)
}

func commitBody() map[string]any {
	return map[string]any{
		"username":      "alice",
		"event_slug":    "intro-call",
		"starts_at":     "2026-03-02T10:00:00Z",
		"timezone":      "Europe/Berlin",
		"invitee_name":  "Bob",
		"invitee_email": "bob@example.com",
	}
}

func TestCommitEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/bookings", commitBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Booking struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"booking"`
		ActionLinks map[string]string `json:"action_links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Booking.ID)
	assert.Equal(t, "confirmed", resp.Booking.Status)
	assert.Len(t, resp.ActionLinks, 2)

	// Same slot again loses the race.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", commitBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCommitEndpointValidation(t *testing.T) {
	h := newTestServer(t).Handler()

	body := commitBody()
	delete(body, "invitee_email")
	rec := doJSON(t, h, http.MethodPost, "/api/v1/bookings", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{not json"))
	req.RemoteAddr = "192.0.2.1:12345"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionEndpoints(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/bookings", commitBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ActionLinks map[string]string `json:"action_links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, h, http.MethodPost, "/api/v1/actions/cancel", map[string]any{
		"token":  created.ActionLinks["cancel"],
		"reason": "other plans",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var canceled struct {
		Booking struct {
			Status string `json:"status"`
		} `json:"booking"`
		Replayed bool `json:"replayed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &canceled))
	assert.Equal(t, "canceled", canceled.Booking.Status)
	assert.False(t, canceled.Replayed)

	// Replay is still a 200, flagged as such.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/actions/cancel", map[string]any{
		"token": created.ActionLinks["cancel"],
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &canceled))
	assert.True(t, canceled.Replayed)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/actions/reschedule", map[string]any{
		"token":     created.ActionLinks["reschedule"],
		"starts_at": "2026-03-02T10:30:00Z",
	})
	assert.Equal(t, http.StatusGone, rec.Code, "canceled bookings cannot be rescheduled")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/actions/cancel", map[string]any{
		"token": "bogus",
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t).WithRateLimit(1, 1)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, slotsPath, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, slotsPath, nil)
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestCacheInvalidationOnCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newTestServer(t).WithCache(cache.NewSlotCache(rdb, time.Minute))
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, mr.Keys(), "listing populated the cache")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", commitBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, mr.Keys(), "commit invalidated the organizer's pages")

	// The recomputed page no longer offers the claimed interval.
	rec = doJSON(t, h, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Slots []models.AvailabilitySlot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	for _, slot := range resp.Slots {
		assert.False(t, slot.StartsAt.Equal(time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)),
			fmt.Sprintf("booked interval still offered: %v", slot.StartsAt))
	}
}

func TestRollupEndpoints(t *testing.T) {
	collector := analytics.NewCollector()
	s := newTestServer(t).WithCollector(collector)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/analytics/rollups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rollups []analytics.DayRollup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rollups))
	require.Len(t, rollups, 1)
	assert.Equal(t, 1, rollups[0].SlotViews)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/analytics/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}