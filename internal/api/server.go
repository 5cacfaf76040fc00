// Package api exposes the public booking surface over HTTP: slot listings,
// booking commits and the single-use cancel/reschedule actions.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/analytics"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/booking"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/cache"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/metrics"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/slots"
	"github.com/rohan-patnaik/opencalendly-sub000/internal/storage"
)

// Server wires the HTTP handlers to the engine. Cache and collector are
// optional; a nil cache means every listing recomputes.
type Server struct {
	db        *storage.DB
	svc       *booking.Service
	cache     *cache.SlotCache
	collector *analytics.Collector
	log       zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewServer(db *storage.DB, svc *booking.Service, log zerolog.Logger) *Server {
	return &Server{
		db:       db,
		svc:      svc,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
		rps:      5,
		burst:    10,
	}
}

// WithCache attaches the redis slot cache.
func (s *Server) WithCache(c *cache.SlotCache) *Server {
	s.cache = c
	return s
}

// WithCollector attaches the analytics collector.
func (s *Server) WithCollector(c *analytics.Collector) *Server {
	s.collector = c
	return s
}

// WithRateLimit overrides the per-client request budget.
func (s *Server) WithRateLimit(rps float64, burst int) *Server {
	s.rps = rate.Limit(rps)
	s.burst = burst
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/{username}/event-types/{slug}/slots", s.limit(s.handleSlots))
	mux.HandleFunc("POST /api/v1/bookings", s.limit(s.handleCommit))
	mux.HandleFunc("POST /api/v1/actions/cancel", s.limit(s.handleCancel))
	mux.HandleFunc("POST /api/v1/actions/reschedule", s.limit(s.handleReschedule))
	mux.HandleFunc("GET /api/v1/analytics/rollups", s.handleRollups)
	mux.HandleFunc("GET /api/v1/analytics/export", s.handleExport)
	return mux
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")
	metrics.IncSlotRequests()

	username := r.PathValue("username")
	slug := r.PathValue("slug")
	rangeStart := r.URL.Query().Get("range_start")
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, &booking.ValidationError{Field: "days", Reason: "must be an integer"})
			return
		}
		days = n
	}

	et, err := s.db.GetPublicEventType(r.Context(), username, slug)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if et == nil || !et.IsActive {
		s.writeError(w, &booking.NotFoundError{Resource: "event type"})
		return
	}

	if s.collector != nil {
		s.collector.RecordSlotView()
	}

	key := cache.Key(et.OwnerUserID, et.ID, rangeStart, days)
	if s.cache != nil {
		if cached, ok := s.cache.Get(r.Context(), key); ok {
			s.writeJSON(w, http.StatusOK, slotsResponse{EventType: eventTypeView(et), Slots: cached})
			return
		}
	}

	computed, err := s.computeSlots(r, et, rangeStart, days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), key, computed)
	}
	s.writeJSON(w, http.StatusOK, slotsResponse{EventType: eventTypeView(et), Slots: computed})
}

// computeSlots reads the organizer schedule and runs the engine. An
// unparseable range start degrades to an empty listing inside the engine, so
// the storage window is only read when the start parses.
func (s *Server) computeSlots(r *http.Request, et *models.EventType, rangeStart string, days int) ([]models.AvailabilitySlot, error) {
	start, err := time.Parse(time.RFC3339, rangeStart)
	if err != nil {
		return []models.AvailabilitySlot{}, nil
	}
	if days < slots.MinDays {
		days = slots.MinDays
	}
	if days > slots.MaxDays {
		days = slots.MaxDays
	}

	sched, err := s.db.ReadSchedule(r.Context(), et.OwnerUserID, start.UTC(), start.UTC().AddDate(0, 0, days+1))
	if err != nil {
		return nil, err
	}

	conflicts := make([]models.Booking, 0, len(sched.Bookings)+len(sched.Busy))
	conflicts = append(conflicts, sched.Bookings...)
	for _, bw := range sched.Busy {
		conflicts = append(conflicts, bw.AsBooking())
	}

	computed := slots.Compute(slots.Request{
		Timezone:        et.OwnerTimezone,
		RangeStart:      rangeStart,
		Days:            days,
		DurationMinutes: et.DurationMinutes,
		Rules:           sched.Rules,
		Overrides:       sched.Overrides,
		Bookings:        conflicts,
	})
	if computed == nil {
		computed = []models.AvailabilitySlot{}
	}
	return computed, nil
}

type commitRequest struct {
	Username     string            `json:"username"`
	EventSlug    string            `json:"event_slug"`
	StartsAt     string            `json:"starts_at"`
	Timezone     string            `json:"timezone"`
	InviteeName  string            `json:"invitee_name"`
	InviteeEmail string            `json:"invitee_email"`
	Answers      map[string]string `json:"answers,omitempty"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("commit")

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &booking.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	result, err := s.svc.CommitBooking(r.Context(), booking.CommitRequest{
		Username:     req.Username,
		EventSlug:    req.EventSlug,
		StartsAt:     req.StartsAt,
		Timezone:     req.Timezone,
		InviteeName:  req.InviteeName,
		InviteeEmail: req.InviteeEmail,
		Answers:      req.Answers,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.invalidate(r, result.Booking.OrganizerID)
	s.writeJSON(w, http.StatusCreated, bookingResponse{
		Booking:     bookingView(result.Booking),
		ActionLinks: linkView(result.ActionLinks),
	})
}

type actionRequest struct {
	Token    string `json:"token"`
	Reason   string `json:"reason,omitempty"`
	StartsAt string `json:"starts_at,omitempty"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &booking.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	result, err := s.svc.Cancel(r.Context(), req.Token, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !result.Replayed {
		s.invalidate(r, result.Booking.OrganizerID)
	}
	s.writeJSON(w, http.StatusOK, bookingResponse{
		Booking:  bookingView(result.Booking),
		Replayed: result.Replayed,
	})
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reschedule")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &booking.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	result, err := s.svc.Reschedule(r.Context(), req.Token, req.StartsAt)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !result.Replayed {
		s.invalidate(r, result.Booking.OrganizerID)
	}
	s.writeJSON(w, http.StatusOK, bookingResponse{
		Booking:     bookingView(result.Booking),
		ActionLinks: linkView(result.ActionLinks),
		Replayed:    result.Replayed,
	})
}

func (s *Server) handleRollups(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rollups")
	if s.collector == nil {
		s.writeJSON(w, http.StatusOK, []analytics.DayRollup{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")
	var rollups []analytics.DayRollup
	if s.collector != nil {
		rollups = s.collector.Snapshot()
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="rollups.xlsx"`)
	if err := analytics.ExportExcel(w, rollups); err != nil {
		s.log.Error().Err(err).Msg("rollup export failed")
	}
}

func (s *Server) invalidate(r *http.Request, organizerID string) {
	if s.cache != nil {
		s.cache.InvalidateOrganizer(r.Context(), organizerID)
	}
}

// limit applies the per-client token bucket keyed by remote IP.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		s.mu.Lock()
		lim, ok := s.limiters[host]
		if !ok {
			lim = rate.NewLimiter(s.rps, s.burst)
			s.limiters[host] = lim
		}
		s.mu.Unlock()

		if !lim.Allow() {
			s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *booking.NotFoundError
		validation *booking.ValidationError
		conflict   *booking.ConflictError
		gone       *booking.GoneError
	)
	switch {
	case errors.As(err, &notFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &conflict):
		metrics.IncBookingConflicts()
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &gone):
		s.writeJSON(w, http.StatusGone, errorResponse{Error: err.Error()})
	default:
		s.log.Error().Err(err).Msg("internal error")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
