// Package models defines the domain rows shared by the availability engine,
// the booking commit protocol and the storage layer.
package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusCanceled    BookingStatus = "canceled"
	BookingStatusRescheduled BookingStatus = "rescheduled"
)

// SchedulingType describes how an event type assigns a host.
type SchedulingType string

const (
	SchedulingIndividual SchedulingType = "individual"
	SchedulingRoundRobin SchedulingType = "round_robin"
	SchedulingCollective SchedulingType = "collective"
)

// ActionType identifies what a booking action token is allowed to do.
type ActionType string

const (
	ActionCancel     ActionType = "cancel"
	ActionReschedule ActionType = "reschedule"
)

// AvailabilityRule is one weekly recurring availability window.
// DayOfWeek uses 0=Sunday..6=Saturday in the organizer's local calendar.
// Minutes count from local midnight; EndMinute > StartMinute is enforced at
// input validation, not here.
type AvailabilityRule struct {
	ID                  int64
	UserID              string
	DayOfWeek           int
	StartMinute         int
	EndMinute           int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
}

// AvailabilityOverride is a one-off window that either forcibly opens
// (IsAvailable) or blocks a time range. Blocking overrides win over
// everything else.
type AvailabilityOverride struct {
	ID          int64
	UserID      string
	StartAt     time.Time
	EndAt       time.Time
	IsAvailable bool
	Reason      string
}

// AvailabilitySlot is one offerable interval of exactly the event duration.
type AvailabilitySlot struct {
	StartsAt            time.Time `json:"starts_at"`
	EndsAt              time.Time `json:"ends_at"`
	BufferBeforeMinutes int       `json:"buffer_before_minutes"`
	BufferAfterMinutes  int       `json:"buffer_after_minutes"`
}

// EventType is a publicly bookable meeting definition owned by one user.
type EventType struct {
	ID               string
	OwnerUserID      string
	OwnerUsername    string
	OwnerTimezone    string
	Slug             string
	Title            string
	DurationMinutes  int
	SchedulingType   SchedulingType
	IsActive         bool
	RoundRobinCursor int
}

// Booking is a durable claim on a slot. Rows are never deleted; the status
// moves confirmed -> canceled or confirmed -> rescheduled, where a reschedule
// creates a new confirmed booking linked via RescheduledFromBookingID.
type Booking struct {
	ID                       string
	EventTypeID              string
	OrganizerID              string
	StartsAt                 time.Time
	EndsAt                   time.Time
	Status                   BookingStatus
	InviteeName              string
	InviteeEmail             string
	CancelReason             string
	RescheduledFromBookingID string
	Metadata                 BookingMetadata
	CreatedAt                time.Time
}

// BookingActionToken is a single-use credential behind a cancel or reschedule
// link. Only the SHA-256 hash of the raw token is ever stored.
type BookingActionToken struct {
	ID                string
	BookingID         string
	ActionType        ActionType
	TokenHash         string
	ExpiresAt         time.Time
	ConsumedAt        *time.Time
	ConsumedBookingID string
	CreatedAt         time.Time
}

// BusyWindow is an opaque busy interval imported from an external calendar.
// For conflict purposes it behaves like a confirmed booking with no buffers.
type BusyWindow struct {
	UserID   string
	StartsAt time.Time
	EndsAt   time.Time
}

// AsBooking converts the busy window into the synthetic confirmed booking the
// slot engine consumes.
func (w BusyWindow) AsBooking() Booking {
	return Booking{
		OrganizerID: w.UserID,
		StartsAt:    w.StartsAt,
		EndsAt:      w.EndsAt,
		Status:      BookingStatusConfirmed,
	}
}

// TeamMemberSchedule is the read-only projection of one team member fed into
// the team slot matrix.
type TeamMemberSchedule struct {
	UserID    string
	Timezone  string
	Rules     []AvailabilityRule
	Overrides []AvailabilityOverride
	Bookings  []Booking
}

// WebhookDeliveryAttempt tracks retry state for one asynchronous delivery.
type WebhookDeliveryAttempt struct {
	EventID       string
	AttemptCount  int
	NextAttemptAt time.Time
	MaxAttempts   int
}
