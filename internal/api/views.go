package api

import (
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

// Response shapes. Raw action links appear exactly once, in the response that
// minted them.

type slotsResponse struct {
	EventType eventTypeJSON             `json:"event_type"`
	Slots     []models.AvailabilitySlot `json:"slots"`
}

type bookingResponse struct {
	Booking     bookingJSON       `json:"booking"`
	ActionLinks map[string]string `json:"action_links,omitempty"`
	Replayed    bool              `json:"replayed,omitempty"`
}

type eventTypeJSON struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	SchedulingType  string `json:"scheduling_type"`
	OwnerUsername   string `json:"owner_username"`
	OwnerTimezone   string `json:"owner_timezone"`
}

type bookingJSON struct {
	ID              string `json:"id"`
	StartsAt        string `json:"starts_at"`
	EndsAt          string `json:"ends_at"`
	Status          string `json:"status"`
	InviteeName     string `json:"invitee_name"`
	InviteeEmail    string `json:"invitee_email"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	RescheduledFrom string `json:"rescheduled_from_booking_id,omitempty"`
}

func eventTypeView(et *models.EventType) eventTypeJSON {
	return eventTypeJSON{
		Slug:            et.Slug,
		Title:           et.Title,
		DurationMinutes: et.DurationMinutes,
		SchedulingType:  string(et.SchedulingType),
		OwnerUsername:   et.OwnerUsername,
		OwnerTimezone:   et.OwnerTimezone,
	}
}

func bookingView(b *models.Booking) bookingJSON {
	return bookingJSON{
		ID:              b.ID,
		StartsAt:        b.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:          b.EndsAt.UTC().Format(time.RFC3339),
		Status:          string(b.Status),
		InviteeName:     b.InviteeName,
		InviteeEmail:    b.InviteeEmail,
		CancelReason:    b.CancelReason,
		RescheduledFrom: b.RescheduledFromBookingID,
	}
}

func linkView(links map[models.ActionType]string) map[string]string {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string]string, len(links))
	for action, raw := range links {
		out[string(action)] = raw
	}
	return out
}
