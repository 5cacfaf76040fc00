package models

import "encoding/json"

// BookingMetadata is the loosely-typed blob captured at commit time. Buffers
// are frozen here so later rule edits never change buffer enforcement for
// already-booked slots.
type BookingMetadata struct {
	Answers             map[string]string `json:"answers,omitempty"`
	Timezone            string            `json:"timezone,omitempty"`
	BufferBeforeMinutes int               `json:"buffer_before_minutes,omitempty"`
	BufferAfterMinutes  int               `json:"buffer_after_minutes,omitempty"`
}

// ParseBookingMetadata decodes a stored metadata blob. Malformed or empty
// input yields the zero value: availability must degrade gracefully on
// legacy rows, never hard-fail.
func ParseBookingMetadata(raw []byte) BookingMetadata {
	var m BookingMetadata
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return BookingMetadata{}
	}
	return m
}

// Encode serializes the metadata for storage.
func (m BookingMetadata) Encode() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return data
}
