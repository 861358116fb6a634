package model

import (
	"time"
)

// Status represents where an event sits in the discovery-to-attendance
// lifecycle.
type Status string

const (
	StatusDiscovered       Status = "discovered"
	StatusDeduplicated     Status = "deduplicated"
	StatusScored           Status = "scored"
	StatusPendingApproval  Status = "pending_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusExpired          Status = "expired"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusRegistering      Status = "registering"
	StatusBooked           Status = "booked"
	StatusFailed           Status = "failed"
	StatusScheduled        Status = "scheduled"
	StatusAttended         Status = "attended"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further automated transition leaves the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusFailed, StatusAttended:
		return true
	}
	return false
}

// transitions is the allowed successor set for each status. The event's
// status is the single source of truth for which component may act on it
// next; everything that mutates an event goes through CanTransition.
var transitions = map[Status][]Status{
	StatusDiscovered:       {StatusDeduplicated},
	StatusDeduplicated:     {StatusScored},
	StatusScored:           {StatusPendingApproval},
	StatusPendingApproval:  {StatusApproved, StatusRejected, StatusExpired, StatusPaymentConfirmed},
	StatusApproved:         {StatusRegistering, StatusScheduled},
	StatusPaymentConfirmed: {StatusScheduled},
	StatusRegistering:      {StatusBooked, StatusFailed},
	StatusBooked:           {StatusScheduled},
	StatusScheduled:        {StatusAttended},
	StatusRejected:         {},
	StatusExpired:          {},
	StatusFailed:           {},
	StatusAttended:         {},
}

// CanTransition reports whether moving from one status to another is legal.
// Re-applying the current status is always allowed and treated as a no-op by
// the store, which keeps sweep races idempotent.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Location describes where an event takes place.
type Location struct {
	Name          string  `json:"name,omitempty"`
	Address       string  `json:"address,omitempty"`
	DistanceMiles float64 `json:"distance_miles,omitempty"`
}

// AgeRange is the advertised audience age band, in years.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Overlaps reports whether any child age in [min,max] falls inside the range.
// A zero range is treated as all-ages.
func (r AgeRange) Overlaps(age int) bool {
	if r.Min == 0 && r.Max == 0 {
		return true
	}
	return age >= r.Min && age <= r.Max
}

// ScoreFactors holds the weighted sub-scores assigned by the scorer.
// Total is in [0,100]. Reason is set only when scoring failed and the event
// was surfaced with a zero total.
type ScoreFactors struct {
	Novelty float64 `json:"novelty"`
	Urgency float64 `json:"urgency"`
	Social  float64 `json:"social"`
	Match   float64 `json:"match"`
	Cost    float64 `json:"cost"`
	Total   float64 `json:"total"`
	Reason  string  `json:"reason,omitempty"`
}

// RawEvent is what a scraper collaborator reports: unfiltered and possibly
// a duplicate of another source's listing.
type RawEvent struct {
	Source            string     `json:"source"`
	URL               string     `json:"url,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Date              time.Time  `json:"date"`
	Location          Location   `json:"location"`
	AgeRange          AgeRange   `json:"age_range"`
	Cost              float64    `json:"cost"`
	RegistrationURL   string     `json:"registration_url,omitempty"`
	RegistrationOpens *time.Time `json:"registration_opens,omitempty"`
	SpotsTotal        int        `json:"spots_total,omitempty"`
	SpotsLeft         int        `json:"spots_left,omitempty"`
	Rating            float64    `json:"rating,omitempty"`
	RatingCount       int        `json:"rating_count,omitempty"`
	Recurring         bool       `json:"recurring,omitempty"`
}

// Event is the canonical record for one real-world activity after
// deduplication. Sources preserves discovery order; the first entry is the
// origin of the canonical record.
type Event struct {
	ID            string   `json:"id"`
	Sources       []string `json:"sources"`
	AlternateURLs []string `json:"alternate_urls,omitempty"`

	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Location    Location  `json:"location"`
	AgeRange    AgeRange  `json:"age_range"`
	Cost        float64   `json:"cost"`

	RegistrationURL   string     `json:"registration_url,omitempty"`
	RegistrationOpens *time.Time `json:"registration_opens,omitempty"`
	SpotsTotal        int        `json:"spots_total,omitempty"`
	SpotsLeft         int        `json:"spots_left,omitempty"`
	Rating            float64    `json:"rating,omitempty"`
	RatingCount       int        `json:"rating_count,omitempty"`
	Recurring         bool       `json:"recurring,omitempty"`

	Score  *ScoreFactors `json:"score,omitempty"`
	Status Status        `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Free reports whether the event's listed cost is zero. Only free events may
// reach booked through the automated path.
func (e *Event) Free() bool {
	return e.Cost <= 0
}

// HasSource reports whether the given origin identifier already contributed
// to this canonical record.
func (e *Event) HasSource(source string) bool {
	for _, s := range e.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Completeness counts non-empty descriptive fields. The deduplicator keeps
// the most complete record as canonical on a merge.
func (e *Event) Completeness() int {
	n := 0
	if e.Title != "" {
		n++
	}
	if e.Description != "" {
		n++
	}
	if !e.Date.IsZero() {
		n++
	}
	if e.Location.Name != "" {
		n++
	}
	if e.Location.Address != "" {
		n++
	}
	if e.AgeRange.Min != 0 || e.AgeRange.Max != 0 {
		n++
	}
	if e.RegistrationURL != "" {
		n++
	}
	if e.SpotsTotal > 0 {
		n++
	}
	if e.Rating > 0 {
		n++
	}
	return n
}
