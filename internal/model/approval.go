package model

import "time"

// ApprovalChannel is the messaging medium used to ask a human for a decision.
type ApprovalChannel string

const (
	ChannelSMS   ApprovalChannel = "sms"
	ChannelEmail ApprovalChannel = "email"
)

// Decision is the interpreted meaning of a free-text reply.
type Decision string

const (
	DecisionApproved         Decision = "approved"
	DecisionRejected         Decision = "rejected"
	DecisionPaymentConfirmed Decision = "payment_confirmed"
	DecisionUnclear          Decision = "unclear"
)

// Confidence is the qualitative certainty attached to an interpreted reply.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ApprovalResponse records the human's reply, if any.
type ApprovalResponse struct {
	Text        string     `json:"text"`
	Decision    Decision   `json:"decision"`
	Confidence  Confidence `json:"confidence"`
	RespondedAt time.Time  `json:"responded_at"`
}

// ApprovalRequest is one outstanding ask for a yes/no decision on an event.
// At most one non-terminal request exists per event at a time.
type ApprovalRequest struct {
	ID            string            `json:"id"`
	EventID       string            `json:"event_id"`
	Channel       ApprovalChannel   `json:"channel"`
	Recipient     string            `json:"recipient"`
	SentAt        time.Time         `json:"sent_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	RemindersSent int               `json:"reminders_sent"`
	Response      *ApprovalResponse `json:"response,omitempty"`
	Resolved      bool              `json:"resolved"`
}

// Expired reports whether the request has passed its expiry with no response.
func (r *ApprovalRequest) Expired(now time.Time) bool {
	return r.Response == nil && now.After(r.ExpiresAt)
}

// DueReminder reports whether a reminder should go out: the request is still
// valid, unanswered, past the reminder threshold, and no reminder has been
// sent yet. Exactly one reminder is sent per request.
func (r *ApprovalRequest) DueReminder(now time.Time, threshold time.Duration) bool {
	if r.Response != nil || r.RemindersSent > 0 {
		return false
	}
	if now.After(r.ExpiresAt) {
		return false
	}
	return now.Sub(r.SentAt) >= threshold
}
