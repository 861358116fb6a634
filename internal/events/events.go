package events

import (
	"context"

	"github.com/groblegark/scout/internal/model"
)

// Event topic constants
const (
	TopicEventDiscovered = "scout.event.discovered"
	TopicEventMerged     = "scout.event.merged"
	TopicEventScored     = "scout.event.scored"

	TopicApprovalSent     = "scout.approval.sent"
	TopicApprovalDecided  = "scout.approval.decided"
	TopicApprovalExpired  = "scout.approval.expired"
	TopicApprovalReminder = "scout.approval.reminder"
	TopicApprovalUnclear  = "scout.approval.unclear"

	TopicRegistrationBooked  = "scout.registration.booked"
	TopicRegistrationFailed  = "scout.registration.failed"
	TopicRegistrationBlocked = "scout.registration.blocked"

	TopicEmergencyShutdown = "scout.system.emergency_shutdown"
)

// Event types

type EventDiscovered struct {
	Event *model.Event `json:"event"`
}

type EventMerged struct {
	Event   *model.Event `json:"event"`
	Sources []string     `json:"sources"`
}

type EventScored struct {
	EventID string             `json:"event_id"`
	Score   model.ScoreFactors `json:"score"`
}

type ApprovalSent struct {
	Request *model.ApprovalRequest `json:"request"`
}

type ApprovalDecided struct {
	RequestID  string           `json:"request_id"`
	EventID    string           `json:"event_id"`
	Decision   model.Decision   `json:"decision"`
	Confidence model.Confidence `json:"confidence"`
	Text       string           `json:"text"`
}

type ApprovalExpired struct {
	RequestID string `json:"request_id"`
	EventID   string `json:"event_id"`
}

type ApprovalReminder struct {
	RequestID string `json:"request_id"`
	EventID   string `json:"event_id"`
}

// ApprovalUnclear is published for audit when a reply could not be
// interpreted; the request stays pending.
type ApprovalUnclear struct {
	RequestID string `json:"request_id"`
	EventID   string `json:"event_id"`
	Text      string `json:"text"`
}

type RegistrationBooked struct {
	Result *model.RegistrationResult `json:"result"`
}

type RegistrationFailed struct {
	Result *model.RegistrationResult `json:"result"`
}

// RegistrationBlocked is published when the payment guard refuses an attempt.
type RegistrationBlocked struct {
	Result *model.RegistrationResult `json:"result"`
	Reason string                    `json:"reason"`
}

type EmergencyShutdown struct {
	Actor string `json:"actor,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
