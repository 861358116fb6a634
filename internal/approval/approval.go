// Package approval sends events to a human for a yes/no decision over SMS or
// email and interprets the free-text replies.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/groblegark/scout/internal/events"
	"github.com/groblegark/scout/internal/idgen"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
	"github.com/groblegark/scout/internal/store"
)

// Sender delivers one approval message over a concrete medium.
type Sender interface {
	Send(ctx context.Context, to, body string) error
	Kind() model.ApprovalChannel
}

// Channel dispatches approval requests, sweeps timeouts and reminders, and
// applies parsed responses. SMS is primary when configured; email is the
// fallback.
type Channel struct {
	store     store.Store
	publisher events.Publisher
	senders   []Sender
	family    profile.Family
	cfg       profile.Approval
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Channel using the given senders in priority order.
func New(s store.Store, pub events.Publisher, senders []Sender, p *profile.Profile, logger *slog.Logger) *Channel {
	return &Channel{
		store:     s,
		publisher: pub,
		senders:   senders,
		family:    p.Family,
		cfg:       p.Approval,
		logger:    logger,
		now:       time.Now,
	}
}

// recipientFor returns the configured destination for a sender kind.
func (c *Channel) recipientFor(kind model.ApprovalChannel) string {
	if kind == model.ChannelSMS {
		return c.family.Phone
	}
	return c.family.Email
}

// SendForApproval asks the human to approve one event and records the
// outstanding request. At most one non-terminal request exists per event:
// re-dispatching an already-pending event returns the existing request ID.
func (c *Channel) SendForApproval(ctx context.Context, event *model.Event) (string, error) {
	if existing, err := c.store.OpenApprovalForEvent(ctx, event.ID); err != nil {
		return "", fmt.Errorf("check open approval: %w", err)
	} else if existing != nil {
		return existing.ID, nil
	}

	sender, recipient, err := c.pickSender()
	if err != nil {
		return "", err
	}

	id, err := idgen.Approval()
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	req := &model.ApprovalRequest{
		ID:        id,
		EventID:   event.ID,
		Channel:   sender.Kind(),
		Recipient: recipient,
		SentAt:    now,
		ExpiresAt: now.Add(c.cfg.Timeout.Duration),
	}

	if err := c.store.CreateApproval(ctx, req); err != nil {
		return "", fmt.Errorf("create approval: %w", err)
	}
	if err := sender.Send(ctx, recipient, approvalBody(event)); err != nil {
		return "", fmt.Errorf("send approval: %w", err)
	}
	if err := c.store.UpdateEventStatus(ctx, event.ID, model.StatusPendingApproval); err != nil {
		return "", fmt.Errorf("mark pending: %w", err)
	}

	c.publish(ctx, events.TopicApprovalSent, events.ApprovalSent{Request: req})
	c.logger.Info("approval requested", "event_id", event.ID, "request_id", req.ID, "channel", req.Channel)
	return req.ID, nil
}

func (c *Channel) pickSender() (Sender, string, error) {
	for _, s := range c.senders {
		if recipient := c.recipientFor(s.Kind()); recipient != "" {
			return s, recipient, nil
		}
	}
	return nil, "", fmt.Errorf("no approval channel configured")
}

// HandleResponse applies a human reply to the event's open approval request.
// Unclear replies cause no state transition; the request stays pending until
// timeout or a clearer reply.
func (c *Channel) HandleResponse(ctx context.Context, eventID, text string) (ParsedResponse, error) {
	parsed := ParseResponse(text)

	req, err := c.store.OpenApprovalForEvent(ctx, eventID)
	if err != nil {
		return parsed, fmt.Errorf("find open approval: %w", err)
	}
	if req == nil {
		return parsed, fmt.Errorf("event %s: %w", eventID, store.ErrNotFound)
	}

	if parsed.Status == model.DecisionUnclear {
		c.publish(ctx, events.TopicApprovalUnclear, events.ApprovalUnclear{
			RequestID: req.ID, EventID: req.EventID, Text: parsed.OriginalText,
		})
		c.logger.Info("unclear approval reply", "request_id", req.ID, "text", parsed.OriginalText)
		return parsed, nil
	}

	resp := &model.ApprovalResponse{
		Text:        parsed.OriginalText,
		Decision:    parsed.Status,
		Confidence:  parsed.Confidence,
		RespondedAt: c.now().UTC(),
	}
	if err := c.store.ResolveApproval(ctx, req.ID, resp); err != nil {
		return parsed, fmt.Errorf("resolve approval: %w", err)
	}

	var status model.Status
	switch parsed.Status {
	case model.DecisionApproved:
		status = model.StatusApproved
	case model.DecisionRejected:
		status = model.StatusRejected
	case model.DecisionPaymentConfirmed:
		status = model.StatusPaymentConfirmed
	}
	if err := c.store.UpdateEventStatus(ctx, req.EventID, status); err != nil {
		return parsed, fmt.Errorf("apply decision: %w", err)
	}

	c.publish(ctx, events.TopicApprovalDecided, events.ApprovalDecided{
		RequestID:  req.ID,
		EventID:    req.EventID,
		Decision:   parsed.Status,
		Confidence: parsed.Confidence,
		Text:       parsed.OriginalText,
	})
	c.logger.Info("approval decided", "request_id", req.ID, "decision", parsed.Status, "confidence", parsed.Confidence)
	return parsed, nil
}

func (c *Channel) publish(ctx context.Context, topic string, event any) {
	if err := c.publisher.Publish(ctx, topic, event); err != nil {
		c.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

// approvalBody renders the outbound message for one event.
func approvalBody(e *model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New event found: %s\n", e.Title)
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, "When: %s\n", e.Date.Format("Mon Jan 2 3:04 PM"))
	}
	if e.Location.Name != "" {
		fmt.Fprintf(&b, "Where: %s", e.Location.Name)
		if e.Location.DistanceMiles > 0 {
			fmt.Fprintf(&b, " (%.1f mi)", e.Location.DistanceMiles)
		}
		b.WriteString("\n")
	}
	if e.Free() {
		b.WriteString("Cost: FREE\n")
	} else {
		fmt.Fprintf(&b, "Cost: $%.2f (manual registration required)\n", e.Cost)
	}
	if e.Score != nil {
		fmt.Fprintf(&b, "Score: %.0f/100\n", e.Score.Total)
	}
	b.WriteString("Reply YES to approve, NO to skip.")
	return b.String()
}

// reminderBody renders the single follow-up message for one event.
func reminderBody(e *model.Event) string {
	return fmt.Sprintf("Reminder: still waiting on a decision for %q. Reply YES or NO.", e.Title)
}
