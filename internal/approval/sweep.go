package approval

import (
	"context"
	"fmt"

	"github.com/groblegark/scout/internal/events"
	"github.com/groblegark/scout/internal/model"
)

// CheckTimeouts expires every open request past its deadline and returns the
// number expired. Expiry happens exactly once per request: an expired request
// is no longer open and gets no further reminders.
func (c *Channel) CheckTimeouts(ctx context.Context) (int, error) {
	open, err := c.store.ListOpenApprovals(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open approvals: %w", err)
	}

	now := c.now()
	expired := 0
	for _, req := range open {
		if !req.Expired(now) {
			continue
		}
		if err := c.store.ExpireApproval(ctx, req.ID); err != nil {
			c.logger.Error("failed to expire approval", "request_id", req.ID, "err", err)
			continue
		}
		if err := c.store.UpdateEventStatus(ctx, req.EventID, model.StatusExpired); err != nil {
			c.logger.Error("failed to mark event expired", "event_id", req.EventID, "err", err)
			continue
		}
		c.publish(ctx, events.TopicApprovalExpired, events.ApprovalExpired{
			RequestID: req.ID, EventID: req.EventID,
		})
		c.logger.Info("approval expired", "request_id", req.ID, "event_id", req.EventID)
		expired++
	}
	return expired, nil
}

// SendReminders sends exactly one reminder to each open request past the
// reminder threshold and returns the number sent. A failed send is not
// marked, so the next sweep retries it.
func (c *Channel) SendReminders(ctx context.Context) (int, error) {
	open, err := c.store.ListOpenApprovals(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open approvals: %w", err)
	}

	now := c.now()
	sent := 0
	for _, req := range open {
		if !req.DueReminder(now, c.cfg.ReminderAfter.Duration) {
			continue
		}
		event, err := c.store.GetEvent(ctx, req.EventID)
		if err != nil {
			c.logger.Error("failed to load event for reminder", "event_id", req.EventID, "err", err)
			continue
		}
		sender, ok := c.senderFor(req.Channel)
		if !ok {
			c.logger.Warn("no sender for reminder channel", "channel", req.Channel)
			continue
		}
		if err := sender.Send(ctx, req.Recipient, reminderBody(event)); err != nil {
			c.logger.Error("failed to send reminder", "request_id", req.ID, "err", err)
			continue
		}
		if err := c.store.MarkApprovalReminded(ctx, req.ID); err != nil {
			c.logger.Error("failed to mark reminder", "request_id", req.ID, "err", err)
			continue
		}
		c.publish(ctx, events.TopicApprovalReminder, events.ApprovalReminder{
			RequestID: req.ID, EventID: req.EventID,
		})
		sent++
	}
	return sent, nil
}

func (c *Channel) senderFor(kind model.ApprovalChannel) (Sender, bool) {
	for _, s := range c.senders {
		if s.Kind() == kind {
			return s, true
		}
	}
	return nil, false
}
