// Package pipeline wires discovery, deduplication, scoring, approval, and
// registration into the scheduled flows that move events through their
// lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/groblegark/scout/internal/approval"
	"github.com/groblegark/scout/internal/calendar"
	"github.com/groblegark/scout/internal/dedup"
	"github.com/groblegark/scout/internal/events"
	"github.com/groblegark/scout/internal/idgen"
	"github.com/groblegark/scout/internal/metrics"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
	"github.com/groblegark/scout/internal/register"
	"github.com/groblegark/scout/internal/score"
	"github.com/groblegark/scout/internal/store"
)

// Discoverer is the fan-out over all configured event sources.
type Discoverer interface {
	DiscoverAll(ctx context.Context) ([]model.RawEvent, error)
}

// Registrar runs one automated registration attempt.
type Registrar interface {
	Register(ctx context.Context, event *model.Event) (*model.RegistrationResult, error)
}

// calendarSyncer is implemented by checkers with a refreshable cache.
type calendarSyncer interface {
	Sync(ctx context.Context) error
}

// Pipeline owns the scheduled flows. All of them honor the halt flag: once
// Halt is called nothing moves until the process restarts.
type Pipeline struct {
	store     store.Store
	sources   Discoverer
	dedup     *dedup.Deduplicator
	scorer    *score.Scorer
	approvals *approval.Channel
	automator Registrar
	calendar  calendar.Checker
	metrics   *metrics.Metrics
	publisher events.Publisher
	prof      *profile.Profile
	logger    *slog.Logger

	halted atomic.Bool
	sleep  func(ctx context.Context, d time.Duration) error
}

// New assembles the pipeline.
func New(
	s store.Store,
	sources Discoverer,
	d *dedup.Deduplicator,
	sc *score.Scorer,
	ap *approval.Channel,
	reg Registrar,
	cal calendar.Checker,
	m *metrics.Metrics,
	pub events.Publisher,
	prof *profile.Profile,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:     s,
		sources:   sources,
		dedup:     d,
		scorer:    sc,
		approvals: ap,
		automator: reg,
		calendar:  cal,
		metrics:   m,
		publisher: pub,
		prof:      prof,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Halt stops all automated flows until restart and publishes the shutdown.
func (p *Pipeline) Halt(ctx context.Context, actor string) {
	if p.halted.Swap(true) {
		return
	}
	p.logger.Warn("emergency shutdown", "actor", actor)
	if err := p.publisher.Publish(ctx, events.TopicEmergencyShutdown, events.EmergencyShutdown{Actor: actor}); err != nil {
		p.logger.Warn("failed to publish shutdown", "err", err)
	}
}

// Halted reports whether the pipeline has been emergency-stopped.
func (p *Pipeline) Halted() bool {
	return p.halted.Load()
}

// RunDiscovery executes one discovery cycle: collect raw listings, merge
// duplicates, persist and score new canonical events, then dispatch the top
// candidates for approval.
func (p *Pipeline) RunDiscovery(ctx context.Context) error {
	if p.halted.Load() {
		p.logger.Info("discovery skipped, pipeline halted")
		return nil
	}

	raw, err := p.sources.DiscoverAll(ctx)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	p.metrics.EventsDiscovered.Add(float64(len(raw)))
	if len(raw) == 0 {
		return nil
	}

	batch := make([]*model.Event, 0, len(raw))
	for i := range raw {
		e, err := newEvent(&raw[i])
		if err != nil {
			return fmt.Errorf("create event record: %w", err)
		}
		if verr := e.Validate(); verr != nil {
			// Incomplete listings stay in the funnel; the scorer surfaces
			// them with a zero total and the reason attached.
			p.logger.Warn("incomplete listing", "source", raw[i].Source, "title", raw[i].Title, "err", verr)
		}
		batch = append(batch, e)
	}

	canonical := p.dedup.Dedup(batch)
	p.metrics.EventsMerged.Add(float64(len(batch) - len(canonical)))

	fresh := make([]*model.Event, 0, len(canonical))
	for _, e := range canonical {
		existing, err := p.store.FindEventBySource(ctx, e.Sources[0], e.Title)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("lookup failed", "title", e.Title, "err", err)
			continue
		}
		if existing != nil {
			continue
		}
		if err := p.store.CreateEvent(ctx, e); err != nil {
			p.logger.Error("create failed", "title", e.Title, "err", err)
			continue
		}
		p.publish(ctx, events.TopicEventDiscovered, events.EventDiscovered{Event: e})
		if len(e.Sources) > 1 {
			p.publish(ctx, events.TopicEventMerged, events.EventMerged{Event: e, Sources: e.Sources})
		}
		if err := p.store.UpdateEventStatus(ctx, e.ID, model.StatusDeduplicated); err != nil {
			p.logger.Error("status update failed", "event_id", e.ID, "err", err)
			continue
		}
		e.Status = model.StatusDeduplicated
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return nil
	}

	scored := p.scorer.ScoreAll(ctx, fresh)
	for _, e := range scored {
		if err := p.store.SaveEventScore(ctx, e.ID, *e.Score); err != nil {
			p.logger.Error("save score failed", "event_id", e.ID, "err", err)
			continue
		}
		if err := p.store.UpdateEventStatus(ctx, e.ID, model.StatusScored); err != nil {
			p.logger.Error("status update failed", "event_id", e.ID, "err", err)
			continue
		}
		e.Status = model.StatusScored
		p.publish(ctx, events.TopicEventScored, events.EventScored{EventID: e.ID, Score: *e.Score})
		p.metrics.EventsScored.Inc()
	}

	return p.dispatch(ctx, scored)
}

// dispatch sends the highest scored events for approval, capped and paced so
// a big discovery run does not flood the family's phone.
func (p *Pipeline) dispatch(ctx context.Context, scored []*model.Event) error {
	limit := p.prof.Approval.DispatchCap
	sent := 0
	for _, e := range scored {
		if limit > 0 && sent >= limit {
			break
		}
		if e.Status != model.StatusScored {
			continue
		}
		if e.Score == nil || (e.Score.Total == 0 && e.Score.Reason != "") {
			continue
		}

		if conflict, err := p.calendar.Check(ctx, e); err == nil && conflict != nil {
			p.metrics.CalendarConflicts.Inc()
			p.logger.Warn("event overlaps calendar entry",
				"event_id", e.ID, "conflicts_with", conflict.Title)
		}

		if sent > 0 {
			if err := p.sleep(ctx, p.prof.Approval.DispatchPacing.Duration); err != nil {
				return err
			}
		}
		reqID, err := p.approvals.SendForApproval(ctx, e)
		if err != nil {
			p.logger.Error("approval dispatch failed", "event_id", e.ID, "err", err)
			continue
		}
		sent++
		if req, err := p.store.GetApproval(ctx, reqID); err == nil {
			p.metrics.ApprovalsSent.WithLabelValues(string(req.Channel)).Inc()
		}
	}
	p.logger.Info("discovery dispatch finished", "sent", sent, "scored", len(scored))
	return nil
}

// RunApprovalSweep expires timed-out requests and sends due reminders.
func (p *Pipeline) RunApprovalSweep(ctx context.Context) error {
	if p.halted.Load() {
		return nil
	}
	expired, expireErr := p.approvals.CheckTimeouts(ctx)
	p.metrics.ApprovalsExpired.Add(float64(expired))

	reminded, remindErr := p.approvals.SendReminders(ctx)
	if reminded > 0 {
		p.logger.Info("reminders sent", "count", reminded)
	}
	return errors.Join(expireErr, remindErr)
}

// RunRegistrationSweep attempts automated registration for approved free
// events that have a registration URL and no prior attempt. Paid events and
// events already attempted are left for the operator.
func (p *Pipeline) RunRegistrationSweep(ctx context.Context) error {
	if p.halted.Load() {
		return nil
	}
	approved, err := p.store.GetEventsByStatus(ctx, model.StatusApproved)
	if err != nil {
		return fmt.Errorf("list approved: %w", err)
	}
	for _, e := range approved {
		if !e.Free() || e.RegistrationURL == "" {
			continue
		}
		if _, err := p.store.GetRegistrationResult(ctx, e.ID); err == nil {
			// Prior attempt on record; retries are operator-triggered.
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("result lookup failed", "event_id", e.ID, "err", err)
			continue
		}
		p.registerOne(ctx, e)
	}
	return nil
}

// RegisterEvent is the operator-triggered registration path. Unlike the
// sweep it runs even when a failed attempt is on record; a recorded success
// still short-circuits inside the automator.
func (p *Pipeline) RegisterEvent(ctx context.Context, eventID string) (*model.RegistrationResult, error) {
	if p.halted.Load() {
		return nil, fmt.Errorf("pipeline is halted")
	}
	e, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return p.registerOne(ctx, e)
}

func (p *Pipeline) registerOne(ctx context.Context, e *model.Event) (*model.RegistrationResult, error) {
	result, err := p.automator.Register(ctx, e)
	switch {
	case errors.Is(err, register.ErrSafetyViolation):
		p.metrics.SafetyViolations.Inc()
	case err != nil:
		p.logger.Error("registration errored", "event_id", e.ID, "err", err)
	case result != nil && result.Success:
		p.metrics.RegistrationsBooked.Inc()
	case result != nil:
		p.metrics.RegistrationsFailed.Inc()
	}
	return result, err
}

// HandleApprovalResponse routes an inbound reply through the approval
// channel and records the decision.
func (p *Pipeline) HandleApprovalResponse(ctx context.Context, eventID, text string) (approval.ParsedResponse, error) {
	parsed, err := p.approvals.HandleResponse(ctx, eventID, text)
	if err == nil && parsed.Status != "" && parsed.Status != model.DecisionUnclear {
		p.metrics.ApprovalsDecided.WithLabelValues(string(parsed.Status)).Inc()
	}
	return parsed, err
}

// CheckCalendar reports the family-calendar conflict for one stored event,
// or nil when the slot is clear.
func (p *Pipeline) CheckCalendar(ctx context.Context, eventID string) (*calendar.Conflict, error) {
	e, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return p.calendar.Check(ctx, e)
}

// RunCalendarSync refreshes the calendar cache when the checker supports it.
func (p *Pipeline) RunCalendarSync(ctx context.Context) error {
	if s, ok := p.calendar.(calendarSyncer); ok {
		return s.Sync(ctx)
	}
	return nil
}

// RunReport logs a status digest of the funnel.
func (p *Pipeline) RunReport(ctx context.Context) error {
	digest := make([]any, 0, 12)
	for _, status := range []model.Status{
		model.StatusPendingApproval, model.StatusApproved,
		model.StatusBooked, model.StatusFailed,
	} {
		list, err := p.store.GetEventsByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		digest = append(digest, string(status), len(list))
	}
	p.logger.Info("pipeline digest", digest...)
	return nil
}

// newEvent converts a raw listing into a canonical record in its initial
// lifecycle state. Missing descriptive fields are carried through unchanged;
// they fail validation at scoring time, not here.
func newEvent(raw *model.RawEvent) (*model.Event, error) {
	id, err := idgen.Event()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()
	e := &model.Event{
		ID:                id,
		Sources:           []string{raw.Source},
		Title:             strings.TrimSpace(raw.Title),
		Description:       strings.TrimSpace(raw.Description),
		Date:              raw.Date,
		Location:          raw.Location,
		AgeRange:          raw.AgeRange,
		Cost:              raw.Cost,
		RegistrationURL:   raw.RegistrationURL,
		RegistrationOpens: raw.RegistrationOpens,
		SpotsTotal:        raw.SpotsTotal,
		SpotsLeft:         raw.SpotsLeft,
		Rating:            raw.Rating,
		RatingCount:       raw.RatingCount,
		Recurring:         raw.Recurring,
		Status:            model.StatusDiscovered,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if raw.URL != "" {
		e.AlternateURLs = []string{raw.URL}
	}
	return e, nil
}

func (p *Pipeline) publish(ctx context.Context, topic string, event any) {
	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		p.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}
