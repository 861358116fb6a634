// Package score ranks deduplicated events by a weighted heuristic.
package score

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
)

// Sub-score weights. They sum to 1.0 so Total stays in [0,100].
const (
	weightNovelty = 0.35
	weightUrgency = 0.25
	weightSocial  = 0.20
	weightMatch   = 0.15
	weightCost    = 0.05
)

// VenueHistory reports whether the family has already visited a venue.
type VenueHistory interface {
	IsVenueVisited(ctx context.Context, venueName string) (bool, error)
}

// Scorer assigns each event a deterministic total in [0,100].
type Scorer struct {
	prefs     profile.Preferences
	childAges []int
	history   VenueHistory
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Scorer driven by the family profile.
func New(p *profile.Profile, history VenueHistory, logger *slog.Logger) *Scorer {
	return &Scorer{
		prefs:     p.Preferences,
		childAges: p.ChildAges(),
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// ScoreAll scores every event and returns them sorted descending by total.
// Events are never dropped: a failed score surfaces with Total 0 and a
// reason. The sort is stable, so ties keep discovery order.
func (s *Scorer) ScoreAll(ctx context.Context, events []*model.Event) []*model.Event {
	for _, e := range events {
		factors := s.ScoreEvent(ctx, e)
		e.Score = &factors
	}
	sort.SliceStable(events, func(a, b int) bool {
		return events[a].Score.Total > events[b].Score.Total
	})
	return events
}

// ScoreEvent computes the weighted score for one event. Scoring failures are
// non-fatal and auditable: the returned factors carry a zero total and the
// failure reason.
func (s *Scorer) ScoreEvent(ctx context.Context, e *model.Event) (factors model.ScoreFactors) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("scoring panicked", "event_id", e.ID, "panic", r)
			factors = model.ScoreFactors{Reason: fmt.Sprintf("scoring failed: %v", r)}
		}
	}()

	if err := e.Validate(); err != nil {
		return model.ScoreFactors{Reason: err.Error()}
	}

	factors = model.ScoreFactors{
		Novelty: s.novelty(ctx, e),
		Urgency: s.urgency(e),
		Social:  s.social(e),
		Match:   s.match(e),
		Cost:    s.cost(e),
	}
	factors.Total = clamp(weightNovelty*factors.Novelty +
		weightUrgency*factors.Urgency +
		weightSocial*factors.Social +
		weightMatch*factors.Match +
		weightCost*factors.Cost)
	return factors
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
