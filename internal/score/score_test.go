package score

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
)

type fakeHistory struct {
	visited map[string]bool
	err     error
}

func (f *fakeHistory) IsVenueVisited(_ context.Context, venue string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.visited[venue], nil
}

func newTestScorer(h VenueHistory) *Scorer {
	p := profile.DefaultProfile()
	p.Family.Children = []profile.Child{{Name: "Riley", Age: 5}}
	p.Preferences.ActivityKeywords = []string{"science", "music"}
	s := New(p, h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Pin the clock so urgency is deterministic across the test run.
	fixed := time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func sampleEvent() *model.Event {
	return &model.Event{
		ID:          "ev-1",
		Title:       "Storytime Science for Kids",
		Description: "Hands-on science fun",
		Date:        time.Date(2025, 8, 16, 12, 0, 0, 0, time.UTC), // Saturday
		Location:    model.Location{Name: "Pier 15"},
		AgeRange:    model.AgeRange{Min: 3, Max: 8},
		Sources:     []string{"eventbrite"},
		Status:      model.StatusDeduplicated,
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := newTestScorer(&fakeHistory{})
	ctx := context.Background()

	a := s.ScoreEvent(ctx, sampleEvent())
	b := s.ScoreEvent(ctx, sampleEvent())
	if a.Total != b.Total {
		t.Errorf("identical input scored differently: %v vs %v", a.Total, b.Total)
	}
	if a.Total <= 0 || a.Total > 100 {
		t.Errorf("total %v out of range", a.Total)
	}
}

func TestScoreFreeCostMaximal(t *testing.T) {
	s := newTestScorer(&fakeHistory{})
	e := sampleEvent()
	e.Cost = 0

	factors := s.ScoreEvent(context.Background(), e)
	if factors.Cost != 100 {
		t.Errorf("free event cost sub-score = %v, want 100", factors.Cost)
	}
}

func TestScoreCostBandsMonotonic(t *testing.T) {
	s := newTestScorer(&fakeHistory{})
	prev := 101.0
	for _, cost := range []float64{0, 10, 20, 35, 50, 80} {
		e := sampleEvent()
		e.Cost = cost
		factors := s.ScoreEvent(context.Background(), e)
		if factors.Cost > prev {
			t.Errorf("cost sub-score not monotonic: cost=%v scored %v after %v", cost, factors.Cost, prev)
		}
		prev = factors.Cost
	}
}

func TestScoreMissingFieldsSurfacedNotDropped(t *testing.T) {
	s := newTestScorer(&fakeHistory{})
	e := &model.Event{ID: "ev-2", Status: model.StatusDeduplicated}

	factors := s.ScoreEvent(context.Background(), e)
	if factors.Total != 0 {
		t.Errorf("invalid event total = %v, want 0", factors.Total)
	}
	if factors.Reason == "" {
		t.Error("invalid event should carry a reason")
	}
}

func TestScoreNoveltyBands(t *testing.T) {
	h := &fakeHistory{visited: map[string]bool{"Pier 15": true}}
	s := newTestScorer(h)
	ctx := context.Background()

	visited := sampleEvent()
	if got := s.ScoreEvent(ctx, visited); got.Novelty != noveltyVisited {
		t.Errorf("visited venue novelty = %v, want %v", got.Novelty, noveltyVisited)
	}

	recurring := sampleEvent()
	recurring.Location.Name = "Somewhere New"
	recurring.Recurring = true
	if got := s.ScoreEvent(ctx, recurring); got.Novelty != noveltyRecurring {
		t.Errorf("recurring novelty = %v, want %v", got.Novelty, noveltyRecurring)
	}

	special := sampleEvent()
	special.Location.Name = "Somewhere New"
	special.Title = "Seasonal Pumpkin Festival"
	if got := s.ScoreEvent(ctx, special); got.Novelty != noveltySpecial {
		t.Errorf("special novelty = %v, want %v", got.Novelty, noveltySpecial)
	}

	fresh := sampleEvent()
	fresh.Location.Name = "Somewhere New"
	if got := s.ScoreEvent(ctx, fresh); got.Novelty != noveltyFirstTime {
		t.Errorf("first-time novelty = %v, want %v", got.Novelty, noveltyFirstTime)
	}
}

func TestScoreHistoryErrorDegrades(t *testing.T) {
	s := newTestScorer(&fakeHistory{err: errors.New("calendar backend down")})
	factors := s.ScoreEvent(context.Background(), sampleEvent())
	if factors.Total == 0 {
		t.Error("history error should degrade, not zero the score")
	}
	if factors.Novelty != noveltyFirstTime {
		t.Errorf("novelty = %v, want first-time fallback %v", factors.Novelty, noveltyFirstTime)
	}
}

func TestScoreUrgencyTakesMaxRaise(t *testing.T) {
	s := newTestScorer(&fakeHistory{})
	e := sampleEvent()
	// Low capacity (+35) and near date (+30) together must not sum.
	e.SpotsTotal = 100
	e.SpotsLeft = 10
	e.Date = s.now().Add(48 * time.Hour)

	factors := s.ScoreEvent(context.Background(), e)
	if factors.Urgency != 85 {
		t.Errorf("urgency = %v, want 50 + max(35, 30) = 85", factors.Urgency)
	}
}

func TestScoreAllSortedStable(t *testing.T) {
	s := newTestScorer(&fakeHistory{})

	low := sampleEvent()
	low.ID = "ev-low"
	low.Cost = 80
	low.Location.Name = "A"

	high := sampleEvent()
	high.ID = "ev-high"
	high.Cost = 0
	high.Location.Name = "B"

	tieA := &model.Event{ID: "ev-tie-a", Status: model.StatusDeduplicated}
	tieB := &model.Event{ID: "ev-tie-b", Status: model.StatusDeduplicated}

	out := s.ScoreAll(context.Background(), []*model.Event{tieA, low, high, tieB})
	if out[0].ID != "ev-high" {
		t.Errorf("first = %s, want ev-high", out[0].ID)
	}
	// Both invalid events score 0 and must keep their discovery order.
	if out[2].ID != "ev-tie-a" || out[3].ID != "ev-tie-b" {
		t.Errorf("tie order not stable: %s, %s", out[2].ID, out[3].ID)
	}
}
