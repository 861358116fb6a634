package score

import (
	"context"
	"strings"
	"time"

	"github.com/groblegark/scout/internal/model"
)

// Novelty bands.
const (
	noveltyVisited   = 20
	noveltyRecurring = 40
	noveltyFirstTime = 75
	noveltySpecial   = 95
)

// novelty is lowest for previously visited venues, low for recurring events,
// and high for first-time or keyword-flagged special/seasonal events.
func (s *Scorer) novelty(ctx context.Context, e *model.Event) float64 {
	if s.containsSpecialKeyword(e.Title) || s.containsSpecialKeyword(e.Description) {
		return noveltySpecial
	}

	visited, err := s.history.IsVenueVisited(ctx, e.Location.Name)
	if err != nil {
		// Venue history errors degrade to "not visited" rather than failing
		// the whole score.
		s.logger.Warn("venue history lookup failed", "venue", e.Location.Name, "err", err)
		visited = false
	}
	if visited {
		return noveltyVisited
	}
	if e.Recurring {
		return noveltyRecurring
	}
	return noveltyFirstTime
}

// urgency starts at 50 and takes the maximum raise from registration-open
// proximity, low remaining capacity, and event-date proximity.
func (s *Scorer) urgency(e *model.Event) float64 {
	const base = 50.0
	now := s.now()
	raise := 0.0

	if e.RegistrationOpens != nil {
		until := e.RegistrationOpens.Sub(now)
		if until > 0 && until <= 48*time.Hour {
			raise = max(raise, 40)
		}
	}

	if e.SpotsTotal > 0 {
		ratio := float64(e.SpotsLeft) / float64(e.SpotsTotal)
		switch {
		case ratio <= 0.2:
			raise = max(raise, 35)
		case ratio <= 0.5:
			raise = max(raise, 20)
		}
	}

	if !e.Date.IsZero() {
		until := e.Date.Sub(now)
		switch {
		case until > 0 && until <= 72*time.Hour:
			raise = max(raise, 30)
		case until > 0 && until <= 7*24*time.Hour:
			raise = max(raise, 15)
		}
	}

	return clamp(base + raise)
}

// social starts at 50 with additive boosts from external ratings and
// social-proof signals, capped at 100.
func (s *Scorer) social(e *model.Event) float64 {
	score := 50.0
	switch {
	case e.Rating >= 4.5:
		score += 25
	case e.Rating >= 4.0:
		score += 15
	}
	switch {
	case e.RatingCount >= 100:
		score += 15
	case e.RatingCount >= 20:
		score += 10
	}
	if len(e.Sources) >= 2 {
		// Listed by multiple sources is itself social proof.
		score += 10
	}
	return clamp(score)
}

// match starts at 50 with additive boosts for child-age overlap, weekend and
// time-of-day fit, and preferred-activity keyword hits, capped at 100.
func (s *Scorer) match(e *model.Event) float64 {
	score := 50.0

	for _, age := range s.childAges {
		if e.AgeRange.Overlaps(age) {
			score += 20
			break
		}
	}

	if !e.Date.IsZero() {
		wd := e.Date.Weekday()
		if s.prefs.PreferWeekends && (wd == time.Saturday || wd == time.Sunday) {
			score += 15
		}
		if h := e.Date.Hour(); h >= 9 && h <= 17 {
			score += 5
		}
	}

	text := strings.ToLower(e.Title + " " + e.Description)
	hits := 0
	for _, kw := range s.prefs.ActivityKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			hits++
		}
	}
	if hits > 2 {
		hits = 2
	}
	score += float64(hits) * 10

	return clamp(score)
}

// cost is maximal when free and decreases in bands as cost approaches the
// configured maximum.
func (s *Scorer) cost(e *model.Event) float64 {
	if e.Cost <= 0 {
		return 100
	}
	maxCost := s.prefs.MaxCost
	if maxCost <= 0 {
		maxCost = 50
	}
	ratio := e.Cost / maxCost
	switch {
	case ratio <= 0.25:
		return 75
	case ratio <= 0.5:
		return 50
	case ratio <= 0.75:
		return 25
	case ratio <= 1.0:
		return 10
	default:
		return 0
	}
}

func (s *Scorer) containsSpecialKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range s.prefs.SpecialKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
