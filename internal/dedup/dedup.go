// Package dedup merges near-duplicate discovered events from multiple
// sources into canonical records.
package dedup

import (
	"log/slog"
	"sort"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/profile"
)

// Composite similarity weights. Title similarity dominates; the temporal
// component only discriminates within a shared day bucket.
const (
	weightTitle    = 0.5
	weightLocation = 0.3
	weightTime     = 0.2
)

// Deduplicator merges candidate duplicates within one discovery batch.
type Deduplicator struct {
	cfg         profile.Dedup
	aliases     map[string]string
	titleMetric *metrics.JaroWinkler
	logger      *slog.Logger
}

// New returns a Deduplicator using the given thresholds and venue aliases.
func New(cfg profile.Dedup, aliases map[string]string, logger *slog.Logger) *Deduplicator {
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &Deduplicator{
		cfg:         cfg,
		aliases:     aliases,
		titleMetric: metrics.NewJaroWinkler(),
		logger:      logger,
	}
}

// key is the normalized comparison form of one event.
type key struct {
	title   string
	venue   string
	address string
	number  string
	bucket  time.Time
	date    time.Time
}

func (d *Deduplicator) keyFor(e *model.Event) key {
	k := key{
		title:   normalizeTitle(e.Title),
		venue:   normalizeVenue(e.Location.Name, d.aliases),
		address: normalizeVenue(e.Location.Address, d.aliases),
		bucket:  dayBucket(e.Date),
		date:    e.Date,
	}
	k.number = streetNumber(e.Location.Address)
	if k.number == "" {
		k.number = streetNumber(e.Location.Name)
	}
	return k
}

// Dedup returns a smaller or equal-size set of canonical events. Merging is
// transitive within the batch; unrelated clusters never cascade. The input
// slice is not modified; canonical records are mutated in place to absorb
// their duplicates. Output preserves the batch order of each cluster's
// canonical record.
func (d *Deduplicator) Dedup(batch []*model.Event) []*model.Event {
	if len(batch) < 2 {
		return batch
	}

	keys := make([]key, len(batch))
	for i, e := range batch {
		keys[i] = d.keyFor(e)
	}

	parent := make([]int, len(batch))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < len(batch); i++ {
		for j := i + 1; j < len(batch); j++ {
			if !keys[i].bucket.Equal(keys[j].bucket) {
				continue
			}
			sim := d.composite(keys[i], keys[j])
			switch {
			case sim >= d.cfg.HighThreshold:
				union(i, j)
			case sim >= d.cfg.LowThreshold && keys[i].number != "" && keys[i].number == keys[j].number:
				// Lower band merges only with a shared numeric street address.
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range batch {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	var merged []*model.Event
	for _, members := range clusters {
		canonical := d.pickCanonical(batch, members)
		for _, idx := range members {
			if batch[idx] != canonical {
				absorb(canonical, batch[idx])
			}
		}
		merged = append(merged, canonical)
	}
	sort.Slice(merged, func(a, b int) bool {
		return indexOf(batch, merged[a]) < indexOf(batch, merged[b])
	})

	if len(merged) < len(batch) {
		d.logger.Info("deduplicated batch", "in", len(batch), "out", len(merged))
	}
	return merged
}

// composite blends title, location, and temporal similarity. Callers have
// already established that both events share a day bucket.
func (d *Deduplicator) composite(a, b key) float64 {
	title := strutil.Similarity(a.title, b.title, d.titleMetric)
	return weightTitle*title + weightLocation*d.locationSim(a, b) + weightTime*d.timeSim(a, b)
}

func (d *Deduplicator) locationSim(a, b key) float64 {
	if a.venue == "" && a.address == "" && b.venue == "" && b.address == "" {
		// Null locations are normalized to a neutral similarity so they can
		// still merge on title and time alone.
		return 0.5
	}
	best := 0.0
	for _, pair := range [][2]string{
		{a.venue, b.venue},
		{a.address, b.address},
		{a.venue, b.address},
		{a.address, b.venue},
	} {
		if pair[0] == "" || pair[1] == "" {
			continue
		}
		if s := strutil.Similarity(pair[0], pair[1], d.titleMetric); s > best {
			best = s
		}
		if s := tokenOverlap(pair[0], pair[1]); s > best {
			best = s
		}
	}
	return best
}

func (d *Deduplicator) timeSim(a, b key) float64 {
	if a.date.IsZero() || b.date.IsZero() {
		return 0.5
	}
	delta := a.date.Sub(b.date)
	if delta < 0 {
		delta = -delta
	}
	tolerance := time.Duration(d.cfg.TimeToleranceMins) * time.Minute
	if delta <= tolerance {
		return 1.0
	}
	// Same day but outside the exact-time tolerance.
	return 0.5
}

// tokenOverlap is the Jaccard similarity of the token sets of two strings.
func tokenOverlap(a, b string) float64 {
	as, bs := tokens(a), tokens(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	set := make(map[string]bool, len(as))
	for _, t := range as {
		set[t] = true
	}
	shared := 0
	seen := make(map[string]bool, len(bs))
	for _, t := range bs {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		}
	}
	unionSize := len(set) + len(seen) - shared
	return float64(shared) / float64(unionSize)
}

// pickCanonical keeps the most complete record; ties break to the earliest
// batch position, which carries the earliest sources entry.
func (d *Deduplicator) pickCanonical(batch []*model.Event, members []int) *model.Event {
	sort.Ints(members)
	best := batch[members[0]]
	bestScore := best.Completeness()
	for _, idx := range members[1:] {
		if c := batch[idx].Completeness(); c > bestScore {
			best = batch[idx]
			bestScore = c
		}
	}
	return best
}

// absorb folds a duplicate into the canonical record: union of sources and
// alternate URLs, and any fields the canonical record is missing.
func absorb(canonical, dup *model.Event) {
	for _, src := range dup.Sources {
		if !canonical.HasSource(src) {
			canonical.Sources = append(canonical.Sources, src)
		}
	}
	for _, u := range dup.AlternateURLs {
		if !containsString(canonical.AlternateURLs, u) {
			canonical.AlternateURLs = append(canonical.AlternateURLs, u)
		}
	}
	if dup.RegistrationURL != "" {
		if canonical.RegistrationURL == "" {
			canonical.RegistrationURL = dup.RegistrationURL
		} else if dup.RegistrationURL != canonical.RegistrationURL &&
			!containsString(canonical.AlternateURLs, dup.RegistrationURL) {
			canonical.AlternateURLs = append(canonical.AlternateURLs, dup.RegistrationURL)
		}
	}
	if canonical.Description == "" {
		canonical.Description = dup.Description
	}
	if canonical.Location.Name == "" {
		canonical.Location.Name = dup.Location.Name
	}
	if canonical.Location.Address == "" {
		canonical.Location.Address = dup.Location.Address
	}
	if canonical.AgeRange.Min == 0 && canonical.AgeRange.Max == 0 {
		canonical.AgeRange = dup.AgeRange
	}
	if canonical.SpotsTotal == 0 {
		canonical.SpotsTotal = dup.SpotsTotal
		canonical.SpotsLeft = dup.SpotsLeft
	}
	if canonical.Rating == 0 {
		canonical.Rating = dup.Rating
		canonical.RatingCount = dup.RatingCount
	}
}

func indexOf(batch []*model.Event, e *model.Event) int {
	for i, b := range batch {
		if b == e {
			return i
		}
	}
	return -1
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
