// Package scraper collects raw event listings from configured sources. Each
// source is isolated; one broken feed never empties a discovery run.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/groblegark/scout/internal/model"
)

const feedTimeout = 30 * time.Second

// Scraper is one event source.
type Scraper interface {
	Name() string
	Discover(ctx context.Context) ([]model.RawEvent, error)
}

// Aggregator fans discovery out over all configured scrapers.
type Aggregator struct {
	scrapers []Scraper
	logger   *slog.Logger
}

// NewAggregator returns an aggregator over the given scrapers.
func NewAggregator(scrapers []Scraper, logger *slog.Logger) *Aggregator {
	return &Aggregator{scrapers: scrapers, logger: logger}
}

// DiscoverAll runs every scraper and returns the combined raw events. A
// failing source is logged and skipped; an error is returned only when every
// source failed.
func (a *Aggregator) DiscoverAll(ctx context.Context) ([]model.RawEvent, error) {
	var (
		all    []model.RawEvent
		errs   []error
		failed int
	)
	for _, s := range a.scrapers {
		raw, err := s.Discover(ctx)
		if err != nil {
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			a.logger.Warn("source failed", "source", s.Name(), "err", err)
			continue
		}
		for i := range raw {
			if raw[i].Source == "" {
				raw[i].Source = s.Name()
			}
		}
		a.logger.Debug("source discovered events", "source", s.Name(), "count", len(raw))
		all = append(all, raw...)
	}
	if len(a.scrapers) > 0 && failed == len(a.scrapers) {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}
	return all, nil
}

// FeedScraper pulls a JSON feed of raw events over HTTP. The feed body is
// either a bare array or an object with an "events" key.
type FeedScraper struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewFeedScraper returns a scraper for the given named feed URL.
func NewFeedScraper(name, url string) *FeedScraper {
	return &FeedScraper{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: feedTimeout},
	}
}

func (s *FeedScraper) Name() string { return s.name }

// Discover fetches and decodes the feed.
func (s *FeedScraper) Discover(ctx context.Context) ([]model.RawEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var events []model.RawEvent
	if err := json.Unmarshal(data, &events); err == nil {
		return events, nil
	}
	var wrapped struct {
		Events []model.RawEvent `json:"events"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}
	return wrapped.Events, nil
}

// FromConfig builds one feed scraper per configured name=url pair.
func FromConfig(feeds map[string]string) []Scraper {
	scrapers := make([]Scraper, 0, len(feeds))
	for name, url := range feeds {
		scrapers = append(scrapers, NewFeedScraper(name, url))
	}
	return scrapers
}
