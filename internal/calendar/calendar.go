// Package calendar checks prospective events against the family's existing
// ICS calendar feed. Conflicts are advisory; a failing feed never blocks the
// pipeline.
package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/emersion/go-ical"

	"github.com/groblegark/scout/internal/model"
)

const (
	fetchTimeout = 15 * time.Second

	// assumedEventLength is used when a discovered event lists only a start.
	assumedEventLength = 2 * time.Hour
	// assumedBusyLength is used for calendar entries without DTEND.
	assumedBusyLength = time.Hour
)

// Conflict names the calendar entry that overlaps a prospective event.
type Conflict struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Checker reports scheduling conflicts for a prospective event. A nil
// Conflict means the slot is clear.
type Checker interface {
	Check(ctx context.Context, event *model.Event) (*Conflict, error)
}

// NoopChecker never reports a conflict. Used when no calendar feed is
// configured.
type NoopChecker struct{}

func (NoopChecker) Check(context.Context, *model.Event) (*Conflict, error) { return nil, nil }

type busyInterval struct {
	title string
	start time.Time
	end   time.Time
}

// ICSChecker keeps a cached view of an ICS feed. Sync refreshes the cache on
// the scheduler's cadence; Check reads the cache only, so a feed outage
// degrades to stale data instead of blocked events.
type ICSChecker struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu     sync.RWMutex
	busy   []busyInterval
	synced bool
}

// NewICSChecker returns a checker for the given ICS feed URL.
func NewICSChecker(url string, logger *slog.Logger) *ICSChecker {
	return &ICSChecker{
		url:    url,
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Sync fetches the feed and replaces the cached busy intervals. On failure
// the previous cache is kept.
func (c *ICSChecker) Sync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("calendar request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch calendar: unexpected status %d", resp.StatusCode)
	}

	busy, err := parseBusy(resp.Body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.busy = busy
	c.synced = true
	c.mu.Unlock()
	c.logger.Debug("calendar synced", "intervals", len(busy))
	return nil
}

// Check reports the first cached calendar entry overlapping the event's time
// window. A feed that has never synced is retried once; if it still fails the
// event is reported clear with a warning.
func (c *ICSChecker) Check(ctx context.Context, event *model.Event) (*Conflict, error) {
	if event.Date.IsZero() {
		return nil, nil
	}

	c.mu.RLock()
	synced := c.synced
	c.mu.RUnlock()
	if !synced {
		if err := c.Sync(ctx); err != nil {
			c.logger.Warn("calendar unavailable, treating slot as clear", "err", err)
			return nil, nil
		}
	}

	start := event.Date
	end := start.Add(assumedEventLength)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.busy {
		if b.start.Before(end) && start.Before(b.end) {
			return &Conflict{Title: b.title, Start: b.start, End: b.end}, nil
		}
	}
	return nil, nil
}

// parseBusy decodes VEVENT components into busy intervals. Cancelled entries
// and entries without a start time are skipped.
func parseBusy(r io.Reader) ([]busyInterval, error) {
	dec := ical.NewDecoder(r)
	var busy []busyInterval
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			if status := comp.Props.Get(ical.PropStatus); status != nil && status.Value == "CANCELLED" {
				continue
			}

			startProp := comp.Props.Get(ical.PropDateTimeStart)
			if startProp == nil {
				continue
			}
			start, err := startProp.DateTime(time.UTC)
			if err != nil {
				continue
			}

			end := start.Add(assumedBusyLength)
			if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
				if t, err := endProp.DateTime(time.UTC); err == nil {
					end = t
				}
			}

			title := ""
			if summary := comp.Props.Get(ical.PropSummary); summary != nil {
				title = summary.Value
			}
			busy = append(busy, busyInterval{title: title, start: start, end: end})
		}
	}
	return busy, nil
}
