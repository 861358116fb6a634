package calendar

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/groblegark/scout/internal/model"
)

func icsFeed(lines ...string) string {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return strings.Join(all, "\r\n") + "\r\n"
}

func TestParseBusy(t *testing.T) {
	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:1",
		"SUMMARY:Swim lesson",
		"DTSTART:20250816T170000Z",
		"DTEND:20250816T180000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:2",
		"SUMMARY:Cancelled thing",
		"STATUS:CANCELLED",
		"DTSTART:20250817T170000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:3",
		"SUMMARY:No end time",
		"DTSTART:20250818T090000Z",
		"END:VEVENT",
	)

	busy, err := parseBusy(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("parseBusy: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("got %d intervals, want 2 (cancelled entry skipped)", len(busy))
	}
	if busy[0].title != "Swim lesson" {
		t.Errorf("title = %q", busy[0].title)
	}
	if got := busy[1].end.Sub(busy[1].start); got != assumedBusyLength {
		t.Errorf("missing DTEND should assume %v, got %v", assumedBusyLength, got)
	}
}

func TestCheckOverlap(t *testing.T) {
	feed := icsFeed(
		"BEGIN:VEVENT",
		"UID:1",
		"SUMMARY:Swim lesson",
		"DTSTART:20250816T170000Z",
		"DTEND:20250816T180000Z",
		"END:VEVENT",
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		io.WriteString(w, feed)
	}))
	defer srv.Close()

	c := NewICSChecker(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Starts during the lesson.
	conflicting := &model.Event{ID: "ev-1", Date: time.Date(2025, 8, 16, 17, 30, 0, 0, time.UTC)}
	conflict, err := c.Check(context.Background(), conflicting)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	if conflict.Title != "Swim lesson" {
		t.Errorf("conflict title = %q", conflict.Title)
	}

	// Same day, after the lesson ends.
	clear, err := c.Check(context.Background(), &model.Event{ID: "ev-2", Date: time.Date(2025, 8, 16, 19, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if clear != nil {
		t.Errorf("unexpected conflict: %+v", clear)
	}

	// No date means nothing to check.
	if conflict, _ := c.Check(context.Background(), &model.Event{ID: "ev-3"}); conflict != nil {
		t.Errorf("dateless event reported conflict: %+v", conflict)
	}
}

func TestCheckFeedFailureReportsClear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewICSChecker(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	conflict, err := c.Check(context.Background(), &model.Event{ID: "ev-1", Date: time.Now()})
	if err != nil {
		t.Fatalf("Check must not propagate feed errors, got %v", err)
	}
	if conflict != nil {
		t.Errorf("unexpected conflict: %+v", conflict)
	}
}

func TestSyncReplacesCache(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	c := NewICSChecker(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body = icsFeed(
		"BEGIN:VEVENT", "UID:1", "SUMMARY:Old", "DTSTART:20250816T170000Z", "DTEND:20250816T180000Z", "END:VEVENT",
	)
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	body = icsFeed()
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	conflict, err := c.Check(context.Background(), &model.Event{ID: "ev-1", Date: time.Date(2025, 8, 16, 17, 30, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if conflict != nil {
		t.Errorf("stale interval survived sync: %+v", conflict)
	}
}
