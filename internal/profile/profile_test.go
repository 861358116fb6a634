package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Dedup.HighThreshold != 0.8 {
		t.Errorf("HighThreshold = %v, want 0.8", p.Dedup.HighThreshold)
	}
	if p.Approval.Timeout.Duration != 48*time.Hour {
		t.Errorf("Timeout = %v, want 48h", p.Approval.Timeout.Duration)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	data := `
[family]
parent_name = "Sam"
email = "sam@example.com"
phone = "+15555550100"

[[family.children]]
name = "Riley"
age = 5

[preferences]
activity_keywords = ["science", "music"]
max_cost = 30.0

[dedup]
high_threshold = 0.85

[approval]
timeout = "24h"
dispatch_cap = 3

[venue_aliases]
"exploratorium at pier 15" = "pier 15"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Family.ParentName != "Sam" {
		t.Errorf("ParentName = %q", p.Family.ParentName)
	}
	if got := p.ChildAges(); len(got) != 1 || got[0] != 5 {
		t.Errorf("ChildAges = %v", got)
	}
	if p.Dedup.HighThreshold != 0.85 {
		t.Errorf("HighThreshold = %v", p.Dedup.HighThreshold)
	}
	// Untouched tunables keep their defaults.
	if p.Dedup.LowThreshold != 0.5 {
		t.Errorf("LowThreshold = %v, want default 0.5", p.Dedup.LowThreshold)
	}
	if p.Approval.Timeout.Duration != 24*time.Hour {
		t.Errorf("Timeout = %v", p.Approval.Timeout.Duration)
	}
	if p.VenueAliases["exploratorium at pier 15"] != "pier 15" {
		t.Errorf("VenueAliases = %v", p.VenueAliases)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte("[dedup]\nhigh_threshold = 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}
