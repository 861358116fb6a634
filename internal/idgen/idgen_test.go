package idgen

import (
	"strings"
	"testing"
)

func TestEventID(t *testing.T) {
	id, err := Event()
	if err != nil {
		t.Fatalf("Event() error: %v", err)
	}
	if !strings.HasPrefix(id, EventPrefix) {
		t.Errorf("id %q missing prefix %q", id, EventPrefix)
	}
	if len(id) != len(EventPrefix)+Length {
		t.Errorf("id %q has wrong length", id)
	}
}

func TestApprovalIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id, err := Approval()
		if err != nil {
			t.Fatalf("Approval() error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
