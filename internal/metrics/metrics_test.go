package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRegisterAndServe(t *testing.T) {
	m := New()

	m.EventsDiscovered.Add(3)
	m.ApprovalsSent.WithLabelValues("sms").Inc()
	m.SafetyViolations.Inc()

	if got := testutil.ToFloat64(m.EventsDiscovered); got != 3 {
		t.Errorf("events discovered = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.ApprovalsSent.WithLabelValues("sms")); got != 1 {
		t.Errorf("approvals sent (sms) = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "scout_events_discovered_total 3") {
		t.Errorf("exposition missing discovered counter:\n%s", body)
	}
	if !strings.Contains(body, `scout_approvals_sent_total{channel="sms"} 1`) {
		t.Errorf("exposition missing channel counter:\n%s", body)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide; each owns its registry.
	a := New()
	b := New()
	a.SafetyViolations.Inc()
	if got := testutil.ToFloat64(b.SafetyViolations); got != 0 {
		t.Errorf("counter leaked across registries: %v", got)
	}
}
