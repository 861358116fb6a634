// Package metrics exposes pipeline counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's counters on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsDiscovered prometheus.Counter
	EventsMerged     prometheus.Counter
	EventsScored     prometheus.Counter

	ApprovalsSent    *prometheus.CounterVec
	ApprovalsDecided *prometheus.CounterVec
	ApprovalsExpired prometheus.Counter

	RegistrationsBooked  prometheus.Counter
	RegistrationsFailed  prometheus.Counter
	SafetyViolations     prometheus.Counter
	CalendarConflicts    prometheus.Counter
	SweepErrors          *prometheus.CounterVec
}

// New builds and registers the counter set.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.EventsDiscovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "events_discovered_total",
		Help:      "Raw events reported by scrapers",
	})
	m.EventsMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "events_merged_total",
		Help:      "Duplicate records merged into a canonical event",
	})
	m.EventsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "events_scored_total",
		Help:      "Canonical events scored",
	})
	m.ApprovalsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "approvals_sent_total",
		Help:      "Approval requests dispatched by channel",
	}, []string{"channel"})
	m.ApprovalsDecided = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "approvals_decided_total",
		Help:      "Approval responses resolved by decision",
	}, []string{"decision"})
	m.ApprovalsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "approvals_expired_total",
		Help:      "Approval requests that timed out unanswered",
	})
	m.RegistrationsBooked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "registrations_booked_total",
		Help:      "Automated registrations confirmed",
	})
	m.RegistrationsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "registrations_failed_total",
		Help:      "Automated registration attempts that failed",
	})
	m.SafetyViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "safety_violations_total",
		Help:      "Registration attempts refused by the payment guard",
	})
	m.CalendarConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "calendar_conflicts_total",
		Help:      "Approved events that overlapped an existing calendar entry",
	})
	m.SweepErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Name:      "sweep_errors_total",
		Help:      "Scheduled task runs that returned an error",
	}, []string{"task"})

	m.registry.MustRegister(
		m.EventsDiscovered, m.EventsMerged, m.EventsScored,
		m.ApprovalsSent, m.ApprovalsDecided, m.ApprovalsExpired,
		m.RegistrationsBooked, m.RegistrationsFailed,
		m.SafetyViolations, m.CalendarConflicts, m.SweepErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
