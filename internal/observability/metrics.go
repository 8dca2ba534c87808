package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Membership operations.
const (
	OperationSignUp     = "signup"
	OperationUnregister = "unregister"
)

// Membership outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var (
	membershipCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "membership",
		Name:      "requests_total",
		Help:      "Roster change requests grouped by operation and outcome.",
	}, []string{"operation", "outcome"})
	membershipChangeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "membership",
		Name:      "last_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent applied roster change.",
	})
	seededGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "bootstrap",
		Name:      "seeded_activities",
		Help:      "Number of activities inserted by the startup bootstrap.",
	})
)

func init() {
	prometheus.MustRegister(membershipCounter, membershipChangeGauge, seededGauge)
}

// RecordMembership counts a roster change request.
func RecordMembership(operation, outcome string) {
	membershipCounter.WithLabelValues(operation, outcome).Inc()
	if outcome == OutcomeOK {
		membershipChangeGauge.Set(float64(time.Now().Unix()))
	}
}

// RecordSeeded reports how many activities the bootstrap inserted.
func RecordSeeded(n int) {
	seededGauge.Set(float64(n))
}

// MembershipCount returns the current counter for tests and diagnostics.
func MembershipCount(operation, outcome string) prometheus.Counter {
	return membershipCounter.WithLabelValues(operation, outcome)
}
