package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access module.
type Metrics struct {
	GrantsIssued    prometheus.Counter
	GrantsRevoked   prometheus.Counter
	EmergencyGrants prometheus.Counter
	ChecksDenied    prometheus.Counter
}

// New creates a Metrics instance with all access module metrics registered.
func New() *Metrics {
	return &Metrics{
		GrantsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_grants_issued_total",
			Help: "Total number of consensual access grants",
		}),
		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_grants_revoked_total",
			Help: "Total number of access revocations",
		}),
		EmergencyGrants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_emergency_grants_total",
			Help: "Total number of emergency access grants",
		}),
		ChecksDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_access_checks_denied_total",
			Help: "Total number of failed permission checks",
		}),
	}
}
