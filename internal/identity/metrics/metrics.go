package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module.
type Metrics struct {
	UsersRegistered   *prometheus.CounterVec
	RegisterRejected  *prometheus.CounterVec
	CredentialChecks  prometheus.Counter
	CredentialFailed  prometheus.Counter
}

// New creates a Metrics instance with all identity module metrics registered.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthexchange_users_registered_total",
			Help: "Total number of users registered, by role",
		}, []string{"role"}),
		RegisterRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthexchange_register_rejected_total",
			Help: "Total number of rejected registrations, by error code",
		}, []string{"code"}),
		CredentialChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_credential_checks_total",
			Help: "Total number of credential verification attempts",
		}),
		CredentialFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_credential_failures_total",
			Help: "Total number of failed credential verifications",
		}),
	}
}

// IncrementRegistered records a successful registration.
func (m *Metrics) IncrementRegistered(role string) {
	m.UsersRegistered.WithLabelValues(role).Inc()
}

// IncrementRejected records a rejected registration.
func (m *Metrics) IncrementRejected(code string) {
	m.RegisterRejected.WithLabelValues(code).Inc()
}
