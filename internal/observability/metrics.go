package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth counters exported under /metrics.
type Metrics struct {
	loginAttempts *prometheus.CounterVec
	tokensRevoked prometheus.Counter
	resetIssued   prometheus.Counter
	resetConsumed prometheus.Counter
}

// NewMetrics registers the auth collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "communityd",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result (success, invalid, locked, error).",
		}, []string{"result"}),
		tokensRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "communityd",
			Name:      "tokens_revoked_total",
			Help:      "Session tokens revoked by logout.",
		}),
		resetIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "communityd",
			Name:      "password_reset_issued_total",
			Help:      "Password-reset tokens issued.",
		}),
		resetConsumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "communityd",
			Name:      "password_reset_consumed_total",
			Help:      "Password-reset tokens consumed successfully.",
		}),
	}
}

func (m *Metrics) LoginAttempt(result string) {
	m.loginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenRevoked() {
	m.tokensRevoked.Inc()
}

func (m *Metrics) ResetIssued() {
	m.resetIssued.Inc()
}

func (m *Metrics) ResetConsumed() {
	m.resetConsumed.Inc()
}
