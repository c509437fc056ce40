package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of the authorization engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	permissionChecks *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	roleGrants       *prometheus.CounterVec
	invalidatedTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// gets a private registry so tests can build several instances.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		permissionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_permission_checks_total",
				Help: "Permission checks by scope, verb and outcome.",
			},
			[]string{"scope", "verb", "outcome"},
		),
		tokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_token_validations_total",
				Help: "Session token validations by result.",
			},
			[]string{"result"},
		),
		roleGrants: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_role_grants_total",
				Help: "Role grant attempts by result.",
			},
			[]string{"result"},
		),
		invalidatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_invalidated_tokens_total",
			Help: "Tokens written to the invalid-token store.",
		}),
	}
	for _, c := range []prometheus.Collector{m.permissionChecks, m.tokenValidations, m.roleGrants, m.invalidatedTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) PermissionCheck(scope, verb, outcome string) {
	if m == nil {
		return
	}
	m.permissionChecks.WithLabelValues(scope, verb, outcome).Inc()
}

func (m *Metrics) TokenValidation(result string) {
	if m == nil {
		return
	}
	m.tokenValidations.WithLabelValues(result).Inc()
}

func (m *Metrics) RoleGrant(result string) {
	if m == nil {
		return
	}
	m.roleGrants.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenInvalidated() {
	if m == nil {
		return
	}
	m.invalidatedTotal.Inc()
}
