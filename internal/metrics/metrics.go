// Package metrics is the observability hook injected into the throttle
// engine and the login orchestrator. Emission is directed per environment
// by whoever builds the registry; the services just count.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	LoginAttempts        *prometheus.CounterVec
	BansIssued           *prometheus.CounterVec
	SessionRotations     prometheus.Counter
	SessionInvalidations prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	return &Metrics{
		Registry: reg,
		LoginAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_login_attempts_total",
			Help: "Login attempts by result (success, failed, banned).",
		}, []string{"result"}),
		BansIssued: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_bans_issued_total",
			Help: "Temporary bans issued, by subject kind (ip, account).",
		}, []string{"kind"}),
		SessionRotations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_session_rotations_total",
			Help: "Successful persistent session token rotations.",
		}),
		SessionInvalidations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_session_invalidations_total",
			Help: "Mass session invalidations triggered by identifier mismatch.",
		}),
	}
}
