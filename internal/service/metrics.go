package service

import "github.com/prometheus/client_golang/prometheus"

var (
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puffit_registrations_total",
			Help: "Registration attempts by outcome.",
		},
		[]string{"outcome"},
	)
	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puffit_email_verifications_total",
			Help: "Email verification attempts by outcome.",
		},
		[]string{"outcome"},
	)
	PendingSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "puffit_pending_users_swept_total",
			Help: "Expired pending registrations removed by the sweeper.",
		},
	)
)

func RegisterMetrics(registry prometheus.Registerer) {
	registry.MustRegister(RegistrationsTotal, VerificationsTotal, PendingSweptTotal)
}
