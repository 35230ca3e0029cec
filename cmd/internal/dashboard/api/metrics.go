package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth counters. Outcome labels stay low-cardinality: "ok" plus a small set
// of failure classes.
var (
	metricSignups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subdash_auth_signups_total",
		Help: "Signup attempts by outcome.",
	}, []string{"outcome"})

	metricLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subdash_auth_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	metricResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subdash_auth_reset_requests_total",
		Help: "Accepted password-reset requests.",
	})

	metricExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subdash_sessions_expired_total",
		Help: "Sessions force-logged-out by the idle timeout.",
	})

	metricGateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subdash_gate_denials_total",
		Help: "Page-gate denials by page class.",
	}, []string{"page"})

	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subdash_sessions_active",
		Help: "Session registry entries currently alive.",
	})
)

func outcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
