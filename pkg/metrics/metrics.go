package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth counters. Labels stay low-cardinality: outcome enums only, never
// identities or IPs.
var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkwell",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by terminal outcome.",
	}, []string{"outcome"})

	MFAVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkwell",
		Subsystem: "auth",
		Name:      "mfa_verifications_total",
		Help:      "TOTP verifications by result.",
	}, []string{"result"})

	AccountLockouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inkwell",
		Subsystem: "auth",
		Name:      "account_lockouts_total",
		Help:      "Accounts auto-locked after exceeding the failed-attempt budget.",
	})

	RateLimitTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkwell",
		Subsystem: "ratelimit",
		Name:      "trips_total",
		Help:      "Requests rejected by the adaptive rate limiter, per route class.",
	}, []string{"class"})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inkwell",
		Subsystem: "audit",
		Name:      "dropped_entries_total",
		Help:      "Audit entries dropped because the sink buffer was full.",
	})
)
