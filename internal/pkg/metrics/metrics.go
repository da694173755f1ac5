// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts transfer outcomes by direction.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_transfers_total",
		Help: "Wallet/game transfers by direction and outcome.",
	}, []string{"direction", "outcome"})

	// CompensationsTotal counts compensating reversals and their outcome.
	CompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_transfer_compensations_total",
		Help: "Compensating ledger reversals after remote-leg failures.",
	}, []string{"outcome"})

	// GameDBPoolResets counts breaker-driven connection pool resets.
	GameDBPoolResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_gamedb_pool_resets_total",
		Help: "Game database pool resets triggered by the overload breaker.",
	})

	// WebhookEventsTotal counts webhook processing outcomes per provider.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_webhook_events_total",
		Help: "Payment webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})

	// FraudAttemptsTotal counts rejected webhook deliveries per provider and kind.
	FraudAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_fraud_attempts_total",
		Help: "Webhook verification failures by provider and failure kind.",
	}, []string{"provider", "kind"})

	// ReconciledOrdersTotal counts orders recovered by the reconciliation sweep.
	ReconciledOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_reconciled_orders_total",
		Help: "Pending payment orders concluded by the pull-based sweep.",
	})
)
