package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	creditsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_transactions_applied_total",
		Help: "Ledger transactions committed, by kind.",
	}, []string{"kind"})

	creditsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_transactions_denied_total",
		Help: "Ledger debits rejected for insufficient credits, by kind.",
	}, []string{"kind"})

	giftLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gift_lines_total",
		Help: "Gift lines processed, by outcome.",
	}, []string{"outcome"})

	fanPostUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fan_post_unlocks_total",
		Help: "Fan post unlock attempts, by outcome.",
	}, []string{"outcome"})

	reconciliationDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reconciliation_drift_total",
		Help: "Reconciliation reports that found a non-zero drift.",
	})
)
