package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK               = "ok"
	outcomeInvalidAmount    = "invalid_amount"
	outcomeInsufficient     = "insufficient_balance"
	outcomeStoreUnavailable = "store_unavailable"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "points",
			Name:      "operations_total",
			Help:      "Total charge/use operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	readsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "points",
			Name:      "reads_total",
			Help:      "Total balance/history reads by outcome",
		},
		[]string{"read", "outcome"},
	)
)
