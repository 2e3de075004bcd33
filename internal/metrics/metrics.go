package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flywheel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flywheel_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flywheel_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Engine metrics
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flywheel_operations_total",
			Help: "Total number of flywheel operations by outcome code",
		},
		[]string{"operation", "code"},
	)

	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flywheel_execution_duration_seconds",
			Help:    "Duration of flywheel execution cycles in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
		},
	)

	DistributedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flywheel_distributed_amount_total",
			Help: "Smallest-unit amounts moved by the flywheel, by destination",
		},
		[]string{"destination"},
	)

	VaultBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flywheel_vault_balance_tokens",
			Help: "Current fee vault balance in whole tokens",
		},
	)

	TokenSupply = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flywheel_token_supply_tokens",
			Help: "Token supply after the most recent burn, in whole tokens",
		},
	)

	// Keeper metrics
	KeeperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flywheel_keeper_runs_total",
			Help: "Total number of scheduled keeper runs by outcome code",
		},
		[]string{"code"},
	)
)

// Destinations for DistributedAmount.
const (
	DestinationDeposit  = "deposit"
	DestinationBuyback  = "buyback"
	DestinationBurn     = "burn"
	DestinationLpAdd    = "lp_add"
	DestinationWithdraw = "withdraw"
)
