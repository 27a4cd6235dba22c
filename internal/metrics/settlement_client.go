package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementTransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartinvoice",
		Subsystem: "settlement_client",
		Name:      "transfers_total",
		Help:      "Count of settlement transfer attempts by outcome.",
	}, []string{"mode", "outcome"})
	settlementTransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smartinvoice",
		Subsystem: "settlement_client",
		Name:      "transfer_duration_seconds",
		Help:      "Duration of settlement transfer attempts.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
	}, []string{"mode", "outcome"})
)

// SettlementClient tracks metrics for calls to the wallet-transfer API.
type SettlementClient struct{}

// NewSettlementClient constructs a metrics collector for settlement calls.
func NewSettlementClient() *SettlementClient {
	return &SettlementClient{}
}

// Observe records a single transfer attempt. outcome is "success" or the failure kind.
func (m SettlementClient) Observe(mode, outcome string, started time.Time) {
	if mode == "" {
		mode = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}

	settlementTransfersTotal.WithLabelValues(mode, outcome).Inc()
	settlementTransferDuration.WithLabelValues(mode, outcome).Observe(time.Since(started).Seconds())
}
