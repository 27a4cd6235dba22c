package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartinvoice",
		Subsystem: "ledger",
		Name:      "appends_total",
		Help:      "Count of ledger appends by persistence status.",
	}, []string{"status"})
	ledgerAppendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smartinvoice",
		Subsystem: "ledger",
		Name:      "append_duration_seconds",
		Help:      "Duration of ledger appends including persistence.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"status"})
	ledgerRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartinvoice",
		Subsystem: "ledger",
		Name:      "records",
		Help:      "Number of records held by the ledger.",
	})
	ledgerLoadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartinvoice",
		Subsystem: "ledger",
		Name:      "load_failures_total",
		Help:      "Count of ledger loads that fell back to an empty history.",
	})
)

// Ledger tracks metrics for ledger operations.
type Ledger struct{}

// NewLedger creates a Ledger metrics collector.
func NewLedger() *Ledger {
	return &Ledger{}
}

// ObserveAppend records an append and the resulting ledger size.
func (m Ledger) ObserveAppend(err error, size int, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ledgerAppendsTotal.WithLabelValues(status).Inc()
	ledgerAppendDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	ledgerRecords.Set(float64(size))
}

// ObserveLoad records the outcome of loading persisted history.
func (m Ledger) ObserveLoad(err error, size int) {
	if err != nil {
		ledgerLoadFailuresTotal.Inc()
	}
	ledgerRecords.Set(float64(size))
}
