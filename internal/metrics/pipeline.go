// Package metrics exposes application metrics collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartinvoice",
		Subsystem: "pipeline",
		Name:      "decisions_total",
		Help:      "Count of processed documents by terminal status and stage.",
	}, []string{"status", "stage"})

	pipelineConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "smartinvoice",
		Subsystem: "pipeline",
		Name:      "confidence",
		Help:      "Confidence score assigned to processed documents.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11), // 0..100
	})

	pipelineProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smartinvoice",
		Subsystem: "pipeline",
		Name:      "process_duration_seconds",
		Help:      "Duration of processing a single document end to end.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)

// Pipeline tracks metrics for the verification pipeline.
type Pipeline struct{}

// NewPipeline constructs a Pipeline collector.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// ObserveDecision records the terminal outcome of one document. stage names the
// step that decided the outcome (scoring, settlement, internal).
func (m Pipeline) ObserveDecision(status, stage string, confidence int, started time.Time) {
	if status == "" {
		status = "unknown"
	}
	if stage == "" {
		stage = "unknown"
	}
	pipelineDecisionsTotal.WithLabelValues(status, stage).Inc()
	pipelineConfidence.Observe(float64(confidence))
	pipelineProcessDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}
