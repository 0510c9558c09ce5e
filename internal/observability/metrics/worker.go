package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type WorkerMetrics struct {
	registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	retentionTotal  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	r := newRegistry()
	return &WorkerMetrics{
		registry: r,

		processTotal: r.counter("worker", "analysis_process_total",
			"Total processed analysis requests by outcome (risk status or error kind).", "service", "outcome"),
		processDuration: r.histogram("worker", "analysis_process_duration_seconds",
			"Analysis processing duration in seconds by result.", analysisBuckets, "service", "result"),
		processInFlight: r.gauge("worker", "analysis_process_in_flight",
			"Number of in-flight analysis processing tasks.", service),
		queueLag: r.histogram("worker", "queue_lag_seconds",
			"Delay between upload and processing start.", lagBuckets, "service"),
		retentionTotal: r.counter("retention", "removed_total",
			"Entries removed by retention runs by target.", "service", "target"),
	}
}

func (m *WorkerMetrics) StartAnalysis() {
	m.processInFlight.Inc()
}

// FinishAnalysis must pair with StartAnalysis.
func (m *WorkerMetrics) FinishAnalysis(service, outcome string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	result := "success"
	if err != nil {
		result = "error"
	}
	if outcome == "" {
		outcome = result
	}
	m.processTotal.WithLabelValues(service, outcome).Inc()
	m.processDuration.WithLabelValues(service, result).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordRetention(service string, scratchRemoved, recordsRemoved int) {
	m.retentionTotal.WithLabelValues(service, "scratch").Add(float64(scratchRemoved))
	m.retentionTotal.WithLabelValues(service, "records").Add(float64(recordsRemoved))
}
