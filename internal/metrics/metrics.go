package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels failed analyses (pipeline or dependency issues).
	OutcomeError = "error"
)

var (
	diagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "diagnoses_total",
			Help:      "Total number of issue diagnoses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	diagnosisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "signal_engine",
			Name:      "diagnosis_seconds",
			Help:      "Diagnosis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
	)

	correlationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "correlations_total",
			Help:      "Total number of cross-service correlations, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	correlationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "signal_engine",
			Name:      "correlation_seconds",
			Help:      "Cross-service correlation latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10, 15},
		},
	)

	queueChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "queue_checks_total",
			Help:      "Total number of outbox health checks, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	queueAnomalies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "signal_engine",
			Name:      "queue_anomalies",
			Help:      "Anomaly count observed by the most recent outbox health check.",
		},
	)

	usageScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "usage_scans_total",
			Help:      "Total number of usage anomaly scans, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches signal-engine collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		diagnosesTotal,
		diagnosisDurationSeconds,
		correlationsTotal,
		correlationDurationSeconds,
		queueChecksTotal,
		queueAnomalies,
		usageScansTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDiagnosis records a diagnosis duration and outcome label.
func ObserveDiagnosis(duration time.Duration, outcome string) {
	diagnosesTotal.WithLabelValues(normalize(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	diagnosisDurationSeconds.Observe(duration.Seconds())
}

// ObserveCorrelation records a correlation duration and outcome label.
func ObserveCorrelation(duration time.Duration, outcome string) {
	correlationsTotal.WithLabelValues(normalize(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	correlationDurationSeconds.Observe(duration.Seconds())
}

// ObserveQueueCheck records a health check outcome and its anomaly count.
func ObserveQueueCheck(anomalies int, outcome string) {
	queueChecksTotal.WithLabelValues(normalize(outcome)).Inc()
	queueAnomalies.Set(float64(anomalies))
}

// ObserveUsageScan records a usage anomaly scan outcome.
func ObserveUsageScan(outcome string) {
	usageScansTotal.WithLabelValues(normalize(outcome)).Inc()
}

func normalize(outcome string) string {
	if outcome == OutcomeError {
		return OutcomeError
	}
	return OutcomeSuccess
}
