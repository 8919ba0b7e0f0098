package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed monitoring cycles.
	OutcomeSuccess = "success"
	// OutcomeError labels cycles that failed before completing the fleet pass.
	OutcomeError = "error"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetguard_predict",
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fleetguard_predict",
			Name:      "cycle_seconds",
			Help:      "Full fleet pass latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetguard_predict",
			Name:      "predictions_total",
			Help:      "Qualifying predictions emitted, partitioned by confidence.",
		},
		[]string{"confidence"},
	)

	instancesChecked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fleetguard_predict",
			Name:      "instances_checked",
			Help:      "Instances analyzed during the most recent cycle.",
		},
	)
)

// Register attaches the collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleDurationSeconds,
		predictionsTotal,
		instancesChecked,
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

// ObserveCycle records a cycle duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	cyclesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// RecordPrediction counts an emitted prediction by confidence tier.
func RecordPrediction(confidence string) {
	predictionsTotal.WithLabelValues(confidence).Inc()
}

// SetInstancesChecked publishes the size of the last fleet pass.
func SetInstancesChecked(count int) {
	instancesChecked.Set(float64(count))
}
