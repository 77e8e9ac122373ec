package metrics

import (
	"strconv"
	"time"

	"paygate/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements ports.Collector with Prometheus collectors.
type Prometheus struct {
	admissions        *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec
	dispatches        *prometheus.CounterVec
	dispatchLatency   *prometheus.HistogramVec
}

// NewPrometheus creates the collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Invocations by terminal admission state and error code",
			},
			[]string{"operation", "state", "code"},
		),
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Settlement attempts by outcome",
			},
			[]string{"outcome"},
		),
		settlementLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settlement_duration_seconds",
				Help:      "Settlement latency in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Dispatched operations by result",
			},
			[]string{"operation", "failed"},
		),
		dispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Operation execution latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Register registers all collectors with registry.
func (p *Prometheus) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.admissions,
		p.settlements,
		p.settlementLatency,
		p.dispatches,
		p.dispatchLatency,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prometheus) RecordAdmission(operation string, state domain.AdmissionState, code string) {
	p.admissions.WithLabelValues(operation, string(state), code).Inc()
}

func (p *Prometheus) RecordSettlement(outcome string, duration time.Duration) {
	p.settlements.WithLabelValues(outcome).Inc()
	p.settlementLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *Prometheus) RecordDispatch(operation string, failed bool, duration time.Duration) {
	p.dispatches.WithLabelValues(operation, strconv.FormatBool(failed)).Inc()
	p.dispatchLatency.WithLabelValues(operation).Observe(duration.Seconds())
}
