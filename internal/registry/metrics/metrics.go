package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
// All methods are safe on a nil receiver so metrics stay optional.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	FeesCollected     prometheus.Counter
	FeesWithdrawn     prometheus.Counter
	OutboxPublished   prometheus.Counter
	OutboxFailures    prometheus.Counter
}

// New creates the registry metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sns_registry_operations_total",
			Help: "Registry operations by operation and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sns_registry_operation_duration_seconds",
			Help:    "Duration of registry operations including the substrate commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		FeesCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sns_registry_fees_collected_total",
			Help: "Fee units moved into registry custody by register and renew",
		}),
		FeesWithdrawn: factory.NewCounter(prometheus.CounterOpts{
			Name: "sns_registry_fees_withdrawn_total",
			Help: "Fee units moved from custody to the treasury",
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "sns_registry_outbox_published_total",
			Help: "Registry events relayed to the broker",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sns_registry_outbox_failures_total",
			Help: "Failed outbox relay attempts",
		}),
	}
}

// ObserveOperation records one operation outcome and its duration.
// Call with time.Now() taken at the start of the operation.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddFeesCollected(amount uint64) {
	if m == nil {
		return
	}
	m.FeesCollected.Add(float64(amount))
}

func (m *Metrics) AddFeesWithdrawn(amount uint64) {
	if m == nil {
		return
	}
	m.FeesWithdrawn.Add(float64(amount))
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m == nil {
		return
	}
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncOutboxFailures() {
	if m == nil {
		return
	}
	m.OutboxFailures.Inc()
}
