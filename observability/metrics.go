package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"paylock/core/events"
	"paylock/core/types"
)

type escrowMetrics struct {
	transitions *prometheus.CounterVec
	disbursed   *prometheus.CounterVec
}

var (
	escrowMetricsOnce sync.Once
	escrowRegistry    *escrowMetrics
)

// EscrowMetrics returns the lazily-initialised metrics registry used to
// record committed escrow transitions.
func EscrowMetrics() *escrowMetrics {
	escrowMetricsOnce.Do(func() {
		escrowRegistry = &escrowMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylock",
				Subsystem: "escrow",
				Name:      "transitions_total",
				Help:      "Committed escrow state transitions segmented by event type.",
			}, []string{"event"}),
			disbursed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylock",
				Subsystem: "escrow",
				Name:      "resolved_total",
				Help:      "Resolved escrows segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			escrowRegistry.transitions,
			escrowRegistry.disbursed,
		)
	})
	return escrowRegistry
}

// eventCarrier is implemented by engine events that wrap a typed payload.
type eventCarrier interface {
	Event() *types.Event
}

// MetricsEmitter observes committed ledger transitions and records them as
// prometheus counters. It can be chained in front of another emitter so
// downstream subscribers still receive every event.
type MetricsEmitter struct {
	next events.Emitter
}

// NewMetricsEmitter wraps the supplied emitter; nil means metrics only.
func NewMetricsEmitter(next events.Emitter) *MetricsEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MetricsEmitter{next: next}
}

// Emit implements the events.Emitter interface.
func (m *MetricsEmitter) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	reg := EscrowMetrics()
	reg.transitions.WithLabelValues(evt.EventType()).Inc()
	if carrier, ok := evt.(eventCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			if outcome, ok := payload.Attributes["outcome"]; ok {
				reg.disbursed.WithLabelValues(outcome).Inc()
			}
		}
	}
	m.next.Emit(evt)
}
