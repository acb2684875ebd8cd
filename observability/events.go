package observability

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"creditledger/core/events"
	"creditledger/core/types"
	"creditledger/observability/logging"
)

type eventMetrics struct {
	ledger *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			ledger: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.ledger)
	})
	return eventRegistry
}

// Record increments the counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.ledger.WithLabelValues(eventType).Inc()
}

type attributed interface {
	Event() *types.Event
}

// EventSink logs and counts every ledger event it receives. Attribute values
// go through the logging redaction allowlist.
type EventSink struct {
	logger  *slog.Logger
	metrics *eventMetrics
}

// NewEventSink returns an emitter that writes events to logger.
func NewEventSink(logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{logger: logger, metrics: Events()}
}

// Emit implements events.Emitter.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	s.metrics.Record(evt.EventType())
	args := []any{slog.String("type", evt.EventType())}
	if withAttrs, ok := evt.(attributed); ok {
		if payload := withAttrs.Event(); payload != nil {
			args = append(args, logging.Fields(payload.Attributes)...)
		}
	}
	s.logger.Info("ledger event", args...)
}
