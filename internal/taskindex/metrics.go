package taskindex

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/taskboard/internal/parser"
)

const (
	resultChanged   = "changed"
	resultUnchanged = "unchanged"
	resultIgnored   = "ignored"
)

type metricsProvider struct {
	events   *prometheus.CounterVec
	failures *prometheus.CounterVec
	size     prometheus.Gauge
}

func newMetricsProvider(registry *prometheus.Registry) *metricsProvider {
	if registry == nil {
		return nil
	}

	provider := &metricsProvider{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskindex_events_total",
				Help: "Total number of file events handled by kind and result",
			},
			[]string{"kind", "result"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskindex_file_failures_total",
				Help: "Total number of task files left out of the index by reason",
			},
			[]string{"reason"},
		),
		size: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskindex_tasks",
				Help: "Number of tasks currently indexed",
			},
		),
	}

	registry.MustRegister(
		provider.events,
		provider.failures,
		provider.size,
	)

	return provider
}

func (p *metricsProvider) IncrementEvent(kind, result string) {
	if p != nil && p.events != nil {
		p.events.WithLabelValues(kind, result).Inc()
	}
}

func (p *metricsProvider) IncrementFailure(reason string) {
	if p != nil && p.failures != nil {
		p.failures.WithLabelValues(reason).Inc()
	}
}

func (p *metricsProvider) SetSize(n int) {
	if p != nil && p.size != nil {
		p.size.Set(float64(n))
	}
}

func changedResult(changed bool) string {
	if changed {
		return resultChanged
	}
	return resultUnchanged
}

// failureReason maps a read or parse error to a metric label.
func failureReason(err error) string {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case parser.KindNoMetadata:
			return "no_metadata"
		case parser.KindMissingField:
			return "missing_field"
		case parser.KindInvalidFormat:
			return "invalid_format"
		case parser.KindOutOfRange:
			return "out_of_range"
		case parser.KindInvalidRange:
			return "invalid_range"
		}
		return "parse"
	}
	return "io"
}
