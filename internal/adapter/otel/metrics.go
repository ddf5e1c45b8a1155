package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tracescope"

// Metrics holds the session pipeline instruments.
type Metrics struct {
	TracesLoaded    metric.Int64Counter
	LoadFailures    metric.Int64Counter
	Recomputes      metric.Int64Counter
	StaleDiscarded  metric.Int64Counter
	RequestsIgnored metric.Int64Counter
	DeriveDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates the instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TracesLoaded, err = meter.Int64Counter("tracescope.traces.loaded",
		metric.WithDescription("Number of trace files loaded"))
	if err != nil {
		return nil, err
	}

	m.LoadFailures, err = meter.Int64Counter("tracescope.traces.load_failures",
		metric.WithDescription("Number of rejected trace files"))
	if err != nil {
		return nil, err
	}

	m.Recomputes, err = meter.Int64Counter("tracescope.session.recomputes",
		metric.WithDescription("Number of committed recomputations"))
	if err != nil {
		return nil, err
	}

	m.StaleDiscarded, err = meter.Int64Counter("tracescope.session.stale_discarded",
		metric.WithDescription("Recomputations discarded because a newer edit superseded them"))
	if err != nil {
		return nil, err
	}

	m.RequestsIgnored, err = meter.Int64Counter("tracescope.filter.requests_ignored",
		metric.WithDescription("Requests hidden by filter groups"))
	if err != nil {
		return nil, err
	}

	m.DeriveDuration, err = meter.Float64Histogram("tracescope.session.derive_duration_seconds",
		metric.WithDescription("Time to derive timeline, diagram and insights"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordIgnored adds the per-group ignored request counts.
func (m *Metrics) RecordIgnored(ctx context.Context, counts map[string]int) {
	if m == nil {
		return
	}
	for group, n := range counts {
		if n > 0 {
			m.RequestsIgnored.Add(ctx, int64(n), metric.WithAttributes(attribute.String("group", group)))
		}
	}
}

// RecordDerive records one committed or discarded recomputation.
func (m *Metrics) RecordDerive(ctx context.Context, elapsed time.Duration, committed bool) {
	if m == nil {
		return
	}
	m.DeriveDuration.Record(ctx, elapsed.Seconds())
	if committed {
		m.Recomputes.Add(ctx, 1)
	} else {
		m.StaleDiscarded.Add(ctx, 1)
	}
}

// RecordLoad counts a trace load attempt.
func (m *Metrics) RecordLoad(ctx context.Context, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.LoadFailures.Add(ctx, 1)
		return
	}
	m.TracesLoaded.Add(ctx, 1)
}
