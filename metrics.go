package looper

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// instrumentationName identifies this package to OpenTelemetry.
const instrumentationName = "github.com/joeycumines/go-looper"

// looperMetrics records message lifecycle metrics for one looper.
//
// Instruments are created per looper, and share the looper.name attribute.
// Instruments that fail to be created fall back to no-ops, after logging.
type looperMetrics struct {
	posted     metric.Int64Counter
	dispatched metric.Int64Counter
	dropped    metric.Int64Counter
	removed    metric.Int64Counter
	depth      metric.Int64UpDownCounter
	delay      metric.Float64Histogram
	name       attribute.KeyValue
	attrs      metric.MeasurementOption
}

func (l *Looper) newMetrics(provider metric.MeterProvider) *looperMetrics {
	meter := provider.Meter(instrumentationName)
	m := &looperMetrics{
		name: attribute.String("looper.name", l.name),
	}
	m.attrs = metric.WithAttributeSet(attribute.NewSet(m.name))

	var err error
	if m.posted, err = meter.Int64Counter("looper.messages.posted",
		metric.WithDescription("Number of messages accepted onto the queue"),
		metric.WithUnit("{message}"),
	); err != nil {
		l.logInstrumentError("looper.messages.posted", err)
		m.posted = noop.Int64Counter{}
	}
	if m.dispatched, err = meter.Int64Counter("looper.messages.dispatched",
		metric.WithDescription("Number of messages dispatched to their handler"),
		metric.WithUnit("{message}"),
	); err != nil {
		l.logInstrumentError("looper.messages.dispatched", err)
		m.dispatched = noop.Int64Counter{}
	}
	if m.dropped, err = meter.Int64Counter("looper.messages.dropped",
		metric.WithDescription("Number of messages discarded without dispatch"),
		metric.WithUnit("{message}"),
	); err != nil {
		l.logInstrumentError("looper.messages.dropped", err)
		m.dropped = noop.Int64Counter{}
	}
	if m.removed, err = meter.Int64Counter("looper.messages.removed",
		metric.WithDescription("Number of queued messages removed before dispatch"),
		metric.WithUnit("{message}"),
	); err != nil {
		l.logInstrumentError("looper.messages.removed", err)
		m.removed = noop.Int64Counter{}
	}
	if m.depth, err = meter.Int64UpDownCounter("looper.queue.depth",
		metric.WithDescription("Number of messages waiting in the queue"),
		metric.WithUnit("{message}"),
	); err != nil {
		l.logInstrumentError("looper.queue.depth", err)
		m.depth = noop.Int64UpDownCounter{}
	}
	if m.delay, err = meter.Float64Histogram("looper.dispatch.delay",
		metric.WithDescription("Time between a message's scheduled time and the start of its dispatch"),
		metric.WithUnit("ms"),
	); err != nil {
		l.logInstrumentError("looper.dispatch.delay", err)
		m.delay = noop.Float64Histogram{}
	}

	return m
}

func (l *Looper) logInstrumentError(name string, err error) {
	l.withLooper(l.logger.Warning()).
		Str("instrument", name).
		Err(err).
		Log("looper: failed to create metric instrument")
}

func (m *looperMetrics) recordPosted() {
	ctx := context.Background()
	m.posted.Add(ctx, 1, m.attrs)
	m.depth.Add(ctx, 1, m.attrs)
}

// recordDequeued accounts for n messages leaving the queue, removed or
// drained, without dispatch.
func (m *looperMetrics) recordDequeued(n int, removed bool, reason string) {
	if n == 0 {
		return
	}
	ctx := context.Background()
	m.depth.Add(ctx, -int64(n), m.attrs)
	if removed {
		m.removed.Add(ctx, int64(n), m.attrs)
	} else {
		m.dropped.Add(ctx, int64(n), metric.WithAttributes(m.name, attribute.String("reason", reason)))
	}
}

// recordRejected accounts for a message that never entered the queue.
func (m *looperMetrics) recordRejected(reason string) {
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(m.name, attribute.String("reason", reason)))
}

// recordDispatch accounts for a message popped for dispatch, late by the
// given amount.
func (m *looperMetrics) recordDispatch(late time.Duration) {
	ctx := context.Background()
	m.depth.Add(ctx, -1, m.attrs)
	m.dispatched.Add(ctx, 1, m.attrs)
	m.delay.Record(ctx, float64(late)/float64(time.Millisecond), m.attrs)
}
