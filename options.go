// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// defaultDropLogRates limits drop warnings, per looper and reason.
var defaultDropLogRates = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 100,
}

// looperOptions holds configuration options for Looper creation.
type looperOptions struct {
	logger         *logiface.Logger[logiface.Event]
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	dropLogRates   map[time.Duration]int
}

// --- Looper Options ---

// Option configures a Looper instance.
type Option interface {
	applyLooper(*looperOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLooperFunc func(*looperOptions) error
}

func (o *optionImpl) applyLooper(opts *looperOptions) error {
	return o.applyLooperFunc(opts)
}

// WithLogger sets the logger used by the Looper. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *looperOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMeterProvider sets the OpenTelemetry meter provider used to record
// message and queue metrics. Defaults to the global provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return &optionImpl{func(opts *looperOptions) error {
		if provider == nil {
			return wrapError(ErrInvalidParameter, "nil meter provider")
		}
		opts.meterProvider = provider
		return nil
	}}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used to record a
// span per dispatched message. Defaults to the global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return &optionImpl{func(opts *looperOptions) error {
		if provider == nil {
			return wrapError(ErrInvalidParameter, "nil tracer provider")
		}
		opts.tracerProvider = provider
		return nil
	}}
}

// WithDropLogRates configures how often warnings about dropped messages may
// be logged, per reason, as sliding windows of maximum counts (see
// catrate.NewLimiter). An empty map disables the limit.
func WithDropLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *looperOptions) error {
		if len(rates) != 0 {
			if err := validateRates(rates); err != nil {
				return err
			}
		}
		opts.dropLogRates = rates
		return nil
	}}
}

// resolveOptions applies Option instances to looperOptions.
func resolveOptions(opts []Option) (*looperOptions, error) {
	cfg := &looperOptions{
		dropLogRates: defaultDropLogRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLooper(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = otel.GetMeterProvider()
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}
	return cfg, nil
}

// newDropLimiter builds the limiter for drop warnings, or nil if unlimited.
func (o *looperOptions) newDropLimiter() *catrate.Limiter {
	if len(o.dropLogRates) == 0 {
		return nil
	}
	return catrate.NewLimiter(o.dropLogRates)
}

// validateRates applies the same rules as catrate: positive windows and
// counts, with longer windows allowing more events at a lower rate.
func validateRates(rates map[time.Duration]int) error {
	for d, n := range rates {
		if d <= 0 || n <= 0 {
			return wrapError(ErrInvalidParameter, "invalid drop log rate %d per %s", n, d)
		}
		for d2, n2 := range rates {
			if d2 <= d {
				continue
			}
			if n >= n2 || float64(n)/float64(d) <= float64(n2)/float64(d2) {
				return wrapError(ErrInvalidParameter, "drop log rate %d per %s conflicts with %d per %s", n, d, n2, d2)
			}
		}
	}
	return nil
}
