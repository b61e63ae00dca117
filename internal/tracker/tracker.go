// Package tracker runs the localization pipeline: dataset to delays, delays to
// an estimated path, path to a plotting viewport.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tdoa-tracker/internal/dataset"
	"tdoa-tracker/internal/observability"
	"tdoa-tracker/internal/tdoa"
)

// Config holds the configuration for a tracker run
type Config struct {
	SignalSpeed   float64        // Propagation speed (distance units per second)
	ErrorFraction float64        // Fractional range error (0-1)
	Padding       float64        // Viewport margin
	Algorithm     tdoa.Algorithm // Trilateration algorithm
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Result holds everything computed for one dataset
type Result struct {
	Source         string                `json:"source"`
	Sensors        tdoa.Sensors          `json:"sensors"`
	Track          []tdoa.Point2D        `json:"track,omitempty"`
	Delays         []tdoa.DelayRow       `json:"timestamps"`
	Path           []tdoa.EstimatedPoint `json:"path"`
	Viewport       tdoa.Viewport         `json:"viewport"`
	Origin         *dataset.GeoOrigin    `json:"origin,omitempty"`
	Algorithm      tdoa.Algorithm        `json:"algorithm"`
	SignalSpeed    float64               `json:"signal_speed"`
	ErrorFraction  float64               `json:"error_fraction"`
	Padding        float64               `json:"padding"`
	ProcessingTime time.Time             `json:"processing_time"`
	Duration       time.Duration         `json:"duration"`
}

// Empty reports whether no positions were estimated
func (r *Result) Empty() bool {
	return len(r.Path) == 0
}

// Tracker turns datasets into estimated paths
type Tracker struct {
	config Config
	log    *slog.Logger
	tracer trace.Tracer
}

// NewTracker creates a tracker with the given configuration
func NewTracker(config Config) (*Tracker, error) {
	if config.SignalSpeed <= 0 {
		return nil, fmt.Errorf("%w: signal speed must be positive", tdoa.ErrInvalidParameter)
	}
	if config.ErrorFraction < 0.0 || config.ErrorFraction > 1.0 {
		return nil, fmt.Errorf("%w: error fraction must be between 0.0 and 1.0", tdoa.ErrInvalidParameter)
	}
	if config.Padding < 0 {
		return nil, fmt.Errorf("%w: padding must be non-negative", tdoa.ErrInvalidParameter)
	}
	if config.Algorithm == "" {
		config.Algorithm = tdoa.ClosedForm
	}
	if _, err := tdoa.ParseAlgorithm(string(config.Algorithm)); err != nil {
		return nil, err
	}

	log := config.Logger
	if log == nil {
		log = observability.Discard()
	}

	return &Tracker{
		config: config,
		log:    log.With("component", "tracker"),
		tracer: observability.Tracer(),
	}, nil
}

// Run computes delays, the estimated path and the viewport for a dataset.
// A dataset without track points yields an empty path, not an error.
func (t *Tracker) Run(ctx context.Context, ds *dataset.Dataset) (result *Result, err error) {
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "tracker.Run", trace.WithAttributes(
		attribute.String("source", ds.Source),
		attribute.String("algorithm", string(t.config.Algorithm)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			t.config.Metrics.RecordFailure(err)
		}
		span.End()
	}()

	sensors := ds.Sensors()
	result = &Result{
		Source:        ds.Source,
		Sensors:       sensors,
		Origin:        ds.Origin,
		Algorithm:     t.config.Algorithm,
		SignalSpeed:   t.config.SignalSpeed,
		ErrorFraction: t.config.ErrorFraction,
		Padding:       t.config.Padding,
	}

	if ds.HasMeasuredDelays() {
		t.log.Debug("using measured delays", "rows", len(ds.Timestamps))
		result.Delays = append([]tdoa.DelayRow(nil), ds.Timestamps...)
	} else {
		result.Track = ds.Track()
		result.Delays, err = t.estimateDelays(ctx, result.Track, sensors)
		if err != nil {
			return nil, err
		}
	}

	if len(result.Delays) == 0 {
		t.log.Warn("dataset has no transmitter positions", "source", ds.Source)
	}

	result.Path, err = t.solve(ctx, result.Delays, sensors)
	if err != nil {
		return nil, err
	}

	result.Viewport, err = t.viewport(ctx, sensors, result.Path)
	if err != nil {
		return nil, err
	}

	result.ProcessingTime = time.Now()
	result.Duration = time.Since(start)
	t.config.Metrics.AddSolved(len(result.Path))
	t.config.Metrics.ObserveStage("total", start)

	t.log.Info("path estimated",
		"source", ds.Source,
		"points", len(result.Path),
		"algorithm", string(t.config.Algorithm),
		"duration", result.Duration,
	)
	return result, nil
}

func (t *Tracker) estimateDelays(ctx context.Context, track []tdoa.Point2D, sensors tdoa.Sensors) ([]tdoa.DelayRow, error) {
	start := time.Now()
	_, span := t.tracer.Start(ctx, "tdoa.EstimateDelays", trace.WithAttributes(attribute.Int("points", len(track))))
	defer span.End()

	delays, err := tdoa.EstimateDelays(track, sensors, t.config.SignalSpeed)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate delays: %w", err)
	}
	t.config.Metrics.ObserveStage("delays", start)
	return delays, nil
}

func (t *Tracker) solve(ctx context.Context, delays []tdoa.DelayRow, sensors tdoa.Sensors) ([]tdoa.EstimatedPoint, error) {
	start := time.Now()
	_, span := t.tracer.Start(ctx, "tdoa.Solve", trace.WithAttributes(attribute.Int("rows", len(delays))))
	defer span.End()

	path, err := tdoa.SolveWith(t.config.Algorithm, delays, sensors, t.config.SignalSpeed, t.config.ErrorFraction)
	if err != nil {
		return nil, fmt.Errorf("failed to trilaterate: %w", err)
	}
	t.config.Metrics.ObserveStage("solve", start)
	return path, nil
}

func (t *Tracker) viewport(ctx context.Context, sensors tdoa.Sensors, path []tdoa.EstimatedPoint) (tdoa.Viewport, error) {
	start := time.Now()
	_, span := t.tracer.Start(ctx, "tdoa.ComputeViewport")
	defer span.End()

	vp, err := tdoa.ComputeViewport(sensors, path, t.config.Padding)
	if err != nil {
		return tdoa.Viewport{}, fmt.Errorf("failed to compute viewport: %w", err)
	}
	t.config.Metrics.ObserveStage("viewport", start)
	return vp, nil
}
