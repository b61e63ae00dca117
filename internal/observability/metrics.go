// Package observability wires logging, Prometheus metrics and OpenTelemetry
// tracing for the tracker.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tdoa-tracker/internal/tdoa"
)

// Metrics bundles the tracker's Prometheus collectors
type Metrics struct {
	gatherer prometheus.Gatherer

	PointsSolved     prometheus.Counter
	SolveFailures    *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	PointsRevealed   prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics registers the tracker metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	solved, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tdoa_points_solved_total",
		Help: "Total number of transmitter positions estimated.",
	}))
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tdoa_solve_failures_total",
		Help: "Failed tracker runs, labeled by failure kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tdoa_stage_duration_seconds",
		Help:    "Duration of tracker pipeline stages in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}
	revealed, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tdoa_points_revealed_total",
		Help: "Total number of path points revealed during playback.",
	}))
	if err != nil {
		return nil, err
	}
	publishErrors, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tdoa_publish_errors_total",
		Help: "Errors while publishing revealed points.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:         gatherer,
		PointsSolved:     solved,
		SolveFailures:    failures,
		PipelineDuration: duration,
		PointsRevealed:   revealed,
		PublishErrors:    publishErrors,
	}, nil
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordFailure classifies err and counts it
func (m *Metrics) RecordFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.SolveFailures.WithLabelValues(FailureKind(err)).Inc()
}

// AddSolved counts estimated positions
func (m *Metrics) AddSolved(n int) {
	if m == nil {
		return
	}
	m.PointsSolved.Add(float64(n))
}

// FailureKind maps tracker errors onto metric label values
func FailureKind(err error) string {
	switch {
	case errors.Is(err, tdoa.ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, tdoa.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, tdoa.ErrEmptyInput):
		return "empty_input"
	default:
		return "other"
	}
}

// Handler exposes /metrics for the registry the collectors live in
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve runs the /metrics and /healthz endpoints until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
