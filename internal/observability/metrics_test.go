package observability

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"tdoa-tracker/internal/tdoa"
)

func TestRecordFailureLabelsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordFailure(fmt.Errorf("solve: %w", tdoa.ErrDegenerateGeometry))
	m.RecordFailure(fmt.Errorf("delays: %w", tdoa.ErrInvalidParameter))
	m.RecordFailure(fmt.Errorf("wrapped twice: %w", fmt.Errorf("x: %w", tdoa.ErrDegenerateGeometry)))
	m.RecordFailure(nil)

	if got := testutil.ToFloat64(m.SolveFailures.WithLabelValues("degenerate_geometry")); got != 2 {
		t.Fatalf("degenerate_geometry = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SolveFailures.WithLabelValues("invalid_parameter")); got != 1 {
		t.Fatalf("invalid_parameter = %v, want 1", got)
	}
}

func TestObserveStageRecordsSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.ObserveStage("solve", time.Now().Add(-5*time.Millisecond))
	m.AddSolved(4)

	if got := testutil.ToFloat64(m.PointsSolved); got != 4 {
		t.Fatalf("tdoa_points_solved_total = %v, want 4", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "tdoa_stage_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("tdoa_stage_duration_seconds not gathered")
	}
	if hist.GetSampleCount() != 1 {
		t.Fatalf("sample_count = %d, want 1", hist.GetSampleCount())
	}
}

func TestNewMetricsTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics: %v", err)
	}

	second.AddSolved(1)
	if got := testutil.ToFloat64(first.PointsSolved); got != 1 {
		t.Fatalf("collectors not shared, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.AddSolved(3)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tdoa_points_solved_total 3") {
		t.Fatalf("metrics body missing counter:\n%s", rr.Body.String())
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddSolved(1)
	m.RecordFailure(tdoa.ErrEmptyInput)
	m.ObserveStage("solve", time.Now())
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingOptions{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, Discard())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "solve")
	span.End()

	if err := ShutdownWithTimeout(shutdown, time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), `"Name": "solve"`) {
		t.Fatalf("span not exported:\n%s", buf.String())
	}

	if _, err := InitTracing(context.Background(), TracingOptions{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
	if _, err := InitTracing(context.Background(), TracingOptions{}, nil); err != nil {
		t.Fatalf("disabled tracing: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "points", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered: %s", out)
	}
	if !strings.Contains(out, `"points":2`) {
		t.Fatalf("expected json attribute in %s", out)
	}
}
