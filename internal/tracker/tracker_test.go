package tracker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tdoa-tracker/internal/dataset"
	"tdoa-tracker/internal/observability"
	"tdoa-tracker/internal/tdoa"
)

func exampleDataset() *dataset.Dataset {
	ds := &dataset.Dataset{
		Sensor1: dataset.Point{X: 0, Y: 0},
		Sensor2: dataset.Point{X: 100, Y: 0},
		Sensor3: dataset.Point{X: 50, Y: 100},
		Source:  "testdata/api.json",
	}
	ds.SetTrack([]tdoa.Point2D{{X: 50, Y: 30}, {X: 40, Y: 45}, {X: 70, Y: 20}})
	return ds
}

func newTestTracker(t *testing.T, alg tdoa.Algorithm, metrics *observability.Metrics) *Tracker {
	t.Helper()
	tr, err := NewTracker(Config{
		SignalSpeed:   1000,
		ErrorFraction: 0.01,
		Padding:       10,
		Algorithm:     alg,
		Metrics:       metrics,
	})
	require.NoError(t, err)
	return tr
}

func TestNewTrackerValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"zero speed", Config{SignalSpeed: 0, ErrorFraction: 0.01}},
		{"fraction above one", Config{SignalSpeed: 1000, ErrorFraction: 1.5}},
		{"negative fraction", Config{SignalSpeed: 1000, ErrorFraction: -0.1}},
		{"negative padding", Config{SignalSpeed: 1000, ErrorFraction: 0.01, Padding: -1}},
		{"unknown algorithm", Config{SignalSpeed: 1000, ErrorFraction: 0.01, Algorithm: "kalman"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracker(tt.config)
			if !errors.Is(err, tdoa.ErrInvalidParameter) {
				t.Fatalf("Expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestRunReproducesTrack(t *testing.T) {
	for _, alg := range tdoa.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			tr := newTestTracker(t, alg, nil)
			ds := exampleDataset()

			result, err := tr.Run(context.Background(), ds)
			require.NoError(t, err)
			require.Len(t, result.Path, 3)
			require.Len(t, result.Delays, 3)

			for i, want := range ds.Track() {
				assert.InDelta(t, want.X, result.Path[i].X, 1e-6)
				assert.InDelta(t, want.Y, result.Path[i].Y, 1e-6)
			}
			assert.InDelta(t, 0.05831, result.Delays[0][0], 1e-5)
			assert.InDelta(t, 0.07, result.Delays[0][2], 1e-9)
			assert.Equal(t, alg, result.Algorithm)
			assert.False(t, result.Empty())
		})
	}
}

func TestRunViewportContainsEverything(t *testing.T) {
	result, err := newTestTracker(t, tdoa.ClosedForm, nil).Run(context.Background(), exampleDataset())
	require.NoError(t, err)

	vp := result.Viewport
	assert.InDelta(t, -10, vp.LeftCoord, 1e-6)
	assert.InDelta(t, -10, vp.TopCoord, 1e-6)
	assert.InDelta(t, 120, vp.MinZoomSpan, 1e-6)
}

func TestRunEmptyTrack(t *testing.T) {
	ds := exampleDataset()
	ds.SetTrack(nil)

	result, err := newTestTracker(t, tdoa.ClosedForm, nil).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, result.Delays)
	assert.InDelta(t, 120, result.Viewport.MinZoomSpan, 1e-9)
}

func TestRunUsesMeasuredDelays(t *testing.T) {
	ds := exampleDataset()
	ds.Timestamps, _ = tdoa.EstimateDelays(ds.Track(), ds.Sensors(), 1000)
	ds.SetTrack(nil)

	result, err := newTestTracker(t, tdoa.ClosedForm, nil).Run(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, result.Path, 3)
	assert.Nil(t, result.Track)
	assert.InDelta(t, 50, result.Path[0].X, 1e-6)
	assert.InDelta(t, 30, result.Path[0].Y, 1e-6)
}

func TestRunCollinearSensorsRecordsFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	ds := exampleDataset()
	ds.Sensor1 = dataset.Point{X: 0, Y: 0}
	ds.Sensor2 = dataset.Point{X: 1, Y: 0}
	ds.Sensor3 = dataset.Point{X: 2, Y: 0}

	_, err = newTestTracker(t, tdoa.ClosedForm, metrics).Run(context.Background(), ds)
	if !errors.Is(err, tdoa.ErrDegenerateGeometry) {
		t.Fatalf("Expected ErrDegenerateGeometry, got %v", err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SolveFailures.WithLabelValues("degenerate_geometry")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PointsSolved))
}

func TestRunCountsSolvedPoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = newTestTracker(t, tdoa.ClosedForm, metrics).Run(context.Background(), exampleDataset())
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.PointsSolved))
}

func solvedResult(t *testing.T) *Result {
	t.Helper()
	result, err := newTestTracker(t, tdoa.ClosedForm, nil).Run(context.Background(), exampleDataset())
	require.NoError(t, err)
	return result
}

func TestWriteGeoJSONPlanar(t *testing.T) {
	result := solvedResult(t)

	var buf bytes.Buffer
	require.NoError(t, result.WriteGeoJSON(&buf))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
		Properties map[string]interface{} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Equal(t, true, doc.Properties["planar"])

	counts := map[string]int{}
	for _, f := range doc.Features {
		counts[f.Properties["type"].(string)]++
	}
	assert.Equal(t, 3, counts["sensor"])
	assert.Equal(t, 1, counts["path"])
	assert.Equal(t, 3, counts["estimate"])
	assert.Equal(t, 3, counts["fault"])

	var first []float64
	for _, f := range doc.Features {
		if f.Properties["type"] == "estimate" {
			require.NoError(t, json.Unmarshal(f.Geometry.Coordinates, &first))
			break
		}
	}
	assert.InDelta(t, 50, first[0], 1e-6)
	assert.InDelta(t, 30, first[1], 1e-6)
}

func TestWriteGeoJSONGeographic(t *testing.T) {
	result := solvedResult(t)
	result.Origin = &dataset.GeoOrigin{Latitude: 48.1, Longitude: 11.5}

	var buf bytes.Buffer
	require.NoError(t, result.WriteGeoJSON(&buf))
	assert.Contains(t, buf.String(), `"planar": false`)
	// Sensor 1 sits on the origin: lon first, then lat
	assert.Contains(t, buf.String(), "11.5,\n")
}

func TestWriteKMLRequiresOrigin(t *testing.T) {
	result := solvedResult(t)

	var buf bytes.Buffer
	err := result.WriteKML(&buf)
	if !errors.Is(err, ErrNoOrigin) {
		t.Fatalf("Expected ErrNoOrigin, got %v", err)
	}

	result.Origin = &dataset.GeoOrigin{Latitude: 48.1, Longitude: 11.5}
	require.NoError(t, result.WriteKML(&buf))
	out := buf.String()
	assert.Contains(t, out, "<kml xmlns=")
	assert.Equal(t, 3, strings.Count(out, "#sensorStyle</styleUrl>"))
	assert.Equal(t, 3, strings.Count(out, "#faultStyle</styleUrl>"))
	assert.Contains(t, out, "11.50000000,48.10000000,0")
}

func TestWriteCSV(t *testing.T) {
	result := solvedResult(t)

	var buf bytes.Buffer
	require.NoError(t, result.WriteCSV(&buf))

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"# TDOA Transmitter Path"}, records[0])
	assert.Equal(t, []string{"# Algorithm", string(tdoa.ClosedForm)}, records[2])

	var rows [][]string
	inPath := false
	for _, rec := range records {
		if rec[0] == "# Estimated Path" {
			inPath = true
			continue
		}
		if inPath && rec[0] != "Index" {
			rows = append(rows, rec)
		}
	}
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "50.000000", "30.000000"}, rows[0][:3])
	assert.Len(t, rows[0], 7)
}

func TestExportWritesFiles(t *testing.T) {
	result := solvedResult(t)
	result.Origin = &dataset.GeoOrigin{Latitude: 48.1, Longitude: 11.5}
	dir := t.TempDir()

	for _, format := range Formats {
		path, err := result.Export(format, dir, 400)
		require.NoError(t, err, format)
		assert.Equal(t, filepath.Join(dir, "api_closed-form."+format), path)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	_, err := result.Export("png", dir, 400)
	assert.Error(t, err)
}

func TestWriteSVG(t *testing.T) {
	result := solvedResult(t)

	var buf bytes.Buffer
	require.NoError(t, result.WriteSVG(&buf, 120))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Equal(t, 3, strings.Count(out, `fill="green"/>`))
	assert.Equal(t, 3, strings.Count(out, `fill="black"/>`))
	assert.Equal(t, 2, strings.Count(out, "<line "))
	assert.Equal(t, 3, strings.Count(out, faultColor))
	// Zoom is 1 for a 120 span on a 120 px surface; point (50,30) lands at (60,40)
	assert.Contains(t, out, `<circle cx="60.00" cy="40.00" r="3" fill="black"/>`)
	assert.Contains(t, out, ">sensor 3</text>")

	assert.Error(t, result.WriteSVG(&buf, 0))
}

func TestWriteSVGZeroSpan(t *testing.T) {
	result := &Result{Sensors: tdoa.Sensors{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}}

	var buf bytes.Buffer
	require.NoError(t, result.WriteSVG(&buf, 100))
	assert.NotContains(t, buf.String(), "NaN")
	assert.NotContains(t, buf.String(), "Inf")
}

func TestFormatPoint(t *testing.T) {
	p := tdoa.EstimatedPoint{X: 50.00049, Y: 29.99951}
	assert.Equal(t, "{ 50; 30 }", FormatPoint(p, 3))
	assert.Equal(t, "{ 50.0005; 29.9995 }", FormatPoint(p, 4))
	assert.Equal(t, "{ 50; 29 }", FormatPoint(p, 0))
}

func TestWriteReports(t *testing.T) {
	result := solvedResult(t)

	var buf bytes.Buffer
	result.WriteSummary(&buf)
	result.WriteSensors(&buf)
	result.WriteDelays(&buf)
	result.WritePath(&buf, DisplayDigits)
	out := buf.String()

	assert.Contains(t, out, "closed-form")
	assert.Contains(t, out, "sensor 3: (50, 100)")
	assert.Contains(t, out, "0.070000")
	assert.Contains(t, out, "1. { 50; 30 } ± 0.700")
	// (70,20) is farthest from sensor 3: sqrt(20² + 80²) * 0.01
	assert.InDelta(t, 0.8246, result.MaxFault(), 1e-4)
}

func TestWritePlot(t *testing.T) {
	result := solvedResult(t)

	var buf bytes.Buffer
	result.WritePlot(&buf, 40, 20)
	out := buf.String()

	for _, label := range []string{"1", "2", "3"} {
		assert.Contains(t, out, label)
	}
	var rows []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasSuffix(line, "|") {
			rows = append(rows, line)
		}
	}
	require.Len(t, rows, 20)
	assert.Equal(t, 3, strings.Count(strings.Join(rows, "\n"), "*"))

	buf.Reset()
	(&Result{}).WritePlot(&buf, 40, 20)
	assert.Contains(t, buf.String(), "no extent")
}
