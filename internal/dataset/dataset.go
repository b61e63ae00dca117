// Package dataset loads the sensor layout and transmitter track that feed the
// tracker, from local JSON or YAML files or from an http(s) URL.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tdoa-tracker/internal/tdoa"
)

// maxBodySize caps remote dataset downloads
const maxBodySize = 32 << 20

// Number is a coordinate that decodes from either a number or a numeric string
type Number float64

// UnmarshalJSON accepts 12.5 as well as "12.5"
func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return fmt.Errorf("%w: coordinate is null", tdoa.ErrInvalidParameter)
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid coordinate %s: %v", tdoa.ErrInvalidParameter, string(data), err)
	}
	*n = Number(v)
	return nil
}

// UnmarshalYAML accepts plain and quoted scalars
func (n *Number) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: coordinate must be a scalar", tdoa.ErrInvalidParameter, value.Line)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value.Value), 64)
	if err != nil {
		return fmt.Errorf("%w: line %d: invalid coordinate %q: %v", tdoa.ErrInvalidParameter, value.Line, value.Value, err)
	}
	*n = Number(v)
	return nil
}

// Point is a coordinate pair as it appears in a dataset. Both x and y must
// be present when decoding.
type Point struct {
	X Number `json:"x" yaml:"x"`
	Y Number `json:"y" yaml:"y"`
}

type rawPoint struct {
	X *Number `json:"x" yaml:"x"`
	Y *Number `json:"y" yaml:"y"`
}

func (r rawPoint) point() (Point, error) {
	switch {
	case r.X == nil && r.Y == nil:
		return Point{}, fmt.Errorf("%w: point has no x and y", tdoa.ErrInvalidParameter)
	case r.X == nil:
		return Point{}, fmt.Errorf("%w: point has no x", tdoa.ErrInvalidParameter)
	case r.Y == nil:
		return Point{}, fmt.Errorf("%w: point has no y", tdoa.ErrInvalidParameter)
	}
	return Point{X: *r.X, Y: *r.Y}, nil
}

// UnmarshalJSON rejects points missing a coordinate
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw rawPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	point, err := raw.point()
	if err != nil {
		return err
	}
	*p = point
	return nil
}

// UnmarshalYAML rejects points missing a coordinate
func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	var raw rawPoint
	if err := value.Decode(&raw); err != nil {
		return err
	}
	point, err := raw.point()
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*p = point
	return nil
}

// Point2D converts to the tracker's point type
func (p Point) Point2D() tdoa.Point2D {
	return tdoa.Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// delayRow decodes one measured row and insists on one delay per sensor
type delayRow tdoa.DelayRow

func (r *delayRow) set(values []Number) error {
	if len(values) != len(r) {
		return fmt.Errorf("%w: delay row has %d values, want %d", tdoa.ErrInvalidParameter, len(values), len(r))
	}
	for i, v := range values {
		r[i] = float64(v)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (r *delayRow) UnmarshalJSON(data []byte) error {
	var values []Number
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	return r.set(values)
}

// UnmarshalYAML implements yaml.Unmarshaler
func (r *delayRow) UnmarshalYAML(value *yaml.Node) error {
	var values []Number
	if err := value.Decode(&values); err != nil {
		return err
	}
	if err := r.set(values); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

// GeoOrigin anchors the local planar frame to a geodetic position
type GeoOrigin struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
}

// Dataset is the tracker input: three sensors and the ground-truth track
type Dataset struct {
	Sensor1     Point
	Sensor2     Point
	Sensor3     Point
	Transmitter []Point
	Origin      *GeoOrigin

	// Timestamps holds measured delay rows. When present and the
	// transmitter track is empty, they are trilaterated directly.
	Timestamps []tdoa.DelayRow

	// Source records where the dataset was read from
	Source string
}

// document is the wire form of a dataset; pointers record which sensors
// were actually present
type document struct {
	Sensor1     *Point     `json:"sensor1Coords" yaml:"sensor1Coords"`
	Sensor2     *Point     `json:"sensor2Coords" yaml:"sensor2Coords"`
	Sensor3     *Point     `json:"sensor3Coords" yaml:"sensor3Coords"`
	Transmitter []Point    `json:"transmitterCoords" yaml:"transmitterCoords"`
	Origin      *GeoOrigin `json:"origin,omitempty" yaml:"origin,omitempty"`
	Timestamps  []delayRow `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
}

func (doc *document) dataset() (*Dataset, error) {
	for i, s := range []*Point{doc.Sensor1, doc.Sensor2, doc.Sensor3} {
		if s == nil {
			return nil, fmt.Errorf("%w: sensor%dCoords is missing", tdoa.ErrInvalidParameter, i+1)
		}
	}

	ds := &Dataset{
		Sensor1:     *doc.Sensor1,
		Sensor2:     *doc.Sensor2,
		Sensor3:     *doc.Sensor3,
		Transmitter: doc.Transmitter,
		Origin:      doc.Origin,
	}
	for _, row := range doc.Timestamps {
		ds.Timestamps = append(ds.Timestamps, tdoa.DelayRow(row))
	}
	return ds, nil
}

// Sensors returns the sensor positions in dataset order
func (d *Dataset) Sensors() tdoa.Sensors {
	return tdoa.Sensors{d.Sensor1.Point2D(), d.Sensor2.Point2D(), d.Sensor3.Point2D()}
}

// Track returns the transmitter positions in temporal order
func (d *Dataset) Track() []tdoa.Point2D {
	track := make([]tdoa.Point2D, len(d.Transmitter))
	for i, p := range d.Transmitter {
		track[i] = p.Point2D()
	}
	return track
}

// HasMeasuredDelays reports whether the dataset carries delays instead of a track
func (d *Dataset) HasMeasuredDelays() bool {
	return len(d.Transmitter) == 0 && len(d.Timestamps) > 0
}

// SetTrack replaces the transmitter positions
func (d *Dataset) SetTrack(track []tdoa.Point2D) {
	d.Transmitter = make([]Point, len(track))
	for i, p := range track {
		d.Transmitter[i] = Point{X: Number(p.X), Y: Number(p.Y)}
	}
}

// Validate checks that every coordinate is finite, measured delays are finite
// and non-negative, and the origin is a valid geodetic position.
func (d *Dataset) Validate() error {
	for i, s := range d.Sensors() {
		if !finite(s.X) || !finite(s.Y) {
			return fmt.Errorf("%w: sensor %d is not finite: %s", tdoa.ErrInvalidParameter, i+1, s)
		}
	}
	for i, p := range d.Track() {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: transmitter point %d is not finite: %s", tdoa.ErrInvalidParameter, i, p)
		}
	}
	for i, row := range d.Timestamps {
		for j, v := range row {
			if !finite(v) || v < 0 {
				return fmt.Errorf("%w: delay %d of row %d is %g", tdoa.ErrInvalidParameter, j+1, i, v)
			}
		}
	}
	if o := d.Origin; o != nil {
		if !finite(o.Latitude) || o.Latitude < -90 || o.Latitude > 90 {
			return fmt.Errorf("%w: origin latitude %g out of range", tdoa.ErrInvalidParameter, o.Latitude)
		}
		if !finite(o.Longitude) || o.Longitude < -180 || o.Longitude > 180 {
			return fmt.Errorf("%w: origin longitude %g out of range", tdoa.ErrInvalidParameter, o.Longitude)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Parse decodes and validates a dataset. format is "json" or "yaml".
func Parse(data []byte, format string) (*Dataset, error) {
	var doc document
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML dataset: %w", err)
		}
	case "json", "":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode JSON dataset: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", format)
	}

	ds, err := doc.dataset()
	if err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Load reads a dataset from a file path or an http(s) URL. The timeout only
// applies to remote fetches; zero means no timeout beyond ctx.
func Load(ctx context.Context, location string, timeout time.Duration) (*Dataset, error) {
	var (
		data   []byte
		format string
		err    error
	)

	if isURL(location) {
		data, format, err = fetch(ctx, location, timeout)
	} else {
		data, err = os.ReadFile(location)
		format = formatFromExt(filepath.Ext(location))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", location, err)
	}

	ds, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	ds.Source = location
	return ds, nil
}

func isURL(location string) bool {
	u, err := url.Parse(location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func formatFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func fetch(ctx context.Context, location string, timeout time.Duration) ([]byte, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", err
	}

	format := "json"
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "yaml") {
		format = "yaml"
	} else if u, err := url.Parse(location); err == nil && !strings.Contains(ct, "json") {
		format = formatFromExt(path.Ext(u.Path))
	}
	return data, format, nil
}
