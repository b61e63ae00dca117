// Package tracker - Export functions for estimated paths
package tracker

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"tdoa-tracker/internal/tdoa"
)

// ErrNoOrigin is returned by geographic exports when the dataset has no origin
var ErrNoOrigin = errors.New("dataset has no geodetic origin")

// Formats lists the supported export formats
var Formats = []string{"geojson", "kml", "csv", "svg"}

// Export writes the result in the named format to dir and returns the file path.
// The file name is derived from the dataset source.
func (r *Result) Export(format, dir string, svgSize float64) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(dir, r.baseName()+"."+extension(format))

	var err error
	switch format {
	case "geojson":
		err = r.ExportGeoJSON(filename)
	case "kml":
		err = r.ExportKML(filename)
	case "csv":
		err = r.ExportCSV(filename)
	case "svg":
		err = r.ExportSVG(filename, svgSize)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return "", err
	}
	return filename, nil
}

func extension(format string) string {
	if format == "geojson" {
		return "geojson"
	}
	return format
}

func (r *Result) baseName() string {
	name := r.Source
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" {
		name = "tdoa-path"
	}
	return name + "_" + string(r.Algorithm)
}

// coordinates returns a GeoJSON position: lon/lat when the result carries an
// origin, local planar x/y otherwise.
func (r *Result) coordinates(p tdoa.Point2D) []float64 {
	if r.Origin == nil {
		return []float64{p.X, p.Y}
	}
	lat, lon := r.Origin.Unproject(p)
	return []float64{lon, lat}
}

// ExportGeoJSON exports sensors, the estimated path and its error circles.
// Without an origin, coordinates stay in the local planar frame.
func (r *Result) ExportGeoJSON(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create GeoJSON file: %w", err)
	}
	defer file.Close()

	if err := r.WriteGeoJSON(file); err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	return nil
}

// WriteGeoJSON encodes the GeoJSON feature collection to w
func (r *Result) WriteGeoJSON(w io.Writer) error {
	features := []map[string]interface{}{}

	for i, sensor := range r.Sensors {
		features = append(features, map[string]interface{}{
			"type": "Feature",
			"geometry": map[string]interface{}{
				"type":        "Point",
				"coordinates": r.coordinates(sensor),
			},
			"properties": map[string]interface{}{
				"name": fmt.Sprintf("sensor %d", i+1),
				"type": "sensor",
			},
		})
	}

	if len(r.Path) > 1 {
		line := make([][]float64, len(r.Path))
		for i, p := range r.Path {
			line[i] = r.coordinates(p.Point())
		}
		features = append(features, map[string]interface{}{
			"type": "Feature",
			"geometry": map[string]interface{}{
				"type":        "LineString",
				"coordinates": line,
			},
			"properties": map[string]interface{}{
				"name": "estimated path",
				"type": "path",
			},
		})
	}

	for i, p := range r.Path {
		features = append(features, map[string]interface{}{
			"type": "Feature",
			"geometry": map[string]interface{}{
				"type":        "Point",
				"coordinates": r.coordinates(p.Point()),
			},
			"properties": map[string]interface{}{
				"name":  fmt.Sprintf("%d", i+1),
				"type":  "estimate",
				"index": i,
				"fault": p.Fault,
			},
		})
		if p.Fault > 0 {
			features = append(features, r.faultCircle(i, p))
		}
	}

	geojson := map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
		"properties": map[string]interface{}{
			"title":           "TDOA Transmitter Path",
			"algorithm":       r.Algorithm,
			"signal_speed":    r.SignalSpeed,
			"error_fraction":  r.ErrorFraction,
			"planar":          r.Origin == nil,
			"processing_time": r.ProcessingTime.Format("2006-01-02T15:04:05Z"),
		},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(geojson)
}

func (r *Result) faultCircle(index int, p tdoa.EstimatedPoint) map[string]interface{} {
	points := circlePoints(p.Point(), p.Fault, 64)
	ring := make([][]float64, len(points)+1)
	for i, point := range points {
		ring[i] = r.coordinates(point)
	}
	// Close the polygon by repeating the first point
	ring[len(points)] = ring[0]

	return map[string]interface{}{
		"type": "Feature",
		"geometry": map[string]interface{}{
			"type":        "Polygon",
			"coordinates": [][][]float64{ring},
		},
		"properties": map[string]interface{}{
			"name":   fmt.Sprintf("%d error radius", index+1),
			"type":   "fault",
			"index":  index,
			"radius": p.Fault,
		},
	}
}

// circlePoints samples a circle in the planar frame
func circlePoints(center tdoa.Point2D, radius float64, numPoints int) []tdoa.Point2D {
	points := make([]tdoa.Point2D, numPoints)
	for i := 0; i < numPoints; i++ {
		angle := 2 * math.Pi * float64(i) / float64(numPoints)
		points[i] = tdoa.Point2D{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}
	return points
}

// ExportKML exports the path for Google Earth. KML is geographic only, so the
// result must carry an origin.
func (r *Result) ExportKML(filename string) error {
	if r.Origin == nil {
		return fmt.Errorf("cannot export KML: %w", ErrNoOrigin)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create KML file: %w", err)
	}
	defer file.Close()

	return r.WriteKML(file)
}

// WriteKML writes the KML document to w
func (r *Result) WriteKML(w io.Writer) error {
	if r.Origin == nil {
		return fmt.Errorf("cannot export KML: %w", ErrNoOrigin)
	}

	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>TDOA Transmitter Path</name>
    <description>Algorithm: %s, Signal speed: %g, Error fraction: %g</description>

    <Style id="sensorStyle">
      <IconStyle>
        <Icon>
          <href>http://maps.google.com/mapfiles/kml/shapes/placemark_circle.png</href>
        </Icon>
        <color>ff00ff00</color>
      </IconStyle>
    </Style>

    <Style id="pathStyle">
      <LineStyle>
        <color>ff000000</color>
        <width>1</width>
      </LineStyle>
    </Style>

    <Style id="faultStyle">
      <LineStyle>
        <color>30000000</color>
        <width>1</width>
      </LineStyle>
      <PolyStyle>
        <color>30000000</color>
      </PolyStyle>
    </Style>
`, r.Algorithm, r.SignalSpeed, r.ErrorFraction)

	for i, sensor := range r.Sensors {
		lat, lon := r.Origin.Unproject(sensor)
		fmt.Fprintf(w, `
    <Placemark>
      <name>sensor %d</name>
      <styleUrl>#sensorStyle</styleUrl>
      <Point>
        <coordinates>%.8f,%.8f,0</coordinates>
      </Point>
    </Placemark>
`, i+1, lon, lat)
	}

	if len(r.Path) > 1 {
		fmt.Fprintf(w, `
    <Placemark>
      <name>Estimated Path</name>
      <styleUrl>#pathStyle</styleUrl>
      <LineString>
        <coordinates>
`)
		for _, p := range r.Path {
			lat, lon := r.Origin.Unproject(p.Point())
			fmt.Fprintf(w, "%.8f,%.8f,0 ", lon, lat)
		}
		fmt.Fprintf(w, `
        </coordinates>
      </LineString>
    </Placemark>
`)
	}

	for i, p := range r.Path {
		lat, lon := r.Origin.Unproject(p.Point())
		fmt.Fprintf(w, `
    <Placemark>
      <name>%d</name>
      <description>Error radius: %.3f</description>
      <Point>
        <coordinates>%.8f,%.8f,0</coordinates>
      </Point>
    </Placemark>
`, i+1, p.Fault, lon, lat)

		if p.Fault <= 0 {
			continue
		}
		fmt.Fprintf(w, `
    <Placemark>
      <name>%d error radius</name>
      <styleUrl>#faultStyle</styleUrl>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing>
            <coordinates>
`, i+1)
		points := circlePoints(p.Point(), p.Fault, 36)
		points = append(points, points[0])
		for _, point := range points {
			lat, lon := r.Origin.Unproject(point)
			fmt.Fprintf(w, "%.8f,%.8f,0 ", lon, lat)
		}
		fmt.Fprintf(w, `
            </coordinates>
          </LinearRing>
        </outerBoundaryIs>
      </Polygon>
    </Placemark>
`)
	}

	_, err := fmt.Fprintf(w, `
  </Document>
</kml>
`)
	return err
}

// ExportCSV exports the path in CSV format for spreadsheet analysis
func (r *Result) ExportCSV(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	return r.WriteCSV(file)
}

// WriteCSV writes metadata, sensors and one row per estimated point to w
func (r *Result) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	writer.Write([]string{"# TDOA Transmitter Path"})
	writer.Write([]string{"# Processing Time", r.ProcessingTime.Format("2006-01-02 15:04:05")})
	writer.Write([]string{"# Algorithm", string(r.Algorithm)})
	writer.Write([]string{"# Signal Speed", fmt.Sprintf("%g", r.SignalSpeed)})
	writer.Write([]string{"# Error Fraction", fmt.Sprintf("%g", r.ErrorFraction)})
	writer.Write([]string{""})

	writer.Write([]string{"# Sensors"})
	writer.Write([]string{"Sensor", "X", "Y"})
	for i, s := range r.Sensors {
		writer.Write([]string{fmt.Sprintf("%d", i+1), formatFloat(s.X), formatFloat(s.Y)})
	}
	writer.Write([]string{""})

	writer.Write([]string{"# Estimated Path"})
	header := []string{"Index", "X", "Y", "Fault", "Delay1_s", "Delay2_s", "Delay3_s"}
	if r.Origin != nil {
		header = append(header, "Latitude", "Longitude")
	}
	writer.Write(header)
	for i, p := range r.Path {
		row := []string{fmt.Sprintf("%d", i+1), formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Fault)}
		if i < len(r.Delays) {
			for _, d := range r.Delays[i] {
				row = append(row, fmt.Sprintf("%.9f", d))
			}
		} else {
			row = append(row, "", "", "")
		}
		if r.Origin != nil {
			lat, lon := r.Origin.Unproject(p.Point())
			row = append(row, fmt.Sprintf("%.8f", lat), fmt.Sprintf("%.8f", lon))
		}
		writer.Write(row)
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
