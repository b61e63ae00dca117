package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/adrianmo/go-nmea"

	"tdoa-tracker/internal/tdoa"
)

const earthRadius = 6371000 // meters

// Project maps a geodetic position onto the local east/north frame (meters)
// around the origin using an equirectangular approximation.
func (o GeoOrigin) Project(lat, lon float64) tdoa.Point2D {
	lat0 := o.Latitude * math.Pi / 180
	return tdoa.Point2D{
		X: earthRadius * (lon - o.Longitude) * math.Pi / 180 * math.Cos(lat0),
		Y: earthRadius * (lat - o.Latitude) * math.Pi / 180,
	}
}

// Unproject maps a local east/north point back to latitude and longitude
func (o GeoOrigin) Unproject(p tdoa.Point2D) (lat, lon float64) {
	lat0 := o.Latitude * math.Pi / 180
	lat = o.Latitude + p.Y/earthRadius*180/math.Pi
	lon = o.Longitude + p.X/(earthRadius*math.Cos(lat0))*180/math.Pi
	return lat, lon
}

// LoadNMEATrack reads transmitter fixes from an NMEA log file
func LoadNMEATrack(filename string, origin GeoOrigin) ([]tdoa.Point2D, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open NMEA log: %w", err)
	}
	defer file.Close()

	track, err := ReadNMEATrack(file, origin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return track, nil
}

// ReadNMEATrack extracts valid GGA and RMC fixes in log order. Consecutive
// sentences reporting the same position (GGA and RMC of one epoch) yield a
// single track point.
func ReadNMEATrack(r io.Reader, origin GeoOrigin) ([]tdoa.Point2D, error) {
	var (
		track   []tdoa.Point2D
		lastLat = math.NaN()
		lastLon = math.NaN()
	)

	add := func(lat, lon float64) {
		if lat == lastLat && lon == lastLon {
			return
		}
		lastLat, lastLon = lat, lon
		track = append(track, origin.Project(lat, lon))
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// Receivers emit sentence types the parser does not know
			continue
		}

		switch s := sentence.(type) {
		case nmea.GGA:
			if s.FixQuality == nmea.Invalid || s.FixQuality == "" {
				continue
			}
			add(s.Latitude, s.Longitude)
		case nmea.RMC:
			if s.Validity != nmea.ValidRMC {
				continue
			}
			add(s.Latitude, s.Longitude)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading NMEA log at line %d: %w", lineNo, err)
	}
	return track, nil
}
