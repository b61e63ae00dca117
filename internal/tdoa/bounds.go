package tdoa

import (
	"fmt"
	"math"
)

// ComputeViewport returns the square region covering every sensor and every
// estimated point, widened by padding on all sides.
func ComputeViewport(sensors Sensors, path []EstimatedPoint, padding float64) (Viewport, error) {
	if !isFinite(padding) || padding < 0 {
		return Viewport{}, fmt.Errorf("%w: padding must be non-negative, got %g", ErrInvalidParameter, padding)
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	extend := func(p Point2D) {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	for i, s := range sensors {
		if !s.finite() {
			return Viewport{}, fmt.Errorf("%w: sensor %d is not finite: %s", ErrInvalidParameter, i+1, s)
		}
		extend(s)
	}
	for i, e := range path {
		p := e.Point()
		if !p.finite() {
			return Viewport{}, fmt.Errorf("%w: path point %d is not finite: %s", ErrInvalidParameter, i, p)
		}
		extend(p)
	}

	minX, maxX = minX-padding, maxX+padding
	minY, maxY = minY-padding, maxY+padding

	return Viewport{
		LeftCoord:   minX,
		TopCoord:    minY,
		MinZoomSpan: math.Max(maxX-minX, maxY-minY),
	}, nil
}
