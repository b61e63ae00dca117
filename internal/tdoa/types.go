// Package tdoa implements transmitter localization from propagation delays
// measured at three fixed sensors, and the viewport math used to plot the result.
package tdoa

import (
	"fmt"
	"math"
)

// Point2D is a position in the local planar frame (distance units)
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sensors holds the three receiver positions. Order matters: the closed-form
// solution combines the range equations for pairs (1,2) and (2,3).
type Sensors [3]Point2D

// DelayRow holds one-way propagation delays (seconds) to sensor 1, 2 and 3
type DelayRow [3]float64

// EstimatedPoint is a trilaterated position with its worst-case error radius.
// Fault is expressed in distance units, not as a fraction.
type EstimatedPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Fault float64 `json:"fault"`
}

// Point returns the estimate without its error radius
func (e EstimatedPoint) Point() Point2D {
	return Point2D{X: e.X, Y: e.Y}
}

// Viewport is the square plotting region covering all sensors and path points
type Viewport struct {
	LeftCoord   float64 `json:"leftCoord"`
	TopCoord    float64 `json:"topCoord"`
	MinZoomSpan float64 `json:"minZoom"`
}

// Zoom returns the scale factor mapping distance units onto a surface of the
// given size in pixels. A zero-span viewport yields 0.
func (v Viewport) Zoom(size float64) float64 {
	if v.MinZoomSpan <= 0 {
		return 0
	}
	return size / v.MinZoomSpan
}

// Project maps a point to surface coordinates for the given zoom
func (v Viewport) Project(p Point2D, zoom float64) (float64, float64) {
	return (p.X - v.LeftCoord) * zoom, (p.Y - v.TopCoord) * zoom
}

// Distance returns the Euclidean distance between two points
func Distance(a, b Point2D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func (p Point2D) finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

func (p Point2D) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round rounds v to the given number of decimal digits. Digits below 1
// truncate toward zero, matching how the point list is displayed.
func Round(v float64, digits int) float64 {
	if digits < 1 {
		return math.Trunc(v)
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
