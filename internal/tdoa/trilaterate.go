package tdoa

import (
	"fmt"
	"math"
)

// DegeneracyEpsilon bounds the closed-form denominator relative to the squared
// sensor span. Below it the sensors are treated as collinear.
const DegeneracyEpsilon = 1e-9

// geometry caches the per-run terms of the closed-form solution
type geometry struct {
	s     Sensors
	denom float64 // 2((s2x-s3x)(s1y-s2y) - (s1x-s2x)(s2y-s3y))
	span  float64 // largest distance between two sensors
}

func newGeometry(sensors Sensors) (geometry, error) {
	if err := validateSensors(sensors); err != nil {
		return geometry{}, err
	}

	s1, s2, s3 := sensors[0], sensors[1], sensors[2]
	span := math.Max(Distance(s1, s2), math.Max(Distance(s2, s3), Distance(s1, s3)))
	denom := 2 * ((s2.X-s3.X)*(s1.Y-s2.Y) - (s1.X-s2.X)*(s2.Y-s3.Y))

	if span == 0 || math.Abs(denom) <= 2*DegeneracyEpsilon*span*span {
		return geometry{}, fmt.Errorf("%w: sensors %s, %s, %s are collinear", ErrDegenerateGeometry, s1, s2, s3)
	}
	return geometry{s: sensors, denom: denom, span: span}, nil
}

// CheckGeometry reports whether the sensors admit a unique solution
func CheckGeometry(sensors Sensors) error {
	_, err := newGeometry(sensors)
	return err
}

// solve returns the closed-form position for squared ranges R1, R2, R3
func (g geometry) solve(sq [3]float64) Point2D {
	s1, s2, s3 := g.s[0], g.s[1], g.s[2]
	r1, r2, r3 := sq[0], sq[1], sq[2]

	x := ((s1.Y-s2.Y)*(s2.Y*s2.Y-s3.Y*s3.Y+s2.X*s2.X-s3.X*s3.X+r3-r2) -
		(s2.Y-s3.Y)*(s1.Y*s1.Y-s2.Y*s2.Y+s1.X*s1.X-s2.X*s2.X+r2-r1)) / g.denom

	// The (1,2) pair equation cannot give y when s1 and s2 share a y
	// coordinate; the (2,3) pair describes the same system.
	var y float64
	if math.Abs(s2.Y-s1.Y) >= math.Abs(s3.Y-s2.Y) {
		y = (r1 - r2 - s1.X*s1.X + s2.X*s2.X - s1.Y*s1.Y + s2.Y*s2.Y + 2*x*(s1.X-s2.X)) / (2 * (s2.Y - s1.Y))
	} else {
		y = (r2 - r3 - s2.X*s2.X + s3.X*s3.X - s2.Y*s2.Y + s3.Y*s3.Y + 2*x*(s2.X-s3.X)) / (2 * (s3.Y - s2.Y))
	}
	return Point2D{X: x, Y: y}
}

// Solve trilaterates every delay row into an estimated position. The error
// radius of each estimate is the largest range scaled by errorFraction.
func Solve(delays []DelayRow, sensors Sensors, signalSpeed, errorFraction float64) ([]EstimatedPoint, error) {
	return solveWith(delays, sensors, signalSpeed, errorFraction, func(g geometry, ranges [3]float64) (Point2D, error) {
		return g.solve(squares(ranges)), nil
	})
}

type rowSolver func(g geometry, ranges [3]float64) (Point2D, error)

func solveWith(delays []DelayRow, sensors Sensors, signalSpeed, errorFraction float64, fn rowSolver) ([]EstimatedPoint, error) {
	if err := validateSpeed(signalSpeed); err != nil {
		return nil, err
	}
	if !isFinite(errorFraction) || errorFraction < 0 || errorFraction > 1 {
		return nil, fmt.Errorf("%w: error fraction must be within [0,1], got %g", ErrInvalidParameter, errorFraction)
	}
	g, err := newGeometry(sensors)
	if err != nil {
		return nil, err
	}

	path := make([]EstimatedPoint, 0, len(delays))
	for i, row := range delays {
		for j, d := range row {
			if !isFinite(d) || d < 0 {
				return nil, fmt.Errorf("%w: delay %d of row %d is %g", ErrInvalidParameter, j+1, i, d)
			}
		}

		ranges := row.Ranges(signalSpeed)
		p, err := fn(g, ranges)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if !p.finite() {
			return nil, fmt.Errorf("%w: row %d produced a non-finite estimate", ErrDegenerateGeometry, i)
		}

		path = append(path, EstimatedPoint{
			X:     p.X,
			Y:     p.Y,
			Fault: maxFault(ranges, errorFraction),
		})
	}
	return path, nil
}

func squares(r [3]float64) [3]float64 {
	return [3]float64{r[0] * r[0], r[1] * r[1], r[2] * r[2]}
}

func maxFault(ranges [3]float64, errorFraction float64) float64 {
	fault := 0.0
	for _, r := range ranges {
		fault = math.Max(fault, r*errorFraction)
	}
	return fault
}
