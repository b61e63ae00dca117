package tdoa

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Algorithm selects how delay rows are turned into positions
type Algorithm string

const (
	// ClosedForm solves the (1,2) and (2,3) pair equations directly
	ClosedForm Algorithm = "closed-form"
	// LeastSquares solves all three pair equations in the least-squares sense
	LeastSquares Algorithm = "least-squares"
	// Refine starts from the closed form and minimizes range residuals
	Refine Algorithm = "refine"
)

// Algorithms lists the supported algorithms in display order
var Algorithms = []Algorithm{ClosedForm, LeastSquares, Refine}

// ParseAlgorithm resolves an algorithm name. An empty name selects ClosedForm.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return ClosedForm, nil
	}
	for _, a := range Algorithms {
		if strings.EqualFold(name, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown algorithm %q (must be one of %s)", ErrInvalidParameter, name, algorithmNames())
}

func algorithmNames() string {
	names := make([]string, len(Algorithms))
	for i, a := range Algorithms {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

// SolveWith runs Solve using the selected algorithm
func SolveWith(alg Algorithm, delays []DelayRow, sensors Sensors, signalSpeed, errorFraction float64) ([]EstimatedPoint, error) {
	switch alg {
	case ClosedForm, "":
		return Solve(delays, sensors, signalSpeed, errorFraction)
	case LeastSquares:
		return SolveLeastSquares(delays, sensors, signalSpeed, errorFraction)
	case Refine:
		return SolveRefined(delays, sensors, signalSpeed, errorFraction)
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParameter, alg)
	}
}

// SolveLeastSquares linearizes the range equations for all three sensor pairs
// and solves the overdetermined system with a QR decomposition.
//
// The (0,2) row is the sum of the (0,1) and (1,2) rows, so the system has
// rank 2 and the result equals the closed form whenever both succeed. It adds
// no noise rejection; use Refine for that.
func SolveLeastSquares(delays []DelayRow, sensors Sensors, signalSpeed, errorFraction float64) ([]EstimatedPoint, error) {
	return solveWith(delays, sensors, signalSpeed, errorFraction, func(g geometry, ranges [3]float64) (Point2D, error) {
		return g.leastSquares(squares(ranges))
	})
}

func (g geometry) leastSquares(sq [3]float64) (Point2D, error) {
	pairs := [3][2]int{{0, 1}, {1, 2}, {0, 2}}
	a := mat.NewDense(len(pairs), 2, nil)
	b := mat.NewVecDense(len(pairs), nil)

	// Row k: 2(sj-si)·p = Ri - Rj - |si|² + |sj|²
	for k, pr := range pairs {
		si, sj := g.s[pr[0]], g.s[pr[1]]
		a.Set(k, 0, 2*(sj.X-si.X))
		a.Set(k, 1, 2*(sj.Y-si.Y))
		b.SetVec(k, sq[pr[0]]-sq[pr[1]]-si.X*si.X+sj.X*sj.X-si.Y*si.Y+sj.Y*sj.Y)
	}

	var p mat.VecDense
	if err := p.SolveVec(a, b); err != nil {
		return Point2D{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}
	return Point2D{X: p.AtVec(0), Y: p.AtVec(1)}, nil
}

// SolveRefined polishes each closed-form estimate with a Nelder-Mead search
// over the squared range residuals. A search that fails or wanders to a worse
// residual keeps the closed-form estimate.
func SolveRefined(delays []DelayRow, sensors Sensors, signalSpeed, errorFraction float64) ([]EstimatedPoint, error) {
	return solveWith(delays, sensors, signalSpeed, errorFraction, func(g geometry, ranges [3]float64) (Point2D, error) {
		return g.refine(g.solve(squares(ranges)), ranges), nil
	})
}

func (g geometry) refine(start Point2D, ranges [3]float64) Point2D {
	residual := func(x []float64) float64 {
		p := Point2D{X: x[0], Y: x[1]}
		sum := 0.0
		for i, s := range g.s {
			d := Distance(p, s) - ranges[i]
			sum += d * d
		}
		return sum
	}

	if !start.finite() {
		return start
	}
	x0 := []float64{start.X, start.Y}
	best := residual(x0)
	if best == 0 {
		return start
	}

	problem := optimize.Problem{Func: residual}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12 * g.span * g.span,
			Iterations: 50,
		},
		MajorIterations: 500,
	}
	method := &optimize.NelderMead{SimplexSize: math.Max(g.span*1e-3, 1e-6)}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil || result == nil || len(result.X) != 2 {
		return start
	}
	refined := Point2D{X: result.X[0], Y: result.X[1]}
	if !refined.finite() || result.F > best {
		return start
	}
	return refined
}
