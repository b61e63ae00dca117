package tdoa

import "errors"

var (
	// ErrInvalidParameter reports a non-positive signal speed, an error
	// fraction outside [0,1], negative padding or a non-finite coordinate.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDegenerateGeometry reports sensors that are collinear (or coincide),
	// for which the range equations have no unique solution.
	ErrDegenerateGeometry = errors.New("degenerate sensor geometry")

	// ErrEmptyInput reports a zero-length track where a caller needs at
	// least one point. The core itself returns empty results instead.
	ErrEmptyInput = errors.New("empty input")
)
