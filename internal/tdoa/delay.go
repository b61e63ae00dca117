package tdoa

import "fmt"

// EstimateDelays converts each track point into the one-way propagation delay
// to every sensor. Rows follow track order; columns follow sensor order.
func EstimateDelays(track []Point2D, sensors Sensors, signalSpeed float64) ([]DelayRow, error) {
	if err := validateSpeed(signalSpeed); err != nil {
		return nil, err
	}
	if err := validateSensors(sensors); err != nil {
		return nil, err
	}

	delays := make([]DelayRow, 0, len(track))
	for i, p := range track {
		if !p.finite() {
			return nil, fmt.Errorf("%w: track point %d is not finite: %s", ErrInvalidParameter, i, p)
		}
		var row DelayRow
		for j, s := range sensors {
			row[j] = Distance(p, s) / signalSpeed
		}
		delays = append(delays, row)
	}
	return delays, nil
}

// Ranges converts a delay row back into distances
func (d DelayRow) Ranges(signalSpeed float64) [3]float64 {
	var r [3]float64
	for i, t := range d {
		r[i] = t * signalSpeed
	}
	return r
}

func validateSpeed(signalSpeed float64) error {
	if !isFinite(signalSpeed) || signalSpeed <= 0 {
		return fmt.Errorf("%w: signal speed must be positive, got %g", ErrInvalidParameter, signalSpeed)
	}
	return nil
}

func validateSensors(sensors Sensors) error {
	for i, s := range sensors {
		if !s.finite() {
			return fmt.Errorf("%w: sensor %d is not finite: %s", ErrInvalidParameter, i+1, s)
		}
	}
	return nil
}
