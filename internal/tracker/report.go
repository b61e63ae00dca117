package tracker

import (
	"fmt"
	"io"

	"tdoa-tracker/internal/tdoa"
)

// DisplayDigits is the rounding used for the textual point list
const DisplayDigits = 3

// FormatPoint renders an estimate the way the point list shows it: "{ x; y }"
// with coordinates rounded to digits.
func FormatPoint(p tdoa.EstimatedPoint, digits int) string {
	return fmt.Sprintf("{ %g; %g }", tdoa.Round(p.X, digits), tdoa.Round(p.Y, digits))
}

// WriteSummary prints the results table
func (r *Result) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "📊 Results Summary:\n")
	fmt.Fprintf(w, "┌─────────────────────────┬─────────────────────────────────────────┐\n")
	fmt.Fprintf(w, "│ Parameter               │ Value                                   │\n")
	fmt.Fprintf(w, "├─────────────────────────┼─────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│ Source                  │ %-39s │\n", truncate(r.Source, 39))
	fmt.Fprintf(w, "│ Algorithm               │ %-39s │\n", r.Algorithm)
	fmt.Fprintf(w, "│ Signal Speed            │ %-39g │\n", r.SignalSpeed)
	fmt.Fprintf(w, "│ Error Fraction          │ %-39g │\n", r.ErrorFraction)
	fmt.Fprintf(w, "│ Points Estimated        │ %-39d │\n", len(r.Path))
	fmt.Fprintf(w, "│ Max Error Radius        │ %-39.3f │\n", r.MaxFault())
	fmt.Fprintf(w, "│ Viewport Origin         │ %-39s │\n", fmt.Sprintf("%.3f, %.3f", r.Viewport.LeftCoord, r.Viewport.TopCoord))
	fmt.Fprintf(w, "│ Viewport Span           │ %-39.3f │\n", r.Viewport.MinZoomSpan)
	fmt.Fprintf(w, "│ Duration                │ %-39s │\n", r.Duration)
	fmt.Fprintf(w, "└─────────────────────────┴─────────────────────────────────────────┘\n\n")
}

// WriteSensors prints the sensor positions
func (r *Result) WriteSensors(w io.Writer) {
	fmt.Fprintf(w, "📡 Sensors:\n")
	for i, s := range r.Sensors {
		fmt.Fprintf(w, "   sensor %d: %s\n", i+1, s)
	}
	fmt.Fprintln(w)
}

// WriteDelays prints the delay matrix, one row per transmitter position
func (r *Result) WriteDelays(w io.Writer) {
	fmt.Fprintf(w, "⏱️  Propagation Delays (s):\n")
	if len(r.Delays) == 0 {
		fmt.Fprintf(w, "   (none)\n\n")
		return
	}
	fmt.Fprintf(w, "   %5s  %12s  %12s  %12s\n", "#", "sensor 1", "sensor 2", "sensor 3")
	for i, row := range r.Delays {
		fmt.Fprintf(w, "   %5d  %12.6f  %12.6f  %12.6f\n", i+1, row[0], row[1], row[2])
	}
	fmt.Fprintln(w)
}

// WritePath prints the estimated points as "{ x; y }" lines
func (r *Result) WritePath(w io.Writer, digits int) {
	fmt.Fprintf(w, "📍 Estimated Path:\n")
	if len(r.Path) == 0 {
		fmt.Fprintf(w, "   (empty)\n\n")
		return
	}
	for i, p := range r.Path {
		fmt.Fprintf(w, "   %3d. %s ± %.3f\n", i+1, FormatPoint(p, digits), p.Fault)
	}
	fmt.Fprintln(w)
}

// MaxFault returns the largest error radius on the path
func (r *Result) MaxFault() float64 {
	max := 0.0
	for _, p := range r.Path {
		if p.Fault > max {
			max = p.Fault
		}
	}
	return max
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return "…" + string(runes[len(runes)-n+1:])
}
