package tracker

import (
	"fmt"
	"io"
	"strings"
)

// WritePlot draws an ASCII map of the sensors and the path using the viewport
// scaling. Sensors are drawn as 1..3, path points as '*', overlapping path
// points as '#'. Rows grow downward like the SVG surface.
func (r *Result) WritePlot(w io.Writer, width, height int) {
	if width < 2 || height < 2 {
		fmt.Fprintf(w, "🗺️  Plot: surface too small (%dx%d)\n\n", width, height)
		return
	}
	span := r.Viewport.MinZoomSpan
	if span <= 0 {
		fmt.Fprintf(w, "🗺️  Plot: viewport has no extent\n\n")
		return
	}

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	cell := func(x, y float64) (int, int, bool) {
		col := int((x - r.Viewport.LeftCoord) / span * float64(width-1))
		row := int((y - r.Viewport.TopCoord) / span * float64(height-1))
		if col < 0 || col >= width || row < 0 || row >= height {
			return 0, 0, false
		}
		return col, row, true
	}

	for _, p := range r.Path {
		col, row, ok := cell(p.X, p.Y)
		if !ok {
			continue
		}
		if grid[row][col] == ' ' {
			grid[row][col] = '*'
		} else {
			grid[row][col] = '#'
		}
	}
	// Sensors last so they are never hidden by the path
	for i, s := range r.Sensors {
		if col, row, ok := cell(s.X, s.Y); ok {
			grid[row][col] = rune('1' + i)
		}
	}

	fmt.Fprintf(w, "🗺️  Transmitter Path:\n")
	fmt.Fprintf(w, "Span: %.3f | Left: %.3f | Top: %.3f\n\n", span, r.Viewport.LeftCoord, r.Viewport.TopCoord)
	for i, row := range grid {
		y := r.Viewport.TopCoord + float64(i)/float64(height-1)*span
		fmt.Fprintf(w, "%10.1f |%s|\n", y, string(row))
	}
	fmt.Fprintf(w, "           +%s+\n", strings.Repeat("-", width))

	left := fmt.Sprintf("%.1f", r.Viewport.LeftCoord)
	right := fmt.Sprintf("%.1f", r.Viewport.LeftCoord+span)
	pad := width - len(left) - len(right) + 1
	if pad < 1 {
		pad = 1
	}
	fmt.Fprintf(w, "           %s%s%s\n", left, strings.Repeat(" ", pad), right)
	fmt.Fprintf(w, "\nLegend: 1-3 = sensors, * = estimate, # = multiple estimates, X →, Y ↓\n\n")
}
