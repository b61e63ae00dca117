package tracker

import (
	"fmt"
	"io"
	"os"
)

const (
	sensorRadius = 5
	pathRadius   = 3
	faultColor   = "#00000030"
)

// ExportSVG renders the sensors and the estimated path onto a square surface
func (r *Result) ExportSVG(filename string, size float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create SVG file: %w", err)
	}
	defer file.Close()

	return r.WriteSVG(file, size)
}

// WriteSVG draws a white background, green labelled sensors, the path as black
// dots joined by segments, a translucent circle per point whose radius is the
// error radius at plot scale, and blue 1-based point labels.
func (r *Result) WriteSVG(w io.Writer, size float64) error {
	if size <= 0 {
		return fmt.Errorf("svg size must be positive, got %g", size)
	}
	zoom := r.Viewport.Zoom(size)

	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n", size, size, size, size)
	fmt.Fprintf(w, `  <rect x="0" y="0" width="%g" height="%g" fill="#FFFFFF"/>`+"\n", size, size)

	for i, sensor := range r.Sensors {
		x, y := r.Viewport.Project(sensor, zoom)
		fmt.Fprintf(w, `  <circle cx="%.2f" cy="%.2f" r="%d" fill="green"/>`+"\n", x, y, sensorRadius)
		fmt.Fprintf(w, `  <text x="%.2f" y="%.2f" fill="green" font-family="sans-serif" font-size="12">sensor %d</text>`+"\n",
			x+sensorRadius-40, y-sensorRadius-10, i+1)
	}

	for i, p := range r.Path {
		x, y := r.Viewport.Project(p.Point(), zoom)
		if i > 0 {
			px, py := r.Viewport.Project(r.Path[i-1].Point(), zoom)
			fmt.Fprintf(w, `  <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="black" stroke-width="1"/>`+"\n", px, py, x, y)
		}
		fmt.Fprintf(w, `  <circle cx="%.2f" cy="%.2f" r="%d" fill="black"/>`+"\n", x, y, pathRadius)
		if radius := p.Fault * zoom; radius > 0 {
			fmt.Fprintf(w, `  <circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>`+"\n", x, y, radius, faultColor)
		}
		fmt.Fprintf(w, `  <text x="%.2f" y="%.2f" fill="blue" font-family="sans-serif" font-size="12">%d</text>`+"\n",
			x+pathRadius-10, y-pathRadius-10, i+1)
	}

	_, err := fmt.Fprintln(w, "</svg>")
	return err
}
