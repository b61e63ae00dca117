// TDOA Reader - Utility to display the contents of TDOA tracker datasets
// This program prints sensors, track, delay matrix and the estimated path of a
// dataset, and can draw the path as an ASCII plot.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tdoa-tracker/internal/dataset"
	"tdoa-tracker/internal/tdoa"
	"tdoa-tracker/internal/tracker"
	"tdoa-tracker/internal/version"

	"github.com/spf13/cobra"
)

var (
	showDelays    bool
	showTrack     bool
	showGraph     bool
	outputFormat  string
	graphWidth    int
	graphHeight   int
	digits        int
	signalSpeed   float64
	errorFraction float64
	padding       float64
	algorithm     string
	timeout       time.Duration
	showVersion   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tdoa-reader [dataset]",
	Short: "Display the contents of TDOA tracker datasets",
	Long: `TDOA Reader displays the sensors and transmitter track of a dataset together
with the estimated path. Useful for checking a dataset before plotting it.

Display modes:
  --track      Show the ground-truth transmitter positions
  --delays     Show the propagation delay matrix
  --graph      Draw sensors and estimated path as an ASCII plot`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("TDOA Reader"))
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: dataset required\n")
			cmd.Usage()
			os.Exit(1)
		}

		if err := displayDataset(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().BoolVarP(&showTrack, "track", "t", false, "display transmitter positions")
	rootCmd.Flags().BoolVarP(&showDelays, "delays", "d", false, "display the propagation delay matrix")
	rootCmd.Flags().BoolVarP(&showGraph, "graph", "g", false, "draw an ASCII plot of sensors and path")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json)")
	rootCmd.Flags().IntVar(&graphWidth, "graph-width", 80, "width of the ASCII plot in characters")
	rootCmd.Flags().IntVar(&graphHeight, "graph-height", 30, "height of the ASCII plot in lines")
	rootCmd.Flags().IntVar(&digits, "digits", tracker.DisplayDigits, "decimal digits in the point list")
	rootCmd.Flags().Float64VarP(&signalSpeed, "signal-speed", "s", 1000, "signal propagation speed")
	rootCmd.Flags().Float64VarP(&errorFraction, "error-fraction", "e", 0.01, "fractional range error (0.0-1.0)")
	rootCmd.Flags().Float64VarP(&padding, "padding", "p", 1000, "viewport margin")
	rootCmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(tdoa.ClosedForm), "trilateration algorithm (closed-form, least-squares, refine)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "fetch timeout for URL datasets")
}

// displayDataset loads, solves and prints a dataset
func displayDataset(location string) error {
	ctx := context.Background()

	ds, err := dataset.Load(ctx, location, timeout)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	t, err := tracker.NewTracker(tracker.Config{
		SignalSpeed:   signalSpeed,
		ErrorFraction: errorFraction,
		Padding:       padding,
		Algorithm:     tdoa.Algorithm(algorithm),
	})
	if err != nil {
		return err
	}

	result, err := t.Run(ctx, ds)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	if outputFormat != "table" {
		return fmt.Errorf("invalid output format: %s (must be 'table' or 'json')", outputFormat)
	}

	fmt.Printf("TDOA DATASET READER %s\n\n", version.GetFullVersion())

	fmt.Printf("📁 Dataset Information:\n")
	fmt.Printf("Source: %s\n", filepath.Base(location))
	if info, err := os.Stat(location); err == nil {
		fmt.Printf("Size: %d bytes\n", info.Size())
		fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
	}
	if ds.Origin != nil {
		fmt.Printf("Origin: %.8f°, %.8f°\n", ds.Origin.Latitude, ds.Origin.Longitude)
	}
	if ds.HasMeasuredDelays() {
		fmt.Printf("Delays: measured (%d rows)\n", len(ds.Timestamps))
	} else {
		fmt.Printf("Transmitter Positions: %d\n", len(ds.Transmitter))
	}
	fmt.Println()

	result.WriteSensors(os.Stdout)

	if showTrack {
		displayTrack(result.Track)
	}
	if showDelays {
		result.WriteDelays(os.Stdout)
	}

	result.WritePath(os.Stdout, digits)

	fmt.Printf("🔲 Viewport:\n")
	fmt.Printf("Left: %.3f\n", result.Viewport.LeftCoord)
	fmt.Printf("Top: %.3f\n", result.Viewport.TopCoord)
	fmt.Printf("Span: %.3f\n\n", result.Viewport.MinZoomSpan)

	if showGraph {
		result.WritePlot(os.Stdout, graphWidth, graphHeight)
	}

	return nil
}

// displayTrack prints the ground-truth positions next to their index
func displayTrack(track []tdoa.Point2D) {
	fmt.Printf("🛰️  Transmitter Track:\n")
	if len(track) == 0 {
		fmt.Printf("   (empty)\n\n")
		return
	}
	for i, p := range track {
		fmt.Printf("   %3d. %s\n", i+1, p)
	}
	fmt.Println()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
