// TDOA Export - batch export of estimated transmitter paths
// This program processes every dataset matching a pattern and writes one
// GeoJSON, KML, CSV or SVG file per dataset.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tdoa-tracker/internal/dataset"
	"tdoa-tracker/internal/observability"
	"tdoa-tracker/internal/tdoa"
	"tdoa-tracker/internal/tracker"
	"tdoa-tracker/internal/version"

	"github.com/spf13/cobra"
)

var (
	inputPattern  string        // File pattern for input datasets (e.g., "runs/*.json")
	outputFormat  string        // Output format: geojson, kml, csv, svg
	outputDir     string        // Output directory
	algorithm     string        // Trilateration algorithm
	signalSpeed   float64       // Propagation speed
	errorFraction float64       // Fractional range error
	padding       float64       // Viewport margin
	svgSize       float64       // SVG surface size
	timeout       time.Duration // Per-dataset load timeout
	verbose       bool          // Enable verbose logging
	showVersion   bool          // Show version information
	dryRun        bool          // Show what would be processed without doing it
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tdoa-export",
	Short: "Batch export of estimated transmitter paths",
	Long: `TDOA Export runs the tracker over every dataset matching a pattern and writes
one export file per dataset.

Supported output formats:
  - GeoJSON: For web mapping applications (planar when the dataset has no origin)
  - KML: For Google Earth visualization (requires an origin)
  - CSV: For spreadsheet analysis and custom plotting
  - SVG: The plotted path with error circles

Example usage:
  tdoa-export --input "runs/*.json"
  tdoa-export --input "runs/*.yaml" --algorithm least-squares --output-format svg
  tdoa-export --input "*.json" --dry-run --verbose`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runExport(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")

	// Input/Output flags
	rootCmd.Flags().StringVarP(&inputPattern, "input", "i", "", "input dataset pattern (e.g., 'runs/*.json')")
	rootCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "geojson", "output format (geojson, kml, csv, svg)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "./tdoa-results", "output directory")
	rootCmd.Flags().Float64Var(&svgSize, "svg-size", 800, "SVG surface size in pixels")

	// Processing flags
	rootCmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(tdoa.ClosedForm), "trilateration algorithm (closed-form, least-squares, refine)")
	rootCmd.Flags().Float64VarP(&signalSpeed, "signal-speed", "s", 1000, "signal propagation speed")
	rootCmd.Flags().Float64VarP(&errorFraction, "error-fraction", "e", 0.01, "fractional range error (0.0-1.0)")
	rootCmd.Flags().Float64VarP(&padding, "padding", "p", 1000, "viewport margin")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "load timeout per dataset")

	// Control flags
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be processed without doing it")

	rootCmd.MarkFlagRequired("input")

	// Handle version flag before required flags are checked
	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetVersionInfo("TDOA Export"))
			os.Exit(0)
		}
		return nil
	}
}

// runExport is the main application logic
func runExport() error {
	fmt.Print(version.Banner("TDOA Export"))
	fmt.Println()

	if !validFormat(outputFormat) {
		return fmt.Errorf("invalid output format: %s (must be one of %s)", outputFormat, strings.Join(tracker.Formats, ", "))
	}

	level := "info"
	if verbose {
		level = "debug"
		fmt.Printf("🔧 Configuration:\n")
		fmt.Printf("   Input Pattern: %s\n", inputPattern)
		fmt.Printf("   Output Format: %s\n", outputFormat)
		fmt.Printf("   Output Directory: %s\n", outputDir)
		fmt.Printf("   Algorithm: %s\n", algorithm)
		fmt.Printf("   Signal Speed: %g\n", signalSpeed)
		fmt.Printf("   Error Fraction: %g\n", errorFraction)
		fmt.Printf("   Dry Run: %t\n\n", dryRun)
	}
	log := observability.NewLogger(level, "text")

	files, err := findMatchingFiles(inputPattern)
	if err != nil {
		return fmt.Errorf("failed to find input files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no datasets match pattern %q", inputPattern)
	}

	fmt.Printf("📁 Found %d dataset(s):\n%s\n", len(files), formatFileList(files))

	if dryRun {
		fmt.Printf("🔍 Dry run mode - would export %d file(s) to %s\n", len(files), outputDir)
		return nil
	}

	t, err := tracker.NewTracker(tracker.Config{
		SignalSpeed:   signalSpeed,
		ErrorFraction: errorFraction,
		Padding:       padding,
		Algorithm:     tdoa.Algorithm(algorithm),
		Logger:        log,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	var failed []string
	for _, file := range files {
		outputFile, err := exportDataset(ctx, t, file)
		if err != nil {
			log.Error("export failed", "file", file, "error", err)
			failed = append(failed, file)
			continue
		}
		fmt.Printf("✅ %s -> %s\n", filepath.Base(file), outputFile)
	}

	fmt.Printf("\n📊 Exported %d of %d dataset(s)\n", len(files)-len(failed), len(files))
	if len(failed) > 0 {
		return fmt.Errorf("%d dataset(s) failed:\n%s", len(failed), formatFileList(failed))
	}
	return nil
}

// exportDataset runs one dataset through the tracker and writes its export
func exportDataset(ctx context.Context, t *tracker.Tracker, file string) (string, error) {
	ds, err := dataset.Load(ctx, file, timeout)
	if err != nil {
		return "", err
	}
	result, err := t.Run(ctx, ds)
	if err != nil {
		return "", err
	}
	if result.Empty() {
		fmt.Printf("⚠️  %s has no transmitter positions\n", filepath.Base(file))
	}
	outputFile, err := result.Export(outputFormat, outputDir, svgSize)
	if errors.Is(err, tracker.ErrNoOrigin) {
		return "", fmt.Errorf("%s has no origin, choose geojson, csv or svg: %w", filepath.Base(file), err)
	}
	return outputFile, err
}

func validFormat(format string) bool {
	for _, f := range tracker.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// formatFileList formats a list of files for display
func formatFileList(files []string) string {
	if len(files) == 0 {
		return "  (none)"
	}

	var b strings.Builder
	for i, file := range files {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, filepath.Base(file))
	}
	return b.String()
}

// findMatchingFiles finds JSON and YAML datasets matching the input pattern
func findMatchingFiles(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	var datasets []string
	for _, match := range matches {
		switch strings.ToLower(filepath.Ext(match)) {
		case ".json", ".yaml", ".yml":
			datasets = append(datasets, match)
		}
	}
	return datasets, nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
