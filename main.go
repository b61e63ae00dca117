// TDOA Tracker - transmitter localization from time-difference-of-arrival data
// This program loads three sensor positions and a transmitter track, derives the
// propagation delays, trilaterates the path back with its error radius and
// computes the viewport used to plot it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tdoa-tracker/internal/config"
	"tdoa-tracker/internal/dataset"
	"tdoa-tracker/internal/observability"
	"tdoa-tracker/internal/playback"
	"tdoa-tracker/internal/store"
	"tdoa-tracker/internal/tdoa"
	"tdoa-tracker/internal/tracker"
	"tdoa-tracker/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command line flag variables
var (
	cfgFile     string // Configuration file path
	verbose     bool   // Enable debug logging
	showVersion bool   // Show version information
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tdoa-tracker [dataset]",
	Short: "Estimate a transmitter path from TDOA sensor data",
	Long: `TDOA Tracker computes the propagation delays from a transmitter track to three
fixed sensors, trilaterates every delay row back to a position with a worst-case
error radius, and derives the viewport used to plot sensors and path.

The dataset is a JSON or YAML document (local file or http(s) URL) with
sensor1Coords, sensor2Coords, sensor3Coords and transmitterCoords.

Example usage:
  tdoa-tracker ./api.json
  tdoa-tracker https://example.org/api.json --playback --interval 500ms
  tdoa-tracker ./api.yaml --algorithm refine --output-format svg`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("TDOA Tracker"))
			return
		}

		if len(args) == 1 {
			viper.Set("source.location", args[0])
		}

		if err := runTracker(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")

	// Localization parameters
	rootCmd.Flags().Float64P("signal-speed", "s", 1000, "signal propagation speed (distance units per second)")
	rootCmd.Flags().Float64P("error-fraction", "e", 0.01, "fractional range error (0.0-1.0)")
	rootCmd.Flags().Float64P("padding", "p", 1000, "viewport margin (distance units)")
	rootCmd.Flags().StringP("algorithm", "a", string(tdoa.ClosedForm), "trilateration algorithm (closed-form, least-squares, refine)")

	// Source
	rootCmd.Flags().Duration("timeout", 10*time.Second, "fetch timeout for URL datasets")
	rootCmd.Flags().String("nmea", "", "NMEA log replacing transmitterCoords (needs a dataset origin)")

	// Playback
	rootCmd.Flags().Bool("playback", false, "reveal the path one point at a time")
	rootCmd.Flags().Duration("interval", time.Second, "delay between revealed points")

	// Output
	rootCmd.Flags().StringP("output-format", "f", "", "export format (geojson, kml, csv, svg)")
	rootCmd.Flags().StringP("output", "o", "./tdoa-results", "output directory")
	rootCmd.Flags().Float64("svg-size", 800, "SVG surface size in pixels")

	// Publishing and observability
	rootCmd.Flags().Bool("redis", false, "publish revealed points to Redis (requires --playback)")
	rootCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	rootCmd.Flags().String("redis-key", "tdoa:path", "Redis list key and channel")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")
	rootCmd.Flags().Bool("metrics", false, "serve Prometheus metrics")
	rootCmd.Flags().String("metrics-addr", ":9000", "metrics listen address")
	rootCmd.Flags().Bool("tracing", false, "enable OpenTelemetry tracing")
	rootCmd.Flags().String("tracing-exporter", "stdout", "trace exporter (stdout, otlp)")
	rootCmd.Flags().String("tracing-endpoint", "", "OTLP gRPC endpoint")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("tracker.signal_speed", rootCmd.Flags().Lookup("signal-speed"))
	viper.BindPFlag("tracker.error_fraction", rootCmd.Flags().Lookup("error-fraction"))
	viper.BindPFlag("tracker.padding", rootCmd.Flags().Lookup("padding"))
	viper.BindPFlag("tracker.algorithm", rootCmd.Flags().Lookup("algorithm"))
	viper.BindPFlag("source.timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("source.nmea_track", rootCmd.Flags().Lookup("nmea"))
	viper.BindPFlag("playback.enabled", rootCmd.Flags().Lookup("playback"))
	viper.BindPFlag("playback.interval", rootCmd.Flags().Lookup("interval"))
	viper.BindPFlag("output.format", rootCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output.dir", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("output.size", rootCmd.Flags().Lookup("svg-size"))
	viper.BindPFlag("redis.enabled", rootCmd.Flags().Lookup("redis"))
	viper.BindPFlag("redis.addr", rootCmd.Flags().Lookup("redis-addr"))
	viper.BindPFlag("redis.key", rootCmd.Flags().Lookup("redis-key"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
	viper.BindPFlag("metrics.enabled", rootCmd.Flags().Lookup("metrics"))
	viper.BindPFlag("metrics.addr", rootCmd.Flags().Lookup("metrics-addr"))
	viper.BindPFlag("tracing.enabled", rootCmd.Flags().Lookup("tracing"))
	viper.BindPFlag("tracing.exporter", rootCmd.Flags().Lookup("tracing-exporter"))
	viper.BindPFlag("tracing.endpoint", rootCmd.Flags().Lookup("tracing-endpoint"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// TDOA_TRACKER_SIGNAL_SPEED overrides tracker.signal_speed
	viper.SetEnvPrefix("TDOA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runTracker is the main application logic
func runTracker() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingOptions{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "tdoa-tracker",
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := observability.ShutdownWithTimeout(shutdownTracing, 5*time.Second); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		log.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}

	fmt.Print(version.Banner("TDOA Tracker"))
	fmt.Println()
	if verbose {
		displayConfig(cfg)
	}

	ds, err := loadDataset(ctx, cfg, log)
	if err != nil {
		return err
	}

	t, err := tracker.NewTracker(tracker.Config{
		SignalSpeed:   cfg.Tracker.SignalSpeed,
		ErrorFraction: cfg.Tracker.ErrorFraction,
		Padding:       cfg.Tracker.Padding,
		Algorithm:     tdoa.Algorithm(cfg.Tracker.Algorithm),
		Logger:        log,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	result, err := t.Run(ctx, ds)
	if err != nil {
		if errors.Is(err, tdoa.ErrDegenerateGeometry) {
			return fmt.Errorf("sensors are collinear, the transmitter position cannot be resolved: %w", err)
		}
		return err
	}

	result.WriteSummary(os.Stdout)
	result.WriteSensors(os.Stdout)

	if cfg.Playback.Enabled {
		if err := replay(ctx, cfg, result, metrics, log); err != nil {
			return err
		}
	} else {
		result.WritePath(os.Stdout, tracker.DisplayDigits)
	}

	if cfg.Output.Format != "" {
		if result.Origin == nil && cfg.Output.Format == "kml" {
			return fmt.Errorf("KML export needs an origin in the dataset: %w", tracker.ErrNoOrigin)
		}
		fmt.Printf("📤 Exporting %s to %s...\n", cfg.Output.Format, cfg.Output.Dir)
		path, err := result.Export(cfg.Output.Format, cfg.Output.Dir, cfg.Output.Size)
		if err != nil {
			return fmt.Errorf("failed to export results: %w", err)
		}
		fmt.Printf("📁 Output File: %s\n", path)
	}

	return nil
}

// loadDataset fetches the dataset and applies the NMEA track override
func loadDataset(ctx context.Context, cfg *config.Config, log *slog.Logger) (*dataset.Dataset, error) {
	fmt.Printf("📥 Loading dataset from %s...\n", cfg.Source.Location)
	ds, err := dataset.Load(ctx, cfg.Source.Location, cfg.Source.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	if cfg.Source.NMEATrack != "" {
		if ds.Origin == nil {
			return nil, fmt.Errorf("NMEA track %s needs a dataset origin to project fixes", cfg.Source.NMEATrack)
		}
		track, err := dataset.LoadNMEATrack(cfg.Source.NMEATrack, *ds.Origin)
		if err != nil {
			return nil, err
		}
		log.Info("replaced transmitter track with NMEA fixes", "file", cfg.Source.NMEATrack, "points", len(track))
		ds.SetTrack(track)
	}
	return ds, nil
}

// replay reveals the path point by point and optionally publishes each point
func replay(ctx context.Context, cfg *config.Config, result *tracker.Result, metrics *observability.Metrics, log *slog.Logger) error {
	var sinks []playback.Sink
	if cfg.Redis.Enabled {
		runID := strconv.FormatInt(time.Now().UnixNano(), 36)
		sink, err := store.NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Key, cfg.Redis.TTL, runID)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer sink.Close()
		if err := sink.Reset(ctx); err != nil {
			return err
		}
		log.Info("publishing revealed points", "addr", cfg.Redis.Addr, "key", cfg.Redis.Key, "run_id", runID)
		sinks = append(sinks, sink)
	}

	player := playback.NewPlayer(cfg.Playback.Interval, log, sinks...)
	player.OnPublishError = func(playback.Frame, error) {
		metrics.PublishErrors.Inc()
	}

	fmt.Printf("📍 Estimated Path (one point every %v):\n", cfg.Playback.Interval)
	err := player.Play(ctx, result.Path, func(f playback.Frame) error {
		metrics.PointsRevealed.Inc()
		fmt.Printf("   %3d. %s ± %.3f\n", f.Index+1, tracker.FormatPoint(f.Point, tracker.DisplayDigits), f.Point.Fault)
		return nil
	})
	switch {
	case errors.Is(err, tdoa.ErrEmptyInput):
		fmt.Printf("   (nothing to play)\n\n")
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Printf("\nReceived interrupt signal, stopping playback...\n")
		return nil
	case err != nil:
		return fmt.Errorf("playback failed: %w", err)
	}
	fmt.Println()
	return nil
}

// displayConfig prints the effective configuration
func displayConfig(cfg *config.Config) {
	fmt.Printf("🔧 Configuration:\n")
	fmt.Printf("   Source: %s\n", cfg.Source.Location)
	fmt.Printf("   Signal Speed: %g\n", cfg.Tracker.SignalSpeed)
	fmt.Printf("   Error Fraction: %g\n", cfg.Tracker.ErrorFraction)
	fmt.Printf("   Padding: %g\n", cfg.Tracker.Padding)
	fmt.Printf("   Algorithm: %s\n", cfg.Tracker.Algorithm)
	if cfg.Playback.Enabled {
		fmt.Printf("   Playback Interval: %v\n", cfg.Playback.Interval)
	}
	if cfg.Output.Format != "" {
		fmt.Printf("   Output: %s -> %s\n", cfg.Output.Format, cfg.Output.Dir)
	}
	fmt.Println()
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
