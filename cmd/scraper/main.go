package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aluiziolira/go-scrape-phones/config"
	"github.com/aluiziolira/go-scrape-phones/models"
	"github.com/aluiziolira/go-scrape-phones/pipeline"
	"github.com/aluiziolira/go-scrape-phones/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const previewRows = 5

func main() {
	envFile := envFileFromArgs(os.Args[1:])
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", envFile, err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := applyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	flag.String("env-file", envFile, "Dotenv file loaded before reading SCRAPER_* variables")
	flag.IntVar(&cfg.FirstPage, "first-page", cfg.FirstPage, "First results page to fetch")
	flag.IntVar(&cfg.LastPage, "last-page", cfg.LastPage, "Last results page to fetch (inclusive)")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Attempts per page before it is skipped")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Base delay before retrying a failed page")
	flag.DurationVar(&cfg.RetryDelayMax, "retry-delay-max", cfg.RetryDelayMax, "Upper bound for the retry delay")
	flag.DurationVar(&cfg.RetryJitter, "retry-jitter", cfg.RetryJitter, "Random jitter added to each retry delay")
	flag.DurationVar(&cfg.PageDelayMin, "page-delay-min", cfg.PageDelayMin, "Minimum pause between pages")
	flag.DurationVar(&cfg.PageDelayMax, "page-delay-max", cfg.PageDelayMax, "Maximum pause between pages")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.StringVar(&cfg.SearchURL, "search-url", cfg.SearchURL, "Search results URL; the page parameter is appended")
	flag.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	flag.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, dual, or sqlite")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")

	flag.Parse()
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("run_id", s.RunID),
		slog.String("search_url", cfg.SearchURL),
		slog.Int("first_page", cfg.FirstPage),
		slog.Int("last_page", cfg.LastPage),
		slog.Int("pages", cfg.Pages()),
	)

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile, s.RunID)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current page")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	acc := models.NewAccumulator()
	result, err := s.Run(ctx, acc)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	rows, err := p.Export(acc)
	if err != nil {
		slog.Error("export failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(os.Stdout, result, acc, rows, cfg.OutputFile, p.GetMetrics())

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// envFileFromArgs finds -env-file before flag parsing so the dotenv values
// can seed the flag defaults.
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "env-file" || !strings.HasPrefix(arg, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ".env"
}

func applyEnv(cfg *config.Config) error {
	if value, ok, err := config.EnvInt("SCRAPER_FIRST_PAGE"); err != nil {
		return fmt.Errorf("invalid SCRAPER_FIRST_PAGE: %w", err)
	} else if ok {
		cfg.FirstPage = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_LAST_PAGE"); err != nil {
		return fmt.Errorf("invalid SCRAPER_LAST_PAGE: %w", err)
	} else if ok {
		cfg.LastPage = value
	}
	if value, ok, err := config.EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SCRAPER_FORMAT"); ok {
		cfg.OutputFormat = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

func createWriter(format, filename, runID string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	case "sqlite":
		return pipeline.NewSQLiteWriter(filename, runID)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(out io.Writer, result *models.ScraperResult, acc *models.Accumulator, rows []*models.Phone, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	if result.Interrupted {
		fmt.Fprintln(out, "Scrape interrupted")
	} else {
		fmt.Fprintln(out, "Scrape complete")
	}

	fmt.Fprintf(out, "  Run:           %s\n", result.RunID)
	fmt.Fprintf(out, "  Pages done:    %d\n", len(result.PagesWithStatus(models.PageDone)))
	if empty := result.PagesWithStatus(models.PageEmpty); len(empty) > 0 {
		fmt.Fprintf(out, "  Pages empty:   %v\n", empty)
	}
	if skipped := result.PagesWithStatus(models.PageSkipped); len(skipped) > 0 {
		fmt.Fprintf(out, "  Pages skipped: %v\n", skipped)
	}
	if interrupted := result.PagesWithStatus(models.PageInterrupted); len(interrupted) > 0 {
		fmt.Fprintf(out, "  Interrupted:   %v\n", interrupted)
	}
	fmt.Fprintf(out, "  Rows:          %d\n", len(rows))
	fmt.Fprintf(out, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(out, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(out, "  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(out, "  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Fprintf(out, "  Lengths:       %v\n", acc.Lengths())
	if misaligned, ok := metrics["misaligned"].(string); ok && misaligned != "" {
		fmt.Fprintf(out, "  Misaligned:    %s\n", misaligned)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(out, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(out, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Fprintf(out, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(out, separator)

	if len(rows) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(pipeline.CSVHeader, "\t"))
	for _, row := range rows[:min(previewRows, len(rows))] {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", row.Number, row.Name, row.Price, row.Battery, row.Processor, row.Camera, row.Rating)
	}
	tw.Flush()
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
