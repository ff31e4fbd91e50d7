// Package metrics records per-run scraper metrics in a Prometheus registry. A run is a
// short-lived batch, so instead of serving an endpoint the registry is written once to
// a node_exporter textfile when the run finishes.
package metrics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/johnayoung/go-crypto-scraper/internal/config"
)

const namespace = "cryptoscrape"

// MetricsCollector owns the run metrics and their registry.
type MetricsCollector struct {
	config   config.MetricsConfig
	logger   *slog.Logger
	registry *prometheus.Registry

	symbolsTotal  *prometheus.CounterVec
	rowsTotal     prometheus.Counter
	fetchDuration prometheus.Histogram
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewMetricsCollector creates a collector with a private registry.
func NewMetricsCollector(cfg config.MetricsConfig, logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	mc := &MetricsCollector{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		symbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbols_total",
			Help:      "Symbols processed, by outcome (success or the error type).",
		}, []string{"outcome"}),
		rowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "History rows kept after normalization.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching and normalizing one symbol.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	mc.registry.MustRegister(
		mc.symbolsTotal,
		mc.rowsTotal,
		mc.fetchDuration,
		mc.runDuration,
		mc.lastRun,
	)

	return mc
}

// RecordSymbol records the outcome of one symbol.
func (mc *MetricsCollector) RecordSymbol(symbol, outcome string, rows int, elapsed time.Duration) {
	mc.symbolsTotal.WithLabelValues(outcome).Inc()
	mc.rowsTotal.Add(float64(rows))
	mc.fetchDuration.Observe(elapsed.Seconds())

	mc.logger.Debug("recorded symbol metrics",
		"symbol", symbol,
		"outcome", outcome,
		"rows", rows)
}

// RecordRun records the completion of a run.
func (mc *MetricsCollector) RecordRun(finished time.Time, duration time.Duration) {
	mc.runDuration.Set(duration.Seconds())
	mc.lastRun.Set(float64(finished.Unix()))
}

// Registry returns the underlying registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Flush writes the registry to the configured textfile. It does nothing when
// metrics are disabled.
func (mc *MetricsCollector) Flush() error {
	if !mc.config.Enabled || mc.config.TextfilePath == "" {
		return nil
	}

	if dir := filepath.Dir(mc.config.TextfilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(mc.config.TextfilePath, mc.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	mc.logger.Debug("wrote metrics textfile", "path", mc.config.TextfilePath)
	return nil
}
