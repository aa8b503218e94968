package metrics

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Job status label values
const (
	StatusCompleted = "completed"
	StatusPartial   = "completed_with_failures"
	StatusAborted   = "aborted"
)

// Collector turns the retrieval event stream into Prometheus metrics. It
// implements types.EventSink and is safe for concurrent use.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	// Prometheus metrics
	objectCounter  *prometheus.CounterVec
	jobCounter     *prometheus.CounterVec
	jobDuration    prometheus.Histogram
	jobsInProgress prometheus.Gauge
	retryCounter   *prometheus.CounterVec
	errorCounter   *prometheus.CounterVec

	// Internal tracking
	summary   Summary
	lastReset time.Time

	// HTTP server for metrics endpoint
	server   *http.Server
	listener net.Listener
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// Summary is a plain snapshot of what the collector has seen
type Summary struct {
	Jobs       int64 `json:"jobs"`
	Aborted    int64 `json:"aborted"`
	Restored   int64 `json:"restored"`
	Downloaded int64 `json:"downloaded"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	Retries    int64 `json:"retries"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config, logger *slog.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9102,
			Path:      "/metrics",
			Namespace: "coldfetch",
			Labels:    make(map[string]string),
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !config.Enabled {
		return &Collector{config: config, logger: logger}, nil
	}

	// Create Prometheus registry
	registry := prometheus.NewRegistry()

	collector := &Collector{
		config:    config,
		registry:  registry,
		logger:    logger,
		lastReset: time.Now(),
	}

	collector.initMetrics()

	// Register metrics with registry
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Emit implements types.EventSink
func (c *Collector) Emit(event types.Event) {
	if !c.config.Enabled {
		return
	}

	switch event.Type {
	case types.EventJobStarted:
		c.jobsInProgress.Inc()
	case types.EventRestored:
		c.recordObject(types.ActionRestored)
	case types.EventDownloaded:
		c.recordObject(types.ActionDownloaded)
	case types.EventSkipped:
		c.recordObject(types.ActionSkipped)
	case types.EventError:
		c.errorCounter.With(prometheus.Labels{"code": string(errors.CodeOf(event.Err))}).Inc()
		if event.Key != "" {
			c.recordObject(types.ActionFailed)
		}
	case types.EventJobCompleted, types.EventJobAborted:
		c.recordJob(event)
	}
}

// RecordRetry counts a retried backend call. Its signature matches
// retrieval.RetryObserver.
func (c *Collector) RecordRetry(operation string, attempt int, err error) {
	if !c.config.Enabled {
		return
	}

	c.retryCounter.With(prometheus.Labels{"operation": operation}).Inc()

	c.mu.Lock()
	c.summary.Retries++
	c.mu.Unlock()
}

// Handler returns the HTTP handler serving the registry
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Add health check endpoint
	mux.HandleFunc("/health", c.healthHandler)

	// Add debug endpoints
	mux.HandleFunc("/debug/jobs", c.debugJobsHandler)
	return mux
}

// Start serves the metrics endpoint until Stop is called
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port %d: %w", c.config.Port, err)
	}

	c.mu.Lock()
	c.listener = listener
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	server := c.server
	c.mu.Unlock()

	// Start server in background
	go func() {
		if err := server.Serve(listener); err != nil && !stderr.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server error", "error", err)
		}
	}()

	c.logger.Info("Metrics endpoint started", "addr", listener.Addr().String(), "path", c.config.Path)
	return nil
}

// Addr returns the address the metrics server listens on, or "" when it is
// not running.
func (c *Collector) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Stop stops the metrics collection server
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	server := c.server
	c.server = nil
	c.listener = nil
	c.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// Registry exposes the underlying Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// GetSummary returns current totals
func (c *Collector) GetSummary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

// ResetSummary resets the plain totals; Prometheus counters are monotonic
// and are left untouched.
func (c *Collector) ResetSummary() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary = Summary{}
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) recordObject(action types.Action) {
	c.objectCounter.With(prometheus.Labels{"action": action.String()}).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch action {
	case types.ActionRestored:
		c.summary.Restored++
	case types.ActionDownloaded:
		c.summary.Downloaded++
	case types.ActionSkipped:
		c.summary.Skipped++
	case types.ActionFailed:
		c.summary.Failed++
	}
}

func (c *Collector) recordJob(event types.Event) {
	c.jobsInProgress.Dec()

	status := StatusCompleted
	switch {
	case event.Type == types.EventJobAborted:
		status = StatusAborted
	case event.Result != nil && len(event.Result.Failed) > 0:
		status = StatusPartial
	}
	c.jobCounter.With(prometheus.Labels{"status": status}).Inc()

	if event.Result != nil && !event.Result.CompletedAt.IsZero() {
		c.jobDuration.Observe(event.Result.Duration().Seconds())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Jobs++
	if status == StatusAborted {
		c.summary.Aborted++
	}
}

func (c *Collector) initMetrics() {
	constLabels := prometheus.Labels(c.config.Labels)

	// Object metrics
	c.objectCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "objects_total",
			Help:        "Objects processed, by action",
			ConstLabels: constLabels,
		},
		[]string{"action"},
	)

	// Job metrics
	c.jobCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "jobs_total",
			Help:        "Retrieval jobs finished, by status",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	c.jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "job_duration_seconds",
			Help:        "Duration of retrieval jobs in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 18), // 10ms to ~22min
			ConstLabels: constLabels,
		},
	)

	c.jobsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "jobs_in_progress",
			Help:        "Retrieval jobs currently running",
			ConstLabels: constLabels,
		},
	)

	// Backend metrics
	c.retryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "backend_retries_total",
			Help:        "Retried backend calls, by operation",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	// Error metrics
	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Errors reported by jobs, by code",
			ConstLabels: constLabels,
		},
		[]string{"code"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.objectCounter,
		c.jobCounter,
		c.jobDuration,
		c.jobsInProgress,
		c.retryCounter,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"coldfetch-metrics"}`)) // Ignore write error for health check
}

func (c *Collector) debugJobsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	// Helper to avoid errcheck issues
	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("coldfetch Job Summary\n")
	writef("=====================\n\n")
	writef("Since: %v\n\n", c.lastReset.Format(time.RFC3339))
	writef("%-12s %10d\n", "Jobs", c.summary.Jobs)
	writef("%-12s %10d\n", "Aborted", c.summary.Aborted)
	writef("%-12s %10d\n", "Restored", c.summary.Restored)
	writef("%-12s %10d\n", "Downloaded", c.summary.Downloaded)
	writef("%-12s %10d\n", "Skipped", c.summary.Skipped)
	writef("%-12s %10d\n", "Failed", c.summary.Failed)
	writef("%-12s %10d\n", "Retries", c.summary.Retries)
}
