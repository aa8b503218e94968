package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/scttfrdmn/coldfetch/internal/circuit"
	"github.com/scttfrdmn/coldfetch/internal/config"
	"github.com/scttfrdmn/coldfetch/internal/metrics"
	"github.com/scttfrdmn/coldfetch/internal/retrieval"
	"github.com/scttfrdmn/coldfetch/internal/storage/s3"
	"github.com/scttfrdmn/coldfetch/internal/ui"
	"github.com/scttfrdmn/coldfetch/pkg/types"
	"github.com/scttfrdmn/coldfetch/pkg/utils"
)

// Viper keys. They match the suffixes read by config.LoadFromEnv so that
// COLDFETCH_<KEY> means the same thing on both paths.
const (
	keyConfig         = "config"
	keyLogLevel       = "log_level"
	keyLogFormat      = "log_format"
	keyLogFile        = "log_file"
	keyRegion         = "region"
	keyEndpoint       = "endpoint"
	keyProfile        = "profile"
	keyForcePathStyle = "force_path_style"
	keyDestination    = "destination"
	keyRestoreDays    = "restore_days"
	keyTier           = "tier"
	keyTwoPass        = "two_pass_listing"
	keyParallelJobs   = "parallel_jobs"
	keyMetricsEnabled = "metrics_enabled"
	keyMetricsPort    = "metrics_port"
)

// app carries the state shared by all subcommands of one invocation
type app struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	verbose           bool
	noColor           bool
	promptCredentials bool
	input             *bufio.Reader

	cfg    *config.Configuration
	logger *slog.Logger
	closer io.Closer

	// newStore builds the object store for a session
	newStore func(ctx context.Context) (types.ObjectStore, error)
	now      func() time.Time
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{
		v:      viper.New(),
		in:     in,
		out:    out,
		errOut: errOut,
		now:    time.Now,
	}
	a.newStore = a.s3Store
	return a
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "coldfetch",
		Short: "Restore and download objects from S3 archive storage",
		Long: `coldfetch retrieves the recent objects under an S3 location.

Objects older than the retention window are skipped. Objects in an archive
storage class (GLACIER, DEEP_ARCHIVE) get a restore request at the chosen
tier; everything else is downloaded into the destination directory. Rerun the
same command once restores have completed to download the restored copies.

Examples:
  coldfetch single s3://logs-bucket/app/ --days 7 --tier Bulk
  coldfetch single --bucket logs-bucket --prefix app/ --days 7
  coldfetch batch jobs.csv --parallel 4
  coldfetch classify s3://logs-bucket/app/ --days 7
  coldfetch config init coldfetch.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closer != nil {
				_ = a.closer.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringP(keyConfig, "c", "", "configuration file (YAML)")
	flags.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("log-file", "", "append logs to this file instead of stderr")
	flags.StringP(keyRegion, "r", "", "AWS region (default from AWS_REGION or the profile)")
	flags.String(keyEndpoint, "", "custom S3 endpoint URL")
	flags.StringP(keyProfile, "p", "", "AWS shared config profile")
	flags.Bool("path-style", false, "use path-style bucket addressing")
	flags.StringP("dest", "d", "", "directory downloaded objects are written to")
	flags.Int("restore-days", 0, "days a restored copy stays readable")
	flags.StringP(keyTier, "t", "", "restore tier (Expedited, Standard, Bulk)")
	flags.Bool("two-pass", true, "count objects before processing them")
	flags.Bool("metrics", false, "serve Prometheus metrics while running")
	flags.Int("metrics-port", 0, "port for the metrics endpoint")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "also print skipped objects and progress")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&a.promptCredentials, "prompt-credentials", false, "ask for an access key when credentials cannot be resolved")

	a.bindFlags(flags, map[string]string{
		keyConfig:         keyConfig,
		keyLogLevel:       "log-level",
		keyLogFormat:      "log-format",
		keyLogFile:        "log-file",
		keyRegion:         keyRegion,
		keyEndpoint:       keyEndpoint,
		keyProfile:        keyProfile,
		keyForcePathStyle: "path-style",
		keyDestination:    "dest",
		keyRestoreDays:    "restore-days",
		keyTier:           keyTier,
		keyTwoPass:        "two-pass",
		keyMetricsEnabled: "metrics",
		keyMetricsPort:    "metrics-port",
	})

	// Read from environment variables
	a.v.SetEnvPrefix("COLDFETCH")
	a.v.AutomaticEnv()

	root.AddCommand(
		a.singleCmd(),
		a.batchCmd(),
		a.classifyCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}
}

// setup loads the configuration (defaults, file, environment, flags, in
// increasing precedence), validates it and builds the logger.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}

	cfg := config.NewDefault()
	if path := a.v.GetString(keyConfig); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	a.applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := utils.NewLogger(utils.LoggerConfig{
		Level:  cfg.Global.LogLevel,
		Format: cfg.Monitoring.Logging.Format,
		File:   cfg.Global.LogFile,
		Output: a.errOut,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.closer = closer
	return nil
}

func (a *app) applyOverrides(cfg *config.Configuration) {
	v := a.v
	if v.IsSet(keyLogLevel) {
		cfg.Global.LogLevel = v.GetString(keyLogLevel)
	}
	if v.IsSet(keyLogFormat) {
		cfg.Monitoring.Logging.Format = v.GetString(keyLogFormat)
	}
	if v.IsSet(keyLogFile) {
		cfg.Global.LogFile = v.GetString(keyLogFile)
	}
	if v.IsSet(keyRegion) {
		cfg.Storage.Region = v.GetString(keyRegion)
	}
	if v.IsSet(keyEndpoint) {
		cfg.Storage.Endpoint = v.GetString(keyEndpoint)
	}
	if v.IsSet(keyProfile) {
		cfg.Storage.Profile = v.GetString(keyProfile)
	}
	if v.IsSet(keyForcePathStyle) {
		cfg.Storage.ForcePathStyle = v.GetBool(keyForcePathStyle)
	}
	if v.IsSet(keyDestination) {
		cfg.Retrieval.Destination = v.GetString(keyDestination)
	}
	if v.IsSet(keyRestoreDays) {
		cfg.Retrieval.RestoreDays = v.GetInt(keyRestoreDays)
	}
	if v.IsSet(keyTier) {
		cfg.Retrieval.DefaultTier = v.GetString(keyTier)
	}
	if v.IsSet(keyTwoPass) {
		cfg.Retrieval.TwoPassListing = v.GetBool(keyTwoPass)
	}
	if v.IsSet(keyParallelJobs) {
		cfg.Retrieval.ParallelJobs = v.GetInt(keyParallelJobs)
	}
	if v.IsSet(keyMetricsEnabled) {
		cfg.Monitoring.Metrics.Enabled = v.GetBool(keyMetricsEnabled)
	}
	if v.IsSet(keyMetricsPort) {
		cfg.Global.MetricsPort = v.GetInt(keyMetricsPort)
	}
	if a.noColor {
		cfg.Monitoring.Logging.Color = false
	}
}

// session is everything a retrieval command needs
type session struct {
	orch      *retrieval.Orchestrator
	collector *metrics.Collector
	styles    ui.Styles
}

func (a *app) openSession(ctx context.Context) (*session, func(), error) {
	if err := a.setup(); err != nil {
		return nil, nil, err
	}
	cfg := a.cfg

	backend, err := a.newStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := backend
	if cb := cfg.Network.CircuitBreaker; cb.Enabled {
		store = circuit.Guard(store, circuit.NewBreaker("storage", circuit.Config{
			Threshold: uint32(cb.Threshold),
			Timeout:   cb.Timeout,
			Now:       a.now,
			OnStateChange: func(name string, from, to circuit.State) {
				a.logger.Warn("Circuit breaker changed state",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		}))
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Global.MetricsPort,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: "coldfetch",
	}, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := collector.Start(ctx); err != nil {
		return nil, nil, err
	}

	styles := ui.NewStyles(a.out, cfg.Monitoring.Logging.Color)
	renderer := ui.NewRenderer(a.out, styles, a.verbose)

	orch := retrieval.New(store, types.MultiSink(renderer, collector), retrieval.Options{
		Destination:    cfg.Retrieval.Destination,
		RestoreDays:    cfg.Retrieval.RestoreDays,
		TwoPassListing: cfg.Retrieval.TwoPassListing,
		Retry:          cfg.RetryPolicy(),
		IsArchived:     s3.RequiresRestore,
		OnRetry:        collector.RecordRetry,
		Logger:         a.logger,
		Now:            a.now,
	})

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := collector.Stop(ctx); err != nil {
			a.logger.Warn("Failed to stop metrics endpoint", "error", err)
		}
		if s3store, ok := backend.(*s3.Store); ok {
			m := s3store.GetMetrics()
			a.logger.Debug("Backend statistics",
				"requests", m.Requests,
				"errors", m.Errors,
				"restores", m.Restores,
				"downloads", m.Downloads,
				"bytes", utils.FormatBytes(m.BytesDownloaded),
				"avg_latency", m.AverageLatency)
		}
	}
	return &session{orch: orch, collector: collector, styles: styles}, cleanup, nil
}

// s3Store connects to S3 with the storage settings of the configuration
func (a *app) s3Store(ctx context.Context) (types.ObjectStore, error) {
	storage := a.cfg.Storage
	cm, err := s3.NewClientManager(ctx, &s3.Config{
		Region:          storage.Region,
		Endpoint:        storage.Endpoint,
		Profile:         storage.Profile,
		AccessKeyID:     storage.AccessKeyID,
		SecretAccessKey: storage.SecretAccessKey,
		SessionToken:    storage.SessionToken,
		ForcePathStyle:  storage.ForcePathStyle,
		RequestTimeout:  a.cfg.Network.Timeouts.Request,
		PageSize:        int32(min(storage.PageSize, 1000)),
		UseAccelerate:   storage.UseAccelerate,
		UseDualStack:    storage.UseDualStack,
		AuthAttempts:    storage.AuthAttempts,
	}, a.logger, a.onAuthFailure)
	if err != nil {
		return nil, err
	}
	return cm.Store(), nil
}

// onAuthFailure asks for an access key pair on stdin when
// --prompt-credentials is set. Returning nil keeps the configured provider,
// so a credential file fixed in the meantime is picked up on the next
// attempt.
func (a *app) onAuthFailure(attempt int, err error) aws.CredentialsProvider {
	if !a.promptCredentials {
		return nil
	}

	fmt.Fprintf(a.errOut, "Credential check %d failed: %v\n", attempt, err)
	keyID := a.prompt("AWS access key ID: ")
	secret := a.prompt("AWS secret access key: ")
	if keyID == "" || secret == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(keyID, secret, "")
}

func (a *app) prompt(label string) string {
	fmt.Fprint(a.errOut, label)
	if a.input == nil {
		a.input = bufio.NewReader(a.in)
	}
	line, _ := a.input.ReadString('\n')
	return strings.TrimSpace(line)
}

// request builds a retrieval request with the configured default tier
func (a *app) request(location string, days int) (types.RetrievalRequest, error) {
	tier, err := a.cfg.DefaultTierSpeed()
	if err != nil {
		return types.RetrievalRequest{}, err
	}
	return types.RetrievalRequest{Location: location, RetentionDays: days, Tier: tier}, nil
}
