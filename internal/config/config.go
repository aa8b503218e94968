package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/retry"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv
const EnvPrefix = "COLDFETCH_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Storage    StorageConfig    `yaml:"storage"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Network    NetworkConfig    `yaml:"network"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
}

// StorageConfig represents the S3 connection settings
type StorageConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	UseAccelerate   bool   `yaml:"use_accelerate"`
	UseDualStack    bool   `yaml:"use_dual_stack"`
	PageSize        int    `yaml:"page_size"`
	AuthAttempts    int    `yaml:"auth_attempts"`
}

// RetrievalConfig represents retrieval job settings
type RetrievalConfig struct {
	Destination    string `yaml:"destination"`
	RestoreDays    int    `yaml:"restore_days"`
	DefaultTier    string `yaml:"default_tier"`
	TwoPassListing bool   `yaml:"two_pass_listing"`
	ParallelJobs   int    `yaml:"parallel_jobs"`
}

// NetworkConfig represents network configuration
type NetworkConfig struct {
	Timeouts       TimeoutConfig        `yaml:"timeouts"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig controls the breaker in front of the storage backend
type CircuitBreakerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold int           `yaml:"threshold"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TimeoutConfig represents timeout settings
type TimeoutConfig struct {
	Request time.Duration `yaml:"request"`
}

// RetryConfig represents retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      bool          `yaml:"jitter"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Format string `yaml:"format"`
	Color  bool   `yaml:"color"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 9102,
		},
		Storage: StorageConfig{
			Region:       "",
			PageSize:     1000,
			AuthAttempts: 3,
		},
		Retrieval: RetrievalConfig{
			Destination:    ".",
			RestoreDays:    1,
			DefaultTier:    types.TierStandard.String(),
			TwoPassListing: true,
			ParallelJobs:   1,
		},
		Network: NetworkConfig{
			Timeouts: TimeoutConfig{
				Request: 30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   200 * time.Millisecond,
				MaxDelay:    5 * time.Second,
				Multiplier:  2.0,
				Jitter:      true,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:   true,
				Threshold: 5,
				Timeout:   30 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled: false,
				Path:    "/metrics",
			},
			Logging: LoggingConfig{
				Format: "text",
				Color:  true,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigLoad, "failed to read config file", err).
			WithContext("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(errors.ErrCodeConfigLoad, "failed to parse config file", err).
			WithContext("file", filename)
	}

	return nil
}

// LoadFromEnv loads configuration from COLDFETCH_* environment variables
func (c *Configuration) LoadFromEnv() error {
	env := envReader{}

	// Global settings
	env.stringVar("LOG_LEVEL", &c.Global.LogLevel)
	env.stringVar("LOG_FILE", &c.Global.LogFile)
	env.intVar("METRICS_PORT", &c.Global.MetricsPort)

	// Storage settings
	env.stringVar("REGION", &c.Storage.Region)
	env.stringVar("ENDPOINT", &c.Storage.Endpoint)
	env.stringVar("PROFILE", &c.Storage.Profile)
	env.boolVar("FORCE_PATH_STYLE", &c.Storage.ForcePathStyle)
	env.intVar("AUTH_ATTEMPTS", &c.Storage.AuthAttempts)

	// Retrieval settings
	env.stringVar("DESTINATION", &c.Retrieval.Destination)
	env.intVar("RESTORE_DAYS", &c.Retrieval.RestoreDays)
	env.stringVar("TIER", &c.Retrieval.DefaultTier)
	env.boolVar("TWO_PASS_LISTING", &c.Retrieval.TwoPassListing)
	env.intVar("PARALLEL_JOBS", &c.Retrieval.ParallelJobs)

	// Network settings
	env.durationVar("REQUEST_TIMEOUT", &c.Network.Timeouts.Request)
	env.intVar("RETRY_MAX_ATTEMPTS", &c.Network.Retry.MaxAttempts)
	env.durationVar("RETRY_BASE_DELAY", &c.Network.Retry.BaseDelay)
	env.boolVar("CIRCUIT_BREAKER_ENABLED", &c.Network.CircuitBreaker.Enabled)
	env.intVar("CIRCUIT_BREAKER_THRESHOLD", &c.Network.CircuitBreaker.Threshold)

	// Monitoring settings
	env.boolVar("METRICS_ENABLED", &c.Monitoring.Metrics.Enabled)
	env.stringVar("LOG_FORMAT", &c.Monitoring.Logging.Format)

	return env.err
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternalError, "failed to marshal config", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.Wrap(errors.ErrCodeFileWrite, "failed to create config directory", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWrite, "failed to write config file", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Global.LogLevel, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return invalid(fmt.Sprintf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	switch strings.ToLower(c.Monitoring.Logging.Format) {
	case "text", "json":
	default:
		return invalid(fmt.Sprintf("invalid logging format: %s (must be text or json)", c.Monitoring.Logging.Format))
	}

	if c.Monitoring.Metrics.Enabled && (c.Global.MetricsPort <= 0 || c.Global.MetricsPort > 65535) {
		return invalid(fmt.Sprintf("metrics_port must be between 1 and 65535, got %d", c.Global.MetricsPort))
	}

	if c.Storage.PageSize <= 0 || c.Storage.PageSize > 1000 {
		return invalid("page_size must be between 1 and 1000")
	}
	if c.Storage.AuthAttempts <= 0 {
		return invalid("auth_attempts must be greater than 0")
	}

	if c.Retrieval.RestoreDays <= 0 {
		return invalid("restore_days must be greater than 0")
	}
	if c.Retrieval.ParallelJobs <= 0 {
		return invalid("parallel_jobs must be greater than 0")
	}
	if _, err := types.ParseTierSpeed(c.Retrieval.DefaultTier); err != nil {
		return errors.Wrap(errors.ErrCodeConfigValidation, "invalid default_tier", err)
	}

	if c.Network.Retry.MaxAttempts <= 0 {
		return invalid("retry max_attempts must be greater than 0")
	}
	if c.Network.Retry.BaseDelay <= 0 {
		return invalid("retry base_delay must be greater than 0")
	}
	if c.Network.Retry.MaxDelay < c.Network.Retry.BaseDelay {
		return invalid("retry max_delay must not be less than base_delay")
	}

	if cb := c.Network.CircuitBreaker; cb.Enabled {
		if cb.Threshold <= 0 {
			return invalid("circuit_breaker threshold must be greater than 0")
		}
		if cb.Timeout <= 0 {
			return invalid("circuit_breaker timeout must be greater than 0")
		}
	}

	return nil
}

// RetryPolicy converts the retry section into a backend retry policy
func (c *Configuration) RetryPolicy() retry.Config {
	policy := retry.DefaultConfig()
	policy.MaxAttempts = c.Network.Retry.MaxAttempts
	policy.InitialDelay = c.Network.Retry.BaseDelay
	policy.MaxDelay = c.Network.Retry.MaxDelay
	if c.Network.Retry.Multiplier > 0 {
		policy.Multiplier = c.Network.Retry.Multiplier
	}
	policy.Jitter = c.Network.Retry.Jitter
	return policy
}

// DefaultTierSpeed returns the configured default restore tier
func (c *Configuration) DefaultTierSpeed() (types.TierSpeed, error) {
	return types.ParseTierSpeed(c.Retrieval.DefaultTier)
}

func invalid(message string) error {
	return errors.NewError(errors.ErrCodeConfigValidation, message)
}

// envReader applies environment overrides and remembers the first malformed value
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	return val, val != ""
}

func (e *envReader) fail(name, val string, err error) {
	if e.err == nil {
		e.err = errors.Wrap(errors.ErrCodeConfigLoad,
			fmt.Sprintf("invalid value %q for %s%s", val, EnvPrefix, name), err)
	}
}

func (e *envReader) stringVar(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envReader) intVar(name string, dst *int) {
	if val, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolVar(name string, dst *bool) {
	if val, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) durationVar(name string, dst *time.Duration) {
	if val, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = d
	}
}
