package s3

import (
	"time"
)

// FallbackRegion is used when neither the configuration, the environment nor
// the shared config profile names a region.
const FallbackRegion = "us-east-1"

// Config represents S3 backend configuration
type Config struct {
	// Region overrides the region resolved by the AWS SDK (AWS_REGION, the
	// profile). Leave it empty to use that chain.
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	MaxRetries     int           `yaml:"max_retries"`     // SDK-level retries per call
	RequestTimeout time.Duration `yaml:"request_timeout"` // 0 disables the per-call timeout
	PageSize       int32         `yaml:"page_size"`       // ListObjectsV2 MaxKeys

	// Advanced settings
	UseAccelerate bool `yaml:"use_accelerate"`
	UseDualStack  bool `yaml:"use_dual_stack"`

	// AuthAttempts bounds how many times credentials are resolved before
	// the client gives up with AUTHENTICATION_FAILED.
	AuthAttempts int `yaml:"auth_attempts"`
	// AuthBackoff is the pause between credential attempts
	AuthBackoff time.Duration `yaml:"auth_backoff"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:     1,
		RequestTimeout: 30 * time.Second,
		PageSize:       1000,
		AuthAttempts:   3,
		AuthBackoff:    500 * time.Millisecond,
	}
}

// withDefaults fills zero values from NewDefaultConfig
func (c *Config) withDefaults() *Config {
	defaults := NewDefaultConfig()
	if c == nil {
		return defaults
	}

	cfg := *c
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 1000 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.AuthAttempts <= 0 {
		cfg.AuthAttempts = defaults.AuthAttempts
	}
	if cfg.AuthBackoff < 0 {
		cfg.AuthBackoff = 0
	}
	return &cfg
}
