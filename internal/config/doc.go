/*
Package config provides configuration management for coldfetch.

Configuration is assembled from several sources. Later sources win:

	┌─────────────────────────────────────────────┐
	│          Command-line flags                 │ ← Highest Priority
	│        (bound through viper)                │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Environment Variables                │
	│           (COLDFETCH_*)                     │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Sections

	global:
	  log_level: INFO            # DEBUG, INFO, WARN, ERROR
	  log_file: ""               # empty logs to stderr
	  metrics_port: 9102
	storage:
	  region: ""                 # empty uses AWS_REGION or the profile
	  endpoint: ""               # S3-compatible endpoint override
	  profile: ""                # shared config profile
	  force_path_style: false
	  page_size: 1000            # ListObjectsV2 MaxKeys
	  auth_attempts: 3           # bounded credential resolution
	retrieval:
	  destination: .
	  restore_days: 1
	  default_tier: Standard     # Expedited, Standard, Bulk
	  two_pass_listing: true     # count objects before processing
	  parallel_jobs: 1           # concurrent batch rows
	network:
	  timeouts:
	    request: 30s
	  retry:
	    max_attempts: 3
	    base_delay: 200ms
	    max_delay: 5s
	    multiplier: 2
	    jitter: true
	  circuit_breaker:
	    enabled: true
	    threshold: 5             # consecutive backend faults before opening
	    timeout: 30s             # open period before a probe is let through
	monitoring:
	  metrics:
	    enabled: false
	    path: /metrics
	  logging:
	    format: text             # text or json
	    color: true

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
	    return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
	    return err
	}
	if err := cfg.Validate(); err != nil {
	    return err
	}
	policy := cfg.RetryPolicy()

Load errors carry CONFIG_LOAD and validation errors CONFIG_VALIDATION.
*/
package config
