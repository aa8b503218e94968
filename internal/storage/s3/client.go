package s3

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

// AuthFailureFunc is called after a failed credential attempt. It may return
// a replacement provider (for example one built from prompted keys); nil
// retries the current provider.
type AuthFailureFunc func(attempt int, err error) aws.CredentialsProvider

// ClientManager handles S3 client creation and credential verification
type ClientManager struct {
	client *s3.Client
	awsCfg aws.Config
	config *Config
	logger *slog.Logger
}

// NewClientManager loads the AWS configuration, verifies that credentials
// resolve within cfg.AuthAttempts attempts and creates the S3 client.
// onAuthFailure may be nil.
func NewClientManager(ctx context.Context, cfg *Config, logger *slog.Logger, onAuthFailure AuthFailureFunc) (*ClientManager, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", component)

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	// Load AWS configuration
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to load AWS config", err).
			WithComponent(component).
			WithOperation("connect")
	}
	if awsCfg.Region == "" {
		awsCfg.Region = FallbackRegion
	}

	cm := &ClientManager{awsCfg: awsCfg, config: cfg, logger: logger}
	if err := cm.verifyCredentials(ctx, onAuthFailure); err != nil {
		return nil, err
	}

	cm.client = newClient(cm.awsCfg, cfg)
	logger.Debug("S3 client ready",
		"region", awsCfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.ForcePathStyle)
	return cm, nil
}

func newClient(awsCfg aws.Config, cfg *Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
		if cfg.UseDualStack {
			o.EndpointOptions.UseDualStackEndpoint = aws.DualStackEndpointStateEnabled
		}
	})
}

// verifyCredentials resolves credentials up to AuthAttempts times. The loop
// is bounded; the last failure is surfaced as AUTHENTICATION_FAILED.
func (cm *ClientManager) verifyCredentials(ctx context.Context, onAuthFailure AuthFailureFunc) error {
	if cm.awsCfg.Credentials == nil {
		return errors.NewError(errors.ErrCodeCredentialsMissing, "no AWS credentials configured").
			WithComponent(component).
			WithOperation("authenticate")
	}

	var lastErr error
	for attempt := 1; attempt <= cm.config.AuthAttempts; attempt++ {
		creds, err := cm.awsCfg.Credentials.Retrieve(ctx)
		if err == nil && creds.HasKeys() {
			cm.logger.Debug("Credentials resolved", "source", creds.Source, "attempt", attempt)
			return nil
		}
		if err == nil {
			err = fmt.Errorf("credential provider returned no keys")
		}
		lastErr = err

		cm.logger.Warn("Credential resolution failed",
			"attempt", attempt,
			"max_attempts", cm.config.AuthAttempts,
			"error", err)

		if attempt == cm.config.AuthAttempts {
			break
		}
		if onAuthFailure != nil {
			if provider := onAuthFailure(attempt, err); provider != nil {
				cm.awsCfg.Credentials = aws.NewCredentialsCache(provider)
			}
		}
		if err := sleep(ctx, cm.config.AuthBackoff); err != nil {
			return errors.Wrap(errors.ErrCodeOperationCanceled, "credential verification canceled", err).
				WithComponent(component)
		}
	}

	return errors.Wrap(errors.ErrCodeAuthenticationFailed,
		fmt.Sprintf("credentials could not be resolved after %d attempts", cm.config.AuthAttempts), lastErr).
		WithComponent(component).
		WithOperation("authenticate")
}

// GetClient returns the S3 client
func (cm *ClientManager) GetClient() *s3.Client {
	return cm.client
}

// Store returns an ObjectStore backed by the managed client
func (cm *ClientManager) Store() *Store {
	return NewStore(cm.client, cm.config, cm.logger)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
