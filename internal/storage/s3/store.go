package s3

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Operation names used in errors and metrics
const (
	opList    = "ListObjectsV2"
	opHead    = "HeadObject"
	opRestore = "RestoreObject"
	opGet     = "GetObject"
)

// API is the subset of the S3 client used by Store
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	RestoreObject(ctx context.Context, params *s3.RestoreObjectInput, optFns ...func(*s3.Options)) (*s3.RestoreObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ types.ObjectStore = (*Store)(nil)

// Store implements types.ObjectStore on Amazon S3 or any S3-compatible
// endpoint. It is safe for concurrent use.
type Store struct {
	api     API
	config  *Config
	metrics *MetricsCollector
	logger  *slog.Logger
}

// NewStore wraps an S3 API client
func NewStore(api API, cfg *Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		api:     api,
		config:  cfg.withDefaults(),
		metrics: NewMetricsCollector(),
		logger:  logger,
	}
}

// ListObjectsPage implements types.ObjectStore
func (s *Store) ListObjectsPage(ctx context.Context, bucket, prefix, token string) (types.ObjectPage, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(s.config.PageSize),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	start := time.Now()
	result, err := s.api.ListObjectsV2(callCtx, input)
	s.metrics.RecordMetrics(opList, time.Since(start), err)
	if err != nil {
		return types.ObjectPage{}, s.fail(ctx, err, opList, bucket, prefix)
	}

	page := types.ObjectPage{Records: make([]types.ObjectRecord, 0, len(result.Contents))}
	for _, obj := range result.Contents {
		page.Records = append(page.Records, types.ObjectRecord{
			Key:              aws.ToString(obj.Key),
			LastModified:     aws.ToTime(obj.LastModified),
			Size:             aws.ToInt64(obj.Size),
			StorageClassHint: string(obj.StorageClass),
		})
	}
	if aws.ToBool(result.IsTruncated) {
		page.NextToken = aws.ToString(result.NextContinuationToken)
	}
	return page, nil
}

// HeadObject implements types.ObjectStore
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (types.ObjectMetadata, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := s.api.HeadObject(callCtx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	s.metrics.RecordMetrics(opHead, time.Since(start), err)
	if err != nil {
		return types.ObjectMetadata{}, s.fail(ctx, err, opHead, bucket, key)
	}

	return types.ObjectMetadata{
		Key:           key,
		Size:          aws.ToInt64(result.ContentLength),
		LastModified:  aws.ToTime(result.LastModified),
		StorageClass:  NormalizeStorageClass(string(result.StorageClass)),
		RestoreStatus: aws.ToString(result.Restore),
	}, nil
}

// RestoreObject implements types.ObjectStore. A restore that is already in
// progress counts as initiated.
func (s *Store) RestoreObject(ctx context.Context, bucket, key string, days int, tier types.TierSpeed) error {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.RestoreObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		RestoreRequest: &s3types.RestoreRequest{
			Days: aws.Int32(int32(min(max(days, 1), math.MaxInt32))),
			GlacierJobParameters: &s3types.GlacierJobParameters{
				Tier: ConvertTierSpeed(tier),
			},
		},
	}

	start := time.Now()
	_, err := s.api.RestoreObject(callCtx, input)
	if err != nil && isRestoreInProgress(err) {
		s.logger.Info("Restore already in progress", "bucket", bucket, "key", key)
		err = nil
	}
	s.metrics.RecordMetrics(opRestore, time.Since(start), err)
	if err != nil {
		return s.fail(ctx, err, opRestore, bucket, key)
	}
	return nil
}

// GetObject implements types.ObjectStore. No request timeout is applied
// because it would cut off the body stream.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	start := time.Now()
	result, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	s.metrics.RecordMetrics(opGet, time.Since(start), err)
	if err != nil {
		return nil, s.fail(ctx, err, opGet, bucket, key)
	}

	return &countingBody{ReadCloser: result.Body, record: s.metrics.RecordBytesDownloaded}, nil
}

// GetMetrics returns current backend metrics
func (s *Store) GetMetrics() BackendMetrics {
	return s.metrics.GetMetrics()
}

// fail translates err. A per-call timeout that fired while ctx is still
// live is a transient CONNECTION_TIMEOUT, not a cancellation.
func (s *Store) fail(ctx context.Context, err error, operation, bucket, key string) error {
	if ctx.Err() == nil && stderr.Is(err, context.DeadlineExceeded) {
		return errors.NewError(errors.ErrCodeConnectionTimeout,
			fmt.Sprintf("%s timed out after %s", operation, s.config.RequestTimeout)).
			WithComponent(component).
			WithOperation(operation).
			WithContext("bucket", bucket).
			WithContext("key", key)
	}
	return translateError(err, operation, bucket, key)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.RequestTimeout)
}
