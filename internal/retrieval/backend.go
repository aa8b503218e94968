package retrieval

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/retry"
)

const component = "retrieval"

// Backend operation names used in logs, errors and retry callbacks.
const (
	OpList     = "list"
	OpHead     = "head"
	OpRestore  = "restore"
	OpDownload = "download"
)

// RetryObserver is notified before every retry of a backend call.
type RetryObserver func(operation string, attempt int, err error)

// newRetryer builds the retry policy for one backend operation.
func newRetryer(config retry.Config, operation string, logger *slog.Logger, observe RetryObserver) *retry.Retryer {
	return retry.New(config).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Warn("Retrying backend call",
			"operation", operation,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if observe != nil {
			observe(operation, attempt, err)
		}
	})
}

// backendFault normalizes an error returned by a retried backend call.
// Cancellation and local file errors keep their codes; everything else is
// surfaced as BACKEND_UNAVAILABLE with the original error as cause.
func backendFault(operation, target string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case stderr.Is(err, context.Canceled), stderr.Is(err, context.DeadlineExceeded):
		if errors.HasCode(err, errors.ErrCodeOperationCanceled) {
			return err
		}
		return errors.Wrap(errors.ErrCodeOperationCanceled, operation+" canceled", err).
			WithComponent(component).
			WithOperation(operation)
	case errors.HasCode(err, errors.ErrCodeBackendUnavailable),
		errors.HasCode(err, errors.ErrCodeOperationCanceled),
		errors.HasCode(err, errors.ErrCodeFileWrite),
		errors.HasCode(err, errors.ErrCodeInvalidKey):
		return err
	}

	return errors.Wrap(errors.ErrCodeBackendUnavailable,
		fmt.Sprintf("%s %s failed", operation, target), err).
		WithComponent(component).
		WithOperation(operation)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
