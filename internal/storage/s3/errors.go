package s3

import (
	"context"
	stderr "errors"
	"fmt"
	"net"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

const component = "s3"

// S3 API error codes with a specific meaning to the retrieval pipeline
const (
	codeRestoreInProgress = "RestoreAlreadyInProgress"
	codeInvalidState      = "InvalidObjectState"
)

// translateError maps an SDK error onto a RetrievalError code so the retry
// policy can tell transient faults from permanent ones.
func translateError(err error, operation, bucket, key string) error {
	if err == nil {
		return nil
	}
	if stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := errors.ErrCodeNetworkError
	message := fmt.Sprintf("%s failed for s3://%s/%s", operation, bucket, key)

	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		code = errors.ErrCodeObjectNotFound
		message = fmt.Sprintf("object not found: s3://%s/%s", bucket, key)
	case isErrorType[*s3types.NoSuchBucket](err):
		code = errors.ErrCodeBucketNotFound
		message = fmt.Sprintf("bucket not found: %s", bucket)
	case isErrorType[*s3types.InvalidObjectState](err), isErrorType[*s3types.ObjectAlreadyInActiveTierError](err):
		code = errors.ErrCodeInvalidObjectState
	default:
		var apiErr smithy.APIError
		if stderr.As(err, &apiErr) {
			code = codeForAPIError(apiErr.ErrorCode())
		} else if isErrorType[net.Error](err) {
			code = errors.ErrCodeConnectionFailed
		}
	}

	return errors.Wrap(code, message, err).
		WithComponent(component).
		WithOperation(operation).
		WithContext("bucket", bucket).
		WithContext("key", key)
}

func codeForAPIError(code string) errors.ErrorCode {
	switch code {
	case "NoSuchKey", "NotFound":
		return errors.ErrCodeObjectNotFound
	case "NoSuchBucket":
		return errors.ErrCodeBucketNotFound
	case "AccessDenied", "AllAccessDisabled", "AccountProblem":
		return errors.ErrCodeAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken", "TokenRefreshRequired":
		return errors.ErrCodeAuthenticationFailed
	case codeInvalidState, "ObjectAlreadyInActiveTierError":
		return errors.ErrCodeInvalidObjectState
	case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
		return errors.ErrCodeSlowDown
	case "RequestTimeout", "RequestTimeTooSkewed":
		return errors.ErrCodeConnectionTimeout
	case "InternalError", "ServiceUnavailable":
		return errors.ErrCodeInternalError
	case "InvalidArgument", "InvalidRequest", "MalformedXML":
		return errors.ErrCodeInvalidRequest
	default:
		return errors.ErrCodeNetworkError
	}
}

// isRestoreInProgress reports whether err says a restore was already requested
func isRestoreInProgress(err error) bool {
	var apiErr smithy.APIError
	return stderr.As(err, &apiErr) && apiErr.ErrorCode() == codeRestoreInProgress
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return stderr.As(err, &target)
}
