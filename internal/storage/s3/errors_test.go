package s3

import (
	"context"
	"fmt"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"no such key", &s3types.NoSuchKey{}, errors.ErrCodeObjectNotFound},
		{"not found", &s3types.NotFound{}, errors.ErrCodeObjectNotFound},
		{"no such bucket", &s3types.NoSuchBucket{}, errors.ErrCodeBucketNotFound},
		{"invalid state", &s3types.InvalidObjectState{}, errors.ErrCodeInvalidObjectState},
		{"active tier", &s3types.ObjectAlreadyInActiveTierError{}, errors.ErrCodeInvalidObjectState},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, errors.ErrCodeAccessDenied},
		{"expired token", &smithy.GenericAPIError{Code: "ExpiredToken"}, errors.ErrCodeAuthenticationFailed},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, errors.ErrCodeSlowDown},
		{"internal", &smithy.GenericAPIError{Code: "InternalError"}, errors.ErrCodeInternalError},
		{"unknown api", &smithy.GenericAPIError{Code: "Teapot"}, errors.ErrCodeNetworkError},
		{"wrapped", fmt.Errorf("operation error: %w", &smithy.GenericAPIError{Code: "NoSuchBucket"}), errors.ErrCodeBucketNotFound},
		{"plain", fmt.Errorf("connection reset"), errors.ErrCodeNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err, opHead, "bucket", "key")
			assert.Equal(t, tt.want, errors.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestTranslateError_PassesThroughContextErrors(t *testing.T) {
	assert.Nil(t, translateError(nil, opGet, "b", "k"))
	assert.Equal(t, context.Canceled, translateError(context.Canceled, opGet, "b", "k"))
}

func TestTranslateError_Retryability(t *testing.T) {
	transient := translateError(&smithy.GenericAPIError{Code: "SlowDown"}, opList, "b", "")
	permanent := translateError(&smithy.GenericAPIError{Code: "AccessDenied"}, opList, "b", "")

	var rerr *errors.RetrievalError
	assert.ErrorAs(t, transient, &rerr)
	assert.True(t, rerr.Retryable)
	assert.ErrorAs(t, permanent, &rerr)
	assert.False(t, rerr.Retryable)
}

func TestIsRestoreInProgress(t *testing.T) {
	assert.True(t, isRestoreInProgress(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "RestoreAlreadyInProgress"})))
	assert.False(t, isRestoreInProgress(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isRestoreInProgress(fmt.Errorf("plain")))
}
