package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func TestNewClientManager_StaticCredentialsAndEndpoint(t *testing.T) {
	isolateAWSEnv(t)

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, listPage2)
	}))
	defer srv.Close()

	cm, err := NewClientManager(context.Background(), &Config{
		Region:          "eu-west-1",
		Endpoint:        srv.URL,
		ForcePathStyle:  true,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, cm.GetClient())

	page, err := cm.Store().ListObjectsPage(context.Background(), "bucket", "logs/", "")
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, "/bucket", gotPath)
}

func newVerifier(attempts int, provider aws.CredentialsProvider) *ClientManager {
	return &ClientManager{
		awsCfg: aws.Config{Credentials: provider},
		config: &Config{AuthAttempts: attempts},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestVerifyCredentials_BoundedAttempts(t *testing.T) {
	calls := 0
	failing := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		calls++
		return aws.Credentials{}, fmt.Errorf("token expired")
	})

	hooks := 0
	cm := newVerifier(3, failing)
	err := cm.verifyCredentials(context.Background(), func(attempt int, err error) aws.CredentialsProvider {
		hooks++
		assert.Equal(t, hooks, attempt)
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthenticationFailed, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "token expired")
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, hooks)
}

func TestVerifyCredentials_HookSuppliesReplacement(t *testing.T) {
	failing := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, fmt.Errorf("no credentials")
	})

	cm := newVerifier(3, failing)
	err := cm.verifyCredentials(context.Background(), func(attempt int, err error) aws.CredentialsProvider {
		return credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", "")
	})
	assert.NoError(t, err)
}

func TestVerifyCredentials_EmptyKeysFail(t *testing.T) {
	empty := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, nil
	})

	err := newVerifier(1, empty).verifyCredentials(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthenticationFailed, errors.CodeOf(err))
}

func TestVerifyCredentials_MissingProvider(t *testing.T) {
	err := newVerifier(3, nil).verifyCredentials(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCredentialsMissing, errors.CodeOf(err))
}

func TestNewClientManager_RegionFromEnvironment(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_REGION", "eu-west-1")

	cm, err := NewClientManager(context.Background(), &Config{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cm.GetClient().Options().Region)
}

func TestNewClientManager_RegionFromProfile(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	require.NoError(t, os.WriteFile(os.Getenv("AWS_CONFIG_FILE"),
		[]byte("[profile archive]\nregion = ap-southeast-2\n"), 0600))

	cm, err := NewClientManager(context.Background(), &Config{
		Profile:         "archive",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", cm.GetClient().Options().Region)
}

func TestNewClientManager_RegionOverrideAndFallback(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_REGION", "eu-west-1")

	cm, err := NewClientManager(context.Background(), &Config{
		Region:          "us-west-2",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", cm.GetClient().Options().Region)

	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	cm, err = NewClientManager(context.Background(), &Config{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackRegion, cm.GetClient().Options().Region)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := (*Config)(nil).withDefaults()
	assert.Empty(t, cfg.Region)
	assert.Equal(t, int32(1000), cfg.PageSize)
	assert.Equal(t, 3, cfg.AuthAttempts)

	cfg = (&Config{Region: "ap-south-1", PageSize: 5000, AuthAttempts: 5}).withDefaults()
	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Equal(t, int32(1000), cfg.PageSize)
	assert.Equal(t, 5, cfg.AuthAttempts)
}
