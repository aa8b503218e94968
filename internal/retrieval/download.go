package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/retry"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Downloader streams object bodies into a local directory, naming each file
// after the last path segment of its key.
type Downloader struct {
	store   types.ObjectStore
	retryer *retry.Retryer
	logger  *slog.Logger
}

// NewDownloader creates a downloader
func NewDownloader(store types.ObjectStore, retryer *retry.Retryer, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = discardLogger()
	}
	if retryer == nil {
		retryer = retry.New(retry.DefaultConfig())
	}
	return &Downloader{store: store, retryer: retryer, logger: logger}
}

// IsFolderMarker reports whether key is the zero-byte placeholder S3
// consoles create for a "folder". It has no body worth fetching.
func IsFolderMarker(key string) bool {
	return key != "" && strings.HasSuffix(key, "/")
}

// LocalName returns the file name used for key.
func LocalName(key string) (string, error) {
	base := path.Base(key)
	if key == "" || strings.HasSuffix(key, "/") || base == "." || base == "/" || base == ".." {
		return "", errors.NewError(errors.ErrCodeInvalidKey,
			fmt.Sprintf("object key %q has no file name", key)).
			WithComponent(component).
			WithOperation(OpDownload).
			WithContext("key", key)
	}
	return base, nil
}

// Download writes the object to destDir/<base name> and returns the path.
// An existing file of the same name is replaced.
func (d *Downloader) Download(ctx context.Context, container, key, destDir string) (string, error) {
	name, err := LocalName(key)
	if err != nil {
		return "", err
	}
	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWrite, "failed to create destination directory", err).
			WithComponent(component).
			WithOperation(OpDownload).
			WithContext("destination", destDir)
	}
	target := filepath.Join(destDir, name)

	var written int64
	err = d.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var err error
		written, err = d.fetch(ctx, container, key, target)
		return err
	})
	if err != nil {
		return "", backendFault(OpDownload, key, err)
	}

	d.logger.Info("Downloaded object",
		"container", container,
		"key", key,
		"path", target,
		"bytes", written)
	return target, nil
}

// fetch performs one download attempt through a temporary file so a failed
// attempt never leaves a truncated file under the final name.
func (d *Downloader) fetch(ctx context.Context, container, key, target string) (int64, error) {
	body, err := d.store.GetObject(ctx, container, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".part-*")
	if err != nil {
		return 0, fileWriteError(target, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	written, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return 0, errors.Wrap(errors.ErrCodeStorageRead, "failed to stream object body", copyErr).
			WithContext("key", key)
	}
	if closeErr != nil {
		return 0, fileWriteError(target, closeErr)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return 0, fileWriteError(target, err)
	}
	return written, nil
}

func fileWriteError(target string, err error) error {
	return errors.Wrap(errors.ErrCodeFileWrite, "failed to write "+target, err).
		WithComponent(component).
		WithOperation(OpDownload)
}
