package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scttfrdmn/coldfetch/pkg/retry"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// IsArchivedClass reports whether a backend storage class needs a restore
// before the object body can be read. Glacier Instant Retrieval is readable
// directly and is not archived.
func IsArchivedClass(storageClass string) bool {
	switch strings.ToUpper(strings.TrimSpace(storageClass)) {
	case "GLACIER", "DEEP_ARCHIVE":
		return true
	}
	return false
}

// Classifier resolves the authoritative storage class of an object through a
// metadata lookup.
type Classifier struct {
	store      types.ObjectStore
	retryer    *retry.Retryer
	logger     *slog.Logger
	isArchived func(string) bool
}

// NewClassifier creates a classifier. A nil isArchived uses IsArchivedClass.
func NewClassifier(store types.ObjectStore, retryer *retry.Retryer, logger *slog.Logger, isArchived func(string) bool) *Classifier {
	if logger == nil {
		logger = discardLogger()
	}
	if retryer == nil {
		retryer = retry.New(retry.DefaultConfig())
	}
	if isArchived == nil {
		isArchived = IsArchivedClass
	}
	return &Classifier{store: store, retryer: retryer, logger: logger, isArchived: isArchived}
}

// Metadata fetches the object metadata with the retry policy applied
func (c *Classifier) Metadata(ctx context.Context, container, key string) (types.ObjectMetadata, error) {
	var meta types.ObjectMetadata
	err := c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var err error
		meta, err = c.store.HeadObject(ctx, container, key)
		return err
	})
	if err != nil {
		return types.ObjectMetadata{}, backendFault(OpHead, key, err)
	}
	return meta, nil
}

// Classify returns Archived or Standard for the object
func (c *Classifier) Classify(ctx context.Context, container, key string) (types.StorageClass, error) {
	meta, err := c.Metadata(ctx, container, key)
	if err != nil {
		return types.StorageClassStandard, err
	}
	return c.ClassOf(meta), nil
}

// ClassOf maps metadata to a storage class without calling the backend
func (c *Classifier) ClassOf(meta types.ObjectMetadata) types.StorageClass {
	if c.isArchived(meta.StorageClass) {
		return types.StorageClassArchived
	}
	return types.StorageClassStandard
}
