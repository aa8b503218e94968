package retrieval

import (
	"context"
	"log/slog"

	"github.com/scttfrdmn/coldfetch/pkg/retry"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// DefaultRestoreDays is how long a restored copy stays readable.
const DefaultRestoreDays = 1

// Restorer initiates restores of archived objects. It never waits for the
// restored copy; the object has to be fetched by a later run.
type Restorer struct {
	store   types.ObjectStore
	retryer *retry.Retryer
	logger  *slog.Logger
	days    int
}

// NewRestorer creates a restorer that keeps restored copies for days
func NewRestorer(store types.ObjectStore, retryer *retry.Retryer, logger *slog.Logger, days int) *Restorer {
	if logger == nil {
		logger = discardLogger()
	}
	if retryer == nil {
		retryer = retry.New(retry.DefaultConfig())
	}
	if days <= 0 {
		days = DefaultRestoreDays
	}
	return &Restorer{store: store, retryer: retryer, logger: logger, days: days}
}

// Restore requests a temporary copy of the object at the given speed tier
func (r *Restorer) Restore(ctx context.Context, container, key string, tier types.TierSpeed) error {
	err := r.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		return r.store.RestoreObject(ctx, container, key, r.days, tier)
	})
	if err != nil {
		return backendFault(OpRestore, key, err)
	}

	r.logger.Info("Initiated restore",
		"container", container,
		"key", key,
		"tier", tier.String(),
		"days", r.days)
	return nil
}
