package retrieval

import (
	"context"
	"iter"
	"log/slog"

	"github.com/scttfrdmn/coldfetch/pkg/retry"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Enumerator lists every object under a container/prefix, following
// continuation tokens until the listing is exhausted.
type Enumerator struct {
	store   types.ObjectStore
	retryer *retry.Retryer
	logger  *slog.Logger
}

// NewEnumerator creates an enumerator that retries each page fetch with retryer
func NewEnumerator(store types.ObjectStore, retryer *retry.Retryer, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = discardLogger()
	}
	if retryer == nil {
		retryer = retry.New(retry.DefaultConfig())
	}
	return &Enumerator{store: store, retryer: retryer, logger: logger}
}

// Records returns a lazy sequence over the objects under prefix. Every call
// starts a fresh listing. A page that still fails after the retry budget
// yields a single error and ends the sequence.
func (e *Enumerator) Records(ctx context.Context, container, prefix string) iter.Seq2[types.ObjectRecord, error] {
	return func(yield func(types.ObjectRecord, error) bool) {
		token := ""
		for pageNum := 1; ; pageNum++ {
			page, err := e.page(ctx, container, prefix, token)
			if err != nil {
				yield(types.ObjectRecord{}, err)
				return
			}

			e.logger.Debug("Listed page",
				"container", container,
				"prefix", prefix,
				"page", pageNum,
				"objects", len(page.Records))

			for _, record := range page.Records {
				if !yield(record, nil) {
					return
				}
			}

			if page.NextToken == "" || page.NextToken == token {
				return
			}
			token = page.NextToken
		}
	}
}

// List drains the listing into a slice
func (e *Enumerator) List(ctx context.Context, container, prefix string) ([]types.ObjectRecord, error) {
	var records []types.ObjectRecord
	for record, err := range e.Records(ctx, container, prefix) {
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Count drains the listing and returns only the number of objects
func (e *Enumerator) Count(ctx context.Context, container, prefix string) (int, error) {
	count := 0
	for _, err := range e.Records(ctx, container, prefix) {
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func (e *Enumerator) page(ctx context.Context, container, prefix, token string) (types.ObjectPage, error) {
	var page types.ObjectPage
	err := e.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var err error
		page, err = e.store.ListObjectsPage(ctx, container, prefix, token)
		return err
	})
	if err != nil {
		return types.ObjectPage{}, backendFault(OpList, types.Location{Container: container, Prefix: prefix}.String(), err)
	}
	return page, nil
}
