package retrieval

import (
	"time"

	"github.com/scttfrdmn/coldfetch/internal/retrieval/retrievaltest"
	"github.com/scttfrdmn/coldfetch/pkg/retry"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fastRetry() retry.Config {
	config := retry.DefaultConfig()
	config.InitialDelay = time.Millisecond
	config.MaxDelay = 5 * time.Millisecond
	config.Jitter = false
	return config
}

func daysAgo(days int) time.Time {
	return testNow.Add(-time.Duration(days) * 24 * time.Hour)
}

func putObjects(store *retrievaltest.Store, container string, objects ...retrievaltest.Object) {
	for _, obj := range objects {
		store.Put(container, obj)
	}
}
