package retrieval

import (
	"time"

	"github.com/scttfrdmn/coldfetch/pkg/types"
)

const day = 24 * time.Hour

// Cutoff returns the oldest modification time that still qualifies.
func Cutoff(retentionDays int, now time.Time) time.Time {
	return now.Add(-time.Duration(retentionDays) * day)
}

// Qualifies reports whether record was modified within the last
// retentionDays days of now. Zero days keeps only objects modified at or
// after now.
func Qualifies(record types.ObjectRecord, retentionDays int, now time.Time) bool {
	return !record.LastModified.Before(Cutoff(retentionDays, now))
}
