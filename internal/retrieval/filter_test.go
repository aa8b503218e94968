package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scttfrdmn/coldfetch/pkg/types"
)

func TestQualifies(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		modified time.Time
		days     int
		expected bool
	}{
		{"modified now", now, 7, true},
		{"yesterday", now.Add(-24 * time.Hour), 7, true},
		{"exactly at cutoff", now.Add(-7 * 24 * time.Hour), 7, true},
		{"just before cutoff", now.Add(-7*24*time.Hour - time.Second), 7, false},
		{"ten days ago", now.Add(-10 * 24 * time.Hour), 7, false},
		{"zero days keeps now", now, 0, true},
		{"zero days drops the past", now.Add(-time.Millisecond), 0, false},
		{"future modification", now.Add(time.Hour), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := types.ObjectRecord{Key: "k", LastModified: tt.modified}
			assert.Equal(t, tt.expected, Qualifies(record, tt.days, now))
		})
	}
}

func TestQualifies_MonotonicInDays(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	ages := []time.Duration{0, time.Hour, 36 * time.Hour, 5 * 24 * time.Hour, 40 * 24 * time.Hour}

	for _, age := range ages {
		record := types.ObjectRecord{Key: "k", LastModified: now.Add(-age)}
		for days := 0; days < 60; days++ {
			if Qualifies(record, days, now) {
				assert.True(t, Qualifies(record, days+1, now),
					"age %s qualified at %d days but not at %d", age, days, days+1)
			}
		}
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC), Cutoff(7, now))
	assert.Equal(t, now, Cutoff(0, now))
}
