package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

// Location identifies a prefix inside a container (bucket)
type Location struct {
	Container string `json:"container" yaml:"container"`
	Prefix    string `json:"prefix" yaml:"prefix"`
}

// String renders the location in s3:// form
func (l Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Container, l.Prefix)
}

// TierSpeed is the restore speed requested for archived objects
type TierSpeed int

const (
	TierExpedited TierSpeed = iota + 1
	TierStandard
	TierBulk
)

// String returns the canonical tier name
func (t TierSpeed) String() string {
	switch t {
	case TierExpedited:
		return "Expedited"
	case TierStandard:
		return "Standard"
	case TierBulk:
		return "Bulk"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the three known tiers
func (t TierSpeed) Valid() bool {
	return t >= TierExpedited && t <= TierBulk
}

// ParseTierSpeed normalizes a user-supplied tier name, ignoring case and
// surrounding whitespace.
func ParseTierSpeed(s string) (TierSpeed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expedited":
		return TierExpedited, nil
	case "standard":
		return TierStandard, nil
	case "bulk":
		return TierBulk, nil
	}
	return 0, errors.NewError(errors.ErrCodeInvalidTier,
		fmt.Sprintf("unknown restore tier %q (must be one of Expedited, Standard, Bulk)", s)).
		WithContext("tier", s)
}

// MarshalText implements encoding.TextMarshaler
func (t TierSpeed) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.NewError(errors.ErrCodeInvalidTier, fmt.Sprintf("invalid tier value %d", int(t)))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TierSpeed) UnmarshalText(text []byte) error {
	parsed, err := ParseTierSpeed(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RetrievalRequest is one unit of retrieval work
type RetrievalRequest struct {
	Location      string    `json:"location" yaml:"location"`
	RetentionDays int       `json:"retention_days" yaml:"retention_days"`
	Tier          TierSpeed `json:"tier" yaml:"tier"`
}

// Validate checks the fields that the orchestrator does not parse itself
func (r RetrievalRequest) Validate() error {
	if r.RetentionDays < 0 {
		return errors.NewError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("retention days must be >= 0, got %d", r.RetentionDays))
	}
	if !r.Tier.Valid() {
		return errors.NewError(errors.ErrCodeInvalidTier, "restore tier is not set")
	}
	return nil
}

// StorageClass is the resolved storage tier of an object
type StorageClass int

const (
	StorageClassStandard StorageClass = iota
	StorageClassArchived
)

// String returns string representation of the storage class
func (c StorageClass) String() string {
	if c == StorageClassArchived {
		return "Archived"
	}
	return "Standard"
}

// ObjectRecord is one object produced by enumeration
type ObjectRecord struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`

	// StorageClassHint is the class reported by the listing call; it is not
	// authoritative and classification always does a metadata lookup.
	StorageClassHint string `json:"storage_class_hint,omitempty"`
}

// ObjectPage is one page of a paginated listing
type ObjectPage struct {
	Records   []ObjectRecord
	NextToken string
}

// ObjectMetadata is the result of a metadata lookup
type ObjectMetadata struct {
	Key          string
	Size         int64
	LastModified time.Time
	StorageClass string

	// RestoreStatus is the raw restore header, empty when no restore was requested
	RestoreStatus string
}

// Action is the per-object result of a job
type Action int

const (
	ActionSkipped Action = iota
	ActionRestored
	ActionDownloaded
	ActionFailed
)

// String returns string representation of the action
func (a Action) String() string {
	switch a {
	case ActionRestored:
		return "restored"
	case ActionDownloaded:
		return "downloaded"
	case ActionFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome is the result for a single object
type Outcome struct {
	Key    string
	Action Action

	// Path is the local file written for downloaded objects
	Path string
	// Reason says why a skipped object was left alone
	Reason string
	Err    error
}

// Failure records an object that could not be processed
type Failure struct {
	Key string `json:"key"`
	Err error  `json:"-"`
}

// JobResult aggregates the outcomes of one retrieval request
type JobResult struct {
	JobID       string           `json:"job_id"`
	Request     RetrievalRequest `json:"request"`
	Location    Location         `json:"location"`
	Requested   int              `json:"requested"`
	Restored    int              `json:"restored"`
	Downloaded  int              `json:"downloaded"`
	Skipped     int              `json:"skipped"`
	Failed      []Failure        `json:"failed"`
	Aborted     error            `json:"-"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Record folds an outcome into the counters
func (r *JobResult) Record(o Outcome) {
	switch o.Action {
	case ActionRestored:
		r.Restored++
	case ActionDownloaded:
		r.Downloaded++
	case ActionSkipped:
		r.Skipped++
	case ActionFailed:
		r.Failed = append(r.Failed, Failure{Key: o.Key, Err: o.Err})
	}
}

// IsAborted reports whether the job stopped before processing its objects
func (r JobResult) IsAborted() bool {
	return r.Aborted != nil
}

// Processed returns how many objects reached a terminal outcome
func (r JobResult) Processed() int {
	return r.Restored + r.Downloaded + r.Skipped + len(r.Failed)
}

// Duration returns the wall time of the job
func (r JobResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
