package s3

import (
	"strings"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// S3 storage class constants
const (
	ClassStandard          = "STANDARD"
	ClassStandardIA        = "STANDARD_IA"
	ClassOneZoneIA         = "ONEZONE_IA"
	ClassReducedRedundancy = "REDUCED_REDUNDANCY"
	ClassGlacierIR         = "GLACIER_IR"
	ClassGlacier           = "GLACIER"
	ClassDeepArchive       = "DEEP_ARCHIVE"
	ClassIntelligent       = "INTELLIGENT_TIERING"
)

// StorageClassInfo describes how objects of a storage class can be read
type StorageClassInfo struct {
	Name             string `json:"name"`
	RetrievalLatency string `json:"retrieval_latency"`

	// RequiresRestore is set for classes whose bodies cannot be read until a
	// temporary copy has been restored.
	RequiresRestore bool `json:"requires_restore"`

	// RestoreTimes maps each supported restore tier to its typical latency
	RestoreTimes map[types.TierSpeed]string `json:"restore_times,omitempty"`
}

// StorageClasses lists the S3 storage classes known to the store
var StorageClasses = map[string]StorageClassInfo{
	ClassStandard: {
		Name:             "Standard",
		RetrievalLatency: "instant",
	},
	ClassStandardIA: {
		Name:             "Standard-Infrequent Access",
		RetrievalLatency: "instant",
	},
	ClassOneZoneIA: {
		Name:             "One Zone-Infrequent Access",
		RetrievalLatency: "instant",
	},
	ClassReducedRedundancy: {
		Name:             "Reduced Redundancy",
		RetrievalLatency: "instant",
	},
	ClassGlacierIR: {
		Name:             "Glacier Instant Retrieval",
		RetrievalLatency: "instant",
	},
	ClassGlacier: {
		Name:             "Glacier Flexible Retrieval",
		RetrievalLatency: "minutes-hours",
		RequiresRestore:  true,
		RestoreTimes: map[types.TierSpeed]string{
			types.TierExpedited: "1-5 minutes",
			types.TierStandard:  "3-5 hours",
			types.TierBulk:      "5-12 hours",
		},
	},
	ClassDeepArchive: {
		Name:             "Glacier Deep Archive",
		RetrievalLatency: "hours",
		RequiresRestore:  true,
		RestoreTimes: map[types.TierSpeed]string{
			types.TierStandard: "within 12 hours",
			types.TierBulk:     "within 48 hours",
		},
	},
	ClassIntelligent: {
		Name:             "Intelligent Tiering",
		RetrievalLatency: "variable",
	},
}

// NormalizeStorageClass upper-cases a reported class. An empty class is
// STANDARD, which is what S3 omits from HeadObject responses.
func NormalizeStorageClass(class string) string {
	class = strings.ToUpper(strings.TrimSpace(class))
	if class == "" {
		return ClassStandard
	}
	return class
}

// RequiresRestore reports whether objects of class must be restored before
// they can be downloaded. Unknown classes are treated as readable.
func RequiresRestore(class string) bool {
	return StorageClasses[NormalizeStorageClass(class)].RequiresRestore
}

// EstimatedRestoreTime returns the typical restore latency of class at tier,
// or "" when the class needs no restore or does not support the tier.
func EstimatedRestoreTime(class string, tier types.TierSpeed) string {
	return StorageClasses[NormalizeStorageClass(class)].RestoreTimes[tier]
}

// ConvertTierSpeed maps a restore speed to the SDK restore tier
func ConvertTierSpeed(tier types.TierSpeed) s3types.Tier {
	switch tier {
	case types.TierExpedited:
		return s3types.TierExpedited
	case types.TierBulk:
		return s3types.TierBulk
	default:
		return s3types.TierStandard
	}
}
