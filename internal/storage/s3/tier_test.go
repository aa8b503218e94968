package s3

import (
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"

	"github.com/scttfrdmn/coldfetch/internal/retrieval"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

func TestRequiresRestore(t *testing.T) {
	tests := []struct {
		class    string
		expected bool
	}{
		{"GLACIER", true},
		{"glacier", true},
		{"DEEP_ARCHIVE", true},
		{"GLACIER_IR", false},
		{"STANDARD", false},
		{"STANDARD_IA", false},
		{"INTELLIGENT_TIERING", false},
		{"", false},
		{"SOMETHING_NEW", false},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequiresRestore(tt.class))
		})
	}
}

func TestRequiresRestore_AgreesWithClassifierDefault(t *testing.T) {
	for class := range StorageClasses {
		assert.Equal(t, RequiresRestore(class), retrieval.IsArchivedClass(class), class)
	}
}

func TestNormalizeStorageClass(t *testing.T) {
	assert.Equal(t, ClassStandard, NormalizeStorageClass(""))
	assert.Equal(t, ClassGlacier, NormalizeStorageClass(" glacier "))
	assert.Equal(t, ClassDeepArchive, NormalizeStorageClass("DEEP_ARCHIVE"))
}

func TestEstimatedRestoreTime(t *testing.T) {
	assert.Equal(t, "1-5 minutes", EstimatedRestoreTime(ClassGlacier, types.TierExpedited))
	assert.Equal(t, "within 48 hours", EstimatedRestoreTime(ClassDeepArchive, types.TierBulk))
	assert.Empty(t, EstimatedRestoreTime(ClassDeepArchive, types.TierExpedited))
	assert.Empty(t, EstimatedRestoreTime(ClassStandard, types.TierBulk))
}

func TestConvertTierSpeed(t *testing.T) {
	assert.Equal(t, s3types.TierExpedited, ConvertTierSpeed(types.TierExpedited))
	assert.Equal(t, s3types.TierStandard, ConvertTierSpeed(types.TierStandard))
	assert.Equal(t, s3types.TierBulk, ConvertTierSpeed(types.TierBulk))
}
