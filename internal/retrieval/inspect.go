package retrieval

import (
	"context"

	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Inspection is the dry-run view of one enumerated object.
type Inspection struct {
	Record    types.ObjectRecord
	Metadata  types.ObjectMetadata
	Class     types.StorageClass
	Qualifies bool
	Err       error
}

// Inspect enumerates the location of req and classifies every object that
// passes the retention filter without restoring or downloading anything.
// Objects outside the window and folder markers are reported with Qualifies
// false and are not looked up. A listing failure is reported as the returned error, together
// with whatever was inspected before it.
func (o *Orchestrator) Inspect(ctx context.Context, req types.RetrievalRequest) ([]Inspection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	location, err := ParseLocation(req.Location)
	if err != nil {
		return nil, err
	}

	now := o.opts.Now()
	var inspections []Inspection
	for record, err := range o.enumerator.Records(ctx, location.Container, location.Prefix) {
		if err != nil {
			return inspections, err
		}

		inspection := Inspection{
			Record:    record,
			Qualifies: !IsFolderMarker(record.Key) && Qualifies(record, req.RetentionDays, now),
		}
		if inspection.Qualifies {
			meta, err := o.classifier.Metadata(ctx, location.Container, record.Key)
			if err != nil {
				inspection.Err = err
			} else {
				inspection.Metadata = meta
				inspection.Class = o.classifier.ClassOf(meta)
			}
		}
		inspections = append(inspections, inspection)
	}
	return inspections, nil
}
