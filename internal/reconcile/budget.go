package reconcile

import "github.com/junkusano/famille-docsync/internal/model"

// Allocation is the budget split for one run.
type Allocation struct {
	MetadataTargets []MetadataPair
	AnalyzeTargets  []model.Candidate
	SkippedMetadata int
	SkippedNew      int
}

// Allocate splits a single numeric budget between metadata updates and new
// analyses. Metadata updates are plain row writes and are satisfied first;
// whatever budget remains goes to new analyses. Skipped candidates are not
// queued anywhere: the next run re-plans them because they stay present in
// the source and absent (or stale) in the store.
func Allocate(limit int, plan Plan) Allocation {
	if limit < 0 {
		limit = 0
	}

	metaCount := min(len(plan.MetadataUpdates), limit)
	newCount := min(len(plan.New), limit-metaCount)

	return Allocation{
		MetadataTargets: plan.MetadataUpdates[:metaCount],
		AnalyzeTargets:  plan.New[:newCount],
		SkippedMetadata: len(plan.MetadataUpdates) - metaCount,
		SkippedNew:      len(plan.New) - newCount,
	}
}
