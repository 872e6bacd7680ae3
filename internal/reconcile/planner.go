package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/internal/store"
)

// MetadataPair joins a candidate to the existing normalized row it should
// update.
type MetadataPair struct {
	Candidate model.Candidate
	Existing  model.NormalizedDocument
}

// Plan is the classified outcome of comparing candidates to the store.
type Plan struct {
	New             []model.Candidate
	MetadataUpdates []MetadataPair
	Unchanged       int
}

// LoadLabelMap builds the normalized-label → type-id map from active label
// master rows. A query failure degrades to an empty map: label resolution
// then yields no type, but the run proceeds.
func LoadLabelMap(ctx context.Context, st store.Store) map[string]int64 {
	entries, err := st.ListLabelMaster(ctx)
	if err != nil {
		zap.L().Warn("reconcile: label master unavailable, proceeding without type resolution",
			zap.Error(err),
		)
		return map[string]int64{}
	}

	m := make(map[string]int64, len(entries))
	for _, e := range entries {
		if !e.Active {
			continue
		}
		m[model.NormalizeLabel(e.Label)] = e.TypeID
	}
	return m
}

// BuildPlan classifies each candidate against the normalized store. A
// candidate whose URL has no row is new. A candidate whose row disagrees on
// name, applicable date, resolved type, or back-reference id needs a metadata
// update. Everything else is unchanged.
func BuildPlan(candidates []model.Candidate, existingByURL map[string]model.NormalizedDocument, labelMap map[string]int64) Plan {
	var plan Plan

	for _, c := range candidates {
		existing, ok := existingByURL[c.URL]
		if !ok {
			plan.New = append(plan.New, c)
			continue
		}

		if needsMetadataSync(c, existing, labelMap) {
			plan.MetadataUpdates = append(plan.MetadataUpdates, MetadataPair{
				Candidate: c,
				Existing:  existing,
			})
		} else {
			plan.Unchanged++
		}
	}

	return plan
}

// needsMetadataSync is the four-way comparison deciding whether the embedded
// source disagrees with the stored row.
func needsMetadataSync(c model.Candidate, existing model.NormalizedDocument, labelMap map[string]int64) bool {
	if c.Label != "" && c.Label != existing.Name {
		return true
	}

	if d := c.AcquiredDate(); d != nil {
		if existing.ApplicableDate == nil || !existing.ApplicableDate.Equal(*d) {
			return true
		}
	}

	resolved := model.ResolveTypeID(c, &existing, labelMap)
	if !int64PtrEqual(resolved, existing.TypeID) {
		return true
	}

	if c.EntryID != existing.SourceEntryID {
		return true
	}

	return false
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
