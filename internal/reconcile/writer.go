package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/internal/store"
)

// Writer applies reconciliation decisions to the normalized store, one row
// at a time. Failures are per-item; the caller accumulates them.
type Writer struct {
	st store.Store
}

// NewWriter creates a Writer over the given store.
func NewWriter(st store.Store) *Writer {
	return &Writer{st: st}
}

// ApplyMetadataUpdate syncs the four re-syncable fields on an existing row.
// Fields the candidate does not carry keep their stored values. Analysis
// columns are never touched here.
func (w *Writer) ApplyMetadataUpdate(ctx context.Context, pair MetadataPair, labelMap map[string]int64) error {
	c := pair.Candidate
	existing := pair.Existing

	upd := model.MetadataUpdate{
		Name:           existing.Name,
		ApplicableDate: existing.ApplicableDate,
		TypeID:         model.ResolveTypeID(c, &existing, labelMap),
		SourceEntryID:  c.EntryID,
		OwnerKey:       c.OwnerKey,
	}
	if c.Label != "" {
		upd.Name = c.Label
	}
	if d := c.AcquiredDate(); d != nil {
		upd.ApplicableDate = d
	}

	return w.st.UpdateDocumentMetadata(ctx, existing.ID, upd)
}

// InsertAnalyzed persists a freshly analyzed candidate as a new normalized
// row. The applicable date falls back to the candidate's acquisition date
// when analysis produced none. A duplicate-URL error from a concurrent run
// surfaces as store.ErrDuplicateURL for the caller to log and continue.
func (w *Writer) InsertAnalyzed(ctx context.Context, c model.Candidate, outcome model.AnalysisOutcome, labelMap map[string]int64) error {
	name := outcome.Name
	if name == "" {
		name = c.Label
	}

	applicable := outcome.ApplicableDate
	if applicable == nil {
		applicable = c.AcquiredDate()
	}

	now := time.Now().UTC()
	doc := model.NormalizedDocument{
		ID:             uuid.NewString(),
		URL:            c.URL,
		OwnerKey:       c.OwnerKey,
		TypeID:         model.ResolveTypeID(c, nil, labelMap),
		Name:           name,
		OCRText:        outcome.OCRText,
		Summary:        outcome.Summary,
		ApplicableDate: applicable,
		AcquiredAtRaw:  c.AcquiredAtRaw,
		SourceEntryID:  c.EntryID,
		ModelID:        outcome.ModelID,
		Confidence:     outcome.Confidence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return w.st.InsertDocument(ctx, doc)
}
