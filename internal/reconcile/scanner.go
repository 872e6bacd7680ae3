// Package reconcile implements the document reconciliation pipeline: scan the
// embedded document lists, plan against the normalized store, allocate the
// run budget, analyze new documents, and persist results.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/internal/store"
)

// ScanResult is the flattened candidate list plus the per-scan counters.
type ScanResult struct {
	Candidates   []model.Candidate
	SkippedNoURL int
}

// ScanCandidates reads every source record, flattens its embedded document
// list, and emits one candidate per entry with a URL. Entries without a URL
// are counted and dropped. When cutoff is non-nil, entries acquired before it
// are dropped silently (entries with no acquisition date pass the cutoff).
func ScanCandidates(ctx context.Context, st store.Store, cutoff *time.Time) (ScanResult, error) {
	records, err := st.ListSourceRecords(ctx)
	if err != nil {
		return ScanResult{}, eris.Wrap(err, "reconcile: list source records")
	}

	var res ScanResult
	for _, rec := range records {
		refs := parseEmbeddedList(rec)
		for _, ref := range refs {
			if ref.URL == "" {
				res.SkippedNoURL++
				continue
			}

			acquired := parseAcquiredAt(ref.AcquiredAt)
			if cutoff != nil && acquired != nil && acquired.Before(*cutoff) {
				continue
			}

			res.Candidates = append(res.Candidates, model.Candidate{
				URL:           ref.URL,
				OwnerKey:      rec.OwnerKey,
				SourceID:      rec.ID,
				EntryID:       ref.EntryID,
				Label:         ref.Label,
				TypeID:        ref.TypeID,
				AcquiredAt:    acquired,
				AcquiredAtRaw: ref.AcquiredAt,
			})
		}
	}

	return res, nil
}

// parseEmbeddedList normalizes the three shapes the embedded document column
// takes in the source application: a JSON array, a JSON-encoded string
// containing an array, or absent. Any parse failure yields an empty list so
// one malformed record never aborts the scan.
func parseEmbeddedList(rec model.SourceRecord) []model.EmbeddedDocumentRef {
	raw := rec.RawDocs
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var refs []model.EmbeddedDocumentRef
	if err := json.Unmarshal(raw, &refs); err == nil {
		return refs
	}

	// Double-encoded variant: the column holds a string whose content is
	// the JSON array.
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &refs); err == nil {
			return refs
		}
	}

	zap.L().Warn("reconcile: unparseable embedded document list",
		zap.String("source_id", rec.ID),
	)
	return nil
}

// parseAcquiredAt accepts either a bare calendar date or a full RFC 3339
// timestamp. Anything else is treated as no date.
func parseAcquiredAt(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(model.DateLayout, raw); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	return nil
}
