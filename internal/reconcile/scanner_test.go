package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkusano/famille-docsync/internal/model"
)

func record(id, owner, docs string) model.SourceRecord {
	rec := model.SourceRecord{ID: id, OwnerKey: owner}
	if docs != "" {
		rec.RawDocs = json.RawMessage(docs)
	}
	return rec
}

func TestScanCandidates_ArrayShape(t *testing.T) {
	st := newMemStore()
	st.records = []model.SourceRecord{
		record("c1", "owner-1", `[{"id":"e1","url":"https://x/doc1","label":"保険証","acquired_at":"2024-03-01"}]`),
	}

	res, err := ScanCandidates(context.Background(), st, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, "https://x/doc1", c.URL)
	assert.Equal(t, "owner-1", c.OwnerKey)
	assert.Equal(t, "c1", c.SourceID)
	assert.Equal(t, "e1", c.EntryID)
	assert.Equal(t, "保険証", c.Label)
	require.NotNil(t, c.AcquiredAt)
	assert.Equal(t, "2024-03-01", c.AcquiredAt.Format(model.DateLayout))
}

func TestScanCandidates_DoubleEncodedShape(t *testing.T) {
	st := newMemStore()
	st.records = []model.SourceRecord{
		record("c1", "owner-1", `"[{\"url\":\"https://x/doc2\",\"label\":\"契約書\"}]"`),
	}

	res, err := ScanCandidates(context.Background(), st, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "https://x/doc2", res.Candidates[0].URL)
}

func TestScanCandidates_AbsentAndMalformed(t *testing.T) {
	st := newMemStore()
	st.records = []model.SourceRecord{
		record("c1", "owner-1", ""),
		record("c2", "owner-1", "null"),
		record("c3", "owner-1", `{"not":"a list"}`),
		record("c4", "owner-1", `"also not json"`),
		record("c5", "owner-1", `[{"url":"https://x/ok"}]`),
	}

	res, err := ScanCandidates(context.Background(), st, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "https://x/ok", res.Candidates[0].URL)
}

func TestScanCandidates_NoURLCounted(t *testing.T) {
	st := newMemStore()
	st.records = []model.SourceRecord{
		record("c1", "owner-1", `[{"label":"保険証"},{"url":"","label":"契約書"},{"url":"https://x/doc1"}]`),
	}

	res, err := ScanCandidates(context.Background(), st, nil)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, 2, res.SkippedNoURL)
}

func TestScanCandidates_Cutoff(t *testing.T) {
	st := newMemStore()
	st.records = []model.SourceRecord{
		record("c1", "owner-1", `[
			{"url":"https://x/old","acquired_at":"2020-01-01"},
			{"url":"https://x/new","acquired_at":"2024-03-01"},
			{"url":"https://x/undated"}
		]`),
	}

	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := ScanCandidates(context.Background(), st, &cutoff)
	require.NoError(t, err)

	urls := make([]string, len(res.Candidates))
	for i, c := range res.Candidates {
		urls[i] = c.URL
	}
	// Undated entries pass the cutoff; only the dated-old one is dropped.
	assert.ElementsMatch(t, []string{"https://x/new", "https://x/undated"}, urls)
	assert.Zero(t, res.SkippedNoURL)
}

func TestParseAcquiredAt(t *testing.T) {
	assert.Nil(t, parseAcquiredAt(""))
	assert.Nil(t, parseAcquiredAt("not a date"))

	d := parseAcquiredAt("2024-03-01")
	require.NotNil(t, d)
	assert.Equal(t, 2024, d.Year())

	ts := parseAcquiredAt("2024-03-01T10:30:00Z")
	require.NotNil(t, ts)
	assert.Equal(t, 10, ts.Hour())
}
