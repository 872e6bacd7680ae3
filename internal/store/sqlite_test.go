package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkusano/famille-docsync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string   { return &s }
func i64Ptr(v int64) *int64     { return &v }
func f64Ptr(v float64) *float64 { return &v }

func dayPtr(s string) *time.Time {
	t, err := time.ParseInLocation(model.DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return &t
}

// --- Documents ---

func TestSQLite_InsertAndGetDocument(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := model.NormalizedDocument{
		ID:             "d1",
		URL:            "https://x/doc1",
		OwnerKey:       "owner-1",
		TypeID:         i64Ptr(3),
		Name:           "保険証",
		OCRText:        strPtr("テキスト"),
		Summary:        strPtr("要約"),
		ApplicableDate: dayPtr("2024-03-01"),
		AcquiredAtRaw:  "2024-03-01",
		SourceEntryID:  "e1",
		ModelID:        strPtr("test-model"),
		Confidence:     f64Ptr(85),
	}
	require.NoError(t, st.InsertDocument(ctx, doc))

	got, err := st.GetDocumentsByURLs(ctx, []string{"https://x/doc1", "https://x/other"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got["https://x/doc1"]
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, "保険証", d.Name)
	require.NotNil(t, d.TypeID)
	assert.EqualValues(t, 3, *d.TypeID)
	require.NotNil(t, d.OCRText)
	assert.Equal(t, "テキスト", *d.OCRText)
	require.NotNil(t, d.ApplicableDate)
	assert.Equal(t, "2024-03-01", d.ApplicableDate.Format(model.DateLayout))
	require.NotNil(t, d.Confidence)
	assert.Equal(t, 85.0, *d.Confidence)
	assert.Equal(t, "e1", d.SourceEntryID)
}

func TestSQLite_InsertDocument_NullableFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, model.NormalizedDocument{
		ID:       "d1",
		URL:      "https://x/doc1",
		OwnerKey: "owner-1",
		Name:     "保険証",
	}))

	got, err := st.GetDocumentsByURLs(ctx, []string{"https://x/doc1"})
	require.NoError(t, err)

	d := got["https://x/doc1"]
	assert.Nil(t, d.TypeID)
	assert.Nil(t, d.OCRText)
	assert.Nil(t, d.Summary)
	assert.Nil(t, d.ApplicableDate)
	assert.Nil(t, d.ModelID)
	assert.Nil(t, d.Confidence)
}

func TestSQLite_InsertDocument_DuplicateURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := model.NormalizedDocument{ID: "d1", URL: "https://x/doc1", OwnerKey: "o", Name: "a"}
	require.NoError(t, st.InsertDocument(ctx, doc))

	doc.ID = "d2"
	err := st.InsertDocument(ctx, doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateURL))
}

func TestSQLite_GetDocumentsByURLs_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetDocumentsByURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestSQLite_UpdateDocumentMetadata(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, model.NormalizedDocument{
		ID:       "d1",
		URL:      "https://x/doc1",
		OwnerKey: "owner-1",
		Name:     "保険証",
		OCRText:  strPtr("既存テキスト"),
		Summary:  strPtr("既存要約"),
	}))

	err := st.UpdateDocumentMetadata(ctx, "d1", model.MetadataUpdate{
		Name:           "健康保険証",
		ApplicableDate: dayPtr("2024-04-01"),
		TypeID:         i64Ptr(7),
		SourceEntryID:  "e2",
		OwnerKey:       "owner-1",
	})
	require.NoError(t, err)

	got, err := st.GetDocumentsByURLs(ctx, []string{"https://x/doc1"})
	require.NoError(t, err)

	d := got["https://x/doc1"]
	assert.Equal(t, "健康保険証", d.Name)
	require.NotNil(t, d.ApplicableDate)
	assert.Equal(t, "2024-04-01", d.ApplicableDate.Format(model.DateLayout))
	require.NotNil(t, d.TypeID)
	assert.EqualValues(t, 7, *d.TypeID)
	assert.Equal(t, "e2", d.SourceEntryID)

	// Analysis columns stay untouched.
	require.NotNil(t, d.OCRText)
	assert.Equal(t, "既存テキスト", *d.OCRText)
	require.NotNil(t, d.Summary)
	assert.Equal(t, "既存要約", *d.Summary)
}

// --- Source records ---

func TestSQLite_ListSourceRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO clients (id, owner_key, docs) VALUES (?, ?, ?), (?, ?, NULL)`,
		"c1", "owner-1", `[{"url":"https://x/doc1"}]`,
		"c2", "owner-2",
	)
	require.NoError(t, err)

	records, err := st.ListSourceRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]model.SourceRecord{}
	for _, r := range records {
		byID[r.ID] = r
	}
	assert.JSONEq(t, `[{"url":"https://x/doc1"}]`, string(byID["c1"].RawDocs))
	assert.Nil(t, byID["c2"].RawDocs)
}

// --- Label master ---

func TestSQLite_LabelMaster_UpsertAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertLabelMaster(ctx, []model.LabelMasterEntry{
		{Label: "保険証", TypeID: 3, Active: true},
		{Label: "契約書", TypeID: 2, Active: true},
		{Label: "旧様式", TypeID: 9, Active: false},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// Re-upsert changes a type id in place.
	_, err = st.UpsertLabelMaster(ctx, []model.LabelMasterEntry{
		{Label: "保険証", TypeID: 4, Active: true},
	})
	require.NoError(t, err)

	entries, err := st.ListLabelMaster(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2) // inactive row is filtered

	byLabel := map[string]model.LabelMasterEntry{}
	for _, e := range entries {
		byLabel[e.Label] = e
	}
	assert.EqualValues(t, 4, byLabel["保険証"].TypeID)
	assert.EqualValues(t, 2, byLabel["契約書"].TypeID)
}

// --- Run log ---

func TestSQLite_SaveRunReport(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	report := &model.RunReport{
		RunID:     "run-1",
		OK:        true,
		StartedAt: time.Now().UTC(),
		Scanned:   3,
	}
	require.NoError(t, st.SaveRunReport(ctx, report))

	var count int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT count(*) FROM run_log WHERE id = 'run-1' AND ok = 1`).Scan(&count))
	assert.Equal(t, 1, count)
}
