package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkusano/famille-docsync/internal/model"
)

// insertDocumentArgs matches the 14 positional parameters of the
// client_documents INSERT without pinning their values.
func insertDocumentArgs() []any {
	args := make([]any, 14)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_ListSourceRecords(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id, owner_key, docs FROM clients`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_key", "docs"}).
			AddRow("c1", "owner-1", []byte(`[{"url":"https://x/doc1"}]`)).
			AddRow("c2", "owner-2", []byte(nil)))

	records, err := st.ListSourceRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c1", records[0].ID)
	assert.JSONEq(t, `[{"url":"https://x/doc1"}]`, string(records[0].RawDocs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetDocumentsByURLs_EmptySkipsQuery(t *testing.T) {
	st, mock := newMockPostgres(t)

	got, err := st.GetDocumentsByURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetDocumentsByURLs(t *testing.T) {
	st, mock := newMockPostgres(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM client_documents WHERE url = ANY`).
		WithArgs([]string{"https://x/doc1"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url", "owner_key", "type_id", "name", "ocr_text", "summary",
			"applicable_date", "acquired_at_raw", "source_entry_id", "model_id",
			"confidence", "created_at", "updated_at",
		}).AddRow(
			"d1", "https://x/doc1", "owner-1", i64Ptr(3), "保険証",
			strPtr("テキスト"), strPtr("要約"), dayPtr("2024-03-01"), "2024-03-01",
			"e1", strPtr("test-model"), f64Ptr(85), now, now,
		))

	got, err := st.GetDocumentsByURLs(context.Background(), []string{"https://x/doc1"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got["https://x/doc1"]
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, "保険証", d.Name)
	require.NotNil(t, d.ApplicableDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateDocumentMetadata(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE client_documents`).
		WithArgs("健康保険証", dayPtr("2024-04-01"), i64Ptr(7), "e2", "owner-1", "d1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.UpdateDocumentMetadata(context.Background(), "d1", model.MetadataUpdate{
		Name:           "健康保険証",
		ApplicableDate: dayPtr("2024-04-01"),
		TypeID:         i64Ptr(7),
		SourceEntryID:  "e2",
		OwnerKey:       "owner-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertDocument(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO client_documents`).
		WithArgs(insertDocumentArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.InsertDocument(context.Background(), model.NormalizedDocument{
		ID:       "d1",
		URL:      "https://x/doc1",
		OwnerKey: "owner-1",
		Name:     "保険証",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertDocument_UniqueViolationMapsToErrDuplicateURL(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO client_documents`).
		WithArgs(insertDocumentArgs()...).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := st.InsertDocument(context.Background(), model.NormalizedDocument{
		ID:  "d1",
		URL: "https://x/doc1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateURL))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertDocument_OtherErrorPassesThrough(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO client_documents`).
		WithArgs(insertDocumentArgs()...).
		WillReturnError(&pgconn.PgError{Code: "57014"}) // query_canceled

	err := st.InsertDocument(context.Background(), model.NormalizedDocument{URL: "https://x/doc1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateURL))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveRunReport(t *testing.T) {
	st, mock := newMockPostgres(t)

	report := &model.RunReport{RunID: "run-1", OK: true, StartedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO run_log`).
		WithArgs(report.RunID, report.StartedAt, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SaveRunReport(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}
