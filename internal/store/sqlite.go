package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/junkusano/famille-docsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for small
// single-office deployments and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	owner_key  TEXT NOT NULL,
	docs       TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS label_master (
	label   TEXT PRIMARY KEY,
	type_id INTEGER NOT NULL,
	active  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS client_documents (
	id              TEXT PRIMARY KEY,
	url             TEXT NOT NULL UNIQUE,
	owner_key       TEXT NOT NULL,
	type_id         INTEGER,
	name            TEXT NOT NULL DEFAULT '',
	ocr_text        TEXT,
	summary         TEXT,
	applicable_date TEXT,
	acquired_at_raw TEXT NOT NULL DEFAULT '',
	source_entry_id TEXT NOT NULL DEFAULT '',
	model_id        TEXT,
	confidence      REAL,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_client_documents_owner ON client_documents(owner_key);

CREATE TABLE IF NOT EXISTS run_log (
	id         TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	ok         INTEGER NOT NULL,
	report     TEXT NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListSourceRecords(ctx context.Context) ([]model.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, owner_key, docs FROM clients`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source records")
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var rec model.SourceRecord
		var raw sql.NullString
		if err := rows.Scan(&rec.ID, &rec.OwnerKey, &raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source record")
		}
		if raw.Valid {
			rec.RawDocs = json.RawMessage(raw.String)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate source records")
}

func (s *SQLiteStore) ListLabelMaster(ctx context.Context) ([]model.LabelMasterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, type_id, active FROM label_master WHERE active = 1`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list label master")
	}
	defer rows.Close()

	var entries []model.LabelMasterEntry
	for rows.Next() {
		var e model.LabelMasterEntry
		if err := rows.Scan(&e.Label, &e.TypeID, &e.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan label master")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate label master")
}

func (s *SQLiteStore) UpsertLabelMaster(ctx context.Context, entries []model.LabelMasterEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, e := range entries {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO label_master (label, type_id, active) VALUES (?, ?, ?)
			 ON CONFLICT(label) DO UPDATE SET type_id = excluded.type_id, active = excluded.active`,
			e.Label, e.TypeID, e.Active,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert label %q", e.Label)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit label upsert")
	}
	return n, nil
}

func (s *SQLiteStore) GetDocumentsByURLs(ctx context.Context, urls []string) (map[string]model.NormalizedDocument, error) {
	out := make(map[string]model.NormalizedDocument, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, owner_key, type_id, name, ocr_text, summary, applicable_date, acquired_at_raw, source_entry_id, model_id, confidence, created_at, updated_at
		 FROM client_documents WHERE url IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get documents by urls")
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		out[d.URL] = d
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

func scanSQLiteDocument(rows *sql.Rows) (model.NormalizedDocument, error) {
	var d model.NormalizedDocument
	var typeID sql.NullInt64
	var ocrText, summary, applicable, modelID sql.NullString
	var confidence sql.NullFloat64

	if err := rows.Scan(
		&d.ID, &d.URL, &d.OwnerKey, &typeID, &d.Name,
		&ocrText, &summary, &applicable, &d.AcquiredAtRaw,
		&d.SourceEntryID, &modelID, &confidence, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return d, eris.Wrap(err, "sqlite: scan document")
	}

	if typeID.Valid {
		d.TypeID = &typeID.Int64
	}
	if ocrText.Valid {
		d.OCRText = &ocrText.String
	}
	if summary.Valid {
		d.Summary = &summary.String
	}
	if modelID.Valid {
		d.ModelID = &modelID.String
	}
	if confidence.Valid {
		d.Confidence = &confidence.Float64
	}
	if applicable.Valid && applicable.String != "" {
		t, err := time.ParseInLocation(model.DateLayout, applicable.String, time.UTC)
		if err == nil {
			d.ApplicableDate = &t
		}
	}
	return d, nil
}

// dateString renders a calendar date for storage, or nil for NULL.
func dateString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(model.DateLayout)
}

func (s *SQLiteStore) UpdateDocumentMetadata(ctx context.Context, docID string, upd model.MetadataUpdate) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE client_documents
		 SET name = ?, applicable_date = ?, type_id = ?, source_entry_id = ?, owner_key = ?, updated_at = ?
		 WHERE id = ?`,
		upd.Name, dateString(upd.ApplicableDate), upd.TypeID, upd.SourceEntryID, upd.OwnerKey, time.Now().UTC(), docID,
	)
	return eris.Wrapf(err, "sqlite: update document metadata %s", docID)
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc model.NormalizedDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_documents
		 (id, url, owner_key, type_id, name, ocr_text, summary, applicable_date, acquired_at_raw, source_entry_id, model_id, confidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.URL, doc.OwnerKey, doc.TypeID, doc.Name,
		doc.OCRText, doc.Summary, dateString(doc.ApplicableDate), doc.AcquiredAtRaw,
		doc.SourceEntryID, doc.ModelID, doc.Confidence, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicateURL, "sqlite: insert document %s", doc.URL)
		}
		return eris.Wrapf(err, "sqlite: insert document %s", doc.URL)
	}
	return nil
}

func (s *SQLiteStore) SaveRunReport(ctx context.Context, report *model.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, started_at, ok, report) VALUES (?, ?, ?, ?)`,
		report.RunID, report.StartedAt, report.OK, string(payload),
	)
	return eris.Wrap(err, "sqlite: save run report")
}
