package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/junkusano/famille-docsync/internal/db"
	"github.com/junkusano/famille-docsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// uniqueViolation is the PostgreSQL SQLSTATE for unique-constraint errors.
const uniqueViolation = "23505"

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests (pgxmock) and by
// commands that share one pool across subsystems.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for helpers that need direct
// query access (e.g., the bulk label import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_key  TEXT NOT NULL,
	docs       JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS label_master (
	label   TEXT PRIMARY KEY,
	type_id BIGINT NOT NULL,
	active  BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS client_documents (
	id              TEXT PRIMARY KEY,
	url             TEXT NOT NULL UNIQUE,
	owner_key       TEXT NOT NULL,
	type_id         BIGINT,
	name            TEXT NOT NULL DEFAULT '',
	ocr_text        TEXT,
	summary         TEXT,
	applicable_date DATE,
	acquired_at_raw TEXT NOT NULL DEFAULT '',
	source_entry_id TEXT NOT NULL DEFAULT '',
	model_id        TEXT,
	confidence      DOUBLE PRECISION,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_client_documents_owner ON client_documents(owner_key);
CREATE INDEX IF NOT EXISTS idx_client_documents_type ON client_documents(type_id);

CREATE TABLE IF NOT EXISTS run_log (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	ok         BOOLEAN NOT NULL,
	report     JSONB NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListSourceRecords(ctx context.Context) ([]model.SourceRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, owner_key, docs FROM clients`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list source records")
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var rec model.SourceRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerKey, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source record")
		}
		rec.RawDocs = raw
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate source records")
	}
	return records, nil
}

func (s *PostgresStore) ListLabelMaster(ctx context.Context) ([]model.LabelMasterEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT label, type_id, active FROM label_master WHERE active`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list label master")
	}
	defer rows.Close()

	var entries []model.LabelMasterEntry
	for rows.Next() {
		var e model.LabelMasterEntry
		if err := rows.Scan(&e.Label, &e.TypeID, &e.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan label master")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate label master")
	}
	return entries, nil
}

func (s *PostgresStore) UpsertLabelMaster(ctx context.Context, entries []model.LabelMasterEntry) (int64, error) {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.Label, e.TypeID, e.Active}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "label_master",
		Columns:      []string{"label", "type_id", "active"},
		ConflictKeys: []string{"label"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert label master")
	}
	return n, nil
}

const selectDocumentColumns = `id, url, owner_key, type_id, name, ocr_text, summary, applicable_date, acquired_at_raw, source_entry_id, model_id, confidence, created_at, updated_at`

func (s *PostgresStore) GetDocumentsByURLs(ctx context.Context, urls []string) (map[string]model.NormalizedDocument, error) {
	out := make(map[string]model.NormalizedDocument, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectDocumentColumns+` FROM client_documents WHERE url = ANY($1)`,
		urls,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get documents by urls")
	}
	defer rows.Close()

	for rows.Next() {
		var d model.NormalizedDocument
		if err := rows.Scan(
			&d.ID, &d.URL, &d.OwnerKey, &d.TypeID, &d.Name,
			&d.OCRText, &d.Summary, &d.ApplicableDate, &d.AcquiredAtRaw,
			&d.SourceEntryID, &d.ModelID, &d.Confidence, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		out[d.URL] = d
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate documents")
	}
	return out, nil
}

func (s *PostgresStore) UpdateDocumentMetadata(ctx context.Context, docID string, upd model.MetadataUpdate) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE client_documents
		 SET name = $1, applicable_date = $2, type_id = $3, source_entry_id = $4, owner_key = $5, updated_at = now()
		 WHERE id = $6`,
		upd.Name, upd.ApplicableDate, upd.TypeID, upd.SourceEntryID, upd.OwnerKey, docID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document metadata %s", docID)
	}
	return nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc model.NormalizedDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_documents
		 (id, url, owner_key, type_id, name, ocr_text, summary, applicable_date, acquired_at_raw, source_entry_id, model_id, confidence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.URL, doc.OwnerKey, doc.TypeID, doc.Name,
		doc.OCRText, doc.Summary, doc.ApplicableDate, doc.AcquiredAtRaw,
		doc.SourceEntryID, doc.ModelID, doc.Confidence, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return eris.Wrapf(ErrDuplicateURL, "postgres: insert document %s", doc.URL)
		}
		return eris.Wrapf(err, "postgres: insert document %s", doc.URL)
	}
	return nil
}

func (s *PostgresStore) SaveRunReport(ctx context.Context, report *model.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run report")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_log (id, started_at, ok, report) VALUES ($1, $2, $3, $4)`,
		report.RunID, report.StartedAt, report.OK, payload,
	)
	return eris.Wrap(err, "postgres: save run report")
}
