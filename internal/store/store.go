// Package store persists the normalized document table, the label master,
// and the run log, with Postgres and SQLite backends.
package store

import (
	"context"
	"errors"

	"github.com/junkusano/famille-docsync/internal/model"
)

// ErrDuplicateURL is returned by InsertDocument when another run already
// inserted a row for the same URL. Callers treat it as recoverable.
var ErrDuplicateURL = errors.New("store: document url already exists")

// Store defines the persistence interface for the reconciliation pipeline.
type Store interface {
	// Source side (read-only for this pipeline).
	ListSourceRecords(ctx context.Context) ([]model.SourceRecord, error)

	// Label master.
	ListLabelMaster(ctx context.Context) ([]model.LabelMasterEntry, error)
	UpsertLabelMaster(ctx context.Context, entries []model.LabelMasterEntry) (int64, error)

	// Normalized documents.
	GetDocumentsByURLs(ctx context.Context, urls []string) (map[string]model.NormalizedDocument, error)
	UpdateDocumentMetadata(ctx context.Context, docID string, upd model.MetadataUpdate) error
	InsertDocument(ctx context.Context, doc model.NormalizedDocument) error

	// Run log.
	SaveRunReport(ctx context.Context, report *model.RunReport) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
