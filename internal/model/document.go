// Package model defines the domain types shared across the reconciliation
// pipeline: client records with embedded document references, the normalized
// document store rows, and the per-run projections derived from them.
package model

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the calendar-date form used throughout the pipeline.
const DateLayout = "2006-01-02"

// SourceRecord is a client row as read from the staffing application. The
// embedded document list is kept raw; its shape varies (array, JSON-encoded
// string, or absent) and only the scanner is allowed to interpret it.
type SourceRecord struct {
	ID       string          `json:"id"`
	OwnerKey string          `json:"owner_key"`
	RawDocs  json.RawMessage `json:"docs"`
}

// EmbeddedDocumentRef is one entry of a client's embedded document list.
// All fields are optional in the source data; entries without a URL are
// dropped by the scanner.
type EmbeddedDocumentRef struct {
	EntryID    string `json:"id,omitempty"`
	URL        string `json:"url,omitempty"`
	Label      string `json:"label,omitempty"`
	TypeID     *int64 `json:"type_id,omitempty"`
	AcquiredAt string `json:"acquired_at,omitempty"`
}

// LabelMasterEntry is one row of the canonical label-to-type mapping.
type LabelMasterEntry struct {
	Label  string `json:"label"`
	TypeID int64  `json:"type_id"`
	Active bool   `json:"active"`
}

// NormalizedDocument is the durable, deduplicated document row. URL is the
// natural key: the same physical file may be re-labelled many times in the
// embedded list but keeps a single row here.
type NormalizedDocument struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	OwnerKey       string     `json:"owner_key"`
	TypeID         *int64     `json:"type_id,omitempty"`
	Name           string     `json:"name"`
	OCRText        *string    `json:"ocr_text,omitempty"`
	Summary        *string    `json:"summary,omitempty"`
	ApplicableDate *time.Time `json:"applicable_date,omitempty"`
	AcquiredAtRaw  string     `json:"acquired_at_raw,omitempty"`
	SourceEntryID  string     `json:"source_entry_id,omitempty"`
	ModelID        *string    `json:"model_id,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Candidate joins one embedded document reference to its owning client
// record. It exists only for the duration of a run.
type Candidate struct {
	URL           string
	OwnerKey      string
	SourceID      string
	EntryID       string
	Label         string
	TypeID        *int64
	AcquiredAt    *time.Time
	AcquiredAtRaw string
}

// AcquiredDate returns the acquisition timestamp truncated to a calendar
// date, or nil when the source carried none.
func (c Candidate) AcquiredDate() *time.Time {
	if c.AcquiredAt == nil {
		return nil
	}
	d := time.Date(c.AcquiredAt.Year(), c.AcquiredAt.Month(), c.AcquiredAt.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// MetadataUpdate carries the four re-syncable fields for an existing row.
// Analysis columns (ocr_text, summary, confidence, model) are never part of
// a metadata update.
type MetadataUpdate struct {
	Name           string
	ApplicableDate *time.Time
	TypeID         *int64
	SourceEntryID  string
	OwnerKey       string
}

// NormalizeLabel strips all whitespace (including full-width spaces) so
// superficially different labels resolve to the same master entry.
func NormalizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, label)
}

// ResolveTypeID applies the type-resolution fallback chain: the candidate's
// explicit type, then the existing row's type, then the label master.
func ResolveTypeID(c Candidate, existing *NormalizedDocument, labelMap map[string]int64) *int64 {
	if c.TypeID != nil {
		return c.TypeID
	}
	if existing != nil && existing.TypeID != nil {
		return existing.TypeID
	}
	if id, ok := labelMap[NormalizeLabel(c.Label)]; ok {
		return &id
	}
	return nil
}
