package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/internal/store"
)

// memStore is an in-memory Store for pipeline tests. Inserts and updates
// mutate the map so multi-run tests see their own writes.
type memStore struct {
	records    []model.SourceRecord
	recordsErr error

	labels    []model.LabelMasterEntry
	labelsErr error

	docs    map[string]model.NormalizedDocument // keyed by URL
	docsErr error

	updateErr error
	insertErr error

	updates []model.MetadataUpdate
	reports []*model.RunReport
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]model.NormalizedDocument{}}
}

func (m *memStore) ListSourceRecords(ctx context.Context) ([]model.SourceRecord, error) {
	return m.records, m.recordsErr
}

func (m *memStore) ListLabelMaster(ctx context.Context) ([]model.LabelMasterEntry, error) {
	return m.labels, m.labelsErr
}

func (m *memStore) UpsertLabelMaster(ctx context.Context, entries []model.LabelMasterEntry) (int64, error) {
	m.labels = append(m.labels, entries...)
	return int64(len(entries)), nil
}

func (m *memStore) GetDocumentsByURLs(ctx context.Context, urls []string) (map[string]model.NormalizedDocument, error) {
	if m.docsErr != nil {
		return nil, m.docsErr
	}
	out := map[string]model.NormalizedDocument{}
	for _, u := range urls {
		if d, ok := m.docs[u]; ok {
			out[u] = d
		}
	}
	return out, nil
}

func (m *memStore) UpdateDocumentMetadata(ctx context.Context, docID string, upd model.MetadataUpdate) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, upd)
	for url, d := range m.docs {
		if d.ID == docID {
			d.Name = upd.Name
			d.ApplicableDate = upd.ApplicableDate
			d.TypeID = upd.TypeID
			d.SourceEntryID = upd.SourceEntryID
			d.OwnerKey = upd.OwnerKey
			d.UpdatedAt = time.Now().UTC()
			m.docs[url] = d
		}
	}
	return nil
}

func (m *memStore) InsertDocument(ctx context.Context, doc model.NormalizedDocument) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, exists := m.docs[doc.URL]; exists {
		return store.ErrDuplicateURL
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	m.docs[doc.URL] = doc
	return nil
}

func (m *memStore) SaveRunReport(ctx context.Context, report *model.RunReport) error {
	m.reports = append(m.reports, report)
	return nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

var _ store.Store = (*memStore)(nil)

// fakeAnalyzer returns canned outcomes without touching any external service.
type fakeAnalyzer struct {
	date    *time.Time
	fail    bool
	calls   int
	summary string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, c model.Candidate, typeID *int64) model.AnalysisOutcome {
	f.calls++

	outcome := model.AnalysisOutcome{
		URL:    c.URL,
		Name:   c.Label,
		TypeID: typeID,
	}
	if f.fail {
		s := model.OCRFailedPrefix + "submit returned 500"
		outcome.Summary = &s
		outcome.Failed = true
		return outcome
	}

	text := "text"
	summary := f.summary
	if summary == "" {
		summary = "要約"
	}
	modelID := "test-model"
	outcome.OCRText = &text
	outcome.Summary = &summary
	outcome.ApplicableDate = f.date
	outcome.ModelID = &modelID
	return outcome
}
