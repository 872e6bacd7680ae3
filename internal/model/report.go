package model

import "time"

// RunPhase names a stage of the reconciliation run.
type RunPhase string

const (
	PhaseScanning        RunPhase = "scanning"
	PhasePlanning        RunPhase = "planning"
	PhaseAllocating      RunPhase = "allocating"
	PhaseMetadataSyncing RunPhase = "metadata_syncing"
	PhaseAnalyzing       RunPhase = "analyzing"
	PhaseDone            RunPhase = "done"
)

// ReportError records one failed item. URL is empty for run-level errors
// such as missing credentials.
type ReportError struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error"`
}

// RunReport is the aggregate result of one reconciliation run. The runner
// never returns an error to its caller; failure is communicated through OK
// and the error list.
type RunReport struct {
	RunID     string    `json:"run_id"`
	OK        bool      `json:"ok"`
	DryRun    bool      `json:"dry_run"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`

	Scanned          int `json:"scanned"`
	NeedsAnalysis    int `json:"needs_analysis"`
	Analyzed         int `json:"analyzed"`
	AnalyzedDegraded int `json:"analyzed_degraded"`
	MetadataUpdated  int `json:"metadata_updated"`
	Unchanged        int `json:"unchanged"`
	SkippedNoURL     int `json:"skipped_no_url"`
	SkippedMetaOver  int `json:"skipped_metadata_for_budget"`
	SkippedNewOver   int `json:"skipped_new_for_budget"`

	Errors []ReportError `json:"errors,omitempty"`
}

// AddError appends a per-item failure to the report.
func (r *RunReport) AddError(url string, err error) {
	r.Errors = append(r.Errors, ReportError{URL: url, Error: err.Error()})
}

// SkippedForBudget is the total of both budget-skip counters.
func (r *RunReport) SkippedForBudget() int {
	return r.SkippedMetaOver + r.SkippedNewOver
}
