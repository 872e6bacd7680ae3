package model

import "time"

// OCRFailedPrefix marks a summary produced after a hard OCR/fetch failure.
// Rows carrying it are visible to operators instead of silently vanishing.
const OCRFailedPrefix = "OCR_FAILED: "

// AnalysisOutcome is the result of running fetch + OCR + summarization on a
// single candidate. It is always produced, never an error: hard failures
// yield a degraded outcome with a failure-marked summary.
type AnalysisOutcome struct {
	URL            string     `json:"url"`
	Name           string     `json:"name"`
	TypeID         *int64     `json:"type_id,omitempty"`
	OCRText        *string    `json:"ocr_text,omitempty"`
	Summary        *string    `json:"summary,omitempty"`
	ApplicableDate *time.Time `json:"applicable_date,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	ModelID        *string    `json:"model_id,omitempty"`
	Failed         bool       `json:"failed"`
}

// Degraded reports whether the outcome carries a failure marker.
func (o AnalysisOutcome) Degraded() bool {
	return o.Failed
}
