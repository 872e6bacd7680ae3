package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/internal/summarize"
)

// maxFailureMsgLen bounds the error text carried in a degraded summary.
const maxFailureMsgLen = 300

// Fetcher retrieves the raw bytes behind a document URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// TextExtractor runs OCR on document bytes and returns normalized text.
type TextExtractor interface {
	ExtractText(ctx context.Context, file []byte) (string, error)
}

// Summarizer derives a structured summary from OCR text.
type Summarizer interface {
	Summarize(ctx context.Context, name, text string) (*summarize.Result, error)
}

// Analyzer produces an AnalysisOutcome for one candidate. It never returns
// an error: hard failures yield a degraded outcome.
type Analyzer interface {
	Analyze(ctx context.Context, c model.Candidate, typeID *int64) model.AnalysisOutcome
}

// Orchestrator is the production Analyzer: fetch → OCR → summarize.
type Orchestrator struct {
	fetcher    Fetcher
	extractor  TextExtractor
	summarizer Summarizer
}

// NewOrchestrator wires the three external clients into one Analyzer.
func NewOrchestrator(f Fetcher, e TextExtractor, s Summarizer) *Orchestrator {
	return &Orchestrator{fetcher: f, extractor: e, summarizer: s}
}

// Analyze runs the full analysis for one candidate. A failure in fetch, OCR
// submit, polling, or result retrieval short-circuits to a degraded outcome
// carrying the failure text; the resolved type id is preserved either way so
// classification survives analysis failure.
func (o *Orchestrator) Analyze(ctx context.Context, c model.Candidate, typeID *int64) model.AnalysisOutcome {
	outcome := model.AnalysisOutcome{
		URL:    c.URL,
		Name:   c.Label,
		TypeID: typeID,
	}

	data, err := o.fetcher.Fetch(ctx, c.URL)
	if err != nil {
		return degrade(outcome, err)
	}

	text, err := o.extractor.ExtractText(ctx, data)
	if err != nil {
		return degrade(outcome, err)
	}
	outcome.OCRText = &text

	res, err := o.summarizer.Summarize(ctx, c.Label, text)
	if err != nil {
		// OCR succeeded; keep the text but mark the row so operators
		// see summarization did not run.
		return degrade(outcome, err)
	}

	outcome.Summary = &res.Summary
	outcome.ApplicableDate = res.ApplicableDate
	outcome.Confidence = res.Confidence
	outcome.ModelID = &res.ModelID
	return outcome
}

// degrade converts a hard failure into a visible, persistable outcome.
func degrade(outcome model.AnalysisOutcome, err error) model.AnalysisOutcome {
	zap.L().Warn("reconcile: analysis failed, recording degraded outcome",
		zap.String("url", outcome.URL),
		zap.Error(err),
	)

	msg := err.Error()
	if len(msg) > maxFailureMsgLen {
		msg = msg[:maxFailureMsgLen]
	}
	summary := model.OCRFailedPrefix + msg

	outcome.Summary = &summary
	outcome.ApplicableDate = nil
	outcome.Confidence = nil
	outcome.ModelID = nil
	outcome.Failed = true
	return outcome
}
