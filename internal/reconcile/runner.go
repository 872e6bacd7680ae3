package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/config"
	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/internal/store"
)

// Params are the run invocation parameters.
type Params struct {
	// DaysBack restricts scanning to entries acquired within the last N
	// days. Zero means no cutoff.
	DaysBack int
	// Limit is the processing budget for the run, split across metadata
	// updates and new analyses. Zero or negative falls back to the
	// configured default.
	Limit int
	// DryRun scans, plans, and logs, but writes nothing.
	DryRun bool
	// Verbose enables per-candidate diagnostic logging.
	Verbose bool
}

// Runner wires the pipeline stages into one sequential run.
type Runner struct {
	st       store.Store
	analyzer Analyzer
	writer   *Writer

	ocrCfg       config.OCRConfig
	llmCfg       config.AnthropicConfig
	defaultLimit int
}

// NewRunner constructs a Runner. The analyzer is injected so tests can
// substitute a double for the external OCR/LLM chain.
func NewRunner(st store.Store, analyzer Analyzer, cfg *config.Config) *Runner {
	return &Runner{
		st:           st,
		analyzer:     analyzer,
		writer:       NewWriter(st),
		ocrCfg:       cfg.OCR,
		llmCfg:       cfg.Anthropic,
		defaultLimit: cfg.Reconcile.DefaultLimit,
	}
}

// Run executes one reconciliation pass. It always returns a well-formed
// report and never an error: failures are communicated through the OK flag
// and the error list.
func (r *Runner) Run(ctx context.Context, p Params) (report *model.RunReport) {
	start := time.Now()
	report = &model.RunReport{
		RunID:     uuid.NewString(),
		OK:        true,
		DryRun:    p.DryRun,
		StartedAt: start.UTC(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("reconcile: run panicked", zap.Any("panic", rec))
			report.OK = false
			report.AddError("", eris.Errorf("reconcile: unexpected failure: %v", rec))
		}
		report.Duration = time.Since(start).Milliseconds()
	}()

	limit := p.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}

	log := zap.L().With(zap.String("run_id", report.RunID))
	log.Info("reconcile: run starting",
		zap.Int("days_back", p.DaysBack),
		zap.Int("limit", limit),
		zap.Bool("dry_run", p.DryRun),
	)

	// Credential check happens once, before any per-candidate work. A dry
	// run needs no external services and skips it.
	if !p.DryRun {
		if err := r.checkCredentials(); err != nil {
			log.Error("reconcile: run aborted", zap.Error(err))
			report.OK = false
			report.AddError("", err)
			return report
		}
	}

	// Scanning.
	log.Info("reconcile: phase", zap.String("phase", string(model.PhaseScanning)))
	var cutoff *time.Time
	if p.DaysBack > 0 {
		t := time.Now().UTC().AddDate(0, 0, -p.DaysBack)
		cutoff = &t
	}
	scan, err := ScanCandidates(ctx, r.st, cutoff)
	if err != nil {
		report.OK = false
		report.AddError("", err)
		return report
	}
	report.Scanned = len(scan.Candidates)
	report.SkippedNoURL = scan.SkippedNoURL

	// Planning.
	log.Info("reconcile: phase", zap.String("phase", string(model.PhasePlanning)))
	labelMap := LoadLabelMap(ctx, r.st)

	urls := make([]string, 0, len(scan.Candidates))
	for _, c := range scan.Candidates {
		urls = append(urls, c.URL)
	}
	existing, err := r.st.GetDocumentsByURLs(ctx, urls)
	if err != nil {
		report.OK = false
		report.AddError("", err)
		return report
	}

	plan := BuildPlan(scan.Candidates, existing, labelMap)
	report.NeedsAnalysis = len(plan.New)
	report.Unchanged = plan.Unchanged

	// Allocating.
	log.Info("reconcile: phase", zap.String("phase", string(model.PhaseAllocating)))
	alloc := Allocate(limit, plan)
	report.SkippedMetaOver = alloc.SkippedMetadata
	report.SkippedNewOver = alloc.SkippedNew

	log.Info("reconcile: plan ready",
		zap.Int("scanned", report.Scanned),
		zap.Int("new", len(plan.New)),
		zap.Int("metadata_updates", len(plan.MetadataUpdates)),
		zap.Int("unchanged", plan.Unchanged),
		zap.Int("metadata_targets", len(alloc.MetadataTargets)),
		zap.Int("analyze_targets", len(alloc.AnalyzeTargets)),
		zap.Int("skipped_for_budget", alloc.SkippedMetadata+alloc.SkippedNew),
	)

	if p.DryRun {
		log.Info("reconcile: dry run, stopping before writes")
		r.saveReport(ctx, report, log)
		return report
	}

	// Metadata syncing.
	log.Info("reconcile: phase", zap.String("phase", string(model.PhaseMetadataSyncing)))
	for _, pair := range alloc.MetadataTargets {
		if ctx.Err() != nil {
			report.OK = false
			report.AddError("", eris.Wrap(ctx.Err(), "reconcile: run cancelled"))
			r.saveReport(ctx, report, log)
			return report
		}

		if err := r.writer.ApplyMetadataUpdate(ctx, pair, labelMap); err != nil {
			report.OK = false
			report.AddError(pair.Candidate.URL, err)
			continue
		}
		report.MetadataUpdated++
		if p.Verbose {
			log.Info("reconcile: metadata synced", zap.String("url", pair.Candidate.URL))
		}
	}

	// Analyzing. Strictly sequential: one in-flight OCR task at a time
	// keeps the budget a hard ceiling on external calls. Cancellation is
	// honored at the per-candidate boundary only.
	log.Info("reconcile: phase", zap.String("phase", string(model.PhaseAnalyzing)))
	for _, c := range alloc.AnalyzeTargets {
		if ctx.Err() != nil {
			report.OK = false
			report.AddError("", eris.Wrap(ctx.Err(), "reconcile: run cancelled"))
			r.saveReport(ctx, report, log)
			return report
		}

		typeID := model.ResolveTypeID(c, nil, labelMap)
		outcome := r.analyzer.Analyze(ctx, c, typeID)
		if outcome.Degraded() {
			report.AnalyzedDegraded++
		}

		if err := r.writer.InsertAnalyzed(ctx, c, outcome, labelMap); err != nil {
			if errors.Is(err, store.ErrDuplicateURL) {
				log.Warn("reconcile: url inserted by a concurrent run",
					zap.String("url", c.URL),
				)
				report.AddError(c.URL, err)
				continue
			}
			report.OK = false
			report.AddError(c.URL, err)
			continue
		}
		report.Analyzed++
		if p.Verbose {
			log.Info("reconcile: analyzed",
				zap.String("url", c.URL),
				zap.Bool("degraded", outcome.Degraded()),
			)
		}
	}

	log.Info("reconcile: phase", zap.String("phase", string(model.PhaseDone)))
	r.saveReport(ctx, report, log)

	log.Info("reconcile: run finished",
		zap.Bool("ok", report.OK),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("analyzed_degraded", report.AnalyzedDegraded),
		zap.Int("metadata_updated", report.MetadataUpdated),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

func (r *Runner) checkCredentials() error {
	if !r.ocrCfg.Configured() {
		return eris.New("reconcile: ocr credentials not configured")
	}
	if r.llmCfg.Key == "" {
		return eris.New("reconcile: anthropic api key not configured")
	}
	return nil
}

func (r *Runner) saveReport(ctx context.Context, report *model.RunReport, log *zap.Logger) {
	report.Duration = time.Since(report.StartedAt).Milliseconds()
	if err := r.st.SaveRunReport(ctx, report); err != nil {
		log.Warn("reconcile: could not save run report", zap.Error(err))
	}
}
