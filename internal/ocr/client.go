// Package ocr talks to the external OCR service: multipart submit, bounded
// status polling, and result retrieval. The service's responses are
// semi-structured XML-ish bodies; attributes are extracted by pattern match
// rather than full XML parsing (see parse.go).
package ocr

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/junkusano/famille-docsync/internal/config"
)

const (
	// PollInterval is the fixed wait between status checks.
	PollInterval = 2 * time.Second
	// MaxPollAttempts bounds the status poll loop (~20s of polling).
	MaxPollAttempts = 10

	// FirstPageOnlyThreshold: documents estimated at this many pages or
	// more are OCRed on their first page only, as a cost control.
	FirstPageOnlyThreshold = 10
	// FirstPageRange is the pageRange value for the single-page restriction.
	FirstPageRange = "1-1"

	// maxBodyDiagnostic bounds how much of an error response body is
	// carried into error messages.
	maxBodyDiagnostic = 500
)

// TaskState is the state of a submitted OCR task as seen by the poll loop.
type TaskState string

const (
	StateSubmitted TaskState = "submitted"
	StatePolling   TaskState = "polling"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
	StateTimedOut  TaskState = "timed_out"
)

// Terminal status attribute values recognized in poll responses. Anything
// else means the task is still running.
const (
	statusCompleted = "Completed"
	statusFailed    = "ProcessingFailed"
)

// Client submits documents to the OCR service and retrieves results.
type Client struct {
	cfg    config.OCRConfig
	client *http.Client

	// sleep is swappable in tests to avoid real 2s waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates an OCR client from config. The submit/status calls use a
// plain HTTP client (no retry wrapper) so the poll budget stays exact.
func NewClient(cfg config.OCRConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Submit sends the document for processing and returns the task identifier.
// pageRange may be empty for whole-document processing.
func (c *Client) Submit(ctx context.Context, file []byte, pageRange string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"language":     c.cfg.Language,
		"exportFormat": c.cfg.ExportFormat,
	}
	if pageRange != "" {
		fields["pageRange"] = pageRange
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", eris.Wrapf(err, "ocr: write field %s", k)
		}
	}

	fw, err := w.CreateFormFile("file", "document.pdf")
	if err != nil {
		return "", eris.Wrap(err, "ocr: create file part")
	}
	if _, err := fw.Write(file); err != nil {
		return "", eris.Wrap(err, "ocr: write file part")
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrap(err, "ocr: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/processImage", &buf)
	if err != nil {
		return "", eris.Wrap(err, "ocr: create submit request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth(c.cfg.AppID, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: submit")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ocr: read submit response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("ocr: submit returned %d: %s", resp.StatusCode, truncate(string(body), maxBodyDiagnostic))
	}

	taskID, ok := extractAttr(string(body), "taskId")
	if !ok {
		return "", eris.Errorf("ocr: no task id in submit response: %s", truncate(string(body), maxBodyDiagnostic))
	}
	return taskID, nil
}

// PollResult is one observation of a task's status.
type PollResult struct {
	State     TaskState
	RawStatus string
	ResultURL string
}

// Status performs one status check for the task.
func (c *Client) Status(ctx context.Context, taskID string) (PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/getTaskStatus?taskId="+taskID, nil)
	if err != nil {
		return PollResult{}, eris.Wrap(err, "ocr: create status request")
	}
	req.SetBasicAuth(c.cfg.AppID, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return PollResult{}, eris.Wrap(err, "ocr: status")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PollResult{}, eris.Wrap(err, "ocr: read status response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PollResult{}, eris.Errorf("ocr: status returned %d: %s", resp.StatusCode, truncate(string(body), maxBodyDiagnostic))
	}

	status, _ := extractAttr(string(body), "status")
	res := PollResult{RawStatus: status, State: StatePolling}
	switch status {
	case statusCompleted:
		res.State = StateCompleted
		res.ResultURL, _ = extractAttr(string(body), "resultUrl")
	case statusFailed:
		res.State = StateFailed
	}
	return res, nil
}

// Await polls the task until it completes, fails, or the attempt budget is
// exhausted. It returns the result URL on completion.
func (c *Client) Await(ctx context.Context, taskID string) (string, error) {
	state := StateSubmitted
	lastStatus := ""

	for attempt := 1; attempt <= MaxPollAttempts; attempt++ {
		if err := c.sleep(ctx, PollInterval); err != nil {
			return "", eris.Wrap(err, "ocr: poll wait")
		}

		res, err := c.Status(ctx, taskID)
		if err != nil {
			return "", err
		}
		state = res.State
		lastStatus = res.RawStatus

		zap.L().Debug("ocr: poll",
			zap.String("task_id", taskID),
			zap.Int("attempt", attempt),
			zap.String("status", res.RawStatus),
		)

		switch state {
		case StateCompleted:
			if res.ResultURL == "" {
				return "", eris.Errorf("ocr: task %s completed without result url", taskID)
			}
			return res.ResultURL, nil
		case StateFailed:
			return "", eris.Errorf("ocr: task %s processing failed", taskID)
		}
	}

	return "", eris.Errorf("ocr: task %s timeout; last status = %s", taskID, lastStatus)
}

// FetchResult downloads the extracted text from the result URL (the URL is
// pre-signed; no auth) and applies Unicode compatibility normalization so
// full-width/half-width variants compare equal downstream.
func (c *Client) FetchResult(ctx context.Context, resultURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "ocr: create result request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: fetch result")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ocr: read result")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("ocr: result fetch returned %d", resp.StatusCode)
	}

	return norm.NFKC.String(string(body)), nil
}

// ExtractText runs the full submit → poll → fetch sequence for one document.
// Documents estimated at FirstPageOnlyThreshold pages or more are restricted
// to their first page.
func (c *Client) ExtractText(ctx context.Context, file []byte) (string, error) {
	pageRange := ""
	if pages := EstimatePageCount(file); pages >= FirstPageOnlyThreshold {
		pageRange = FirstPageRange
		zap.L().Info("ocr: large document, restricting to first page",
			zap.Int("estimated_pages", pages),
		)
	}

	taskID, err := c.Submit(ctx, file, pageRange)
	if err != nil {
		return "", err
	}

	resultURL, err := c.Await(ctx, taskID)
	if err != nil {
		return "", err
	}

	return c.FetchResult(ctx, resultURL)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
