// Package summarize turns raw OCR text into a short structured summary via
// the Anthropic API.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/config"
	"github.com/junkusano/famille-docsync/internal/model"
	"github.com/junkusano/famille-docsync/pkg/anthropic"
)

// maxInputChars bounds how much OCR text is sent to the model. Care and
// welfare documents front-load the identifying content (title, parties,
// dates), so the head of the text is enough.
const maxInputChars = 8000

const systemPrompt = `あなたは介護・福祉事業所の書類管理を支援するアシスタントです。
利用者の書類(契約書、重要事項説明書、ケアプラン、アセスメント、医療情報など)のOCRテキストを読み、内容を整理します。

必ず以下のJSON形式のみで回答してください。説明文やマークダウンは一切付けないでください。

{
  "summary": "書類の種類と要点を日本語で簡潔にまとめた文章(400字以内)",
  "applicable_date": "書類の適用開始日(YYYY-MM-DD形式)。契約開始日・計画適用日を優先。不明ならnull",
  "confidence": 判定の確信度(0から100の数値)
}`

const userPromptTemplate = `以下は「%s」という名前で登録された書類のOCRテキストです。内容を要約し、適用日を特定してください。

--- OCRテキスト ---
%s`

// response is the JSON shape the model is instructed to return.
type response struct {
	Summary        string   `json:"summary"`
	ApplicableDate *string  `json:"applicable_date"`
	Confidence     *float64 `json:"confidence"`
}

// Result is a parsed summarization outcome.
type Result struct {
	Summary        string
	ApplicableDate *time.Time
	Confidence     *float64
	ModelID        string
}

// Summarizer produces document summaries through an Anthropic client.
type Summarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Summarizer from config.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Summarizer {
	return &Summarizer{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Summarize sends the document text to the model and parses the structured
// response. A model reply that fails to parse as JSON is not an error: the
// raw reply becomes the summary and the structured fields stay nil.
func (s *Summarizer) Summarize(ctx context.Context, name, text string) (*Result, error) {
	input := truncateRunes(text, maxInputChars)

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, name, input)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "summarize: create message")
	}
	resp.Usage.LogCost(resp.Model, "summarize")

	return parseResponse(resp), nil
}

func parseResponse(resp *anthropic.MessageResponse) *Result {
	res := &Result{ModelID: resp.Model}

	var parsed response
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &parsed); err != nil {
		zap.L().Warn("summarize: non-JSON model reply, keeping raw text",
			zap.String("model", resp.Model),
			zap.Error(err),
		)
		res.Summary = truncateRunes(strings.TrimSpace(resp.Text), 400)
		return res
	}

	res.Summary = parsed.Summary
	res.Confidence = parsed.Confidence
	if parsed.ApplicableDate != nil {
		if t, err := time.Parse(model.DateLayout, *parsed.ApplicableDate); err == nil {
			res.ApplicableDate = &t
		} else {
			zap.L().Warn("summarize: unparseable applicable_date",
				zap.String("value", *parsed.ApplicableDate),
			)
		}
	}
	return res
}

// cleanJSON strips markdown code fences and isolates the outermost JSON
// object from a model reply.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
