package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
)

// QualityChecker grades research content. It never returns an error: when
// the model is unavailable it falls back to local heuristic scoring, so a
// degraded assessor cannot sink an otherwise healthy run.
type QualityChecker struct {
	provider  provider.Provider
	model     string
	cfg       config.AssessConfig
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewQualityChecker(p provider.Provider, model string, cfg config.AssessConfig, tel *telemetry.Telemetry) *QualityChecker {
	return &QualityChecker{
		provider:  p,
		model:     model,
		cfg:       cfg,
		telemetry: tel,
		logger:    log.New(log.Writer(), "[QUALITY] ", log.LstdFlags),
	}
}

// Assess returns a short "High Quality"/"Medium Quality"/"Low Quality"
// verdict with a one-line rationale.
func (qc *QualityChecker) Assess(ctx context.Context, content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < 100 {
		return "Low Quality: Insufficient content provided"
	}
	if len(trimmed) > 2000 && strings.Count(trimmed, ".") > 20 {
		return "High Quality: Comprehensive, well-structured content with substantial detail"
	}

	params := provider.Params{
		Model:       qc.model,
		Temperature: qc.cfg.Temperature,
		MaxTokens:   qc.cfg.MaxTokens,
		TopP:        qc.cfg.TopP,
	}
	if err := params.Validate(); err == nil {
		qc.telemetry.RecordGenerationAttempt("quality")
		text, err := qc.provider.Generate(ctx, qc.buildPrompt(trimmed), params)
		if err == nil {
			if verdict, ok := normalizeVerdict(text); ok {
				return verdict
			}
			qc.logger.Printf("assessment output did not match expected format, scoring locally")
		} else {
			qc.telemetry.RecordGenerationFailure("quality", string(provider.KindOf(err)))
			qc.logger.Printf("assessment call failed, scoring locally: %v", err)
		}
	}
	return qc.scoreHeuristically(trimmed)
}

func (qc *QualityChecker) buildPrompt(content string) string {
	sample := content
	if len(sample) > 1500 {
		sample = sample[:1500]
	}
	return fmt.Sprintf(`Rate the quality of the following research content. Respond with exactly one line in the format "High Quality: <reason>", "Medium Quality: <reason>", or "Low Quality: <reason>".

Content:
%s

Rating:`, sample)
}

// normalizeVerdict enforces the expected output format and caps the length.
func normalizeVerdict(text string) (string, bool) {
	verdict := strings.TrimSpace(text)
	for _, level := range []string{"High Quality", "Medium Quality", "Low Quality"} {
		if strings.Contains(verdict, level) {
			if len(verdict) > 150 {
				verdict = verdict[:150]
			}
			return verdict, true
		}
	}
	return "", false
}

// scoreHeuristically grades content on length, structure, and specificity.
func (qc *QualityChecker) scoreHeuristically(content string) string {
	score := 0
	if len(content) > 500 {
		score++
	}
	if len(content) > 1000 {
		score++
	}
	if strings.Count(content, "\n\n") >= 2 || strings.Count(content, ".") > 10 {
		score++
	}
	if containsDigit(content, len(content)) {
		score++
	}
	lower := strings.ToLower(content)
	for _, indicator := range []string{"%", "study", "research", "data", "according", "report"} {
		if strings.Contains(lower, indicator) {
			score++
			break
		}
	}

	switch {
	case score >= 4:
		return "High Quality: Detailed content with specific data and clear structure"
	case score >= 2:
		return "Medium Quality: Reasonable content with some supporting detail"
	default:
		return "Low Quality: Content lacks depth, structure, or specificity"
	}
}
