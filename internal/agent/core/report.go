package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
)

// Citation is a numbered source reference attached to a report.
type Citation struct {
	Number   int    `json:"number"`
	Source   string `json:"source"`
	Category string `json:"category"` // primary, supporting, data
}

// ReportWriter turns a synthesis into a formatted report of the requested
// type. It owns the citation ledger for the run it is writing.
type ReportWriter struct {
	provider  provider.Provider
	model     string
	cfg       config.ReportConfig
	cache     Cache
	retry     Policy
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	citations []Citation
}

func NewReportWriter(p provider.Provider, model string, cfg config.ReportConfig, cache Cache, maxRetries int, tel *telemetry.Telemetry) *ReportWriter {
	logger := log.New(log.Writer(), "[REPORT] ", log.LstdFlags)
	if cache == nil {
		cache = NopCache{}
	}
	return &ReportWriter{
		provider: p,
		model:    model,
		cfg:      cfg,
		cache:    cache,
		retry: Policy{
			MaxAttempts:      maxRetries,
			Backoff:          cfg.Backoff,
			RateLimitBackoff: cfg.RateLimitBackoff,
			Logger:           logger,
		},
		telemetry: tel,
		logger:    logger,
	}
}

// AddCitation records a source and returns its inline marker, e.g. "[3]".
// Unknown categories are filed as supporting.
func (rw *ReportWriter) AddCitation(source, category string) string {
	switch category {
	case "primary", "supporting", "data":
	default:
		category = "supporting"
	}
	c := Citation{Number: len(rw.citations) + 1, Source: source, Category: category}
	rw.citations = append(rw.citations, c)
	return fmt.Sprintf("[%d]", c.Number)
}

// Citations returns the ledger in insertion order.
func (rw *ReportWriter) Citations() []Citation {
	out := make([]Citation, len(rw.citations))
	copy(out, rw.citations)
	return out
}

// ResetCitations clears the ledger between runs.
func (rw *ReportWriter) ResetCitations() {
	rw.citations = nil
}

// Write produces the final formatted report for the synthesis. The second
// return value reports whether the body came from the local fallback.
func (rw *ReportWriter) Write(ctx context.Context, query, synthesis string, reportType ReportType) (string, bool, error) {
	content := prepareContent(synthesis, rw.cfg.MaxContextChars)

	cacheContent := content
	if len(cacheContent) > 1000 {
		cacheContent = cacheContent[:1000]
	}
	key := CacheKey("report", cacheContent, query, string(reportType))
	if text, ok := rw.cache.Lookup(ctx, key); ok {
		rw.telemetry.RecordCacheHit("report")
		return rw.formatFinalReport(text, query, reportType), false, nil
	}
	rw.telemetry.RecordCacheMiss("report")

	prompt := rw.buildPrompt(query, content, reportType)
	params := provider.Params{
		Model:       rw.model,
		Temperature: rw.cfg.Temperature,
		MaxTokens:   rw.cfg.MaxTokens,
		TopP:        rw.cfg.TopP,
		TopK:        rw.cfg.TopK,
	}
	if err := params.Validate(); err != nil {
		return "", false, fmt.Errorf("report params: %w", err)
	}

	minLength := rw.cfg.MinLengths[string(reportType)]
	out, err := rw.retry.Execute(ctx,
		func(ctx context.Context) (string, error) {
			rw.telemetry.RecordGenerationAttempt("report")
			text, err := rw.provider.Generate(ctx, prompt, params)
			if err != nil {
				rw.telemetry.RecordGenerationFailure("report", string(provider.KindOf(err)))
			}
			return text, err
		},
		func(text string) bool {
			return validateReportStructure(text, minLength)
		},
	)
	if err == nil && out.Text != "" {
		if !out.Accepted {
			rw.logger.Printf("keeping best-effort report after exhausting retries")
		}
		rw.cache.Store(ctx, key, out.Text)
		return rw.formatFinalReport(out.Text, query, reportType), false, nil
	}

	rw.logger.Printf("report generation failed, using fallback: %v", err)
	rw.telemetry.RecordFallback("report")
	return rw.formatFinalReport(FallbackReport(query), query, reportType), true, nil
}

func (rw *ReportWriter) buildPrompt(query, content string, reportType ReportType) string {
	insights := extractKeyInsights(content)
	insightBlock := ""
	if len(insights) > 0 {
		insightBlock = "\nKey insights to feature:\n- " + strings.Join(insights, "\n- ") + "\n"
	}

	var directive string
	switch reportType {
	case ReportExecutive:
		directive = `Write an executive briefing. Structure:
## Executive Summary
## Key Findings
## Strategic Implications
## Recommendations
Keep it focused on decisions and outcomes; avoid technical depth. Aim for 800-1200 words.`
	case ReportTechnical:
		directive = `Write a technical report. Structure:
## Overview
## Methodology and Evidence
## Detailed Analysis
## Technical Considerations
## Conclusions
Preserve figures, mechanisms and caveats; assume an expert reader. Aim for 1500-2000 words.`
	case ReportSummary:
		directive = `Write a concise summary. Structure:
## Summary
## Key Points
## Conclusion
Keep every point to one or two sentences. Aim for 400-600 words.`
	default:
		directive = `Write a detailed research report. Structure:
## Executive Summary
## Key Findings
## Detailed Analysis
## Implications
## Conclusions
Cover all significant findings with supporting evidence. Aim for 2000-2500 words.`
	}

	return fmt.Sprintf(`You are a professional report writer. Turn the research synthesis below into a polished report answering: %s
%s
%s

Research synthesis:
%s

Use Markdown headings exactly as specified. Do not invent facts beyond the synthesis.

Report:`, query, insightBlock, directive, content)
}

// validateReportStructure checks minimum length plus at least two of the
// structural signals a real report carries.
func validateReportStructure(text string, minLength int) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minLength {
		return false
	}
	lower := strings.ToLower(trimmed)
	signals := 0
	if strings.Contains(trimmed, "##") {
		signals++
	}
	if strings.Contains(lower, "finding") {
		signals++
	}
	if strings.Contains(lower, "analy") {
		signals++
	}
	if strings.Contains(lower, "conclus") {
		signals++
	}
	return signals >= 2
}

// prepareContent packs the synthesis into the context budget, keeping the
// introduction, a slice of the middle, and the conclusion.
func prepareContent(content string, budget int) string {
	content = strings.TrimSpace(content)
	if budget <= 0 {
		budget = 8000
	}
	if len(content) <= budget {
		return content
	}
	intro := budget * 2 / 5
	conclusion := budget * 2 / 5
	middle := budget - intro - conclusion
	midStart := (len(content) - middle) / 2
	return content[:intro] + "\n[...]\n" +
		content[midStart:midStart+middle] + "\n[...]\n" +
		content[len(content)-conclusion:]
}

// extractKeyInsights pulls up to five sentences that carry percentages or
// high-signal terms out of the synthesis.
func extractKeyInsights(content string) []string {
	var insights []string
	seen := make(map[string]struct{})
	add := func(s string) bool {
		s = strings.TrimSpace(s)
		if len(s) < 30 || len(s) > 300 {
			return false
		}
		if _, ok := seen[s]; ok {
			return false
		}
		seen[s] = struct{}{}
		insights = append(insights, s)
		return len(insights) >= 5
	}

	sentences := strings.Split(content, ". ")
	for _, s := range sentences {
		if strings.Contains(s, "%") {
			if add(s) {
				return insights
			}
		}
	}
	keyTerms := []string{"significant", "critical", "key", "major", "important", "essential"}
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, term := range keyTerms {
			if strings.Contains(lower, term) {
				if add(s) {
					return insights
				}
				break
			}
		}
	}
	return insights
}

// formatFinalReport wraps the body with the metadata header, the citation
// sections, and the report identifier.
func (rw *ReportWriter) formatFinalReport(body, query string, reportType ReportType) string {
	body = strings.TrimSpace(body)
	words := len(strings.Fields(body))
	readingMinutes := words / 200
	if readingMinutes < 1 {
		readingMinutes = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Query:** %s\n", query)
	fmt.Fprintf(&b, "**Report Type:** %s\n", reportType)
	fmt.Fprintf(&b, "**Word Count:** %d\n", words)
	fmt.Fprintf(&b, "**Reading Time:** ~%d min\n\n", readingMinutes)
	b.WriteString("---\n\n")
	b.WriteString(body)
	b.WriteString("\n")

	if len(rw.citations) > 0 {
		b.WriteString("\n## Sources\n")
		for _, section := range []struct {
			category string
			title    string
		}{
			{"primary", "### Primary Sources"},
			{"supporting", "### Supporting Sources"},
			{"data", "### Data Sources"},
		} {
			var lines []string
			for _, c := range rw.citations {
				if c.Category == section.category {
					lines = append(lines, fmt.Sprintf("[%d] %s", c.Number, c.Source))
				}
			}
			if len(lines) > 0 {
				b.WriteString("\n" + section.title + "\n")
				for _, line := range lines {
					b.WriteString(line + "\n")
				}
			}
		}
	}

	fmt.Fprintf(&b, "\n---\n*Report ID: %s*\n", CacheKey(query, string(reportType), body)[:8])
	return b.String()
}

// SaveReport writes the report to dir as research_<timestamp>.md and returns
// the full path. One run produces exactly one file. Filenames carry second
// granularity, so when the slot for this second is already taken the
// timestamp advances until a free one is found.
func SaveReport(dir, report string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}
	for {
		name := fmt.Sprintf("research_%s.md", now.Format("20060102_150405"))
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			now = now.Add(time.Second)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("writing report: %w", err)
		}
		if _, err := f.Write([]byte(report)); err != nil {
			f.Close()
			return "", fmt.Errorf("writing report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("writing report: %w", err)
		}
		return path, nil
	}
}
