package core

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
)

// Synthesizer merges per-task findings into one coherent narrative.
type Synthesizer struct {
	provider  provider.Provider
	model     string
	cfg       config.SynthesisConfig
	cache     Cache
	retry     Policy
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewSynthesizer(p provider.Provider, model string, cfg config.SynthesisConfig, cache Cache, maxRetries int, tel *telemetry.Telemetry) *Synthesizer {
	logger := log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	if cache == nil {
		cache = NopCache{}
	}
	return &Synthesizer{
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

// patterns holds cross-finding signals surfaced to the synthesis prompt and
// the fallback generator.
type patterns struct {
	Years     []string
	Numbers   []string
	KeyTopics []string
}

// Synthesize combines the findings into a single analysis. The second return
// value reports whether the text came from the local fallback.
func (sy *Synthesizer) Synthesize(ctx context.Context, query string, findings []string) (string, bool, error) {
	if len(findings) == 0 {
		return emptySynthesis, true, nil
	}

	key := CacheKey(append([]string{"synthesis", query}, findings...)...)
	if text, ok := sy.cache.Lookup(ctx, key); ok {
		sy.telemetry.RecordCacheHit("synthesis")
		return text, false, nil
	}
	sy.telemetry.RecordCacheMiss("synthesis")

	pats := extractPatterns(findings)
	prompt := sy.buildPrompt(query, prepareFindings(findings, sy.cfg.MaxContextChars), pats)
	params := provider.Params{
		Model:       sy.model,
		Temperature: sy.cfg.Temperature,
		MaxTokens:   sy.cfg.MaxTokens,
		TopP:        sy.cfg.TopP,
		TopK:        sy.cfg.TopK,
	}
	if err := params.Validate(); err != nil {
		return "", false, fmt.Errorf("synthesis params: %w", err)
	}

	out, err := sy.retry.Execute(ctx,
		func(ctx context.Context) (string, error) {
			sy.telemetry.RecordGenerationAttempt("synthesis")
			text, err := sy.provider.Generate(ctx, prompt, params)
			if err != nil {
				sy.telemetry.RecordGenerationFailure("synthesis", string(provider.KindOf(err)))
			}
			return text, err
		},
		sy.validateSynthesis,
	)
	if err == nil && out.Text != "" {
		if !out.Accepted {
			sy.logger.Printf("keeping best-effort synthesis after exhausting retries")
		}
		sy.cache.Store(ctx, key, out.Text)
		return out.Text, false, nil
	}

	sy.logger.Printf("synthesis failed, using fallback: %v", err)
	sy.telemetry.RecordFallback("synthesis")
	return FallbackSynthesis(findings, pats), true, nil
}

func (sy *Synthesizer) buildPrompt(query, findings string, pats patterns) string {
	var hints []string
	if len(pats.KeyTopics) > 0 {
		hints = append(hints, "Recurring topics: "+strings.Join(pats.KeyTopics, ", "))
	}
	if len(pats.Years) > 0 {
		hints = append(hints, "Years mentioned: "+strings.Join(pats.Years, ", "))
	}
	if len(pats.Numbers) > 0 {
		n := pats.Numbers
		if len(n) > 10 {
			n = n[:10]
		}
		hints = append(hints, "Figures mentioned: "+strings.Join(n, ", "))
	}
	hintBlock := ""
	if len(hints) > 0 {
		hintBlock = "\nPatterns identified across findings:\n" + strings.Join(hints, "\n") + "\n"
	}

	return fmt.Sprintf(`You are a research synthesis expert. Combine the research findings below into one cohesive analysis of the question: %s
%s
Research findings:
%s

Requirements:
- Write a flowing narrative, not a list of summaries
- Identify themes and patterns that appear across multiple findings
- Do not reference findings by number or repeat their headers
- Write at least 500 words in multiple paragraphs
- End with the most significant conclusions

Synthesis:`, query, hintBlock, findings)
}

// prepareFindings packs the findings into the context budget. Long findings
// are kept head-and-tail with an elision marker so the model still sees both
// the framing and the conclusions.
func prepareFindings(findings []string, budget int) string {
	if budget <= 0 {
		budget = 12000
	}
	per := budget / len(findings)

	var b strings.Builder
	for i, f := range findings {
		f = strings.TrimSpace(f)
		if len(f) > per {
			head := per * 2 / 3
			tail := per - head
			if head < 1 {
				head = 1
			}
			if tail < 1 {
				tail = 1
			}
			f = f[:head] + "\n[...]\n" + f[len(f)-tail:]
		}
		fmt.Fprintf(&b, "=== FINDING %d ===\n%s\n\n", i+1, f)
	}
	return strings.TrimSpace(b.String())
}

var (
	yearRe   = regexp.MustCompile(`\b20\d{2}\b`)
	numberRe = regexp.MustCompile(`\b\d+(?:\.\d+)?%?`)
)

// topicKeywords is the fixed vocabulary scanned for recurring topics.
var topicKeywords = []string{
	"technology", "research", "development", "growth", "challenge",
	"innovation", "data", "market", "policy", "risk",
	"adoption", "investment", "efficiency", "regulation",
}

// extractPatterns collects years, figures, and recurring keywords across the
// findings. A keyword counts as a topic when it appears more than twice.
func extractPatterns(findings []string) patterns {
	joined := strings.Join(findings, "\n")
	lower := strings.ToLower(joined)

	var p patterns
	p.Years = dedupe(yearRe.FindAllString(joined, -1))
	sort.Strings(p.Years)

	numbers := dedupe(numberRe.FindAllString(joined, -1))
	for _, n := range numbers {
		if yearRe.MatchString(n) {
			continue
		}
		p.Numbers = append(p.Numbers, n)
	}

	for _, kw := range topicKeywords {
		if strings.Count(lower, kw) > 2 {
			p.KeyTopics = append(p.KeyTopics, kw)
		}
	}
	return p
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// validateSynthesis rejects output that is too short, leaks the finding
// headers, lacks paragraph structure, or reads like concatenation instead of
// synthesis.
func (sy *Synthesizer) validateSynthesis(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < sy.cfg.MinLength {
		return false
	}
	if strings.Contains(trimmed, "=== FINDING") || strings.Contains(trimmed, "Finding 1") {
		return false
	}

	paragraphs := 0
	for _, p := range strings.Split(trimmed, "\n\n") {
		if len(strings.TrimSpace(p)) > 50 {
			paragraphs++
		}
	}
	if paragraphs < 3 {
		return false
	}

	lower := strings.ToLower(trimmed)
	indicators := 0
	for _, word := range []string{
		"overall", "together", "across", "common", "pattern", "theme",
		"collectively", "synthesis", "comprehensive", "emerges", "reveals",
		"indicates", "suggests",
	} {
		if strings.Contains(lower, word) {
			indicators++
		}
	}
	return indicators >= 3
}
