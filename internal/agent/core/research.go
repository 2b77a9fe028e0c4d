package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
)

// FactFinder executes a single research task against the model and validates
// that the answer looks like substantive research rather than a refusal.
type FactFinder struct {
	provider  provider.Provider
	model     string
	cfg       config.ResearchConfig
	cache     Cache
	retry     Policy
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewFactFinder(p provider.Provider, model string, cfg config.ResearchConfig, cache Cache, maxRetries int, tel *telemetry.Telemetry) *FactFinder {
	logger := log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	if cache == nil {
		cache = NopCache{}
	}
	return &FactFinder{
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

// Research answers one task. Cached results are reused; validated fresh
// results and best-effort partial results are both cached. When everything
// fails, a deterministic local finding is returned and the second return
// value is true.
func (ff *FactFinder) Research(ctx context.Context, task string) (string, bool, error) {
	key := CacheKey("research", task)
	if text, ok := ff.cache.Lookup(ctx, key); ok {
		ff.telemetry.RecordCacheHit("research")
		return text, false, nil
	}
	ff.telemetry.RecordCacheMiss("research")

	prompt := ff.buildPrompt(task)
	params := provider.Params{
		Model:       ff.model,
		Temperature: ff.cfg.Temperature,
		MaxTokens:   ff.cfg.MaxTokens,
		TopP:        ff.cfg.TopP,
		TopK:        ff.cfg.TopK,
	}
	if err := params.Validate(); err != nil {
		return "", false, fmt.Errorf("research params: %w", err)
	}

	out, err := ff.retry.Execute(ctx,
		func(ctx context.Context) (string, error) {
			ff.telemetry.RecordGenerationAttempt("research")
			text, err := ff.provider.Generate(ctx, prompt, params)
			if err != nil {
				ff.telemetry.RecordGenerationFailure("research", string(provider.KindOf(err)))
			}
			return text, err
		},
		func(text string) bool {
			return ff.validateFindings(text)
		},
	)
	if err == nil && out.Text != "" {
		if !out.Accepted {
			ff.logger.Printf("keeping best-effort findings for task after exhausting retries")
		}
		ff.cache.Store(ctx, key, out.Text)
		return out.Text, false, nil
	}

	ff.logger.Printf("research failed for task, using fallback findings: %v", err)
	ff.telemetry.RecordFallback("research")
	return FallbackFindings(task), true, nil
}

func (ff *FactFinder) buildPrompt(task string) string {
	year := time.Now().Year()
	return fmt.Sprintf(`You are a research assistant with broad knowledge up to %d. Complete the following research task with substantive, specific findings.

Research task: %s

Requirements:
- Provide concrete facts, figures, and examples where possible
- Cover recent developments as well as established knowledge
- Organize findings into clear paragraphs
- Write at least 300 words
- Do not include disclaimers about your capabilities

Findings:`, year, task)
}

// validateFindings rejects answers that are too short, look like model
// refusals, or lack the structure of real research output.
func (ff *FactFinder) validateFindings(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < ff.cfg.MinLength {
		return false
	}

	head := strings.ToLower(trimmed)
	if len(head) > 200 {
		head = head[:200]
	}
	for _, phrase := range genericPhrases {
		if strings.Contains(head, phrase) {
			return false
		}
	}

	indicators := 0
	if strings.Count(trimmed, ".") > 5 {
		indicators++
	}
	if strings.Contains(trimmed, "\n") || len(trimmed) > 300 {
		indicators++
	}
	if containsDigit(trimmed, 500) {
		indicators++
	}
	return indicators >= 2
}

var genericPhrases = []string{
	"i cannot provide",
	"i don't have access",
	"i'm unable to",
	"as an ai",
	"i cannot access real-time",
}

func containsDigit(s string, limit int) bool {
	if len(s) > limit {
		s = s[:limit]
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
