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

// Planner decomposes a research question into independent research tasks.
// Planning output is never cached: the task list is cheap to regenerate and
// sensitive to model drift.
type Planner struct {
	provider  provider.Provider
	model     string
	cfg       config.PlanningConfig
	retry     Policy
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewPlanner(p provider.Provider, model string, cfg config.PlanningConfig, maxRetries int, tel *telemetry.Telemetry) *Planner {
	logger := log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)
	return &Planner{
		provider:  p,
		model:     model,
		cfg:       cfg,
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

// Plan returns between MinTasks and MaxTasks research tasks for the question.
// When every attempt fails or produces too few tasks, it falls back to a
// locally generated task list.
func (pl *Planner) Plan(ctx context.Context, question string) ([]string, error) {
	prompt := pl.buildPrompt(question)
	params := provider.Params{
		Model:       pl.model,
		Temperature: pl.cfg.Temperature,
		MaxTokens:   pl.cfg.MaxTokens,
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("planning params: %w", err)
	}

	var bestTasks []string
	out, err := pl.retry.Execute(ctx,
		func(ctx context.Context) (string, error) {
			pl.telemetry.RecordGenerationAttempt("planner")
			text, err := pl.provider.Generate(ctx, prompt, params)
			if err != nil {
				pl.telemetry.RecordGenerationFailure("planner", string(provider.KindOf(err)))
			}
			return text, err
		},
		func(text string) bool {
			tasks := parseTasks(text)
			if len(tasks) > len(bestTasks) {
				bestTasks = tasks
			}
			return len(tasks) >= 3
		},
	)
	if err == nil && out.Accepted {
		return capTasks(parseTasks(out.Text), pl.cfg.MaxTasks), nil
	}
	if err == nil {
		// generation worked but never yielded a full task list; surface the
		// best attempt and let the caller judge whether it is enough
		pl.logger.Printf("planning exhausted retries, keeping best attempt with %d tasks", len(bestTasks))
		return capTasks(bestTasks, pl.cfg.MaxTasks), nil
	}

	pl.logger.Printf("planning failed, using fallback tasks: %v", err)
	pl.telemetry.RecordFallback("planner")
	return capTasks(FallbackTasks(question), pl.cfg.MaxTasks), nil
}

func (pl *Planner) buildPrompt(question string) string {
	return fmt.Sprintf(`You are a research planning assistant. Break down the following research question into 3-5 specific, independent research tasks.

Research question: %s

Requirements:
- Each task must be a single, self-contained research directive
- Each task should investigate a different aspect of the question
- Tasks must be specific enough to research independently
- Write each task on its own line
- Do not number the tasks or add any other text

Research tasks:`, question)
}

// parseTasks extracts task lines from raw model output. It strips list
// markers and quotes, drops lines that are too short to be real tasks, and
// drops meta lines (labels, section headers).
func parseTasks(text string) []string {
	var tasks []string
	for _, line := range strings.Split(text, "\n") {
		task := strings.TrimSpace(line)
		task = strings.TrimLeft(task, "0123456789.-•*†‡§¶#) ")
		task = strings.Trim(task, `"'`)
		task = strings.TrimSpace(task)
		if len(task) < 20 {
			continue
		}
		if isMetaLine(task) {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func isMetaLine(task string) bool {
	head := strings.ToLower(task)
	if len(head) > 15 {
		head = head[:15]
	}
	for _, prefix := range []string{"task:", "research:", "example:", "note:", "requirement:"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return strings.HasSuffix(task, ":")
}

func capTasks(tasks []string, max int) []string {
	if max > 0 && len(tasks) > max {
		return tasks[:max]
	}
	return tasks
}
