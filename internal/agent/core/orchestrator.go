package core

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
)

// minSynthesisChars is the stage-level floor for the synthesizing stage. It
// is deliberately lower than the synthesizer's own validation threshold: a
// best-effort synthesis below the validator's bar can still carry a run.
const minSynthesisChars = 200

// Orchestrator runs the sequential research pipeline:
// planning -> researching -> synthesizing -> report writing.
// Stages run strictly in order; a stage that cannot meet its minimum output
// fails the whole run and no report file is written.
type Orchestrator struct {
	planner     *Planner
	factFinder  *FactFinder
	quality     *QualityChecker
	synthesizer *Synthesizer
	reporter    *ReportWriter
	telemetry   *telemetry.Telemetry
	logger      *log.Logger

	reportsDir      string
	taskDelay       time.Duration
	minTasks        int
	minFindingChars int

	// runMu serializes runs: the reporter's citation ledger is per-run
	// state, so concurrent callers of a shared Orchestrator queue up.
	runMu sync.Mutex

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// now is swapped out in tests that assert on the report filename.
	now func() time.Time
}

// NewOrchestrator wires the pipeline agents together.
func NewOrchestrator(
	planner *Planner,
	factFinder *FactFinder,
	quality *QualityChecker,
	synthesizer *Synthesizer,
	reporter *ReportWriter,
	agents config.AgentsConfig,
	reportsDir string,
	tel *telemetry.Telemetry,
) *Orchestrator {
	return &Orchestrator{
		planner:         planner,
		factFinder:      factFinder,
		quality:         quality,
		synthesizer:     synthesizer,
		reporter:        reporter,
		telemetry:       tel,
		logger:          log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		reportsDir:      reportsDir,
		taskDelay:       agents.TaskDelay,
		minTasks:        agents.Planning.MinTasks,
		minFindingChars: agents.Research.MinFindingChars,
		now:             time.Now,
	}
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if o.sleep != nil {
		return o.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the full pipeline for one query. Concurrent calls on the same
// Orchestrator run one at a time. On success the returned result references
// exactly one report file on disk; on any failure no file is written and the
// error carries the failing stage.
func (o *Orchestrator) Run(ctx context.Context, query string, reportType ReportType) (*ResearchResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := o.now()
	o.reporter.ResetCitations()
	o.logger.Printf("starting research run for query: %s", query)

	result, err := o.run(ctx, query, reportType, start)
	duration := o.now().Sub(start)
	o.telemetry.RecordRun(err == nil, duration)
	if err != nil {
		o.logger.Printf("run failed after %s: %v", duration.Round(time.Millisecond), err)
		return nil, err
	}
	result.Duration = duration
	o.logger.Printf("run complete in %s, report at %s", duration.Round(time.Millisecond), result.ReportPath)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, query string, reportType ReportType, start time.Time) (*ResearchResult, error) {
	// Planning
	stageStart := o.now()
	tasks, err := o.planner.Plan(ctx, query)
	o.telemetry.ObserveStageDuration(string(StagePlanning), o.now().Sub(stageStart))
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	if len(tasks) < o.minTasks {
		return nil, &StageError{Stage: StagePlanning, Reason: fmt.Sprintf("produced %d tasks, need at least %d", len(tasks), o.minTasks)}
	}
	o.logger.Printf("planned %d research tasks", len(tasks))

	// Researching
	stageStart = o.now()
	findings, err := o.research(ctx, tasks)
	o.telemetry.ObserveStageDuration(string(StageResearching), o.now().Sub(stageStart))
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		return nil, &StageError{Stage: StageResearching, Reason: "no task produced usable findings"}
	}
	o.logger.Printf("collected %d findings", len(findings))

	// Synthesizing
	stageStart = o.now()
	texts := make([]string, len(findings))
	for i, f := range findings {
		texts[i] = f.Text
	}
	synthesis, synthFallback, err := o.synthesizer.Synthesize(ctx, query, texts)
	o.telemetry.ObserveStageDuration(string(StageSynthesizing), o.now().Sub(stageStart))
	if err != nil {
		return nil, fmt.Errorf("synthesizing: %w", err)
	}
	if len(strings.TrimSpace(synthesis)) < minSynthesisChars {
		return nil, &StageError{Stage: StageSynthesizing, Reason: fmt.Sprintf("synthesis is %d chars, need at least %d", len(synthesis), minSynthesisChars)}
	}
	if synthFallback {
		o.logger.Printf("synthesis produced by local fallback")
	}

	// Report writing
	stageStart = o.now()
	report, reportFallback, err := o.reporter.Write(ctx, query, synthesis, reportType)
	if err != nil {
		o.telemetry.ObserveStageDuration(string(StageReportWriting), o.now().Sub(stageStart))
		return nil, fmt.Errorf("report writing: %w", err)
	}
	if reportFallback {
		o.logger.Printf("report produced by local fallback")
	}
	path, err := SaveReport(o.reportsDir, report, o.now())
	o.telemetry.ObserveStageDuration(string(StageReportWriting), o.now().Sub(stageStart))
	if err != nil {
		return nil, fmt.Errorf("report writing: %w", err)
	}

	return &ResearchResult{
		ID:         uuid.NewString(),
		Query:      query,
		Tasks:      tasks,
		Findings:   findings,
		Synthesis:  synthesis,
		Report:     report,
		ReportFile: filepath.Base(path),
		ReportPath: path,
		ReportType: reportType,
		CreatedAt:  start,
	}, nil
}

// research runs each task in order with a delay between tasks, assesses
// every kept finding, and records a citation for it. Findings below the
// minimum size are dropped rather than failing the run.
func (o *Orchestrator) research(ctx context.Context, tasks []string) ([]Finding, error) {
	var findings []Finding
	for i, task := range tasks {
		if i > 0 {
			if err := o.pause(ctx, o.taskDelay); err != nil {
				return nil, fmt.Errorf("researching: %w", err)
			}
		}
		o.logger.Printf("researching task %d/%d", i+1, len(tasks))

		text, fromFallback, err := o.factFinder.Research(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("researching task %d: %w", i+1, err)
		}
		if len(strings.TrimSpace(text)) <= o.minFindingChars {
			o.logger.Printf("dropping undersized finding for task %d", i+1)
			continue
		}

		assessment := o.quality.Assess(ctx, text)
		category := "primary"
		if fromFallback {
			category = "supporting"
		}
		source := fmt.Sprintf("Research task %d: %s", i+1, truncate(task, 80))
		marker := o.reporter.AddCitation(source, category)
		o.logger.Printf("finding %s assessed: %s", marker, assessment)

		findings = append(findings, Finding{
			Task:       task,
			Text:       text,
			Assessment: assessment,
			Fallback:   fromFallback,
		})
	}
	return findings, nil
}
