package core

import (
	"fmt"
	"time"
)

// Stage identifies a step of the sequential research pipeline.
type Stage string

const (
	StagePlanning      Stage = "planning"
	StageResearching   Stage = "researching"
	StageSynthesizing  Stage = "synthesizing"
	StageReportWriting Stage = "report_writing"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// StageError marks a run that failed a stage's minimum-output check. It is a
// user-visible, recoverable failure: no partial report is persisted and the
// process keeps running.
type StageError struct {
	Stage  Stage
	Reason string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Reason)
}

// ReportType selects the report template and its minimum acceptable length.
type ReportType string

const (
	ReportDetailed  ReportType = "detailed"
	ReportExecutive ReportType = "executive"
	ReportTechnical ReportType = "technical"
	ReportSummary   ReportType = "summary"
)

// ParseReportType normalises a user-supplied report type, defaulting to
// detailed.
func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case ReportDetailed, ReportExecutive, ReportTechnical, ReportSummary:
		return ReportType(s), nil
	case "":
		return ReportDetailed, nil
	default:
		return "", fmt.Errorf("unknown report type: %q", s)
	}
}

// Finding is the free-text research output for one task.
type Finding struct {
	Task       string `json:"task"`
	Text       string `json:"text"`
	Assessment string `json:"assessment,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
}

// ResearchResult is the final output of one orchestrated run.
type ResearchResult struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Tasks      []string      `json:"tasks"`
	Findings   []Finding     `json:"findings"`
	Synthesis  string        `json:"synthesis"`
	Report     string        `json:"report"`
	ReportFile string        `json:"report_file"`
	ReportPath string        `json:"report_path"`
	ReportType ReportType    `json:"report_type"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}
