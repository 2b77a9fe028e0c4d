package core

import (
	"strings"
	"testing"
)

func TestFallbackTasksDeterministic(t *testing.T) {
	t.Parallel()

	question := "How is AI changing medical diagnosis?"
	first := FallbackTasks(question)
	second := FallbackTasks(question)
	if len(first) != 5 {
		t.Fatalf("expected 5 fallback tasks, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("fallback tasks are not deterministic: %q vs %q", first[i], second[i])
		}
	}
}

func TestFallbackFindingsBuckets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		task string
		want string
	}{
		{"ai", "Investigate artificial intelligence adoption", "artificial intelligence"},
		{"healthcare", "Examine healthcare technology trends", "healthcare technology"},
		{"climate", "Analyze climate policy outcomes", "environmental technology"},
		{"generic", "Study municipal parking regulations", "this field"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FallbackFindings(tc.task)
			if !strings.Contains(got, tc.want) {
				t.Fatalf("expected bucket %q in findings, got:\n%s", tc.want, got)
			}
			if got != FallbackFindings(tc.task) {
				t.Fatal("fallback findings are not deterministic")
			}
		})
	}
}

func TestFallbackSynthesisUsesPatterns(t *testing.T) {
	t.Parallel()

	findings := []string{
		"Adoption grew in 2023. Research confirms the trend. Data supports it.",
		"Investment doubled in 2024. Studies agree on the direction.",
	}
	pats := patterns{Years: []string{"2023", "2024"}, KeyTopics: []string{"research", "data"}}
	got := FallbackSynthesis(findings, pats)
	if !strings.Contains(got, "research, data") {
		t.Fatalf("expected key topics in synthesis, got:\n%s", got)
	}
	if !strings.Contains(got, "2023") {
		t.Fatalf("expected time context in synthesis, got:\n%s", got)
	}
	if len(got) < 400 {
		t.Fatalf("fallback synthesis too short: %d chars", len(got))
	}
}

func TestFallbackReportHasStructure(t *testing.T) {
	t.Parallel()

	got := FallbackReport("impact of renewable energy on grids")
	for _, section := range []string{"## Executive Summary", "## Key Findings", "## Conclusions"} {
		if !strings.Contains(got, section) {
			t.Fatalf("fallback report missing section %q", section)
		}
	}
	if !strings.Contains(got, "impact of renewable energy on grids") {
		t.Fatal("fallback report should mention the query")
	}
	if got != FallbackReport("impact of renewable energy on grids") {
		t.Fatal("fallback report is not deterministic")
	}
}
