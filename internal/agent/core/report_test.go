package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

// goodSummaryReport clears the summary minimum length and carries the
// expected structural markers.
const goodSummaryReport = `## Summary

Renewable energy deployment continued to accelerate, with capacity additions setting records and costs falling across solar and wind. The main finding is that generation growth has outpaced grid build-out.

## Key Points

The key finding from the analysis is a shift in the binding constraint from technology cost to infrastructure. Storage deployment is growing but remains behind need. Policy support is still decisive in most markets.

## Conclusion

In conclusion, attention should move from generation subsidies to transmission and storage. The analysis suggests this is where the next decade of value lies.`

func newTestReportWriter(fake *fakeProvider, cache Cache) *ReportWriter {
	cfg := testAgentsConfig()
	return NewReportWriter(fake, "test-model", cfg.Report, cache, cfg.MaxRetries, nil)
}

func TestValidateReportStructure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		text      string
		minLength int
		want      bool
	}{
		{"valid summary", goodSummaryReport, 400, true},
		{"below minimum", goodSummaryReport[:399], 400, false},
		{"no structure", strings.Repeat("plain prose without markers ", 30), 400, false},
		{"headings plus conclusions", "## Section\n" + strings.Repeat("text ", 100) + "in conclusion", 400, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := validateReportStructure(tc.text, tc.minLength); got != tc.want {
				t.Fatalf("validateReportStructure = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPrepareContentKeepsIntroAndConclusion(t *testing.T) {
	t.Parallel()

	content := "INTRO " + strings.Repeat("m", 20000) + " OUTRO"
	got := prepareContent(content, 5000)
	if len(got) > 5100 {
		t.Fatalf("prepared content exceeds budget with headroom: %d", len(got))
	}
	if !strings.HasPrefix(got, "INTRO") {
		t.Fatal("introduction dropped")
	}
	if !strings.HasSuffix(got, "OUTRO") {
		t.Fatal("conclusion dropped")
	}
	if !strings.Contains(got, "[...]") {
		t.Fatal("expected elision markers")
	}
}

func TestExtractKeyInsightsPrefersPercentages(t *testing.T) {
	t.Parallel()

	content := "Deployment grew 45% year over year according to the tracker. " +
		"This is a significant shift for the sector as a whole. " +
		"Unrelated filler sentence that says nothing much at all here. "
	got := extractKeyInsights(content)
	if len(got) == 0 {
		t.Fatal("expected at least one insight")
	}
	if !strings.Contains(got[0], "45%") {
		t.Fatalf("expected percentage sentence first, got %q", got[0])
	}
}

func TestAddCitationNumbersSequentially(t *testing.T) {
	t.Parallel()

	rw := newTestReportWriter(&fakeProvider{}, nil)
	if got := rw.AddCitation("first source", "primary"); got != "[1]" {
		t.Fatalf("expected [1], got %s", got)
	}
	if got := rw.AddCitation("second source", "bogus category"); got != "[2]" {
		t.Fatalf("expected [2], got %s", got)
	}
	cits := rw.Citations()
	if len(cits) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(cits))
	}
	if cits[1].Category != "supporting" {
		t.Fatalf("unknown category should become supporting, got %s", cits[1].Category)
	}
	rw.ResetCitations()
	if len(rw.Citations()) != 0 {
		t.Fatal("reset should clear the ledger")
	}
}

func TestFormatFinalReportMetadata(t *testing.T) {
	t.Parallel()

	rw := newTestReportWriter(&fakeProvider{}, nil)
	rw.AddCitation("Research task 1: solar trends", "primary")
	rw.AddCitation("Research task 2: storage costs", "data")

	got := rw.formatFinalReport(goodSummaryReport, "renewables outlook", ReportSummary)
	for _, want := range []string{
		"# Research Report",
		"**Query:** renewables outlook",
		"**Report Type:** summary",
		"**Word Count:**",
		"**Reading Time:**",
		"## Sources",
		"### Primary Sources",
		"### Data Sources",
		"[1] Research task 1: solar trends",
		"*Report ID: ",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("formatted report missing %q", want)
		}
	}
	if strings.Contains(got, "### Supporting Sources") {
		t.Fatal("empty citation categories must be omitted")
	}
}

func TestWriteFallsBackUnderPermanentFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return "", &provider.Error{Kind: provider.KindRateLimited, Status: 429, Message: "quota"}
	}}
	rw := newTestReportWriter(fake, NopCache{})

	got, fb, err := rw.Write(context.Background(), "renewables outlook", goodSynthesis, ReportDetailed)
	if err != nil {
		t.Fatalf("fallback should not surface an error: %v", err)
	}
	if !fb {
		t.Fatal("expected fallback flag")
	}
	if !strings.Contains(got, "## Executive Summary") {
		t.Fatal("fallback report missing structure")
	}
}

func TestSaveReportFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2026, 8, 26, 15, 4, 5, 0, time.UTC)
	path, err := SaveReport(dir, "report body", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "research_20260826_150405.md" {
		t.Fatalf("unexpected filename: %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if string(data) != "report body" {
		t.Fatalf("unexpected report contents: %q", data)
	}
}

func TestSaveReportNeverOverwritesSameSecond(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2026, 8, 26, 15, 4, 5, 0, time.UTC)
	first, err := SaveReport(dir, "first report", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := SaveReport(dir, "second report", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("same-second saves collided on %s", first)
	}
	if filepath.Base(second) != "research_20260826_150406.md" {
		t.Fatalf("expected timestamp to advance, got %s", filepath.Base(second))
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first report" {
		t.Fatalf("first report was overwritten: %q", data)
	}
}
