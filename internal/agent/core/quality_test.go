package core

import (
	"context"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

func newTestQualityChecker(fake *fakeProvider) *QualityChecker {
	cfg := testAgentsConfig()
	return NewQualityChecker(fake, "test-model", cfg.Assessment, nil)
}

func TestAssessShortContentSkipsModel(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		t.Error("provider must not be called for short content")
		return "", nil
	}}
	qc := newTestQualityChecker(fake)

	got := qc.Assess(context.Background(), "too short")
	if !strings.HasPrefix(got, "Low Quality") {
		t.Fatalf("expected Low Quality verdict, got %q", got)
	}
}

func TestAssessLongStructuredContentSkipsModel(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		t.Error("provider must not be called for obviously good content")
		return "", nil
	}}
	qc := newTestQualityChecker(fake)

	content := strings.Repeat("A complete sentence with substance and a figure of 17 percent. ", 40)
	got := qc.Assess(context.Background(), content)
	if !strings.HasPrefix(got, "High Quality") {
		t.Fatalf("expected High Quality verdict, got %q", got)
	}
}

func TestAssessUsesModelVerdict(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return "Medium Quality: reasonable coverage but few figures", nil
	}}
	qc := newTestQualityChecker(fake)

	content := strings.Repeat("A moderate paragraph about the topic. ", 10)
	got := qc.Assess(context.Background(), content)
	if got != "Medium Quality: reasonable coverage but few figures" {
		t.Fatalf("expected model verdict, got %q", got)
	}
}

func TestAssessRejectsMalformedVerdict(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return "This text is pretty good I suppose", nil
	}}
	qc := newTestQualityChecker(fake)

	content := strings.Repeat("Research data shows a 23% increase according to the study. ", 10)
	got := qc.Assess(context.Background(), content)
	if !strings.Contains(got, "Quality") {
		t.Fatalf("expected heuristic verdict in standard format, got %q", got)
	}
}

func TestAssessFallsBackOnProviderError(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return "", &provider.Error{Kind: provider.KindRateLimited, Status: 429, Message: "quota"}
	}}
	qc := newTestQualityChecker(fake)

	content := strings.Repeat("Research data shows a 23% increase according to the study. ", 20)
	got := qc.Assess(context.Background(), content)
	if !strings.HasPrefix(got, "High Quality") {
		t.Fatalf("expected heuristic High Quality verdict, got %q", got)
	}
}

func TestAssessNeverErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return "", &provider.Error{Kind: provider.KindInvalidKey, Status: 401, Message: "bad key"}
	}}
	qc := newTestQualityChecker(fake)

	content := strings.Repeat("plain words without depth here again and again ", 5)
	got := qc.Assess(context.Background(), content)
	if got == "" {
		t.Fatal("assessment must always return a verdict")
	}
}
