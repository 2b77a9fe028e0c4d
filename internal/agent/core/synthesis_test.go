package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

// goodSynthesis passes the synthesis checks: long enough, multiple
// paragraphs, and plenty of cross-finding language.
const goodSynthesis = `Overall, the research reveals a consistent pattern across every stream examined. Renewable capacity growth, falling costs, and policy support emerge together as the dominant theme of the period, and the evidence suggests the trend is durable rather than cyclical.

Across the individual analyses, a second pattern emerges around grid integration. The findings collectively indicate that transmission and storage build-out now lag generation, a comprehensive constraint that appears in every regional synthesis and suggests where the next bottleneck lies.

Taken together, the common thread is that technology costs are no longer the binding constraint. The synthesis of these streams reveals that institutional and infrastructure factors now dominate, which indicates that policy attention should shift accordingly over the coming years.`

func newTestSynthesizer(fake *fakeProvider, cache Cache) *Synthesizer {
	cfg := testAgentsConfig()
	return NewSynthesizer(fake, "test-model", cfg.Synthesis, cache, cfg.MaxRetries, nil)
}

func TestPrepareFindingsRespectsBudget(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 10000)
	findings := []string{long, long, long}
	got := prepareFindings(findings, 3000)
	if len(got) > 3600 {
		t.Fatalf("prepared findings exceed budget with headroom: %d chars", len(got))
	}
	if !strings.Contains(got, "[...]") {
		t.Fatal("expected elision marker for truncated findings")
	}
	if !strings.Contains(got, "=== FINDING 1 ===") || !strings.Contains(got, "=== FINDING 3 ===") {
		t.Fatal("expected per-finding headers")
	}
}

func TestPrepareFindingsKeepsShortFindingsIntact(t *testing.T) {
	t.Parallel()

	got := prepareFindings([]string{"short finding one", "short finding two"}, 12000)
	if strings.Contains(got, "[...]") {
		t.Fatal("short findings should not be elided")
	}
}

func TestExtractPatterns(t *testing.T) {
	t.Parallel()

	findings := []string{
		"Research in 2023 shows 45% growth. The research community tracked data closely. More research followed.",
		"By 2024 the data confirmed it: 3 major data sets agree. Growth reached 45% again.",
	}
	p := extractPatterns(findings)
	if len(p.Years) != 2 || p.Years[0] != "2023" || p.Years[1] != "2024" {
		t.Fatalf("unexpected years: %v", p.Years)
	}
	found45 := false
	for _, n := range p.Numbers {
		if n == "45%" {
			found45 = true
		}
		if yearRe.MatchString(n) {
			t.Fatalf("years must not appear in numbers: %v", p.Numbers)
		}
	}
	if !found45 {
		t.Fatalf("expected 45%% in numbers: %v", p.Numbers)
	}
	hasResearch := false
	for _, kw := range p.KeyTopics {
		if kw == "research" {
			hasResearch = true
		}
	}
	if !hasResearch {
		t.Fatalf("expected recurring topic 'research': %v", p.KeyTopics)
	}
}

func TestValidateSynthesis(t *testing.T) {
	t.Parallel()

	sy := newTestSynthesizer(&fakeProvider{}, nil)

	cases := []struct {
		name string
		text string
		want bool
	}{
		{"valid", goodSynthesis, true},
		{"too short", "Overall the pattern suggests growth across sectors.", false},
		{"leaked headers", strings.Replace(goodSynthesis, "Overall,", "=== FINDING 1 ===", 1), false},
		{"single paragraph", strings.ReplaceAll(goodSynthesis, "\n\n", " "), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := sy.validateSynthesis(tc.text); got != tc.want {
				t.Fatalf("validateSynthesis = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSynthesizeEmptyFindings(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		t.Error("provider must not be called with no findings")
		return "", nil
	}}
	sy := newTestSynthesizer(fake, nil)

	got, fb, err := sy.Synthesize(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fb {
		t.Fatal("empty-input synthesis counts as fallback")
	}
	if !strings.Contains(got, "No research findings were provided") {
		t.Fatalf("unexpected empty synthesis text: %q", got)
	}
}

func TestSynthesizeCachesAcceptedResult(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return goodSynthesis, nil
	}}
	cache := NewFileCache(t.TempDir(), time.Hour, nil)
	sy := newTestSynthesizer(fake, cache)
	ctx := context.Background()
	findings := []string{goodFinding}

	first, fb, err := sy.Synthesize(ctx, "renewables", findings)
	if err != nil || fb {
		t.Fatalf("unexpected result: fallback=%v err=%v", fb, err)
	}
	second, _, _ := sy.Synthesize(ctx, "renewables", findings)
	if first != second {
		t.Fatal("cached synthesis differs")
	}
	if fake.callCount() != 1 {
		t.Fatalf("expected 1 provider call, got %d", fake.callCount())
	}
}

func TestSynthesizeFallsBackUnderPermanentFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{fn: func(int, string, provider.Params) (string, error) {
		return "", &provider.Error{Kind: provider.KindRateLimited, Status: 429, Message: "quota"}
	}}
	sy := newTestSynthesizer(fake, NopCache{})

	findings := []string{goodFinding, goodFinding}
	got, fb, err := sy.Synthesize(context.Background(), "renewables", findings)
	if err != nil {
		t.Fatalf("fallback should not surface an error: %v", err)
	}
	if !fb {
		t.Fatal("expected fallback flag")
	}
	if len(got) < minSynthesisChars {
		t.Fatalf("fallback synthesis too short to carry a run: %d chars", len(got))
	}
}
