package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestExecuteStopsAtFirstAcceptedResult(t *testing.T) {
	t.Parallel()

	calls := 0
	p := Policy{MaxAttempts: 3, Sleep: noSleep}
	out, err := p.Execute(context.Background(),
		func(context.Context) (string, error) {
			calls++
			return "good answer", nil
		},
		func(text string) bool { return text == "good answer" },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Accepted || out.Text != "good answer" {
		t.Fatalf("expected accepted outcome, got %+v", out)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestExecuteNeverExceedsMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	p := Policy{MaxAttempts: 3, Sleep: noSleep}
	_, err := p.Execute(context.Background(),
		func(context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		},
		nil,
	)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteReturnsBestEffortOnRejection(t *testing.T) {
	t.Parallel()

	responses := []string{"short", "a much longer candidate answer", "mid answer"}
	calls := 0
	p := Policy{MaxAttempts: 3, Sleep: noSleep}
	out, err := p.Execute(context.Background(),
		func(context.Context) (string, error) {
			text := responses[calls]
			calls++
			return text, nil
		},
		func(string) bool { return false },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Accepted {
		t.Fatal("outcome should not be accepted")
	}
	if out.Text != "a much longer candidate answer" {
		t.Fatalf("expected longest candidate kept, got %q", out.Text)
	}
}

func TestExecuteRateLimitBackoffScaling(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	p := Policy{
		MaxAttempts:      3,
		Backoff:          time.Second,
		RateLimitBackoff: 5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	_, err := p.Execute(context.Background(),
		func(context.Context) (string, error) {
			return "", &provider.Error{Kind: provider.KindRateLimited, Status: 429, Message: "quota"}
		},
		nil,
	)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	// attempt 1: rate-limit wait 5s; attempt 2: backoff 1s then wait 10s;
	// attempt 3: backoff 2s, no rate-limit wait after the final attempt
	want := []time.Duration{5 * time.Second, 1 * time.Second, 10 * time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %d: %v", len(want), len(slept), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], slept[i])
		}
	}
}

func TestExecuteSkipsRateLimitBackoffAfterFinalAttempt(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	p := Policy{
		MaxAttempts:      1,
		RateLimitBackoff: 5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	_, err := p.Execute(context.Background(),
		func(context.Context) (string, error) {
			return "", &provider.Error{Kind: provider.KindRateLimited, Status: 429, Message: "quota"}
		},
		nil,
	)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("expected no sleeps once attempts are spent, got %v", slept)
	}
}

func TestExecuteWrapsLastError(t *testing.T) {
	t.Parallel()

	wrapped := &provider.Error{Kind: provider.KindInvalidKey, Status: 401, Message: "bad key"}
	p := Policy{MaxAttempts: 2, Sleep: noSleep}
	_, err := p.Execute(context.Background(),
		func(context.Context) (string, error) { return "", wrapped },
		nil,
	)
	if provider.KindOf(err) != provider.KindInvalidKey {
		t.Fatalf("expected invalid_key kind preserved, got %v", provider.KindOf(err))
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 5, Backoff: time.Second}
	_, err := p.Execute(ctx,
		func(context.Context) (string, error) {
			calls++
			cancel()
			return "", errors.New("boom")
		},
		nil,
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}
