package core

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mohammad-safakhou/deepresearch/provider"
)

// GenerateFunc produces one generation attempt.
type GenerateFunc func(ctx context.Context) (string, error)

// AcceptFunc is the quality gate applied to a successful generation.
type AcceptFunc func(text string) bool

// Outcome is the transient result of a retried generation.
type Outcome struct {
	Text     string
	Accepted bool
	Attempts int
}

// ErrExhausted is returned when every attempt failed before producing any
// text at all. Callers fall back to deterministic local generation.
var ErrExhausted = errors.New("generation attempts exhausted")

// Policy wraps generation calls with bounded retries, per-attempt backoff and
// a separately scaled backoff for rate-limit errors.
type Policy struct {
	MaxAttempts      int
	Backoff          time.Duration
	RateLimitBackoff time.Duration
	Logger           *log.Logger

	// Sleep is swapped out in tests; nil means context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

func (p Policy) logf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

// Execute runs gen up to MaxAttempts times. The first accepted text returns
// immediately. Rejected candidates are retained only when longer than the
// best seen so far; on exhaustion the best-effort candidate is returned with
// Accepted=false. ErrExhausted is returned only when no attempt produced any
// text.
func (p Policy) Execute(ctx context.Context, gen GenerateFunc, accept AcceptFunc) (Outcome, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	var best string
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.Backoff*time.Duration(attempt)); err != nil {
				return Outcome{Text: best, Attempts: attempt}, err
			}
		}

		text, err := gen(ctx)
		if err != nil {
			lastErr = err
			if provider.IsRateLimited(err) {
				// The final attempt does not back off.
				if attempt+1 < attempts {
					p.logf("rate limit hit on attempt %d, waiting longer", attempt+1)
					if serr := p.sleep(ctx, p.RateLimitBackoff*time.Duration(attempt+1)); serr != nil {
						return Outcome{Text: best, Attempts: attempt + 1}, serr
					}
				}
			} else {
				p.logf("attempt %d failed: %v", attempt+1, err)
			}
			continue
		}

		if accept(text) {
			return Outcome{Text: text, Accepted: true, Attempts: attempt + 1}, nil
		}
		if len(text) > len(best) {
			best = text
		}
	}

	if best != "" {
		p.logf("no attempt passed validation, using best effort (%d chars)", len(best))
		return Outcome{Text: best, Attempts: attempts}, nil
	}
	if lastErr != nil {
		return Outcome{Attempts: attempts}, errors.Join(ErrExhausted, lastErr)
	}
	return Outcome{Attempts: attempts}, ErrExhausted
}
