package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures so retry logic never has to inspect
// message text.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindInvalidKey  Kind = "invalid_key"
	KindNotFound    Kind = "not_found"
	KindOther       Kind = "other"
)

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider: %s: %s", e.Kind, e.Message)
}

// KindOf extracts the error kind, defaulting to KindOther for foreign errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}

// IsRateLimited reports whether err is a rate-limit/quota failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// KindFromStatus maps an HTTP status code to an error kind.
func KindFromStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindInvalidKey
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindOther
	}
}

// Params are the generation parameters for a single request. Immutable once
// built; validated before any call leaves the process.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.Temperature < 0 || p.Temperature > 1 {
		return fmt.Errorf("temperature must be in [0,1], got %v", p.Temperature)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be > 0, got %d", p.MaxTokens)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p must be in [0,1], got %v", p.TopP)
	}
	if p.TopK < 0 {
		return fmt.Errorf("top_k must be >= 0, got %d", p.TopK)
	}
	return nil
}

// Provider is the interface all hosted model clients satisfy.
type Provider interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
	Name() string
}
