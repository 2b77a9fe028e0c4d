package core

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/provider"
)

// fakeProvider scripts model responses per call. Safe for concurrent use.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, prompt string, params provider.Params) (string, error)
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, params provider.Params) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fn(n, prompt, params)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testAgentsConfig mirrors the defaults but zeroes every delay so tests run
// instantly.
func testAgentsConfig() config.AgentsConfig {
	return config.AgentsConfig{
		MaxRetries: 3,
		TaskDelay:  0,
		Planning: config.PlanningConfig{
			Temperature: 0.7, MaxTokens: 500,
			MinTasks: 2, MaxTasks: 5,
		},
		Research: config.ResearchConfig{
			Temperature: 0.3, MaxTokens: 1500, TopP: 0.9, TopK: 40,
			MinLength: 200, MinFindingChars: 100,
		},
		Assessment: config.AssessConfig{
			Temperature: 0.1, MaxTokens: 100, TopP: 0.9,
		},
		Synthesis: config.SynthesisConfig{
			Temperature: 0.5, MaxTokens: 2000, TopP: 0.9, TopK: 40,
			MinLength: 400, MaxContextChars: 12000,
		},
		Report: config.ReportConfig{
			Temperature: 0.4, MaxTokens: 2500, TopP: 0.9, TopK: 40,
			MaxContextChars: 8000,
			MinLengths: map[string]int{
				"detailed":  2000,
				"executive": 800,
				"technical": 1500,
				"summary":   400,
			},
		},
	}
}
