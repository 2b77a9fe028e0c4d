package core

import (
	"fmt"
	"log"
	"net"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
	gemini_provider "github.com/mohammad-safakhou/deepresearch/provider/gemini"
	openai_provider "github.com/mohammad-safakhou/deepresearch/provider/openai"
)

// NewLLMProvider constructs the configured model provider. A missing API key
// is a fatal configuration error, not something to retry at runtime.
func NewLLMProvider(cfg config.LLMConfig) (provider.Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm.api_key is required (set DEEPRESEARCH_LLM_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY)")
	}
	switch cfg.Provider {
	case "gemini":
		return gemini_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout), nil
	case "openai":
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// NewCache builds the cache for one namespace from the configured backend.
// The redis client, when given, is shared across namespaces. Report entries
// are Markdown, so that namespace stores .md files.
func NewCache(cfg config.CacheConfig, namespace string, rdb *redis.Client, logger *log.Logger) Cache {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(rdb, namespace, cfg.TTLFor(namespace), logger)
	case "none":
		return NopCache{}
	default:
		fc := NewFileCache(filepath.Join(cfg.Dir, namespace), cfg.TTLFor(namespace), logger)
		if namespace == "report" {
			fc = fc.WithExt(".md")
		}
		return fc
	}
}

// NewRedisClient opens the shared cache connection.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
		ReadTimeout: cfg.Timeout,
	})
}

// BuildOrchestrator assembles the full pipeline from configuration, wiring
// the shared provider and per-namespace caches into each agent.
func BuildOrchestrator(cfg *config.Config, tel *telemetry.Telemetry) (*Orchestrator, error) {
	prov, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	cacheLogger := log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	var rdb *redis.Client
	if cfg.Cache.Backend == "redis" {
		rdb = NewRedisClient(cfg.Cache.Redis)
	}

	model := cfg.LLM.Model
	agents := cfg.Agents
	planner := NewPlanner(prov, model, agents.Planning, agents.MaxRetries, tel)
	factFinder := NewFactFinder(prov, model, agents.Research,
		NewCache(cfg.Cache, "research", rdb, cacheLogger), agents.MaxRetries, tel)
	quality := NewQualityChecker(prov, model, agents.Assessment, tel)
	synthesizer := NewSynthesizer(prov, model, agents.Synthesis,
		NewCache(cfg.Cache, "synthesis", rdb, cacheLogger), agents.MaxRetries, tel)
	reporter := NewReportWriter(prov, model, agents.Report,
		NewCache(cfg.Cache, "report", rdb, cacheLogger), agents.MaxRetries, tel)

	return NewOrchestrator(planner, factFinder, quality, synthesizer, reporter,
		agents, cfg.General.ReportsDir, tel), nil
}
