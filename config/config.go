package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	ReportsDir string `mapstructure:"reports_dir"`
	DataDir    string `mapstructure:"data_dir"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the hosted model provider configuration
type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // gemini, openai
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.provider must be gemini or openai, got %q", l.Provider)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	return nil
}

// AgentsConfig contains per-stage generation parameters and quality thresholds.
// The threshold values are tuning constants inherited from the original
// system; they are configurable rather than hardcoded.
type AgentsConfig struct {
	MaxRetries int             `mapstructure:"max_retries"`
	TaskDelay  time.Duration   `mapstructure:"task_delay"`
	Planning   PlanningConfig  `mapstructure:"planning"`
	Research   ResearchConfig  `mapstructure:"research"`
	Assessment AssessConfig    `mapstructure:"assessment"`
	Synthesis  SynthesisConfig `mapstructure:"synthesis"`
	Report     ReportConfig    `mapstructure:"report"`
}

// PlanningConfig controls question decomposition
type PlanningConfig struct {
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	MinTasks         int           `mapstructure:"min_tasks"`
	MaxTasks         int           `mapstructure:"max_tasks"`
	Backoff          time.Duration `mapstructure:"backoff"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
}

// ResearchConfig controls per-task fact finding
type ResearchConfig struct {
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	TopP             float64       `mapstructure:"top_p"`
	TopK             int           `mapstructure:"top_k"`
	MinLength        int           `mapstructure:"min_length"`
	MinFindingChars  int           `mapstructure:"min_finding_chars"`
	Backoff          time.Duration `mapstructure:"backoff"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
}

// AssessConfig controls the quality assessment calls
type AssessConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// SynthesisConfig controls findings synthesis
type SynthesisConfig struct {
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	TopP             float64       `mapstructure:"top_p"`
	TopK             int           `mapstructure:"top_k"`
	MinLength        int           `mapstructure:"min_length"`
	MaxContextChars  int           `mapstructure:"max_context_chars"`
	Backoff          time.Duration `mapstructure:"backoff"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
}

// ReportConfig controls report generation
type ReportConfig struct {
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	TopP             float64       `mapstructure:"top_p"`
	TopK             int           `mapstructure:"top_k"`
	MaxContextChars  int           `mapstructure:"max_context_chars"`
	Backoff          time.Duration `mapstructure:"backoff"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	MinLengths       map[string]int `mapstructure:"min_lengths"` // per report type
}

// CacheConfig contains content cache settings
type CacheConfig struct {
	Backend      string        `mapstructure:"backend"` // file, redis, none
	Dir          string        `mapstructure:"dir"`
	ResearchTTL  time.Duration `mapstructure:"research_ttl"`
	SynthesisTTL time.Duration `mapstructure:"synthesis_ttl"`
	ReportTTL    time.Duration `mapstructure:"report_ttl"`
	Redis        RedisConfig   `mapstructure:"redis"`
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "file", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be file, redis or none, got %q", c.Backend)
	}
	if c.Backend == "redis" {
		return c.Redis.Validate()
	}
	return nil
}

// TTLFor returns the expiry window for a cache namespace.
func (c CacheConfig) TTLFor(namespace string) time.Duration {
	switch namespace {
	case "research":
		return c.ResearchTTL
	case "synthesis":
		return c.SynthesisTTL
	case "report":
		return c.ReportTTL
	default:
		return c.ResearchTTL
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required")
	}
	return nil
}

// StorageConfig contains session persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL     string        `mapstructure:"url"`
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	User    string        `mapstructure:"user"`
	Pass    string        `mapstructure:"password"`
	DBName  string        `mapstructure:"dbname"`
	SSLMode string        `mapstructure:"sslmode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether any Postgres settings were provided at all.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a connection string from the individual fields when no URL is set.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Pass, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() {
		return nil
	}
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// SearchConfig contains report index settings
type SearchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	IndexDir string `mapstructure:"index_dir"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.reports_dir", "research_reports")
	viper.SetDefault("general.data_dir", ".deepresearch")

	viper.SetDefault("server.address", ":10002")

	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.model", "gemini-1.5-flash")
	viper.SetDefault("llm.timeout", 30*time.Second)

	viper.SetDefault("agents.max_retries", 3)
	viper.SetDefault("agents.task_delay", 2*time.Second)

	viper.SetDefault("agents.planning.temperature", 0.7)
	viper.SetDefault("agents.planning.max_tokens", 500)
	viper.SetDefault("agents.planning.min_tasks", 2)
	viper.SetDefault("agents.planning.max_tasks", 5)
	viper.SetDefault("agents.planning.backoff", 2*time.Second)
	viper.SetDefault("agents.planning.rate_limit_backoff", 5*time.Second)

	viper.SetDefault("agents.research.temperature", 0.3)
	viper.SetDefault("agents.research.max_tokens", 1500)
	viper.SetDefault("agents.research.top_p", 0.9)
	viper.SetDefault("agents.research.top_k", 40)
	viper.SetDefault("agents.research.min_length", 200)
	viper.SetDefault("agents.research.min_finding_chars", 100)
	viper.SetDefault("agents.research.backoff", 2*time.Second)
	viper.SetDefault("agents.research.rate_limit_backoff", 5*time.Second)

	viper.SetDefault("agents.assessment.temperature", 0.1)
	viper.SetDefault("agents.assessment.max_tokens", 100)
	viper.SetDefault("agents.assessment.top_p", 0.9)

	viper.SetDefault("agents.synthesis.temperature", 0.5)
	viper.SetDefault("agents.synthesis.max_tokens", 2000)
	viper.SetDefault("agents.synthesis.top_p", 0.9)
	viper.SetDefault("agents.synthesis.top_k", 40)
	viper.SetDefault("agents.synthesis.min_length", 400)
	viper.SetDefault("agents.synthesis.max_context_chars", 12000)
	viper.SetDefault("agents.synthesis.backoff", 3*time.Second)
	viper.SetDefault("agents.synthesis.rate_limit_backoff", 10*time.Second)

	viper.SetDefault("agents.report.temperature", 0.4)
	viper.SetDefault("agents.report.max_tokens", 2500)
	viper.SetDefault("agents.report.top_p", 0.9)
	viper.SetDefault("agents.report.top_k", 40)
	viper.SetDefault("agents.report.max_context_chars", 8000)
	viper.SetDefault("agents.report.backoff", 3*time.Second)
	viper.SetDefault("agents.report.rate_limit_backoff", 10*time.Second)
	viper.SetDefault("agents.report.min_lengths", map[string]int{
		"detailed":  2000,
		"executive": 800,
		"technical": 1500,
		"summary":   400,
	})

	viper.SetDefault("cache.backend", "file")
	viper.SetDefault("cache.dir", ".deepresearch/cache")
	viper.SetDefault("cache.research_ttl", 24*time.Hour)
	viper.SetDefault("cache.synthesis_ttl", 48*time.Hour)
	viper.SetDefault("cache.report_ttl", 72*time.Hour)
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.redis.timeout", 5*time.Second)

	viper.SetDefault("search.enabled", true)
	viper.SetDefault("search.index_dir", ".deepresearch/index.bleve")

	viper.SetDefault("telemetry.enabled", true)
}

// LoadConfig loads configuration from an optional file plus DEEPRESEARCH_*
// environment variables. A missing config file is not an error; the defaults
// mirror the tuning constants of the original system.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cache.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
