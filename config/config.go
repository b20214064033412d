// Package config loads the researcher configuration from file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider kinds accepted for llm.provider.
const (
	LLMProviderLocal            = "local"
	LLMProviderOpenAICompatible = "openai_compatible"
)

// Search backends accepted for search.api.
const (
	SearchAPISearxNG = "searxng"
	SearchAPIMCP     = "mcp"
)

// Memory capture levels.
const (
	CaptureMinimal       = "minimal"
	CaptureEssential     = "essential"
	CaptureComprehensive = "comprehensive"
)

// Config holds all configuration for the research service
type Config struct {
	Research  ResearchConfig  `mapstructure:"research"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Schedules []Schedule      `mapstructure:"schedules"`
}

// ResearchConfig controls the orchestration loop
type ResearchConfig struct {
	MaxWebResearchLoops  int  `mapstructure:"max_web_research_loops"`
	FetchFullPage        bool `mapstructure:"fetch_full_page"`
	MaxTokensPerSource   int  `mapstructure:"max_tokens_per_source"`
	VerificationEnabled  bool `mapstructure:"verification_enabled"`
	FilterLowReliability bool `mapstructure:"filter_low_reliability"`
}

// LLMConfig selects and configures the completion provider
type LLMConfig struct {
	Provider            string        `mapstructure:"provider"` // local, openai_compatible
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	StripThinkingTokens bool          `mapstructure:"strip_thinking_tokens"`
}

// SearchConfig selects and configures the web search backend
type SearchConfig struct {
	API        string        `mapstructure:"api"` // searxng, mcp
	SearxNGURL string        `mapstructure:"searxng_url"`
	WebTimeout time.Duration `mapstructure:"web_timeout"`
	MaxResults int           `mapstructure:"max_results"`
}

// MCPConfig configures the academic-paper retrieval service
type MCPConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	AuthToken  string        `mapstructure:"auth_token"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ToolsConfig registers external tool servers alongside the builtins
type ToolsConfig struct {
	OpenAPI []OpenAPITool `mapstructure:"openapi"`
}

// OpenAPITool points at one OpenAPI tool server whose operations are exposed
// to the model
type OpenAPITool struct {
	Name        string `mapstructure:"name"`
	SpecPath    string `mapstructure:"spec_path"`
	BaseURL     string `mapstructure:"base_url"`
	BearerToken string `mapstructure:"bearer_token"`
}

// FetchConfig configures URL content extraction
type FetchConfig struct {
	Engine   string        `mapstructure:"engine"` // readability, chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// MemoryConfig configures best-effort content-memory capture
type MemoryConfig struct {
	Enabled      bool        `mapstructure:"enabled"`
	CaptureLevel string      `mapstructure:"capture_level"` // minimal, essential, comprehensive
	Redis        RedisConfig `mapstructure:"redis"`
	IndexPath    string      `mapstructure:"index_path"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StorageConfig contains run-archive persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	AuthTokenHash string `mapstructure:"auth_token_hash"` // bcrypt hash of the accepted bearer token
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	PrometheusNamespace string `mapstructure:"prometheus_namespace"`
}

// Schedule describes one recurring research topic
type Schedule struct {
	Topic string `mapstructure:"topic"`
	Cron  string `mapstructure:"cron"`
}

// DSN builds a Postgres connection string; empty when Postgres is not configured.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	if p.Host == "" && p.DBName == "" {
		return ""
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// Load loads configuration from file and environment variables.
// Missing required credentials are fatal here, before any request is taken.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MONKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults plus env cover the common setup
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("research.max_web_research_loops", 3)
	v.SetDefault("research.fetch_full_page", true)
	v.SetDefault("research.max_tokens_per_source", 4000)
	v.SetDefault("research.verification_enabled", true)
	v.SetDefault("research.filter_low_reliability", false)

	v.SetDefault("llm.provider", LLMProviderLocal)
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.strip_thinking_tokens", true)

	v.SetDefault("search.api", SearchAPISearxNG)
	v.SetDefault("search.searxng_url", "http://localhost:8888")
	v.SetDefault("search.web_timeout", "30s")
	v.SetDefault("search.max_results", 5)

	v.SetDefault("mcp.server_url", "")
	v.SetDefault("mcp.max_retries", 3)
	v.SetDefault("mcp.timeout", "30s")

	v.SetDefault("fetch.engine", "readability")
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_chars", 20000)

	v.SetDefault("memory.enabled", false)
	v.SetDefault("memory.capture_level", CaptureEssential)
	v.SetDefault("memory.redis.addr", "localhost:6379")
	v.SetDefault("memory.redis.db", 0)
	v.SetDefault("memory.redis.ttl", "720h")
	v.SetDefault("memory.index_path", "./data/memory.bleve")

	v.SetDefault("storage.postgres.sslmode", "disable")

	v.SetDefault("server.addr", ":8899")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.prometheus_namespace", "monkey")
}

// overrideFromEnv overrides configuration with well-known environment variables
func overrideFromEnv(v *viper.Viper) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		v.Set("llm.api_key", key)
	}
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
		v.Set("llm.base_url", base)
	}
	if u := os.Getenv("SEARXNG_URL"); u != "" {
		v.Set("search.searxng_url", u)
	}
	if u := os.Getenv("MCP_SERVER_URL"); u != "" {
		v.Set("mcp.server_url", u)
	}
	if tok := os.Getenv("MCP_AUTH_TOKEN"); tok != "" {
		v.Set("mcp.auth_token", tok)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		v.Set("storage.postgres.url", url)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		v.Set("memory.redis.addr", addr)
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		v.Set("memory.redis.password", pass)
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			v.Set("memory.redis.db", n)
		}
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		v.Set("server.jwt_secret", secret)
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.LLM.Provider {
	case LLMProviderLocal:
		if cfg.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is required for the local provider")
		}
	case LLMProviderOpenAICompatible:
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key (or OPENAI_API_KEY) is required for the openai_compatible provider")
		}
	default:
		return fmt.Errorf("unsupported llm.provider: %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}

	switch cfg.Search.API {
	case SearchAPISearxNG:
		if cfg.Search.SearxNGURL == "" {
			return fmt.Errorf("search.searxng_url is required when search.api is searxng")
		}
	case SearchAPIMCP:
		if cfg.MCP.ServerURL == "" {
			return fmt.Errorf("mcp.server_url is required when search.api is mcp")
		}
	default:
		return fmt.Errorf("unsupported search.api: %s", cfg.Search.API)
	}

	if cfg.Research.MaxWebResearchLoops < 0 {
		return fmt.Errorf("research.max_web_research_loops must be >= 0")
	}

	switch cfg.Memory.CaptureLevel {
	case CaptureMinimal, CaptureEssential, CaptureComprehensive:
	default:
		return fmt.Errorf("unsupported memory.capture_level: %s", cfg.Memory.CaptureLevel)
	}

	for i, t := range cfg.Tools.OpenAPI {
		if t.Name == "" || t.SpecPath == "" || t.BaseURL == "" {
			return fmt.Errorf("tools.openapi[%d]: name, spec_path, and base_url are all required", i)
		}
	}

	for i, s := range cfg.Schedules {
		if s.Topic == "" || s.Cron == "" {
			return fmt.Errorf("schedules[%d]: topic and cron are both required", i)
		}
	}
	return nil
}
