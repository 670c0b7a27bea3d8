package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Store kinds
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for Memoir
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Prompts  PromptsConfig  `json:"prompts"`
	LLM      LLMConfig      `json:"llm"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host            string        `json:"host" env:"MEMOIR_SERVER_HOST"`
	Port            int           `json:"port" env:"MEMOIR_SERVER_PORT"`
	CORSOrigins     []string      `json:"cors_origins" env:"MEMOIR_CORS_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"MEMOIR_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig selects and configures the prompt store
type DatabaseConfig struct {
	Store       string `json:"store" env:"MEMOIR_STORE"` // "postgres" or "memory"
	PostgresURL string `json:"postgres_url" env:"MEMOIR_POSTGRES_URL"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret   string        `json:"jwt_secret" env:"MEMOIR_JWT_SECRET"`
	Issuer      string        `json:"issuer" env:"MEMOIR_JWT_ISSUER"`
	DevTokenTTL time.Duration `json:"dev_token_ttl" env:"MEMOIR_DEV_TOKEN_TTL"`
}

// PromptsConfig holds the tunables of the selection and lifecycle engine
type PromptsConfig struct {
	RetirementThreshold   int      `json:"retirement_threshold" env:"MEMOIR_RETIREMENT_THRESHOLD"`
	MaxWords              int      `json:"max_words" env:"MEMOIR_MAX_WORDS"`
	ForbiddenWords        []string `json:"forbidden_words" env:"MEMOIR_FORBIDDEN_WORDS" envSeparator:","`
	MaxGenerationAttempts int      `json:"max_generation_attempts" env:"MEMOIR_MAX_GENERATION_ATTEMPTS"`
	GeneratedPromptScore  float64  `json:"generated_prompt_score" env:"MEMOIR_GENERATED_PROMPT_SCORE"`
	ExpireBatchSize       int      `json:"expire_batch_size" env:"MEMOIR_EXPIRE_BATCH_SIZE"`
	ExpireSchedule        string   `json:"expire_schedule" env:"MEMOIR_EXPIRE_SCHEDULE"` // cron spec; empty disables the sweep
}

// LLMConfig holds the optional OpenAI-compatible prompt writer settings.
// An empty URL disables the writer and generation uses templates only.
type LLMConfig struct {
	URL         string        `json:"url" env:"MEMOIR_LLM_URL"`
	APIKey      string        `json:"api_key" env:"MEMOIR_LLM_API_KEY"`
	Model       string        `json:"model" env:"MEMOIR_LLM_MODEL"`
	MaxTokens   int           `json:"max_tokens" env:"MEMOIR_LLM_MAX_TOKENS"`
	Temperature float64       `json:"temperature" env:"MEMOIR_LLM_TEMPERATURE"`
	Timeout     time.Duration `json:"timeout" env:"MEMOIR_LLM_TIMEOUT"`
}

// LogConfig selects the zap encoder and redaction behavior
type LogConfig struct {
	Mode      string `json:"mode" env:"MEMOIR_LOG_MODE"`
	Level     string `json:"level" env:"MEMOIR_LOG_LEVEL"`
	Redaction bool   `json:"redaction" env:"LOG_REDACTION_ENABLED"`
	HashSalt  string `json:"hash_salt" env:"LOG_HASH_SALT"`
}

// DefaultForbiddenWords are generic nouns that make a prompt too vague to answer
var DefaultForbiddenWords = []string{
	"girl", "boy", "man", "woman", "lady", "guy", "person", "people",
	"house", "room", "chair", "table", "thing", "place", "building", "car",
	"door", "child", "kid", "object", "item", "someone", "somebody", "something",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"}, // Default development origin
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Store:       StorePostgres,
			PostgresURL: "",
		},
		Auth: AuthConfig{
			Issuer:      "memoir",
			DevTokenTTL: 24 * time.Hour,
		},
		Prompts: PromptsConfig{
			RetirementThreshold:   3,
			MaxWords:              30,
			ForbiddenWords:        append([]string(nil), DefaultForbiddenWords...),
			MaxGenerationAttempts: 5,
			GeneratedPromptScore:  50,
			ExpireBatchSize:       500,
			ExpireSchedule:        "@every 1h",
		},
		LLM: LLMConfig{
			URL:         "",
			Model:       "Qwen/Qwen3-8B-AWQ",
			MaxTokens:   128,
			Temperature: 0.7,
			Timeout:     10 * time.Second,
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// Load loads configuration from the config file, a .env file and the environment,
// in that order of increasing precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional; values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Prompts.ForbiddenWords = normalizeWords(cfg.Prompts.ForbiddenWords)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsLLMConfigured returns true if the language model prompt writer should be used
func (c *Config) IsLLMConfigured() bool {
	return c.LLM.URL != ""
}

// UsesMemoryStore reports whether prompts live in process memory
func (c *Config) UsesMemoryStore() bool {
	return c.Database.Store == StoreMemory
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server shutdown timeout must be positive")
	}

	// Database validation
	switch c.Database.Store {
	case StorePostgres:
		if c.Database.PostgresURL == "" {
			errs = append(errs, "PostgreSQL URL is required for the postgres store")
		} else if !isValidURL(c.Database.PostgresURL) {
			errs = append(errs, "PostgreSQL URL must be a valid URL")
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("database store must be %q or %q", StorePostgres, StoreMemory))
	}

	// Auth validation
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "JWT secret is required")
	} else if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, "JWT secret must be at least 16 characters")
	}
	if c.Auth.DevTokenTTL <= 0 {
		errs = append(errs, "dev token TTL must be positive")
	}

	// Prompt engine validation
	if c.Prompts.RetirementThreshold < 1 {
		errs = append(errs, "retirement threshold must be at least 1")
	}
	if c.Prompts.MaxWords < 1 {
		errs = append(errs, "max words must be at least 1")
	}
	if c.Prompts.MaxGenerationAttempts < 1 {
		errs = append(errs, "max generation attempts must be at least 1")
	}
	if c.Prompts.ExpireBatchSize < 1 {
		errs = append(errs, "expire batch size must be at least 1")
	}
	if spec := c.Prompts.ExpireSchedule; spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Sprintf("expire schedule %q is not a valid cron spec", spec))
		}
	}

	// LLM validation (optional but validate if set)
	if c.LLM.URL != "" {
		if !isValidURL(c.LLM.URL) {
			errs = append(errs, "LLM URL must be a valid URL")
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			errs = append(errs, "LLM temperature must be between 0 and 2")
		}
		if c.LLM.MaxTokens < 1 {
			errs = append(errs, "LLM max_tokens must be positive")
		}
	}

	switch strings.ToLower(c.Log.Mode) {
	case "development", "dev", "production", "prod":
	default:
		errs = append(errs, "log mode must be development or production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// normalizeWords lowercases, trims and drops empty entries
func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("MEMOIR_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	// Check ~/.config/memoir/config.json first
	configPath := filepath.Join(homeDir, ".config", "memoir", "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return filepath.Join(homeDir, ".memoir", "config.json")
}
