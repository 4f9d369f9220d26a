package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is used when neither the caller nor the environment sets one.
	DefaultBaseURL = "https://api.docflow.dev"

	// DefaultTimeout covers one full request/response cycle, stream body included.
	DefaultTimeout = 10 * time.Minute

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "docflow-go"
)

// Environment variables read by FromEnv and LoadFile.
const (
	EnvAPIKey          = "DOCFLOW_API_KEY"
	EnvBaseURL         = "DOCFLOW_BASE_URL"
	EnvTimeout         = "DOCFLOW_TIMEOUT"
	EnvMaxRetries      = "DOCFLOW_MAX_RETRIES"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvXAIAPIKey       = "XAI_API_KEY"
)

// Config holds everything the client needs at construction time. The client
// keeps its own copy, so mutating a Config after client.New has no effect.
//
// Start from Default, FromEnv or LoadFile rather than a struct literal. Zero
// numeric fields are taken literally: Config{APIKey: k} has MaxRetries 0 and
// makes a single attempt per call, and Timeout 0 applies no deadline.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retrying; Default sets DefaultMaxRetries.
	MaxRetries int    `yaml:"max_retries"`
	UserAgent  string `yaml:"user_agent"`

	// Optional provider keys forwarded as OpenAI-Api-Key, Anthropic-Api-Key,
	// Gemini-Api-Key and XAI-Api-Key headers.
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	XAIAPIKey       string `yaml:"xai_api_key"`
}

// Default returns a Config with every default applied and no credentials.
func Default() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		UserAgent:  DefaultUserAgent,
	}
}

// FromEnv builds a Config from the process environment on top of Default.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win over the file.
func FromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Normalize()
	return cfg, nil
}

// LoadFile reads a YAML config file, applies defaults for missing fields and
// then environment overrides.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	// max_retries: 0 in the file must stay 0, so decode over the defaults
	// instead of filling zero values afterwards.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv(EnvAPIKey); val != "" {
		cfg.APIKey = val
	}
	if val := os.Getenv(EnvBaseURL); val != "" {
		cfg.BaseURL = val
	}
	if val := os.Getenv(EnvTimeout); val != "" {
		timeout, err := parseTimeout(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTimeout, val, err)
		}
		cfg.Timeout = timeout
	}
	if val := os.Getenv(EnvMaxRetries); val != "" {
		retries, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxRetries, val, err)
		}
		cfg.MaxRetries = retries
	}
	if val := os.Getenv(EnvOpenAIAPIKey); val != "" {
		cfg.OpenAIAPIKey = val
	}
	if val := os.Getenv(EnvAnthropicAPIKey); val != "" {
		cfg.AnthropicAPIKey = val
	}
	if val := os.Getenv(EnvGeminiAPIKey); val != "" {
		cfg.GeminiAPIKey = val
	}
	if val := os.Getenv(EnvXAIAPIKey); val != "" {
		cfg.XAIAPIKey = val
	}
	return nil
}

// parseTimeout accepts Go durations ("90s") and bare seconds ("90").
func parseTimeout(val string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(val)
}

// Normalize trims whitespace and trailing slashes from the base URL and fills
// an empty base URL or user agent with the defaults.
func (c *Config) Normalize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Validate reports the first problem that would prevent a client from working.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required (set %s or pass it explicitly)", EnvAPIKey)
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid base url %q: scheme must be http or https", c.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid base url %q: missing host", c.BaseURL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", c.Timeout)
	}
	return nil
}

// ProviderHeaders returns the per-provider API key headers for the keys that
// are set.
func (c Config) ProviderHeaders() map[string]string {
	headers := map[string]string{}
	if c.OpenAIAPIKey != "" {
		headers["OpenAI-Api-Key"] = c.OpenAIAPIKey
	}
	if c.AnthropicAPIKey != "" {
		headers["Anthropic-Api-Key"] = c.AnthropicAPIKey
	}
	if c.GeminiAPIKey != "" {
		headers["Gemini-Api-Key"] = c.GeminiAPIKey
	}
	if c.XAIAPIKey != "" {
		headers["XAI-Api-Key"] = c.XAIAPIKey
	}
	return headers
}
