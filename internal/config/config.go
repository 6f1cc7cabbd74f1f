package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	BackendGroq      = "groq"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendOllama    = "ollama"
)

const (
	NetworkTestnet    = "testnet"
	NetworkMainnet    = "mainnet"
	NetworkPreviewnet = "previewnet"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Ledger     LedgerConfig
	Completion CompletionConfig
	DBPath     string `env:"DB_PATH,default=chat.db"`
	LogDir     string `env:"LOG_DIR,default=logs"`
	Debug      bool   `env:"DEBUG,default=false"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port       int    `env:"PORT,default=3000"`
	CORSOrigin string `env:"CORS_ORIGIN,default=http://localhost:8080"`
}

// LedgerConfig holds the Hedera operator credentials and the target topic
type LedgerConfig struct {
	AccountID  string `env:"HEDERA_ACCOUNT_ID"`
	PrivateKey string `env:"HEDERA_PRIVATE_KEY"`
	TopicID    string `env:"HEDERA_TOPIC_ID"`
	Network    string `env:"HEDERA_NETWORK,default=testnet"`
}

// CompletionConfig selects the LLM backend
type CompletionConfig struct {
	Backend string        `env:"LLM_BACKEND,default=groq"`
	APIKey  string        `env:"GROQ_API_KEY"`
	Model   string        `env:"LLM_MODEL"`   // empty means the backend default
	BaseURL string        `env:"LLM_BASE_URL"` // empty means the backend default
	Timeout time.Duration `env:"LLM_TIMEOUT,default=60s"`
}

// Load reads an optional dotenv file and then the process environment.
// A missing dotenv file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Ledger.AccountID == "" || c.Ledger.PrivateKey == "" || c.Ledger.TopicID == "" {
		errs = append(errs, errors.New("HEDERA_ACCOUNT_ID, HEDERA_PRIVATE_KEY and HEDERA_TOPIC_ID must be set"))
	}
	switch c.Ledger.Network {
	case NetworkTestnet, NetworkMainnet, NetworkPreviewnet:
	default:
		errs = append(errs, fmt.Errorf("unknown hedera network: %q", c.Ledger.Network))
	}

	switch c.Completion.Backend {
	case BackendGroq, BackendOpenAI, BackendAnthropic:
		if c.Completion.APIKey == "" {
			errs = append(errs, fmt.Errorf("GROQ_API_KEY must be set for backend %s", c.Completion.Backend))
		}
	case BackendOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown backend: %s", c.Completion.Backend))
	}
	if c.Completion.Timeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT must be positive"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	if c.Server.CORSOrigin == "" {
		errs = append(errs, errors.New("CORS_ORIGIN must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}

	return errors.Join(errs...)
}
