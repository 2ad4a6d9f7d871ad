package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

type Config struct {
	APIPort  string
	LogLevel string

	SecretsFile   string
	APIAuthURL    string
	APIUsername   string
	APIPassword   string
	APIProcessURL string

	UpstreamTimeoutSeconds   int
	UpstreamProxyURL         string
	UpstreamRetryMaxAttempts int
	UpstreamBreakerEnabled   bool

	MaxUploadMB        int
	SessionIdleMinutes int
	DefaultTestMode    bool

	APIRateLimitRPS         float64
	APIRateLimitBurst       int
	APIMaxInFlight          int
	APIBackpressureWaitMS   int
	HistoryListDefaultLimit int

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	ExportPath        string
	WorkerMetricsPort string
}

type secretsFile struct {
	API struct {
		AuthURL    string `yaml:"auth_url"`
		Username   string `yaml:"username"`
		Password   string `yaml:"password"`
		ProcessURL string `yaml:"process_url"`
	} `yaml:"api"`
}

// Load reads .env (if present), then the secrets file, then the environment.
// Environment variables win over secrets file values.
func Load() (Config, error) {
	if err := loadDotEnv(mustEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		SecretsFile: mustEnv("SECRETS_FILE", "./secrets.yaml"),

		UpstreamTimeoutSeconds:   mustEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60),
		UpstreamProxyURL:         mustEnv("UPSTREAM_PROXY_URL", ""),
		UpstreamRetryMaxAttempts: mustEnvInt("UPSTREAM_RETRY_MAX_ATTEMPTS", 1),
		UpstreamBreakerEnabled:   mustEnvBool("UPSTREAM_BREAKER_ENABLED", true),

		MaxUploadMB:        mustEnvInt("MAX_UPLOAD_MB", 10),
		SessionIdleMinutes: mustEnvInt("SESSION_IDLE_MINUTES", 60),
		DefaultTestMode:    mustEnvBool("DEFAULT_TEST_MODE", false),

		APIRateLimitRPS:         mustEnvFloat("API_RATE_LIMIT_RPS", 5),
		APIRateLimitBurst:       mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:          mustEnvInt("API_MAX_IN_FLIGHT", 16),
		APIBackpressureWaitMS:   mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250),
		HistoryListDefaultLimit: mustEnvInt("HISTORY_LIST_LIMIT", 20),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "documents.processed"),

		ExportPath:        mustEnv("EXPORT_PATH", "./data/exports"),
		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}

	secrets, err := readSecrets(cfg.SecretsFile)
	if err != nil {
		return Config{}, err
	}
	cfg.APIAuthURL = mustEnv("API_AUTH_URL", secrets.API.AuthURL)
	cfg.APIUsername = mustEnv("API_USERNAME", secrets.API.Username)
	cfg.APIPassword = mustEnv("API_PASSWORD", secrets.API.Password)
	cfg.APIProcessURL = mustEnv("API_PROCESS_URL", secrets.API.ProcessURL)
	return cfg, nil
}

func (c Config) Credentials() domain.Credentials {
	return domain.Credentials{
		AuthURL:    strings.TrimSpace(c.APIAuthURL),
		ProcessURL: strings.TrimSpace(c.APIProcessURL),
		Username:   strings.TrimSpace(c.APIUsername),
		Password:   c.APIPassword,
	}
}

func (c Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// readSecrets returns an empty document when the file does not exist.
func readSecrets(path string) (secretsFile, error) {
	var out secretsFile
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return out, domain.WrapError(domain.ErrConfig, "read secrets file", err)
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return out, domain.WrapError(domain.ErrConfig, "parse secrets file", err)
	}
	return out, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
