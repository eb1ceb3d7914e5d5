package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is used when neither -config nor CONFIG_PATH is given.
const ConfigPath = "config.yaml"

const (
	TriggerQStash = "qstash"
	TriggerQueue  = "queue"
)

type Config struct {
	HTTPAddr            string `yaml:"httpAddr"`
	LogLevel            string `yaml:"logLevel"`
	RedisAddr           string `yaml:"redisAddr"`
	RedisPassword       string `yaml:"redisPassword"`
	RedisDB             int    `yaml:"redisDB"`
	PostgresDSN         string `yaml:"postgresDSN"`
	CredentialProvider  string `yaml:"credentialProvider"`
	CallbackURL         string `yaml:"callbackURL"`
	CallbackSecret      string `yaml:"callbackSecret"`
	QStashURL           string `yaml:"qstashURL"`
	QStashToken         string `yaml:"qstashToken"`
	TriggerMode         string `yaml:"triggerMode"`
	TriggerRetries      int    `yaml:"triggerRetries"`
	Workers             int    `yaml:"workers"`
	FetchTimeoutSeconds int    `yaml:"fetchTimeoutSeconds"`
	JobTTLSeconds       int    `yaml:"jobTTLSeconds"`
	HistoryLimit        int    `yaml:"historyLimit"`
}

func defaults() Config {
	return Config{
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		CredentialProvider:  "google",
		QStashURL:           "https://qstash.upstash.io",
		TriggerMode:         TriggerQStash,
		TriggerRetries:      3,
		Workers:             4,
		FetchTimeoutSeconds: 30,
		JobTTLSeconds:       604800,
		HistoryLimit:        20,
	}
}

// Load reads .env (if any), then the YAML file, then environment overrides.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = ConfigPath
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	str := map[string]*string{
		"HTTP_ADDR":           &cfg.HTTPAddr,
		"LOG_LEVEL":           &cfg.LogLevel,
		"REDIS_ADDR":          &cfg.RedisAddr,
		"REDIS_PASSWORD":      &cfg.RedisPassword,
		"POSTGRES_DSN":        &cfg.PostgresDSN,
		"CREDENTIAL_PROVIDER": &cfg.CredentialProvider,
		"CALLBACK_URL":        &cfg.CallbackURL,
		"CALLBACK_SECRET":     &cfg.CallbackSecret,
		"QSTASH_URL":          &cfg.QStashURL,
		"QSTASH_TOKEN":        &cfg.QStashToken,
		"TRIGGER_MODE":        &cfg.TriggerMode,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	num := map[string]*int{
		"REDIS_DB":              &cfg.RedisDB,
		"TRIGGER_RETRIES":       &cfg.TriggerRetries,
		"WORKERS":               &cfg.Workers,
		"FETCH_TIMEOUT_SECONDS": &cfg.FetchTimeoutSeconds,
		"JOB_TTL_SECONDS":       &cfg.JobTTLSeconds,
		"HISTORY_LIMIT":         &cfg.HistoryLimit,
	}
	for key, dst := range num {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

// Validate checks what both processes need.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if strings.TrimSpace(c.CallbackURL) == "" {
		return errors.New("config: callbackURL is required (set in config.yaml or CALLBACK_URL)")
	}
	if c.TriggerMode != TriggerQStash && c.TriggerMode != TriggerQueue {
		return fmt.Errorf("config: triggerMode must be %q or %q, got %q", TriggerQStash, TriggerQueue, c.TriggerMode)
	}
	if c.TriggerRetries <= 0 {
		return errors.New("config: triggerRetries must be > 0")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be > 0")
	}
	if c.JobTTLSeconds <= 0 {
		return errors.New("config: jobTTLSeconds must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("config: historyLimit must be > 0")
	}
	return nil
}

// ValidateServer adds what only the API process needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return errors.New("config: postgresDSN is required (set in config.yaml or POSTGRES_DSN)")
	}
	if c.TriggerMode == TriggerQStash && strings.TrimSpace(c.QStashToken) == "" {
		return errors.New("config: qstashToken is required when triggerMode=qstash")
	}
	if strings.TrimSpace(c.CallbackSecret) == "" {
		return errors.New("config: callbackSecret is required (set in config.yaml or CALLBACK_SECRET)")
	}
	return nil
}

func (c Config) JobTTL() time.Duration {
	return time.Duration(c.JobTTLSeconds) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}
