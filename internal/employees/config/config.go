// Package config loads the service configuration from a YAML file, an
// optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when none is given.
var DefaultPath = filepath.Join("internal", "employees", "config", "config.yaml")

// Config struct for YAML configuration. Every key can be overridden by an
// environment variable of the same name.
type Config struct {
	GRPCPort              int           `yaml:"GRPC_PORT" env:"GRPC_PORT"`
	HTTPPort              int           `yaml:"HTTP_PORT" env:"HTTP_PORT"`
	APIBaseURL            string        `yaml:"API_BASE_URL" env:"API_BASE_URL"`
	APITimeout            time.Duration `yaml:"API_TIMEOUT" env:"API_TIMEOUT"`
	APIInsecureSkipVerify bool          `yaml:"API_INSECURE_SKIP_VERIFY" env:"API_INSECURE_SKIP_VERIFY"`
	DeleteStyle           string        `yaml:"DELETE_STYLE" env:"DELETE_STYLE"`
	CollationLanguage     string        `yaml:"COLLATION_LANGUAGE" env:"COLLATION_LANGUAGE"`
	KafkaBrokers          []string      `yaml:"KAFKA_BROKERS" env:"KAFKA_BROKERS" envSeparator:","`
	Topic                 string        `yaml:"TOPIC" env:"TOPIC"`
	JournalDriver         string        `yaml:"JOURNAL_DRIVER" env:"JOURNAL_DRIVER"`
	JournalDSN            string        `yaml:"JOURNAL_DSN" env:"JOURNAL_DSN"`
	OTelEndpoint          string        `yaml:"OTEL_ENDPOINT" env:"OTEL_ENDPOINT"`
	LogLevel              string        `yaml:"LOG_LEVEL" env:"LOG_LEVEL"`
	CurrencyPrefix        string        `yaml:"CURRENCY_PREFIX" env:"CURRENCY_PREFIX"`
}

// Defaults returns the configuration used for keys missing from every source.
func Defaults() Config {
	return Config{
		GRPCPort:          50051,
		HTTPPort:          8080,
		APITimeout:        10 * time.Second,
		DeleteStyle:       "path",
		CollationLanguage: "en",
		Topic:             "employee-events",
		JournalDriver:     "sqlite",
		JournalDSN:        "journal.db",
		LogLevel:          "info",
	}
}

// Load reads path, then a .env file in the working directory when present,
// then the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		problems = append(problems, fmt.Sprintf("GRPC_PORT %d out of range", c.GRPCPort))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("HTTP_PORT %d out of range", c.HTTPPort))
	}
	if c.GRPCPort == c.HTTPPort {
		problems = append(problems, "GRPC_PORT and HTTP_PORT must differ")
	}
	if u, err := url.Parse(c.APIBaseURL); c.APIBaseURL == "" || err != nil || u.Host == "" {
		problems = append(problems, fmt.Sprintf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL))
	}
	if c.APITimeout < 0 {
		problems = append(problems, "API_TIMEOUT must not be negative")
	}
	switch c.DeleteStyle {
	case "path", "query":
	default:
		problems = append(problems, fmt.Sprintf("DELETE_STYLE %q must be path or query", c.DeleteStyle))
	}
	switch c.JournalDriver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("JOURNAL_DRIVER %q must be sqlite or postgres", c.JournalDriver))
	}
	if _, err := language.Parse(c.CollationLanguage); err != nil {
		problems = append(problems, fmt.Sprintf("COLLATION_LANGUAGE %q: %v", c.CollationLanguage, err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Language returns the collation language tag.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.CollationLanguage)
	if err != nil {
		return language.English
	}
	return tag
}
