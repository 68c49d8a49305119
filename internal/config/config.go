package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	AI       AIConfig       `yaml:"ai"`
	Search   SearchConfig   `yaml:"search"`
	Email    EmailConfig    `yaml:"email"`
	Harvest  HarvestConfig  `yaml:"harvest"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AIConfig configures the text-generation API.
type AIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	ExtractionModel string `yaml:"extraction_model"`
}

// SearchConfig configures the SERP search API.
type SearchConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Engine       string `yaml:"engine"`
	Location     string `yaml:"location"`
	GoogleDomain string `yaml:"google_domain"`
	Language     string `yaml:"language"`
	Country      string `yaml:"country"`
}

// EmailConfig configures the outbound email API.
type EmailConfig struct {
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	FromName string `yaml:"from_name"`
}

// HarvestConfig configures page harvesting.
type HarvestConfig struct {
	Retries        int    `yaml:"retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// ParseTimeout returns the page-load timeout as time.Duration.
func (h HarvestConfig) ParseTimeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// PipelineConfig configures collection pipeline budgets.
type PipelineConfig struct {
	ChunkMaxChars   int `yaml:"chunk_max_chars"`
	ArticleMaxChars int `yaml:"article_max_chars"`
	MaxRelevantURLs int `yaml:"max_relevant_urls"`
	SeedURLCount    int `yaml:"seed_url_count"`
}

// ScheduleConfig configures the per-topic scheduler.
type ScheduleConfig struct {
	OverdueBufferSeconds int `yaml:"overdue_buffer_seconds"`
}

// ParseOverdueBuffer returns the clamp applied to overdue runs.
func (s ScheduleConfig) ParseOverdueBuffer() time.Duration {
	if s.OverdueBufferSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.OverdueBufferSeconds) * time.Second
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./neuraletter.db"},
		Server:   ServerConfig{Port: 8080},
		AI: AIConfig{
			BaseURL:         "https://api.mistral.ai",
			Model:           "mistral-large-2512",
			ExtractionModel: "mistral-large-2512",
		},
		Search: SearchConfig{
			BaseURL:      "https://serpapi.com",
			Engine:       "google",
			Location:     "Austin, Texas, United States",
			GoogleDomain: "google.com",
			Language:     "en",
			Country:      "us",
		},
		Email: EmailConfig{
			FromName: "Neuraletter",
		},
		Harvest: HarvestConfig{
			Retries:        3,
			TimeoutSeconds: 60,
			UserAgent:      "neuraletter/1.0",
		},
		Pipeline: PipelineConfig{
			ChunkMaxChars:   15000,
			ArticleMaxChars: 8000,
			MaxRelevantURLs: 10,
			SeedURLCount:    5,
		},
		Schedule: ScheduleConfig{OverdueBufferSeconds: 5},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEURALETTER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NEURALETTER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("MISTRAL_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("SERP_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("MAILDOOR_API_URL"); v != "" {
		cfg.Email.APIURL = v
	}
	if v := os.Getenv("MAILDOOR_API_KEY"); v != "" {
		cfg.Email.APIKey = v
	}
	if v := os.Getenv("MAILDOOR_FROM_NAME"); v != "" {
		cfg.Email.FromName = v
	}
}
