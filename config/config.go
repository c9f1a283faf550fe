// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
	Model  ModelConfig  `yaml:"model"`
	Schema SchemaConfig `yaml:"schema"`
	Export ExportConfig `yaml:"export"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ModelConfig struct {
	Path string `yaml:"path"`
}

// SchemaConfig describes how model features are classified and filled.
// Nil markers, defaults or descriptions fall back to built-in values; an
// explicitly empty list or map disables them.
type SchemaConfig struct {
	CategoricalMarkers []string          `yaml:"categorical_markers"`
	Categorical        []string          `yaml:"categorical"`
	Numeric            []string          `yaml:"numeric"`
	Defaults           map[string]string `yaml:"defaults"`
	Descriptions       map[string]string `yaml:"descriptions"`
	Strict             bool              `yaml:"strict"`
}

type ExportConfig struct {
	FileName  string `yaml:"file_name"`
	Echo      string `yaml:"echo"`
	CacheSize int    `yaml:"cache_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and decodes path, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var c Config
	if err := yaml.NewDecoder(file).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8080
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if c.Http.AllowedOrigins == nil {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Http.MaxUploadBytes == 0 {
		c.Http.MaxUploadBytes = 32 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Model.Path == "" {
		c.Model.Path = "./models/company_status.json"
	}
	if c.Schema.Descriptions == nil {
		c.Schema.Descriptions = DefaultDescriptions()
	}
	if c.Export.FileName == "" {
		c.Export.FileName = "predictions.csv"
	}
	if c.Export.Echo == "" {
		c.Export.Echo = "original"
	}
	if c.Export.CacheSize == 0 {
		c.Export.CacheSize = 128
	}
}

// DefaultDescriptions returns help texts for the company status features.
func DefaultDescriptions() map[string]string {
	return map[string]string{
		"active_days":        "Total number of days the company has been active since founding.",
		"closed_year":        "The year the company closed operations (0 if still active).",
		"founded_at":         "Year the company was founded.",
		"category_code":      "Main industry or business category (e.g., software, biotech, web).",
		"relationships":      "Number of business relationships or partnerships associated with the company.",
		"country_code":       "Country code where the company is based (e.g., US, GB, IN).",
		"last_funding_at":    "Date (or year) when the company last received funding.",
		"milestones":         "Total number of milestones or major achievements reached by the company.",
		"funding_total_usd":  "Total funding amount received by the company (in USD).",
		"lat":                "Latitude coordinate of the company's primary office location.",
		"first_funding_at":   "Date (or year) when the company first received funding.",
		"first_milestone_at": "Date (or year) of the company's first recorded milestone.",
		"lng":                "Longitude coordinate of the company's primary office location.",
		"last_milestone_at":  "Date (or year) of the company's most recent milestone.",
		"funding_rounds":     "Total number of funding rounds participated in by the company.",
		"investment_rounds":  "Total number of investment rounds involving the company.",
	}
}
