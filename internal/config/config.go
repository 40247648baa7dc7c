// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Session   SessionConfig   `yaml:"session"`
	Vector    VectorConfig    `yaml:"vector"`
	Storage   StorageConfig   `yaml:"storage"`
	Data      DataConfig      `yaml:"data"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LLMConfig holds the OpenAI-compatible endpoint and per-purpose generation settings.
type LLMConfig struct {
	BaseURL            string           `yaml:"base_url"`
	APIKeyEnv          string           `yaml:"api_key_env"`
	EmbeddingModel     string           `yaml:"embedding_model"`
	EmbeddingCacheSize int              `yaml:"embedding_cache_size"`
	Chat               GenerationConfig `yaml:"chat"`
	Parse              GenerationConfig `yaml:"parse"`
	Condense           GenerationConfig `yaml:"condense"`
	MaxRetries         int              `yaml:"max_retries"`
	InitialBackoff     time.Duration    `yaml:"initial_backoff"`
	BackoffMultiplier  float64          `yaml:"backoff_multiplier"`
	Timeout            time.Duration    `yaml:"timeout"`
}

// APIKey returns the key from the configured environment variable.
func (c *LLMConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// GenerationConfig holds sampling settings for one kind of model call.
type GenerationConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	TopP        float64  `yaml:"top_p"`
}

// RetrievalConfig holds fan-out sizes, channel weights and score thresholds.
// A threshold of nil or <= 0 disables filtering for that corpus.
type RetrievalConfig struct {
	TopKProjects            int      `yaml:"top_k_projects"`
	TopKCaseStudies         int      `yaml:"top_k_case_studies"`
	ProjectTechWeight       float64  `yaml:"project_tech_weight"`
	ProjectServiceWeight    float64  `yaml:"project_service_weight"`
	ProjectScoreThreshold   *float64 `yaml:"project_score_threshold"`
	CaseStudyScoreThreshold *float64 `yaml:"case_study_score_threshold"`
}

// ProjectThreshold returns the effective project threshold, or nil when disabled.
func (r *RetrievalConfig) ProjectThreshold() *float64 {
	return effectiveThreshold(r.ProjectScoreThreshold)
}

// CaseStudyThreshold returns the effective case study threshold, or nil when disabled.
func (r *RetrievalConfig) CaseStudyThreshold() *float64 {
	return effectiveThreshold(r.CaseStudyScoreThreshold)
}

func effectiveThreshold(t *float64) *float64 {
	if t == nil || *t <= 0 {
		return nil
	}
	v := *t
	return &v
}

// WorkflowConfig holds conversation settings.
// An explicit max_attempts of 0 gives up on the first clarification.
type WorkflowConfig struct {
	MaxAttempts *int `yaml:"max_attempts"`
}

// Attempts returns the configured clarification cap, or 0 when unset.
func (w *WorkflowConfig) Attempts() int {
	if w.MaxAttempts == nil {
		return 0
	}
	return *w.MaxAttempts
}

// SessionConfig selects where suspended conversations are kept.
type SessionConfig struct {
	Type         string        `yaml:"type"`
	TTL          time.Duration `yaml:"ttl"`
	RedisURL     string        `yaml:"redis_url"`
	DatabasePath string        `yaml:"database_path"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Type       string `yaml:"type"`
	DSN        string `yaml:"dsn"`
	Dimensions int    `yaml:"dimensions"`
}

// StorageConfig holds the path of the record catalog.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// DataConfig locates the corpus files used by load and the watcher.
type DataConfig struct {
	Directory       string `yaml:"directory"`
	ProjectsFile    string `yaml:"projects_file"`
	CaseStudiesFile string `yaml:"case_studies_file"`
	Watch           bool   `yaml:"watch"`
}

// ProjectsPath returns the full path of the projects corpus.
func (d *DataConfig) ProjectsPath() string {
	return filepath.Join(d.Directory, d.ProjectsFile)
}

// CaseStudiesPath returns the full path of the case studies corpus.
func (d *DataConfig) CaseStudiesPath() string {
	return filepath.Join(d.Directory, d.CaseStudiesFile)
}

// LoggingConfig holds the optional rotating log file.
type LoggingConfig struct {
	File string `yaml:"file"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Load reads and parses the config file at path, loads a sibling .env file if present,
// applies environment overrides and defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	// Existing environment wins over .env values.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	applyEnv(&cfg)

	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Session.DatabasePath = expandPath(cfg.Session.DatabasePath, configDir)
	cfg.Data.Directory = expandPath(cfg.Data.Directory, configDir)
	if cfg.Logging.File != "" {
		cfg.Logging.File = expandPath(cfg.Logging.File, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	sum := c.Retrieval.ProjectTechWeight + c.Retrieval.ProjectServiceWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("retrieval weights must sum to 1.0, got %g", sum)
	}
	if c.Retrieval.TopKProjects <= 0 || c.Retrieval.TopKCaseStudies <= 0 {
		return fmt.Errorf("retrieval top_k values must be positive")
	}
	if c.Workflow.Attempts() < 0 {
		return fmt.Errorf("workflow max_attempts must not be negative")
	}
	switch c.Session.Type {
	case "memory", "sqlite":
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session type redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown session type: %s (supported: memory, redis, sqlite)", c.Session.Type)
	}
	switch c.Vector.Type {
	case "memory":
	case "pgvector":
		if c.Vector.DSN == "" {
			return fmt.Errorf("vector type pgvector requires dsn")
		}
	default:
		return fmt.Errorf("unknown vector type: %s (supported: memory, pgvector)", c.Vector.Type)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KOTAE_REDIS_URL"); v != "" {
		cfg.Session.RedisURL = v
	}
	if v := os.Getenv("KOTAE_DATABASE_URL"); v != "" {
		cfg.Vector.DSN = v
	}
	if v := os.Getenv("KOTAE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
