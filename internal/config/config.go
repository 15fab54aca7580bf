// Package config loads tutor configuration.
// Priority, highest first: flags, TUTOR_* environment, ./.tutor/config.yaml,
// ~/.tutor/config.yaml, defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sbenjam1n/tutorloop/internal/aggregate"
	"github.com/sbenjam1n/tutorloop/internal/llm"
	"github.com/sbenjam1n/tutorloop/internal/store"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".tutor"

// Config holds all configuration for the tutor CLI.
type Config struct {
	// Learner is the learner ID commands act on.
	Learner string `yaml:"learner"`
	// ProjectRoot is the directory holding the learner's code.
	ProjectRoot string `yaml:"project_root"`
	// Catalog is a curriculum file; empty uses the built-in build path.
	Catalog string `yaml:"catalog"`
	// RedisURL enables stream publishing when set.
	RedisURL string `yaml:"redis_url"`
	// MetricsAddr is where `tutor metrics` listens.
	MetricsAddr string `yaml:"metrics_addr"`
	// PushGateway, when set, receives each command's metrics before it exits.
	PushGateway string `yaml:"pushgateway"`

	Store    store.Config   `yaml:"store"`
	LLM      llm.Config     `yaml:"llm"`
	Coaching CoachingConfig `yaml:"coaching"`
	Checks   ChecksConfig   `yaml:"checks"`
}

// CoachingConfig tunes the adaptive loop.
type CoachingConfig struct {
	// Cadence is how many reviews trigger a coaching cycle.
	Cadence int `yaml:"cadence"`
	// ExpiryCycles is how long an unreinforced directive stays active.
	ExpiryCycles int              `yaml:"expiry_cycles"`
	Window       aggregate.Window `yaml:"window"`
}

// ChecksConfig configures production-check commands.
type ChecksConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Shell   string        `yaml:"shell"`
}

// Default returns the default configuration.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		ProjectRoot: cwd,
		MetricsAddr: ":9464",
		Store: store.Config{
			Backend: "sqlite",
			Path:    filepath.Join(homeDir(), "tutor.db"),
		},
		LLM: llm.DefaultConfig(),
		Coaching: CoachingConfig{
			Cadence:      3,
			ExpiryCycles: 6,
			Window:       aggregate.DefaultWindow(),
		},
		Checks: ChecksConfig{
			Timeout: 5 * time.Minute,
			Shell:   "sh",
		},
	}
}

// Load reads configuration with proper precedence. overrides carries flag values;
// its zero fields are ignored.
func Load(overrides *Config) (*Config, error) {
	cfg := Default()

	for _, path := range []string{homeConfigPath(), projectConfigPath()} {
		fileCfg, err := loadFromPath(path)
		if err != nil {
			return nil, err
		}
		if fileCfg != nil {
			merge(cfg, fileCfg)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if overrides != nil {
		merge(cfg, overrides)
	}
	return cfg, nil
}

func homeDir() string {
	if v := os.Getenv("TUTOR_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

func homeConfigPath() string {
	return filepath.Join(homeDir(), "config.yaml")
}

func projectConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("TUTOR_CONFIG")); v != "" {
		return v
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, DirName, "config.yaml")
}

// loadFromPath returns nil, nil when the file does not exist.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Learner = getEnv("TUTOR_LEARNER", cfg.Learner)
	cfg.ProjectRoot = getEnv("TUTOR_PROJECT_ROOT", cfg.ProjectRoot)
	cfg.Catalog = getEnv("TUTOR_CATALOG", cfg.Catalog)
	cfg.RedisURL = getEnv("TUTOR_REDIS_URL", cfg.RedisURL)
	cfg.MetricsAddr = getEnv("TUTOR_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PushGateway = getEnv("TUTOR_PUSHGATEWAY", cfg.PushGateway)

	cfg.Store.Backend = getEnv("TUTOR_STORE", cfg.Store.Backend)
	cfg.Store.Path = getEnv("TUTOR_STORE_PATH", cfg.Store.Path)
	cfg.Store.DatabaseURL = getEnv("TUTOR_DATABASE_URL", cfg.Store.DatabaseURL)

	cfg.LLM.Backend = getEnv("TUTOR_LLM_BACKEND", cfg.LLM.Backend)
	cfg.LLM.Model = getEnv("TUTOR_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.URL = getEnv("TUTOR_LLM_URL", cfg.LLM.URL)

	if v := os.Getenv("TUTOR_COACH_CADENCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("TUTOR_COACH_CADENCE: want a positive integer, got %q", v)
		}
		cfg.Coaching.Cadence = n
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// merge copies the non-zero fields of src over dst.
func merge(dst, src *Config) {
	mergeStr(&dst.Learner, src.Learner)
	mergeStr(&dst.ProjectRoot, src.ProjectRoot)
	mergeStr(&dst.Catalog, src.Catalog)
	mergeStr(&dst.RedisURL, src.RedisURL)
	mergeStr(&dst.MetricsAddr, src.MetricsAddr)
	mergeStr(&dst.PushGateway, src.PushGateway)

	mergeStr(&dst.Store.Backend, src.Store.Backend)
	mergeStr(&dst.Store.Path, src.Store.Path)
	mergeStr(&dst.Store.DatabaseURL, src.Store.DatabaseURL)

	mergeStr(&dst.LLM.Backend, src.LLM.Backend)
	mergeStr(&dst.LLM.Model, src.LLM.Model)
	mergeStr(&dst.LLM.URL, src.LLM.URL)
	mergeStr(&dst.LLM.APIKey, src.LLM.APIKey)
	mergeInt(&dst.LLM.MaxTokens, src.LLM.MaxTokens)
	if src.LLM.Timeout != 0 {
		dst.LLM.Timeout = src.LLM.Timeout
	}

	mergeInt(&dst.Coaching.Cadence, src.Coaching.Cadence)
	mergeInt(&dst.Coaching.ExpiryCycles, src.Coaching.ExpiryCycles)
	w := src.Coaching.Window
	mergeInt(&dst.Coaching.Window.Recent, w.Recent)
	mergeInt(&dst.Coaching.Window.TopK, w.TopK)
	if w.Expected != 0 {
		dst.Coaching.Window.Expected = w.Expected
	}
	if w.FailWeight != 0 {
		dst.Coaching.Window.FailWeight = w.FailWeight
	}
	if w.OvertimeWeight != 0 {
		dst.Coaching.Window.OvertimeWeight = w.OvertimeWeight
	}

	if src.Checks.Timeout != 0 {
		dst.Checks.Timeout = src.Checks.Timeout
	}
	mergeStr(&dst.Checks.Shell, src.Checks.Shell)
}

// ProjectDir returns the per-project state directory.
func (c *Config) ProjectDir() string {
	return filepath.Join(c.ProjectRoot, DirName)
}
