// Package config provides configuration loading, validation, and management for pilot.
//
// A single global Config is kept in memory behind a mutex. GetConfig returns it
// BY VALUE; all changes go through the Update* functions, which validate the new
// section and persist the whole file to <project>/.pilot/config.json.
//
// USAGE PATTERNS:
//
//	// Load config from file (once at startup)
//	err := config.LoadConfig(projectDir)
//
//	// Access config (always by value)
//	cfg, err := config.GetConfig()
//
//	// Change the validation command atomically with validation
//	err := config.UpdateValidation(&config.ValidationConfig{Command: "go test ./..."})
//
// Runtime state (last applied diff, sentinel records, session snapshots) never
// lives here.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pilot/pkg/logx"
)

// ErrNotInitialized is returned by accessors called before LoadConfig.
var ErrNotInitialized = errors.New("config not initialized - call LoadConfig first")

const (
	// SchemaVersion must be incremented on every incompatible change to Config.
	SchemaVersion = "1.0"

	// ProjectConfigDir holds every pilot file inside a project.
	ProjectConfigDir = ".pilot"

	// ProjectConfigFilename is the config file name inside ProjectConfigDir.
	ProjectConfigFilename = "config.json"
)

// Defaults.
const (
	DefaultModel               = "claude-sonnet-4-5"
	DefaultMaxTokens           = 8192
	DefaultTemperature         = 0.2
	DefaultValidationTimeout   = 10 * time.Minute
	DefaultMaxRollbackAttempts = 2
	DefaultHistoryMaxMessages  = 200
	DefaultHistoryMaxTokens    = 120000
)

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config     *Config
	projectDir string // Immutable after LoadConfig
	logger     *logx.Logger
	mu         sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// LogInfo logs an info message using the config logger.
func LogInfo(format string, args ...any) {
	getLogger().Info(format, args...)
}

// Config is the complete project configuration.
type Config struct {
	SchemaVersion string            `json:"schema_version"`
	Agent         *AgentConfig      `json:"agent"`
	Validation    *ValidationConfig `json:"validation"`
	Build         *BuildConfig      `json:"build"`
	SelfUpdate    *SelfUpdateConfig `json:"self_update"`
	History       *HistoryConfig    `json:"history"`
	Session       *SessionConfig    `json:"session"`
	Metrics       *MetricsConfig    `json:"metrics,omitempty"`
}

// AgentConfig selects the model behind the agent.
type AgentConfig struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// ValidationConfig is the command used to accept or reject a change.
type ValidationConfig struct {
	Command        string `json:"command"`                   // Run via sh -c in the project directory; blank disables validation
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // Zero means DefaultValidationTimeout
}

// BuildConfig holds the commands the rollback protocol rebuilds with.
type BuildConfig struct {
	Backend string `json:"backend"` // go, python, node, make or null; blank: detected from the project
	Compile string `json:"compile"` // Blank: taken from the backend (go.mod, Makefile, ...)
	Package string `json:"package"` // Blank: taken from the backend; for Go, rebuilds the running binary
}

// SelfUpdateConfig controls the self-modification path.
type SelfUpdateConfig struct {
	Enabled     bool `json:"enabled"`      // Registers the commit_self_update tool
	MaxAttempts int  `json:"max_attempts"` // Rollback attempts before a human must step in
}

// HistoryConfig bounds the conversation history.
type HistoryConfig struct {
	MaxMessages int `json:"max_messages"`
	MaxTokens   int `json:"max_tokens"` // Zero disables the token budget
}

// SessionConfig controls snapshot restore on launch.
type SessionConfig struct {
	RestorePrompt bool `json:"restore_prompt"`
}

// MetricsConfig optionally exposes Prometheus metrics over HTTP.
type MetricsConfig struct {
	ListenAddr string `json:"listen_addr,omitempty"` // e.g. "127.0.0.1:9464"; blank disables the endpoint
}

// GetConfig returns the current global config BY VALUE (copy, not reference).
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, ErrNotInitialized
	}
	return *config, nil
}

// SetConfigForTesting sets the global config for testing purposes.
// Pass nil to reset.
func SetConfigForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
	if cfg == nil {
		projectDir = ""
	}
}

// GetProjectDir returns the project directory set by LoadConfig.
func GetProjectDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return projectDir
}

// GetStateDir returns <project>/.pilot.
func GetStateDir() (string, error) {
	mu.RLock()
	defer mu.RUnlock()
	if projectDir == "" {
		return "", ErrNotInitialized
	}
	return filepath.Join(projectDir, ProjectConfigDir), nil
}

// LoadConfig loads <projectDir>/.pilot/config.json into the global singleton.
//
// Behavior:
// - Missing file: creates new config with defaults and saves it
// - Existing file: loads and validates, applying defaults for missing fields
// - Unparseable file: returns error to avoid overwriting user changes
func LoadConfig(inputProjectDir string) error {
	mu.Lock()
	defer mu.Unlock()

	projectDir = inputProjectDir
	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		getLogger().Info("📝 Config file not found, creating new config at %s", configPath)
		config = createDefaultConfig()
		if err := validateConfig(config); err != nil {
			return fmt.Errorf("default config validation failed: %w", err)
		}
		if err := saveConfigLocked(); err != nil {
			return fmt.Errorf("failed to save initial config: %w", err)
		}
		return nil
	}

	getLogger().Info("📝 Loading config from %s", configPath)
	loaded, err := loadConfigFromFile(configPath)
	if err != nil {
		return fmt.Errorf("fatal: config file exists but cannot be parsed (to avoid overwriting your changes): %w", err)
	}

	applyDefaults(loaded)
	if err := validateConfig(loaded); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config = loaded

	// Save back so older files pick up new defaults.
	if err := saveConfigLocked(); err != nil {
		return fmt.Errorf("failed to save config with applied defaults: %w", err)
	}

	getLogger().Info("✅ Config loaded and validated successfully")
	return nil
}

// UpdateAgent updates the agent section and persists to disk.
func UpdateAgent(agent *AgentConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return ErrNotInitialized
	}
	if err := validateAgent(agent); err != nil {
		return err
	}
	config.Agent = agent
	return saveConfigLocked()
}

// UpdateValidation updates the validation command and persists to disk.
func UpdateValidation(validation *ValidationConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return ErrNotInitialized
	}
	if validation.TimeoutSeconds < 0 {
		return fmt.Errorf("validation.timeout_seconds must not be negative")
	}
	validation.Command = strings.TrimSpace(validation.Command)
	config.Validation = validation
	return saveConfigLocked()
}

// UpdateBuild updates the build commands and persists to disk.
func UpdateBuild(build *BuildConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return ErrNotInitialized
	}
	if strings.TrimSpace(build.Compile) == "" || strings.TrimSpace(build.Package) == "" {
		return fmt.Errorf("build compile and package commands are required")
	}
	config.Build = build
	return saveConfigLocked()
}

// UpdateSelfUpdate updates the self-update section and persists to disk.
func UpdateSelfUpdate(selfUpdate *SelfUpdateConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return ErrNotInitialized
	}
	if selfUpdate.MaxAttempts < 1 {
		return fmt.Errorf("self_update.max_attempts must be at least 1")
	}
	config.SelfUpdate = selfUpdate
	return saveConfigLocked()
}

// GetValidationCommand returns the configured validation command, or "" when
// none is configured or config is not loaded.
func GetValidationCommand() string {
	cfg, err := GetConfig()
	if err != nil || cfg.Validation == nil {
		return ""
	}
	return strings.TrimSpace(cfg.Validation.Command)
}

// GetValidationTimeout returns the configured validation timeout or the default.
func GetValidationTimeout() time.Duration {
	cfg, err := GetConfig()
	if err != nil || cfg.Validation == nil || cfg.Validation.TimeoutSeconds == 0 {
		return DefaultValidationTimeout
	}
	return time.Duration(cfg.Validation.TimeoutSeconds) * time.Second
}

// GetMaxRollbackAttempts returns the configured rollback attempt limit or the default.
func GetMaxRollbackAttempts() int {
	cfg, err := GetConfig()
	if err != nil || cfg.SelfUpdate == nil || cfg.SelfUpdate.MaxAttempts < 1 {
		return DefaultMaxRollbackAttempts
	}
	return cfg.SelfUpdate.MaxAttempts
}

// loadConfigFromFile loads a config file and parses JSON.
func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON %s: %w", configPath, err)
	}
	return &cfg, nil
}

// createDefaultConfig creates a new config with sensible defaults.
func createDefaultConfig() *Config {
	cfg := &Config{SchemaVersion: SchemaVersion}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills every missing section or field.
func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
	if cfg.Agent == nil {
		cfg.Agent = &AgentConfig{}
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModel
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Agent.Temperature == 0 {
		cfg.Agent.Temperature = DefaultTemperature
	}
	if cfg.Validation == nil {
		cfg.Validation = &ValidationConfig{}
	}
	if cfg.Build == nil {
		cfg.Build = &BuildConfig{}
	}
	if cfg.SelfUpdate == nil {
		cfg.SelfUpdate = &SelfUpdateConfig{}
	}
	if cfg.SelfUpdate.MaxAttempts == 0 {
		cfg.SelfUpdate.MaxAttempts = DefaultMaxRollbackAttempts
	}
	if cfg.History == nil {
		cfg.History = &HistoryConfig{MaxTokens: DefaultHistoryMaxTokens}
	}
	if cfg.History.MaxMessages == 0 {
		cfg.History.MaxMessages = DefaultHistoryMaxMessages
	}
	if cfg.Session == nil {
		cfg.Session = &SessionConfig{RestorePrompt: true}
	}
}

func validateAgent(agent *AgentConfig) error {
	if agent == nil {
		return fmt.Errorf("agent section is required")
	}
	if _, err := GetModelProvider(agent.Model); err != nil {
		return err
	}
	if agent.MaxTokens <= 0 {
		return fmt.Errorf("agent.max_tokens must be positive")
	}
	if agent.Temperature < 0 || agent.Temperature > 2 {
		return fmt.Errorf("agent.temperature must be between 0 and 2")
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if err := validateAgent(cfg.Agent); err != nil {
		return err
	}
	if cfg.SelfUpdate.MaxAttempts < 1 {
		return fmt.Errorf("self_update.max_attempts must be at least 1")
	}
	if cfg.History.MaxMessages < 2 {
		return fmt.Errorf("history.max_messages must be at least 2")
	}
	if cfg.History.MaxTokens < 0 {
		return fmt.Errorf("history.max_tokens must not be negative")
	}
	if cfg.Validation.TimeoutSeconds < 0 {
		return fmt.Errorf("validation.timeout_seconds must not be negative")
	}
	return nil
}

// saveConfigLocked writes the config to disk. Must be called with mu held.
func saveConfigLocked() error {
	if projectDir == "" {
		return ErrNotInitialized
	}

	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
