package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Client contains settings for talking to a tableread server.
type Client struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ReadRetries    int    `toml:"read_retries"`
}

// Sync contains knobs for the optimistic commit pipeline.
type Sync struct {
	QueueLimit           int `toml:"queue_limit"`
	CommitTimeoutSeconds int `toml:"commit_timeout_seconds"`
}

// Prompts contains configuration for casting prompt generation.
type Prompts struct {
	NotesTemplatePath    string `toml:"notes_template_path"`
	VoicesTemplatePath   string `toml:"voices_template_path"`
	IncludePrivacyNotice bool   `toml:"include_privacy_notice"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for tableread.
//
// Configuration sections by subsystem:
//   - Paths: data/library/log directories and the API bind address
//   - Client: server base URL and retry budget for CLI commands
//   - Sync: pending-mutation queue limit and commit timeout
//   - Prompts: casting prompt templates and privacy notice toggle
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Client  Client  `toml:"client"`
	Sync    Sync    `toml:"sync"`
	Prompts Prompts `toml:"prompts"`
	Logging Logging `toml:"logging"`
}

// envOverrides captures TABLEREAD_* environment variables that take
// precedence over file values. Only non-empty values are applied.
type envOverrides struct {
	DataDir    string `env:"TABLEREAD_DATA_DIR"`
	LibraryDir string `env:"TABLEREAD_LIBRARY_DIR"`
	LogDir     string `env:"TABLEREAD_LOG_DIR"`
	APIBind    string `env:"TABLEREAD_API_BIND"`
	APIToken   string `env:"TABLEREAD_API_TOKEN"`
	BaseURL    string `env:"TABLEREAD_BASE_URL"`
	LogLevel   string `env:"TABLEREAD_LOG_LEVEL"`
	LogFormat  string `env:"TABLEREAD_LOG_FORMAT"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tableread/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}
	apply := func(dst *string, value string) {
		if strings.TrimSpace(value) != "" {
			*dst = value
		}
	}
	apply(&c.Paths.DataDir, overrides.DataDir)
	apply(&c.Paths.LibraryDir, overrides.LibraryDir)
	apply(&c.Paths.LogDir, overrides.LogDir)
	apply(&c.Paths.APIBind, overrides.APIBind)
	apply(&c.Paths.APIToken, overrides.APIToken)
	apply(&c.Client.BaseURL, overrides.BaseURL)
	apply(&c.Logging.Level, overrides.LogLevel)
	apply(&c.Logging.Format, overrides.LogFormat)
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tableread.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
// LibraryDir is created on a best-effort basis so the server can start when
// the voice library lives on storage that is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
