package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePrompts(); err != nil {
		return err
	}
	c.normalizeClient()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizePrompts() error {
	var err error
	c.Prompts.NotesTemplatePath = strings.TrimSpace(c.Prompts.NotesTemplatePath)
	if c.Prompts.NotesTemplatePath != "" {
		if c.Prompts.NotesTemplatePath, err = expandPath(c.Prompts.NotesTemplatePath); err != nil {
			return fmt.Errorf("prompts.notes_template_path: %w", err)
		}
	}
	c.Prompts.VoicesTemplatePath = strings.TrimSpace(c.Prompts.VoicesTemplatePath)
	if c.Prompts.VoicesTemplatePath != "" {
		if c.Prompts.VoicesTemplatePath, err = expandPath(c.Prompts.VoicesTemplatePath); err != nil {
			return fmt.Errorf("prompts.voices_template_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeClient() {
	c.Client.BaseURL = strings.TrimRight(strings.TrimSpace(c.Client.BaseURL), "/")
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = defaultClientBaseURL
	}
	if c.Client.TimeoutSeconds <= 0 {
		c.Client.TimeoutSeconds = defaultClientTimeoutSeconds
	}
	if c.Client.ReadRetries < 0 {
		c.Client.ReadRetries = 0
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.QueueLimit < 0 {
		c.Sync.QueueLimit = 0
	}
	if c.Sync.CommitTimeoutSeconds <= 0 {
		c.Sync.CommitTimeoutSeconds = defaultCommitTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
