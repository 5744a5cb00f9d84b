package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Inbox     InboxConfig     `yaml:"inbox"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Browser   BrowserConfig   `yaml:"browser,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// InboxConfig holds IMAP settings for importing emails.
type InboxConfig struct {
	Provider      string `yaml:"provider"` // "gmail", "outlook", "imap"
	Server        string `yaml:"server"`
	Port          int    `yaml:"port"`
	Email         string `yaml:"email"`
	Password      string `yaml:"password"` // App password (not main password)
	Folder        string `yaml:"folder"`
	AutoArchive   bool   `yaml:"auto_archive"`
	ArchiveFolder string `yaml:"archive_folder"`
}

// ReasoningConfig points at an OpenAI-compatible chat completions endpoint
// used to plan page actions.
type ReasoningConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"` // Empty means api.openai.com
}

// BrowserConfig holds browser automation settings.
type BrowserConfig struct {
	Headless   bool `yaml:"headless"`
	TimeoutSec int  `yaml:"timeout_sec"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".mailsweep", "config.yaml")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Inbox.Folder == "" {
		c.Inbox.Folder = "INBOX"
	}
	if c.Inbox.ArchiveFolder == "" {
		c.Inbox.ArchiveFolder = "MailSweep"
	}
	if c.Inbox.Provider == "gmail" && c.Inbox.Server == "" {
		c.Inbox.Server = "imap.gmail.com"
		c.Inbox.Port = 993
	}
	if c.Inbox.Provider == "outlook" && c.Inbox.Server == "" {
		c.Inbox.Server = "outlook.office365.com"
		c.Inbox.Port = 993
	}

	if c.Reasoning.Model == "" {
		c.Reasoning.Model = "gpt-4o-mini"
	}

	if c.Browser.TimeoutSec == 0 {
		c.Browser.TimeoutSec = 30
		c.Browser.Headless = true
	}

	if c.Store.Path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Store.Path = filepath.Join(home, ".mailsweep", "mailsweep.db")
		} else {
			c.Store.Path = "mailsweep.db"
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8422"
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	return nil
}

// ValidateReasoning checks the settings needed to run unsubscribe attempts.
func (c *Config) ValidateReasoning() error {
	if c.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning: api_key is required")
	}
	if c.Reasoning.Model == "" {
		return fmt.Errorf("reasoning: model is required")
	}
	return nil
}
