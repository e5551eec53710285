package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const defaultRateLimitMs = 1000

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
	Mailbox MailboxConfig `yaml:"mailbox"`
	AI      AIConfig      `yaml:"ai,omitempty"`
	Email   EmailConfig   `yaml:"email,omitempty"`
	Options Options       `yaml:"options"`
	Web     WebConfig     `yaml:"web,omitempty"`
	Browser BrowserConfig `yaml:"browser,omitempty"`
}

// MailboxConfig selects and configures the mailbox gateway
type MailboxConfig struct {
	Provider        string `yaml:"provider"`         // "gmail" or "imap"
	CredentialsFile string `yaml:"credentials_file"` // OAuth client credentials JSON (gmail)
	TokenFile       string `yaml:"token_file"`       // cached OAuth token (gmail)
	Server          string `yaml:"server"`           // e.g., "imap.fastmail.com" (imap)
	Port            int    `yaml:"port"`             // e.g., 993 (imap)
	Address         string `yaml:"address"`          // mailbox address (imap login)
	Password        string `yaml:"password"`         // app password (imap)
	Folder          string `yaml:"folder"`           // folder to operate on (default: "INBOX")
}

// AIConfig selects the analysis providers. A key left empty disables that
// provider; the local rule-based provider is appended when include_local is
// true so the chain can never run dry.
type AIConfig struct {
	GeminiAPIKey      string `yaml:"gemini_api_key,omitempty"`
	HuggingFaceAPIKey string `yaml:"huggingface_api_key,omitempty"`
	IncludeLocal      bool   `yaml:"include_local"`
}

type EmailConfig struct {
	Provider string     `yaml:"provider"` // "smtp", "resend" or "sendgrid"
	From     string     `yaml:"from"`
	APIKey   string     `yaml:"api_key,omitempty"` // resend/sendgrid
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

type Options struct {
	DryRun          bool     `yaml:"dry_run"`
	RateLimitMs     int      `yaml:"rate_limit_ms"`
	MaxResults      int      `yaml:"max_results"`
	SendersFile     string   `yaml:"senders_file,omitempty"`
	ExcludedDomains []string `yaml:"excluded_domains,omitempty"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// BrowserConfig holds settings for the optional confirm-click fallback
type BrowserConfig struct {
	Enabled    bool `yaml:"enabled"`
	Headless   bool `yaml:"headless"`
	TimeoutSec int  `yaml:"timeout_sec"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".email-cleaner", "config.yaml")
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
	// Pre-set defaults that a yaml false must be able to override
	cfg.Browser.Headless = true
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Options.RateLimitMs == 0 {
		cfg.Options.RateLimitMs = defaultRateLimitMs
	}
	if cfg.Options.MaxResults == 0 {
		cfg.Options.MaxResults = 100
	}

	// Mailbox defaults
	if cfg.Mailbox.Provider == "" {
		cfg.Mailbox.Provider = "gmail"
	}
	if cfg.Mailbox.Folder == "" {
		cfg.Mailbox.Folder = "INBOX"
	}
	if cfg.Mailbox.Provider == "gmail" {
		if cfg.Mailbox.CredentialsFile == "" {
			cfg.Mailbox.CredentialsFile = filepath.Join(filepath.Dir(path), "credentials.json")
		}
		if cfg.Mailbox.TokenFile == "" {
			cfg.Mailbox.TokenFile = filepath.Join(filepath.Dir(path), "token.json")
		}
	}

	if cfg.Web.Addr == "" {
		cfg.Web.Addr = "127.0.0.1:8787"
	}

	// Browser defaults
	if cfg.Browser.TimeoutSec == 0 {
		cfg.Browser.TimeoutSec = 30
	}

	return &cfg, nil
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
	switch c.Mailbox.Provider {
	case "gmail":
		if c.Mailbox.CredentialsFile == "" {
			return fmt.Errorf("mailbox: credentials_file is required for gmail")
		}
	case "imap":
		if c.Mailbox.Server == "" {
			return fmt.Errorf("mailbox: server is required for imap")
		}
		if c.Mailbox.Port == 0 {
			return fmt.Errorf("mailbox: port is required for imap")
		}
		if c.Mailbox.Address == "" {
			return fmt.Errorf("mailbox: address is required for imap")
		}
		if c.Mailbox.Password == "" {
			return fmt.Errorf("mailbox: password (app password) is required for imap")
		}
	default:
		return fmt.Errorf("mailbox: unknown provider %q (gmail or imap)", c.Mailbox.Provider)
	}
	return nil
}

// ValidateEmail validates outgoing mail settings (only called when the
// mailto unsubscribe path is used)
func (c *Config) ValidateEmail() error {
	if c.Email.From == "" {
		return fmt.Errorf("email: from address is required")
	}
	switch c.Email.Provider {
	case "", "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp: host is required")
		}
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp: port is required")
		}
	case "resend", "sendgrid":
		if c.Email.APIKey == "" {
			return fmt.Errorf("email: api_key is required for %s", c.Email.Provider)
		}
	default:
		return fmt.Errorf("email: unknown provider %q (smtp, resend or sendgrid)", c.Email.Provider)
	}
	return nil
}
