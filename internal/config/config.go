package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/logging"
)

// DefaultAPIURL is used when neither an API URL nor a console origin is
// configured.
const DefaultAPIURL = "https://api.divviup.org/"

// Output formats.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputText = "text"
)

// Config represents the complete application configuration.
type Config struct {
	API       APIConfig      `yaml:"api"`
	AccountID string         `yaml:"account_id"`
	Output    string         `yaml:"output"`
	LogLevel  string         `yaml:"log_level"`
	Keystore  KeystoreConfig `yaml:"keystore"`
	Console   ConsoleConfig  `yaml:"console"`
	Notify    NotifyConfig   `yaml:"notify"`
}

// APIConfig says how the client reaches the API. URL skips /api_url
// discovery; otherwise the base URL is discovered from Origin.
type APIConfig struct {
	URL       string        `yaml:"url"`
	Origin    string        `yaml:"origin"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// KeystoreConfig locates the SQLite file holding generated collector keys.
type KeystoreConfig struct {
	Path string `yaml:"path"`
}

// ConsoleConfig configures the console origin server.
type ConsoleConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	APIURL          string        `yaml:"api_url"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NotifyConfig configures failed-job notifications. Retention is how long
// reported jobs are remembered before they may be reported again.
type NotifyConfig struct {
	Telegram     TelegramConfig `yaml:"telegram"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	Retention    time.Duration  `yaml:"retention"`
}

// TelegramConfig contains Telegram bot configuration.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Enabled reports whether both a bot token and a chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if c.AccountID != "" {
		if _, err := uuid.Parse(c.AccountID); err != nil {
			return fmt.Errorf("account_id: %q is not a uuid", c.AccountID)
		}
	}

	switch c.Output {
	case "":
		c.Output = OutputJSON
	case OutputJSON, OutputYAML, OutputText:
	default:
		return fmt.Errorf("output must be one of json, yaml, text, got %q", c.Output)
	}

	if c.LogLevel == "" {
		c.LogLevel = string(logging.LevelWarn)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if err := c.Keystore.Validate(); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}

	if err := c.Console.Validate(); err != nil {
		return fmt.Errorf("console: %w", err)
	}

	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	return nil
}

// Validate validates API configuration.
func (a *APIConfig) Validate() error {
	if a.URL == "" && a.Origin == "" {
		a.URL = DefaultAPIURL
	}
	if a.URL != "" {
		if err := absoluteURL(a.URL); err != nil {
			return fmt.Errorf("url: %w", err)
		}
	}
	if a.Origin != "" {
		if err := absoluteURL(a.Origin); err != nil {
			return fmt.Errorf("origin: %w", err)
		}
	}
	if a.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if a.Timeout == 0 {
		a.Timeout = 30 * time.Second
	}
	if a.UserAgent == "" {
		a.UserAgent = "divviup-cli"
	}
	return nil
}

// Validate applies the default keystore location under the user config dir.
func (k *KeystoreConfig) Validate() error {
	if k.Path != "" {
		return nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		k.Path = "divviup-keys.db"
		return nil
	}
	k.Path = filepath.Join(dir, "divviup", "keys.db")
	return nil
}

// Validate validates console configuration.
func (s *ConsoleConfig) Validate() error {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if s.APIURL != "" {
		if err := absoluteURL(s.APIURL); err != nil {
			return fmt.Errorf("api_url: %w", err)
		}
	}
	for _, origin := range s.CORSOrigins {
		if err := absoluteURL(origin); err != nil {
			return fmt.Errorf("cors_origins: %w", err)
		}
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	return nil
}

// Addr is the listen address.
func (s *ConsoleConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates notification configuration.
func (n *NotifyConfig) Validate() error {
	if n.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	if n.PollInterval == 0 {
		n.PollInterval = time.Second
	}
	if n.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if n.Retention == 0 {
		n.Retention = 30 * 24 * time.Hour
	}
	if (n.Telegram.BotToken == "") != (n.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram: bot_token and chat_id must be set together")
	}
	return nil
}

func absoluteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
