package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/divviup/divviup-console/internal/errors"
)

// Environment variables read by LoadFromEnv and ApplyEnv.
const (
	EnvConfigPath = "DIVVIUP_CONFIG_PATH"
	EnvToken      = "DIVVIUP_TOKEN"
	EnvAPIURL     = "DIVVIUP_API_URL"
	EnvAccountID  = "DIVVIUP_ACCOUNT_ID"
)

// Loader handles configuration loading and hot-reloading
type Loader struct {
	path     string
	mu       sync.RWMutex
	config   *Config
	onChange func(*Config)
	onError  func(error)
}

// NewLoader creates a new configuration loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path is the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the configuration from the file, applies environment
// overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrConfigNotFound{Path: l.path}
		}
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	config, err := Parse(substituteEnvVars(content))
	if err != nil {
		return nil, err
	}
	ApplyEnv(config)
	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	l.config = config
	return config, nil
}

// Reload re-reads the file and hands the new configuration to the
// OnChange callback. On failure the previous configuration stays current.
func (l *Loader) Reload() (*Config, error) {
	config, err := l.Load()

	l.mu.RLock()
	onChange, onError := l.onChange, l.onError
	l.mu.RUnlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return nil, err
	}
	if onChange != nil {
		onChange(config)
	}
	return config, nil
}

// Get returns the current configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// SetOnChange sets a callback to be called when configuration changes
func (l *Loader) SetOnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// SetOnError sets a callback for reloads that fail.
func (l *Loader) SetOnError(fn func(error)) {
	l.mu.Lock()
	l.onError = fn
	l.mu.Unlock()
}

// Watch reloads the configuration whenever the file changes until ctx is
// done. The directory is watched rather than the file so that editors
// replacing the file by rename are seen.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(l.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					_, _ = l.Reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.mu.RLock()
				onError := l.onError
				l.mu.RUnlock()
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return nil
}

// DefaultPath is $XDG_CONFIG_HOME/divviup/config.yaml or its platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "divviup.yaml"
	}
	return filepath.Join(dir, "divviup", "config.yaml")
}

// LoadDotEnv loads variables from .env files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return &errors.ErrFileRead{Path: file, Err: err}
		}
	}
	return nil
}

// LoadFromEnv loads configuration from path, or from $DIVVIUP_CONFIG_PATH,
// or from DefaultPath. A missing file is an error only when the path was
// given explicitly; otherwise defaults plus environment are used.
func LoadFromEnv(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath()
	}

	config, err := NewLoader(path).Load()
	var notFound *errors.ErrConfigNotFound
	if stderrors.As(err, &notFound) && !explicit {
		return Default()
	}
	return config, err
}

// Default is the configuration used when no file exists: defaults plus
// environment overrides.
func Default() (*Config, error) {
	config := &Config{}
	ApplyEnv(config)
	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}
	return config, nil
}

// ApplyEnv overrides file values with DIVVIUP_* environment variables.
func ApplyEnv(c *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv(EnvAccountID); v != "" {
		c.AccountID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Notify.Telegram.ChatID = id
		}
	}
}

// Parse parses configuration from byte slice
func Parse(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}

	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	return &config, nil
}

func substituteEnvVars(content []byte) []byte {
	return []byte(os.ExpandEnv(string(content)))
}
