package config

import (
	_ "embed"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/transport"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultQueueSize      = 16
	DefaultRequestTimeout = 15 * time.Second
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8080
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	StorageDir     string                  `toml:"storage_dir"`
	QueueSize      int                     `toml:"queue_size"`
	UserAgent      string                  `toml:"user_agent"`
	RequestTimeout Duration                `toml:"request_timeout"`
	CalendarDates  bool                    `toml:"calendar_dates"`
	History        bool                    `toml:"history"`
	Web            WebConfig               `toml:"web"`
	Engines        map[string]EngineConfig `toml:"engines"`
}

type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EngineConfig overrides the defaults of one engine. The map key is the
// engine slug.
type EngineConfig struct {
	Enabled *bool     `toml:"enabled,omitempty"`
	Timeout *Duration `toml:"timeout,omitempty"`
	// URL replaces the engine's URL template; it must contain {query}
	// unless the engine sends the query in the request body.
	URL string `toml:"url,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, errors.Wrap(err, "getting default storage directory")
	}
	c := &Config{StorageDir: storageDir}
	c.applyDefaults()
	return c, nil
}

// LoadConfig reads configPath. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	return Parse(data)
}

// Parse decodes and validates a TOML document.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, errors.Wrap(err, "getting default storage directory")
		}
		config.StorageDir = storageDir
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.UserAgent == "" {
		c.UserAgent = transport.DefaultUserAgent
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = Duration{DefaultRequestTimeout}
	}
	if c.Web.Host == "" {
		c.Web.Host = DefaultHost
	}
	if c.Web.Port == 0 {
		c.Web.Port = DefaultPort
	}
	if c.Engines == nil {
		c.Engines = make(map[string]EngineConfig)
	}
}

// Validate rejects unknown engines and out of range values.
func (c *Config) Validate() error {
	if c.QueueSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "queue_size must be positive, got %d", c.QueueSize)
	}
	if c.RequestTimeout.Duration < 0 {
		return errors.Wrapf(ErrInvalidConfig, "request_timeout must not be negative")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "web.port %d out of range", c.Web.Port)
	}
	for slug, ec := range c.Engines {
		if _, err := core.ParseEngine(slug); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "engines.%s: %v", slug, err)
		}
		if ec.Timeout != nil && ec.Timeout.Duration <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "engines.%s.timeout must be positive", slug)
		}
	}
	if len(c.EnabledEngines()) == 0 {
		return errors.Wrap(ErrInvalidConfig, "every engine is disabled")
	}
	return nil
}

func (c *Config) engine(e core.Engine) (EngineConfig, bool) {
	for slug, ec := range c.Engines {
		if strings.EqualFold(slug, e.String()) {
			return ec, true
		}
	}
	return EngineConfig{}, false
}

// EnabledEngines lists the enabled engines in display order.
func (c *Config) EnabledEngines() []core.Engine {
	var out []core.Engine
	for _, e := range core.Engines() {
		ec, ok := c.engine(e)
		if ok && ec.Enabled != nil && !*ec.Enabled {
			continue
		}
		out = append(out, e)
	}
	return out
}

// EngineTimeout is the per engine timeout, falling back to request_timeout.
func (c *Config) EngineTimeout(e core.Engine) time.Duration {
	if ec, ok := c.engine(e); ok && ec.Timeout != nil {
		return ec.Timeout.Duration
	}
	return c.RequestTimeout.Duration
}

// EngineURL returns the configured URL override, if any.
func (c *Config) EngineURL(e core.Engine) string {
	ec, _ := c.engine(e)
	return ec.URL
}

// Addr is the listen address of the web server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Web.Host, strconv.Itoa(c.Web.Port))
}

// HistoryDBPath is the history database inside the storage directory.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.StorageDir, "history.db")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return errors.Wrap(err, "generating config template")
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", errors.Wrap(err, "getting default storage directory")
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/sieve", storageDir, 1)
	return template, nil
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/sieve (or ~/.local/share/sieve),
// creating it if needed.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "getting user home directory")
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "sieve")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating storage directory %s", dir)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/sieve (or ~/.config/sieve).
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "getting user home directory")
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "sieve")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating config directory %s", dir)
	}
	return dir, nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
