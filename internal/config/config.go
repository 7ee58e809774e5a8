// Package config loads and validates stakeout's configuration: polling
// budgets, driver endpoint, log-drain pacing, and logger settings. Values
// come from defaults, an optional YAML file, and STAKEOUT_* environment
// variables, in ascending precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Poll      PollConfig      `mapstructure:"poll" yaml:"poll"`
	WebDriver WebDriverConfig `mapstructure:"webdriver" yaml:"webdriver"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	LogDrain  LogDrainConfig  `mapstructure:"logdrain" yaml:"logdrain"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PollConfig tunes the retry engine.
type PollConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Retryable lists the failure kinds the engine keeps polling on.
	// Empty means the built-in default set.
	Retryable []string     `mapstructure:"retryable" yaml:"retryable"`
	Scroll    ScrollConfig `mapstructure:"scroll" yaml:"scroll"`
}

// ScrollConfig mirrors the scrollIntoView options used before clicks.
type ScrollConfig struct {
	Behavior string `mapstructure:"behavior" yaml:"behavior"`
	Block    string `mapstructure:"block" yaml:"block"`
	Inline   string `mapstructure:"inline" yaml:"inline"`
}

// WebDriverConfig points at a remote WebDriver endpoint.
type WebDriverConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	Browser      string        `mapstructure:"browser" yaml:"browser"`
	ImplicitWait time.Duration `mapstructure:"implicit_wait" yaml:"implicit_wait"`
}

// BrowserConfig holds settings for locally launched browser instances
// (the CDP driver).
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// LogDrainConfig paces destructive log polling.
type LogDrainConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// RetryableKinds converts the configured kind strings into the allow-list
// shape the retry engine wants. Empty input yields nil, which the engine
// reads as "use the default set".
func (p PollConfig) RetryableKinds() map[schemas.FailureKind]bool {
	if len(p.Retryable) == 0 {
		return nil
	}
	out := make(map[schemas.FailureKind]bool, len(p.Retryable))
	for _, k := range p.Retryable {
		out[schemas.FailureKind(k)] = true
	}
	return out
}

// NewDefaultConfig creates a new configuration struct populated with
// default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; an unmarshal failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stakeout")
	v.SetDefault("logger.log_file", "stakeout.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Poll --
	v.SetDefault("poll.timeout", "30s")
	// A zero interval re-polls immediately and leans on the driver's
	// implicit wait to pace the loop.
	v.SetDefault("poll.interval", "0s")
	v.SetDefault("poll.scroll.behavior", "auto")
	v.SetDefault("poll.scroll.block", "center")
	v.SetDefault("poll.scroll.inline", "nearest")

	// -- WebDriver --
	v.SetDefault("webdriver.url", "http://127.0.0.1:4444/wd/hub")
	v.SetDefault("webdriver.browser", "chrome")
	v.SetDefault("webdriver.implicit_wait", "0s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)

	// -- Log drain --
	v.SetDefault("logdrain.timeout", "30s")
	v.SetDefault("logdrain.interval", "250ms")
}

// NewConfigFromViper creates a new configuration instance from a viper
// object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from path (or the default search locations
// when path is empty), layers STAKEOUT_* environment variables on top,
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("STAKEOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expanding config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", expanded, err)
		}
	} else {
		v.SetConfigName("stakeout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "stakeout"))
		}
		if err := v.ReadInConfig(); err != nil {
			// Running purely on defaults and env is fine.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	return NewConfigFromViper(v)
}

// knownKinds guards against typos in poll.retryable; an unknown kind
// string would silently never match anything.
var knownKinds = map[schemas.FailureKind]struct{}{
	schemas.KindNotFound:         {},
	schemas.KindStale:            {},
	schemas.KindNotInteractable:  {},
	schemas.KindClickIntercepted: {},
	schemas.KindTimeout:          {},
	schemas.KindScriptError:      {},
	schemas.KindUnknown:          {},
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Poll.Timeout <= 0 {
		return fmt.Errorf("poll.timeout must be a positive duration")
	}
	if c.Poll.Interval < 0 {
		return fmt.Errorf("poll.interval must not be negative")
	}
	for _, k := range c.Poll.Retryable {
		if _, ok := knownKinds[schemas.FailureKind(k)]; !ok {
			return fmt.Errorf("poll.retryable contains unknown failure kind %q", k)
		}
	}
	if c.WebDriver.URL == "" {
		return fmt.Errorf("webdriver.url is a required configuration field")
	}
	if c.LogDrain.Interval <= 0 {
		return fmt.Errorf("logdrain.interval must be a positive duration")
	}
	return nil
}
