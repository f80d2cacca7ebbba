// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mode selects what the agent does with a detected banner.
type Mode string

const (
	// ModeAccept actuates the accept control of any detected banner.
	ModeAccept Mode = "accept"
	// ModeReject actuates the reject control, falling back to accept
	// unless strict_reject is set.
	ModeReject Mode = "reject"
	// ModeOff detects and reports but never clicks.
	ModeOff Mode = "off"
)

// Interface is the read surface handed to components. It exists so tests can
// inject a fixture config without touching viper.
type Interface interface {
	Logger() LoggerConfig
	Detector() DetectorConfig
	Actuator() ActuatorConfig
	Monitor() MonitorConfig
	Browser() BrowserConfig
	Patterns() PatternsConfig
	Policy() PolicyConfig
	Store() StoreConfig
	Control() ControlConfig

	SetMode(Mode)
	SetDebug(bool)
	SetPolicy(PolicyConfig)
}

// Config holds the entire application configuration.
type Config struct {
	Log       LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Detect    DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Act       ActuatorConfig `mapstructure:"actuator" yaml:"actuator"`
	Watch     MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`
	Chrome    BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	PatternDB PatternsConfig `mapstructure:"patterns" yaml:"patterns"`
	Domains   PolicyConfig   `mapstructure:"policy" yaml:"policy"`
	DB        StoreConfig    `mapstructure:"store" yaml:"store"`
	Ctl       ControlConfig  `mapstructure:"control" yaml:"control"`
}

func (c *Config) Logger() LoggerConfig     { return c.Log }
func (c *Config) Detector() DetectorConfig { return c.Detect }
func (c *Config) Actuator() ActuatorConfig { return c.Act }
func (c *Config) Monitor() MonitorConfig   { return c.Watch }
func (c *Config) Browser() BrowserConfig   { return c.Chrome }
func (c *Config) Patterns() PatternsConfig { return c.PatternDB }
func (c *Config) Policy() PolicyConfig     { return c.Domains }
func (c *Config) Store() StoreConfig       { return c.DB }
func (c *Config) Control() ControlConfig   { return c.Ctl }

func (c *Config) SetMode(m Mode)           { c.Detect.Mode = m }
func (c *Config) SetDebug(b bool)          { c.Detect.Debug = b }
func (c *Config) SetPolicy(p PolicyConfig) { c.Domains = p }

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

// DetectorConfig tunes the banner detection engine.
type DetectorConfig struct {
	Mode Mode `mapstructure:"mode" yaml:"mode"`
	// Debug enables per-classifier verdict logging. Off by default so the
	// agent stays quiet on production pages.
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// Freshness is how long a cached verdict may be served.
	Freshness time.Duration `mapstructure:"freshness" yaml:"freshness"`
	// SettleDelay is the wait before the first pass after page load.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// ActuatorConfig tunes the simulated interaction sequence.
type ActuatorConfig struct {
	// StrictReject disables the fallback-to-accept policy: a deny request
	// with no reject control fails instead of clicking accept.
	StrictReject   bool `mapstructure:"strict_reject" yaml:"strict_reject"`
	ClickHoldMinMs int  `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int  `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
}

// MonitorConfig tunes the mutation-driven rescan scheduler.
type MonitorConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	// MaxRescansPerMinute bounds how often mutation bursts may trigger a
	// full detection pass.
	MaxRescansPerMinute int `mapstructure:"max_rescans_per_minute" yaml:"max_rescans_per_minute"`
}

// BrowserConfig holds settings for the live Chrome session.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	Args           []string      `mapstructure:"args" yaml:"args"`
}

// PatternsConfig locates the pattern database file.
type PatternsConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PolicyConfig carries the per-domain allow/deny lists checked before
// actuation. Allow forces accept, Deny skips the domain entirely.
type PolicyConfig struct {
	Allow []string `mapstructure:"allow" yaml:"allow"`
	Deny  []string `mapstructure:"deny" yaml:"deny"`
}

// StoreConfig holds the statistics database connection details.
type StoreConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ControlConfig configures the inbound command surface.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "consentry")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("detector.mode", string(ModeAccept))
	v.SetDefault("detector.debug", false)
	v.SetDefault("detector.freshness", 2*time.Second)
	v.SetDefault("detector.settle_delay", 750*time.Millisecond)

	v.SetDefault("actuator.strict_reject", false)
	v.SetDefault("actuator.click_hold_min_ms", 35)
	v.SetDefault("actuator.click_hold_max_ms", 120)

	v.SetDefault("monitor.debounce", 400*time.Millisecond)
	v.SetDefault("monitor.max_rescans_per_minute", 30)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.nav_timeout", 30*time.Second)

	v.SetDefault("patterns.path", "")
	v.SetDefault("control.enabled", false)
	v.SetDefault("control.listen", "127.0.0.1:8732")
}

// Load builds a Config from an optional file plus CONSENTRY_* env overrides.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("consentry")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CONSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	switch c.Detect.Mode {
	case ModeAccept, ModeReject, ModeOff:
	default:
		return fmt.Errorf("detector.mode must be accept, reject or off, got %q", c.Detect.Mode)
	}
	if c.Detect.Freshness <= 0 {
		return fmt.Errorf("detector.freshness must be positive")
	}
	if c.Act.ClickHoldMinMs < 0 || c.Act.ClickHoldMaxMs < c.Act.ClickHoldMinMs {
		return fmt.Errorf("actuator click hold range is invalid: [%d, %d]",
			c.Act.ClickHoldMinMs, c.Act.ClickHoldMaxMs)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("monitor.debounce must be positive")
	}
	return nil
}
