// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the full application configuration tree. It is populated from
// config.yaml, FLIGHTCHECK_* environment variables and bound CLI flags, in
// that order of increasing precedence.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Crawler   CrawlerConfig   `mapstructure:"crawler" yaml:"crawler"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig configures the zap logger and the optional rotating file sink.
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

// BrowserConfig controls the Chrome process launched once per run.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableCache    bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig holds the hard per-operation timeouts. These bound individual
// browser interactions; the overall run budget is a separate, advisory
// deadline checked between units of work.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StepTimeout       time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
	ErrorProbeTimeout time.Duration `mapstructure:"error_probe_timeout" yaml:"error_probe_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// CrawlerConfig bounds structural discovery.
type CrawlerConfig struct {
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// RatePerSecond throttles page navigations. Small crawls are unaffected by
	// the default; lower it for fragile staging environments.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
}

// ViewportProfile is a named device-emulation profile. The executor receives
// the resolved table rather than reading module constants, so tests can run
// deterministic custom viewports.
type ViewportProfile struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Width     int64  `mapstructure:"width" yaml:"width"`
	Height    int64  `mapstructure:"height" yaml:"height"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	Mobile    bool   `mapstructure:"mobile" yaml:"mobile"`
	Touch     bool   `mapstructure:"touch" yaml:"touch"`
}

// ExecutorConfig bounds flow execution.
type ExecutorConfig struct {
	MaxDuration time.Duration     `mapstructure:"max_duration" yaml:"max_duration"`
	Viewports   []ViewportProfile `mapstructure:"viewports" yaml:"viewports"`
}

// ArtifactsConfig names the on-disk outputs of a run.
type ArtifactsConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	StorageStatePath string `mapstructure:"storage_state_path" yaml:"storage_state_path"`
}

// DatabaseConfig enables the optional run-history store when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flightcheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_cache", true)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "10s")
	v.SetDefault("network.step_timeout", "10s")
	v.SetDefault("network.auth_timeout", "15s")
	v.SetDefault("network.error_probe_timeout", "1s")
	v.SetDefault("network.post_load_wait", "500ms")

	// -- Crawler --
	v.SetDefault("crawler.max_pages", 5)
	v.SetDefault("crawler.rate_per_second", 5.0)

	// -- Executor --
	v.SetDefault("executor.max_duration", "5m")
	v.SetDefault("executor.viewports", []map[string]any{
		{"name": "desktop", "width": 1280, "height": 720},
		{"name": "mobile", "width": 375, "height": 667, "user_agent": mobileUserAgent, "mobile": true, "touch": true},
	})

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "flightcheck-artifacts")
	v.SetDefault("artifacts.storage_state_path", "flightcheck-artifacts/storage-state.json")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewFromViper unmarshals and validates a configuration from a viper instance
// that has already read its sources.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefault returns a configuration populated with defaults only.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	if err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// expandPaths resolves "~" in user-supplied path fields.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Artifacts.Dir, &c.Artifacts.StorageStatePath, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be a positive integer")
	}
	if c.Crawler.RatePerSecond <= 0 {
		return fmt.Errorf("crawler.rate_per_second must be positive")
	}
	if c.Executor.MaxDuration <= 0 {
		return fmt.Errorf("executor.max_duration must be a positive duration")
	}
	if len(c.Executor.Viewports) == 0 {
		return fmt.Errorf("executor.viewports must define at least one profile")
	}
	seen := make(map[string]struct{}, len(c.Executor.Viewports))
	for _, vp := range c.Executor.Viewports {
		if vp.Name == "" {
			return fmt.Errorf("executor.viewports entries must be named")
		}
		if vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("viewport %q must have positive dimensions", vp.Name)
		}
		if _, dup := seen[vp.Name]; dup {
			return fmt.Errorf("viewport %q defined twice", vp.Name)
		}
		seen[vp.Name] = struct{}{}
	}
	return nil
}

// Viewport looks up a profile by name.
func (c *Config) Viewport(name string) (ViewportProfile, bool) {
	for _, vp := range c.Executor.Viewports {
		if vp.Name == name {
			return vp, true
		}
	}
	return ViewportProfile{}, false
}

// ResolveViewports maps requested viewport names onto configured profiles,
// preserving the caller's order. Unknown names are reported, not silently
// dropped; the caller decides whether that is fatal.
func (c *Config) ResolveViewports(names []string) ([]ViewportProfile, []string) {
	var (
		profiles []ViewportProfile
		unknown  []string
	)
	for _, name := range names {
		if vp, ok := c.Viewport(name); ok {
			profiles = append(profiles, vp)
		} else {
			unknown = append(unknown, name)
		}
	}
	return profiles, unknown
}
