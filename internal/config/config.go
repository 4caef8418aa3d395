// Package config provides auction-admin configuration loaded from environment variables,
// optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const logPrefix = "config:LoadConfig"

// Config holds auction-admin configuration.
type Config struct {
	// WordPress site
	SiteURL      string `envconfig:"AUCTION_SITE_URL"`
	AjaxURL      string `envconfig:"AUCTION_AJAX_URL"`
	AdminPageURL string `envconfig:"AUCTION_ADMIN_PAGE_URL"`
	Nonce        string `envconfig:"AUCTION_NONCE"`
	// Cookie is the admin session cookie header, sent verbatim.
	Cookie string `envconfig:"AUCTION_COOKIE"`

	// Where the admin page exposes the nonce and endpoint.
	ScriptObject string `envconfig:"AUCTION_SCRIPT_OBJECT" default:"carAuctionAdmin"`
	TokenMeta    string `envconfig:"AUCTION_NONCE_META" default:"car-auction-nonce"`
	EndpointMeta string `envconfig:"AUCTION_AJAX_URL_META" default:"car-auction-ajax-url"`
	TokenField   string `envconfig:"AUCTION_NONCE_FIELD" default:"car_auction_nonce"`

	// Timing
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RestoreDelay   time.Duration `envconfig:"RESTORE_DELAY" default:"3s"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	FallbackDelay  time.Duration `envconfig:"FALLBACK_DELAY" default:"1s"`

	// Navigation
	TrustedRedirectSuffixes []string `envconfig:"TRUSTED_REDIRECT_SUFFIXES"`
	Markets                 []string `envconfig:"MARKETS" default:"main,korea,japan,china"`

	PluginVersionConstraint string `envconfig:"PLUGIN_VERSION_CONSTRAINT" default:"^2.0.0"`

	// Debug enables debug logging regardless of LOG_LEVEL.
	Debug bool `envconfig:"AUCTION_DEBUG" default:"false"`

	// COMMS: panel events are published when COMMS_URL is set.
	COMMSURL          string `envconfig:"COMMS_URL"`
	COMMSName         string `envconfig:"SERVICE_NAME" default:"auction-admin"`
	PanelEventSubject string `envconfig:"PANEL_EVENT_SUBJECT"`

	// Database: snapshot history is kept when DATABASE_URL is set.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// Dashboard HTTP
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// ConfigFile is an optional YAML overlay.
	ConfigFile string `envconfig:"AUCTION_CONFIG_FILE"`
}

// fileOverlay is the YAML overlay. Environment variables that are set win over it.
type fileOverlay struct {
	SiteURL                 string        `yaml:"site_url"`
	AjaxURL                 string        `yaml:"ajax_url"`
	AdminPageURL            string        `yaml:"admin_page_url"`
	Markets                 []string      `yaml:"markets"`
	TrustedRedirectSuffixes []string      `yaml:"trusted_redirect_suffixes"`
	PluginVersionConstraint string        `yaml:"plugin_version_constraint"`
	PollInterval            time.Duration `yaml:"poll_interval"`
}

// LoadConfig loads configuration from environment variables, then applies AUCTION_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if c.ConfigFile != "" {
		if err := c.applyFile(c.ConfigFile); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s - read %s: %w", logPrefix, path, err)
	}
	var o fileOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("%s - parse %s: %w", logPrefix, path, err)
	}

	setString(&c.SiteURL, "AUCTION_SITE_URL", o.SiteURL)
	setString(&c.AjaxURL, "AUCTION_AJAX_URL", o.AjaxURL)
	setString(&c.AdminPageURL, "AUCTION_ADMIN_PAGE_URL", o.AdminPageURL)
	setString(&c.PluginVersionConstraint, "PLUGIN_VERSION_CONSTRAINT", o.PluginVersionConstraint)
	if _, set := os.LookupEnv("MARKETS"); !set && len(o.Markets) > 0 {
		c.Markets = o.Markets
	}
	if _, set := os.LookupEnv("TRUSTED_REDIRECT_SUFFIXES"); !set && len(o.TrustedRedirectSuffixes) > 0 {
		c.TrustedRedirectSuffixes = o.TrustedRedirectSuffixes
	}
	if _, set := os.LookupEnv("POLL_INTERVAL"); !set && o.PollInterval > 0 {
		c.PollInterval = o.PollInterval
	}
	return nil
}

func setString(dst *string, env, val string) {
	if _, set := os.LookupEnv(env); set || val == "" {
		return
	}
	*dst = val
}

// EffectiveLogLevel is LOG_LEVEL, or "debug" when AUCTION_DEBUG is set.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return strings.ToLower(c.LogLevel)
}

// ValidateForSite checks the config every command that talks to WordPress needs.
func (c *Config) ValidateForSite() error {
	if c.SiteURL == "" {
		return fmt.Errorf("%s - AUCTION_SITE_URL is required", logPrefix)
	}
	u, err := url.Parse(c.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s - AUCTION_SITE_URL must be an absolute http(s) URL", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("%s - MARKETS must list at least one market", logPrefix)
	}
	return nil
}

// ValidateForServe checks required config when running the dashboard.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForSite(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s - POLL_INTERVAL must be positive", logPrefix)
	}
	if c.RestoreDelay < 0 || c.FallbackDelay < 0 {
		return fmt.Errorf("%s - RESTORE_DELAY and FALLBACK_DELAY must not be negative", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear-history).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
