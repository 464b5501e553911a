// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/skillsync/harvester/internal/harvest"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	DB       DBConfig       `mapstructure:"db"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig describes the page being harvested.
type SourceConfig struct {
	URL         string            `mapstructure:"url"`
	SearchTerm  string            `mapstructure:"search_term"`
	SettleDelay time.Duration     `mapstructure:"settle_delay"`
	Selectors   harvest.Selectors `mapstructure:"selectors"`
}

// BrowserConfig controls the headless browsing session.
type BrowserConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Headless  bool          `mapstructure:"headless"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SnapshotConfig names the audit artifact destination. A gs://bucket/object
// destination uploads to Cloud Storage; empty disables the artifact.
type SnapshotConfig struct {
	Destination string `mapstructure:"destination"`
}

// MetricsConfig controls the optional metrics endpoint. An empty address
// disables the server.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "https://skillbridge.osd.mil/locations.htm")
	v.SetDefault("source.search_term", "*")
	v.SetDefault("source.settle_delay", "500ms")

	sel := harvest.DefaultSelectors()
	v.SetDefault("source.selectors.results_wrapper", sel.ResultsWrapper)
	v.SetDefault("source.selectors.rows", sel.Rows)
	v.SetDefault("source.selectors.search_input", sel.SearchInput)
	v.SetDefault("source.selectors.search_button", sel.SearchButton)
	v.SetDefault("source.selectors.next_page", sel.NextPage)
	v.SetDefault("source.selectors.total_pages", sel.TotalPages)

	v.SetDefault("browser.user_agent", "skillbridge-harvester/0.1")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.op_timeout", "45s")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "skillbridge_opportunities")
	v.SetDefault("db.max_conns", 4)

	v.SetDefault("snapshot.destination", "opportunities.json")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.SearchTerm == "" {
		return fmt.Errorf("source.search_term is required")
	}
	if c.Source.SettleDelay <= 0 {
		return fmt.Errorf("source.settle_delay must be > 0")
	}
	if c.Browser.OpTimeout <= 0 {
		return fmt.Errorf("browser.op_timeout must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	sel := c.Source.Selectors
	for name, value := range map[string]string{
		"results_wrapper": sel.ResultsWrapper,
		"rows":            sel.Rows,
		"search_input":    sel.SearchInput,
		"search_button":   sel.SearchButton,
		"next_page":       sel.NextPage,
	} {
		if value == "" {
			return fmt.Errorf("source.selectors.%s is required", name)
		}
	}
	return nil
}
