// Package config loads the service's TOML configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, one section per component.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	HTTP     HTTPConfig     `toml:"http"`
	Geo      GeoConfig      `toml:"geo"`
	Redis    RedisConfig    `toml:"redis"`
	Stats    *StatsConfig   `toml:"stats"`
	GeoIP    GeoIPConfig    `toml:"geoip"`
	Logging  LoggingConfig  `toml:"logging"`
	CORS     CORSConfig     `toml:"cors"`
}

// DatabaseConfig is the transmitter store's MySQL connection.
type DatabaseConfig struct {
	URL          string `toml:"url"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// HTTPConfig is the submission/geolocate server's listen address.
type HTTPConfig struct {
	Port            uint16 `toml:"port"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	RateLimitPerSec int    `toml:"rate_limit_per_sec"`
}

// GeoConfig controls the engine's H3 tiling resolution.
type GeoConfig struct {
	H3Resolution int `toml:"h3_resolution"`
}

// RedisConfig backs the engine's advisory lock and the responder's
// read-through cache; empty URL disables both.
type RedisConfig struct {
	URL string `toml:"url"`
}

// StatsConfig, when present, makes the engine write a stats row after
// every run; ArchivedReports is added to the live report count as the
// number of reports already archived elsewhere. No reports are pruned.
type StatsConfig struct {
	Path            string `toml:"path"`
	ArchivedReports int64  `toml:"archived_reports"`
}

// GeoIPConfig points at the IP-country CSV feed loaded once at startup.
type GeoIPConfig struct {
	CSVPath string `toml:"csv_path"`
}

// LoggingConfig selects the logrus formatter and level.
type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// CORSConfig lists the origins allowed to call the HTTP surface.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Load reads and parses the TOML file at path, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            8080,
			MaxBodyBytes:    500 * 1024 * 1024,
			RateLimitPerSec: 50,
		},
		Geo: GeoConfig{
			H3Resolution: 7,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 100,
			MaxIdleConns: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks the ranges that, left unchecked, would surface as
// confusing failures much later (a bad H3 resolution, a missing DSN).
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.HTTP.Port == 0 {
		return fmt.Errorf("http.port is required")
	}
	if c.Geo.H3Resolution < 0 || c.Geo.H3Resolution > 15 {
		return fmt.Errorf("geo.h3_resolution must be between 0 and 15")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Stats != nil && c.Stats.ArchivedReports < 0 {
		return fmt.Errorf("stats.archived_reports must be non-negative")
	}
	return nil
}
