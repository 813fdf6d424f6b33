package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/geobeacon/backend/internal/config"
	"github.com/geobeacon/backend/internal/logging"
	"github.com/geobeacon/backend/internal/store"
)

// loadConfigOnly reads the config file without opening a store
// connection, for subcommands that never touch the database.
func loadConfigOnly() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// loadAll reads the config file, builds the logger, and opens the
// transmitter store -- the trio the database-backed subcommands need
// ("map", "import-geoip" and "bulk parse" do not use it).
func loadAll() (*config.Config, *logrus.Entry, *store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Logging).WithField("component", "geobeacond")

	s, err := store.New(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, log, s, nil
}
