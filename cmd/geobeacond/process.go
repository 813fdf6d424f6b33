package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/geobeacon/backend/internal/engine"
)

const lockKey = "geobeacon:engine:lock"
const lockTTL = 10 * time.Minute

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "run the processing engine once, folding pending reports into transmitter estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess()
		},
	}
}

func runProcess() error {
	cfg, log, s, err := loadAll()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	var stats *engine.StatsConfig
	if cfg.Stats != nil {
		stats = &engine.StatsConfig{ArchivedReports: cfg.Stats.ArchivedReports}
	}
	eng := engine.New(s, cfg.Geo.H3Resolution, stats, log)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		lock := engine.NewAdvisoryLock(redis.NewClient(opts), lockKey, lockTTL)

		token := randomToken()
		acquired, err := lock.Acquire(ctx, token)
		if err != nil {
			return err
		}
		if !acquired {
			log.Info("another engine run is already in progress, exiting")
			return nil
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	summary, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	log.WithField("reports_processed", summary.ReportsProcessed).
		WithField("reports_errored", summary.ReportsErrored).
		WithField("transmitters_touched", summary.TransmittersTouched).
		WithField("tiles_touched", summary.TilesTouched).
		Info("processing run complete")
	return nil
}

func randomToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
