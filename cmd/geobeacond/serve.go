package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/geobeacon/backend/internal/geoip"
	"github.com/geobeacon/backend/internal/geolocate"
	"github.com/geobeacon/backend/internal/handler"
	"github.com/geobeacon/backend/internal/intake"
	"github.com/geobeacon/backend/internal/mls"
	"github.com/geobeacon/backend/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the submission and geolocate HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, s, err := loadAll()
	if err != nil {
		return err
	}
	defer s.Close()

	countryTable := &geoip.Table{}
	if cfg.GeoIP.CSVPath != "" {
		f, err := os.Open(cfg.GeoIP.CSVPath)
		if err != nil {
			return fmt.Errorf("open geoip csv: %w", err)
		}
		loaded, err := geoip.LoadCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load geoip csv: %w", err)
		}
		countryTable = loaded
	}

	mlsStore := mls.New(s.DB())
	intakeSvc := intake.New(s.DB(), cfg.HTTP.MaxBodyBytes)

	var txStore geolocate.TransmitterStore = s
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		txStore = store.NewReadThroughCache(s, redis.NewClient(opts))
	}
	responder := geolocate.New(txStore, mlsStore, countryTable)

	srv := handler.NewServer(cfg, intakeSvc, responder, s, countryTable, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Shutdown(context.Background())
	}
}
