package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geobeacon/backend/internal/mls"
)

func newFormatMLSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format-mls",
		Short: "reshape a vendor MLS CSV dump on stdin directly into the mls_cells table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormatMLS()
		},
	}
}

func runFormatMLS() error {
	_, log, s, err := loadAll()
	if err != nil {
		return err
	}
	defer s.Close()

	store := mls.New(s.DB())
	count, err := store.ImportCSV(context.Background(), os.Stdin)
	if err != nil {
		return fmt.Errorf("format-mls: %w", err)
	}
	log.WithField("records", count).Info("mls import complete")
	return nil
}
