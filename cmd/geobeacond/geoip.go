package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/geobeacon/backend/internal/geoip"
)

var geoipOutputPath string

func newImportGeoIPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-geoip [input.csv]",
		Short: "validate an IPv4/IPv6 country CSV feed and install it as the configured geoip.csv_path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportGeoIP(args[0])
		},
	}
	cmd.Flags().StringVar(&geoipOutputPath, "output", "", "destination path (defaults to geoip.csv_path from the config file)")
	return cmd
}

func runImportGeoIP(inputPath string) error {
	cfg, err := loadConfigOnly()
	if err != nil {
		return err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("import-geoip: open input: %w", err)
	}
	defer in.Close()

	table, err := geoip.LoadCSV(in)
	if err != nil {
		return fmt.Errorf("import-geoip: validate: %w", err)
	}

	dest := geoipOutputPath
	if dest == "" {
		dest = cfg.GeoIP.CSVPath
	}
	if dest == "" {
		return fmt.Errorf("import-geoip: no destination: pass --output or set geoip.csv_path in the config")
	}

	if _, err := in.Seek(0, 0); err != nil {
		return fmt.Errorf("import-geoip: rewind input: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("import-geoip: create output: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("import-geoip: copy: %w", err)
	}

	fmt.Printf("validated and installed %d country ranges at %s\n", table.Len(), dest)
	return nil
}
