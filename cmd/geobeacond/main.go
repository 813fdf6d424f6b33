// Command geobeacond runs the geobeacon backend: the submission/
// geolocate HTTP server, the offline processing engine, and a set of
// maintenance subcommands, all reading one TOML config file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "geobeacond",
		Short: "geobeacon crowdsourced transmitter geolocation backend",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the TOML config file")

	root.AddCommand(
		newServeCmd(),
		newProcessCmd(),
		newBulkCmd(),
		newFormatMLSCmd(),
		newMapCmd(),
		newImportGeoIPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
