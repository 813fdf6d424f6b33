package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	h3 "github.com/uber/h3-go/v4"
	"github.com/spf13/cobra"

	"github.com/geobeacon/backend/internal/codec"
)

// bulkReport is the cold-storage archive shape: one JSON-line per
// submitted report, carrying its raw body unmodified.
type bulkReport struct {
	ID         int64           `json:"id"`
	ReceivedAt string          `json:"submitted_at"`
	UserAgent  string          `json:"user_agent"`
	Raw        json.RawMessage `json:"raw"`
}

func newBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "bulk archive operations over the reports table",
	}
	cmd.AddCommand(newBulkExportCmd(), newBulkParseCmd(), newBulkMapCellsCmd())
	return cmd
}

func newBulkExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "stream every report as JSON-lines to stdout, for cold storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkExport()
		},
	}
}

func runBulkExport() error {
	_, _, s, err := loadAll()
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.DB().QueryContext(context.Background(),
		`SELECT id, received_at, user_agent, raw FROM reports ORDER BY id`)
	if err != nil {
		return fmt.Errorf("bulk export: query: %w", err)
	}
	defer rows.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	enc := json.NewEncoder(w)
	for rows.Next() {
		var r bulkReport
		var raw []byte
		if err := rows.Scan(&r.ID, &r.ReceivedAt, &r.UserAgent, &raw); err != nil {
			return fmt.Errorf("bulk export: scan: %w", err)
		}
		r.Raw = raw
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("bulk export: encode: %w", err)
		}
	}
	return rows.Err()
}

func newBulkParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "re-parse a JSON-lines archive from stdin to surface codec errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkParse()
		},
	}
}

func runBulkParse() error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	enc := json.NewEncoder(os.Stdout)
	for scanner.Scan() {
		var bulk bulkReport
		if err := json.Unmarshal(scanner.Bytes(), &bulk); err != nil {
			_ = enc.Encode(map[string]any{"error": err.Error()})
			continue
		}
		if _, err := codec.Decode(bulk.Raw); err != nil {
			_ = enc.Encode(map[string]any{"error": err.Error(), "report": bulk})
		}
	}
	return scanner.Err()
}

func newBulkMapCellsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map-cells",
		Short: "recompute the H3 tile set from a JSON-lines archive on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkMapCells()
		},
	}
}

func runBulkMapCells() error {
	cfg, _, s, err := loadAll()
	if err != nil {
		return err
	}
	defer s.Close()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	cells := make(map[h3.Cell]struct{})
	for scanner.Scan() {
		var bulk bulkReport
		if err := json.Unmarshal(scanner.Bytes(), &bulk); err != nil {
			continue
		}
		report, err := codec.Decode(bulk.Raw)
		if err != nil {
			continue
		}
		cell := h3.LatLngToCell(h3.LatLng{Lat: report.Position.Latitude, Lng: report.Position.Longitude}, cfg.Geo.H3Resolution)
		cells[cell] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("bulk map-cells: read stdin: %w", err)
	}

	ctx := context.Background()
	for cell := range cells {
		if _, err := s.DB().ExecContext(ctx, `INSERT IGNORE INTO map_tiles (h3_index) VALUES (?)`, uint64(cell)); err != nil {
			return fmt.Errorf("bulk map-cells: insert tile: %w", err)
		}
	}
	return nil
}
