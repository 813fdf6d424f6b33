// Package mls is the read-only legacy cell location table consulted
// when the primary transmitter store has no row for a submitted cell.
package mls

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/geobeacon/backend/internal/models"
)

// Row is one pre-known cell location.
type Row struct {
	Lat, Lon, Radius float64
}

// Store is the read-only MLS table; it has no Upsert, only Lookup and
// the bulk Import used by the format-mls CLI subcommand.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Lookup(ctx context.Context, key models.CellKey) (*Row, error) {
	const query = `
		SELECT lat, lon, radius FROM mls_cells
		WHERE radio = ? AND country = ? AND network = ? AND area = ? AND cell_id = ? AND unit = ?
	`
	row := s.db.QueryRowContext(ctx, query, int32(key.Radio), key.Country, key.Network, key.Area, key.CellID, key.Unit)

	var r Row
	err := row.Scan(&r.Lat, &r.Lon, &r.Radius)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mls: lookup: %w", err)
	}
	return &r, nil
}

// ImportCSV reshapes a vendor CSV dump (radio,country,network,area,
// cell_id,unit,lat,lon,radius) into the mls_cells table, replacing any
// existing row for the same key.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 9

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mls: begin import transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO mls_cells (radio, country, network, area, cell_id, unit, lat, lon, radius)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE lat = VALUES(lat), lon = VALUES(lon), radius = VALUES(radius)
	`

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("mls: read csv record %d: %w", count, err)
		}

		radio, err := strconv.Atoi(record[0])
		if err != nil {
			return count, fmt.Errorf("mls: parse radio at record %d: %w", count, err)
		}
		country, _ := strconv.Atoi(record[1])
		network, _ := strconv.Atoi(record[2])
		area, _ := strconv.Atoi(record[3])
		cellID, err := strconv.ParseInt(record[4], 10, 64)
		if err != nil {
			return count, fmt.Errorf("mls: parse cell_id at record %d: %w", count, err)
		}
		unit, _ := strconv.Atoi(record[5])
		lat, err := strconv.ParseFloat(record[6], 64)
		if err != nil {
			return count, fmt.Errorf("mls: parse lat at record %d: %w", count, err)
		}
		lon, err := strconv.ParseFloat(record[7], 64)
		if err != nil {
			return count, fmt.Errorf("mls: parse lon at record %d: %w", count, err)
		}
		radius, err := strconv.ParseFloat(record[8], 64)
		if err != nil {
			return count, fmt.Errorf("mls: parse radius at record %d: %w", count, err)
		}

		if _, err := tx.ExecContext(ctx, insert, radio, country, network, area, cellID, unit, lat, lon, radius); err != nil {
			return count, fmt.Errorf("mls: insert record %d: %w", count, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, fmt.Errorf("mls: commit import: %w", err)
	}
	return count, nil
}
