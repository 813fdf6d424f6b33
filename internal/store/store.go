// Package store persists and looks up transmitter estimates, backed by
// three tables keyed by the composite cell identifier, the Wi-Fi MAC,
// and the Bluetooth MAC respectively. All operations are idempotent
// under retry. Lookup, Upsert and CountByKind run through a
// caller-supplied Queryer so the engine can fold transmitter writes into
// the same transaction as the report state transition; LookupDefault
// and ListCellsInArea use the store's own connection pool.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/geobeacon/backend/internal/geo"
	"github.com/geobeacon/backend/internal/models"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting every method
// below run standalone or inside the engine's single batch transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the transmitter store contract (component C).
type Store struct {
	db *sql.DB
}

// New opens a MySQL-backed store and tunes its connection pool the way
// the rest of this module's repositories do.
func New(dsn string, maxOpen, maxIdle int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// BeginTx opens the shared transaction the engine folds report-state
// writes and transmitter upserts into.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	return tx, nil
}

// LookupDefault looks up key outside of any particular transaction,
// the shape callers outside the engine (the geolocate responder) use.
func (s *Store) LookupDefault(ctx context.Context, key models.TransmitterKey) (*models.Estimate, error) {
	return s.Lookup(ctx, s.db, key)
}

// Lookup returns the current estimate for key, if one exists.
func (s *Store) Lookup(ctx context.Context, q Queryer, key models.TransmitterKey) (*models.Estimate, error) {
	switch key.Kind {
	case models.KindCell:
		return s.lookupCell(ctx, q, key.Cell)
	case models.KindWifi:
		return s.lookupMAC(ctx, q, "wifi_aps", key.MAC)
	default:
		return s.lookupMAC(ctx, q, "bluetooth_beacons", key.MAC)
	}
}

// Upsert writes the full row for key, replacing bbox/lat/lon/accuracy/
// total_weight with the caller-supplied estimate on conflict.
func (s *Store) Upsert(ctx context.Context, q Queryer, key models.TransmitterKey, est models.Estimate) error {
	switch key.Kind {
	case models.KindCell:
		return s.upsertCell(ctx, q, key.Cell, est)
	case models.KindWifi:
		return s.upsertMAC(ctx, q, "wifi_aps", key.MAC, est)
	default:
		return s.upsertMAC(ctx, q, "bluetooth_beacons", key.MAC, est)
	}
}

func (s *Store) lookupCell(ctx context.Context, q Queryer, k models.CellKey) (*models.Estimate, error) {
	const query = `
		SELECT min_lat, min_lon, max_lat, max_lon, lat, lon, accuracy, total_weight
		FROM cell_towers
		WHERE radio = ? AND country = ? AND network = ? AND area = ? AND cell_id = ? AND unit = ?
	`
	row := q.QueryRowContext(ctx, query, int32(k.Radio), k.Country, k.Network, k.Area, k.CellID, k.Unit)
	return scanEstimate(row)
}

func (s *Store) lookupMAC(ctx context.Context, q Queryer, table string, mac models.MAC) (*models.Estimate, error) {
	query := fmt.Sprintf(`
		SELECT min_lat, min_lon, max_lat, max_lon, lat, lon, accuracy, total_weight
		FROM %s WHERE mac = ?
	`, table)
	row := q.QueryRowContext(ctx, query, mac[:])
	return scanEstimate(row)
}

func scanEstimate(row *sql.Row) (*models.Estimate, error) {
	var e models.Estimate
	err := row.Scan(&e.Bounds.MinLat, &e.Bounds.MinLon, &e.Bounds.MaxLat, &e.Bounds.MaxLon,
		&e.Lat, &e.Lon, &e.Accuracy, &e.TotalWeight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan estimate: %w", err)
	}
	return &e, nil
}

func (s *Store) upsertCell(ctx context.Context, q Queryer, k models.CellKey, e models.Estimate) error {
	const query = `
		INSERT INTO cell_towers (radio, country, network, area, cell_id, unit,
			min_lat, min_lon, max_lat, max_lon, lat, lon, accuracy, total_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			min_lat = VALUES(min_lat), min_lon = VALUES(min_lon),
			max_lat = VALUES(max_lat), max_lon = VALUES(max_lon),
			lat = VALUES(lat), lon = VALUES(lon),
			accuracy = VALUES(accuracy), total_weight = VALUES(total_weight)
	`
	_, err := q.ExecContext(ctx, query, int32(k.Radio), k.Country, k.Network, k.Area, k.CellID, k.Unit,
		e.Bounds.MinLat, e.Bounds.MinLon, e.Bounds.MaxLat, e.Bounds.MaxLon,
		e.Lat, e.Lon, e.Accuracy, e.TotalWeight)
	if err != nil {
		return fmt.Errorf("store: upsert cell: %w", err)
	}
	return nil
}

func (s *Store) upsertMAC(ctx context.Context, q Queryer, table string, mac models.MAC, e models.Estimate) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (mac, min_lat, min_lon, max_lat, max_lon, lat, lon, accuracy, total_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			min_lat = VALUES(min_lat), min_lon = VALUES(min_lon),
			max_lat = VALUES(max_lat), max_lon = VALUES(max_lon),
			lat = VALUES(lat), lon = VALUES(lon),
			accuracy = VALUES(accuracy), total_weight = VALUES(total_weight)
	`, table)
	_, err := q.ExecContext(ctx, query, mac[:], e.Bounds.MinLat, e.Bounds.MinLon, e.Bounds.MaxLat, e.Bounds.MaxLon,
		e.Lat, e.Lon, e.Accuracy, e.TotalWeight)
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", table, err)
	}
	return nil
}

// CellRow is one row of the cell-area bulk export.
type CellRow struct {
	CellID               int64
	Unit                 int32
	Lon, Lat             float64
	RangeM               float64
	CreatedAt, UpdatedAt time.Time
}

// ListCellsInArea returns every known cell tower for one radio/country/
// network/area, for the cell-area CSV export endpoint.
func (s *Store) ListCellsInArea(ctx context.Context, radio models.CellRadio, country, network, area int32) ([]CellRow, error) {
	const query = `
		SELECT cell_id, unit, min_lat, min_lon, max_lat, max_lon, lat, lon, created_at, updated_at
		FROM cell_towers
		WHERE radio = ? AND country = ? AND network = ? AND area = ?
		ORDER BY cell_id, unit
	`
	rows, err := s.db.QueryContext(ctx, query, int32(radio), country, network, area)
	if err != nil {
		return nil, fmt.Errorf("store: list cells in area: %w", err)
	}
	defer rows.Close()

	var out []CellRow
	for rows.Next() {
		var r CellRow
		var minLat, minLon, maxLat, maxLon float64
		if err := rows.Scan(&r.CellID, &r.Unit, &minLat, &minLon, &maxLat, &maxLon, &r.Lat, &r.Lon, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan cell row: %w", err)
		}
		center := geo.Point{Lat: (minLat + maxLat) / 2, Lon: (minLon + maxLon) / 2}
		corner := geo.Point{Lat: minLat, Lon: minLon}
		r.RangeM = geo.Haversine(center, corner)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate cell rows: %w", err)
	}
	return out, nil
}

// CountByKind reports the current population, used by the engine's
// stats write and by operational dashboards.
func (s *Store) CountByKind(ctx context.Context, q Queryer) (models.KindCounts, error) {
	var c models.KindCounts
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM wifi_aps`).Scan(&c.Wifi); err != nil {
		return c, fmt.Errorf("store: count wifi: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bluetooth_beacons`).Scan(&c.Bluetooth); err != nil {
		return c, fmt.Errorf("store: count bluetooth: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM cell_towers`).Scan(&c.Cell); err != nil {
		return c, fmt.Errorf("store: count cell: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(DISTINCT country) FROM cell_towers`).Scan(&c.DistinctCellCountries); err != nil {
		return c, fmt.Errorf("store: count cell countries: %w", err)
	}
	return c, nil
}
