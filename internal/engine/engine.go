// Package engine implements the processing engine: the one-shot batch
// job that turns pending reports into transmitter estimates and an
// ever-growing map-tile set (component E).
package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	h3 "github.com/uber/h3-go/v4"

	"github.com/geobeacon/backend/internal/codec"
	"github.com/geobeacon/backend/internal/geo"
	"github.com/geobeacon/backend/internal/models"
	"github.com/geobeacon/backend/internal/store"
)

// BatchSize is the number of pending reports pulled per transaction.
const BatchSize = 10000

// StatsConfig mirrors the optional [stats] table of the config file.
type StatsConfig struct {
	ArchivedReports int64
}

// Engine runs the processing loop against a transmitter store.
type Engine struct {
	store        *store.Store
	h3Resolution int
	stats        *StatsConfig
	log          *logrus.Entry
}

func New(s *store.Store, h3Resolution int, stats *StatsConfig, log *logrus.Entry) *Engine {
	return &Engine{store: s, h3Resolution: h3Resolution, stats: stats, log: log}
}

// Summary reports what one Run accomplished, for CLI/operator output.
type Summary struct {
	ReportsProcessed int
	ReportsErrored   int
	TransmittersTouched int
	TilesTouched     int
}

type pendingReport struct {
	id  int64
	raw []byte
}

// Run drains the pending queue to exhaustion, one bounded transaction
// at a time, then writes aggregate stats if configured.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var total Summary
	for {
		batch, err := e.runBatch(ctx)
		if err != nil {
			return total, err
		}
		total.ReportsProcessed += batch.ReportsProcessed
		total.ReportsErrored += batch.ReportsErrored
		total.TransmittersTouched += batch.TransmittersTouched
		total.TilesTouched += batch.TilesTouched
		if batch.ReportsProcessed+batch.ReportsErrored == 0 {
			break
		}
	}

	if e.stats != nil {
		if err := e.writeStats(ctx); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Engine) runBatch(ctx context.Context) (Summary, error) {
	var summary Summary

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return summary, err
	}
	defer tx.Rollback()

	rows, err := fetchPending(ctx, tx, BatchSize)
	if err != nil {
		return summary, fmt.Errorf("engine: fetch pending reports: %w", err)
	}
	if len(rows) == 0 {
		return summary, tx.Commit()
	}

	modified := make(map[models.TransmitterKey]models.Estimate)
	touchedTiles := make(map[h3.Cell]struct{})

	for _, row := range rows {
		report, err := codec.Decode(row.raw)
		if err != nil {
			if err := markErrored(ctx, tx, row.id, err.Error()); err != nil {
				return summary, fmt.Errorf("engine: mark report %d errored: %w", row.id, err)
			}
			summary.ReportsErrored++
			continue
		}
		if err := markProcessed(ctx, tx, row.id); err != nil {
			return summary, fmt.Errorf("engine: mark report %d processed: %w", row.id, err)
		}
		summary.ReportsProcessed++

		for _, obs := range codec.Observations(report) {
			if err := e.foldObservation(ctx, tx, modified, report.Position, obs); err != nil {
				return summary, err
			}
		}

		cell := h3.LatLngToCell(h3.LatLng{Lat: report.Position.Latitude, Lng: report.Position.Longitude}, e.h3Resolution)
		touchedTiles[cell] = struct{}{}
	}

	for key, est := range modified {
		if err := e.store.Upsert(ctx, tx, key, est); err != nil {
			return summary, fmt.Errorf("engine: upsert %s: %w", key, err)
		}
	}
	for cell := range touchedTiles {
		if err := insertTile(ctx, tx, uint64(cell)); err != nil {
			return summary, fmt.Errorf("engine: insert tile: %w", err)
		}
	}

	summary.TransmittersTouched = len(modified)
	summary.TilesTouched = len(touchedTiles)

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("engine: commit batch: %w", err)
	}
	return summary, nil
}

// foldObservation reverse-dead-reckons and weights one observation,
// then folds it into modified (which may already hold an update for
// this key from earlier in the same batch) or the store's existing
// estimate, or starts a fresh one.
func (e *Engine) foldObservation(ctx context.Context, tx *sql.Tx, modified map[models.TransmitterKey]models.Estimate, pos models.Position, obs codec.Observation) error {
	rssi := geo.DefaultRSSIDBm
	if obs.SignalStrength != nil {
		rssi = *obs.SignalStrength
	}

	point := reverseDeadReckon(pos, obs)

	distFromTx := geo.DistanceFromTransmitter(rssi)
	posAccuracy := 0.0
	if pos.Accuracy != nil {
		posAccuracy = *pos.Accuracy
	}
	accuracy := distFromTx + posAccuracy

	weight := geo.SignalWeight(rssi) * ageWeight(pos, obs) * gnssWeight(pos)

	if existing, ok := modified[obs.Key]; ok {
		modified[obs.Key] = existing.WeightedUpdate(point.Lat, point.Lon, accuracy, weight)
		return nil
	}

	existing, err := e.store.Lookup(ctx, tx, obs.Key)
	if err != nil {
		return fmt.Errorf("engine: lookup %s: %w", obs.Key, err)
	}
	if existing != nil {
		modified[obs.Key] = existing.WeightedUpdate(point.Lat, point.Lon, accuracy, weight)
		return nil
	}

	modified[obs.Key] = models.NewEstimate(point.Lat, point.Lon, accuracy, weight)
	return nil
}

// reverseDeadReckon displaces the report's position backwards along
// the reported heading to estimate where the device was when the
// transmitter was actually observed. It falls back to the fix
// verbatim when speed, heading, or either age is unknown.
func reverseDeadReckon(pos models.Position, obs codec.Observation) geo.Point {
	fix := geo.Point{Lat: pos.Latitude, Lon: pos.Longitude}
	if pos.Speed == nil || pos.Heading == nil || pos.Age == nil || obs.Age == nil {
		return fix
	}
	deltaSeconds := float64(*obs.Age-*pos.Age) / 1000
	displacement := -(*pos.Speed * deltaSeconds)
	return geo.RhumbDestination(fix, *pos.Heading, displacement)
}

func ageWeight(pos models.Position, obs codec.Observation) float64 {
	if pos.Speed == nil || pos.Age == nil || obs.Age == nil {
		return 1 // 10^0: no discount when the inputs needed to compute one are missing
	}
	distanceSinceScan := *pos.Speed * float64(*obs.Age-*pos.Age) / 1000
	return geo.AgeWeight(distanceSinceScan)
}

func gnssWeight(pos models.Position) float64 {
	acc := geo.DefaultGNSSAccuracyM
	if pos.Accuracy != nil {
		acc = *pos.Accuracy
	}
	return geo.GNSSWeight(acc)
}

func fetchPending(ctx context.Context, tx *sql.Tx, limit int) ([]pendingReport, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, raw FROM reports
		WHERE state = 'pending'
		ORDER BY id
		LIMIT ?
		FOR UPDATE
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pendingReport
	for rows.Next() {
		var r pendingReport
		if err := rows.Scan(&r.id, &r.raw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func markProcessed(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE reports SET state = 'processed' WHERE id = ?`, id)
	return err
}

func markErrored(ctx context.Context, tx *sql.Tx, id int64, message string) error {
	_, err := tx.ExecContext(ctx, `UPDATE reports SET state = 'errored', error_message = ? WHERE id = ?`, message, id)
	return err
}

func insertTile(ctx context.Context, tx *sql.Tx, index uint64) error {
	_, err := tx.ExecContext(ctx, `INSERT IGNORE INTO map_tiles (h3_index) VALUES (?)`, index)
	return err
}

func (e *Engine) writeStats(ctx context.Context) error {
	counts, err := e.store.CountByKind(ctx, e.store.DB())
	if err != nil {
		return fmt.Errorf("engine: count by kind: %w", err)
	}
	var totalReports int64
	if err := e.store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&totalReports); err != nil {
		return fmt.Errorf("engine: count reports: %w", err)
	}
	totalReports += e.stats.ArchivedReports

	_, err = e.store.DB().ExecContext(ctx, `
		INSERT INTO stats (id, total_wifi, total_cell, total_bluetooth, total_countries, total_reports)
		VALUES (1, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			total_wifi = VALUES(total_wifi), total_cell = VALUES(total_cell),
			total_bluetooth = VALUES(total_bluetooth), total_countries = VALUES(total_countries),
			total_reports = VALUES(total_reports)
	`, counts.Wifi, counts.Cell, counts.Bluetooth, counts.DistinctCellCountries, totalReports)
	if err != nil {
		return fmt.Errorf("engine: write stats: %w", err)
	}

	e.log.WithField("total_wifi", counts.Wifi).
		WithField("total_cell", counts.Cell).
		WithField("total_bluetooth", counts.Bluetooth).
		WithField("total_reports", totalReports).
		Info("wrote aggregate stats")
	return nil
}
