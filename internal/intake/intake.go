// Package intake accepts client submission batches and durably stores
// them as pending reports, independent of whether the processing
// engine ever successfully folds their contents (component D).
package intake

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/geobeacon/backend/internal/models"
)

// DefaultMaxBatchBytes is the default payload-size limit per batch.
const DefaultMaxBatchBytes = 500 * 1024 * 1024

// Ack is the durable-receipt response: intake succeeding never implies
// processing has run yet.
type Ack struct {
	Accepted int
	Dropped  int
}

// Service durably stores submission batches ahead of engine processing.
type Service struct {
	db            *sql.DB
	maxBatchBytes int64
}

func New(db *sql.DB, maxBatchBytes int64) *Service {
	if maxBatchBytes <= 0 {
		maxBatchBytes = DefaultMaxBatchBytes
	}
	return &Service{db: db, maxBatchBytes: maxBatchBytes}
}

// Submit inserts every report in the batch as a pending row, skipping
// the null-island sentinel and deduplicating on content hash. The
// whole batch is rejected if userAgent is not valid UTF-8 or the
// serialized payload exceeds the size limit.
func (s *Service) Submit(ctx context.Context, batch []models.Report, rawItems [][]byte, userAgent string) (Ack, error) {
	if !utf8.ValidString(userAgent) {
		return Ack{}, fmt.Errorf("intake: user-agent is not valid UTF-8")
	}

	var total int64
	for _, raw := range rawItems {
		total += int64(len(raw))
	}
	if total > s.maxBatchBytes {
		return Ack{}, fmt.Errorf("intake: batch of %d bytes exceeds limit of %d", total, s.maxBatchBytes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Ack{}, fmt.Errorf("intake: begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT IGNORE INTO reports (user_agent, raw, content_hash, state)
		VALUES (?, ?, ?, 'pending')
	`

	ack := Ack{}
	for i, r := range batch {
		if isNullIsland(r.Position.Latitude, r.Position.Longitude) {
			ack.Dropped++
			continue
		}
		raw := rawItems[i]
		hash := contentHash(r.Timestamp, r.Position.Latitude, r.Position.Longitude, userAgent)

		result, err := tx.ExecContext(ctx, insert, userAgent, raw, hash[:])
		if err != nil {
			return Ack{}, fmt.Errorf("intake: insert report: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return Ack{}, fmt.Errorf("intake: rows affected: %w", err)
		}
		if affected == 0 {
			ack.Dropped++
			continue
		}
		ack.Accepted++
	}

	if err := tx.Commit(); err != nil {
		return Ack{}, fmt.Errorf("intake: commit: %w", err)
	}
	return ack, nil
}

// isNullIsland rejects the (0,0)-adjacent sentinel fix some clients
// send when no real GNSS lock is available.
func isNullIsland(lat, lon float64) bool {
	return math.Abs(lat) <= 1 && math.Abs(lon) <= 1
}

func contentHash(timestamp int64, lat, lon float64, userAgent string) [32]byte {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(timestamp))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(lat))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(lon))
	h := sha256.New()
	h.Write(buf[:])
	h.Write([]byte(userAgent))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
