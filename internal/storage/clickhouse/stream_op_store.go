package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// StreamOpStore implements storage.StreamOpStore using ClickHouse. The
// archive is append-only; MergeTree does not enforce uniqueness and the
// store does not pretend otherwise.
type StreamOpStore struct {
	conn *Conn
}

// NewStreamOpStore creates a new StreamOpStore.
func NewStreamOpStore(conn *Conn) *StreamOpStore {
	return &StreamOpStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StreamOpStore = (*StreamOpStore)(nil)

// InsertBulk adds multiple operations in one batch.
func (s *StreamOpStore) InsertBulk(ctx context.Context, ops []*domain.StreamOp) (err error) {
	defer recordQuery("stream_op_insert_bulk", time.Now(), &err)

	if len(ops) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stream_ops (
			kind, asset, from_addr, to_addr, rate, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, op := range ops {
		err = batch.Append(
			op.Kind, op.Asset, string(op.From), string(op.To),
			op.Rate, op.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByReceiver retrieves all operations targeting an address, ordered by timestamp ASC.
func (s *StreamOpStore) GetByReceiver(ctx context.Context, to domain.Address) (ops []*domain.StreamOp, err error) {
	defer recordQuery("stream_op_get_by_receiver", time.Now(), &err)

	query := `
		SELECT kind, asset, from_addr, to_addr, rate, timestamp
		FROM stream_ops
		WHERE to_addr = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, string(to))
	if err != nil {
		return nil, fmt.Errorf("query by receiver: %w", err)
	}
	defer rows.Close()

	return scanStreamOps(rows)
}

// GetByTimeRange retrieves operations within [start, end] (inclusive).
func (s *StreamOpStore) GetByTimeRange(ctx context.Context, start, end int64) (ops []*domain.StreamOp, err error) {
	defer recordQuery("stream_op_get_by_time_range", time.Now(), &err)

	query := `
		SELECT kind, asset, from_addr, to_addr, rate, timestamp
		FROM stream_ops
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanStreamOps(rows)
}

// scanStreamOps scans rows into a slice of StreamOp.
func scanStreamOps(rows driver.Rows) ([]*domain.StreamOp, error) {
	var ops []*domain.StreamOp

	for rows.Next() {
		var op domain.StreamOp
		var from, to string

		if err := rows.Scan(&op.Kind, &op.Asset, &from, &to, &op.Rate, &op.Timestamp); err != nil {
			return nil, fmt.Errorf("scan stream op row: %w", err)
		}
		op.From = domain.Address(from)
		op.To = domain.Address(to)

		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream op rows: %w", err)
	}

	return ops, nil
}
