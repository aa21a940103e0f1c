package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// TokenRecordStore implements storage.TokenRecordStore using PostgreSQL.
type TokenRecordStore struct {
	pool *Pool
}

// NewTokenRecordStore creates a new TokenRecordStore.
func NewTokenRecordStore(pool *Pool) *TokenRecordStore {
	return &TokenRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenRecordStore = (*TokenRecordStore)(nil)

// Insert adds a new token record. Returns ErrDuplicateKey if token_id exists.
func (s *TokenRecordStore) Insert(ctx context.Context, r *domain.TokenRecord) (err error) {
	defer recordQuery("token_record_insert", time.Now(), &err)

	if r == nil || r.FlowRate <= 0 || r.DepositAmount <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_records (token_id, flow_rate, deposit_amount, minted_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		int64(r.TokenID), r.FlowRate, r.DepositAmount, r.MintedAt, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by token ID. Returns ErrNotFound if not exists.
func (s *TokenRecordStore) GetByID(ctx context.Context, tokenID domain.TokenID) (rec *domain.TokenRecord, err error) {
	defer recordQuery("token_record_get_by_id", time.Now(), &err)

	query := `
		SELECT token_id, flow_rate, deposit_amount, minted_at, created_at
		FROM token_records
		WHERE token_id = $1
	`

	row := s.pool.QueryRow(ctx, query, int64(tokenID))
	r, err := scanTokenRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token record by id: %w", err)
	}
	return r, nil
}

// Delete removes a record. Returns ErrNotFound if none exists.
func (s *TokenRecordStore) Delete(ctx context.Context, tokenID domain.TokenID) (err error) {
	defer recordQuery("token_record_delete", time.Now(), &err)

	query := `DELETE FROM token_records WHERE token_id = $1`

	tag, err := s.pool.Exec(ctx, query, int64(tokenID))
	if err != nil {
		return fmt.Errorf("delete token record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAll retrieves all live records, ordered by token_id ASC.
func (s *TokenRecordStore) GetAll(ctx context.Context) (records []*domain.TokenRecord, err error) {
	defer recordQuery("token_record_get_all", time.Now(), &err)

	query := `
		SELECT token_id, flow_rate, deposit_amount, minted_at, created_at
		FROM token_records
		ORDER BY token_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all token records: %w", err)
	}
	defer rows.Close()

	return scanTokenRecords(rows)
}

// scanTokenRecord scans a single row into a TokenRecord.
func scanTokenRecord(row pgx.Row) (*domain.TokenRecord, error) {
	var r domain.TokenRecord
	var id int64

	err := row.Scan(&id, &r.FlowRate, &r.DepositAmount, &r.MintedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.TokenID = domain.TokenID(id)

	return &r, nil
}

// scanTokenRecords scans multiple rows into a slice of TokenRecord.
func scanTokenRecords(rows pgx.Rows) ([]*domain.TokenRecord, error) {
	var records []*domain.TokenRecord

	for rows.Next() {
		var r domain.TokenRecord
		var id int64

		if err := rows.Scan(&id, &r.FlowRate, &r.DepositAmount, &r.MintedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token record row: %w", err)
		}
		r.TokenID = domain.TokenID(id)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token record rows: %w", err)
	}

	return records, nil
}
