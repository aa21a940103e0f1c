package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// IssuanceEventStore implements storage.IssuanceEventStore using PostgreSQL.
type IssuanceEventStore struct {
	pool *Pool
}

// NewIssuanceEventStore creates a new IssuanceEventStore.
func NewIssuanceEventStore(pool *Pool) *IssuanceEventStore {
	return &IssuanceEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IssuanceEventStore = (*IssuanceEventStore)(nil)

// Insert adds a new issuance event. Returns ErrDuplicateKey if token_id exists.
func (s *IssuanceEventStore) Insert(ctx context.Context, e *domain.IssuanceEvent) (err error) {
	defer recordQuery("issuance_event_insert", time.Now(), &err)

	if e == nil || e.Receiver == "" || e.FlowRate <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO issuance_events (token_id, receiver, flow_rate, timestamp)
		VALUES ($1, $2, $3, $4)
	`

	_, err = s.pool.Exec(ctx, query,
		int64(e.TokenID), string(e.Receiver), e.FlowRate, e.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert issuance event: %w", err)
	}
	return nil
}

// GetByReceiver retrieves all events for a receiver, ordered by timestamp ASC.
func (s *IssuanceEventStore) GetByReceiver(ctx context.Context, receiver domain.Address) (events []*domain.IssuanceEvent, err error) {
	defer recordQuery("issuance_event_get_by_receiver", time.Now(), &err)

	query := `
		SELECT token_id, receiver, flow_rate, timestamp
		FROM issuance_events
		WHERE receiver = $1
		ORDER BY timestamp ASC, token_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(receiver))
	if err != nil {
		return nil, fmt.Errorf("get issuance events by receiver: %w", err)
	}
	defer rows.Close()

	return scanIssuanceEvents(rows)
}

// GetAll retrieves all events, ordered by token_id ASC.
func (s *IssuanceEventStore) GetAll(ctx context.Context) (events []*domain.IssuanceEvent, err error) {
	defer recordQuery("issuance_event_get_all", time.Now(), &err)

	query := `
		SELECT token_id, receiver, flow_rate, timestamp
		FROM issuance_events
		ORDER BY token_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all issuance events: %w", err)
	}
	defer rows.Close()

	return scanIssuanceEvents(rows)
}

// scanIssuanceEvents scans multiple rows into a slice of IssuanceEvent.
func scanIssuanceEvents(rows pgx.Rows) ([]*domain.IssuanceEvent, error) {
	var events []*domain.IssuanceEvent

	for rows.Next() {
		var e domain.IssuanceEvent
		var id int64
		var receiver string

		if err := rows.Scan(&id, &receiver, &e.FlowRate, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan issuance event row: %w", err)
		}
		e.TokenID = domain.TokenID(id)
		e.Receiver = domain.Address(receiver)

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issuance event rows: %w", err)
	}

	return events, nil
}
