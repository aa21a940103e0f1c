// Package archive persists the stream host's event feed into the
// append-only operation archive used for offline audit.
package archive

import (
	"context"
	"log"
	"time"

	"flow-vault/internal/domain"
	"flow-vault/internal/observability"
	"flow-vault/internal/storage"
	"flow-vault/internal/streamhost"
)

// Archiver drains a stream-event channel into a StreamOpStore in batches.
type Archiver struct {
	events        <-chan streamhost.StreamEvent
	store         storage.StreamOpStore
	batchSize     int
	flushInterval time.Duration
	logger        *log.Logger

	buffer []*domain.StreamOp
}

// ArchiverOptions contains configuration for creating an Archiver.
type ArchiverOptions struct {
	Events        <-chan streamhost.StreamEvent
	Store         storage.StreamOpStore
	BatchSize     int           // Default: 100
	FlushInterval time.Duration // Default: 5s
	Logger        *log.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(opts ArchiverOptions) *Archiver {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}

	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Archiver{
		events:        opts.Events,
		store:         opts.Store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Run drains the event channel until it closes or the context is
// cancelled, flushing the remaining buffer on the way out.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush(context.Background())
			return ctx.Err()

		case event, ok := <-a.events:
			if !ok {
				a.flush(ctx)
				return nil
			}
			a.buffer = append(a.buffer, &domain.StreamOp{
				Kind:      event.Kind,
				Asset:     event.Asset,
				From:      domain.Address(event.From),
				To:        domain.Address(event.To),
				Rate:      event.Rate,
				Timestamp: event.Timestamp,
			})
			observability.RecordStreamOp(event.Kind)
			if len(a.buffer) >= a.batchSize {
				a.flush(ctx)
			}

		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

// flush writes the buffered operations. The archive is best-effort: a
// failed write is logged and the batch is kept for the next attempt.
func (a *Archiver) flush(ctx context.Context) {
	if len(a.buffer) == 0 {
		return
	}

	if err := a.store.InsertBulk(ctx, a.buffer); err != nil {
		a.logger.Printf("Failed to archive %d stream ops: %v", len(a.buffer), err)
		return
	}

	a.buffer = a.buffer[:0]
}
