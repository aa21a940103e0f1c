package memory

import (
	"context"
	"errors"
	"testing"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

func TestStreamOpStore_InsertBulkAndQuery(t *testing.T) {
	store := NewStreamOpStore()
	ctx := context.Background()

	ops := []*domain.StreamOp{
		{Kind: domain.StreamOpCreate, Asset: "USDX", From: "vault", To: "holderA", Rate: 100, Timestamp: 1000},
		{Kind: domain.StreamOpUpdate, Asset: "USDX", From: "vault", To: "holderA", Rate: 250, Timestamp: 2000},
		{Kind: domain.StreamOpDelete, Asset: "USDX", From: "vault", To: "holderB", Rate: 0, Timestamp: 3000},
	}

	if err := store.InsertBulk(ctx, ops); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByReceiver(ctx, "holderA")
	if err != nil {
		t.Fatalf("GetByReceiver failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 ops for holderA, got %d", len(got))
	}
	if got[1].Kind != domain.StreamOpUpdate || got[1].Rate != 250 {
		t.Errorf("Unexpected second op: %+v", got[1])
	}
}

func TestStreamOpStore_GetByTimeRange(t *testing.T) {
	store := NewStreamOpStore()
	ctx := context.Background()

	ops := []*domain.StreamOp{
		{Kind: domain.StreamOpCreate, To: "a", Timestamp: 1000},
		{Kind: domain.StreamOpCreate, To: "b", Timestamp: 2000},
		{Kind: domain.StreamOpCreate, To: "c", Timestamp: 3000},
	}
	if err := store.InsertBulk(ctx, ops); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 ops in range, got %d", len(got))
	}
}

func TestStreamOpStore_InvalidInput(t *testing.T) {
	store := NewStreamOpStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.StreamOp{{Kind: ""}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
