package registry

import (
	"context"
	"errors"
	"testing"

	"flow-vault/internal/domain"
)

// recordingHook captures hook invocations and can be set to fail either phase.
type recordingHook struct {
	validations []Ownership
	applies     []Ownership
	validateErr error
	applyErr    error
}

func (h *recordingHook) ValidateTransfer(_ context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error {
	h.validations = append(h.validations, Ownership{TokenID: tokenID, Owner: newOwner})
	if h.validateErr != nil {
		return h.validateErr
	}
	_ = oldOwner
	return nil
}

func (h *recordingHook) ApplyTransfer(_ context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error {
	h.applies = append(h.applies, Ownership{TokenID: tokenID, Owner: newOwner})
	if h.applyErr != nil {
		return h.applyErr
	}
	_ = oldOwner
	return nil
}

func TestInMem_MintTransferBurn(t *testing.T) {
	reg := NewInMem("Deposit Stream Token", "DST")
	hook := &recordingHook{}
	reg.SetHook(hook)
	ctx := context.Background()

	if err := reg.Mint(ctx, "alice", 0); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	owner, err := reg.OwnerOf(ctx, 0)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if owner != "alice" {
		t.Errorf("Expected owner alice, got %s", owner)
	}

	if err := reg.Transfer(ctx, "alice", "bob", 0); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	owner, _ = reg.OwnerOf(ctx, 0)
	if owner != "bob" {
		t.Errorf("Expected owner bob, got %s", owner)
	}

	if err := reg.Burn(ctx, 0); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	if _, err := reg.OwnerOf(ctx, 0); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound after burn, got %v", err)
	}

	// Hook ran once per ownership change, validate before apply.
	if len(hook.validations) != 3 || len(hook.applies) != 3 {
		t.Errorf("Expected 3 validations and 3 applies, got %d/%d", len(hook.validations), len(hook.applies))
	}
}

func TestInMem_HookFailureAbortsChange(t *testing.T) {
	reg := NewInMem("Deposit Stream Token", "DST")
	hook := &recordingHook{}
	reg.SetHook(hook)
	ctx := context.Background()

	if err := reg.Mint(ctx, "alice", 0); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	hookErr := errors.New("receiver rejected")
	hook.validateErr = hookErr

	if err := reg.Transfer(ctx, "alice", "bob", 0); !errors.Is(err, hookErr) {
		t.Errorf("Expected hook error, got %v", err)
	}

	// Ownership unchanged; apply never ran for the failed transfer.
	owner, _ := reg.OwnerOf(ctx, 0)
	if owner != "alice" {
		t.Errorf("Expected owner alice after failed transfer, got %s", owner)
	}
	if len(hook.applies) != 1 {
		t.Errorf("Expected apply only for the mint, got %d applies", len(hook.applies))
	}
}

func TestInMem_ApplyFailureAbortsChange(t *testing.T) {
	reg := NewInMem("Deposit Stream Token", "DST")
	hook := &recordingHook{}
	reg.SetHook(hook)
	ctx := context.Background()

	if err := reg.Mint(ctx, "alice", 0); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	hook.applyErr = errors.New("stream host rejected")
	if err := reg.Burn(ctx, 0); err == nil {
		t.Fatal("Expected burn to fail when apply fails")
	}

	// Token still owned after the failed burn.
	owner, err := reg.OwnerOf(ctx, 0)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if owner != "alice" {
		t.Errorf("Expected owner alice, got %s", owner)
	}
}

func TestInMem_TransferChecks(t *testing.T) {
	reg := NewInMem("Deposit Stream Token", "DST")
	ctx := context.Background()

	if err := reg.Transfer(ctx, "alice", "bob", 9); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}

	if err := reg.Mint(ctx, "alice", 9); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := reg.Transfer(ctx, "carol", "bob", 9); !errors.Is(err, ErrWrongOwner) {
		t.Errorf("Expected ErrWrongOwner, got %v", err)
	}
	if err := reg.Mint(ctx, "bob", 9); !errors.Is(err, ErrTokenExists) {
		t.Errorf("Expected ErrTokenExists, got %v", err)
	}
}

func TestInMem_ListOrdered(t *testing.T) {
	reg := NewInMem("Deposit Stream Token", "DST")
	ctx := context.Background()

	for _, id := range []domain.TokenID{5, 1, 3} {
		if err := reg.Mint(ctx, "alice", id); err != nil {
			t.Fatalf("Mint %d failed: %v", id, err)
		}
	}

	list, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 ownerships, got %d", len(list))
	}
	for i, want := range []domain.TokenID{1, 3, 5} {
		if list[i].TokenID != want {
			t.Errorf("position %d: got token %d, want %d", i, list[i].TokenID, want)
		}
	}
}
