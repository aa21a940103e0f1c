package router

import (
	"context"
	"errors"
	"testing"

	"flow-vault/internal/domain"
	"flow-vault/internal/streamhost/stub"
)

const (
	asset   = "USDX"
	custody = domain.Address("vaultCustody")
	holderA = domain.Address("holderA")
	holderB = domain.Address("holderB")
)

func TestIncrease_CreatesWhenNoStream(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	if err := r.Increase(ctx, holderA, 100); err != nil {
		t.Fatalf("Increase failed: %v", err)
	}

	rate, err := host.GetOutgoingRate(ctx, asset, custody, holderA)
	if err != nil {
		t.Fatalf("GetOutgoingRate failed: %v", err)
	}
	if rate != 100 {
		t.Errorf("Expected rate 100, got %d", rate)
	}

	ops := host.Ops()
	if len(ops) != 1 || ops[0].Kind != domain.StreamOpCreate {
		t.Errorf("Expected single create op, got %+v", ops)
	}
}

func TestIncrease_UpdatesExistingStream(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	if err := r.Increase(ctx, holderA, 100); err != nil {
		t.Fatalf("First increase failed: %v", err)
	}
	if err := r.Increase(ctx, holderA, 150); err != nil {
		t.Fatalf("Second increase failed: %v", err)
	}

	rate, _ := host.GetOutgoingRate(ctx, asset, custody, holderA)
	if rate != 250 {
		t.Errorf("Expected merged rate 250, got %d", rate)
	}
	if host.StreamCount() != 1 {
		t.Errorf("Expected one merged stream, got %d", host.StreamCount())
	}
}

func TestIncrease_NoOpForCustodyAndZero(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	for _, to := range []domain.Address{custody, "", domain.ZeroAddress} {
		if err := r.Increase(ctx, to, 100); err != nil {
			t.Fatalf("Increase to %q failed: %v", to, err)
		}
	}
	if host.StreamCount() != 0 {
		t.Errorf("Expected no streams, got %d", host.StreamCount())
	}
	if len(host.Ops()) != 0 {
		t.Errorf("Expected no host mutations, got %d", len(host.Ops()))
	}
}

func TestDecrease_ExactZeroTearsDown(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	if err := r.Increase(ctx, holderA, 100); err != nil {
		t.Fatalf("Increase failed: %v", err)
	}
	if err := r.Decrease(ctx, holderA, 100); err != nil {
		t.Fatalf("Decrease failed: %v", err)
	}

	// No dangling zero-rate stream object remains queryable.
	if host.HasStream(asset, custody, holderA) {
		t.Error("Expected stream to be deleted, still exists")
	}
}

func TestDecrease_PartialUpdates(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	if err := r.Increase(ctx, holderA, 300); err != nil {
		t.Fatalf("Increase failed: %v", err)
	}
	if err := r.Decrease(ctx, holderA, 100); err != nil {
		t.Fatalf("Decrease failed: %v", err)
	}

	rate, _ := host.GetOutgoingRate(ctx, asset, custody, holderA)
	if rate != 200 {
		t.Errorf("Expected rate 200, got %d", rate)
	}
	if !host.HasStream(asset, custody, holderA) {
		t.Error("Stream should still exist after partial decrease")
	}
}

func TestDecrease_CurrentBelowRateIsSilentNoOp(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	if err := r.Increase(ctx, holderA, 50); err != nil {
		t.Fatalf("Increase failed: %v", err)
	}
	opsBefore := len(host.Ops())

	// Reachable only under an invariant violation; must neither fail nor
	// touch the host.
	if err := r.Decrease(ctx, holderA, 80); err != nil {
		t.Fatalf("Decrease should be a silent no-op, got %v", err)
	}

	rate, _ := host.GetOutgoingRate(ctx, asset, custody, holderA)
	if rate != 50 {
		t.Errorf("Expected rate unchanged at 50, got %d", rate)
	}
	if len(host.Ops()) != opsBefore {
		t.Errorf("Expected no host mutations, got %d new ops", len(host.Ops())-opsBefore)
	}
}

func TestDecrease_NoOpForCustodyAndZero(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	for _, to := range []domain.Address{custody, "", domain.ZeroAddress} {
		if err := r.Decrease(ctx, to, 100); err != nil {
			t.Fatalf("Decrease to %q failed: %v", to, err)
		}
	}
	if len(host.Ops()) != 0 {
		t.Errorf("Expected no host mutations, got %d", len(host.Ops()))
	}
}

func TestRouter_HostFailurePropagates(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	hostErr := errors.New("host rejected call")

	host.FailWith("query", hostErr)
	if err := r.Increase(ctx, holderA, 100); !errors.Is(err, hostErr) {
		t.Errorf("Expected query failure to propagate, got %v", err)
	}
	host.FailWith("query", nil)

	host.FailWith("create", hostErr)
	if err := r.Increase(ctx, holderA, 100); !errors.Is(err, hostErr) {
		t.Errorf("Expected create failure to propagate, got %v", err)
	}
	host.FailWith("create", nil)

	if err := r.Increase(ctx, holderA, 100); err != nil {
		t.Fatalf("Increase failed: %v", err)
	}

	host.FailWith("update", hostErr)
	if err := r.Increase(ctx, holderA, 50); !errors.Is(err, hostErr) {
		t.Errorf("Expected update failure to propagate, got %v", err)
	}
	host.FailWith("update", nil)

	host.FailWith("delete", hostErr)
	if err := r.Decrease(ctx, holderA, 100); !errors.Is(err, hostErr) {
		t.Errorf("Expected delete failure to propagate, got %v", err)
	}
}

func TestRouter_TwoDestinationsIndependent(t *testing.T) {
	host := stub.NewHost(custody)
	r := New(host, asset, custody)
	ctx := context.Background()

	if err := r.Increase(ctx, holderA, 100); err != nil {
		t.Fatalf("Increase A failed: %v", err)
	}
	if err := r.Increase(ctx, holderB, 40); err != nil {
		t.Fatalf("Increase B failed: %v", err)
	}
	if err := r.Decrease(ctx, holderA, 60); err != nil {
		t.Fatalf("Decrease A failed: %v", err)
	}

	rateA, _ := host.GetOutgoingRate(ctx, asset, custody, holderA)
	rateB, _ := host.GetOutgoingRate(ctx, asset, custody, holderB)
	if rateA != 40 {
		t.Errorf("Expected holderA rate 40, got %d", rateA)
	}
	if rateB != 40 {
		t.Errorf("Expected holderB rate 40 (untouched), got %d", rateB)
	}
}
