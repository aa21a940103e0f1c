package verification

import (
	"context"
	"testing"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage/memory"
	"flow-vault/internal/streamhost/stub"
)

func TestReplay_MatchingStateIsClean(t *testing.T) {
	ctx := context.Background()
	host := stub.NewHost(testCustody)
	ops := memory.NewStreamOpStore()

	archived := []*domain.StreamOp{
		{Kind: domain.StreamOpCreate, Asset: testAsset, From: testCustody, To: holderA, Rate: 1000, Timestamp: 100},
		{Kind: domain.StreamOpUpdate, Asset: testAsset, From: testCustody, To: holderA, Rate: 3000, Timestamp: 200},
		{Kind: domain.StreamOpCreate, Asset: testAsset, From: testCustody, To: holderB, Rate: 500, Timestamp: 150},
		{Kind: domain.StreamOpDelete, Asset: testAsset, From: testCustody, To: holderB, Rate: 0, Timestamp: 300},
	}
	if err := ops.InsertBulk(ctx, archived); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Live host state matches the replayed archive.
	if err := host.CreateStream(ctx, testAsset, holderA, 3000); err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}

	verifier := NewReplayVerifier(ops, host, testAsset, testCustody)
	report, err := verifier.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("Expected clean report, got %+v", report)
	}
	if report.OpsReplayed != 4 {
		t.Errorf("Expected 4 ops replayed, got %d", report.OpsReplayed)
	}
	if report.ReceiversChecked != 1 {
		t.Errorf("Expected 1 receiver checked after delete, got %d", report.ReceiversChecked)
	}
}

func TestReplay_ReportsDivergence(t *testing.T) {
	ctx := context.Background()
	host := stub.NewHost(testCustody)
	ops := memory.NewStreamOpStore()

	archived := []*domain.StreamOp{
		{Kind: domain.StreamOpCreate, Asset: testAsset, From: testCustody, To: holderA, Rate: 1000, Timestamp: 100},
	}
	if err := ops.InsertBulk(ctx, archived); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Host never opened the stream.
	verifier := NewReplayVerifier(ops, host, testAsset, testCustody)
	report, err := verifier.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.OK() {
		t.Fatal("Expected a divergence, got clean report")
	}
	d := report.Divergences[0]
	if d.Holder != holderA || d.Expected != 1000 || d.Actual != 0 {
		t.Errorf("Unexpected divergence %+v", d)
	}
}

func TestReplay_IgnoresForeignOps(t *testing.T) {
	ctx := context.Background()
	host := stub.NewHost(testCustody)
	ops := memory.NewStreamOpStore()

	// Ops for another asset or sender are not the vault's concern.
	archived := []*domain.StreamOp{
		{Kind: domain.StreamOpCreate, Asset: "OTHER", From: testCustody, To: holderA, Rate: 77, Timestamp: 100},
		{Kind: domain.StreamOpCreate, Asset: testAsset, From: "someoneElse", To: holderA, Rate: 88, Timestamp: 110},
	}
	if err := ops.InsertBulk(ctx, archived); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	verifier := NewReplayVerifier(ops, host, testAsset, testCustody)
	report, err := verifier.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.OK() || report.ReceiversChecked != 0 {
		t.Errorf("Expected no receivers checked, got %+v", report)
	}
}
