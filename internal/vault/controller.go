// Package vault orchestrates the token lifecycle: mint, transfer, burn.
// It enforces operation ordering (reduce-before-increase on transfer) and
// refund-on-burn, and serializes all operations behind one lock.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"flow-vault/internal/domain"
	"flow-vault/internal/flowrate"
	"flow-vault/internal/ledger"
	"flow-vault/internal/observability"
	"flow-vault/internal/oracle"
	"flow-vault/internal/registry"
	"flow-vault/internal/router"
	"flow-vault/internal/storage"
	"flow-vault/internal/streamhost"
)

// Lifecycle errors.
var (
	// ErrNotOwner is returned when the caller does not own the token.
	ErrNotOwner = errors.New("caller does not own token")

	// ErrCustodyReceiver is returned when the would-be receiver is the
	// vault's own custody address.
	ErrCustodyReceiver = errors.New("receiver is the vault custody address")

	// ErrRestrictedReceiver is returned when the receiver is flagged by
	// the stream host as unable to safely receive streams.
	ErrRestrictedReceiver = errors.New("receiver is a restricted stream host address")
)

// Controller coordinates oracle, calculator, ledger, registry, and router
// across the token lifecycle. It implements registry.TransferHook, so the
// registry consults it before every ownership change.
type Controller struct {
	custody domain.Address
	asset   string

	oracle   oracle.PriceOracle
	calc     *flowrate.Calculator
	ledger   *ledger.Ledger
	registry registry.Registry
	router   *router.Router
	host     streamhost.Host
	events   storage.IssuanceEventStore

	// mu serializes mint/transfer/burn end to end, reproducing the
	// whole-operation atomicity of a serializing host.
	mu sync.Mutex

	now     func() int64
	logger  *log.Logger
	verbose bool
}

// Options for creating a Controller.
type Options struct {
	Custody domain.Address
	Asset   string

	Oracle   oracle.PriceOracle
	Calc     *flowrate.Calculator
	Ledger   *ledger.Ledger
	Registry registry.Registry
	Router   *router.Router
	Host     streamhost.Host
	Events   storage.IssuanceEventStore

	Logger  *log.Logger
	Verbose bool
}

// New creates a Controller.
func New(opts Options) *Controller {
	return &Controller{
		custody:  opts.Custody,
		asset:    opts.Asset,
		oracle:   opts.Oracle,
		calc:     opts.Calc,
		ledger:   opts.Ledger,
		registry: opts.Registry,
		router:   opts.Router,
		host:     opts.Host,
		events:   opts.Events,
		now:      func() int64 { return time.Now().UnixMilli() },
		logger:   opts.Logger,
		verbose:  opts.Verbose,
	}
}

// Mint converts a deposit into a new token with a live stream to the
// caller. Any failure unwinds every intermediate step: no token, no ledger
// record, no stream, and the deposit is returned to the caller.
func (c *Controller) Mint(ctx context.Context, caller domain.Address, deposit int64) (*domain.TokenRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller == c.custody {
		observability.RecordRejection("mint", "custody_receiver")
		return nil, ErrCustodyReceiver
	}

	start := time.Now()
	quote, err := c.oracle.LatestPrice(ctx)
	observability.RecordOracleRead(time.Since(start).Seconds())
	if err != nil {
		observability.RecordRejection("mint", "oracle_failure")
		return nil, fmt.Errorf("mint: %w", err)
	}

	rate, err := c.calc.Rate(deposit, quote)
	if err != nil {
		observability.RecordRejection("mint", "rate_not_positive")
		return nil, fmt.Errorf("mint: %w", err)
	}

	tokenID, err := c.ledger.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	if err := c.ledger.Record(ctx, tokenID, rate, deposit); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	// The registry fires the transfer hook (old owner zero), which routes
	// the stream to the caller. On failure the ledger record is unwound
	// so the mint leaves no trace.
	if err := c.registry.Mint(ctx, caller, tokenID); err != nil {
		if eraseErr := c.ledger.Erase(ctx, tokenID); eraseErr != nil {
			c.logf("mint unwind: erase token %d: %v", tokenID, eraseErr)
		}
		observability.RecordRejection("mint", "registry_or_stream_failure")
		return nil, fmt.Errorf("mint: %w", err)
	}

	event := &domain.IssuanceEvent{
		TokenID:   tokenID,
		Receiver:  caller,
		FlowRate:  rate,
		Timestamp: c.now(),
	}
	if err := c.events.Insert(ctx, event); err != nil {
		c.unwindMint(ctx, tokenID)
		return nil, fmt.Errorf("mint: record issuance event: %w", err)
	}

	if err := c.ledger.AdvanceID(ctx); err != nil {
		c.unwindMint(ctx, tokenID)
		return nil, fmt.Errorf("mint: %w", err)
	}

	observability.RecordMint(rate, deposit)
	c.logf("minted token %d to %s: rate=%d deposit=%d", tokenID, caller, rate, deposit)

	record, err := c.ledger.Get(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	return record, nil
}

// Transfer moves a token to a new owner, redirecting its stream. The
// caller must currently own the token.
func (c *Controller) Transfer(ctx context.Context, caller, to domain.Address, tokenID domain.TokenID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, err := c.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("transfer token %d: %w", tokenID, err)
	}
	if owner != caller {
		observability.RecordRejection("transfer", "not_owner")
		return ErrNotOwner
	}

	if err := c.registry.Transfer(ctx, caller, to, tokenID); err != nil {
		observability.RecordRejection("transfer", "rejected")
		return fmt.Errorf("transfer token %d: %w", tokenID, err)
	}

	observability.RecordTransfer()
	c.logf("transferred token %d from %s to %s", tokenID, caller, to)
	return nil
}

// Burn destroys a caller-owned token, tears down its stream contribution,
// and returns the escrowed deposit verbatim.
func (c *Controller) Burn(ctx context.Context, caller domain.Address, tokenID domain.TokenID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, err := c.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return 0, fmt.Errorf("burn token %d: %w", tokenID, err)
	}
	if owner != caller {
		observability.RecordRejection("burn", "not_owner")
		return 0, ErrNotOwner
	}

	record, err := c.ledger.Get(ctx, tokenID)
	if err != nil {
		return 0, fmt.Errorf("burn token %d: %w", tokenID, err)
	}

	// The hook runs with a zero new owner: decrease only, no increase.
	if err := c.registry.Burn(ctx, tokenID); err != nil {
		observability.RecordRejection("burn", "rejected")
		return 0, fmt.Errorf("burn token %d: %w", tokenID, err)
	}

	if err := c.ledger.Erase(ctx, tokenID); err != nil {
		return 0, fmt.Errorf("burn token %d: %w", tokenID, err)
	}

	observability.RecordBurn(record.FlowRate, record.DepositAmount)
	c.logf("burned token %d, refunded %d to %s", tokenID, record.DepositAmount, caller)
	return record.DepositAmount, nil
}

// TokenInfo returns the ledger record and current owner of a token.
func (c *Controller) TokenInfo(ctx context.Context, tokenID domain.TokenID) (*domain.TokenRecord, domain.Address, error) {
	record, err := c.ledger.Get(ctx, tokenID)
	if err != nil {
		return nil, "", err
	}
	owner, err := c.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, "", err
	}
	return record, owner, nil
}

// HolderRate returns the host-reported outgoing rate from the vault to an
// address.
func (c *Controller) HolderRate(ctx context.Context, addr domain.Address) (int64, error) {
	return c.host.GetOutgoingRate(ctx, c.asset, c.custody, addr)
}

// ValidateTransfer rejects receivers the stream host flags as restricted,
// unless the receiver is the vault custody address. Zero receivers (burn)
// always pass.
func (c *Controller) ValidateTransfer(ctx context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error {
	_ = oldOwner
	if newOwner.IsZero() || newOwner == c.custody {
		return nil
	}
	restricted, err := c.host.IsRestrictedReceiver(ctx, newOwner)
	if err != nil {
		return fmt.Errorf("validate transfer of token %d: %w", tokenID, err)
	}
	if restricted {
		return fmt.Errorf("token %d to %s: %w", tokenID, newOwner, ErrRestrictedReceiver)
	}
	return nil
}

// ApplyTransfer redirects the token's stream: decrease to the old owner
// first, then increase to the new owner. The order avoids transiently
// doubling the recipient's required collateral on the host.
func (c *Controller) ApplyTransfer(ctx context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error {
	rate, ok, err := c.ledger.RateOf(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("apply transfer of token %d: %w", tokenID, err)
	}
	if !ok {
		return fmt.Errorf("%w: no ledger record for token %d", ledger.ErrInvariantViolation, tokenID)
	}

	if err := c.router.Decrease(ctx, oldOwner, rate); err != nil {
		return fmt.Errorf("apply transfer of token %d: %w", tokenID, err)
	}
	if err := c.router.Increase(ctx, newOwner, rate); err != nil {
		return fmt.Errorf("apply transfer of token %d: %w", tokenID, err)
	}
	return nil
}

// unwindMint reverts registry and ledger state after a post-mint step
// fails. Best effort: unwind errors are logged, the original error is
// what the caller sees.
func (c *Controller) unwindMint(ctx context.Context, tokenID domain.TokenID) {
	if err := c.registry.Burn(ctx, tokenID); err != nil {
		c.logf("mint unwind: registry burn token %d: %v", tokenID, err)
	}
	if err := c.ledger.Erase(ctx, tokenID); err != nil {
		c.logf("mint unwind: erase token %d: %v", tokenID, err)
	}
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.verbose && c.logger != nil {
		c.logger.Printf("[vault] "+format, args...)
	}
}

// Verify interface compliance at compile time.
var _ registry.TransferHook = (*Controller)(nil)
