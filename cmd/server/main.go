// Package main provides the unified vault server:
// - HTTP API: mint, transfer, burn, token and holder queries
// - Stream-event archiver: persists the host's event feed for audit
// - Prometheus metrics on a dedicated address
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"flow-vault/internal/archive"
	"flow-vault/internal/domain"
	"flow-vault/internal/flowrate"
	"flow-vault/internal/ledger"
	"flow-vault/internal/observability"
	"flow-vault/internal/oracle"
	"flow-vault/internal/registry"
	"flow-vault/internal/router"
	"flow-vault/internal/storage"
	chstore "flow-vault/internal/storage/clickhouse"
	"flow-vault/internal/storage/memory"
	"flow-vault/internal/storage/migrations"
	pgstore "flow-vault/internal/storage/postgres"
	"flow-vault/internal/streamhost"
	"flow-vault/internal/vault"
	"flow-vault/internal/verification"
)

// Server holds all components of the vault service.
type Server struct {
	custody domain.Address
	asset   string

	controller     *vault.Controller
	verifier       *verification.Verifier
	verifyInterval time.Duration
	stores         *vaultStores
	wsEndpoint     string
	logger         *log.Logger

	mu      sync.Mutex
	started time.Time
	mints   int
	burns   int
}

// vaultStores holds all storage implementations.
type vaultStores struct {
	recordStore  storage.TokenRecordStore
	counterStore storage.TokenCounterStore
	eventStore   storage.IssuanceEventStore
	streamOps    storage.StreamOpStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	oracleEndpoint := flag.String("oracle-endpoint", os.Getenv("ORACLE_ENDPOINT"), "Price oracle JSON-RPC endpoint")
	hostEndpoint := flag.String("host-endpoint", os.Getenv("STREAM_HOST_ENDPOINT"), "Stream host JSON-RPC endpoint")
	hostWSEndpoint := flag.String("host-ws-endpoint", os.Getenv("STREAM_HOST_WS_ENDPOINT"), "Stream host WebSocket event feed (empty to disable archiver)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	custody := flag.String("custody", os.Getenv("CUSTODY_ADDRESS"), "Vault custody address")
	asset := flag.String("asset", envOr("STREAM_ASSET", "USDX"), "Streamed asset identifier")
	annualYield := flag.Int64("annual-yield-percent", 10, "Annual yield in whole percent")
	verifyInterval := flag.Duration("verify-interval", 5*time.Minute, "Interval between live invariant audits (0 to disable)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	apiAddr := flag.String("api-addr", ":8080", "HTTP API address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Verbose logging")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *oracleEndpoint == "" {
		logger.Fatal("--oracle-endpoint is required")
	}
	if *hostEndpoint == "" {
		logger.Fatal("--host-endpoint is required")
	}
	if *custody == "" {
		logger.Fatal("--custody is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *annualYield <= 0 {
		logger.Fatal("--annual-yield-percent must be positive")
	}

	custodyAddr, err := domain.ParseAddress(*custody)
	if err != nil {
		logger.Fatalf("Invalid --custody address: %v", err)
	}
	if custodyAddr.IsZero() {
		logger.Fatal("--custody must not be the zero address")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Wire the vault
	host := streamhost.NewHTTPClient(*hostEndpoint)
	led := ledger.New(stores.recordStore, stores.counterStore)
	reg := registry.NewInMem("Deposit Stream Token", "DST")

	controller := vault.New(vault.Options{
		Custody:  custodyAddr,
		Asset:    *asset,
		Oracle:   oracle.NewHTTPClient(*oracleEndpoint),
		Calc:     flowrate.NewCalculator(*annualYield),
		Ledger:   led,
		Registry: reg,
		Router:   router.New(host, *asset, custodyAddr),
		Host:     host,
		Events:   stores.eventStore,
		Logger:   logger,
		Verbose:  *verbose,
	})
	reg.SetHook(controller)

	server := &Server{
		custody:        custodyAddr,
		asset:          *asset,
		controller:     controller,
		verifier:       verification.NewVerifier(led, reg, host, *asset, custodyAddr),
		verifyInterval: *verifyInterval,
		stores:         stores,
		wsEndpoint:     *hostWSEndpoint,
		logger:         logger,
		started:        time.Now(),
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = server.Run(ctx, *apiAddr)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*vaultStores, func(), error) {
	if useMemory {
		stores := &vaultStores{
			recordStore:  memory.NewTokenRecordStore(),
			counterStore: memory.NewTokenCounterStore(),
			eventStore:   memory.NewIssuanceEventStore(),
			streamOps:    memory.NewStreamOpStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &vaultStores{
		recordStore:  pgstore.NewTokenRecordStore(pool),
		counterStore: pgstore.NewTokenCounterStore(pool),
		eventStore:   pgstore.NewIssuanceEventStore(pool),
		streamOps:    chstore.NewStreamOpStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the API server and the stream-event archiver.
func (s *Server) Run(ctx context.Context, apiAddr string) error {
	s.logger.Println("Starting vault server...")

	errCh := make(chan error, 2)

	// Count process uptime on the health counter
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.TickUptime()
			}
		}
	}()

	// Start the periodic invariant audit if enabled
	if s.verifier != nil && s.verifyInterval > 0 {
		go s.runVerifier(ctx)
	}

	// Start archiver in background if a WS endpoint is configured
	if s.wsEndpoint != "" {
		go func() {
			err := s.runArchiver(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("archiver: %w", err)
			}
		}()
	}

	// Start API server
	httpServer := &http.Server{
		Addr:    apiAddr,
		Handler: s.routes(),
	}

	go func() {
		s.logger.Printf("Starting API server on %s", apiAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("API server shutdown error: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runVerifier periodically audits the routing invariant against the live
// host and marks the health gauge on every clean pass.
func (s *Server) runVerifier(ctx context.Context) {
	ticker := time.NewTicker(s.verifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.verifier.Verify(ctx)
			if err != nil {
				s.logger.Printf("Invariant audit failed: %v", err)
				continue
			}
			if !report.OK() {
				s.logger.Printf("Invariant audit found %d divergences and %d orphan tokens",
					len(report.Divergences), len(report.OrphanTokens))
				continue
			}
			observability.MarkAuditSuccess()
		}
	}
}

// runArchiver drains the stream host event feed into the archive.
func (s *Server) runArchiver(ctx context.Context) error {
	ws, err := streamhost.NewWSClient(ctx, s.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	archiver := archive.NewArchiver(archive.ArchiverOptions{
		Events: ws.Events(),
		Store:  s.stores.streamOps,
		Logger: log.New(os.Stdout, "[archiver] ", log.LstdFlags|log.Lshortfile),
	})

	s.logger.Println("Stream-event archiver started")
	return archiver.Run(ctx)
}

// routes builds the API mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /v1/tokens", s.handleMint)
	mux.HandleFunc("GET /v1/tokens/{id}", s.handleGetToken)
	mux.HandleFunc("POST /v1/tokens/{id}/transfer", s.handleTransfer)
	mux.HandleFunc("DELETE /v1/tokens/{id}", s.handleBurn)
	mux.HandleFunc("GET /v1/holders/{addr}/rate", s.handleHolderRate)

	return mux
}

// MintRequest is the JSON body for POST /v1/tokens.
type MintRequest struct {
	Caller  string `json:"caller"`
	Deposit int64  `json:"deposit"`
}

// TokenResponse describes a minted token.
type TokenResponse struct {
	TokenID  uint64 `json:"token_id"`
	Owner    string `json:"owner,omitempty"`
	FlowRate int64  `json:"flow_rate"`
	Deposit  int64  `json:"deposit"`
	MintedAt int64  `json:"minted_at"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Caller == "" || req.Deposit <= 0 {
		writeError(w, http.StatusBadRequest, "caller and positive deposit are required")
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}

	record, err := s.controller.Mint(r.Context(), caller, req.Deposit)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	s.mu.Lock()
	s.mints++
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, TokenResponse{
		TokenID:  uint64(record.TokenID),
		Owner:    req.Caller,
		FlowRate: record.FlowRate,
		Deposit:  record.DepositAmount,
		MintedAt: record.MintedAt,
	})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseTokenID(w, r)
	if !ok {
		return
	}

	record, owner, err := s.controller.TokenInfo(r.Context(), tokenID)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		TokenID:  uint64(record.TokenID),
		Owner:    string(owner),
		FlowRate: record.FlowRate,
		Deposit:  record.DepositAmount,
		MintedAt: record.MintedAt,
	})
}

// TransferRequest is the JSON body for POST /v1/tokens/{id}/transfer.
type TransferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseTokenID(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Caller == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "caller and to are required")
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	to, ok := parseReceiver(w, req.To)
	if !ok {
		return
	}

	err := s.controller.Transfer(r.Context(), caller, to, tokenID)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BurnRequest is the JSON body for DELETE /v1/tokens/{id}.
type BurnRequest struct {
	Caller string `json:"caller"`
}

// BurnResponse reports the refunded deposit.
type BurnResponse struct {
	TokenID uint64 `json:"token_id"`
	Refund  int64  `json:"refund"`
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseTokenID(w, r)
	if !ok {
		return
	}

	var req BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}

	refund, err := s.controller.Burn(r.Context(), caller, tokenID)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	s.mu.Lock()
	s.burns++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, BurnResponse{TokenID: uint64(tokenID), Refund: refund})
}

// HolderRateResponse reports a holder's aggregate stream rate.
type HolderRateResponse struct {
	Holder string `json:"holder"`
	Asset  string `json:"asset"`
	Rate   int64  `json:"rate"`
}

func (s *Server) handleHolderRate(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("addr")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "holder address is required")
		return
	}

	rate, err := s.controller.HolderRate(r.Context(), domain.Address(addr))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, HolderRateResponse{Holder: addr, Asset: s.asset, Rate: rate})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Custody string `json:"custody"`
	Asset   string `json:"asset"`
	Mints   int    `json:"mints"`
	Burns   int    `json:"burns"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).String(),
		Custody: string(s.custody),
		Asset:   s.asset,
		Mints:   s.mints,
		Burns:   s.burns,
	})
}

// parseCaller validates the signing address in a request body. The zero
// address and off-curve addresses cannot sign, so they can never act as
// a caller.
func parseCaller(w http.ResponseWriter, raw string) (domain.Address, bool) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid caller address: %v", err))
		return "", false
	}
	if addr.IsZero() || addr.OffCurve() {
		writeError(w, http.StatusUnprocessableEntity, "caller address cannot sign")
		return "", false
	}
	return addr, true
}

// parseReceiver validates a transfer destination. Streams to the zero
// address are silently dropped by the router, so accepting it here would
// strand the token's deposit.
func parseReceiver(w http.ResponseWriter, raw string) (domain.Address, bool) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid receiver address: %v", err))
		return "", false
	}
	if addr.IsZero() {
		writeError(w, http.StatusUnprocessableEntity, "receiver must not be the zero address")
		return "", false
	}
	return addr, true
}

// parseTokenID extracts the {id} path segment, writing a 400 on failure.
func parseTokenID(w http.ResponseWriter, r *http.Request) (domain.TokenID, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return 0, false
	}
	return domain.TokenID(id), true
}

// writeVaultError maps controller errors to HTTP status codes.
func writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrTokenNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, vault.ErrCustodyReceiver),
		errors.Is(err, vault.ErrRestrictedReceiver),
		errors.Is(err, flowrate.ErrRateNotPositive),
		errors.Is(err, registry.ErrWrongOwner):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// envOr returns the environment value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
