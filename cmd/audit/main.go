// Package main runs the offline invariant audit: the archived stream
// operations are replayed into the expected per-receiver rates and
// compared against the live stream host.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"flow-vault/internal/domain"
	chstore "flow-vault/internal/storage/clickhouse"
	"flow-vault/internal/streamhost"
	"flow-vault/internal/verification"
)

func main() {
	// Parse flags
	hostEndpoint := flag.String("host-endpoint", os.Getenv("STREAM_HOST_ENDPOINT"), "Stream host JSON-RPC endpoint")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	custody := flag.String("custody", os.Getenv("CUSTODY_ADDRESS"), "Vault custody address")
	asset := flag.String("asset", envOr("STREAM_ASSET", "USDX"), "Streamed asset identifier")
	timeout := flag.Duration("timeout", 2*time.Minute, "Audit timeout")
	flag.Parse()

	// Validate flags
	if *hostEndpoint == "" || *clickhouseDSN == "" || *custody == "" {
		fmt.Fprintln(os.Stderr, "Error: --host-endpoint, --clickhouse-dsn and --custody are required")
		os.Exit(1)
	}

	custodyAddr, err := domain.ParseAddress(*custody)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --custody address: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	verifier := verification.NewReplayVerifier(
		chstore.NewStreamOpStore(conn),
		streamhost.NewHTTPClient(*hostEndpoint),
		*asset,
		custodyAddr,
	)

	report, err := verifier.Verify(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Audit failed: %v\n", err)
		os.Exit(1)
	}

	printReport(report)

	if !report.OK() {
		os.Exit(2)
	}
}

// printReport writes a human-readable audit summary to stdout.
func printReport(report *verification.ReplayReport) {
	fmt.Printf("Stream audit: %d ops replayed, %d receivers checked\n",
		report.OpsReplayed, report.ReceiversChecked)

	if report.OK() {
		fmt.Println("Result: OK - host matches the archive")
		return
	}

	fmt.Printf("Result: %d divergence(s) found\n", len(report.Divergences))
	for _, d := range report.Divergences {
		fmt.Printf("  %s: expected rate %d, host reports %d\n", d.Holder, d.Expected, d.Actual)
	}
}

// envOr returns the environment value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
