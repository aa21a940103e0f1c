package streamhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"flow-vault/internal/domain"
	"flow-vault/internal/observability"
)

// DefaultTimeout bounds a single host call.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Host over HTTP JSON-RPC 2.0. Calls are not
// retried: the host either accepts a mutation or the whole enclosing
// lifecycle operation aborts.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new stream host HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// GetOutgoingRate returns the current outgoing rate from `from` to `to`.
func (c *HTTPClient) GetOutgoingRate(ctx context.Context, asset string, from, to domain.Address) (int64, error) {
	var rate int64
	params := []interface{}{asset, string(from), string(to)}
	if err := c.call(ctx, "host_getOutgoingRate", params, &rate); err != nil {
		return 0, fmt.Errorf("get outgoing rate: %w", err)
	}
	return rate, nil
}

// CreateStream opens a new stream to `to` at rate.
func (c *HTTPClient) CreateStream(ctx context.Context, asset string, to domain.Address, rate int64) error {
	params := []interface{}{asset, string(to), rate}
	if err := c.call(ctx, "host_createStream", params, nil); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// UpdateStream sets the existing stream to `to` to rate.
func (c *HTTPClient) UpdateStream(ctx context.Context, asset string, to domain.Address, rate int64) error {
	params := []interface{}{asset, string(to), rate}
	if err := c.call(ctx, "host_updateStream", params, nil); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// DeleteStream tears down the stream between from and to.
func (c *HTTPClient) DeleteStream(ctx context.Context, asset string, from, to domain.Address) error {
	params := []interface{}{asset, string(from), string(to)}
	if err := c.call(ctx, "host_deleteStream", params, nil); err != nil {
		return fmt.Errorf("delete stream: %w", err)
	}
	return nil
}

// IsRestrictedReceiver reports whether the host flags the address.
func (c *HTTPClient) IsRestrictedReceiver(ctx context.Context, addr domain.Address) (bool, error) {
	var restricted bool
	params := []interface{}{string(addr)}
	if err := c.call(ctx, "host_isRestrictedReceiver", params, &restricted); err != nil {
		return false, fmt.Errorf("is restricted receiver: %w", err)
	}
	return restricted, nil
}

// call performs a single JSON-RPC call.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	err := c.doCall(ctx, method, params, result)
	observability.RecordHostCall(method, time.Since(start).Seconds(), err)
	return err
}

func (c *HTTPClient) doCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// Verify interface compliance at compile time.
var _ Host = (*HTTPClient)(nil)
