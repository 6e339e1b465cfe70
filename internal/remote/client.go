// Package remote implements the outbound tool-invocation client: JSON-RPC
// 2.0 over HTTP with an explicit timeout, exactly one retry, and typed
// failure translation. No fault crosses the peer boundary as a panic; every
// outcome is a structured result or a typed error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"companion/internal/audit"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client invokes tools on one remote peer's server.
type Client struct {
	selfID     string
	peerID     string
	endpoint   string
	retryPause time.Duration
	httpClient *http.Client
	log        *audit.Log
	logger     *zap.Logger
}

// New creates a client for the remote peer at endpoint. Every invocation,
// whatever its outcome, is recorded once in the interaction log before
// control returns to the caller.
func New(selfID, peerID, endpoint string, timeout, retryPause time.Duration, log *audit.Log, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		selfID:     selfID,
		peerID:     peerID,
		endpoint:   endpoint,
		retryPause: retryPause,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		logger:     logger,
	}
}

// Invoke calls a tool on the remote peer. On timeout or transport failure
// it retries exactly once with the same arguments; if the retry also fails
// it returns ErrPeerUnreachable. Denials are not errors: the returned map
// carries the access_denied field and the caller inspects it.
func (c *Client) Invoke(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	start := time.Now()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params: map[string]any{
			"name":      operation,
			"arguments": args,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *rpcResponse
	var lastErr error
	const maxAttempts = 2
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, lastErr = c.post(ctx, body)
		if lastErr == nil {
			break
		}
		c.logger.Warn("tool call attempt failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = maxAttempts
			case <-time.After(c.retryPause):
			}
		}
	}

	latency := time.Since(start)

	if lastErr != nil {
		// One log entry per logical invocation, not per attempt.
		c.log.Record(c.selfID, c.peerID, operation, args, audit.StatusFailed, latency)
		return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrPeerUnreachable, c.endpoint, maxAttempts, lastErr)
	}

	if resp.Error != nil {
		c.log.Record(c.selfID, c.peerID, operation, args, audit.StatusFailed, latency)
		return nil, fmt.Errorf("%w: rpc error %d: %s", ErrInvocation, resp.Error.Code, resp.Error.Message)
	}

	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		c.log.Record(c.selfID, c.peerID, operation, args, audit.StatusFailed, latency)
		return nil, fmt.Errorf("%w: malformed result: %v", ErrInvocation, err)
	}

	status := audit.StatusSuccess
	if _, denied := result["access_denied"]; denied {
		status = audit.StatusDenied
	}
	c.log.Record(c.selfID, c.peerID, operation, args, status, latency)
	return result, nil
}

// Ping checks that the remote peer is responsive. No retry and no log
// entry; this is liveness, not coordination.
func (c *Client) Ping(ctx context.Context) error {
	req := rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: "ping"}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: rpc error %d: %s", ErrInvocation, resp.Error.Code, resp.Error.Message)
	}
	return nil
}

// post performs one HTTP round trip. Any transport failure or HTTP error
// status is a retryable failure.
func (c *Client) post(ctx context.Context, body []byte) (*rpcResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("server returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}
