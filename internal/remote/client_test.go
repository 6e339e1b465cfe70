package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/internal/audit"
)

func newTestLog(t *testing.T) *audit.Log {
	t.Helper()
	l, err := audit.New("", nil)
	require.NoError(t, err)
	return l
}

func rpcHandler(result map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		raw, _ := json.Marshal(result)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: raw}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestInvokeSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(rpcHandler(map[string]any{"delivered": true}))
	defer srv.Close()

	log := newTestLog(t)
	c := New("alice", "bob", srv.URL, time.Second, time.Millisecond, log, nil)

	got, err := c.Invoke(context.Background(), "relay_message", map[string]any{
		"message": "running late",
		"sender":  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, true, got["delivered"])

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
	assert.Equal(t, "alice", entries[0].Sender)
	assert.Equal(t, "bob", entries[0].Receiver)
	assert.NotContains(t, entries[0].Params, "sender")
}

func TestInvokeDenialIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(rpcHandler(map[string]any{
		"access_denied": "requester not in trusted contacts",
	}))
	defer srv.Close()

	log := newTestLog(t)
	c := New("mallory", "bob", srv.URL, time.Second, time.Millisecond, log, nil)

	got, err := c.Invoke(context.Background(), "share_context", map[string]any{
		"category":  "dietary",
		"requester": "mallory",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "access_denied")

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusDenied, entries[0].Status)
}

func TestInvokeRetriesOnceThenUnreachable(t *testing.T) {
	t.Parallel()

	// A closed server: every attempt fails at the transport layer.
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	log := newTestLog(t)
	c := New("alice", "bob", endpoint, 200*time.Millisecond, time.Millisecond, log, nil)

	_, err := c.Invoke(context.Background(), "check_availability", map[string]any{
		"timeframe": "this weekend",
		"requester": "alice",
	})
	require.ErrorIs(t, err, ErrPeerUnreachable)

	// Exactly one log entry for the whole invocation, both attempts included.
	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailed, entries[0].Status)
	assert.Equal(t, "check_availability", entries[0].Operation)
}

func TestInvokeRetrySucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		rpcHandler(map[string]any{"delivered": true})(w, r)
	}))
	defer srv.Close()

	log := newTestLog(t)
	c := New("alice", "bob", srv.URL, time.Second, time.Millisecond, log, nil)

	got, err := c.Invoke(context.Background(), "relay_message", map[string]any{
		"message": "hi",
		"sender":  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, true, got["delivered"])
	assert.Equal(t, int32(2), calls.Load())

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
}

func TestInvokeRPCError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: -32601, Message: "method not found"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	log := newTestLog(t)
	c := New("alice", "bob", srv.URL, time.Second, time.Millisecond, log, nil)

	_, err := c.Invoke(context.Background(), "no_such_tool", map[string]any{})
	require.ErrorIs(t, err, ErrInvocation)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailed, entries[0].Status)
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(rpcHandler(map[string]any{}))
	log := newTestLog(t)
	c := New("alice", "bob", srv.URL, time.Second, time.Millisecond, log, nil)

	require.NoError(t, c.Ping(context.Background()))

	srv.Close()
	require.ErrorIs(t, c.Ping(context.Background()), ErrPeerUnreachable)

	// Liveness probes stay out of the interaction log.
	assert.Empty(t, log.Entries())
}
