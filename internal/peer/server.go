package peer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"companion/internal/audit"
	"companion/internal/tools"
)

// JSON-RPC 2.0 error codes used on the wire.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// rpcRequest is the inbound JSON-RPC 2.0 envelope. The id is echoed back
// verbatim whatever JSON type the caller used.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Server exposes a peer's tool surface over HTTP at /run, with a /health
// endpoint for liveness checks.
type Server struct {
	peer       *Peer
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the HTTP server for a peer.
func NewServer(p *Peer, listen string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{peer: p, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("peer server listening",
		zap.String("peer", s.peer.ID()),
		zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler returns the HTTP handler, for tests driving the server through
// httptest without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleRun dispatches a JSON-RPC 2.0 request. tools/call runs through the
// registry; every call is recorded in the interaction log before the
// response is written.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, codeInvalidRequest, "invalid request: malformed JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, codeInvalidRequest, "invalid request: jsonrpc must be '2.0'")
		return
	}

	switch req.Method {
	case "tools/call":
		s.handleToolCall(w, req)
	case "tools/list":
		s.writeResult(w, req.ID, map[string]any{"tools": s.peer.Registry().Names()})
	case "ping":
		s.writeResult(w, req.ID, map[string]any{"ok": true})
	default:
		s.writeError(w, req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleToolCall(w http.ResponseWriter, req rpcRequest) {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		s.writeError(w, req.ID, codeInvalidRequest, "invalid request: missing tool name")
		return
	}

	start := time.Now()
	result, err := s.peer.Registry().Execute(context.Background(), params.Name, params.Arguments)
	latency := time.Since(start)

	caller := s.callerID(params.Arguments)
	if err != nil {
		s.peer.InteractionLog().Record(caller, s.peer.ID(), params.Name, params.Arguments, audit.StatusFailed, latency)
		if errors.Is(err, tools.ErrToolNotFound) {
			s.writeError(w, req.ID, codeMethodNotFound, "method not found: "+params.Name)
			return
		}
		s.writeError(w, req.ID, codeInternalError, "internal error: "+err.Error())
		return
	}

	status := audit.StatusSuccess
	if result.Denied() {
		status = audit.StatusDenied
	}
	s.peer.InteractionLog().Record(caller, s.peer.ID(), params.Name, params.Arguments, status, latency)

	s.writeResult(w, req.ID, result.Output)
}

// callerID extracts the caller's identity for the log's sender field.
func (s *Server) callerID(args map[string]any) string {
	if v, ok := args["requester"].(string); ok && v != "" {
		return v
	}
	if v, ok := args["sender"].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	s.write(w, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	s.write(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (s *Server) write(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
