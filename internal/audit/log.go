// Package audit provides the append-only interaction log recording every
// cross-peer tool call. Each peer logs its own outbound and inbound calls
// independently; entries are never mutated or deleted during a run.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status classifies the outcome of a logged call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusDenied  Status = "denied"
	StatusFailed  Status = "failed"
)

// redactedKeys are stripped from logged parameters. The log must be enough
// to audit the call shape, never to recover who asked on whose behalf or
// what payload was disclosed.
var redactedKeys = map[string]bool{
	"requester": true,
	"sender":    true,
}

// Entry is one interaction log record. Field order is fixed so that the
// encoded form is byte-reproducible for identical inputs apart from the
// timestamp; map keys are sorted by encoding/json.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Sender    string         `json:"sender"`
	Receiver  string         `json:"receiver"`
	Operation string         `json:"operation"`
	Params    map[string]any `json:"redacted_parameters"`
	Status    Status         `json:"status"`
	LatencyMs int64          `json:"latency_ms"`
}

// Encode renders the entry as canonical JSON, one line.
func (e Entry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Log is an append-only interaction log with a JSONL file sink and a
// bounded in-memory tail for the monitor surface. Entries are locally
// totally ordered by append time; there is no ordering guarantee across
// the two peers' logs.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	maxTail int
	file    *os.File
	logger  *zap.Logger
	now     func() time.Time
}

// maxTailDefault bounds the in-memory tail.
const maxTailDefault = 1000

// New creates an interaction log. path may be empty for an in-memory log
// (tests); otherwise entries are appended to the JSONL file at path.
func New(path string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		maxTail: maxTailDefault,
		logger:  logger,
		now:     time.Now,
	}
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create audit log directory: %w", err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
		}
		l.file = f
	}
	return l, nil
}

// SetClock overrides the log's clock. Test hook.
func (l *Log) SetClock(now func() time.Time) {
	l.now = now
}

// Record appends one entry for a cross-peer call. Parameters are redacted
// before anything is written; the raw map is not retained.
func (l *Log) Record(sender, receiver, operation string, params map[string]any, status Status, latency time.Duration) Entry {
	entry := Entry{
		Timestamp: l.now().Format(time.RFC3339Nano),
		Sender:    sender,
		Receiver:  receiver,
		Operation: operation,
		Params:    Redact(params),
		Status:    status,
		LatencyMs: latency.Milliseconds(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if len(l.entries) > l.maxTail {
		l.entries = l.entries[len(l.entries)-l.maxTail:]
	}

	if l.file != nil {
		line, err := entry.Encode()
		if err == nil {
			line = append(line, '\n')
			if _, werr := l.file.Write(line); werr != nil {
				l.logger.Warn("failed to write audit entry", zap.Error(werr))
			}
		}
	}

	l.logger.Info("interaction",
		zap.String("sender", sender),
		zap.String("receiver", receiver),
		zap.String("operation", operation),
		zap.String("status", string(status)))
	return entry
}

// Entries returns a copy of the in-memory tail, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Tail returns up to n most recent entries, oldest first.
func (l *Log) Tail(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Close flushes and closes the file sink.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Redact returns a copy of params with identity-bearing keys removed.
func Redact(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if redactedKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// ReadFile parses a JSONL audit file, skipping malformed lines. Used by the
// monitor to tail another process's log.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}
