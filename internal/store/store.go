// Package store persists one peer's partition of the companion state in
// SQLite: the profile (keyed app/peer/session like the original session
// service), proposals, and committed events. Each peer process opens only
// its own database file; cross-peer effects never go through storage, only
// through the tool-invocation boundary.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"companion/internal/profile"
	"companion/internal/proposal"
	"companion/internal/schedule"
)

// AppName partitions session rows; all companion peers share the same app.
const AppName = "companion_network"

// Store wraps the peer's SQLite database. The single-connection setup
// matches the single-owner actor model: one logical writer per peer.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// Open initializes the SQLite database at the given path, creating the
// schema when missing.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	schemaSQL := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			app_name   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			session_id TEXT NOT NULL,
			state      TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (app_name, user_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS proposals (
			id         TEXT PRIMARY KEY,
			peer_id    TEXT NOT NULL,
			data       TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS committed_events (
			proposal_id TEXT PRIMARY KEY,
			peer_id     TEXT NOT NULL,
			title       TEXT NOT NULL,
			start_time  TEXT NOT NULL,
			end_time    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_peer ON proposals(peer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_committed_peer ON committed_events(peer_id)`,
	}
	for _, stmt := range schemaSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// sessionID derives the fixed session key for a peer.
func sessionID(peerID string) string {
	return peerID + "_session"
}

// SaveProfile upserts the peer's profile into its session row.
func (s *Store) SaveProfile(peerID string, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (app_name, user_id, session_id, state, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(app_name, user_id, session_id)
		 DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		AppName, peerID, sessionID(peerID), string(state), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", peerID, err)
	}
	s.logger.Debug("profile saved", zap.String("peer_id", peerID))
	return nil
}

// LoadProfile reads the peer's profile from its session row.
// Returns sql.ErrNoRows wrapped when no session exists.
func (s *Store) LoadProfile(peerID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state string
	err := s.db.QueryRow(
		`SELECT state FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		AppName, peerID, sessionID(peerID),
	).Scan(&state)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", peerID, err)
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(state), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile for %s: %w", peerID, err)
	}
	return &p, nil
}

// SaveProposal upserts a proposal row for this peer.
func (s *Store) SaveProposal(peerID string, p proposal.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode proposal: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO proposals (id, peer_id, data, status)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, status = excluded.status`,
		p.ID, peerID, string(data), string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save proposal %s: %w", p.ID, err)
	}
	s.logger.Debug("proposal saved",
		zap.String("proposal_id", p.ID),
		zap.String("status", string(p.Status)))
	return nil
}

// LoadProposals reads all proposals belonging to this peer.
func (s *Store) LoadProposals(peerID string) ([]proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT data FROM proposals WHERE peer_id = ? ORDER BY created_at`, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var out []proposal.Proposal
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var p proposal.Proposal
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveCommittedEvent inserts an accepted proposal's committed slot.
func (s *Store) SaveCommittedEvent(peerID string, e proposal.CommittedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO committed_events (proposal_id, peer_id, title, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ProposalID, peerID, e.Title,
		e.Start.Format(schedule.TimeLayout), e.End.Format(schedule.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save committed event %s: %w", e.ProposalID, err)
	}
	return nil
}

// LoadCommittedEvents reads this peer's committed events.
func (s *Store) LoadCommittedEvents(peerID string) ([]proposal.CommittedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT proposal_id, title, start_time, end_time FROM committed_events WHERE peer_id = ?`,
		peerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query committed events: %w", err)
	}
	defer rows.Close()

	var out []proposal.CommittedEvent
	for rows.Next() {
		var e proposal.CommittedEvent
		var startStr, endStr string
		if err := rows.Scan(&e.ProposalID, &e.Title, &startStr, &endStr); err != nil {
			continue
		}
		start, err1 := schedule.ParseTime(startStr)
		end, err2 := schedule.ParseTime(endStr)
		if err1 != nil || err2 != nil {
			continue
		}
		e.Start, e.End = start, end
		out = append(out, e)
	}
	return out, rows.Err()
}
