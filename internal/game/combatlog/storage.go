// Package combatlog retains recent combat sessions per player so fights can
// be replayed and audited after the fact.
package combatlog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
)

const (
	// DefaultMaxSessions is the per-player session cap.
	DefaultMaxSessions = 50
	// DefaultMaxEntries is the per-session log entry cap.
	DefaultMaxEntries = 1000
	// DefaultPlayerLogsLimit is the PlayerLogs limit used when none is given.
	DefaultPlayerLogsLimit = 10
	// DefaultMaxAgeDays is the CleanupOldLogs threshold used when none is given.
	DefaultMaxAgeDays = 30
)

// StoredSession is one retained combat log.
type StoredSession struct {
	ID        string            `json:"sessionId"`
	Timestamp time.Time         `json:"timestamp"`
	Logs      []combat.LogEntry `json:"logs"`
}

func (s StoredSession) clone() StoredSession {
	s.Logs = combat.CloneLogs(s.Logs)
	return s
}

// PlayerCombatData holds a player's sessions, most recent first.
type PlayerCombatData struct {
	PlayerID    string
	Sessions    []StoredSession
	LastUpdated time.Time
}

// Stats aggregates the footprint of the whole store.
type Stats struct {
	TotalPlayers  int `json:"totalPlayers"`
	TotalSessions int `json:"totalSessions"`
	TotalLogs     int `json:"totalLogs"`
}

// Storage is an in-memory, per-player, bounded store of combat sessions.
// All methods are safe for concurrent use; every returned slice is a copy.
//
// Invariant: for every player, 1 <= len(Sessions) <= maxSessions, sessions are
// ordered most recent first, and every session holds <= maxEntries logs.
type Storage struct {
	mu          sync.RWMutex
	players     map[string]*PlayerCombatData
	maxSessions int
	maxEntries  int
	now         func() time.Time
	newID       func() string
}

// Option configures a Storage.
type Option func(*Storage)

// WithMaxSessions sets the per-player session cap. Values < 1 are ignored.
func WithMaxSessions(n int) Option {
	return func(s *Storage) {
		if n >= 1 {
			s.maxSessions = n
		}
	}
}

// WithMaxEntries sets the per-session entry cap. Values < 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(s *Storage) {
		if n >= 1 {
			s.maxEntries = n
		}
	}
}

// WithClock replaces time.Now for timestamps and age-based eviction.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the session id generator.
//
// Precondition: gen must return a value unique for the process lifetime.
func WithIDGenerator(gen func() string) Option {
	return func(s *Storage) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStorage creates an empty Storage.
func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		players:     make(map[string]*PlayerCombatData),
		maxSessions: DefaultMaxSessions,
		maxEntries:  DefaultMaxEntries,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreCombatLogs stores logs for playerID timestamped now and returns the new session id.
func (s *Storage) StoreCombatLogs(playerID string, logs []combat.LogEntry) string {
	return s.StoreCombatLogsAt(playerID, logs, time.Time{})
}

// StoreCombatLogsAt stores logs for playerID with timestamp ts (zero ⇒ now).
// Only the first maxEntries entries are kept. The session is prepended, and
// the oldest sessions beyond maxSessions are dropped.
//
// Postcondition: Returns a session id never returned before by this process.
func (s *Storage) StoreCombatLogsAt(playerID string, logs []combat.LogEntry, ts time.Time) string {
	if len(logs) > s.maxEntries {
		logs = logs[:s.maxEntries]
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if ts.IsZero() {
		ts = now
	}
	session := StoredSession{
		ID:        s.newID(),
		Timestamp: ts,
		Logs:      combat.CloneLogs(logs),
	}

	data, ok := s.players[playerID]
	if !ok {
		data = &PlayerCombatData{PlayerID: playerID}
		s.players[playerID] = data
	}
	data.Sessions = append([]StoredSession{session}, data.Sessions...)
	data.Sessions = truncateSessions(data.Sessions, s.maxSessions)
	data.LastUpdated = now
	return session.ID
}

// PlayerLogs returns up to limit most recent sessions for playerID
// (limit <= 0 ⇒ DefaultPlayerLogsLimit). Unknown players yield an empty slice.
func (s *Storage) PlayerLogs(playerID string, limit int) []StoredSession {
	if limit <= 0 {
		limit = DefaultPlayerLogsLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.players[playerID]
	if !ok {
		return []StoredSession{}
	}
	n := min(limit, len(data.Sessions))
	out := make([]StoredSession, n)
	for i := 0; i < n; i++ {
		out[i] = data.Sessions[i].clone()
	}
	return out
}

// CombatLogs returns the logs of one session. The boolean is false when
// either the player or the session is unknown; callers cannot tell which.
func (s *Storage) CombatLogs(playerID, sessionID string) ([]combat.LogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.players[playerID]
	if !ok {
		return nil, false
	}
	for _, sess := range data.Sessions {
		if sess.ID == sessionID {
			return combat.CloneLogs(sess.Logs), true
		}
	}
	return nil, false
}

// AllPlayerSessions returns every retained session for playerID, most recent first.
func (s *Storage) AllPlayerSessions(playerID string) []StoredSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.players[playerID]
	if !ok {
		return []StoredSession{}
	}
	out := make([]StoredSession, len(data.Sessions))
	for i, sess := range data.Sessions {
		out[i] = sess.clone()
	}
	return out
}

// ClearPlayerLogs forgets everything stored for playerID. Idempotent.
// It touches memory only; when sessions are archived use Archiver.Clear.
func (s *Storage) ClearPlayerLogs(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, playerID)
}

// CleanupOldLogs drops sessions older than maxAgeDays days
// (maxAgeDays <= 0 ⇒ DefaultMaxAgeDays) and removes players left without
// sessions.
//
// Postcondition: Returns the number of sessions removed.
func (s *Storage) CleanupOldLogs(maxAgeDays int) int {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	removed := 0
	for id, data := range s.players {
		kept := data.Sessions[:0]
		for _, sess := range data.Sessions {
			if sess.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, sess)
		}
		// Drop references to evicted sessions held past len(kept).
		clear(data.Sessions[len(kept):])
		if len(kept) == 0 {
			delete(s.players, id)
			continue
		}
		data.Sessions = kept
	}
	return removed
}

// StorageStats aggregates counts across all players.
func (s *Storage) StorageStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{TotalPlayers: len(s.players)}
	for _, data := range s.players {
		st.TotalSessions += len(data.Sessions)
		for _, sess := range data.Sessions {
			st.TotalLogs += len(sess.Logs)
		}
	}
	return st
}

// Players returns the tracked player ids in ascending order.
func (s *Storage) Players() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restore merges previously archived sessions into playerID's record. Sessions
// whose id is already present are skipped; the result is re-sorted most recent
// first and both caps are applied.
func (s *Storage) Restore(playerID string, sessions []StoredSession) {
	if len(sessions) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.players[playerID]
	if !ok {
		data = &PlayerCombatData{PlayerID: playerID}
		s.players[playerID] = data
	}
	seen := make(map[string]bool, len(data.Sessions))
	for _, sess := range data.Sessions {
		seen[sess.ID] = true
	}
	for _, sess := range sessions {
		if seen[sess.ID] {
			continue
		}
		seen[sess.ID] = true
		if len(sess.Logs) > s.maxEntries {
			sess.Logs = sess.Logs[:s.maxEntries]
		}
		data.Sessions = append(data.Sessions, sess.clone())
	}
	sort.SliceStable(data.Sessions, func(i, j int) bool {
		return data.Sessions[i].Timestamp.After(data.Sessions[j].Timestamp)
	})
	data.Sessions = truncateSessions(data.Sessions, s.maxSessions)
	data.LastUpdated = s.now()
}

// truncateSessions caps sessions at n and zeroes the dropped tail so the
// backing array does not pin evicted logs.
func truncateSessions(sessions []StoredSession, n int) []StoredSession {
	if len(sessions) <= n {
		return sessions
	}
	clear(sessions[n:])
	return sessions[:n]
}
