package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/combatlog"
)

// CombatSessionRepository persists combat log sessions as JSONB rows.
// It satisfies combatlog.SessionRepository.
type CombatSessionRepository struct {
	db *pgxpool.Pool
}

var _ combatlog.SessionRepository = (*CombatSessionRepository)(nil)

// NewCombatSessionRepository creates a CombatSessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatSessionRepository(db *pgxpool.Pool) *CombatSessionRepository {
	return &CombatSessionRepository{db: db}
}

// SaveSessions inserts sessions for playerID in one batch. Rows whose
// (player_id, session_id) already exist are left untouched.
//
// Precondition: playerID must be non-empty.
// Postcondition: Returns nil once every session is stored, or the first failure.
func (r *CombatSessionRepository) SaveSessions(ctx context.Context, playerID string, sessions []combatlog.StoredSession) error {
	if len(sessions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range sessions {
		logs, err := json.Marshal(s.Logs)
		if err != nil {
			return fmt.Errorf("encoding logs for session %s: %w", s.ID, err)
		}
		batch.Queue(`
			INSERT INTO combat_sessions (player_id, session_id, occurred_at, entry_count, logs)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (player_id, session_id) DO NOTHING`,
			playerID, s.ID, s.Timestamp, len(s.Logs), logs,
		)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting combat sessions: %w", err)
	}
	return nil
}

// LoadRecent returns sessions with occurred_at >= since grouped by player,
// each group ordered most recent first.
//
// Postcondition: Returns a map (may be empty) or a non-nil error.
func (r *CombatSessionRepository) LoadRecent(ctx context.Context, since time.Time) (map[string][]combatlog.StoredSession, error) {
	rows, err := r.db.Query(ctx, `
		SELECT player_id, session_id, occurred_at, logs
		FROM combat_sessions
		WHERE occurred_at >= $1
		ORDER BY player_id, occurred_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("querying combat sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]combatlog.StoredSession)
	for rows.Next() {
		var (
			playerID string
			s        combatlog.StoredSession
			raw      []byte
		)
		if err := rows.Scan(&playerID, &s.ID, &s.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("scanning combat session row: %w", err)
		}
		if err := json.Unmarshal(raw, &s.Logs); err != nil {
			return nil, fmt.Errorf("decoding logs for session %s: %w", s.ID, err)
		}
		if s.Logs == nil {
			s.Logs = []combat.LogEntry{}
		}
		out[playerID] = append(out[playerID], s)
	}
	return out, rows.Err()
}

// DeleteBefore removes sessions with occurred_at < cutoff.
//
// Postcondition: Returns the number of rows deleted.
func (r *CombatSessionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM combat_sessions WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting combat sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeletePlayer removes every archived session of playerID.
//
// Postcondition: Returns the number of rows deleted; 0 for unknown players.
func (r *CombatSessionRepository) DeletePlayer(ctx context.Context, playerID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM combat_sessions WHERE player_id = $1`, playerID)
	if err != nil {
		return 0, fmt.Errorf("deleting combat sessions for player %q: %w", playerID, err)
	}
	return tag.RowsAffected(), nil
}

// CountSessions returns the number of archived sessions for playerID.
func (r *CombatSessionRepository) CountSessions(ctx context.Context, playerID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM combat_sessions WHERE player_id = $1`, playerID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting combat sessions: %w", err)
	}
	return n, nil
}
