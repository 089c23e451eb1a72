package combatlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

//go:generate go tool mockgen -destination=./mocks/repository_mock.go -package=mocks . SessionRepository

// SessionRepository persists combat sessions outside the process.
type SessionRepository interface {
	// SaveSessions upserts sessions for playerID. Sessions already saved are
	// left untouched.
	SaveSessions(ctx context.Context, playerID string, sessions []StoredSession) error
	// LoadRecent returns every session at or after since, grouped by player.
	LoadRecent(ctx context.Context, since time.Time) (map[string][]StoredSession, error)
	// DeleteBefore removes sessions strictly older than cutoff and reports how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// DeletePlayer removes every archived session of playerID and reports how many.
	DeletePlayer(ctx context.Context, playerID string) (int64, error)
}

// Archiver snapshots a Storage to a SessionRepository and warms it back.
// Flush, Clear and Prune are serialized so a flush in flight cannot re-archive
// a player that is being cleared.
type Archiver struct {
	mu     sync.Mutex
	store  *Storage
	repo   SessionRepository
	logger *zap.Logger
}

// NewArchiver creates an Archiver.
//
// Precondition: store and repo must be non-nil.
func NewArchiver(store *Storage, repo SessionRepository, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, repo: repo, logger: logger}
}

// Flush saves every retained session, one repository call per player.
// It stops at the first failure.
//
// Postcondition: Returns the number of sessions handed to the repository.
func (a *Archiver) Flush(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	saved := 0
	for _, playerID := range a.store.Players() {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		sessions := a.store.AllPlayerSessions(playerID)
		if len(sessions) == 0 {
			continue
		}
		if err := a.repo.SaveSessions(ctx, playerID, sessions); err != nil {
			return saved, fmt.Errorf("saving sessions for player %q: %w", playerID, err)
		}
		saved += len(sessions)
	}
	a.logger.Debug("combat logs flushed", zap.Int("sessions", saved))
	return saved, nil
}

// Warm restores sessions newer than maxAgeDays days into the store
// (maxAgeDays <= 0 ⇒ DefaultMaxAgeDays).
func (a *Archiver) Warm(ctx context.Context, maxAgeDays int) error {
	since := a.cutoff(maxAgeDays)
	byPlayer, err := a.repo.LoadRecent(ctx, since)
	if err != nil {
		return fmt.Errorf("loading recent sessions: %w", err)
	}
	total := 0
	for playerID, sessions := range byPlayer {
		a.store.Restore(playerID, sessions)
		total += len(sessions)
	}
	a.logger.Info("combat logs warmed",
		zap.Int("players", len(byPlayer)),
		zap.Int("sessions", total),
	)
	return nil
}

// Prune evicts sessions older than maxAgeDays days from both the store and
// the repository (maxAgeDays <= 0 ⇒ DefaultMaxAgeDays).
func (a *Archiver) Prune(ctx context.Context, maxAgeDays int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := a.store.CleanupOldLogs(maxAgeDays)
	deleted, err := a.repo.DeleteBefore(ctx, a.cutoff(maxAgeDays))
	if err != nil {
		return fmt.Errorf("deleting archived sessions: %w", err)
	}
	a.logger.Info("combat logs pruned",
		zap.Int("memory", removed),
		zap.Int64("archive", deleted),
	)
	return nil
}

// Clear removes playerID's entire record from the repository and then from
// the store, so a later Warm cannot bring it back. Idempotent.
//
// Postcondition: On error the in-memory record is left untouched.
func (a *Archiver) Clear(ctx context.Context, playerID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	deleted, err := a.repo.DeletePlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("deleting archived sessions for player %q: %w", playerID, err)
	}
	a.store.ClearPlayerLogs(playerID)
	a.logger.Info("combat logs cleared",
		zap.String("player", playerID),
		zap.Int64("archive", deleted),
	)
	return nil
}

func (a *Archiver) cutoff(maxAgeDays int) time.Time {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	return a.store.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
}
