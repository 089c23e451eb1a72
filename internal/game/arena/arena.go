// Package arena runs seeded player-versus-player duels whose outcome can be
// replayed and verified from the recorded seed.
package arena

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/combatlog"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

// ErrReplayMismatch is returned by Verify when a re-run disagrees with the record.
var ErrReplayMismatch = errors.New("arena replay mismatch")

// Record is everything needed to audit a duel.
type Record struct {
	Seed   int64
	Result combat.Result
	// SessionIDs maps each player participant to the session holding the duel log.
	SessionIDs map[string]string
}

// Service runs duels.
type Service struct {
	store   *combatlog.Storage
	rules   combat.Rules
	logger  *zap.Logger
	newSeed func() (int64, error)
}

// Option configures a Service.
type Option func(*Service)

// WithRules overrides the combat rules used for duels and replays.
func WithRules(r combat.Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSeedSource replaces dice.NewSeed as the source of duel seeds.
func WithSeedSource(fn func() (int64, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.newSeed = fn
		}
	}
}

// NewService creates a duel Service that files logs into store.
//
// Precondition: store must be non-nil.
func NewService(store *combatlog.Storage, opts ...Option) *Service {
	s := &Service{
		store:   store,
		rules:   combat.DefaultRules(),
		logger:  zap.NewNop(),
		newSeed: dice.NewSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Duel draws a fresh seed, resolves challenger against defender, and stores
// the log once for every participant with IsPlayer set.
//
// Postcondition: Replay(record.Seed, challenger, defender, rewards) reproduces
// record.Result exactly.
func (s *Service) Duel(challenger, defender combat.Combatant, rewards combat.Rewards) (Record, error) {
	seed, err := s.newSeed()
	if err != nil {
		return Record{}, fmt.Errorf("drawing duel seed: %w", err)
	}
	result, err := s.Replay(seed, challenger, defender, rewards)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Seed: seed, Result: result, SessionIDs: make(map[string]string, 2)}
	for _, c := range []combat.Combatant{challenger, defender} {
		if c.IsPlayer {
			rec.SessionIDs[c.ID] = s.store.StoreCombatLogs(c.ID, result.Logs)
		}
	}
	s.logger.Info("duel resolved",
		zap.Int64("seed", seed),
		zap.String("challenger", challenger.ID),
		zap.String("defender", defender.ID),
		zap.String("winner", result.WinnerID),
		zap.Int("turns", result.Turns),
	)
	return rec, nil
}

// Replay resolves the duel with a fresh engine seeded with seed. It stores nothing.
func (s *Service) Replay(seed int64, challenger, defender combat.Combatant, rewards combat.Rewards) (combat.Result, error) {
	engine := combat.NewEngine(
		combat.WithSeed(seed),
		combat.WithRules(s.rules),
		combat.WithLogger(s.logger),
	)
	result, err := engine.ResolveCombat(challenger, defender, rewards)
	if err != nil {
		return combat.Result{}, fmt.Errorf("duel %s vs %s: %w", challenger.ID, defender.ID, err)
	}
	return result, nil
}

// Verify re-runs the duel described by rec and compares every outcome field
// and every logged action. Timestamps are ignored.
//
// Postcondition: Returns nil on agreement, an error wrapping ErrReplayMismatch
// on disagreement, or the replay error if the combatants are invalid.
func (s *Service) Verify(rec Record, challenger, defender combat.Combatant) error {
	got, err := s.Replay(rec.Seed, challenger, defender, rec.Result.Rewards)
	if err != nil {
		return err
	}
	want := rec.Result
	switch {
	case got.WinnerID != want.WinnerID:
		return fmt.Errorf("%w: winner %q, recorded %q", ErrReplayMismatch, got.WinnerID, want.WinnerID)
	case got.Turns != want.Turns:
		return fmt.Errorf("%w: %d turns, recorded %d", ErrReplayMismatch, got.Turns, want.Turns)
	case got.TurnLimitReached != want.TurnLimitReached:
		return fmt.Errorf("%w: turn limit flag differs", ErrReplayMismatch)
	case len(got.Logs) != len(want.Logs):
		return fmt.Errorf("%w: %d log entries, recorded %d", ErrReplayMismatch, len(got.Logs), len(want.Logs))
	}
	for i := range got.Logs {
		g, w := got.Logs[i], want.Logs[i]
		if g.Turn != w.Turn || g.Action != w.Action || !reflect.DeepEqual(g.RemainingHealth, w.RemainingHealth) {
			return fmt.Errorf("%w: log entry %d differs", ErrReplayMismatch, i)
		}
	}
	return nil
}
