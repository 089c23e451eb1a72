package combat

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

// Engine resolves one-on-one fights. It retains the logs of its most recent
// resolution for Logs.
//
// An Engine is not safe for concurrent use: give every concurrent combat its
// own Engine.
type Engine struct {
	src    dice.Source
	seed   int64
	seeded bool
	rules  Rules
	logger *zap.Logger
	now    func() time.Time

	lastLogs []LogEntry
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes the engine deterministic: same seed, same combatants, same result.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.src = dice.NewSeededSource(seed)
		e.seed = seed
		e.seeded = true
	}
}

// WithSource draws randomness from src instead of a seed or ambient entropy.
func WithSource(src dice.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.src = src
			e.seeded = false
		}
	}
}

// WithRules overrides DefaultRules.
func WithRules(r Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithLogger attaches a logger; actions are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the wall clock used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an Engine. Without WithSeed or WithSource it draws from
// crypto/rand and its results are not reproducible.
//
// Postcondition: Returns a non-nil Engine with an empty log buffer.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:  DefaultRules(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = dice.NewCryptoSource()
	}
	return e
}

// Seed returns the seed the engine was built with, if any.
func (e *Engine) Seed() (int64, bool) { return e.seed, e.seeded }

// Rules returns the rules in effect.
func (e *Engine) Rules() Rules { return e.rules }

// ResolveCombat runs a to the death fight between a and b and returns the outcome.
//
// Each turn the faster combatant attacks first (a on equal speed); if the
// defender survives it retaliates. The fight ends as soon as either side
// reaches 0 health, or after Rules.MaxTurns turns, in which case the
// combatant with more remaining health wins (the first actor on a tie).
//
// Precondition: a and b pass Validate and have distinct IDs.
// Postcondition: On success len(Logs) is 2*Turns or 2*Turns-1, Turns >= 1,
// Rewards equals rewards, and a and b are not modified. On error nothing is
// mutated, including the engine's retained logs.
func (e *Engine) ResolveCombat(a, b Combatant, rewards Rewards) (Result, error) {
	if err := e.rules.Validate(); err != nil {
		return Result{}, err
	}
	if err := a.Validate(); err != nil {
		return Result{}, err
	}
	if err := b.Validate(); err != nil {
		return Result{}, err
	}
	if a.ID == b.ID {
		return Result{}, fmt.Errorf("%w: both combatants have id %q", ErrInvalidCombatant, a.ID)
	}

	first, second := a.clone(), b.clone()
	if second.Stats.Speed > first.Stats.Speed {
		first, second = second, first
	}

	logs := make([]LogEntry, 0, 16)
	result := Result{Rewards: rewards}
	for turn := 1; turn <= e.rules.MaxTurns; turn++ {
		result.Turns = turn
		logs = append(logs, e.strike(turn, first, second))
		if second.Stats.Health == 0 {
			result.WinnerID, result.LoserID = first.ID, second.ID
			break
		}
		logs = append(logs, e.strike(turn, second, first))
		if first.Stats.Health == 0 {
			result.WinnerID, result.LoserID = second.ID, first.ID
			break
		}
	}

	if result.WinnerID == "" {
		result.TurnLimitReached = true
		if second.Stats.Health > first.Stats.Health {
			result.WinnerID, result.LoserID = second.ID, first.ID
		} else {
			result.WinnerID, result.LoserID = first.ID, second.ID
		}
		e.logger.Warn("combat reached turn limit",
			zap.Int("max_turns", e.rules.MaxTurns),
			zap.String("winner", result.WinnerID),
			zap.String("first", first.ID),
			zap.Int("first_health", first.Stats.Health),
			zap.String("second", second.ID),
			zap.Int("second_health", second.Stats.Health),
		)
	}

	result.Logs = logs
	e.lastLogs = CloneLogs(logs)
	e.logger.Debug("combat resolved",
		zap.String("winner", result.WinnerID),
		zap.String("loser", result.LoserID),
		zap.Int("turns", result.Turns),
		zap.Int("actions", len(logs)),
		zap.Bool("seeded", e.seeded),
	)
	return result, nil
}

// strike resolves one action and narrates it.
func (e *Engine) strike(turn int, attacker, defender *Combatant) LogEntry {
	action := e.rules.ResolveAttack(attacker, defender, e.src)
	entry := LogEntry{
		Turn:        turn,
		Timestamp:   e.now(),
		Action:      action,
		Description: describe(attacker, defender, action),
		RemainingHealth: map[string]int{
			attacker.ID: attacker.Stats.Health,
			defender.ID: defender.Stats.Health,
		},
	}
	e.logger.Debug("combat action",
		zap.Int("turn", turn),
		zap.String("attacker", action.AttackerID),
		zap.String("target", action.TargetID),
		zap.Float64("roll", action.Roll),
		zap.Float64("variance", action.Variance),
		zap.Int("damage", action.Damage),
		zap.Int("target_health", defender.Stats.Health),
	)
	return entry
}

// Logs returns a copy of the most recent resolution's logs whose turn lies in
// [startTurn, endTurn]. A bound <= 0 is unbounded in that direction.
//
// Postcondition: Returns an empty slice before the first resolution.
func (e *Engine) Logs(startTurn, endTurn int) []LogEntry {
	out := make([]LogEntry, 0, len(e.lastLogs))
	for _, entry := range e.lastLogs {
		if startTurn > 0 && entry.Turn < startTurn {
			continue
		}
		if endTurn > 0 && entry.Turn > endTurn {
			continue
		}
		out = append(out, entry.Clone())
	}
	return out
}
