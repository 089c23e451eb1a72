// Package combat implements the deterministic turn-based combat resolver used
// by dungeons, templated encounters and arena duels.
package combat

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCombatant is returned by ResolveCombat when a combatant fails
// validation. No state is mutated when it is returned.
var ErrInvalidCombatant = errors.New("invalid combatant")

// Stats is the numeric stat block of a combatant.
type Stats struct {
	Health    int `json:"health" yaml:"health"`
	MaxHealth int `json:"maxHealth" yaml:"max_health"`
	Attack    int `json:"attack" yaml:"attack"`
	Defense   int `json:"defense" yaml:"defense"`
	Speed     int `json:"speed" yaml:"speed"`
}

// Weapon scales a combatant's attack. A zero Multiplier means "not set" and
// resolves to 1.0.
type Weapon struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	BaseDamage float64 `json:"baseDamage" yaml:"base_damage"`
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier"`
}

// EffectiveMultiplier returns Multiplier, or 1.0 when it is unset.
func (w *Weapon) EffectiveMultiplier() float64 {
	if w.Multiplier == 0 {
		return 1.0
	}
	return w.Multiplier
}

// Combatant is one side of a fight.
type Combatant struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	IsPlayer bool    `json:"isPlayer" yaml:"is_player"`
	Stats    Stats   `json:"stats" yaml:"stats"`
	Weapon   *Weapon `json:"weapon,omitempty" yaml:"weapon"`
}

// Validate checks the combatant's entry preconditions.
//
// Postcondition: Returns nil iff the combatant can enter a fight; otherwise an
// error wrapping ErrInvalidCombatant that lists every violation.
func (c Combatant) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	s := c.Stats
	if s.MaxHealth <= 0 {
		errs = append(errs, fmt.Errorf("maxHealth must be > 0, got %d", s.MaxHealth))
	}
	if s.Health <= 0 {
		errs = append(errs, fmt.Errorf("health must be > 0, got %d", s.Health))
	}
	if s.Health > s.MaxHealth {
		errs = append(errs, fmt.Errorf("health %d exceeds maxHealth %d", s.Health, s.MaxHealth))
	}
	if s.Attack < 0 {
		errs = append(errs, fmt.Errorf("attack must be >= 0, got %d", s.Attack))
	}
	if s.Defense < 0 {
		errs = append(errs, fmt.Errorf("defense must be >= 0, got %d", s.Defense))
	}
	if s.Speed < 0 {
		errs = append(errs, fmt.Errorf("speed must be >= 0, got %d", s.Speed))
	}
	if w := c.Weapon; w != nil {
		if math.IsNaN(w.BaseDamage) || math.IsInf(w.BaseDamage, 0) {
			errs = append(errs, fmt.Errorf("weapon %q baseDamage must be finite, got %g", w.ID, w.BaseDamage))
		} else if w.BaseDamage < 0 {
			errs = append(errs, fmt.Errorf("weapon %q baseDamage must be >= 0, got %g", w.ID, w.BaseDamage))
		}
		if math.IsNaN(w.Multiplier) || math.IsInf(w.Multiplier, 0) {
			errs = append(errs, fmt.Errorf("weapon %q multiplier must be finite, got %g", w.ID, w.Multiplier))
		} else if w.Multiplier < 0 {
			errs = append(errs, fmt.Errorf("weapon %q multiplier must be > 0, got %g", w.ID, w.Multiplier))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidCombatant, c.ID, errors.Join(errs...))
	}
	return nil
}

// clone returns a copy that shares no mutable state with c.
func (c Combatant) clone() *Combatant {
	cp := c
	if c.Weapon != nil {
		w := *c.Weapon
		cp.Weapon = &w
	}
	return &cp
}

// ActionType identifies the kind of a combat action.
type ActionType string

// ActionAttack is the only action the resolver currently emits.
const ActionAttack ActionType = "attack"

// Action is one atomic attack event.
type Action struct {
	AttackerID string     `json:"attackerId"`
	TargetID   string     `json:"targetId"`
	Type       ActionType `json:"type"`
	// Damage is the final integer damage applied.
	Damage int `json:"damage"`
	// Roll is the base damage before variance.
	Roll float64 `json:"roll"`
	// Variance is the multiplicative factor sampled for this hit.
	Variance float64 `json:"variance"`
}

// LogEntry narrates one action. RemainingHealth holds the health of both
// combatants immediately after the action.
type LogEntry struct {
	Turn            int            `json:"turn"`
	Timestamp       time.Time      `json:"timestamp"`
	Action          Action         `json:"action"`
	Description     string         `json:"description"`
	RemainingHealth map[string]int `json:"remainingHealth"`
}

// Clone returns a deep copy of e.
func (e LogEntry) Clone() LogEntry {
	cp := e
	cp.RemainingHealth = make(map[string]int, len(e.RemainingHealth))
	for k, v := range e.RemainingHealth {
		cp.RemainingHealth[k] = v
	}
	return cp
}

// CloneLogs deep-copies a log slice. A nil input yields an empty, non-nil slice.
func CloneLogs(logs []LogEntry) []LogEntry {
	out := make([]LogEntry, len(logs))
	for i, e := range logs {
		out[i] = e.Clone()
	}
	return out
}

// Rewards is carried through resolution untouched; callers own its meaning.
type Rewards struct {
	Experience int      `json:"experience"`
	Gold       int      `json:"gold"`
	ItemIDs    []string `json:"itemIds,omitempty"`
}

// Result is the terminal outcome of one resolution.
type Result struct {
	WinnerID string     `json:"winner"`
	LoserID  string     `json:"loser"`
	Turns    int        `json:"turns"`
	Logs     []LogEntry `json:"logs"`
	Rewards  Rewards    `json:"rewards"`
	// TurnLimitReached is true when the winner was decided by the turn cap.
	TurnLimitReached bool `json:"turnLimitReached,omitempty"`
}
