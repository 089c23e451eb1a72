package combat

import (
	"errors"
	"fmt"
	"math"

	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

// ErrInvalidRules is returned when a Rules value cannot guarantee termination.
var ErrInvalidRules = errors.New("invalid combat rules")

// Rules holds the tunable constants of the damage formula and the turn cap.
type Rules struct {
	// MaxTurns bounds the loop; when reached the healthier combatant wins.
	MaxTurns int
	// MinDamage is the floor applied to both base and final damage.
	MinDamage int
	// VarianceMin and VarianceMax bound the uniform per-hit variance band.
	VarianceMin float64
	VarianceMax float64
	// UnarmedBaseDamage replaces Weapon.BaseDamage for unarmed combatants.
	UnarmedBaseDamage float64
}

// DefaultRules returns the production constants.
func DefaultRules() Rules {
	return Rules{
		MaxTurns:          1000,
		MinDamage:         1,
		VarianceMin:       0.85,
		VarianceMax:       1.15,
		UnarmedBaseDamage: 1,
	}
}

// Validate reports whether the rules guarantee termination.
//
// Postcondition: Returns nil iff MaxTurns >= 1, MinDamage >= 1,
// 0 < VarianceMin <= VarianceMax and UnarmedBaseDamage >= 0.
func (r Rules) Validate() error {
	var errs []error
	if r.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("max turns must be >= 1, got %d", r.MaxTurns))
	}
	if r.MinDamage < 1 {
		errs = append(errs, fmt.Errorf("min damage must be >= 1, got %d", r.MinDamage))
	}
	if r.VarianceMin <= 0 || r.VarianceMin > r.VarianceMax {
		errs = append(errs, fmt.Errorf("variance band [%g, %g] must satisfy 0 < min <= max", r.VarianceMin, r.VarianceMax))
	}
	if r.UnarmedBaseDamage < 0 {
		errs = append(errs, fmt.Errorf("unarmed base damage must be >= 0, got %g", r.UnarmedBaseDamage))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRules, errors.Join(errs...))
	}
	return nil
}

// BaseDamage computes attack * weaponDamage * multiplier - defense, floored at
// MinDamage. Unarmed attackers use UnarmedBaseDamage and a multiplier of 1.
//
// Postcondition: Returns >= r.MinDamage.
func (r Rules) BaseDamage(attacker, defender *Combatant) float64 {
	weaponDamage := r.UnarmedBaseDamage
	multiplier := 1.0
	if w := attacker.Weapon; w != nil {
		weaponDamage = w.BaseDamage
		multiplier = w.EffectiveMultiplier()
	}
	// Explicit conversions keep the arithmetic unfused so results match on every GOARCH.
	product := float64(float64(attacker.Stats.Attack) * weaponDamage)
	product = float64(product * multiplier)
	base := product - float64(defender.Stats.Defense)
	if base < float64(r.MinDamage) {
		return float64(r.MinDamage)
	}
	return base
}

// Variance maps u in [0, 1) onto [VarianceMin, VarianceMax).
func (r Rules) Variance(u float64) float64 {
	spread := r.VarianceMax - r.VarianceMin
	return r.VarianceMin + float64(u*spread)
}

// MaxDamage caps a single hit so the float-to-int conversion cannot overflow.
const MaxDamage = math.MaxInt32

// FinalDamage applies variance to base, rounds half away from zero and
// re-applies the MinDamage floor. Hits at or above MaxDamage (including +Inf
// from overflowing stats) deal exactly MaxDamage.
//
// Postcondition: Returns a value in [r.MinDamage, MaxDamage].
func (r Rules) FinalDamage(base, variance float64) int {
	d := math.Round(float64(base * variance))
	if d >= MaxDamage {
		return MaxDamage
	}
	dmg := int(d)
	if dmg < r.MinDamage {
		return r.MinDamage
	}
	return dmg
}

// ResolveAttack rolls one hit of attacker against defender, applies it to the
// defender's health and returns the resulting Action.
//
// Precondition: attacker, defender and src are non-nil.
// Postcondition: defender.Stats.Health >= 0; exactly one value drawn from src.
func (r Rules) ResolveAttack(attacker, defender *Combatant, src dice.Source) Action {
	base := r.BaseDamage(attacker, defender)
	variance := r.Variance(src.Float64())
	dmg := r.FinalDamage(base, variance)

	defender.Stats.Health -= dmg
	if defender.Stats.Health < 0 {
		defender.Stats.Health = 0
	}
	return Action{
		AttackerID: attacker.ID,
		TargetID:   defender.ID,
		Type:       ActionAttack,
		Damage:     dmg,
		Roll:       base,
		Variance:   variance,
	}
}

// describe renders the narrative line for an action.
func describe(attacker, defender *Combatant, a Action) string {
	if attacker.Weapon != nil && attacker.Weapon.Name != "" {
		return fmt.Sprintf("%s hits %s with %s for %d damage.", attacker.Name, defender.Name, attacker.Weapon.Name, a.Damage)
	}
	return fmt.Sprintf("%s hits %s for %d damage.", attacker.Name, defender.Name, a.Damage)
}
