package combat_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

func TestRules_BaseDamage(t *testing.T) {
	r := combat.DefaultRules()
	hero, goblin := swordsman(), daggerGoblin()

	assert.Equal(t, 292.0, r.BaseDamage(&hero, &goblin))
	assert.Equal(t, 65.0, r.BaseDamage(&goblin, &hero))

	unarmed := brawler("u", 10, 14, 0, 1)
	assert.Equal(t, 11.0, r.BaseDamage(&unarmed, &combat.Combatant{Stats: combat.Stats{Defense: 3}}))
}

func TestRules_BaseDamage_ZeroMultiplierMeansOne(t *testing.T) {
	r := combat.DefaultRules()
	a := brawler("a", 10, 4, 0, 1)
	a.Weapon = &combat.Weapon{ID: "w", BaseDamage: 3}
	d := brawler("d", 10, 1, 2, 1)
	assert.Equal(t, 10.0, r.BaseDamage(&a, &d))
}

func TestRules_BaseDamage_FloorsAtMinimum(t *testing.T) {
	r := combat.DefaultRules()
	weak := brawler("w", 10, 1, 0, 1)
	tank := brawler("t", 10, 1, 500, 1)
	assert.Equal(t, 1.0, r.BaseDamage(&weak, &tank))
}

func TestRules_Variance(t *testing.T) {
	r := combat.DefaultRules()
	assert.Equal(t, 0.85, r.Variance(0))
	assert.InDelta(t, 1.0, r.Variance(0.5), 1e-12)
	assert.Less(t, r.Variance(0.9999999999), 1.15)
}

func TestRules_FinalDamage(t *testing.T) {
	r := combat.DefaultRules()
	assert.Equal(t, 1, r.FinalDamage(1, 0.85))
	assert.Equal(t, 3, r.FinalDamage(2, 1.25), "2.5 rounds half away from zero")
	assert.Equal(t, 10, r.FinalDamage(10, 1.0))
}

func TestRules_FinalDamage_ClampsHugeHits(t *testing.T) {
	r := combat.DefaultRules()
	assert.Equal(t, combat.MaxDamage, r.FinalDamage(1e30, 1.15))
	assert.Equal(t, combat.MaxDamage, r.FinalDamage(math.Inf(1), 0.85))
	assert.Equal(t, combat.MaxDamage-1, r.FinalDamage(float64(combat.MaxDamage-1), 1))
}

func TestRules_Validate(t *testing.T) {
	assert.NoError(t, combat.DefaultRules().Validate())

	bad := []func(*combat.Rules){
		func(r *combat.Rules) { r.MaxTurns = 0 },
		func(r *combat.Rules) { r.MinDamage = 0 },
		func(r *combat.Rules) { r.VarianceMin = 0 },
		func(r *combat.Rules) { r.VarianceMin, r.VarianceMax = 1.2, 1.1 },
		func(r *combat.Rules) { r.UnarmedBaseDamage = -1 },
	}
	for i, mutate := range bad {
		r := combat.DefaultRules()
		mutate(&r)
		assert.ErrorIs(t, r.Validate(), combat.ErrInvalidRules, "case %d", i)
	}
}

func TestRules_ResolveAttack_FloorsHealthAtZero(t *testing.T) {
	r := combat.DefaultRules()
	hero, goblin := swordsman(), daggerGoblin()
	action := r.ResolveAttack(&hero, &goblin, dice.NewSeededSource(12345))
	assert.Equal(t, 0, goblin.Stats.Health)
	assert.Equal(t, 258, action.Damage)
	assert.Equal(t, "player1", action.AttackerID)
}

func TestRules_ResolveAttack_DamageWithinBand_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := combat.DefaultRules()
		a := brawler("a", 100, rapid.IntRange(0, 200).Draw(rt, "atk"), 0, 1)
		d := brawler("d", 100000, 1, rapid.IntRange(0, 200).Draw(rt, "def"), 1)
		base := r.BaseDamage(&a, &d)
		action := r.ResolveAttack(&a, &d, dice.NewSeededSource(rapid.Int64().Draw(rt, "seed")))
		lo := int(base*0.85) - 1
		hi := int(base*1.15) + 1
		if action.Damage < 1 || action.Damage < lo || action.Damage > hi {
			rt.Fatalf("damage %d outside [%d, %d] for base %v", action.Damage, lo, hi, base)
		}
	})
}
