package combat_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func swordsman() combat.Combatant {
	return combat.Combatant{
		ID: "player1", Name: "Hero", IsPlayer: true,
		Stats:  combat.Stats{Health: 100, MaxHealth: 100, Attack: 20, Defense: 10, Speed: 15},
		Weapon: &combat.Weapon{ID: "sword", Name: "Sword", BaseDamage: 10, Multiplier: 1.5},
	}
}

func daggerGoblin() combat.Combatant {
	return combat.Combatant{
		ID: "enemy1", Name: "Goblin",
		Stats:  combat.Stats{Health: 80, MaxHealth: 80, Attack: 15, Defense: 8, Speed: 12},
		Weapon: &combat.Weapon{ID: "dagger", Name: "Dagger", BaseDamage: 5, Multiplier: 1.0},
	}
}

func brawler(id string, health, attack, defense, speed int) combat.Combatant {
	return combat.Combatant{
		ID: id, Name: id,
		Stats: combat.Stats{Health: health, MaxHealth: health, Attack: attack, Defense: defense, Speed: speed},
	}
}

func assertLogInvariant(t assert.TestingT, r combat.Result) {
	assert.GreaterOrEqual(t, r.Turns, 1)
	n := len(r.Logs)
	assert.True(t, n == 2*r.Turns || n == 2*r.Turns-1, "len(logs)=%d turns=%d", n, r.Turns)
}

// TestResolveCombat_EndToEndGolden pins the outcome of the reference scenario.
// The sword hit (20*10*1.5-8 = 292 base) knocks the goblin out on the first
// action, so the single turn has one log entry.
func TestResolveCombat_EndToEndGolden(t *testing.T) {
	eng := combat.NewEngine(combat.WithSeed(12345), combat.WithClock(fixedClock))
	rewards := combat.Rewards{Experience: 50, Gold: 25, ItemIDs: []string{"potion"}}

	res, err := eng.ResolveCombat(swordsman(), daggerGoblin(), rewards)
	require.NoError(t, err)

	assert.Equal(t, "player1", res.WinnerID)
	assert.Equal(t, "enemy1", res.LoserID)
	assert.Equal(t, 1, res.Turns)
	require.Len(t, res.Logs, 1)
	assertLogInvariant(t, res)

	first := res.Logs[0]
	assert.Equal(t, 1, first.Turn)
	assert.Equal(t, fixedNow, first.Timestamp)
	assert.Equal(t, "player1", first.Action.AttackerID)
	assert.Equal(t, "enemy1", first.Action.TargetID)
	assert.Equal(t, combat.ActionAttack, first.Action.Type)
	assert.Equal(t, 292.0, first.Action.Roll)
	assert.InDelta(t, 0.8828735817956483, first.Action.Variance, 1e-12)
	assert.Equal(t, 258, first.Action.Damage)
	assert.Equal(t, map[string]int{"player1": 100, "enemy1": 0}, first.RemainingHealth)
	assert.Equal(t, "Hero hits Goblin with Sword for 258 damage.", first.Description)
	assert.Equal(t, rewards, res.Rewards)
	assert.False(t, res.TurnLimitReached)
}

// TestResolveCombat_UnarmedGolden pins a multi-turn fight so that variance
// draws across turns are covered by the regression.
func TestResolveCombat_UnarmedGolden(t *testing.T) {
	eng := combat.NewEngine(combat.WithSeed(42), combat.WithClock(fixedClock))
	res, err := eng.ResolveCombat(brawler("hero", 60, 14, 4, 10), brawler("goblin", 45, 9, 3, 10), combat.Rewards{})
	require.NoError(t, err)

	assert.Equal(t, "hero", res.WinnerID)
	assert.Equal(t, "goblin", res.LoserID)
	assert.Equal(t, 5, res.Turns)
	require.Len(t, res.Logs, 9)

	var damages []int
	for _, e := range res.Logs {
		damages = append(damages, e.Action.Damage)
	}
	assert.Equal(t, []int{11, 5, 11, 5, 12, 4, 9, 4, 11}, damages)
	assert.Equal(t, map[string]int{"hero": 42, "goblin": 0}, res.Logs[8].RemainingHealth)
	assert.Equal(t, map[string]int{"hero": 55, "goblin": 34}, res.Logs[1].RemainingHealth)
	assert.Equal(t, "goblin hits hero for 5 damage.", res.Logs[1].Description)
}

func TestResolveCombat_SameSeedIdenticalResult(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Int64().Draw(rt, "seed")
		a := brawler("a", rapid.IntRange(1, 300).Draw(rt, "ha"), rapid.IntRange(0, 40).Draw(rt, "atka"), rapid.IntRange(0, 20).Draw(rt, "defa"), rapid.IntRange(0, 30).Draw(rt, "spda"))
		b := brawler("b", rapid.IntRange(1, 300).Draw(rt, "hb"), rapid.IntRange(0, 40).Draw(rt, "atkb"), rapid.IntRange(0, 20).Draw(rt, "defb"), rapid.IntRange(0, 30).Draw(rt, "spdb"))
		if rapid.Bool().Draw(rt, "armed") {
			a.Weapon = &combat.Weapon{ID: "w", Name: "Club", BaseDamage: rapid.Float64Range(0, 10).Draw(rt, "bd"), Multiplier: rapid.Float64Range(0.5, 2).Draw(rt, "mult")}
		}

		r1, err := combat.NewEngine(combat.WithSeed(seed), combat.WithClock(fixedClock)).ResolveCombat(a, b, combat.Rewards{Gold: 1})
		require.NoError(rt, err)
		r2, err := combat.NewEngine(combat.WithSeed(seed), combat.WithClock(fixedClock)).ResolveCombat(a, b, combat.Rewards{Gold: 1})
		require.NoError(rt, err)
		assert.Equal(rt, r1, r2)
	})
}

func TestResolveCombat_UnseededVaries(t *testing.T) {
	var sequences [][]float64
	for i := 0; i < 20; i++ {
		eng := combat.NewEngine()
		res, err := eng.ResolveCombat(brawler("a", 500, 10, 0, 5), brawler("b", 500, 10, 0, 5), combat.Rewards{})
		require.NoError(t, err)
		var seq []float64
		for _, e := range res.Logs {
			seq = append(seq, e.Action.Variance)
		}
		sequences = append(sequences, seq)
	}
	allSame := true
	for _, s := range sequences[1:] {
		if !assert.ObjectsAreEqual(sequences[0], s) {
			allSame = false
			break
		}
	}
	assert.False(t, allSame, "20 unseeded engines produced identical variance sequences")
}

func TestResolveCombat_FasterActsFirst(t *testing.T) {
	fast := brawler("fast", 100, 5, 0, 20)
	slow := brawler("slow", 100, 5, 0, 10)

	res, err := combat.NewEngine(combat.WithSeed(1)).ResolveCombat(slow, fast, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Logs[0].Action.AttackerID)

	fast.Stats.Speed, slow.Stats.Speed = 10, 20
	res, err = combat.NewEngine(combat.WithSeed(1)).ResolveCombat(slow, fast, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, "slow", res.Logs[0].Action.AttackerID)
}

func TestResolveCombat_SpeedTieFavoursFirstArgument(t *testing.T) {
	a := brawler("a", 100, 5, 0, 10)
	b := brawler("b", 100, 5, 0, 10)

	res, err := combat.NewEngine(combat.WithSeed(9)).ResolveCombat(a, b, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Logs[0].Action.AttackerID)

	res, err = combat.NewEngine(combat.WithSeed(9)).ResolveCombat(b, a, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Logs[0].Action.AttackerID)
}

func TestResolveCombat_AlternatesAttackers(t *testing.T) {
	res, err := combat.NewEngine(combat.WithSeed(3)).ResolveCombat(brawler("a", 200, 5, 0, 9), brawler("b", 200, 5, 0, 3), combat.Rewards{})
	require.NoError(t, err)
	for i, e := range res.Logs {
		want := "a"
		if i%2 == 1 {
			want = "b"
		}
		assert.Equal(t, want, e.Action.AttackerID, "entry %d", i)
		assert.Equal(t, i/2+1, e.Turn, "entry %d", i)
		assert.Len(t, e.RemainingHealth, 2)
	}
}

func TestResolveCombat_RetaliationKnockout(t *testing.T) {
	// The fast combatant cannot hurt much; the slow one kills it on its first swing.
	fast := brawler("fast", 5, 0, 0, 20)
	slow := brawler("slow", 100, 50, 0, 1)

	res, err := combat.NewEngine(combat.WithSeed(5)).ResolveCombat(fast, slow, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, "slow", res.WinnerID)
	assert.Equal(t, "fast", res.LoserID)
	assert.Equal(t, 1, res.Turns)
	assert.Len(t, res.Logs, 2)
	assertLogInvariant(t, res)
}

func TestResolveCombat_TurnLimitHealthierWins(t *testing.T) {
	// Damage floors at 1 per hit, so neither side can finish within 1000 turns.
	a := brawler("a", 5000, 1, 50, 5)
	b := brawler("b", 4000, 1, 50, 10)

	res, err := combat.NewEngine(combat.WithSeed(77)).ResolveCombat(a, b, combat.Rewards{})
	require.NoError(t, err)
	assert.True(t, res.TurnLimitReached)
	assert.Equal(t, 1000, res.Turns)
	assert.Len(t, res.Logs, 2000)
	assert.Equal(t, "a", res.WinnerID)
	assert.Equal(t, "b", res.LoserID)
	last := res.Logs[len(res.Logs)-1]
	assert.Equal(t, map[string]int{"a": 4000, "b": 3000}, last.RemainingHealth)
}

func TestResolveCombat_TurnLimitTieFavoursFirstActor(t *testing.T) {
	a := brawler("a", 5000, 1, 50, 5)
	b := brawler("b", 5000, 1, 50, 10)

	res, err := combat.NewEngine(combat.WithSeed(77)).ResolveCombat(a, b, combat.Rewards{})
	require.NoError(t, err)
	assert.True(t, res.TurnLimitReached)
	assert.Equal(t, "b", res.WinnerID, "b is faster and acts first each turn")
}

func TestResolveCombat_CustomTurnLimit(t *testing.T) {
	rules := combat.DefaultRules()
	rules.MaxTurns = 3
	res, err := combat.NewEngine(combat.WithSeed(1), combat.WithRules(rules)).
		ResolveCombat(brawler("a", 1000, 1, 0, 1), brawler("b", 1000, 1, 0, 1), combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Turns)
	assert.Len(t, res.Logs, 6)
	assert.True(t, res.TurnLimitReached)
}

func TestResolveCombat_DoesNotMutateInputs(t *testing.T) {
	a, b := swordsman(), daggerGoblin()
	weaponBefore := *a.Weapon
	_, err := combat.NewEngine(combat.WithSeed(12345)).ResolveCombat(a, b, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, 100, a.Stats.Health)
	assert.Equal(t, 80, b.Stats.Health)
	assert.Equal(t, weaponBefore, *a.Weapon)
}

func TestResolveCombat_RewardsPassThrough(t *testing.T) {
	rewards := combat.Rewards{Experience: 7, Gold: 3, ItemIDs: []string{"a", "b"}}
	res, err := combat.NewEngine().ResolveCombat(swordsman(), daggerGoblin(), rewards)
	require.NoError(t, err)
	assert.Equal(t, rewards, res.Rewards)
}

func TestResolveCombat_Validation(t *testing.T) {
	cases := map[string]func(c *combat.Combatant){
		"empty id":          func(c *combat.Combatant) { c.ID = "" },
		"zero health":       func(c *combat.Combatant) { c.Stats.Health = 0 },
		"zero max health":   func(c *combat.Combatant) { c.Stats.MaxHealth = 0 },
		"health over max":   func(c *combat.Combatant) { c.Stats.Health = c.Stats.MaxHealth + 1 },
		"negative attack":   func(c *combat.Combatant) { c.Stats.Attack = -1 },
		"negative defense":  func(c *combat.Combatant) { c.Stats.Defense = -1 },
		"negative speed":    func(c *combat.Combatant) { c.Stats.Speed = -1 },
		"negative weapon":   func(c *combat.Combatant) { c.Weapon.BaseDamage = -1 },
		"negative multiply": func(c *combat.Combatant) { c.Weapon.Multiplier = -2 },
		"infinite weapon":   func(c *combat.Combatant) { c.Weapon.BaseDamage = math.Inf(1) },
		"nan weapon":        func(c *combat.Combatant) { c.Weapon.BaseDamage = math.NaN() },
		"infinite multiply": func(c *combat.Combatant) { c.Weapon.Multiplier = math.Inf(1) },
		"nan multiply":      func(c *combat.Combatant) { c.Weapon.Multiplier = math.NaN() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			eng := combat.NewEngine(combat.WithSeed(1))
			_, err := eng.ResolveCombat(brawler("x", 10, 1, 1, 1), brawler("y", 10, 1, 1, 1), combat.Rewards{})
			require.NoError(t, err)
			before := eng.Logs(0, 0)

			bad := swordsman()
			mutate(&bad)
			_, err = eng.ResolveCombat(bad, daggerGoblin(), combat.Rewards{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, combat.ErrInvalidCombatant))
			assert.Equal(t, before, eng.Logs(0, 0), "failed resolution must not touch retained logs")
		})
	}
}

func TestResolveCombat_HugeWeaponKnocksOutInOneHit(t *testing.T) {
	a := brawler("a", 100, 10, 0, 10)
	a.Weapon = &combat.Weapon{ID: "sword", BaseDamage: 1e30, Multiplier: 1}
	b := brawler("b", 100, 1, 0, 1)

	res, err := combat.NewEngine(combat.WithSeed(1)).ResolveCombat(a, b, combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, "a", res.WinnerID)
	assert.Equal(t, 1, res.Turns)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, combat.MaxDamage, res.Logs[0].Action.Damage)
	assert.Equal(t, 0, res.Logs[0].RemainingHealth["b"])
}

func TestResolveCombat_DuplicateIDs(t *testing.T) {
	_, err := combat.NewEngine().ResolveCombat(brawler("same", 10, 1, 1, 1), brawler("same", 10, 1, 1, 1), combat.Rewards{})
	assert.ErrorIs(t, err, combat.ErrInvalidCombatant)
}

func TestResolveCombat_InvalidRules(t *testing.T) {
	rules := combat.DefaultRules()
	rules.MinDamage = 0
	_, err := combat.NewEngine(combat.WithRules(rules)).ResolveCombat(swordsman(), daggerGoblin(), combat.Rewards{})
	assert.ErrorIs(t, err, combat.ErrInvalidRules)
}

func TestResolveCombat_TerminatesWithInvariant_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := brawler("a", rapid.IntRange(1, 5000).Draw(rt, "ha"), rapid.IntRange(0, 100).Draw(rt, "atka"), rapid.IntRange(0, 100).Draw(rt, "defa"), rapid.IntRange(0, 50).Draw(rt, "spda"))
		b := brawler("b", rapid.IntRange(1, 5000).Draw(rt, "hb"), rapid.IntRange(0, 100).Draw(rt, "atkb"), rapid.IntRange(0, 100).Draw(rt, "defb"), rapid.IntRange(0, 50).Draw(rt, "spdb"))
		res, err := combat.NewEngine(combat.WithSeed(rapid.Int64().Draw(rt, "seed"))).ResolveCombat(a, b, combat.Rewards{})
		require.NoError(rt, err)
		assertLogInvariant(rt, res)
		assert.LessOrEqual(rt, res.Turns, 1000)
		assert.ElementsMatch(rt, []string{"a", "b"}, []string{res.WinnerID, res.LoserID})
		for _, e := range res.Logs {
			if e.Action.Damage < 1 {
				rt.Fatalf("damage %d below floor", e.Action.Damage)
			}
			if e.Action.Variance < 0.85 || e.Action.Variance >= 1.15 {
				rt.Fatalf("variance %v outside band", e.Action.Variance)
			}
		}
		if !res.TurnLimitReached {
			assert.Equal(rt, 0, res.Logs[len(res.Logs)-1].RemainingHealth[res.LoserID])
		}
	})
}

func TestLogs_FiltersLastResolution(t *testing.T) {
	eng := combat.NewEngine(combat.WithSeed(42))
	assert.Empty(t, eng.Logs(0, 0))

	res, err := eng.ResolveCombat(brawler("hero", 60, 14, 4, 10), brawler("goblin", 45, 9, 3, 10), combat.Rewards{})
	require.NoError(t, err)

	assert.Len(t, eng.Logs(0, 0), len(res.Logs))
	assert.Len(t, eng.Logs(2, 3), 4)
	assert.Len(t, eng.Logs(4, 0), 3)
	assert.Len(t, eng.Logs(0, 1), 2)
	assert.Empty(t, eng.Logs(6, 0))
	for _, e := range eng.Logs(2, 3) {
		assert.True(t, e.Turn >= 2 && e.Turn <= 3)
	}

	// A second resolution replaces the buffer.
	_, err = eng.ResolveCombat(swordsman(), daggerGoblin(), combat.Rewards{})
	require.NoError(t, err)
	assert.Len(t, eng.Logs(0, 0), 1)
}

func TestLogs_ReturnsCopies(t *testing.T) {
	eng := combat.NewEngine(combat.WithSeed(42))
	res, err := eng.ResolveCombat(brawler("hero", 60, 14, 4, 10), brawler("goblin", 45, 9, 3, 10), combat.Rewards{})
	require.NoError(t, err)

	res.Logs[0].RemainingHealth["hero"] = -1
	got := eng.Logs(1, 1)
	got[0].RemainingHealth["goblin"] = -1
	assert.Equal(t, 60, eng.Logs(1, 1)[0].RemainingHealth["hero"])
	assert.Equal(t, 34, eng.Logs(1, 1)[0].RemainingHealth["goblin"])
}

func TestEngine_Seed(t *testing.T) {
	seed, ok := combat.NewEngine(combat.WithSeed(5)).Seed()
	assert.True(t, ok)
	assert.Equal(t, int64(5), seed)

	_, ok = combat.NewEngine().Seed()
	assert.False(t, ok)
}

func TestEngine_TurnLimitLogUsesFixedKeys(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rules := combat.DefaultRules()
	rules.MaxTurns = 2
	eng := combat.NewEngine(combat.WithSeed(1), combat.WithRules(rules), combat.WithLogger(zap.New(core)))
	_, err := eng.ResolveCombat(brawler("winner", 1000, 1, 0, 5), brawler("max_turns", 900, 1, 0, 1), combat.Rewards{})
	require.NoError(t, err)

	entries := logs.FilterMessage("combat reached turn limit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "winner", fields["winner"])
	assert.Equal(t, int64(2), fields["max_turns"])
	assert.Equal(t, "winner", fields["first"])
	assert.Equal(t, int64(998), fields["first_health"])
	assert.Equal(t, "max_turns", fields["second"])
	assert.Equal(t, int64(898), fields["second_health"])
}

func TestEngine_LogsActionsAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	eng := combat.NewEngine(combat.WithSeed(42), combat.WithLogger(zap.New(core)))
	_, err := eng.ResolveCombat(brawler("hero", 60, 14, 4, 10), brawler("goblin", 45, 9, 3, 10), combat.Rewards{})
	require.NoError(t, err)
	assert.Equal(t, 9, logs.FilterMessage("combat action").Len())
	assert.Equal(t, 1, logs.FilterMessage("combat resolved").Len())
}
