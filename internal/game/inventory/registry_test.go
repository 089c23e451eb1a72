package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := inventory.NewRegistry()
	sword := &inventory.WeaponDef{ID: "sword", Name: "Sword", BaseDamage: 10}
	require.NoError(t, reg.RegisterWeapon(sword))

	got, ok := reg.Weapon("sword")
	require.True(t, ok)
	assert.Same(t, sword, got)

	_, ok = reg.Weapon("axe")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	reg := inventory.NewRegistry()
	require.NoError(t, reg.RegisterWeapon(&inventory.WeaponDef{ID: "sword", Name: "Sword"}))
	assert.Error(t, reg.RegisterWeapon(&inventory.WeaponDef{ID: "sword", Name: "Other"}))
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "id: bow\nname: Bow\nbase_damage: 7\n")
	writeFile(t, dir, "a.yaml", "id: axe\nname: Axe\nbase_damage: 12\nmultiplier: 1.2\n")

	reg, err := inventory.LoadRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"axe", "bow"}, reg.WeaponIDs())
}

func TestLoadRegistry_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "id: axe\nname: Axe\n")
	writeFile(t, dir, "b.yaml", "id: axe\nname: Other Axe\n")

	_, err := inventory.LoadRegistry(dir)
	assert.Error(t, err)
}
