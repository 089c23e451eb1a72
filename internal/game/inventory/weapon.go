// Package inventory loads the weapon catalogue that equips combatants.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
)

// WeaponDef defines the static properties of a weapon loaded from YAML.
type WeaponDef struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	BaseDamage float64 `yaml:"base_damage"`
	// Multiplier scales BaseDamage; 0 is read as 1.
	Multiplier float64 `yaml:"multiplier"`
}

// Validate checks that the WeaponDef satisfies its invariants.
//
// Precondition: w is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (w *WeaponDef) Validate() error {
	var errs []error
	if w.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if w.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if w.BaseDamage < 0 {
		errs = append(errs, fmt.Errorf("BaseDamage must be >= 0, got %g", w.BaseDamage))
	}
	if w.Multiplier < 0 {
		errs = append(errs, fmt.Errorf("Multiplier must be >= 0, got %g", w.Multiplier))
	}
	if len(errs) > 0 {
		return fmt.Errorf("weapon validation failed: %v", errs)
	}
	return nil
}

// CombatWeapon returns a fresh combat.Weapon carrying this definition's numbers.
func (w *WeaponDef) CombatWeapon() *combat.Weapon {
	return &combat.Weapon{
		ID:         w.ID,
		Name:       w.Name,
		BaseDamage: w.BaseDamage,
		Multiplier: w.Multiplier,
	}
}

// LoadWeapons reads all *.yaml and *.yml files from dir, parses each as a
// WeaponDef, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid WeaponDefs or the first encountered error.
func LoadWeapons(dir string) ([]*WeaponDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadWeapons: cannot read directory %q: %w", dir, err)
	}

	var weapons []*WeaponDef
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadWeapons: cannot read file %q: %w", path, err)
		}
		var w WeaponDef
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("LoadWeapons: cannot parse file %q: %w", path, err)
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("LoadWeapons: invalid weapon in %q: %w", path, err)
		}
		weapons = append(weapons, &w)
	}
	return weapons, nil
}
