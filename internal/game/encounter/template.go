// Package encounter runs templated player-versus-environment fights: it
// builds the enemy from a YAML template, rolls its reward table, resolves the
// fight and files the combat log under the player.
package encounter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

// ItemDrop is one entry of a reward table with an independent drop chance.
type ItemDrop struct {
	ItemID string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
}

// RewardTable describes what defeating a template can yield.
type RewardTable struct {
	Experience int `yaml:"experience"`
	// Gold is a dice expression such as "2d6+3"; empty means no gold.
	Gold  string     `yaml:"gold"`
	Items []ItemDrop `yaml:"items"`
}

// Validate checks the reward table.
//
// Postcondition: Returns nil iff Experience >= 0, Gold is empty or parses, and
// every item has an id and a chance in (0, 1].
func (rt *RewardTable) Validate() error {
	if rt.Experience < 0 {
		return fmt.Errorf("rewards: experience must be >= 0, got %d", rt.Experience)
	}
	if rt.Gold != "" {
		if _, err := dice.Parse(rt.Gold); err != nil {
			return fmt.Errorf("rewards: gold: %w", err)
		}
	}
	for i, item := range rt.Items {
		if item.ItemID == "" {
			return fmt.Errorf("rewards: item[%d] must have a non-empty item id", i)
		}
		if item.Chance <= 0 || item.Chance > 1.0 {
			return fmt.Errorf("rewards: item[%d] chance must be in (0, 1.0], got %f", i, item.Chance)
		}
	}
	return nil
}

// Template is a reusable enemy archetype loaded from YAML.
type Template struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Level       int          `yaml:"level"`
	Stats       combat.Stats `yaml:"stats"`
	// WeaponID refers to an inventory weapon; empty means unarmed.
	WeaponID string      `yaml:"weapon"`
	Rewards  RewardTable `yaml:"rewards"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1, the
// stat block is a valid fresh combatant, and the reward table is valid.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("encounter template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("encounter template %q: name must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("encounter template %q: level must be >= 1", t.ID)
	}
	probe := combat.Combatant{ID: t.ID, Name: t.Name, Stats: t.Stats}
	if err := probe.Validate(); err != nil {
		return fmt.Errorf("encounter template %q: %w", t.ID, err)
	}
	if err := t.Rewards.Validate(); err != nil {
		return fmt.Errorf("encounter template %q: %w", t.ID, err)
	}
	return nil
}

// LoadTemplateFromBytes parses a single template from raw YAML bytes. A
// missing health is filled from max_health.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if tmpl.Stats.Health == 0 {
		tmpl.Stats.Health = tmpl.Stats.MaxHealth
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse,
// validate, or duplicate-id failure.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading encounter dir %q: %w", dir, err)
	}

	seen := make(map[string]string)
	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if prev, dup := seen[tmpl.ID]; dup {
			return nil, fmt.Errorf("loading %q: template id %q already defined in %q", path, tmpl.ID, prev)
		}
		seen[tmpl.ID] = path
		templates = append(templates, tmpl)
	}
	return templates, nil
}
