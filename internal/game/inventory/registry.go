package inventory

import (
	"fmt"
	"sort"
)

// Registry holds loaded weapon definitions indexed by ID.
type Registry struct {
	weapons map[string]*WeaponDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{weapons: make(map[string]*WeaponDef)}
}

// LoadRegistry loads every weapon in dir into a new Registry.
//
// Postcondition: Returns a populated Registry, or an error on the first
// unreadable, invalid, or duplicate definition.
func LoadRegistry(dir string) (*Registry, error) {
	defs, err := LoadWeapons(dir)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, w := range defs {
		if err := reg.RegisterWeapon(w); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// RegisterWeapon adds w to the registry.
//
// Precondition:  w must not be nil.
// Postcondition: Weapon(w.ID) returns w; returns error if w.ID already registered.
func (r *Registry) RegisterWeapon(w *WeaponDef) error {
	if _, exists := r.weapons[w.ID]; exists {
		return fmt.Errorf("inventory: weapon ID %q already registered", w.ID)
	}
	r.weapons[w.ID] = w
	return nil
}

// Weapon returns the WeaponDef for the given id and whether it was found.
func (r *Registry) Weapon(id string) (*WeaponDef, bool) {
	w, ok := r.weapons[id]
	return w, ok
}

// WeaponIDs returns every registered id in ascending order.
func (r *Registry) WeaponIDs() []string {
	ids := make([]string, 0, len(r.weapons))
	for id := range r.weapons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
