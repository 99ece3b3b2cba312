package repository

import (
	"sync"

	"github.com/rollout/rox-go/internal/model"
)

// CustomPropertyAddedCallback is notified on every add, used by the state
// sender to debounce a state submission (§4.10).
type CustomPropertyAddedCallback func(name string)

// CustomPropertyRepository is keyed by Name; AddIfNotExists preserves the
// first-added value (§4.5/§3).
type CustomPropertyRepository struct {
	mu        sync.RWMutex
	byName    map[string]*model.CustomProperty
	callbacks []CustomPropertyAddedCallback
}

func NewCustomPropertyRepository() *CustomPropertyRepository {
	return &CustomPropertyRepository{byName: make(map[string]*model.CustomProperty)}
}

// Add stores prop under its own Name, overwriting any previous value, and
// fires the add callbacks.
func (r *CustomPropertyRepository) Add(prop *model.CustomProperty) {
	r.mu.Lock()
	r.byName[prop.Name] = prop
	callbacks := append([]CustomPropertyAddedCallback(nil), r.callbacks...)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(prop.Name)
	}
}

// AddIfNotExists stores prop only if its name is not already present;
// returns true if it was stored.
func (r *CustomPropertyRepository) AddIfNotExists(prop *model.CustomProperty) bool {
	r.mu.Lock()
	if _, exists := r.byName[prop.Name]; exists {
		r.mu.Unlock()
		return false
	}
	r.byName[prop.Name] = prop
	callbacks := append([]CustomPropertyAddedCallback(nil), r.callbacks...)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(prop.Name)
	}
	return true
}

func (r *CustomPropertyRepository) GetByName(name string) (*model.CustomProperty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byName[name]
	return v, ok
}

func (r *CustomPropertyRepository) AddAddedCallback(cb CustomPropertyAddedCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// GetAllNames returns a snapshot of registered property names; the state
// fingerprint sorts this slice before hashing so the result is
// independent of insertion order (§4.10, §8 invariant 8).
func (r *CustomPropertyRepository) GetAllNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
