// Package repository implements the in-memory stores for flags,
// experiments, target groups, and custom properties (§4.5): flags are
// keyed and permanent for the process lifetime, while experiments and
// target groups are replaced atomically on every configuration apply.
package repository

import (
	"fmt"
	"sync"

	"github.com/rollout/rox-go/internal/model"
)

// FlagAddedCallback is notified, in registration order, every time a flag
// is added — the flag setter and layered features use this to bind
// post-hoc flags (§4.6).
type FlagAddedCallback func(flag *model.Flag)

// FlagRepository is keyed by name; adding a name twice is an error
// (§3 "adding twice is an error").
type FlagRepository struct {
	mu        sync.RWMutex
	flags     map[string]*model.Flag
	callbacks []FlagAddedCallback
}

func NewFlagRepository() *FlagRepository {
	return &FlagRepository{flags: make(map[string]*model.Flag)}
}

func (r *FlagRepository) AddFlag(flag *model.Flag) error {
	r.mu.Lock()
	if _, exists := r.flags[flag.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("repository: flag %q already registered", flag.Name)
	}
	r.flags[flag.Name] = flag
	callbacks := append([]FlagAddedCallback(nil), r.callbacks...)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(flag)
	}
	return nil
}

func (r *FlagRepository) AddFlagAddedCallback(cb FlagAddedCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

func (r *FlagRepository) GetFlag(name string) (*model.Flag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flags[name]
	return f, ok
}

// GetAllFlags returns a fresh slice snapshotting the current set, safe to
// range over without holding the repository's lock. It is not a live view:
// flags added after the call are not in the returned slice.
func (r *FlagRepository) GetAllFlags() []*model.Flag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Flag, 0, len(r.flags))
	for _, f := range r.flags {
		out = append(out, f)
	}
	return out
}
