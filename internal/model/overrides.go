package model

import (
	"sync"

	"github.com/rollout/rox-go/internal/roxx"
)

// OverridesStore is the minimal layered-evaluation capability of §4.14: an
// in-memory key-value map keyed by flag name, consulted by a layer that
// composes over a flag's base evaluator as override(base).
type OverridesStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewOverridesStore() *OverridesStore {
	return &OverridesStore{values: make(map[string]string)}
}

func (o *OverridesStore) Set(flagName, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[flagName] = value
}

func (o *OverridesStore) Unset(flagName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.values, flagName)
}

func (o *OverridesStore) HasOverride(flagName string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[flagName]
	return v, ok
}

// Wrap returns a VariantEvalFunc that short-circuits base when an override
// for flagName is present, otherwise delegates to base (§4.14
// "override(base)"). The returned result carries a result whose evaluated
// string is the override value; the flag's own getString/getBool/...
// wrapper still performs the kind conversion and impression dispatch, so
// overridden reads are still reported. The override does not touch the
// flag's experiment pointer, so the impression carries the flag's current
// governing experiment (nil for an untargeted flag).
func (o *OverridesStore) Wrap(flagName string, base VariantEvalFunc) VariantEvalFunc {
	return func(defaultOverride *string, ctx *roxx.EvaluationContext) *roxx.EvaluationResult {
		if v, ok := o.HasOverride(flagName); ok {
			return roxx.StringResult(v)
		}
		return base(defaultOverride, ctx)
	}
}
