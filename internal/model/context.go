// Package model holds the domain records the rest of the SDK operates
// over: flags, experiments, target groups, custom properties, and the
// configuration envelope they are parsed from (§3).
package model

import "github.com/rollout/rox-go/internal/dynamicvalue"

// Context is an immutable keyed map used as a per-call evaluation input.
type Context map[string]dynamicvalue.Value

// Merge returns a view where local overrides global key-by-key, matching
// §3's "merged context ... local overrides key-by-key". The result is a
// fresh map; neither input is mutated. List/Map values are deep-copied so
// a caller holding onto the merged context can never observe (or cause)
// a mutation through the original global/local map.
func Merge(global, local Context) Context {
	merged := make(Context, len(global)+len(local))
	for k, v := range global {
		merged[k] = v.DeepCopy()
	}
	for k, v := range local {
		merged[k] = v.DeepCopy()
	}
	return merged
}
