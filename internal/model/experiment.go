package model

import (
	"github.com/mitchellh/copystructure"

	"github.com/rollout/rox-go/internal/dynamicvalue"
)

// ExperimentModel is a named expression plus metadata bound to one or more
// flags (§3). Immutable after creation; copied when installed into the
// experiment repository so a later configuration apply cannot mutate a
// model still in use by an in-flight evaluation.
type ExperimentModel struct {
	ID                 string
	Name               string
	Condition          string
	Archived           bool
	FlagNames          []string
	Labels             []string
	StickinessProperty string
}

// Clone returns a deep copy, used by the repository on every atomic list
// replacement (§3 "Experiments ... are replaced atomically").
func (e *ExperimentModel) Clone() *ExperimentModel {
	copied, err := copystructure.Copy(*e)
	if err != nil {
		c := *e
		return &c
	}
	v := copied.(ExperimentModel)
	return &v
}

// TargetGroupModel is a named boolean expression referenced from
// experiment conditions (§3). Immutable.
type TargetGroupModel struct {
	ID        string
	Condition string
}

func (g *TargetGroupModel) Clone() *TargetGroupModel {
	c := *g
	return &c
}

// PropertyKind enumerates CustomProperty's declared type.
type PropertyKind int

const (
	PropertyString PropertyKind = iota
	PropertyBool
	PropertyInt
	PropertyDouble
	PropertySemver
)

// PropertyGenerator computes a CustomProperty's value from a context.
type PropertyGenerator func(ctx Context) dynamicvalue.Value

// CustomProperty is either a constant value or a generator callback (§3).
// Repository keyed by Name; addIfNotExists preserves the first-added.
type CustomProperty struct {
	Name      string
	Kind      PropertyKind
	Value     dynamicvalue.Value
	Generator PropertyGenerator
}

// Resolve evaluates the property against a context: the generator wins
// when present, otherwise the constant Value is returned.
func (p *CustomProperty) Resolve(ctx Context) dynamicvalue.Value {
	if p.Generator != nil {
		return p.Generator(ctx)
	}
	return p.Value
}
