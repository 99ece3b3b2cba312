// Package reporting implements the impression invoker and the debounced
// state sender of §4.9/§4.10.
package reporting

import "github.com/rollout/rox-go/internal/model"

// Experiment is the public snapshot an impression handler receives,
// distinct from the internal *model.ExperimentModel so a handler can never
// mutate the model a concurrent configuration apply might be replacing
// (§4.9 "wraps the experiment into a public Experiment snapshot").
type Experiment struct {
	Name       string
	Identifier string
	Archived   bool
}

func snapshotExperiment(e *model.ExperimentModel) *Experiment {
	if e == nil {
		return nil
	}
	return &Experiment{Name: e.Name, Identifier: e.ID, Archived: e.Archived}
}

// Handler receives an impression (§4.9 "Handlers receive {reportingValue,
// experimentSnapshot, context}"). Handlers must not mutate reportingValue
// and must not block the evaluating goroutine (§5).
type Handler func(reportingValue model.ReportingValue, experiment *Experiment, ctx model.Context)

// Invoker holds an ordered list of handlers plus a single optional
// delegate (§4.9). Registration order defines dispatch order.
type Invoker struct {
	delegate Handler
	handlers []Handler
}

func NewInvoker() *Invoker { return &Invoker{} }

// SetDelegate installs the single delegate invoked before every handler.
func (i *Invoker) SetDelegate(h Handler) { i.delegate = h }

// Register appends a handler, run after the delegate, in registration
// order.
func (i *Invoker) Register(h Handler) { i.handlers = append(i.handlers, h) }

// Invoke implements model.ImpressionInvoker so a *Invoker can be handed
// directly to flags as their impression sink.
func (i *Invoker) Invoke(reportingValue model.ReportingValue, experiment *model.ExperimentModel, ctx model.Context) {
	snapshot := snapshotExperiment(experiment)
	if i.delegate != nil {
		i.delegate(reportingValue, snapshot, ctx)
	}
	for _, h := range i.handlers {
		h(reportingValue, snapshot, ctx)
	}
}
