package model

import (
	"strconv"
	"sync"

	"github.com/rollout/rox-go/internal/dynamicvalue"
	"github.com/rollout/rox-go/internal/roxx"
)

// Kind is a flag's declared type (§3 "kind ∈ {Bool, Int, Double, String}").
type Kind int

const (
	BoolKind Kind = iota
	IntKind
	DoubleKind
	StringKind
)

// ReportingValue is the flag-name + stringified-value pair reported on
// impression (GLOSSARY "Reporting value").
type ReportingValue struct {
	Name  string
	Value string
}

// ImpressionInvoker is the small interface a Flag dispatches impressions
// through; internal/reporting implements it. Kept as an interface here
// (rather than importing internal/reporting) to break the cyclic
// reference the flag/parser/repository/flag-setter graph would otherwise
// form (§9 "model this with small interface types").
type ImpressionInvoker interface {
	Invoke(reportingValue ReportingValue, experiment *ExperimentModel, ctx Context)
}

// VariantEvalFunc is the replaceable evaluation slot described in §4.14 and
// §9: the base evaluator is installed at construction, and an overrides
// layer (or, in principle, a freeze layer) can compose over it as
// override(base).
type VariantEvalFunc func(defaultOverride *string, ctx *roxx.EvaluationContext) *roxx.EvaluationResult

// Flag is the typed variant record of §3/§4.4.
type Flag struct {
	Name         string
	Kind         Kind
	DefaultValue string
	Options      []string

	mu             sync.RWMutex
	parser         *roxx.Parser
	condition      string
	experiment     *ExperimentModel
	impressionSink ImpressionInvoker
	eval           VariantEvalFunc
	data           interface{}
}

// NewFlag constructs a flag with its base evaluator installed as the
// initial VariantEvalFunc. options must already satisfy "options ⊇
// {defaultValue}"; for BoolKind the caller should pass {"true","false"}.
func NewFlag(name string, kind Kind, defaultValue string, options []string) *Flag {
	f := &Flag{
		Name:         name,
		Kind:         kind,
		DefaultValue: defaultValue,
		Options:      options,
	}
	f.eval = f.baseEval
	return f
}

// Bind installs the evaluation wiring the flag setter computes: the
// parser to evaluate the condition with, the condition text itself (may
// be empty), the governing experiment (nullable), and the impression
// sink. Called both on initial setExperiments() and on post-hoc binding
// of a newly-added flag (§4.6).
func (f *Flag) Bind(parser *roxx.Parser, condition string, experiment *ExperimentModel, sink ImpressionInvoker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parser = parser
	f.condition = condition
	f.experiment = experiment
	f.impressionSink = sink
}

// Unbind clears the flag's condition/experiment, as the flag setter does
// for every flag not targeted by any experiment (§4.6), but still installs
// sink: an untargeted flag has no condition to evaluate, but it still
// reports an impression (with a nil experiment) on every read, per
// GLOSSARY "Impression — the event emitted every time a flag value is
// read".
func (f *Flag) Unbind(sink ImpressionInvoker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.condition = ""
	f.experiment = nil
	f.impressionSink = sink
}

// SetEval installs a new VariantEvalFunc, used by the overrides layer to
// compose override(base) over whatever evaluator is currently installed.
func (f *Flag) SetEval(eval VariantEvalFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eval = eval
}

// BaseEval exposes the flag's own condition-evaluating function so a
// layered evaluator can compose over it (the "base" in override(base)).
func (f *Flag) BaseEval() VariantEvalFunc {
	return f.baseEval
}

// SetData installs the per-flag layered-feature slot (§3 "data").
func (f *Flag) SetData(data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
}

func (f *Flag) Data() interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data
}

// Experiment returns the flag's current governing experiment, or nil.
func (f *Flag) Experiment() *ExperimentModel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.experiment
}

// Condition returns the flag's current condition text.
func (f *Flag) Condition() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.condition
}

// baseEval is the evaluator installed at construction: step 2 of §4.4.
// The impression (step 3) is emitted by the Get* methods, not here.
func (f *Flag) baseEval(defaultOverride *string, ctx *roxx.EvaluationContext) *roxx.EvaluationResult {
	f.mu.RLock()
	parser, condition := f.parser, f.condition
	f.mu.RUnlock()

	if parser == nil || condition == "" {
		return nil
	}
	ctx.FlagName = f.Name
	return parser.EvaluateExpression(condition, ctx)
}

// currentEval returns the currently installed VariantEvalFunc under the lock, so
// an override installed concurrently with a read is observed atomically.
func (f *Flag) currentEval() VariantEvalFunc {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.eval
}

func (f *Flag) emit(ctx Context, stringValue string) {
	f.mu.RLock()
	sink, experiment := f.impressionSink, f.experiment
	f.mu.RUnlock()
	if sink == nil {
		return
	}
	sink.Invoke(ReportingValue{Name: f.Name, Value: stringValue}, experiment, ctx)
}

func resolveDefault(defaultOverride *string, flagDefault string) string {
	if defaultOverride != nil {
		return *defaultOverride
	}
	return flagDefault
}

// GetString implements §4.4's getString: evaluate, coerce per the kind
// converter table, emit an impression, return the typed value.
func (f *Flag) GetString(defaultOverride *string, ctx Context) string {
	def := resolveDefault(defaultOverride, f.DefaultValue)
	result := f.currentEval()(defaultOverride, &roxx.EvaluationContext{Context: map[string]dynamicvalue.Value(ctx)})
	value := convertToString(result, def)
	f.emit(ctx, value)
	return value
}

func (f *Flag) GetBool(defaultOverride *string, ctx Context) bool {
	def := resolveDefault(defaultOverride, f.DefaultValue)
	result := f.currentEval()(defaultOverride, &roxx.EvaluationContext{Context: map[string]dynamicvalue.Value(ctx)})
	value := convertToBool(result, def)
	f.emit(ctx, boolToString(value))
	return value
}

func (f *Flag) GetInt(defaultOverride *string, ctx Context) int64 {
	def := resolveDefault(defaultOverride, f.DefaultValue)
	result := f.currentEval()(defaultOverride, &roxx.EvaluationContext{Context: map[string]dynamicvalue.Value(ctx)})
	value := convertToInt(result, def)
	f.emit(ctx, strconv.FormatInt(value, 10))
	return value
}

func (f *Flag) GetDouble(defaultOverride *string, ctx Context) float64 {
	def := resolveDefault(defaultOverride, f.DefaultValue)
	result := f.currentEval()(defaultOverride, &roxx.EvaluationContext{Context: map[string]dynamicvalue.Value(ctx)})
	value := convertToDouble(result, def)
	f.emit(ctx, strconv.FormatFloat(value, 'f', -1, 64))
	return value
}

// DependencyValue evaluates the flag's own condition the same way
// GetString does, but skips impression dispatch: used only by the
// flagValue extension operator for flag-to-flag dependency lookups, which
// must not themselves generate a reporting event.
func (f *Flag) DependencyValue(ctx Context) string {
	result := f.currentEval()(nil, &roxx.EvaluationContext{Context: map[string]dynamicvalue.Value(ctx)})
	return convertToString(result, f.DefaultValue)
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// --- Kind converters (§4.4 table), grounded on
// original_source/src/core/entities.c's variant_get_value and the
// *_to_string_value / *_value_to_string / result_to_*_value families.

func convertToBool(result *roxx.EvaluationResult, defaultValue string) bool {
	if result == nil || result.IsUndefined() {
		return defaultValue == "true"
	}
	switch result.ItemKind() {
	case roxx.ItemBool:
		b, _ := result.Bool()
		return b
	case roxx.ItemString:
		return result.String() == "true"
	default:
		return defaultValue == "true"
	}
}

func convertToInt(result *roxx.EvaluationResult, defaultValue string) int64 {
	fallback, _ := strconv.ParseInt(defaultValue, 10, 64)
	if result == nil || result.IsUndefined() {
		return fallback
	}
	switch result.ItemKind() {
	case roxx.ItemInt, roxx.ItemDouble:
		i, _ := result.Int()
		return i
	case roxx.ItemString:
		if v, err := strconv.ParseInt(result.String(), 10, 64); err == nil {
			return v
		}
		return fallback
	default:
		return fallback
	}
}

func convertToDouble(result *roxx.EvaluationResult, defaultValue string) float64 {
	fallback, _ := strconv.ParseFloat(defaultValue, 64)
	if result == nil || result.IsUndefined() {
		return fallback
	}
	switch result.ItemKind() {
	case roxx.ItemInt, roxx.ItemDouble:
		d, _ := result.Double()
		return d
	case roxx.ItemString:
		if v, err := strconv.ParseFloat(result.String(), 64); err == nil {
			return v
		}
		return fallback
	default:
		return fallback
	}
}

func convertToString(result *roxx.EvaluationResult, defaultValue string) string {
	if result == nil || result.IsUndefined() {
		return defaultValue
	}
	switch result.ItemKind() {
	case roxx.ItemString, roxx.ItemInt, roxx.ItemDouble, roxx.ItemBool:
		return result.String()
	default:
		return defaultValue
	}
}
