// Package roxx implements the prefix-notation expression language that
// drives experiment conditions and target-group membership: tokenizer,
// stack, parser/evaluator, and the built-in and extension operator tables.
package roxx

import (
	"sync"

	"github.com/rollout/rox-go/internal/dynamicvalue"
)

// EvaluationContext is the per-call object an evaluation runs against: the
// merged context, and identifying information for extension operators that
// need to resolve other flags or properties (§3 EvaluationContext).
type EvaluationContext struct {
	Context           map[string]dynamicvalue.Value
	FlagName          string
	ConsiderOverrides bool
}

// Get looks up a key in the merged context.
func (c *EvaluationContext) Get(key string) (dynamicvalue.Value, bool) {
	if c == nil || c.Context == nil {
		return dynamicvalue.Value{}, false
	}
	v, ok := c.Context[key]
	return v, ok
}

func (c *EvaluationContext) snapshotContext() map[string]dynamicvalue.Value {
	if c == nil {
		return nil
	}
	return c.Context
}

// EvaluationResult wraps the top-of-stack value left after a full
// right-to-left walk, plus the context the evaluation ran against (§4.3).
type EvaluationResult struct {
	item        Item
	usedContext map[string]dynamicvalue.Value
}

func undefinedResult(ctx *EvaluationContext) *EvaluationResult {
	return &EvaluationResult{item: Item{Kind: ItemUndefined}, usedContext: ctx.snapshotContext()}
}

// StringResult builds a synthetic result wrapping a literal string, used
// by layered evaluators (e.g. the overrides store) that short-circuit the
// base evaluator with a plain stored value instead of an expression.
func StringResult(s string) *EvaluationResult {
	return &EvaluationResult{item: Item{Kind: ItemString, S: s}}
}

func (r *EvaluationResult) IsUndefined() bool { return r.item.Kind == ItemUndefined }
func (r *EvaluationResult) ItemKind() ItemKind { return r.item.Kind }
func (r *EvaluationResult) String() string     { return r.item.String() }
func (r *EvaluationResult) UsedContext() map[string]dynamicvalue.Value { return r.usedContext }

func (r *EvaluationResult) Bool() (bool, bool) {
	if r.item.Kind != ItemBool {
		return false, false
	}
	return r.item.B, true
}

func (r *EvaluationResult) Int() (int64, bool) {
	switch r.item.Kind {
	case ItemInt:
		return r.item.I, true
	case ItemDouble:
		return int64(r.item.F), true
	default:
		return 0, false
	}
}

func (r *EvaluationResult) Double() (float64, bool) {
	return r.item.Number()
}

func (r *EvaluationResult) DynamicValue() dynamicvalue.Value { return r.item.ToDynamicValue() }

// Operator pops its operands off the stack and pushes its result.
type Operator func(p *Parser, stack *Stack, ctx *EvaluationContext)

// Parser holds the operator table described in §4.3: registration is
// add_operator(name, target, fn); the table also holds per-target
// disposal callbacks invoked when the parser is destroyed, so extension
// collaborators can release captured references (Close).
type Parser struct {
	mu        sync.RWMutex
	operators map[string]Operator
	disposers map[string][]func()
}

// NewParser constructs a parser with every built-in operator registered.
// Extension operators (property, flagValue, isInTargetGroup, mergeSeed,
// isInPercentage, isInPercentageRange) are registered separately by the
// orchestrator via RegisterExtensionOperators, since property, flagValue
// and isInTargetGroup close over repositories this package does not know
// about.
func NewParser() *Parser {
	p := &Parser{
		operators: make(map[string]Operator),
		disposers: make(map[string][]func()),
	}
	p.registerBuiltins()
	return p
}

// AddOperator registers an operator with no associated disposer.
func (p *Parser) AddOperator(name string, fn Operator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.operators[name] = fn
}

// AddOperatorWithDisposer registers an operator and associates a disposer
// with a target key; all disposers for a target run when Close is called.
func (p *Parser) AddOperatorWithDisposer(target, name string, fn Operator, disposer func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.operators[name] = fn
	if disposer != nil {
		p.disposers[target] = append(p.disposers[target], disposer)
	}
}

// Close invokes every registered disposer exactly once. Safe to call from
// the orchestrator's teardown path even if no extension operators were
// ever registered.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for target, fns := range p.disposers {
		for _, fn := range fns {
			fn()
		}
		delete(p.disposers, target)
	}
}

func (p *Parser) lookup(name string) (Operator, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	op, ok := p.operators[name]
	return op, ok
}

// EvaluateExpression runs the algorithm of §4.3: tokenize, walk the tokens
// right-to-left pushing operands and invoking operators, and take the
// top-of-stack as the result. Any operator fault (panic) or an empty final
// stack degrades to an undefined result; faults never propagate (§7).
func (p *Parser) EvaluateExpression(expr string, ctx *EvaluationContext) (result *EvaluationResult) {
	if ctx == nil {
		ctx = &EvaluationContext{}
	}
	defer func() {
		if recover() != nil {
			result = undefinedResult(ctx)
		}
	}()

	if expr == "" {
		return undefinedResult(ctx)
	}

	tokens, err := Tokenize(expr)
	if err != nil {
		return undefinedResult(ctx)
	}

	stack := NewStack()
	for i := len(tokens) - 1; i >= 0; i-- {
		p.pushToken(tokens[i], stack, ctx)
	}

	if stack.IsEmpty() {
		return undefinedResult(ctx)
	}
	top, _ := stack.Pop()
	return &EvaluationResult{item: top, usedContext: ctx.snapshotContext()}
}

func (p *Parser) pushToken(t Token, stack *Stack, ctx *EvaluationContext) {
	switch t.Kind {
	case KindOperator:
		op, ok := p.lookup(t.Name)
		if !ok {
			stack.PushBool(false)
			return
		}
		op(p, stack, ctx)
	case KindNumber:
		if t.IsInt {
			stack.PushInt(int64(t.Num))
		} else {
			stack.PushDouble(t.Num)
		}
	case KindBool:
		stack.PushBool(t.Bool)
	case KindUndefined:
		stack.PushUndefined()
	case KindString:
		stack.PushString(t.Str)
	case KindList:
		stack.PushValue(tokenToLiteralValue(t))
	}
}

func tokenToLiteralValue(t Token) dynamicvalue.Value {
	switch t.Kind {
	case KindNumber:
		if t.IsInt {
			return dynamicvalue.NewInt(int64(t.Num))
		}
		return dynamicvalue.NewDouble(t.Num)
	case KindString:
		return dynamicvalue.NewString(t.Str)
	case KindBool:
		return dynamicvalue.NewBool(t.Bool)
	case KindUndefined:
		return dynamicvalue.NewUndefined()
	case KindList:
		items := make([]dynamicvalue.Value, len(t.Elements))
		for i, e := range t.Elements {
			items[i] = tokenToLiteralValue(e)
		}
		return dynamicvalue.NewList(items)
	default:
		return dynamicvalue.NewUndefined()
	}
}
