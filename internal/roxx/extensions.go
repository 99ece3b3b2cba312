package roxx

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/rollout/rox-go/internal/dynamicvalue"
)

// Bucket computes the deterministic [0,1) rollout value for seed, per the
// bucketing formula of §4.3: the first four bytes of md5(seed), read as a
// little-endian uint32, divided by 2^32-1. An exact 1.0 is coerced to 0.0
// so the range stays half-open.
func Bucket(seed string) float64 {
	sum := md5.Sum([]byte(seed))
	n := binary.LittleEndian.Uint32(sum[0:4])
	v := float64(n) / float64(1<<32-1)
	if v == 1.0 {
		return 0.0
	}
	return v
}

func opMergeSeed(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopString()
	b, _ := s.PopString()
	s.PushString(a + "." + b)
}

func opIsInPercentage(p *Parser, s *Stack, ctx *EvaluationContext) {
	percentage, _ := s.PopNumber()
	seed, _ := s.PopString()
	s.PushBool(Bucket(seed) <= percentage)
}

func opIsInPercentageRange(p *Parser, s *Stack, ctx *EvaluationContext) {
	low, _ := s.PopNumber()
	high, _ := s.PopNumber()
	seed, _ := s.PopString()
	b := Bucket(seed)
	s.PushBool(b >= low && b < high)
}

// PropertyResolver resolves a custom property or dynamic-properties-rule
// value given its name and the evaluation context; ok is false when
// neither the property repository nor the dynamic-properties rule can
// supply a value (§4.3 "property(name)"). The returned Value keeps its
// declared type (Bool/Int/Double/String) so downstream comparison
// operators see a typed operand rather than a stringified one.
type PropertyResolver func(name string, ctx *EvaluationContext) (value dynamicvalue.Value, ok bool)

// FlagValueResolver resolves another flag's current evaluated value, or
// its governing experiment's evaluated condition, or "false" (§4.3
// "flagValue(name)"); the three-step fallback lives on the caller side
// (the orchestrator), this is just the final string producer.
type FlagValueResolver func(name string) string

// TargetGroupResolver evaluates a target group's condition by id; ok is
// false when no such target group exists (§4.3 "isInTargetGroup(id)").
type TargetGroupResolver func(id string, ctx *EvaluationContext) (result bool, ok bool)

// RegisterExtensionOperators wires the orchestrator-supplied resolvers as
// the extension operators of §4.3, plus the seed/bucketing operators that
// need no external state. disposer is invoked from Parser.Close and lets
// the orchestrator release whatever captured references the resolvers
// hold (e.g. repository snapshots) — mirroring the disposal-handler
// pattern the original parser destruction relies on.
func RegisterExtensionOperators(
	p *Parser,
	property PropertyResolver,
	flagValue FlagValueResolver,
	targetGroup TargetGroupResolver,
	disposer func(),
) {
	p.AddOperatorWithDisposer("extensions", "property", func(pp *Parser, s *Stack, ctx *EvaluationContext) {
		name, _ := s.PopString()
		value, ok := property(name, ctx)
		if !ok {
			s.PushUndefined()
			return
		}
		s.PushValue(value)
	}, disposer)

	p.AddOperator("flagValue", func(pp *Parser, s *Stack, ctx *EvaluationContext) {
		name, _ := s.PopString()
		s.PushString(flagValue(name))
	})

	p.AddOperator("isInTargetGroup", func(pp *Parser, s *Stack, ctx *EvaluationContext) {
		id, _ := s.PopString()
		result, ok := targetGroup(id, ctx)
		if !ok {
			s.PushBool(false)
			return
		}
		s.PushBool(result)
	})

	p.AddOperator("mergeSeed", opMergeSeed)
	p.AddOperator("isInPercentage", opIsInPercentage)
	p.AddOperator("isInPercentageRange", opIsInPercentageRange)
}
