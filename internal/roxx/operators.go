package roxx

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/rollout/rox-go/internal/dynamicvalue"
)

func (p *Parser) registerBuiltins() {
	p.operators["and"] = opAnd
	p.operators["or"] = opOr
	p.operators["not"] = opNot

	p.operators["eq"] = opEq
	p.operators["ne"] = opNe
	p.operators["numeq"] = opNumEq
	p.operators["numne"] = opNumNe

	p.operators["lt"] = opLt
	p.operators["lte"] = opLte
	p.operators["gt"] = opGt
	p.operators["gte"] = opGte

	p.operators["semverEq"] = opSemverEq
	p.operators["semverNe"] = opSemverNe
	p.operators["semverLt"] = opSemverLt
	p.operators["semverLte"] = opSemverLte
	p.operators["semverGt"] = opSemverGt
	p.operators["semverGte"] = opSemverGte

	p.operators["ifThen"] = opIfThen
	p.operators["isUndefined"] = opIsUndefined
	p.operators["now"] = opNow
	p.operators["match"] = opMatch
	p.operators["inArray"] = opInArray
	p.operators["concat"] = opConcat
	p.operators["b64d"] = opB64d
	p.operators["md5"] = opMd5
}

func opAnd(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopBool()
	b, _ := s.PopBool()
	s.PushBool(a && b)
}

func opOr(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopBool()
	b, _ := s.PopBool()
	s.PushBool(a || b)
}

func opNot(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopBool()
	s.PushBool(!a)
}

func itemsEqual(a, b Item) bool {
	if a.IsUndefined() || b.IsUndefined() {
		return a.IsUndefined() && b.IsUndefined()
	}
	return a.ToDynamicValue().Equal(b.ToDynamicValue())
}

func opEq(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	s.PushBool(itemsEqual(a, b))
}

func opNe(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	s.PushBool(!itemsEqual(a, b))
}

// toNumericForCompare parses the numeq/numne operand to a float64,
// coercing strings to numbers (the only place this coercion happens, per
// §9); Undefined never parses.
func toNumericForCompare(it Item) (float64, bool) {
	if n, ok := it.Number(); ok {
		return n, true
	}
	if it.Kind == ItemString {
		if n, err := strconv.ParseFloat(it.S, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func opNumEq(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	if a.IsUndefined() || b.IsUndefined() {
		s.PushBool(a.IsUndefined() && b.IsUndefined())
		return
	}
	na, oka := toNumericForCompare(a)
	nb, okb := toNumericForCompare(b)
	s.PushBool(oka && okb && na == nb)
}

func opNumNe(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	if a.IsUndefined() || b.IsUndefined() {
		s.PushBool(!(a.IsUndefined() && b.IsUndefined()))
		return
	}
	na, oka := toNumericForCompare(a)
	nb, okb := toNumericForCompare(b)
	s.PushBool(!(oka && okb && na == nb))
}

func opLt(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	na, oka := a.Number()
	nb, okb := b.Number()
	s.PushBool(oka && okb && na < nb)
}

func opLte(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	na, oka := a.Number()
	nb, okb := b.Number()
	s.PushBool(oka && okb && na <= nb)
}

func opGt(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	na, oka := a.Number()
	nb, okb := b.Number()
	s.PushBool(oka && okb && na > nb)
}

func opGte(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	na, oka := a.Number()
	nb, okb := b.Number()
	s.PushBool(oka && okb && na >= nb)
}

// toSemver normalizes a bare "MAJOR.MINOR[.PATCH]" string to the
// "vMAJOR.MINOR.PATCH" form golang.org/x/mod/semver requires.
func toSemver(it Item) (string, bool) {
	if it.Kind != ItemString {
		return "", false
	}
	v := it.S
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}

func semverCompare(s *Stack, cmp func(c int) bool) {
	a, _ := s.Pop()
	b, _ := s.Pop()
	va, oka := toSemver(a)
	vb, okb := toSemver(b)
	if !oka || !okb {
		s.PushBool(false)
		return
	}
	s.PushBool(cmp(semver.Compare(va, vb)))
}

func opSemverEq(p *Parser, s *Stack, ctx *EvaluationContext) {
	semverCompare(s, func(c int) bool { return c == 0 })
}
func opSemverNe(p *Parser, s *Stack, ctx *EvaluationContext) {
	semverCompare(s, func(c int) bool { return c != 0 })
}
func opSemverLt(p *Parser, s *Stack, ctx *EvaluationContext) {
	semverCompare(s, func(c int) bool { return c < 0 })
}
func opSemverLte(p *Parser, s *Stack, ctx *EvaluationContext) {
	semverCompare(s, func(c int) bool { return c <= 0 })
}
func opSemverGt(p *Parser, s *Stack, ctx *EvaluationContext) {
	semverCompare(s, func(c int) bool { return c > 0 })
}
func opSemverGte(p *Parser, s *Stack, ctx *EvaluationContext) {
	semverCompare(s, func(c int) bool { return c >= 0 })
}

func opIfThen(p *Parser, s *Stack, ctx *EvaluationContext) {
	cond, _ := s.Pop()
	thenVal, _ := s.Pop()
	elseVal, _ := s.Pop()
	if cond.IsUndefined() {
		s.PushItem(elseVal)
		return
	}
	if cond.Kind == ItemBool && cond.B {
		s.PushItem(thenVal)
		return
	}
	s.PushItem(elseVal)
}

func opIsUndefined(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.Pop()
	s.PushBool(a.IsUndefined())
}

func opNow(p *Parser, s *Stack, ctx *EvaluationContext) {
	s.PushInt(time.Now().UnixMilli())
}

func buildMatchFlags(flags string) string {
	var b strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			b.WriteRune(f)
		}
	}
	return b.String()
}

func opMatch(p *Parser, s *Stack, ctx *EvaluationContext) {
	input, _ := s.Pop()
	pattern, _ := s.Pop()
	flags, _ := s.Pop()

	if input.IsUndefined() || pattern.IsUndefined() {
		s.PushBool(false)
		return
	}

	patternStr := pattern.String()
	if flags.Kind == ItemString && strings.ContainsRune(flags.S, 'x') {
		patternStr = stripExtendedWhitespace(patternStr)
	}
	if flags.Kind == ItemString {
		if inline := buildMatchFlags(flags.S); inline != "" {
			patternStr = "(?" + inline + ")" + patternStr
		}
	}

	re, err := regexp.Compile(patternStr)
	if err != nil {
		s.PushBool(false)
		return
	}
	s.PushBool(re.MatchString(input.String()))
}

func stripExtendedWhitespace(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func opInArray(p *Parser, s *Stack, ctx *EvaluationContext) {
	value, _ := s.Pop()
	list, _ := s.Pop()
	if list.Kind != ItemValue || list.V.Kind() != dynamicvalue.List {
		s.PushBool(false)
		return
	}
	target := value.ToDynamicValue()
	for _, item := range list.V.ListItems() {
		if target.Equal(item) {
			s.PushBool(true)
			return
		}
	}
	s.PushBool(false)
}

func opConcat(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopString()
	b, _ := s.PopString()
	s.PushString(a + b)
}

func opB64d(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopString()
	decoded, err := base64.StdEncoding.DecodeString(a)
	if err != nil {
		s.PushUndefined()
		return
	}
	s.PushString(string(decoded))
}

func opMd5(p *Parser, s *Stack, ctx *EvaluationContext) {
	a, _ := s.PopString()
	sum := md5.Sum([]byte(a))
	s.PushString(hex.EncodeToString(sum[:]))
}
