package roxx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyWord(t *testing.T) {
	cases := []struct {
		word string
		want Kind
	}{
		{"true", KindBool},
		{"false", KindBool},
		{"undefined", KindUndefined},
		{"5", KindNumber},
		{"-3.14", KindNumber},
		{"eq", KindOperator},
		{"flagValue", KindOperator},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyWord(c.word), "word %q", c.word)
	}
}

func TestTokenizeQuotedStringWithEscape(t *testing.T) {
	toks, err := Tokenize(`eq("a\"b", "a\"b")`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, KindOperator, toks[0].Kind)
	assert.Equal(t, "eq", toks[0].Name)
	assert.Equal(t, KindString, toks[1].Kind)
	assert.Equal(t, `a"b`, toks[1].Str)
}

func TestTokenizeArrayLiteral(t *testing.T) {
	toks, err := Tokenize(`inArray("red", ["red","green","blue"])`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, KindList, toks[2].Kind)
	require.Len(t, toks[2].Elements, 3)
	assert.Equal(t, "red", toks[2].Elements[0].Str)
}

func TestEvaluatorPurity(t *testing.T) {
	p := NewParser()
	evalCtx := &EvaluationContext{}
	r1 := p.EvaluateExpression(`and(true, or(true,true))`, evalCtx)
	r2 := p.EvaluateExpression(`and(true, or(true,true))`, evalCtx)
	b1, ok1 := r1.Bool()
	b2, ok2 := r2.Bool()
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, b1, b2)
	assert.True(t, b1)
}

func TestBucketingUniformity(t *testing.T) {
	assert.InDelta(t, 0.18721251450181298, Bucket("device2.seed2"), 1e-15)
}

func TestUndefinedPropagation(t *testing.T) {
	p := NewParser()
	ctx := &EvaluationContext{}

	for _, expr := range []string{"gt(1, undefined)", "lt(1, undefined)", "gte(1, undefined)", "lte(1, undefined)"} {
		r := p.EvaluateExpression(expr, ctx)
		b, ok := r.Bool()
		require.True(t, ok, expr)
		assert.False(t, b, expr)
	}

	for _, expr := range []string{"semverGt(\"1.0.0\", undefined)", "semverLt(\"1.0.0\", undefined)"} {
		r := p.EvaluateExpression(expr, ctx)
		b, ok := r.Bool()
		require.True(t, ok, expr)
		assert.False(t, b, expr)
	}

	r := p.EvaluateExpression(`eq(undefined, undefined)`, ctx)
	b, ok := r.Bool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestSemverNormalization(t *testing.T) {
	p := NewParser()
	ctx := &EvaluationContext{}
	r := p.EvaluateExpression(`semverLt("1.1.0", "1.1")`, ctx)
	b, ok := r.Bool()
	require.True(t, ok)
	assert.False(t, b)
}

func TestIfThenBranchSelection(t *testing.T) {
	p := NewParser()
	ctx := &EvaluationContext{}
	r := p.EvaluateExpression(`ifThen(true, "blue", "green")`, ctx)
	assert.Equal(t, "blue", r.String())

	r2 := p.EvaluateExpression(`ifThen(undefined, "blue", "green")`, ctx)
	assert.Equal(t, "green", r2.String())
}

func TestIsInPercentageRange(t *testing.T) {
	p := NewParser()
	RegisterExtensionOperators(p, nil, nil, nil, nil)
	ctx := &EvaluationContext{}

	r := p.EvaluateExpression(`isInPercentageRange(0, 0.5, "device2.seed2")`, ctx)
	b, ok := r.Bool()
	require.True(t, ok)
	assert.True(t, b)

	r2 := p.EvaluateExpression(`isInPercentageRange(0.5, 1, "device2.seed2")`, ctx)
	b2, ok2 := r2.Bool()
	require.True(t, ok2)
	assert.False(t, b2)
}

func TestMd5(t *testing.T) {
	p := NewParser()
	ctx := &EvaluationContext{}
	r := p.EvaluateExpression(`md5("")`, ctx)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", r.String())

	r2 := p.EvaluateExpression(`md5("abc")`, ctx)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", r2.String())
}

func TestMergeSeed(t *testing.T) {
	p := NewParser()
	RegisterExtensionOperators(p, nil, nil, nil, nil)
	ctx := &EvaluationContext{}
	r := p.EvaluateExpression(`mergeSeed("device2", "seed2")`, ctx)
	assert.Equal(t, "device2.seed2", r.String())
}

func TestInArrayStringVsNumberDistinction(t *testing.T) {
	p := NewParser()
	ctx := &EvaluationContext{}
	r := p.EvaluateExpression(`inArray("123", [123])`, ctx)
	b, ok := r.Bool()
	require.True(t, ok)
	assert.False(t, b)

	r2 := p.EvaluateExpression(`inArray(123, [123])`, ctx)
	b2, ok2 := r2.Bool()
	require.True(t, ok2)
	assert.True(t, b2)
}

func TestUnknownOperatorResolvesFalse(t *testing.T) {
	p := NewParser()
	ctx := &EvaluationContext{}
	r := p.EvaluateExpression(`someUnknownThing`, ctx)
	b, ok := r.Bool()
	require.True(t, ok)
	assert.False(t, b)
}
