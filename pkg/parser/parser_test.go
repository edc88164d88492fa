package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

func compile(t *testing.T, query string) *types.Node {
	t.Helper()
	expr, err := parser.Compile(query)
	require.NoError(t, err, "compiling %q", query)
	require.Empty(t, expr.Errors())
	return expr.AST()
}

func stepNames(path *types.Node) []string {
	names := make([]string, len(path.Steps))
	for i, s := range path.Steps {
		names[i] = s.Name
	}
	return names
}

func TestParsePath(t *testing.T) {
	root := compile(t, "Account.Order.Product.Name")
	require.Equal(t, types.NodePath, root.Type)
	assert.Equal(t, []string{"Account", "Order", "Product", "Name"}, stepNames(root))
}

func TestParseQuotedStepIsName(t *testing.T) {
	root := compile(t, `a."b c".d`)
	require.Equal(t, types.NodePath, root.Type)
	assert.Equal(t, []string{"a", "b c", "d"}, stepNames(root))
	assert.Equal(t, types.NodeName, root.Steps[1].Type)
}

func TestParsePrecedence(t *testing.T) {
	root := compile(t, "1 + 2 * 3")
	require.Equal(t, types.NodeBinary, root.Type)
	assert.Equal(t, "+", root.Name)
	require.Equal(t, types.NodeBinary, root.RHS.Type)
	assert.Equal(t, "*", root.RHS.Name)

	root = compile(t, "a = 1 and b = 2 or c")
	assert.Equal(t, "or", root.Name)
	assert.Equal(t, "and", root.LHS.Name)
}

func TestParseNegativeLiteralIsFolded(t *testing.T) {
	root := compile(t, "-5")
	require.Equal(t, types.NodeLiteral, root.Type)
	assert.Equal(t, types.Number(-5), root.Value)

	root = compile(t, "-a")
	assert.Equal(t, types.NodeNegate, root.Type)
}

func TestParsePredicatesBecomeStages(t *testing.T) {
	root := compile(t, "a.b[0].c")
	require.Equal(t, types.NodePath, root.Type)
	require.Len(t, root.Steps, 3)
	require.Len(t, root.Steps[1].Stages, 1)
	assert.Equal(t, types.Number(0), root.Steps[1].Stages[0].Value)
	assert.Empty(t, root.Steps[1].Predicates)
}

func TestParseKeepArray(t *testing.T) {
	root := compile(t, "a.b[]")
	require.Equal(t, types.NodePath, root.Type)
	assert.True(t, root.KeepSingletonArray)
	assert.True(t, root.Steps[1].KeepArray)
}

func TestParseGroupAttachesToPath(t *testing.T) {
	root := compile(t, `a.b{k: v}`)
	require.Equal(t, types.NodePath, root.Type)
	require.NotNil(t, root.Group)
	assert.Len(t, root.Group.Pairs, 1)
}

func TestParseSortStep(t *testing.T) {
	root := compile(t, `items^(>price, name).name`)
	require.Equal(t, types.NodePath, root.Type)
	require.Len(t, root.Steps, 3)
	sort := root.Steps[1]
	require.Equal(t, types.NodeSort, sort.Type)
	require.Len(t, sort.Terms, 2)
	assert.True(t, sort.Terms[0].Descending)
	assert.False(t, sort.Terms[1].Descending)
}

func TestParseStepBindings(t *testing.T) {
	root := compile(t, "Phone@$p.$p.type")
	require.Equal(t, types.NodePath, root.Type)
	require.Len(t, root.Steps, 3)
	assert.Equal(t, "p", root.Steps[0].Focus)
	assert.True(t, root.Steps[0].Tuple)

	root = compile(t, "arr#$i")
	assert.Equal(t, "i", root.Steps[0].Index)

	// after a filter the position is taken by a stage of its own
	root = compile(t, "arr[$ > 1]#$i")
	stages := root.Steps[0].Stages
	require.Len(t, stages, 2)
	assert.Equal(t, types.NodeIndex, stages[1].Type)
	assert.Equal(t, "i", stages[1].Index)
	assert.Empty(t, root.Steps[0].Index)
}

func TestParseParentResolvesToStep(t *testing.T) {
	root := compile(t, "a.b.c.%.%.x")
	require.Len(t, root.Steps, 6)
	parent, grandparent := root.Steps[3], root.Steps[4]
	require.Equal(t, types.NodeParent, parent.Type)

	assert.Same(t, parent.Slot, root.Steps[2].Ancestor)
	assert.Same(t, grandparent.Slot, root.Steps[1].Ancestor)
	assert.NotEqual(t, parent.Slot.Label, grandparent.Slot.Label)
	assert.True(t, root.Steps[1].Tuple)
	assert.True(t, root.Steps[2].Tuple)
	assert.Nil(t, root.Steps[0].Ancestor)
	assert.Empty(t, root.SeekingParent)
}

func TestParseLambda(t *testing.T) {
	root := compile(t, `function($x, $y)<nn:n>{ $x + $y }`)
	require.Equal(t, types.NodeLambda, root.Type)
	assert.Equal(t, []string{"x", "y"}, root.Params)
	assert.Equal(t, "<nn:n>", root.Signature)
}

func TestParseTailCallsAreThunked(t *testing.T) {
	root := compile(t, `function($n){ $n = 0 ? 0 : $f($n - 1) }`)
	require.Equal(t, types.NodeLambda, root.Type)
	cond := root.Body
	require.Equal(t, types.NodeCondition, cond.Type)
	assert.Equal(t, types.NodeLiteral, cond.Then.Type)
	require.Equal(t, types.NodeLambda, cond.Else.Type)
	assert.True(t, cond.Else.Thunk)
	assert.Equal(t, types.NodeFunction, cond.Else.Body.Type)

	// a call feeding an operator is not in tail position
	root = compile(t, `function($n){ 1 + $f($n) }`)
	assert.Equal(t, types.NodeBinary, root.Body.Type)
}

func TestParsePartialApplication(t *testing.T) {
	root := compile(t, `$substring(?, 0, 2)`)
	require.Equal(t, types.NodePartial, root.Type)
	require.Len(t, root.Arguments, 3)
	assert.Equal(t, types.NodePlaceholder, root.Arguments[0].Type)
}

func TestParseTransform(t *testing.T) {
	root := compile(t, `$ ~> |a.b|{"x": 1}, ["y"]|`)
	require.Equal(t, types.NodeApply, root.Type)
	tr := root.RHS
	require.Equal(t, types.NodeTransform, tr.Type)
	assert.NotNil(t, tr.Pattern)
	assert.NotNil(t, tr.Update)
	assert.NotNil(t, tr.Delete)
}

func TestParseBindAndBlock(t *testing.T) {
	root := compile(t, `($x := 1; $y := $x + 1; $y)`)
	require.Equal(t, types.NodeBlock, root.Type)
	require.Len(t, root.Expressions, 3)
	assert.Equal(t, types.NodeBind, root.Expressions[0].Type)
	assert.Equal(t, "x", root.Expressions[0].Name)
}

func TestParseRangeInArray(t *testing.T) {
	root := compile(t, `[1..3, 5]`)
	require.Equal(t, types.NodeArray, root.Type)
	require.Len(t, root.Expressions, 2)
	assert.Equal(t, types.NodeRange, root.Expressions[0].Type)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		query string
		code  types.ErrorCode
	}{
		{`1 +`, types.ErrUnexpectedEnd},
		{`1 1`, types.ErrSyntax},
		{`[1, 2`, types.ErrExpectedBeforeEnd},
		{`(1; 2`, types.ErrExpectedBeforeEnd},
		{`{"a" 1}`, types.ErrExpectedToken},
		{`function(x){1}`, types.ErrLambdaParam},
		{`${"x": 1}[0]`, types.ErrPredicateAfterGroup},
		{`a{"x": 1}{"y": 2}`, types.ErrDoubleGroup},
		{`)`, types.ErrNotUnary},
		{`%`, types.ErrNoParent},
		{`a@b`, types.ErrBindingVariable},
		{`a[0]@$x`, types.ErrFocusAfterFilter},
		{`a^(b)@$x`, types.ErrFocusAfterSort},
		{`$v.%`, types.ErrNoParent},
		{`a := 1`, types.ErrBindTarget},
		{`1 . 2`, types.ErrLiteralStep},
		{`"open`, types.ErrStringNotClosed},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := parser.Compile(tt.query)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Compile(`a + )`)
	require.Error(t, err)
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 4, e.Position)
}

func TestParseRecovery(t *testing.T) {
	expr, err := parser.Compile(`1 +`, parser.WithRecovery())
	require.NoError(t, err)
	require.Len(t, expr.Errors(), 1)
	assert.Equal(t, types.ErrUnexpectedEnd, types.CodeOf(expr.Errors()[0]))

	expr, err = parser.Compile(`[1, %, 3]`, parser.WithRecovery())
	require.NoError(t, err)
	assert.NotEmpty(t, expr.Errors())

	// lexical errors are never recovered
	_, err = parser.Compile(`"open`, parser.WithRecovery())
	assert.Error(t, err)
}

func TestParseMaxDepth(t *testing.T) {
	deep := ""
	for i := 0; i < 50; i++ {
		deep += "("
	}
	deep += "1"
	for i := 0; i < 50; i++ {
		deep += ")"
	}
	_, err := parser.Compile(deep)
	require.NoError(t, err)

	_, err = parser.Compile(deep, parser.WithMaxDepth(10))
	require.Error(t, err)
	assert.Equal(t, types.ErrSyntax, types.CodeOf(err))
}

func TestParseSourceKept(t *testing.T) {
	expr, err := parser.Parse(`  $.name  `)
	require.NoError(t, err)
	assert.Equal(t, `  $.name  `, expr.Source())
	assert.Equal(t, `  $.name  `, expr.String())
}
