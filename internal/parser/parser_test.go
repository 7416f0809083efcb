package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vmscript/internal/ast"
	"github.com/kristofer/vmscript/internal/lexer"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(src)
	prog, err := p.Parse()
	require.NoError(t, err, "source: %s", src)
	require.False(t, ast.ContainsErrors(prog.Statements))
	return prog
}

func TestParseVarDeclaration(t *testing.T) {
	prog := parseOK(t, `var x = 1 + 2;`)
	require.Len(t, prog.Statements, 1)
	v, ok := prog.Statements[0].(*ast.VarStatement)
	require.True(t, ok)
	assert.Equal(t, "x", v.Name)
	infix, ok := v.Value.(*ast.InfixExpression)
	require.True(t, ok)
	assert.Equal(t, float64(1), infix.Left.(*ast.NumberLiteral).Value)
	assert.Equal(t, float64(2), infix.Right.(*ast.NumberLiteral).Value)
}

func TestParseVarWithoutInitializer(t *testing.T) {
	prog := parseOK(t, `var x;`)
	v := prog.Statements[0].(*ast.VarStatement)
	_, isNull := v.Value.(*ast.NullLiteral)
	assert.True(t, isNull)
}

func TestParseAssignment(t *testing.T) {
	prog := parseOK(t, `x = 5;`)
	a, ok := prog.Statements[0].(*ast.AssignStatement)
	require.True(t, ok)
	assert.Equal(t, "x", a.Name)
	assert.Equal(t, float64(5), a.Value.(*ast.NumberLiteral).Value)
}

func TestParsePrecedence(t *testing.T) {
	// '*' binds tighter than '+': 1 + 2 * 3 is 1 + (2 * 3)
	prog := parseOK(t, `1 + 2 * 3;`)
	expr := prog.Statements[0].(*ast.ExpressionStatement).Expr
	add, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	_, leftIsNumber := add.Left.(*ast.NumberLiteral)
	assert.True(t, leftIsNumber)
	mul, ok := add.Right.(*ast.InfixExpression)
	require.True(t, ok)
	assert.Equal(t, float64(2), mul.Left.(*ast.NumberLiteral).Value)
	assert.Equal(t, float64(3), mul.Right.(*ast.NumberLiteral).Value)
}

func TestParseComparisonLowerThanTerm(t *testing.T) {
	// 1 + 2 < 3 + 4 is (1+2) < (3+4)
	prog := parseOK(t, `1 + 2 < 3 + 4;`)
	expr := prog.Statements[0].(*ast.ExpressionStatement).Expr
	cmp, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	_, ok = cmp.Left.(*ast.InfixExpression)
	assert.True(t, ok)
	_, ok = cmp.Right.(*ast.InfixExpression)
	assert.True(t, ok)
}

func TestParseAndOrPrecedence(t *testing.T) {
	// 'and' binds tighter than 'or'
	prog := parseOK(t, `true or false and true;`)
	expr := prog.Statements[0].(*ast.ExpressionStatement).Expr
	or, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	_, leftIsBool := or.Left.(*ast.BoolLiteral)
	assert.True(t, leftIsBool)
	_, rightIsAnd := or.Right.(*ast.InfixExpression)
	assert.True(t, rightIsAnd)
}

func TestParseGrouping(t *testing.T) {
	prog := parseOK(t, `(1 + 2) * 3;`)
	expr := prog.Statements[0].(*ast.ExpressionStatement).Expr
	mul := expr.(*ast.InfixExpression)
	_, ok := mul.Left.(*ast.GroupExpression)
	assert.True(t, ok)
}

func TestParseUnary(t *testing.T) {
	prog := parseOK(t, `-5; !true;`)
	require.Len(t, prog.Statements, 2)
	neg := prog.Statements[0].(*ast.ExpressionStatement).Expr.(*ast.PrefixExpression)
	assert.Equal(t, float64(5), neg.Right.(*ast.NumberLiteral).Value)
	not := prog.Statements[1].(*ast.ExpressionStatement).Expr.(*ast.PrefixExpression)
	_, ok := not.Right.(*ast.BoolLiteral)
	assert.True(t, ok)
}

func TestParseIfElse(t *testing.T) {
	prog := parseOK(t, `if (x) { return 1; } else { return 2; }`)
	ifStmt := prog.Statements[0].(*ast.IfStatement)
	require.NotNil(t, ifStmt.Else)
	require.Len(t, ifStmt.Then.Statements, 1)
	require.Len(t, ifStmt.Else.Statements, 1)
}

func TestParseIfWithoutElse(t *testing.T) {
	prog := parseOK(t, `if (x) { return 1; }`)
	ifStmt := prog.Statements[0].(*ast.IfStatement)
	assert.Nil(t, ifStmt.Else)
}

func TestParseWhile(t *testing.T) {
	prog := parseOK(t, `while (x) { x = x - 1; }`)
	w := prog.Statements[0].(*ast.WhileStatement)
	require.Len(t, w.Body.Statements, 1)
}

func TestParseFunctionDeclaration(t *testing.T) {
	prog := parseOK(t, `function add(a, b) { return a + b; }`)
	fn := prog.Statements[0].(*ast.FunctionStatement)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Parameters)
	require.Len(t, fn.Body.Statements, 1)
}

func TestParseFunctionWithNoParameters(t *testing.T) {
	prog := parseOK(t, `function f() { return null; }`)
	fn := prog.Statements[0].(*ast.FunctionStatement)
	assert.Empty(t, fn.Parameters)
}

func TestParseCallExpressionStatement(t *testing.T) {
	prog := parseOK(t, `print(1, 2);`)
	call := prog.Statements[0].(*ast.ExpressionStatement).Expr.(*ast.CallExpression)
	assert.Equal(t, "print", call.Callee.Name)
	require.Len(t, call.Args, 2)
}

func TestParseCallWithNoArguments(t *testing.T) {
	prog := parseOK(t, `f();`)
	call := prog.Statements[0].(*ast.ExpressionStatement).Expr.(*ast.CallExpression)
	assert.Empty(t, call.Args)
}

func TestParseNestedBlocks(t *testing.T) {
	prog := parseOK(t, `{ { var x = 1; } }`)
	outer := prog.Statements[0].(*ast.BlockStatement)
	require.Len(t, outer.Statements, 1)
	_, ok := outer.Statements[0].(*ast.BlockStatement)
	assert.True(t, ok)
}

func TestParseStringLiteralStripsQuotes(t *testing.T) {
	prog := parseOK(t, `"hello";`)
	s := prog.Statements[0].(*ast.ExpressionStatement).Expr.(*ast.StringLiteral)
	assert.Equal(t, "hello", s.Value)
}

func TestParseBareSemicolonIsSkipped(t *testing.T) {
	prog := parseOK(t, `;;; var x = 1;`)
	require.Len(t, prog.Statements, 1)
}

func TestParseReturnWithoutValue(t *testing.T) {
	prog := parseOK(t, `function f() { return; }`)
	fn := prog.Statements[0].(*ast.FunctionStatement)
	ret := fn.Body.Statements[0].(*ast.ReturnStatement)
	_, isNull := ret.Value.(*ast.NullLiteral)
	assert.True(t, isNull)
}

func TestParseErrorRecordsDiagnosticAndErrorNode(t *testing.T) {
	p := New(`var x = ;`)
	prog, err := p.Parse()
	require.Error(t, err)
	assert.True(t, ast.ContainsErrors(prog.Statements))
}

// TestParseExpressionTreeShape diffs the parsed tree against a hand-built
// expected tree structurally, ignoring the embedded lexer.Token on every
// node (line/lexeme bookkeeping irrelevant to shape) rather than asserting
// field-by-field as the other precedence tests do.
func TestParseExpressionTreeShape(t *testing.T) {
	prog := parseOK(t, `1 + 2 * 3;`)

	want := &ast.Program{
		Statements: []ast.Statement{
			&ast.ExpressionStatement{
				Expr: &ast.InfixExpression{
					Left:     &ast.NumberLiteral{Value: 1},
					Operator: lexer.Plus,
					Right: &ast.InfixExpression{
						Left:     &ast.NumberLiteral{Value: 2},
						Operator: lexer.Star,
						Right:    &ast.NumberLiteral{Value: 3},
					},
				},
			},
		},
	}

	opts := cmpopts.IgnoreTypes(lexer.Token{})
	if diff := cmp.Diff(want, prog, opts); diff != "" {
		t.Errorf("parsed tree shape mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMultipleErrorsAccumulate(t *testing.T) {
	p := New(`var = ; var = ;`)
	_, err := p.Parse()
	require.Error(t, err)
	// Both malformed declarations should contribute a diagnostic instead of
	// parsing stopping at the first one encountered.
	assert.Contains(t, err.Error(), "errors occurred")
	assert.GreaterOrEqual(t, strings.Count(err.Error(), "[line"), 2)
}
