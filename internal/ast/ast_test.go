package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/vmscript/internal/lexer"
)

func tok(k lexer.Kind) lexer.Token { return lexer.Token{Kind: k, Line: 1} }

func TestContainsErrorsFlat(t *testing.T) {
	stmts := []Statement{
		&ExpressionStatement{Token: tok(lexer.Number), Expr: &NumberLiteral{Token: tok(lexer.Number), Value: 1}},
	}
	assert.False(t, ContainsErrors(stmts))

	stmts = append(stmts, &ErrorStatement{Token: tok(lexer.Illegal), Message: "boom"})
	assert.True(t, ContainsErrors(stmts))
}

func TestContainsErrorsNestedInBlock(t *testing.T) {
	block := &BlockStatement{
		Token: tok(lexer.LBrace),
		Statements: []Statement{
			&ExpressionStatement{Token: tok(lexer.Number), Expr: &ErrorExpression{Token: tok(lexer.Illegal), Message: "bad"}},
		},
	}
	assert.True(t, ContainsErrors([]Statement{block}))
}

func TestContainsErrorsNestedInIfElse(t *testing.T) {
	ifStmt := &IfStatement{
		Token:     tok(lexer.If),
		Condition: &BoolLiteral{Token: tok(lexer.True), Value: true},
		Then:      &BlockStatement{Token: tok(lexer.LBrace)},
		Else: &BlockStatement{
			Token: tok(lexer.LBrace),
			Statements: []Statement{
				&ErrorStatement{Token: tok(lexer.Illegal), Message: "bad else"},
			},
		},
	}
	assert.True(t, ContainsErrors([]Statement{ifStmt}))
}

func TestContainsErrorsNestedInFunctionBody(t *testing.T) {
	fn := &FunctionStatement{
		Token: tok(lexer.Function),
		Name:  "f",
		Body: &BlockStatement{
			Token: tok(lexer.LBrace),
			Statements: []Statement{
				&ReturnStatement{Token: tok(lexer.Return), Value: &ErrorExpression{Token: tok(lexer.Illegal), Message: "bad"}},
			},
		},
	}
	assert.True(t, ContainsErrors([]Statement{fn}))
}

func TestContainsErrorsInCallArgs(t *testing.T) {
	call := &CallExpression{
		Token:  tok(lexer.Identifier),
		Callee: &Identifier{Token: tok(lexer.Identifier), Name: "f"},
		Args: []Expression{
			&ErrorExpression{Token: tok(lexer.Illegal), Message: "bad arg"},
		},
	}
	stmt := &ExpressionStatement{Token: tok(lexer.Identifier), Expr: call}
	assert.True(t, ContainsErrors([]Statement{stmt}))
}

func TestLineAccessors(t *testing.T) {
	n := &NumberLiteral{Token: lexer.Token{Kind: lexer.Number, Line: 42}, Value: 1}
	assert.Equal(t, 42, n.Line())
}
