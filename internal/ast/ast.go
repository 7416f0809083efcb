// Package ast defines the Expression and Statement tagged-variant trees
// the parser builds and the compiler consumes.
package ast

import "github.com/kristofer/vmscript/internal/lexer"

// Node is the interface every AST node implements. Every variant carries
// the token that produced it so diagnostics can report a source line.
type Node interface {
	Line() int
}

// Expression is implemented by every expression variant.
type Expression interface {
	Node
	expressionNode()
}

// Statement is implemented by every statement variant.
type Statement interface {
	Node
	statementNode()
}

// Program is the root of a parsed source file: an ordered statement list.
type Program struct {
	Statements []Statement
}

// --- Expressions -----------------------------------------------------

type NumberLiteral struct {
	Token lexer.Token
	Value float64
}

func (n *NumberLiteral) Line() int       { return n.Token.Line }
func (n *NumberLiteral) expressionNode() {}

type BoolLiteral struct {
	Token lexer.Token
	Value bool
}

func (b *BoolLiteral) Line() int       { return b.Token.Line }
func (b *BoolLiteral) expressionNode() {}

// StringLiteral holds the literal's bytes with the surrounding quotes
// already stripped.
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (s *StringLiteral) Line() int       { return s.Token.Line }
func (s *StringLiteral) expressionNode() {}

type Identifier struct {
	Token lexer.Token
	Name  string
}

func (i *Identifier) Line() int       { return i.Token.Line }
func (i *Identifier) expressionNode() {}

// PrefixExpression covers unary `-` and `!`.
type PrefixExpression struct {
	Token    lexer.Token
	Operator lexer.Kind
	Right    Expression
}

func (p *PrefixExpression) Line() int       { return p.Token.Line }
func (p *PrefixExpression) expressionNode() {}

// InfixExpression covers binary arithmetic, comparison, equality, and
// the short-circuiting `and`/`or` operators.
type InfixExpression struct {
	Token    lexer.Token
	Left     Expression
	Operator lexer.Kind
	Right    Expression
}

func (i *InfixExpression) Line() int       { return i.Token.Line }
func (i *InfixExpression) expressionNode() {}

// GroupExpression is a parenthesized expression, kept as its own node so
// a later pass could report `()` nesting if it ever needed to.
type GroupExpression struct {
	Token lexer.Token
	Inner Expression
}

func (g *GroupExpression) Line() int       { return g.Token.Line }
func (g *GroupExpression) expressionNode() {}

// CallExpression is `callee(args...)`. The callee is always a bare
// identifier per the grammar; vmscript has no first-class function
// values to call through an arbitrary expression.
type CallExpression struct {
	Token  lexer.Token
	Callee *Identifier
	Args   []Expression
}

func (c *CallExpression) Line() int       { return c.Token.Line }
func (c *CallExpression) expressionNode() {}

type NullLiteral struct {
	Token lexer.Token
}

func (n *NullLiteral) Line() int       { return n.Token.Line }
func (n *NullLiteral) expressionNode() {}

// ErrorExpression stands in for a syntax error encountered while parsing
// an expression so the parser can keep producing a tree instead of
// aborting outright. The compiler rejects any tree containing one.
type ErrorExpression struct {
	Token   lexer.Token
	Message string
}

func (e *ErrorExpression) Line() int       { return e.Token.Line }
func (e *ErrorExpression) expressionNode() {}

// --- Statements --------------------------------------------------------

type ReturnStatement struct {
	Token lexer.Token
	Value Expression // NullLiteral for a bare `return;`
}

func (r *ReturnStatement) Line() int      { return r.Token.Line }
func (r *ReturnStatement) statementNode() {}

// VarStatement declares a new binding. Value is a NullLiteral when the
// source omitted an initializer.
type VarStatement struct {
	Token lexer.Token
	Name  string
	Value Expression
}

func (v *VarStatement) Line() int      { return v.Token.Line }
func (v *VarStatement) statementNode() {}

// AssignStatement rebinds an existing local or global.
type AssignStatement struct {
	Token lexer.Token
	Name  string
	Value Expression
}

func (a *AssignStatement) Line() int      { return a.Token.Line }
func (a *AssignStatement) statementNode() {}

type ExpressionStatement struct {
	Token lexer.Token
	Expr  Expression
}

func (e *ExpressionStatement) Line() int      { return e.Token.Line }
func (e *ExpressionStatement) statementNode() {}

type BlockStatement struct {
	Token      lexer.Token
	Statements []Statement
}

func (b *BlockStatement) Line() int      { return b.Token.Line }
func (b *BlockStatement) statementNode() {}

// IfStatement's Else is nil when the source had no `else` clause.
type IfStatement struct {
	Token     lexer.Token
	Condition Expression
	Then      *BlockStatement
	Else      *BlockStatement
}

func (i *IfStatement) Line() int      { return i.Token.Line }
func (i *IfStatement) statementNode() {}

type WhileStatement struct {
	Token     lexer.Token
	Condition Expression
	Body      *BlockStatement
}

func (w *WhileStatement) Line() int      { return w.Token.Line }
func (w *WhileStatement) statementNode() {}

type FunctionStatement struct {
	Token      lexer.Token
	Name       string
	Parameters []string
	Body       *BlockStatement
}

func (f *FunctionStatement) Line() int      { return f.Token.Line }
func (f *FunctionStatement) statementNode() {}

// NullStatement is the statement produced by a bare `;`. The parser skips
// it rather than appending it to a statement list.
type NullStatement struct {
	Token lexer.Token
}

func (n *NullStatement) Line() int      { return n.Token.Line }
func (n *NullStatement) statementNode() {}

// ErrorStatement stands in for a syntax error encountered while parsing a
// statement. Like ErrorExpression, it lets parsing continue past the
// failure; the compiler refuses to emit code for any tree containing one.
type ErrorStatement struct {
	Token   lexer.Token
	Message string
}

func (e *ErrorStatement) Line() int      { return e.Token.Line }
func (e *ErrorStatement) statementNode() {}

// ContainsErrors reports whether any statement in stmts (recursively,
// through blocks/if/while/function bodies and through expressions) is an
// Error variant. The compiler calls this before emitting any code.
func ContainsErrors(stmts []Statement) bool {
	for _, s := range stmts {
		if statementHasError(s) {
			return true
		}
	}
	return false
}

func statementHasError(s Statement) bool {
	switch st := s.(type) {
	case *ErrorStatement:
		return true
	case *ReturnStatement:
		return expressionHasError(st.Value)
	case *VarStatement:
		return expressionHasError(st.Value)
	case *AssignStatement:
		return expressionHasError(st.Value)
	case *ExpressionStatement:
		return expressionHasError(st.Expr)
	case *BlockStatement:
		return ContainsErrors(st.Statements)
	case *IfStatement:
		if expressionHasError(st.Condition) || ContainsErrors(st.Then.Statements) {
			return true
		}
		return st.Else != nil && ContainsErrors(st.Else.Statements)
	case *WhileStatement:
		return expressionHasError(st.Condition) || ContainsErrors(st.Body.Statements)
	case *FunctionStatement:
		return ContainsErrors(st.Body.Statements)
	default:
		return false
	}
}

func expressionHasError(e Expression) bool {
	switch ex := e.(type) {
	case nil:
		return false
	case *ErrorExpression:
		return true
	case *PrefixExpression:
		return expressionHasError(ex.Right)
	case *InfixExpression:
		return expressionHasError(ex.Left) || expressionHasError(ex.Right)
	case *GroupExpression:
		return expressionHasError(ex.Inner)
	case *CallExpression:
		for _, a := range ex.Args {
			if expressionHasError(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
