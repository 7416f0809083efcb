// Package parser implements vmscript's Pratt recursive-descent parser:
// it consumes a token stream from internal/lexer and builds the
// internal/ast tree the compiler walks.
package parser

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/kristofer/vmscript/internal/ast"
	"github.com/kristofer/vmscript/internal/lexer"
)

// precedence is the Pratt precedence ladder, low to high.
type precedence int

const (
	precNone precedence = iota
	precAssign
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
)

var precedences = map[lexer.Kind]precedence{
	lexer.Or:           precOr,
	lexer.And:          precAnd,
	lexer.Equal:        precEquality,
	lexer.BangEqual:    precEquality,
	lexer.Less:         precComparison,
	lexer.LessEqual:    precComparison,
	lexer.Greater:      precComparison,
	lexer.GreaterEqual: precComparison,
	lexer.Plus:         precTerm,
	lexer.Minus:        precTerm,
	lexer.Star:         precFactor,
	lexer.Slash:        precFactor,
	lexer.LParen:       precCall,
}

type prefixParseFn func() ast.Expression
type infixParseFn func(left ast.Expression) ast.Expression

// Parser holds two-token lookahead over a lexer's token stream and
// accumulates every diagnostic it encounters instead of stopping at the
// first one, the way a batch compiler reports all of its errors at once.
type Parser struct {
	lex *lexer.Lexer

	cur  lexer.Token
	peek lexer.Token

	errors *multierror.Error

	prefixFns map[lexer.Kind]prefixParseFn
	infixFns  map[lexer.Kind]infixParseFn
}

// New returns a Parser primed with the first two tokens of source.
func New(source string) *Parser {
	p := &Parser{lex: lexer.New(source)}

	p.prefixFns = map[lexer.Kind]prefixParseFn{
		lexer.Number:     p.parseNumber,
		lexer.String:     p.parseString,
		lexer.Identifier: p.parseIdentifier,
		lexer.True:       p.parseBool,
		lexer.False:      p.parseBool,
		lexer.LParen:     p.parseGrouping,
		lexer.Minus:      p.parseUnary,
		lexer.Bang:       p.parseUnary,
	}
	p.infixFns = map[lexer.Kind]infixParseFn{
		lexer.Plus:           p.parseBinary,
		lexer.Minus:          p.parseBinary,
		lexer.Star:           p.parseBinary,
		lexer.Slash:          p.parseBinary,
		lexer.Less:           p.parseBinary,
		lexer.LessEqual:      p.parseBinary,
		lexer.Greater:        p.parseBinary,
		lexer.GreaterEqual:   p.parseBinary,
		lexer.Equal:          p.parseBinary,
		lexer.BangEqual:      p.parseBinary,
		lexer.And:            p.parseBinary,
		lexer.Or:             p.parseBinary,
		lexer.LParen:         p.parseCall,
	}

	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) addError(line int, format string, args ...interface{}) {
	p.errors = multierror.Append(p.errors, fmt.Errorf("[line %d] Error: %s", line, fmt.Sprintf(format, args...)))
}

func (p *Parser) expect(kind lexer.Kind, what string) bool {
	if p.cur.Kind == kind {
		p.advance()
		return true
	}
	p.addError(p.cur.Line, "expected %s", what)
	return false
}

// Parse consumes the whole token stream and returns the resulting
// Program. If any diagnostic was recorded, it is also returned as a
// *multierror.Error alongside the (partial, possibly Error-containing)
// tree.
func (p *Parser) Parse() (*ast.Program, error) {
	var stmts []ast.Statement
	for p.cur.Kind != lexer.EOF {
		stmt := p.parseStatement()
		if _, isNull := stmt.(*ast.NullStatement); !isNull {
			stmts = append(stmts, stmt)
		}
	}
	prog := &ast.Program{Statements: stmts}
	if p.errors != nil {
		return prog, p.errors
	}
	return prog, nil
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Kind {
	case lexer.Return:
		return p.parseReturnStatement()
	case lexer.Var:
		return p.parseVarStatement()
	case lexer.LBrace:
		return p.parseBlockStatement()
	case lexer.If:
		return p.parseIfStatement()
	case lexer.While:
		return p.parseWhileStatement()
	case lexer.Function:
		return p.parseFunctionStatement()
	case lexer.Semicolon:
		tok := p.cur
		p.advance()
		return &ast.NullStatement{Token: tok}
	case lexer.Identifier:
		if p.peek.Kind == lexer.LParen {
			return p.parseExpressionStatement()
		}
		return p.parseAssignStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseReturnStatement() ast.Statement {
	tok := p.cur
	p.advance()
	if p.cur.Kind == lexer.Semicolon {
		p.advance()
		return &ast.ReturnStatement{Token: tok, Value: &ast.NullLiteral{Token: tok}}
	}
	val := p.parseExpression(precNone)
	if !p.expect(lexer.Semicolon, "';' after return value") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ';' after return value"}
	}
	return &ast.ReturnStatement{Token: tok, Value: val}
}

func (p *Parser) parseVarStatement() ast.Statement {
	tok := p.cur
	p.advance()
	if p.cur.Kind != lexer.Identifier {
		p.addError(p.cur.Line, "expected identifier after 'var'")
		return &ast.ErrorStatement{Token: tok, Message: "expected identifier after 'var'"}
	}
	name := p.cur.Lexeme
	p.advance()

	var val ast.Expression = &ast.NullLiteral{Token: tok}
	if p.cur.Kind == lexer.Assign {
		p.advance()
		val = p.parseExpression(precNone)
	}
	if !p.expect(lexer.Semicolon, "';' after variable declaration") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ';' after variable declaration"}
	}
	return &ast.VarStatement{Token: tok, Name: name, Value: val}
}

func (p *Parser) parseAssignStatement() ast.Statement {
	tok := p.cur
	name := p.cur.Lexeme
	p.advance()
	if !p.expect(lexer.Assign, "'=' in assignment") {
		return &ast.ErrorStatement{Token: tok, Message: "expected '=' in assignment"}
	}
	val := p.parseExpression(precNone)
	if !p.expect(lexer.Semicolon, "';' after assignment") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ';' after assignment"}
	}
	return &ast.AssignStatement{Token: tok, Name: name, Value: val}
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	tok := p.cur
	expr := p.parseExpression(precNone)
	if !p.expect(lexer.Semicolon, "';' after expression") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ';' after expression"}
	}
	return &ast.ExpressionStatement{Token: tok, Expr: expr}
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	tok := p.cur
	p.advance() // consume '{'
	var stmts []ast.Statement
	for p.cur.Kind != lexer.RBrace && p.cur.Kind != lexer.EOF {
		stmt := p.parseStatement()
		if _, isNull := stmt.(*ast.NullStatement); !isNull {
			stmts = append(stmts, stmt)
		}
	}
	if !p.expect(lexer.RBrace, "'}' to close block") {
		stmts = append(stmts, &ast.ErrorStatement{Token: p.cur, Message: "unterminated block"})
	}
	return &ast.BlockStatement{Token: tok, Statements: stmts}
}

func (p *Parser) parseIfStatement() ast.Statement {
	tok := p.cur
	p.advance()
	if !p.expect(lexer.LParen, "'(' after 'if'") {
		return &ast.ErrorStatement{Token: tok, Message: "expected '(' after 'if'"}
	}
	cond := p.parseExpression(precNone)
	if !p.expect(lexer.RParen, "')' after if condition") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ')' after if condition"}
	}
	if p.cur.Kind != lexer.LBrace {
		p.addError(p.cur.Line, "expected '{' to start if body")
		return &ast.ErrorStatement{Token: tok, Message: "expected '{' to start if body"}
	}
	then := p.parseBlockStatement()

	var elseBlock *ast.BlockStatement
	if p.cur.Kind == lexer.Else {
		p.advance()
		if p.cur.Kind != lexer.LBrace {
			p.addError(p.cur.Line, "expected '{' to start else body")
			return &ast.ErrorStatement{Token: tok, Message: "expected '{' to start else body"}
		}
		elseBlock = p.parseBlockStatement()
	}
	return &ast.IfStatement{Token: tok, Condition: cond, Then: then, Else: elseBlock}
}

func (p *Parser) parseWhileStatement() ast.Statement {
	tok := p.cur
	p.advance()
	if !p.expect(lexer.LParen, "'(' after 'while'") {
		return &ast.ErrorStatement{Token: tok, Message: "expected '(' after 'while'"}
	}
	cond := p.parseExpression(precNone)
	if !p.expect(lexer.RParen, "')' after while condition") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ')' after while condition"}
	}
	if p.cur.Kind != lexer.LBrace {
		p.addError(p.cur.Line, "expected '{' to start while body")
		return &ast.ErrorStatement{Token: tok, Message: "expected '{' to start while body"}
	}
	body := p.parseBlockStatement()
	return &ast.WhileStatement{Token: tok, Condition: cond, Body: body}
}

func (p *Parser) parseFunctionStatement() ast.Statement {
	tok := p.cur
	p.advance()
	if p.cur.Kind != lexer.Identifier {
		p.addError(p.cur.Line, "expected function name")
		return &ast.ErrorStatement{Token: tok, Message: "expected function name"}
	}
	name := p.cur.Lexeme
	p.advance()

	if !p.expect(lexer.LParen, "'(' after function name") {
		return &ast.ErrorStatement{Token: tok, Message: "expected '(' after function name"}
	}
	var params []string
	for p.cur.Kind != lexer.RParen {
		if p.cur.Kind != lexer.Identifier {
			p.addError(p.cur.Line, "expected parameter name")
			return &ast.ErrorStatement{Token: tok, Message: "expected parameter name"}
		}
		params = append(params, p.cur.Lexeme)
		p.advance()
		if p.cur.Kind == lexer.Comma {
			p.advance()
		} else {
			break
		}
	}
	if !p.expect(lexer.RParen, "')' after parameters") {
		return &ast.ErrorStatement{Token: tok, Message: "expected ')' after parameters"}
	}
	if p.cur.Kind != lexer.LBrace {
		p.addError(p.cur.Line, "expected '{' to start function body")
		return &ast.ErrorStatement{Token: tok, Message: "expected '{' to start function body"}
	}
	body := p.parseBlockStatement()
	return &ast.FunctionStatement{Token: tok, Name: name, Parameters: params, Body: body}
}

// parseExpression is the Pratt driver: invoke the prefix parser for the
// current token, then keep folding in infix operators whose precedence
// exceeds prec.
func (p *Parser) parseExpression(prec precedence) ast.Expression {
	prefix, ok := p.prefixFns[p.cur.Kind]
	if !ok {
		tok := p.cur
		p.addError(tok.Line, "no prefix parse function for '%s'", tok.Lexeme)
		p.advance()
		return &ast.ErrorExpression{Token: tok, Message: "no prefix parse function"}
	}
	left := prefix()

	for prec < precedenceOf(p.cur.Kind) && p.cur.Kind != lexer.EOF {
		infix, ok := p.infixFns[p.cur.Kind]
		if !ok {
			return left
		}
		left = infix(left)
	}
	return left
}

func precedenceOf(k lexer.Kind) precedence {
	if pr, ok := precedences[k]; ok {
		return pr
	}
	return precNone
}

func (p *Parser) parseNumber() ast.Expression {
	tok := p.cur
	var v float64
	fmt.Sscanf(tok.Lexeme, "%g", &v)
	p.advance()
	return &ast.NumberLiteral{Token: tok, Value: v}
}

func (p *Parser) parseString() ast.Expression {
	tok := p.cur
	// strip the surrounding quotes the lexer left in the lexeme
	s := tok.Lexeme
	if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	p.advance()
	return &ast.StringLiteral{Token: tok, Value: s}
}

func (p *Parser) parseBool() ast.Expression {
	tok := p.cur
	p.advance()
	return &ast.BoolLiteral{Token: tok, Value: tok.Kind == lexer.True}
}

func (p *Parser) parseIdentifier() ast.Expression {
	tok := p.cur
	p.advance()
	return &ast.Identifier{Token: tok, Name: tok.Lexeme}
}

func (p *Parser) parseGrouping() ast.Expression {
	tok := p.cur
	p.advance() // consume '('
	inner := p.parseExpression(precNone)
	if !p.expect(lexer.RParen, "')' after expression") {
		return &ast.ErrorExpression{Token: tok, Message: "expected ')' after expression"}
	}
	return &ast.GroupExpression{Token: tok, Inner: inner}
}

func (p *Parser) parseUnary() ast.Expression {
	tok := p.cur
	p.advance()
	right := p.parseExpression(precUnary)
	return &ast.PrefixExpression{Token: tok, Operator: tok.Kind, Right: right}
}

func (p *Parser) parseBinary(left ast.Expression) ast.Expression {
	tok := p.cur
	prec := precedenceOf(tok.Kind)
	p.advance()
	right := p.parseExpression(prec)
	return &ast.InfixExpression{Token: tok, Left: left, Operator: tok.Kind, Right: right}
}

// parseCall is the infix rule triggered by '(' immediately following an
// identifier: left must be that Identifier.
func (p *Parser) parseCall(left ast.Expression) ast.Expression {
	tok := p.cur
	callee, ok := left.(*ast.Identifier)
	if !ok {
		p.addError(tok.Line, "can only call a named function")
		p.advance()
		return &ast.ErrorExpression{Token: tok, Message: "can only call a named function"}
	}
	p.advance() // consume '('
	var args []ast.Expression
	for p.cur.Kind != lexer.RParen {
		args = append(args, p.parseExpression(precNone))
		if p.cur.Kind == lexer.Comma {
			p.advance()
		} else {
			break
		}
	}
	if !p.expect(lexer.RParen, "')' after arguments") {
		return &ast.ErrorExpression{Token: tok, Message: "expected ')' after arguments"}
	}
	return &ast.CallExpression{Token: tok, Callee: callee, Args: args}
}
