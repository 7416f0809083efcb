// Package compiler walks an internal/ast tree and emits internal/bytecode,
// resolving every identifier to a local slot or a global name as it goes,
// and patching the jump offsets control-flow statements need.
package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/kristofer/vmscript/internal/ast"
	"github.com/kristofer/vmscript/internal/bytecode"
	"github.com/kristofer/vmscript/internal/lexer"
	"github.com/kristofer/vmscript/internal/value"
)

// maxLocals bounds a single function's local-slot budget; the reference
// implementation fixes this at 256 and treats exceeding it as a
// compile-time error.
const maxLocals = 256

// Allocator is the subset of *vm.VM the compiler needs during compilation:
// minting interned strings for name constants, and function objects for
// compiled function bodies. The VM is the sole owner of everything these
// methods allocate.
type Allocator interface {
	NewString(s string) *value.String
	NewFunction(name *value.String, arity int, chunk *bytecode.Chunk) *bytecode.Function
}

// local is one entry of a funcScope's locals array. Slot 0 is always a
// reserved phantom entry (see newFuncScope); named locals start at index 1.
type local struct {
	name  string
	depth int
}

// funcScope is one frame of the compiler stack: one per nested function
// literal being compiled, plus one for the implicit top-level script.
// Nesting a funcScope for each function literal (rather than keeping one
// flat compiler) is what gives every function its own constant pool and
// local-slot numbering, and what makes an identifier miss in the
// innermost scope fall through to a global lookup instead of reaching
// into an enclosing function's locals — this language has no closures.
type funcScope struct {
	enclosing  *funcScope
	chunk      *bytecode.Chunk
	locals     []local
	scopeDepth int
	name       string
}

func newFuncScope(enclosing *funcScope, name string) *funcScope {
	return &funcScope{
		enclosing: enclosing,
		chunk:     bytecode.NewChunk(),
		// locals[0] is a bookkeeping placeholder, not a real stack slot:
		// the call protocol pops the callee before a function's frame is
		// pushed, so resolveLocal compensates with an arrayIndex-1 offset
		// to land the first real parameter/local on runtime slot 0.
		locals: []local{{name: "", depth: 0}},
		name:   name,
	}
}

// Compiler holds the one funcScope stack active during a single Compile
// call. It is not reused across calls.
type Compiler struct {
	alloc  Allocator
	scope  *funcScope
	errors *multierror.Error
	log    *logrus.Entry
}

// New returns a Compiler that allocates heap objects (interned strings,
// compiled function values) through alloc.
func New(alloc Allocator) *Compiler {
	return &Compiler{alloc: alloc}
}

// SetLogger attaches a logrus entry used to dump each compiled chunk's
// disassembly under --debug. A nil logger (the default) disables it.
func (c *Compiler) SetLogger(l *logrus.Entry) { c.log = l }

func (c *Compiler) addError(line int, format string, args ...interface{}) {
	c.errors = multierror.Append(c.errors, fmt.Errorf("[line %d] Error: %s", line, fmt.Sprintf(format, args...)))
}

// Compile compiles prog into the top-level script Function. It refuses to
// emit any code if the tree contains a syntax error recorded by the
// parser, matching the compile-time "tree contains errors" rule.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Function, error) {
	if ast.ContainsErrors(prog.Statements) {
		return nil, fmt.Errorf("cannot compile a program containing syntax errors")
	}

	c.scope = newFuncScope(nil, "")
	for _, stmt := range prog.Statements {
		c.compileStatement(stmt)
	}
	c.emitOp(bytecode.OpNull, 0)
	c.emitOp(bytecode.OpReturn, 0)

	chunk := c.scope.chunk
	if c.log != nil {
		c.log.Debugln(bytecode.Disassemble(chunk, "<script>"))
	}
	fn := c.alloc.NewFunction(nil, 0, chunk)
	if c.errors != nil {
		return fn, c.errors
	}
	return fn, nil
}

func (c *Compiler) chunk() *bytecode.Chunk { return c.scope.chunk }

func (c *Compiler) emitByte(b byte, line int)         { c.chunk().WriteByte(b, line) }
func (c *Compiler) emitOp(op bytecode.Opcode, line int) { c.chunk().WriteOp(op, line) }

func (c *Compiler) emitConstant(v value.Value, line int) {
	if err := c.chunk().WriteConstant(v, line); err != nil {
		c.addError(line, "%v", err)
	}
}

// internName interns name as a string constant and returns its
// constant-pool index, for the opcodes that address a global by name.
func (c *Compiler) internName(name string, line int) byte {
	idx, err := c.chunk().AddConstant(value.FromObject(c.alloc.NewString(name)))
	if err != nil {
		c.addError(line, "%v", err)
		return 0
	}
	return byte(idx)
}

// emitJump writes op followed by a two-byte placeholder and returns the
// offset of the placeholder's first byte, for patchJump to fill in once
// the jump target is known.
func (c *Compiler) emitJump(op bytecode.Opcode, line int) int {
	c.emitOp(op, line)
	c.emitByte(0xff, line)
	c.emitByte(0xff, line)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xffff {
		c.addError(0, "jump target too far to encode")
		return
	}
	code := c.chunk().Code
	code[offset] = byte((jump >> 8) & 0xff)
	code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int, line int) {
	c.emitOp(bytecode.OpLoop, line)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.addError(line, "loop body too large to encode")
	}
	c.emitByte(byte((offset>>8)&0xff), line)
	c.emitByte(byte(offset&0xff), line)
}

// --- Statements ---------------------------------------------------------

func (c *Compiler) compileStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ReturnStatement:
		c.compileExpression(s.Value)
		c.emitOp(bytecode.OpReturn, s.Line())

	case *ast.VarStatement:
		c.compileExpression(s.Value)
		c.defineVariable(s.Name, s.Line())

	case *ast.AssignStatement:
		c.compileExpression(s.Value)
		c.assignVariable(s.Name, s.Line())
		c.emitOp(bytecode.OpPop, s.Line())

	case *ast.ExpressionStatement:
		c.compileExpression(s.Expr)
		// No OP_POP: a bare expression statement deliberately leaves its
		// value on top of the stack. The frame's trailing OP_NULL/
		// OP_RETURN truncates it away at the end, and a REPL driver reads
		// it off to auto-print the result of a one-line evaluation.

	case *ast.BlockStatement:
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStatement(inner)
		}
		c.endScope(s.Line())

	case *ast.IfStatement:
		c.compileIf(s)

	case *ast.WhileStatement:
		c.compileWhile(s)

	case *ast.FunctionStatement:
		c.compileFunction(s)

	case *ast.NullStatement:
		// no code

	default:
		c.addError(stmt.Line(), "unknown statement type %T", stmt)
	}
}

func (c *Compiler) defineVariable(name string, line int) {
	if c.scope.scopeDepth == 0 {
		idx := c.internName(name, line)
		c.emitOp(bytecode.OpDefineGlobal, line)
		c.emitByte(idx, line)
		return
	}
	c.addLocal(name, line)
}

func (c *Compiler) addLocal(name string, line int) {
	if len(c.scope.locals) >= maxLocals {
		c.addError(line, "too many local variables in one function")
		return
	}
	c.scope.locals = append(c.scope.locals, local{name: name, depth: c.scope.scopeDepth})
}

// resolveLocal scans the current function scope's locals from innermost
// to outermost, returning the runtime stack slot to address. It never
// searches an enclosing function's locals.
func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.scope.locals) - 1; i >= 1; i-- {
		if c.scope.locals[i].name == name {
			return i - 1, true
		}
	}
	return 0, false
}

func (c *Compiler) assignVariable(name string, line int) {
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOp(bytecode.OpSetLocal, line)
		c.emitByte(byte(slot), line)
		return
	}
	idx := c.internName(name, line)
	c.emitOp(bytecode.OpSetGlobal, line)
	c.emitByte(idx, line)
}

func (c *Compiler) beginScope() { c.scope.scopeDepth++ }

// endScope pops every local declared at or below the scope being closed,
// emitting one OP_POP per slot so the runtime stack matches the compiler's
// bookkeeping.
func (c *Compiler) endScope(line int) {
	c.scope.scopeDepth--
	for len(c.scope.locals) > 1 && c.scope.locals[len(c.scope.locals)-1].depth > c.scope.scopeDepth {
		c.emitOp(bytecode.OpPop, line)
		c.scope.locals = c.scope.locals[:len(c.scope.locals)-1]
	}
}

func (c *Compiler) compileIf(s *ast.IfStatement) {
	c.compileExpression(s.Condition)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse, s.Line())
	c.emitOp(bytecode.OpPop, s.Line())
	c.compileStatement(s.Then)
	elseJump := c.emitJump(bytecode.OpJump, s.Line())

	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop, s.Line())
	if s.Else != nil {
		c.compileStatement(s.Else)
	}
	c.patchJump(elseJump)
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) {
	loopStart := len(c.chunk().Code)
	c.compileExpression(s.Condition)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse, s.Line())
	c.emitOp(bytecode.OpPop, s.Line())
	c.compileStatement(s.Body)
	c.emitLoop(loopStart, s.Line())

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop, s.Line())
}

// compileFunction compiles s's body in a fresh funcScope (pushed onto the
// compiler stack, popped once the body is done), then emits the resulting
// Function as a constant in the enclosing chunk and binds its name the
// same way a var declaration would.
func (c *Compiler) compileFunction(s *ast.FunctionStatement) {
	enclosing := c.scope
	c.scope = newFuncScope(enclosing, s.Name)

	// Parameters and body declarations alike must land at scopeDepth > 0,
	// or defineVariable would treat a body-level `var` as file scope and
	// emit OP_DEFINE_GLOBAL instead of binding it to this call's frame.
	c.beginScope()
	for _, param := range s.Parameters {
		c.addLocal(param, s.Line())
	}
	for _, inner := range s.Body.Statements {
		c.compileStatement(inner)
	}
	c.emitOp(bytecode.OpNull, s.Line())
	c.emitOp(bytecode.OpReturn, s.Line())

	fnChunk := c.scope.chunk
	if c.log != nil {
		c.log.Debugln(bytecode.Disassemble(fnChunk, s.Name))
	}
	c.scope = enclosing

	fn := c.alloc.NewFunction(c.alloc.NewString(s.Name), len(s.Parameters), fnChunk)
	idx, err := c.chunk().AddConstant(value.FromObject(fn))
	if err != nil {
		c.addError(s.Line(), "%v", err)
		return
	}
	c.emitOp(bytecode.OpConstant, s.Line())
	c.emitByte(byte(idx), s.Line())
	c.defineVariable(s.Name, s.Line())
}

// --- Expressions ---------------------------------------------------------

func (c *Compiler) compileExpression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		c.emitConstant(value.Number(e.Value), e.Line())

	case *ast.BoolLiteral:
		if e.Value {
			c.emitOp(bytecode.OpTrue, e.Line())
		} else {
			c.emitOp(bytecode.OpFalse, e.Line())
		}

	case *ast.StringLiteral:
		c.emitConstant(value.FromObject(c.alloc.NewString(e.Value)), e.Line())

	case *ast.NullLiteral:
		c.emitOp(bytecode.OpNull, e.Line())

	case *ast.Identifier:
		c.compileIdentifier(e)

	case *ast.GroupExpression:
		c.compileExpression(e.Inner)

	case *ast.PrefixExpression:
		c.compilePrefix(e)

	case *ast.InfixExpression:
		c.compileInfix(e)

	case *ast.CallExpression:
		c.compileCall(e)

	case *ast.ErrorExpression:
		// unreachable: Compile refuses any tree ast.ContainsErrors flags.

	default:
		c.addError(expr.Line(), "unknown expression type %T", expr)
	}
}

func (c *Compiler) compileIdentifier(id *ast.Identifier) {
	if slot, ok := c.resolveLocal(id.Name); ok {
		c.emitOp(bytecode.OpGetLocal, id.Line())
		c.emitByte(byte(slot), id.Line())
		return
	}
	idx := c.internName(id.Name, id.Line())
	c.emitOp(bytecode.OpGetGlobal, id.Line())
	c.emitByte(idx, id.Line())
}

func (c *Compiler) compilePrefix(e *ast.PrefixExpression) {
	c.compileExpression(e.Right)
	switch e.Operator {
	case lexer.Minus:
		c.emitOp(bytecode.OpNegate, e.Line())
	case lexer.Bang:
		c.emitOp(bytecode.OpNot, e.Line())
	default:
		c.addError(e.Line(), "unknown prefix operator '%s'", e.Operator)
	}
}

// compileInfix handles short-circuiting and/or by emitting a conditional
// jump around the right operand instead of evaluating both sides
// unconditionally the way every other binary operator does.
func (c *Compiler) compileInfix(e *ast.InfixExpression) {
	switch e.Operator {
	case lexer.And:
		c.compileExpression(e.Left)
		end := c.emitJump(bytecode.OpJumpIfFalse, e.Line())
		c.emitOp(bytecode.OpPop, e.Line())
		c.compileExpression(e.Right)
		c.patchJump(end)
		return
	case lexer.Or:
		c.compileExpression(e.Left)
		end := c.emitJump(bytecode.OpJumpIfTrue, e.Line())
		c.emitOp(bytecode.OpPop, e.Line())
		c.compileExpression(e.Right)
		c.patchJump(end)
		return
	}

	c.compileExpression(e.Left)
	c.compileExpression(e.Right)
	switch e.Operator {
	case lexer.Plus:
		c.emitOp(bytecode.OpAdd, e.Line())
	case lexer.Minus:
		c.emitOp(bytecode.OpSubtract, e.Line())
	case lexer.Star:
		c.emitOp(bytecode.OpMultiply, e.Line())
	case lexer.Slash:
		c.emitOp(bytecode.OpDivide, e.Line())
	case lexer.Less:
		c.emitOp(bytecode.OpLess, e.Line())
	case lexer.Greater:
		c.emitOp(bytecode.OpGreater, e.Line())
	case lexer.LessEqual:
		c.emitOp(bytecode.OpGreater, e.Line())
		c.emitOp(bytecode.OpNot, e.Line())
	case lexer.GreaterEqual:
		c.emitOp(bytecode.OpLess, e.Line())
		c.emitOp(bytecode.OpNot, e.Line())
	case lexer.Equal:
		c.emitOp(bytecode.OpEqual, e.Line())
	case lexer.BangEqual:
		c.emitOp(bytecode.OpEqual, e.Line())
		c.emitOp(bytecode.OpNot, e.Line())
	default:
		c.addError(e.Line(), "unknown infix operator '%s'", e.Operator)
	}
}

// compileCall pushes arguments left-to-right, pushes the callee last (per
// the call protocol OP_CALL expects), then emits OP_CALL <argc>.
func (c *Compiler) compileCall(e *ast.CallExpression) {
	for _, arg := range e.Args {
		c.compileExpression(arg)
	}
	c.compileIdentifier(e.Callee)
	c.emitOp(bytecode.OpCall, e.Line())
	c.emitByte(byte(len(e.Args)), e.Line())
}
