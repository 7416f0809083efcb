// Package bytecode defines the instruction set the compiler emits and the
// VM executes, the Chunk that holds a compiled function's code and
// constant pool, and the heap Function object a Chunk is attached to.
//
// Instruction format:
//
// Every instruction is a single opcode byte. Operands, where an opcode
// has one, follow immediately in the code stream: a one-byte operand for
// OP_CONSTANT/OP_DEFINE_GLOBAL/OP_GET_GLOBAL/OP_SET_GLOBAL (a constant-pool
// index naming the value or the global's name), a one-byte local slot index
// for OP_GET_LOCAL/OP_SET_LOCAL, a one-byte argument count for OP_CALL, or a
// two-byte big-endian jump offset for the jump and loop opcodes. There is
// no instruction alignment padding. OP_SET_LOCAL and OP_SET_GLOBAL leave
// their value on top of the stack rather than popping it, so the compiler
// emits an explicit OP_POP after every assignment statement.
package bytecode

import "github.com/kristofer/vmscript/internal/value"

// Opcode identifies a single bytecode instruction.
type Opcode byte

const (
	OpConstant Opcode = iota
	OpNegate
	OpNot
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpLess
	OpGreater
	OpEqual
	OpTrue
	OpFalse
	OpNull
	OpPop
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpLoop
	OpCall
	OpReturn
)

func (op Opcode) String() string {
	switch op {
	case OpConstant:
		return "OP_CONSTANT"
	case OpNegate:
		return "OP_NEGATE"
	case OpNot:
		return "OP_NOT"
	case OpAdd:
		return "OP_ADD"
	case OpSubtract:
		return "OP_SUBTRACT"
	case OpMultiply:
		return "OP_MULTIPLY"
	case OpDivide:
		return "OP_DIVIDE"
	case OpLess:
		return "OP_LESS"
	case OpGreater:
		return "OP_GREATER"
	case OpEqual:
		return "OP_EQUAL"
	case OpTrue:
		return "OP_TRUE"
	case OpFalse:
		return "OP_FALSE"
	case OpNull:
		return "OP_NULL"
	case OpPop:
		return "OP_POP"
	case OpDefineGlobal:
		return "OP_DEFINE_GLOBAL"
	case OpGetGlobal:
		return "OP_GET_GLOBAL"
	case OpSetGlobal:
		return "OP_SET_GLOBAL"
	case OpGetLocal:
		return "OP_GET_LOCAL"
	case OpSetLocal:
		return "OP_SET_LOCAL"
	case OpJump:
		return "OP_JUMP"
	case OpJumpIfFalse:
		return "OP_JUMP_IF_FALSE"
	case OpJumpIfTrue:
		return "OP_JUMP_IF_TRUE"
	case OpLoop:
		return "OP_LOOP"
	case OpCall:
		return "OP_CALL"
	case OpReturn:
		return "OP_RETURN"
	default:
		return "OP_UNKNOWN"
	}
}

// MaxConstants is the number of distinct constants a single chunk can
// hold: indices are encoded in one byte. Exceeding this is a compile
// error (see Chunk.AddConstant).
const MaxConstants = 256

// Chunk is a dynamic byte array of instructions with a parallel
// per-instruction line map and the constant pool those instructions
// index into. Code and Lines grow in lockstep; Constants is append-only
// during compilation, so constant indices are stable once assigned.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// NewChunk returns an empty Chunk ready for writes.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 8),
		Lines:     make([]int, 0, 8),
		Constants: make([]value.Value, 0, 8),
	}
}

// WriteByte appends a raw byte to the instruction stream, recording line
// as the source line that produced it.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.WriteByte(byte(op), line)
}

// AddConstant appends val to the constant pool and returns its index, or
// an error if the chunk has already reached MaxConstants.
func (c *Chunk) AddConstant(val value.Value) (int, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, errTooManyConstants
	}
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1, nil
}

// WriteConstant composes OP_CONSTANT <index> for val, appending it to the
// constant pool first (an equal constant already in the pool is not
// reused).
func (c *Chunk) WriteConstant(val value.Value, line int) error {
	idx, err := c.AddConstant(val)
	if err != nil {
		return err
	}
	c.WriteOp(OpConstant, line)
	c.WriteByte(byte(idx), line)
	return nil
}

// errTooManyConstants is returned by AddConstant; the compiler wraps it
// with the offending source line before surfacing it as a compile error.
var errTooManyConstants = chunkError("too many constants in one chunk")

type chunkError string

func (e chunkError) Error() string { return string(e) }

// Function is the heap object produced by compiling a function
// definition (or the implicit top-level script): its arity, optional
// name, and the Chunk holding its body's bytecode.
type Function struct {
	Name  *value.String // nil for the top-level script function
	Arity int
	Chunk *Chunk
}

func (*Function) ObjKind() value.ObjKind { return value.ObjKindFunction }

// String renders the way the print native formats a function value:
// function<name>, or function<script> for the anonymous top-level unit.
func (f *Function) String() string {
	if f.Name == nil {
		return "function<script>"
	}
	return "function<" + f.Name.Chars + ">"
}
