// Package vm implements the stack-based interpreter that executes
// compiled bytecode: the value stack, call frames, the globals table, the
// live-object ledger, and native-function dispatch.
package vm

import (
	"github.com/sirupsen/logrus"

	"github.com/kristofer/vmscript/internal/bytecode"
	"github.com/kristofer/vmscript/internal/table"
	"github.com/kristofer/vmscript/internal/value"
)

const (
	stackMax  = 256 * 64
	framesMax = 64
)

// callFrame is a single call's execution context: the function it is
// running, its instruction pointer (an index into fn.Chunk.Code), and the
// base index into the shared value stack where its arguments/locals
// begin.
type callFrame struct {
	fn   *bytecode.Function
	ip   int
	base int
}

// VM owns the value stack, the call-frame stack, the globals table, and
// every heap object allocated during compilation or execution. Natives
// are registered into globals before Run is called.
type VM struct {
	stack      []value.Value
	frames     []callFrame
	frameCount int

	globals *table.Table
	strings map[string]*value.String
	objects []value.Object

	log *logrus.Entry

	lastValue    value.Value
	hasLastValue bool
}

// New returns a VM with an empty globals table and no live objects.
func New() *VM {
	return &VM{
		stack:   make([]value.Value, 0, 256),
		frames:  make([]callFrame, framesMax),
		globals: table.New(),
		strings: make(map[string]*value.String),
	}
}

// SetLogger attaches a logrus entry used for --debug tracing of call
// frame transitions. A nil logger (the default) disables tracing.
func (vm *VM) SetLogger(l *logrus.Entry) { vm.log = l }

// NewString interns s, returning the existing String object if an
// identical one was already allocated. This implements the "permissible
// extension" the design notes call out: equal strings created during
// compilation or execution share one heap object.
func (vm *VM) NewString(s string) *value.String {
	if existing, ok := vm.strings[s]; ok {
		return existing
	}
	str := value.NewString(s)
	vm.strings[s] = str
	vm.objects = append(vm.objects, str)
	return str
}

// NewFunction allocates a Function object and tracks it on the live
// object ledger. The compiler calls this once per function literal (and
// once for the implicit top-level script).
func (vm *VM) NewFunction(name *value.String, arity int, chunk *bytecode.Chunk) *bytecode.Function {
	fn := &bytecode.Function{Name: name, Arity: arity, Chunk: chunk}
	vm.objects = append(vm.objects, fn)
	return fn
}

// DefineNative registers a host function as a global under name.
func (vm *VM) DefineNative(name string, fn value.NativeFn) {
	key := vm.NewString(name)
	n := &value.Native{Name: name, Fn: fn}
	vm.objects = append(vm.objects, n)
	vm.globals.Set(key, value.FromObject(n))
}

// LastValue returns the value left on top of the stack when the outermost
// frame's most recent Run call returned, and whether there was one. This
// is how the REPL's auto-print feature recovers a bare expression
// statement's result without the bytecode itself needing any special
// "print the result" opcode — it mirrors the reference interpreter's
// run() peeking at the stack after the outermost OP_RETURN.
func (vm *VM) LastValue() (value.Value, bool) { return vm.lastValue, vm.hasLastValue }

// LiveObjects reports how many heap objects the VM has allocated. Go's
// garbage collector owns their actual lifetime; this is a ledger kept for
// introspection and testing, standing in for the reference
// implementation's manual free-on-teardown walk.
func (vm *VM) LiveObjects() int { return len(vm.objects) }

// Reset clears the value stack and call frames between REPL evaluations
// without discarding globals, interned strings, or the object ledger —
// mirroring the reference REPL's per-line resetVM, adapted to keep
// bindings alive across lines the way an interactive session should.
func (vm *VM) Reset() {
	vm.stack = vm.stack[:0]
	vm.frameCount = 0
}

func (vm *VM) push(v value.Value) error {
	if len(vm.stack) >= stackMax {
		return vm.runtimeErrorf("stack overflow")
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(depth int) value.Value {
	return vm.stack[len(vm.stack)-1-depth]
}

// Run executes fn as the outermost frame (the compiled top-level script
// or a standalone function value) to completion. It returns a
// *RuntimeError if execution fails; compile-time problems never reach
// here.
func (vm *VM) Run(fn *bytecode.Function) error {
	vm.frameCount = 0
	vm.pushCallFrame(fn, 0)
	return vm.run()
}

func (vm *VM) pushCallFrame(fn *bytecode.Function, base int) {
	vm.frames[vm.frameCount] = callFrame{fn: fn, ip: 0, base: base}
	vm.frameCount++
	if vm.log != nil {
		vm.log.Debugf("call %s (base=%d)", fnName(fn), base)
	}
}

func fnName(fn *bytecode.Function) string {
	if fn.Name == nil {
		return "<script>"
	}
	return fn.Name.Chars
}

func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.fn.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return frame.fn.Chunk.Constants[readByte()]
	}

	for {
		// The active frame pointer is recomputed every iteration: OP_CALL
		// and OP_RETURN change frameCount, and the new top frame must be
		// what the next instruction is read against.
		frame = &vm.frames[vm.frameCount-1]

		if vm.log != nil {
			vm.log.Debugf("ip=%d op=%s", frame.ip, bytecode.Opcode(frame.fn.Chunk.Code[frame.ip]))
		}

		op := bytecode.Opcode(readByte())
		switch op {
		case bytecode.OpConstant:
			if err := vm.push(readConstant()); err != nil {
				return err
			}

		case bytecode.OpNull:
			if err := vm.push(value.Null); err != nil {
				return err
			}
		case bytecode.OpTrue:
			if err := vm.push(value.Bool(true)); err != nil {
				return err
			}
		case bytecode.OpFalse:
			if err := vm.push(value.Bool(false)); err != nil {
				return err
			}

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpNegate:
			v := vm.peek(0)
			if !v.IsNumber() {
				return vm.runtimeErrorf("operand to unary '-' must be a number")
			}
			vm.pop()
			if err := vm.push(value.Number(-v.AsNumber())); err != nil {
				return err
			}

		case bytecode.OpNot:
			v := vm.pop()
			if err := vm.push(value.Bool(v.IsFalsey())); err != nil {
				return err
			}

		case bytecode.OpAdd:
			b, a := vm.peek(0), vm.peek(1)
			if a.IsObjKind(value.ObjKindString) && b.IsObjKind(value.ObjKindString) {
				vm.pop()
				vm.pop()
				concat := vm.NewString(a.AsString().Chars + b.AsString().Chars)
				if err := vm.push(value.FromObject(concat)); err != nil {
					return err
				}
			} else if a.IsNumber() && b.IsNumber() {
				vm.pop()
				vm.pop()
				if err := vm.push(value.Number(a.AsNumber() + b.AsNumber())); err != nil {
					return err
				}
			} else {
				return vm.runtimeErrorf("operands to '+' must be two numbers or two strings")
			}

		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide,
			bytecode.OpLess, bytecode.OpGreater:
			b, a := vm.peek(0), vm.peek(1)
			if !a.IsNumber() || !b.IsNumber() {
				return vm.runtimeErrorf("operands to '%s' must be numbers", op)
			}
			vm.pop()
			vm.pop()
			var result value.Value
			switch op {
			case bytecode.OpSubtract:
				result = value.Number(a.AsNumber() - b.AsNumber())
			case bytecode.OpMultiply:
				result = value.Number(a.AsNumber() * b.AsNumber())
			case bytecode.OpDivide:
				result = value.Number(a.AsNumber() / b.AsNumber())
			case bytecode.OpLess:
				result = value.Bool(a.AsNumber() < b.AsNumber())
			case bytecode.OpGreater:
				result = value.Bool(a.AsNumber() > b.AsNumber())
			}
			if err := vm.push(result); err != nil {
				return err
			}

		case bytecode.OpEqual:
			b, a := vm.pop(), vm.pop()
			if err := vm.push(value.Bool(a.Equal(b))); err != nil {
				return err
			}

		case bytecode.OpDefineGlobal:
			name := readConstant().AsString()
			v := vm.pop()
			vm.globals.Set(name, v)

		case bytecode.OpGetGlobal:
			name := readConstant().AsString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeErrorf("undefined identifier '%s'", name.Chars)
			}
			if err := vm.push(v); err != nil {
				return err
			}

		case bytecode.OpSetGlobal:
			name := readConstant().AsString()
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeErrorf("undefined identifier '%s'", name.Chars)
			}
			vm.globals.Set(name, vm.peek(0))

		case bytecode.OpGetLocal:
			slot := int(readByte())
			if err := vm.push(vm.stack[frame.base+slot]); err != nil {
				return err
			}

		case bytecode.OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.base+slot] = vm.peek(0)

		case bytecode.OpJump:
			offset := readShort()
			frame.ip += offset

		case bytecode.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}

		case bytecode.OpJumpIfTrue:
			offset := readShort()
			if !vm.peek(0).IsFalsey() {
				frame.ip += offset
			}

		case bytecode.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case bytecode.OpCall:
			argc := int(readByte())
			if err := vm.call(argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpReturn:
			result := vm.pop()
			if vm.log != nil {
				vm.log.Debugf("return from %s", fnName(frame.fn))
			}
			vm.frameCount--
			if vm.frameCount == 0 {
				if len(vm.stack) > frame.base {
					vm.lastValue = vm.stack[len(vm.stack)-1]
					vm.hasLastValue = true
				} else {
					vm.hasLastValue = false
				}
				vm.stack = vm.stack[:frame.base]
				return nil
			}
			vm.stack = vm.stack[:frame.base]
			if err := vm.push(result); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeErrorf("unknown opcode %d", op)
		}
	}
}

// call implements OP_CALL's protocol: the callee sits on top of the
// stack with its argc arguments immediately below it.
func (vm *VM) call(argc int) error {
	callee := vm.peek(0)
	if !callee.IsObj() {
		return vm.runtimeErrorf("cannot call a non-function value")
	}

	switch obj := callee.AsObject().(type) {
	case *bytecode.Function:
		if obj.Arity != argc {
			return vm.runtimeErrorf("wrong number of args: expected %d, got %d", obj.Arity, argc)
		}
		if vm.frameCount >= framesMax {
			return vm.runtimeErrorf("stack overflow")
		}
		vm.pop() // the callee itself
		base := len(vm.stack) - argc
		vm.pushCallFrame(obj, base)
		return nil

	case *value.Native:
		vm.pop() // the callee itself
		args := append([]value.Value(nil), vm.stack[len(vm.stack)-argc:]...)
		vm.stack = vm.stack[:len(vm.stack)-argc]
		result := obj.Fn(vm, args)
		return vm.push(result)

	default:
		return vm.runtimeErrorf("cannot call a non-function value")
	}
}
