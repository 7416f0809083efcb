// Package value defines the tagged runtime value representation shared by
// the compiler and the VM, and the heap objects a Value can reference.
package value

import "fmt"

// Kind discriminates the variant stored in a Value.
type Kind int

const (
	KindNumber Kind = iota
	KindBool
	KindNull
	KindObj
)

// ObjKind discriminates the variant of a heap Object.
type ObjKind int

const (
	ObjKindString ObjKind = iota
	ObjKindFunction
	ObjKindNative
)

// Object is the common interface every heap-allocated value implements.
// Concrete heap objects live wherever their shape is most natural to
// define: String and Native here, Function in package bytecode (it embeds
// a *bytecode.Chunk). The VM is the sole owner of every Object it allocates
// and tracks them on its live-object ledger.
type Object interface {
	ObjKind() ObjKind
}

// Value is a fixed-size, value-typed stack slot. Exactly one of its fields
// is meaningful, selected by Kind; Obj carries a reference to a
// heap-allocated Object for the Obj variant.
type Value struct {
	Kind Kind
	num  float64
	b    bool
	obj  Object
}

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, num: n} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, b: b} }

// Null is the singular null Value.
var Null = Value{Kind: KindNull}

// FromObject wraps a heap Object in a Value.
func FromObject(o Object) Value { return Value{Kind: KindObj, obj: o} }

// AsNumber returns the numeric payload. Callers must check IsNumber first.
func (v Value) AsNumber() float64 { return v.num }

// AsBool returns the boolean payload. Callers must check IsBool first.
func (v Value) AsBool() bool { return v.b }

// AsObject returns the heap object payload. Callers must check IsObj first.
func (v Value) AsObject() Object { return v.obj }

func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNull() bool   { return v.Kind == KindNull }
func (v Value) IsObj() bool    { return v.Kind == KindObj }

// IsObjKind reports whether v holds an object of the given kind.
func (v Value) IsObjKind(k ObjKind) bool {
	return v.Kind == KindObj && v.obj.ObjKind() == k
}

// AsString returns the *String payload, or nil if v is not a string.
func (v Value) AsString() *String {
	if !v.IsObjKind(ObjKindString) {
		return nil
	}
	return v.obj.(*String)
}

// IsFalsey implements the language's truthiness rule: null and false are
// falsey, everything else (including the number zero) is truthy.
func (v Value) IsFalsey() bool {
	return v.Kind == KindNull || (v.Kind == KindBool && !v.b)
}

// Equal implements value-equality. Values of differing Kind are never
// equal; a type mismatch is not an error, it is simply false.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindNull:
		return true
	case KindObj:
		if vs, ok := v.obj.(*String); ok {
			if os, ok := o.obj.(*String); ok {
				return vs.Chars == os.Chars
			}
			return false
		}
		return v.obj == o.obj
	default:
		return false
	}
}

// String renders v the way the print native does: numbers with %g,
// booleans as true/false, null as null, strings as their bytes, and
// functions/natives as a short descriptive tag.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNull:
		return "null"
	case KindObj:
		switch o := v.obj.(type) {
		case *String:
			return o.Chars
		case *Native:
			return "native<" + o.Name + ">"
		default:
			return fmt.Sprintf("%v", o)
		}
	default:
		return "?"
	}
}

// String is the heap representation of a string literal or concatenation
// result: owned bytes plus a precomputed FNV-1a hash so the globals table
// never rehashes on lookup.
type String struct {
	Chars string
	Hash  uint32
}

func (*String) ObjKind() ObjKind { return ObjKindString }

// NewString allocates a String object and computes its hash. It does not
// register the object on any VM ledger; callers (the VM's interner) do
// that so every allocation path is visible in one place.
func NewString(s string) *String {
	return &String{Chars: s, Hash: FNV1a(s)}
}

// FNV1a computes the 32-bit FNV-1a hash of s, matching the hash scheme
// the reference implementation uses for its string keys.
func FNV1a(s string) uint32 {
	const offsetBasis uint32 = 2166136261
	const prime uint32 = 16777619
	h := offsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// NativeFn is the signature every host-provided native function
// implements: given an allocator (for returning freshly made strings) and
// the argument slice, produce a result Value.
type NativeFn func(a Allocator, args []Value) Value

// Allocator is the minimal capability a native function needs from the
// VM: the ability to mint interned string objects for its return value.
type Allocator interface {
	NewString(s string) *String
}

// Native wraps a host function so it can be stored in a Value and invoked
// through the same OP_CALL path as a user-defined Function.
type Native struct {
	Name string
	Fn   NativeFn
}

func (*Native) ObjKind() ObjKind { return ObjKindNative }
