// Package object models the slice of the runtime object graph that codegen
// constructs while it compiles (spec.md §3 "Runtime objects created by
// codegen"): function objects, class/metaclass pairs, constant pools, and
// the handful of literal value kinds needed for constant folding and the
// reserved constant-pool sentinels of spec.md §6.2. Everything the
// executing virtual machine alone would need — the GC, closures' live
// upvalue cells, instance storage, the call stack — is out of scope
// (spec.md §1): this package is a construction API, not an interpreter.
//
// Grounded on the teacher's lang/machine.Value / lang/types.Value interface
// shape, trimmed to exactly this package's needs.
package object

import "strconv"

// Value is implemented by every value the compiler itself ever needs to
// hold: constant-pool entries, folded literals, and default parameter
// values.
type Value interface {
	String() string
	Type() string
}

// Null is the value of the `null` keyword literal.
type Null struct{}

func (Null) String() string { return "null" }
func (Null) Type() string   { return "null" }

// Undefined is the value of the `undefined` keyword literal.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }
func (Undefined) Type() string   { return "undefined" }

// FuncSentinel is the value of the `_func` keyword (the currently executing
// function, resolved by the VM at call time).
type FuncSentinel struct{}

func (FuncSentinel) String() string { return "_func" }
func (FuncSentinel) Type() string   { return "function" }

// ArgsSentinel is the value of the `_args` keyword (the current call's
// argument list, resolved by the VM at call time).
type ArgsSentinel struct{}

func (ArgsSentinel) String() string { return "_args" }
func (ArgsSentinel) Type() string   { return "list" }

// Bool is a boolean literal value.
type Bool bool

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (Bool) Type() string     { return "bool" }

// Int is an integer literal value (gravity/spec.md's int64 payload kind).
type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (Int) Type() string     { return "int" }

// Float is a floating-point literal value.
type Float float64

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (Float) Type() string     { return "float" }

// String is a string literal value.
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }

// reservedBase reserves the top 8 slots of the 18-bit LOADK index field
// (spec.md §6.2) for the singleton sentinels, rather than exceeding the
// field's range: Function.ConstPoolOverflow rejects a real pool that would
// grow into this range, so the two index spaces never collide on the wire.
const reservedBase = 1<<18 - 8

// Reserved constant-pool indices, part of the bytecode ABI (spec.md §6.2):
// codegen emits these in place of a LOADK into the real per-function pool
// whenever a literal is one of the singleton sentinel values.
const (
	ReservedNull = reservedBase + iota
	ReservedTrue
	ReservedFalse
	ReservedUndefined
	ReservedArguments
	ReservedFunc
)

// ReservedIndexFor returns the sentinel cpool index for v and true, or
// (0, false) if v is not one of the reserved singleton kinds.
func ReservedIndexFor(v Value) (int, bool) {
	switch vv := v.(type) {
	case Null:
		return ReservedNull, true
	case Undefined:
		return ReservedUndefined, true
	case FuncSentinel:
		return ReservedFunc, true
	case ArgsSentinel:
		return ReservedArguments, true
	case Bool:
		if vv {
			return ReservedTrue, true
		}
		return ReservedFalse, true
	default:
		return 0, false
	}
}
