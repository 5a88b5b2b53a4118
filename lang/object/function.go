package object

import "github.com/kestrel-lang/kestrel/lang/ir"

// Function is the runtime function object codegen builds for every
// top-level/nested function, method, and computed-property getter/setter
// (spec.md §3). Its IR buffer is replaced in place by Code once the
// optimizer/encoder pass finalizes the function.
type Function struct {
	Name      string
	NParams   int
	NLocals   int
	NUpvalues int

	// Upvalues mirrors ast.UpvalueEntry without importing lang/ast: one
	// descriptor per captured variable, in the order CLOSURE's implicit
	// capture step expects them (spec.md §4.6's upvalue entry).
	Upvalues []UpvalueDesc

	ParamNames []string
	Defaults   []Value // one per parameter, in declaration order; nil for a parameter without a default

	Constants  []Value
	constIndex map[Value]int

	// IR is the pre-encode instruction buffer; nil once Code has been
	// produced by the encoder (spec.md §4.6's "IR buffers ... freed when the
	// function is freed" — here, simply dropped for GC).
	IR *ir.Buffer

	// Code is the final bit-packed instruction stream (spec.md §6.2),
	// nil until the encoder runs.
	Code []uint32

	// Lines[i] is the source line of Code[i]. The encoder always fills it;
	// there is no option to leave it out.
	Lines []uint32

	Purity        float64
	UseArgs       bool
	NInstructions int
}

// UpvalueDesc records one upvalue capture link: either a direct capture of
// the immediately enclosing function's local at Index, or a re-capture of
// that enclosing function's own upvalue at Index (spec.md §3's upvalue
// entry, `IsDirect` distinguishing the two).
type UpvalueDesc struct {
	IsDirect bool
	Index    int
}

func (f *Function) String() string { return "func " + f.Name }
func (*Function) Type() string     { return "function" }

// NewFunction allocates a function object and its IR buffer, reserving the
// first nlocals registers (self, then parameters, then locals) per spec.md
// §4.6.
func NewFunction(name string, nparams, nlocals int) *Function {
	return &Function{
		Name:       name,
		NParams:    nparams,
		NLocals:    nlocals,
		constIndex: make(map[Value]int),
		IR:         ir.NewBuffer(nlocals),
	}
}

// AddConstant adds v to the function's constant pool, deduplicating by
// value, and returns its index. Callers must route singleton sentinel
// values (null/true/false/undefined/_func/_args) through
// object.ReservedIndexFor instead — those never occupy a real pool slot
// (spec.md §6.2).
func (f *Function) AddConstant(v Value) int {
	if idx, ok := f.constIndex[v]; ok {
		return idx
	}
	idx := len(f.Constants)
	f.Constants = append(f.Constants, v)
	f.constIndex[v] = idx
	return idx
}

// MaxConstPoolIndex is the largest real constant-pool index a function may
// use: the top 8 indices of the 18-bit LOADK field are reserved for the
// singleton sentinels (object.ReservedNull etc., spec.md §6.2).
const MaxConstPoolIndex = 1<<18 - 8 - 1

// ConstPoolOverflow reports whether f's constant pool has grown beyond what
// an 18-bit LOADK operand can address without colliding with the reserved
// sentinel indices (spec.md §7's "constant-pool overflow").
func (f *Function) ConstPoolOverflow() bool { return len(f.Constants) > MaxConstPoolIndex+1 }
