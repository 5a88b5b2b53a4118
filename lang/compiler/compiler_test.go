package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/compiler"
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/parser"
	"github.com/kestrel-lang/kestrel/lang/resolver"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// compileSource runs the full parse->resolve->compile pipeline over src and
// returns the module-init function.
func compileSource(t *testing.T, src string) *object.Function {
	t.Helper()
	fset := token.NewFileSet()
	ch, err := parser.ParseChunk(fset, 0, "test.kes", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, ch)
	require.NoError(t, resolver.Resolve(fset, ch))
	fn, err := compiler.CompileChunk(fset, ch)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func opcodeOf(w uint32) ir.Opcode { return ir.Opcode(w >> 26) }
func fieldA(w uint32) int         { return int(w>>18) & 0xFF }
func field18(w uint32) int        { return int(w & 0x3FFFF) }
func field17(w uint32) int        { return int(w & 0x1FFFF) }
func signBit(w uint32) bool       { return w>>17&1 == 1 }

// findFunc looks up a function by name through fn's constant pool and any
// class member tables reachable from it.
func findFunc(fn *object.Function, name string) *object.Function {
	for _, v := range fn.Constants {
		switch cv := v.(type) {
		case *object.Function:
			if cv.Name == name {
				return cv
			}
			if found := findFunc(cv, name); found != nil {
				return found
			}
		case *object.Class:
			if found := findClassFunc(cv, name); found != nil {
				return found
			}
		}
	}
	return nil
}

func findClassFunc(cls *object.Class, name string) (found *object.Function) {
	cls.Members.Iter(func(_ string, v object.Value) bool {
		switch cv := v.(type) {
		case *object.Function:
			if cv.Name == name && found == nil {
				found = cv
			}
		case *object.Class:
			if f := findClassFunc(cv, name); f != nil && found == nil {
				found = f
			}
		}
		return false
	})
	return found
}

func findClass(fn *object.Function, name string) *object.Class {
	for _, v := range fn.Constants {
		if cls, ok := v.(*object.Class); ok && cls.Name == name {
			return cls
		}
	}
	return nil
}

func countOps(fn *object.Function, op ir.Opcode) int {
	n := 0
	for i := 0; i < fn.NInstructions; i++ {
		if opcodeOf(fn.Code[i]) == op {
			n++
		}
	}
	return n
}

// Scenario 1 of spec.md §8: a literal-only binary expression folds to a
// single LOADI; the encoded function carries no arithmetic instruction.
func TestCompileConstantFoldedReturn(t *testing.T) {
	mod := compileSource(t, "func f() { return 1 + 2; }")
	f := findFunc(mod, "f")
	require.NotNil(t, f)

	assert.Zero(t, countOps(f, ir.ADD))
	require.GreaterOrEqual(t, f.NInstructions, 2)
	assert.Equal(t, ir.LOADI, opcodeOf(f.Code[0]))
	assert.Equal(t, 3, field17(f.Code[0]))
	assert.Equal(t, ir.RET, opcodeOf(f.Code[1]))
	assert.Equal(t, fieldA(f.Code[0]), fieldA(f.Code[1]), "RET must return the folded LOADI's register")
}

// Scenario 2 of spec.md §8: the for-in lowering emits exactly one exclusive
// RANGENEW, calls iterate once before the header and once per advance, and
// next once inside the loop.
func TestCompileForInLowering(t *testing.T) {
	mod := compileSource(t, `
func f() {
	var j = 0;
	for (i in 0..<3) {
		j = j + i;
	}
}`)
	f := findFunc(mod, "f")
	require.NotNil(t, f)

	assert.Equal(t, 1, countOps(f, ir.RANGENEW))
	assert.Equal(t, 3, countOps(f, ir.CALL), "iterate(init) + next + iterate(advance)")
	assert.Equal(t, 1, countOps(f, ir.JUMPF))

	for i := 0; i < f.NInstructions; i++ {
		w := f.Code[i]
		switch opcodeOf(w) {
		case ir.RANGENEW:
			assert.Equal(t, uint32(1), w&1, "..< must encode the exclusive tag")
		case ir.JUMPF:
			assert.True(t, signBit(w), "for-in JUMPF tests bool falsity only")
		}
	}
}

// Scenario 3 of spec.md §8: property shadowing warns, and a subclass's
// $init starts with the 4-instruction super-$init preamble.
func TestCompileClassInitChaining(t *testing.T) {
	src := `
class A { var x = 1 }
class B : A { var x = 2 }
`
	fset := token.NewFileSet()
	ch, err := parser.ParseChunk(fset, 0, "test.kes", []byte(src))
	require.NoError(t, err)

	var warnings []string
	warn := resolver.WithWarningHandler(func(_ token.Position, msg string) {
		warnings = append(warnings, msg)
	})
	require.NoError(t, resolver.Resolve(fset, ch, warn))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "already defined in its superclass")

	mod, err := compiler.CompileChunk(fset, ch)
	require.NoError(t, err)

	a := findClass(mod, "A")
	b := findClass(mod, "B")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Same(t, a, b.Super)

	binit, ok := b.Lookup("$init")
	require.True(t, ok)
	bfn := binit.(*object.Function)
	require.GreaterOrEqual(t, bfn.NInstructions, 4)
	assert.Equal(t, ir.LOADK, opcodeOf(bfn.Code[0]))
	assert.Equal(t, ir.LOAD, opcodeOf(bfn.Code[1]))
	assert.Equal(t, ir.MOVE, opcodeOf(bfn.Code[2]))
	assert.Equal(t, ir.CALL, opcodeOf(bfn.Code[3]))
}

// Scenario 4 of spec.md §8: a captured local produces a direct upvalue in
// the inner function and a CLOSE at the outer function's exit.
func TestCompileUpvalueCapture(t *testing.T) {
	mod := compileSource(t, `
func outer() {
	var a = 1;
	func inner() {
		return a;
	}
	return inner;
}`)
	outer := findFunc(mod, "outer")
	inner := findFunc(mod, "inner")
	require.NotNil(t, outer)
	require.NotNil(t, inner)

	assert.Equal(t, 1, inner.NUpvalues)
	require.Len(t, inner.Upvalues, 1)
	assert.True(t, inner.Upvalues[0].IsDirect)
	assert.Equal(t, 1, inner.Upvalues[0].Index, "a occupies slot 1, after self")

	require.Equal(t, 1, countOps(outer, ir.CLOSE))
	for i := 0; i < outer.NInstructions; i++ {
		if opcodeOf(outer.Code[i]) == ir.CLOSE {
			assert.Equal(t, 1, fieldA(outer.Code[i]))
		}
	}
	assert.Equal(t, 1, countOps(inner, ir.LOADU))
}

// Scenario 5 of spec.md §8: break outside any loop is a semantic error and
// the pipeline never reaches codegen.
func TestCompileBreakOutsideLoopFails(t *testing.T) {
	fset := token.NewFileSet()
	ch, err := parser.ParseChunk(fset, 0, "test.kes", []byte("break;"))
	require.NoError(t, err)
	err = resolver.Resolve(fset, ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'break' statement not in loop or switch statement.")
}

func TestCompileIntegerWidening(t *testing.T) {
	mod := compileSource(t, "func f() { return 200000; }")
	f := findFunc(mod, "f")
	require.NotNil(t, f)

	assert.Zero(t, countOps(f, ir.LOADI))
	assert.Equal(t, 1, countOps(f, ir.LOADK))
	assert.Contains(t, f.Constants, object.Value(object.Int(200000)))
}

func TestCompileSmallIntStaysInline(t *testing.T) {
	mod := compileSource(t, "func f() { return 100000; }")
	f := findFunc(mod, "f")
	require.NotNil(t, f)

	// 100000 < 2^17-1, so it stays an inline LOADI operand
	assert.Equal(t, 1, countOps(f, ir.LOADI))
	assert.NotContains(t, f.Constants, object.Value(object.Int(100000)))
}

func TestCompileFloatAlwaysPooled(t *testing.T) {
	mod := compileSource(t, "func f() { return 1.5; }")
	f := findFunc(mod, "f")
	require.NotNil(t, f)

	assert.Zero(t, countOps(f, ir.LOADI))
	assert.Equal(t, 1, countOps(f, ir.LOADK))
	assert.Contains(t, f.Constants, object.Value(object.Float(1.5)))
}

func TestCompileGlobalStores(t *testing.T) {
	mod := compileSource(t, "var g = 42;")
	assert.Equal(t, compiler.ModuleInitName, mod.Name)
	assert.Equal(t, 1, countOps(mod, ir.STOREG))
	assert.Contains(t, mod.Constants, object.Value(object.String("g")))
}

// Invariant 6 of spec.md §8: every encoded jump resolves to a valid
// instruction index.
func TestCompileJumpTargetsInRange(t *testing.T) {
	mod := compileSource(t, `
func f(n) {
	var total = 0;
	while (n > 0) {
		if (n == 3) {
			total = total + 10;
		} else {
			total = total + 1;
		}
		switch (n) {
		case 1:
			break;
		default:
			total = total + 2;
		}
		n = n - 1;
	}
	return total;
}`)
	f := findFunc(mod, "f")
	require.NotNil(t, f)

	for i := 0; i < f.NInstructions; i++ {
		w := f.Code[i]
		switch opcodeOf(w) {
		case ir.JUMP:
			assert.LessOrEqual(t, int(w&0x3FFFFFF), f.NInstructions)
		case ir.JUMPF:
			assert.LessOrEqual(t, field17(w), f.NInstructions)
		}
	}
}

func TestCompileDefaultPropertyAccessors(t *testing.T) {
	mod := compileSource(t, "class C { var x = 1 }")
	c := findClass(mod, "C")
	require.NotNil(t, c)

	v, ok := c.Lookup("x")
	require.True(t, ok)
	prop, ok := v.(object.Property)
	require.True(t, ok)
	require.NotNil(t, prop.Getter)
	require.NotNil(t, prop.Setter)

	_, ok = c.Lookup("$init")
	assert.True(t, ok, "a class with field initializers synthesizes $init")
	_, ok = c.Lookup("init")
	assert.True(t, ok, "a class without a user init synthesizes one that calls $init")
}

func TestCompileComputedProperty(t *testing.T) {
	mod := compileSource(t, `class C { var x { get { return 1; } set(v) { } } }`)
	c := findClass(mod, "C")
	require.NotNil(t, c)

	v, ok := c.Lookup("x")
	require.True(t, ok)
	prop, ok := v.(object.Property)
	require.True(t, ok)
	assert.NotNil(t, prop.Getter)
	assert.NotNil(t, prop.Setter)
	assert.Zero(t, c.NIvar, "a computed property occupies no ivar slot")
}

func TestCompileLazyProperty(t *testing.T) {
	mod := compileSource(t, "class C { lazy var x = 1 }")
	c := findClass(mod, "C")
	require.NotNil(t, c)

	v, ok := c.Lookup("x")
	require.True(t, ok)
	prop, ok := v.(object.Property)
	require.True(t, ok)
	require.NotNil(t, prop.Getter)
	require.NotNil(t, prop.Setter)
	assert.Equal(t, 2, c.NIvar, "the value slot plus the hidden initialized flag")

	// the lazy field must not run at construction: no $init is synthesized
	_, ok = c.Lookup("$init")
	assert.False(t, ok)
}

func TestCompileModuleLowersToStaticClass(t *testing.T) {
	mod := compileSource(t, `
module M {
	var x = 7;
	func f() { return 1; }
}`)
	m := findClass(mod, "M")
	require.NotNil(t, m)
	assert.True(t, m.IsModule)
	assert.Zero(t, m.NIvar)

	v, ok := m.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, object.Value(object.Int(7)), v)
	_, ok = m.Lookup("f")
	assert.True(t, ok)

	assert.Equal(t, 1, countOps(mod, ir.STOREG), "the module binds into a global by name")
}

func TestCompileEnumMembers(t *testing.T) {
	mod := compileSource(t, "enum Color { Red, Green = 10, Blue }")
	e := findClass(mod, "Color")
	require.NotNil(t, e)
	assert.True(t, e.IsModule)

	red, _ := e.Lookup("Red")
	green, _ := e.Lookup("Green")
	blue, _ := e.Lookup("Blue")
	assert.Equal(t, object.Value(object.Int(0)), red)
	assert.Equal(t, object.Value(object.Int(10)), green)
	assert.Equal(t, object.Value(object.Int(11)), blue, "unassigned members continue from the last value")
}

func TestCompileSuperfixForwardSuperclass(t *testing.T) {
	mod := compileSource(t, `
class B : A { }
class A { }
`)
	a := findClass(mod, "A")
	b := findClass(mod, "B")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Same(t, a, b.Super, "a forward-declared superclass is re-linked after the walk")
}

func TestCompilePurityScore(t *testing.T) {
	mod := compileSource(t, "func pure() { return 1 + 2; }")
	f := findFunc(mod, "pure")
	require.NotNil(t, f)
	assert.Equal(t, 1.0, f.Purity)

	mod2 := compileSource(t, "var g = 1; func impure() { return g; }")
	f2 := findFunc(mod2, "impure")
	require.NotNil(t, f2)
	assert.Less(t, f2.Purity, 1.0, "a LOADG counts as impure")
}

func TestCompileMethodCallEmitsLoadAndCall(t *testing.T) {
	mod := compileSource(t, `
class C {
	func helper() { return 1; }
	func run() { return helper(); }
}`)
	run := findFunc(mod, "run")
	require.NotNil(t, run)

	// helper resolves as a same-class member without a slot: codegen loads
	// it by name from self, then calls it with self as the receiver.
	assert.GreaterOrEqual(t, countOps(run, ir.LOAD), 1)
	assert.Equal(t, 1, countOps(run, ir.CALL))
}

func TestCompileSuperMethodCallUsesLOADS(t *testing.T) {
	mod := compileSource(t, `
class A {
	func greet() { return 1; }
}
class B : A {
	func greet() { return super.greet(); }
}`)
	b := findClass(mod, "B")
	require.NotNil(t, b)
	greet := findClassFunc(b, "greet")
	require.NotNil(t, greet)
	assert.Equal(t, 1, countOps(greet, ir.LOADS))
	assert.Contains(t, greet.Constants, object.Value(object.String("A")))
}

func TestCompileFunctionDefaults(t *testing.T) {
	mod := compileSource(t, "func f(a, b = 3) { return a; }")
	f := findFunc(mod, "f")
	require.NotNil(t, f)
	assert.Equal(t, 2, f.NParams)
	require.Len(t, f.Defaults, 2)
	assert.Nil(t, f.Defaults[0])
	assert.Equal(t, object.Value(object.Int(3)), f.Defaults[1])
	assert.Equal(t, []string{"a", "b"}, f.ParamNames)
}

func TestCompileTrailingZeroWordTerminator(t *testing.T) {
	mod := compileSource(t, "func f() { }")
	f := findFunc(mod, "f")
	require.NotNil(t, f)
	require.Len(t, f.Code, f.NInstructions+1)
	assert.Zero(t, f.Code[f.NInstructions], "the trailing word decodes to RET0")
}

func TestCompileFilesShareNothing(t *testing.T) {
	fset := token.NewFileSet()
	ch1, err := parser.ParseChunk(fset, 0, "a.kes", []byte("var x = 1;"))
	require.NoError(t, err)
	ch2, err := parser.ParseChunk(fset, 0, "b.kes", []byte("var y = 2;"))
	require.NoError(t, err)
	require.NoError(t, resolver.ResolveChunks(fset, []*ast.Chunk{ch1, ch2}))

	fns, err := compiler.CompileFiles(fset, []*ast.Chunk{ch1, ch2})
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Contains(t, fns[0].Constants, object.Value(object.String("x")))
	assert.Contains(t, fns[1].Constants, object.Value(object.String("y")))
}
