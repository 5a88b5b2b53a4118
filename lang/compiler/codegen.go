// Package compiler turns a resolved AST (lang/ast, annotated by lang/resolver)
// into the runtime objects of lang/object, via the register-based IR of
// lang/ir, a peephole optimizer, and a bit-packing encoder. Grounded on
// gravity_codegen.c for the emission patterns (spec.md §4.7) and on
// mna-nenuphar/lang/compiler/compiler.go for the Go shape of a compiler
// driver (context stack of in-progress runtime objects, one error list for
// the whole compilation).
package compiler

import (
	"go/scanner"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// ModuleInitName is the synthetic top-level function every compiled chunk is
// wrapped in (spec.md §4.7's "Module init closure").
const ModuleInitName = "$moduleinit"

// superfixEntry records a class whose superclass identifier refers to a
// class declared later in the same chunk; codegen re-applies the link once
// the whole file has been walked (spec.md §4.7's `superfix` list).
type superfixEntry struct {
	superName string
	pos       token.Pos
	class     *object.Class
	meta      *object.Class

	// initFn, when non-nil, is the class's synthesized `$init`, left
	// unfinalized because its super-chain call cannot be patched in until
	// applySuperfix links the forward-declared superclass.
	initFn *object.Function
}

// codegen carries all mutable state for one compilation (one or more
// chunks sharing a constant global namespace via STOREG/LOADG by name).
type codegen struct {
	fset *token.FileSet
	errs scanner.ErrorList

	lastErrFile string
	lastErrLine int

	// funcs is the context stack of currently-being-built functions
	// (spec.md §4.7): the module init function at the bottom, then
	// classes' method bodies and nested functions as they are entered.
	// IR is always emitted into funcs[len(funcs)-1].
	funcs []*object.Function

	// classes is the stack of classes/modules currently being visited, used
	// to resolve `self`'s runtime class and to bind members as they are
	// declared.
	classes []*object.Class

	classesByName map[string]*object.Class
	superfix      []superfixEntry
}

func newCodegen(fset *token.FileSet) *codegen {
	return &codegen{fset: fset, classesByName: make(map[string]*object.Class)}
}

func (c *codegen) curFunc() *object.Function { return c.funcs[len(c.funcs)-1] }
func (c *codegen) buf() *ir.Buffer           { return c.curFunc().IR }

func (c *codegen) pushFunc(fn *object.Function) { c.funcs = append(c.funcs, fn) }
func (c *codegen) popFunc()                     { c.funcs = c.funcs[:len(c.funcs)-1] }

func (c *codegen) curClass() *object.Class {
	if len(c.classes) == 0 {
		return nil
	}
	return c.classes[len(c.classes)-1]
}

// CompileFiles compiles each of the given already-parsed and resolved
// chunks into its own module-init *object.Function, sharing one FileSet for
// error reporting (spec.md §1's "each compiled file is its own compilation
// unit"). The returned error, if non-nil, is a scanner.ErrorList.
func CompileFiles(fset *token.FileSet, chunks []*ast.Chunk) ([]*object.Function, error) {
	c := newCodegen(fset)
	fns := make([]*object.Function, 0, len(chunks))
	for _, chunk := range chunks {
		fns = append(fns, c.compileChunk(chunk))
	}
	if len(c.errs) == 0 {
		return fns, nil
	}
	c.errs.Sort()
	return fns, c.errs.Err()
}

// CompileChunk compiles a single already-resolved chunk.
func CompileChunk(fset *token.FileSet, chunk *ast.Chunk) (*object.Function, error) {
	c := newCodegen(fset)
	fn := c.compileChunk(chunk)
	if len(c.errs) == 0 {
		return fn, nil
	}
	c.errs.Sort()
	return fn, c.errs.Err()
}

// compileChunk lowers one chunk's top-level statement list to the
// `$moduleinit` closure (spec.md §4.7).
func (c *codegen) compileChunk(chunk *ast.Chunk) *object.Function {
	nlocals := chunk.List.NLocals // includes the module self register 0
	if nlocals < 1 {
		nlocals = 1
	}
	fn := object.NewFunction(ModuleInitName, 0, nlocals)
	c.pushFunc(fn)

	for _, stmt := range chunk.List.Stmts {
		c.emitStmt(stmt)
		c.buf().RegisterTempsClear()
	}
	c.finishFunction(fn, 0)
	c.popFunc()

	c.applySuperfix()
	c.finalize(fn)
	for _, cls := range c.classesByName {
		finishClass(cls)
	}
	return fn
}

// finishFunction appends the implicit `RET0` every function ends with if
// its body fell through without an explicit return (spec.md's RET0/0
// sentinel word the encoder also appends as the trailing terminator).
func (c *codegen) finishFunction(fn *object.Function, line int) {
	fn.IR.Add(ir.RET0, 0, 0, 0, line)
}

// applySuperfix re-links every class whose superclass was declared later in
// the chunk (spec.md §4.7's `superfix`), then patches and finalizes any
// `$init` left waiting on the link.
func (c *codegen) applySuperfix() {
	for i := range c.superfix {
		sf := &c.superfix[i]
		super, ok := c.classesByName[sf.superName]
		if ok {
			sf.class.Super = super
			sf.meta.Super = super.Meta
		} else {
			c.errAt(sf.pos, "undefined superclass %q", sf.superName)
		}

		if sf.initFn == nil {
			continue
		}
		if ok {
			if superInit, found := super.Lookup("$init"); found {
				idx := sf.initFn.AddConstant(superInit.(*object.Function))
				sf.initFn.IR.PatchInit(idx, 0)
			}
		}
		c.finalize(sf.initFn)
	}
}

// pendingSuperfix reports the index of class's superfix entry, or -1 when
// its superclass link is already resolved.
func (c *codegen) pendingSuperfix(class *object.Class) int {
	for i := range c.superfix {
		if c.superfix[i].class == class {
			return i
		}
	}
	return -1
}

// finishClass runs the post-walk class fixups that need every member
// already bound (currently a no-op placeholder for future whole-class
// passes; process_constructor itself runs eagerly as each class is closed,
// see codegen_decl.go).
func finishClass(*object.Class) {}
