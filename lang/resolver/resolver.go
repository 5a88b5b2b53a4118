package resolver

import (
	"fmt"
	gotoken "go/token"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/scanner"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// toGoPosition adapts our own UTF-8-aware token.Position to the
// go/token.Position shape go/scanner.ErrorList requires.
func toGoPosition(p token.Position) gotoken.Position {
	return gotoken.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// MaxLocals and MaxUpvalues are the fatal-condition limits of spec.md §7.
const (
	MaxLocals   = 200
	MaxUpvalues = 200
)

// declFrame is one entry of pass 2's declaration stack (spec.md §4.5): the
// global list-stmt at the bottom, then functions and classes/modules as
// they are entered.
type declFrame struct {
	scope *Scope
	fn    *ast.FuncDecl
	cls   *ast.ClassDecl
	mod   *ast.ModuleDecl
}

// stmtFrame is one entry of pass 2's statement stack, tracking whether
// break/continue are legal.
type stmtFrame struct {
	kind       token.Token // WHILE, REPEAT, FOR, or SWITCH
	allowBreak bool
	allowCont  bool
}

// resolver carries all mutable state across both passes for one chunk.
type resolver struct {
	fset   *token.FileSet
	errs   scanner.ErrorList
	onWarn func(pos token.Position, msg string)

	lastErrFile string
	lastErrLine int

	declStack []declFrame
	stmtStack []stmtFrame
}

// Option configures a Resolve call.
type Option func(*resolver)

// WithWarningHandler installs fn as the sink for non-fatal diagnostics
// (spec.md §7's Warning kind, e.g. a property shadowing a superclass
// member). Without it, warnings are silently dropped; they never cause
// Resolve to return an error.
func WithWarningHandler(fn func(pos token.Position, msg string)) Option {
	return func(r *resolver) { r.onWarn = fn }
}

// coreIdentifiers is the list of pre-declared extern identifier names the
// core library exports (spec.md §1: the compiler consumes only this list
// from it). They are seeded into the global scope as extern bindings so
// that references to them resolve, and so that subclassing one can be
// rejected (spec.md §4.5).
var coreIdentifiers = []string{
	"Object", "Class", "Function", "Closure", "Fiber", "Instance",
	"List", "Map", "Range", "String", "UpValue",
	"Int", "Float", "Bool", "Null", "System", "Math",
}

// Resolve runs pass 1 then pass 2 over chunk's AST, annotating nodes in
// place with locations, upvalue lists, and slot counts. The returned error,
// if non-nil, is a scanner.ErrorList.
func Resolve(fset *token.FileSet, chunk *ast.Chunk, opts ...Option) error {
	r := &resolver{fset: fset}
	for _, o := range opts {
		o(r)
	}

	global := newScope(ScopeGlobal, nil)
	// top-level blocks and for-in loops still need local slots in the
	// module-init function; slot 0 is the module's implicit self
	global.fn = &funcCounters{nlocals: 1}
	for _, name := range coreIdentifiers {
		if b, ok := global.insert(name, nil); ok {
			b.builtin = true
		}
	}
	r.hoistDecls(chunk.List.Stmts, global)
	chunk.List.Scope = global

	r.declStack = append(r.declStack, declFrame{scope: global})
	r.walkStmts(chunk.List.Stmts)
	r.declStack = r.declStack[:0]
	chunk.List.NLocals = global.fn.nlocals

	r.errs.Sort()
	return r.errs.Err()
}

// ResolveChunks resolves each chunk independently, sharing fset for error
// position reporting but not declarations (each compiled file is its own
// compilation unit, per spec.md §1).
func ResolveChunks(fset *token.FileSet, chunks []*ast.Chunk, opts ...Option) error {
	var errs scanner.ErrorList
	for _, ch := range chunks {
		if err := Resolve(fset, ch, opts...); err != nil {
			if el, ok := err.(scanner.ErrorList); ok {
				errs = append(errs, el...)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	errs.Sort()
	return errs.Err()
}

func (r *resolver) curDecl() *declFrame { return &r.declStack[len(r.declStack)-1] }

func (r *resolver) curFunc() *declFrame {
	for i := len(r.declStack) - 1; i >= 0; i-- {
		if r.declStack[i].fn != nil {
			return &r.declStack[i]
		}
	}
	return nil
}

func (r *resolver) curClass() *declFrame {
	for i := len(r.declStack) - 1; i >= 0; i-- {
		if r.declStack[i].cls != nil || r.declStack[i].mod != nil {
			return &r.declStack[i]
		}
	}
	return nil
}

func (r *resolver) error(pos token.Pos, msg string) {
	lp := r.fset.Position(pos)
	if lp.Filename == r.lastErrFile && lp.Line == r.lastErrLine {
		return
	}
	r.lastErrFile, r.lastErrLine = lp.Filename, lp.Line
	r.errs.Add(toGoPosition(lp), msg)
}

func (r *resolver) errorf(pos token.Pos, format string, args ...any) {
	r.error(pos, fmt.Sprintf(format, args...))
}

func (r *resolver) warnf(pos token.Pos, format string, args ...any) {
	if r.onWarn == nil {
		return
	}
	r.onWarn(r.fset.Position(pos), fmt.Sprintf(format, args...))
}
