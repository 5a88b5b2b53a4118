package compiler

import (
	"fmt"
	gotoken "go/token"

	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// toGoPosition adapts our own UTF-8-aware token.Position to the
// go/token.Position shape go/scanner.ErrorList requires.
func toGoPosition(p token.Position) gotoken.Position {
	return gotoken.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// errAt records one compile error, deduping consecutive errors on the same
// line the way the parser/resolver do (spec.md §7's "one error per line"
// suppression, carried over to codegen for the same reason: one bad
// expression tends to cascade into many bogus downstream ones).
func (c *codegen) errAt(pos token.Pos, format string, args ...any) {
	lp := c.fset.Position(pos)
	if lp.Filename == c.lastErrFile && lp.Line == c.lastErrLine {
		return
	}
	c.lastErrFile, c.lastErrLine = lp.Filename, lp.Line
	c.errs.Add(toGoPosition(lp), fmt.Sprintf(format, args...))
}

// finalize runs the optimizer and encoder over a finished function, first
// surfacing its fatal conditions (register exhaustion, constant-pool
// overflow — spec.md §7): the function is aborted with a single error, and
// codegen keeps walking the rest of the compilation to surface independent
// errors, but the overall compile fails.
func (c *codegen) finalize(fn *object.Function) {
	switch {
	case fn.IR.Err:
		c.errs.Add(gotoken.Position{}, fmt.Sprintf("%s in function %q", fn.IR.ErrMsg, fn.Name))
	case fn.ConstPoolOverflow():
		c.errs.Add(gotoken.Position{}, fmt.Sprintf("constant pool overflow in function %q", fn.Name))
	}
	optimize(fn)
	encode(fn)
}
