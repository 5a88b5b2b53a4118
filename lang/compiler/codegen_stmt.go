package compiler

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// emitStmt lowers one resolved statement into the current function's IR
// (spec.md §4.7). Every branch must leave the emit-time register stack
// exactly as deep as it found it: RegisterTempsClear (called by every loop
// that walks a statement list) only clears the busy bitmap, it never
// touches the register stack itself, so an un-popped push here would
// silently desynchronize a later, unrelated Pop().
func (c *codegen) emitStmt(s ast.Stmt) {
	start, _ := s.Span()
	line := c.lineOf(start)

	switch n := s.(type) {
	case *ast.ListStmt:
		for _, st := range n.Stmts {
			c.emitStmt(st)
			c.buf().RegisterTempsClear()
		}

	case *ast.CompoundStmt:
		c.emitCompoundBody(n, line)

	case *ast.ExprStmt:
		c.emitExpr(n.Expr)
		c.buf().Pop()

	case *ast.EmptyStmt:
		// nothing to emit

	case *ast.ImportStmt:
		// `import a.b.c;` carries no codegen obligation: this compiler has
		// no multi-file linkage beyond the shared flat global namespace
		// `#include` already gives it (spec.md §4.2), so import is parsed
		// for forward compatibility and otherwise inert.

	case *ast.JumpStmt:
		c.emitJump(n, line)

	case *ast.IfStmt:
		c.emitIf(n, line)

	case *ast.SwitchStmt:
		c.emitSwitch(n, line)

	case *ast.WhileStmt:
		c.emitWhile(n, line)

	case *ast.RepeatStmt:
		c.emitRepeat(n, line)

	case *ast.ForInStmt:
		c.emitForIn(n, line)

	case *ast.VarDeclStmt:
		c.emitVarDeclStmt(n, line)

	case *ast.FuncDecl:
		c.emitFuncDeclGlobal(n, line)

	case *ast.ClassDecl:
		c.emitClassDeclGlobal(n, line)

	case *ast.ModuleDecl:
		c.emitModuleDeclGlobal(n, line)

	case *ast.EnumDecl:
		c.emitEnumDeclGlobal(n, line)

	default:
		c.errAt(start, "internal: unhandled statement %T", s)
	}
}

// emitCompoundBody emits a brace-delimited block's statements followed by
// the `CLOSE` the resolver asked for if any local declared directly in this
// block was captured as an upvalue (spec.md §4.5's scope-close tracking).
func (c *codegen) emitCompoundBody(cs *ast.CompoundStmt, line int) {
	for _, s := range cs.Stmts {
		c.emitStmt(s)
		c.buf().RegisterTempsClear()
	}
	if cs.CloseSlot >= 0 {
		c.buf().Add(ir.CLOSE, cs.CloseSlot, 0, 0, line)
	}
}

func (c *codegen) emitJump(n *ast.JumpStmt, line int) {
	buf := c.buf()
	switch n.Kind {
	case token.BREAK:
		if lbl, ok := buf.BreakLabel(); ok {
			buf.Add(ir.JUMP, lbl, 0, 0, line)
		} else {
			c.errAt(n.Pos, "internal: break outside of a loop or switch")
		}

	case token.CONTINUE:
		if lbl, ok := buf.ContinueLabel(); ok {
			buf.Add(ir.JUMP, lbl, 0, 0, line)
		} else {
			c.errAt(n.Pos, "internal: continue outside of a loop")
		}

	case token.RETURN:
		if n.Expr != nil {
			src := c.emitExpr(n.Expr)
			buf.Add(ir.RET, src, 0, 0, line)
			buf.Pop()
		} else {
			buf.Add(ir.RET0, 0, 0, 0, line)
		}
	}
}

// emitIf emits the classic then-jump/false-label/else-label layout of
// spec.md §4.7: `JUMPF` at the condition, a `JUMP` past the else branch at
// the end of the then branch (only when there is an else to skip), labels
// marked at the branch boundaries.
func (c *codegen) emitIf(n *ast.IfStmt, line int) {
	buf := c.buf()
	cond := c.emitExpr(n.Cond)
	buf.Pop()

	elseLabel := buf.NewLabel()
	buf.Add(ir.JUMPF, cond, elseLabel, 0, line)
	c.emitStmt(n.Then)

	if n.Else != nil {
		endLabel := buf.NewLabel()
		buf.Add(ir.JUMP, endLabel, 0, 0, line)
		buf.MarkLabel(elseLabel, line)
		c.emitStmt(n.Else)
		buf.MarkLabel(endLabel, line)
		return
	}
	buf.MarkLabel(elseLabel, line)
}

// emitSwitch lowers `switch (cond) { case v1: ...; case v2: ...; default:
// ...; }` to a chain of `NEQ`+`JUMPF` tests (spec.md §4.7): a case whose
// value equals the scrutinee has its `NEQ` come out false, so `JUMPF`
// jumps straight to that case's body label; a `default` clause (if any)
// is the fallthrough target once every case comparison has failed.
func (c *codegen) emitSwitch(n *ast.SwitchStmt, line int) {
	buf := c.buf()
	scrut := c.emitExpr(n.Cond)

	labels := make([]int, len(n.Clauses))
	defaultIdx := -1
	for i, cl := range n.Clauses {
		labels[i] = buf.NewLabel()
		if cl.Expr == nil {
			defaultIdx = i
			continue
		}
		cline := c.lineOf(mustStart(cl.Expr))
		val := c.emitExpr(cl.Expr)
		neq := buf.PushTemp()
		buf.Add(ir.NEQ, neq, scrut, val, cline)
		buf.Add(ir.JUMPF, neq, labels[i], 0, cline)
		buf.Pop() // neq
		buf.Pop() // val
	}

	endLabel := buf.NewLabel()
	if defaultIdx >= 0 {
		buf.Add(ir.JUMP, labels[defaultIdx], 0, 0, line)
	} else {
		buf.Add(ir.JUMP, endLabel, 0, 0, line)
	}

	buf.PushSwitchLabel(endLabel)
	for i, cl := range n.Clauses {
		buf.MarkLabel(labels[i], line)
		for _, st := range cl.Body {
			c.emitStmt(st)
			buf.RegisterTempsClear()
		}
	}
	buf.PopLoopLabels()

	buf.MarkLabel(endLabel, line)
	buf.Pop() // scrut
}

func mustStart(e ast.Expr) token.Pos {
	start, _ := e.Span()
	return start
}

// emitWhile implements spec.md §4.7's `while` layout: mark-true; mark-check;
// cond; `JUMPF` false; body; `JUMP` true; mark-false. `break` targets the
// false label, `continue` the check label (here the same position as true,
// since a plain `while` re-tests its condition on every iteration with no
// separate advance step).
func (c *codegen) emitWhile(n *ast.WhileStmt, line int) {
	buf := c.buf()
	trueL := buf.NewLabel()
	checkL := buf.NewLabel()
	falseL := buf.NewLabel()

	buf.MarkLabel(trueL, line)
	buf.MarkLabel(checkL, line)
	cond := c.emitExpr(n.Cond)
	buf.Pop()
	buf.Add(ir.JUMPF, cond, falseL, 0, line)

	buf.PushLoopLabels(trueL, falseL, checkL)
	c.emitCompoundBody(n.Body, line)
	buf.PopLoopLabels()

	buf.Add(ir.JUMP, trueL, 0, 0, line)
	buf.MarkLabel(falseL, line)
}

// emitRepeat implements spec.md §4.7's `repeat` layout: mark-true;
// mark-check; body; cond; `JUMPF` false; `JUMP` true; mark-false. As in
// `while`, the check label sits at the top next to true; here that means
// continue restarts the body directly, since the condition is only ever
// tested at the bottom.
func (c *codegen) emitRepeat(n *ast.RepeatStmt, line int) {
	buf := c.buf()
	trueL := buf.NewLabel()
	checkL := buf.NewLabel()
	falseL := buf.NewLabel()

	buf.MarkLabel(trueL, line)
	buf.MarkLabel(checkL, line)

	buf.PushLoopLabels(trueL, falseL, checkL)
	c.emitCompoundBody(n.Body, line)
	buf.PopLoopLabels()

	cond := c.emitExpr(n.Cond)
	buf.Pop()
	buf.Add(ir.JUMPF, cond, falseL, 0, line)
	buf.Add(ir.JUMP, trueL, 0, 0, line)
	buf.MarkLabel(falseL, line)
}

// emitForIn lowers `for (x in expr) body` to the equivalent of (spec.md
// §4.7):
//
//	var $e = expr;
//	var $v = $e.iterate(null);
//	while ($v) { x = $e.next($v); body; $v = $e.iterate($v); }
//
// `$e`, `$v`, and the looked-up `iterate`/`next` closures are reserved as
// protected temps (register_temp_protect) so they survive across statement
// boundaries for the life of the loop, and the two method lookups happen
// once before the loop header rather than once per iteration. `continue`
// targets the `$v = $e.iterate($v)` advance step, not the `JUMPF` test
// directly, so that continuing still advances the cursor.
func (c *codegen) emitForIn(n *ast.ForInStmt, line int) {
	buf := c.buf()

	eReg := c.emitExpr(n.Expr)
	buf.RegisterTempProtect(eReg)
	buf.Pop()

	iterateFn := c.loadNamedMember(eReg, "iterate", line)
	buf.RegisterTempProtect(iterateFn)
	buf.Pop()

	nextFn := c.loadNamedMember(eReg, "next", line)
	buf.RegisterTempProtect(nextFn)
	buf.Pop()

	vReg := buf.PushTemp()
	buf.RegisterTempProtect(vReg)
	buf.Pop()

	nullReg := c.loadReserved(object.ReservedNull, line)
	c.emitCallInto(vReg, iterateFn, eReg, true, []int{nullReg}, line)
	buf.Pop() // nullReg

	trueL := buf.NewLabel()
	checkL := buf.NewLabel()
	falseL := buf.NewLabel()

	buf.MarkLabel(trueL, line)
	buf.Add(ir.JUMPF, vReg, falseL, 1, line) // P3=1: test for bool falsity only

	buf.PushLoopLabels(trueL, falseL, checkL)

	destReg := buf.PushTemp()
	c.emitCallInto(destReg, nextFn, eReg, true, []int{vReg}, line)
	switch {
	case n.Decl != nil:
		buf.Add(ir.MOVE, n.Decl.Slot, destReg, 0, line)
	case n.Ident != nil:
		c.emitIdentStore(n.Ident, destReg, line)
	}
	buf.Pop() // destReg

	c.emitCompoundBody(n.Body, line)

	buf.PopLoopLabels()

	buf.MarkLabel(checkL, line)
	c.emitCallInto(vReg, iterateFn, eReg, true, []int{vReg}, line)
	buf.Add(ir.JUMP, trueL, 0, 0, line)

	buf.MarkLabel(falseL, line)
	if n.CloseSlot >= 0 {
		buf.Add(ir.CLOSE, n.CloseSlot, 0, 0, line)
	}

	buf.RegisterTempUnprotect(eReg)
	buf.RegisterTempUnprotect(iterateFn)
	buf.RegisterTempUnprotect(nextFn)
	buf.RegisterTempUnprotect(vReg)
}

// loadNamedMember emits `LOAD dst, obj, cpool(name)` into a fresh temp and
// returns it, the same access pattern emitPostfixUpTo uses for `.name`.
func (c *codegen) loadNamedMember(obj int, name string, line int) int {
	idx := c.stringConstant(name)
	r := c.buf().AddConstant(idx, line)
	c.buf().Add(ir.LOAD, r, obj, r, line)
	return r
}

// emitCallInto emits a call whose result lands in an explicit dst register
// (the protected `$v` or a loop variable's slot) rather than a fresh temp:
// used by the for-in lowering, which calls the same looked-up
// `iterate`/`next` closures more than once. The closure and its arguments
// are MOVEd into a fresh contiguous temp window, the same call convention
// emitCallArgs uses.
func (c *codegen) emitCallInto(dst, callee, selfReg int, haveSelf bool, argRegs []int, line int) {
	buf := c.buf()
	window := buf.PushTemp()
	buf.Add(ir.MOVE, window, callee, 0, line)
	nargs := 1
	r := buf.PushTemp()
	if haveSelf {
		buf.Add(ir.MOVE, r, selfReg, 0, line)
	} else {
		buf.Add(ir.LOADK, r, object.ReservedNull, 0, line)
	}
	for _, a := range argRegs {
		r := buf.PushTemp()
		buf.Add(ir.MOVE, r, a, 0, line)
		nargs++
	}
	buf.Add(ir.CALL, dst, window, nargs, line)
	for i := 0; i < nargs+1; i++ {
		buf.Pop()
	}
}

// emitVarDeclStmt emits one `var`/`const` statement found at function-local
// or global scope (a class/module-body VarDeclStmt is instead handled by
// emitClassVar, since its members bind into the class's table rather than a
// register or a global).
func (c *codegen) emitVarDeclStmt(n *ast.VarDeclStmt, line int) {
	for _, vd := range n.Vars {
		c.emitLocalOrGlobalVar(vd, line)
	}
}

func (c *codegen) emitLocalOrGlobalVar(vd *ast.VarDecl, line int) {
	if vd.Computed {
		c.errAt(vd.Name.Pos, "computed properties are only allowed inside a class or module body")
		return
	}

	if vd.Slot == ast.NoSlot {
		// Global scope: spec.md §4.7's module-init closure stores every
		// top-level declaration into a global by name.
		var src int
		if vd.Init != nil {
			src = c.emitExpr(vd.Init)
		} else {
			src = c.loadReserved(object.ReservedNull, line)
		}
		c.storeGlobal(vd.Name.Name, src, line)
		c.buf().Pop()
		return
	}

	// Function-local scope: vd.Slot is a real local register (spec.md
	// §4.5's resolver assigns it via setLocalSlot for non-prebound scopes).
	var src int
	if vd.Init != nil {
		src = c.emitExpr(vd.Init)
	} else {
		src = c.loadReserved(object.ReservedNull, line)
	}
	c.buf().Add(ir.MOVE, vd.Slot, src, 0, line)
	// checkpoint for struct value-copy semantics (spec.md §4.6's add_check)
	c.buf().AddCheck(line)
	c.buf().Pop()
}

// emitEnumDeclGlobal compiles an enum declared at global scope and stores
// the resulting module-shaped Class into a global by name.
func (c *codegen) emitEnumDeclGlobal(ed *ast.EnumDecl, line int) {
	enum := c.emitEnumDecl(ed)
	idx := c.curFunc().AddConstant(enum)
	dst := c.buf().AddConstant(idx, line)
	c.storeGlobal(ed.Name.Name, dst, line)
	c.buf().Pop()
}
