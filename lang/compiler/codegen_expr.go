package compiler

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// lineOf converts a token.Pos to the 1-based source line errAt/Add expect.
func (c *codegen) lineOf(pos token.Pos) int {
	return c.fset.Position(pos).Line
}

// stringConstant pools s as an object.String in the current function and
// returns its index (used both for string literals and for the name keys
// LOAD/STORE/LOADG/STOREG address by).
func (c *codegen) stringConstant(s string) int {
	return c.curFunc().AddConstant(object.String(s))
}

// emitExpr lowers e into the current function's IR, leaving the result in a
// register on top of the register stack and returning that register number
// (spec.md §4.7). The caller owns popping it once consumed.
func (c *codegen) emitExpr(e ast.Expr) int {
	start, _ := e.Span()
	line := c.lineOf(start)
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return c.emitLiteral(n, line)
	case *ast.KeywordExpr:
		return c.emitKeyword(n, line)
	case *ast.IdentExpr:
		return c.emitIdentLoad(n, line)
	case *ast.FileExpr:
		return c.emitFileRef(n, line)
	case *ast.BinaryExpr:
		return c.emitBinary(n, line)
	case *ast.AssignExpr:
		return c.emitAssign(n, line)
	case *ast.UnaryExpr:
		return c.emitUnary(n, line)
	case *ast.TernaryExpr:
		return c.emitTernary(n, line)
	case *ast.ListExpr:
		return c.emitListExpr(n, line)
	case *ast.PostfixExpr:
		return c.emitPostfix(n, line)
	case *ast.InlineDeclExpr:
		return c.emitInlineDecl(n, line)
	}
	c.errAt(start, "internal: unhandled expression %T", e)
	return c.buf().AddInt(0, line)
}

func (c *codegen) emitLiteral(n *ast.LiteralExpr, line int) int {
	switch n.Kind {
	case token.INT:
		return c.buf().AddInt(n.Int, line)
	case token.FLOAT:
		return c.buf().AddDouble(n.Float, line)
	case token.STRING:
		if n.IsInterpolated() {
			return c.emitInterpolatedString(n, line)
		}
		idx := c.stringConstant(n.Str)
		return c.buf().AddConstant(idx, line)
	}
	c.errAt(n.Pos, "internal: unhandled literal kind %v", n.Kind)
	return c.buf().AddInt(0, line)
}

// emitInterpolatedString lowers `"a ${b} c"` to building a list of its parts
// and calling `.join()` on it (spec.md §4.7), since the VM has no dedicated
// string-concatenation opcode.
func (c *codegen) emitInterpolatedString(n *ast.LiteralExpr, line int) int {
	c.buf().PushContext()
	list := c.emitListLiteral(n.Parts, line)
	c.buf().PopContextProtect(true)
	keyIdx := c.stringConstant("join")
	key := c.buf().AddConstant(keyIdx, line)
	c.buf().Add(ir.LOAD, key, list, key, line)
	callee := c.buf().PopContextProtect(true)
	res := c.emitCallArgs(callee, list, true, nil, line)
	c.buf().Push(res)
	c.buf().RegisterProtectOutsideContext(res)
	c.buf().PopContext()
	return res
}

func (c *codegen) emitListLiteral(parts []ast.Expr, line int) int {
	dst := c.buf().PushTemp()
	c.buf().Add(ir.LISTNEW, dst, len(parts), 0, line)
	for i, p := range parts {
		v := c.emitExpr(p)
		c.buf().Add(ir.SETLIST, dst, i, v, line)
		c.buf().Pop()
	}
	return dst
}

func (c *codegen) emitListExpr(n *ast.ListExpr, line int) int {
	if !n.IsMap {
		return c.emitListLiteral(n.Values, line)
	}
	dst := c.buf().PushTemp()
	c.buf().Add(ir.MAPNEW, dst, len(n.Values), 0, line)
	for i, v := range n.Values {
		var keyReg int
		if n.Keys[i] != nil {
			keyReg = c.emitExpr(n.Keys[i])
		} else {
			keyReg = c.buf().AddInt(int64(i), line)
		}
		val := c.emitExpr(v)
		c.buf().Add(ir.SETLIST, dst, keyReg, val, line)
		c.buf().Pop() // val
		c.buf().Pop() // keyReg
	}
	return dst
}

func (c *codegen) loadReserved(idx int, line int) int {
	return c.buf().AddConstant(idx, line)
}

func (c *codegen) emitKeyword(n *ast.KeywordExpr, line int) int {
	switch n.Kind {
	case token.NULLKW:
		return c.loadReserved(object.ReservedNull, line)
	case token.TRUEKW:
		return c.loadReserved(object.ReservedTrue, line)
	case token.FALSEKW:
		return c.loadReserved(object.ReservedFalse, line)
	case token.UNDEFINED:
		return c.loadReserved(object.ReservedUndefined, line)
	case token.FUNCKW:
		return c.loadReserved(object.ReservedFunc, line)
	case token.ARGSKW:
		return c.loadReserved(object.ReservedArguments, line)
	case token.SUPER:
		c.errAt(n.Pos, "'super' must be followed by a method access")
		return c.buf().AddInt(0, line)
	}
	c.errAt(n.Pos, "internal: unhandled keyword %v", n.Kind)
	return c.buf().AddInt(0, line)
}

// superNameOf returns the name of the innermost enclosing class's
// superclass, or "" if there is none to chain through.
func superNameOf(class *object.Class) string {
	if class == nil {
		return ""
	}
	return class.SuperName
}

// emitFileRef lowers `file.a.b.c` to a global lookup of its last name
// component: this compiler has no multi-file linkage, so every global
// already shares one flat STOREG/LOADG namespace and the path-like prefix
// carries no further meaning.
func (c *codegen) emitFileRef(n *ast.FileExpr, line int) int {
	name := n.Names[len(n.Names)-1]
	idx := c.stringConstant(name)
	dst := c.buf().PushTemp()
	c.buf().Add(ir.LOADG, dst, idx, 0, line)
	return dst
}

func (c *codegen) emitFileRefStore(n *ast.FileExpr, src, line int) {
	name := n.Names[len(n.Names)-1]
	idx := c.stringConstant(name)
	c.buf().Add(ir.STOREG, src, idx, 0, line)
}

// emitOuterInstance walks nup hops of the hidden `outer` ivar (always slot 0
// in an inner class, spec.md's invariant) starting from self, leaving the
// outer instance in a fresh temp on top of the register stack.
func (c *codegen) emitOuterInstance(nup int, line int) int {
	hop := c.buf().PushTemp()
	cur := 0
	for i := 0; i < nup; i++ {
		c.buf().Add(ir.LOAD, hop, cur, 0+ir.MaxRegisters, line)
		cur = hop
	}
	return hop
}

// loadIvarChain walks loc.Nup `outer` hops starting from self, then loads
// either a real ivar slot or a named class member. The hop register doubles
// as the destination (the VM reads operands before writing), so exactly one
// value is left on the register stack.
func (c *codegen) loadIvarChain(loc ast.Location, name string, line int) int {
	if loc.Nup == 0 {
		if loc.Slot != ast.NoSlot {
			dst := c.buf().PushTemp()
			c.buf().Add(ir.LOAD, dst, 0, loc.Slot+ir.MaxRegisters, line)
			return dst
		}
		idx := c.stringConstant(name)
		r := c.buf().AddConstant(idx, line)
		c.buf().Add(ir.LOAD, r, 0, r, line)
		return r
	}

	hop := c.emitOuterInstance(loc.Nup, line)
	if loc.Slot != ast.NoSlot {
		c.buf().Add(ir.LOAD, hop, hop, loc.Slot+ir.MaxRegisters, line)
		return hop
	}
	idx := c.stringConstant(name)
	key := c.buf().AddConstant(idx, line)
	c.buf().Add(ir.LOAD, hop, hop, key, line)
	c.buf().Pop() // key
	return hop
}

func (c *codegen) storeIvarChain(loc ast.Location, name string, src int, line int) {
	if loc.Nup == 0 {
		if loc.Slot != ast.NoSlot {
			c.buf().Add(ir.STORE, src, 0, loc.Slot+ir.MaxRegisters, line)
			return
		}
		idx := c.stringConstant(name)
		r := c.buf().AddConstant(idx, line)
		c.buf().Add(ir.STORE, src, 0, r, line)
		c.buf().Pop()
		return
	}

	hop := c.emitOuterInstance(loc.Nup, line)
	if loc.Slot != ast.NoSlot {
		c.buf().Add(ir.STORE, src, hop, loc.Slot+ir.MaxRegisters, line)
		c.buf().Pop() // hop
		return
	}
	idx := c.stringConstant(name)
	key := c.buf().AddConstant(idx, line)
	c.buf().Add(ir.STORE, src, hop, key, line)
	c.buf().Pop() // key
	c.buf().Pop() // hop
}

func (c *codegen) emitIdentLoad(id *ast.IdentExpr, line int) int {
	switch id.Loc.Kind {
	case ast.LocationLocal:
		c.buf().Push(id.Loc.Slot)
		return id.Loc.Slot
	case ast.LocationGlobal:
		idx := c.stringConstant(id.Name)
		dst := c.buf().PushTemp()
		c.buf().Add(ir.LOADG, dst, idx, 0, line)
		return dst
	case ast.LocationUpvalue:
		dst := c.buf().PushTemp()
		c.buf().Add(ir.LOADU, dst, id.Upvalue.SelfIndex, 0, line)
		return dst
	case ast.LocationClassIvarSame, ast.LocationClassIvarOuter:
		return c.loadIvarChain(id.Loc, id.Name, line)
	}
	c.errAt(id.Pos, "internal: unresolved identifier %q", id.Name)
	return c.buf().AddInt(0, line)
}

func (c *codegen) emitIdentStore(id *ast.IdentExpr, src, line int) {
	switch id.Loc.Kind {
	case ast.LocationLocal:
		c.buf().Add(ir.MOVE, id.Loc.Slot, src, 0, line)
	case ast.LocationGlobal:
		idx := c.stringConstant(id.Name)
		c.buf().Add(ir.STOREG, src, idx, 0, line)
	case ast.LocationUpvalue:
		c.buf().Add(ir.STOREU, src, id.Upvalue.SelfIndex, 0, line)
	case ast.LocationClassIvarSame, ast.LocationClassIvarOuter:
		c.storeIvarChain(id.Loc, id.Name, src, line)
	default:
		c.errAt(id.Pos, "internal: unresolved assignment target %q", id.Name)
	}
}

func binOpcode(op token.Token) ir.Opcode {
	switch op {
	case token.PLUS:
		return ir.ADD
	case token.MINUS:
		return ir.SUB
	case token.STAR:
		return ir.MUL
	case token.SLASH:
		return ir.DIV
	case token.PERCENT:
		return ir.REM
	case token.LAND:
		return ir.AND
	case token.LOR:
		return ir.OR
	case token.LT:
		return ir.LT
	case token.GT:
		return ir.GT
	case token.LE:
		return ir.LEQ
	case token.GE:
		return ir.GEQ
	case token.EQ:
		return ir.EQ
	case token.NEQ:
		return ir.NEQ
	case token.SAME:
		return ir.EQQ
	case token.NOT_SAME:
		return ir.NEQQ
	case token.IS:
		return ir.ISA
	case token.TILDE:
		return ir.MATCH
	case token.SHL:
		return ir.LSHIFT
	case token.SHR:
		return ir.RSHIFT
	case token.AMP:
		return ir.BAND
	case token.PIPE:
		return ir.BOR
	case token.CARET:
		return ir.BXOR
	}
	return ir.NOP
}

func (c *codegen) emitBinary(n *ast.BinaryExpr, line int) int {
	if n.Op == token.RANGE_EXCL || n.Op == token.RANGE_INCL {
		l := c.emitExpr(n.Left)
		r := c.emitExpr(n.Right)
		c.buf().Pop()
		c.buf().Pop()
		dst := c.buf().PushTemp()
		tag := ir.TagRangeExclude
		if n.Op == token.RANGE_INCL {
			tag = ir.TagRangeInclude
		}
		c.buf().AddTag(ir.RANGENEW, dst, l, r, line, tag)
		return dst
	}
	l := c.emitExpr(n.Left)
	r := c.emitExpr(n.Right)
	c.buf().Pop()
	c.buf().Pop()
	dst := c.buf().PushTemp()
	op := binOpcode(n.Op)
	if op == ir.NOP {
		c.errAt(n.OpPos, "internal: unhandled binary operator %v", n.Op)
	}
	c.buf().Add(op, dst, l, r, line)
	return dst
}

func (c *codegen) emitUnary(n *ast.UnaryExpr, line int) int {
	if n.Op == token.PLUS {
		return c.emitExpr(n.Expr)
	}
	src := c.emitExpr(n.Expr)
	c.buf().Pop()
	dst := c.buf().PushTemp()
	switch n.Op {
	case token.MINUS:
		c.buf().Add(ir.NEG, dst, src, 0, line)
	case token.BANG:
		c.buf().Add(ir.NOT, dst, src, 0, line)
	case token.TILDE:
		c.buf().Add(ir.BNOT, dst, src, 0, line)
	default:
		c.errAt(n.OpPos, "internal: unhandled unary operator %v", n.Op)
	}
	return dst
}

func (c *codegen) emitTernary(n *ast.TernaryExpr, line int) int {
	cond := c.emitExpr(n.Cond)
	c.buf().Pop()
	falseLabel := c.buf().NewLabel()
	endLabel := c.buf().NewLabel()
	c.buf().Add(ir.JUMPF, cond, falseLabel, 0, line)

	dst := c.buf().PushTemp()
	thenVal := c.emitExpr(n.Then)
	c.buf().Add(ir.MOVE, dst, thenVal, 0, line)
	c.buf().Pop()
	c.buf().Add(ir.JUMP, endLabel, 0, 0, line)

	c.buf().MarkLabel(falseLabel, line)
	elseVal := c.emitExpr(n.Else)
	c.buf().Add(ir.MOVE, dst, elseVal, 0, line)
	c.buf().Pop()

	c.buf().MarkLabel(endLabel, line)
	return dst
}

func (c *codegen) emitAssign(n *ast.AssignExpr, line int) int {
	src := c.emitExpr(n.Right)
	c.assignTo(n.Left, src, line)
	// checkpoint for struct value-copy semantics (spec.md §4.6's add_check)
	c.buf().AddCheck(line)
	return src
}

func (c *codegen) assignTo(target ast.Expr, src, line int) {
	switch t := target.(type) {
	case *ast.IdentExpr:
		c.emitIdentStore(t, src, line)
	case *ast.FileExpr:
		c.emitFileRefStore(t, src, line)
	case *ast.PostfixExpr:
		c.emitPostfixStore(t, src, line)
	default:
		start, _ := target.Span()
		c.errAt(start, "invalid assignment target")
	}
}

func (c *codegen) emitInlineDecl(n *ast.InlineDeclExpr, line int) int {
	switch d := n.Decl.(type) {
	case *ast.FuncDecl:
		return c.emitFuncClosure(d, line)
	case *ast.ClassDecl:
		class := c.emitClassDecl(d, line)
		idx := c.curFunc().AddConstant(class)
		return c.buf().AddConstant(idx, line)
	case *ast.EnumDecl:
		enum := c.emitEnumDecl(d)
		idx := c.curFunc().AddConstant(enum)
		return c.buf().AddConstant(idx, line)
	}
	start, _ := n.Decl.Span()
	c.errAt(start, "internal: unhandled inline declaration %T", n.Decl)
	return c.buf().AddInt(0, line)
}

// emitPostfix lowers a full postfix chain (spec.md §4.7): Base evaluated
// once, then each Access/Subscript/Call link computes a fresh self_register
// as it goes. The whole chain runs under one context frame so that an
// object value consumed by a later link survives past the sub-expression
// that produces the next one.
func (c *codegen) emitPostfix(n *ast.PostfixExpr, line int) int {
	c.buf().PushContext()
	cur := c.emitPostfixUpTo(n, len(n.Ops), line)
	// hand the result register to the enclosing context so PopContext
	// doesn't free it out from under the caller (spec.md §4.6's
	// register_protect_outside_context)
	c.buf().RegisterProtectOutsideContext(cur)
	c.buf().PopContext()
	return cur
}

// emitPostfixStore lowers an assignment whose target is a postfix chain
// ending in `.name` or `[index]` (the only assignable shapes the resolver
// allows): the chain up to the last link is evaluated as the object, then
// the last link becomes a STORE/STOREAT instead of a LOAD/LOADAT.
func (c *codegen) emitPostfixStore(n *ast.PostfixExpr, src, line int) {
	if len(n.Ops) == 0 {
		start, _ := n.Span()
		c.errAt(start, "invalid assignment target")
		return
	}
	c.buf().PushContext()
	obj := c.emitPostfixUpTo(n, len(n.Ops)-1, line)
	switch o := n.Ops[len(n.Ops)-1].(type) {
	case *ast.AccessOp:
		idx := c.stringConstant(o.Name.Name)
		key := c.buf().AddConstant(idx, line)
		c.buf().Add(ir.STORE, src, obj, key, line)
		c.buf().Pop()
	case *ast.SubscriptOp:
		idxReg := c.emitExpr(o.Index)
		c.buf().Add(ir.STOREAT, src, obj, idxReg, line)
		c.buf().Pop()
	default:
		start, _ := o.Span()
		c.errAt(start, "invalid assignment target")
	}
	c.buf().Pop() // obj
	c.buf().PopContext()
}

// emitPostfixUpTo evaluates n.Base and its first k ops, leaving the final
// value/object on top of the register stack and returning its register.
// Must run inside a context frame the caller pushes/pops.
func (c *codegen) emitPostfixUpTo(n *ast.PostfixExpr, k int, line int) int {
	ops := n.Ops[:k]

	// self_register computation (spec.md §4.7): a chain based on an
	// implicit-self ivar reference or on `super` calls its methods with
	// self = register 0; an outer-class ivar base walks the `outer` chain
	// and uses the resulting instance as the receiver.
	selfReg, haveSelf := 0, false

	var cur int
	switch kw, isKw := n.Base.(*ast.KeywordExpr); {
	case isKw && kw.Kind == token.SUPER && len(ops) > 0:
		acc, isAcc := ops[0].(*ast.AccessOp)
		if !isAcc {
			c.errAt(kw.Pos, "'super' must be followed by a method access")
			cur = c.buf().AddInt(0, line)
			ops = nil
			break
		}
		superName := superNameOf(c.curClass())
		if superName == "" {
			c.errAt(kw.Pos, "'super' used outside a subclass")
		}
		superIdx := c.stringConstant(superName)
		methodIdx := c.stringConstant(acc.Name.Name)
		cur = c.buf().PushTemp()
		c.buf().Add(ir.LOADS, cur, superIdx, methodIdx, line)
		ops = ops[1:]
		haveSelf = true // super methods run on the current instance

	default:
		if id, isID := n.Base.(*ast.IdentExpr); isID {
			switch id.Loc.Kind {
			case ast.LocationClassIvarSame:
				haveSelf = true
			case ast.LocationClassIvarOuter:
				if len(ops) > 0 {
					selfReg = c.emitOuterInstance(id.Loc.Nup, line)
					c.buf().PopContextProtect(true)
					haveSelf = true
				}
			}
		}
		cur = c.emitExpr(n.Base)
	}

	for _, op := range ops {
		switch o := op.(type) {
		case *ast.AccessOp:
			obj := c.buf().PopContextProtect(true)
			idx := c.stringConstant(o.Name.Name)
			r := c.buf().AddConstant(idx, line)
			c.buf().Add(ir.LOAD, r, obj, r, line)
			selfReg, haveSelf = obj, true
			cur = r

		case *ast.SubscriptOp:
			obj := c.buf().PopContextProtect(true)
			idx := c.emitExpr(o.Index)
			c.buf().Add(ir.LOADAT, idx, obj, idx, line)
			selfReg, haveSelf = obj, true
			cur = idx

		case *ast.CallOp:
			callee := c.buf().PopContextProtect(true)
			cur = c.emitCallArgs(callee, selfReg, haveSelf, o.Args, line)
			c.buf().Push(cur)
			selfReg, haveSelf = 0, false
		}
	}
	return cur
}

// emitCallArgs emits the call window and CALL for a callee already sitting
// in register callee (protected, off the regStack). The callee closure is
// MOVEd into a fresh temp window whose next register always holds the
// receiver — self when the chain provides one, null for a plain function
// call — with the explicit arguments contiguously after it (spec.md §4.7's
// "arguments in contiguous registers target+2..target+1+n"); the result
// lands in its own register, allocated before the window. Must run inside a
// context frame. Returns the result register, protected in that frame.
func (c *codegen) emitCallArgs(callee, selfReg int, haveSelf bool, args []ast.Expr, line int) int {
	buf := c.buf()
	dest := buf.PushTemp()
	buf.PopContextProtect(true) // reserve dest across the argument MOVEs

	window := buf.PushTemp()
	buf.Add(ir.MOVE, window, callee, 0, line)
	nargs := 1
	r := buf.PushTemp()
	if haveSelf {
		buf.Add(ir.MOVE, r, selfReg, 0, line)
	} else {
		buf.Add(ir.LOADK, r, object.ReservedNull, 0, line)
	}
	for _, a := range args {
		r := buf.PushTemp()
		v := c.emitExpr(a)
		buf.Add(ir.MOVE, r, v, 0, line)
		buf.Pop()
		nargs++
	}
	buf.Add(ir.CALL, dest, window, nargs, line)
	for i := 0; i < nargs+1; i++ {
		buf.Pop()
	}
	return dest
}
