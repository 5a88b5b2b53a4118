package resolver

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// walkStmts is pass 2's entry point for a statement sequence: the full
// recursive walk that resolves every identifier, checks the locality rules
// of spec.md §4.5, and annotates scope-close slots.
func (r *resolver) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.walkStmt(s)
	}
}

func (r *resolver) curScope() *Scope { return r.curDecl().scope }

// withScope runs fn with scope pushed as the current declaration frame's
// scope, restoring the previous scope on return.
func (r *resolver) withScope(scope *Scope, fn func()) {
	old := r.curDecl().scope
	r.declStack[len(r.declStack)-1].scope = scope
	fn()
	r.declStack[len(r.declStack)-1].scope = old
}

func (r *resolver) walkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ListStmt:
		r.walkStmts(s.Stmts)
	case *ast.CompoundStmt:
		r.walkCompound(s)
	case *ast.ExprStmt:
		r.walkExprStmtTarget(s.Expr)
	case *ast.EmptyStmt:
	case *ast.ImportStmt:
	case *ast.JumpStmt:
		r.walkJump(s)
	case *ast.IfStmt:
		r.walkExpr(s.Cond)
		r.walkStmt(s.Then)
		if s.Else != nil {
			r.walkStmt(s.Else)
		}
	case *ast.SwitchStmt:
		r.walkSwitch(s)
	case *ast.WhileStmt:
		r.walkWhile(s)
	case *ast.RepeatStmt:
		r.walkRepeat(s)
	case *ast.ForInStmt:
		r.walkForIn(s)
	case *ast.FuncDecl:
		r.walkFuncDecl(s)
	case *ast.VarDeclStmt:
		r.walkVarDeclStmt(s)
	case *ast.EnumDecl:
		r.walkEnumDecl(s)
	case *ast.ClassDecl:
		r.walkClassDecl(s)
	case *ast.ModuleDecl:
		r.walkModuleDecl(s)
	}
}

// walkExprStmtTarget enforces spec.md §4.2's rule that an expression
// statement is only ever a call or an assignment.
func (r *resolver) walkExprStmtTarget(e ast.Expr) {
	switch pe := e.(type) {
	case *ast.AssignExpr:
		r.walkExpr(e)
	case *ast.PostfixExpr:
		// only a chain ending in a call is a call statement
		if len(pe.Ops) == 0 {
			r.errorf(spanPos(e), "expression result unused")
		} else if _, ok := pe.Ops[len(pe.Ops)-1].(*ast.CallOp); !ok {
			r.errorf(spanPos(e), "expression result unused")
		}
		r.walkExpr(e)
	default:
		r.errorf(spanPos(e), "expression result unused")
		r.walkExpr(e)
	}
}

func spanPos(n ast.Node) token.Pos { p, _ := n.Span(); return p }

func (r *resolver) walkCompound(cs *ast.CompoundStmt) {
	scope := newScope(ScopeBlock, r.curScope())
	cs.Scope = scope
	r.withScope(scope, func() {
		r.walkStmts(cs.Stmts)
	})
	cs.CloseSlot = scope.exit()
}

// walkJump checks break/continue against the innermost enclosing statement
// frame only (spec.md §4.5: `continue` directly inside a `switch` is an
// error even when a loop encloses the switch).
func (r *resolver) walkJump(j *ast.JumpStmt) {
	top := r.topStmtFrame()
	switch j.Kind {
	case token.BREAK:
		if top == nil || !top.allowBreak {
			r.error(j.Pos, "'break' statement not in loop or switch statement.")
		}
	case token.CONTINUE:
		if top == nil || !top.allowCont {
			r.error(j.Pos, "'continue' statement not in loop statement.")
		}
	case token.RETURN:
		if r.curFunc() == nil {
			r.error(j.Pos, "return outside of a function")
		}
		if j.Expr != nil {
			r.walkExpr(j.Expr)
		}
	}
}

func (r *resolver) topStmtFrame() *stmtFrame {
	if len(r.stmtStack) == 0 {
		return nil
	}
	return &r.stmtStack[len(r.stmtStack)-1]
}

func (r *resolver) walkSwitch(s *ast.SwitchStmt) {
	r.walkExpr(s.Cond)
	r.stmtStack = append(r.stmtStack, stmtFrame{kind: token.SWITCH, allowBreak: true})
	seenDefault := false
	for _, c := range s.Clauses {
		if c.Expr == nil {
			if seenDefault {
				r.error(c.Colon, "multiple default clauses in switch")
			}
			seenDefault = true
		} else {
			r.walkExpr(c.Expr)
		}
		r.walkStmts(c.Body)
	}
	r.stmtStack = r.stmtStack[:len(r.stmtStack)-1]
}

func (r *resolver) walkWhile(s *ast.WhileStmt) {
	r.walkExpr(s.Cond)
	r.stmtStack = append(r.stmtStack, stmtFrame{kind: token.WHILE, allowBreak: true, allowCont: true})
	r.walkCompound(s.Body)
	r.stmtStack = r.stmtStack[:len(r.stmtStack)-1]
	s.CloseSlot = s.Body.CloseSlot
}

func (r *resolver) walkRepeat(s *ast.RepeatStmt) {
	r.stmtStack = append(r.stmtStack, stmtFrame{kind: token.REPEAT, allowBreak: true, allowCont: true})
	r.walkCompound(s.Body)
	r.stmtStack = r.stmtStack[:len(r.stmtStack)-1]
	r.walkExpr(s.Cond)
	s.CloseSlot = s.Body.CloseSlot
}

// walkForIn resolves `for (x in expr) body`: the loop variable lives in its
// own scope wrapping the body (spec.md §4.5), so that it is captured and
// closed like any other loop-local.
func (r *resolver) walkForIn(s *ast.ForInStmt) {
	r.walkExpr(s.Expr)

	loopScope := newScope(ScopeBlock, r.curScope())
	r.withScope(loopScope, func() {
		switch {
		case s.Decl != nil:
			b, ok := loopScope.insert(s.Decl.Name.Name, s.Decl)
			if !ok {
				r.errorf(s.Decl.Name.Pos, "%q is already declared in this scope", s.Decl.Name.Name)
			} else {
				s.Decl.Slot = loopScope.setLocalSlot(b)
			}
		case s.Ident != nil:
			r.walkExpr(s.Ident)
			if !s.Ident.IsLValue {
				s.Ident.IsLValue = true
			}
			if s.Ident.Loc.Kind != ast.LocationUnresolved && s.Ident.Loc.Kind != ast.LocationLocal {
				r.errorf(s.Ident.Pos, "for loop variable %q must be a local variable", s.Ident.Name)
			}
		}

		r.stmtStack = append(r.stmtStack, stmtFrame{kind: token.FOR, allowBreak: true, allowCont: true})
		r.walkCompound(s.Body)
		r.stmtStack = r.stmtStack[:len(r.stmtStack)-1]
	})
	s.CloseSlot = loopScope.exit()
}

// walkFuncDecl resolves a function's parameters and body in a fresh
// function scope. It is used both for declarations found by pass 1 (whose
// own Scope pass 2 builds here, since pass 1 never descends into bodies)
// and for a FuncDecl reached through an InlineDeclExpr inside another
// function's body.
func (r *resolver) walkFuncDecl(fd *ast.FuncDecl) {
	parent := r.curScope()
	scope := newFuncScope(parent)
	fd.Scope = scope
	fd.NParams = len(fd.Params)
	if outer := r.curFunc(); outer != nil {
		fd.Enclosing = outer.fn
	} else if cls := r.curClass(); cls != nil {
		if cls.cls != nil {
			fd.Enclosing = cls.cls
		} else {
			fd.Enclosing = cls.mod
		}
	}

	for _, p := range fd.Params {
		b, ok := scope.insert(p.Name.Name, p)
		if !ok {
			r.errorf(p.Name.Pos, "duplicate parameter %q", p.Name.Name)
			continue
		}
		scope.setLocalSlot(b)
		if p.Default != nil {
			r.walkExpr(p.Default)
		}
	}

	r.declStack = append(r.declStack, declFrame{scope: scope, fn: fd})
	r.stmtStack = append(r.stmtStack, stmtFrame{})
	r.walkStmts(fd.Body.Stmts)
	r.stmtStack = r.stmtStack[:len(r.stmtStack)-1]
	r.declStack = r.declStack[:len(r.declStack)-1]

	fd.NLocals = scope.fn.nlocals
	fd.IsClosure = len(fd.Upvalues) > 0
	fd.Variadic = usesArgsKeyword(fd.Body)
	// locals of the function's own top scope captured by an inner closure
	// need a CLOSE on function exit, like any block's (spec.md §4.5)
	fd.Body.CloseSlot = scope.exit()

	if scope.fn.nlocals > MaxLocals {
		r.errorf(fd.Func, "function %q exceeds the maximum of %d locals", fd.Name.Name, MaxLocals)
	}
	if len(fd.Upvalues) > MaxUpvalues {
		r.errorf(fd.Func, "function %q exceeds the maximum of %d upvalues", fd.Name.Name, MaxUpvalues)
	}
}

// usesArgsKeyword reports whether body references `_args` anywhere, which
// marks the enclosing function as variadic (spec.md §3's useargs flag is a
// property of usage, not parameter syntax).
func usesArgsKeyword(body *ast.CompoundStmt) bool {
	found := false
	var v argsVisitor
	v.found = &found
	ast.Walk(v, body)
	return found
}

type argsVisitor struct{ found *bool }

func (v argsVisitor) Visit(n ast.Node, dir ast.VisitDirection) ast.Visitor {
	if dir == ast.VisitExit || *v.found {
		return nil
	}
	switch e := n.(type) {
	case *ast.KeywordExpr:
		if e.Kind == token.ARGSKW {
			*v.found = true
			return nil
		}
	case *ast.FuncDecl:
		return nil // a nested function's own _args usage doesn't count here
	}
	return v
}

func (r *resolver) walkVarDeclStmt(vds *ast.VarDeclStmt) {
	scope := r.curScope()
	prebound := scope.Kind == ScopeGlobal || scope.Kind == ScopeClass || scope.Kind == ScopeModule

	for _, vd := range vds.Vars {
		vd.Parent = vds

		key := vd.Name.Name
		if prebound && vds.Storage == token.STATIC {
			key = staticName(vd.Name.Name)
		}

		var b *binding
		if prebound {
			found, ok := scope.lookupLocal(key)
			if !ok {
				// Declared via an inline lowering the hoist pass never saw
				// (e.g. a class nested inside a function); bind it now.
				found, _ = scope.insert(key, vd)
				if scope.cls != nil {
					scope.setIvarSlot(found, vds.Storage == token.STATIC)
					if vds.Storage == token.LAZY && !vd.Computed {
						r.declareLazyFlag(scope, vd)
					}
				}
			}
			b = found
			if scope.cls == nil {
				vd.Slot = ast.NoSlot
			} else {
				vd.Slot = b.slot
			}
		} else {
			var ok bool
			b, ok = scope.insert(key, vd)
			if !ok {
				r.errorf(vd.Name.Pos, "%q is already declared in this scope", vd.Name.Name)
				b = &binding{slot: ast.NoSlot}
			} else {
				vd.Slot = scope.setLocalSlot(b)
			}
		}

		switch {
		case vd.Computed:
			r.walkComputedProperty(vd)
		case vd.Init != nil:
			r.walkExpr(vd.Init)
		}
	}
}

func (r *resolver) walkComputedProperty(vd *ast.VarDecl) {
	if vd.Getter != nil {
		r.walkFuncDecl(vd.Getter)
	}
	if vd.Setter != nil {
		if len(vd.Setter.Params) == 0 {
			vd.Setter.Params = append(vd.Setter.Params, &ast.ParamDecl{Name: &ast.IdentExpr{Name: "value"}})
		}
		r.walkFuncDecl(vd.Setter)
	}
}

func (r *resolver) walkEnumDecl(ed *ast.EnumDecl) {
	for _, m := range ed.Members {
		if m.Value != nil {
			r.walkExpr(m.Value)
		}
	}
}

func (r *resolver) walkClassDecl(cd *ast.ClassDecl) {
	scope, _ := cd.Scope.(*Scope)
	if scope == nil {
		// Reached via InlineDeclExpr inside a function body: pass 1 never
		// built this class's scope, so build it now.
		scope = r.hoistClassBody(cd, r.curScope())
	}

	if cd.Super != nil {
		if cd.Super.Name == cd.Name.Name {
			r.errorf(cd.Super.Pos, "class %q cannot subclass itself", cd.Name.Name)
		} else if !cd.ExternSuper {
			// an extern superclass defers the lookup to runtime; everything
			// else must resolve now (spec.md §4.5)
			r.resolveIdent(cd.Super)
			r.linkSuperScope(cd, scope)
		}
	}

	r.declStack = append(r.declStack, declFrame{scope: scope, cls: cd})
	r.walkStmts(cd.Decls)
	r.declStack = r.declStack[:len(r.declStack)-1]
}

// linkSuperScope chains cd's class scope to its resolved superclass's
// scope, enabling the superclass-chain member lookup of spec.md §4.5
// rule 2, and reports the non-fatal shadowing diagnostic for every plain
// property redefining a superclass member.
func (r *resolver) linkSuperScope(cd *ast.ClassDecl, scope *Scope) {
	if gb, _ := globalBinding(scope, cd.Super.Name); gb != nil && gb.builtin {
		r.errorf(cd.Super.Pos, "Unable to subclass built-in core class %s.", cd.Super.Name)
		return
	}
	superDecl, ok := cd.Super.Decl.(*ast.ClassDecl)
	if !ok {
		return
	}
	superScope, ok := superDecl.Scope.(*Scope)
	if !ok {
		return
	}
	scope.super = superScope

	for _, d := range cd.Decls {
		vds, ok := d.(*ast.VarDeclStmt)
		if !ok {
			continue
		}
		for _, vd := range vds.Vars {
			if vd.Name.Name == "outer" {
				continue
			}
			if _, owner := scope.lookupSuper(vd.Name.Name); owner != nil {
				r.warnf(vd.Name.Pos, "Property '%s' defined in class '%s' already defined in its superclass %s.",
					vd.Name.Name, cd.Name.Name, ownerClassName(owner))
			}
		}
	}
}

// globalBinding resolves name against the outermost (global) scope only.
func globalBinding(s *Scope, name string) (*binding, *Scope) {
	root := s
	for root.Parent != nil {
		root = root.Parent
	}
	b, ok := root.names.Get(name)
	if !ok {
		return nil, nil
	}
	return b, root
}

func (r *resolver) walkModuleDecl(md *ast.ModuleDecl) {
	scope, _ := md.Scope.(*Scope)
	if scope == nil {
		scope = r.hoistModuleBody(md, r.curScope())
	}
	r.declStack = append(r.declStack, declFrame{scope: scope, mod: md})
	r.walkStmts(md.Decls)
	r.declStack = r.declStack[:len(r.declStack)-1]
}

// walkExpr resolves idents and recurses into every expression kind that
// can carry one.
func (r *resolver) walkExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.IdentExpr:
		r.resolveIdent(n)
	case *ast.BinaryExpr:
		r.walkExpr(n.Left)
		r.walkExpr(n.Right)
		if n.Op == token.RANGE_EXCL || n.Op == token.RANGE_INCL {
			r.checkRangeOperand(n.Left)
			r.checkRangeOperand(n.Right)
		}
	case *ast.AssignExpr:
		if !ast.IsAssignable(n.Left) {
			r.error(spanPos(n.Left), "invalid assignment target")
		}
		r.walkExpr(n.Left)
		if id, ok := n.Left.(*ast.IdentExpr); ok {
			id.IsLValue = true
		}
		r.walkExpr(n.Right)
	case *ast.UnaryExpr:
		r.walkExpr(n.Expr)
	case *ast.FileExpr:
	case *ast.LiteralExpr:
		for _, p := range n.Parts {
			r.walkExpr(p)
		}
	case *ast.KeywordExpr:
		if n.Kind == token.ARGSKW && r.curFunc() == nil {
			r.error(n.Pos, "_args used outside of a function")
		}
	case *ast.ListExpr:
		seen := map[string]bool{}
		for i, v := range n.Values {
			if n.IsMap && n.Keys[i] != nil {
				r.walkExpr(n.Keys[i])
				if lit, ok := n.Keys[i].(*ast.LiteralExpr); ok && lit.Kind == token.STRING {
					if seen[lit.Str] {
						r.errorf(lit.Pos, "duplicate map key %q", lit.Str)
					}
					seen[lit.Str] = true
				}
			}
			r.walkExpr(v)
		}
	case *ast.PostfixExpr:
		r.walkExpr(n.Base)
		for i, op := range n.Ops {
			switch o := op.(type) {
			case *ast.CallOp:
				if i == 0 {
					r.checkInfiniteInitLoop(n.Base)
				}
				for _, a := range o.Args {
					r.walkExpr(a)
				}
			case *ast.SubscriptOp:
				r.walkExpr(o.Index)
			case *ast.AccessOp:
				// member names are resolved dynamically at codegen time,
				// not against the lexical symbol table.
			}
		}
	case *ast.TernaryExpr:
		r.walkExpr(n.Cond)
		r.walkExpr(n.Then)
		r.walkExpr(n.Else)
	case *ast.InlineDeclExpr:
		r.walkStmt(n.Decl)
	}
}

// checkInfiniteInitLoop rejects the self-recursive constructor pattern of
// spec.md §4.5: inside a class's own `init`, calling the class itself
// (`C()`) or a bare `self()` re-enters the same constructor before it has
// finished running, so it would recurse forever rather than produce a
// closure.
func (r *resolver) checkInfiniteInitLoop(base ast.Expr) {
	fn := r.curFunc()
	if fn == nil || fn.fn.Name == nil || fn.fn.Name.Name != "init" {
		return
	}
	cls := r.curClass()
	if cls == nil || cls.cls == nil {
		return
	}
	id, ok := base.(*ast.IdentExpr)
	if !ok {
		return
	}
	if id.Name == "self" || id.Name == cls.cls.Name.Name {
		r.error(spanPos(base), "Infinite loop detected in init func.")
	}
}

func (r *resolver) checkRangeOperand(e ast.Expr) {
	lit, ok := e.(*ast.LiteralExpr)
	if !ok {
		return
	}
	if lit.Kind != token.INT {
		r.error(lit.Pos, "range literal endpoints must be integers")
	}
}

// resolveIdent is the identifier resolution algorithm of spec.md §4.5: walk
// the lexical scope chain from the current scope outward, classifying the
// binding's locality by which kind of scope boundary it is found behind.
func (r *resolver) resolveIdent(id *ast.IdentExpr) {
	funcHops := 0
	classHops := 0
	crossedFunc := false

	crossedClass := false

	for s := r.curScope(); s != nil; s = s.Parent {
		b, ok := s.lookupLocal(id.Name)
		if !ok && (s.Kind == ScopeClass || s.Kind == ScopeModule) {
			// static members live under a reserved mangled name (spec.md
			// §4.4) so they never collide with an instance member
			b, ok = s.lookupLocal(staticName(id.Name))
			if !ok {
				// superclass-chain fallback (spec.md §4.5 rule 2),
				// rejecting access to a private member through a subclass
				if sb, _ := s.lookupSuper(id.Name); sb != nil {
					if declAccess(sb.decl) == token.PRIVATE {
						r.errorf(id.Pos, "Forbidden access to private ivar %s from a subclass.", id.Name)
					}
					b, ok = sb, true
				}
			}
		}
		if !ok {
			if s.Kind == ScopeFunction {
				crossedFunc = true
				funcHops++
			}
			if s.Kind == ScopeClass || s.Kind == ScopeModule {
				crossedClass = true
				classHops++
			}
			continue
		}

		id.Decl = b.decl
		switch {
		case s.Kind == ScopeGlobal:
			id.Loc = ast.Location{Kind: ast.LocationGlobal}
		case s.Kind == ScopeClass || s.Kind == ScopeModule:
			if classHops == 0 {
				id.Loc = ast.Location{Kind: ast.LocationClassIvarSame, Slot: b.slot}
			} else {
				id.Loc = ast.Location{Kind: ast.LocationClassIvarOuter, Slot: b.slot, Nup: classHops}
			}
		case crossedClass:
			// a class declared inside a function cannot reach the
			// function's own locals (spec.md §4.5 locality rules)
			r.errorf(id.Pos, "Unable to access local func var %s from within a class.", id.Name)
			id.Loc = ast.Location{Kind: ast.LocationLocal, Slot: b.slot}
		case crossedFunc:
			s.markCaptured(b)
			id.Loc = ast.Location{Kind: ast.LocationUpvalue, Nup: funcHops}
			r.recordUpvalueChain(id, b, funcHops)
		default:
			id.Loc = ast.Location{Kind: ast.LocationLocal, Slot: b.slot}
		}
		return
	}

	r.errorf(id.Pos, "undefined name %q", id.Name)
}

// recordUpvalueChain appends one UpvalueEntry per function boundary between
// the referencing function and the function owning b, so every intermediate
// closure also captures it by the time it reaches the innermost one
// (spec.md's upvalue entry chain). A direct entry (the function immediately
// inside the defining one) records the captured variable's local slot; a
// chained entry records the index of the capture in the enclosing
// function's own upvalue list, so the chain is built outermost-first.
func (r *resolver) recordUpvalueChain(id *ast.IdentExpr, b *binding, hops int) {
	fns := make([]*ast.FuncDecl, 0, hops)
	for i := len(r.declStack) - 1; i >= 0 && len(fns) < hops; i-- {
		if fn := r.declStack[i].fn; fn != nil {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		return
	}

	prevIdx := 0
	for k := len(fns) - 1; k >= 0; k-- {
		fn := fns[k]
		direct := k == len(fns)-1
		target := prevIdx
		if direct {
			target = b.slot
		}

		idx := -1
		for j, u := range fn.Upvalues {
			if u.Captured == b.decl {
				idx = j
				break
			}
		}
		if idx < 0 {
			idx = len(fn.Upvalues)
			fn.Upvalues = append(fn.Upvalues, ast.UpvalueEntry{
				Captured:      b.decl,
				IsDirect:      direct,
				IndexInTarget: target,
				SelfIndex:     idx,
			})
		}
		prevIdx = idx
	}

	// the identifier's own entry mirrors the innermost function's capture
	inner := fns[0].Upvalues[prevIdx]
	id.Upvalue = &ast.UpvalueEntry{
		Captured:      inner.Captured,
		IsDirect:      inner.IsDirect,
		IndexInTarget: inner.IndexInTarget,
		SelfIndex:     prevIdx,
	}
}
