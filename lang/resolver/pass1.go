package resolver

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// hoistDecls is pass 1 (spec.md §4.4): it visits only list/compound
// statements and the five declaration variants, inserting a binding for
// each declared name into scope so that forward references resolve in
// pass 2. It never descends into a function's body — any declaration found
// there is function-local and is only ever discovered, function-local slot
// and all, during pass 2's walk of that function.
func (r *resolver) hoistDecls(stmts []ast.Stmt, scope *Scope) {
	for _, stmt := range stmts {
		r.hoistStmt(stmt, scope)
	}
}

func (r *resolver) hoistStmt(stmt ast.Stmt, scope *Scope) {
	switch s := stmt.(type) {
	case *ast.ListStmt:
		r.hoistDecls(s.Stmts, scope)
	case *ast.CompoundStmt:
		r.hoistDecls(s.Stmts, scope)
	case *ast.FuncDecl:
		r.declareName(scope, s.Name, s, s.Storage == token.STATIC, false)
	case *ast.VarDeclStmt:
		// A module's members are always name-bound, never slotted (modules
		// lower to a class with NIvar == 0, SPEC_FULL.md §5), regardless of
		// whether `static` was written explicitly.
		isField := scope.Kind != ScopeModule
		for _, vd := range s.Vars {
			r.declareName(scope, vd.Name, vd, s.Storage == token.STATIC, isField && !vd.Computed)
			if isField && !vd.Computed && s.Storage == token.LAZY && scope.cls != nil {
				r.declareLazyFlag(scope, vd)
			}
		}
	case *ast.EnumDecl:
		r.declareName(scope, s.Name, s, false, false)
		r.hoistEnum(s)
	case *ast.ClassDecl:
		r.declareName(scope, s.Name, s, s.Storage == token.STATIC, false)
		r.hoistClassBody(s, scope)
	case *ast.ModuleDecl:
		r.declareName(scope, s.Name, s, false, false)
		r.hoistModuleBody(s, scope)
	}
}

// declareName inserts name into scope, assigning it an instance ivar slot
// when scope belongs to a class, isField is set and the member is not
// static, or reporting a duplicate-declaration error otherwise. Global and function-block scopes
// leave the slot unset here; function-local slots are assigned by pass 2 as
// it walks the body in source order (spec.md §4.3's "cumulative local
// count"). isField is false for methods, computed properties, enums, and
// nested classes/modules: per spec.md §4.5 rule 2, a class member that is
// not a plain storage variable keeps slot_index == ast.NoSlot so codegen
// performs a name lookup against the class's member table instead of a
// slot load.
func (r *resolver) declareName(scope *Scope, name *ast.IdentExpr, decl ast.Node, static, isField bool) {
	key := name.Name
	if (scope.Kind == ScopeClass || scope.Kind == ScopeModule) && static {
		key = staticName(name.Name)
	}
	b, ok := scope.insert(key, decl)
	if !ok {
		r.errorf(name.Pos, "%q is already declared in this scope", name.Name)
		return
	}
	if scope.cls != nil && isField && !static {
		scope.setIvarSlot(b, static)
	}
}

// declareLazyFlag reserves a second, hidden instance-var slot alongside a
// `lazy var`'s own slot, tracking whether its initializer has run yet
// (SPEC_FULL.md §5's once-cached-getter lowering). The slot is taken
// directly from the class's ivar counter rather than through insert/lookup,
// since it is never addressed by name.
func (r *resolver) declareLazyFlag(scope *Scope, vd *ast.VarDecl) {
	vd.FlagSlot = scope.cls.nivar
	scope.cls.nivar++
}

// hoistEnum builds the enum's own scope (its members' values are private
// literal nodes owned by this scope, per spec.md §4.3) and rejects
// duplicate members. An empty body is not checked here; the parser
// reports it.
func (r *resolver) hoistEnum(ed *ast.EnumDecl) {
	scope := newScope(ScopeEnum, nil)
	for _, m := range ed.Members {
		if _, ok := scope.insert(m.Name.Name, m); !ok {
			r.errorf(m.Name.Pos, "duplicate enum member %q", m.Name.Name)
		}
	}
	ed.Scope = scope
}

// hoistClassBody pushes a fresh class scope over cd's body and recurses
// pass 1 into it, so members can forward-reference each other and the
// class's own methods/properties are visible to pass 2 from any point in
// the class (spec.md §4.4). An inner class gets a hidden `outer` ivar at
// slot 0 (spec.md's invariant).
func (r *resolver) hoistClassBody(cd *ast.ClassDecl, parent *Scope) *Scope {
	scope := newClassScope(ScopeClass, parent)
	scope.owner = cd
	if classAncestor(parent) {
		outer, _ := scope.insert("outer", nil)
		scope.setIvarSlot(outer, false)
	}
	r.hoistDecls(cd.Decls, scope)
	cd.Scope = scope
	cd.NIvar = scope.cls.nivar
	cd.NSvar = scope.cls.nsvar
	return scope
}

// classAncestor reports whether scope or one of its ancestors belongs to a
// class/module, i.e. whether a class being declared "here" counts as an
// inner class for the hidden `outer` ivar (spec.md's invariant covers both
// direct nesting in a class body and nesting inside a method/function that
// is itself inside a class).
func classAncestor(scope *Scope) bool {
	for s := scope; s != nil; s = s.Parent {
		if s.Kind == ScopeClass || s.Kind == ScopeModule {
			return true
		}
	}
	return false
}

func (r *resolver) hoistModuleBody(md *ast.ModuleDecl, parent *Scope) *Scope {
	scope := newClassScope(ScopeModule, parent)
	scope.owner = md
	r.hoistDecls(md.Decls, scope)
	md.Scope = scope
	md.NIvar = scope.cls.nivar
	md.NSvar = scope.cls.nsvar
	return scope
}
