// Package resolver implements the two-pass semantic analysis of spec.md
// §4.4/§4.5: pass 1 hoists declarations into nested symbol tables so that
// forward references resolve; pass 2 walks every node, resolves identifiers
// to a Location, and checks the scoping rules.
package resolver

import (
	"github.com/dolthub/swiss"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// ScopeKind tags a Scope with the kind of declaration that introduced it
// (spec.md §4.3).
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFunction
	ScopeBlock
	ScopeClass
	ScopeModule
	ScopeEnum
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeClass:
		return "class"
	case ScopeModule:
		return "module"
	case ScopeEnum:
		return "enum"
	default:
		return "scope"
	}
}

// binding is one entry of a Scope's name table.
type binding struct {
	decl     ast.Node
	slot     int
	captured bool
	static   bool
	builtin  bool // pre-declared extern core identifier, no decl node
}

// funcCounters is shared by a function's top scope and every nested block
// scope within it: local slots are numbered cumulatively across the whole
// function body, not per-block (spec.md §4.3).
type funcCounters struct {
	nlocals int
}

// classCounters is shared by a class (or module) scope and its nested block
// scopes.
type classCounters struct {
	nivar int
	nsvar int
}

// Scope is one level of the resolver's symbol-table stack (spec.md §4.3):
// a hash map of names to declarations, tagged with a kind, chained to its
// enclosing scope.
type Scope struct {
	Kind   ScopeKind
	Parent *Scope
	names  *swiss.Map[string, *binding]

	fn  *funcCounters
	cls *classCounters

	// super chains a class scope to the scope of its resolved superclass
	// (spec.md §4.5 rule 2's superclass-chain lookup); owner is the
	// ClassDecl/ModuleDecl the scope belongs to, for diagnostics.
	super *Scope
	owner ast.Node

	capturedSlots []int
}

func newScope(kind ScopeKind, parent *Scope) *Scope {
	s := &Scope{Kind: kind, Parent: parent, names: swiss.NewMap[string, *binding](8)}
	if parent != nil {
		s.fn, s.cls = parent.fn, parent.cls
	}
	return s
}

// newFuncScope starts a fresh function-local counter chain; self always
// occupies slot 0 (spec.md's GLOSSARY "self: implicit first parameter
// (register 0)").
func newFuncScope(parent *Scope) *Scope {
	s := &Scope{Kind: ScopeFunction, Parent: parent, names: swiss.NewMap[string, *binding](8)}
	s.fn = &funcCounters{}
	b, _ := s.insert("self", nil)
	s.setLocalSlot(b)
	return s
}

// newClassScope starts a fresh ivar/svar counter chain; the enclosing
// function's local counters (if any) pass through so stray block locals in
// a class body still get a slot.
func newClassScope(kind ScopeKind, parent *Scope) *Scope {
	s := &Scope{Kind: kind, Parent: parent, names: swiss.NewMap[string, *binding](8)}
	if parent != nil {
		s.fn = parent.fn
	}
	s.cls = &classCounters{}
	return s
}

// insert binds name to decl in s, failing if name is already bound directly
// in s (spec.md §4.3: "fails if shadowed in current scope").
func (s *Scope) insert(name string, decl ast.Node) (*binding, bool) {
	if _, ok := s.names.Get(name); ok {
		return nil, false
	}
	b := &binding{decl: decl, slot: ast.NoSlot}
	s.names.Put(name, b)
	return b, true
}

// lookupLocal looks up name only within s.
func (s *Scope) lookupLocal(name string) (*binding, bool) {
	return s.names.Get(name)
}

// lookup walks s and its ancestors, stopping at the outermost scope given.
func (s *Scope) lookup(name string) (*binding, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if b, ok := cur.names.Get(name); ok {
			return b, cur
		}
	}
	return nil, nil
}

// setLocalSlot assigns the next local slot of the owning function to b.
func (s *Scope) setLocalSlot(b *binding) int {
	slot := s.fn.nlocals
	s.fn.nlocals++
	b.slot = slot
	return slot
}

// setIvarSlot assigns the next instance or static ivar slot of the owning
// class to b.
func (s *Scope) setIvarSlot(b *binding, static bool) int {
	b.static = static
	if static {
		slot := s.cls.nsvar
		s.cls.nsvar++
		b.slot = slot
		return slot
	}
	slot := s.cls.nivar
	s.cls.nivar++
	b.slot = slot
	return slot
}

// markCaptured flags b as captured by an inner function's closure, for the
// owning scope's CLOSE-slot computation on exit.
func (s *Scope) markCaptured(b *binding) {
	if b.captured {
		return
	}
	b.captured = true
	s.capturedSlots = append(s.capturedSlots, b.slot)
}

// exit returns the minimum captured local slot recorded directly against s,
// or -1 if none were captured (spec.md §4.3's exit_scope return value).
func (s *Scope) exit() int {
	min := -1
	for _, slot := range s.capturedSlots {
		if min == -1 || slot < min {
			min = slot
		}
	}
	return min
}

// staticName mangles a static member's name so it never collides with an
// instance member of the same name (spec.md §4.4).
func staticName(name string) string { return "$" + name }

// lookupSuper resolves name through s's superclass chain (not s itself),
// returning the binding and the class scope that owns it (spec.md §4.5
// rule 2: "look up in the class symbol table and, if absent, in its
// superclass chain").
func (s *Scope) lookupSuper(name string) (*binding, *Scope) {
	for cur := s.super; cur != nil; cur = cur.super {
		if b, ok := cur.names.Get(name); ok {
			return b, cur
		}
	}
	return nil, nil
}

// declAccess reports the access specifier a declaration node was written
// with, or 0 when it carries none.
func declAccess(n ast.Node) token.Token {
	switch d := n.(type) {
	case *ast.FuncDecl:
		return d.Access
	case *ast.ClassDecl:
		return d.Access
	case *ast.VarDecl:
		if d.Parent != nil {
			return d.Parent.Access
		}
	}
	return 0
}

// ownerClassName reports the declared name of the class/module a scope
// belongs to, for diagnostics.
func ownerClassName(s *Scope) string {
	switch d := s.owner.(type) {
	case *ast.ClassDecl:
		return d.Name.Name
	case *ast.ModuleDecl:
		return d.Name.Name
	default:
		return ""
	}
}
