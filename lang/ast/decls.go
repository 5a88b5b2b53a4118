package ast

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/lang/token"
)

// ParamDecl is one function parameter, with an optional default value
// expression (spec.md's "has-defaults flag" on FuncDecl is derived from
// whether any ParamDecl.Default is non-nil).
type ParamDecl struct {
	Name           *IdentExpr
	TypeAnnotation string
	Default        Expr
}

func (n *ParamDecl) Format(f fmt.State, verb rune) { format(f, verb, n, "param "+n.Name.Name, nil) }
func (n *ParamDecl) Span() (start, end token.Pos) {
	start, end = n.Name.Span()
	if n.Default != nil {
		_, end = n.Default.Span()
	}
	return start, end
}
func (n *ParamDecl) Walk(v Visitor) {
	Walk(v, n.Name)
	if n.Default != nil {
		Walk(v, n.Default)
	}
}

// FuncDecl represents a function declaration (top-level, nested, method, or
// computed-property getter/setter). A nested `func` is lowered by the
// parser to `var <name> = func …` (spec.md §4.2) before reaching pass 1, so
// by the time pass 1 sees a bare FuncDecl it is always at list/class/module
// top level.
type FuncDecl struct {
	Access   token.Token // 0, PRIVATE, INTERNAL, or PUBLIC
	Storage  token.Token // 0, STATIC, EXTERN, or LAZY
	Func     token.Pos
	Name     *IdentExpr
	Params   []*ParamDecl
	Variadic bool // true when the body references the implicit `_args` list
	Body     *CompoundStmt
	End      token.Pos

	Scope     any
	NLocals   int
	NParams   int
	Upvalues  []UpvalueEntry
	IsClosure bool
	Enclosing Node // enclosing FuncDecl/ClassDecl/ModuleDecl, or nil at top level

	RuntimeFunc any // *object.Function, set by codegen
}

func (n *FuncDecl) Format(f fmt.State, verb rune) {
	format(f, verb, n, "func "+n.Name.Name, map[string]int{"params": len(n.Params)})
}
func (n *FuncDecl) Span() (start, end token.Pos) { return n.Func, n.End }
func (n *FuncDecl) Walk(v Visitor) {
	Walk(v, n.Name)
	for _, p := range n.Params {
		Walk(v, p)
	}
	Walk(v, n.Body)
}
func (n *FuncDecl) BlockEnding() bool { return false }
func (n *FuncDecl) declNode()         {}

// HasDefaults reports whether any parameter carries a default-value
// expression.
func (n *FuncDecl) HasDefaults() bool {
	for _, p := range n.Params {
		if p.Default != nil {
			return true
		}
	}
	return false
}

// VarDecl is a single bound name within a VarDeclStmt: a plain variable with
// an optional initializer, or a computed property with a getter/setter
// block (spec.md §4.2 "var { get {…} set(v) {…} }").
type VarDecl struct {
	Name           *IdentExpr
	TypeAnnotation string
	Init           Expr
	Getter         *FuncDecl
	Setter         *FuncDecl
	Parent         *VarDeclStmt
	Computed       bool
	IsUpvalue      bool
	Slot           int

	// FlagSlot is the hidden ivar slot holding the once-cached-getter's
	// initialized flag for a `lazy var` field (SPEC_FULL.md §5); NoSlot for
	// any non-lazy field.
	FlagSlot int
}

func (n *VarDecl) Format(f fmt.State, verb rune) {
	lbl := "var " + n.Name.Name
	if n.Computed {
		lbl = "computed var " + n.Name.Name
	}
	format(f, verb, n, lbl, nil)
}
func (n *VarDecl) Span() (start, end token.Pos) {
	start, end = n.Name.Span()
	switch {
	case n.Init != nil:
		_, end = n.Init.Span()
	case n.Setter != nil:
		_, end = n.Setter.Span()
	case n.Getter != nil:
		_, end = n.Getter.Span()
	}
	return start, end
}
func (n *VarDecl) Walk(v Visitor) {
	Walk(v, n.Name)
	switch {
	case n.Init != nil:
		Walk(v, n.Init)
	case n.Computed:
		if n.Getter != nil {
			Walk(v, n.Getter)
		}
		if n.Setter != nil {
			Walk(v, n.Setter)
		}
	}
}
func (n *VarDecl) BlockEnding() bool { return false }

// VarDeclStmt represents a `var`/`const` declaration of one or more names.
type VarDeclStmt struct {
	Kind    token.Token // VAR or CONST
	Access  token.Token
	Storage token.Token
	Var     token.Pos
	Vars    []*VarDecl
	Semi    token.Pos
}

func (n *VarDeclStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, n.Kind.String(), map[string]int{"vars": len(n.Vars)})
}
func (n *VarDeclStmt) Span() (start, end token.Pos) { return n.Var, n.Semi }
func (n *VarDeclStmt) Walk(v Visitor) {
	for _, vd := range n.Vars {
		Walk(v, vd)
	}
}
func (n *VarDeclStmt) BlockEnding() bool { return false }
func (n *VarDeclStmt) declNode()         {}

// EnumMember is one `name` or `name = value` entry of an EnumDecl. Value
// holds the literal AST node (owned privately by the enum's symbol table,
// per spec.md's symbol-table note on enum scopes).
type EnumMember struct {
	Name  *IdentExpr
	Value Expr // nil for auto-incremented int members
}

func (n *EnumMember) Format(f fmt.State, verb rune) { format(f, verb, n, "member "+n.Name.Name, nil) }
func (n *EnumMember) Span() (start, end token.Pos) {
	start, end = n.Name.Span()
	if n.Value != nil {
		_, end = n.Value.Span()
	}
	return start, end
}
func (n *EnumMember) Walk(v Visitor) {
	Walk(v, n.Name)
	if n.Value != nil {
		Walk(v, n.Value)
	}
}

// EnumDecl represents an `enum Name { ... }` declaration.
type EnumDecl struct {
	Enum    token.Pos
	Name    *IdentExpr
	Members []*EnumMember
	Scope   any
	End     token.Pos
}

func (n *EnumDecl) Format(f fmt.State, verb rune) {
	format(f, verb, n, "enum "+n.Name.Name, map[string]int{"members": len(n.Members)})
}
func (n *EnumDecl) Span() (start, end token.Pos) { return n.Enum, n.End }
func (n *EnumDecl) Walk(v Visitor) {
	Walk(v, n.Name)
	for _, m := range n.Members {
		Walk(v, m)
	}
}
func (n *EnumDecl) BlockEnding() bool { return false }
func (n *EnumDecl) declNode()         {}

// ClassDecl represents a `class`/`struct` declaration. A `module`
// declaration parses to a ModuleDecl instead; the parser never sets IsModule
// on a ClassDecl.
type ClassDecl struct {
	Access       token.Token
	Storage      token.Token
	Class        token.Pos
	Name         *IdentExpr
	IsStruct     bool
	Super        *IdentExpr
	ExternSuper  bool
	Protocols    []string // parsed, never consulted (SPEC_FULL.md §5)
	Decls        []Stmt
	Scope        any
	NIvar        int
	NSvar        int
	IsModule     bool
	RuntimeClass any // *object.Class, set by codegen
	End          token.Pos
}

func (n *ClassDecl) Format(f fmt.State, verb rune) {
	lbl := "class " + n.Name.Name
	if n.IsModule {
		lbl = "module " + n.Name.Name
	}
	format(f, verb, n, lbl, map[string]int{"decls": len(n.Decls)})
}
func (n *ClassDecl) Span() (start, end token.Pos) { return n.Class, n.End }
func (n *ClassDecl) Walk(v Visitor) {
	Walk(v, n.Name)
	if n.Super != nil {
		Walk(v, n.Super)
	}
	for _, d := range n.Decls {
		Walk(v, d)
	}
}
func (n *ClassDecl) BlockEnding() bool { return false }
func (n *ClassDecl) declNode()         {}

// ModuleDecl represents a parsed `module Name { ... }` before it is lowered
// to a ClassDecl by the codegen pass (SPEC_FULL.md §5); the resolver and
// pass 1/2 both operate on it directly as its own declaration variant, per
// spec.md §3, and lowering happens only at codegen time.
type ModuleDecl struct {
	Module token.Pos
	Name   *IdentExpr
	Decls  []Stmt
	Scope  any
	NIvar  int
	NSvar  int
	End    token.Pos

	RuntimeClass any // *object.Class, set by codegen
}

func (n *ModuleDecl) Format(f fmt.State, verb rune) {
	format(f, verb, n, "module "+n.Name.Name, map[string]int{"decls": len(n.Decls)})
}
func (n *ModuleDecl) Span() (start, end token.Pos) { return n.Module, n.End }
func (n *ModuleDecl) Walk(v Visitor) {
	Walk(v, n.Name)
	for _, d := range n.Decls {
		Walk(v, d)
	}
}
func (n *ModuleDecl) BlockEnding() bool { return false }
func (n *ModuleDecl) declNode()         {}

// InlineDeclExpr wraps a FuncDecl/ClassDecl/EnumDecl used as a value: the
// parser lowers a nested `func`/`class`/`enum` declaration found inside a
// function body to `var <name> = <decl>` (spec.md §4.2) so that the inner
// declaration closes over the enclosing scope like any other value-producing
// expression. Decl is visited and resolved exactly as it would be at
// statement position; codegen evaluates it in place and leaves the produced
// closure/class object in a fresh register.
type InlineDeclExpr struct {
	Decl Decl
}

func (n *InlineDeclExpr) Format(f fmt.State, verb rune) { n.Decl.Format(f, verb) }
func (n *InlineDeclExpr) Span() (start, end token.Pos)  { return n.Decl.Span() }
func (n *InlineDeclExpr) Walk(v Visitor)                { Walk(v, n.Decl) }
func (n *InlineDeclExpr) expr()                         {}
