package ast

import (
	"fmt"
	"os"
	"strings"

	"github.com/kestrel-lang/kestrel/lang/token"
)

// LocationKind classifies how an identifier reference resolves, per
// spec.md's location record.
type LocationKind int

const (
	LocationUnresolved LocationKind = iota
	LocationLocal
	LocationGlobal
	LocationUpvalue
	LocationClassIvarSame
	LocationClassIvarOuter
)

func (k LocationKind) String() string {
	switch k {
	case LocationLocal:
		return "local"
	case LocationGlobal:
		return "global"
	case LocationUpvalue:
		return "upvalue"
	case LocationClassIvarSame:
		return "ivar(same)"
	case LocationClassIvarOuter:
		return "ivar(outer)"
	default:
		return "unresolved"
	}
}

// NoSlot marks a Location whose Slot is not an ivar slot at all: codegen
// must perform a name lookup instead of a slot load (spec.md §3).
const NoSlot = 0xFFFF

// Location is the resolution record attached to an IdentExpr by pass 2.
type Location struct {
	Kind LocationKind
	Slot int // ivar/local slot index, or NoSlot
	Nup  int // upvalue hop count, or enclosing-class hop count
}

// UpvalueEntry records one captured-variable chain link, per spec.md's
// upvalue entry.
type UpvalueEntry struct {
	Captured      Node // the *VarDecl (or *ParamDecl) being captured
	IndexInTarget int  // IsDirect: the enclosing function's local slot; else its upvalue index
	SelfIndex     int  // index into the referencing function's own upvalue list
	IsDirect      bool // true: captures a local of the immediately enclosing function
}

// Chunk is the root of one parsed file: a list-statement node (spec.md
// §4.2) plus file-level bookkeeping (name, EOF position, optional comments).
type Chunk struct {
	Name        string
	Comments    []*Comment
	List        *ListStmt
	EOF         token.Pos
	UnitTests   []UnitTest
	Annotations []TypeAnnotation
}

// TypeAnnotation is one `name: Type` annotation collected during the parse.
// Annotations are stored, never enforced (spec.md §1's non-goals); they are
// forwarded to the host's OnTypeAnnotation callback for tooling.
type TypeAnnotation struct {
	Pos      token.Pos
	Name     string
	TypeName string
}

// UnitTest is one #unittest macro's collected expectations (spec.md §4.2).
// Values that the spec asks to be converted to "a runtime value" are kept as
// raw literal AST here; lang/object's construction API performs the actual
// conversion once a compiler is driving the parse.
type UnitTest struct {
	Pos      token.Pos
	Name     string
	Note     string
	Error    string
	ErrorRow int
	ErrorCol int
	Result   Expr // nil, or a *LiteralExpr / *KeywordExpr
}

func (n *Chunk) Format(f fmt.State, verb rune) {
	lbl := "chunk"
	if n.Name != "" {
		lbl += " " + strings.ReplaceAll(n.Name, string(os.PathSeparator), "/")
	}
	format(f, verb, n, lbl, nil)
}
func (n *Chunk) Span() (start, end token.Pos) {
	if n.List != nil {
		return n.List.Span()
	}
	return n.EOF, n.EOF
}
func (n *Chunk) Walk(v Visitor) {
	if n.List != nil {
		Walk(v, n.List)
	}
}

// Comment is a single scanned comment, associated with the node it most
// likely documents (only populated when comment parsing is requested).
type Comment struct {
	Node     Node
	Start    token.Pos
	Raw, Val string
}

func (n *Comment) Format(f fmt.State, verb rune) { format(f, verb, n, "comment "+n.Val, nil) }
func (n *Comment) Span() (start, end token.Pos)  { return n.Start, n.Start + token.Pos(len(n.Raw)) }
func (n *Comment) Walk(_ Visitor)                {}

// ListStmt is the global statement sequence at the top of a file: it
// introduces no new lexical scope of its own (its bindings live in the
// global symbol table), unlike CompoundStmt.
type ListStmt struct {
	Start, End token.Pos
	Stmts      []Stmt
	Scope      any // *resolver.Scope, set by pass 1

	// NLocals is the number of register slots the module-init function
	// needs for top-level block/loop locals (slot 0 is the module's
	// implicit self), set by the resolver.
	NLocals int
}

func (n *ListStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "list", map[string]int{"stmts": len(n.Stmts)})
}
func (n *ListStmt) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *ListStmt) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}
func (n *ListStmt) BlockEnding() bool { return false }

// CompoundStmt is a brace-delimited block. CloseSlot is the minimum captured
// local slot to CLOSE on scope exit, or -1 if nothing in the block was
// captured as an upvalue (spec.md §4.5 "scope close tracking").
type CompoundStmt struct {
	Lbrace, Rbrace token.Pos
	Stmts          []Stmt
	Scope          any
	CloseSlot      int
}

func (n *CompoundStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "block", map[string]int{"stmts": len(n.Stmts)})
}
func (n *CompoundStmt) Span() (start, end token.Pos) { return n.Lbrace, n.Rbrace }
func (n *CompoundStmt) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}
func (n *CompoundStmt) BlockEnding() bool { return false }
