package ast

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/lang/token"
)

// BinaryExpr represents a binary operator expression, e.g. x + y. Range
// literals (x..<y, x...y) are also BinaryExpr with Op == RANGE_EXCL/INCL.
type BinaryExpr struct {
	Left  Expr
	Op    token.Token
	OpPos token.Pos
	Right Expr
}

func (n *BinaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binary "+n.Op.GoString(), nil)
}
func (n *BinaryExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *BinaryExpr) Walk(v Visitor) { Walk(v, n.Left); Walk(v, n.Right) }
func (n *BinaryExpr) expr()          {}

// AssignExpr represents an assignment. Compound operators (+=, -=, …) are
// rewritten by the parser to Op == token.ASSIGN with Right wrapping a fresh
// BinaryExpr of the original operator over a duplicated Left (spec.md
// §4.2); OrigOp retains the source operator for diagnostics/printing.
type AssignExpr struct {
	Left   Expr
	Op     token.Token
	OrigOp token.Token
	OpPos  token.Pos
	Right  Expr
}

func (n *AssignExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "assign "+n.OrigOp.GoString(), nil)
}
func (n *AssignExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *AssignExpr) Walk(v Visitor) { Walk(v, n.Left); Walk(v, n.Right) }
func (n *AssignExpr) expr()          {}

// UnaryExpr represents a prefix unary operator expression, e.g. -x, !x, ~x.
type UnaryExpr struct {
	Op    token.Token
	OpPos token.Pos
	Expr  Expr
}

func (n *UnaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "unary "+n.Op.GoString(), nil)
}
func (n *UnaryExpr) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.OpPos, end
}
func (n *UnaryExpr) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *UnaryExpr) expr()          {}

// FileExpr represents a `file.a.b.c` qualified reference.
type FileExpr struct {
	File  token.Pos
	Names []string
}

func (n *FileExpr) Format(f fmt.State, verb rune) {
	lbl := "file"
	for _, name := range n.Names {
		lbl += "." + name
	}
	format(f, verb, n, lbl, nil)
}
func (n *FileExpr) Span() (start, end token.Pos) {
	end = n.File + token.Pos(len("file"))
	for _, name := range n.Names {
		end += token.Pos(len(name) + 1)
	}
	return n.File, end
}
func (n *FileExpr) Walk(_ Visitor) {}
func (n *FileExpr) expr()          {}

// IdentExpr represents an identifier reference. Decl, Loc and Upvalue are
// populated by pass 2; they are nil/zero until then.
type IdentExpr struct {
	Pos       token.Pos
	Name      string
	Secondary string // set for qualified member-style references, else ""

	Decl    Node // the declaration this name resolved to
	Loc     Location
	Upvalue *UpvalueEntry

	IsLValue bool // set by the parser/resolver when used as an assignment target
}

func (n *IdentExpr) Format(f fmt.State, verb rune) { format(f, verb, n, n.Name, nil) }
func (n *IdentExpr) Span() (start, end token.Pos) {
	return n.Pos, n.Pos + token.Pos(len(n.Name))
}
func (n *IdentExpr) Walk(_ Visitor) {}
func (n *IdentExpr) expr()          {}

// LiteralExpr represents an int, float, string, or string-interpolation
// literal. Kind selects which payload field is meaningful; for an
// interpolated string, Parts holds the component sub-expressions that
// codegen lowers to list.join() (spec.md §4.7).
type LiteralExpr struct {
	Kind  token.Token // INT, FLOAT, or STRING
	Pos   token.Pos
	Raw   string
	Int   int64
	Float float64
	Str   string
	Parts []Expr // non-nil only for an interpolated string literal
}

func (n *LiteralExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, n.Kind.String()+" "+n.Raw, nil)
}
func (n *LiteralExpr) Span() (start, end token.Pos) {
	return n.Pos, n.Pos + token.Pos(len(n.Raw))
}
func (n *LiteralExpr) Walk(v Visitor) {
	for _, p := range n.Parts {
		Walk(v, p)
	}
}
func (n *LiteralExpr) expr() {}

// IsInterpolated reports whether n is a string built from interpolated
// component expressions rather than a plain string literal.
func (n *LiteralExpr) IsInterpolated() bool { return len(n.Parts) > 0 }

// KeywordExpr represents one of the keyword literals that are not plain
// values: null, true, false, super, undefined, _func, _args.
type KeywordExpr struct {
	Kind token.Token
	Pos  token.Pos
}

func (n *KeywordExpr) Format(f fmt.State, verb rune) { format(f, verb, n, n.Kind.String(), nil) }
func (n *KeywordExpr) Span() (start, end token.Pos) {
	return n.Pos, n.Pos + token.Pos(len(n.Kind.String()))
}
func (n *KeywordExpr) Walk(_ Visitor) {}
func (n *KeywordExpr) expr()          {}

// ListExpr represents a list literal `[a, b, c]` or, when IsMap is true, a
// map literal `{ k: v, ... }` (parallel Keys/Values, spec.md §3).
type ListExpr struct {
	IsMap  bool
	Lbrack token.Pos
	Keys   []Expr // len(Keys) == len(Values) when IsMap; nil otherwise
	Values []Expr
	Rbrack token.Pos
}

func (n *ListExpr) Format(f fmt.State, verb rune) {
	lbl := "list"
	if n.IsMap {
		lbl = "map"
	}
	format(f, verb, n, lbl, map[string]int{"items": len(n.Values)})
}
func (n *ListExpr) Span() (start, end token.Pos) {
	return n.Lbrack, n.Rbrack + 1
}
func (n *ListExpr) Walk(v Visitor) {
	for i, val := range n.Values {
		if n.IsMap && n.Keys[i] != nil {
			Walk(v, n.Keys[i])
		}
		Walk(v, val)
	}
}
func (n *ListExpr) expr() {}

// PostfixOp is one link of a PostfixExpr chain: CallOp, SubscriptOp, or
// AccessOp.
type PostfixOp interface {
	Node
	postfixOp()
}

// CallOp represents `(args)` or a bang-call `!` applied to the preceding
// link of a postfix chain.
type CallOp struct {
	Bang   token.Pos // valid if this is a '!' call
	Lparen token.Pos
	Args   []Expr
	Rparen token.Pos
}

func (n *CallOp) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args)})
}
func (n *CallOp) Span() (start, end token.Pos) {
	if n.Bang.IsValid() {
		return n.Bang, n.Bang + 1
	}
	return n.Lparen, n.Rparen + 1
}
func (n *CallOp) Walk(v Visitor) {
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *CallOp) postfixOp() {}

// SubscriptOp represents `[index]`.
type SubscriptOp struct {
	Lbrack token.Pos
	Index  Expr
	Rbrack token.Pos
}

func (n *SubscriptOp) Format(f fmt.State, verb rune) { format(f, verb, n, "[index]", nil) }
func (n *SubscriptOp) Span() (start, end token.Pos)  { return n.Lbrack, n.Rbrack + 1 }
func (n *SubscriptOp) Walk(v Visitor)                { Walk(v, n.Index) }
func (n *SubscriptOp) postfixOp()                    {}

// AccessOp represents `.name`.
type AccessOp struct {
	Dot  token.Pos
	Name *IdentExpr
}

func (n *AccessOp) Format(f fmt.State, verb rune) { format(f, verb, n, "."+n.Name.Name, nil) }
func (n *AccessOp) Span() (start, end token.Pos)  { return n.Dot, n.Name.Span2End() }
func (n *AccessOp) Walk(v Visitor)                { Walk(v, n.Name) }
func (n *AccessOp) postfixOp()                    {}

// Span2End returns just the end position of the identifier's span, a small
// helper so AccessOp.Span doesn't need to discard the unused start value.
func (n *IdentExpr) Span2End() token.Pos {
	_, end := n.Span()
	return end
}

// PostfixExpr represents a chain `base(s1)(s2)[s3].s4`. Codegen walks Ops in
// order, computing a fresh self_register at each link (spec.md §4.7).
type PostfixExpr struct {
	Base Expr
	Ops  []PostfixOp
}

func (n *PostfixExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "postfix", map[string]int{"ops": len(n.Ops)})
}
func (n *PostfixExpr) Span() (start, end token.Pos) {
	start, _ = n.Base.Span()
	if len(n.Ops) == 0 {
		_, end = n.Base.Span()
		return start, end
	}
	_, end = n.Ops[len(n.Ops)-1].Span()
	return start, end
}
func (n *PostfixExpr) Walk(v Visitor) {
	Walk(v, n.Base)
	for _, op := range n.Ops {
		Walk(v, op)
	}
}
func (n *PostfixExpr) expr() {}
