package ast

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/lang/token"
)

// ExprStmt is an expression used as a statement: only a call (possibly a
// PostfixExpr ending in a CallOp) or an AssignExpr is valid here; the
// resolver rejects anything else (spec.md §4.2 "default = expression
// statement").
type ExprStmt struct {
	Expr Expr
}

func (n *ExprStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "expr stmt", nil) }
func (n *ExprStmt) Span() (start, end token.Pos)  { return n.Expr.Span() }
func (n *ExprStmt) Walk(v Visitor)                { Walk(v, n.Expr) }
func (n *ExprStmt) BlockEnding() bool             { return false }

// EmptyStmt represents a bare `;`.
type EmptyStmt struct {
	Semi token.Pos
}

func (n *EmptyStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "empty", nil) }
func (n *EmptyStmt) Span() (start, end token.Pos)  { return n.Semi, n.Semi + 1 }
func (n *EmptyStmt) Walk(_ Visitor)                {}
func (n *EmptyStmt) BlockEnding() bool             { return false }

// ImportStmt represents an `import` declaration.
type ImportStmt struct {
	Import token.Pos
	Path   []string
	Semi   token.Pos
}

func (n *ImportStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "import", nil) }
func (n *ImportStmt) Span() (start, end token.Pos)  { return n.Import, n.Semi }
func (n *ImportStmt) Walk(_ Visitor)                {}
func (n *ImportStmt) BlockEnding() bool             { return false }

// JumpStmt represents break, continue, or return (with an optional
// expression).
type JumpStmt struct {
	Kind token.Token // BREAK, CONTINUE, RETURN
	Pos  token.Pos
	Expr Expr // non-nil only for RETURN with a value
}

func (n *JumpStmt) Format(f fmt.State, verb rune) { format(f, verb, n, n.Kind.String(), nil) }
func (n *JumpStmt) Span() (start, end token.Pos) {
	end = n.Pos + token.Pos(len(n.Kind.String()))
	if n.Expr != nil {
		_, end = n.Expr.Span()
	}
	return n.Pos, end
}
func (n *JumpStmt) Walk(v Visitor) {
	if n.Expr != nil {
		Walk(v, n.Expr)
	}
}
func (n *JumpStmt) BlockEnding() bool { return true }

// CaseClause is one `case expr:` or `default:` arm of a SwitchStmt.
type CaseClause struct {
	Case    token.Pos // 0 for default
	Default token.Pos // 0 for case
	Expr    Expr      // nil for default
	Colon   token.Pos
	Body    []Stmt
	LabelID int
}

func (n *CaseClause) Format(f fmt.State, verb rune) {
	lbl := "case"
	if n.Expr == nil {
		lbl = "default"
	}
	format(f, verb, n, lbl, map[string]int{"body": len(n.Body)})
}
func (n *CaseClause) Span() (start, end token.Pos) {
	start = n.Case
	if n.Expr == nil {
		start = n.Default
	}
	end = n.Colon + 1
	if len(n.Body) > 0 {
		_, end = n.Body[len(n.Body)-1].Span()
	}
	return start, end
}
func (n *CaseClause) Walk(v Visitor) {
	if n.Expr != nil {
		Walk(v, n.Expr)
	}
	for _, s := range n.Body {
		Walk(v, s)
	}
}
func (n *CaseClause) BlockEnding() bool { return false }

// IfStmt represents `if (cond) then [else else_]`.
type IfStmt struct {
	If   token.Pos
	Cond Expr
	Then Stmt
	Else Stmt // nil, or another *IfStmt for else-if, or a *CompoundStmt
}

func (n *IfStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "if", map[string]int{"else": boolCount(n.Else != nil)})
}
func (n *IfStmt) Span() (start, end token.Pos) {
	_, end = n.Then.Span()
	if n.Else != nil {
		_, end = n.Else.Span()
	}
	return n.If, end
}
func (n *IfStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Then)
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (n *IfStmt) BlockEnding() bool { return false }

// SwitchStmt represents `switch (cond) { case ...; default ...; }`.
type SwitchStmt struct {
	Switch  token.Pos
	Cond    Expr
	Lbrace  token.Pos
	Clauses []*CaseClause
	Rbrace  token.Pos
}

func (n *SwitchStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "switch", map[string]int{"clauses": len(n.Clauses)})
}
func (n *SwitchStmt) Span() (start, end token.Pos) { return n.Switch, n.Rbrace + 1 }
func (n *SwitchStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	for _, c := range n.Clauses {
		Walk(v, c)
	}
}
func (n *SwitchStmt) BlockEnding() bool { return false }

// TernaryExpr represents `cond ? then : else` as an expression (shares the
// cond/then/else shape of IfStmt/SwitchStmt per spec.md's "flow" family, but
// is a distinct Go type since it is an Expr, not a Stmt).
type TernaryExpr struct {
	Cond     Expr
	Question token.Pos
	Then     Expr
	Colon    token.Pos
	Else     Expr
}

func (n *TernaryExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "ternary", nil) }
func (n *TernaryExpr) Span() (start, end token.Pos) {
	start, _ = n.Cond.Span()
	_, end = n.Else.Span()
	return start, end
}
func (n *TernaryExpr) Walk(v Visitor) { Walk(v, n.Cond); Walk(v, n.Then); Walk(v, n.Else) }
func (n *TernaryExpr) expr()          {}

// WhileStmt represents `while (cond) body`.
type WhileStmt struct {
	While     token.Pos
	Cond      Expr
	Body      *CompoundStmt
	CloseSlot int // -1 if nothing captured
}

func (n *WhileStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "while", nil) }
func (n *WhileStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.While, end
}
func (n *WhileStmt) Walk(v Visitor)    { Walk(v, n.Cond); Walk(v, n.Body) }
func (n *WhileStmt) BlockEnding() bool { return false }

// RepeatStmt represents `repeat { body } while (cond)`: a do-while loop that
// reuses the `while` keyword for its trailing condition rather than
// introducing an `until` keyword (spec.md §6.1's keyword list has no
// `until`); codegen's test-after-body ordering (spec.md §4.7) is what makes
// it a repeat-loop rather than a second WhileStmt shape.
type RepeatStmt struct {
	Repeat    token.Pos
	Body      *CompoundStmt
	While     token.Pos
	Cond      Expr
	CloseSlot int
}

func (n *RepeatStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "repeat", nil) }
func (n *RepeatStmt) Span() (start, end token.Pos) {
	_, end = n.Cond.Span()
	return n.Repeat, end
}

func (n *RepeatStmt) Walk(v Visitor)    { Walk(v, n.Body); Walk(v, n.Cond) }
func (n *RepeatStmt) BlockEnding() bool { return false }

// ForInStmt represents `for (x in expr) body`. Exactly one of Decl/Ident is
// set: a fresh `var` with no initializer, or a reference to an existing
// local (spec.md §4.5).
type ForInStmt struct {
	For       token.Pos
	Decl      *VarDecl
	Ident     *IdentExpr
	In        token.Pos
	Expr      Expr
	Body      *CompoundStmt
	CloseSlot int
}

func (n *ForInStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "for-in", nil) }
func (n *ForInStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.For, end
}
func (n *ForInStmt) Walk(v Visitor) {
	if n.Decl != nil {
		Walk(v, n.Decl)
	} else {
		Walk(v, n.Ident)
	}
	Walk(v, n.Expr)
	Walk(v, n.Body)
}
func (n *ForInStmt) BlockEnding() bool { return false }

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
