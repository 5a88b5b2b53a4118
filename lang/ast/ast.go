// Package ast defines the abstract syntax tree produced by lang/parser and
// annotated in place by lang/resolver. It is a closed set of concrete struct
// types implementing Node (and, more specifically, Expr/Stmt), rather than a
// single mutable base type: each variant carries exactly the fields the data
// model calls for, and code that needs to distinguish variants does so with
// a type switch or the Visitor in visitor.go.
package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kestrel-lang/kestrel/lang/token"
)

// Node represents any node in the AST.
type Node interface {
	// Every Node implements fmt.Formatter so it can print a one-line
	// description of itself. Supported verbs are 'v' and 's'; '#' also
	// prints child-count information, a width pads/truncates the label,
	// '-' pads right instead of left, and '+' disables padding.
	fmt.Formatter

	// Span reports the start and end position of the node.
	Span() (start, end token.Pos)

	// Walk visits the node's direct children via v.
	Walk(v Visitor)
}

// Expr represents an expression.
type Expr interface {
	Node
	expr()
}

// Stmt represents a statement, including declarations (which are
// syntactically statements wherever they may appear).
type Stmt interface {
	Node

	// BlockEnding reports whether this statement may only appear as the
	// last statement of a block (return, break, continue).
	BlockEnding() bool
}

// Decl is a Stmt that also declares a name in the enclosing scope.
type Decl interface {
	Stmt
	declNode()
}

// Unwrap strips redundant wrapping there is no ParenExpr variant for in this
// grammar (postfix chains already flatten parens at parse time), so Unwrap is
// the identity function; it exists so call sites written against the
// teacher's idiom (lang/parser, lang/resolver) keep a stable name to call.
func Unwrap(e Expr) Expr { return e }

// IsAssignable reports whether e may appear as the left operand of '=' or a
// compound assignment: an identifier, a file-qualified reference, or a
// postfix chain whose last sub-operation is access or subscript (never
// call), per spec.md §4.5.
func IsAssignable(e Expr) bool {
	switch e := e.(type) {
	case *IdentExpr:
		return true
	case *FileExpr:
		return true
	case *PostfixExpr:
		if len(e.Ops) == 0 {
			return false
		}
		switch e.Ops[len(e.Ops)-1].(type) {
		case *AccessOp, *SubscriptOp:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		if len(runes) >= w {
			runes = runes[:w]
		} else if minus {
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		} else if !plus {
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}
