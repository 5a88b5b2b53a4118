package ast_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

func TestWalkOrder(t *testing.T) {
	ident := &ast.IdentExpr{Pos: 1, Name: "x"}
	lit := &ast.LiteralExpr{Kind: token.INT, Pos: 5, Raw: "1", Int: 1}
	bin := &ast.BinaryExpr{Left: ident, Op: token.PLUS, Right: lit}
	stmt := &ast.ExprStmt{Expr: bin}
	block := &ast.CompoundStmt{Stmts: []ast.Stmt{stmt}, CloseSlot: -1}

	var visited []string
	ast.Walk(ast.VisitorFunc(func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if dir == ast.VisitEnter {
			visited = append(visited, fmt.Sprintf("%T", n))
		}
		return ast.VisitorFunc(func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
			if dir == ast.VisitEnter {
				visited = append(visited, fmt.Sprintf("%T", n))
			}
			return nil
		})
	}), block)

	require.NotEmpty(t, visited)
	assert.Equal(t, "*ast.CompoundStmt", visited[0])
}

func TestIsAssignable(t *testing.T) {
	ident := &ast.IdentExpr{Name: "x"}
	assert.True(t, ast.IsAssignable(ident))

	call := &ast.PostfixExpr{Base: ident, Ops: []ast.PostfixOp{&ast.CallOp{}}}
	assert.False(t, ast.IsAssignable(call))

	access := &ast.PostfixExpr{Base: ident, Ops: []ast.PostfixOp{&ast.AccessOp{Name: &ast.IdentExpr{Name: "y"}}}}
	assert.True(t, ast.IsAssignable(access))
}

func TestFormatVerbs(t *testing.T) {
	ident := &ast.IdentExpr{Pos: 1, Name: "foo"}
	assert.Equal(t, "foo", fmt.Sprintf("%v", ident))
	assert.Equal(t, "%!q(*ast.IdentExpr)", fmt.Sprintf("%q", ident))
}

func TestPrinter(t *testing.T) {
	ident := &ast.IdentExpr{Pos: 1, Name: "x"}
	chunk := &ast.Chunk{
		Name: "t.kes",
		List: &ast.ListStmt{Stmts: []ast.Stmt{&ast.ExprStmt{Expr: ident}}},
	}

	var buf bytes.Buffer
	p := &ast.Printer{Output: &buf}
	require.NoError(t, p.Print(chunk, nil))
	assert.Contains(t, buf.String(), "chunk")
	assert.Contains(t, buf.String(), "x")
}
