package parser

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// parseExpr parses a full expression (spec.md §4.2's parse_precedence(0)).
func (p *parser) parseExpr() ast.Expr { return p.parseBinExpr(token.LowestPrec) }

// parseBinExpr is the Pratt loop: parse a unary/postfix operand, then
// repeatedly fold in infix operators (binary, assignment, ternary) whose
// precedence exceeds limit (spec.md §4.2).
func (p *parser) parseBinExpr(limit int) ast.Expr {
	left := p.parseUnary()
	for {
		prec := p.tok.InfixPrecedence()
		if prec <= limit {
			return left
		}
		switch {
		case p.tok == token.QUESTION:
			left = p.parseTernary(left)
		case p.tok.IsAssignOp():
			left = p.parseAssign(left, prec)
		default:
			left = p.parseBinOp(left, prec)
		}
	}
}

// rightAssoc reports whether tok's recursive-descent call should be fed
// prec-1 instead of prec, making it right-associative. Logical AND/OR are
// right-associative per spec.md §4.2; assignment is handled separately in
// parseAssign (always right-associative).
func rightAssoc(tok token.Token) bool {
	return tok == token.LAND || tok == token.LOR
}

func (p *parser) parseBinOp(left ast.Expr, prec int) ast.Expr {
	op := p.tok
	pos := p.expect(op)
	nextLimit := prec
	if rightAssoc(op) {
		nextLimit = prec - 1
	}
	right := p.parseBinExpr(nextLimit)
	return &ast.BinaryExpr{Left: left, Op: op, OpPos: pos, Right: right}
}

func (p *parser) parseTernary(cond ast.Expr) ast.Expr {
	qpos := p.expect(token.QUESTION)
	then := p.parseBinExpr(token.LowestPrec)
	colon := p.expect(token.COLON)
	elseE := p.parseBinExpr(token.TernaryPrec - 1)
	return &ast.TernaryExpr{Cond: cond, Question: qpos, Then: then, Colon: colon, Else: elseE}
}

// parseAssign handles '=' and the compound-assignment operators, desugaring
// the latter to `a = a ⊕ rhs` with a duplicated LHS (spec.md §4.2).
func (p *parser) parseAssign(left ast.Expr, prec int) ast.Expr {
	if !ast.IsAssignable(left) {
		start, _ := left.Span()
		p.errorExpected(start, "assignable expression")
	}
	origOp := p.tok
	pos := p.expect(origOp)
	right := p.parseBinExpr(prec - 1) // right-associative

	if origOp == token.ASSIGN {
		return &ast.AssignExpr{Left: left, Op: token.ASSIGN, OrigOp: token.ASSIGN, OpPos: pos, Right: right}
	}

	dup := duplicateLValue(left)
	return &ast.AssignExpr{
		Left: left, Op: token.ASSIGN, OrigOp: origOp, OpPos: pos,
		Right: &ast.BinaryExpr{Left: dup, Op: origOp.BinOpForAssign(), OpPos: pos, Right: right},
	}
}

// duplicateLValue makes a shallow copy of an assignable expression, the Go
// analogue of the teacher's/gravity's refcount-bump LValue duplication: Go
// values need no counting, just an independent node so the rewritten AST
// isn't a DAG.
func duplicateLValue(e ast.Expr) ast.Expr {
	switch v := e.(type) {
	case *ast.IdentExpr:
		cp := *v
		return &cp
	case *ast.FileExpr:
		cp := *v
		return &cp
	case *ast.PostfixExpr:
		cp := *v
		cp.Ops = append([]ast.PostfixOp(nil), v.Ops...)
		return &cp
	default:
		return e
	}
}

func isUnaryOp(tok token.Token) bool {
	switch tok {
	case token.MINUS, token.BANG, token.TILDE, token.PLUS:
		return true
	default:
		return false
	}
}

func (p *parser) parseUnary() ast.Expr {
	if isUnaryOp(p.tok) {
		op := p.tok
		pos := p.expect(op)
		operand := p.parseBinExpr(token.UnaryPrec)
		return &ast.UnaryExpr{Op: op, OpPos: pos, Expr: operand}
	}
	return p.parsePostfixChain()
}

// parsePostfixChain parses a primary expression followed by zero or more
// call/subscript/access/bang-call links (spec.md §3's "postfix" node, §4.7's
// "postfix chain" emission target).
func (p *parser) parsePostfixChain() ast.Expr {
	base := p.parsePrimary()

	var ops []ast.PostfixOp
loop:
	for {
		switch p.tok {
		case token.DOT:
			dot := p.expect(token.DOT)
			name := p.parseIdent()
			ops = append(ops, &ast.AccessOp{Dot: dot, Name: name})

		case token.LBRACK:
			lb := p.expect(token.LBRACK)
			idx := p.parseExpr()
			rb := p.expect(token.RBRACK)
			ops = append(ops, &ast.SubscriptOp{Lbrack: lb, Index: idx, Rbrack: rb})

		case token.LPAREN:
			lp := p.expect(token.LPAREN)
			var args []ast.Expr
			if p.tok != token.RPAREN {
				args = p.parseExprListCommaSep()
			}
			rp := p.expect(token.RPAREN)
			ops = append(ops, &ast.CallOp{Lparen: lp, Args: args, Rparen: rp})

		case token.BANG:
			bang := p.expect(token.BANG)
			ops = append(ops, &ast.CallOp{Bang: bang})

		default:
			break loop
		}
	}

	if len(ops) == 0 {
		return base
	}
	return &ast.PostfixExpr{Base: base, Ops: ops}
}

func (p *parser) parsePrimary() ast.Expr {
	switch p.tok {
	case token.IDENT:
		return p.parseIdent()
	case token.INT, token.FLOAT:
		return p.parseNumberLit()
	case token.STRING:
		return p.parseStringLit()
	case token.NULLKW, token.TRUEKW, token.FALSEKW, token.UNDEFINED, token.SUPER, token.FUNCKW, token.ARGSKW:
		kind, pos := p.tok, p.val.Pos
		p.advance()
		return &ast.KeywordExpr{Kind: kind, Pos: pos}
	case token.FILEKW:
		return p.parseFileExpr()
	case token.LPAREN:
		p.expect(token.LPAREN)
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e
	case token.LBRACK:
		return p.parseListLit()
	case token.LBRACE:
		return p.parseMapLit()
	default:
		pos := p.val.Pos
		p.errorExpected(pos, "expression")
		panic(errPanicMode{})
	}
}

func (p *parser) parseIdent() *ast.IdentExpr {
	name, pos := p.val.Raw, p.val.Pos
	p.expect(token.IDENT)
	return &ast.IdentExpr{Pos: pos, Name: name}
}

func (p *parser) parseNumberLit() *ast.LiteralExpr {
	v, kind := p.val, p.tok
	p.advance()
	lit := &ast.LiteralExpr{Kind: kind, Pos: v.Pos, Raw: v.Raw}
	if kind == token.INT {
		lit.Int = v.Int
	} else {
		lit.Float = v.Float
	}
	return lit
}

// parseStringLit produces a plain string literal. kestrel's lexer (spec.md
// §4.1) never emits an interpolation marker — the interpolated-literal shape
// in the data model exists for codegen's list.join() lowering (spec.md §4.7)
// but, as in gravity itself, nothing on the scanning/parsing side ever
// constructs one: Parts is always nil here.
func (p *parser) parseStringLit() *ast.LiteralExpr {
	v := p.val
	p.advance()
	return &ast.LiteralExpr{Kind: token.STRING, Pos: v.Pos, Raw: v.Raw, Str: v.String}
}

func (p *parser) parseFileExpr() *ast.FileExpr {
	pos := p.expect(token.FILEKW)
	var names []string
	for p.tok == token.DOT {
		p.advance()
		name := p.val.Raw
		p.expect(token.IDENT)
		names = append(names, name)
	}
	return &ast.FileExpr{File: pos, Names: names}
}

func (p *parser) parseListLit() *ast.ListExpr {
	lb := p.expect(token.LBRACK)
	var values []ast.Expr
	for p.tok != token.RBRACK && p.tok != token.EOF {
		values = append(values, p.parseExpr())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	rb := p.expect(token.RBRACK)
	return &ast.ListExpr{Lbrack: lb, Values: values, Rbrack: rb}
}

func (p *parser) parseMapLit() *ast.ListExpr {
	lb := p.expect(token.LBRACE)
	var keys, values []ast.Expr
	for p.tok != token.RBRACE && p.tok != token.EOF {
		var key ast.Expr
		switch p.tok {
		case token.IDENT:
			key = p.parseIdent()
		case token.STRING:
			key = p.parseStringLit()
		case token.LBRACK:
			p.expect(token.LBRACK)
			key = p.parseExpr()
			p.expect(token.RBRACK)
		default:
			p.errorExpected(p.val.Pos, "map key")
			panic(errPanicMode{})
		}
		p.expect(token.COLON)
		val := p.parseExpr()
		keys, values = append(keys, key), append(values, val)
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	rb := p.expect(token.RBRACE)
	return &ast.ListExpr{IsMap: true, Lbrack: lb, Keys: keys, Values: values, Rbrack: rb}
}

func (p *parser) parseExprListCommaSep() []ast.Expr {
	exprs := []ast.Expr{p.parseExpr()}
	for {
		if _, ok := p.accept(token.COMMA); !ok {
			return exprs
		}
		exprs = append(exprs, p.parseExpr())
	}
}
