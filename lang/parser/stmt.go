package parser

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// parseListStmt parses the top-level (or #include-continued) statement
// sequence up to until (normally token.EOF), producing the global ListStmt
// (spec.md §4.2's "global statement sequence").
func (p *parser) parseListStmt(until token.Token) *ast.ListStmt {
	start := p.val.Pos
	var stmts []ast.Stmt
	for p.tok != until && p.tok != token.EOF {
		if s := p.parseStmtRecover(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return &ast.ListStmt{Start: start, End: p.val.Pos, Stmts: stmts}
}

// parseStmtRecover parses one statement, recovering from a syntax error by
// skipping to the next safe resumption point (spec.md §4.2's "recovers by
// consuming one token and resuming at statement level").
func (p *parser) parseStmtRecover() (s ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(errPanicMode); ok {
				p.syncAfterError()
				s = nil
				return
			}
			panic(r)
		}
	}()
	return p.parseStmt()
}

func (p *parser) parseStmt() ast.Stmt {
	switch p.tok {
	case token.SEMI:
		pos := p.expect(token.SEMI)
		return &ast.EmptyStmt{Semi: pos}
	case token.LBRACE:
		return p.parseCompoundStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.SWITCH:
		return p.parseSwitchStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.REPEAT:
		return p.parseRepeatStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.BREAK, token.CONTINUE, token.RETURN:
		return p.parseJumpStmt()
	case token.IMPORT:
		return p.parseImportStmt()
	case token.MACRO:
		return p.parseMacroStmt()
	case token.SPECIAL:
		return p.parseSpecialStmt()
	case token.PRIVATE, token.INTERNAL, token.PUBLIC, token.STATIC, token.EXTERN, token.LAZY,
		token.FUNC, token.VAR, token.CONST, token.CLASS, token.STRUCT, token.ENUM, token.MODULE, token.EVENT:
		return p.parseDeclStmt()
	default:
		return p.parseExprStmt()
	}
}

// parseCompoundStmt parses a single "{ ... }" compound block, the body shape
// of functions and of while/repeat/for loops (an if/else arm also accepts a
// single statement, and a switch case body is a bare statement list).
func (p *parser) parseCompoundStmt() *ast.CompoundStmt {
	lb := p.expect(token.LBRACE)
	var stmts []ast.Stmt
	for p.tok != token.RBRACE && p.tok != token.EOF {
		if s := p.parseStmtRecover(); s != nil {
			stmts = append(stmts, s)
		}
	}
	rb := p.expect(token.RBRACE)
	return &ast.CompoundStmt{Lbrace: lb, Rbrace: rb, Stmts: stmts, CloseSlot: -1}
}

// stmtOrCompound accepts either a brace-delimited block or a single
// statement, for an if/else arm that does not require braces.
func (p *parser) stmtOrCompound() ast.Stmt {
	if p.tok == token.LBRACE {
		return p.parseCompoundStmt()
	}
	return p.parseStmt()
}

func (p *parser) parseIfStmt() ast.Stmt {
	ifPos := p.expect(token.IF)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	then := p.stmtOrCompound()

	var els ast.Stmt
	if _, ok := p.accept(token.ELSE); ok {
		if p.tok == token.IF {
			els = p.parseIfStmt()
		} else {
			els = p.stmtOrCompound()
		}
	}
	return &ast.IfStmt{If: ifPos, Cond: cond, Then: then, Else: els}
}

func (p *parser) parseSwitchStmt() ast.Stmt {
	sw := p.expect(token.SWITCH)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	lb := p.expect(token.LBRACE)

	var clauses []*ast.CaseClause
	sawDefault := false
	id := 0
	for p.tok == token.CASE || p.tok == token.DEFAULT {
		cl := p.parseCaseClause(id)
		if cl.Expr == nil {
			if sawDefault {
				p.error(cl.Default, "multiple default clauses in switch")
			}
			sawDefault = true
		}
		clauses = append(clauses, cl)
		id++
	}
	rb := p.expect(token.RBRACE)
	return &ast.SwitchStmt{Switch: sw, Cond: cond, Lbrace: lb, Clauses: clauses, Rbrace: rb}
}

func (p *parser) parseCaseClause(id int) *ast.CaseClause {
	var casePos, defPos token.Pos
	var expr ast.Expr
	if p.tok == token.CASE {
		casePos = p.expect(token.CASE)
		expr = p.parseExpr()
	} else {
		defPos = p.expect(token.DEFAULT)
	}
	colon := p.expect(token.COLON)

	var body []ast.Stmt
	for p.tok != token.CASE && p.tok != token.DEFAULT && p.tok != token.RBRACE && p.tok != token.EOF {
		if s := p.parseStmtRecover(); s != nil {
			body = append(body, s)
		}
	}
	return &ast.CaseClause{Case: casePos, Default: defPos, Expr: expr, Colon: colon, Body: body, LabelID: id}
}

func (p *parser) parseWhileStmt() ast.Stmt {
	w := p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseCompoundStmt()
	return &ast.WhileStmt{While: w, Cond: cond, Body: body, CloseSlot: -1}
}

// parseRepeatStmt parses `repeat { body } while (cond)`, a do-while loop
// (ast.RepeatStmt's doc comment explains the keyword reuse).
func (p *parser) parseRepeatStmt() ast.Stmt {
	r := p.expect(token.REPEAT)
	body := p.parseCompoundStmt()
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	p.optionalSemi()
	return &ast.RepeatStmt{Repeat: r, Body: body, Cond: cond, CloseSlot: -1}
}

// parseForStmt parses `for (x in expr) { body }`; x is either a bare
// identifier referencing an existing local, or `var x` declaring a fresh
// one scoped to the loop (spec.md §4.5).
func (p *parser) parseForStmt() ast.Stmt {
	forPos := p.expect(token.FOR)
	p.expect(token.LPAREN)

	var decl *ast.VarDecl
	var ident *ast.IdentExpr
	if _, ok := p.accept(token.VAR); ok {
		name := p.parseIdent()
		decl = &ast.VarDecl{Name: name, Slot: -1}
	} else {
		ident = p.parseIdent()
	}
	inPos := p.expect(token.IN)
	expr := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseCompoundStmt()
	return &ast.ForInStmt{For: forPos, Decl: decl, Ident: ident, In: inPos, Expr: expr, Body: body, CloseSlot: -1}
}

func (p *parser) parseJumpStmt() ast.Stmt {
	kind, pos := p.tok, p.val.Pos
	p.advance()

	var expr ast.Expr
	if kind == token.RETURN && p.tok != token.SEMI && p.tok != token.RBRACE && p.tok != token.EOF {
		expr = p.parseExpr()
	}
	p.optionalSemi()
	return &ast.JumpStmt{Kind: kind, Pos: pos, Expr: expr}
}

// parseImportStmt parses `import a.b.c;`, a dotted module path.
func (p *parser) parseImportStmt() ast.Stmt {
	imp := p.expect(token.IMPORT)
	var path []string
	name := p.val.Raw
	p.expect(token.IDENT)
	path = append(path, name)
	for {
		if _, ok := p.accept(token.DOT); !ok {
			break
		}
		path = append(path, p.val.Raw)
		p.expect(token.IDENT)
	}
	end := p.val.Pos
	p.optionalSemi()
	return &ast.ImportStmt{Import: imp, Path: path, Semi: end}
}

// parseSpecialStmt handles a bare `@` token (spec.md §4.1's one-character
// SPECIAL token); kestrel reserves it like gravity does, without assigning
// it a meaning, so it is a no-op empty statement rather than a hard error.
func (p *parser) parseSpecialStmt() ast.Stmt {
	pos := p.expect(token.SPECIAL)
	p.optionalSemi()
	return &ast.EmptyStmt{Semi: pos}
}

func (p *parser) parseExprStmt() ast.Stmt {
	e := p.parseExpr()
	p.optionalSemi()
	return &ast.ExprStmt{Expr: e}
}
