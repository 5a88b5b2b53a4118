package parser

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// parseDeclStmt parses an optional access/storage specifier pair followed by
// the declaration keyword dispatch of spec.md §4.2.1. A `func`/`class`/`enum`
// found while already inside a function body is lowered to
// `var <name> = <decl>` so the inner declaration closes over the enclosing
// scope like any other value (spec.md §4.2); `var`/`const`/`module`/`event`
// are never lowered this way.
func (p *parser) parseDeclStmt() ast.Stmt {
	access := p.parseAccessSpec()
	storage := p.parseStorageSpec()
	lowered := p.funcDepth > 0

	switch p.tok {
	case token.FUNC:
		fd := p.parseFuncDecl(access, storage)
		if lowered {
			return wrapInlineVar(fd.Name, fd)
		}
		return fd
	case token.VAR, token.CONST:
		return p.parseVarDeclStmt(access, storage)
	case token.CLASS, token.STRUCT:
		cd := p.parseClassDecl(access, storage)
		if lowered {
			return wrapInlineVar(cd.Name, cd)
		}
		return cd
	case token.ENUM:
		ed := p.parseEnumDecl()
		if lowered {
			return wrapInlineVar(ed.Name, ed)
		}
		return ed
	case token.MODULE:
		return p.parseModuleDecl()
	case token.EVENT:
		return p.parseEventDecl()
	case token.SEMI:
		pos := p.expect(token.SEMI)
		return &ast.EmptyStmt{Semi: pos}
	default:
		p.errorExpected(p.val.Pos, "declaration")
		panic(errPanicMode{})
	}
}

// wrapInlineVar builds the `var <name> = <decl>` lowering of a nested
// func/class/enum declaration (spec.md §4.2).
func wrapInlineVar(name *ast.IdentExpr, decl ast.Decl) ast.Stmt {
	vd := &ast.VarDecl{Name: name, Init: &ast.InlineDeclExpr{Decl: decl}}
	stmt := &ast.VarDeclStmt{Kind: token.VAR, Var: name.Pos, Vars: []*ast.VarDecl{vd}, Semi: name.Pos}
	vd.Parent = stmt
	return stmt
}

func (p *parser) parseAccessSpec() token.Token {
	switch p.tok {
	case token.PRIVATE, token.INTERNAL, token.PUBLIC:
		tok := p.tok
		p.advance()
		return tok
	default:
		return 0
	}
}

func (p *parser) parseStorageSpec() token.Token {
	switch p.tok {
	case token.STATIC, token.EXTERN, token.LAZY:
		tok := p.tok
		p.advance()
		return tok
	default:
		return 0
	}
}

// parseFuncDecl parses a function declaration. The implicit `self`
// parameter is not part of Params (spec.md §4.2 "always begin with an
// implicit self parameter") — it is register 0 at codegen time.
func (p *parser) parseFuncDecl(access, storage token.Token) *ast.FuncDecl {
	funcPos := p.expect(token.FUNC)
	name := p.parseIdent()

	p.enterFunc(name.Name)
	params := p.parseParams()
	body := p.parseCompoundStmt()
	p.exitFunc()

	return &ast.FuncDecl{
		Access: access, Storage: storage, Func: funcPos,
		Name: name, Params: params, Body: body, End: body.Rbrace + 1,
	}
}

// parseParams parses a parenthesized, comma-separated parameter list, each
// with an optional `: Type` annotation (stored, never enforced) and an
// optional default-value expression (spec.md §4.2).
func (p *parser) parseParams() []*ast.ParamDecl {
	p.expect(token.LPAREN)
	var params []*ast.ParamDecl
	for p.tok != token.RPAREN && p.tok != token.EOF {
		name := p.parseIdent()
		pd := &ast.ParamDecl{Name: name}
		if _, ok := p.accept(token.COLON); ok {
			pd.TypeAnnotation = p.val.Raw
			p.annotations = append(p.annotations, ast.TypeAnnotation{Pos: name.Pos, Name: name.Name, TypeName: p.val.Raw})
			p.expect(token.IDENT)
		}
		if _, ok := p.accept(token.ASSIGN); ok {
			pd.Default = p.parseExpr()
		}
		params = append(params, pd)
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.expect(token.RPAREN)
	return params
}

func (p *parser) parseVarDeclStmt(access, storage token.Token) ast.Stmt {
	kind := p.tok
	varPos := p.expect(kind)

	var vars []*ast.VarDecl
	for {
		vars = append(vars, p.parseVarDecl())
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	end := p.val.Pos
	p.optionalSemi()

	stmt := &ast.VarDeclStmt{Kind: kind, Access: access, Storage: storage, Var: varPos, Vars: vars, Semi: end}
	for _, vd := range vars {
		vd.Parent = stmt
	}
	return stmt
}

// parseVarDecl parses one bound name of a var/const declaration: a plain
// optional initializer, or a `{ get {…} set(v) {…} }` computed-property
// block (spec.md §4.2).
func (p *parser) parseVarDecl() *ast.VarDecl {
	name := p.parseIdent()
	vd := &ast.VarDecl{Name: name, Slot: -1}

	if _, ok := p.accept(token.COLON); ok {
		vd.TypeAnnotation = p.val.Raw
		p.annotations = append(p.annotations, ast.TypeAnnotation{Pos: name.Pos, Name: name.Name, TypeName: p.val.Raw})
		p.expect(token.IDENT)
	}

	switch p.tok {
	case token.LBRACE:
		vd.Computed = true
		vd.Getter, vd.Setter = p.parseComputedBody(name.Name)
	case token.ASSIGN:
		p.advance()
		vd.Init = p.parseExpr()
	}
	return vd
}

// parseComputedBody parses the body of a computed property. The getter
// takes only the implicit self parameter; the setter takes self plus
// either an explicit parameter list or a default implicit parameter named
// `value` (spec.md §4.2).
func (p *parser) parseComputedBody(propName string) (getter, setter *ast.FuncDecl) {
	p.expect(token.LBRACE)
	for p.tok != token.RBRACE && p.tok != token.EOF {
		switch {
		case p.tok == token.IDENT && p.val.Raw == "get":
			pos := p.val.Pos
			p.advance()
			p.enterFunc(propName)
			body := p.parseCompoundStmt()
			p.exitFunc()
			getter = &ast.FuncDecl{
				Func: pos, Name: &ast.IdentExpr{Pos: pos, Name: propName},
				Body: body, End: body.Rbrace + 1,
			}

		case p.tok == token.IDENT && p.val.Raw == "set":
			pos := p.val.Pos
			p.advance()
			var params []*ast.ParamDecl
			if p.tok == token.LPAREN {
				params = p.parseParams()
			}
			if len(params) == 0 {
				params = []*ast.ParamDecl{{Name: &ast.IdentExpr{Pos: pos, Name: "value"}}}
			}
			p.enterFunc(propName)
			body := p.parseCompoundStmt()
			p.exitFunc()
			setter = &ast.FuncDecl{
				Func: pos, Name: &ast.IdentExpr{Pos: pos, Name: propName},
				Params: params, Body: body, End: body.Rbrace + 1,
			}

		default:
			p.errorExpected(p.val.Pos, "'get' or 'set'")
			panic(errPanicMode{})
		}
	}
	p.expect(token.RBRACE)
	return getter, setter
}

// parseEnumDecl parses `enum Name { member[, member]* }`. Duplicate
// identifiers and empty bodies are rejected (spec.md §4.2).
func (p *parser) parseEnumDecl() *ast.EnumDecl {
	enumPos := p.expect(token.ENUM)
	name := p.parseIdent()
	p.expect(token.LBRACE)

	var members []*ast.EnumMember
	seen := make(map[string]bool)
	for p.tok != token.RBRACE && p.tok != token.EOF {
		mname := p.parseIdent()
		if seen[mname.Name] {
			p.errorf(mname.Pos, "duplicate enum member %q", mname.Name)
		}
		seen[mname.Name] = true

		m := &ast.EnumMember{Name: mname}
		if _, ok := p.accept(token.ASSIGN); ok {
			m.Value = p.parseEnumValue()
		}
		members = append(members, m)
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	rb := p.expect(token.RBRACE)
	if len(members) == 0 {
		p.error(enumPos, "enum must declare at least one member")
	}
	return &ast.EnumDecl{Enum: enumPos, Name: name, Members: members, End: rb + 1}
}

// parseEnumValue parses an enum member's literal value, folding a leading
// unary +/- into the literal itself (spec.md §4.2).
func (p *parser) parseEnumValue() ast.Expr {
	neg := false
	signPos := p.val.Pos
	if p.tok == token.PLUS || p.tok == token.MINUS {
		neg = p.tok == token.MINUS
		p.advance()
	}

	switch p.tok {
	case token.INT:
		lit := p.parseNumberLit()
		if neg {
			lit.Int, lit.Pos = -lit.Int, signPos
		}
		return lit
	case token.FLOAT:
		lit := p.parseNumberLit()
		if neg {
			lit.Float, lit.Pos = -lit.Float, signPos
		}
		return lit
	case token.STRING:
		if neg {
			p.error(signPos, "unary sign not valid on a string enum value")
		}
		return p.parseStringLit()
	case token.TRUEKW, token.FALSEKW:
		if neg {
			p.error(signPos, "unary sign not valid on a bool enum value")
		}
		kind, pos := p.tok, p.val.Pos
		p.advance()
		return &ast.KeywordExpr{Kind: kind, Pos: pos}
	default:
		p.errorExpected(p.val.Pos, "enum value literal")
		panic(errPanicMode{})
	}
}

// parseClassDecl parses `class`/`struct Name [: [extern] Super] [<Proto,…>]
// { decls }` (spec.md §4.2).
func (p *parser) parseClassDecl(access, storage token.Token) *ast.ClassDecl {
	kind := p.tok
	classPos := p.expect(kind)
	isStruct := kind == token.STRUCT
	name := p.parseIdent()

	var super *ast.IdentExpr
	var externSuper bool
	if _, ok := p.accept(token.COLON); ok {
		if _, ok := p.accept(token.EXTERN); ok {
			externSuper = true
		}
		super = p.parseIdent()
	}

	var protocols []string
	if _, ok := p.accept(token.LT); ok {
		for {
			protocols = append(protocols, p.val.Raw)
			p.expect(token.IDENT)
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
		}
		p.expect(token.GT)
	}

	p.enterClass(name.Name)
	decls, end := p.parseClassBody()
	p.exitClass()

	return &ast.ClassDecl{
		Access: access, Storage: storage, Class: classPos, Name: name,
		IsStruct: isStruct, Super: super, ExternSuper: externSuper,
		Protocols: protocols, Decls: decls, End: end,
	}
}

// parseClassBody parses the brace-delimited member list shared by
// class/struct and module declarations.
func (p *parser) parseClassBody() ([]ast.Stmt, token.Pos) {
	p.expect(token.LBRACE)
	// members sit directly in the class body and are never lowered, even
	// when the class itself is declared inside a function
	savedDepth := p.funcDepth
	p.funcDepth = 0
	var decls []ast.Stmt
	for p.tok != token.RBRACE && p.tok != token.EOF {
		if s := p.parseClassMemberRecover(); s != nil {
			decls = append(decls, s)
		}
	}
	p.funcDepth = savedDepth
	rb := p.expect(token.RBRACE)
	return decls, rb + 1
}

func (p *parser) parseClassMemberRecover() (s ast.Stmt) {
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

// parseModuleDecl parses `module Name { decls }`; lowering to a
// class-with-only-static-members happens later, at codegen time
// (SPEC_FULL.md §5), not here.
func (p *parser) parseModuleDecl() *ast.ModuleDecl {
	modPos := p.expect(token.MODULE)
	name := p.parseIdent()

	p.enterClass(name.Name)
	decls, end := p.parseClassBody()
	p.exitClass()

	return &ast.ModuleDecl{Module: modPos, Name: name, Decls: decls, End: end}
}

// parseEventDecl parses and discards an `event` declaration, reporting it as
// unsupported (spec.md §9's redesign decision: reject cleanly rather than
// the teacher's unreachable-assertion crash).
func (p *parser) parseEventDecl() ast.Stmt {
	eventPos := p.expect(token.EVENT)
	name := p.parseIdent()
	p.skipEventBody()
	p.error(eventPos, "event declarations are not supported")
	return &ast.EmptyStmt{Semi: name.Pos}
}

func (p *parser) skipEventBody() {
	if p.tok == token.LPAREN {
		p.skipBalanced(token.LPAREN, token.RPAREN)
	}
	if p.tok == token.LBRACE {
		p.skipBalanced(token.LBRACE, token.RBRACE)
		return
	}
	p.optionalSemi()
}

// skipBalanced consumes tokens from the current open token through its
// matching close token, inclusive.
func (p *parser) skipBalanced(open, close token.Token) {
	depth := 0
	for {
		switch p.tok {
		case open:
			depth++
		case close:
			depth--
		case token.EOF:
			return
		}
		p.advance()
		if depth == 0 {
			return
		}
	}
}

// parseMacroStmt dispatches a `#` token to #unittest or #include (spec.md
// §4.2); neither contributes a node to the AST.
func (p *parser) parseMacroStmt() ast.Stmt {
	hashPos := p.expect(token.MACRO)
	if p.tok != token.IDENT {
		p.errorExpected(p.val.Pos, "macro name")
		panic(errPanicMode{})
	}
	name := p.val.Raw

	switch name {
	case "unittest":
		p.advance()
		p.parseUnitTestMacro(hashPos)
	case "include":
		p.advance()
		p.parseIncludeMacro(hashPos)
	default:
		p.errorf(p.val.Pos, "unknown macro #%s", name)
		panic(errPanicMode{})
	}
	return nil
}

// parseIncludeMacro parses `#include "path"[, "path"]*`. Determining whether
// the path list continues requires looking one token past it for a comma,
// all still on the current lexer frame; deferCurrentToken parks that
// lookahead token so it resumes correctly once every pushed include frame is
// exhausted, and the paths are pushed in reverse order so the first-listed
// one is processed first (spec.md §4.2).
func (p *parser) parseIncludeMacro(hashPos token.Pos) {
	type includePath struct {
		pos  token.Pos
		path string
	}
	var paths []includePath
	for {
		if p.tok != token.STRING {
			p.errorExpected(p.val.Pos, "include path string")
			panic(errPanicMode{})
		}
		paths = append(paths, includePath{p.val.Pos, p.val.String})
		p.advance()
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
	}
	p.optionalSemi()

	if len(paths) == 0 {
		return
	}
	p.deferCurrentToken()
	for i := len(paths) - 1; i >= 0; i-- {
		p.pushInclude(paths[i].pos, paths[i].path)
	}
	p.advance()
}

// parseUnitTestMacro parses `#unittest { name:"…"; note:"…"; error: ident;
// error_row: int; error_col: int; result: literal; }`, collecting the
// expectations for the host's unit-test delegate (spec.md §4.2). The
// expectation is recorded on the enclosing Chunk's UnitTests, not inline in
// the statement list.
func (p *parser) parseUnitTestMacro(hashPos token.Pos) {
	ut := ast.UnitTest{Pos: hashPos}
	p.expect(token.LBRACE)

	for p.tok != token.RBRACE && p.tok != token.EOF {
		if p.tok != token.IDENT {
			p.errorExpected(p.val.Pos, "unittest field name")
			panic(errPanicMode{})
		}
		field := p.val.Raw
		p.advance()
		p.expect(token.COLON)

		switch field {
		case "name":
			ut.Name = p.expectStringValue()
		case "note":
			ut.Note = p.expectStringValue()
		case "error":
			ut.Error = p.val.Raw
			p.expect(token.IDENT)
		case "error_row":
			ut.ErrorRow = int(p.expectIntValue())
		case "error_col":
			ut.ErrorCol = int(p.expectIntValue())
		case "result":
			ut.Result = p.parseUnitTestResult()
		default:
			p.errorf(p.val.Pos, "unknown #unittest field %q", field)
			panic(errPanicMode{})
		}
		p.optionalSemi()
	}
	p.expect(token.RBRACE)
	p.unitTests = append(p.unitTests, ut)
}

func (p *parser) expectStringValue() string {
	v := p.val.String
	p.expect(token.STRING)
	return v
}

func (p *parser) expectIntValue() int64 {
	v := p.val.Int
	p.expect(token.INT)
	return v
}

func (p *parser) parseUnitTestResult() ast.Expr {
	switch p.tok {
	case token.NULLKW:
		pos := p.val.Pos
		p.advance()
		return &ast.KeywordExpr{Kind: token.NULLKW, Pos: pos}
	case token.TRUEKW, token.FALSEKW:
		kind, pos := p.tok, p.val.Pos
		p.advance()
		return &ast.KeywordExpr{Kind: kind, Pos: pos}
	case token.INT, token.FLOAT:
		return p.parseNumberLit()
	case token.STRING:
		return p.parseStringLit()
	default:
		p.errorExpected(p.val.Pos, "unittest result literal")
		panic(errPanicMode{})
	}
}
