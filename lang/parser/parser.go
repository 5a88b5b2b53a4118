// Package parser implements a recursive-descent parser, with a Pratt
// expression parser at its core, producing the AST defined in lang/ast.
package parser

import (
	"fmt"
	gotoken "go/token"
	"os"
	"strings"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/scanner"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// toGoPosition adapts our own UTF-8-aware token.Position to the
// go/token.Position shape go/scanner.ErrorList requires.
func toGoPosition(p token.Position) gotoken.Position {
	return gotoken.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// FileLoader resolves a #include path to its contents; ParseChunk/ParseFiles
// default it to os.ReadFile.
type FileLoader func(path string) ([]byte, error)

// Mode is a set of bit flags configuring a parse. By default (0), comments
// are discarded as insignificant whitespace.
type Mode uint

// Comments asks the parser to retain source comments on the returned
// Chunk's Comments field instead of discarding them.
const Comments Mode = 1 << iota

// ParseFiles parses each of the given source files into its own *ast.Chunk,
// sharing one token.FileSet for position reporting. The returned error, if
// non-nil, is a scanner.ErrorList.
func ParseFiles(mode Mode, files ...string) (*token.FileSet, []*ast.Chunk, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	var p parser
	p.loader = os.ReadFile
	p.parseComments = mode&Comments != 0
	fs := token.NewFileSet()
	p.fset = fs

	chunks := make([]*ast.Chunk, 0, len(files))
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			p.errors.Add(toGoPosition(token.Position{Filename: file}), err.Error())
			continue
		}
		chunks = append(chunks, p.parseOneFile(file, b))
	}
	p.errors.Sort()
	return fs, chunks, p.errors.Err()
}

// ParseChunk parses a single source buffer, registering it in fset under
// filename, and returns its AST. The returned error, if non-nil, is a
// scanner.ErrorList.
func ParseChunk(fset *token.FileSet, mode Mode, filename string, src []byte) (*ast.Chunk, error) {
	var p parser
	p.loader = os.ReadFile
	p.parseComments = mode&Comments != 0
	p.fset = fset
	ch := p.parseOneFile(filename, src)
	p.errors.Sort()
	return ch, p.errors.Err()
}

func (p *parser) parseOneFile(filename string, src []byte) *ast.Chunk {
	f := p.fset.AddFile(filename, -1, len(src))
	p.stack = p.stack[:0]
	p.unitTests = p.unitTests[:0]
	p.annotations = p.annotations[:0]
	p.pendingComments = p.pendingComments[:0]
	p.pushFrame(f, src)
	p.lastErrFile, p.lastErrLine = "", 0
	p.funcDepth, p.classDepth = 0, 0
	p.advance()

	ch := &ast.Chunk{Name: filename}
	ch.List = p.parseListStmt(token.EOF)
	ch.EOF = p.val.Pos
	ch.UnitTests = append([]ast.UnitTest(nil), p.unitTests...)
	ch.Annotations = append([]ast.TypeAnnotation(nil), p.annotations...)
	if p.parseComments {
		for i := range p.pendingComments {
			p.pendingComments[i].Node = ch
		}
		ch.Comments = append([]*ast.Comment(nil), p.pendingComments...)
	}
	return ch
}

// lexFrame is one entry of the #include lexer stack (spec.md §4.1). pending
// holds a token already fetched from this frame before a nested #include
// pushed new frames on top of it (multi-path `#include "a", "b"` needs to
// look one token past the path list, on the *current* frame, to check for a
// trailing comma); advance() replays it instead of rescanning once control
// returns to this frame.
type lexFrame struct {
	sc   scanner.Scanner
	file *token.File

	pending    bool
	pendingTok token.Token
	pendingVal token.Value
}

// parser holds all mutable state for parsing one top-level chunk (including
// any files pulled in transitively by #include).
type parser struct {
	fset   *token.FileSet
	loader FileLoader
	stack  []*lexFrame
	errors scanner.ErrorList

	tok token.Token
	val token.Value

	// one-error-per-line suppressor (spec.md §4.2).
	lastErrFile string
	lastErrLine int

	// funcDepth lets statement parsing decide whether a nested
	// func/class/enum declaration must be treated as a plain declaration
	// (top level, or directly inside a class/module body, where
	// parseClassBody resets it to zero) or lowered to a `var <name> = ...`
	// binding (inside a function body, so it closes over the enclosing scope
	// as a value — spec.md §4.2). classDepth counts class/module nesting.
	funcDepth  int
	classDepth int

	classNames []string // for __CLASS__ substitution
	funcNames  []string // for __FUNCTION__ substitution

	unitTests   []ast.UnitTest
	annotations []ast.TypeAnnotation

	// parseComments and pendingComments implement the Comments mode: every
	// comment token Scan produces is filtered out of the token stream by
	// advance() and, when parseComments is set, recorded here instead of
	// being dropped. parseOneFile attaches them all to the finished Chunk.
	parseComments   bool
	pendingComments []*ast.Comment
}

func (p *parser) curFrame() *lexFrame  { return p.stack[len(p.stack)-1] }
func (p *parser) curFile() *token.File { return p.curFrame().file }

func (p *parser) pushFrame(f *token.File, src []byte) {
	frame := &lexFrame{file: f}
	frame.sc.Init(f, src, scanner.ErrAdder(&p.errors))
	p.stack = append(p.stack, frame)
}

// advance scans the next token, transparently popping finished #include
// frames (spec.md §4.1's lexer-stack include semantics) and filtering out
// comment tokens (collecting them when parseComments is set).
func (p *parser) advance() {
	for {
		top := p.curFrame()
		if top.pending {
			top.pending = false
			p.tok, p.val = top.pendingTok, top.pendingVal
			return
		}
		p.tok = top.sc.Scan(&p.val)
		if p.tok == token.COMMENT {
			if p.parseComments {
				p.pendingComments = append(p.pendingComments, &ast.Comment{
					Start: p.val.Pos,
					Raw:   p.val.Raw,
					Val:   p.val.String,
				})
			}
			continue
		}
		if p.tok == token.EOF && len(p.stack) > 1 {
			p.stack = p.stack[:len(p.stack)-1]
			continue
		}
		return
	}
}

// deferCurrentToken parks the current lookahead token on the current (not
// yet popped) frame so that it resumes, unscanned, once every frame pushed
// after this call has been exhausted and control returns here.
func (p *parser) deferCurrentToken() {
	top := p.curFrame()
	top.pending = true
	top.pendingTok, top.pendingVal = p.tok, p.val
}

// pushInclude resolves path via p.loader and, on success, pushes a new lexer
// frame so that the next p.advance() starts yielding its tokens.
func (p *parser) pushInclude(pos token.Pos, path string) {
	b, err := p.loader(path)
	if err != nil {
		p.error(pos, fmt.Sprintf("cannot include %q: %v", path, err))
		return
	}
	f := p.fset.AddFile(path, -1, len(b))
	p.pushFrame(f, b)
}

func (p *parser) enterFunc(name string) {
	p.funcDepth++
	p.funcNames = append(p.funcNames, name)
	p.curFrame().sc.SetContext(p.curClassName(), name)
}

func (p *parser) exitFunc() {
	p.funcDepth--
	p.funcNames = p.funcNames[:len(p.funcNames)-1]
	p.curFrame().sc.SetContext(p.curClassName(), p.curFuncName())
}

func (p *parser) enterClass(name string) {
	p.classDepth++
	p.classNames = append(p.classNames, name)
	p.curFrame().sc.SetContext(name, p.curFuncName())
}

func (p *parser) exitClass() {
	p.classDepth--
	p.classNames = p.classNames[:len(p.classNames)-1]
	p.curFrame().sc.SetContext(p.curClassName(), p.curFuncName())
}

func (p *parser) curClassName() string {
	if len(p.classNames) == 0 {
		return ""
	}
	return p.classNames[len(p.classNames)-1]
}

func (p *parser) curFuncName() string {
	if len(p.funcNames) == 0 {
		return ""
	}
	return p.funcNames[len(p.funcNames)-1]
}

// errPanicMode is the sentinel panicked with to unwind to the nearest
// statement boundary on a syntax error (teacher's recovery idiom).
type errPanicMode struct{}

// expect consumes the current token if it matches one of toks, reporting an
// error and panicking with errPanicMode{} otherwise; recovered at statement
// level in parseStmt.
func (p *parser) expect(toks ...token.Token) token.Pos {
	pos := p.val.Pos
	for _, t := range toks {
		if p.tok == t {
			p.advance()
			return pos
		}
	}
	p.errorExpected(pos, expectedLabel(toks))
	panic(errPanicMode{})
}

// accept consumes the current token and reports true if it matches tok,
// otherwise leaves the parser state untouched and reports false.
func (p *parser) accept(tok token.Token) (token.Pos, bool) {
	if p.tok != tok {
		return 0, false
	}
	pos := p.val.Pos
	p.advance()
	return pos, true
}

func expectedLabel(toks []token.Token) string {
	var b strings.Builder
	if len(toks) > 1 {
		b.WriteString("one of ")
	}
	for i, t := range toks {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.GoString())
	}
	return b.String()
}

func (p *parser) error(pos token.Pos, msg string) {
	lp := p.curFile().Position(pos)
	if lp.Filename == p.lastErrFile && lp.Line == p.lastErrLine {
		return
	}
	p.lastErrFile, p.lastErrLine = lp.Filename, lp.Line
	p.errors.Add(toGoPosition(lp), msg)
}

func (p *parser) errorf(pos token.Pos, format string, args ...any) {
	p.error(pos, fmt.Sprintf(format, args...))
}

func (p *parser) errorExpected(pos token.Pos, what string) {
	msg := "expected " + what
	if pos == p.val.Pos {
		msg += ", found " + p.tok.GoString()
	}
	p.error(pos, msg)
}

// optionalSemi consumes a trailing ';' if present; semicolons are optional
// terminators after most statements (spec.md §4.2).
func (p *parser) optionalSemi() {
	for p.tok == token.SEMI {
		p.advance()
	}
}

func tokenIn(t token.Token, toks ...token.Token) bool {
	for _, x := range toks {
		if t == x {
			return true
		}
	}
	return false
}

// syncMode controls whether syncAfterError consumes the token it
// synchronizes on (syncAfter) or leaves it for the caller (syncAt).
type syncMode int

const (
	syncAfter syncMode = iota
	syncAt
)

// syncToks names the tokens safe to resume parsing at after a syntax error
// (teacher's errPanicMode/syncToks recovery idiom, repointed at kestrel's
// statement-starting keywords).
var syncToks = map[token.Token]syncMode{
	token.SEMI:     syncAfter,
	token.RBRACE:   syncAfter,
	token.IF:       syncAt,
	token.SWITCH:   syncAt,
	token.WHILE:    syncAt,
	token.REPEAT:   syncAt,
	token.FOR:      syncAt,
	token.RETURN:   syncAt,
	token.BREAK:    syncAt,
	token.CONTINUE: syncAt,
	token.VAR:      syncAt,
	token.CONST:    syncAt,
	token.FUNC:     syncAt,
	token.CLASS:    syncAt,
	token.STRUCT:   syncAt,
	token.ENUM:     syncAt,
	token.MODULE:   syncAt,
	token.IMPORT:   syncAt,
}

// syncAfterError advances until a safe resumption point and returns the
// position just past the bad statement.
func (p *parser) syncAfterError() token.Pos {
	for p.tok != token.EOF {
		if mode, ok := syncToks[p.tok]; ok {
			if mode == syncAfter {
				p.advance()
			}
			return p.val.Pos
		}
		p.advance()
	}
	return p.val.Pos
}
