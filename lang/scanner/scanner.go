// Some of the scanner package is adapted from the Go source code:
// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/scanner"
	gotoken "go/token"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kestrel-lang/kestrel/lang/token"
)

// toGoPosition adapts our own UTF-8-aware token.Position to the
// go/token.Position shape go/scanner.ErrorList requires.
func toGoPosition(p token.Position) gotoken.Position {
	return gotoken.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

type (
	Error     = scanner.Error
	ErrorList = scanner.ErrorList
)

var PrintError = scanner.PrintError

// ErrAdder adapts an ErrorList to the error-handler signature Init expects,
// converting our UTF-8-aware token.Position to the go/token form the list
// stores.
func ErrAdder(el *ErrorList) func(token.Position, string) {
	return func(p token.Position, msg string) { el.Add(toGoPosition(p), msg) }
}

// TokenAndValue combines the token type with the token value type in the
// same struct.
type TokenAndValue struct {
	Token token.Token
	Value token.Value
}

// ScanFiles tokenizes the given source files and returns the list of tokens,
// grouped by file at the same index, plus any accumulated error. The error,
// if non-nil, is a scanner.ErrorList.
func ScanFiles(ctx context.Context, files ...string) (*token.FileSet, [][]TokenAndValue, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	var (
		s      Scanner
		tokVal token.Value
		el     ErrorList
	)

	fs := token.NewFileSet()
	tokensByFile := make([][]TokenAndValue, len(files))
	for i, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			el.Add(toGoPosition(token.Position{Filename: file}), err.Error())
			continue
		}

		fsf := fs.AddFile(file, -1, len(b))
		s.Init(fsf, b, ErrAdder(&el))
		for {
			tok := s.Scan(&tokVal)
			tokensByFile[i] = append(tokensByFile[i], TokenAndValue{Token: tok, Value: tokVal})
			if tok == token.EOF {
				break
			}
		}
	}
	el.Sort()
	return fs, tokensByFile, el.Err()
}

// Scanner tokenizes a single source file for the parser to consume. Unlike
// the parser, a Scanner has no notion of #include nesting; that stack is
// owned by the parser (spec.md §4.1).
type Scanner struct {
	// immutable state after Init
	file *token.File
	src  []byte
	err  func(pos token.Position, msg string)

	// context substituted into __CLASS__/__FUNCTION__ builtin identifiers;
	// set by the parser as it enters/leaves class and function bodies
	// (spec.md §4.1, gravity_lexer.c:lexer_identifier).
	classCtx    string
	functionCtx string

	// mutable scanning state
	sb          strings.Builder
	invalidByte byte
	cur         rune
	off         int
	roff        int
}

var bom = [2]byte{0xEF, 0xBB}

// Init initializes the scanner to tokenize a new file. It panics if the
// file's registered size does not match len(src).
func (s *Scanner) Init(file *token.File, src []byte, errHandler func(token.Position, string)) {
	if file.Size() != len(src) {
		panic(fmt.Sprintf("file size (%d) does not match src len (%d)", file.Size(), len(src)))
	}

	s.file = file
	s.src = src
	s.err = errHandler
	file.SetSource(src)
	s.classCtx = ""
	s.functionCtx = ""

	s.sb.Reset()
	s.invalidByte = 0
	s.cur = ' '
	s.off = 0
	s.roff = 0

	// skip a UTF-8 BOM if present (first 2 bytes of the 3-byte EF BB BF form
	// are enough to detect it before the full decode below)
	if len(src) >= 3 && bytes.Equal(src[:2], bom[:]) && src[2] == 0xBF {
		s.off += 3
		s.roff += 3
	}

	// `#!` as the first two bytes of line 1 is a shebang; skip to end of
	// line before scanning begins (spec.md §4.2) so it never reaches the
	// parser as a MACRO token.
	if s.off+1 < len(src) && src[s.off] == '#' && src[s.off+1] == '!' {
		nl := s.off
		for nl < len(src) && src[nl] != '\n' {
			nl++
		}
		s.off, s.roff = nl, nl
	}
	s.advance()
}

// SetContext tells the scanner which class and function body it is
// currently lexing inside of, so that __CLASS__ and __FUNCTION__ builtin
// identifiers can be substituted at scan time. Either may be empty.
func (s *Scanner) SetContext(class, function string) {
	s.classCtx, s.functionCtx = class, function
}

func (s *Scanner) peek() byte {
	if s.roff < len(s.src) {
		return s.src[s.roff]
	}
	return 0
}

func (s *Scanner) advance() {
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		if isLineEnd(s.cur) {
			s.file.AddLine(s.off)
		}
		s.cur = -1
		return
	}

	s.off = s.roff

	s.invalidByte = 0
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.roff:])
		if r == utf8.RuneError && w == 1 {
			s.error(s.off, "illegal UTF-8 encoding")
			s.invalidByte = s.src[s.roff]
		}
	}

	// a CR immediately followed by LF counts as one newline, at the LF
	if isLineEnd(s.cur) && !(s.cur == '\r' && r == '\n') {
		s.file.AddLine(s.off)
	}

	s.roff += w
	s.cur = r
}

// isLineEnd reports whether rn terminates a line: LF, CR (CR+LF counts
// once), NEL (U+0085), or LS (U+2028), per spec.md §4.1.
func isLineEnd(rn rune) bool {
	return rn == '\n' || rn == '\r' || rn == 0x85 || rn == 0x2028
}

func (s *Scanner) error(off int, msg string) {
	if s.err != nil {
		s.err(s.file.Position(s.file.Pos(off)), msg)
	}
}

func (s *Scanner) errorf(off int, format string, args ...any) {
	s.error(off, fmt.Sprintf(format, args...))
}

func (s *Scanner) advanceIf(matches ...byte) bool {
	for _, m := range matches {
		if s.cur == rune(m) {
			s.advance()
			return true
		}
	}
	return false
}

// Scan returns the next token in the source file, filling tokVal with its
// literal payload.
func (s *Scanner) Scan(tokVal *token.Value) (tok token.Token) {
	s.skipWhitespace()

	pos := s.file.Pos(s.off)
	start := s.off

	if s.cur == '/' && s.peek() == '/' {
		lit := s.lineComment()
		*tokVal = token.Value{Kind: token.COMMENT, Raw: lit, Pos: pos, String: strings.TrimPrefix(lit, "//")}
		return token.COMMENT
	}
	if s.cur == '/' && s.peek() == '*' {
		lit := s.blockComment()
		val := lit
		if len(val) >= 4 {
			val = val[2 : len(val)-2]
		}
		*tokVal = token.Value{Kind: token.COMMENT, Raw: lit, Pos: pos, String: val}
		return token.COMMENT
	}

	switch cur := s.cur; {
	case isLetter(cur):
		lit := s.ident()
		tok = token.LookupIdent(lit)
		str := ""
		if tok == token.IDENT && token.IsBuiltinIdent(lit) {
			lit = s.substituteBuiltin(lit, pos)
			tok = token.STRING
			str = lit
		}
		*tokVal = token.Value{Kind: tok, Raw: lit, Pos: pos, String: str}

	case isDecimal(cur) || (cur == '.' && isDecimal(rune(s.peek()))):
		var base int
		var lit string
		tok, base, lit = s.number()
		*tokVal = token.Value{Kind: tok, Raw: lit, Pos: pos}
		if tok == token.INT {
			v, err := numberToInt(lit, base)
			if err != nil && errors.Is(err, strconv.ErrRange) {
				s.error(start, "integer literal value out of range")
			}
			tokVal.Int = v
		} else if tok == token.FLOAT {
			v, err := numberToFloat(lit)
			if err != nil && errors.Is(err, strconv.ErrRange) {
				s.error(start, "float literal value out of range")
			}
			tokVal.Float = v
		}

	default:
		s.advance() // always make progress
		if cur == '"' || cur == '\'' {
			tok = token.STRING
			lit, val := s.shortString(cur)
			*tokVal = token.Value{Kind: tok, Raw: lit, Pos: pos, String: val}
			return tok
		}

		switch cur {
		case '(':
			tok = token.LPAREN
		case ')':
			tok = token.RPAREN
		case '[':
			tok = token.LBRACK
		case ']':
			tok = token.RBRACK
		case '{':
			tok = token.LBRACE
		case '}':
			tok = token.RBRACE
		case ',':
			tok = token.COMMA
		case ';':
			tok = token.SEMI
		case '?':
			tok = token.QUESTION
		case '#':
			tok = token.MACRO
		case '@':
			tok = token.SPECIAL

		case ':':
			tok = token.COLON

		case '=':
			tok = token.ASSIGN
			if s.advanceIf('=') {
				tok = token.EQ
				if s.advanceIf('=') {
					tok = token.SAME
				}
			}
		case '!':
			tok = token.BANG
			if s.advanceIf('=') {
				tok = token.NEQ
				if s.advanceIf('=') {
					tok = token.NOT_SAME
				}
			}
		case '<':
			tok = token.LT
			switch {
			case s.advanceIf('='):
				tok = token.LE
			case s.advanceIf('<'):
				tok = token.SHL
				if s.advanceIf('=') {
					tok = token.SHL_EQ
				}
			}
		case '>':
			tok = token.GT
			switch {
			case s.advanceIf('='):
				tok = token.GE
			case s.advanceIf('>'):
				tok = token.SHR
				if s.advanceIf('=') {
					tok = token.SHR_EQ
				}
			}
		case '&':
			tok = token.AMP
			switch {
			case s.advanceIf('&'):
				tok = token.LAND
			case s.advanceIf('='):
				tok = token.AMP_EQ
			}
		case '|':
			tok = token.PIPE
			switch {
			case s.advanceIf('|'):
				tok = token.LOR
			case s.advanceIf('='):
				tok = token.PIPE_EQ
			}
		case '+':
			tok = token.PLUS
			if s.advanceIf('=') {
				tok = token.PLUS_EQ
			}
		case '-':
			tok = token.MINUS
			if s.advanceIf('=') {
				tok = token.MINUS_EQ
			}
		case '*':
			tok = token.STAR
			if s.advanceIf('=') {
				tok = token.STAR_EQ
			}
		case '/':
			tok = token.SLASH
			if s.advanceIf('=') {
				tok = token.SLASH_EQ
			}
		case '%':
			tok = token.PERCENT
			if s.advanceIf('=') {
				tok = token.PERCENT_EQ
			}
		case '^':
			tok = token.CARET
			if s.advanceIf('=') {
				tok = token.CARET_EQ
			}
		case '~':
			tok = token.TILDE
			if s.advanceIf('=') {
				tok = token.TILDE_EQ
			}
		case '.':
			tok = token.DOT
			if s.advanceIf('.') {
				switch {
				case s.advanceIf('<'):
					tok = token.RANGE_EXCL
				case s.advanceIf('.'):
					tok = token.RANGE_INCL
				default:
					s.error(start, "illegal punctuation '..'")
					tok = token.ILLEGAL
				}
			}

		case -1:
			tok = token.EOF

		default:
			if cur == utf8.RuneError && s.invalidByte > 0 {
				cur = rune(s.invalidByte)
				s.invalidByte = 0
			}
			s.errorf(start, "illegal character %#U", cur)
			tok = token.ILLEGAL
		}
		*tokVal = token.Value{Kind: tok, Raw: string(s.src[start:s.off]), Pos: pos}
	}
	return tok
}

// substituteBuiltin resolves a compiler builtin identifier to its literal
// text at scan time (gravity_lexer.c:lexer_identifier).
func (s *Scanner) substituteBuiltin(lit string, pos token.Pos) string {
	switch lit {
	case "__LINE__":
		return strconv.Itoa(s.file.Position(pos).Line)
	case "__COLUMN__":
		return strconv.Itoa(s.file.Position(pos).Column)
	case "__FILE__":
		return s.file.Name()
	case "__CLASS__":
		return s.classCtx
	case "__FUNCTION__":
		return s.functionCtx
	default:
		return lit
	}
}

func (s *Scanner) ident() string {
	start := s.off
	for isLetter(s.cur) || isDigit(s.cur) {
		s.advance()
	}
	return string(s.src[start:s.off])
}

func (s *Scanner) skipWhitespace() {
	for isWhitespace(s.cur) {
		s.advance()
	}
}

// lineComment consumes a `// ...` comment up to (not including) the
// terminating newline and returns its raw source text, '//' included.
func (s *Scanner) lineComment() string {
	start := s.off
	s.advance() // '/'
	s.advance() // '/'
	for !isLineEnd(s.cur) && s.cur != -1 {
		s.advance()
	}
	return string(s.src[start:s.off])
}

// blockComment consumes a /* ... */ comment, supporting nesting
// (gravity_lexer.c allows /* */ comments to nest), and returns its raw
// source text, delimiters included.
func (s *Scanner) blockComment() string {
	start := s.off
	s.advance() // '/'
	s.advance() // '*'
	depth := 1
	for depth > 0 {
		switch {
		case s.cur == -1:
			s.error(start, "block comment not terminated")
			return string(s.src[start:s.off])
		case s.cur == '/' && s.peek() == '*':
			s.advance()
			s.advance()
			depth++
		case s.cur == '*' && s.peek() == '/':
			s.advance()
			s.advance()
			depth--
		default:
			s.advance()
		}
	}
	return string(s.src[start:s.off])
}

func isWhitespace(rn rune) bool {
	return rn == ' ' || rn == '\t' || rn == '\v' || rn == '\f' ||
		isLineEnd(rn)
}

func isLetter(rn rune) bool {
	return 'a' <= rn && rn <= 'z' ||
		'A' <= rn && rn <= 'Z' ||
		rn == '_' ||
		rn >= utf8.RuneSelf && unicode.IsLetter(rn)
}

func isDigit(rn rune) bool {
	return '0' <= rn && rn <= '9' ||
		rn >= utf8.RuneSelf && unicode.IsDigit(rn)
}
