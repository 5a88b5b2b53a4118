package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/scanner"
	"github.com/kestrel-lang/kestrel/lang/token"
)

func scanAll(t *testing.T, src string) []scanner.TokenAndValue {
	t.Helper()
	fset := token.NewFileSet()
	f := fset.AddFile("test.kes", -1, len(src))

	var el scanner.ErrorList
	var s scanner.Scanner
	s.Init(f, []byte(src), scanner.ErrAdder(&el))

	var out []scanner.TokenAndValue
	var val token.Value
	for {
		tok := s.Scan(&val)
		out = append(out, scanner.TokenAndValue{Token: tok, Value: val})
		if tok == token.EOF {
			break
		}
	}
	require.Empty(t, el, "unexpected scan errors: %v", el)
	return out
}

func tokens(toks []scanner.TokenAndValue) []token.Token {
	kinds := make([]token.Token, len(toks))
	for i, tv := range toks {
		kinds[i] = tv.Token
	}
	return kinds
}

func TestScanPunctuation(t *testing.T) {
	toks := scanAll(t, "+ - * / % = < > ! & | ^ ~ . , ; : ? ( ) [ ] { }")
	want := []token.Token{
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.ASSIGN, token.LT, token.GT, token.BANG, token.AMP, token.PIPE,
		token.CARET, token.TILDE, token.DOT, token.COMMA, token.SEMI,
		token.COLON, token.QUESTION, token.LPAREN, token.RPAREN,
		token.LBRACK, token.RBRACK, token.LBRACE, token.RBRACE, token.EOF,
	}
	assert.Equal(t, want, tokens(toks))
}

func TestScanMultiCharOperators(t *testing.T) {
	toks := scanAll(t, "== != <= >= << >> && || += -= *= /= %= &= |= ^= ~= <<= >>= === !== ..< ...")
	want := []token.Token{
		token.EQ, token.NEQ, token.LE, token.GE, token.SHL, token.SHR,
		token.LAND, token.LOR, token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ,
		token.SLASH_EQ, token.PERCENT_EQ, token.AMP_EQ, token.PIPE_EQ,
		token.CARET_EQ, token.TILDE_EQ, token.SHL_EQ, token.SHR_EQ,
		token.SAME, token.NOT_SAME, token.RANGE_EXCL, token.RANGE_INCL,
		token.EOF,
	}
	assert.Equal(t, want, tokens(toks))
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, "func class foo123 _bar")
	require.Len(t, toks, 5)
	assert.Equal(t, token.FUNC, toks[0].Token)
	assert.Equal(t, token.CLASS, toks[1].Token)
	assert.Equal(t, token.IDENT, toks[2].Token)
	assert.Equal(t, "foo123", toks[2].Value.Raw)
	assert.Equal(t, token.IDENT, toks[3].Token)
	assert.Equal(t, "_bar", toks[3].Value.Raw)
}

func TestScanIntLiterals(t *testing.T) {
	cases := []struct {
		src  string
		want int64
	}{
		{"42", 42},
		{"0x2A", 42},
		{"0b101010", 42},
		{"0o52", 42},
		{"1_000", 1000},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			toks := scanAll(t, c.src)
			require.Equal(t, token.INT, toks[0].Token)
			assert.Equal(t, c.want, toks[0].Value.Int)
		})
	}
}

func TestScanFloatLiterals(t *testing.T) {
	toks := scanAll(t, "3.14 1e10 2.5e-3")
	require.Len(t, toks, 4)
	assert.Equal(t, token.FLOAT, toks[0].Token)
	assert.InDelta(t, 3.14, toks[0].Value.Float, 1e-9)
	assert.Equal(t, token.FLOAT, toks[1].Token)
	assert.InDelta(t, 1e10, toks[1].Value.Float, 1)
	assert.Equal(t, token.FLOAT, toks[2].Token)
}

func TestScanStringLiterals(t *testing.T) {
	toks := scanAll(t, `"hello\nworld" 'it''s'`)
	require.GreaterOrEqual(t, len(toks), 2)
	assert.Equal(t, token.STRING, toks[0].Token)
	assert.Equal(t, "hello\nworld", toks[0].Value.String)
}

func TestScanComments(t *testing.T) {
	toks := scanAll(t, "1 // line comment\n2 /* block\ncomment */ 3")
	var kinds []token.Token
	for _, tv := range toks {
		kinds = append(kinds, tv.Token)
	}
	assert.Equal(t, []token.Token{
		token.INT, token.COMMENT, token.INT, token.COMMENT, token.INT, token.EOF,
	}, kinds)
	assert.Equal(t, "// line comment", toks[1].Value.Raw)
	assert.Equal(t, " line comment", toks[1].Value.String)
	assert.Equal(t, "/* block\ncomment */", toks[3].Value.Raw)
	assert.Equal(t, " block\ncomment ", toks[3].Value.String)
}

func TestScanNestedBlockComments(t *testing.T) {
	toks := scanAll(t, "1 /* outer /* inner */ still outer */ 2")
	require.Len(t, toks, 4)
	assert.Equal(t, token.INT, toks[0].Token)
	assert.Equal(t, token.COMMENT, toks[1].Token)
	assert.Equal(t, token.INT, toks[2].Token)
}

func TestScanBuiltinIdentSubstitution(t *testing.T) {
	fset := token.NewFileSet()
	src := "__LINE__ __CLASS__ __FUNCTION__"
	f := fset.AddFile("test.kes", -1, len(src))

	var el scanner.ErrorList
	var s scanner.Scanner
	s.Init(f, []byte(src), scanner.ErrAdder(&el))
	s.SetContext("Widget", "render")

	var val token.Value
	s.Scan(&val)
	assert.Equal(t, token.STRING, val.Kind)
	assert.Equal(t, "1", val.String)

	s.Scan(&val)
	assert.Equal(t, "Widget", val.String)

	s.Scan(&val)
	assert.Equal(t, "render", val.String)
}

func TestScanIllegalCharacter(t *testing.T) {
	fset := token.NewFileSet()
	src := "$"
	f := fset.AddFile("test.kes", -1, len(src))

	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(f, []byte(src), scanner.ErrAdder(&errs))

	var val token.Value
	tok := s.Scan(&val)
	assert.Equal(t, token.ILLEGAL, tok)
	require.Len(t, errs, 1)
}

func TestScanStringSpansNewlines(t *testing.T) {
	toks := scanAll(t, "\"line one\nline two\" 5")
	require.GreaterOrEqual(t, len(toks), 3)
	assert.Equal(t, token.STRING, toks[0].Token)
	assert.Equal(t, "line one\nline two", toks[0].Value.String)
	assert.Equal(t, token.INT, toks[1].Token)
}

func TestScanNewlineVariantsAdvanceLines(t *testing.T) {
	fset := token.NewFileSet()
	src := "a\nb\r\ncd e"
	f := fset.AddFile("test.kes", -1, len(src))

	var el scanner.ErrorList
	var s scanner.Scanner
	s.Init(f, []byte(src), scanner.ErrAdder(&el))

	lines := make(map[string]int)
	var val token.Value
	for {
		tok := s.Scan(&val)
		if tok == token.EOF {
			break
		}
		lines[val.Raw] = f.Position(val.Pos).Line
	}
	require.Empty(t, el)
	assert.Equal(t, 1, lines["a"])
	assert.Equal(t, 2, lines["b"])
	assert.Equal(t, 3, lines["c"], "CR+LF counts as one newline")
	assert.Equal(t, 4, lines["d"], "NEL advances the line counter")
	assert.Equal(t, 5, lines["e"], "LS advances the line counter")
}

func TestScanUTF8Columns(t *testing.T) {
	fset := token.NewFileSet()
	src := "héllo = 1"
	f := fset.AddFile("test.kes", -1, len(src))

	var el scanner.ErrorList
	var s scanner.Scanner
	s.Init(f, []byte(src), scanner.ErrAdder(&el))

	var val token.Value
	s.Scan(&val) // héllo
	s.Scan(&val) // =
	require.Empty(t, el)
	assert.Equal(t, 7, f.Position(val.Pos).Column, "columns count runes, not bytes")
}

func TestScanVerticalTabAndFormFeedAreWhitespace(t *testing.T) {
	toks := scanAll(t, "1\v2\f3")
	want := []token.Token{token.INT, token.INT, token.INT, token.EOF}
	assert.Equal(t, want, tokens(toks))
}

func TestScanShebangSkipsFirstLine(t *testing.T) {
	toks := scanAll(t, "#!/usr/bin/env kestrel\nvar x = 1;")
	want := []token.Token{token.VAR, token.IDENT, token.ASSIGN, token.INT, token.SEMI, token.EOF}
	assert.Equal(t, want, tokens(toks))
}
