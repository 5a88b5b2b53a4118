package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/token"
)

func TestLookupIdent(t *testing.T) {
	cases := []struct {
		lit  string
		want token.Token
	}{
		{"func", token.FUNC},
		{"class", token.CLASS},
		{"module", token.MODULE},
		{"lazy", token.LAZY},
		{"_func", token.FUNCKW},
		{"_args", token.ARGSKW},
		{"notakeyword", token.IDENT},
		{"__LINE__", token.IDENT}, // builtin idents are plain identifiers lexically
	}
	for _, c := range cases {
		t.Run(c.lit, func(t *testing.T) {
			assert.Equal(t, c.want, token.LookupIdent(c.lit))
		})
	}
}

func TestIsBuiltinIdent(t *testing.T) {
	assert.True(t, token.IsBuiltinIdent("__LINE__"))
	assert.True(t, token.IsBuiltinIdent("__CLASS__"))
	assert.False(t, token.IsBuiltinIdent("line"))
}

func TestTokenClassification(t *testing.T) {
	assert.True(t, token.FUNC.IsKeyword())
	assert.False(t, token.PLUS.IsKeyword())
	assert.True(t, token.PLUS.IsPunct())
	assert.False(t, token.FUNC.IsPunct())
	assert.False(t, token.IDENT.IsKeyword())
	assert.False(t, token.IDENT.IsPunct())
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "+", token.PLUS.String())
	assert.Equal(t, "func", token.FUNC.String())
	assert.Equal(t, "identifier", token.IDENT.String())
	assert.Contains(t, token.Token(-1).String(), "token(")
}

func TestInfixPrecedence(t *testing.T) {
	require.Greater(t, token.STAR.InfixPrecedence(), token.PLUS.InfixPrecedence())
	require.Greater(t, token.PLUS.InfixPrecedence(), token.LAND.InfixPrecedence())
	require.Greater(t, token.LAND.InfixPrecedence(), token.LOR.InfixPrecedence())
	require.Greater(t, token.LOR.InfixPrecedence(), token.ASSIGN.InfixPrecedence())
	assert.Equal(t, token.LowestPrec, token.SEMI.InfixPrecedence())
}

func TestIsAssignOp(t *testing.T) {
	assert.True(t, token.ASSIGN.IsAssignOp())
	assert.True(t, token.PLUS_EQ.IsAssignOp())
	assert.False(t, token.EQ.IsAssignOp())
}

func TestLiteral(t *testing.T) {
	val := token.Value{
		Raw:    "ident",
		String: "string",
		Int:    1,
		Float:  2,
	}

	assert.Equal(t, "ident", token.IDENT.Literal(val))
	assert.Equal(t, `"string"`, token.STRING.Literal(val))
	assert.Equal(t, "string", token.COMMENT.Literal(val))
	assert.Equal(t, "1", token.INT.Literal(val))
	assert.Equal(t, "2", token.FLOAT.Literal(val))
	assert.Equal(t, "", token.ILLEGAL.Literal(val))
}

func TestBinOpForAssign(t *testing.T) {
	assert.Equal(t, token.PLUS, token.PLUS_EQ.BinOpForAssign())
	assert.Equal(t, token.SHR, token.SHR_EQ.BinOpForAssign())
	assert.Panics(t, func() { token.ASSIGN.BinOpForAssign() })
}
