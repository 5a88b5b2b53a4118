package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/token"
)

func TestFileSetPositions(t *testing.T) {
	fset := token.NewFileSet()
	src := "func f() {\n  return 1\n}\n"
	f := fset.AddFile("a.kes", -1, len(src))
	for i, r := range src {
		if r == '\n' {
			f.AddLine(i + 1)
		}
	}

	p := f.Pos(0)
	pos := fset.Position(p)
	require.True(t, pos.IsValid())
	assert.Equal(t, "a.kes", pos.Filename)
	assert.Equal(t, 1, pos.Line)
	assert.Equal(t, 1, pos.Column)

	idx := len("func f() {\n  ")
	pos2 := fset.Position(f.Pos(idx))
	assert.Equal(t, 2, pos2.Line)
	assert.Equal(t, 3, pos2.Column)
}

func TestFileSetMultipleFiles(t *testing.T) {
	fset := token.NewFileSet()
	f1 := fset.AddFile("a.kes", -1, 10)
	f2 := fset.AddFile("b.kes", -1, 10)

	assert.Same(t, f1, fset.File(f1.Pos(0)))
	assert.Same(t, f2, fset.File(f2.Pos(0)))
	assert.NotEqual(t, f1.Base(), f2.Base())
}

func TestFileSetInvalidPos(t *testing.T) {
	fset := token.NewFileSet()
	pos := fset.Position(token.Pos(0))
	assert.False(t, pos.IsValid())
	assert.Equal(t, "-", pos.String())
}

func TestFileOffsetRoundtrip(t *testing.T) {
	fset := token.NewFileSet()
	f := fset.AddFile("x.kes", -1, 5)
	p := f.Pos(3)
	assert.Equal(t, 3, f.Offset(p))
}
