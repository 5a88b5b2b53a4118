package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
)

func encodedOps(fn *object.Function) []ir.Opcode {
	ops := make([]ir.Opcode, fn.NInstructions)
	for i := range ops {
		ops[i] = ir.Opcode(fn.Code[i] >> 26)
	}
	return ops
}

func TestOptimizerNegFolding(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	r := fn.IR.AddInt(5, 1)
	fn.IR.Pop()
	dst := fn.IR.PushTemp()
	fn.IR.Add(ir.NEG, dst, r, 0, 1)

	optimize(fn)
	encode(fn)

	require.Equal(t, []ir.Opcode{ir.LOADI}, encodedOps(fn))
	w := fn.Code[0]
	assert.Equal(t, uint32(1), w>>17&1, "the fold flips the LOADI's sign bit")
	assert.Equal(t, uint32(5), w&0x1FFFF)
}

func TestOptimizerConstantArithFolding(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	a := fn.IR.AddInt(6, 1)
	b := fn.IR.AddInt(7, 1)
	fn.IR.Pop()
	fn.IR.Pop()
	dst := fn.IR.PushTemp()
	fn.IR.Add(ir.MUL, dst, a, b, 1)

	optimize(fn)
	encode(fn)

	require.Equal(t, []ir.Opcode{ir.LOADI}, encodedOps(fn))
	assert.Equal(t, uint32(42), fn.Code[0]&0x1FFFF)
}

func TestOptimizerMixedTagsWidenToDouble(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	a := fn.IR.AddInt(1, 1)
	b := fn.IR.AddDouble(0.5, 1)
	fn.IR.Pop()
	fn.IR.Pop()
	dst := fn.IR.PushTemp()
	fn.IR.Add(ir.ADD, dst, a, b, 1)

	optimize(fn)
	encode(fn)

	// the double result cannot stay inline: pass 5 widens it to a LOADK
	require.Equal(t, []ir.Opcode{ir.LOADK}, encodedOps(fn))
	assert.Contains(t, fn.Constants, object.Value(object.Float(1.5)))
}

func TestOptimizerDivisionByZeroNotFolded(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	a := fn.IR.AddInt(1, 1)
	b := fn.IR.AddInt(0, 1)
	fn.IR.Pop()
	fn.IR.Pop()
	dst := fn.IR.PushTemp()
	fn.IR.Add(ir.DIV, dst, a, b, 1)

	optimize(fn)
	encode(fn)

	assert.Equal(t, []ir.Opcode{ir.LOADI, ir.LOADI, ir.DIV}, encodedOps(fn))
}

func TestOptimizerMoveElimination(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	r := fn.IR.AddInt(7, 1)
	fn.IR.Add(ir.MOVE, 0, r, 0, 1)
	fn.IR.Pop()

	optimize(fn)
	encode(fn)

	require.Equal(t, []ir.Opcode{ir.LOADI}, encodedOps(fn))
	assert.Equal(t, uint32(0), fn.Code[0]>>18&0xFF, "the load is retargeted to the MOVE's destination")
}

func TestOptimizerPragmaDisablesMoveElimination(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	fn.IR.AddTag(ir.NOP, 0, 0, 0, 1, ir.TagPragmaMoveOptimization)
	r := fn.IR.AddInt(7, 1)
	fn.IR.Add(ir.MOVE, 0, r, 0, 1)
	fn.IR.Pop()
	fn.IR.AddTag(ir.NOP, 1, 0, 0, 1, ir.TagPragmaMoveOptimization)

	optimize(fn)
	encode(fn)

	// pragma P1=0 disables the pass, so MOVE survives; pragmas themselves
	// are never encoded
	assert.Equal(t, []ir.Opcode{ir.LOADI, ir.MOVE}, encodedOps(fn))
}

func TestOptimizerRetFolding(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	dst := fn.IR.PushTemp()
	fn.IR.Add(ir.MOVE, dst, 0, 0, 1)
	fn.IR.Add(ir.RET, dst, 0, 0, 1)

	optimize(fn)
	encode(fn)

	require.Equal(t, []ir.Opcode{ir.RET}, encodedOps(fn))
	assert.Equal(t, uint32(0), fn.Code[0]>>18&0xFF, "RET returns the MOVE's source directly")
}

func TestEncodeLabelResolution(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	buf := fn.IR
	end := buf.NewLabel()
	buf.Add(ir.JUMP, end, 0, 0, 1)
	buf.Add(ir.NOP, 0, 0, 0, 1)
	buf.MarkLabel(end, 1)
	buf.Add(ir.RET0, 0, 0, 0, 1)

	encode(fn)

	require.Equal(t, 3, fn.NInstructions)
	assert.Equal(t, uint32(2), fn.Code[0]&0x3FFFFFF, "the label resolves past the NOP")
}

func TestEncodeMoveUses18BitOperand(t *testing.T) {
	fn := object.NewFunction("t", 0, 8)
	fn.IR.Add(ir.MOVE, 3, 7, 0, 1)

	encode(fn)

	w := fn.Code[0]
	assert.Equal(t, ir.MOVE, ir.Opcode(w>>26))
	assert.Equal(t, uint32(3), w>>18&0xFF)
	assert.Equal(t, uint32(7), w&0x3FFFF)
}

func TestEncodeRangeTags(t *testing.T) {
	fn := object.NewFunction("t", 0, 4)
	fn.IR.AddTag(ir.RANGENEW, 3, 1, 2, 1, ir.TagRangeExclude)
	fn.IR.AddTag(ir.RANGENEW, 3, 1, 2, 1, ir.TagRangeInclude)

	encode(fn)

	assert.Equal(t, uint32(1), fn.Code[0]&3, "exclusive encodes tag 1")
	assert.Equal(t, uint32(0), fn.Code[1]&3, "inclusive encodes tag 0")
}

func TestEncodeLoadINegative(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	fn.IR.AddInt(-9, 1)
	fn.IR.Pop()

	optimize(fn)
	encode(fn)

	w := fn.Code[0]
	assert.Equal(t, ir.LOADI, ir.Opcode(w>>26))
	assert.Equal(t, uint32(1), w>>17&1)
	assert.Equal(t, uint32(9), w&0x1FFFF)
}

func TestEncodePurity(t *testing.T) {
	fn := object.NewFunction("t", 0, 1)
	fn.IR.Add(ir.LOADG, 1, 0, 0, 1)
	fn.IR.Add(ir.RET, 1, 0, 0, 1)

	encode(fn)

	assert.InDelta(t, 0.5, fn.Purity, 1e-9)
}

func TestEvalConstExprShapes(t *testing.T) {
	// the constant folder backing enum members and static fields
	v, ok := foldConstBinary(0, object.Int(1), object.Int(2))
	assert.False(t, ok)
	assert.Nil(t, v)
}
