package compiler

import (
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
)

// encode implements spec.md §6.2: it walks fn's (already-optimized) IR
// buffer, resolves every jump/jumpf label operand to the instruction index
// it marks, and bit-packs each surviving instruction into a 32-bit word
// (opcode in bits 31..26, the remaining 26 bits laid out per instruction
// format class). The trailing zero word is the implicit RET0/0 terminator
// every disassembler-style reader can stop at without a separate length
// prefix. Grounded on gravity_opcodes.h's macro-packed instruction encoding.
func encode(fn *object.Function) {
	buf := fn.IR
	labels := make(map[int]int, 8)
	n := 0
	for _, in := range buf.Insns {
		if in.IsLabel() {
			labels[in.P1] = n
			continue
		}
		if in.IsDeleted() || in.IsPragma() {
			continue
		}
		n++
	}

	code := make([]uint32, n+1) // trailing zero word, never written
	lines := make([]uint32, n)
	i := 0
	for _, in := range buf.Insns {
		if in.IsLabel() || in.IsDeleted() || in.IsPragma() {
			continue
		}
		code[i] = packInst(in, labels)
		lines[i] = uint32(in.Line)
		i++
	}

	fn.Code = code
	fn.Lines = lines
	fn.NInstructions = n
	fn.Purity = purityOf(buf)
	fn.IR = nil
}

func packInst(in ir.Inst, labels map[int]int) uint32 {
	return uint32(in.Op)<<26 | encodeBody(in, labels)&0x3FFFFFF
}

// encodeBody packs the 26 operand bits of in, per instruction format class
// (spec.md §6.2). Ops not special-cased below share the generic 3×8-bit +
// 10-bit layout (a, b, c): it is a strict superset of every fixed-arity
// instruction's actual operand count, since unused trailing fields are
// simply zero.
func encodeBody(in ir.Inst, labels map[int]int) uint32 {
	switch in.Op {
	case ir.JUMP:
		return uint32(labels[in.P1]) & 0x3FFFFFF

	case ir.JUMPF:
		a := uint32(in.P1&0xFF) << 18
		sign := uint32(in.P3&1) << 17
		target := uint32(labels[in.P2]) & 0x1FFFF
		return a | sign | target

	case ir.LOADK, ir.LOADG, ir.STOREG, ir.LOADU, ir.STOREU,
		ir.MAPNEW, ir.LISTNEW, ir.CLOSURE, ir.CLOSE, ir.CHECK, ir.MOVE:
		a := uint32(in.P1&0xFF) << 18
		return a | uint32(in.P2)&0x3FFFF

	case ir.LOADI:
		a := uint32(in.P1&0xFF) << 18
		v := in.IVal
		var sign uint32
		if v < 0 {
			sign = 1
			v = -v
		}
		return a | sign<<17 | uint32(v)&0x1FFFF

	case ir.RANGENEW:
		a := uint32(in.P1&0xFF) << 18
		b := uint32(in.P2&0xFF) << 10
		cc := uint32(in.P3&0xFF) << 2
		var tag uint32 // 0 inclusive, 1 exclusive
		if in.Tag == ir.TagRangeExclude {
			tag = 1
		}
		return a | b | cc | tag

	default:
		a := uint32(in.P1&0xFF) << 18
		b := uint32(in.P2&0xFF) << 10
		cc := uint32(in.P3) & 0x3FF
		return a | b | cc
	}
}

// purityOf computes spec.md §4.8's purity score: the fraction of surviving
// instructions that touch nothing outside the function's own register
// window (no global/upvalue/ivar traffic).
func purityOf(buf *ir.Buffer) float64 {
	total, impure := 0, 0
	for _, in := range buf.Insns {
		if in.IsDeleted() || in.IsLabel() || in.IsPragma() {
			continue
		}
		total++
		if in.Op.Impure() {
			impure++
		}
	}
	if total == 0 {
		return 1.0
	}
	return 1.0 - float64(impure)/float64(total)
}
