package compiler

import (
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
)

// optimize runs the peephole passes of spec.md §4.8 over fn's IR buffer to
// a fixpoint, grounded on gravity_optimizer.c. Each pass mutates fn.IR.Insns
// in place, marking eliminated instructions with ir.TagSkip rather than
// physically removing them so that label targets (recorded as instruction
// indices by the encoder, not by the optimizer) stay valid until encode
// resolves them.
func optimize(fn *object.Function) {
	buf := fn.IR
	for {
		changed := false
		changed = foldNeg(buf) || changed
		changed = foldConstArith(buf) || changed
		changed = elideMove(buf) || changed
		changed = foldRet(buf) || changed
		if !changed {
			break
		}
	}
	widenIntegers(fn)
}

// isTemp reports whether register r is a temp (>= NLocals) in buf's owning
// function, i.e. not a local/self/param slot that might be read again.
func isTemp(buf *ir.Buffer, r int) bool { return r >= buf.NLocals }

// foldNeg implements spec.md §4.8 pass 1: `LOADI d, n ; NEG d2, d` where d
// is a temp rewrites the LOADI's payload sign in place and deletes the NEG.
func foldNeg(buf *ir.Buffer) bool {
	changed := false
	insns := buf.Insns
	prev := -1
	for i := range insns {
		if insns[i].IsDeleted() || insns[i].IsLabel() || insns[i].IsPragma() {
			continue
		}
		if insns[i].Op == ir.NEG && prev >= 0 {
			p := insns[prev]
			if p.Op == ir.LOADI && isTemp(buf, p.P1) && p.P1 == insns[i].P2 {
				switch p.Tag {
				case ir.TagInt:
					insns[prev].IVal = -p.IVal
				case ir.TagDouble:
					insns[prev].DVal = -p.DVal
				default:
					prev = i
					continue
				}
				insns[prev].P1 = insns[i].P1
				insns[i].Tag = ir.TagSkip
				changed = true
				continue
			}
		}
		prev = i
	}
	return changed
}

// arithOp reports whether op is one of the binary arithmetic ops eligible
// for constant folding (spec.md §4.8 pass 2).
func arithOp(op ir.Opcode) bool {
	switch op {
	case ir.ADD, ir.SUB, ir.MUL, ir.DIV, ir.REM:
		return true
	default:
		return false
	}
}

// foldConstArith implements spec.md §4.8 pass 2: an ADD/SUB/MUL/DIV/REM
// whose two operand-producing instructions are both still-present LOADIs
// targeting exactly its b/c registers is replaced by a single LOADI of the
// computed result; the two source LOADIs are deleted. Division/modulo by a
// literal zero is left unfolded (spec.md's invariant: fold fully or not at
// all, never partially).
func foldConstArith(buf *ir.Buffer) bool {
	changed := false
	insns := buf.Insns
	for i := range insns {
		in := insns[i]
		if in.IsDeleted() || in.IsLabel() || !arithOp(in.Op) {
			continue
		}
		i1 := findLoadI(insns, i, in.P2)
		if i1 < 0 {
			continue
		}
		i2 := findLoadI(insns, i, in.P3)
		if i2 < 0 {
			continue
		}
		if insns[i1].P1 != in.P2 || insns[i2].P1 != in.P3 {
			continue
		}
		result, resTag, ok := foldArith(in.Op, insns[i1], insns[i2])
		if !ok {
			continue
		}
		insns[i1].Tag = ir.TagSkip
		insns[i2].Tag = ir.TagSkip
		insns[i].Op = ir.LOADI
		insns[i].Tag = resTag
		insns[i].P2, insns[i].P3 = 0, 0
		switch resTag {
		case ir.TagInt:
			insns[i].IVal = result.(int64)
		case ir.TagDouble:
			insns[i].DVal = result.(float64)
		}
		changed = true
	}
	return changed
}

// findLoadI scans backward from before index upto for the nearest
// non-deleted instruction writing register reg, returning its index iff
// that instruction is a LOADI (so an intervening side-effecting write to
// the same register correctly blocks the fold).
func findLoadI(insns []ir.Inst, upto int, reg int) int {
	for j := upto - 1; j >= 0; j-- {
		in := insns[j]
		if in.IsDeleted() || in.IsLabel() {
			continue
		}
		if in.P1 == reg {
			if in.Op == ir.LOADI {
				return j
			}
			return -1
		}
	}
	return -1
}

func foldArith(op ir.Opcode, a, b ir.Inst) (any, ir.Tag, bool) {
	if a.Tag == ir.TagInt && b.Tag == ir.TagInt {
		x, y := a.IVal, b.IVal
		switch op {
		case ir.ADD:
			return x + y, ir.TagInt, true
		case ir.SUB:
			return x - y, ir.TagInt, true
		case ir.MUL:
			return x * y, ir.TagInt, true
		case ir.DIV:
			if y == 0 {
				return nil, 0, false
			}
			return x / y, ir.TagInt, true
		case ir.REM:
			if y == 0 {
				return nil, 0, false
			}
			return x % y, ir.TagInt, true
		}
	}
	// Mixed or double/double widens to double (spec.md §4.8 pass 2:
	// "widening to double if the tags differ").
	x, xok := numOf(a)
	y, yok := numOf(b)
	if !xok || !yok {
		return nil, 0, false
	}
	switch op {
	case ir.ADD:
		return x + y, ir.TagDouble, true
	case ir.SUB:
		return x - y, ir.TagDouble, true
	case ir.MUL:
		return x * y, ir.TagDouble, true
	case ir.DIV:
		if y == 0 {
			return nil, 0, false
		}
		return x / y, ir.TagDouble, true
	default:
		return nil, 0, false
	}
}

func numOf(in ir.Inst) (float64, bool) {
	switch in.Tag {
	case ir.TagInt:
		return float64(in.IVal), true
	case ir.TagDouble:
		return in.DVal, true
	default:
		return 0, false
	}
}

// loadOp reports whether op is one of the load opcodes MOVE elimination
// can retarget directly (spec.md §4.8 pass 3).
func loadOp(op ir.Opcode) bool {
	switch op {
	case ir.LOADI, ir.LOADK, ir.LOADG:
		return true
	default:
		return false
	}
}

// elideMove implements spec.md §4.8 pass 3: a MOVE d, s immediately
// following a LOADI/LOADK/LOADG into temp s is elided by retargeting the
// load straight to d. A PragmaMoveOptimization(0) instruction disables the
// pass until a matching PragmaMoveOptimization(1) re-enables it (spec.md's
// `skip-clear`-adjacent pragma mechanism for loop temporaries that must
// keep their own register).
func elideMove(buf *ir.Buffer) bool {
	changed := false
	insns := buf.Insns
	enabled := true
	prev := -1
	for i := range insns {
		in := insns[i]
		if in.IsPragma() {
			enabled = in.P1 != 0
			continue
		}
		if in.IsDeleted() || in.IsLabel() {
			continue
		}
		if enabled && in.Op == ir.MOVE && prev >= 0 {
			p := insns[prev]
			if loadOp(p.Op) && isTemp(buf, p.P1) && p.P1 == in.P2 {
				insns[prev].P1 = in.P1
				insns[i].Tag = ir.TagSkip
				changed = true
				continue
			}
		}
		prev = i
	}
	return changed
}

// foldRet implements spec.md §4.8 pass 4: `MOVE d, s; RET d` where d is a
// temp becomes `RET s`, deleting the MOVE.
func foldRet(buf *ir.Buffer) bool {
	changed := false
	insns := buf.Insns
	prev := -1
	for i := range insns {
		in := insns[i]
		if in.IsDeleted() || in.IsLabel() || in.IsPragma() {
			continue
		}
		if in.Op == ir.RET && prev >= 0 {
			p := insns[prev]
			if p.Op == ir.MOVE && isTemp(buf, p.P1) && p.P1 == in.P1 {
				insns[i].P1 = p.P2
				insns[prev].Tag = ir.TagSkip
				changed = true
				prev = i
				continue
			}
		}
		prev = i
	}
	return changed
}

// maxInlineInt is the largest magnitude a LOADI's sign+17-bit inline
// operand can hold (spec.md §6.2).
const maxInlineInt = 1<<17 - 1

// widenIntegers implements spec.md §4.8 pass 5: any surviving LOADI with a
// double payload, or an int payload outside the signed 17-bit inline range,
// is converted into a LOADK of a freshly pooled constant. Runs once, after
// the fixpoint loop, since widening never creates a new fold/elide/RET-fold
// opportunity (a LOADK target is exactly as eligible for MOVE-elimination
// as the LOADI it replaces, and that pass already ran to fixpoint against
// the un-widened form, which is equivalent for that purpose).
func widenIntegers(fn *object.Function) {
	insns := fn.IR.Insns
	for i := range insns {
		in := insns[i]
		if in.IsDeleted() || in.IsLabel() || in.Op != ir.LOADI {
			continue
		}
		switch in.Tag {
		case ir.TagDouble:
			idx := fn.AddConstant(object.Float(in.DVal))
			insns[i] = ir0(ir.LOADK, in.P1, idx, 0, in.Line)
		case ir.TagInt:
			if in.IVal > maxInlineInt || in.IVal < -maxInlineInt {
				idx := fn.AddConstant(object.Int(in.IVal))
				insns[i] = ir0(ir.LOADK, in.P1, idx, 0, in.Line)
			}
		}
	}
}

func ir0(op ir.Opcode, p1, p2, p3, line int) ir.Inst {
	return ir.Inst{Op: op, P1: p1, P2: p2, P3: p3, Line: line}
}
