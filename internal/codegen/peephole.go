package codegen

// ---------------------------------------------------------------------------
// Peephole pass
//
// One forward scan with a single instruction of lookback. The lookback
// always moves on to the instruction just examined, removed or not, so a
// store followed by two identical loads only loses the first load.
// ---------------------------------------------------------------------------

// Peephole removes redundant instructions and reports how many it dropped.
// Operands are compared by their rendering for t, so two symbolic registers
// that share a physical register count as equal.
func Peephole(t *Target, in []Instr) ([]Instr, int) {
	out := make([]Instr, 0, len(in))
	removed := 0
	var prev Instr
	for _, cur := range in {
		if redundant(t, prev, cur) {
			removed++
		} else {
			out = append(out, cur)
		}
		prev = cur
	}
	return out, removed
}

func redundant(t *Target, prev, cur Instr) bool {
	switch cur := cur.(type) {
	case Load:
		// Reload of a value just stored from the same register.
		st, ok := prev.(Store)
		return ok && cur.Cond == AL && st.Mem == cur.Mem &&
			st.Reg.Render(t) == cur.Reg.Render(t) &&
			st.Mode.Render(t) == cur.Mode.Render(t)
	case Arith:
		// Adding a register just loaded with zero. Additions feeding an
		// overflow check keep their flags.
		ld, ok := prev.(Load)
		if !ok || cur.Op != ADD || cur.SetFlags || cur.Int32 || cur.Dst != cur.Src {
			return false
		}
		zero, isZero := ld.Mode.(ImmInt)
		ro, isReg := cur.Operand.(RegOperand)
		return isZero && zero.Value == 0 && isReg && ro.Reg.Render(t) == ld.Reg.Render(t)
	case Move:
		// Move of a register into itself.
		ro, ok := cur.Value.(RegOperand)
		return ok && cur.Cond == AL && ro.Reg.Render(t) == cur.Reg.Render(t)
	}
	return false
}
