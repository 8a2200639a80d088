package codegen

// ---------------------------------------------------------------------------
// Library stubs
//
// Thin wrappers over the C library. Every stub takes its argument in r0
// (%rax) and follows the platform calling convention from there.
// ---------------------------------------------------------------------------

// cArgs returns the first three C argument registers.
func (rt *Runtime) cArgs() [3]Register {
	if rt.t.IsX86() {
		return [3]Register{R1, R2, R3} // rdi, rsi, rdx
	}
	return [3]Register{R0, R1, R2}
}

func libc(name string) Instr { return Branch{Label: name, Link: true} }

// format loads the characters of a data-segment string into reg.
func (rt *Runtime) format(reg Register, text string) []Instr {
	return []Instr{
		Load{Mode: DataLabel{Name: rt.data.Intern(text)}, Reg: reg},
		Arith{Op: ADD, Dst: reg, Src: reg, Operand: Imm{Value: 4}},
	}
}

// variadic calls a variadic C function; x86-64 needs %al cleared.
func (rt *Runtime) variadic(name string) []Instr {
	if rt.t.IsX86() {
		return []Instr{Move{Reg: R0, Value: Imm{Value: 0}}, libc(name)}
	}
	return []Instr{libc(name)}
}

func (rt *Runtime) fflush() []Instr {
	return []Instr{Move{Reg: rt.t.ArgReg(), Value: Imm{Value: 0}}, libc("fflush")}
}

// ---- input ----

func (rt *Runtime) read(k Support, fmt string) []Instr {
	a := rt.cArgs()
	out := rt.enter(k)
	out = append(out, Move{Reg: a[1], Value: RegOperand{Reg: R0}})
	out = append(out, rt.format(a[0], fmt)...)
	out = append(out, rt.variadic("scanf")...)
	return append(out, End{})
}

// ---- output ----

// printValue prints r0 with a single-conversion format.
func (rt *Runtime) printValue(k Support, fmt string) []Instr {
	a := rt.cArgs()
	out := rt.enter(k)
	out = append(out, Move{Reg: a[1], Value: RegOperand{Reg: R0}})
	out = append(out, rt.format(a[0], fmt)...)
	out = append(out, rt.variadic("printf")...)
	out = append(out, rt.fflush()...)
	return append(out, End{})
}

func (rt *Runtime) printBool() []Instr {
	a := rt.cArgs()
	yes, no := rt.data.Intern("true\x00"), rt.data.Intern("false\x00")
	out := rt.enter(LibPrintBool)
	out = append(out, Compare{Reg: R0, Operand: Imm{Value: 0}})
	if rt.t.IsX86() {
		out = append(out,
			Load{Mode: DataLabel{Name: yes}, Reg: a[0]},
			Move{Reg: AccumReg, Value: DataLabel{Name: no}},
			CMove{Cond: EQ, Src: AccumReg, Dst: a[0]},
		)
	} else {
		out = append(out,
			Load{Cond: NE, Mode: DataLabel{Name: yes}, Reg: a[0]},
			Load{Cond: EQ, Mode: DataLabel{Name: no}, Reg: a[0]},
		)
	}
	out = append(out, Arith{Op: ADD, Dst: a[0], Src: a[0], Operand: Imm{Value: 4}})
	out = append(out, rt.variadic("printf")...)
	out = append(out, rt.fflush()...)
	return append(out, End{})
}

// printString prints a length-prefixed string or char array in r0.
func (rt *Runtime) printString() []Instr {
	a := rt.cArgs()
	out := rt.enter(LibPrintString)
	out = append(out,
		Load{Mode: RegMode{Reg: R0}, Reg: a[1], Mem: lengthMem(rt.t)},
		Arith{Op: ADD, Dst: a[2], Src: R0, Operand: Imm{Value: 4}},
	)
	out = append(out, rt.format(a[0], "%.*s\x00")...)
	out = append(out, rt.variadic("printf")...)
	out = append(out, rt.fflush()...)
	return append(out, End{})
}

func (rt *Runtime) printLn() []Instr {
	a := rt.cArgs()
	out := rt.enter(LibPrintLn)
	out = append(out, rt.format(a[0], "\x00")...)
	out = append(out, libc("puts"))
	out = append(out, rt.fflush()...)
	return append(out, End{})
}

// ---- memory ----

func (rt *Runtime) freeArray() []Instr {
	a := rt.cArgs()
	out := rt.enter(LibFreeArray)
	out = append(out, Compare{Reg: R0, Operand: Imm{Value: 0}})
	out = append(out, rt.throwIf(EQ, msgNullReference, false)...)
	if a[0] != R0 {
		out = append(out, Move{Reg: a[0], Value: RegOperand{Reg: R0}})
	}
	out = append(out, libc("free"))
	return append(out, End{})
}

// freePair frees both element boxes, then the pair itself.
func (rt *Runtime) freePair() []Instr {
	a := rt.cArgs()
	out := rt.enter(LibFreePair)
	out = append(out, Compare{Reg: R0, Operand: Imm{Value: 0}})
	out = append(out, rt.throwIf(EQ, msgNullReference, false)...)

	if rt.t.IsX86() {
		slot := RegMode{Reg: SP}
		return append(out,
			Arith{Op: SUB, Dst: SP, Src: SP, Operand: Imm{Value: 16}},
			Store{Mode: slot, Reg: R0},
			Load{Mode: RegMode{Reg: R0}, Reg: a[0]},
			libc("free"),
			Load{Mode: slot, Reg: R0},
			Load{Mode: RegOffset{Reg: R0, Offset: rt.t.PtrSize}, Reg: a[0]},
			libc("free"),
			Load{Mode: slot, Reg: a[0]},
			libc("free"),
			End{},
		)
	}
	return append(out,
		Push{Reg: R0},
		Load{Mode: RegMode{Reg: R0}, Reg: R0},
		libc("free"),
		Load{Mode: RegMode{Reg: SP}, Reg: R0},
		Load{Mode: RegOffset{Reg: R0, Offset: rt.t.PtrSize}, Reg: R0},
		libc("free"),
		Pop{Reg: R0},
		libc("free"),
		End{},
	)
}
