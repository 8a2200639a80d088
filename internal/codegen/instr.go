package codegen

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instructions
//
// A closed set of instruction variants. Each carries only its operands;
// Render produces the text for one target and has no side effects. Some
// x86-64 renderings expand to several lines joined by "\n\t".
// ---------------------------------------------------------------------------

// Instr is one emitted instruction, label or directive.
type Instr interface {
	Render(t *Target) string
	instr()
}

// ---- arithmetic ----

// ArithOp is ADD, SUB or RSB (reverse subtract).
type ArithOp int

const (
	ADD ArithOp = iota
	SUB
	RSB
)

func (op ArithOp) render(t *Target) string {
	name := [...]string{"ADD", "SUB", "RSB"}[op]
	if t.IsX86() {
		return strings.ToLower(name)
	}
	return name
}

// Arith computes Dst = Src op Operand. SetFlags adds the S suffix on ARM.
// Int32 makes the x86-64 form operate on the 32-bit sub-registers, which
// is what raises the overflow flag for int arithmetic; the operand must
// then be a RegOperand.
type Arith struct {
	Op       ArithOp
	Dst      Register
	Src      Register
	Operand  Operand
	SetFlags bool
	Int32    bool
}

func (in Arith) Render(t *Target) string {
	if !t.IsX86() {
		s := ""
		if in.SetFlags {
			s = "S"
		}
		return fmt.Sprintf("%s%s %s, %s, %s", in.Op.render(t), s, in.Dst.Render(t), in.Src.Render(t), in.Operand.Render(t))
	}

	if in.Op == RSB {
		return "neg " + in.Dst.Sized(t, MemL)
	}
	var b strings.Builder
	operand := in.Operand.Render(t)
	if sh, ok := in.Operand.(Shifted); ok {
		b.WriteString(operand + "\n\t")
		operand = sh.Reg.Render(t)
	}
	if in.Dst != in.Src {
		fmt.Fprintf(&b, "mov %s, %s\n\t", in.Src.Render(t), in.Dst.Render(t))
	}
	if ro, ok := in.Operand.(RegOperand); ok && in.Int32 {
		fmt.Fprintf(&b, "%sl %s, %s", in.Op.render(t), ro.Reg.Sized(t, MemL), in.Dst.Sized(t, MemL))
	} else {
		fmt.Fprintf(&b, "%s %s, %s", in.Op.render(t), operand, in.Dst.Render(t))
	}
	return b.String()
}

// ---- logic ----

// LogicOp is AND, ORR or EOR.
type LogicOp int

const (
	AND LogicOp = iota
	ORR
	EOR
)

func (op LogicOp) render(t *Target) string {
	if t.IsX86() {
		return [...]string{"and", "or", "xor"}[op]
	}
	return [...]string{"AND", "ORR", "EOR"}[op]
}

// Logic computes Dst = Src op Operand.
type Logic struct {
	Op      LogicOp
	Dst     Register
	Src     Register
	Operand Operand
}

func (in Logic) Render(t *Target) string {
	if !t.IsX86() {
		return fmt.Sprintf("%s %s, %s, %s", in.Op.render(t), in.Dst.Render(t), in.Src.Render(t), in.Operand.Render(t))
	}
	s := ""
	if in.Dst != in.Src {
		s = fmt.Sprintf("mov %s, %s\n\t", in.Src.Render(t), in.Dst.Render(t))
	}
	return s + fmt.Sprintf("%s %s, %s", in.Op.render(t), in.Operand.Render(t), in.Dst.Render(t))
}

// ---- multiply / divide / extend ----

// Multiply is ARM's SMULL: a signed 32x32 multiply into a Lo/Hi pair.
type Multiply struct {
	Cond Cond
	Lo   Register
	Hi   Register
	Rn   Register
	Rm   Register
}

func (in Multiply) Render(t *Target) string {
	return fmt.Sprintf("SMULL%s %s, %s, %s, %s", in.Cond.Render(t), in.Lo.Render(t), in.Hi.Render(t), in.Rn.Render(t), in.Rm.Render(t))
}

// IMul is x86-64's 32-bit two-operand imul: Dst *= Src.
type IMul struct {
	Src Register
	Dst Register
}

func (in IMul) Render(t *Target) string {
	return fmt.Sprintf("imul %s, %s", in.Src.Sized(t, MemL), in.Dst.Sized(t, MemL))
}

// Divide is x86-64's signed divide of rdx:rax by Reg.
type Divide struct{ Reg Register }

func (in Divide) Render(t *Target) string {
	return "idiv " + in.Reg.Render(t)
}

// SignExtend widens the accumulator: cbw, cwde, cdqe, or cqo into rdx.
type SignExtend struct{ From Memory }

func (in SignExtend) Render(t *Target) string {
	switch in.From {
	case MemB, MemSB:
		return "cbw"
	case MemW:
		return "cwde"
	case MemL:
		return "cdqe"
	default:
		return "cqo"
	}
}

// ---- moves ----

// Move copies Value into Reg, optionally under a condition (ARM).
type Move struct {
	Cond  Cond
	Reg   Register
	Value Operand
}

func (in Move) Render(t *Target) string {
	if t.IsX86() {
		return fmt.Sprintf("mov %s, %s", in.Value.Render(t), in.Reg.Render(t))
	}
	return fmt.Sprintf("MOV%s %s, %s", in.Cond.Render(t), in.Reg.Render(t), in.Value.Render(t))
}

// CMove is x86-64's conditional move from Src into Dst.
type CMove struct {
	Cond Cond
	Src  Register
	Dst  Register
}

func (in CMove) Render(t *Target) string {
	return fmt.Sprintf("cmov%s %s, %s", in.Cond.Render(t), in.Src.Render(t), in.Dst.Render(t))
}

// Compare sets the flags from Reg - Operand.
type Compare struct {
	Reg     Register
	Operand Operand
}

func (in Compare) Render(t *Target) string {
	if t.IsX86() {
		return fmt.Sprintf("cmp %s, %s", in.Operand.Render(t), in.Reg.Render(t))
	}
	return fmt.Sprintf("CMP %s, %s", in.Reg.Render(t), in.Operand.Render(t))
}

// ---- memory ----

// Load reads Mode into Reg with the given width. On x86-64 narrow loads
// extend into the full register.
type Load struct {
	Cond Cond
	Mode Operand
	Reg  Register
	Mem  Memory
}

func (in Load) Render(t *Target) string {
	if !t.IsX86() {
		return fmt.Sprintf("LDR%s%s %s, %s", in.Mem.armSuffix(), in.Cond.Render(t), in.Reg.Render(t), in.Mode.Render(t))
	}
	mnemonic := "mov"
	switch in.Mem {
	case MemB:
		mnemonic = "movzbq"
	case MemSB:
		mnemonic = "movsbq"
	case MemW:
		mnemonic = "movswq"
	case MemL:
		mnemonic = "movslq"
	}
	return fmt.Sprintf("%s %s, %s", mnemonic, in.Mode.Render(t), in.Reg.Render(t))
}

// Store writes Reg to Mode with the given width.
type Store struct {
	Mode Operand
	Reg  Register
	Mem  Memory
}

func (in Store) Render(t *Target) string {
	if t.IsX86() {
		return fmt.Sprintf("mov%s %s, %s", in.Mem.x86Suffix(), in.Reg.Sized(t, in.Mem), in.Mode.Render(t))
	}
	return fmt.Sprintf("STR%s %s, %s", in.Mem.armSuffix(), in.Reg.Render(t), in.Mode.Render(t))
}

// Push and Pop move one register to or from the stack.
type Push struct{ Reg Register }

func (in Push) Render(t *Target) string {
	if t.IsX86() {
		return "pushq " + in.Reg.Render(t)
	}
	return "PUSH {" + in.Reg.Render(t) + "}"
}

type Pop struct{ Reg Register }

func (in Pop) Render(t *Target) string {
	if t.IsX86() {
		return "popq " + in.Reg.Render(t)
	}
	return "POP {" + in.Reg.Render(t) + "}"
}

// ---- control flow ----

// Branch jumps to Label, optionally under a condition. Link makes it a
// call.
type Branch struct {
	Cond  Cond
	Label string
	Link  bool
}

func (in Branch) Render(t *Target) string {
	if !t.IsX86() {
		l := ""
		if in.Link {
			l = "L"
		}
		return "B" + l + in.Cond.Render(t) + " " + in.Label
	}
	switch {
	case in.Link:
		return "call " + in.Label
	case in.Cond == AL:
		return "jmp " + in.Label
	default:
		return "j" + in.Cond.Render(t) + " " + in.Label
	}
}

// End restores the caller's frame and returns.
type End struct{}

func (End) Render(t *Target) string {
	if t.IsX86() {
		return "leave\n\tret"
	}
	return "POP {pc}"
}

// ---- labels and directives ----

// Label marks a position.
type Label struct{ Name string }

func (in Label) Render(t *Target) string { return in.Name + ":" }

// FuncLabel is the label of a user function. The prefix keeps user names
// clear of mnemonics and runtime symbols.
func FuncLabel(name string) string { return "f_" + name }

// Directive is an assembler directive such as .text or .ltorg.
type Directive struct{ Name string }

func (in Directive) Render(t *Target) string { return "." + in.Name }

// Message is one length-prefixed string record of the data segment. Text
// holds the raw bytes.
type Message struct {
	Index int
	Text  string
}

// MessageName is the label of the Nth data record.
func MessageName(i int) string { return fmt.Sprintf("msg_%d", i) }

func (in Message) Render(t *Target) string {
	word, str := ".word", ".ascii"
	if t.IsX86() {
		word, str = ".int", ".string"
	}
	return fmt.Sprintf("%s:\n\t%s %d\n\t%s \"%s\"", MessageName(in.Index), word, len(in.Text), str, escapeString(in.Text))
}

func (Arith) instr()      {}
func (Logic) instr()      {}
func (Multiply) instr()   {}
func (IMul) instr()       {}
func (Divide) instr()     {}
func (SignExtend) instr() {}
func (Move) instr()       {}
func (CMove) instr()      {}
func (Compare) instr()    {}
func (Load) instr()       {}
func (Store) instr()      {}
func (Push) instr()       {}
func (Pop) instr()        {}
func (Branch) instr()     {}
func (End) instr()        {}
func (Label) instr()      {}
func (Directive) instr()  {}
func (Message) instr()    {}
