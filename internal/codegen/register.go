package codegen

import "strings"

// ---------------------------------------------------------------------------
// Registers
//
// Registers are symbolic. ARM renders them by name; x86-64 maps each onto a
// physical register, with a separate spelling for every access width.
// ---------------------------------------------------------------------------

// Register is a symbolic machine register.
type Register int

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP // stack pointer
	LR // link register (base pointer on x86-64)
	PC // program counter
	NoReg
)

var armRegNames = [...]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11", "r12",
	"sp", "lr", "pc", "",
}

// x86-64 spellings indexed by Register, one table per width.
var (
	x86Reg64 = [...]string{
		"rax", "rdi", "rsi", "rdx", "rdi", "rsi", "rdx", "rcx", "r8", "r9", "r12", "r13", "r14",
		"rsp", "rbp", "rbp", "",
	}
	x86Reg32 = [...]string{
		"eax", "edi", "esi", "edx", "edi", "esi", "edx", "ecx", "r8d", "r9d", "r12d", "r13d", "r14d",
		"esp", "ebp", "ebp", "",
	}
	x86Reg16 = [...]string{
		"ax", "di", "si", "dx", "di", "si", "dx", "cx", "r8w", "r9w", "r12w", "r13w", "r14w",
		"sp", "bp", "bp", "",
	}
	x86Reg8 = [...]string{
		"al", "dil", "sil", "dl", "dil", "sil", "dl", "cl", "r8b", "r9b", "r12b", "r13b", "r14b",
		"spl", "bpl", "bpl", "",
	}
)

// Render returns the full-width register name for t.
func (r Register) Render(t *Target) string {
	if r < R0 || r > NoReg {
		return "?"
	}
	if t.IsX86() {
		return x86Name(x86Reg64[r])
	}
	return armRegNames[r]
}

// Sized returns the x86-64 spelling of r for the given access width. On ARM
// it is the plain name.
func (r Register) Sized(t *Target, m Memory) string {
	if !t.IsX86() || r < R0 || r > NoReg {
		return r.Render(t)
	}
	switch m {
	case MemB, MemSB:
		return x86Name(x86Reg8[r])
	case MemW:
		return x86Name(x86Reg16[r])
	case MemL:
		return x86Name(x86Reg32[r])
	default:
		return x86Name(x86Reg64[r])
	}
}

func x86Name(s string) string {
	return "%" + s
}

// ---------------------------------------------------------------------------
// Memory access widths
// ---------------------------------------------------------------------------

// Memory is the access width attached to a load or store.
type Memory int

const (
	MemWord Memory = iota // natural width: word on ARM, quadword on x86-64
	MemB                  // unsigned byte
	MemSB                 // signed byte
	MemW                  // halfword
	MemL                  // 4 bytes
	MemQ                  // 8 bytes
)

// armSuffix is the LDR/STR suffix.
func (m Memory) armSuffix() string {
	switch m {
	case MemB:
		return "B"
	case MemSB:
		return "SB"
	case MemW:
		return "H"
	default:
		return ""
	}
}

// x86Suffix is the mov suffix used for stores.
func (m Memory) x86Suffix() string {
	switch m {
	case MemB, MemSB:
		return "b"
	case MemW:
		return "w"
	case MemL:
		return "l"
	case MemQ:
		return "q"
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// Condition codes
// ---------------------------------------------------------------------------

// Cond is a condition code. AL (always) renders as nothing.
type Cond int

const (
	AL Cond = iota
	EQ
	NE
	GT
	GE
	LT
	LE
	CS
	VS
)

// Render returns the ARM suffix or the x86-64 jcc/cmovcc suffix.
func (c Cond) Render(t *Target) string {
	if t.IsX86() {
		switch c {
		case EQ:
			return "e"
		case NE:
			return "ne"
		case GT:
			return "g"
		case GE:
			return "ge"
		case LT:
			return "l"
		case LE:
			return "le"
		case CS:
			return "ae"
		case VS:
			return "o"
		}
		return ""
	}
	if c == AL {
		return ""
	}
	return strings.ToUpper([...]string{"", "eq", "ne", "gt", "ge", "lt", "le", "cs", "vs"}[c])
}

// Opposite returns the logical complement of c.
func (c Cond) Opposite() Cond {
	switch c {
	case EQ:
		return NE
	case NE:
		return EQ
	case GT:
		return LE
	case LE:
		return GT
	case GE:
		return LT
	case LT:
		return GE
	}
	return c
}
