package codegen

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Operands (addressing modes)
//
// An operand's value is target-independent; only its text differs.
// ---------------------------------------------------------------------------

// Operand is one addressing-mode variant.
type Operand interface {
	Render(t *Target) string
	operand()
}

// ImmInt is a literal-pool load of an integer: =n on ARM, $n on x86-64.
type ImmInt struct{ Value int }

func (o ImmInt) Render(t *Target) string {
	if t.IsX86() {
		return "$" + strconv.Itoa(o.Value)
	}
	return "=" + strconv.Itoa(o.Value)
}

// Imm is an encodable immediate: #n on ARM, $n on x86-64.
type Imm struct{ Value int }

func (o Imm) Render(t *Target) string {
	if t.IsX86() {
		return "$" + strconv.Itoa(o.Value)
	}
	return "#" + strconv.Itoa(o.Value)
}

// ImmBool is #1/#0 or $1/$0.
type ImmBool struct{ Value bool }

func (o ImmBool) Render(t *Target) string {
	v := 0
	if o.Value {
		v = 1
	}
	return Imm{Value: v}.Render(t)
}

// ImmChar is a character immediate. ARM uses a quoted character with C
// escapes; x86-64 uses the character code.
type ImmChar struct{ Value byte }

func (o ImmChar) Render(t *Target) string {
	if t.IsX86() {
		return "$" + strconv.Itoa(int(o.Value))
	}
	if o.Value == 0 {
		return "#0"
	}
	return "#'" + escapeChar(o.Value, '\'') + "'"
}

// DataLabel is the address of a data-segment label: =msg_0 or $msg_0.
type DataLabel struct{ Name string }

func (o DataLabel) Render(t *Target) string {
	if t.IsX86() {
		return "$" + o.Name
	}
	return "=" + o.Name
}

// RegOperand is a plain register.
type RegOperand struct{ Reg Register }

func (o RegOperand) Render(t *Target) string { return o.Reg.Render(t) }

// RegMode dereferences a register: [r4] or (%rcx).
type RegMode struct{ Reg Register }

func (o RegMode) Render(t *Target) string {
	if t.IsX86() {
		return "(" + o.Reg.Render(t) + ")"
	}
	return "[" + o.Reg.Render(t) + "]"
}

// RegOffset dereferences a register plus a constant. PreIndex writes the
// address back (ARM only; x86-64 pairs the store with an explicit sub).
type RegOffset struct {
	Reg      Register
	Offset   int
	PreIndex bool
}

func (o RegOffset) Render(t *Target) string {
	if t.IsX86() {
		return fmt.Sprintf("%d(%s)", o.Offset, o.Reg.Render(t))
	}
	s := "[" + o.Reg.Render(t)
	if o.Offset != 0 {
		s += ", #" + strconv.Itoa(o.Offset)
	}
	s += "]"
	if o.PreIndex {
		s += "!"
	}
	return s
}

// ShiftKind is LSL or ASR.
type ShiftKind int

const (
	LSL ShiftKind = iota
	ASR
)

func (s ShiftKind) render(t *Target) string {
	if t.IsX86() {
		if s == ASR {
			return "sar"
		}
		return "shl"
	}
	if s == ASR {
		return "ASR"
	}
	return "LSL"
}

// Shifted is a register operand with a barrel shift. On x86-64 it renders
// as the standalone shift instruction that precedes its use.
type Shifted struct {
	Reg    Register
	Kind   ShiftKind
	Amount int
}

func (o Shifted) Render(t *Target) string {
	if t.IsX86() {
		return fmt.Sprintf("%s $%d, %s", o.Kind.render(t), o.Amount, o.Reg.Render(t))
	}
	return fmt.Sprintf("%s, %s #%d", o.Reg.Render(t), o.Kind.render(t), o.Amount)
}

func (ImmInt) operand()     {}
func (Imm) operand()        {}
func (ImmBool) operand()    {}
func (ImmChar) operand()    {}
func (DataLabel) operand()  {}
func (RegOperand) operand() {}
func (RegMode) operand()    {}
func (RegOffset) operand()  {}
func (Shifted) operand()    {}

// ---------------------------------------------------------------------------
// Escaping
// ---------------------------------------------------------------------------

// escapeChar spells c the way GNU as reads it inside quote-delimited text.
func escapeChar(c byte, quote byte) string {
	switch c {
	case 0:
		// Three digits, so a following digit is not read into the escape.
		return `\000`
	case '\b':
		return `\b`
	case '\t':
		return `\t`
	case '\n':
		return `\n`
	case '\f':
		return `\f`
	case '\r':
		return `\r`
	case '\\':
		return `\\`
	case quote:
		return `\` + string(quote)
	}
	return string(c)
}

// escapeString escapes s for a .ascii/.string directive.
func escapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, escapeChar(s[i], '"')...)
	}
	return string(out)
}
