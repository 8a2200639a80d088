package codegen

import (
	"fmt"
	"strings"
	"testing"

	"wacc/internal/ast"
	"wacc/internal/semantic"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var (
	arm = NewTarget(ArchARM)
	x86 = NewTarget(ArchX86_64)
)

func bound(t *testing.T, doc string) *ast.Program {
	t.Helper()
	prog, err := ast.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diags := semantic.Bind(prog); semantic.HasErrors(diags) {
		for _, d := range diags {
			t.Logf("  %s", d.Error())
		}
		t.Fatalf("program did not bind")
	}
	return prog
}

func compile(t *testing.T, doc string, target *Target, optimize bool) *Result {
	t.Helper()
	res, err := Generate(bound(t, doc), &Options{Target: target, Optimize: optimize})
	if err != nil {
		t.Fatalf("Generate(%s): %v", target.Arch, err)
	}
	return res
}

// lines splits assembly into trimmed, non-empty lines.
func lines(asm string) []string {
	var out []string
	for _, l := range strings.Split(asm, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// expectSeq checks that want appears as consecutive lines of asm.
func expectSeq(t *testing.T, asm string, want ...string) {
	t.Helper()
	got := lines(asm)
	for i := 0; i+len(want) <= len(got); i++ {
		match := true
		for j, w := range want {
			if got[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return
		}
	}
	t.Errorf("expected consecutive lines:\n  %s\nin:\n%s", strings.Join(want, "\n  "), asm)
}

func countLine(asm, line string) int {
	n := 0
	for _, l := range lines(asm) {
		if l == line {
			n++
		}
	}
	return n
}

// labelFor returns the data label holding text.
func labelFor(t *testing.T, res *Result, text string) string {
	t.Helper()
	for _, in := range res.Instrs {
		if m, ok := in.(Message); ok && m.Text == text {
			return MessageName(m.Index)
		}
	}
	t.Fatalf("no data record for %q", text)
	return ""
}

// section returns the instructions from label up to the next .ltorg or
// the next function label.
func section(t *testing.T, instrs []Instr, label string) []Instr {
	t.Helper()
	start := -1
	for i, in := range instrs {
		if l, ok := in.(Label); ok && l.Name == label {
			start = i
			break
		}
	}
	if start < 0 {
		t.Fatalf("label %s not found", label)
	}
	end := len(instrs)
	for i := start + 1; i < len(instrs); i++ {
		if d, ok := instrs[i].(Directive); ok && d.Name == "ltorg" {
			end = i
			break
		}
		if l, ok := instrs[i].(Label); ok && (strings.HasPrefix(l.Name, "f_") || strings.HasPrefix(l.Name, "p_")) {
			end = i
			break
		}
	}
	return instrs[start:end]
}

// nestedSum builds 1 + (2 + (... + n)), which needs n-1 live registers.
func nestedSum(n int) string {
	expr := fmt.Sprintf("{int: %d}", n)
	for i := n - 1; i >= 1; i-- {
		expr = fmt.Sprintf(`{binary: {op: "+", left: {int: %d}, right: %s}}`, i, expr)
	}
	return expr
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func TestRenderARM(t *testing.T) {
	tests := []struct {
		in   Instr
		want string
	}{
		{Arith{Op: ADD, Dst: R4, Src: R4, Operand: RegOperand{Reg: R5}, SetFlags: true}, "ADDS r4, r4, r5"},
		{Arith{Op: SUB, Dst: SP, Src: SP, Operand: Imm{Value: 8}}, "SUB sp, sp, #8"},
		{Arith{Op: ADD, Dst: R4, Src: R4, Operand: Shifted{Reg: R5, Kind: LSL, Amount: 2}}, "ADD r4, r4, r5, LSL #2"},
		{Arith{Op: RSB, Dst: R4, Src: R4, Operand: Imm{Value: 0}, SetFlags: true}, "RSBS r4, r4, #0"},
		{Logic{Op: EOR, Dst: R4, Src: R4, Operand: Imm{Value: 1}}, "EOR r4, r4, #1"},
		{Load{Mode: ImmInt{Value: 5}, Reg: R4}, "LDR r4, =5"},
		{Load{Cond: EQ, Mode: DataLabel{Name: "msg_1"}, Reg: R0}, "LDREQ r0, =msg_1"},
		{Load{Mode: RegOffset{Reg: SP, Offset: 4}, Reg: R4, Mem: MemB}, "LDRB r4, [sp, #4]"},
		{Store{Mode: RegOffset{Reg: SP, Offset: -4, PreIndex: true}, Reg: R4}, "STR r4, [sp, #-4]!"},
		{Store{Mode: RegMode{Reg: R5}, Reg: R4, Mem: MemB}, "STRB r4, [r5]"},
		{Store{Mode: RegOffset{Reg: SP}, Reg: R4}, "STR r4, [sp]"},
		{Move{Cond: GT, Reg: R4, Value: ImmBool{Value: true}}, "MOVGT r4, #1"},
		{Move{Reg: R4, Value: ImmChar{Value: 'a'}}, "MOV r4, #'a'"},
		{Move{Reg: R4, Value: ImmChar{Value: '\n'}}, `MOV r4, #'\n'`},
		{Move{Reg: R4, Value: ImmChar{Value: 0}}, "MOV r4, #0"},
		{Compare{Reg: R4, Operand: Shifted{Reg: R5, Kind: ASR, Amount: 31}}, "CMP r4, r5, ASR #31"},
		{Multiply{Lo: R4, Hi: R5, Rn: R4, Rm: R5}, "SMULL r4, r5, r4, r5"},
		{Branch{Cond: VS, Label: "p_throw_overflow_error", Link: true}, "BLVS p_throw_overflow_error"},
		{Branch{Cond: EQ, Label: "L0"}, "BEQ L0"},
		{Push{Reg: LR}, "PUSH {lr}"},
		{Pop{Reg: PC}, "POP {pc}"},
		{End{}, "POP {pc}"},
		{Directive{Name: "ltorg"}, ".ltorg"},
		{Message{Index: 0, Text: "a"}, "msg_0:\n\t.word 1\n\t.ascii \"a\""},
		{Message{Index: 3, Text: "%d\x00"}, "msg_3:\n\t.word 3\n\t.ascii \"%d\\000\""},
		{Message{Index: 4, Text: "a\x001b"}, "msg_4:\n\t.word 4\n\t.ascii \"a\\0001b\""},
	}
	for _, tt := range tests {
		if got := tt.in.Render(arm); got != tt.want {
			t.Errorf("%#v: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderX86(t *testing.T) {
	tests := []struct {
		in   Instr
		want string
	}{
		{Arith{Op: ADD, Dst: R7, Src: R7, Operand: RegOperand{Reg: R8}, Int32: true}, "addl %r8d, %ecx"},
		{Arith{Op: SUB, Dst: R10, Src: R9, Operand: RegOperand{Reg: R8}}, "mov %r9, %r12\n\tsub %r8, %r12"},
		{Arith{Op: ADD, Dst: R7, Src: R7, Operand: Shifted{Reg: R8, Kind: LSL, Amount: 3}}, "shl $3, %r8\n\tadd %r8, %rcx"},
		{Arith{Op: RSB, Dst: R7, Src: R7, Operand: Imm{Value: 0}, SetFlags: true}, "neg %ecx"},
		{Logic{Op: EOR, Dst: R7, Src: R7, Operand: Imm{Value: 1}}, "xor $1, %rcx"},
		{Load{Mode: ImmInt{Value: 5}, Reg: R7}, "mov $5, %rcx"},
		{Load{Mode: RegOffset{Reg: SP}, Reg: R7, Mem: MemL}, "movslq 0(%rsp), %rcx"},
		{Load{Mode: RegMode{Reg: R7}, Reg: R7, Mem: MemB}, "movzbq (%rcx), %rcx"},
		{Store{Mode: RegOffset{Reg: SP, Offset: 4}, Reg: R7, Mem: MemB}, "movb %cl, 4(%rsp)"},
		{Store{Mode: RegMode{Reg: SP}, Reg: R8, Mem: MemL}, "movl %r8d, (%rsp)"},
		{Store{Mode: RegMode{Reg: R0}, Reg: R7}, "mov %rcx, (%rax)"},
		{Move{Reg: R0, Value: RegOperand{Reg: R7}}, "mov %rcx, %rax"},
		{Move{Reg: R7, Value: ImmChar{Value: 'a'}}, "mov $97, %rcx"},
		{CMove{Cond: GT, Src: R12, Dst: R7}, "cmovg %r14, %rcx"},
		{Compare{Reg: R7, Operand: Imm{Value: 0}}, "cmp $0, %rcx"},
		{IMul{Src: R8, Dst: R7}, "imul %r8d, %ecx"},
		{Divide{Reg: R1}, "idiv %rdi"},
		{SignExtend{From: MemL}, "cdqe"},
		{SignExtend{From: MemQ}, "cqo"},
		{Branch{Cond: VS, Label: "p_throw_overflow_error"}, "jo p_throw_overflow_error"},
		{Branch{Cond: CS, Label: "p_throw_runtime_error"}, "jae p_throw_runtime_error"},
		{Branch{Label: "f_inc", Link: true}, "call f_inc"},
		{Branch{Label: "L1"}, "jmp L1"},
		{Push{Reg: LR}, "pushq %rbp"},
		{Pop{Reg: R12}, "popq %r14"},
		{End{}, "leave\n\tret"},
		{Message{Index: 2, Text: "hi"}, "msg_2:\n\t.int 2\n\t.string \"hi\""},
		{Message{Index: 5, Text: "a\x001b"}, "msg_5:\n\t.int 4\n\t.string \"a\\0001b\""},
	}
	for _, tt := range tests {
		if got := tt.in.Render(x86); got != tt.want {
			t.Errorf("%#v: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderIsPure(t *testing.T) {
	in := Load{Mode: RegOffset{Reg: SP, Offset: 8}, Reg: R4}
	first := in.Render(arm)
	_ = in.Render(x86)
	if again := in.Render(arm); again != first {
		t.Errorf("render changed between calls: %q then %q", first, again)
	}
}

func TestSymbolicRegistersShareX86Names(t *testing.T) {
	if R1.Render(x86) != R4.Render(x86) {
		t.Errorf("R1 and R4 should both be %%rdi, got %s and %s", R1.Render(x86), R4.Render(x86))
	}
	if LR.Render(x86) != "%rbp" || SP.Render(x86) != "%rsp" {
		t.Errorf("unexpected LR/SP mapping: %s %s", LR.Render(x86), SP.Render(x86))
	}
	if R4.Render(arm) == R1.Render(arm) {
		t.Error("ARM registers must stay distinct")
	}
}

// ---------------------------------------------------------------------------
// Register allocator
// ---------------------------------------------------------------------------

func TestRegAllocLIFO(t *testing.T) {
	a := NewRegAlloc([]Register{R4, R5})
	if r := a.Acquire(); r != R4 {
		t.Fatalf("first Acquire = %v, want R4", r)
	}
	if r := a.Acquire(); r != R5 {
		t.Fatalf("second Acquire = %v, want R5", r)
	}
	if r := a.MostRecent(); r != R5 {
		t.Errorf("MostRecent = %v, want R5", r)
	}
	a.Release()
	if r := a.Acquire(); r != R5 {
		t.Errorf("Acquire after Release = %v, want R5", r)
	}
}

func TestRegAllocOverflow(t *testing.T) {
	a := NewRegAlloc([]Register{R4})
	a.Acquire()
	if r := a.Acquire(); r != NoReg {
		t.Fatalf("Acquire on empty pool = %v, want NoReg", r)
	}
	if r := a.MostRecent(); r != OverflowReg {
		t.Errorf("MostRecent after overflow = %v, want OverflowReg", r)
	}
	if r := a.MostRecent(); r != R4 {
		t.Errorf("overflow flag not cleared: MostRecent = %v", r)
	}
}

func TestRegAllocOverflowCount(t *testing.T) {
	for _, target := range []*Target{arm, x86} {
		a := NewRegAlloc(target.Free)
		n := a.Size()
		overflows := 0
		for i := 0; i < n+3; i++ {
			r := a.Acquire()
			if r == NoReg {
				overflows++
				continue
			}
			if r == OverflowReg || r == AccumReg {
				t.Errorf("%s: overflow pair handed out from the pool", target.Arch)
			}
		}
		if overflows != 3 {
			t.Errorf("%s: %d overflows, want 3", target.Arch, overflows)
		}
		a.ReleaseAll()
		if a.Free() != n {
			t.Errorf("%s: Free after ReleaseAll = %d, want %d", target.Arch, a.Free(), n)
		}
		if a.MostRecent() != NoReg {
			t.Errorf("%s: ReleaseAll left state behind", target.Arch)
		}
	}
}

func TestRegisterPools(t *testing.T) {
	tests := []struct {
		target *Target
		size   int
	}{
		{arm, 7},
		{x86, 4},
	}
	for _, tt := range tests {
		if got := len(tt.target.Free); got != tt.size {
			t.Errorf("%s: pool has %d registers, want %d", tt.target.Arch, got, tt.size)
		}
		for _, r := range tt.target.Free {
			for _, reserved := range []Register{OverflowReg, AccumReg} {
				if r.Render(tt.target) == reserved.Render(tt.target) {
					t.Errorf("%s: pool register %s aliases the overflow pair", tt.target.Arch, r.Render(tt.target))
				}
			}
		}
		a := NewRegAlloc(tt.target.Free)
		for a.Acquire() != NoReg {
		}
		a.ReleaseAll()
		if a.Free() != tt.size {
			t.Errorf("%s: ReleaseAll left %d free, want %d", tt.target.Arch, a.Free(), tt.size)
		}
	}
}

func TestRegAllocInUseIsCopy(t *testing.T) {
	a := NewRegAlloc([]Register{R4, R5})
	a.Acquire()
	live := a.InUse()
	live[0] = R9
	if a.InUse()[0] != R4 {
		t.Error("InUse exposed internal state")
	}
	if !a.Owns(R5) || a.Owns(OverflowReg) {
		t.Error("Owns should cover exactly the pool")
	}
}

// ---------------------------------------------------------------------------
// Frame layout
// ---------------------------------------------------------------------------

// frameScopes builds f(p int, q char) { int a; bool b; begin int a end }.
func frameScopes() (*ast.Scopes, ast.ScopeID, ast.ScopeID) {
	scopes := ast.NewScopes()
	fn := scopes.New(ast.NoScope, ast.ScopeFunc)
	sc := scopes.Get(fn)
	sc.Declare(ast.Binding{Name: "p", Type: ast.TypeInt, Param: true})
	sc.Declare(ast.Binding{Name: "q", Type: ast.TypeChar, Param: true})
	sc.Declare(ast.Binding{Name: "a", Type: ast.TypeInt})
	sc.Declare(ast.Binding{Name: "b", Type: ast.TypeBool})
	inner := scopes.New(fn, ast.ScopeBlock)
	scopes.Get(inner).Declare(ast.Binding{Name: "a", Type: ast.TypeInt})
	return scopes, fn, inner
}

func TestLayoutARM(t *testing.T) {
	scopes, fn, inner := frameScopes()
	l := NewLayout(arm, scopes)
	if got := l.LayoutScope(fn); got != 5 {
		t.Fatalf("LayoutScope(fn) = %d, want 5", got)
	}
	f := l.Frame(fn)
	if f.ParamSize != 5 || f.TotalSize != 10 || f.CurrOffset != 5 {
		t.Errorf("frame = %+v", *f)
	}
	if off := l.Claim(fn, 4); off != 1 {
		t.Errorf("Claim(a) = %d, want 1", off)
	}
	if off := l.Claim(fn, 1); off != 0 {
		t.Errorf("Claim(b) = %d, want 0", off)
	}

	want := map[string]int{"b": 0, "a": 1, "p": 9, "q": 13}
	for name, off := range want {
		if got := l.ResolveOffset(fn, name); got != off {
			t.Errorf("ResolveOffset(%s) = %d, want %d", name, got, off)
		}
	}

	// The shadowing local is invisible until it is declared.
	if l.LayoutScope(inner) != 4 {
		t.Fatalf("LayoutScope(inner) = %d, want 4", l.Frame(inner).DeclaredSize)
	}
	if got := l.ResolveOffset(inner, "a"); got != 5 {
		t.Errorf("outer a from inner = %d, want 5", got)
	}
	l.Claim(inner, 4)
	if got := l.ResolveOffset(inner, "a"); got != 0 {
		t.Errorf("inner a = %d, want 0", got)
	}
	if got := l.ResolveOffset(inner, "p"); got != 13 {
		t.Errorf("p from inner = %d, want 13", got)
	}
	if got := l.FrameBytes(inner, fn); got != 9 {
		t.Errorf("FrameBytes = %d, want 9", got)
	}
}

func TestLayoutX86(t *testing.T) {
	scopes, fn, _ := frameScopes()
	l := NewLayout(x86, scopes)
	if got := l.LayoutScope(fn); got != 16 {
		t.Fatalf("LayoutScope(fn) = %d, want 16", got)
	}
	l.Claim(fn, 4)
	l.Claim(fn, 1)
	want := map[string]int{"b": 0, "a": 1, "p": 32, "q": 36}
	for name, off := range want {
		if got := l.ResolveOffset(fn, name); got != off {
			t.Errorf("ResolveOffset(%s) = %d, want %d", name, got, off)
		}
	}
}

func TestLayoutIsStable(t *testing.T) {
	scopes, fn, _ := frameScopes()
	l := NewLayout(arm, scopes)
	first := l.LayoutScope(fn)
	l.Claim(fn, 4)
	if again := l.LayoutScope(fn); again != first {
		t.Errorf("LayoutScope changed: %d then %d", first, again)
	}
	a, b := l.ResolveOffset(fn, "a"), l.ResolveOffset(fn, "a")
	if a != b {
		t.Errorf("ResolveOffset not deterministic: %d then %d", a, b)
	}
}

func TestAdjustSPChunks(t *testing.T) {
	out := adjustSP(arm, SUB, 2500)
	if len(out) != 3 {
		t.Fatalf("got %d instructions, want 3", len(out))
	}
	total := 0
	for _, in := range out {
		v := in.(Arith).Operand.(Imm).Value
		if v > MaxStackOffset {
			t.Errorf("chunk %d exceeds %d", v, MaxStackOffset)
		}
		total += v
	}
	if total != 2500 {
		t.Errorf("chunks sum to %d", total)
	}
	if len(adjustSP(arm, ADD, 0)) != 0 {
		t.Error("zero adjustment should emit nothing")
	}
}

func TestAdjustSPEncodableOnARM(t *testing.T) {
	for _, n := range []int{257, 1023, 260, 4100} {
		total := 0
		for _, in := range adjustSP(arm, SUB, n) {
			v := in.(Arith).Operand.(Imm).Value
			if !armEncodable(v) {
				t.Errorf("adjustSP(%d): #%d is not an ARM immediate", n, v)
			}
			total += v
		}
		if total != n {
			t.Errorf("adjustSP(%d): chunks sum to %d", n, total)
		}
	}
	if out := adjustSP(x86, SUB, 257); len(out) != 1 {
		t.Errorf("x86-64 split 257 into %d chunks", len(out))
	}
}

func TestArmEncodable(t *testing.T) {
	tests := []struct {
		v  int
		ok bool
	}{
		{0, true}, {255, true}, {256, true}, {1020, true}, {1024, true},
		{257, false}, {1023, false}, {0x102, false},
	}
	for _, tt := range tests {
		if got := armEncodable(tt.v); got != tt.ok {
			t.Errorf("armEncodable(%d) = %v, want %v", tt.v, got, tt.ok)
		}
	}
}

func TestGenerateLargeFrameARM(t *testing.T) {
	var b strings.Builder
	b.WriteString("body:\n")
	for i := 0; i < 64; i++ {
		fmt.Fprintf(&b, "  - declare: {type: int, name: v%d, value: {int: %d}}\n", i, i)
	}
	b.WriteString("  - declare: {type: char, name: c, value: {char: x}}\n")
	res := compile(t, b.String(), arm, false)
	expectSeq(t, res.Assembly, "SUB sp, sp, #1", "SUB sp, sp, #256")
	if strings.Contains(res.Assembly, "#257") {
		t.Error("frame adjustment uses an unencodable immediate")
	}
}

// ---------------------------------------------------------------------------
// Runtime registry and data segment
// ---------------------------------------------------------------------------

func TestRuntimeDemandIsIdempotent(t *testing.T) {
	data := NewDataSegment()
	rt := NewRuntime(arm, data)
	for i := 0; i < 3; i++ {
		if got := rt.Demand(ErrOverflow); got != "p_throw_overflow_error" {
			t.Fatalf("Demand = %s", got)
		}
	}
	rt.Demand(ErrNullReference)

	if !rt.Demanded(ErrRuntime) || !rt.Demanded(LibPrintString) {
		t.Error("overflow block should pull in the runtime trampoline and print_string")
	}
	if rt.Demanded(LibPrintInt) {
		t.Error("print_int was never demanded")
	}

	asm := Print(arm, rt.Flush())
	for _, label := range []string{"p_throw_overflow_error:", "p_throw_runtime_error:", "p_print_string:", "p_check_null_pointer:"} {
		if n := countLine(asm, label); n != 1 {
			t.Errorf("%s appears %d times", label, n)
		}
	}
	if strings.Index(asm, "p_check_null_pointer:") > strings.Index(asm, "p_print_string:") {
		t.Error("error blocks must precede library blocks")
	}
	if data.Len() != 3 {
		t.Errorf("data records = %d, want 3", data.Len())
	}
}

func TestDataSegmentDedup(t *testing.T) {
	d := NewDataSegment()
	a := d.Intern("hello")
	b := d.Intern("world")
	if again := d.Intern("hello"); again != a {
		t.Errorf("Intern(hello) = %s then %s", a, again)
	}
	if a == b || d.Len() != 2 {
		t.Errorf("labels %s %s, len %d", a, b, d.Len())
	}
	msgs := d.Flush()
	if m := msgs[1].(Message); m.Text != "world" || m.Index != 1 {
		t.Errorf("second record = %+v", m)
	}
}

// ---------------------------------------------------------------------------
// Peephole and printer
// ---------------------------------------------------------------------------

func TestPeepholeLookbackQuirk(t *testing.T) {
	slot := RegOffset{Reg: SP}
	in := []Instr{
		Store{Mode: slot, Reg: R4},
		Load{Mode: slot, Reg: R4},
		Load{Mode: slot, Reg: R4},
	}
	out, removed := Peephole(arm, in)
	if removed != 1 || len(out) != 2 {
		t.Fatalf("removed %d, kept %d; want 1 and 2", removed, len(out))
	}
	if _, ok := out[1].(Load); !ok {
		t.Errorf("second load should survive, got %T", out[1])
	}
}

func TestPeepholeRules(t *testing.T) {
	tests := []struct {
		name    string
		target  *Target
		in      []Instr
		removed int
	}{
		{"self move", arm, []Instr{Move{Reg: R4, Value: RegOperand{Reg: R4}}}, 1},
		{"aliased self move", x86, []Instr{Move{Reg: R1, Value: RegOperand{Reg: R4}}}, 1},
		{"distinct move", arm, []Instr{Move{Reg: R1, Value: RegOperand{Reg: R4}}}, 0},
		{"conditional move", arm, []Instr{Move{Cond: EQ, Reg: R4, Value: RegOperand{Reg: R4}}}, 0},
		{"add zero", arm, []Instr{
			Load{Mode: ImmInt{Value: 0}, Reg: R5},
			Arith{Op: ADD, Dst: R4, Src: R4, Operand: RegOperand{Reg: R5}},
		}, 1},
		{"flag-setting add zero", arm, []Instr{
			Load{Mode: ImmInt{Value: 0}, Reg: R5},
			Arith{Op: ADD, Dst: R4, Src: R4, Operand: RegOperand{Reg: R5}, SetFlags: true},
		}, 0},
		{"width mismatch", arm, []Instr{
			Store{Mode: RegOffset{Reg: SP}, Reg: R4, Mem: MemB},
			Load{Mode: RegOffset{Reg: SP}, Reg: R4},
		}, 0},
		{"other register", arm, []Instr{
			Store{Mode: RegOffset{Reg: SP}, Reg: R4},
			Load{Mode: RegOffset{Reg: SP}, Reg: R5},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, removed := Peephole(tt.target, tt.in)
			if removed != tt.removed || len(out) != len(tt.in)-tt.removed {
				t.Errorf("removed %d (kept %d), want %d", removed, len(out), tt.removed)
			}
		})
	}
}

func TestPrintLayout(t *testing.T) {
	in := []Instr{
		Directive{Name: "data"},
		Message{Index: 0, Text: "a"},
		Directive{Name: "text"},
		Directive{Name: "global main"},
		Label{Name: "main"},
		Push{Reg: LR},
		Directive{Name: "ltorg"},
	}
	want := ".data\n\nmsg_0:\n\t.word 1\n\t.ascii \"a\"\n\n.text\n\n.global main\nmain:\n\tPUSH {lr}\n\t.ltorg\n"
	if got := Print(arm, in); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

// ---------------------------------------------------------------------------
// Whole programs
// ---------------------------------------------------------------------------

const printFive = `
body:
  - declare: {type: int, name: x, value: {int: 5}}
  - print: {ident: x}
`

func TestGeneratePrintIntARM(t *testing.T) {
	res := compile(t, printFive, arm, false)
	expectSeq(t, res.Assembly,
		"main:",
		"PUSH {lr}",
		"SUB sp, sp, #4",
		"LDR r4, =5",
		"STR r4, [sp]",
		"LDR r4, [sp]",
		"MOV r0, r4",
		"BL p_print_int",
		"ADD sp, sp, #4",
		"LDR r0, =0",
		"POP {pc}",
		".ltorg",
	)
	if countLine(res.Assembly, "p_print_int:") != 1 {
		t.Error("p_print_int block missing")
	}
	if !strings.HasPrefix(res.Assembly, ".data\n") {
		t.Error("data section should come first")
	}
}

func TestGeneratePrintIntX86(t *testing.T) {
	res := compile(t, printFive, x86, false)
	expectSeq(t, res.Assembly,
		"main:",
		"pushq %rbp",
		"mov %rsp, %rbp",
		"sub $16, %rsp",
		"mov $5, %rcx",
		"movl %ecx, 0(%rsp)",
		"movslq 0(%rsp), %rcx",
		"mov %rcx, %rax",
		"call p_print_int",
		"add $16, %rsp",
		"mov $0, %rax",
		"leave",
		"ret",
	)
	if strings.Contains(res.Assembly, ".ltorg") {
		t.Error("x86-64 output has no literal pools")
	}
}

func TestGenerateOptimizeDropsReload(t *testing.T) {
	res := compile(t, printFive, arm, true)
	if res.Removed == 0 {
		t.Fatal("peephole removed nothing")
	}
	expectSeq(t, res.Assembly, "STR r4, [sp]", "MOV r0, r4")
}

const overflowingAdd = `
body:
  - declare: {type: int, name: x, value: {int: 2147483647}}
  - assign: {target: {ident: x}, value: {binary: {op: "+", left: {ident: x}, right: {int: 1}}}}
  - println: {ident: x}
`

func TestGenerateOverflowCheck(t *testing.T) {
	res := compile(t, overflowingAdd, arm, false)
	expectSeq(t, res.Assembly,
		"LDR r4, [sp]",
		"LDR r5, =1",
		"ADDS r4, r4, r5",
		"BLVS p_throw_overflow_error",
		"STR r4, [sp]",
	)
	labelFor(t, res, msgOverflow)
	for _, label := range []string{"p_throw_overflow_error:", "p_throw_runtime_error:", "p_print_string:", "p_print_ln:"} {
		if countLine(res.Assembly, label) != 1 {
			t.Errorf("%s should appear exactly once", label)
		}
	}

	res = compile(t, overflowingAdd, x86, false)
	expectSeq(t, res.Assembly,
		"addl %r8d, %ecx",
		"jo p_throw_overflow_error",
		"mov %rcx, %rax",
		"cdqe",
		"mov %rax, %rcx",
	)
}

const outOfBounds = `
body:
  - declare: {type: "int[]", name: a, value: {array: [{int: 1}, {int: 2}, {int: 3}]}}
  - declare: {type: int, name: y, value: {index: {array: a, at: [{int: 5}]}}}
  - print: {ident: y}
`

func TestGenerateBoundsCheck(t *testing.T) {
	res := compile(t, outOfBounds, arm, false)
	expectSeq(t, res.Assembly,
		"ADD r4, sp, #4",
		"LDR r5, =5",
		"LDR r4, [r4]",
		"MOV r0, r5",
		"MOV r1, r4",
		"BL p_check_array_bounds",
		"ADD r4, r4, #4",
		"ADD r4, r4, r5, LSL #2",
		"LDR r4, [r4]",
	)
	neg := labelFor(t, res, msgNegativeIndex)
	large := labelFor(t, res, msgIndexTooLarge)
	expectSeq(t, res.Assembly, "LDRLT r0, ="+neg, "BLLT p_throw_runtime_error")
	expectSeq(t, res.Assembly, "LDRCS r0, ="+large, "BLCS p_throw_runtime_error")

	res = compile(t, outOfBounds, x86, false)
	expectSeq(t, res.Assembly, "movslq (%rdi), %r14", "cmp %r14, %rax")
	expectSeq(t, res.Assembly, "cmovae %r14, %rax", "jae p_throw_runtime_error")
}

func TestGenerateStringDedup(t *testing.T) {
	doc := `
body:
  - print: {string: a}
  - print: {string: a}
`
	res := compile(t, doc, arm, false)
	n := 0
	for _, in := range res.Instrs {
		if m, ok := in.(Message); ok && m.Text == "a" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("%d records for \"a\", want 1", n)
	}
	label := labelFor(t, res, "a")
	if got := countLine(res.Assembly, "LDR r4, ="+label); got != 2 {
		t.Errorf("%d references to %s, want 2", got, label)
	}
}

const callInc = `
functions:
  - name: inc
    returns: int
    params: [{name: x, type: int}]
    body:
      - return: {binary: {op: "+", left: {ident: x}, right: {int: 1}}}
body:
  - declare: {type: int, name: y, value: {call: {name: inc, args: [{int: 4}]}}}
  - print: {ident: y}
`

func TestGenerateCallARM(t *testing.T) {
	res := compile(t, callInc, arm, false)
	expectSeq(t, res.Assembly,
		"LDR r4, =4",
		"STR r4, [sp, #-4]!",
		"BL f_inc",
		"ADD sp, sp, #4",
		"MOV r4, r0",
		"STR r4, [sp]",
	)
	expectSeq(t, res.Assembly,
		"f_inc:",
		"PUSH {lr}",
		"LDR r4, [sp, #4]",
		"LDR r5, =1",
		"ADDS r4, r4, r5",
		"BLVS p_throw_overflow_error",
		"MOV r0, r4",
		"POP {pc}",
		".ltorg",
	)
	if strings.Index(res.Assembly, "main:") > strings.Index(res.Assembly, "f_inc:") {
		t.Error("main should be emitted before functions")
	}
}

func TestGenerateCallX86(t *testing.T) {
	res := compile(t, callInc, x86, false)
	expectSeq(t, res.Assembly,
		"sub $12, %rsp",
		"mov $4, %rcx",
		"sub $4, %rsp",
		"movl %ecx, (%rsp)",
		"call f_inc",
		"add $16, %rsp",
		"mov %rax, %rcx",
	)
	expectSeq(t, res.Assembly, "f_inc:", "pushq %rbp", "mov %rsp, %rbp", "movslq 16(%rsp), %rcx")
}

func TestGenerateTerminalBodiesHaveNoEpilogue(t *testing.T) {
	doc := `
functions:
  - name: pick
    returns: int
    params: [{name: b, type: bool}]
    body:
      - if:
          cond: {ident: b}
          then: [return: {int: 1}]
          else: [return: {int: 2}]
body:
  - declare: {type: int, name: x, value: {call: {name: pick, args: [{bool: true}]}}}
  - exit: {ident: x}
`
	for _, target := range []*Target{arm, x86} {
		res := compile(t, doc, target, false)
		body := section(t, res.Instrs, FuncLabel("pick"))
		last, ends := -1, 0
		for i, in := range body {
			if _, ok := in.(End); ok {
				last = i
				ends++
			}
		}
		if ends != 2 {
			t.Errorf("%s: %d returns in pick, want 2", target.Arch, ends)
		}
		for _, in := range body[last+1:] {
			if _, ok := in.(Label); !ok {
				t.Errorf("%s: %q follows the final return", target.Arch, in.Render(target))
			}
		}
		if countLine(res.Assembly, Load{Mode: ImmInt{}, Reg: R0}.Render(target)) != 0 {
			t.Errorf("%s: main ends in exit but still sets a zero exit code", target.Arch)
		}
	}
}

func TestGenerateRegisterOverflow(t *testing.T) {
	doc := func(n int) string {
		return "body:\n  - declare: {type: int, name: x, value: " + nestedSum(n) + "}\n"
	}

	res := compile(t, doc(6), x86, false)
	expectSeq(t, res.Assembly, "mov $5, %r13", "pushq %r13", "mov $6, %r13", "popq %r14", "addl %r13d, %r14d")
	expectSeq(t, res.Assembly, "addl %r13d, %r12d")

	res = compile(t, doc(9), arm, false)
	expectSeq(t, res.Assembly, "LDR r11, =8", "PUSH {r11}", "LDR r11, =9", "POP {r12}", "ADDS r11, r12, r11")
	expectSeq(t, res.Assembly, "ADDS r10, r10, r11")
	if countLine(res.Assembly, "PUSH {r11}") != countLine(res.Assembly, "POP {r12}") {
		t.Error("overflow pushes and pops are unbalanced")
	}
}

func TestGenerateCharAndRead(t *testing.T) {
	doc := `
body:
  - declare: {type: int, name: n, value: {int: 0}}
  - read: {ident: n}
  - print: {char: c}
`
	res := compile(t, doc, arm, false)
	expectSeq(t, res.Assembly, "ADD r0, sp, #0", "BL p_read_int")
	expectSeq(t, res.Assembly, "MOV r4, #'c'", "MOV r0, r4", "BL putchar")

	res = compile(t, doc, x86, false)
	expectSeq(t, res.Assembly, "mov %rax, %rdi")
	if countLine(res.Assembly, "call putchar") != 1 {
		t.Error("putchar call missing")
	}
}

func TestGenerateIsRepeatable(t *testing.T) {
	prog := bound(t, callInc)
	first, err := Generate(prog, &Options{Target: x86})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Generate(prog, &Options{Target: x86})
	if err != nil {
		t.Fatal(err)
	}
	if first.Assembly != second.Assembly {
		t.Error("two compilations of the same program differ")
	}
}

func TestGenerateErrors(t *testing.T) {
	prog, err := ast.Decode([]byte("body:\n  - print: {ident: y}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Generate(prog, nil); err == nil || !strings.Contains(err.Error(), "not been bound") {
		t.Errorf("unbound program: err = %v", err)
	}

	semantic.Bind(prog)
	res, err := Generate(prog, nil)
	if err == nil {
		t.Fatal("expected an error for an undefined name")
	}
	if res != nil {
		t.Error("no partial output on error")
	}
	if !strings.Contains(err.Error(), "y") || !strings.HasPrefix(err.Error(), "codegen:") {
		t.Errorf("unexpected error text: %v", err)
	}
}
