package codegen

import (
	"fmt"
	"io"
	"log/slog"

	"wacc/internal/ast"
)

// ---------------------------------------------------------------------------
// Generator: walks a bound AST and produces target instructions
//
// One Generator compiles one program for one target. Every piece of
// mutable state (registers, frames, data, runtime blocks, labels) lives
// here, so compilations never share anything.
// ---------------------------------------------------------------------------

// Generator holds the state of one compilation.
type Generator struct {
	t       *Target
	scopes  *ast.Scopes
	regs    *RegAlloc
	layout  *Layout
	data    *DataSegment
	runtime *Runtime
	funcs   map[string]*ast.FuncDecl
	log     *slog.Logger

	code []Instr

	// Label counter for generating unique labels.
	nextLabel int

	scope     ast.ScopeID // scope of the statement being generated
	funcScope ast.ScopeID // scope of the enclosing function (or main)

	// callOffset counts bytes pushed below the current frame (saved
	// registers, spilled operands, outgoing arguments). Every stack
	// pointer relative access adds it.
	callOffset int
}

// NewGenerator prepares a generator for prog, which must have been bound.
func NewGenerator(prog *ast.Program, t *Target, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	data := NewDataSegment()
	g := &Generator{
		t:       t,
		scopes:  prog.Scopes,
		regs:    NewRegAlloc(t.Free),
		layout:  NewLayout(t, prog.Scopes),
		data:    data,
		runtime: NewRuntime(t, data),
		funcs:   make(map[string]*ast.FuncDecl),
		log:     log,
	}
	for _, fn := range prog.Functions {
		g.funcs[fn.Name] = fn
	}
	return g
}

// ---------------------------------------------------------------------------
// Contract violations
// ---------------------------------------------------------------------------

// contractError reports input the binder should have rejected. The
// generator panics with it; Generate turns it back into an error.
type contractError struct {
	pos ast.Position
	msg string
}

func (e contractError) Error() string {
	if e.pos.Line == 0 {
		return "codegen: " + e.msg
	}
	return fmt.Sprintf("codegen: line %d, col %d: %s", e.pos.Line, e.pos.Column, e.msg)
}

func (g *Generator) fail(n ast.Node, format string, args ...any) {
	panic(contractError{pos: n.GetPos(), msg: fmt.Sprintf(format, args...)})
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program generates the whole output: data section (when non-empty), main,
// user functions, error blocks, library blocks.
func (g *Generator) Program(prog *ast.Program) []Instr {
	g.emit(Directive{Name: "text"}, Directive{Name: "global main"})
	g.body("main", prog.Scope, prog.Body, true)

	for _, fn := range prog.Functions {
		g.body(FuncLabel(fn.Name), fn.Scope, fn.Body, false)
	}

	g.emit(g.runtime.Flush()...)
	g.log.Debug("generated", "target", g.t.Arch, "functions", len(prog.Functions),
		"labels", g.nextLabel, "strings", g.data.Len())

	var out []Instr
	if g.data.Len() > 0 {
		out = append(out, Directive{Name: "data"})
		out = append(out, g.data.Flush()...)
	}
	return append(out, g.code...)
}

// body generates main or one user function: prologue, frame, statements,
// and the teardown unless the statements already end in return or exit.
func (g *Generator) body(label string, scope ast.ScopeID, stmts []ast.Stmt, isMain bool) {
	g.emit(Label{Name: label})
	g.prologue()

	g.scope, g.funcScope = scope, scope
	size := g.layout.LayoutScope(scope)
	g.emit(adjustSP(g.t, SUB, size)...)

	g.stmts(stmts)

	if !isTerminal(stmts) {
		g.emit(adjustSP(g.t, ADD, size)...)
		if isMain {
			g.emit(Load{Mode: ImmInt{Value: 0}, Reg: R0})
		}
		g.emit(End{})
	}
	if g.t.IsARM() {
		g.emit(Directive{Name: "ltorg"})
	}
	g.regs.ReleaseAll()
	g.callOffset = 0
}

func (g *Generator) prologue() {
	g.emit(Push{Reg: LR})
	if g.t.IsX86() {
		g.emit(Move{Reg: LR, Value: RegOperand{Reg: SP}})
	}
}

// isTerminal reports whether stmts always end in return or exit.
func isTerminal(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *ast.ReturnStmt, *ast.ExitStmt:
		return true
	case *ast.IfStmt:
		return isTerminal(s.Then) && isTerminal(s.Else)
	case *ast.BeginStmt:
		return isTerminal(s.Body)
	}
	return false
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) emit(in ...Instr) {
	g.code = append(g.code, in...)
}

func (g *Generator) newLabel() string {
	l := fmt.Sprintf("L%d", g.nextLabel)
	g.nextLabel++
	return l
}

func (g *Generator) call(label string) {
	g.emit(Branch{Label: label, Link: true})
}

// branchTo jumps to a runtime block that never returns into this code path
// on its own: a branch-with-link on ARM, a plain jump on x86-64.
func (g *Generator) branchTo(cond Cond, label string) {
	g.emit(Branch{Cond: cond, Label: label, Link: g.t.IsARM()})
}

// checkOverflow branches to the overflow trampoline when cond holds.
func (g *Generator) checkOverflow(cond Cond) {
	g.branchTo(cond, g.runtime.Demand(ErrOverflow))
}

// checkNull passes reg through the null-pointer check.
func (g *Generator) checkNull(reg Register) {
	g.emit(Move{Reg: R0, Value: RegOperand{Reg: reg}})
	g.call(g.runtime.Demand(ErrNullReference))
}

func (g *Generator) push(r Register) {
	g.emit(Push{Reg: r})
	g.callOffset += g.t.PtrSize
}

func (g *Generator) pop(r Register) {
	g.emit(Pop{Reg: r})
	g.callOffset -= g.t.PtrSize
}

// alignPad returns the padding that keeps the x86-64 stack 16-byte aligned
// at a call once extra more bytes have been pushed.
func (g *Generator) alignPad(extra int) int {
	if !g.t.IsX86() {
		return 0
	}
	return (16 - (g.callOffset+extra)%16) % 16
}

// callExternal calls a C library routine. Pool registers the routine may
// clobber are saved around it, and x86-64 gets an aligned stack.
func (g *Generator) callExternal(name string) {
	var saved []Register
	for _, r := range g.regs.InUse() {
		for _, c := range g.t.CallerSaved {
			if r == c {
				saved = append(saved, r)
			}
		}
	}
	for _, r := range saved {
		g.push(r)
	}
	pad := g.alignPad(0)
	g.emit(adjustSP(g.t, SUB, pad)...)
	g.call(name)
	g.emit(adjustSP(g.t, ADD, pad)...)
	for i := len(saved) - 1; i >= 0; i-- {
		g.pop(saved[i])
	}
}

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// fresh takes a register for a new value, falling back on OverflowReg when
// the pool is exhausted.
func (g *Generator) fresh() Register {
	g.regs.Acquire()
	return g.regs.MostRecent()
}

// scratch takes a pool register for an address that must survive nested
// evaluation. The overflow register cannot serve there.
func (g *Generator) scratch(n ast.Node) Register {
	r := g.regs.Acquire()
	if r == NoReg {
		g.fail(n, "expression needs more than %d registers", g.regs.Size())
	}
	return r
}

// release gives r back to the pool. Overflow registers are not pooled.
func (g *Generator) release(r Register) {
	if g.regs.Owns(r) {
		g.regs.Release()
	}
}

// ---------------------------------------------------------------------------
// Types and widths
// ---------------------------------------------------------------------------

func (g *Generator) typeOf(e ast.Expr) ast.Type {
	t := ast.TypeOf(e, g.scopes, g.scope)
	if t == nil {
		g.fail(e, "cannot type %s", ast.ExprString(e))
	}
	return t
}

// mem is the load/store width of a value of type t.
func (g *Generator) mem(t ast.Type) Memory {
	switch {
	case ast.IsByteSized(t):
		return MemB
	case ast.IsBase(t, ast.Int) && g.t.IsX86():
		return MemL
	}
	return MemWord
}

func (g *Generator) size(t ast.Type) int {
	return t.Size(g.t.PtrSize)
}

// offset is the stack pointer relative slot of a variable.
func (g *Generator) offset(n ast.Node, name string) int {
	if _, _, ok := g.scopes.Lookup(g.scope, name); !ok {
		g.fail(n, "undefined: %s", name)
	}
	return g.layout.ResolveOffset(g.scope, name) + g.callOffset
}

func (g *Generator) lookup(n ast.Node, name string) ast.Type {
	b, _, ok := g.scopes.Lookup(g.scope, name)
	if !ok {
		g.fail(n, "undefined: %s", name)
	}
	return b.Type
}
