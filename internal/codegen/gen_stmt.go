package codegen

import "wacc/internal/ast"

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) stmts(list []ast.Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *Generator) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.SkipStmt:
	case *ast.DeclareStmt:
		r := g.value(s.Value)
		off := g.layout.Claim(g.scope, g.size(s.Type)) + g.callOffset
		g.emit(Store{Mode: RegOffset{Reg: SP, Offset: off}, Reg: r, Mem: g.mem(s.Type)})
		g.release(r)
	case *ast.AssignStmt:
		g.assign(s)
	case *ast.ReadStmt:
		g.read(s)
	case *ast.FreeStmt:
		t := g.typeOf(s.Value)
		r := g.value(s.Value)
		g.emit(Move{Reg: R0, Value: RegOperand{Reg: r}})
		g.release(r)
		k := LibFreePair
		if _, ok := t.(*ast.ArrayType); ok {
			k = LibFreeArray
		}
		g.call(g.runtime.Demand(k))
	case *ast.ReturnStmt:
		r := g.value(s.Value)
		g.emit(Move{Reg: R0, Value: RegOperand{Reg: r}})
		g.emit(adjustSP(g.t, ADD, g.layout.FrameBytes(g.scope, g.funcScope))...)
		g.emit(End{})
		g.regs.ReleaseAll()
	case *ast.ExitStmt:
		r := g.value(s.Value)
		g.emit(Move{Reg: g.t.ArgReg(), Value: RegOperand{Reg: r}})
		g.call("exit")
		g.regs.ReleaseAll()
	case *ast.PrintStmt:
		g.print(s)
	case *ast.IfStmt:
		g.ifStmt(s)
	case *ast.WhileStmt:
		g.while(s)
	case *ast.BeginStmt:
		g.block(s.Scope, s.Body)
	default:
		g.fail(s, "unsupported statement %T", s)
	}
}

// block enters a nested scope: reserve its frame, generate the body, and
// drop the frame again unless the body never falls through.
func (g *Generator) block(id ast.ScopeID, body []ast.Stmt) {
	outer := g.scope
	g.scope = id
	size := g.layout.LayoutScope(id)
	g.emit(adjustSP(g.t, SUB, size)...)
	g.stmts(body)
	if !isTerminal(body) {
		g.emit(adjustSP(g.t, ADD, size)...)
	}
	g.scope = outer
}

func (g *Generator) assign(s *ast.AssignStmt) {
	r := g.value(s.Value)
	if id, ok := s.Target.(*ast.Ident); ok {
		t := g.lookup(id, id.Name)
		g.emit(Store{Mode: RegOffset{Reg: SP, Offset: g.offset(id, id.Name)}, Reg: r, Mem: g.mem(t)})
		g.release(r)
		return
	}
	t := g.typeOf(s.Target)
	addr := g.expr(s.Target)
	g.emit(Store{Mode: RegMode{Reg: addr}, Reg: r, Mem: g.mem(t)})
	g.release(addr)
	g.release(r)
}

// read passes the address of the target to the matching scanf stub.
func (g *Generator) read(s *ast.ReadStmt) {
	t := g.typeOf(s.Target)
	if id, ok := s.Target.(*ast.Ident); ok {
		g.emit(Arith{Op: ADD, Dst: R0, Src: SP, Operand: Imm{Value: g.offset(id, id.Name)}})
	} else {
		addr := g.expr(s.Target)
		g.emit(Move{Reg: R0, Value: RegOperand{Reg: addr}})
		g.release(addr)
	}
	k := LibReadInt
	if ast.IsBase(t, ast.Char) {
		k = LibReadChar
	}
	g.call(g.runtime.Demand(k))
}

// printKind picks the library stub that prints a value of type t.
func printKind(t ast.Type) Support {
	switch t := t.(type) {
	case *ast.BaseType:
		switch t.Kind {
		case ast.Int:
			return LibPrintInt
		case ast.Bool:
			return LibPrintBool
		case ast.String:
			return LibPrintString
		}
	case *ast.ArrayType:
		if ast.IsBase(t.Elem, ast.Char) {
			return LibPrintString
		}
	}
	return LibPrintReference
}

func (g *Generator) print(s *ast.PrintStmt) {
	t := g.typeOf(s.Value)
	r := g.value(s.Value)
	g.emit(Move{Reg: R0, Value: RegOperand{Reg: r}})
	g.release(r)

	if ast.IsBase(t, ast.Char) {
		g.move(g.t.ArgReg(), R0)
		g.callExternal("putchar")
	} else {
		g.call(g.runtime.Demand(printKind(t)))
	}
	if s.Newline {
		g.call(g.runtime.Demand(LibPrintLn))
	}
}

func (g *Generator) ifStmt(s *ast.IfStmt) {
	elseLabel, endLabel := g.newLabel(), g.newLabel()

	r := g.value(s.Condition)
	g.emit(Compare{Reg: r, Operand: Imm{Value: 0}})
	g.release(r)
	g.emit(Branch{Cond: EQ, Label: elseLabel})

	g.block(s.ThenScope, s.Then)
	if !isTerminal(s.Then) {
		g.emit(Branch{Label: endLabel})
	}
	g.emit(Label{Name: elseLabel})
	g.block(s.ElseScope, s.Else)
	g.emit(Label{Name: endLabel})
}

// while jumps straight to the condition, which sits after the body and
// branches back while it holds.
func (g *Generator) while(s *ast.WhileStmt) {
	condLabel, bodyLabel := g.newLabel(), g.newLabel()

	g.emit(Branch{Label: condLabel}, Label{Name: bodyLabel})
	g.block(s.Scope, s.Body)
	g.emit(Label{Name: condLabel})

	r := g.value(s.Condition)
	g.emit(Compare{Reg: r, Operand: Imm{Value: 1}})
	g.release(r)
	g.emit(Branch{Cond: EQ, Label: bodyLabel})
}
