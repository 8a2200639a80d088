package codegen

import "wacc/internal/ast"

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// expr evaluates e and returns the register holding the result. Element
// accesses (array, pair, pointer) leave the element's address instead.
func (g *Generator) expr(e ast.Expr) Register {
	switch e := e.(type) {
	case *ast.IntLit:
		r := g.fresh()
		g.emit(Load{Mode: ImmInt{Value: int(e.Value)}, Reg: r})
		return r
	case *ast.BoolLit:
		r := g.fresh()
		g.emit(Move{Reg: r, Value: ImmBool{Value: e.Value}})
		return r
	case *ast.CharLit:
		r := g.fresh()
		g.emit(Move{Reg: r, Value: ImmChar{Value: e.Value}})
		return r
	case *ast.StrLit:
		r := g.fresh()
		g.emit(Load{Mode: DataLabel{Name: g.data.Intern(e.Value)}, Reg: r})
		return r
	case *ast.NullLit:
		r := g.fresh()
		g.emit(Load{Mode: ImmInt{Value: 0}, Reg: r})
		return r
	case *ast.Ident:
		t := g.lookup(e, e.Name)
		off := g.offset(e, e.Name)
		r := g.fresh()
		g.emit(Load{Mode: RegOffset{Reg: SP, Offset: off}, Reg: r, Mem: g.mem(t)})
		return r
	case *ast.ArrayElem:
		return g.arrayElem(e)
	case *ast.PairElem:
		r := g.value(e.Value)
		g.checkNull(r)
		if e.Fst {
			g.emit(Load{Mode: RegMode{Reg: r}, Reg: r})
		} else {
			g.emit(Load{Mode: RegOffset{Reg: r, Offset: g.t.PtrSize}, Reg: r})
		}
		return r
	case *ast.PointerElem:
		r := g.value(e.Value)
		g.checkNull(r)
		return r
	case *ast.UnaryExpr:
		return g.unary(e)
	case *ast.BinaryExpr:
		return g.binary(e)
	case *ast.ArrayLit:
		return g.arrayLit(e)
	case *ast.NewPair:
		return g.newPair(e)
	case *ast.CallExpr:
		return g.callExpr(e)
	}
	g.fail(e, "unsupported expression %T", e)
	return NoReg
}

// value evaluates e and loads through the address when e is an element
// access, so the register holds the value itself.
func (g *Generator) value(e ast.Expr) Register {
	r := g.expr(e)
	switch e.(type) {
	case *ast.ArrayElem, *ast.PairElem, *ast.PointerElem:
		g.emit(Load{Mode: RegMode{Reg: r}, Reg: r, Mem: g.mem(g.typeOf(e))})
	}
	return r
}

func (g *Generator) move(dst, src Register) {
	if dst != src {
		g.emit(Move{Reg: dst, Value: RegOperand{Reg: src}})
	}
}

// signExtend widens the low 32 bits of r to 64 after x86-64 int
// arithmetic, so values stay in canonical form in full registers.
func (g *Generator) signExtend(r Register) {
	g.emit(
		Move{Reg: R0, Value: RegOperand{Reg: r}},
		SignExtend{From: MemL},
		Move{Reg: r, Value: RegOperand{Reg: R0}},
	)
}

// shiftFor maps an element size onto the shift that scales an index.
func shiftFor(size int) int {
	switch size {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	return 0
}

// scaled is rhs multiplied by an element size, as an operand.
func scaled(rhs Register, size int) Operand {
	if s := shiftFor(size); s > 0 {
		return Shifted{Reg: rhs, Kind: LSL, Amount: s}
	}
	return RegOperand{Reg: rhs}
}

// ---------------------------------------------------------------------------
// Unary
// ---------------------------------------------------------------------------

func (g *Generator) unary(e *ast.UnaryExpr) Register {
	if e.Op == ast.OpRef {
		return g.ref(e)
	}
	r := g.value(e.Value)
	switch e.Op {
	case ast.OpNot:
		g.emit(Logic{Op: EOR, Dst: r, Src: r, Operand: Imm{Value: 1}})
	case ast.OpNeg:
		g.emit(Arith{Op: RSB, Dst: r, Src: r, Operand: Imm{Value: 0}, SetFlags: true})
		g.checkOverflow(VS)
		if g.t.IsX86() {
			g.signExtend(r)
		}
	case ast.OpLen:
		g.emit(Load{Mode: RegMode{Reg: r}, Reg: r, Mem: lengthMem(g.t)})
	case ast.OpOrd, ast.OpChr:
		// Same bits, different static type.
	case ast.OpDeref:
		p, ok := g.typeOf(e.Value).(*ast.PointerType)
		if !ok {
			g.fail(e, "cannot dereference %s", ast.ExprString(e.Value))
		}
		g.checkNull(r)
		g.emit(Load{Mode: RegMode{Reg: r}, Reg: r, Mem: g.mem(p.Elem)})
	default:
		g.fail(e, "unsupported operator %s", e.Op)
	}
	return r
}

// ref takes the address of a variable or array element.
func (g *Generator) ref(e *ast.UnaryExpr) Register {
	switch v := e.Value.(type) {
	case *ast.Ident:
		off := g.offset(v, v.Name)
		r := g.fresh()
		g.emit(Arith{Op: ADD, Dst: r, Src: SP, Operand: Imm{Value: off}})
		return r
	case *ast.ArrayElem:
		return g.arrayElem(v)
	}
	g.fail(e, "& needs a variable or array element")
	return NoReg
}

// ---------------------------------------------------------------------------
// Binary
// ---------------------------------------------------------------------------

var comparisonConds = map[ast.BinaryOp]Cond{
	ast.OpGt: GT,
	ast.OpGe: GE,
	ast.OpLt: LT,
	ast.OpLe: LE,
	ast.OpEq: EQ,
	ast.OpNe: NE,
}

// binary evaluates both operands and combines them. When the left operand
// had to go to the overflow register it is spilled around the right
// operand and popped into the accumulator; the result then lands in the
// overflow register.
func (g *Generator) binary(e *ast.BinaryExpr) Register {
	lhs := g.value(e.Left)
	accum := lhs == OverflowReg
	if accum {
		g.push(OverflowReg)
	}
	rhs := g.value(e.Right)
	dst := lhs
	if accum {
		g.pop(AccumReg)
		lhs, dst = AccumReg, OverflowReg
	}

	switch {
	case ast.IsPointerArithmetic(e, g.scopes, g.scope):
		p := g.typeOf(e.Left).(*ast.PointerType)
		g.pointerArith(e.Op, dst, lhs, rhs, g.size(p.Elem))
	case e.Op == ast.OpAdd || e.Op == ast.OpSub:
		g.addSub(e.Op, dst, lhs, rhs)
	case e.Op == ast.OpMul:
		g.mul(dst, lhs, rhs)
	case e.Op == ast.OpDiv || e.Op == ast.OpMod:
		g.divMod(e.Op, dst, lhs, rhs)
	case e.Op.IsComparison():
		g.compare(comparisonConds[e.Op], dst, lhs, rhs)
	case e.Op == ast.OpAnd || e.Op == ast.OpOr:
		op := AND
		if e.Op == ast.OpOr {
			op = ORR
		}
		g.logic(op, dst, lhs, rhs)
	default:
		g.fail(e, "unsupported operator %s", e.Op)
	}

	g.release(rhs)
	return dst
}

func arithOp(op ast.BinaryOp) ArithOp {
	if op == ast.OpSub {
		return SUB
	}
	return ADD
}

// addSub is checked 32-bit addition or subtraction.
func (g *Generator) addSub(op ast.BinaryOp, dst, lhs, rhs Register) {
	if g.t.IsARM() {
		g.emit(Arith{Op: arithOp(op), Dst: dst, Src: lhs, Operand: RegOperand{Reg: rhs}, SetFlags: true})
		g.checkOverflow(VS)
		return
	}
	g.emit(Arith{Op: arithOp(op), Dst: lhs, Src: lhs, Operand: RegOperand{Reg: rhs}, Int32: true})
	g.checkOverflow(VS)
	g.move(dst, lhs)
	g.signExtend(dst)
}

// pointerArith offsets a pointer by an int scaled by the pointee size. It is
// not overflow checked.
func (g *Generator) pointerArith(op ast.BinaryOp, dst, lhs, rhs Register, elemSize int) {
	if g.t.IsARM() {
		g.emit(Arith{Op: arithOp(op), Dst: dst, Src: lhs, Operand: scaled(rhs, elemSize)})
		return
	}
	g.emit(Arith{Op: arithOp(op), Dst: lhs, Src: lhs, Operand: scaled(rhs, elemSize)})
	g.move(dst, lhs)
}

// mul is a checked 32-bit multiply. ARM detects overflow by comparing the
// high word of the 64-bit product with the sign of the low word.
func (g *Generator) mul(dst, lhs, rhs Register) {
	if g.t.IsARM() {
		hi := rhs
		if hi == dst {
			hi = lhs
		}
		g.emit(
			Multiply{Lo: dst, Hi: hi, Rn: lhs, Rm: rhs},
			Compare{Reg: hi, Operand: Shifted{Reg: dst, Kind: ASR, Amount: 31}},
		)
		g.checkOverflow(NE)
		return
	}
	g.emit(IMul{Src: rhs, Dst: lhs})
	g.checkOverflow(VS)
	g.move(dst, lhs)
	g.signExtend(dst)
}

// divMod routes both operands through the argument registers and the
// divide-by-zero check.
func (g *Generator) divMod(op ast.BinaryOp, dst, lhs, rhs Register) {
	g.emit(
		Move{Reg: R0, Value: RegOperand{Reg: lhs}},
		Move{Reg: R1, Value: RegOperand{Reg: rhs}},
	)
	g.call(g.runtime.Demand(ErrDivideByZero))

	if g.t.IsARM() {
		if op == ast.OpDiv {
			g.call("__aeabi_idiv")
			g.move(dst, R0)
		} else {
			g.call("__aeabi_idivmod")
			g.move(dst, R1)
		}
		return
	}
	g.emit(SignExtend{From: MemQ}, Divide{Reg: R1})
	if op == ast.OpDiv {
		g.move(dst, R0)
	} else {
		g.move(dst, R3)
	}
	g.signExtend(dst)
}

// compare materialises a boolean: 1 when cond holds for lhs against rhs.
func (g *Generator) compare(cond Cond, dst, lhs, rhs Register) {
	g.emit(Compare{Reg: lhs, Operand: RegOperand{Reg: rhs}})
	if g.t.IsARM() {
		g.emit(
			Move{Cond: cond, Reg: dst, Value: ImmBool{Value: true}},
			Move{Cond: cond.Opposite(), Reg: dst, Value: ImmBool{Value: false}},
		)
		return
	}
	// cmov takes no immediate; stage the constants in a scratch register.
	// The accumulator is free again once the flags are set.
	tmp := g.regs.Acquire()
	if tmp == NoReg {
		g.regs.MostRecent()
		tmp = AccumReg
	}
	g.emit(
		Move{Reg: tmp, Value: Imm{Value: 1}},
		CMove{Cond: cond, Src: tmp, Dst: dst},
		Move{Reg: tmp, Value: Imm{Value: 0}},
		CMove{Cond: cond.Opposite(), Src: tmp, Dst: dst},
	)
	g.release(tmp)
}

func (g *Generator) logic(op LogicOp, dst, lhs, rhs Register) {
	if g.t.IsARM() {
		g.emit(Logic{Op: op, Dst: dst, Src: lhs, Operand: RegOperand{Reg: rhs}})
		return
	}
	g.emit(Logic{Op: op, Dst: lhs, Src: lhs, Operand: RegOperand{Reg: rhs}})
	g.move(dst, lhs)
}

// ---------------------------------------------------------------------------
// Heap values and element access
// ---------------------------------------------------------------------------

// arrayElem computes the address of an array element, bounds checking
// every dimension on the way.
func (g *Generator) arrayElem(e *ast.ArrayElem) Register {
	t := g.lookup(e, e.Name)
	base := g.scratch(e)
	g.emit(Arith{Op: ADD, Dst: base, Src: SP, Operand: Imm{Value: g.offset(e, e.Name)}})

	for _, idx := range e.Indices {
		arr, ok := t.(*ast.ArrayType)
		if !ok {
			g.fail(e, "%s is not an array", e.Name)
		}
		i := g.value(idx)
		g.emit(
			Load{Mode: RegMode{Reg: base}, Reg: base},
			Move{Reg: R0, Value: RegOperand{Reg: i}},
			Move{Reg: R1, Value: RegOperand{Reg: base}},
		)
		g.call(g.runtime.Demand(ErrArrayBounds))
		g.emit(
			Arith{Op: ADD, Dst: base, Src: base, Operand: Imm{Value: 4}},
			Arith{Op: ADD, Dst: base, Src: base, Operand: scaled(i, g.size(arr.Elem))},
		)
		g.release(i)
		t = arr.Elem
	}
	return base
}

// arrayLit allocates length word plus elements and fills them in.
func (g *Generator) arrayLit(e *ast.ArrayLit) Register {
	arr, ok := g.typeOf(e).(*ast.ArrayType)
	if !ok {
		g.fail(e, "array literal has no array type")
	}
	size := g.size(arr.Elem)
	g.emit(Load{Mode: ImmInt{Value: size*len(e.Elems) + 4}, Reg: g.t.ArgReg()})
	g.callExternal("malloc")
	base := g.scratch(e)
	g.move(base, R0)

	for i, el := range e.Elems {
		r := g.value(el)
		g.emit(Store{Mode: RegOffset{Reg: base, Offset: 4 + i*size}, Reg: r, Mem: g.mem(arr.Elem)})
		g.release(r)
	}

	n := g.fresh()
	g.emit(
		Load{Mode: ImmInt{Value: len(e.Elems)}, Reg: n},
		Store{Mode: RegMode{Reg: base}, Reg: n, Mem: lengthMem(g.t)},
	)
	g.release(n)
	return base
}

// newPair allocates the pair and one box per element.
func (g *Generator) newPair(e *ast.NewPair) Register {
	g.emit(Load{Mode: ImmInt{Value: 2 * g.t.PtrSize}, Reg: g.t.ArgReg()})
	g.callExternal("malloc")
	base := g.scratch(e)
	g.move(base, R0)

	for i, el := range []ast.Expr{e.Fst, e.Snd} {
		t := g.typeOf(el)
		r := g.value(el)
		g.emit(Load{Mode: ImmInt{Value: g.size(t)}, Reg: g.t.ArgReg()})
		g.callExternal("malloc")
		g.emit(
			Store{Mode: RegMode{Reg: R0}, Reg: r, Mem: g.mem(t)},
			Store{Mode: RegOffset{Reg: base, Offset: i * g.t.PtrSize}, Reg: R0},
		)
		g.release(r)
	}
	return base
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callExpr saves the live registers, pushes the arguments right to left and
// calls the function. Its result is moved out of r0 into a fresh register.
func (g *Generator) callExpr(e *ast.CallExpr) Register {
	fn, ok := g.funcs[e.Name]
	if !ok {
		g.fail(e, "undefined function: %s", e.Name)
	}
	if len(e.Args) != len(fn.Params) {
		g.fail(e, "%s expects %d argument(s), got %d", e.Name, len(fn.Params), len(e.Args))
	}

	saved := g.regs.InUse()
	for _, r := range saved {
		g.push(r)
	}

	argBytes := 0
	for _, p := range fn.Params {
		argBytes += g.size(p.Type)
	}
	pad := g.alignPad(argBytes)
	g.emit(adjustSP(g.t, SUB, pad)...)
	g.callOffset += pad

	for i := len(e.Args) - 1; i >= 0; i-- {
		t := fn.Params[i].Type
		size := g.size(t)
		r := g.value(e.Args[i])
		if g.t.IsX86() {
			g.emit(
				Arith{Op: SUB, Dst: SP, Src: SP, Operand: Imm{Value: size}},
				Store{Mode: RegMode{Reg: SP}, Reg: r, Mem: g.mem(t)},
			)
		} else {
			g.emit(Store{Mode: RegOffset{Reg: SP, Offset: -size, PreIndex: true}, Reg: r, Mem: g.mem(t)})
		}
		g.callOffset += size
		g.release(r)
	}

	g.call(FuncLabel(e.Name))
	g.emit(adjustSP(g.t, ADD, argBytes+pad)...)
	g.callOffset -= argBytes + pad

	for i := len(saved) - 1; i >= 0; i-- {
		g.pop(saved[i])
	}
	r := g.fresh()
	g.move(r, R0)
	return r
}
