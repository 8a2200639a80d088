package semantic

import (
	"fmt"

	"wacc/internal/ast"
)

// ---------------------------------------------------------------------------
// Diagnostic severity
// ---------------------------------------------------------------------------

// Severity indicates whether a diagnostic is an error or a warning.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Diagnostic
// ---------------------------------------------------------------------------

// Diagnostic represents a single message produced by the binder.
type Diagnostic struct {
	Message  string
	Pos      ast.Position
	Severity Severity
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("line %d, col %d: %s: %s", d.Pos.Line, d.Pos.Column, d.Severity, d.Message)
}

// HasErrors returns true if any diagnostic in the slice is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Binder
//
// The binder builds the scope arena for a decoded program, resolves every
// identifier and call, and rejects programs the code generator could not
// lower. It is deliberately shallow: it checks what the backend relies on,
// not the full language rules.
// ---------------------------------------------------------------------------

// Binder holds the state for a single binding pass.
type Binder struct {
	diagnostics []Diagnostic
	scopes      *ast.Scopes
	scope       ast.ScopeID
	funcs       map[string]*ast.FuncDecl
	currentFunc *ast.FuncDecl // nil while binding main
}

// Bind builds prog.Scopes and fills in every scope handle and call return
// type. The returned diagnostics are empty when the program can be lowered.
func Bind(prog *ast.Program) []Diagnostic {
	b := &Binder{
		scopes: ast.NewScopes(),
		scope:  ast.NoScope,
		funcs:  make(map[string]*ast.FuncDecl),
	}
	b.bindProgram(prog)
	return b.diagnostics
}

// ---- helpers ----

func (b *Binder) error(pos ast.Position, msg string) {
	b.diagnostics = append(b.diagnostics, Diagnostic{
		Message:  msg,
		Pos:      pos,
		Severity: Error,
	})
}

func (b *Binder) warn(pos ast.Position, msg string) {
	b.diagnostics = append(b.diagnostics, Diagnostic{
		Message:  msg,
		Pos:      pos,
		Severity: Warning,
	})
}

func (b *Binder) pushScope(kind ast.ScopeKind) ast.ScopeID {
	b.scope = b.scopes.New(b.scope, kind)
	return b.scope
}

func (b *Binder) popScope() {
	b.scope = b.scopes.Get(b.scope).Parent
}

func (b *Binder) typeOf(e ast.Expr) ast.Type {
	return ast.TypeOf(e, b.scopes, b.scope)
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

func (b *Binder) bindProgram(prog *ast.Program) {
	prog.Scopes = b.scopes

	// First pass: register every function so calls resolve regardless of
	// declaration order.
	for _, fn := range prog.Functions {
		if existing, ok := b.funcs[fn.Name]; ok {
			b.error(fn.Pos, fmt.Sprintf("function %q already declared at %s", fn.Name, existing.Pos))
			continue
		}
		b.funcs[fn.Name] = fn
	}

	for _, fn := range prog.Functions {
		if b.funcs[fn.Name] != fn {
			continue
		}
		b.bindFunction(fn)
	}

	// Functions are roots; main's scope does not enclose them.
	prog.Scope = b.pushScope(ast.ScopeMain)
	b.bindStmts(prog.Body)
	b.popScope()
}

func (b *Binder) bindFunction(fn *ast.FuncDecl) {
	b.currentFunc = fn
	fn.Scope = b.pushScope(ast.ScopeFunc)
	sc := b.scopes.Get(fn.Scope)
	for _, p := range fn.Params {
		if !sc.Declare(ast.Binding{Name: p.Name, Type: p.Type, Param: true, Pos: p.Pos}) {
			b.error(p.Pos, fmt.Sprintf("duplicate parameter %q", p.Name))
		}
	}

	b.bindStmts(fn.Body)
	if !terminates(fn.Body) {
		b.error(fn.Pos, fmt.Sprintf("function %q must end in a return or exit on every path", fn.Name))
	}

	b.popScope()
	b.currentFunc = nil
}

// terminates reports whether control can never fall off the end of stmts.
func terminates(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *ast.ReturnStmt, *ast.ExitStmt:
		return true
	case *ast.IfStmt:
		return terminates(s.Then) && terminates(s.Else)
	case *ast.BeginStmt:
		return terminates(s.Body)
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (b *Binder) bindStmts(stmts []ast.Stmt) {
	for i, s := range stmts {
		b.bindStmt(s)
		switch s.(type) {
		case *ast.ReturnStmt, *ast.ExitStmt:
			if i+1 < len(stmts) {
				b.warn(stmts[i+1].GetPos(), "unreachable statement")
			}
		}
	}
}

func (b *Binder) bindStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.SkipStmt:

	case *ast.DeclareStmt:
		// The value is bound before the name so `int x = x` sees the outer x.
		vt := b.bindExpr(s.Value)
		if vt != nil && !ast.SameType(s.Type, vt) {
			b.error(s.Pos, fmt.Sprintf("cannot initialise %s %q with a value of type %s", s.Type, s.Name, vt))
		}
		if !b.scopes.Get(b.scope).Declare(ast.Binding{Name: s.Name, Type: s.Type, Pos: s.Pos}) {
			b.error(s.Pos, fmt.Sprintf("%q is already declared in this scope", s.Name))
		}

	case *ast.AssignStmt:
		tt := b.bindLValue(s.Target)
		vt := b.bindExpr(s.Value)
		if tt != nil && vt != nil && !ast.SameType(tt, vt) {
			b.error(s.Pos, fmt.Sprintf("cannot assign %s to %s", vt, tt))
		}

	case *ast.ReadStmt:
		tt := b.bindLValue(s.Target)
		if tt != nil && !ast.IsBase(tt, ast.Int) && !ast.IsBase(tt, ast.Char) {
			b.error(s.Pos, fmt.Sprintf("read target must be int or char, not %s", tt))
		}

	case *ast.FreeStmt:
		switch t := b.bindExpr(s.Value).(type) {
		case nil, *ast.ArrayType, *ast.PairType:
		default:
			b.error(s.Pos, fmt.Sprintf("cannot free a value of type %s", t))
		}

	case *ast.ReturnStmt:
		vt := b.bindExpr(s.Value)
		if b.currentFunc == nil {
			b.error(s.Pos, "return outside of a function")
			return
		}
		if vt != nil && !ast.SameType(b.currentFunc.Returns, vt) {
			b.error(s.Pos, fmt.Sprintf("function %q returns %s, not %s", b.currentFunc.Name, b.currentFunc.Returns, vt))
		}

	case *ast.ExitStmt:
		if vt := b.bindExpr(s.Value); vt != nil && !ast.IsBase(vt, ast.Int) {
			b.error(s.Pos, fmt.Sprintf("exit code must be int, not %s", vt))
		}

	case *ast.PrintStmt:
		b.bindExpr(s.Value)

	case *ast.IfStmt:
		b.bindCondition(s.Condition)
		s.ThenScope = b.pushScope(ast.ScopeBlock)
		b.bindStmts(s.Then)
		b.popScope()
		s.ElseScope = b.pushScope(ast.ScopeBlock)
		b.bindStmts(s.Else)
		b.popScope()

	case *ast.WhileStmt:
		b.bindCondition(s.Condition)
		s.Scope = b.pushScope(ast.ScopeBlock)
		b.bindStmts(s.Body)
		b.popScope()

	case *ast.BeginStmt:
		s.Scope = b.pushScope(ast.ScopeBlock)
		b.bindStmts(s.Body)
		b.popScope()

	default:
		b.error(stmt.GetPos(), fmt.Sprintf("unsupported statement %T", stmt))
	}
}

func (b *Binder) bindCondition(e ast.Expr) {
	if t := b.bindExpr(e); t != nil && !ast.IsBase(t, ast.Bool) {
		b.error(e.GetPos(), fmt.Sprintf("condition must be bool, not %s", t))
	}
}

// bindLValue checks an assignment or read target and returns its type.
func (b *Binder) bindLValue(e ast.Expr) ast.Type {
	switch e.(type) {
	case *ast.Ident, *ast.ArrayElem, *ast.PairElem, *ast.PointerElem:
		return b.bindExpr(e)
	}
	b.error(e.GetPos(), fmt.Sprintf("%s is not assignable", ast.ExprString(e)))
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// bindExpr resolves names inside e and returns its type, or nil after
// reporting an error.
func (b *Binder) bindExpr(expr ast.Expr) ast.Type {
	switch e := expr.(type) {
	case *ast.IntLit, *ast.BoolLit, *ast.CharLit, *ast.StrLit, *ast.NullLit:
		return b.typeOf(e)

	case *ast.Ident:
		if _, _, ok := b.scopes.Lookup(b.scope, e.Name); !ok {
			b.error(e.Pos, fmt.Sprintf("undefined: %s", e.Name))
			return nil
		}
		return b.typeOf(e)

	case *ast.ArrayElem:
		bind, _, ok := b.scopes.Lookup(b.scope, e.Name)
		if !ok {
			b.error(e.Pos, fmt.Sprintf("undefined: %s", e.Name))
			return nil
		}
		t := bind.Type
		for _, idx := range e.Indices {
			if it := b.bindExpr(idx); it != nil && !ast.IsBase(it, ast.Int) {
				b.error(idx.GetPos(), fmt.Sprintf("array index must be int, not %s", it))
			}
			arr, ok := t.(*ast.ArrayType)
			if !ok {
				b.error(e.Pos, fmt.Sprintf("cannot index %s of type %s", e.Name, t))
				return nil
			}
			t = arr.Elem
		}
		return t

	case *ast.PairElem:
		switch t := b.bindExpr(e.Value).(type) {
		case nil:
			return nil
		case *ast.PairType, *ast.ArbitraryType:
			return b.typeOf(e)
		default:
			b.error(e.Pos, fmt.Sprintf("fst/snd needs a pair, not %s", t))
			return nil
		}

	case *ast.PointerElem:
		t := b.bindExpr(e.Value)
		if t == nil {
			return nil
		}
		if _, ok := t.(*ast.PointerType); !ok {
			b.error(e.Pos, fmt.Sprintf("cannot dereference %s", t))
			return nil
		}
		return b.typeOf(e)

	case *ast.UnaryExpr:
		return b.bindUnary(e)

	case *ast.BinaryExpr:
		return b.bindBinary(e)

	case *ast.ArrayLit:
		var first ast.Type
		for i, el := range e.Elems {
			t := b.bindExpr(el)
			if i == 0 {
				first = t
			} else if t != nil && first != nil && !ast.SameType(first, t) {
				b.error(el.GetPos(), fmt.Sprintf("array element has type %s, expected %s", t, first))
			}
		}
		if len(e.Elems) > 0 && first == nil {
			return nil
		}
		return b.typeOf(e)

	case *ast.NewPair:
		ft := b.bindExpr(e.Fst)
		st := b.bindExpr(e.Snd)
		if ft == nil || st == nil {
			return nil
		}
		return b.typeOf(e)

	case *ast.CallExpr:
		fn, ok := b.funcs[e.Name]
		if !ok {
			b.error(e.Pos, fmt.Sprintf("undefined function: %s", e.Name))
			for _, a := range e.Args {
				b.bindExpr(a)
			}
			return nil
		}
		e.Returns = fn.Returns
		if len(e.Args) != len(fn.Params) {
			b.error(e.Pos, fmt.Sprintf("function %q expects %d argument(s), got %d", e.Name, len(fn.Params), len(e.Args)))
		}
		for i, a := range e.Args {
			at := b.bindExpr(a)
			if i < len(fn.Params) && at != nil && !ast.SameType(fn.Params[i].Type, at) {
				b.error(a.GetPos(), fmt.Sprintf("argument %d of %q must be %s, not %s", i+1, e.Name, fn.Params[i].Type, at))
			}
		}
		return e.Returns
	}
	b.error(expr.GetPos(), fmt.Sprintf("unsupported expression %T", expr))
	return nil
}

func (b *Binder) bindUnary(e *ast.UnaryExpr) ast.Type {
	if e.Op == ast.OpRef {
		switch e.Value.(type) {
		case *ast.Ident, *ast.ArrayElem:
		default:
			b.error(e.Pos, "& needs a variable or array element")
			return nil
		}
	}
	t := b.bindExpr(e.Value)
	if t == nil {
		return nil
	}
	ok := true
	switch e.Op {
	case ast.OpNot:
		ok = ast.IsBase(t, ast.Bool)
	case ast.OpNeg, ast.OpChr:
		ok = ast.IsBase(t, ast.Int)
	case ast.OpOrd:
		ok = ast.IsBase(t, ast.Char)
	case ast.OpLen:
		_, ok = t.(*ast.ArrayType)
	case ast.OpDeref:
		_, ok = t.(*ast.PointerType)
	}
	if !ok {
		b.error(e.Pos, fmt.Sprintf("operator %s not defined on %s", e.Op, t))
		return nil
	}
	return b.typeOf(e)
}

func (b *Binder) bindBinary(e *ast.BinaryExpr) ast.Type {
	lt := b.bindExpr(e.Left)
	rt := b.bindExpr(e.Right)
	if lt == nil || rt == nil {
		return nil
	}
	if ast.IsPointerArithmetic(e, b.scopes, b.scope) {
		return lt
	}
	if !ast.SameType(lt, rt) {
		b.error(e.Pos, fmt.Sprintf("mismatched operand types %s and %s", lt, rt))
		return nil
	}
	ok := true
	switch {
	case e.Op.IsArithmetic():
		ok = ast.IsBase(lt, ast.Int)
	case e.Op == ast.OpAnd || e.Op == ast.OpOr:
		ok = ast.IsBase(lt, ast.Bool)
	case e.Op != ast.OpEq && e.Op != ast.OpNe:
		ok = ast.IsBase(lt, ast.Int) || ast.IsBase(lt, ast.Char)
	}
	if !ok {
		b.error(e.Pos, fmt.Sprintf("operator %s not defined on %s", e.Op, lt))
		return nil
	}
	return b.typeOf(e)
}
