package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Source position
// ---------------------------------------------------------------------------

// Position represents a line/column pair in the input document (1-based).
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	GetPos() Position
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// ---------------------------------------------------------------------------
// Program (root)
// ---------------------------------------------------------------------------

// Program is the root of a compilation unit: the user functions plus the
// top-level statement list that forms main.
type Program struct {
	Functions []*FuncDecl
	Body      []Stmt
	Scope     ScopeID // main's scope, filled in by the binder
	Scopes    *Scopes // arena owning every scope of this program
	Pos       Position
}

func (n *Program) GetPos() Position { return n.Pos }

// Param is a function parameter.
type Param struct {
	Name string
	Type Type
	Pos  Position
}

// FuncDecl is a user function. Its parameters and top-level locals share
// one scope.
type FuncDecl struct {
	Name    string
	Returns Type
	Params  []*Param
	Body    []Stmt
	Scope   ScopeID
	Pos     Position
}

func (n *FuncDecl) GetPos() Position { return n.Pos }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// SkipStmt: skip
type SkipStmt struct {
	Pos Position
}

func (n *SkipStmt) GetPos() Position { return n.Pos }
func (n *SkipStmt) stmtNode()        {}

// DeclareStmt: <type> <name> = <value>
type DeclareStmt struct {
	Type  Type
	Name  string
	Value Expr
	Pos   Position
}

func (n *DeclareStmt) GetPos() Position { return n.Pos }
func (n *DeclareStmt) stmtNode()        {}

// AssignStmt: <target> = <value>. Target is an *Ident, *ArrayElem,
// *PairElem or *PointerElem.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Pos    Position
}

func (n *AssignStmt) GetPos() Position { return n.Pos }
func (n *AssignStmt) stmtNode()        {}

// ReadStmt: read <target>
type ReadStmt struct {
	Target Expr
	Pos    Position
}

func (n *ReadStmt) GetPos() Position { return n.Pos }
func (n *ReadStmt) stmtNode()        {}

// FreeStmt: free <value>
type FreeStmt struct {
	Value Expr
	Pos   Position
}

func (n *FreeStmt) GetPos() Position { return n.Pos }
func (n *FreeStmt) stmtNode()        {}

// ReturnStmt: return <value>
type ReturnStmt struct {
	Value Expr
	Pos   Position
}

func (n *ReturnStmt) GetPos() Position { return n.Pos }
func (n *ReturnStmt) stmtNode()        {}

// ExitStmt: exit <value>
type ExitStmt struct {
	Value Expr
	Pos   Position
}

func (n *ExitStmt) GetPos() Position { return n.Pos }
func (n *ExitStmt) stmtNode()        {}

// PrintStmt: print <value> / println <value>
type PrintStmt struct {
	Value   Expr
	Newline bool
	Pos     Position
}

func (n *PrintStmt) GetPos() Position { return n.Pos }
func (n *PrintStmt) stmtNode()        {}

// IfStmt: if <cond> then <then> else <else> fi. Each branch opens a scope.
type IfStmt struct {
	Condition Expr
	Then      []Stmt
	Else      []Stmt
	ThenScope ScopeID
	ElseScope ScopeID
	Pos       Position
}

func (n *IfStmt) GetPos() Position { return n.Pos }
func (n *IfStmt) stmtNode()        {}

// WhileStmt: while <cond> do <body> done
type WhileStmt struct {
	Condition Expr
	Body      []Stmt
	Scope     ScopeID
	Pos       Position
}

func (n *WhileStmt) GetPos() Position { return n.Pos }
func (n *WhileStmt) stmtNode()        {}

// BeginStmt: begin <body> end
type BeginStmt struct {
	Body  []Stmt
	Scope ScopeID
	Pos   Position
}

func (n *BeginStmt) GetPos() Position { return n.Pos }
func (n *BeginStmt) stmtNode()        {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Ident is a plain variable reference.
type Ident struct {
	Name string
	Pos  Position
}

func (n *Ident) GetPos() Position { return n.Pos }
func (n *Ident) exprNode()        {}

// IntLit is an integer literal.
type IntLit struct {
	Value int32
	Pos   Position
}

func (n *IntLit) GetPos() Position { return n.Pos }
func (n *IntLit) exprNode()        {}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Pos   Position
}

func (n *BoolLit) GetPos() Position { return n.Pos }
func (n *BoolLit) exprNode()        {}

// CharLit is a single character.
type CharLit struct {
	Value byte
	Pos   Position
}

func (n *CharLit) GetPos() Position { return n.Pos }
func (n *CharLit) exprNode()        {}

// StrLit holds the decoded (unescaped) contents of a string literal.
type StrLit struct {
	Value string
	Pos   Position
}

func (n *StrLit) GetPos() Position { return n.Pos }
func (n *StrLit) exprNode()        {}

// NullLit is the null pair/pointer literal.
type NullLit struct {
	Pos Position
}

func (n *NullLit) GetPos() Position { return n.Pos }
func (n *NullLit) exprNode()        {}

// ArrayElem indexes a named array, one expression per dimension.
type ArrayElem struct {
	Name    string
	Indices []Expr
	Pos     Position
}

func (n *ArrayElem) GetPos() Position { return n.Pos }
func (n *ArrayElem) exprNode()        {}

// PairElem is fst <value> or snd <value>.
type PairElem struct {
	Fst   bool
	Value Expr
	Pos   Position
}

func (n *PairElem) GetPos() Position { return n.Pos }
func (n *PairElem) exprNode()        {}

// PointerElem is a dereference used as an assignment target: *p = ...
type PointerElem struct {
	Value Expr
	Pos   Position
}

func (n *PointerElem) GetPos() Position { return n.Pos }
func (n *PointerElem) exprNode()        {}

// UnaryOp enumerates the prefix operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpLen
	OpOrd
	OpChr
	OpRef
	OpDeref
)

var unaryOpNames = map[UnaryOp]string{
	OpNot: "!", OpNeg: "-", OpLen: "len", OpOrd: "ord", OpChr: "chr", OpRef: "&", OpDeref: "*",
}

func (op UnaryOp) String() string {
	if s, ok := unaryOpNames[op]; ok {
		return s
	}
	return "unary_" + strconv.Itoa(int(op))
}

// LookupUnaryOp maps an operator spelling to its UnaryOp.
func LookupUnaryOp(s string) (UnaryOp, bool) {
	for op, name := range unaryOpNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// UnaryExpr: <op> <value>
type UnaryExpr struct {
	Op    UnaryOp
	Value Expr
	Pos   Position
}

func (n *UnaryExpr) GetPos() Position { return n.Pos }
func (n *UnaryExpr) exprNode()        {}

// BinaryOp enumerates the infix operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpGt
	OpGe
	OpLt
	OpLe
	OpEq
	OpNe
	OpAnd
	OpOr
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<=", OpEq: "==", OpNe: "!=",
	OpAnd: "&&", OpOr: "||",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpNames[op]; ok {
		return s
	}
	return "binary_" + strconv.Itoa(int(op))
}

// LookupBinaryOp maps an operator spelling to its BinaryOp.
func LookupBinaryOp(s string) (BinaryOp, bool) {
	for op, name := range binaryOpNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// IsArithmetic reports whether op produces an int.
func (op BinaryOp) IsArithmetic() bool {
	return op <= OpMod
}

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpGt && op <= OpNe
}

// BinaryExpr: <left> <op> <right>
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Pos   Position
}

func (n *BinaryExpr) GetPos() Position { return n.Pos }
func (n *BinaryExpr) exprNode()        {}

// ArrayLit: [e0, e1, ...]
type ArrayLit struct {
	Elems []Expr
	Pos   Position
}

func (n *ArrayLit) GetPos() Position { return n.Pos }
func (n *ArrayLit) exprNode()        {}

// NewPair: newpair(fst, snd)
type NewPair struct {
	Fst Expr
	Snd Expr
	Pos Position
}

func (n *NewPair) GetPos() Position { return n.Pos }
func (n *NewPair) exprNode()        {}

// CallExpr: call <name>(<args>). Returns is filled in by the binder.
type CallExpr struct {
	Name    string
	Args    []Expr
	Returns Type
	Pos     Position
}

func (n *CallExpr) GetPos() Position { return n.Pos }
func (n *CallExpr) exprNode()        {}

// ---------------------------------------------------------------------------
// Debug printer – produces a human-readable tree representation
// ---------------------------------------------------------------------------

// DebugString returns a readable multi-line representation of the AST.
func DebugString(prog *Program) string {
	var b strings.Builder
	b.WriteString("Program\n")
	for _, fn := range prog.Functions {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Type.String() + " " + p.Name
		}
		writeIndent(&b, 1)
		fmt.Fprintf(&b, "Func %s %s(%s)\n", fn.Returns, fn.Name, strings.Join(params, ", "))
		debugStmts(&b, fn.Body, 2)
	}
	writeIndent(&b, 1)
	b.WriteString("Main\n")
	debugStmts(&b, prog.Body, 2)
	return b.String()
}

func writeIndent(b *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		b.WriteString("  ")
	}
}

func debugStmts(b *strings.Builder, stmts []Stmt, level int) {
	for _, s := range stmts {
		debugStmt(b, s, level)
	}
}

func debugStmt(b *strings.Builder, s Stmt, level int) {
	writeIndent(b, level)
	switch s := s.(type) {
	case *SkipStmt:
		b.WriteString("Skip\n")
	case *DeclareStmt:
		fmt.Fprintf(b, "Declare %s %s = %s\n", s.Type, s.Name, ExprString(s.Value))
	case *AssignStmt:
		fmt.Fprintf(b, "Assign %s = %s\n", ExprString(s.Target), ExprString(s.Value))
	case *ReadStmt:
		fmt.Fprintf(b, "Read %s\n", ExprString(s.Target))
	case *FreeStmt:
		fmt.Fprintf(b, "Free %s\n", ExprString(s.Value))
	case *ReturnStmt:
		fmt.Fprintf(b, "Return %s\n", ExprString(s.Value))
	case *ExitStmt:
		fmt.Fprintf(b, "Exit %s\n", ExprString(s.Value))
	case *PrintStmt:
		kw := "Print"
		if s.Newline {
			kw = "Println"
		}
		fmt.Fprintf(b, "%s %s\n", kw, ExprString(s.Value))
	case *IfStmt:
		fmt.Fprintf(b, "If (%s)\n", ExprString(s.Condition))
		debugStmts(b, s.Then, level+1)
		writeIndent(b, level)
		b.WriteString("Else\n")
		debugStmts(b, s.Else, level+1)
	case *WhileStmt:
		fmt.Fprintf(b, "While (%s)\n", ExprString(s.Condition))
		debugStmts(b, s.Body, level+1)
	case *BeginStmt:
		b.WriteString("Begin\n")
		debugStmts(b, s.Body, level+1)
	default:
		b.WriteString("<unknown stmt>\n")
	}
}

// ExprString returns a concise one-line representation of an expression.
func ExprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e := e.(type) {
	case *Ident:
		return e.Name
	case *IntLit:
		return strconv.Itoa(int(e.Value))
	case *BoolLit:
		return strconv.FormatBool(e.Value)
	case *CharLit:
		return strconv.QuoteRune(rune(e.Value))
	case *StrLit:
		return strconv.Quote(e.Value)
	case *NullLit:
		return "null"
	case *ArrayElem:
		var b strings.Builder
		b.WriteString(e.Name)
		for _, idx := range e.Indices {
			fmt.Fprintf(&b, "[%s]", ExprString(idx))
		}
		return b.String()
	case *PairElem:
		if e.Fst {
			return "fst " + ExprString(e.Value)
		}
		return "snd " + ExprString(e.Value)
	case *PointerElem:
		return "*" + ExprString(e.Value)
	case *UnaryExpr:
		if e.Op == OpLen || e.Op == OpOrd || e.Op == OpChr {
			return fmt.Sprintf("(%s %s)", e.Op, ExprString(e.Value))
		}
		return fmt.Sprintf("(%s%s)", e.Op, ExprString(e.Value))
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.Left), e.Op, ExprString(e.Right))
	case *ArrayLit:
		elems := make([]string, len(e.Elems))
		for i, el := range e.Elems {
			elems[i] = ExprString(el)
		}
		return fmt.Sprintf("[%s]", strings.Join(elems, ", "))
	case *NewPair:
		return fmt.Sprintf("newpair(%s, %s)", ExprString(e.Fst), ExprString(e.Snd))
	case *CallExpr:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = ExprString(a)
		}
		return fmt.Sprintf("call %s(%s)", e.Name, strings.Join(args, ", "))
	default:
		return "<unknown expr>"
	}
}
