package ast

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// AST documents
//
// Programs arrive as YAML documents. Every statement and expression is a
// single-key mapping whose key names the node kind:
//
//	functions:
//	  - name: inc
//	    returns: int
//	    params: [{name: x, type: int}]
//	    body:
//	      - return: {binary: {op: "+", left: {ident: x}, right: {int: 1}}}
//	body:
//	  - declare: {type: int, name: x, value: {call: {name: inc, args: [{int: 4}]}}}
//	  - println: {ident: x}
// ---------------------------------------------------------------------------

// DecodeError reports a malformed node together with its document position.
type DecodeError struct {
	Pos Position
	Msg string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Decode parses an AST document. Scopes are not built here; see the
// semantic package.
func Decode(data []byte) (*Program, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &DecodeError{Pos: Position{Line: 1, Column: 1}, Msg: "empty document"}
	}
	return decodeProgram(root.Content[0])
}

func posOf(n *yaml.Node) Position {
	return Position{Line: n.Line, Column: n.Column}
}

func errorf(n *yaml.Node, format string, args ...any) error {
	return &DecodeError{Pos: posOf(n), Msg: fmt.Sprintf(format, args...)}
}

// fields returns the key→value pairs of a mapping node.
func fields(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out, nil
}

// required fetches a field that must be present.
func required(parent *yaml.Node, f map[string]*yaml.Node, key string) (*yaml.Node, error) {
	v, ok := f[key]
	if !ok {
		return nil, errorf(parent, "missing field %q", key)
	}
	return v, nil
}

// single splits a one-key mapping into its key and value.
func single(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, errorf(n, "expected a single-key mapping")
	}
	return n.Content[0].Value, n.Content[1], nil
}

func sequence(n *yaml.Node) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errorf(n, "expected a sequence")
	}
	return n.Content, nil
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", errorf(n, "expected a scalar")
	}
	return n.Value, nil
}

func decodeType(n *yaml.Node) (Type, error) {
	s, err := scalar(n)
	if err != nil {
		return nil, err
	}
	t, err := ParseType(s)
	if err != nil {
		return nil, errorf(n, "%v", err)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Program and functions
// ---------------------------------------------------------------------------

func decodeProgram(n *yaml.Node) (*Program, error) {
	f, err := fields(n)
	if err != nil {
		return nil, err
	}
	prog := &Program{Pos: posOf(n), Scope: NoScope}
	if fns, ok := f["functions"]; ok {
		items, err := sequence(fns)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			fn, err := decodeFunc(item)
			if err != nil {
				return nil, err
			}
			prog.Functions = append(prog.Functions, fn)
		}
	}
	body, err := required(n, f, "body")
	if err != nil {
		return nil, err
	}
	if prog.Body, err = decodeStmts(body); err != nil {
		return nil, err
	}
	return prog, nil
}

func decodeFunc(n *yaml.Node) (*FuncDecl, error) {
	f, err := fields(n)
	if err != nil {
		return nil, err
	}
	fn := &FuncDecl{Pos: posOf(n), Scope: NoScope}

	nameNode, err := required(n, f, "name")
	if err != nil {
		return nil, err
	}
	if fn.Name, err = scalar(nameNode); err != nil {
		return nil, err
	}
	retNode, err := required(n, f, "returns")
	if err != nil {
		return nil, err
	}
	if fn.Returns, err = decodeType(retNode); err != nil {
		return nil, err
	}

	if params, ok := f["params"]; ok {
		items, err := sequence(params)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			pf, err := fields(item)
			if err != nil {
				return nil, err
			}
			p := &Param{Pos: posOf(item)}
			pn, err := required(item, pf, "name")
			if err != nil {
				return nil, err
			}
			if p.Name, err = scalar(pn); err != nil {
				return nil, err
			}
			pt, err := required(item, pf, "type")
			if err != nil {
				return nil, err
			}
			if p.Type, err = decodeType(pt); err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, p)
		}
	}

	body, err := required(n, f, "body")
	if err != nil {
		return nil, err
	}
	if fn.Body, err = decodeStmts(body); err != nil {
		return nil, err
	}
	if len(fn.Body) == 0 {
		return nil, errorf(n, "function %q has an empty body", fn.Name)
	}
	return fn, nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func decodeStmts(n *yaml.Node) ([]Stmt, error) {
	items, err := sequence(n)
	if err != nil {
		return nil, err
	}
	stmts := make([]Stmt, 0, len(items))
	for _, item := range items {
		s, err := decodeStmt(item)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func decodeStmt(n *yaml.Node) (Stmt, error) {
	kind, v, err := single(n)
	if err != nil {
		return nil, err
	}
	pos := posOf(n)

	switch kind {
	case "skip":
		return &SkipStmt{Pos: pos}, nil

	case "declare":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		s := &DeclareStmt{Pos: pos}
		tn, err := required(v, f, "type")
		if err != nil {
			return nil, err
		}
		if s.Type, err = decodeType(tn); err != nil {
			return nil, err
		}
		nn, err := required(v, f, "name")
		if err != nil {
			return nil, err
		}
		if s.Name, err = scalar(nn); err != nil {
			return nil, err
		}
		vn, err := required(v, f, "value")
		if err != nil {
			return nil, err
		}
		if s.Value, err = decodeExpr(vn); err != nil {
			return nil, err
		}
		return s, nil

	case "assign":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		s := &AssignStmt{Pos: pos}
		tn, err := required(v, f, "target")
		if err != nil {
			return nil, err
		}
		if s.Target, err = decodeExpr(tn); err != nil {
			return nil, err
		}
		vn, err := required(v, f, "value")
		if err != nil {
			return nil, err
		}
		if s.Value, err = decodeExpr(vn); err != nil {
			return nil, err
		}
		return s, nil

	case "read", "free", "return", "exit", "print", "println":
		e, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "read":
			return &ReadStmt{Target: e, Pos: pos}, nil
		case "free":
			return &FreeStmt{Value: e, Pos: pos}, nil
		case "return":
			return &ReturnStmt{Value: e, Pos: pos}, nil
		case "exit":
			return &ExitStmt{Value: e, Pos: pos}, nil
		default:
			return &PrintStmt{Value: e, Newline: kind == "println", Pos: pos}, nil
		}

	case "if":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		s := &IfStmt{Pos: pos, ThenScope: NoScope, ElseScope: NoScope}
		cn, err := required(v, f, "cond")
		if err != nil {
			return nil, err
		}
		if s.Condition, err = decodeExpr(cn); err != nil {
			return nil, err
		}
		tn, err := required(v, f, "then")
		if err != nil {
			return nil, err
		}
		if s.Then, err = decodeStmts(tn); err != nil {
			return nil, err
		}
		en, err := required(v, f, "else")
		if err != nil {
			return nil, err
		}
		if s.Else, err = decodeStmts(en); err != nil {
			return nil, err
		}
		return s, nil

	case "while":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		s := &WhileStmt{Pos: pos, Scope: NoScope}
		cn, err := required(v, f, "cond")
		if err != nil {
			return nil, err
		}
		if s.Condition, err = decodeExpr(cn); err != nil {
			return nil, err
		}
		bn, err := required(v, f, "do")
		if err != nil {
			return nil, err
		}
		if s.Body, err = decodeStmts(bn); err != nil {
			return nil, err
		}
		return s, nil

	case "begin":
		body, err := decodeStmts(v)
		if err != nil {
			return nil, err
		}
		return &BeginStmt{Body: body, Pos: pos, Scope: NoScope}, nil
	}
	return nil, errorf(n, "unknown statement %q", kind)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func decodeExprs(n *yaml.Node) ([]Expr, error) {
	items, err := sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]Expr, 0, len(items))
	for _, item := range items {
		e, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeExpr(n *yaml.Node) (Expr, error) {
	kind, v, err := single(n)
	if err != nil {
		return nil, err
	}
	pos := posOf(n)

	switch kind {
	case "int":
		var val int32
		if err := v.Decode(&val); err != nil {
			return nil, errorf(v, "invalid int literal %q", v.Value)
		}
		return &IntLit{Value: val, Pos: pos}, nil

	case "bool":
		var val bool
		if err := v.Decode(&val); err != nil {
			return nil, errorf(v, "invalid bool literal %q", v.Value)
		}
		return &BoolLit{Value: val, Pos: pos}, nil

	case "char":
		var val string
		if err := v.Decode(&val); err != nil || len(val) != 1 {
			return nil, errorf(v, "invalid char literal %q", v.Value)
		}
		return &CharLit{Value: val[0], Pos: pos}, nil

	case "string":
		var val string
		if err := v.Decode(&val); err != nil {
			return nil, errorf(v, "invalid string literal")
		}
		return &StrLit{Value: val, Pos: pos}, nil

	case "null":
		return &NullLit{Pos: pos}, nil

	case "ident":
		name, err := scalar(v)
		if err != nil {
			return nil, err
		}
		return &Ident{Name: name, Pos: pos}, nil

	case "index":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		e := &ArrayElem{Pos: pos}
		an, err := required(v, f, "array")
		if err != nil {
			return nil, err
		}
		if e.Name, err = scalar(an); err != nil {
			return nil, err
		}
		at, err := required(v, f, "at")
		if err != nil {
			return nil, err
		}
		if e.Indices, err = decodeExprs(at); err != nil {
			return nil, err
		}
		if len(e.Indices) == 0 {
			return nil, errorf(at, "index needs at least one position")
		}
		return e, nil

	case "fst", "snd":
		inner, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &PairElem{Fst: kind == "fst", Value: inner, Pos: pos}, nil

	case "pointer":
		inner, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return &PointerElem{Value: inner, Pos: pos}, nil

	case "unary":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		on, err := required(v, f, "op")
		if err != nil {
			return nil, err
		}
		op, ok := LookupUnaryOp(on.Value)
		if !ok {
			return nil, errorf(on, "unknown unary operator %q", on.Value)
		}
		vn, err := required(v, f, "value")
		if err != nil {
			return nil, err
		}
		inner, err := decodeExpr(vn)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Value: inner, Pos: pos}, nil

	case "binary":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		on, err := required(v, f, "op")
		if err != nil {
			return nil, err
		}
		op, ok := LookupBinaryOp(on.Value)
		if !ok {
			return nil, errorf(on, "unknown binary operator %q", on.Value)
		}
		ln, err := required(v, f, "left")
		if err != nil {
			return nil, err
		}
		rn, err := required(v, f, "right")
		if err != nil {
			return nil, err
		}
		left, err := decodeExpr(ln)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(rn)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right, Pos: pos}, nil

	case "array":
		elems, err := decodeExprs(v)
		if err != nil {
			return nil, err
		}
		return &ArrayLit{Elems: elems, Pos: pos}, nil

	case "newpair":
		elems, err := decodeExprs(v)
		if err != nil {
			return nil, err
		}
		if len(elems) != 2 {
			return nil, errorf(v, "newpair takes exactly two elements, got %d", len(elems))
		}
		return &NewPair{Fst: elems[0], Snd: elems[1], Pos: pos}, nil

	case "call":
		f, err := fields(v)
		if err != nil {
			return nil, err
		}
		c := &CallExpr{Pos: pos}
		nn, err := required(v, f, "name")
		if err != nil {
			return nil, err
		}
		if c.Name, err = scalar(nn); err != nil {
			return nil, err
		}
		if args, ok := f["args"]; ok {
			if c.Args, err = decodeExprs(args); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	return nil, errorf(n, "unknown expression %q", kind)
}
