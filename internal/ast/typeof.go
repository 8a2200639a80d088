package ast

// TypeOf returns the static type of e as seen from scope. It returns nil when
// e refers to a name that does not resolve; a bound program never does.
func TypeOf(e Expr, scopes *Scopes, scope ScopeID) Type {
	switch e := e.(type) {
	case *IntLit:
		return TypeInt
	case *BoolLit:
		return TypeBool
	case *CharLit:
		return TypeChar
	case *StrLit:
		return TypeString
	case *NullLit:
		return TypeAny
	case *Ident:
		b, _, ok := scopes.Lookup(scope, e.Name)
		if !ok {
			return nil
		}
		return b.Type
	case *ArrayElem:
		b, _, ok := scopes.Lookup(scope, e.Name)
		if !ok {
			return nil
		}
		t := b.Type
		for range e.Indices {
			arr, ok := t.(*ArrayType)
			if !ok {
				return nil
			}
			t = arr.Elem
		}
		return t
	case *PairElem:
		switch p := TypeOf(e.Value, scopes, scope).(type) {
		case *PairType:
			if e.Fst {
				return p.Fst
			}
			return p.Snd
		case *ArbitraryType:
			return TypeAny
		}
		return nil
	case *PointerElem:
		if p, ok := TypeOf(e.Value, scopes, scope).(*PointerType); ok {
			return p.Elem
		}
		return nil
	case *UnaryExpr:
		switch e.Op {
		case OpNot:
			return TypeBool
		case OpNeg, OpLen, OpOrd:
			return TypeInt
		case OpChr:
			return TypeChar
		case OpRef:
			inner := TypeOf(e.Value, scopes, scope)
			if inner == nil {
				return nil
			}
			return &PointerType{Elem: inner}
		case OpDeref:
			if p, ok := TypeOf(e.Value, scopes, scope).(*PointerType); ok {
				return p.Elem
			}
		}
		return nil
	case *BinaryExpr:
		if IsPointerArithmetic(e, scopes, scope) {
			return TypeOf(e.Left, scopes, scope)
		}
		if e.Op.IsArithmetic() {
			return TypeInt
		}
		return TypeBool
	case *ArrayLit:
		if len(e.Elems) == 0 {
			return &ArrayType{Elem: TypeAny}
		}
		elem := TypeOf(e.Elems[0], scopes, scope)
		if elem == nil {
			return nil
		}
		return &ArrayType{Elem: elem}
	case *NewPair:
		fst := TypeOf(e.Fst, scopes, scope)
		snd := TypeOf(e.Snd, scopes, scope)
		if fst == nil || snd == nil {
			return nil
		}
		return &PairType{Fst: fst, Snd: snd}
	case *CallExpr:
		return e.Returns
	}
	return nil
}

// IsPointerArithmetic reports whether e adds an int offset to a pointer.
func IsPointerArithmetic(e *BinaryExpr, scopes *Scopes, scope ScopeID) bool {
	if e.Op != OpAdd && e.Op != OpSub {
		return false
	}
	if _, ok := TypeOf(e.Left, scopes, scope).(*PointerType); !ok {
		return false
	}
	return IsBase(TypeOf(e.Right, scopes, scope), Int)
}
