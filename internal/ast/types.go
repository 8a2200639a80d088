package ast

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Type is the static type of a declaration or expression. Sizes depend on
// the target's pointer width, which is passed in rather than looked up.
type Type interface {
	// Size returns the byte footprint of a value of this type on a target
	// whose pointers are ptrSize bytes wide.
	Size(ptrSize int) int
	String() string
	typeNode()
}

// BaseKind enumerates the scalar base types.
type BaseKind int

const (
	Int BaseKind = iota
	Bool
	Char
	String
)

// BaseType is int, bool, char or string.
type BaseType struct {
	Kind BaseKind
}

func (t *BaseType) Size(ptrSize int) int {
	switch t.Kind {
	case Int:
		return 4
	case Bool, Char:
		return 1
	default:
		return ptrSize
	}
}

func (t *BaseType) String() string {
	switch t.Kind {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Char:
		return "char"
	default:
		return "string"
	}
}

func (t *BaseType) typeNode() {}

// ArrayType is a heap array of Elem. Nested arrays are arrays of arrays.
type ArrayType struct {
	Elem Type
}

func (t *ArrayType) Size(ptrSize int) int { return ptrSize }
func (t *ArrayType) String() string       { return t.Elem.String() + "[]" }
func (t *ArrayType) typeNode()            {}

// PairType is a heap pair. Either side may be an *ArbitraryType when the
// pair is nested (the bare "pair" element type).
type PairType struct {
	Fst Type
	Snd Type
}

func (t *PairType) Size(ptrSize int) int { return ptrSize }
func (t *PairType) String() string {
	return fmt.Sprintf("pair(%s, %s)", t.Fst, t.Snd)
}
func (t *PairType) typeNode() {}

// PointerType points at a value of type Elem.
type PointerType struct {
	Elem Type
}

func (t *PointerType) Size(ptrSize int) int { return ptrSize }
func (t *PointerType) String() string       { return t.Elem.String() + "*" }
func (t *PointerType) typeNode()            {}

// ArbitraryType is the type of null, of an untyped nested pair and of the
// elements of an empty array literal.
type ArbitraryType struct{}

func (t *ArbitraryType) Size(ptrSize int) int { return ptrSize }
func (t *ArbitraryType) String() string       { return "pair" }
func (t *ArbitraryType) typeNode()            {}

// Shared singletons for the base types.
var (
	TypeInt    Type = &BaseType{Kind: Int}
	TypeBool   Type = &BaseType{Kind: Bool}
	TypeChar   Type = &BaseType{Kind: Char}
	TypeString Type = &BaseType{Kind: String}
	TypeAny    Type = &ArbitraryType{}
)

// ---------------------------------------------------------------------------
// Type predicates
// ---------------------------------------------------------------------------

// IsBase reports whether t is the base type k.
func IsBase(t Type, k BaseKind) bool {
	b, ok := t.(*BaseType)
	return ok && b.Kind == k
}

// IsByteSized reports whether values of t occupy a single byte (bool, char).
func IsByteSized(t Type) bool {
	return IsBase(t, Bool) || IsBase(t, Char)
}

// SameType reports whether a and b are structurally equal. The arbitrary
// type matches any pair or pointer, and any array element type.
func SameType(a, b Type) bool {
	_, aAny := a.(*ArbitraryType)
	_, bAny := b.(*ArbitraryType)
	switch {
	case aAny && bAny:
		return true
	case aAny:
		return isReference(b)
	case bAny:
		return isReference(a)
	}
	switch a := a.(type) {
	case *BaseType:
		b, ok := b.(*BaseType)
		return ok && a.Kind == b.Kind
	case *ArrayType:
		b, ok := b.(*ArrayType)
		if !ok {
			return false
		}
		_, ea := a.Elem.(*ArbitraryType)
		_, eb := b.Elem.(*ArbitraryType)
		return ea || eb || SameType(a.Elem, b.Elem)
	case *PairType:
		b, ok := b.(*PairType)
		return ok && SameType(a.Fst, b.Fst) && SameType(a.Snd, b.Snd)
	case *PointerType:
		b, ok := b.(*PointerType)
		return ok && SameType(a.Elem, b.Elem)
	}
	return false
}

func isReference(t Type) bool {
	switch t.(type) {
	case *PairType, *PointerType, *ArbitraryType:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Type syntax
// ---------------------------------------------------------------------------

// ParseType parses the textual type syntax used by AST documents:
// int, bool, char, string, T[], T*, pair(T, T) and the bare pair.
func ParseType(s string) (Type, error) {
	p := &typeParser{src: strings.TrimSpace(s)}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q in type %q", p.src[p.pos:], s)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c < 'a' || c > 'z' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("expected %q in type %q", c, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) parse() (Type, error) {
	p.skipSpace()
	var t Type
	switch w := p.word(); w {
	case "int":
		t = TypeInt
	case "bool":
		t = TypeBool
	case "char":
		t = TypeChar
	case "string":
		t = TypeString
	case "pair":
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '(' {
			p.pos++
			fst, err := p.parse()
			if err != nil {
				return nil, err
			}
			if err := p.expect(','); err != nil {
				return nil, err
			}
			snd, err := p.parse()
			if err != nil {
				return nil, err
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			t = &PairType{Fst: fst, Snd: snd}
		} else {
			t = TypeAny
		}
	case "":
		return nil, fmt.Errorf("missing type name in %q", p.src)
	default:
		return nil, fmt.Errorf("unknown type %q", w)
	}

	// Postfix array and pointer suffixes.
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return t, nil
		}
		switch p.src[p.pos] {
		case '[':
			p.pos++
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			t = &ArrayType{Elem: t}
		case '*':
			p.pos++
			t = &PointerType{Elem: t}
		default:
			return t, nil
		}
	}
}
