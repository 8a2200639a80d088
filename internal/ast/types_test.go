package ast

import "testing"

func TestParseType(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"int", "int"},
		{"bool", "bool"},
		{"char[]", "char[]"},
		{"int[][]", "int[][]"},
		{"int*", "int*"},
		{"pair(int, bool)", "pair(int, bool)"},
		{"pair(pair, char[])", "pair(pair, char[])"},
		{"pair(int,int)[]", "pair(int, int)[]"},
		{"  string ", "string"},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.src)
		if err != nil {
			t.Errorf("ParseType(%q): %v", tt.src, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseType(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, src := range []string{"", "float", "int[", "pair(int)", "pair(int, bool", "int]"} {
		if _, err := ParseType(src); err == nil {
			t.Errorf("ParseType(%q): expected error", src)
		}
	}
}

func TestTypeSizes(t *testing.T) {
	tests := []struct {
		typ     Type
		arm, x8 int
	}{
		{TypeInt, 4, 4},
		{TypeBool, 1, 1},
		{TypeChar, 1, 1},
		{TypeString, 4, 8},
		{&ArrayType{Elem: TypeInt}, 4, 8},
		{&PairType{Fst: TypeInt, Snd: TypeInt}, 4, 8},
		{&PointerType{Elem: TypeChar}, 4, 8},
		{TypeAny, 4, 8},
	}
	for _, tt := range tests {
		if got := tt.typ.Size(4); got != tt.arm {
			t.Errorf("%s.Size(4) = %d, want %d", tt.typ, got, tt.arm)
		}
		if got := tt.typ.Size(8); got != tt.x8 {
			t.Errorf("%s.Size(8) = %d, want %d", tt.typ, got, tt.x8)
		}
	}
}

func TestSameType(t *testing.T) {
	pairII := &PairType{Fst: TypeInt, Snd: TypeInt}
	if !SameType(pairII, TypeAny) || !SameType(TypeAny, pairII) {
		t.Error("null should match a pair type")
	}
	if SameType(TypeInt, TypeAny) {
		t.Error("null should not match int")
	}
	if !SameType(&ArrayType{Elem: TypeInt}, &ArrayType{Elem: TypeAny}) {
		t.Error("empty array literal should match any array")
	}
	if SameType(&ArrayType{Elem: TypeInt}, &ArrayType{Elem: TypeChar}) {
		t.Error("int[] should not match char[]")
	}
	if !SameType(&PointerType{Elem: TypeInt}, &PointerType{Elem: TypeInt}) {
		t.Error("int* should match int*")
	}
}
