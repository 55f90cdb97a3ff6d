package ast

import (
	"slices"
	"testing"
)

func v(name string) *Var { return &Var{Name: name} }

func TestFreeVars(t *testing.T) {
	cases := []struct {
		name string
		term Term
		want []string
	}{
		{"variable", v("x"), []string{"x"}},
		{"literal", &IntLit{Value: 1}, nil},
		{"lambda binds", &Lam{Param: "x", Body: &App{Func: v("f"), Args: []Term{v("x"), v("y")}}}, []string{"f", "y"}},
		{"first occurrence order", &App{Func: v("g"), Args: []Term{v("b"), v("a"), v("b")}}, []string{"g", "b", "a"}},
		{"let scopes body only", &Let{Name: "x", Value: v("x"), Body: v("x")}, []string{"x"}},
		{
			"match binds fields",
			&Match{Subject: v("xs"), Arms: []MatchArm{
				{Pattern: []string{"nil"}, Body: v("d")},
				{Pattern: []string{"cons", "h", "t"}, Body: &App{Func: v("h"), Args: []Term{v("t"), v("k")}}},
			}},
			[]string{"xs", "d", "k"},
		},
		{
			"catch-all binds scrutinee",
			&Match{Subject: v("n"), Arms: []MatchArm{
				{Pattern: []string{"0"}, Body: v("z")},
				{Pattern: []string{"m"}, Body: v("m")},
			}},
			[]string{"n", "z"},
		},
		{"ascription", &As{Term: v("x"), Type: "Nat"}, []string{"x"}},
		{"hole", &Hole{Name: "todo"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FreeVars(tc.term)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFreeVarsDoesNotLeakSiblingBindings(t *testing.T) {
	term := &App{
		Func: &Lam{Param: "x", Body: &Lam{Param: "y", Body: v("x")}},
		Args: []Term{v("x"), &Lam{Param: "z", Body: v("y")}},
	}
	got := FreeVars(term)
	if !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("expected x and y free in the arguments, got %v", got)
	}
}

func TestPatternHeads(t *testing.T) {
	cases := []struct {
		name     string
		catchAll bool
		isInt    bool
		value    int64
	}{
		{"succ", false, false, 0},
		{"nil", false, false, 0},
		{"42", false, true, 42},
		{"-3", false, true, -3},
		{"n", true, false, 0},
		{"_", true, false, 0},
	}
	for _, tc := range cases {
		if got := IsCatchAll(tc.name); got != tc.catchAll {
			t.Fatalf("%s: expected catch-all %v, got %v", tc.name, tc.catchAll, got)
		}
		k, ok := PatternInt(tc.name)
		if ok != tc.isInt || k != tc.value {
			t.Fatalf("%s: expected (%d, %v), got (%d, %v)", tc.name, tc.value, tc.isInt, k, ok)
		}
	}
}

func TestConstructors(t *testing.T) {
	cons, ok := LookupConstructor("cons")
	if !ok || cons.Arity() != 2 {
		t.Fatalf("expected binary cons, got %#v", cons)
	}
	if _, ok := LookupConstructor("pair"); ok {
		t.Fatalf("unexpected constructor pair")
	}
	if !IsConstructor("true") || IsConstructor("main") {
		t.Fatalf("unexpected constructor classification")
	}
}

func TestModuleLookup(t *testing.T) {
	mod := &Module{Name: "m", Definitions: []*Def{
		{Name: "a", Term: v("b")},
		{Name: "b", Term: &IntLit{Value: 1}},
	}}
	if got := mod.Globals(); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected globals %v", got)
	}
	if d, ok := mod.Definition("b"); !ok || d.Name != "b" {
		t.Fatalf("expected definition b")
	}
	if _, ok := mod.Definition("c"); ok {
		t.Fatalf("unexpected definition c")
	}
	var empty *Module
	if empty.Globals() != nil {
		t.Fatalf("expected no globals on nil module")
	}
}
