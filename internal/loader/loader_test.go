package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joomcode/errorx"

	"github.com/xirelogy/go-quail/internal/ast"
	"github.com/xirelogy/go-quail/internal/token"
)

func load(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := Load(strings.NewReader(src), "fallback")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	return mod
}

func TestLoadModule(t *testing.T) {
	src := `
module: peano
definitions:
  - name: zeroes
    type: Nat -> List
    term:
      lam: n
      body:
        match: n
        arms:
          - {pattern: zero, body: nil}
          - pattern: [succ, m]
            body: {app: cons, args: [0, {app: zeroes, args: [m]}]}
  - name: main
    term:
      let: three
      be: {as: {app: succ, args: [{app: succ, args: [{app: succ, args: [zero]}]}]}, type: Nat}
      in: {app: zeroes, args: [three]}
`
	mod := load(t, src)
	if mod.Name != "peano" {
		t.Fatalf("expected module peano, got %s", mod.Name)
	}
	if got := mod.Globals(); len(got) != 2 || got[0] != "zeroes" || got[1] != "main" {
		t.Fatalf("unexpected globals %v", got)
	}
	zeroes, _ := mod.Definition("zeroes")
	if zeroes.Type != "Nat -> List" {
		t.Fatalf("expected type to be kept, got %q", zeroes.Type)
	}
	if zeroes.NamePos.Line != 4 {
		t.Fatalf("expected name on line 4, got %s", zeroes.NamePos)
	}
	fn, ok := zeroes.Term.(*ast.Lam)
	if !ok || fn.Param != "n" {
		t.Fatalf("expected lambda over n, got %#v", zeroes.Term)
	}
	m, ok := fn.Body.(*ast.Match)
	if !ok || len(m.Arms) != 2 {
		t.Fatalf("expected match with two arms, got %#v", fn.Body)
	}
	if p := m.Arms[1].Pattern; len(p) != 2 || p[0] != "succ" || p[1] != "m" {
		t.Fatalf("unexpected pattern %v", p)
	}
	cons, ok := m.Arms[1].Body.(*ast.App)
	if !ok || len(cons.Args) != 2 {
		t.Fatalf("expected cons application, got %#v", m.Arms[1].Body)
	}
	if n, ok := cons.Args[0].(*ast.IntLit); !ok || n.Value != 0 {
		t.Fatalf("expected literal 0, got %#v", cons.Args[0])
	}

	main, _ := mod.Definition("main")
	let, ok := main.Term.(*ast.Let)
	if !ok || let.Name != "three" {
		t.Fatalf("expected let three, got %#v", main.Term)
	}
	if as, ok := let.Value.(*ast.As); !ok || as.Type != "Nat" {
		t.Fatalf("expected ascription, got %#v", let.Value)
	}
}

func TestLoadScalars(t *testing.T) {
	src := `
definitions:
  - {name: a, term: 42}
  - {name: b, term: true}
  - {name: c, term: "+1"}
  - {name: d, term: 0x10}
`
	mod := load(t, src)
	if mod.Name != "fallback" {
		t.Fatalf("expected default module name, got %s", mod.Name)
	}
	cases := []struct {
		name string
		want ast.Term
	}{
		{"a", &ast.IntLit{Value: 42}},
		{"b", &ast.Var{Name: "true"}},
		{"c", &ast.Var{Name: "+1"}},
		{"d", &ast.IntLit{Value: 16}},
	}
	for _, tc := range cases {
		d, ok := mod.Definition(tc.name)
		if !ok {
			t.Fatalf("definition %s missing", tc.name)
		}
		switch want := tc.want.(type) {
		case *ast.IntLit:
			got, ok := d.Term.(*ast.IntLit)
			if !ok || got.Value != want.Value {
				t.Fatalf("%s: expected %d, got %#v", tc.name, want.Value, d.Term)
			}
		case *ast.Var:
			got, ok := d.Term.(*ast.Var)
			if !ok || got.Name != want.Name {
				t.Fatalf("%s: expected %s, got %#v", tc.name, want.Name, d.Term)
			}
		}
	}
}

func TestLoadMultiParameterLambda(t *testing.T) {
	mod := load(t, `
definitions:
  - name: k
    term: {lam: [x, y], body: x}
`)
	d, _ := mod.Definition("k")
	outer, ok := d.Term.(*ast.Lam)
	if !ok || outer.Param != "x" {
		t.Fatalf("expected outer lambda over x, got %#v", d.Term)
	}
	inner, ok := outer.Body.(*ast.Lam)
	if !ok || inner.Param != "y" {
		t.Fatalf("expected inner lambda over y, got %#v", outer.Body)
	}
}

func TestLoadHole(t *testing.T) {
	mod := load(t, `
definitions:
  - name: main
    term: {hole: 3, name: todo, contents: "succ ?"}
`)
	d, _ := mod.Definition("main")
	h, ok := d.Term.(*ast.Hole)
	if !ok || h.ID != 3 || h.Name != "todo" || h.Contents != "succ ?" {
		t.Fatalf("unexpected hole %#v", d.Term)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
	}{
		{"empty", ``, 0},
		{"unknown top-level key", "modules: x\n", 0},
		{"missing name", "definitions:\n  - term: 1\n", 2},
		{"duplicate", "definitions:\n  - {name: a, term: 1}\n  - {name: a, term: 2}\n", 3},
		{"missing term", "definitions:\n  - name: a\n", 2},
		{"two heads", "definitions:\n  - name: a\n    term: {lam: x, app: f, body: x}\n", 3},
		{"unknown key", "definitions:\n  - name: a\n    term: {app: f, arg: [x]}\n", 3},
		{"no head", "definitions:\n  - name: a\n    term: {body: x}\n", 3},
		{"empty args", "definitions:\n  - name: a\n    term: {app: f, args: []}\n", 3},
		{"missing let body", "definitions:\n  - name: a\n    term: {let: x, be: 1}\n", 3},
		{"arm without body", "definitions:\n  - name: a\n    term: {match: x, arms: [{pattern: zero}]}\n", 3},
		{"application in scalar", "definitions:\n  - name: a\n    term: succ zero\n", 3},
		{"sequence term", "definitions:\n  - name: a\n    term: [1, 2]\n", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.src), "test")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errorx.IsOfType(err, ErrDecode) {
				t.Fatalf("expected decode error, got %v", err)
			}
			if tc.line == 0 {
				return
			}
			prop, ok := errorx.ExtractProperty(err, PropertyPosition)
			if !ok {
				t.Fatalf("expected position on %v", err)
			}
			if pos := prop.(token.Position); pos.Line != tc.line {
				t.Fatalf("expected error on line %d, got %s (%v)", tc.line, pos, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "numbers.yaml")
	if err := os.WriteFile(path, []byte("definitions:\n  - {name: main, term: 1}\n"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	mod, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if mod.Name != "numbers" {
		t.Fatalf("expected module name from file, got %s", mod.Name)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); !errorx.IsOfType(err, ErrDecode) {
		t.Fatalf("expected decode error for missing file, got %v", err)
	}
}
