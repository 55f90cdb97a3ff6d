package compiler

import (
	"testing"

	"github.com/joomcode/errorx"

	"github.com/xirelogy/go-quail/internal/ast"
	"github.com/xirelogy/go-quail/internal/stg"
)

func v(name string) *ast.Var { return &ast.Var{Name: name} }

func lit(k int64) *ast.IntLit { return &ast.IntLit{Value: k} }

func lam(params []string, body ast.Term) ast.Term {
	for i := len(params) - 1; i >= 0; i-- {
		body = &ast.Lam{Param: params[i], Body: body}
	}
	return body
}

func app(fn ast.Term, args ...ast.Term) *ast.App { return &ast.App{Func: fn, Args: args} }

func module(defs ...*ast.Def) *ast.Module { return &ast.Module{Name: "test", Definitions: defs} }

func def(name string, term ast.Term) *ast.Def { return &ast.Def{Name: name, Term: term} }

func transform(t *testing.T, mod *ast.Module) *stg.Program {
	t.Helper()
	prog, err := Transform(mod)
	if err != nil {
		t.Fatalf("transform error: %v", err)
	}
	return prog
}

func body(t *testing.T, prog *stg.Program, name string) stg.Expr {
	t.Helper()
	b, ok := prog.Lookup(name)
	if !ok {
		t.Fatalf("binding %s not found", name)
	}
	if !b.Form.Updatable || b.Form.Arity() != 0 || len(b.Form.Captured) != 0 {
		t.Fatalf("expected %s to be a closed updatable binding, got %s", name, stg.FormHeader(b.Form))
	}
	return b.Form.Body
}

func TestTransformAppendsConstructorWrappers(t *testing.T) {
	prog := transform(t, module(def("main", v("zero"))))
	if len(prog.Bindings) != 1+len(ast.Constructors) {
		t.Fatalf("expected %d bindings, got %d", 1+len(ast.Constructors), len(prog.Bindings))
	}
	if prog.Bindings[0].Name != "main" {
		t.Fatalf("expected definitions first, got %s", prog.Bindings[0].Name)
	}
	cons, ok := prog.Lookup("cons")
	if !ok {
		t.Fatalf("cons wrapper missing")
	}
	if cons.Form.Updatable || cons.Form.Arity() != 2 {
		t.Fatalf("unexpected cons wrapper %s", stg.FormHeader(cons.Form))
	}
	call, ok := cons.Form.Body.(*stg.App)
	if !ok || call.Kind != stg.AppCtor || call.Head != "cons" || len(call.Args) != 2 {
		t.Fatalf("unexpected cons wrapper body %s", stg.ExprString(cons.Form.Body))
	}
}

func TestTransformVariables(t *testing.T) {
	prog := transform(t, module(
		def("a", v("nil")),
		def("b", v("succ")),
		def("c", v("a")),
	))
	cases := []struct {
		name string
		kind stg.AppKind
		head string
	}{
		{"a", stg.AppCtor, "nil"},
		{"b", stg.AppFun, "succ"},
		{"c", stg.AppFun, "a"},
	}
	for _, tc := range cases {
		call, ok := body(t, prog, tc.name).(*stg.App)
		if !ok {
			t.Fatalf("%s: expected application", tc.name)
		}
		if call.Kind != tc.kind || call.Head != tc.head || len(call.Args) != 0 {
			t.Fatalf("%s: expected %s %s {}, got %s %s", tc.name, tc.kind, tc.head, call.Kind, stg.ExprString(call))
		}
	}
}

func TestTransformLiftsLambda(t *testing.T) {
	prog := transform(t, module(def("const", lam([]string{"x", "y"}, v("x")))))
	let, ok := body(t, prog, "const").(*stg.Let)
	if !ok {
		t.Fatalf("expected let, got %s", stg.ExprString(body(t, prog, "const")))
	}
	if let.Recursive || len(let.Bindings) != 1 {
		t.Fatalf("expected one non-recursive binding, got %s", stg.ExprString(let))
	}
	fn := let.Bindings[0]
	if fn.Form.Updatable || len(fn.Form.Captured) != 0 {
		t.Fatalf("expected closed function, got %s", stg.FormHeader(fn.Form))
	}
	if len(fn.Form.Params) != 2 || fn.Form.Params[0] != "x" || fn.Form.Params[1] != "y" {
		t.Fatalf("expected fused params [x y], got %v", fn.Form.Params)
	}
	call, ok := let.Body.(*stg.App)
	if !ok || call.Kind != stg.AppFun || call.Head != fn.Name || len(call.Args) != 0 {
		t.Fatalf("expected let body to return %s, got %s", fn.Name, stg.ExprString(let.Body))
	}
}

func TestTransformCapturesOnlyLocals(t *testing.T) {
	// f = \x. let y = succ x in \z. cons y z
	term := lam([]string{"x"}, &ast.Let{
		Name:  "y",
		Value: app(v("succ"), v("x")),
		Body:  lam([]string{"z"}, app(v("cons"), v("y"), v("z"))),
	})
	prog := transform(t, module(def("f", term)))
	outer := body(t, prog, "f").(*stg.Let)
	inner, ok := outer.Bindings[0].Form.Body.(*stg.Let)
	if !ok {
		t.Fatalf("expected let for y, got %s", stg.ExprString(outer.Bindings[0].Form.Body))
	}
	y := inner.Bindings[0]
	if y.Name != "y" || !y.Form.Updatable || len(y.Form.Captured) != 1 || y.Form.Captured[0] != "x" {
		t.Fatalf("expected y = {x} \\u {}, got %s = %s", y.Name, stg.FormHeader(y.Form))
	}
	lifted, ok := inner.Body.(*stg.Let)
	if !ok {
		t.Fatalf("expected lifted lambda, got %s", stg.ExprString(inner.Body))
	}
	fn := lifted.Bindings[0].Form
	if len(fn.Captured) != 1 || fn.Captured[0] != "y" {
		t.Fatalf("expected inner lambda to capture only y, got %v", fn.Captured)
	}
	call := fn.Body.(*stg.App)
	if call.Kind != stg.AppCtor || call.Head != "cons" {
		t.Fatalf("expected saturated constructor, got %s", stg.ExprString(call))
	}
}

func TestTransformHoistsArguments(t *testing.T) {
	prog := transform(t, module(def("main", app(v("succ"), app(v("succ"), v("zero"))))))
	let, ok := body(t, prog, "main").(*stg.Let)
	if !ok {
		t.Fatalf("expected let, got %s", stg.ExprString(body(t, prog, "main")))
	}
	if len(let.Bindings) != 1 {
		t.Fatalf("expected one hoisted argument, got %d", len(let.Bindings))
	}
	tmp := let.Bindings[0]
	if tmp.Name != "gensym_0" || !tmp.Form.Updatable || tmp.Form.Arity() != 0 {
		t.Fatalf("expected updatable gensym_0 thunk, got %s = %s", tmp.Name, stg.FormHeader(tmp.Form))
	}
	call := let.Body.(*stg.App)
	if call.Kind != stg.AppCtor || len(call.Args) != 1 || call.Args[0].Var != "gensym_0" {
		t.Fatalf("expected succ {gensym_0}, got %s", stg.ExprString(call))
	}
}

func TestTransformKeepsLiteralArguments(t *testing.T) {
	prog := transform(t, module(
		def("pair", lam([]string{"a", "b"}, app(v("cons"), v("a"), v("b")))),
		def("main", app(v("pair"), lit(1), lit(2))),
	))
	call, ok := body(t, prog, "main").(*stg.App)
	if !ok {
		t.Fatalf("expected direct application, got %s", stg.ExprString(body(t, prog, "main")))
	}
	if call.Kind != stg.AppFun || len(call.Args) != 2 || !call.Args[0].IsLit || call.Args[1].Lit != 2 {
		t.Fatalf("expected pair {1, 2}, got %s", stg.ExprString(call))
	}
}

func TestTransformUnderSaturatedConstructorUsesWrapper(t *testing.T) {
	prog := transform(t, module(def("main", app(v("cons"), lit(1)))))
	call := body(t, prog, "main").(*stg.App)
	if call.Kind != stg.AppFun || call.Head != "cons" {
		t.Fatalf("expected call of the cons wrapper, got %s %s", call.Kind, stg.ExprString(call))
	}
}

func TestTransformPrimitiveForcesArguments(t *testing.T) {
	prog := transform(t, module(
		def("one", lit(1)),
		def("main", app(v("+"), v("one"), lit(2))),
	))
	cs, ok := body(t, prog, "main").(*stg.Case)
	if !ok {
		t.Fatalf("expected case, got %s", stg.ExprString(body(t, prog, "main")))
	}
	scrut := cs.Scrutinee.(*stg.App)
	if scrut.Head != "one" {
		t.Fatalf("expected to force one, got %s", stg.ExprString(scrut))
	}
	alt, ok := cs.Alts.Default().(*stg.DefaultAlt)
	if !ok || len(cs.Alts) != 1 {
		t.Fatalf("expected a single default alternative")
	}
	prim := alt.Body.(*stg.App)
	if prim.Kind != stg.AppPrim || prim.Head != "+" || prim.Args[0].Var != alt.Var || prim.Args[1].Lit != 2 {
		t.Fatalf("unexpected primitive call %s", stg.ExprString(prim))
	}
}

func TestTransformMatchAlternatives(t *testing.T) {
	term := lam([]string{"n"}, &ast.Match{
		Subject: v("n"),
		Arms: []ast.MatchArm{
			{Pattern: []string{"cons", "x", "xs"}, Body: v("x")},
			{Pattern: []string{"0"}, Body: v("zero")},
			{Pattern: []string{"other"}, Body: v("other")},
		},
	})
	prog := transform(t, module(def("f", term)))
	fn := body(t, prog, "f").(*stg.Let).Bindings[0].Form
	cs := fn.Body.(*stg.Case)
	if len(cs.Alts) != 3 {
		t.Fatalf("expected 3 alternatives, got %d", len(cs.Alts))
	}
	if alt, ok := cs.Alts[0].(*stg.CtorAlt); !ok || alt.Tag != "cons" || len(alt.Vars) != 2 {
		t.Fatalf("expected cons alternative, got %T", cs.Alts[0])
	}
	if alt, ok := cs.Alts[1].(*stg.LitAlt); !ok || alt.Value != 0 {
		t.Fatalf("expected literal alternative, got %T", cs.Alts[1])
	}
	if alt, ok := cs.Alts[2].(*stg.DefaultAlt); !ok || alt.Var != "other" {
		t.Fatalf("expected default alternative, got %T", cs.Alts[2])
	}
	if cs.Alts.ForCtor("nil") != cs.Alts[2] {
		t.Fatalf("expected unmatched constructor to fall back to default")
	}
}

func TestTransformStripsAscriptions(t *testing.T) {
	prog := transform(t, module(def("main", &ast.As{Term: v("true"), Type: "Bool"})))
	call := body(t, prog, "main").(*stg.App)
	if call.Kind != stg.AppCtor || call.Head != "true" {
		t.Fatalf("expected true {}, got %s", stg.ExprString(call))
	}
}

func TestTransformFreshNamesAreUnique(t *testing.T) {
	prog := transform(t, module(
		def("f", lam([]string{"x"}, v("x"))),
		def("g", lam([]string{"x"}, v("x"))),
	))
	a := body(t, prog, "f").(*stg.Let).Bindings[0].Name
	b := body(t, prog, "g").(*stg.Let).Bindings[0].Name
	if a == b {
		t.Fatalf("expected distinct lifted names, both are %s", a)
	}
}

func TestTransformErrors(t *testing.T) {
	cases := []struct {
		name string
		mod  *ast.Module
		want *errorx.Type
	}{
		{"hole", module(def("main", &ast.Hole{ID: 1, Name: "todo"})), ErrNotImplemented},
		{"unbound", module(def("main", v("nope"))), ErrMalformed},
		{"unbound argument", module(def("main", app(v("succ"), v("nope")))), ErrMalformed},
		{"duplicate", module(def("main", lit(1)), def("main", lit(2))), ErrMalformed},
		{"shadows constructor", module(def("nil", lit(1))), ErrMalformed},
		{"bare primitive", module(def("main", v("+"))), ErrMalformed},
		{"duplicate parameter", module(def("main", lam([]string{"x", "x"}, v("x")))), ErrMalformed},
		{"pattern arity", module(def("main", &ast.Match{
			Subject: v("nil"),
			Arms:    []ast.MatchArm{{Pattern: []string{"cons", "x"}, Body: v("x")}},
		})), ErrMalformed},
		{"unknown constructor", module(def("main", &ast.Match{
			Subject: v("nil"),
			Arms:    []ast.MatchArm{{Pattern: []string{"leaf", "x"}, Body: v("x")}},
		})), ErrMalformed},
		{"reserved definition", module(def("gensym_0", lit(1))), ErrMalformed},
		{"reserved parameter", module(
			def("id", lam([]string{"x"}, v("x"))),
			def("main", lam([]string{"gensym_0"}, app(v("succ"), app(v("id"), v("gensym_0"))))),
		), ErrMalformed},
		{"reserved let", module(def("main", &ast.Let{Name: "gensym_1", Value: lit(1), Body: v("gensym_1")})), ErrMalformed},
		{"reserved pattern variable", module(def("main", &ast.Match{
			Subject: v("nil"),
			Arms:    []ast.MatchArm{{Pattern: []string{"cons", "gensym_0", "xs"}, Body: v("xs")}},
		})), ErrMalformed},
		{"nil module", nil, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Transform(tc.mod)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errorx.IsOfType(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}
