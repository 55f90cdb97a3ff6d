package compiler

import (
	"github.com/xirelogy/go-quail/internal/ast"
	_ "github.com/xirelogy/go-quail/internal/builtins"
	"github.com/xirelogy/go-quail/internal/runtime"
	"github.com/xirelogy/go-quail/internal/stg"
)

// primitiveName reports whether a term names a primitive not shadowed by a
// local binding.
func primitiveName(t ast.Term, sc *scope) (string, bool) {
	v, ok := t.(*ast.Var)
	if !ok || sc.resolveLocal(v.Name) {
		return "", false
	}
	if runtime.IsPrimitive(v.Name) {
		return v.Name, true
	}
	return "", false
}

// constructorName reports whether a term names a constructor not shadowed
// by a local binding.
func constructorName(t ast.Term, sc *scope) (ast.Constructor, bool) {
	v, ok := t.(*ast.Var)
	if !ok || sc.resolveLocal(v.Name) {
		return ast.Constructor{}, false
	}
	return ast.LookupConstructor(v.Name)
}

// constructorBindings returns a wrapper binding for each constructor so that
// constructors can be passed around and partially applied like functions.
func constructorBindings() []stg.Binding {
	out := make([]stg.Binding, 0, len(ast.Constructors))
	for _, c := range ast.Constructors {
		out = append(out, stg.Binding{
			Name: c.Name,
			Form: &stg.LambdaForm{
				Updatable: false,
				Params:    append([]string(nil), c.Fields...),
				Body: &stg.App{
					Kind: stg.AppCtor,
					Head: c.Name,
					Args: stg.VarAtoms(c.Fields...),
				},
			},
		})
	}
	return out
}
