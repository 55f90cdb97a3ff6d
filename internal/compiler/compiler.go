package compiler

import (
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/samber/lo"

	"github.com/xirelogy/go-quail/internal/ast"
	"github.com/xirelogy/go-quail/internal/stg"
	"github.com/xirelogy/go-quail/internal/token"
)

// Transform lowers a checked source module into an STG program. Every
// definition becomes an updatable top-level binding, followed by one wrapper
// binding per constructor.
func Transform(mod *ast.Module) (*stg.Program, error) {
	if mod == nil {
		return nil, ErrMalformed.New("nil module")
	}
	c := &compiler{globals: make(map[string]bool, len(mod.Definitions))}
	for _, def := range mod.Definitions {
		if c.globals[def.Name] {
			return nil, c.malformed(def.NamePos, "duplicate definition %s", def.Name)
		}
		if ast.IsConstructor(def.Name) {
			return nil, c.malformed(def.NamePos, "definition %s shadows a constructor", def.Name)
		}
		if err := c.binder(def.NamePos, def.Name); err != nil {
			return nil, err
		}
		c.globals[def.Name] = true
	}

	prog := &stg.Program{}
	for _, def := range mod.Definitions {
		body, err := c.lower(def.Term, newScope(nil))
		if err != nil {
			return nil, errorx.Decorate(err, "in definition %s", def.Name)
		}
		prog.Bindings = append(prog.Bindings, stg.Binding{
			Name: def.Name,
			Form: &stg.LambdaForm{Updatable: true, Body: body},
		})
	}
	prog.Bindings = append(prog.Bindings, constructorBindings()...)
	return prog, nil
}

// freshPrefix is reserved for temporaries; source binders may not use it.
const freshPrefix = "gensym_"

type compiler struct {
	globals map[string]bool
	gensym  int
}

// fresh returns a name that cannot clash with source names or earlier
// temporaries of the same program.
func (c *compiler) fresh() string {
	name := fmt.Sprintf("%s%d", freshPrefix, c.gensym)
	c.gensym++
	return name
}

// binder rejects source names that could capture a temporary.
func (c *compiler) binder(pos token.Position, names ...string) error {
	for _, name := range names {
		if strings.HasPrefix(name, freshPrefix) {
			return c.malformed(pos, "name %s uses the reserved prefix %s", name, freshPrefix)
		}
	}
	return nil
}

// captures lists the free variables of t that refer to enclosing local
// bindings. Globals and constructors are resolved through the global
// environment at run time and are never captured.
func (c *compiler) captures(t ast.Term, sc *scope) []string {
	return lo.Filter(ast.FreeVars(t), func(name string, _ int) bool {
		return sc.resolveLocal(name)
	})
}

func (c *compiler) malformed(pos token.Position, format string, args ...any) error {
	return ErrMalformed.New(format, args...).WithProperty(PropertyPosition, pos)
}

func (c *compiler) lower(t ast.Term, sc *scope) (stg.Expr, error) {
	switch n := t.(type) {
	case *ast.Var:
		return c.lowerVar(n, sc)
	case *ast.IntLit:
		return &stg.Lit{Value: n.Value}, nil
	case *ast.As:
		return c.lower(n.Term, sc)
	case *ast.Hole:
		return nil, ErrNotImplemented.New("hole %q cannot be lowered", n.Name).WithProperty(PropertyPosition, n.PosT)
	case *ast.Lam:
		return c.lowerLam(n, sc)
	case *ast.App:
		return c.lowerApp(n, sc)
	case *ast.Let:
		return c.lowerLet(n, sc)
	case *ast.Match:
		return c.lowerMatch(n, sc)
	case nil:
		return nil, ErrMalformed.New("missing term")
	default:
		return nil, ErrNotImplemented.New("unsupported term %T", t)
	}
}

func (c *compiler) lowerVar(v *ast.Var, sc *scope) (stg.Expr, error) {
	if sc.resolveLocal(v.Name) {
		return &stg.App{Kind: stg.AppFun, Head: v.Name}, nil
	}
	if ctor, ok := ast.LookupConstructor(v.Name); ok {
		if ctor.Arity() == 0 {
			return &stg.App{Kind: stg.AppCtor, Head: v.Name}, nil
		}
		// the wrapper binding keeps a bare constructor from being returned
		// unsaturated
		return &stg.App{Kind: stg.AppFun, Head: v.Name}, nil
	}
	if _, ok := primitiveName(v, sc); ok {
		return nil, c.malformed(v.PosT, "primitive %s must be applied", v.Name)
	}
	if !c.globals[v.Name] {
		return nil, c.malformed(v.PosT, "unbound variable %s", v.Name)
	}
	return &stg.App{Kind: stg.AppFun, Head: v.Name}, nil
}

// lowerLam lambda-lifts a (possibly nested) abstraction into a
// non-updatable closure bound by a fresh let.
func (c *compiler) lowerLam(lam *ast.Lam, sc *scope) (stg.Expr, error) {
	params := []string{lam.Param}
	body := lam.Body
	for {
		inner, ok := body.(*ast.Lam)
		if !ok {
			break
		}
		params = append(params, inner.Param)
		body = inner.Body
	}
	if dup := lo.FindDuplicates(params); len(dup) > 0 {
		return nil, c.malformed(lam.PosT, "duplicate parameter %s", dup[0])
	}
	if err := c.binder(lam.PosT, params...); err != nil {
		return nil, err
	}

	captured := c.captures(lam, sc)
	lowered, err := c.lower(body, sc.with(params...))
	if err != nil {
		return nil, err
	}
	name := c.fresh()
	return &stg.Let{
		Bindings: []stg.Binding{{
			Name: name,
			Form: &stg.LambdaForm{
				Captured:  captured,
				Updatable: false,
				Params:    params,
				Body:      lowered,
			},
		}},
		Body: &stg.App{Kind: stg.AppFun, Head: name},
	}, nil
}

func (c *compiler) lowerLet(let *ast.Let, sc *scope) (stg.Expr, error) {
	if err := c.binder(let.PosT, let.Name); err != nil {
		return nil, err
	}
	value, err := c.lower(let.Value, sc)
	if err != nil {
		return nil, err
	}
	body, err := c.lower(let.Body, sc.with(let.Name))
	if err != nil {
		return nil, err
	}
	return &stg.Let{
		Bindings: []stg.Binding{{
			Name: let.Name,
			Form: &stg.LambdaForm{
				Captured:  c.captures(let.Value, sc),
				Updatable: true,
				Body:      value,
			},
		}},
		Body: body,
	}, nil
}

// thunk hoists a non-atomic term into an updatable binding.
func (c *compiler) thunk(t ast.Term, sc *scope) (stg.Binding, error) {
	body, err := c.lower(t, sc)
	if err != nil {
		return stg.Binding{}, err
	}
	return stg.Binding{
		Name: c.fresh(),
		Form: &stg.LambdaForm{
			Captured:  c.captures(t, sc),
			Updatable: true,
			Body:      body,
		},
	}, nil
}

// lowerApp flattens an application into administrative normal form: every
// head and argument that is not already atomic is bound first.
func (c *compiler) lowerApp(app *ast.App, sc *scope) (stg.Expr, error) {
	head, args := flattenApp(app)

	if prim, ok := primitiveName(stripAs(head), sc); ok {
		return c.lowerPrimApp(prim, args, sc)
	}

	var temps []stg.Binding
	kind := stg.AppFun
	var headName string
	switch h := stripAs(head).(type) {
	case *ast.Var:
		if !sc.resolveLocal(h.Name) && !ast.IsConstructor(h.Name) && !c.globals[h.Name] {
			return nil, c.malformed(h.PosT, "unbound variable %s", h.Name)
		}
		headName = h.Name
		if ctor, ok := constructorName(h, sc); ok && ctor.Arity() == len(args) {
			kind = stg.AppCtor
		}
	default:
		b, err := c.thunk(head, sc)
		if err != nil {
			return nil, err
		}
		temps = append(temps, b)
		headName = b.Name
	}

	atoms := make([]stg.Atom, 0, len(args))
	for _, arg := range args {
		switch a := stripAs(arg).(type) {
		case *ast.IntLit:
			atoms = append(atoms, stg.LitAtom(a.Value))
			continue
		case *ast.Var:
			if _, isPrim := primitiveName(a, sc); !isPrim {
				if !sc.resolveLocal(a.Name) && !ast.IsConstructor(a.Name) && !c.globals[a.Name] {
					return nil, c.malformed(a.PosT, "unbound variable %s", a.Name)
				}
				atoms = append(atoms, stg.VarAtom(a.Name))
				continue
			}
			return nil, c.malformed(a.PosT, "primitive %s must be applied", a.Name)
		}
		b, err := c.thunk(arg, sc)
		if err != nil {
			return nil, err
		}
		temps = append(temps, b)
		atoms = append(atoms, stg.VarAtom(b.Name))
	}

	call := &stg.App{Kind: kind, Head: headName, Args: atoms}
	if len(temps) == 0 {
		return call, nil
	}
	return &stg.Let{Bindings: temps, Body: call}, nil
}

// lowerPrimApp evaluates each argument to an unboxed integer through a case
// with a binding default before handing them to the primitive.
func (c *compiler) lowerPrimApp(prim string, args []ast.Term, sc *scope) (stg.Expr, error) {
	atoms := make([]stg.Atom, len(args))
	scrutinees := make([]stg.Expr, len(args))
	for i, arg := range args {
		if lit, ok := stripAs(arg).(*ast.IntLit); ok {
			atoms[i] = stg.LitAtom(lit.Value)
			continue
		}
		e, err := c.lower(arg, sc)
		if err != nil {
			return nil, err
		}
		scrutinees[i] = e
		atoms[i] = stg.VarAtom(c.fresh())
	}

	var out stg.Expr = &stg.App{Kind: stg.AppPrim, Head: prim, Args: atoms}
	for i := len(args) - 1; i >= 0; i-- {
		if scrutinees[i] == nil {
			continue
		}
		out = &stg.Case{
			Scrutinee: scrutinees[i],
			Alts:      stg.Alts{&stg.DefaultAlt{Var: atoms[i].Var, Body: out}},
		}
	}
	return out, nil
}

func (c *compiler) lowerMatch(m *ast.Match, sc *scope) (stg.Expr, error) {
	subject, err := c.lower(m.Subject, sc)
	if err != nil {
		return nil, err
	}
	alts := make(stg.Alts, 0, len(m.Arms))
	for _, arm := range m.Arms {
		if len(arm.Pattern) == 0 {
			return nil, c.malformed(arm.Pos, "empty pattern")
		}
		tag, fields := arm.Pattern[0], arm.Pattern[1:]
		if err := c.binder(arm.Pos, arm.Pattern...); err != nil {
			return nil, err
		}
		if ctor, ok := ast.LookupConstructor(tag); ok {
			if len(fields) != ctor.Arity() {
				return nil, c.malformed(arm.Pos, "pattern %s binds %d fields, constructor has %d", tag, len(fields), ctor.Arity())
			}
			body, err := c.lower(arm.Body, sc.with(fields...))
			if err != nil {
				return nil, err
			}
			alts = append(alts, &stg.CtorAlt{Tag: tag, Vars: append([]string(nil), fields...), Body: body})
			continue
		}
		if len(fields) > 0 {
			return nil, c.malformed(arm.Pos, "unknown constructor %s", tag)
		}
		if k, ok := ast.PatternInt(tag); ok {
			body, err := c.lower(arm.Body, sc)
			if err != nil {
				return nil, err
			}
			alts = append(alts, &stg.LitAlt{Value: k, Body: body})
			continue
		}
		body, err := c.lower(arm.Body, sc.with(tag))
		if err != nil {
			return nil, err
		}
		alts = append(alts, &stg.DefaultAlt{Var: tag, Body: body})
	}
	return &stg.Case{Scrutinee: subject, Alts: alts}, nil
}

// flattenApp turns ((f a) b) into f [a b].
func flattenApp(app *ast.App) (ast.Term, []ast.Term) {
	head := app.Func
	args := app.Args
	for {
		inner, ok := stripAs(head).(*ast.App)
		if !ok {
			return head, args
		}
		head = inner.Func
		args = append(append([]ast.Term(nil), inner.Args...), args...)
	}
}

func stripAs(t ast.Term) ast.Term {
	for {
		as, ok := t.(*ast.As)
		if !ok {
			return t
		}
		t = as.Term
	}
}
