package stg

// Var names a local or global binding.
type Var = string

// Ctor names a data constructor.
type Ctor = string

// Program is the lowered form of a module: an ordered set of top-level
// bindings. Order fixes the initial heap layout.
type Program struct {
	Bindings []Binding
}

// Lookup returns the binding with the given name.
func (p *Program) Lookup(name Var) (Binding, bool) {
	if p == nil {
		return Binding{}, false
	}
	for _, b := range p.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Binding attaches a name to a closure template.
type Binding struct {
	Name Var
	Form *LambdaForm
}

// LambdaForm is a closure template: the free variables it captures, whether
// entering it with no arguments should memoize the result, its formal
// parameters and its body.
type LambdaForm struct {
	Captured  []Var
	Updatable bool
	Params    []Var
	Body      Expr
}

// Arity is the number of formal parameters.
func (lf *LambdaForm) Arity() int { return len(lf.Params) }

// Expr is one of *Let, *Case, *App or *Lit.
type Expr interface {
	exprNode()
}

// Let allocates one closure per binding before evaluating Body.
type Let struct {
	Recursive bool
	Bindings  []Binding
	Body      Expr
}

// Case evaluates Scrutinee and continues with the matching alternative.
type Case struct {
	Scrutinee Expr
	Alts      Alts
}

// AppKind says how the head of an application is resolved.
type AppKind int

const (
	AppFun AppKind = iota
	AppCtor
	AppPrim
)

func (k AppKind) String() string {
	switch k {
	case AppFun:
		return "fun"
	case AppCtor:
		return "ctor"
	case AppPrim:
		return "prim"
	default:
		return "unknown"
	}
}

// App applies a function, constructor or primitive to atoms.
type App struct {
	Kind AppKind
	Head Var
	Args []Atom
}

// Lit is an unboxed integer literal.
type Lit struct {
	Value int64
}

func (*Let) exprNode()  {}
func (*Case) exprNode() {}
func (*App) exprNode()  {}
func (*Lit) exprNode()  {}

// Atom is an application argument: a variable or an integer literal.
type Atom struct {
	Var   Var
	Lit   int64
	IsLit bool
}

// VarAtom builds a variable atom.
func VarAtom(name Var) Atom { return Atom{Var: name} }

// LitAtom builds a literal atom.
func LitAtom(k int64) Atom { return Atom{Lit: k, IsLit: true} }

// VarAtoms builds a variable atom for each name.
func VarAtoms(names ...Var) []Atom {
	out := make([]Atom, len(names))
	for i, n := range names {
		out[i] = VarAtom(n)
	}
	return out
}

// Alt is one of *CtorAlt, *LitAlt or *DefaultAlt.
type Alt interface {
	altNode()
	AltBody() Expr
}

// CtorAlt matches a constructor tag and binds its fields positionally.
type CtorAlt struct {
	Tag  Ctor
	Vars []Var
	Body Expr
}

// LitAlt matches an integer.
type LitAlt struct {
	Value int64
	Body  Expr
}

// DefaultAlt matches anything and binds the scrutinee's value to Var.
type DefaultAlt struct {
	Var  Var
	Body Expr
}

func (*CtorAlt) altNode()    {}
func (*LitAlt) altNode()     {}
func (*DefaultAlt) altNode() {}

func (a *CtorAlt) AltBody() Expr    { return a.Body }
func (a *LitAlt) AltBody() Expr     { return a.Body }
func (a *DefaultAlt) AltBody() Expr { return a.Body }

// Alts is an ordered list of case alternatives.
type Alts []Alt

// ForCtor finds the alternative for a constructor tag, falling back to the
// default. It returns nil when nothing matches.
func (as Alts) ForCtor(tag Ctor) Alt {
	for _, a := range as {
		if c, ok := a.(*CtorAlt); ok && c.Tag == tag {
			return c
		}
	}
	return as.Default()
}

// ForInt finds the alternative for an integer, falling back to the default.
func (as Alts) ForInt(k int64) Alt {
	for _, a := range as {
		if l, ok := a.(*LitAlt); ok && l.Value == k {
			return l
		}
	}
	return as.Default()
}

// Default returns the first default alternative, or nil.
func (as Alts) Default() Alt {
	for _, a := range as {
		if d, ok := a.(*DefaultAlt); ok {
			return d
		}
	}
	return nil
}
