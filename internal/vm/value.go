package vm

import (
	"fmt"
	"strings"

	"github.com/xirelogy/go-quail/internal/stg"
)

// Addr is an opaque handle into the heap. Addresses are never reused.
type Addr int

type Kind int

const (
	KindAddr Kind = iota
	KindInt
)

// Value is either a heap address or an unboxed integer.
type Value struct {
	Kind Kind
	Addr Addr
	Int  int64
}

func AddrVal(a Addr) Value {
	return Value{Kind: KindAddr, Addr: a}
}
func IntVal(k int64) Value {
	return Value{Kind: KindInt, Int: k}
}

func (v Value) String() string {
	if v.Kind == KindInt {
		return fmt.Sprintf("%d", v.Int)
	}
	return fmt.Sprintf("@%d", v.Addr)
}

// Closure is a lambda form paired with the values of its captured
// variables. len(Values) == len(Form.Captured) once the closure is patched.
type Closure struct {
	Form   *stg.LambdaForm
	Values []Value
}

// Updatable reports whether entering the closure memoizes its result.
func (c *Closure) Updatable() bool {
	return c.Form != nil && c.Form.Updatable
}

// Env rebuilds the local environment the closure's body runs in.
func (c *Closure) Env() (Context, error) {
	return NewContext(c.Form.Captured, c.Values)
}

func (c *Closure) String() string {
	vals := make([]string, len(c.Values))
	for i, v := range c.Values {
		vals[i] = v.String()
	}
	return fmt.Sprintf("%s -> %s [%s]", stg.FormHeader(c.Form), stg.ExprString(c.Form.Body), strings.Join(vals, ", "))
}

type binding struct {
	name  stg.Var
	value Value
}

// Context is a local environment. Lookups scan from the most recent binding,
// so extending a context shadows earlier bindings without removing them.
// Contexts are immutable; Extend always copies.
type Context struct {
	bindings []binding
}

// NewContext binds names to values positionally.
func NewContext(names []stg.Var, values []Value) (Context, error) {
	return Context{}.Extend(names, values)
}

// Extend returns a new context with names bound to values.
func (c Context) Extend(names []stg.Var, values []Value) (Context, error) {
	if len(names) != len(values) {
		return Context{}, ErrStackDiscipline.New("binding %d names to %d values", len(names), len(values))
	}
	out := make([]binding, len(c.bindings), len(c.bindings)+len(names))
	copy(out, c.bindings)
	for i, n := range names {
		out = append(out, binding{name: n, value: values[i]})
	}
	return Context{bindings: out}, nil
}

// Lookup finds the most recent binding for name.
func (c Context) Lookup(name stg.Var) (Value, bool) {
	for i := len(c.bindings) - 1; i >= 0; i-- {
		if c.bindings[i].name == name {
			return c.bindings[i].value, true
		}
	}
	return Value{}, false
}

// Len reports the number of bindings, shadowed ones included.
func (c Context) Len() int { return len(c.bindings) }

func (c Context) String() string {
	parts := make([]string, len(c.bindings))
	for i, b := range c.bindings {
		parts[i] = b.name + "=" + b.value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Continuation is a suspended set of case alternatives awaiting the
// scrutinee's value.
type Continuation struct {
	Alts stg.Alts
	Env  Context
}

// UpdateFrame records the caller's stacks while a thunk at Target is forced.
type UpdateFrame struct {
	Args    []Value
	Returns []Continuation
	Target  Addr
}
