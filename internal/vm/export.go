package vm

import (
	"strconv"
	"strings"

	"github.com/xirelogy/go-quail/internal/stg"
)

// ShapeKind classifies what a heap cell currently holds.
type ShapeKind int

const (
	ShapeThunk ShapeKind = iota
	ShapeData
	ShapeInt
	ShapeFunction
)

// Shape is the host-visible view of a heap cell.
type Shape struct {
	Kind   ShapeKind
	Tag    stg.Ctor
	Int    int64
	Fields []Value
}

// Inspect classifies the closure at addr without forcing it. Only closures
// whose body is a saturated constructor or a literal count as values;
// anything else is reported as a thunk.
func Inspect(m *Machine, addr Addr) (Shape, error) {
	cl, err := m.heap.Lookup(addr)
	if err != nil {
		return Shape{}, err
	}
	switch {
	case cl.Form == nil:
		return Shape{}, ErrInvalidAddress.New("closure at @%d has no lambda form", addr)
	case cl.Form.Arity() > 0:
		return Shape{Kind: ShapeFunction}, nil
	case cl.Form.Updatable:
		return Shape{Kind: ShapeThunk}, nil
	}
	switch body := cl.Form.Body.(type) {
	case *stg.Lit:
		return Shape{Kind: ShapeInt, Int: body.Value}, nil
	case *stg.App:
		if body.Kind != stg.AppCtor {
			break
		}
		env, err := cl.Env()
		if err != nil {
			return Shape{}, err
		}
		fields, err := m.atoms(body.Args, env)
		if err != nil {
			return Shape{}, err
		}
		return Shape{Kind: ShapeData, Tag: body.Head, Fields: fields}, nil
	}
	return Shape{Kind: ShapeThunk}, nil
}

// Render prints the value at addr without forcing anything: constructors as
// "tag f1 f2" with nested constructors parenthesised, integers bare,
// functions as <function> and unevaluated closures as <thunk>. A value that
// contains itself is cut off with "...".
func Render(m *Machine, addr Addr) (string, error) {
	r := renderer{m: m, active: map[Addr]bool{}}
	s, _, err := r.addr(addr)
	return s, err
}

type renderer struct {
	m      *Machine
	active map[Addr]bool
}

// addr renders the closure at a and reports whether the result is atomic,
// i.e. needs no parentheses when used as a field.
func (r *renderer) addr(a Addr) (string, bool, error) {
	if r.active[a] {
		return "...", true, nil
	}
	sh, err := Inspect(r.m, a)
	if err != nil {
		return "", false, err
	}
	switch sh.Kind {
	case ShapeFunction:
		return "<function>", true, nil
	case ShapeInt:
		return strconv.FormatInt(sh.Int, 10), true, nil
	case ShapeData:
		if len(sh.Fields) == 0 {
			return sh.Tag, true, nil
		}
	default:
		return "<thunk>", true, nil
	}

	r.active[a] = true
	defer delete(r.active, a)
	parts := []string{sh.Tag}
	for _, f := range sh.Fields {
		if f.Kind == KindInt {
			parts = append(parts, strconv.FormatInt(f.Int, 10))
			continue
		}
		s, atomic, err := r.addr(f.Addr)
		if err != nil {
			return "", false, err
		}
		if !atomic {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "), false, nil
}
