package vm

import (
	"fmt"

	_ "github.com/xirelogy/go-quail/internal/builtins"
	"github.com/xirelogy/go-quail/internal/runtime"
	"github.com/xirelogy/go-quail/internal/stg"
)

// ErrInvalidProgram is returned by New for programs the machine cannot load.
var ErrInvalidProgram = Errors.NewType("invalid_program", FatalInvariant)

// Machine is a lazy graph-reduction machine over an STG program. It is not
// safe for concurrent use.
type Machine struct {
	instr   Instr
	args    []Value // top of stack is the last element
	rets    []Continuation
	upds    []UpdateFrame
	heap    *Heap
	globals map[stg.Var]Addr
	names   []stg.Var

	result    Instr
	err       error
	traceHook TraceHook
	stepLimit int
	stats     Stats
}

// New allocates every top-level binding of prog. When entry is non-empty the
// machine is primed to evaluate that binding; otherwise it starts halted and
// is driven through Apply or Seq.
func New(prog *stg.Program, entry string) (*Machine, error) {
	if prog == nil {
		return nil, ErrInvalidProgram.New("nil program")
	}
	m := &Machine{
		heap:    NewHeap(),
		globals: make(map[stg.Var]Addr, len(prog.Bindings)),
		names:   make([]stg.Var, 0, len(prog.Bindings)),
		stats:   Stats{PrimCalls: make(map[string]int)},
	}
	for _, b := range prog.Bindings {
		if b.Form == nil {
			return nil, ErrInvalidProgram.New("binding %s has no lambda form", b.Name)
		}
		if _, dup := m.globals[b.Name]; dup {
			return nil, ErrInvalidProgram.New("duplicate top-level binding %s", b.Name)
		}
		if len(b.Form.Captured) > 0 {
			return nil, ErrInvalidProgram.New("top-level binding %s captures %v", b.Name, b.Form.Captured)
		}
		if b.Form.Updatable && b.Form.Arity() > 0 {
			return nil, ErrInvalidProgram.New("top-level binding %s is updatable but takes parameters", b.Name)
		}
		m.globals[b.Name] = m.alloc(Closure{Form: b.Form})
		m.names = append(m.names, b.Name)
	}
	if entry != "" {
		if _, ok := m.globals[entry]; !ok {
			return nil, ErrUnboundVariable.New("entry point %s is not defined", entry)
		}
		m.instr = &Eval{Expr: &stg.App{Kind: stg.AppFun, Head: entry}}
	}
	return m, nil
}

// Halted reports whether the instruction register is empty.
func (m *Machine) Halted() bool { return m.instr == nil }

// Instr returns the current instruction, or nil when halted.
func (m *Machine) Instr() Instr { return m.instr }

// Result returns the instruction the machine halted on: a *ReturnCtor, a
// *ReturnInt, or an *Enter of a function or partial application. It is nil
// while the machine is running or after a fatal error.
func (m *Machine) Result() Instr { return m.result }

// Err returns the fatal error that halted the machine, if any.
func (m *Machine) Err() error { return m.err }

// Heap exposes the machine's heap for inspection.
func (m *Machine) Heap() *Heap { return m.heap }

// Depths reports the sizes of the argument, return and update stacks.
func (m *Machine) Depths() (args, rets, upds int) {
	return len(m.args), len(m.rets), len(m.upds)
}

// GlobalAddr returns the heap address of a top-level binding.
func (m *Machine) GlobalAddr(name stg.Var) (Addr, bool) {
	a, ok := m.globals[name]
	return a, ok
}

// Globals lists top-level binding names in program order.
func (m *Machine) Globals() []stg.Var {
	return append([]stg.Var(nil), m.names...)
}

// Step performs exactly one transition. Stepping a halted machine is a no-op
// unless it halted on a fatal error, which is returned again.
func (m *Machine) Step() error {
	if m.err != nil {
		return m.err
	}
	if m.instr == nil {
		return nil
	}
	m.trace()
	m.stats.Steps++

	instr := m.instr
	var err error
	switch in := instr.(type) {
	case *Eval:
		err = m.stepEval(in)
	case *Enter:
		err = m.stepEnter(in)
	case *ReturnCtor:
		err = m.stepReturnCtor(in)
	case *ReturnInt:
		err = m.stepReturnInt(in)
	default:
		err = ErrInternal.New("unknown instruction %T", instr)
	}
	if err != nil {
		return m.fail(instr, err)
	}
	return nil
}

func (m *Machine) halt(result Instr) {
	m.result = result
	m.instr = nil
}

func (m *Machine) alloc(c Closure) Addr {
	m.stats.Allocations++
	return m.heap.Alloc(c)
}

func (m *Machine) lookupVar(name stg.Var, env Context) (Value, error) {
	if v, ok := env.Lookup(name); ok {
		return v, nil
	}
	if a, ok := m.globals[name]; ok {
		return AddrVal(a), nil
	}
	return Value{}, ErrUnboundVariable.New("unbound variable %s", name)
}

func (m *Machine) atoms(args []stg.Atom, env Context) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		if a.IsLit {
			out[i] = IntVal(a.Lit)
			continue
		}
		v, err := m.lookupVar(a.Var, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *Machine) stepEval(in *Eval) error {
	switch e := in.Expr.(type) {
	case *stg.App:
		return m.evalApp(e, in.Env)
	case *stg.Let:
		return m.evalLet(e, in.Env)
	case *stg.Case:
		m.rets = append(m.rets, Continuation{Alts: e.Alts, Env: in.Env})
		m.instr = &Eval{Expr: e.Scrutinee, Env: in.Env}
		return nil
	case *stg.Lit:
		m.instr = &ReturnInt{Value: e.Value}
		return nil
	case nil:
		return ErrInternal.New("evaluating a nil expression")
	default:
		return ErrInternal.New("unknown expression %T", in.Expr)
	}
}

func (m *Machine) evalApp(app *stg.App, env Context) error {
	switch app.Kind {
	case stg.AppFun:
		f, err := m.lookupVar(app.Head, env)
		if err != nil {
			return err
		}
		if f.Kind == KindInt {
			if len(app.Args) > 0 {
				return ErrStackDiscipline.New("integer %s applied to %d arguments", app.Head, len(app.Args))
			}
			m.instr = &ReturnInt{Value: f.Int}
			return nil
		}
		vals, err := m.atoms(app.Args, env)
		if err != nil {
			return err
		}
		for i := len(vals) - 1; i >= 0; i-- {
			m.args = append(m.args, vals[i])
		}
		m.instr = &Enter{Addr: f.Addr}
		return nil

	case stg.AppCtor:
		vals, err := m.atoms(app.Args, env)
		if err != nil {
			return err
		}
		m.instr = &ReturnCtor{Tag: app.Head, Values: vals}
		return nil

	case stg.AppPrim:
		spec, ok := runtime.LookupByName(app.Head)
		if !ok {
			return ErrUnknownPrimitive.New("unknown primitive %s", app.Head)
		}
		vals, err := m.atoms(app.Args, env)
		if err != nil {
			return err
		}
		if len(vals) != spec.Arity {
			return ErrPrimitiveArgument.New("primitive %s takes %d arguments, got %d", spec.Name, spec.Arity, len(vals))
		}
		ints := make([]int64, len(vals))
		for i, v := range vals {
			if v.Kind != KindInt {
				return ErrPrimitiveArgument.New("argument %d of primitive %s is %s, not an integer", i, spec.Name, v)
			}
			ints[i] = v.Int
		}
		m.stats.PrimCalls[spec.Name]++
		m.instr = &ReturnInt{Value: spec.Fn(ints)}
		return nil

	default:
		return ErrInternal.New("unknown application kind %s", app.Kind)
	}
}

// evalLet allocates every binding first and patches captured values in a
// second pass, so recursive bindings can refer to their siblings.
func (m *Machine) evalLet(let *stg.Let, env Context) error {
	names := make([]stg.Var, len(let.Bindings))
	addrs := make([]Addr, len(let.Bindings))
	vals := make([]Value, len(let.Bindings))
	for i, b := range let.Bindings {
		if b.Form == nil {
			return ErrInternal.New("let binding %s has no lambda form", b.Name)
		}
		names[i] = b.Name
		addrs[i] = m.alloc(Closure{Form: b.Form})
		vals[i] = AddrVal(addrs[i])
	}
	inner, err := env.Extend(names, vals)
	if err != nil {
		return err
	}
	scope := env
	if let.Recursive {
		scope = inner
	}
	for i, b := range let.Bindings {
		captured := make([]Value, len(b.Form.Captured))
		for j, v := range b.Form.Captured {
			val, err := m.lookupVar(v, scope)
			if err != nil {
				return err
			}
			captured[j] = val
		}
		cl, err := m.heap.LookupMut(addrs[i])
		if err != nil {
			return err
		}
		cl.Values = captured
	}
	m.instr = &Eval{Expr: let.Body, Env: inner}
	return nil
}

func (m *Machine) stepEnter(in *Enter) error {
	cl, err := m.heap.Lookup(in.Addr)
	if err != nil {
		return err
	}
	if cl.Form == nil {
		return ErrInternal.New("closure at @%d has no lambda form", in.Addr)
	}
	env, err := cl.Env()
	if err != nil {
		return err
	}

	if cl.Form.Updatable {
		if cl.Form.Arity() > 0 {
			return ErrStackDiscipline.New("updatable closure at @%d takes %d parameters", in.Addr, cl.Form.Arity())
		}
		m.upds = append(m.upds, UpdateFrame{Args: m.args, Returns: m.rets, Target: in.Addr})
		m.args = nil
		m.rets = nil
		m.instr = &Eval{Expr: cl.Form.Body, Env: env}
		return nil
	}

	arity := cl.Form.Arity()
	if len(m.args) >= arity {
		popped := make([]Value, arity)
		for i := range popped {
			popped[i] = m.args[len(m.args)-1-i]
		}
		m.args = m.args[:len(m.args)-arity]
		body, err := env.Extend(cl.Form.Params, popped)
		if err != nil {
			return err
		}
		m.instr = &Eval{Expr: cl.Form.Body, Env: body}
		return nil
	}

	return m.underSaturated(in, cl)
}

// underSaturated handles entering a function with fewer arguments than its
// arity. Inside a thunk the thunk becomes the partial application and the
// caller's stacks are restored; at the outermost level the partial
// application is the final answer.
func (m *Machine) underSaturated(in *Enter, cl Closure) error {
	if len(m.rets) > 0 {
		return ErrStackDiscipline.New("function at @%d under-applied with %d pending continuations", in.Addr, len(m.rets))
	}
	supplied := make([]Value, len(m.args))
	for i := range supplied {
		supplied[i] = m.args[len(m.args)-1-i]
	}
	pap := partialApplication(cl, supplied)

	if len(m.upds) == 0 {
		if len(supplied) == 0 {
			m.halt(in)
			return nil
		}
		m.args = nil
		m.halt(&Enter{Addr: m.alloc(pap)})
		return nil
	}

	frame := m.upds[len(m.upds)-1]
	m.upds = m.upds[:len(m.upds)-1]
	if err := m.heap.Overwrite(frame.Target, pap); err != nil {
		return err
	}
	m.stats.Updates++
	m.args = append(append(make([]Value, 0, len(frame.Args)+len(m.args)), frame.Args...), m.args...)
	m.rets = frame.Returns
	return nil
}

func partialApplication(cl Closure, supplied []Value) Closure {
	n := len(supplied)
	form := cl.Form
	captured := make([]stg.Var, 0, len(form.Captured)+n)
	captured = append(append(captured, form.Captured...), form.Params[:n]...)
	values := make([]Value, 0, len(cl.Values)+n)
	values = append(append(values, cl.Values...), supplied...)
	return Closure{
		Form: &stg.LambdaForm{
			Captured: captured,
			Params:   append([]stg.Var(nil), form.Params[n:]...),
			Body:     form.Body,
		},
		Values: values,
	}
}

func (m *Machine) stepReturnCtor(in *ReturnCtor) error {
	if len(m.rets) > 0 {
		k := m.popContinuation()
		switch alt := k.Alts.ForCtor(in.Tag).(type) {
		case *stg.CtorAlt:
			env, err := k.Env.Extend(alt.Vars, in.Values)
			if err != nil {
				return ErrStackDiscipline.New("pattern %s binds %d fields, constructor returned %d", alt.Tag, len(alt.Vars), len(in.Values))
			}
			m.instr = &Eval{Expr: alt.Body, Env: env}
		case *stg.DefaultAlt:
			a := m.alloc(ctorClosure(in.Tag, in.Values))
			env, err := k.Env.Extend([]stg.Var{alt.Var}, []Value{AddrVal(a)})
			if err != nil {
				return err
			}
			m.instr = &Eval{Expr: alt.Body, Env: env}
		default:
			return ErrNonExhaustiveMatch.New("no alternative for constructor %s", in.Tag)
		}
		return nil
	}
	if len(m.args) > 0 {
		return ErrStackDiscipline.New("constructor %s returned with %d pending arguments", in.Tag, len(m.args))
	}
	if len(m.upds) > 0 {
		return m.update(ctorClosure(in.Tag, in.Values))
	}
	m.halt(in)
	return nil
}

func (m *Machine) stepReturnInt(in *ReturnInt) error {
	if len(m.rets) > 0 {
		k := m.popContinuation()
		switch alt := k.Alts.ForInt(in.Value).(type) {
		case *stg.LitAlt:
			m.instr = &Eval{Expr: alt.Body, Env: k.Env}
		case *stg.DefaultAlt:
			env, err := k.Env.Extend([]stg.Var{alt.Var}, []Value{IntVal(in.Value)})
			if err != nil {
				return err
			}
			m.instr = &Eval{Expr: alt.Body, Env: env}
		default:
			return ErrNonExhaustiveMatch.New("no alternative for integer %d", in.Value)
		}
		return nil
	}
	if len(m.args) > 0 {
		return ErrStackDiscipline.New("integer %d returned with %d pending arguments", in.Value, len(m.args))
	}
	if len(m.upds) > 0 {
		return m.update(intClosure(in.Value))
	}
	m.halt(in)
	return nil
}

func (m *Machine) popContinuation() Continuation {
	k := m.rets[len(m.rets)-1]
	m.rets = m.rets[:len(m.rets)-1]
	return k
}

// update pops the innermost update frame, overwrites its thunk with the
// value closure and restores the caller's stacks. The instruction register is
// left alone so the return is replayed against the caller.
func (m *Machine) update(value Closure) error {
	frame := m.upds[len(m.upds)-1]
	m.upds = m.upds[:len(m.upds)-1]
	if err := m.heap.Overwrite(frame.Target, value); err != nil {
		return err
	}
	m.stats.Updates++
	m.args = frame.Args
	m.rets = frame.Returns
	return nil
}

// ctorClosure builds {v0, v1, ...} \n {} -> tag {v0, v1, ...}.
func ctorClosure(tag stg.Ctor, values []Value) Closure {
	names := make([]stg.Var, len(values))
	for i := range values {
		names[i] = fmt.Sprintf("v%d", i)
	}
	return Closure{
		Form: &stg.LambdaForm{
			Captured: names,
			Body:     &stg.App{Kind: stg.AppCtor, Head: tag, Args: stg.VarAtoms(names...)},
		},
		Values: append([]Value(nil), values...),
	}
}

// intClosure builds {} \n {} -> k.
func intClosure(k int64) Closure {
	return Closure{Form: &stg.LambdaForm{Body: &stg.Lit{Value: k}}}
}
