// Package quail runs lazy functional programs on an STG graph-reduction
// machine. Programs are loaded from YAML modules, lowered to STG and
// evaluated on demand within a Session.
package quail

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/joomcode/errorx"

	"github.com/xirelogy/go-quail/internal/ast"
	"github.com/xirelogy/go-quail/internal/compiler"
	"github.com/xirelogy/go-quail/internal/loader"
	"github.com/xirelogy/go-quail/internal/stg"
	"github.com/xirelogy/go-quail/internal/vm"
)

var (
	// Errors is the namespace of errors raised by the facade itself.
	Errors = errorx.NewNamespace("quail")

	// ErrBusy is returned when a session is asked to run while it is
	// already running.
	ErrBusy = Errors.NewType("busy")

	// ErrUnknownGlobal is returned for names the program does not define.
	ErrUnknownGlobal = Errors.NewType("unknown_global")

	// ErrNotStepping is returned by Step when no evaluation was begun with
	// Start.
	ErrNotStepping = Errors.NewType("not_stepping")
)

// IsFatal reports whether err aborted evaluation. A session that returned a
// fatal error cannot evaluate anything further.
func IsFatal(err error) bool {
	return errorx.HasTrait(err, vm.FatalInvariant)
}

// IsStepLimit reports whether err is the step limit being reached.
func IsStepLimit(err error) bool {
	return errorx.IsOfType(err, vm.ErrStepLimit)
}

// Program is a lowered module ready to be run by any number of sessions.
type Program struct {
	Name   string
	module *ast.Module
	prog   *stg.Program
}

// LoadFile reads and lowers a YAML module from disk.
func LoadFile(path string) (*Program, error) {
	mod, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return compile(mod)
}

// Compile reads and lowers a YAML module from r. The name is used when the
// document does not name its module.
func Compile(name string, r io.Reader) (*Program, error) {
	mod, err := loader.Load(r, name)
	if err != nil {
		return nil, err
	}
	return compile(mod)
}

// CompileSource is Compile for in-memory source text.
func CompileSource(name, src string) (*Program, error) {
	return Compile(name, strings.NewReader(src))
}

func compile(mod *ast.Module) (*Program, error) {
	prog, err := compiler.Transform(mod)
	if err != nil {
		return nil, errorx.Decorate(err, "lower module %s", mod.Name)
	}
	return &Program{Name: mod.Name, module: mod, prog: prog}, nil
}

// Definitions lists the module's own definitions in source order.
func (p *Program) Definitions() []string {
	return p.module.Globals()
}

// Type returns the declared type of a definition, if one was given.
func (p *Program) Type(name string) (string, bool) {
	d, ok := p.module.Definition(name)
	if !ok || d.Type == "" {
		return "", false
	}
	return d.Type, true
}

// Dump writes the lowered STG program.
func (p *Program) Dump(w io.Writer) error {
	return stg.Print(w, p.prog)
}

// ValueKind mirrors the shapes a heap value can take.
type ValueKind int

const (
	ValueThunk ValueKind = iota
	ValueData
	ValueInt
	ValueFunction
	// ValueCycle marks a field that refers back to an enclosing value.
	ValueCycle
)

func (k ValueKind) String() string {
	switch k {
	case ValueThunk:
		return "thunk"
	case ValueData:
		return "data"
	case ValueInt:
		return "int"
	case ValueFunction:
		return "function"
	case ValueCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Value is a snapshot of an evaluated heap value. Fields that were not
// forced are reported as thunks. Values reached through shared heap cells
// share their Fields.
type Value struct {
	Kind   ValueKind
	Tag    string
	Int    int64
	Fields []Value
}

// String renders the value the way the command line prints results:
// constructors as "tag f1 f2" with nested constructors parenthesised.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

// atomic reports whether v needs no parentheses when printed as a field.
func (v Value) atomic() bool {
	return v.Kind != ValueData || len(v.Fields) == 0
}

func (v Value) write(sb *strings.Builder) {
	switch v.Kind {
	case ValueInt:
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case ValueFunction:
		sb.WriteString("<function>")
	case ValueThunk:
		sb.WriteString("<thunk>")
	case ValueCycle:
		sb.WriteString("...")
	case ValueData:
		sb.WriteString(v.Tag)
		for _, f := range v.Fields {
			sb.WriteByte(' ')
			if f.atomic() {
				f.write(sb)
				continue
			}
			sb.WriteByte('(')
			f.write(sb)
			sb.WriteByte(')')
		}
	}
}

// TraceInfo captures execution steps for debug hooks.
type TraceInfo struct {
	Step     int
	Instr    string
	ArgDepth int
	RetDepth int
	UpdDepth int
	HeapSize int
}

// TraceHook observes machine transitions for debugging/profiling.
type TraceHook func(TraceInfo)

// Stats counts work done by a session.
type Stats struct {
	Steps       int
	Allocations int
	Updates     int
	PrimCalls   map[string]int
}

// Session owns a machine loaded with a program. Values forced by one Eval
// stay shared with later ones. A session runs one evaluation at a time; while
// a background evaluation runs, everything that reads the machine fails with
// ErrBusy. An evaluation begun with Start belongs to the caller, who may
// inspect the session between steps.
type Session struct {
	prog     *Program
	core     *vm.Machine
	mu       sync.Mutex
	busy     bool
	stepping bool
	stats    Stats
}

// NewSession allocates the program's bindings on a fresh machine.
func NewSession(p *Program) (*Session, error) {
	if p == nil {
		return nil, errorx.IllegalArgument.New("nil program")
	}
	core, err := vm.New(p.prog, "")
	if err != nil {
		return nil, err
	}
	return &Session{prog: p, core: core}, nil
}

// Program returns the program the session was created from.
func (s *Session) Program() *Program { return s.prog }

// SetStepLimit caps the number of transitions a single evaluation may take
// (0 for unlimited).
func (s *Session) SetStepLimit(limit int) error {
	return s.inspect(func() error {
		s.core.SetStepLimit(limit)
		return nil
	})
}

// SetTraceHook attaches a debug hook that observes every transition.
func (s *Session) SetTraceHook(h TraceHook) error {
	return s.inspect(func() error {
		if h == nil {
			s.core.SetTraceHook(nil)
			return nil
		}
		s.core.SetTraceHook(func(info vm.TraceInfo) {
			h(TraceInfo{
				Step:     info.Step,
				Instr:    info.Instr,
				ArgDepth: info.ArgDepth,
				RetDepth: info.RetDepth,
				UpdDepth: info.UpdDepth,
				HeapSize: info.HeapSize,
			})
		})
		return nil
	})
}

// Stats reports the session's counters. While a background evaluation runs
// it reports the counters as they were when that evaluation began.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy && !s.stepping {
		return s.stats
	}
	return s.snapshotStats()
}

func (s *Session) snapshotStats() Stats {
	st := s.core.Stats()
	return Stats{
		Steps:       st.Steps,
		Allocations: st.Allocations,
		Updates:     st.Updates,
		PrimCalls:   st.PrimCalls,
	}
}

// inspect runs fn under the session lock unless a background evaluation
// owns the machine.
func (s *Session) inspect(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy && !s.stepping {
		return ErrBusy.New("VM is busy; cannot inspect a running evaluation")
	}
	return fn()
}

// EvalFuture represents an in-flight evaluation.
type EvalFuture struct {
	ch <-chan EvalResult
}

// EvalResult is the outcome of an evaluation.
type EvalResult struct {
	Value Value
	Err   error
}

// Await waits for completion or context cancellation.
func (f EvalFuture) Await(ctx context.Context) (Value, error) {
	select {
	case <-ctx.Done():
		return Value{}, ctx.Err()
	case res := <-f.ch:
		return res.Value, res.Err
	}
}

// Eval fully evaluates a definition and returns its value.
func (s *Session) Eval(ctx context.Context, name string) (Value, error) {
	return s.EvalAsync(ctx, name, true).Await(ctx)
}

// Force evaluates a definition to weak head normal form only.
func (s *Session) Force(ctx context.Context, name string) (Value, error) {
	return s.EvalAsync(ctx, name, false).Await(ctx)
}

// EvalAsync evaluates a definition on the session's machine in the
// background. With deep set every reachable field is forced as well.
func (s *Session) EvalAsync(ctx context.Context, name string, deep bool) EvalFuture {
	ch := make(chan EvalResult, 1)
	if err := s.acquire(); err != nil {
		ch <- EvalResult{Err: err}
		close(ch)
		return EvalFuture{ch: ch}
	}
	go func() {
		val, err := s.eval(ctx, name, deep)
		s.release()
		ch <- EvalResult{Value: val, Err: err}
		close(ch)
	}()
	return EvalFuture{ch: ch}
}

func (s *Session) eval(ctx context.Context, name string, deep bool) (Value, error) {
	addr, ok := s.core.GlobalAddr(name)
	if !ok {
		return Value{}, ErrUnknownGlobal.New("%s is not defined", name)
	}
	var err error
	if deep {
		_, err = s.core.DeepSeqContext(ctx, addr)
	} else {
		_, err = s.core.SeqContext(ctx, addr)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Value{}, ctx.Err()
		}
		return Value{}, errorx.Decorate(err, "evaluate %s", name)
	}
	return newSnapshot(s.core).value(addr)
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy.New("VM is busy; concurrent evaluation not allowed")
	}
	s.busy = true
	s.stats = s.snapshotStats()
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.stepping = false
	s.mu.Unlock()
}

// snapshot copies heap values into Value trees in one pass. Cells whose
// subtree holds no cycle are built once and shared by every reference.
type snapshot struct {
	m      *vm.Machine
	active map[vm.Addr]bool
	done   map[vm.Addr]Value
}

func newSnapshot(m *vm.Machine) *snapshot {
	return &snapshot{m: m, active: map[vm.Addr]bool{}, done: map[vm.Addr]Value{}}
}

func (sn *snapshot) value(addr vm.Addr) (Value, error) {
	v, _, err := sn.cell(addr)
	return v, err
}

// cell also reports whether the value was cut short by a cycle.
func (sn *snapshot) cell(addr vm.Addr) (Value, bool, error) {
	if v, ok := sn.done[addr]; ok {
		return v, false, nil
	}
	if sn.active[addr] {
		return Value{Kind: ValueCycle}, true, nil
	}
	sh, err := vm.Inspect(sn.m, addr)
	if err != nil {
		return Value{}, false, err
	}
	var out Value
	switch sh.Kind {
	case vm.ShapeInt:
		out = Value{Kind: ValueInt, Int: sh.Int}
	case vm.ShapeFunction:
		out = Value{Kind: ValueFunction}
	case vm.ShapeThunk:
		out = Value{Kind: ValueThunk}
	}
	if sh.Kind != vm.ShapeData {
		sn.done[addr] = out
		return out, false, nil
	}

	sn.active[addr] = true
	defer delete(sn.active, addr)
	out = Value{Kind: ValueData, Tag: sh.Tag}
	cut := false
	for _, f := range sh.Fields {
		if f.Kind == vm.KindInt {
			out.Fields = append(out.Fields, Value{Kind: ValueInt, Int: f.Int})
			continue
		}
		fv, c, err := sn.cell(f.Addr)
		if err != nil {
			return Value{}, false, err
		}
		cut = cut || c
		out.Fields = append(out.Fields, fv)
	}
	if !cut {
		sn.done[addr] = out
	}
	return out, cut, nil
}

// Start primes the session to evaluate name one transition at a time with
// Step. It holds the session until the evaluation halts or fails.
func (s *Session) Start(name string) error {
	addr, ok := s.core.GlobalAddr(name)
	if !ok {
		return ErrUnknownGlobal.New("%s is not defined", name)
	}
	if err := s.acquire(); err != nil {
		return err
	}
	if err := s.core.Apply(addr); err != nil {
		s.release()
		return err
	}
	s.mu.Lock()
	s.stepping = true
	s.mu.Unlock()
	return nil
}

// Step performs a single transition of an evaluation begun with Start and
// reports whether the machine has halted. The session is released once it
// halts or fails.
func (s *Session) Step() (bool, error) {
	s.mu.Lock()
	stepping := s.stepping
	s.mu.Unlock()
	if !stepping {
		return false, ErrNotStepping.New("no evaluation started; call Start first")
	}
	if err := s.core.Step(); err != nil {
		s.release()
		return true, err
	}
	if s.core.Halted() {
		s.release()
		return true, nil
	}
	return false, nil
}

// Lookup returns the current, possibly unevaluated, value of a definition
// without forcing it.
func (s *Session) Lookup(name string) (Value, error) {
	addr, ok := s.core.GlobalAddr(name)
	if !ok {
		return Value{}, ErrUnknownGlobal.New("%s is not defined", name)
	}
	var val Value
	err := s.inspect(func() error {
		var err error
		val, err = newSnapshot(s.core).value(addr)
		return err
	})
	return val, err
}

// DumpState writes the machine registers and stacks.
func (s *Session) DumpState(w io.Writer) error {
	return s.inspect(func() error { return s.core.DumpState(w) })
}

// DumpHeap writes every heap cell.
func (s *Session) DumpHeap(w io.Writer) error {
	return s.inspect(func() error { return s.core.DumpHeap(w) })
}
