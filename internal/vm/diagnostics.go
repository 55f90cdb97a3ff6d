package vm

import (
	"github.com/joomcode/errorx"
)

var (
	// Errors is the namespace of every error raised by the machine.
	Errors = errorx.NewNamespace("vm")

	// FatalInvariant marks errors that abort evaluation. A machine that
	// returned one of these is halted and cannot be resumed.
	FatalInvariant = errorx.RegisterTrait("fatal_invariant")

	ErrUnboundVariable    = Errors.NewType("unbound_variable", FatalInvariant)
	ErrUnknownPrimitive   = Errors.NewType("unknown_primitive", FatalInvariant)
	ErrPrimitiveArgument  = Errors.NewType("primitive_argument", FatalInvariant)
	ErrInvalidAddress     = Errors.NewType("invalid_address", FatalInvariant)
	ErrNonExhaustiveMatch = Errors.NewType("non_exhaustive_match", FatalInvariant)
	ErrStackDiscipline    = Errors.NewType("stack_discipline", FatalInvariant)
	ErrInternal           = Errors.NewType("internal", FatalInvariant)

	// ErrStepLimit is returned by Run when the configured step budget is
	// exhausted. The machine state stays valid and may be stepped further.
	ErrStepLimit = Errors.NewType("step_limit")

	// PropertyInstr carries the rendered instruction that failed.
	PropertyInstr = errorx.RegisterProperty("instr")
	// PropertyStep carries the number of the step that failed.
	PropertyStep = errorx.RegisterProperty("step")
)

// TraceInfo describes a single transition for debugging/tracing. It is
// reported before the transition runs.
type TraceInfo struct {
	Step     int
	Instr    string
	ArgDepth int
	RetDepth int
	UpdDepth int
	HeapSize int
}

// TraceHook observes instruction dispatch for debugging/profiling.
type TraceHook func(TraceInfo)

// SetTraceHook installs a hook invoked before every transition. Pass nil to
// disable tracing.
func (m *Machine) SetTraceHook(hook TraceHook) {
	m.traceHook = hook
}

// SetStepLimit bounds the number of transitions a single Run may take.
// Zero disables the limit.
func (m *Machine) SetStepLimit(limit int) {
	if limit < 0 {
		limit = 0
	}
	m.stepLimit = limit
}

// Stats counts work done by the machine since construction.
type Stats struct {
	Steps       int
	Allocations int
	Updates     int
	PrimCalls   map[string]int
}

// Stats returns a snapshot of the machine's counters.
func (m *Machine) Stats() Stats {
	calls := make(map[string]int, len(m.stats.PrimCalls))
	for k, v := range m.stats.PrimCalls {
		calls[k] = v
	}
	out := m.stats
	out.PrimCalls = calls
	return out
}

func (m *Machine) trace() {
	if m.traceHook == nil {
		return
	}
	info := TraceInfo{
		Step:     m.stats.Steps,
		ArgDepth: len(m.args),
		RetDepth: len(m.rets),
		UpdDepth: len(m.upds),
		HeapSize: m.heap.Size(),
	}
	if m.instr != nil {
		info.Instr = m.instr.String()
	}
	m.traceHook(info)
}

// fail halts the machine with err, annotated with the failing instruction.
func (m *Machine) fail(instr Instr, err error) error {
	ex := errorx.Cast(err)
	if ex == nil {
		ex = ErrInternal.WrapWithNoMessage(err)
	}
	ex = ex.WithProperty(PropertyStep, m.stats.Steps)
	if instr != nil {
		ex = ex.WithProperty(PropertyInstr, instr.String())
	}
	m.err = ex
	m.instr = nil
	return ex
}
