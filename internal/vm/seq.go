package vm

import (
	"context"
)

// ResetState clears the instruction register and all three stacks. The heap
// is kept, so values forced earlier stay shared.
func (m *Machine) ResetState() {
	m.instr = nil
	m.result = nil
	m.args = m.args[:0]
	m.rets = m.rets[:0]
	m.upds = m.upds[:0]
}

// Apply primes the machine to enter the closure at addr with args, first
// argument on top of the stack. An address outside the heap fails the
// machine.
func (m *Machine) Apply(addr Addr, args ...Value) error {
	if m.err != nil {
		return m.err
	}
	if _, err := m.heap.Lookup(addr); err != nil {
		return m.fail(nil, err)
	}
	m.ResetState()
	for i := len(args) - 1; i >= 0; i-- {
		m.args = append(m.args, args[i])
	}
	m.instr = &Enter{Addr: addr}
	return nil
}

// Run steps the machine until it halts, the step limit is reached or ctx is
// done. Hitting the limit or cancelling leaves the machine resumable.
func (m *Machine) Run(ctx context.Context) error {
	steps := 0
	for !m.Halted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.stepLimit > 0 && steps >= m.stepLimit {
			return ErrStepLimit.New("step limit of %d exceeded", m.stepLimit)
		}
		if err := m.Step(); err != nil {
			return err
		}
		steps++
	}
	return m.err
}

// Seq forces the closure at addr to weak head normal form and returns it.
func (m *Machine) Seq(addr Addr) (Closure, error) {
	return m.SeqContext(context.Background(), addr)
}

// SeqContext is Seq honouring cancellation between steps.
func (m *Machine) SeqContext(ctx context.Context, addr Addr) (Closure, error) {
	if err := m.Apply(addr); err != nil {
		return Closure{}, err
	}
	if err := m.Run(ctx); err != nil {
		return Closure{}, err
	}
	return m.heap.Lookup(addr)
}

// DeepSeq forces addr and, breadth first, every address reachable from the
// fields of the resulting constructors. Functions are forced to WHNF only;
// their captured values are left alone. Shared and cyclic structure is
// forced once.
func (m *Machine) DeepSeq(addr Addr) (Closure, error) {
	return m.DeepSeqContext(context.Background(), addr)
}

// DeepSeqContext is DeepSeq honouring cancellation between steps.
func (m *Machine) DeepSeqContext(ctx context.Context, addr Addr) (Closure, error) {
	root, err := m.SeqContext(ctx, addr)
	if err != nil {
		return Closure{}, err
	}
	visited := map[Addr]bool{addr: true}
	queue := fields(root)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		cl, err := m.SeqContext(ctx, next)
		if err != nil {
			return Closure{}, err
		}
		queue = append(queue, fields(cl)...)
	}
	return m.heap.Lookup(addr)
}

// fields lists the heap addresses held by a forced data value.
func fields(cl Closure) []Addr {
	if cl.Form == nil || cl.Form.Arity() > 0 {
		return nil
	}
	var out []Addr
	for _, v := range cl.Values {
		if v.Kind == KindAddr {
			out = append(out, v.Addr)
		}
	}
	return out
}
