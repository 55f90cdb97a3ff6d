package vm

import (
	"fmt"
	"io"

	"github.com/joomcode/errorx"

	"github.com/xirelogy/go-quail/internal/stg"
)

// DumpHeap writes one line per heap cell, labelling top-level bindings.
func (m *Machine) DumpHeap(w io.Writer) error {
	if m == nil {
		return errorx.IllegalArgument.New("nil machine")
	}
	if w == nil {
		return errorx.IllegalArgument.New("nil writer")
	}
	labels := make(map[Addr]stg.Var, len(m.globals))
	for name, a := range m.globals {
		labels[a] = name
	}
	var err error
	m.heap.Each(func(a Addr, cl *Closure) {
		if err != nil {
			return
		}
		label := ""
		if name, ok := labels[a]; ok {
			label = " " + name
		}
		_, err = fmt.Fprintf(w, "@%d%s = %s\n", a, label, oneLine(cl.String()))
	})
	return err
}

// DumpState writes the instruction register and the three stacks, innermost
// entries first.
func (m *Machine) DumpState(w io.Writer) error {
	if m == nil {
		return errorx.IllegalArgument.New("nil machine")
	}
	if w == nil {
		return errorx.IllegalArgument.New("nil writer")
	}
	d := dumper{w: w}
	switch {
	case m.err != nil:
		d.printf("instr: <failed> %v\n", m.err)
	case m.instr == nil && m.result != nil:
		d.printf("instr: <halted> %s\n", m.result)
	case m.instr == nil:
		d.printf("instr: <halted>\n")
	default:
		d.printf("instr: %s\n", m.instr)
	}
	d.printf("args (%d):\n", len(m.args))
	for i := len(m.args) - 1; i >= 0; i-- {
		d.printf("  %s\n", m.args[i])
	}
	d.printf("returns (%d):\n", len(m.rets))
	for i := len(m.rets) - 1; i >= 0; i-- {
		d.printf("  %s %s\n", altsSummary(m.rets[i].Alts), m.rets[i].Env)
	}
	d.printf("updates (%d):\n", len(m.upds))
	for i := len(m.upds) - 1; i >= 0; i-- {
		f := m.upds[i]
		d.printf("  @%d args=%d returns=%d\n", f.Target, len(f.Args), len(f.Returns))
	}
	d.printf("heap: %d closures\n", m.heap.Size())
	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func altsSummary(alts stg.Alts) string {
	out := "["
	for i, alt := range alts {
		if i > 0 {
			out += " | "
		}
		switch a := alt.(type) {
		case *stg.CtorAlt:
			out += a.Tag
		case *stg.LitAlt:
			out += fmt.Sprintf("%d", a.Value)
		case *stg.DefaultAlt:
			out += a.Var
		}
	}
	return out + "]"
}
