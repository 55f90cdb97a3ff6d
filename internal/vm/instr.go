package vm

import (
	"fmt"
	"strings"

	"github.com/xirelogy/go-quail/internal/stg"
)

// Instr is the machine's instruction register: one of *Eval, *Enter,
// *ReturnCtor or *ReturnInt. A nil Instr means the machine has halted.
type Instr interface {
	instrNode()
	String() string
}

// Eval evaluates an expression in a local environment.
type Eval struct {
	Expr stg.Expr
	Env  Context
}

// Enter applies the closure at Addr to the arguments on the stack.
type Enter struct {
	Addr Addr
}

// ReturnCtor returns a saturated constructor to the innermost continuation.
type ReturnCtor struct {
	Tag    stg.Ctor
	Values []Value
}

// ReturnInt returns an unboxed integer to the innermost continuation.
type ReturnInt struct {
	Value int64
}

func (*Eval) instrNode()       {}
func (*Enter) instrNode()      {}
func (*ReturnCtor) instrNode() {}
func (*ReturnInt) instrNode()  {}

func (i *Eval) String() string {
	return fmt.Sprintf("Eval %s %s", oneLine(stg.ExprString(i.Expr)), i.Env)
}

func (i *Enter) String() string { return fmt.Sprintf("Enter @%d", i.Addr) }

func (i *ReturnCtor) String() string {
	vals := make([]string, len(i.Values))
	for j, v := range i.Values {
		vals[j] = v.String()
	}
	return fmt.Sprintf("ReturnCtor %s [%s]", i.Tag, strings.Join(vals, ", "))
}

func (i *ReturnInt) String() string { return fmt.Sprintf("ReturnInt %d", i.Value) }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
