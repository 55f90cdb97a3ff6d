package succ

import "github.com/xirelogy/go-quail/internal/runtime"

func init() {
	runtime.Register(runtime.Spec{
		Name:  "+1",
		Arity: 1,
		Fn:    runSucc,
	})
}

func runSucc(args []int64) int64 {
	return args[0] + 1
}
