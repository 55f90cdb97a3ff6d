package arith

import "github.com/xirelogy/go-quail/internal/runtime"

func init() {
	runtime.Register(runtime.Spec{Name: "+", Arity: 2, Fn: runAdd})
	runtime.Register(runtime.Spec{Name: "-", Arity: 2, Fn: runSub})
	runtime.Register(runtime.Spec{Name: "*", Arity: 2, Fn: runMul})
}

func runAdd(args []int64) int64 { return args[0] + args[1] }
func runSub(args []int64) int64 { return args[0] - args[1] }
func runMul(args []int64) int64 { return args[0] * args[1] }
