package compare

import "github.com/xirelogy/go-quail/internal/runtime"

func init() {
	runtime.Register(runtime.Spec{
		Name:  "==",
		Arity: 2,
		Fn:    runEqual,
	})
}

// runEqual yields 1 for equal operands and 0 otherwise, so results can be
// scrutinized with literal alternatives.
func runEqual(args []int64) int64 {
	if args[0] == args[1] {
		return 1
	}
	return 0
}
