// Package builtins links the fixed primitive table into the runtime registry.
package builtins

import (
	_ "github.com/xirelogy/go-quail/internal/builtins/arith"
	_ "github.com/xirelogy/go-quail/internal/builtins/compare"
	_ "github.com/xirelogy/go-quail/internal/builtins/pred"
	_ "github.com/xirelogy/go-quail/internal/builtins/succ"
)
