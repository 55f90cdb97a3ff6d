package compiler

import "github.com/joomcode/errorx"

var (
	// Errors is the namespace of every error raised while lowering.
	Errors = errorx.NewNamespace("compiler")

	// ErrNotImplemented is raised for source constructs the lowering pass
	// does not support, such as holes.
	ErrNotImplemented = Errors.NewType("not_implemented")

	// ErrMalformed is raised for input that an upstream stage should have
	// rejected: unbound names, bad patterns, duplicate definitions.
	ErrMalformed = Errors.NewType("malformed")

	// PropertyPosition carries the token.Position of the offending term.
	PropertyPosition = errorx.RegisterProperty("position")
)
