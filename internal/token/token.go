package token

import "fmt"

// Position describes a 1-based line/column in a module source file.
type Position struct {
	Offset int
	Line   int
	Column int
}

// IsValid reports whether the position carries line information.
func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents an inclusive start and end position for a node.
type Span struct {
	Start Position
	End   Position
}
