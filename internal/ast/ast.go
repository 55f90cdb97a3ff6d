package ast

import "github.com/xirelogy/go-quail/internal/token"

// Node represents any source term node.
type Node interface {
	Pos() token.Position
	Span() token.Span
}

// Term is a node of the source term language.
type Term interface {
	Node
	termNode()
}

// Module is a set of top-level definitions that have already been resolved
// and type checked.
type Module struct {
	Name        string
	Definitions []*Def
}

// Def binds a top-level name to a term. Type is carried for display only.
type Def struct {
	Name    string
	Type    string
	Term    Term
	NamePos token.Position
}

// Definition returns the definition with the given name, if any.
func (m *Module) Definition(name string) (*Def, bool) {
	if m == nil {
		return nil, false
	}
	for _, d := range m.Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Globals lists the names of all top-level definitions in declaration order.
func (m *Module) Globals() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Definitions))
	for _, d := range m.Definitions {
		out = append(out, d.Name)
	}
	return out
}

// Terms

type Var struct {
	Name string
	PosT token.Position
	Sp   token.Span
}

func (v *Var) Pos() token.Position { return v.PosT }
func (v *Var) Span() token.Span    { return v.Sp }
func (v *Var) termNode()           {}

// Lam is a single-parameter lambda abstraction.
type Lam struct {
	Param string
	Body  Term
	PosT  token.Position
	Sp    token.Span
}

func (l *Lam) Pos() token.Position { return l.PosT }
func (l *Lam) Span() token.Span    { return l.Sp }
func (l *Lam) termNode()           {}

// App applies a function term to one or more arguments at once.
type App struct {
	Func Term
	Args []Term
	PosT token.Position
	Sp   token.Span
}

func (a *App) Pos() token.Position { return a.PosT }
func (a *App) Span() token.Span    { return a.Sp }
func (a *App) termNode()           {}

// Let is a non-recursive local binding.
type Let struct {
	Name  string
	Value Term
	Body  Term
	PosT  token.Position
	Sp    token.Span
}

func (l *Let) Pos() token.Position { return l.PosT }
func (l *Let) Span() token.Span    { return l.Sp }
func (l *Let) termNode()           {}

type Match struct {
	Subject Term
	Arms    []MatchArm
	PosT    token.Position
	Sp      token.Span
}

func (m *Match) Pos() token.Position { return m.PosT }
func (m *Match) Span() token.Span    { return m.Sp }
func (m *Match) termNode()           {}

// MatchArm pairs a pattern with its body. Pattern[0] is the constructor tag
// (or an integer literal, or a catch-all name); the rest name its fields.
type MatchArm struct {
	Pattern []string
	Body    Term
	Pos     token.Position
}

type IntLit struct {
	Value int64
	PosT  token.Position
	Sp    token.Span
}

func (i *IntLit) Pos() token.Position { return i.PosT }
func (i *IntLit) Span() token.Span    { return i.Sp }
func (i *IntLit) termNode()           {}

// As is a type ascription.
type As struct {
	Term Term
	Type string
	PosT token.Position
	Sp   token.Span
}

func (a *As) Pos() token.Position { return a.PosT }
func (a *As) Span() token.Span    { return a.Sp }
func (a *As) termNode()           {}

// Hole is an unfilled placeholder left for the interactive editor.
type Hole struct {
	ID       int
	Name     string
	Contents string
	PosT     token.Position
	Sp       token.Span
}

func (h *Hole) Pos() token.Position { return h.PosT }
func (h *Hole) Span() token.Span    { return h.Sp }
func (h *Hole) termNode()           {}
