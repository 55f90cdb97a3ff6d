package ast

// Constructor describes one of the language's built-in data constructors.
type Constructor struct {
	Name   string
	Fields []string
}

// Arity is the number of fields the constructor carries.
func (c Constructor) Arity() int { return len(c.Fields) }

// Constructors is the closed set of constructors known to the lowering pass
// and the machine. Order is fixed; it determines the layout of the wrapper
// bindings appended to every program.
var Constructors = []Constructor{
	{Name: "zero"},
	{Name: "succ", Fields: []string{"n"}},
	{Name: "nil"},
	{Name: "cons", Fields: []string{"x", "xs"}},
	{Name: "true"},
	{Name: "false"},
}

// LookupConstructor finds a constructor by name.
func LookupConstructor(name string) (Constructor, bool) {
	for _, c := range Constructors {
		if c.Name == name {
			return c, true
		}
	}
	return Constructor{}, false
}

// IsConstructor reports whether name is a built-in constructor.
func IsConstructor(name string) bool {
	_, ok := LookupConstructor(name)
	return ok
}
