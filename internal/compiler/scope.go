package compiler

// scope tracks the names bound by enclosing lambdas, lets and case arms.
// Anything not found here is a top-level global or a constructor.
type scope struct {
	enclosing *scope
	locals    map[string]bool
}

func newScope(enclosing *scope) *scope {
	return &scope{
		enclosing: enclosing,
		locals:    make(map[string]bool),
	}
}

// with returns a child scope binding the given names.
func (s *scope) with(names ...string) *scope {
	child := newScope(s)
	for _, n := range names {
		child.locals[n] = true
	}
	return child
}

// resolveLocal reports whether name is bound by this or an enclosing scope.
func (s *scope) resolveLocal(name string) bool {
	for sc := s; sc != nil; sc = sc.enclosing {
		if sc.locals[name] {
			return true
		}
	}
	return false
}
