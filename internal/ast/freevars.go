package ast

import (
	"slices"
	"strconv"
)

// FreeVars returns the variables occurring free in t, in order of first
// occurrence and without duplicates.
func FreeVars(t Term) []string {
	fv := &freeVars{seen: make(map[string]bool)}
	fv.walk(t, nil)
	return fv.out
}

type freeVars struct {
	seen map[string]bool
	out  []string
}

func (fv *freeVars) walk(t Term, bound []string) {
	switch n := t.(type) {
	case *Var:
		if slices.Contains(bound, n.Name) || fv.seen[n.Name] {
			return
		}
		fv.seen[n.Name] = true
		fv.out = append(fv.out, n.Name)
	case *Lam:
		fv.walk(n.Body, append(slices.Clip(bound), n.Param))
	case *App:
		fv.walk(n.Func, bound)
		for _, a := range n.Args {
			fv.walk(a, bound)
		}
	case *Let:
		fv.walk(n.Value, bound)
		fv.walk(n.Body, append(slices.Clip(bound), n.Name))
	case *Match:
		fv.walk(n.Subject, bound)
		for _, arm := range n.Arms {
			inner := slices.Clip(bound)
			if len(arm.Pattern) > 1 {
				inner = append(inner, arm.Pattern[1:]...)
			} else if len(arm.Pattern) == 1 && IsCatchAll(arm.Pattern[0]) {
				inner = append(inner, arm.Pattern[0])
			}
			fv.walk(arm.Body, inner)
		}
	case *As:
		fv.walk(n.Term, bound)
	case *IntLit, *Hole:
	}
}

// IsCatchAll reports whether a one-name pattern binds the scrutinee to that
// name rather than naming a constructor or an integer literal.
func IsCatchAll(name string) bool {
	if IsConstructor(name) {
		return false
	}
	_, isInt := PatternInt(name)
	return !isInt
}

// PatternInt parses a literal pattern head.
func PatternInt(name string) (int64, bool) {
	k, err := strconv.ParseInt(name, 10, 64)
	return k, err == nil
}
