package runtime

import (
	"fmt"
	"sort"
)

// PrimFunc computes a primitive over unboxed integers. The slice length
// always equals the registered arity.
type PrimFunc func(args []int64) int64

// Spec describes a primitive operation available to App(Prim, ...) nodes.
type Spec struct {
	Name  string
	Arity int
	Fn    PrimFunc
}

var byName = map[string]Spec{}

// Register installs a primitive. It is meant to be called from init and
// panics on duplicate or incomplete registrations.
func Register(spec Spec) {
	if spec.Fn == nil {
		panic(fmt.Sprintf("primitive %s has nil function", spec.Name))
	}
	if spec.Arity < 0 {
		panic(fmt.Sprintf("primitive %s has negative arity", spec.Name))
	}
	if _, exists := byName[spec.Name]; exists {
		panic(fmt.Sprintf("primitive %s already registered", spec.Name))
	}
	byName[spec.Name] = spec
}

// LookupByName finds a primitive by its program-visible name.
func LookupByName(name string) (Spec, bool) {
	spec, ok := byName[name]
	return spec, ok
}

// IsPrimitive reports whether name is a registered primitive.
func IsPrimitive(name string) bool {
	_, ok := byName[name]
	return ok
}

// All returns all registered primitives sorted by name.
func All() []Spec {
	out := make([]Spec, 0, len(byName))
	for _, spec := range byName {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
