package vm

// Heap is an arena of closures indexed by Addr. It only grows: there is no
// collector, so every address stays valid for the life of the machine.
type Heap struct {
	closures []*Closure
}

// NewHeap constructs an empty heap.
func NewHeap() *Heap {
	return &Heap{closures: make([]*Closure, 0, 64)}
}

// Alloc stores a closure and returns its fresh address.
func (h *Heap) Alloc(c Closure) Addr {
	cl := c
	h.closures = append(h.closures, &cl)
	return Addr(len(h.closures) - 1)
}

// Lookup returns a copy of the closure stored at a.
func (h *Heap) Lookup(a Addr) (Closure, error) {
	cl, err := h.LookupMut(a)
	if err != nil {
		return Closure{}, err
	}
	return *cl, nil
}

// LookupMut returns the heap cell at a for in-place modification.
func (h *Heap) LookupMut(a Addr) (*Closure, error) {
	if a < 0 || int(a) >= len(h.closures) {
		return nil, ErrInvalidAddress.New("invalid heap address %d (heap size %d)", a, len(h.closures))
	}
	return h.closures[a], nil
}

// Overwrite replaces the closure at a.
func (h *Heap) Overwrite(a Addr, c Closure) error {
	cl, err := h.LookupMut(a)
	if err != nil {
		return err
	}
	*cl = c
	return nil
}

// Size reports the number of allocated closures.
func (h *Heap) Size() int { return len(h.closures) }

// Each visits every closure in address order.
func (h *Heap) Each(fn func(Addr, *Closure)) {
	for i, cl := range h.closures {
		fn(Addr(i), cl)
	}
}
