package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"

// Specbinding one frame of the dynamic binding stack. All three
// slots are value words; frames past the stack pointer are zeroed so
// the ambiguous scan over the whole backing cannot retain garbage.
type Specbinding struct {
	Kind     Word
	Symbol   Word
	OldValue Word
}

const specbindingSize = unsafe.Sizeof(Specbinding{})

// ensurespecpdl allocate the binding stack and its root on first
// use. For the initial thread this happens once the runtime sets up
// evaluation, via OnAllocMainThreadSpecpdl.
func (t *Thread) ensurespecpdl() {
	if t.specpdl != nil {
		return
	}
	t.specpdl = make([]Specbinding, t.gc.setts.Int64("specpdl.size"))
	start, end := specpdlrange(t.specpdl)
	t.specpdlroot = t.gc.arena.CreateAmbigRoot(start, end)
}

// OnAllocMainThreadSpecpdl called when the runtime allocates the
// initial thread's binding stack.
func (gc *IGC) OnAllocMainThreadSpecpdl() {
	gc.main.ensurespecpdl()
}

// OnGrowSpecpdl called when a thread's binding stack must grow. The
// backing is reallocated and the root replaced deregister-first
// under a parked collector.
func (gc *IGC) OnGrowSpecpdl(t *Thread) {
	gc.arena.WithParked(func() {
		specpdl := make([]Specbinding, 2*len(t.specpdl))
		copy(specpdl, t.specpdl[:t.spp])
		t.specpdl = specpdl

		gc.arena.DestroyRoot(t.specpdlroot)
		start, end := specpdlrange(t.specpdl)
		t.specpdlroot = gc.arena.CreateAmbigRoot(start, end)
	})
}

// OnSpecbindingUnused called when a binding frame is released; the
// slot is zeroed to prevent stale references.
func (gc *IGC) OnSpecbindingUnused(b *Specbinding) {
	*b = Specbinding{}
}

// PushBinding record a dynamic binding of sym, saving oldval.
func (t *Thread) PushBinding(sym, oldval Word) {
	t.ensurespecpdl()
	if t.spp == len(t.specpdl) {
		t.gc.OnGrowSpecpdl(t) // before entering the shield, parks
	}
	t.gc.arena.ShieldEnter()
	t.specpdl[t.spp] = Specbinding{
		Kind:     api.MakeFixnum(1),
		Symbol:   sym,
		OldValue: oldval,
	}
	t.spp++
	t.gc.arena.ShieldLeave()
}

// PopBinding unwind the topmost binding frame and return it.
func (t *Thread) PopBinding() Specbinding {
	if t.spp == 0 {
		panicerr("%v: pop of empty binding stack", t.gc.logprefix)
	}
	t.gc.arena.ShieldEnter()
	t.spp--
	b := t.specpdl[t.spp]
	t.gc.OnSpecbindingUnused(&t.specpdl[t.spp])
	t.gc.arena.ShieldLeave()
	return b
}

// Bindings current binding stack depth.
func (t *Thread) Bindings() int {
	return t.spp
}

// Binding the frame at index i from the bottom.
func (t *Thread) Binding(i int) Specbinding {
	if i < 0 || i >= t.spp {
		panicerr("%v: binding index %v beyond %v", t.gc.logprefix, i, t.spp)
	}
	return t.specpdl[i]
}

func specpdlrange(specpdl []Specbinding) (uintptr, uintptr) {
	start := uintptr(unsafe.Pointer(&specpdl[0]))
	return start, start + uintptr(len(specpdl))*specbindingSize
}
