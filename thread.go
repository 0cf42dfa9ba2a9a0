package igc

import "unsafe"

import "github.com/bnclabs/goigc/mem"

// Thread per-mutator state: the engine thread record with its stack
// root, the value stack backing that root, the binding stack with its
// own ambiguous root, and one allocation point per moving pool.
//
// All mutator held references must live on the value stack, in the
// binding stack, or in another registered root across cooperation
// points; values kept only in locals are invisible to the collector.
type Thread struct {
	gc         *IGC
	prev, next *Thread

	memthr    *mem.Thread
	stackroot *mem.Root
	values    []Word
	sp        int

	specpdl     []Specbinding
	spp         int
	specpdlroot *mem.Root

	consap *mem.AP
	symap  *mem.AP
}

// ThreadAdd register a mutator thread: engine registration, stack
// root from the value stack's cold end, and one allocation point per
// moving pool. No binding stack or binding stack root is created
// here; ensurespecpdl creates both on the thread's first
// PushBinding.
func (gc *IGC) ThreadAdd() *Thread {
	t := &Thread{gc: gc}
	t.values = make([]Word, gc.setts.Int64("stack.size"))
	cold := uintptr(unsafe.Pointer(&t.values[0]))

	t.memthr = gc.arena.RegisterThread(cold)
	t.stackroot = gc.arena.CreateThreadRoot(t.memthr, cold)
	t.consap = gc.conspool.NewAP(t.memthr)
	t.symap = gc.sympool.NewAP(t.memthr)

	gc.thrmu.Lock()
	t.next = gc.threads
	if t.next != nil {
		t.next.prev = t
	}
	gc.threads = t
	gc.thrmu.Unlock()
	return t
}

// ThreadRemove destroy the thread's allocation points and deregister
// it together with its roots.
func (gc *IGC) ThreadRemove(t *Thread) {
	gc.arena.DestroyRoot(t.stackroot)
	if t.specpdlroot != nil {
		gc.arena.DestroyRoot(t.specpdlroot)
	}
	gc.arena.DeregisterThread(t.memthr) // destroys the APs as well

	gc.thrmu.Lock()
	defer gc.thrmu.Unlock()
	if t.next != nil {
		t.next.prev = t.prev
	}
	if t.prev != nil {
		t.prev.next = t.next
	} else if gc.threads == t {
		gc.threads = t.next
	} else {
		panicerr("%v: remove of unknown thread", gc.logprefix)
	}
	t.prev, t.next, t.gc = nil, nil, nil
}

// Push protect v on the thread's value stack. The stack is the
// thread's GC visible working set; pushed values are pinned until
// popped.
func (t *Thread) Push(v Word) {
	if t.sp == len(t.values) {
		t.growstack() // before entering the shield, growing parks
	}
	t.gc.arena.ShieldEnter()
	t.values[t.sp] = v
	t.sp++
	t.memthr.SetHot(uintptr(unsafe.Pointer(&t.values[0])) + uintptr(t.sp)*8)
	t.gc.arena.ShieldLeave()
}

// Pop remove the top of the value stack and return it. The slot is
// zeroed so the dead word cannot retain garbage.
func (t *Thread) Pop() Word {
	if t.sp == 0 {
		panicerr("%v: pop of empty value stack", t.gc.logprefix)
	}
	t.gc.arena.ShieldEnter()
	t.sp--
	v := t.values[t.sp]
	t.values[t.sp] = 0
	t.memthr.SetHot(uintptr(unsafe.Pointer(&t.values[0])) + uintptr(t.sp)*8)
	t.gc.arena.ShieldLeave()
	return v
}

// Top the value at depth from the top of the stack, 0 being the top.
func (t *Thread) Top(depth int) Word {
	if depth >= t.sp {
		panicerr("%v: stack depth %v beyond %v", t.gc.logprefix, depth, t.sp)
	}
	return t.values[t.sp-1-depth]
}

// Depth current value stack depth.
func (t *Thread) Depth() int {
	return t.sp
}

// growstack reallocate the value stack. The stack root is replaced
// deregister-first under a parked collector to preserve the
// no-overlap invariant.
func (t *Thread) growstack() {
	gc := t.gc
	gc.arena.WithParked(func() {
		values := make([]Word, 2*len(t.values))
		copy(values, t.values[:t.sp])
		t.values = values
		cold := uintptr(unsafe.Pointer(&t.values[0]))
		hot := cold + uintptr(t.sp)*8

		gc.arena.DestroyRoot(t.stackroot)
		t.memthr.Rebind(cold, hot)
		t.stackroot = gc.arena.CreateThreadRoot(t.memthr, cold)
	})
}
