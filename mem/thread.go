package mem

import "sync/atomic"

// Thread a mutator registered with the arena. The thread owns one
// allocation point per moving pool and a stack root covering its
// runtime value stack between the registered cold end and the current
// hot end, which the runtime publishes through SetHot.
type Thread struct {
	hot uintptr // 64-bit aligned, published by the owning thread

	arena      *Arena
	cold       uintptr
	prev, next *Thread
	aps        []*AP
}

// RegisterThread register a mutator whose stack root grows from cold.
func (arena *Arena) RegisterThread(cold uintptr) *Thread {
	t := &Thread{arena: arena, cold: cold}
	atomic.StoreUintptr(&t.hot, cold)

	arena.mu.Lock()
	defer arena.mu.Unlock()
	t.next = arena.threads
	if t.next != nil {
		t.next.prev = t
	}
	arena.threads = t
	arena.nthreads++
	return t
}

// DeregisterThread remove t from the registry and destroy its
// allocation points.
func (arena *Arena) DeregisterThread(t *Thread) {
	for _, ap := range t.aps {
		ap.Destroy()
	}
	t.aps = nil

	arena.mu.Lock()
	defer arena.mu.Unlock()
	if t.next != nil {
		t.next.prev = t.prev
	}
	if t.prev != nil {
		t.prev.next = t.next
	} else if arena.threads == t {
		arena.threads = t.next
	} else {
		panicerr("%v: deregister of unknown thread", arena.logprefix)
	}
	t.prev, t.next, t.arena = nil, nil, nil
	arena.nthreads--
}

// Rebind move the thread's stack extent after its backing storage
// was reallocated. Call only under a parked arena, with the thread's
// stack root replaced in the same parked region.
func (t *Thread) Rebind(cold, hot uintptr) {
	if hot < cold {
		panicerr("%v: hot end %x below cold end %x", t.arena.logprefix, hot, cold)
	}
	t.cold = cold
	atomic.StoreUintptr(&t.hot, hot)
}

// Cold the cold end of the thread's stack extent.
func (t *Thread) Cold() uintptr {
	return t.cold
}

// Hot the current hot end of the thread's stack extent.
func (t *Thread) Hot() uintptr {
	return atomic.LoadUintptr(&t.hot)
}

// SetHot publish the current hot end. Called by the runtime whenever
// the value stack pointer moves across a cooperation point.
func (t *Thread) SetHot(hot uintptr) {
	if hot < t.cold {
		panicerr("%v: hot end %x below cold end %x", t.arena.logprefix, hot, t.cold)
	}
	atomic.StoreUintptr(&t.hot, hot)
}
