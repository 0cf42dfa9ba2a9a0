package mem

import "sync/atomic"

// AP a thread local allocation point on one moving pool. The owning
// thread reserves space, initializes the object fully, and commits.
// A collection flip between reserve and commit trips the AP and
// commit reports retry; the abandoned bytes are padded over when the
// buffer is replaced.
//
// The fast path touches only memory owned by this thread; the shield
// is entered around commit so the frontier is published at a safe
// point.
type AP struct {
	tripped int32 // 64-bit aligned, set by the collector at a flip

	pool   *Pool
	thread *Thread
	seg    *segment // current buffer, nil before first reserve
	init   uintptr  // reserve frontier within seg
}

// NewAP create an allocation point for thread t on this pool.
func (pool *Pool) NewAP(t *Thread) *AP {
	ap := &AP{pool: pool, thread: t}
	arena := pool.arena
	arena.mu.Lock()
	arena.aps = append(arena.aps, ap)
	arena.mu.Unlock()
	if t != nil {
		t.aps = append(t.aps, ap)
	}
	return ap
}

// Destroy the allocation point. Its current buffer is retired and
// becomes collectible.
func (ap *AP) Destroy() {
	arena := ap.pool.arena
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if ap.seg != nil {
		ap.seg.retire()
		ap.seg = nil
	}
	for i, other := range arena.aps {
		if other == ap {
			arena.aps = append(arena.aps[:i], arena.aps[i+1:]...)
			break
		}
	}
}

// Reserve space for one object of size bytes. The returned address is
// raw memory private to this thread; the object must be fully
// initialized before Commit. Size must equal the pool's object size.
func (ap *AP) Reserve(size uintptr) (uintptr, error) {
	if size != ap.pool.format.Size {
		panicerr("%v: reserve size %v, pool object size %v",
			ap.pool.logprefix, size, ap.pool.format.Size)
	}
	if atomic.LoadInt32(&ap.tripped) != 0 || ap.seg == nil ||
		ap.init+size > ap.seg.limit {
		ap.refill()
	}
	arena := ap.pool.arena
	if arena.debugpool && checkblock(ap.init, size) == false {
		panicerr("%v: fencepost overwritten at %x", ap.pool.logprefix, ap.init)
	}
	return ap.init, nil
}

// Commit publish the object at addr. False means a collection flip
// invalidated the reservation: the object is gone, repeat from
// Reserve. Successful commits of one AP are totally ordered in
// program order.
func (ap *AP) Commit(addr, size uintptr) bool {
	arena := ap.pool.arena
	arena.shield.RLock()
	if atomic.LoadInt32(&ap.tripped) != 0 {
		arena.shield.RUnlock()
		return false
	}
	if addr != ap.init || addr+size > ap.seg.limit {
		arena.shield.RUnlock()
		panicerr("%v: commit of %x/%v outside reservation", ap.pool.logprefix, addr, size)
	}
	ap.init = addr + size
	ap.seg.committed = ap.init
	arena.shield.RUnlock()

	gen0 := arena.chain[0]
	atomic.AddInt64(&gen0.allocated, int64(size))
	return true
}

// refill retire the current buffer and attach a fresh one from the
// nursery generation.
func (ap *AP) refill() {
	arena := ap.pool.arena
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if ap.seg != nil {
		ap.seg.retire()
		ap.seg = nil
	}
	size := arena.buffersize
	seg := ap.pool.newsegment(0, size)
	seg.ap = ap
	ap.seg = seg
	ap.init = seg.base
	atomic.StoreInt32(&ap.tripped, 0)
}
