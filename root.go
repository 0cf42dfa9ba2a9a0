package igc

import "unsafe"

import "github.com/bnclabs/goigc/mem"

// RootInfo the opaque handle callers keep for registered roots.
type RootInfo = mem.Root

// OnMemInsert called when the runtime's block allocator records a
// block that may contain references into managed pools. The whole
// block becomes an ambiguous root; conservative retention is the
// price of staying oblivious to the block's layout.
func (gc *IGC) OnMemInsert(start, end uintptr) *RootInfo {
	return gc.arena.CreateAmbigRoot(start, end)
}

// OnMemDelete called when the block is freed.
func (gc *IGC) OnMemDelete(info *RootInfo) {
	gc.arena.DestroyRoot(info)
}

// XallocAmbigRoot allocate a zeroed unmanaged block of size bytes and
// register it as an ambiguous root. The runtime uses this for mixed
// structures that hold value words but live outside the pools.
func (gc *IGC) XallocAmbigRoot(size int) uintptr {
	if size <= 0 {
		panicerr("%v: xalloc of %v bytes", gc.logprefix, size)
	}
	block := make([]uint64, (size+7)/8)
	start := uintptr(unsafe.Pointer(&block[0]))
	gc.xallocs[start] = block
	gc.arena.CreateAmbigRoot(start, start+uintptr(len(block))*8)
	return start
}

// XfreeAmbigRoot release a block obtained from XallocAmbigRoot. The
// start address is the only stable identifier of the root.
func (gc *IGC) XfreeAmbigRoot(p uintptr) {
	if p == 0 {
		return
	}
	root := gc.arena.FindRoot(p)
	if root == nil {
		panicerr("%v: xfree of unknown block %x", gc.logprefix, p)
	}
	gc.arena.DestroyRoot(root)
	delete(gc.xallocs, p)
}

// OnPdumpLoaded called after a persistent image has been mapped at
// [start, end). The area holds pre-initialized value words mixing
// immediates and references, so it is scanned ambiguously.
func (gc *IGC) OnPdumpLoaded(start, end uintptr) *RootInfo {
	return gc.arena.CreateAmbigRoot(start, end)
}

// OnGrowReadStack called when the reader's object stack has been
// reallocated to [start, end). The old root, if any, is replaced
// deregister-first under a parked collector.
func (gc *IGC) OnGrowReadStack(info *RootInfo, start, end uintptr) *RootInfo {
	gc.arena.WithParked(func() {
		if info != nil {
			gc.arena.DestroyRoot(info)
		}
		info = gc.arena.CreateAmbigRoot(start, end)
	})
	return info
}

// InhibitGC park the arena for a critical region. The returned
// release runs on every exit path:
//
//	defer gc.InhibitGC()()
//
// While inhibited the collector performs no work and commits never
// see a collection induced retry.
func (gc *IGC) InhibitGC() (release func()) {
	gc.arena.Park()
	return gc.arena.Release
}
