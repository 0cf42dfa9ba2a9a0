package mem

import "fmt"
import "sort"
import "sync/atomic"

import "github.com/bnclabs/goigc/api"

// Pool states during one collection cycle. Transitions are driven by
// the collector; mutators observe them only through the reserve and
// commit retry loop.
const (
	PoolIdle int32 = iota
	PoolMarking
	PoolRelocating
)

// PoolClassAMC the moving, automatic pool class. The only class
// implemented; a slot is reserved for a weak AWL equivalent.
const (
	PoolClassAMC = "amc"
	PoolClassAWL = "awl" // reserved, not implemented
)

// Pool a typed region of the arena bound to one object format and the
// generation chain. Pools are moving: the collector may relocate
// objects at any safe point. Interior pointers are not supported.
type Pool struct {
	phase int32 // 64-bit aligned, one of Pool* above

	arena     *Arena
	name      string
	format    *api.Format
	segs      []*segment // owned segments, unordered
	logprefix string
}

// NewPool create a pool on this arena for objects of the given
// format. Fatal if the format cannot support moving collection.
func (arena *Arena) NewPool(name string, format *api.Format) *Pool {
	if format.Size < MarkerSize {
		panicerr("mem.pool %q: object size %v below marker size %v",
			name, format.Size, MarkerSize)
	} else if format.Size%Alignment != 0 {
		panicerr("mem.pool %q: object size %v not %v byte aligned",
			name, format.Size, Alignment)
	} else if format.Scan == nil || format.Skip == nil ||
		format.Forward == nil || format.IsForwarded == nil ||
		format.IsPadding == nil || format.Pad == nil {
		panicerr("mem.pool %q: incomplete format", name)
	}
	pool := &Pool{
		arena:     arena,
		name:      name,
		format:    format,
		logprefix: fmt.Sprintf("POOL [%v]", name),
	}
	arena.mu.Lock()
	arena.pools = append(arena.pools, pool)
	arena.mu.Unlock()
	return pool
}

// Name of this pool.
func (pool *Pool) Name() string {
	return pool.name
}

// Phase current collection phase of this pool.
func (pool *Pool) Phase() int32 {
	return atomic.LoadInt32(&pool.phase)
}

// Allocated bytes currently committed across the pool's segments.
func (pool *Pool) Allocated() int64 {
	pool.arena.mu.Lock()
	defer pool.arena.mu.Unlock()

	allocated := int64(0)
	for _, seg := range pool.segs {
		allocated += int64(seg.committed - seg.base)
	}
	return allocated
}

// Walk call fn for every committed object in the pool, skipping
// forwarding and padding markers. Call only under a parked arena.
func (pool *Pool) Walk(fn func(addr uintptr)) {
	arena := pool.arena
	arena.mu.Lock()
	defer arena.mu.Unlock()
	if arena.parked == 0 {
		panicerr("%v: Walk on unparked arena", pool.logprefix)
	}
	for _, seg := range pool.segs {
		for addr := seg.base; addr < seg.committed; addr = pool.format.Skip(addr) {
			if pool.format.IsForwarded(addr) != 0 || pool.format.IsPadding(addr) {
				continue
			}
			fn(addr)
		}
	}
}

// segment a contiguous generation-tagged run of objects of one
// format. [base, committed) is formatted end to end; [committed,
// limit) is raw space owned by the attached allocation point, or
// padding once the segment is retired.
type segment struct {
	pool   *Pool
	gen    int
	region *vmRegion
	base   uintptr
	limit  uintptr

	// commit frontier. Written by the owning mutator under the
	// shield, read by the collector holding the shield exclusively.
	committed uintptr

	ap      *AP // attached allocation point, nil once retired
	marks   bitmap
	pins    bitmap
	npinned int
}

func (pool *Pool) newsegment(gen int, size uintptr) *segment {
	arena := pool.arena
	if arena.reserve(int64(size)) == false {
		panic(ErrorOutofMemory)
	}
	region := vmMap(size)
	if arena.debugpool {
		initblock(region.base, size)
	}
	seg := &segment{
		pool:      pool,
		gen:       gen,
		region:    region,
		base:      region.base,
		limit:     region.base + size,
		committed: region.base,
	}
	pool.segs = append(pool.segs, seg)
	arena.addseg(seg)
	return seg
}

func (seg *segment) free() {
	pool := seg.pool
	for i, s := range pool.segs {
		if s == seg {
			pool.segs = append(pool.segs[:i], pool.segs[i+1:]...)
			break
		}
	}
	pool.arena.removeseg(seg)
	pool.arena.unreserve(int64(seg.limit - seg.base))
	seg.region.vmUnmap()
}

// retire detach the segment from its allocation point and pad the
// raw tail so the segment is formatted end to end. Padding is laid
// down slot by slot: scanners walk fixed-size pools with a fixed
// stride, so every object slot must begin with its own marker.
func (seg *segment) retire() {
	if seg.ap != nil {
		seg.ap = nil
	}
	size := seg.pool.format.Size
	addr := seg.committed
	for ; addr+size <= seg.limit; addr += size {
		seg.pool.format.Pad(addr, size)
	}
	if hole := seg.limit - addr; hole > 0 {
		if hole%Alignment != 0 {
			panicerr("%v: tail hole %v not paddable", seg.pool.logprefix, hole)
		}
		seg.pool.format.Pad(addr, hole)
	}
	seg.committed = seg.limit
}

func (seg *segment) contains(addr uintptr) bool {
	return addr >= seg.base && addr < seg.limit
}

// objectbase return addr if it is the base of a committed object slot
// in this segment, else 0. Interior pointers are rejected.
func (seg *segment) objectbase(addr uintptr) uintptr {
	if addr < seg.base || addr >= seg.committed {
		return 0
	}
	if (addr-seg.base)%seg.pool.format.Size != 0 {
		return 0
	}
	return addr
}

func (seg *segment) slot(addr uintptr) int {
	return int((addr - seg.base) / seg.pool.format.Size)
}

// bitmap one bit per object slot, allocated lazily per cycle.
type bitmap []uint64

func makebitmap(nslots int) bitmap {
	return make(bitmap, (nslots+63)/64)
}

func (bm bitmap) has(slot int) bool {
	return bm[slot>>6]&(1<<(uint(slot)&63)) != 0
}

func (bm bitmap) set(slot int) {
	bm[slot>>6] |= 1 << (uint(slot) & 63)
}

// addseg keep the arena wide segment index sorted by base for Fix1
// lookups.
func (arena *Arena) addseg(seg *segment) {
	i := sort.Search(len(arena.segs), func(i int) bool {
		return arena.segs[i].base > seg.base
	})
	arena.segs = append(arena.segs, nil)
	copy(arena.segs[i+1:], arena.segs[i:])
	arena.segs[i] = seg
}

func (arena *Arena) removeseg(seg *segment) {
	for i, s := range arena.segs {
		if s == seg {
			arena.segs = append(arena.segs[:i], arena.segs[i+1:]...)
			return
		}
	}
	panicerr("%v: removeseg: unknown segment %x", arena.logprefix, seg.base)
}

// findseg binary search the segment containing addr, nil if addr is
// not managed memory.
func (arena *Arena) findseg(addr uintptr) *segment {
	segs := arena.segs
	i := sort.Search(len(segs), func(i int) bool {
		return segs[i].limit > addr
	})
	if i < len(segs) && segs[i].contains(addr) {
		return segs[i]
	}
	return nil
}
