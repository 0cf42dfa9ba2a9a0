package mem

import "github.com/bnclabs/goigc/api"

// RootRank how a root is scanned.
type RootRank byte

const (
	// RankAmbig every word in the range is a potential reference;
	// targets are pinned, false positives retain garbage.
	RankAmbig RootRank = iota

	// RankExact the range is scanned by a type aware function;
	// references may be rewritten when targets move.
	RankExact
)

// Root an externally held region of memory the collector treats as
// live. Roots form a doubly linked registry owned by the arena. No
// two roots may overlap; replacing a grown root is done deregister
// first, register next, under a parked arena.
type Root struct {
	arena      *Arena
	prev, next *Root
	start, end uintptr
	rank       RootRank
	scan       api.AreaScanner
	closure    interface{}
	thread     *Thread // thread stack roots only
}

// CreateAmbigRoot register [start, end) for ambiguous scanning: value
// stacks, allocation stacks, loaded images, binding stacks.
func (arena *Arena) CreateAmbigRoot(start, end uintptr) *Root {
	root := &Root{arena: arena, start: start, end: end, rank: RankAmbig}
	arena.link(root)
	return root
}

// CreateExactRoot register [start, end) scanned by scanfn with the
// fix protocol; closure is passed through to scanfn.
func (arena *Arena) CreateExactRoot(
	start, end uintptr, scanfn api.AreaScanner, closure interface{}) *Root {

	if scanfn == nil {
		panicerr("%v: exact root without scanner", arena.logprefix)
	}
	root := &Root{
		arena: arena, start: start, end: end,
		rank: RankExact, scan: scanfn, closure: closure,
	}
	arena.link(root)
	return root
}

// CreateThreadRoot register the stack extent of thread t, scanned
// ambiguously from the cold end to the thread's current hot end.
func (arena *Arena) CreateThreadRoot(t *Thread, cold uintptr) *Root {
	root := &Root{
		arena: arena, start: cold, end: cold,
		rank: RankAmbig, thread: t,
	}
	arena.link(root)
	return root
}

// DestroyRoot remove root from the registry. Tolerates a running
// collector: marks already taken from this root stand for the cycle.
func (arena *Arena) DestroyRoot(root *Root) {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	arena.unlink(root)
}

// FindRoot lookup a root by its start address, for growable roots
// whose start is the only stable identifier. Nil if unknown.
func (arena *Arena) FindRoot(start uintptr) *Root {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	for root := arena.roots; root != nil; root = root.next {
		if root.start == start {
			return root
		}
	}
	return nil
}

// Range the [start, end) extent of this root. Thread stack roots
// report the live extent at call time.
func (root *Root) Range() (start, end uintptr) {
	if root.thread != nil {
		return root.start, root.thread.Hot()
	}
	return root.start, root.end
}

func (arena *Arena) link(root *Root) {
	start, end := root.start, root.end
	if root.thread == nil && start >= end {
		panicerr("%v: empty root [%x,%x)", arena.logprefix, start, end)
	}
	arena.mu.Lock()
	defer arena.mu.Unlock()
	for r := arena.roots; r != nil; r = r.next {
		s, e := r.start, r.end
		if r.thread != nil || root.thread != nil {
			continue // stack extents are disjoint by construction
		}
		if start < e && s < end {
			panicerr("%v: root [%x,%x) overlaps [%x,%x)",
				arena.logprefix, start, end, s, e)
		}
	}
	root.next = arena.roots
	if root.next != nil {
		root.next.prev = root
	}
	arena.roots = root
	arena.nroots++
}

func (arena *Arena) unlink(root *Root) {
	if root.arena != arena {
		panicerr("%v: deregister of unknown root", arena.logprefix)
	}
	if root.next != nil {
		root.next.prev = root.prev
	}
	if root.prev != nil {
		root.prev.next = root.next
	} else if arena.roots == root {
		arena.roots = root.next
	} else {
		panicerr("%v: deregister of unknown root", arena.logprefix)
	}
	root.prev, root.next, root.arena = nil, nil, nil
	arena.nroots--
}
