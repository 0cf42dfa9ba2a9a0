package mem

import "fmt"
import "os"
import "sync"
import "time"

import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"
import humanize "github.com/dustin/go-humanize"

import "github.com/bnclabs/goigc/lib"

// Arena the single process wide owner of all managed memory: the
// generation chain, the pools, the root and thread registries, the
// collector, and the finalization message queue.
type Arena struct {
	// structural lock: registries, segment lists, collector state.
	mu sync.Mutex

	// software barrier between mutator heap access and collection
	// quanta. Mutators enter shared around commits and managed
	// reads/writes, the collector enters exclusive for a cycle.
	shield sync.RWMutex

	chain   []*Generation
	pools   []*Pool
	segs    []*segment // all segments, sorted by base
	roots   *Root
	nroots  int64
	threads *Thread
	nthreads int64
	aps     []*AP

	parked   int
	symbase  uintptr
	reserved int64 // bytes of mapped segment memory

	msgq     messageQueue
	finals   map[uintptr]bool
	finalson bool

	// configuration
	capacity   int64
	buffersize uintptr
	segsize    uintptr
	quantum    time.Duration
	debugpool  bool
	telemetry  bool
	setts      s.Settings
	logprefix  string

	// statistics
	ncycles    int64
	nmoved     int64
	npinned    int64
	nreclaimed int64
	pauses     lib.PauseStats
}

// NewArena create the arena over a virtual memory backing. Settings
// are described by Defaultsettings(). Creation failure is fatal.
func NewArena(setts s.Settings) *Arena {
	setts = (s.Settings{}).Mixin(Defaultsettings(), setts)
	arena := &Arena{
		chain:      makechain(setts),
		finals:     make(map[uintptr]bool),
		capacity:   setts.Int64("capacity"),
		buffersize: uintptr(setts.Int64("buffer.size")),
		segsize:    uintptr(setts.Int64("segment.size")),
		quantum:    time.Duration(setts.Int64("step.quantum")) * time.Millisecond,
		debugpool:  setts.Bool("debug.pool"),
		telemetry:  setts.Bool("telemetry"),
		setts:      setts,
		logprefix:  "IGC [arena]",
	}
	if os.Getenv("IGC_TELEMETRY") != "" {
		arena.telemetry = true
	}
	arena.pauses = lib.NewPauseStats(arena.quantum.Nanoseconds())
	if arena.capacity <= 0 || arena.capacity > Maxarenasize {
		panicerr("%v: capacity %v out of (0,%v]",
			arena.logprefix, arena.capacity, Maxarenasize)
	} else if arena.buffersize%Alignment != 0 || arena.segsize%Alignment != 0 {
		panicerr("%v: buffer/segment size not %v byte aligned",
			arena.logprefix, Alignment)
	}

	if total, _, _ := getsysmem(); total > 0 && uint64(arena.capacity) > total {
		log.Warnf("%v capacity %v exceeds system memory %v\n",
			arena.logprefix, humanize.Bytes(uint64(arena.capacity)),
			humanize.Bytes(total))
	}
	log.Infof("%v started with %v across %v generations\n",
		arena.logprefix, humanize.Bytes(uint64(arena.capacity)),
		len(arena.chain))
	return arena
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return 0, 0, 0
	}
	return mem.Total, mem.Used, mem.Free
}

// Quantum the configured idle step budget.
func (arena *Arena) Quantum() time.Duration {
	return arena.quantum
}

// SetSymbolBase tell the fix protocol the base address of the
// built-in symbol table, so that symbol tagged payloads, which are
// offsets, can be resolved and re-encoded during scanning.
func (arena *Arena) SetSymbolBase(base uintptr) {
	arena.symbase = base
}

// SymbolBase the registered built-in symbol table base.
func (arena *Arena) SymbolBase() uintptr {
	return arena.symbase
}

// Chain the arena's generation chain.
func (arena *Arena) Chain() []*Generation {
	return arena.chain
}

// Park the arena: complete no further collector work until Release.
// Park nests. While parked, registries may be structurally mutated
// and commits never see a collection induced retry.
func (arena *Arena) Park() {
	arena.mu.Lock()
	arena.parked++
	arena.mu.Unlock()
}

// Release the arena from a previous Park.
func (arena *Arena) Release() {
	arena.mu.Lock()
	if arena.parked == 0 {
		arena.mu.Unlock()
		panicerr("%v: release of unparked arena", arena.logprefix)
	}
	arena.parked--
	arena.mu.Unlock()
}

// WithParked run fn while the arena is parked. The arena is released
// on every exit path, panics included.
func (arena *Arena) WithParked(fn func()) {
	arena.Park()
	defer arena.Release()
	fn()
}

// ShieldEnter enter the software barrier for reading or writing
// managed objects. Pairs with ShieldLeave.
func (arena *Arena) ShieldEnter() {
	arena.shield.RLock()
}

// ShieldLeave leave the software barrier.
func (arena *Arena) ShieldLeave() {
	arena.shield.RUnlock()
}

// Destroy tear the arena down: threads, roots, pools, and every
// mapped region. The arena cannot be used afterwards.
func (arena *Arena) Destroy() {
	for arena.threads != nil {
		arena.DeregisterThread(arena.threads)
	}
	arena.mu.Lock()
	for arena.roots != nil {
		arena.unlink(arena.roots)
	}
	for _, seg := range arena.segs {
		seg.region.vmUnmap()
	}
	arena.segs, arena.pools, arena.aps = nil, nil, nil
	arena.finals = nil
	arena.mu.Unlock()
	log.Infof("%v destroyed\n", arena.logprefix)
}

// Info memory accounting: configured capacity, mapped heap, bytes
// committed by mutators, and collector overhead.
func (arena *Arena) Info() (capacity, heap, alloc, overhead int64) {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	capacity = arena.capacity
	heap = arena.reserved
	for _, seg := range arena.segs {
		alloc += int64(seg.committed - seg.base)
		overhead += int64(len(seg.marks)+len(seg.pins)) * 8
	}
	return capacity, heap, alloc, overhead
}

// Stats collector statistics.
func (arena *Arena) Stats() map[string]interface{} {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	stats := map[string]interface{}{
		"ncycles":    arena.ncycles,
		"nmoved":     arena.nmoved,
		"npinned":    arena.npinned,
		"nreclaimed": arena.nreclaimed,
		"nroots":     arena.nroots,
		"nthreads":   arena.nthreads,
		"reserved":   arena.reserved,
	}
	for key, value := range arena.pauses.Stats() {
		stats["pauses."+key] = value
	}
	return stats
}

func (arena *Arena) reserve(size int64) bool {
	if arena.reserved+size > arena.capacity {
		return false
	}
	arena.reserved += size
	return true
}

func (arena *Arena) unreserve(size int64) {
	arena.reserved -= size
	if arena.reserved < 0 {
		panicerr("%v: negative reservation", arena.logprefix)
	}
}

func (arena *Arena) String() string {
	return fmt.Sprintf("%v segments:%v reserved:%v",
		arena.logprefix, len(arena.segs), arena.reserved)
}
