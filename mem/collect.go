package mem

import "sync/atomic"
import "time"
import "unsafe"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"

import "github.com/bnclabs/goigc/api"

const (
	modeMark = iota
	modeFix
)

type workitem struct {
	seg  *segment
	addr uintptr
}

// scanState the collector side of the fix protocol. One instance
// lives for one collection cycle.
type scanState struct {
	arena     *Arena
	mode      int
	ambig     bool
	condemned map[*segment]bool
	worklist  []workitem

	// relocation space per pool and destination generation,
	// refilled outside the fix protocol when Fix2 reports retry.
	tospace  map[*Pool][]*segment
	wantpool *Pool
	wantgen  int

	resurrected map[uintptr]bool
	moved       int64
	movedbytes  map[int]int64 // per destination generation
	pinned      int64
}

// Fix1 membership filter: is ref interesting to this cycle.
func (ss *scanState) Fix1(ref uintptr) bool {
	seg := ss.arena.findseg(ref)
	return seg != nil && ss.condemned[seg]
}

// Ambiguous implement api.ScanState.
func (ss *scanState) Ambiguous() bool {
	return ss.ambig
}

// Fix2 fix one reference. During marking, record the target live and
// pin it when the scan is ambiguous. During the fix pass, relocate
// the target if needed and rewrite the reference.
func (ss *scanState) Fix2(ref *uintptr) error {
	seg := ss.arena.findseg(*ref)
	if seg == nil || ss.condemned[seg] == false {
		return nil
	}
	base := seg.objectbase(*ref)
	if base == 0 {
		if ss.ambig {
			return nil // false positive, not an object boundary
		}
		panicerr("%v: exact reference %x into %q is not an object",
			ss.arena.logprefix, *ref, seg.pool.name)
	}

	switch ss.mode {
	case modeMark:
		slot := seg.slot(base)
		if ss.ambig && seg.pins.has(slot) == false {
			seg.pins.set(slot)
			seg.npinned++
			ss.pinned++
		}
		if seg.marks.has(slot) == false {
			seg.marks.set(slot)
			ss.worklist = append(ss.worklist, workitem{seg, base})
		}

	case modeFix:
		format := seg.pool.format
		if new := format.IsForwarded(base); new != 0 {
			*ref = new
			return nil
		}
		if seg.npinned > 0 {
			return nil // retained in place
		}
		if seg.marks.has(seg.slot(base)) == false {
			panicerr("%v: reference %x to unmarked object",
				ss.arena.logprefix, base)
		}
		new, err := ss.relocate(seg, base)
		if err != nil {
			return err
		}
		*ref = new
	}
	return nil
}

// relocate copy the object at base into relocation space of the next
// generation and leave a forwarding marker behind. ErrorFixRetry when
// relocation space is exhausted; the collector refills and retries
// the enclosing area.
func (ss *scanState) relocate(seg *segment, base uintptr) (uintptr, error) {
	pool, size := seg.pool, seg.pool.format.Size
	dstgen := seg.gen + 1
	if dstgen >= len(ss.arena.chain) {
		dstgen = len(ss.arena.chain) - 1
	}

	var dst *segment
	for _, t := range ss.tospace[pool] {
		if t.gen == dstgen && t.committed+size <= t.limit {
			dst = t
			break
		}
	}
	if dst == nil {
		ss.wantpool, ss.wantgen = pool, dstgen
		return 0, api.ErrorFixRetry
	}

	new := dst.committed
	srcsl := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	dstsl := unsafe.Slice((*byte)(unsafe.Pointer(new)), size)
	copy(dstsl, srcsl)
	dst.committed += size

	pool.format.Forward(base, new)
	ss.moved++
	if dstgen != seg.gen {
		ss.movedbytes[dstgen] += int64(size)
	}
	return new, nil
}

// refill add one relocation segment for the pool and generation the
// last Fix2 failed on.
func (ss *scanState) refill() {
	seg := ss.wantpool.newsegment(ss.wantgen, ss.arena.segsize)
	ss.tospace[ss.wantpool] = append(ss.tospace[ss.wantpool], seg)
}

// scanambig walk [start, end) treating every aligned machine word as
// a candidate tagged value and apply the fix protocol.
func (ss *scanState) scanambig(start, end uintptr) error {
	symbase := ss.arena.symbase
	for p := start; p+8 <= end; p += 8 {
		word := *(*uintptr)(unsafe.Pointer(p))
		tag := api.Word(word).Tag()
		if api.Word(word).IsImmediate() {
			continue
		}
		ref := api.Word(word).Payload()
		if tag == api.TagSymbol {
			ref += symbase
		}
		if ss.Fix1(ref) == false {
			continue
		}
		if err := ss.Fix2(&ref); err != nil {
			return err
		}
		// pinned targets never move, no write back needed.
	}
	return nil
}

// Collect run a full collection of every generation. No-op while the
// arena is parked.
func (arena *Arena) Collect() bool {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	if arena.parked > 0 {
		return false
	}
	gens := make([]int, len(arena.chain))
	for i := range arena.chain {
		gens[i] = i
	}
	arena.collect(gens)
	return true
}

// Step advance the collector by whole cycles. Each cycle condemns the
// oldest due generation together with every younger one; cycles repeat
// while a generation is due. The budget is checked only after a cycle
// completes, so one cycle may run past it. Cheap when there is no
// work. Returns true if any collection ran.
func (arena *Arena) Step(budget time.Duration) bool {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	if arena.parked > 0 {
		return false
	}

	progressed, deadline := false, time.Now().Add(budget)
	for {
		oldest := -1
		for i, gen := range arena.chain {
			if gen.due() {
				oldest = i
			}
		}
		if oldest < 0 {
			return progressed
		}
		gens := make([]int, 0, oldest+1)
		for i := 0; i <= oldest; i++ {
			gens = append(gens, i)
		}
		arena.collect(gens)
		progressed = true
		if time.Now().After(deadline) {
			return progressed
		}
	}
}

// collect one cycle over the condemned generations. Caller holds mu.
func (arena *Arena) collect(gens []int) {
	t0 := time.Now()
	arena.shield.Lock()
	defer arena.shield.Unlock()

	condemnedgen := make(map[int]bool)
	for _, g := range gens {
		condemnedgen[g] = true
	}

	// flip: invalidate in-progress reservations. Attached buffers
	// stay out of the condemned set and are retired by their owner
	// at the next reserve.
	for _, ap := range arena.aps {
		atomic.StoreInt32(&ap.tripped, 1)
	}

	condemned := make(map[*segment]bool)
	for _, seg := range arena.segs {
		if condemnedgen[seg.gen] && seg.ap == nil {
			condemned[seg] = true
		}
	}

	ss := &scanState{
		arena:       arena,
		mode:        modeMark,
		condemned:   condemned,
		tospace:     make(map[*Pool][]*segment),
		resurrected: make(map[uintptr]bool),
		movedbytes:  make(map[int]int64),
	}

	for _, pool := range arena.pools {
		atomic.StoreInt32(&pool.phase, PoolMarking)
	}
	arena.mark(ss)

	for _, pool := range arena.pools {
		atomic.StoreInt32(&pool.phase, PoolRelocating)
	}
	arena.fix(ss)
	arena.finalcycle(ss)
	arena.reclaim(ss, condemnedgen)

	for _, pool := range arena.pools {
		atomic.StoreInt32(&pool.phase, PoolIdle)
	}

	elapsed := time.Since(t0)
	arena.ncycles++
	arena.nmoved += ss.moved
	arena.npinned += ss.pinned
	arena.pauses.Add(int64(elapsed))
	arena.tracecycle(ss, gens, elapsed)
}

// mark trace the live subgraph of the condemned segments: ambiguous
// roots pin, exact roots and uncondemned segments are scanned with
// the type aware scanners, then the worklist is drained.
func (arena *Arena) mark(ss *scanState) {
	for seg := range ss.condemned {
		// one extra slot for a sub-slot padding tail.
		nslots := int((seg.limit-seg.base)/seg.pool.format.Size) + 1
		seg.marks, seg.pins = makebitmap(nslots), makebitmap(nslots)
		seg.npinned = 0
	}

	scanroot := func(root *Root) {
		start, end := root.Range()
		switch root.rank {
		case RankAmbig:
			ss.ambig = true
			if err := ss.scanambig(start, end); err != nil {
				panicerr("%v: mark: %v", arena.logprefix, err)
			}
			ss.ambig = false
		case RankExact:
			if err := root.scan(ss, start, end, root.closure); err != nil {
				panicerr("%v: mark: %v", arena.logprefix, err)
			}
		}
	}
	for root := arena.roots; root != nil; root = root.next {
		scanroot(root)
	}

	// old to young references: every uncondemned committed object
	// is treated as live.
	for _, seg := range arena.segs {
		if ss.condemned[seg] {
			continue
		}
		err := seg.pool.format.Scan(ss, seg.base, seg.committed)
		if err != nil {
			panicerr("%v: mark: %v", arena.logprefix, err)
		}
	}

	arena.drain(ss)

	// resurrect unreachable finalizable objects for one last cycle.
	for addr := range arena.finals {
		seg := arena.findseg(addr)
		if seg == nil {
			panicerr("%v: finalizable %x not managed", arena.logprefix, addr)
		}
		if ss.condemned[seg] == false {
			continue
		}
		slot := seg.slot(addr)
		if seg.marks.has(slot) == false {
			seg.marks.set(slot)
			ss.worklist = append(ss.worklist, workitem{seg, addr})
			ss.resurrected[addr] = true
		}
	}

	// undrained finalization messages keep their referents alive.
	for _, msg := range arena.msgq.msgs {
		seg := arena.findseg(msg.Ref)
		if seg == nil || ss.condemned[seg] == false {
			continue
		}
		slot := seg.slot(msg.Ref)
		if seg.marks.has(slot) == false {
			seg.marks.set(slot)
			ss.worklist = append(ss.worklist, workitem{seg, msg.Ref})
		}
	}
	arena.drain(ss)
}

func (arena *Arena) drain(ss *scanState) {
	for len(ss.worklist) > 0 {
		item := ss.worklist[len(ss.worklist)-1]
		ss.worklist = ss.worklist[:len(ss.worklist)-1]
		format := item.seg.pool.format
		err := format.Scan(ss, item.addr, item.addr+format.Size)
		if err != nil {
			panicerr("%v: drain: %v", arena.logprefix, err)
		}
	}
}

// fix relocate survivors and rewrite references. Dead objects in
// retained segments are padded over first so the fix pass never
// walks into them. Scanning is repeated per area when Fix2 runs out
// of relocation space.
func (arena *Arena) fix(ss *scanState) {
	ss.mode = modeFix

	for seg := range ss.condemned {
		if seg.npinned == 0 {
			continue
		}
		format := seg.pool.format
		for addr := seg.base; addr < seg.committed; addr += format.Size {
			if format.IsPadding(addr) {
				continue
			}
			if seg.marks.has(seg.slot(addr)) == false {
				format.Pad(addr, format.Size)
			}
		}
	}

	rescan := func(scan func() error) {
		for {
			err := scan()
			if err == nil {
				return
			} else if err == api.ErrorFixRetry {
				ss.refill()
				continue
			}
			panicerr("%v: fix: %v", arena.logprefix, err)
		}
	}

	for root := arena.roots; root != nil; root = root.next {
		if root.rank != RankExact {
			continue // pinned targets of ambiguous roots stay put
		}
		root := root
		rescan(func() error {
			start, end := root.Range()
			return root.scan(ss, start, end, root.closure)
		})
	}

	// resurrected finalizable objects and referents of undrained
	// messages are held by no reference; relocate them directly so
	// finalcycle can chase their forwarding markers.
	for addr := range ss.resurrected {
		ref := addr
		rescan(func() error { return ss.Fix2(&ref) })
	}
	for i := range arena.msgq.msgs {
		ref := arena.msgq.msgs[i].Ref
		rescan(func() error { return ss.Fix2(&ref) })
	}

	// every live segment, including relocation segments appended
	// during this very pass, until a fixpoint is reached.
	scanfront := make(map[*segment]uintptr)
	for {
		clean := true
		for _, seg := range arena.segs {
			if ss.condemned[seg] && seg.npinned == 0 {
				continue // contents move, copies are scanned instead
			}
			front, ok := scanfront[seg]
			if ok == false {
				front = seg.base
			}
			if front >= seg.committed {
				continue
			}
			clean = false
			seg := seg
			rescan(func() error {
				limit := seg.committed
				err := seg.pool.format.Scan(ss, front, limit)
				if err == nil {
					scanfront[seg] = limit
				}
				return err
			})
		}
		if clean {
			return
		}
	}
}

// finalcycle post finalization messages for resurrected objects,
// re-key registrations of moved survivors, and chase forwarded
// referents of undrained messages.
func (arena *Arena) finalcycle(ss *scanState) {
	for i := range arena.msgq.msgs {
		ref := arena.msgq.msgs[i].Ref
		if seg := arena.findseg(ref); seg != nil && ss.condemned[seg] {
			if new := seg.pool.format.IsForwarded(ref); new != 0 {
				arena.msgq.msgs[i].Ref = new
			}
		}
	}
	for addr := range arena.finals {
		seg := arena.findseg(addr)
		if ss.condemned[seg] == false {
			continue
		}
		newaddr := addr
		if new := seg.pool.format.IsForwarded(addr); new != 0 {
			newaddr = new
		}
		delete(arena.finals, addr)
		if ss.resurrected[addr] {
			if arena.finalson {
				arena.msgq.post(Message{Kind: KindFinalization, Ref: newaddr})
			}
			continue
		}
		arena.finals[newaddr] = true
	}
}

// reclaim return from-space segments to the OS, age retained
// segments, and restart generation accounting.
func (arena *Arena) reclaim(ss *scanState, condemnedgen map[int]bool) {
	lastgen := len(arena.chain) - 1
	reclaimed := int64(0)
	for seg := range ss.condemned {
		if seg.npinned == 0 {
			reclaimed += int64(seg.limit - seg.base)
			seg.free()
			continue
		}
		if seg.gen < lastgen {
			seg.gen++
		}
		seg.marks, seg.pins = nil, nil
	}
	for _, segs := range ss.tospace {
		for _, seg := range segs {
			if seg.committed == seg.base {
				seg.free() // unused relocation segment
				continue
			}
			seg.retire()
		}
	}
	for g := range condemnedgen {
		atomic.StoreInt64(&arena.chain[g].allocated, 0)
	}
	for g, nbytes := range ss.movedbytes {
		if condemnedgen[g] == false {
			atomic.AddInt64(&arena.chain[g].allocated, nbytes)
		}
	}
	arena.nreclaimed += reclaimed
}

// tracecycle telemetry channel for one cycle.
func (arena *Arena) tracecycle(ss *scanState, gens []int, elapsed time.Duration) {
	if arena.telemetry == false {
		return
	}
	log.Debugf("%v cycle %v gens %v: moved %v, pinned %v, reclaimed %v, "+
		"pause %v (recent %v, %v overruns)\n",
		arena.logprefix, arena.ncycles, gens, ss.moved, ss.pinned,
		humanize.Bytes(uint64(arena.nreclaimed)), elapsed,
		time.Duration(arena.pauses.Decayed()), arena.pauses.Overruns())
}
