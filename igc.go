package igc

import "fmt"
import "sync"
import "unsafe"

import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goigc/api"
import "github.com/bnclabs/goigc/mem"

// IGC the garbage collector integration for one runtime instance:
// arena, chain, the two moving pools with their formats, the static
// roots, the thread registry and the finalization channel.
type IGC struct {
	arena    *mem.Arena
	consfmt  *api.Format
	symfmt   *api.Format
	conspool *mem.Pool
	sympool  *mem.Pool

	symtab  []Symbol
	symbase uintptr

	staticvec  []*Word
	staticidx  int
	stackvec   []Word
	bufdefs    *Buffer
	buflocals  *Buffer

	thrmu   sync.Mutex
	threads *Thread
	main    *Thread

	xallocs map[uintptr][]uint64

	finmu  sync.Mutex
	finfns map[int64]func()
	finid  int64

	setts     s.Settings
	logprefix string
}

// Init build the arena, the generation chain, both pools with their
// formats, the static roots, and attach the main thread. Failures
// here are fatal; the runtime cannot proceed without its heap. Pair
// with Close at process exit.
func Init(setts s.Settings) *IGC {
	setts = (s.Settings{}).Mixin(Defaultsettings(), setts)
	gc := &IGC{
		setts:     setts,
		logprefix: "IGC [core]",
		xallocs:   make(map[uintptr][]uint64),
		finfns:    make(map[int64]func()),
	}
	gc.arena = mem.NewArena(setts)

	gc.consfmt = gc.consFormat()
	gc.symfmt = gc.symbolFormat()
	// conses have no type field which would let us recognize them
	// when mixed with other objects, so a dedicated pool. Same for
	// symbols.
	gc.conspool = gc.arena.NewPool("cons", gc.consfmt)
	gc.sympool = gc.arena.NewPool("symbol", gc.symfmt)

	gc.symtab = make([]Symbol, setts.Int64("symtab.size"))
	gc.symbase = uintptr(unsafe.Pointer(&gc.symtab[0]))
	gc.arena.SetSymbolBase(gc.symbase)

	gc.staticvec = make([]*Word, setts.Int64("staticvec.size"))
	gc.stackvec = make([]Word, 256)
	gc.bufdefs, gc.buflocals = &Buffer{}, &Buffer{}
	gc.addstaticroots()

	if setts.Bool("finalization") {
		gc.arena.EnableFinalization(true)
	}

	gc.main = gc.ThreadAdd()
	log.Infof("%v started, symtab %v entries\n", gc.logprefix, len(gc.symtab))
	return gc
}

// Close tear the collector down. All threads, roots, pools and the
// arena itself are destroyed; no igc call is valid afterwards.
func (gc *IGC) Close() {
	for gc.threads != nil {
		gc.ThreadRemove(gc.threads)
	}
	gc.arena.Destroy()
	log.Infof("%v closed\n", gc.logprefix)
}

// Arena expose the engine, for the hooks that park and for tests.
func (gc *IGC) Arena() *mem.Arena {
	return gc.arena
}

// Main the thread record attached by Init.
func (gc *IGC) Main() *Thread {
	return gc.main
}

// Break no-op hook for attaching a debugger.
func Break() {
}

// addstaticroots register all statically known roots: the built-in
// symbol table, the static reference vector, the value-stack vector
// and both default buffer-parameter blocks.
func (gc *IGC) addstaticroots() {
	base := uintptr(unsafe.Pointer(&gc.symtab[0]))
	gc.arena.CreateAmbigRoot(base, base+uintptr(len(gc.symtab))*SymbolSize)

	svbase := uintptr(unsafe.Pointer(&gc.staticvec[0]))
	svend := svbase + uintptr(len(gc.staticvec))*unsafe.Sizeof((*Word)(nil))
	gc.arena.CreateExactRoot(svbase, svend, gc.scanstaticvec, nil)

	vsbase := uintptr(unsafe.Pointer(&gc.stackvec[0]))
	gc.arena.CreateAmbigRoot(vsbase, vsbase+uintptr(len(gc.stackvec))*8)

	gc.addbufferroot(gc.bufdefs)
	gc.addbufferroot(gc.buflocals)
}

func (gc *IGC) addbufferroot(b *Buffer) {
	start, end := b.wordrange()
	gc.arena.CreateAmbigRoot(start, end)
}

// BufferDefaults the default buffer-parameter block.
func (gc *IGC) BufferDefaults() *Buffer {
	return gc.bufdefs
}

// BufferLocalSymbols the buffer-local symbol block.
func (gc *IGC) BufferLocalSymbols() *Buffer {
	return gc.buflocals
}

// Stackvec the value-stack vector registered as a static root.
// Values stored here stay live without a thread stack.
func (gc *IGC) Stackvec() []Word {
	return gc.stackvec
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
