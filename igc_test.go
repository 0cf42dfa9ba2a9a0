package igc

import "testing"

import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goigc/api"

func testsettings() s.Settings {
	return s.Settings{
		"buffer.size":   int64(4096),
		"segment.size":  int64(4096),
		"gen0.capacity": int64(64), // kilobytes
		"gen1.capacity": int64(512),
		"specpdl.size":  int64(64),
		"stack.size":    int64(128),
	}
}

func TestInitClose(t *testing.T) {
	gc := Init(testsettings())
	if gc.Main() == nil {
		t.Errorf("no main thread")
	}
	if x := gc.BuiltinSymbol(0); x != Nil {
		t.Errorf("builtin 0 is not nil: %x", uintptr(x))
	}
	if sym := gc.SymbolAt(Nil); sym != &gc.symtab[0] {
		t.Errorf("nil does not resolve to the first built-in")
	}
	if gc.Arena() == nil {
		t.Errorf("no arena")
	}
	gc.Close()
}

func TestBuiltinSymbolStable(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.Main()

	sym := gc.BuiltinSymbol(5)
	gc.SetSymbolValue(sym, api.MakeFixnum(42))

	// a full collection leaves built-in offsets stable
	gc.Arena().Collect()
	if x := gc.BuiltinSymbol(5); x != sym {
		t.Errorf("builtin symbol moved: %x -> %x", uintptr(sym), uintptr(x))
	}
	if x := gc.SymbolValue(sym); x.Fixnum() != 42 {
		t.Errorf("expected 42, got %v", x.Fixnum())
	}

	// a pool symbol's offset keeps resolving after collections
	psym := thr.AllocSymbol()
	thr.Push(psym)
	gc.SetSymbolValue(psym, api.MakeFixnum(43))
	gc.Arena().Collect()
	if x := gc.SymbolValue(thr.Top(0)); x.Fixnum() != 43 {
		t.Errorf("expected 43, got %v", x.Fixnum())
	}
	thr.Pop()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		gc.BuiltinSymbol(len(gc.symtab))
	}()
}

func TestInhibitGC(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.Main()

	release := gc.InhibitGC()
	ncycles := gc.Arena().Stats()["ncycles"].(int64)
	thr.Push(Nil)
	for i := 0; i < 10000; i++ { // well past gen0's capacity
		cons := thr.MakeCons(api.MakeFixnum(int64(i)), thr.Top(0))
		thr.Pop()
		thr.Push(cons)
	}
	gc.OnIdle()
	if x := gc.Arena().Stats()["ncycles"].(int64); x != ncycles {
		t.Errorf("collection ran under inhibit: %v -> %v", ncycles, x)
	}
	thr.Pop()
	release()

	if gc.Arena().Step(gc.Arena().Quantum()) == false {
		t.Errorf("no progress after release")
	}
}

// entering an inhibit scope that unwinds with an error must release
// the collector on the way out.
func TestInhibitUnwinds(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.Main()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		func() {
			defer gc.InhibitGC()()
			panic("runtime error in critical region")
		}()
	}()

	// the collector makes progress again
	thr.Push(Nil)
	for i := 0; i < 10000; i++ {
		cons := thr.MakeCons(api.MakeFixnum(int64(i)), thr.Top(0))
		thr.Pop()
		thr.Push(cons)
	}
	thr.Pop()
	gc.OnIdle()
	if x := gc.Arena().Stats()["ncycles"].(int64); x < 1 {
		t.Errorf("collector still inhibited after unwind")
	}
}

func TestThreadAddRemove(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()

	threads := make([]*Thread, 0, 8)
	for i := 0; i < 8; i++ {
		threads = append(threads, gc.ThreadAdd())
	}
	for _, thr := range threads {
		thr.Push(api.MakeFixnum(7))
		if x := thr.Pop(); x.Fixnum() != 7 {
			t.Errorf("expected 7, got %v", x.Fixnum())
		}
		gc.ThreadRemove(thr)
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		gc.Main().Pop()
	}()
}

func TestValueStackGrows(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.ThreadAdd()
	defer gc.ThreadRemove(thr)

	// push past the initial stack.size, forcing a parked regrow
	for i := 0; i < 1000; i++ {
		thr.Push(api.MakeFixnum(int64(i)))
	}
	if x := thr.Depth(); x != 1000 {
		t.Errorf("expected depth 1000, got %v", x)
	}
	for i := 999; i >= 0; i-- {
		if x := thr.Pop(); x.Fixnum() != int64(i) {
			t.Errorf("expected %v, got %v", i, x.Fixnum())
		}
	}
}
