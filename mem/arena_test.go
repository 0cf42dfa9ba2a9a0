package mem

import "testing"
import "unsafe"

import s "github.com/bnclabs/gosettings"

func TestNewArena(t *testing.T) {
	arena := NewArena(s.Settings{"capacity": int64(64 * 1024 * 1024)})
	defer arena.Destroy()

	if x := len(arena.Chain()); x != 2 {
		t.Errorf("expected %v generations, got %v", 2, x)
	}
	if x := arena.Chain()[0].Capacity(); x != 32000*1024 {
		t.Errorf("unexpected gen0 capacity %v", x)
	}
	if x := arena.Chain()[1].Mortality(); x != 0.4 {
		t.Errorf("unexpected gen1 mortality %v", x)
	}
	capacity, heap, alloc, overhead := arena.Info()
	if capacity != 64*1024*1024 {
		t.Errorf("unexpected capacity %v", capacity)
	} else if heap != 0 || alloc != 0 || overhead != 0 {
		t.Errorf("unexpected heap:%v alloc:%v overhead:%v", heap, alloc, overhead)
	}

	// panic cases
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewArena(s.Settings{"capacity": Maxarenasize + 1})
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewArena(s.Settings{"ngenerations": int64(0)})
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewArena(s.Settings{"gen0.mortality": 1.5})
	}()
}

func TestNewPool(t *testing.T) {
	arena := NewArena(s.Settings{})
	defer arena.Destroy()

	pool := arena.NewPool("tobj", testformat())
	if pool.Name() != "tobj" {
		t.Errorf("unexpected name %q", pool.Name())
	}
	if pool.Phase() != PoolIdle {
		t.Errorf("unexpected phase %v", pool.Phase())
	}

	// incomplete format
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		format := testformat()
		format.Scan = nil
		arena.NewPool("broken", format)
	}()
	// object too small for a forwarding marker
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		format := testformat()
		format.Size = 8
		arena.NewPool("tiny", format)
	}()
}

func TestParkRelease(t *testing.T) {
	arena := NewArena(s.Settings{})
	defer arena.Destroy()
	arena.NewPool("tobj", testformat())

	arena.Park()
	if arena.Collect() {
		t.Errorf("parked arena collected")
	}
	arena.Park() // parking nests
	arena.Release()
	if arena.Collect() {
		t.Errorf("parked arena collected")
	}
	arena.Release()
	if arena.Collect() == false {
		t.Errorf("released arena did not collect")
	}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		arena.Release()
	}()
}

func TestWithParkedUnwinds(t *testing.T) {
	arena := NewArena(s.Settings{})
	defer arena.Destroy()
	arena.NewPool("tobj", testformat())

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		arena.WithParked(func() {
			panic("boom")
		})
	}()
	// released on the panic path
	if arena.Collect() == false {
		t.Errorf("arena still parked after unwind")
	}
}

func TestThreadRegistry(t *testing.T) {
	arena := NewArena(s.Settings{})
	defer arena.Destroy()

	var stack [64]uintptr
	cold := uintptr(unsafe.Pointer(&stack[0]))
	thr := arena.RegisterThread(cold)
	if thr.Cold() != cold || thr.Hot() != cold {
		t.Errorf("unexpected extent [%x,%x)", thr.Cold(), thr.Hot())
	}
	thr.SetHot(cold + 8*8)
	if thr.Hot() != cold+8*8 {
		t.Errorf("unexpected hot %x", thr.Hot())
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		thr.SetHot(cold - 8)
	}()
	arena.DeregisterThread(thr)
}
