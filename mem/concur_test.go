package mem

import "sync"
import "sync/atomic"
import "testing"
import "unsafe"

import s "github.com/bnclabs/gosettings"

// Mutators chain allocations behind per-thread root cells while a
// separate goroutine drives the collector. Chains must stay complete
// through any number of cycles.
func TestConcur(t *testing.T) {
	nroutines, repeat := 4, 20000

	arena, pool := testarena(s.Settings{
		"gen0.capacity": int64(64), // kilobytes, collect often
	})
	defer arena.Destroy()

	rootvec := make([]uintptr, nroutines)
	base := uintptr(unsafe.Pointer(&rootvec[0]))
	arena.CreateAmbigRoot(base, base+uintptr(nroutines)*8)

	var stop int64
	var stepwg sync.WaitGroup
	stepwg.Add(1)
	go func() {
		defer stepwg.Done()
		for atomic.LoadInt64(&stop) == 0 {
			arena.Step(arena.Quantum())
		}
	}()

	var wg sync.WaitGroup
	wg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go func(n int) {
			defer wg.Done()
			thr := arena.RegisterThread(uintptr(0x1000 * (n + 1)))
			ap := pool.NewAP(thr)
			for i := 0; i < repeat; i++ {
				// the previous head stays pinned through the
				// root cell while the new object links to it.
				arena.ShieldEnter()
				head := rootvec[n]
				arena.ShieldLeave()
				addr := talloc(ap, head, uintptr(i))
				arena.ShieldEnter()
				rootvec[n] = addr
				arena.ShieldLeave()
			}
			ap.Destroy()
			arena.DeregisterThread(thr)
		}(n)
	}
	wg.Wait()
	atomic.StoreInt64(&stop, 1)
	stepwg.Wait()

	arena.Collect()
	for n := 0; n < nroutines; n++ {
		count, addr := 0, rootvec[n]
		val := uintptr(repeat - 1)
		for addr != 0 {
			if x := tat(addr).val; x != val {
				t.Fatalf("chain %v: expected %v, got %v", n, val, x)
				break
			}
			val--
			count++
			addr = tat(addr).ref
		}
		if count != repeat {
			t.Errorf("chain %v: expected %v links, got %v", n, repeat, count)
		}
	}
	t.Logf("%v", arena)
}
