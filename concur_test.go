package igc

import "sync"
import "sync/atomic"
import "testing"
import "time"

import "github.com/bnclabs/goigc/api"

// cons stress: mutator threads chain conses behind their value
// stacks while a third goroutine drives idle ticks. Every thread's
// final list holds exactly its allocations in descending order.
func TestConsStress(t *testing.T) {
	nroutines, repeat := 2, 100000
	if testing.Short() {
		repeat = 10000
	}

	gc := Init(testsettings())
	defer gc.Close()

	var stop int64
	var idlewg sync.WaitGroup
	idlewg.Add(1)
	go func() {
		defer idlewg.Done()
		for atomic.LoadInt64(&stop) == 0 {
			gc.OnIdle()
			time.Sleep(5 * time.Millisecond)
		}
	}()

	threads := make([]*Thread, nroutines)
	var wg sync.WaitGroup
	wg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		threads[n] = gc.ThreadAdd()
		go func(thr *Thread) {
			defer wg.Done()
			thr.Push(Nil) // accumulator
			for i := 0; i < repeat; i++ {
				cons := thr.MakeCons(api.MakeFixnum(int64(i)), thr.Top(0))
				thr.Pop()
				thr.Push(cons)
			}
		}(threads[n])
	}
	wg.Wait()
	atomic.StoreInt64(&stop, 1)
	idlewg.Wait()

	for n, thr := range threads {
		release := gc.InhibitGC()
		count, want := 0, int64(repeat-1)
		for head := thr.Top(0); head != Nil; head = gc.Cdr(head) {
			if x := gc.Car(head); x.Fixnum() != want {
				t.Fatalf("thread %v: expected %v, got %v", n, want, x.Fixnum())
			}
			want--
			count++
		}
		if count != repeat {
			t.Errorf("thread %v: expected %v cells, got %v", n, repeat, count)
		}
		release()
		thr.Pop()
		gc.ThreadRemove(thr)
	}
	t.Logf("%v", gc.Arena().Stats())
}

// binding-stack growth under a parked collector while another thread
// keeps allocating: all frames and all conses stay live.
func TestSpecpdlGrowConcurrent(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()

	var stop int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() { // allocating thread
		defer wg.Done()
		thr := gc.ThreadAdd()
		thr.Push(Nil)
		for atomic.LoadInt64(&stop) == 0 {
			cons := thr.MakeCons(api.MakeFixnum(1), thr.Top(0))
			thr.Pop()
			thr.Push(cons)
		}
		thr.Pop()
		gc.ThreadRemove(thr)
	}()
	wg.Add(1)
	go func() { // idle ticks
		defer wg.Done()
		for atomic.LoadInt64(&stop) == 0 {
			gc.OnIdle()
			time.Sleep(time.Millisecond)
		}
	}()

	binder := gc.ThreadAdd()
	n := 10000
	for i := 0; i < n; i++ {
		val := binder.MakeCons(api.MakeFixnum(int64(i)), Nil)
		binder.PushBinding(gc.BuiltinSymbol(1), val)
	}
	atomic.StoreInt64(&stop, 1)
	wg.Wait()

	gc.Arena().Collect()
	for i := 0; i < n; i++ {
		b := binder.Binding(i)
		if x := gc.Car(b.OldValue); x.Fixnum() != int64(i) {
			t.Fatalf("binding %v: expected %v, got %v", i, i, x.Fixnum())
		}
	}
	for i := 0; i < n; i++ {
		binder.PopBinding()
	}
	gc.ThreadRemove(binder)
}
