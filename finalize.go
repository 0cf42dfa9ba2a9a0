package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"
import "github.com/bnclabs/goigc/mem"

// MakeFinalizer allocate a finalizable object whose callback runs
// once, after the collector finds no strong reference to the object.
// The object is a cons carrying the callback id as an immediate in
// its car; the callback itself lives outside the managed heap.
func (t *Thread) MakeFinalizer(fn func()) Word {
	gc := t.gc
	gc.finmu.Lock()
	gc.finid++
	id := gc.finid
	gc.finfns[id] = fn
	gc.finmu.Unlock()

	fin := t.MakeCons(api.MakeFixnum(id), Nil)
	t.Push(fin) // keep it pinned while registering
	gc.arena.Finalize(t.Top(0).Payload())
	t.Pop()
	return fin
}

// HandleMessages drain the finalization channel: for every message
// read the referent, and if it still has a callback, clear it and
// run it. Called from idle ticks and from explicit polls; safe from
// any thread.
func (gc *IGC) HandleMessages() {
	// parked while draining, so a referent address handed out in a
	// message cannot go stale before its callback runs.
	release := gc.InhibitGC()
	defer release()
	for {
		msg, ok := gc.arena.MessagePoll()
		if ok == false {
			return
		}
		switch msg.Kind {
		case mem.KindFinalization:
			gc.dofinalize(msg.Ref)
		default:
			panicerr("%v: unknown message kind %v", gc.logprefix, msg.Kind)
		}
	}
}

func (gc *IGC) dofinalize(addr uintptr) {
	gc.arena.ShieldEnter()
	fin := (*Cons)(unsafe.Pointer(addr))
	word := fin.Car
	if word.IsImmediate() == false {
		gc.arena.ShieldLeave()
		return // already finalized
	}
	fin.Car = Nil // one-shot
	gc.arena.ShieldLeave()

	gc.finmu.Lock()
	fn := gc.finfns[word.Fixnum()]
	delete(gc.finfns, word.Fixnum())
	gc.finmu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnIdle advance the collector by its configured slice and drain
// finalizers. Cheap when there is no work.
func (gc *IGC) OnIdle() {
	gc.arena.Step(gc.arena.Quantum())
	gc.HandleMessages()
}
