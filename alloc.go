package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"

// MakeCons allocate a cons of (car, cdr) through the thread's
// allocation point: reserve, initialize every slot, commit, and
// retry the whole sequence when a collection flip invalidated the
// reservation. The arguments are protected on the value stack for
// the duration, so they stay pinned across a flip.
func (t *Thread) MakeCons(car, cdr Word) Word {
	t.Push(car)
	t.Push(cdr)
	var addr uintptr
	for {
		addr, _ = t.consap.Reserve(ConsSize)
		cons := (*Cons)(unsafe.Pointer(addr))
		cons.Car = t.Top(1)
		cons.Cdr = t.Top(0)
		if t.consap.Commit(addr, ConsSize) {
			break
		}
	}
	t.Pop()
	t.Pop()
	return api.Make(addr, api.TagCons)
}

// AllocSymbol allocate a fresh symbol. Every slot is initialized
// before commit: name, function, plist and package to nil, the value
// slot nil under a plain-value redirect.
func (t *Thread) AllocSymbol() Word {
	gc := t.gc
	var addr uintptr
	for {
		addr, _ = t.symap.Reserve(SymbolSize)
		sym := (*Symbol)(unsafe.Pointer(addr))
		sym.Name = Nil
		sym.Value = Nil
		sym.Function = Nil
		sym.Plist = Nil
		sym.Package = Nil
		sym.Redirect = api.MakeFixnum(RedirectPlain)
		if t.symap.Commit(addr, SymbolSize) {
			break
		}
	}
	return api.Make(addr-gc.symbase, api.TagSymbol)
}

// Car read the car of c under the software barrier.
func (gc *IGC) Car(c Word) Word {
	gc.arena.ShieldEnter()
	defer gc.arena.ShieldLeave()
	return xcons(c).Car
}

// Cdr read the cdr of c under the software barrier.
func (gc *IGC) Cdr(c Word) Word {
	gc.arena.ShieldEnter()
	defer gc.arena.ShieldLeave()
	return xcons(c).Cdr
}

// SetCar store v into the car of c under the software barrier.
func (gc *IGC) SetCar(c, v Word) {
	gc.arena.ShieldEnter()
	defer gc.arena.ShieldLeave()
	xcons(c).Car = v
}

// SetCdr store v into the cdr of c under the software barrier.
func (gc *IGC) SetCdr(c, v Word) {
	gc.arena.ShieldEnter()
	defer gc.arena.ShieldLeave()
	xcons(c).Cdr = v
}

// SymbolValue read a slot of the symbol s under the software
// barrier.
func (gc *IGC) SymbolValue(s Word) Word {
	gc.arena.ShieldEnter()
	defer gc.arena.ShieldLeave()
	return gc.SymbolAt(s).Value
}

// SetSymbolValue store v as the plain value of symbol s.
func (gc *IGC) SetSymbolValue(s, v Word) {
	gc.arena.ShieldEnter()
	defer gc.arena.ShieldLeave()
	sym := gc.SymbolAt(s)
	if sym.Redirect.Fixnum() != RedirectPlain {
		panicerr("%v: SetSymbolValue of redirected symbol", gc.logprefix)
	}
	sym.Value = v
}
