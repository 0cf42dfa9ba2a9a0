package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"

// MarkOldObjects hand every reference held in managed objects to a
// coexisting legacy collector's marker. Immediates and references
// into the managed pools are skipped; everything else is the old
// heap's business. Runs with the arena parked.
func (gc *IGC) MarkOldObjects(visit func(Word)) {
	mark := func(w Word) {
		if w.IsImmediate() {
			return
		}
		switch w.Tag() {
		case api.TagCons, api.TagSymbol:
			return // managed by this collector
		}
		visit(w)
	}

	gc.arena.WithParked(func() {
		gc.conspool.Walk(func(addr uintptr) {
			cons := (*Cons)(unsafe.Pointer(addr))
			mark(cons.Car)
			mark(cons.Cdr)
		})
		gc.sympool.Walk(func(addr uintptr) {
			sym := (*Symbol)(unsafe.Pointer(addr))
			mark(sym.Name)
			if sym.Redirect.Fixnum() == RedirectPlain {
				mark(sym.Value)
			}
			mark(sym.Function)
			mark(sym.Plist)
			mark(sym.Package)
		})
	})
}
