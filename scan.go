package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"

// Forwarding and padding markers are identified by one-word
// signatures unique to this process: the addresses of two private
// statics. No real object can start with either word, conses and
// symbols start with a tagged value and both signatures are untagged
// addresses of Go statics outside every pool.
var fwdsigbyte, padsigbyte byte

func fwdsig() uintptr { return uintptr(unsafe.Pointer(&fwdsigbyte)) }
func padsig() uintptr { return uintptr(unsafe.Pointer(&padsigbyte)) }

type fwdmarker struct {
	sig uintptr
	new uintptr
}

type padmarker struct {
	sig uintptr
}

func forward(old, new uintptr) {
	*(*fwdmarker)(unsafe.Pointer(old)) = fwdmarker{sig: fwdsig(), new: new}
}

func isforwarded(addr uintptr) uintptr {
	m := (*fwdmarker)(unsafe.Pointer(addr))
	if m.sig == fwdsig() {
		return m.new
	}
	return 0
}

func pad(addr uintptr, size uintptr) {
	if size < unsafe.Sizeof(padmarker{}) {
		panicerr("igc: pad of %v bytes at %x", size, addr)
	}
	*(*padmarker)(unsafe.Pointer(addr)) = padmarker{sig: padsig()}
	filler := [8]byte{'p', 'a', 'd', 'd', 'i', 'n', 'g', 0}
	p := addr + unsafe.Sizeof(padmarker{})
	for end := addr + size; p < end; {
		n := uintptr(len(filler))
		if end-p < n {
			n = end - p
		}
		dst := unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
		copy(dst, filler[:n])
		p += n
	}
}

func ispadding(addr uintptr) bool {
	return (*padmarker)(unsafe.Pointer(addr)).sig == padsig()
}

// fix apply the fix protocol to the reference slot at p: decode tag
// and payload, ignore immediates, resolve the symbol offset against
// the table base, consult the collector, and re-encode on update.
// Tag preserving by construction.
func (gc *IGC) fix(ss api.ScanState, p *Word) error {
	word := *p
	if word.IsImmediate() {
		return nil
	}
	tag := word.Tag()
	ref := word.Payload()
	if tag == api.TagSymbol {
		ref += gc.symbase
	}
	if ss.Fix1(ref) == false {
		return nil
	}
	if err := ss.Fix2(&ref); err != nil {
		return err
	}
	if tag == api.TagSymbol {
		ref -= gc.symbase
	}
	*p = api.Make(ref, tag)
	return nil
}

// consFormat the object format of the cons pool.
func (gc *IGC) consFormat() *api.Format {
	return &api.Format{
		Name: "cons",
		Size: ConsSize,
		Scan: func(ss api.ScanState, base, limit uintptr) error {
			for addr := base; addr < limit; addr += ConsSize {
				if isforwarded(addr) != 0 || ispadding(addr) {
					continue
				}
				cons := (*Cons)(unsafe.Pointer(addr))
				if err := gc.fix(ss, &cons.Car); err != nil {
					return err
				}
				if err := gc.fix(ss, &cons.Cdr); err != nil {
					return err
				}
			}
			return nil
		},
		Skip:        func(addr uintptr) uintptr { return addr + ConsSize },
		Forward:     forward,
		IsForwarded: isforwarded,
		IsPadding:   ispadding,
		Pad:         pad,
	}
}

// symbolFormat the object format of the symbol pool. The value slot
// is fixed only for plain-value symbols; other redirects keep their
// value outside the managed heap.
func (gc *IGC) symbolFormat() *api.Format {
	return &api.Format{
		Name: "symbol",
		Size: SymbolSize,
		Scan: func(ss api.ScanState, base, limit uintptr) error {
			for addr := base; addr < limit; addr += SymbolSize {
				if isforwarded(addr) != 0 || ispadding(addr) {
					continue
				}
				sym := (*Symbol)(unsafe.Pointer(addr))
				if err := gc.fix(ss, &sym.Name); err != nil {
					return err
				}
				if sym.Redirect.Fixnum() == RedirectPlain {
					if err := gc.fix(ss, &sym.Value); err != nil {
						return err
					}
				}
				if err := gc.fix(ss, &sym.Function); err != nil {
					return err
				}
				if err := gc.fix(ss, &sym.Plist); err != nil {
					return err
				}
				if err := gc.fix(ss, &sym.Package); err != nil {
					return err
				}
			}
			return nil
		},
		Skip:        func(addr uintptr) uintptr { return addr + SymbolSize },
		Forward:     forward,
		IsForwarded: isforwarded,
		IsPadding:   ispadding,
		Pad:         pad,
	}
}

// scanstaticvec scan the static reference vector: each slot is a
// pointer to a value cell, null slots are skipped.
func (gc *IGC) scanstaticvec(ss api.ScanState, start, end uintptr, closure interface{}) error {
	for _, p := range gc.staticvec {
		if p == nil {
			continue
		}
		if err := gc.fix(ss, p); err != nil {
			return err
		}
	}
	return nil
}
