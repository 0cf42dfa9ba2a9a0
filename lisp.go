package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"

// Word re-export of the tagged value word, the currency of the whole
// integration layer.
type Word = api.Word

// Cons the managed cell of the cons pool: two reference slots.
type Cons struct {
	Car Word
	Cdr Word
}

// ConsSize object size of the cons pool.
const ConsSize = unsafe.Sizeof(Cons{})

// Symbol value redirect discriminants. Only RedirectPlain symbols
// hold their value in the Value slot; other redirects keep it in
// runtime structures outside the managed heap.
const (
	RedirectPlain int64 = iota
	RedirectVaralias
	RedirectLocalized
	RedirectForwarded
)

// Symbol the managed cell of the symbol pool. Redirect is an
// immediate discriminant, every other slot is a reference.
type Symbol struct {
	Name     Word
	Value    Word
	Function Word
	Plist    Word
	Package  Word
	Redirect Word
}

// SymbolSize object size of the symbol pool.
const SymbolSize = unsafe.Sizeof(Symbol{})

// Nil the distinguished nil value: the built-in symbol at offset 0.
const Nil = api.Nil

func xcons(w Word) *Cons {
	return (*Cons)(unsafe.Pointer(w.Payload()))
}

// BuiltinSymbol the tagged reference to the i-th built-in symbol.
// Symbol references carry table offsets, so built-ins survive
// generational copying of everything else without ever moving.
func (gc *IGC) BuiltinSymbol(i int) Word {
	if i < 0 || i >= len(gc.symtab) {
		panicerr("%v: builtin symbol %v out of [0,%v)", gc.logprefix, i, len(gc.symtab))
	}
	return api.Make(uintptr(i)*SymbolSize, api.TagSymbol)
}

// SymbolAt resolve a symbol reference to its cell, whether built-in
// or pool allocated.
func (gc *IGC) SymbolAt(w Word) *Symbol {
	if w.Tag() != api.TagSymbol {
		panicerr("%v: SymbolAt of non-symbol %x", gc.logprefix, uintptr(w))
	}
	return (*Symbol)(unsafe.Pointer(gc.symbase + w.Payload()))
}

// StaticPro record the static value cell at p so the collector keeps
// whatever it refers to alive. Cells survive for the process
// lifetime; there is no un-protect.
func (gc *IGC) StaticPro(p *Word) {
	if gc.staticidx >= len(gc.staticvec) {
		panicerr("%v: staticvec exhausted at %v entries", gc.logprefix, gc.staticidx)
	}
	gc.staticvec[gc.staticidx] = p
	gc.staticidx++
}

// Buffer the runtime's buffer-parameter block. The window between
// Name and the start of the text fields holds value words and is
// scanned; the rest is not.
type Buffer struct {
	Name      Word
	Directory Word
	Mode      Word
	Locals    Word
	Undo      Word

	// own text, never scanned.
	owntext [64]byte
}

func (b *Buffer) wordrange() (uintptr, uintptr) {
	start := uintptr(unsafe.Pointer(&b.Name))
	end := uintptr(unsafe.Pointer(&b.owntext))
	return start, end
}
