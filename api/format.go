package api

// ScanState is handed to every scan function by the collector. Fix1
// is the cheap membership filter, Fix2 the actual fix operation, as
// in the classical two step fix protocol.
type ScanState interface {
	// Fix1 return true if ref points into memory the collector is
	// currently interested in. Cheap, no side effects.
	Fix1(ref uintptr) bool

	// Fix2 fix the reference pointed to by ref. During marking this
	// records the target as live, during the fix pass it rewrites
	// *ref when the target has moved. A non-nil error, normally
	// ErrorFixRetry, aborts scanning of the enclosing area and the
	// collector will retry it.
	Fix2(ref *uintptr) error

	// Ambiguous return true while scanning an ambiguous area, in
	// which case targets are pinned and never rewritten.
	Ambiguous() bool
}

// AreaScanner scan the area [start, end) with the fix protocol.
// Closure is the value supplied when the root was registered.
type AreaScanner func(ss ScanState, start, end uintptr, closure interface{}) error

// Format is the object format vtable of a pool: how to walk objects,
// how to overwrite moved objects with forwarding markers and holes
// with padding markers.
type Format struct {
	// Name of the format, for diagnostics.
	Name string

	// Size of every object in the pool. Pools hold one concrete
	// type, objects have no self describing type field.
	Size uintptr

	// Scan walk objects in [base, limit) and apply the fix protocol
	// to every reference slot. Objects starting with a forwarding or
	// padding marker are skipped.
	Scan func(ss ScanState, base, limit uintptr) error

	// Skip return the address immediately after the object at addr.
	Skip func(addr uintptr) uintptr

	// Forward overwrite the object at old with a forwarding marker
	// to new. Never called twice for the same address.
	Forward func(old, new uintptr)

	// IsForwarded return the forwarding target of addr, or 0.
	IsForwarded func(addr uintptr) uintptr

	// IsPadding return true if addr holds a padding marker.
	IsPadding func(addr uintptr) bool

	// Pad fill [addr, addr+size) with a padding marker. Size is at
	// least the marker size and a multiple of the pool alignment.
	Pad func(addr uintptr, size uintptr)
}
