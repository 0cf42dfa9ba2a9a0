// Package igc integrates an incremental, generational, concurrent,
// moving garbage collector with a dynamically typed language runtime.
// It replaces a stop-the-world mark-sweep collector with a collector
// that overlaps tracing and copying with mutator execution, moves
// objects along a generation chain, and supports finalization.
//
// api:
//
// Tagged value words and the object format vtable shared between the
// integration layer and the collector engine.
//
// lib:
//
// Convenience functions usable by other packages. Package shall not
// import packages other than golang's standard packages.
//
// mem:
//
// The collector engine: virtual-memory backed arena, generation
// chain, moving pools, thread local allocation points, root and
// thread registries, finalization messages.
//
// The igc package itself is the runtime facing surface: hooks called
// by the block allocator, the thread layer, the binding stack, the
// display structures and the reader; the fix protocol scanners for
// conses, symbols and the exact root layouts; allocation entry
// points; the finalization channel; and the lifecycle controller
// with park/release and the scoped GC inhibit.
package igc
