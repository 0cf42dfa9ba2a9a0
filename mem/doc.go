// Package mem implements the collector engine behind the runtime's
// garbage collected heap: a virtual-memory backed arena carved into
// generations and moving pools, with thread local allocation points,
// a registry of ambiguous and exact roots, an incremental collector
// that relocates surviving objects along the generation chain, and a
// finalization message queue.
//
// Arena is the single process wide owner of all managed memory. To
// improve locality and to let the collector move objects, pools are
// divided into segments, where each segment holds equal sized objects
// of one format and belongs to one generation. Arenas are created
// with the following parameters:
//
//	capacity    : upper bound of managed memory in bytes.
//	generations : chain of {capacity, mortality} parameters.
//	buffer.size : size of thread local allocation buffers.
//
// Mutators allocate through allocation points using the reserve,
// initialize, commit protocol. A collection flip between reserve and
// commit invalidates the reservation and commit reports retry.
//
// Types and functions exported by this package are not necessarily
// thread safe unless stated otherwise; allocation points are owned by
// exactly one thread, the arena serializes structural mutation behind
// its own locks.
package mem
