package mem

import "unsafe"

import "golang.org/x/sys/unix"

// vmRegion is one anonymous mapping obtained from the OS. All managed
// memory lives in vm regions so the Go heap never sees it and object
// addresses stay stable under our control, not the Go runtime's.
type vmRegion struct {
	mem  []byte
	base uintptr
	size uintptr
}

// vmMap reserve and commit an anonymous region of size bytes. Fatal
// on failure, the runtime cannot proceed without backing memory.
func vmMap(size uintptr) *vmRegion {
	mem, err := unix.Mmap(
		-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		panicerr("mem.vm: mmap %v bytes: %v", size, err)
	}
	region := &vmRegion{
		mem:  mem,
		base: uintptr(unsafe.Pointer(&mem[0])),
		size: size,
	}
	if region.base%Alignment != 0 {
		panicerr("mem.vm: base %x not %v byte aligned", region.base, Alignment)
	}
	return region
}

// vmUnmap return the region to the OS.
func (region *vmRegion) vmUnmap() {
	if region.mem == nil {
		return
	}
	if err := unix.Munmap(region.mem); err != nil {
		panicerr("mem.vm: munmap: %v", err)
	}
	region.mem, region.base, region.size = nil, 0, 0
}
