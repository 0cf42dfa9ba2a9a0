package mem

import "unsafe"

import "github.com/bnclabs/goigc/api"

// test object format: two words, a reference slot and a value slot.
// References are untagged addresses, zero for none.
var tfwdsig, tpadsig byte

type tobj struct {
	ref uintptr
	val uintptr
}

const tobjsize = unsafe.Sizeof(tobj{})

func tfwd() uintptr { return uintptr(unsafe.Pointer(&tfwdsig)) }
func tpad() uintptr { return uintptr(unsafe.Pointer(&tpadsig)) }

func tisfwd(addr uintptr) uintptr {
	m := (*[2]uintptr)(unsafe.Pointer(addr))
	if m[0] == tfwd() {
		return m[1]
	}
	return 0
}

func tispad(addr uintptr) bool {
	return *(*uintptr)(unsafe.Pointer(addr)) == tpad()
}

func testformat() *api.Format {
	return &api.Format{
		Name: "tobj",
		Size: tobjsize,
		Scan: func(ss api.ScanState, base, limit uintptr) error {
			for addr := base; addr < limit; addr += tobjsize {
				if tisfwd(addr) != 0 || tispad(addr) {
					continue
				}
				obj := (*tobj)(unsafe.Pointer(addr))
				if obj.ref == 0 {
					continue
				}
				ref := obj.ref
				if ss.Fix1(ref) == false {
					continue
				}
				if err := ss.Fix2(&ref); err != nil {
					return err
				}
				obj.ref = ref
			}
			return nil
		},
		Skip: func(addr uintptr) uintptr { return addr + tobjsize },
		Forward: func(old, new uintptr) {
			*(*[2]uintptr)(unsafe.Pointer(old)) = [2]uintptr{tfwd(), new}
		},
		IsForwarded: tisfwd,
		IsPadding:   tispad,
		Pad: func(addr uintptr, size uintptr) {
			*(*uintptr)(unsafe.Pointer(addr)) = tpad()
			for p := addr + 8; p < addr+size; p += 8 {
				*(*uintptr)(unsafe.Pointer(p)) = 0
			}
		},
	}
}

func talloc(ap *AP, ref, val uintptr) uintptr {
	for {
		addr, _ := ap.Reserve(tobjsize)
		obj := (*tobj)(unsafe.Pointer(addr))
		obj.ref, obj.val = ref, val
		if ap.Commit(addr, tobjsize) {
			return addr
		}
	}
}

func tat(addr uintptr) *tobj {
	return (*tobj)(unsafe.Pointer(addr))
}
