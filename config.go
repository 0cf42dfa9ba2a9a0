package igc

import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goigc/mem"

// Runtime integration configurable parameters and default settings,
// on top of the collector engine settings described by
// mem.Defaultsettings().
//
// "symtab.size" (int64, default: 1024)
//	Number of entries in the built-in symbol table. The table is
//	a contiguous non-moving array; symbol references carry offsets
//	into it.
//
// "staticvec.size" (int64, default: 2048)
//	Capacity of the static reference vector populated by
//	StaticPro.
//
// "stack.size" (int64, default: 4096)
//	Initial per-thread value stack depth, in words.
//
// "specpdl.size" (int64, default: 256)
//	Initial per-thread binding stack depth, in frames.
//
// "finalization" (bool, default: true)
//	Enable the finalization message channel at startup.
func Defaultsettings() s.Settings {
	setts := s.Settings{
		"symtab.size":    int64(1024),
		"staticvec.size": int64(2048),
		"stack.size":     int64(4096),
		"specpdl.size":   int64(256),
		"finalization":   true,
	}
	return setts.Mixin(mem.Defaultsettings())
}
