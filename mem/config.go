package mem

import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goigc/api"

// Alignment of every pool, equal to the width of the value tag
// scheme so that tagged pointers remain valid after moves.
const Alignment = api.Alignment

// MarkerSize minimum object size for a moving pool. Objects smaller
// than this cannot hold a forwarding marker.
const MarkerSize = 2 * 8

// Maxarenasize maximum size of a memory arena. Can be used as default
// capacity for NewArena().
const Maxarenasize = int64(1024 * 1024 * 1024 * 1024)

// Maxgenerations maximum length of the generation chain.
const Maxgenerations = 8

// Arena configurable parameters and default settings.
//
// "capacity" (int64, default: 1024MB)
//	Maximum memory, in bytes, managed by the arena across all
//	pools and generations.
//
// "ngenerations" (int64, default: 2)
//	Number of generations in the chain.
//
// "gen<N>.capacity" (int64, default: 32000 and 160045)
//	Capacity of generation N in kilobytes. New allocation into a
//	generation beyond its capacity makes it eligible for
//	collection.
//
// "gen<N>.mortality" (float64, default: 0.8 and 0.4)
//	Expected fraction of generation N that dies in a collection,
//	in [0,1]. Recorded on the generation and reported by
//	Mortality(); the collector does not read it.
//
// "buffer.size" (int64, default: 65536)
//	Size in bytes of a thread local allocation buffer.
//
// "segment.size" (int64, default: 262144)
//	Size in bytes of pool segments used for relocation.
//
// "step.quantum" (int64, default: 10)
//	Idle step budget in milliseconds.
//
// "debug.pool" (bool, default: false)
//	Fill reserved but uncommitted space with a fencepost pattern
//	and verify it before reuse.
//
// "telemetry" (bool, default: false)
//	Enable the collector's instrumentation channel. Also enabled
//	by the IGC_TELEMETRY environment variable.
func Defaultsettings() s.Settings {
	return s.Settings{
		"capacity":       int64(1024 * 1024 * 1024),
		"ngenerations":   int64(2),
		"gen0.capacity":  int64(32000),
		"gen0.mortality": 0.8,
		"gen1.capacity":  int64(160045),
		"gen1.mortality": 0.4,
		"buffer.size":    int64(65536),
		"segment.size":   int64(262144),
		"step.quantum":   int64(10),
		"debug.pool":     false,
		"telemetry":      false,
	}
}
