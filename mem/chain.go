package mem

import "fmt"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"

// Generation one link of the generation chain, parameterized by
// capacity in kilobytes and expected mortality in [0,1]. Objects
// surviving a collection of generation N are promoted into N+1; the
// last generation promotes into itself.
type Generation struct {
	// 64-bit aligned, updated atomically by committing mutators.
	allocated int64 // bytes newly allocated since the last collection

	index     int
	capacity  int64 // bytes
	mortality float64
}

// Capacity of this generation in bytes.
func (gen *Generation) Capacity() int64 {
	return gen.capacity
}

// Mortality expected survival complement for this generation.
func (gen *Generation) Mortality() float64 {
	return gen.mortality
}

// Allocated bytes newly allocated into this generation since it was
// last collected.
func (gen *Generation) Allocated() int64 {
	return atomic.LoadInt64(&gen.allocated)
}

func (gen *Generation) due() bool {
	return atomic.LoadInt64(&gen.allocated) > gen.capacity
}

func (gen *Generation) String() string {
	return fmt.Sprintf("gen%v<%vKB,%v>", gen.index, gen.capacity/1024, gen.mortality)
}

// makechain build the generation chain from arena settings.
func makechain(setts s.Settings) []*Generation {
	ngens := setts.Int64("ngenerations")
	if ngens < 1 || ngens > Maxgenerations {
		panicerr("mem.chain: ngenerations %v out of [1,%v]", ngens, Maxgenerations)
	}
	chain := make([]*Generation, 0, ngens)
	for i := int64(0); i < ngens; i++ {
		prefix := fmt.Sprintf("gen%v.", i)
		capacity := setts.Int64(prefix + "capacity")
		mortality := setts.Float64(prefix + "mortality")
		if capacity <= 0 {
			panicerr("mem.chain: %vcapacity %v", prefix, capacity)
		} else if mortality < 0 || mortality > 1 {
			panicerr("mem.chain: %vmortality %v out of [0,1]", prefix, mortality)
		}
		chain = append(chain, &Generation{
			index:     int(i),
			capacity:  capacity * 1024,
			mortality: mortality,
		})
	}
	return chain
}
