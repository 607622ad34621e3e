package gc

import "github.com/cloudfoundry/gosigar"
import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goheap/malloc"

// Defaultsettings for heap, a superset of malloc.Defaultsettings().
// Applications can get the default settings and selectively override
// them before instantiating a new heap.
//
// "compact" (bool, default: false)
//		If true, every collection cycle compacts surviving objects
//		into a contiguous prefix of each block, eliminating
//		fragmentation at the cost of relocation and reference
//		fix up. If false, dead chunks are swept into free lists.
func Defaultsettings() s.Settings {
	setts := s.Settings{
		"compact": false,
	}
	return setts.Mixin(malloc.Defaultsettings())
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
