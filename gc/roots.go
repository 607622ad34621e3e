package gc

// rootset registry of external reference slots, the collector's
// always live starting points. Every live Handle owns exactly one
// entry; registration and deregistration must bracket the handle's
// live window, the tightest ordering contract in this package: a root
// left registered keeps its object alive indefinitely, a root dropped
// too early lets a reachable object be collected.
type rootset struct {
	entries []int64 // root id -> object address, zero for free ids
	freeids []int64
	nlive   int64
}

func newrootset() *rootset {
	return &rootset{entries: make([]int64, 0, 64)}
}

func (roots *rootset) register(addr int64) int64 {
	if addr == 0 {
		panicerr("registering nil root")
	}
	roots.nlive++
	if n := len(roots.freeids); n > 0 {
		id := roots.freeids[n-1]
		roots.freeids = roots.freeids[:n-1]
		roots.entries[id] = addr
		return id
	}
	roots.entries = append(roots.entries, addr)
	return int64(len(roots.entries) - 1)
}

func (roots *rootset) unregister(id int64) {
	if id < 0 || id >= int64(len(roots.entries)) || roots.entries[id] == 0 {
		panicerr("unregistering dead root %v", id)
	}
	roots.entries[id] = 0
	roots.freeids = append(roots.freeids, id)
	roots.nlive--
}

func (roots *rootset) get(id int64) int64 {
	if id < 0 || id >= int64(len(roots.entries)) || roots.entries[id] == 0 {
		panicerr("dead root %v", id)
	}
	return roots.entries[id]
}

// update rewrite a live root to its target's new address, compaction
// fix up only.
func (roots *rootset) update(id, addr int64) {
	if addr == 0 {
		panicerr("updating root %v to nil", id)
	}
	roots.entries[id] = addr
}

// foreach visit live roots in id order, deterministic across cycles.
func (roots *rootset) foreach(fn func(id, addr int64)) {
	for id, addr := range roots.entries {
		if addr != 0 {
			fn(int64(id), addr)
		}
	}
}

func (roots *rootset) count() int64 {
	return roots.nlive
}
