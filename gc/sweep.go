package gc

import "github.com/bnclabs/goheap/malloc"

// sweep phase. Walk every chunk in address order: objects still
// white were not reached from any root, their chunks retire to the
// free lists; black survivors reset to white for the next cycle. A
// chunk is freed at most once per cycle since freeing flips it out of
// the walkable live set. Ends with a coalesce pass merging adjacent
// free chunks and retracting trailing free space into bump regions.
func (h *Heap) sweep() (swept, reclaimed int64) {
	h.arena.Walk(func(addr, size int64, free bool) bool {
		if free {
			return true
		}
		obj := object{heap: h, addr: addr}
		switch obj.color() {
		case colorwhite:
			h.arena.Free(addr)
			swept++
			reclaimed += size + malloc.Chunkoverhead
		case colorblack:
			obj.setcolor(colorwhite)
		default:
			panicerr("gray object %x after marking", addr)
		}
		return true
	})
	h.arena.Coalesce()
	return swept, reclaimed
}
