package gc

import "github.com/bnclabs/goheap/malloc"

// compacting variant of the reclaim phase. Survivors slide into a
// contiguous prefix of their block, in address order, which keeps the
// pass deterministic and every move downward:
//
//  1. compute forwarding addresses for survivors, retire dead chunks
//  2. rewrite the root set through forwarding
//  3. rewrite surviving reference slots through forwarding
//  4. move the bytes, clear forwarding, reset colors and truncate
//     each block's bump offset; reclaimed space coalesces into the
//     block suffix by construction
//
// Root and slot fix up complete before the mutator regains control,
// so handles always dereference to the current location.
func (h *Heap) compactblocks() (moved, reclaimed int64) {
	bases := h.arena.Blocks()

	for _, base := range bases {
		cursor := base
		h.arena.WalkBlock(base, func(addr, size int64, free bool) bool {
			if free {
				return true
			}
			total := size + malloc.Chunkoverhead
			obj := object{heap: h, addr: addr}
			switch obj.color() {
			case colorwhite:
				h.arena.Free(addr)
				reclaimed += total
			case colorblack:
				if dst := cursor + malloc.Chunkoverhead; dst != addr {
					obj.setforwarding(dst)
				}
				cursor += total
			default:
				panicerr("gray object %x after marking", addr)
			}
			return true
		})
	}

	h.roots.foreach(func(id, addr int64) {
		obj := object{heap: h, addr: addr}
		if obj.forwarded() {
			h.roots.update(id, obj.forwarding())
		}
	})

	h.arena.Walk(func(addr, size int64, free bool) bool {
		if free {
			return true
		}
		obj := object{heap: h, addr: addr}
		h.trace(obj, func(ref uint64) uint64 {
			if ref == 0 {
				return ref
			}
			child := object{heap: h, addr: int64(ref)}
			if child.forwarded() {
				return uint64(child.forwarding())
			}
			return ref
		})
		return true
	})

	for _, base := range bases {
		cursor := base
		h.arena.WalkBlock(base, func(addr, size int64, free bool) bool {
			if free {
				return true
			}
			total := size + malloc.Chunkoverhead
			dst := cursor + malloc.Chunkoverhead
			if dst != addr {
				h.arena.Relocate(dst, addr)
				moved++
			}
			obj := object{heap: h, addr: dst}
			obj.clearforwarding()
			obj.setcolor(colorwhite)
			cursor += total
			return true
		})
		h.arena.Truncate(base, cursor-base)
	}
	h.arena.Flushfreelists()
	return moved, reclaimed
}
