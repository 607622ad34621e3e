package gc

// mark phase, tri-color. Roots seed the gray worklist; every gray
// object is traced exactly once, children still white turn gray and
// join the worklist, the traced object turns black. The phase ends
// when the worklist empties, leaving every reachable object black.
// With the mutator stopped no black object can come to reference a
// white one mid cycle, so the tri-color invariant holds throughout.
func (h *Heap) mark() (marked int64) {
	gray := make([]int64, 0, 128)
	h.roots.foreach(func(id, addr int64) {
		obj := h.object(addr)
		if obj.color() == colorwhite {
			obj.setcolor(colorgray)
			gray = append(gray, addr)
		}
	})
	for len(gray) > 0 {
		addr := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		obj := object{heap: h, addr: addr}
		h.trace(obj, func(ref uint64) uint64 {
			if ref == 0 {
				return ref
			}
			child := h.object(int64(ref))
			if child.color() == colorwhite {
				child.setcolor(colorgray)
				gray = append(gray, int64(ref))
			}
			return ref
		})
		obj.setcolor(colorblack)
		marked++
	}
	return marked
}
