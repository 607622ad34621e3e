package gc

import "fmt"
import "strings"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"

// Stats for this heap, including arena accounting.
func (h *Heap) Stats() map[string]interface{} {
	capacity, heapm, alloc, overhead := h.arena.Info()
	return map[string]interface{}{
		"capacity":   capacity,
		"heap":       heapm,
		"alloc":      alloc,
		"overhead":   overhead,
		"available":  h.arena.Available(),
		"roots":      h.roots.count(),
		"types":      int64(len(h.types)),
		"ngc":        h.ngc,
		"nmarked":    h.nmarked,
		"nreclaimed": h.nreclaimed,
		"nmoved":     h.nmoved,
	}
}

// Log heap accounting in human readable form.
func (h *Heap) Log() {
	stats := h.Stats()
	capacity := humanize.Bytes(uint64(stats["capacity"].(int64)))
	heapm := humanize.Bytes(uint64(stats["heap"].(int64)))
	alloc := humanize.Bytes(uint64(stats["alloc"].(int64)))
	overh := humanize.Bytes(uint64(stats["overhead"].(int64)))
	fmsg := "%v cap %v heap %v alloc %v overhd %v\n"
	log.Infof(fmsg, h.logprefix, capacity, heapm, alloc, overh)

	fmsg = "%v cycles %v marked %v reclaimed %v moved %v roots %v\n"
	log.Infof(
		fmsg, h.logprefix, stats["ngc"], stats["nmarked"],
		stats["nreclaimed"], stats["nmoved"], stats["roots"])

	outs := []string{}
	sizes, zs := h.arena.Utilization()
	for i, size := range sizes {
		outs = append(outs, fmt.Sprintf("  %4v slab, utilz: %2.2f%%", size, zs[i]))
	}
	if len(outs) > 0 {
		log.Infof("%v utilization:\n%v\n", h.logprefix, strings.Join(outs, "\n"))
	}
}

// Validate heap invariants outside a collection cycle: arena book
// keeping is consistent, every root resolves to a live chunk, every
// object is white with no forwarding left behind and every reference
// slot holds nil or a live chunk address. Panics on violation.
// Expensive, meant for tests and tools.
func (h *Heap) Validate() {
	h.arena.Validate()
	h.roots.foreach(func(id, addr int64) {
		if h.arena.Known(addr) == false {
			panicerr("root %v references unknown chunk %x", id, addr)
		}
	})
	h.arena.Walk(func(addr, size int64, free bool) bool {
		if free {
			return true
		}
		obj := object{heap: h, addr: addr}
		if obj.color() != colorwhite {
			panicerr("object %x not white between cycles", addr)
		} else if obj.forwarded() {
			panicerr("object %x carries forwarding between cycles", addr)
		}
		td := obj.descriptor()
		if td.size() > size {
			panicerr("object %x overflows its chunk", addr)
		}
		for i := 0; i < td.nrefs; i++ {
			ref := obj.Ref(i)
			if ref != 0 && h.arena.Known(int64(ref)) == false {
				panicerr("object %x slot %v references unknown %x", addr, i, ref)
			}
		}
		return true
	})
}
