package gc

import "fmt"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"
import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goheap/api"
import "github.com/bnclabs/goheap/malloc"

// Heap manages a single garbage collected heap instance: an arena for
// raw memory, a registry of type descriptors and the root set the
// collector marks from. Heaps are explicitly constructed and
// released, several independent heaps can coexist.
type Heap struct {
	arena  *malloc.Arena
	roots  *rootset
	types  []*Descriptor
	byname map[string]*Descriptor

	// configuration
	compact   bool
	logprefix string

	// statistics
	ngc        int64
	nmarked    int64
	nreclaimed int64
	nmoved     int64
}

// NewHeap create a new managed heap of initial capacity. Settings
// missing from setts are filled in from Defaultsettings().
func NewHeap(name string, capacity int64, setts s.Settings) *Heap {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	h := &Heap{
		compact:   setts.Bool("compact"),
		logprefix: fmt.Sprintf("heap [%v]", name),
	}
	if _, _, free := getsysmem(); free > 0 && uint64(capacity) > free {
		fmsg := "%v capacity %v exceeds free system memory %v\n"
		log.Warnf(
			fmsg, h.logprefix,
			humanize.Bytes(uint64(capacity)), humanize.Bytes(free))
	}
	h.arena = malloc.NewArena(capacity, setts)
	h.roots = newrootset()
	h.byname = make(map[string]*Descriptor)
	log.Infof("%v instantiated, compaction %v\n", h.logprefix, h.compact)
	return h
}

// Declare a managed type on this heap: objects of this type carry
// nrefs reference slots followed by datasize raw bytes. The
// collector's generic walk covers the slots, nothing else.
func (h *Heap) Declare(name string, nrefs int, datasize int64) *Descriptor {
	return h.DeclareTraced(name, nrefs, datasize, nil)
}

// DeclareTraced like Declare, with a custom tracer for types keeping
// managed references outside their declared slots. The tracer
// contract is in api.Tracer, violating it corrupts the heap.
func (h *Heap) DeclareTraced(
	name string, nrefs int, datasize int64, tracer api.Tracer) *Descriptor {

	if h.byname == nil {
		panicerr("Declare: %v", api.ErrorReleased)
	} else if nrefs < 0 || datasize < 0 {
		panicerr("Declare %q with nrefs %v datasize %v", name, nrefs, datasize)
	} else if _, ok := h.byname[name]; ok {
		panicerr("type %q already declared", name)
	}
	td := &Descriptor{
		id: int64(len(h.types)), name: name,
		nrefs: nrefs, datasize: datasize, tracer: tracer,
	}
	if td.size() > h.arena.Maxalloc() {
		panicerr("type %q needs %v bytes, exceeds maxchunk", name, td.size())
	}
	h.types = append(h.types, td)
	h.byname[name] = td
	fmsg := "%v declared %q {%v refs, %v bytes}\n"
	log.Verbosef(fmsg, h.logprefix, name, nrefs, datasize)
	return td
}

// New allocate an object of type td and return a Handle to it, the
// handle is registered as a root. Reference slots start out nil, the
// data area zeroed. On arena exhaustion one collection cycle runs
// synchronously and the allocation is retried, then growth is
// attempted; api.ErrorOutofMemory when all of it fails.
func (h *Heap) New(td *Descriptor) (*Handle, error) {
	if h.byname == nil {
		panicerr("New: %v", api.ErrorReleased)
	} else if td == nil || td.id >= int64(len(h.types)) || h.types[td.id] != td {
		panicerr("descriptor does not belong to this heap")
	}
	addr, err := h.alloc(td.size())
	if err != nil {
		return nil, err
	}
	obj := object{heap: h, addr: addr}
	obj.setword(uint64(td.id) << 16) // white by construction
	id := h.roots.register(addr)
	return &Handle{heap: h, td: td, rootid: id}, nil
}

// GC run one stop the world collection cycle: mark everything
// reachable from the root set, then sweep dead chunks into the free
// lists, or compact when so configured. Triggered automatically by
// exhausted allocations, applications can also invoke it directly.
func (h *Heap) GC() {
	if h.byname == nil {
		panicerr("GC: %v", api.ErrorReleased)
	}
	h.ngc++
	marked := h.mark()
	var reclaimed int64
	if h.compact {
		var moved int64
		moved, reclaimed = h.compactblocks()
		h.nmoved += moved
		fmsg := "%v cycle %v marked %v moved %v reclaimed %v\n"
		log.Debugf(fmsg, h.logprefix, h.ngc, marked, moved, reclaimed)
	} else {
		var swept int64
		swept, reclaimed = h.sweep()
		fmsg := "%v cycle %v marked %v swept %v reclaimed %v\n"
		log.Debugf(fmsg, h.logprefix, h.ngc, marked, swept, reclaimed)
	}
	h.nmarked += marked
	h.nreclaimed += reclaimed
}

// Info of memory accounting for this heap's arena.
func (h *Heap) Info() (capacity, heap, alloc, overhead int64) {
	return h.arena.Info()
}

// Release the heap and its arena. Outstanding handles should be
// released first; roots still registered at this point are reported
// and dropped, their objects die with the arena.
func (h *Heap) Release() {
	if h.byname == nil {
		panicerr("Release: %v", api.ErrorReleased)
	}
	if n := h.roots.count(); n > 0 {
		log.Warnf("%v released with %v live roots\n", h.logprefix, n)
	}
	h.arena.Release()
	h.roots, h.types, h.byname = nil, nil, nil
}

//---- local functions

func (h *Heap) alloc(n int64) (int64, error) {
	if addr, err := h.arena.Alloc(n); err == nil {
		return addr, nil
	}
	log.Debugf("%v allocation of %v bytes exhausted arena\n", h.logprefix, n)
	h.GC()
	if addr, err := h.arena.Alloc(n); err == nil {
		return addr, nil
	}
	if err := h.arena.Grow(n); err == nil {
		if addr, err := h.arena.Alloc(n); err == nil {
			return addr, nil
		}
	}
	return 0, api.ErrorOutofMemory
}

// resolve a traced reference. Anything that is not a live chunk
// payload is a descriptor violation and fatal: the object graph can
// no longer be trusted, continuing risks heap corruption.
func (h *Heap) object(addr int64) object {
	if h.arena.Known(addr) == false {
		log.Fatalf("%v invalid reference %x, heap corrupt\n", h.logprefix, addr)
		panicerr("invalid reference %x", addr)
	}
	return object{heap: h, addr: addr}
}

// enumerate obj's references through its descriptor, storing back
// whatever visit returns.
func (h *Heap) trace(obj object, visit func(ref uint64) uint64) {
	td := obj.descriptor()
	if td.tracer != nil {
		td.tracer.Trace(obj, visit)
		return
	}
	for i := 0; i < td.nrefs; i++ {
		ref := obj.Ref(i)
		if nref := visit(ref); nref != ref {
			obj.Setref(i, nref)
		}
	}
}
