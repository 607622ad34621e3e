package gc

import "github.com/bnclabs/goheap/api"

// Handle a stable, indirect reference to a managed object, registered
// as a root for its entire lifetime. The address it resolves to can
// change across a compacting cycle; dereferencing always yields the
// object's current location, since root fix up completes before the
// mutator regains control. No handle owns its object exclusively,
// liveness is reachability from the root set.
type Handle struct {
	heap   *Heap
	td     *Descriptor
	rootid int64
}

// Descriptor of the object this handle references.
func (hd *Handle) Descriptor() *Descriptor {
	return hd.td
}

// Clone register an additional root entry for the same object. The
// object stays alive as long as either handle does, both must be
// released independently.
func (hd *Handle) Clone() *Handle {
	addr := hd.address()
	id := hd.heap.roots.register(addr)
	return &Handle{heap: hd.heap, td: hd.td, rootid: id}
}

// Release drop this handle's root entry. Must happen while the
// handle is still valid, never after a cycle already swept the
// object; operations on a released handle panic.
func (hd *Handle) Release() {
	if hd.rootid < 0 {
		panicerr("handle: %v", api.ErrorReleased)
	}
	hd.heap.roots.unregister(hd.rootid)
	hd.rootid = -1
}

// Setref store other's object into reference slot i, keeping the
// target reachable through this object; nil clears the slot.
func (hd *Handle) Setref(i int, other *Handle) {
	obj := hd.object()
	if other == nil {
		obj.Setref(i, 0)
		return
	} else if other.heap != hd.heap {
		panicerr("handles from different heaps")
	}
	obj.Setref(i, uint64(other.address()))
}

// Load dereference slot i into a fresh handle, nil when the slot is
// nil. The returned handle is an independent root and is released
// like any other.
func (hd *Handle) Load(i int) *Handle {
	ref := hd.object().Ref(i)
	if ref == 0 {
		return nil
	}
	obj := hd.heap.object(int64(ref))
	id := hd.heap.roots.register(int64(ref))
	return &Handle{heap: hd.heap, td: obj.descriptor(), rootid: id}
}

// Bytes the object's raw data area, past its reference slots. The
// slice aliases arena memory and is valid only until the next
// collection cycle.
func (hd *Handle) Bytes() []byte {
	return hd.object().Bytes()
}

// Setbytes copy data into the object's data area.
func (hd *Handle) Setbytes(data []byte) {
	buf := hd.object().Bytes()
	if len(data) > len(buf) {
		panicerr("data %v bytes exceeds object data area %v", len(data), len(buf))
	}
	copy(buf, data)
}

//---- local functions

func (hd *Handle) address() int64 {
	if hd.rootid < 0 {
		panicerr("handle: %v", api.ErrorReleased)
	}
	return hd.heap.roots.get(hd.rootid)
}

func (hd *Handle) object() object {
	return object{heap: hd.heap, addr: hd.address()}
}
