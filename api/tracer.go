package api

// Object is the collector's view of a managed object. Reference slots
// are 64-bit heap addresses, zero means nil. Bytes return the object's
// raw data area, past the reference slots; the slice aliases arena
// memory and is valid only until the next collection cycle.
type Object interface {
	// NumRefs number of reference slots in this object.
	NumRefs() int

	// Ref return the address held in the i'th reference slot.
	Ref(i int) uint64

	// Setref store `ref` into the i'th reference slot.
	Setref(i int, ref uint64)

	// Bytes return the object's data area.
	Bytes() []byte
}

// Tracer enumerates every managed reference held by an object. The
// collector calls Trace once per object per phase; implementations
// shall call visit on each reference the object holds and store the
// returned address back into the same location, since a compacting
// cycle may relocate the target. Nil references can be skipped or
// visited, visit(0) returns 0.
//
// Omitting a reference from Trace makes its target collectable while
// still referenced, a use-after-free introduced by the object author.
type Tracer interface {
	Trace(obj Object, visit func(ref uint64) uint64)
}
