package gc

import "github.com/bnclabs/goheap/api"

// Descriptor describes the layout of a managed type: how many
// reference slots an object holds and how many raw data bytes follow
// them. The collector's generic graph walk visits the reference
// slots; types keeping references anywhere else must supply their own
// api.Tracer and uphold its contract. Descriptors are declared once
// on a heap and live as long as the heap does.
type Descriptor struct {
	id       int64
	name     string
	nrefs    int
	datasize int64
	tracer   api.Tracer
}

// Name of the managed type.
func (td *Descriptor) Name() string {
	return td.name
}

// Numrefs number of reference slots in objects of this type.
func (td *Descriptor) Numrefs() int {
	return td.nrefs
}

// Datasize raw data bytes in objects of this type.
func (td *Descriptor) Datasize() int64 {
	return td.datasize
}

// payload bytes needed by an object of this type.
func (td *Descriptor) size() int64 {
	return objoverhead + int64(td.nrefs)*8 + td.datasize
}
