package gc

import "encoding/binary"

// object payload layout, all offsets relative to the chunk payload:
//
//	[0:8)    type word: typeid[64:16] fwdflag[3] color[2:0]
//	[8:16)   forwarding address, valid only while fwdflag is set
//	[16:...) reference slots, 8 bytes each
//	[...:..) raw data area
//
// Header fields are written only by the allocator on creation and by
// the collector during a cycle, mutator code goes through Handle.
const objoverhead = int64(16)

const (
	colorwhite = uint64(0x0) // unvisited, presumed dead
	colorgray  = uint64(0x1) // visited, children pending
	colorblack = uint64(0x2) // visited, children processed
	colormask  = uint64(0x3)
	flagfwd    = uint64(0x4)
)

// object a managed object resident in the arena, identified by its
// chunk payload address. Implements api.Object for tracers.
type object struct {
	heap *Heap
	addr int64
}

func (obj object) word() uint64 {
	return binary.LittleEndian.Uint64(obj.heap.arena.Bytes(obj.addr, 8))
}

func (obj object) setword(word uint64) {
	binary.LittleEndian.PutUint64(obj.heap.arena.Bytes(obj.addr, 8), word)
}

func (obj object) color() uint64 {
	return obj.word() & colormask
}

func (obj object) setcolor(color uint64) {
	obj.setword((obj.word() &^ colormask) | color)
}

func (obj object) typeid() int64 {
	return int64(obj.word() >> 16)
}

func (obj object) descriptor() *Descriptor {
	id := obj.typeid()
	if id < 0 || id >= int64(len(obj.heap.types)) {
		panicerr("corrupt type id %v at %x", id, obj.addr)
	}
	return obj.heap.types[id]
}

func (obj object) forwarded() bool {
	return (obj.word() & flagfwd) != 0
}

func (obj object) forwarding() int64 {
	buf := obj.heap.arena.Bytes(obj.addr+8, 8)
	return int64(binary.LittleEndian.Uint64(buf))
}

func (obj object) setforwarding(dst int64) {
	buf := obj.heap.arena.Bytes(obj.addr+8, 8)
	binary.LittleEndian.PutUint64(buf, uint64(dst))
	obj.setword(obj.word() | flagfwd)
}

func (obj object) clearforwarding() {
	buf := obj.heap.arena.Bytes(obj.addr+8, 8)
	binary.LittleEndian.PutUint64(buf, 0)
	obj.setword(obj.word() &^ flagfwd)
}

//---- api.Object{} interface

// NumRefs implement api.Object{} interface.
func (obj object) NumRefs() int {
	return obj.descriptor().nrefs
}

// Ref implement api.Object{} interface.
func (obj object) Ref(i int) uint64 {
	td := obj.descriptor()
	if i < 0 || i >= td.nrefs {
		panicerr("reference slot %v out of range for %q", i, td.name)
	}
	buf := obj.heap.arena.Bytes(obj.addr+objoverhead+int64(i)*8, 8)
	return binary.LittleEndian.Uint64(buf)
}

// Setref implement api.Object{} interface.
func (obj object) Setref(i int, ref uint64) {
	td := obj.descriptor()
	if i < 0 || i >= td.nrefs {
		panicerr("reference slot %v out of range for %q", i, td.name)
	}
	buf := obj.heap.arena.Bytes(obj.addr+objoverhead+int64(i)*8, 8)
	binary.LittleEndian.PutUint64(buf, ref)
}

// Bytes implement api.Object{} interface.
func (obj object) Bytes() []byte {
	td := obj.descriptor()
	start := obj.addr + objoverhead + int64(td.nrefs)*8
	return obj.heap.arena.Bytes(start, td.datasize)
}
