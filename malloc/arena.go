package malloc

import "encoding/binary"
import "sort"
import "unsafe"

import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goheap/api"

// low 8 bits of the chunk header word are flags, rest is total size.
const flagfree = uint64(0x1)

// memblock is a fixed size run of raw memory with its own bump offset.
// Blocks never move once carved, growth only appends blocks.
type memblock struct {
	base int64 // address of this block in the arena address space
	free int64 // bump offset, chunk space is [0, free)
	buf  []byte
}

// Arena manages a block segmented address space, carving slab sized
// chunks out of per block bump regions and per slab free lists.
type Arena struct {
	slabs     []int64           // sorted list of chunk sizes in this arena
	freelists map[int64][]int64 // slab -> chunk addresses, LIFO
	blocks    []*memblock

	// configuration
	capacity  int64 // memory capacity to be managed by this arena
	blocksize int64
	minchunk  int64 // minimum chunk size allocatable by arena
	maxchunk  int64 // maximum chunk size allocatable by arena
	growable  bool
	growby    int64

	// statistics
	allocated int64
	nallocs   int64
	nfrees    int64
	ngrows    int64
	uzs       map[int64]int64 // slab -> live bytes
}

// NewArena create a new memory arena of initial capacity. Settings
// missing from setts are filled in from Defaultsettings().
func NewArena(capacity int64, setts s.Settings) *Arena {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	arena := &Arena{
		capacity:  capacity,
		blocksize: setts.Int64("blocksize"),
		minchunk:  setts.Int64("minchunk"),
		maxchunk:  setts.Int64("maxchunk"),
		growable:  setts.Bool("growable"),
		growby:    setts.Int64("growby"),
	}
	arena.slabs = Slabsizes(arena.minchunk, arena.maxchunk)
	if (arena.blocksize % Alignment) != 0 {
		panicerr("blocksize %v not multiple of %v", arena.blocksize, Alignment)
	} else if arena.maxchunk > arena.blocksize {
		panicerr("maxchunk %v exceeds blocksize %v", arena.maxchunk, arena.blocksize)
	} else if capacity < arena.blocksize {
		panicerr("capacity %v less than blocksize %v", capacity, arena.blocksize)
	} else if capacity > Maxarenasize {
		panicerr("arena cannot exceed %v bytes (%v)", Maxarenasize, capacity)
	} else if int64(len(arena.slabs)) > Maxslabs {
		panicerr("number of slabs in arena exceeds %v", Maxslabs)
	} else if arena.growby <= 0 {
		panicerr("growby %v expected positive", arena.growby)
	}
	arena.freelists = make(map[int64][]int64)
	arena.uzs = make(map[int64]int64)
	fmsg := "arena: %v slabs over {%v,%v} cap %v\n"
	log.Infof(fmsg, len(arena.slabs), arena.minchunk, arena.maxchunk, capacity)
	return arena
}

//---- operations

// Alloc carve out a chunk of n usable bytes, rounded up to the
// arena's slab ladder. Chunks are picked, in that order, from the
// smallest free list that can hold n, else from a block's bump
// region, else the call fails with api.ErrorOutofMemory. Alloc never
// triggers collection or growth, that is the caller's policy.
// The returned address is the chunk payload, zeroed out.
func (arena *Arena) Alloc(n int64) (int64, error) {
	if arena.slabs == nil {
		panicerr("Alloc: %v", api.ErrorReleased)
	} else if n <= 0 {
		panicerr("Alloc size %v expected positive", n)
	}
	need := n + Chunkoverhead
	if need > arena.maxchunk {
		panicerr("Alloc size %v exceeds maxchunk %v", n, arena.maxchunk)
	}
	size := SuitableSlab(arena.slabs, need)
	chunk := arena.alloclist(size)
	if chunk == 0 {
		chunk = arena.bumpalloc(size)
	}
	if chunk == 0 {
		return 0, api.ErrorOutofMemory
	}
	length, _ := arena.hdrat(chunk)
	arena.allocated += length
	arena.uzs[arena.bucketfor(length)] += length
	arena.nallocs++
	blk := arena.blockof(chunk)
	off := chunk - blk.base
	zerochunk(blk.buf[off+Chunkoverhead : off+length])
	return chunk + Chunkoverhead, nil
}

// Free retire the chunk at addr back into its free list bucket. The
// chunk is flagged free exactly once, freeing it again panics.
// Adjacent free chunks are merged later, by Coalesce().
func (arena *Arena) Free(addr int64) {
	if arena.slabs == nil {
		panicerr("Free: %v", api.ErrorReleased)
	} else if addr == 0 {
		panicerr("Free: nil address")
	}
	chunk := addr - Chunkoverhead
	blk := arena.blockof(chunk)
	length, flags := arena.hdrat(chunk)
	if (flags & flagfree) != 0 {
		panicerr("double free at address %x", addr)
	} else if (chunk-blk.base)+length > blk.free {
		panicerr("corrupt chunk at address %x", addr)
	}
	arena.sethdrat(chunk, length, flagfree)
	arena.allocated -= length
	arena.uzs[arena.bucketfor(length)] -= length
	arena.nfrees++
	bucket := arena.bucketfor(length)
	arena.freelists[bucket] = append(arena.freelists[bucket], chunk)
}

// Coalesce merge adjacent free chunks, retract trailing free space
// into block bump regions and rebuild the free list buckets. Expected
// to run at the end of every sweep.
func (arena *Arena) Coalesce() {
	if arena.slabs == nil {
		panicerr("Coalesce: %v", api.ErrorReleased)
	}
	arena.freelists = make(map[int64][]int64)
	for _, blk := range arena.blocks {
		off, runoff, runlen := int64(0), int64(-1), int64(0)
		flushrun := func() {
			if runoff < 0 {
				return
			}
			arena.sethdrat(blk.base+runoff, runlen, flagfree)
			if runlen >= arena.slabs[0] {
				bucket := arena.bucketfor(runlen)
				arena.freelists[bucket] =
					append(arena.freelists[bucket], blk.base+runoff)
			}
			runoff, runlen = -1, 0
		}
		for off < blk.free {
			length, flags := arena.hdrat(blk.base + off)
			if length < Chunkoverhead || off+length > blk.free {
				panicerr("corrupt chunk header at %x", blk.base+off)
			}
			if (flags & flagfree) != 0 {
				if runoff < 0 {
					runoff = off
				}
				runlen += length
			} else {
				flushrun()
			}
			off += length
		}
		if runoff >= 0 && runoff+runlen == blk.free {
			blk.free = runoff // trailing free run becomes bump space
		} else {
			flushrun()
		}
	}
}

// Grow raise the arena capacity by at least extra bytes, rounded up
// to whole blocks. Fresh blocks are appended on demand, blocks
// already carved never move. Fails with api.ErrorOutofMemory when the
// arena is not growable or exceeds Maxarenasize.
func (arena *Arena) Grow(extra int64) error {
	if arena.slabs == nil {
		panicerr("Grow: %v", api.ErrorReleased)
	}
	if arena.growable == false {
		return api.ErrorOutofMemory
	}
	if extra < arena.growby {
		extra = arena.growby
	}
	newcap := arena.capacity + ceil(extra, arena.blocksize)*arena.blocksize
	if newcap > Maxarenasize {
		return api.ErrorOutofMemory
	}
	arena.capacity = newcap
	arena.ngrows++
	log.Infof("arena: grown to capacity %v\n", arena.capacity)
	return nil
}

// Release the arena and all its blocks. Subsequent operations on the
// arena panic.
func (arena *Arena) Release() {
	fmsg := "arena: releasing %v blocks after %v allocs, %v frees\n"
	log.Infof(fmsg, len(arena.blocks), arena.nallocs, arena.nfrees)
	arena.slabs, arena.blocks = nil, nil
	arena.freelists, arena.uzs = nil, nil
}

//---- address order walking

// Walk every chunk in the arena in address order, live and free.
// addr and size describe the chunk payload. Return false from fn to
// stop the walk.
func (arena *Arena) Walk(fn func(addr, size int64, free bool) bool) {
	for _, blk := range arena.blocks {
		if arena.walkblock(blk, fn) == false {
			return
		}
	}
}

// WalkBlock like Walk, restricted to the block at base.
func (arena *Arena) WalkBlock(base int64, fn func(addr, size int64, free bool) bool) {
	arena.walkblock(arena.blockat(base), fn)
}

func (arena *Arena) walkblock(
	blk *memblock, fn func(addr, size int64, free bool) bool) bool {

	off := int64(0)
	for off < blk.free {
		length, flags := arena.hdrat(blk.base + off)
		if length < Chunkoverhead || off+length > blk.free {
			panicerr("corrupt chunk header at %x", blk.base+off)
		}
		addr, size := blk.base+off+Chunkoverhead, length-Chunkoverhead
		if fn(addr, size, (flags&flagfree) != 0) == false {
			return false
		}
		off += length
	}
	return true
}

//---- collector support

// Known check whether addr is the payload address of a live chunk,
// by walking the owning block's headers. The collector consults this
// before following a traced reference, an unknown address there is a
// descriptor violation.
func (arena *Arena) Known(addr int64) bool {
	if arena.slabs == nil || addr <= 0 || (addr%Alignment) != 0 {
		return false
	}
	idx := (addr - Baseaddress) / arena.blocksize
	if addr < Baseaddress || idx >= int64(len(arena.blocks)) {
		return false
	}
	found := false
	arena.walkblock(arena.blocks[idx], func(a, size int64, free bool) bool {
		if a == addr {
			found = free == false
			return false
		}
		return a < addr
	})
	return found
}

// Bytes alias into the arena memory for ln bytes starting at addr.
// The slice is invalidated by relocation, callers shall not hold it
// across a collection cycle. A zero length range is always legal,
// addr may then sit one past the last block, where a zero data area
// of a chunk ending flush with its block lands.
func (arena *Arena) Bytes(addr, ln int64) []byte {
	if ln == 0 {
		return nil
	}
	blk := arena.blockof(addr)
	off := addr - blk.base
	if ln < 0 || off+ln > arena.blocksize {
		panicerr("range {%x,%v} outside block", addr, ln)
	}
	return blk.buf[off : off+ln]
}

// Chunksize usable payload bytes of the live chunk at addr.
func (arena *Arena) Chunksize(addr int64) int64 {
	length, _ := arena.hdrat(addr - Chunkoverhead)
	return length - Chunkoverhead
}

// Relocate slide the chunk at src down to dst, header included, both
// payload addresses within the same block. Overlapping moves are
// fine, compaction always slides chunks toward the block prefix.
func (arena *Arena) Relocate(dst, src int64) {
	if dst == src {
		return
	} else if dst > src {
		panicerr("relocation must slide downward {%x,%x}", dst, src)
	}
	blk := arena.blockof(src - Chunkoverhead)
	if arena.blockof(dst-Chunkoverhead) != blk {
		panicerr("relocation across blocks {%x,%x}", dst, src)
	}
	length, flags := arena.hdrat(src - Chunkoverhead)
	if (flags & flagfree) != 0 {
		panicerr("relocating free chunk %x", src)
	}
	soff := src - Chunkoverhead - blk.base
	doff := dst - Chunkoverhead - blk.base
	copy(blk.buf[doff:doff+length], blk.buf[soff:soff+length])
}

// Truncate reset the bump offset of the block at base to used bytes,
// chunk space beyond the offset returns to the block's bump region.
func (arena *Arena) Truncate(base, used int64) {
	blk := arena.blockat(base)
	if used < 0 || used > arena.blocksize || (used%Alignment) != 0 {
		panicerr("bad truncate offset %v", used)
	}
	blk.free = used
}

// Flushfreelists drop every free list entry. Used by the compacting
// collector after relocation, when all reclaimed space has returned
// to block bump regions.
func (arena *Arena) Flushfreelists() {
	arena.freelists = make(map[int64][]int64)
}

// Blocks base addresses of the blocks carved so far, in address
// order.
func (arena *Arena) Blocks() []int64 {
	bases := make([]int64, 0, len(arena.blocks))
	for _, blk := range arena.blocks {
		bases = append(bases, blk.base)
	}
	return bases
}

// Blocksize of this arena.
func (arena *Arena) Blocksize() int64 {
	return arena.blocksize
}

//---- statistics and maintenance

// Slabs allocatable chunk sizes, header included.
func (arena *Arena) Slabs() []int64 {
	return arena.slabs
}

// Maxalloc largest usable allocation this arena can serve.
func (arena *Arena) Maxalloc() int64 {
	return arena.maxchunk - Chunkoverhead
}

// Allocated bytes presently held by live chunks, header included.
func (arena *Arena) Allocated() int64 {
	return arena.allocated
}

// Available bytes within the configured capacity.
func (arena *Arena) Available() int64 {
	return arena.capacity - arena.allocated
}

// Info of memory accounting for this arena.
func (arena *Arena) Info() (capacity, heap, alloc, overhead int64) {
	capacity, alloc = arena.capacity, arena.allocated
	heap = int64(len(arena.blocks)) * arena.blocksize
	self := int64(unsafe.Sizeof(*arena))
	slicesz := int64(cap(arena.slabs)) * int64(unsafe.Sizeof(int64(1)))
	overhead = self + slicesz
	for _, q := range arena.freelists {
		overhead += int64(cap(q)) * int64(unsafe.Sizeof(int64(1)))
	}
	overhead += int64(len(arena.blocks)) * int64(unsafe.Sizeof(memblock{}))
	return
}

// Utilization per slab share of carved block memory held by live
// chunks, in percent.
func (arena *Arena) Utilization() ([]int, []float64) {
	heap := int64(len(arena.blocks)) * arena.blocksize
	if heap == 0 {
		return nil, nil
	}
	ss, zs := make([]int, 0), make([]float64, 0)
	for _, slab := range arena.slabs {
		if bytes := arena.uzs[slab]; bytes > 0 {
			ss = append(ss, int(slab))
			zs = append(zs, (float64(bytes)/float64(heap))*100)
		}
	}
	return ss, zs
}

// Validate walk the arena cross checking chunk extents, free list
// entries and allocation book keeping, panics on inconsistency.
// Expensive, meant for tests and tools.
func (arena *Arena) Validate() (livebytes, freebytes int64) {
	if arena.slabs == nil {
		panicerr("Validate: %v", api.ErrorReleased)
	}
	for _, blk := range arena.blocks {
		end := blk.base
		arena.walkblock(blk, func(addr, size int64, free bool) bool {
			chunk, length := addr-Chunkoverhead, size+Chunkoverhead
			if chunk != end {
				panicerr("chunk overlap at %x", chunk)
			} else if (length % Alignment) != 0 {
				panicerr("unaligned chunk at %x", chunk)
			}
			if free {
				freebytes += length
			} else {
				livebytes += length
			}
			end = chunk + length
			return true
		})
	}
	if livebytes != arena.allocated {
		panicerr("allocated mismatch %v != %v", livebytes, arena.allocated)
	}
	for slab, q := range arena.freelists {
		for _, chunk := range q {
			length, flags := arena.hdrat(chunk)
			if (flags & flagfree) == 0 {
				panicerr("freelist entry %x is live", chunk)
			} else if arena.bucketfor(length) != slab {
				panicerr("freelist entry %x in wrong bucket", chunk)
			}
		}
	}
	return livebytes, freebytes
}

//---- local functions

// pop a chunk from the smallest non empty bucket that can hold size,
// splitting off the remainder when it is large enough to stand alone.
func (arena *Arena) alloclist(size int64) int64 {
	idx := sort.Search(len(arena.slabs), func(i int) bool {
		return arena.slabs[i] >= size
	})
	for ; idx < len(arena.slabs); idx++ {
		slab := arena.slabs[idx]
		q := arena.freelists[slab]
		if len(q) == 0 {
			continue
		}
		chunk := q[len(q)-1]
		arena.freelists[slab] = q[:len(q)-1]
		length, flags := arena.hdrat(chunk)
		if (flags & flagfree) == 0 {
			panicerr("freelist entry %x is live", chunk)
		}
		if rem := length - size; rem >= Chunkoverhead {
			arena.sethdrat(chunk+size, rem, flagfree)
			if rem >= arena.slabs[0] {
				bucket := arena.bucketfor(rem)
				arena.freelists[bucket] =
					append(arena.freelists[bucket], chunk+size)
			}
			// remainders below the smallest slab stay walkable
			// and merge back during the next Coalesce.
			length = size
		}
		arena.sethdrat(chunk, length, 0)
		return chunk
	}
	return 0
}

// first block, in address order, whose bump region can hold size,
// else carve a new block within capacity.
func (arena *Arena) bumpalloc(size int64) int64 {
	for _, blk := range arena.blocks {
		if blk.free+size <= arena.blocksize {
			chunk := blk.base + blk.free
			blk.free += size
			arena.sethdrat(chunk, size, 0)
			return chunk
		}
	}
	if (int64(len(arena.blocks))+1)*arena.blocksize > arena.capacity {
		return 0
	}
	blk := &memblock{
		base: Baseaddress + int64(len(arena.blocks))*arena.blocksize,
		buf:  make([]byte, arena.blocksize),
	}
	arena.blocks = append(arena.blocks, blk)
	blk.free = size
	arena.sethdrat(blk.base, size, 0)
	return blk.base
}

// largest slab not exceeding length, the bucket a free chunk of that
// length lives in.
func (arena *Arena) bucketfor(length int64) int64 {
	idx := sort.Search(len(arena.slabs), func(i int) bool {
		return arena.slabs[i] > length
	})
	if idx == 0 {
		panicerr("length %v below smallest slab", length)
	}
	return arena.slabs[idx-1]
}

func (arena *Arena) blockof(addr int64) *memblock {
	idx := (addr - Baseaddress) / arena.blocksize
	if addr < Baseaddress || idx >= int64(len(arena.blocks)) {
		panicerr("address %x outside arena", addr)
	}
	return arena.blocks[idx]
}

func (arena *Arena) blockat(base int64) *memblock {
	blk := arena.blockof(base)
	if blk.base != base {
		panicerr("%x is not a block base", base)
	}
	return blk
}

func (arena *Arena) hdrat(chunk int64) (length int64, flags uint64) {
	blk := arena.blockof(chunk)
	off := chunk - blk.base
	word := binary.LittleEndian.Uint64(blk.buf[off : off+8])
	return int64(word >> 8), word & 0xff
}

func (arena *Arena) sethdrat(chunk, length int64, flags uint64) {
	blk := arena.blockof(chunk)
	off := chunk - blk.base
	binary.LittleEndian.PutUint64(blk.buf[off:off+8], uint64(length)<<8|flags)
}
