package malloc

import s "github.com/bnclabs/gosettings"

// Alignment addresses and chunk sizes are always multiples of
// Alignment.
const Alignment = int64(8)

// Sizeinterval minchunk and maxchunk should be multiples of
// Sizeinterval.
const Sizeinterval = int64(32)

// MEMUtilization is the target ratio between memory requested by the
// application and slab memory handed out for it.
const MEMUtilization = float64(0.95)

// Baseaddress address of the first block, addresses below this are
// never handed out and zero means nil.
const Baseaddress = int64(4096)

// Chunkoverhead bytes consumed by the chunk header word.
const Chunkoverhead = int64(8)

// Blocksize default size of an arena block.
const Blocksize = int64(4096)

// Maxarenasize maximum size of a memory arena.
const Maxarenasize = int64(1024 * 1024 * 1024 * 1024) // 1TB

// Maxslabs maximum number of slab sizes allowed in an arena.
const Maxslabs = int64(256)

// Defaultsettings for arena. Applications can get the default settings
// and selectively override them before instantiating a new arena.
//
// "blocksize" (int64, default: Blocksize)
//		Size of an arena block. Blocks are the unit of growth and of
//		compaction; maxchunk cannot exceed blocksize.
//
// "minchunk" (int64, default: 32)
//		Minimum total size of a chunk, header included.
//
// "maxchunk" (int64, default: 1024)
//		Maximum total size of a chunk, header included.
//
// "growable" (bool, default: false)
//		If true, Grow() appends fresh blocks to the arena; if false,
//		Grow() fails with out-of-memory.
//
// "growby" (int64, default: Blocksize)
//		Minimum number of bytes appended by a single Grow() call,
//		rounded up to whole blocks.
func Defaultsettings() s.Settings {
	return s.Settings{
		"blocksize": Blocksize,
		"minchunk":  int64(32),
		"maxchunk":  int64(1024),
		"growable":  false,
		"growby":    Blocksize,
	}
}
