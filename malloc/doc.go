// Package malloc supplies the memory substrate for the managed heap,
// with a limited scope:
//
//   - Types and Functions exported by this package are not thread safe.
//   - Memory is carved out of fixed size blocks, where each block
//     maintains its own bump offset; a chunk never crosses a block
//     boundary.
//   - Chunks are rounded up to slab sizes, generated between a
//     pre-configured minimum and maximum chunk size; reclaimed chunks
//     are kept in per-slab free lists.
//   - Adjacent free chunks are merged only by Coalesce(), expected to
//     be invoked by the collector at the end of its sweep.
//   - There is no pointer re-write here; the copying collector built
//     on top of this package uses Relocate() and Truncate().
//
// Chunks are addressed by offsets into the arena's private address
// space, never by native pointers, since the collector relocates
// chunks. Address zero is reserved to mean nil, block zero starts at
// address 4096. Every chunk, live or free, is prefixed by a single
// 64-bit header word recording its total size and a free flag, which
// is what makes address ordered walks possible.
package malloc
