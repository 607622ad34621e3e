// Package gc implements a garbage collected heap on top of the
// malloc arena. Applications declare object layouts as descriptors,
// allocate objects through Handle values and mutate reference slots
// only through those handles; liveness is decided by tracing
// reachability from the registered roots, never by counting, so
// cyclic structures unreachable from any root are reclaimed like any
// other garbage.
//
// The collector is single threaded and stop the world: a cycle runs
// to completion inside the allocation call that triggered it, or
// inside an explicit GC() call. Marking is tri-color with an explicit
// gray worklist; reclamation either sweeps dead chunks back into the
// arena free lists or, when compaction is enabled, slides survivors
// into a contiguous prefix of each block and rewrites the root set
// and every surviving reference slot through forwarding addresses.
//
// Types and Functions exported by this package are not thread safe.
// Multiple heaps can coexist, each fully isolated with its own arena
// and root set.
package gc
