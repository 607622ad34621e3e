package main

import "flag"
import "fmt"
import "math/rand"
import "time"

import hm "github.com/dustin/go-humanize"
import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goheap/gc"

var options struct {
	capacity  int
	blocksize int
	minchunk  int
	maxchunk  int
	objects   int
	refs      int
	datasize  int
	drop      float64
	cycles    int
	compact   bool
	seed      int
}

func argParse() {
	flag.IntVar(&options.capacity, "capacity", 10*1024*1024,
		"arena capacity in bytes")
	flag.IntVar(&options.blocksize, "blocksize", 4096,
		"size of an arena block")
	flag.IntVar(&options.minchunk, "minchunk", 32,
		"minimum chunk size serviced by the arena")
	flag.IntVar(&options.maxchunk, "maxchunk", 1024,
		"maximum chunk size serviced by the arena")
	flag.IntVar(&options.objects, "n", 10000,
		"number of objects to allocate per cycle")
	flag.IntVar(&options.refs, "refs", 2,
		"reference slots per object")
	flag.IntVar(&options.datasize, "datasize", 64,
		"data area bytes per object")
	flag.Float64Var(&options.drop, "drop", 0.5,
		"fraction of roots to drop before each collection")
	flag.IntVar(&options.cycles, "cycles", 10,
		"number of allocate, drop, collect cycles")
	flag.BoolVar(&options.compact, "compact", false,
		"compact surviving objects instead of sweeping")
	flag.IntVar(&options.seed, "seed", 0,
		"random seed, 0 picks the current time")
	flag.Parse()

	if options.seed == 0 {
		options.seed = int(time.Now().UnixNano())
	}
}

func main() {
	argParse()
	rnd := rand.New(rand.NewSource(int64(options.seed)))
	fmt.Printf("seed: %v\n", options.seed)

	setts := s.Settings{
		"blocksize": int64(options.blocksize),
		"minchunk":  int64(options.minchunk),
		"maxchunk":  int64(options.maxchunk),
		"compact":   options.compact,
	}
	h := gc.NewHeap("cmdline", int64(options.capacity), setts)
	td := h.Declare("node", options.refs, int64(options.datasize))

	roots := []*gc.Handle{}
	now := time.Now()
	for cycle := 0; cycle < options.cycles; cycle++ {
		roots = populate(h, td, roots, rnd)
		roots = droproots(roots, rnd)
		h.GC()
		h.Validate()
	}
	took := time.Since(now)
	fmt.Printf("%v cycles over %v objects took %v\n",
		options.cycles, options.objects, took)

	printaccounting(h)
	h.Log()
	for _, hd := range roots {
		hd.Release()
	}
	h.Release()
}

// allocate options.objects objects, wiring each one's slots to
// randomly picked earlier objects so the graph has real shape, cross
// links and cycles included.
func populate(
	h *gc.Heap, td *gc.Descriptor,
	roots []*gc.Handle, rnd *rand.Rand) []*gc.Handle {

	for i := 0; i < options.objects; i++ {
		hd, err := h.New(td)
		if err != nil {
			fmt.Printf("arena exhausted after %v objects: %v\n", i, err)
			break
		}
		data := make([]byte, options.datasize)
		rnd.Read(data)
		hd.Setbytes(data)
		for slot := 0; slot < options.refs; slot++ {
			if len(roots) > 0 && rnd.Intn(2) == 0 {
				hd.Setref(slot, roots[rnd.Intn(len(roots))])
			}
		}
		roots = append(roots, hd)
	}
	return roots
}

// release a random options.drop fraction of the root handles, the
// collector decides which of their objects are still reachable.
func droproots(roots []*gc.Handle, rnd *rand.Rand) []*gc.Handle {
	live := roots[:0]
	for _, hd := range roots {
		if rnd.Float64() < options.drop {
			hd.Release()
		} else {
			live = append(live, hd)
		}
	}
	return live
}

func printaccounting(h *gc.Heap) {
	stats := h.Stats()
	capacity := hm.Bytes(uint64(stats["capacity"].(int64)))
	heapm := hm.Bytes(uint64(stats["heap"].(int64)))
	alloc := hm.Bytes(uint64(stats["alloc"].(int64)))
	avail := hm.Bytes(uint64(stats["available"].(int64)))
	fmsg := "Arena{cap:%v heap:%v alloc:%v avail:%v}\n"
	fmt.Printf(fmsg, capacity, heapm, alloc, avail)

	fmsg = "Collector{cycles:%v marked:%v reclaimed:%v moved:%v roots:%v}\n"
	fmt.Printf(
		fmsg, stats["ngc"], stats["nmarked"],
		hm.Bytes(uint64(stats["nreclaimed"].(int64))), stats["nmoved"],
		stats["roots"])
}
