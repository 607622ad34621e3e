package malloc

import "fmt"

// Slabsizes generate suitable slab sizes between minchunk and
// maxchunk, to achieve MEMUtilization. The ladder is deterministic
// for a given {minchunk, maxchunk} pair; chunk layout depends on it,
// so it is part of the arena's contract.
func Slabsizes(minchunk, maxchunk int64) []int64 {
	if maxchunk < minchunk { // validate the input params
		panicerr("minchunk(%v) > maxchunk(%v)", minchunk, maxchunk)
	} else if (minchunk % Sizeinterval) != 0 {
		panicerr("minchunk %v is not multiple of %v", minchunk, Sizeinterval)
	} else if (maxchunk % Sizeinterval) != 0 {
		panicerr("maxchunk %v is not multiple of %v", maxchunk, Sizeinterval)
	}

	nextsize := func(from int64) int64 {
		addby := int64(float64(from) * (1.0 - MEMUtilization))
		if addby <= 32 {
			addby = 32
		} else if addby&0x1f != 0 {
			addby = (addby >> 5) << 5
		}
		size := from + addby
		for (float64(from+size)/2.0)/float64(size) > MEMUtilization {
			size += addby
		}
		return size
	}

	sizes := make([]int64, 0, 64)
	for size := minchunk; size < maxchunk; {
		sizes = append(sizes, size)
		size = nextsize(size)
	}
	sizes = append(sizes, maxchunk)
	return sizes
}

// SuitableSlab picks the smallest slab size that can hold `size`
// bytes, `slabs` shall be in ascending order.
func SuitableSlab(slabs []int64, size int64) int64 {
	for {
		switch len(slabs) {
		case 1:
			return slabs[0]

		case 2:
			if size <= slabs[0] {
				return slabs[0]
			} else if size <= slabs[1] {
				return slabs[1]
			}
			panic(fmt.Errorf("size %v exceeds largest slab %v", size, slabs[1]))

		default:
			pivot := len(slabs) / 2
			if slabs[pivot] < size {
				slabs = slabs[pivot+1:]
			} else {
				slabs = slabs[0 : pivot+1]
			}
		}
	}
}
