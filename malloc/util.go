package malloc

import "fmt"

import "github.com/cloudfoundry/gosigar"

// SuitableSize picks an optimal block-size for given size,
// to achieve MEMUtilization.
func SuitableSize(blocksizes []int64, size int64) int64 {
	for {
		switch len(blocksizes) {
		case 1:
			return blocksizes[0]

		case 2:
			if size <= blocksizes[0] {
				return blocksizes[0]
			} else if size <= blocksizes[1] {
				return blocksizes[1]
			}
			panicerr("size %v greater than configured", size)

		default:
			pivot := len(blocksizes) / 2
			if blocksizes[pivot] < size {
				blocksizes = blocksizes[pivot+1:]
			} else {
				blocksizes = blocksizes[0 : pivot+1]
			}
		}
	}
}

// Blocksizes generate suitable block-sizes between minblock-size and
// maxblock-size, to acheive MEMUtilization. Sizes below Sizeinterval
// get a class for every byte, from there on sizes are multiples of
// Sizeinterval.
func Blocksizes(minblock, maxblock int64) []int64 {
	if maxblock < minblock { // validate and cure the input params
		panicerr("minblock(%v) > maxblock(%v)", minblock, maxblock)
	} else if minblock <= 0 {
		panicerr("minblock %v is not positive", minblock)
	} else if minblock >= Sizeinterval && (minblock%Sizeinterval) != 0 {
		panicerr("minblock %v is not multiple of %v", minblock, Sizeinterval)
	} else if maxblock >= Sizeinterval && (maxblock%Sizeinterval) != 0 {
		panicerr("maxblock %v is not multiple of %v", maxblock, Sizeinterval)
	}

	nextsize := func(from int64) int64 {
		addby := int64(float64(from) * (1.0 - MEMUtilization))
		if addby <= Sizeinterval {
			addby = Sizeinterval
		} else if addby%Sizeinterval != 0 {
			addby = (addby / Sizeinterval) * Sizeinterval
		}
		size := from + addby
		for (float64(from+size)/2.0)/float64(size) > MEMUtilization {
			size += addby
		}
		return size
	}

	sizes := make([]int64, 0, 64)
	size := minblock
	for ; size < Sizeinterval && size < maxblock; size++ {
		sizes = append(sizes, size)
	}
	for size < maxblock {
		sizes = append(sizes, size)
		size = nextsize(size)
	}
	sizes = append(sizes, maxblock)
	if int64(len(sizes)) > Maxpools {
		panicerr("number of size classes %v exceeds %v", len(sizes), Maxpools)
	}
	return sizes
}

// adaptiveNumchunks double the number of chunks carved for every new
// slab in a size class, starting from 1.
func adaptiveNumchunks(nslabs, maxchunks int64) int64 {
	if nslabs >= 62 {
		return maxchunks
	}
	if numchunks := int64(1) << uint64(nslabs); numchunks < maxchunks {
		return numchunks
	}
	return maxchunks
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}

var poolblkinit = make([]byte, 1024)
var zeroblkinit = make([]byte, 1024)

func init() {
	for i := 0; i < len(poolblkinit); i++ {
		poolblkinit[i] = 0xff
	}
}
