package malloc

import "fmt"
import "sort"
import "sync"
import "unsafe"

import "github.com/bnclabs/memres/api"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Pool slices slabs obtained from upstream into equal sized chunks, one
// free-list per size class. Freed chunks are reused for later requests
// of the same class, slabs are given back to upstream only on Release.
// Requests bigger than maxblock, or aligned beyond Alignment, are passed
// through to upstream. Pool can be created with following settings:
//
//	minblock  : smallest chunk size, see Blocksizes.
//	maxblock  : largest chunk size, see Blocksizes.
//	maxchunks : maximum number of chunks carved out of a single slab.
type Pool struct {
	mu       sync.Mutex
	upstream api.Allocator
	slabs    []int64          // sorted list of chunk sizes
	flists   map[int64]*flist // size -> free-list

	// stats
	allocated   int64 // chunk bytes handed out
	heap        int64 // slab bytes obtained from upstream
	passthrough int64 // bytes passed through to upstream

	// configuration
	minblock  int64
	maxblock  int64
	maxchunks int64
}

// flist manages chunks of same size.
type flist struct {
	size      int64
	free      [][]byte
	slabs     []slab
	allocated int64
}

// slab is a single allocation from upstream, chunks of classes smaller
// than Sizeinterval are carved from slabs with request's alignment.
type slab struct {
	block *api.Block
	align int64
}

// NewPool create a new pool of chunks drawing slabs from upstream.
func NewPool(upstream api.Allocator, setts s.Settings) *Pool {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	pool := &Pool{
		upstream:  upstream,
		flists:    make(map[int64]*flist),
		minblock:  setts.Int64("minblock"),
		maxblock:  setts.Int64("maxblock"),
		maxchunks: setts.Int64("maxchunks"),
	}
	if pool.maxchunks <= 0 || pool.maxchunks > Maxchunks {
		panicerr("maxchunks %v not within (0,%v]", pool.maxchunks, Maxchunks)
	}
	pool.slabs = Blocksizes(pool.minblock, pool.maxblock)
	for _, size := range pool.slabs {
		pool.flists[size] = &flist{size: size}
	}
	debugf("pool: new with %v size classes\n", len(pool.slabs))
	return pool
}

//---- operations

// Allocate implement api.Allocator{} interface.
func (pool *Pool) Allocate(size, align int64) (*api.Block, error) {
	if err := api.Checkrequest(size, align); err != nil {
		return nil, err
	} else if pool.ispassthrough(size, align) {
		block, err := pool.upstream.Allocate(size, align)
		if err == nil {
			pool.mu.Lock()
			pool.passthrough += size
			pool.mu.Unlock()
		}
		return block, err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.flists == nil {
		panicerr("pool released")
	}
	fl := pool.flists[SuitableSize(pool.slabs, size)]
	chunk, ok := fl.pop(align)
	if !ok {
		if err := pool.refill(fl, align); err != nil {
			return nil, err
		}
		// first chunk of a new slab is always aligned.
		chunk, _ = fl.pop(align)
	}
	initblock(chunk)
	fl.allocated += fl.size
	pool.allocated += fl.size
	return &api.Block{Data: chunk[:size]}, nil
}

// Deallocate implement api.Allocator{} interface.
func (pool *Pool) Deallocate(block *api.Block, size, align int64) error {
	if block == nil {
		return fmt.Errorf("%w: nil block", api.ErrorInvalidRelease)
	} else if x := block.Len(); x != size {
		fmsg := "%w: block of %v bytes released as %v bytes"
		return fmt.Errorf(fmsg, api.ErrorInvalidRelease, x, size)
	} else if pool.ispassthrough(size, align) {
		if err := pool.upstream.Deallocate(block, size, align); err != nil {
			return err
		}
		pool.mu.Lock()
		pool.passthrough -= size
		pool.mu.Unlock()
		return nil
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.flists == nil {
		panicerr("pool released")
	}
	fl := pool.flists[SuitableSize(pool.slabs, size)]
	if int64(cap(block.Data)) != fl.size {
		fmsg := "%w: chunk capacity %v does not match size class %v"
		return fmt.Errorf(fmsg, api.ErrorInvalidRelease, cap(block.Data), fl.size)
	}
	fl.free = append(fl.free, block.Data[:fl.size])
	fl.allocated -= fl.size
	pool.allocated -= fl.size
	block.Data = nil
	return nil
}

// Isequal implement api.Allocator{} interface.
func (pool *Pool) Isequal(other api.Allocator) bool {
	oth, ok := other.(*Pool)
	return ok && oth == pool
}

// Release pool, all its slabs are given back to upstream. Pool shall not
// be used after it is released.
func (pool *Pool) Release() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	for _, fl := range pool.flists {
		for _, sl := range fl.slabs {
			size := sl.block.Len()
			if err := pool.upstream.Deallocate(sl.block, size, sl.align); err != nil {
				warnf("pool: releasing slab of %v bytes: %v\n", size, err)
			}
		}
		fl.slabs, fl.free = nil, nil
	}
	pool.flists, pool.heap, pool.allocated = nil, 0, 0
}

//---- statistics and maintenance

// Slabs return the list of chunk sizes managed by this pool.
func (pool *Pool) Slabs() []int64 {
	return pool.slabs
}

// Info of memory accounting for this pool.
func (pool *Pool) Info() (capacity, heap, alloc, overhead int64) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	self := int64(unsafe.Sizeof(*pool))
	slicesz := int64(cap(pool.slabs)) * int64(unsafe.Sizeof(int64(1)))
	overhead = self + slicesz
	for _, fl := range pool.flists {
		overhead += int64(unsafe.Sizeof(*fl))
		overhead += int64(cap(fl.free)) * int64(unsafe.Sizeof([]byte(nil)))
		overhead += int64(cap(fl.slabs)) * int64(unsafe.Sizeof(slab{}))
	}
	heap = pool.heap + pool.passthrough
	return heap, heap, pool.allocated + pool.passthrough, overhead
}

// Utilization map of chunk-size and its utilization in percent.
func (pool *Pool) Utilization() ([]int, []float64) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	var sizes []int
	for _, size := range pool.slabs {
		sizes = append(sizes, int(size))
	}
	sort.Ints(sizes)

	ss, zs := make([]int, 0), make([]float64, 0)
	for _, size := range sizes {
		fl := pool.flists[int64(size)]
		capacity := float64(int64(len(fl.free))*fl.size + fl.allocated)
		if capacity > 0 {
			ss = append(ss, size)
			zs = append(zs, (float64(fl.allocated)/capacity)*100)
		}
	}
	return ss, zs
}

// Log pool statistics.
func (pool *Pool) Log(humanized bool) {
	_, heap, alloc, overhead := pool.Info()
	fmsg := "pool: heap:%v alloc:%v overhead:%v\n"
	if humanized {
		infof(fmsg, humanize.Bytes(uint64(heap)), humanize.Bytes(uint64(alloc)),
			humanize.Bytes(uint64(overhead)))
	} else {
		infof(fmsg, heap, alloc, overhead)
	}
	sizes, zs := pool.Utilization()
	for i, size := range sizes {
		infof("pool: size %v utilization %.2f%%\n", size, zs[i])
	}
}

//---- local functions

func (pool *Pool) ispassthrough(size, align int64) bool {
	return size > pool.maxblock || align > api.Alignment
}

// refill carves a new slab from upstream. Number of chunks doubles with
// every slab created for the size class, if upstream cannot supply the
// full slab settle for a single chunk.
func (pool *Pool) refill(fl *flist, align int64) error {
	slabalign := api.Alignment
	if fl.size < Sizeinterval {
		slabalign = align
	}
	numchunks := adaptiveNumchunks(int64(len(fl.slabs)), pool.maxchunks)
	block, err := pool.upstream.Allocate(numchunks*fl.size, slabalign)
	if err != nil && numchunks > 1 {
		numchunks = 1
		block, err = pool.upstream.Allocate(fl.size, slabalign)
	}
	if err != nil {
		return err
	}
	fl.slabs = append(fl.slabs, slab{block: block, align: slabalign})
	for i := numchunks - 1; i >= 0; i-- {
		off := i * fl.size
		fl.free = append(fl.free, block.Data[off:off+fl.size:off+fl.size])
	}
	pool.heap += block.Len()
	debugf("pool: new slab of %v chunks for size %v\n", numchunks, fl.size)
	return nil
}

// pop a free chunk whose address is a multiple of align.
func (fl *flist) pop(align int64) ([]byte, bool) {
	for i := len(fl.free) - 1; i >= 0; i-- {
		chunk := fl.free[i]
		if chunkaddr(chunk)%align == 0 {
			n := len(fl.free) - 1
			fl.free[i] = fl.free[n]
			fl.free = fl.free[:n]
			return chunk, true
		}
	}
	return nil, false
}

func chunkaddr(chunk []byte) int64 {
	return int64(uintptr(unsafe.Pointer(unsafe.SliceData(chunk))))
}
