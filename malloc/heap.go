package malloc

import "fmt"
import "unsafe"
import "sync/atomic"

import "github.com/bnclabs/memres/api"

// Heap allocates memory from golang runtime, freed blocks are left to
// the garbage collector. Requests bigger than system memory fail with
// api.ErrorExhausted. Layer a bounded allocator on top of it to cap the
// heap usage of a component.
type Heap struct {
	// 64-bit aligned stats
	allocated int64
	nallocs   int64
	nfrees    int64

	limit int64 // largest single block, system memory
}

// NewHeap create a new heap allocator.
func NewHeap() *Heap {
	heap := &Heap{limit: Maxarenasize}
	if total, _, _ := getsysmem(); total > 0 && total < uint64(Maxarenasize) {
		heap.limit = int64(total)
	}
	return heap
}

// Allocate implement api.Allocator{} interface.
func (heap *Heap) Allocate(size, align int64) (*api.Block, error) {
	if err := api.Checkrequest(size, align); err != nil {
		return nil, err
	} else if size > heap.limit {
		fmsg := "%w: %v bytes exceeds heap limit %v"
		return nil, fmt.Errorf(fmsg, api.ErrorExhausted, size, heap.limit)
	}
	buf := make([]byte, size+align-1)
	start := int64(0)
	if len(buf) > 0 {
		addr := int64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
		start = api.Alignup(addr, align) - addr
	}
	end := start + size
	atomic.AddInt64(&heap.allocated, size)
	atomic.AddInt64(&heap.nallocs, 1)
	return &api.Block{Data: buf[start:end:end]}, nil
}

// Deallocate implement api.Allocator{} interface.
func (heap *Heap) Deallocate(block *api.Block, size, align int64) error {
	if block == nil {
		return fmt.Errorf("%w: nil block", api.ErrorInvalidRelease)
	} else if x := block.Len(); x != size {
		fmsg := "%w: block of %v bytes released as %v bytes"
		return fmt.Errorf(fmsg, api.ErrorInvalidRelease, x, size)
	}
	atomic.AddInt64(&heap.allocated, -size)
	atomic.AddInt64(&heap.nfrees, 1)
	return nil
}

// Isequal implement api.Allocator{} interface.
func (heap *Heap) Isequal(other api.Allocator) bool {
	oth, ok := other.(*Heap)
	return ok && oth == heap
}

// Allocated return bytes outstanding from this heap allocator.
func (heap *Heap) Allocated() int64 {
	return atomic.LoadInt64(&heap.allocated)
}

// Stats return allocation counters.
func (heap *Heap) Stats() map[string]interface{} {
	return map[string]interface{}{
		"allocated": atomic.LoadInt64(&heap.allocated),
		"n_allocs":  atomic.LoadInt64(&heap.nallocs),
		"n_frees":   atomic.LoadInt64(&heap.nfrees),
	}
}
