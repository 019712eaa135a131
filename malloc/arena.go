package malloc

import "fmt"
import "sync"
import "unsafe"
import "sync/atomic"

import "github.com/bnclabs/memres/api"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Arena is a single contiguous block of memory, of fixed capacity,
// handed out linearly. Allocations only advance the offset, deallocated
// memory is never reused. Arena can be created with following settings:
//
//	capacity : size of arena in bytes.
//	overflow : what to do with requests that don't fit, "reject" or "heap".
type Arena struct {
	// 64-bit aligned stats
	offset    int64 // bytes consumed, including alignment padding
	noverflow int64 // requests served by overflow allocator
	released  int64

	capacity int64
	buf      []byte
	base     int64 // address of buf[0]

	overflow api.Allocator
	mu       sync.Mutex
	spilled  map[*api.Block]bool // blocks served by overflow
}

// NewArena create a new memory arena.
func NewArena(setts s.Settings) *Arena {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	capacity := setts.Int64("capacity")
	if capacity < 0 {
		panicerr("arena capacity cannot be negative %v", capacity)
	} else if capacity > Maxarenasize {
		panicerr("arena cannot exceed %v bytes (%v)", Maxarenasize, capacity)
	}
	if _, _, free := getsysmem(); free > 0 && uint64(capacity) > free {
		fmsg := "arena capacity %v exceeds free memory %v\n"
		warnf(fmsg, humanize.Bytes(uint64(capacity)), humanize.Bytes(free))
	}

	arena := &Arena{
		capacity: capacity,
		overflow: overflowallocator(setts),
		spilled:  make(map[*api.Block]bool),
	}
	// base of the arena is always 64-bit aligned.
	buf := make([]byte, capacity+api.Alignment-1)
	addr := int64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	start := api.Alignup(addr, api.Alignment) - addr
	arena.buf = buf[start : start+capacity : start+capacity]
	arena.base = addr + start
	debugf("arena: new with capacity %v\n", capacity)
	return arena
}

//---- operations

// Allocate implement api.Allocator{} interface.
func (arena *Arena) Allocate(size, align int64) (*api.Block, error) {
	if err := api.Checkrequest(size, align); err != nil {
		return nil, err
	}
	arena.panicifreleased()

	for {
		off := atomic.LoadInt64(&arena.offset)
		start := api.Alignup(arena.base+off, align) - arena.base
		if start > arena.capacity || size > arena.capacity-start {
			return arena.spill(size, align)
		}
		end := start + size
		if atomic.CompareAndSwapInt64(&arena.offset, off, end) {
			return &api.Block{Data: arena.buf[start:end:end]}, nil
		}
	}
}

// Deallocate implement api.Allocator{} interface. Arena memory is not
// reclaimed, blocks served by the overflow allocator are given back to
// it.
func (arena *Arena) Deallocate(block *api.Block, size, align int64) error {
	if block == nil {
		return fmt.Errorf("%w: nil block", api.ErrorInvalidRelease)
	} else if x := block.Len(); x != size {
		fmsg := "%w: block of %v bytes released as %v bytes"
		return fmt.Errorf(fmsg, api.ErrorInvalidRelease, x, size)
	}

	arena.mu.Lock()
	spilled := arena.spilled[block]
	delete(arena.spilled, block)
	arena.mu.Unlock()

	if spilled {
		return arena.overflow.Deallocate(block, size, align)
	} else if !arena.contains(block) {
		return fmt.Errorf("%w: block not from arena", api.ErrorInvalidRelease)
	}
	return nil
}

// Isequal implement api.Allocator{} interface.
func (arena *Arena) Isequal(other api.Allocator) bool {
	oth, ok := other.(*Arena)
	return ok && oth == arena
}

// Release arena and all its resources. Arena shall not be used after
// it is released.
func (arena *Arena) Release() {
	atomic.StoreInt64(&arena.released, 1)
	arena.mu.Lock()
	arena.buf, arena.spilled = nil, nil
	arena.mu.Unlock()
	debugf("arena: released %v bytes\n", arena.capacity)
}

//---- statistics and maintenance

// Capacity return the fixed size of this arena.
func (arena *Arena) Capacity() int64 {
	return arena.capacity
}

// Allocated return bytes consumed so far, including alignment padding
// and blocks that were deallocated.
func (arena *Arena) Allocated() int64 {
	return atomic.LoadInt64(&arena.offset)
}

// Available return bytes that can still be handed out.
func (arena *Arena) Available() int64 {
	return arena.capacity - arena.Allocated()
}

// Overflowed return the number of requests forwarded to overflow.
func (arena *Arena) Overflowed() int64 {
	return atomic.LoadInt64(&arena.noverflow)
}

// Info of memory accounting for this arena.
func (arena *Arena) Info() (capacity, heap, alloc, overhead int64) {
	arena.mu.Lock()
	nspilled := int64(len(arena.spilled))
	arena.mu.Unlock()
	self := int64(unsafe.Sizeof(*arena))
	slotsz := int64(unsafe.Sizeof(uintptr(0))) * 2
	overhead = self + nspilled*slotsz
	return arena.capacity, arena.capacity, arena.Allocated(), overhead
}

// Log arena statistics.
func (arena *Arena) Log(humanized bool) {
	capacity, heap, alloc, overhead := arena.Info()
	if humanized {
		fmsg := "arena: capacity:%v heap:%v alloc:%v overhead:%v\n"
		infof(fmsg,
			humanize.Bytes(uint64(capacity)), humanize.Bytes(uint64(heap)),
			humanize.Bytes(uint64(alloc)), humanize.Bytes(uint64(overhead)))
		return
	}
	fmsg := "arena: capacity:%v heap:%v alloc:%v overhead:%v\n"
	infof(fmsg, capacity, heap, alloc, overhead)
}

//---- local functions

func (arena *Arena) spill(size, align int64) (*api.Block, error) {
	block, err := arena.overflow.Allocate(size, align)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&arena.noverflow, 1)
	arena.mu.Lock()
	arena.spilled[block] = true
	arena.mu.Unlock()
	return block, nil
}

func (arena *Arena) contains(block *api.Block) bool {
	if cap(block.Data) == 0 {
		return true
	}
	addr := int64(uintptr(unsafe.Pointer(unsafe.SliceData(block.Data))))
	return addr >= arena.base && addr < arena.base+arena.capacity
}

func (arena *Arena) panicifreleased() {
	if atomic.LoadInt64(&arena.released) > 0 {
		panicerr("arena released")
	}
}
