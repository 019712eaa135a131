package malloc

import "sync/atomic"

import "github.com/bnclabs/memres/api"

// Sink is an allocator that fails every allocation and accepts every
// deallocation as a no-op.
type Sink struct {
	rejected int64
}

// NewSink create a new sink allocator.
func NewSink() *Sink {
	return &Sink{}
}

// Allocate implement api.Allocator{} interface, always fails.
func (sink *Sink) Allocate(size, align int64) (*api.Block, error) {
	atomic.AddInt64(&sink.rejected, 1)
	return nil, api.ErrorExhausted
}

// Deallocate implement api.Allocator{} interface, no-op.
func (sink *Sink) Deallocate(block *api.Block, size, align int64) error {
	return nil
}

// Isequal implement api.Allocator{} interface.
func (sink *Sink) Isequal(other api.Allocator) bool {
	oth, ok := other.(*Sink)
	return ok && oth == sink
}

// Rejected return the number of allocation requests rejected so far.
func (sink *Sink) Rejected() int64 {
	return atomic.LoadInt64(&sink.rejected)
}
