package bounded

import "sync/atomic"

import "github.com/bnclabs/golog"
import "github.com/bnclabs/memres/api"

func init() {
	setts := map[string]interface{}{
		"log.level": "ignore",
		"log.file":  "",
	}
	log.SetLogger(nil, setts)
	LogComponents("self")
}

// countingAllocator wraps an allocator and counts calls reaching it.
type countingAllocator struct {
	upstream api.Allocator
	nallocs  int64
	nfrees   int64
}

func (c *countingAllocator) Allocate(size, align int64) (*api.Block, error) {
	atomic.AddInt64(&c.nallocs, 1)
	return c.upstream.Allocate(size, align)
}

func (c *countingAllocator) Deallocate(block *api.Block, size, align int64) error {
	atomic.AddInt64(&c.nfrees, 1)
	return c.upstream.Deallocate(block, size, align)
}

func (c *countingAllocator) Isequal(other api.Allocator) bool {
	oth, ok := other.(*countingAllocator)
	return ok && oth == c
}
