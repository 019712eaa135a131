package bounded

import "fmt"
import "sync"
import "errors"
import "sync/atomic"

import "github.com/bnclabs/memres/api"
import "github.com/bnclabs/memres/malloc"
import s "github.com/bnclabs/gosettings"

// fbstate is either active{upstream} or exhausted{sink}, transition is
// one-way from active to exhausted.
type fbstate interface {
	isfbstate()
}

type active struct {
	upstream api.Allocator
}

type exhausted struct {
	sink api.Allocator
}

func (*active) isfbstate()    {}
func (*exhausted) isfbstate() {}

type stateref struct {
	fbstate
}

// grant remembers who produced a block, and how it was requested.
type grant struct {
	producer api.Allocator
	size     int64
	align    int64
}

// Fallback forwards allocation requests to upstream until upstream gets
// exhausted, after which every request fails without touching upstream.
type Fallback struct {
	// 64-bit aligned stats
	nallocs  int64
	nfrees   int64
	nrejects int64

	name   string
	sink   *malloc.Sink
	state  atomic.Pointer[stateref]
	mu     sync.Mutex
	grants map[*api.Block]grant
}

// NewFallback create a fallback allocator over upstream. Upstream is
// borrowed and shall outlive the fallback allocator.
func NewFallback(upstream api.Allocator, setts s.Settings) *Fallback {
	if upstream == nil {
		panic(fmt.Errorf("fallback allocator needs an upstream"))
	}
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	fb := &Fallback{
		name:   allocatorname(setts),
		sink:   malloc.NewSink(),
		grants: make(map[*api.Block]grant),
	}
	fb.state.Store(&stateref{&active{upstream: upstream}})
	debugf("%v: new fallback allocator\n", fb.name)
	return fb
}

//---- operations

// Allocate implement api.Allocator{} interface.
func (fb *Fallback) Allocate(size, align int64) (*api.Block, error) {
	ref := fb.state.Load()
	switch st := ref.fbstate.(type) {
	case *exhausted:
		atomic.AddInt64(&fb.nrejects, 1)
		return st.sink.Allocate(size, align)

	case *active:
		block, err := st.upstream.Allocate(size, align)
		if err == nil {
			if fb.record(ref, block, grant{st.upstream, size, align}) {
				atomic.AddInt64(&fb.nallocs, 1)
				return block, nil
			}
			// lost the race with exhaustion, give it back.
			if err := st.upstream.Deallocate(block, size, align); err != nil {
				warnf("%v: returning block to upstream: %v\n", fb.name, err)
			}
			return fb.Allocate(size, align)

		} else if !errors.Is(err, api.ErrorExhausted) {
			return nil, err
		}
		fb.exhaust(ref)
		return fb.Allocate(size, align)
	}
	panic("unreachable code")
}

// Deallocate implement api.Allocator{} interface. Block is released
// through the allocator that produced it, irrespective of the current
// state.
func (fb *Fallback) Deallocate(block *api.Block, size, align int64) error {
	if block == nil {
		return fmt.Errorf("%w: nil block", api.ErrorInvalidRelease)
	}

	fb.mu.Lock()
	g, ok := fb.grants[block]
	if ok && g.size == size && g.align == align {
		delete(fb.grants, block)
	}
	fb.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: block not granted by %v", api.ErrorInvalidRelease, fb.name)
	} else if g.size != size || g.align != align {
		fmsg := "%w: granted as {%v,%v} released as {%v,%v}"
		return fmt.Errorf(fmsg, api.ErrorInvalidRelease, g.size, g.align, size, align)
	}
	if err := g.producer.Deallocate(block, size, align); err != nil {
		return err
	}
	atomic.AddInt64(&fb.nfrees, 1)
	return nil
}

// Isequal implement api.Allocator{} interface.
func (fb *Fallback) Isequal(other api.Allocator) bool {
	oth, ok := other.(*Fallback)
	return ok && oth == fb
}

//---- statistics and maintenance

// Name of this allocator.
func (fb *Fallback) Name() string {
	return fb.name
}

// Exhausted return true once upstream has been abandoned.
func (fb *Fallback) Exhausted() bool {
	_, ok := fb.state.Load().fbstate.(*exhausted)
	return ok
}

// Outstanding return the number of blocks yet to be deallocated.
func (fb *Fallback) Outstanding() int64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return int64(len(fb.grants))
}

// Stats return allocation counters.
func (fb *Fallback) Stats() map[string]interface{} {
	return map[string]interface{}{
		"exhausted":   fb.Exhausted(),
		"outstanding": fb.Outstanding(),
		"n_allocs":    atomic.LoadInt64(&fb.nallocs),
		"n_frees":     atomic.LoadInt64(&fb.nfrees),
		"n_rejects":   atomic.LoadInt64(&fb.nrejects),
	}
}

//---- local functions

// record the grant only if state is still `ref`, exhaust() switches the
// state under the same lock.
func (fb *Fallback) record(ref *stateref, block *api.Block, g grant) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.state.Load() != ref {
		return false
	}
	fb.grants[block] = g
	return true
}

func (fb *Fallback) exhaust(ref *stateref) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	next := &stateref{&exhausted{sink: fb.sink}}
	if fb.state.CompareAndSwap(ref, next) {
		infof("%v: upstream exhausted, switched to sink\n", fb.name)
	}
}
