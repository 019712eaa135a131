package bounded

import "fmt"
import "sync"
import "sync/atomic"

import "github.com/bnclabs/memres/api"
import "github.com/bnclabs/memres/lib"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Accounting enforces a byte budget on outstanding allocations made
// through it, and records every allocation and deallocation along with
// the running total.
type Accounting struct {
	// 64-bit aligned stats
	total    int64
	peak     int64
	nallocs  int64
	nfrees   int64
	nrejects int64

	name     string
	budget   int64
	upstream api.Allocator
	recorder Recorder

	mu     sync.Mutex
	grants map[*api.Block]grant
	sizes  *lib.HistogramInt64
}

// NewAccounting create an accounting allocator over upstream, typically
// a pool. Upstream is borrowed and shall outlive the accounting
// allocator. Events are logged by default, use SetRecorder to change.
func NewAccounting(upstream api.Allocator, setts s.Settings) *Accounting {
	if upstream == nil {
		panic(fmt.Errorf("accounting allocator needs an upstream"))
	}
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	acct := &Accounting{
		name:     allocatorname(setts),
		budget:   setts.Int64("budget"),
		upstream: upstream,
		recorder: Logrecorder{},
		grants:   make(map[*api.Block]grant),
	}
	if acct.budget < 0 {
		panic(fmt.Errorf("budget cannot be negative %v", acct.budget))
	}
	till, width := setts.Int64("histogram.till"), setts.Int64("histogram.width")
	acct.sizes = lib.NewHistogramInt64(0, till, width)
	debugf("%v: new accounting allocator, budget %v\n", acct.name, acct.budget)
	return acct
}

// SetRecorder to consume allocation events, shall be called before the
// allocator is shared with other goroutines.
func (acct *Accounting) SetRecorder(recorder Recorder) *Accounting {
	acct.recorder = recorder
	return acct
}

//---- operations

// Allocate implement api.Allocator{} interface. Fails with
// api.ErrorBudgetExceeded, without charging anything, if the request
// would take the total beyond budget.
func (acct *Accounting) Allocate(size, align int64) (*api.Block, error) {
	if err := api.Checkrequest(size, align); err != nil {
		return nil, err
	}
	total, err := acct.reserve(size)
	if err != nil {
		atomic.AddInt64(&acct.nrejects, 1)
		debugf("%v: %v\n", acct.name, err)
		return nil, err
	}
	block, err := acct.upstream.Allocate(size, align)
	if err != nil {
		atomic.AddInt64(&acct.total, -size)
		return nil, err
	}
	acct.setpeak(total)

	acct.mu.Lock()
	acct.grants[block] = grant{producer: acct.upstream, size: size, align: align}
	acct.sizes.Add(size)
	acct.mu.Unlock()

	atomic.AddInt64(&acct.nallocs, 1)
	acct.recorder.Record(Event{Op: OpAllocate, Size: size, Total: total})
	return block, nil
}

// Deallocate implement api.Allocator{} interface.
func (acct *Accounting) Deallocate(block *api.Block, size, align int64) error {
	if block == nil {
		return fmt.Errorf("%w: nil block", api.ErrorInvalidRelease)
	}

	acct.mu.Lock()
	g, ok := acct.grants[block]
	if !ok {
		acct.mu.Unlock()
		return fmt.Errorf("%w: block not granted by %v", api.ErrorInvalidRelease, acct.name)
	} else if g.size != size || g.align != align {
		acct.mu.Unlock()
		fmsg := "%w: granted as {%v,%v} released as {%v,%v}"
		return fmt.Errorf(fmsg, api.ErrorInvalidRelease, g.size, g.align, size, align)
	}
	delete(acct.grants, block)
	acct.mu.Unlock()

	if err := acct.upstream.Deallocate(block, size, align); err != nil {
		acct.mu.Lock()
		acct.grants[block] = g
		acct.mu.Unlock()
		return err
	}
	total := atomic.AddInt64(&acct.total, -size)
	atomic.AddInt64(&acct.nfrees, 1)
	acct.recorder.Record(Event{Op: OpDeallocate, Size: size, Total: total})
	return nil
}

// Isequal implement api.Allocator{} interface.
func (acct *Accounting) Isequal(other api.Allocator) bool {
	oth, ok := other.(*Accounting)
	return ok && oth == acct
}

//---- statistics and maintenance

// Name of this allocator.
func (acct *Accounting) Name() string {
	return acct.name
}

// Budget return the configured limit on outstanding bytes.
func (acct *Accounting) Budget() int64 {
	return acct.budget
}

// Total return bytes outstanding right now.
func (acct *Accounting) Total() int64 {
	return atomic.LoadInt64(&acct.total)
}

// Available return bytes that can still be granted.
func (acct *Accounting) Available() int64 {
	return acct.budget - acct.Total()
}

// Stats return allocation counters and request-size histogram.
func (acct *Accounting) Stats() map[string]interface{} {
	acct.mu.Lock()
	outstanding := int64(len(acct.grants))
	sizes := acct.sizes.Clone()
	acct.mu.Unlock()

	return map[string]interface{}{
		"budget":      acct.budget,
		"total":       atomic.LoadInt64(&acct.total),
		"peak":        atomic.LoadInt64(&acct.peak),
		"outstanding": outstanding,
		"n_allocs":    atomic.LoadInt64(&acct.nallocs),
		"n_frees":     atomic.LoadInt64(&acct.nfrees),
		"n_rejects":   atomic.LoadInt64(&acct.nrejects),
		"sizes":       sizes.Fullstats(),
	}
}

// Log accounting statistics.
func (acct *Accounting) Log(humanized bool) {
	stats := acct.Stats()
	budget, total, peak := stats["budget"], stats["total"], stats["peak"]
	if humanized {
		budget = humanize.Bytes(uint64(acct.budget))
		total = humanize.Bytes(uint64(stats["total"].(int64)))
		peak = humanize.Bytes(uint64(stats["peak"].(int64)))
	}
	fmsg := "%v: budget:%v total:%v peak:%v outstanding:%v\n"
	infof(fmsg, acct.name, budget, total, peak, stats["outstanding"])
	fmsg = "%v: allocs:%v frees:%v rejects:%v\n"
	infof(fmsg, acct.name, stats["n_allocs"], stats["n_frees"], stats["n_rejects"])

	acct.mu.Lock()
	logstr := acct.sizes.Logstring()
	acct.mu.Unlock()
	infof("%v: request sizes %v\n", acct.name, logstr)
}

//---- local functions

// reserve check the budget and charge `size` in one atomic step, return
// the running total after the charge.
func (acct *Accounting) reserve(size int64) (int64, error) {
	for {
		total := atomic.LoadInt64(&acct.total)
		if size > acct.budget-total {
			fmsg := "%w: %v + %v > %v"
			return total, fmt.Errorf(fmsg, api.ErrorBudgetExceeded, total, size, acct.budget)
		}
		if atomic.CompareAndSwapInt64(&acct.total, total, total+size) {
			return total + size, nil
		}
	}
}

func (acct *Accounting) setpeak(total int64) {
	for {
		peak := atomic.LoadInt64(&acct.peak)
		if total <= peak || atomic.CompareAndSwapInt64(&acct.peak, peak, total) {
			return
		}
	}
}
