package memres

import "fmt"

import "github.com/bnclabs/golog"
import "github.com/bnclabs/memres/api"
import "github.com/bnclabs/memres/bounded"
import "github.com/bnclabs/memres/malloc"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Defaultsettings for a Stack.
//
// "policy" (string, default: "accounting")
//		Composition of the stack, can be "fallback", "accounting" or
//		"heapcap".
//
// "name" (string, default: "")
//		Name of the bounded allocator at the top of the stack.
//
// "budget" (int64, default: <free system memory>)
//		Byte budget for "accounting" and "heapcap" policies.
//
// "alignment" (int64, default: 8)
//		Alignment used by Stack users when allocating objects.
//
// "arena.capacity" (int64, default: 64MB)
//		Size of the backing arena.
//
// "arena.overflow" (string, default: "reject")
//		Overflow behaviour of the backing arena, "reject" or "heap".
//
// "pool.minblock" (int64, default: 1)
// "pool.maxblock" (int64, default: 4096)
// "pool.maxchunks" (int64, default: 1024)
//		Size classes of the pool used by "accounting" policy. Pool
//		keeps a class for every size below 8 bytes, so that small
//		arenas are not wasted on rounding.
func Defaultsettings() s.Settings {
	mallocsetts := malloc.Defaultsettings()
	boundsetts := bounded.Defaultsettings()
	return s.Settings{
		"policy":         "accounting",
		"name":           boundsetts.String("name"),
		"budget":         boundsetts.Int64("budget"),
		"alignment":      api.Alignment,
		"arena.capacity": mallocsetts.Int64("capacity"),
		"arena.overflow": mallocsetts.String("overflow"),
		"pool.minblock":  int64(1),
		"pool.maxblock":  mallocsetts.Int64("maxblock"),
		"pool.maxchunks": mallocsetts.Int64("maxchunks"),
	}
}

// Stack of allocators composed from settings. Layers below the top are
// owned by the stack and released along with it.
type Stack struct {
	policy    string
	alignment int64

	arena    *malloc.Arena
	heap     *malloc.Heap
	pool     *malloc.Pool
	fallback *bounded.Fallback
	acct     *bounded.Accounting
	top      api.Allocator
}

// NewStack compose allocators as per "policy" setting.
func NewStack(setts s.Settings) *Stack {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	stack := &Stack{
		policy:    setts.String("policy"),
		alignment: setts.Int64("alignment"),
	}
	if err := api.Checkrequest(0, stack.alignment); err != nil {
		panic(err)
	}

	boundsetts := s.Settings{
		"name":   setts.String("name"),
		"budget": setts.Int64("budget"),
	}
	switch stack.policy {
	case "fallback":
		stack.arena = malloc.NewArena(setts.Section("arena.").Trim("arena."))
		stack.fallback = bounded.NewFallback(stack.arena, boundsetts)
		stack.top = stack.fallback

	case "accounting":
		stack.arena = malloc.NewArena(setts.Section("arena.").Trim("arena."))
		stack.pool = malloc.NewPool(stack.arena, setts.Section("pool.").Trim("pool."))
		stack.acct = bounded.NewAccounting(stack.pool, boundsetts)
		stack.top = stack.acct

	case "heapcap":
		stack.heap = malloc.NewHeap()
		stack.acct = bounded.NewAccounting(stack.heap, boundsetts)
		stack.top = stack.acct

	default:
		panic(fmt.Errorf("invalid policy %q", stack.policy))
	}
	log.Infof("memres: new %q stack\n", stack.policy)
	return stack
}

// Allocator at the top of the stack.
func (stack *Stack) Allocator() api.Allocator {
	return stack.top
}

// Policy return the composition of this stack.
func (stack *Stack) Policy() string {
	return stack.policy
}

// Alignment to use for allocations on this stack.
func (stack *Stack) Alignment() int64 {
	return stack.alignment
}

// SetRecorder for allocation events, ignored by stacks without an
// accounting allocator.
func (stack *Stack) SetRecorder(recorder bounded.Recorder) *Stack {
	if stack.acct != nil {
		stack.acct.SetRecorder(recorder)
	}
	return stack
}

// Stats from every layer of the stack.
func (stack *Stack) Stats() map[string]interface{} {
	stats := map[string]interface{}{"policy": stack.policy}
	if stack.fallback != nil {
		stats["fallback"] = stack.fallback.Stats()
	}
	if stack.acct != nil {
		stats["accounting"] = stack.acct.Stats()
	}
	if stack.pool != nil {
		_, heap, alloc, overhead := stack.pool.Info()
		sizes, zs := stack.pool.Utilization()
		stats["pool"] = map[string]interface{}{
			"heap": heap, "alloc": alloc, "overhead": overhead,
			"sizes": sizes, "utilization": zs,
		}
	}
	if stack.arena != nil {
		stats["arena"] = map[string]interface{}{
			"capacity":   stack.arena.Capacity(),
			"allocated":  stack.arena.Allocated(),
			"overflowed": stack.arena.Overflowed(),
		}
	}
	if stack.heap != nil {
		stats["heap"] = stack.heap.Stats()
	}
	return stats
}

// Log statistics from every layer of the stack.
func (stack *Stack) Log(humanized bool) {
	if stack.acct != nil {
		stack.acct.Log(humanized)
	}
	if stack.fallback != nil {
		stats := stack.fallback.Stats()
		fmsg := "memres: fallback exhausted:%v outstanding:%v rejects:%v\n"
		log.Infof(fmsg, stats["exhausted"], stats["outstanding"], stats["n_rejects"])
	}
	if stack.pool != nil {
		stack.pool.Log(humanized)
	}
	if stack.arena != nil {
		stack.arena.Log(humanized)
	}
	if stack.heap != nil {
		allocated := stack.heap.Allocated()
		if humanized {
			log.Infof("memres: heap allocated:%v\n", humanize.Bytes(uint64(allocated)))
		} else {
			log.Infof("memres: heap allocated:%v\n", allocated)
		}
	}
}

// Release the stack, including the backing memory. Blocks obtained from
// the stack shall not be used after this call.
func (stack *Stack) Release() {
	if stack.pool != nil {
		stack.pool.Release()
	}
	if stack.arena != nil {
		stack.arena.Release()
	}
	log.Infof("memres: %q stack released\n", stack.policy)
}
