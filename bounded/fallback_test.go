package bounded

import "math"
import "errors"
import "testing"

import "github.com/bnclabs/memres/api"
import "github.com/bnclabs/memres/malloc"
import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func newtestfallback(capacity int64) (*Fallback, *countingAllocator, *malloc.Arena) {
	arena := malloc.NewArena(s.Settings{"capacity": capacity})
	upstream := &countingAllocator{upstream: arena}
	fb := NewFallback(upstream, s.Settings{"name": "testfallback"})
	return fb, upstream, arena
}

func TestFallbackScenario(t *testing.T) {
	fb, upstream, arena := newtestfallback(10)
	defer arena.Release()

	alloc := func(size int64) *api.Block {
		block, err := fb.Allocate(size, 1)
		require.NoError(t, err)
		require.Equal(t, size, block.Len())
		return block
	}
	free := func(block *api.Block, size int64) {
		require.NoError(t, fb.Deallocate(block, size, 1))
	}

	obj := alloc(1)
	free(obj, 1)
	obj3 := alloc(4)
	obj4 := alloc(1)
	free(obj4, 1)
	obj5, obj6, obj7 := alloc(2), alloc(1), alloc(1)
	// freed bytes are never reused by the arena.
	assert.Equal(t, int64(10), arena.Allocated())
	assert.False(t, fb.Exhausted())

	_, err := fb.Allocate(4, 1)
	assert.True(t, errors.Is(err, api.ErrorExhausted))
	assert.True(t, fb.Exhausted())
	assert.Equal(t, "testfallback", fb.Name())

	// once exhausted, upstream is never touched again, even for size 0
	// and even after intervening deallocations.
	nallocs := upstream.nallocs
	_, err = fb.Allocate(0, 1)
	assert.True(t, errors.Is(err, api.ErrorExhausted))
	free(obj7, 1)
	free(obj6, 1)
	_, err = fb.Allocate(1, 1)
	assert.True(t, errors.Is(err, api.ErrorExhausted))
	assert.Equal(t, nallocs, upstream.nallocs)

	// blocks granted before exhaustion go back to their producer.
	nfrees := upstream.nfrees
	for _, block := range []*api.Block{obj5, obj3} {
		free(block, block.Len())
	}
	assert.Equal(t, nfrees+2, upstream.nfrees)
	assert.Equal(t, int64(0), fb.Outstanding())

	stats := fb.Stats()
	assert.Equal(t, int64(6), stats["n_allocs"])
	assert.Equal(t, int64(6), stats["n_frees"])
	assert.Equal(t, int64(3), stats["n_rejects"])
	assert.Equal(t, true, stats["exhausted"])
}

func TestFallbackInvalidRelease(t *testing.T) {
	fb, _, arena := newtestfallback(64)
	defer arena.Release()

	block, err := fb.Allocate(8, 8)
	require.NoError(t, err)

	err = fb.Deallocate(nil, 8, 8)
	assert.True(t, errors.Is(err, api.ErrorInvalidRelease))
	err = fb.Deallocate(block, 4, 8)
	assert.True(t, errors.Is(err, api.ErrorInvalidRelease))
	err = fb.Deallocate(block, 8, 1)
	assert.True(t, errors.Is(err, api.ErrorInvalidRelease))
	err = fb.Deallocate(&api.Block{Data: make([]byte, 8)}, 8, 8)
	assert.True(t, errors.Is(err, api.ErrorInvalidRelease))

	// mismatched release does not forget the grant.
	require.NoError(t, fb.Deallocate(block, 8, 8))
	err = fb.Deallocate(block, 8, 8)
	assert.True(t, errors.Is(err, api.ErrorInvalidRelease))

	// releasing through a different, identically configured, instance.
	other, _, otherarena := newtestfallback(64)
	defer otherarena.Release()
	block, err = fb.Allocate(8, 8)
	require.NoError(t, err)
	err = other.Deallocate(block, 8, 8)
	assert.True(t, errors.Is(err, api.ErrorInvalidRelease))
	assert.False(t, fb.Isequal(other))
	assert.True(t, fb.Isequal(fb))
}

func TestFallbackBadRequest(t *testing.T) {
	fb, _, arena := newtestfallback(64)
	defer arena.Release()

	// malformed requests are not exhaustion.
	_, err := fb.Allocate(8, 3)
	assert.True(t, errors.Is(err, api.ErrorInvalidAlignment))
	_, err = fb.Allocate(-8, 8)
	assert.True(t, errors.Is(err, api.ErrorInvalidSize))
	assert.False(t, fb.Exhausted())

	_, err = fb.Allocate(64, 1)
	require.NoError(t, err)
	assert.Panics(t, func() { NewFallback(nil, nil) })
}

func TestFallbackOverflowHeap(t *testing.T) {
	// arena that spills to heap never exhausts.
	arena := malloc.NewArena(s.Settings{"capacity": int64(8), "overflow": "heap"})
	defer arena.Release()
	fb := NewFallback(arena, nil)

	blocks := make([]*api.Block, 0)
	for i := 0; i < 10; i++ {
		block, err := fb.Allocate(8, 8)
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
	assert.False(t, fb.Exhausted())
	assert.Equal(t, int64(9), arena.Overflowed())
	for _, block := range blocks {
		require.NoError(t, fb.Deallocate(block, 8, 8))
	}
	assert.NotEqual(t, "", fb.Name())
}

func TestFallbackHugeRequest(t *testing.T) {
	fb, upstream, arena := newtestfallback(10)
	defer arena.Release()

	block, err := fb.Allocate(1, 1)
	require.NoError(t, err)

	// request larger than the address space exhausts, never panics.
	assert.NotPanics(t, func() {
		_, err = fb.Allocate(math.MaxInt64, 1)
	})
	assert.True(t, errors.Is(err, api.ErrorExhausted))
	assert.True(t, fb.Exhausted())
	assert.Equal(t, int64(1), arena.Allocated())

	nallocs := upstream.nallocs
	_, err = fb.Allocate(1, 1)
	assert.True(t, errors.Is(err, api.ErrorExhausted))
	assert.Equal(t, nallocs, upstream.nallocs)
	require.NoError(t, fb.Deallocate(block, 1, 1))
	assert.Equal(t, int64(0), fb.Outstanding())
}

func TestFallbackHugeHeapRequest(t *testing.T) {
	fb := NewFallback(malloc.NewHeap(), nil)
	assert.NotPanics(t, func() {
		_, err := fb.Allocate(math.MaxInt64, 8)
		assert.True(t, errors.Is(err, api.ErrorExhausted))
	})
	assert.True(t, fb.Exhausted())
}
