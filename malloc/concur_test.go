package malloc

import "fmt"
import "sync"
import "testing"
import "unsafe"
import "math/rand"

import "github.com/bnclabs/memres/api"
import s "github.com/bnclabs/gosettings"

type testalloc struct {
	n     byte
	size  int64
	block *api.Block
}

func TestConcurArena(t *testing.T) {
	var wg sync.WaitGroup

	nroutines, repeat := 16, 1000
	arena := NewArena(s.Settings{"capacity": int64(nroutines * repeat * 8)})
	defer arena.Release()

	results := make([][]*api.Block, nroutines)
	wg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go func(n int) {
			defer wg.Done()
			for i := 0; i < repeat; i++ {
				block, err := arena.Allocate(8, 8)
				if err != nil {
					panic(err)
				}
				results[n] = append(results[n], block)
			}
		}(n)
	}
	wg.Wait()

	// no two goroutines shall get overlapping memory.
	seen := make(map[uintptr]bool)
	for _, blocks := range results {
		for _, block := range blocks {
			addr := uintptr(unsafe.Pointer(unsafe.SliceData(block.Data)))
			if seen[addr] {
				t.Fatalf("address %x handed out twice", addr)
			}
			seen[addr] = true
		}
	}
	if x := arena.Available(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
}

func TestConcurPool(t *testing.T) {
	var awg, fwg sync.WaitGroup

	nroutines, repeat := 8, 2000
	arena := NewArena(s.Settings{"capacity": int64(64 * 1024 * 1024)})
	defer arena.Release()
	pool := NewPool(arena, nil)
	defer pool.Release()

	chans := make([]chan testalloc, 0, nroutines)
	for n := 0; n < nroutines; n++ {
		chans = append(chans, make(chan testalloc, 1000))
	}
	awg.Add(nroutines)
	fwg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go testallocator(pool, byte(n), repeat, chans, &awg)
		go testfree(pool, chans[n], &fwg)
	}
	awg.Wait()
	for _, ch := range chans {
		close(ch)
	}
	fwg.Wait()

	if _, _, alloc, _ := pool.Info(); alloc != 0 {
		t.Errorf("expected %v, got %v", 0, alloc)
	}
}

func testallocator(
	pool *Pool, n byte, repeat int, chans []chan testalloc, wg *sync.WaitGroup) {

	defer wg.Done()

	slabs := pool.Slabs()[:20]
	for i := 0; i < repeat; i++ {
		size := slabs[rand.Intn(len(slabs))] - 4
		block, err := pool.Allocate(size, 8)
		if err != nil {
			panic(err)
		}
		for j := range block.Data {
			block.Data[j] = n
		}
		msg := testalloc{size: size, n: n, block: block}
		chans[rand.Intn(len(chans))] <- msg
	}
}

func testfree(pool *Pool, ch chan testalloc, wg *sync.WaitGroup) {
	defer wg.Done()

	for msg := range ch {
		for _, c := range msg.block.Data {
			if c != msg.n {
				panic(fmt.Errorf("expected %v, got %v", msg.n, c))
			}
		}
		if err := pool.Deallocate(msg.block, msg.size, 8); err != nil {
			panic(err)
		}
	}
}
