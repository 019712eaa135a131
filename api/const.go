package api

import "errors"
import "fmt"

// ErrorExhausted allocation cannot succeed because the allocator has no
// remaining capacity, or has permanently switched to its sink.
var ErrorExhausted = errors.New("api.exhausted")

// ErrorBudgetExceeded allocation cannot succeed because it would make the
// total outstanding bytes exceed the configured budget.
var ErrorBudgetExceeded = errors.New("api.budgetexceeded")

// ErrorInvalidRelease deallocation of a block, or block/size pair, that
// was never granted by this allocator instance.
var ErrorInvalidRelease = errors.New("api.invalidrelease")

// ErrorInvalidAlignment alignment is not a power of two.
var ErrorInvalidAlignment = errors.New("api.invalidalignment")

// ErrorInvalidSize negative allocation size.
var ErrorInvalidSize = errors.New("api.invalidsize")

// Alignment default alignment, in bytes, for allocation requests.
const Alignment = int64(8)

// Maxalignment largest alignment an allocator is expected to honor.
const Maxalignment = int64(4096)

// Checkrequest validates size and alignment for an allocation request.
func Checkrequest(size, align int64) error {
	if size < 0 {
		return fmt.Errorf("%w: %v", ErrorInvalidSize, size)
	} else if align < 1 || align > Maxalignment || (align&(align-1)) != 0 {
		return fmt.Errorf("%w: %v", ErrorInvalidAlignment, align)
	}
	return nil
}

// Alignup round `n` up to the next multiple of `align`, a power of two.
func Alignup(n, align int64) int64 {
	mask := align - 1
	return (n + mask) &^ mask
}
