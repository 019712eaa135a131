// Package malloc supplies the leaf memory resources for allocator stacks,
// with a limited scope:
//
//   - Arena is a single contiguous block of memory, of fixed capacity,
//     that is empty to begin with and fills up monotonically as new
//     allocations are requested. Space is never reused, it is reclaimed
//     only when the entire arena is released. Requests that don't fit
//     are forwarded to an overflow allocator, which by default is a
//     Sink that rejects them.
//   - Pool slices memory obtained from an upstream allocator into
//     chunks of same size, one free-list per size class, and reuses
//     freed chunks for later requests of the same class. Slabs are given
//     back to upstream only when the pool is released.
//   - Sink rejects every allocation and accepts every deallocation.
//   - Heap allocates from golang runtime, bounded by system memory.
//
// All types exported by this package are safe for concurrent use. Memory
// chunks handed out by Pool are aligned as requested, up to 64 bits.
package malloc
