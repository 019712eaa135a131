// Package api define types and interfaces common to all allocators and
// allocation policies implemented by this package.
package api

// Allocator interface for composable memory resources. Allocators are
// layered, each layer either satisfies a request by itself or delegates
// to its upstream allocator.
type Allocator interface {
	// Allocate a block of `size` bytes whose first byte is aligned to
	// `align`, which must be a power of two. Zero sized requests are
	// legal and return a distinct handle.
	Allocate(size, align int64) (*Block, error)

	// Deallocate a block previously returned by Allocate on the same
	// instance, with the same size and alignment.
	Deallocate(block *Block, size, align int64) error

	// Isequal return true only if other is this very instance. Blocks
	// allocated from one instance shall never be released through
	// another, even if identically configured.
	Isequal(other Allocator) bool
}

// Block is a handle to memory granted by an Allocator. Identity of the
// handle is the identity of the grant, Data is valid only until the
// block is deallocated.
type Block struct {
	Data []byte
}

// Len return the number of bytes usable by application.
func (block *Block) Len() int64 {
	return int64(len(block.Data))
}
