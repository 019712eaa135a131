// Package memres implement a stack of memory resources, from a fixed
// size backing arena at the bottom to budget enforcing allocators at
// the top, and compose them from settings.
//
// api:
//
// Allocator contract shared by every layer, Block handle and error
// kinds.
//
// malloc:
//
// Backing arena handing out memory linearly from a fixed buffer,
// pool of size classes carved out of an upstream allocator, heap
// allocator and a sink that rejects every request.
//
// bounded:
//
// Bounded allocators layered over an upstream. Fallback switches to a
// sink, for good, once upstream is exhausted. Accounting enforces a
// byte budget and records every allocation and deallocation.
//
// tracked:
//
// Objects that give back their memory, exactly once, to the allocator
// they came from.
//
// lib:
//
// Convinience functions that can be used by other packages. Package shall
// not import packages other than golang's standard packages.
package memres
