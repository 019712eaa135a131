// Package bounded implement policy layers that sit on top of an upstream
// allocator and decide whether a request shall be satisfied, redirected
// or rejected.
//
// Fallback forwards requests to its upstream until the upstream runs out
// of memory, after which it permanently switches to a sink that fails
// every future request. Blocks granted before the switch are still
// released through the allocator that produced them.
//
// Accounting enforces a hard byte budget on outstanding allocations and
// emits an Event for every allocation and deallocation, along with the
// running total. Budget check and reservation are a single atomic step,
// so concurrent callers can never jointly exceed the budget.
//
// Both types are safe for concurrent use, and compare equal only to
// themselves.
package bounded
