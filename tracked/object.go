// Package tracked implement objects whose backing memory is obtained
// from an api.Allocator and given back to the same allocator, exactly
// once, with the same size and alignment.
package tracked

import "fmt"
import "errors"
import "sync/atomic"

import "github.com/bnclabs/memres/api"
import "github.com/bnclabs/memres/lib"

// ErrorClosed operation on an object that was already closed.
var ErrorClosed = errors.New("tracked.closed")

// ErrorOutofrange copy beyond the size of an object.
var ErrorOutofrange = errors.New("tracked.outofrange")

// Object owns a block granted by an allocator. Object is not safe for
// concurrent Copyin/Copyout while it is being closed.
type Object struct {
	closed int32
	alloc  api.Allocator
	size   int64
	align  int64
	block  *api.Block
}

// New allocate `size` bytes from alloc with default alignment. On
// failure no object is created and nothing is owed to alloc.
func New(alloc api.Allocator, size int64) (*Object, error) {
	return Newaligned(alloc, size, api.Alignment)
}

// Newaligned is like New with explicit alignment.
func Newaligned(alloc api.Allocator, size, align int64) (*Object, error) {
	if alloc == nil {
		return nil, fmt.Errorf("tracked object needs an allocator")
	}
	block, err := alloc.Allocate(size, align)
	if err != nil {
		return nil, err
	}
	obj := &Object{alloc: alloc, size: size, align: align, block: block}
	return obj, nil
}

// With allocate an object for the duration of fn. Object is closed
// on every exit path of fn, if fn panics the panic is propagated after
// the object is closed.
func With(alloc api.Allocator, size int64, fn func(obj *Object) error) (err error) {
	obj, err := New(alloc, size)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := obj.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(obj)
}

// Close give back the block to the allocator it came from. Subsequent
// calls return ErrorClosed without touching the allocator. If the
// allocator fails to take back the block, object remains open and
// Close can be retried.
func (obj *Object) Close() error {
	if !atomic.CompareAndSwapInt32(&obj.closed, 0, 1) {
		return ErrorClosed
	}
	if err := obj.alloc.Deallocate(obj.block, obj.size, obj.align); err != nil {
		atomic.StoreInt32(&obj.closed, 0)
		return err
	}
	obj.block = nil
	return nil
}

// Size of the object in bytes.
func (obj *Object) Size() int64 {
	return obj.size
}

// Align return the alignment the object was allocated with.
func (obj *Object) Align() int64 {
	return obj.align
}

// Allocator return the allocator that owns the object's memory.
func (obj *Object) Allocator() api.Allocator {
	return obj.alloc
}

// Isclosed return true once Close is called.
func (obj *Object) Isclosed() bool {
	return atomic.LoadInt32(&obj.closed) == 1
}

// Copyin copy src into object starting at `off`, return number of
// bytes copied. Copying past the end fails with ErrorOutofrange and
// copies nothing.
func (obj *Object) Copyin(off int64, src []byte) (int, error) {
	if err := obj.checkrange(off, int64(len(src))); err != nil {
		return 0, err
	}
	return copy(obj.block.Data[off:], src), nil
}

// Copyout copy object's content starting at `off` into dst, return
// number of bytes copied.
func (obj *Object) Copyout(off int64, dst []byte) (int, error) {
	if err := obj.checkrange(off, 0); err != nil {
		return 0, err
	}
	return copy(dst, obj.block.Data[off:]), nil
}

// Dump object's content in hex.
func (obj *Object) Dump() string {
	if obj.Isclosed() {
		return ""
	}
	return lib.Hexdump(obj.block.Data)
}

func (obj *Object) String() string {
	return fmt.Sprintf("tracked{%v,%v,%v}", obj.size, obj.align, obj.Isclosed())
}

func (obj *Object) checkrange(off, n int64) error {
	if obj.Isclosed() {
		return ErrorClosed
	} else if off < 0 || off > obj.size || n > obj.size-off {
		fmsg := "%w: {%v,%v} on %v bytes"
		return fmt.Errorf(fmsg, ErrorOutofrange, off, n, obj.size)
	}
	return nil
}
