package pipeline

import "sync/atomic"

// Task is a unit of deferred stage work.
type Task func()

// taskRing is a lock-free SPSC ring buffer of tasks. Each stage queue has
// exactly one producer (the upstream worker, or the serialized submit
// path for the first stage) and one consumer (the stage's own worker).
type taskRing struct {
	head  uint64
	_pad1 [56]byte
	tail  uint64
	_pad2 [56]byte
	buf   []Task
	mask  uint64
}

func newTaskRing(size uint64) *taskRing {
	if size&(size-1) != 0 {
		panic("pipeline: ring size must be power of two")
	}
	return &taskRing{
		buf:  make([]Task, size),
		mask: size - 1,
	}
}

// push returns false when the ring is full; the producer yields and
// retries, so submission backpressures instead of dropping work.
func (r *taskRing) push(t Task) bool {
	h := r.head
	tl := atomic.LoadUint64(&r.tail)
	if h-tl == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = t
	atomic.StoreUint64(&r.head, h+1)
	return true
}

func (r *taskRing) pop() (Task, bool) {
	tl := r.tail
	h := atomic.LoadUint64(&r.head)
	if tl == h {
		return nil, false
	}
	t := r.buf[tl&r.mask]
	r.buf[tl&r.mask] = nil
	atomic.StoreUint64(&r.tail, tl+1)
	return t, true
}
