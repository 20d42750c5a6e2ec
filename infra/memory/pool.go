// Package memory holds small allocation helpers for the hot path.
package memory

import "sync"

// Pool is a typed object pool. The Sequencer stage allocates orders from
// it; terminal orders go back once nothing references them.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
