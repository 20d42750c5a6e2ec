package pipeline

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Stage names one link of the fixed processing chain. The Matching stage
// worker is the only thread that ever touches book state, which is what
// makes the book single-writer without a lock.
type Stage int

const (
	Sequencer Stage = iota
	Matching
	Logger

	stageCount = 3
)

func (s Stage) String() string {
	switch s {
	case Sequencer:
		return "sequencer"
	case Matching:
		return "matching"
	case Logger:
		return "logger"
	default:
		return "unknown"
	}
}

// Pipeline runs one long-lived worker per stage, each consuming a bounded
// SPSC queue. Tasks chain by submitting the next stage's continuation.
// Within a queue, FIFO submission order is execution order; a stage never
// runs in parallel with itself.
type Pipeline struct {
	queues   [stageCount]*taskRing
	finished [stageCount]chan struct{}
	done     atomic.Bool
	wg       sync.WaitGroup
}

// New starts the three stage workers. capacity is the per-stage queue
// bound and must be a power of two.
func New(capacity uint64) *Pipeline {
	p := &Pipeline{}
	for s := 0; s < stageCount; s++ {
		p.queues[s] = newTaskRing(capacity)
		p.finished[s] = make(chan struct{})
	}
	for s := 0; s < stageCount; s++ {
		p.wg.Add(1)
		go p.worker(Stage(s))
	}
	return p
}

// Submit enqueues a task for a stage, spinning with a yield while the
// queue is full. Submission never drops work. Callers other than the
// upstream stage worker must serialize among themselves; the first stage
// has exactly one external producer by contract.
func (p *Pipeline) Submit(s Stage, t Task) {
	q := p.queues[s]
	for !q.push(t) {
		runtime.Gosched()
	}
}

// Close signals shutdown and waits for the workers to drain. External
// producers must have stopped submitting first; everything already
// enqueued is executed before the workers exit.
func (p *Pipeline) Close() {
	p.done.Store(true)
	p.wg.Wait()
}

func (p *Pipeline) worker(s Stage) {
	defer p.wg.Done()
	defer close(p.finished[s])

	q := p.queues[s]
	for {
		if t, ok := q.pop(); ok {
			t()
			continue
		}
		if p.done.Load() && p.upstreamFinished(s) {
			// upstream can no longer produce; drain what is left
			for {
				t, ok := q.pop()
				if !ok {
					return
				}
				t()
			}
		}
		runtime.Gosched()
	}
}

// upstreamFinished reports whether the producing stage has exited. The
// first stage's producer is the external submitter, which by contract
// stops before Close.
func (p *Pipeline) upstreamFinished(s Stage) bool {
	if s == Sequencer {
		return true
	}
	select {
	case <-p.finished[s-1]:
		return true
	default:
		return false
	}
}
