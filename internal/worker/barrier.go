package worker

import "sync"

// Barrier is a reusable rendezvous point for n parties: Wait blocks until
// all n have arrived, then releases the whole group. The daemon uses one to
// hold the front end back until every worker has loaded its model.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	waiting    int
	generation int
}

// NewBarrier creates a barrier for n parties. n must be positive.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n parties have called Wait, then releases them all.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}
