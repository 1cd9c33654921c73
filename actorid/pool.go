package actorid

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrExhausted is returned by Acquire when every slot in the pool is
// currently leased.
var ErrExhausted = errors.New("actorid: pool exhausted")

type slot struct {
	generation uint32
	leased     int32
}

// Pool is a fixed-capacity, slot-indexed allocator of IDs. Acquiring a
// slot returns a Lease; releasing the lease recycles the slot and bumps
// its generation so that any ID minted against the prior incarnation is
// rejected by Valid thereafter. Capacity is enforced with a semaphore
// rather than a bare counter so spawn can fail fast (TryAcquire) instead
// of blocking: a caller hitting MaxActorsLimit needs to see that
// immediately, not after queuing behind other spawns.
type Pool struct {
	system uint32
	sem    *semaphore.Weighted
	free   chan uint32
	slots  []slot
}

// New creates a Pool of the given capacity tagged with a system id (see
// System's use of a random tag so IDs minted by distinct System values
// don't collide within a process).
func New(system uint32, capacity int) *Pool {
	free := make(chan uint32, capacity)
	for i := 0; i < capacity; i++ {
		free <- uint32(i)
	}
	return &Pool{
		system: system,
		sem:    semaphore.NewWeighted(int64(capacity)),
		free:   free,
		slots:  make([]slot, capacity),
	}
}

// Lease is a held slot. Dropping it without calling Release leaks the
// slot for the lifetime of the Pool — callers must Release exactly once.
type Lease struct {
	pool *Pool
	id   ID
}

// ID returns the leased identifier.
func (l *Lease) ID() ID { return l.id }

// Release recycles the slot: it is marked unleased so Valid rejects
// l.ID() from then on, and it becomes available to a future Acquire,
// which bumps its generation before handing it out again.
func (l *Lease) Release() {
	idx := l.id.Slot
	atomic.StoreInt32(&l.pool.slots[idx].leased, 0)
	l.pool.free <- idx
	l.pool.sem.Release(1)
}

// Acquire leases a free slot, or returns ErrExhausted if the pool is at
// capacity. It never blocks.
func (p *Pool) Acquire() (*Lease, error) {
	if !p.sem.TryAcquire(1) {
		return nil, ErrExhausted
	}
	idx := <-p.free
	gen := atomic.AddUint32(&p.slots[idx].generation, 1)
	atomic.StoreInt32(&p.slots[idx].leased, 1)
	return &Lease{pool: p, id: ID{System: p.system, Slot: idx, Generation: gen}}, nil
}

// Valid reports whether id still refers to a currently-leased slot at
// its minted generation.
func (p *Pool) Valid(id ID) bool {
	if id.System != p.system || int(id.Slot) >= len(p.slots) {
		return false
	}
	s := &p.slots[id.Slot]
	return atomic.LoadInt32(&s.leased) == 1 && atomic.LoadUint32(&s.generation) == id.Generation
}

// Cap returns the pool's fixed capacity.
func (p *Pool) Cap() int { return len(p.slots) }

// AcquireCtx leases a free slot, blocking until one becomes available or
// ctx is done. Exposed for callers that want to wait rather than fail
// fast; System.Spawn uses Acquire (non-blocking) instead.
func (p *Pool) AcquireCtx(ctx context.Context) (*Lease, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	idx := <-p.free
	gen := atomic.AddUint32(&p.slots[idx].generation, 1)
	atomic.StoreInt32(&p.slots[idx].leased, 1)
	return &Lease{pool: p, id: ID{System: p.system, Slot: idx, Generation: gen}}, nil
}
