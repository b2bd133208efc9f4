package ksync

/// Barrier implements spec.md §4.6's Barrier: "A condition plus
/// counter; the N-th arrival broadcasts."
type Barrier struct {
	name    string
	n       int
	arrived int
	lock    *Lock
	cond    *Condition
}

/// NewBarrier constructs a barrier for n participants.
func NewBarrier(name string, n int, in *Interrupts, sched Sleeper) *Barrier {
	if n <= 0 {
		panic("ksync: barrier needs at least one participant")
	}
	return &Barrier{
		name: name,
		n:    n,
		lock: NewLock(name+"-lock", in, sched),
		cond: NewCondition(name+"-cond", in, sched),
	}
}

/// Arrive blocks until all n participants have called Arrive, then
/// releases everyone; the caller that completes the count wakes the
/// rest via Broadcast and resets the barrier for reuse.
func (b *Barrier) Arrive() {
	b.lock.Acquire()
	b.arrived++
	if b.arrived == b.n {
		b.arrived = 0
		b.cond.Broadcast()
	} else {
		b.cond.Wait(b.lock)
	}
	b.lock.Release()
}
