package ksync

/// Condition implements spec.md §4.6's Mesa-semantics condition
/// variable: "Wait(lock) releases the lock, sleeps, reacquires on
/// wake. Signal wakes at most one waiter; Broadcast wakes all." Mesa
/// semantics means a woken waiter only gets another chance to run --
/// it must re-check its condition itself, since another thread may
/// run first and invalidate it
/// (original_source/code/threads/synch.cc's Condition, which this
/// package follows closely: each waiter parks on its own
/// zero-valued Semaphore rather than the thread id directly, so
/// Signal/Broadcast never need to touch the scheduler's Sleep path
/// and Wait never nests one Disable scope inside another).
type Condition struct {
	name     string
	waitlist []*Semaphore
	in       *Interrupts
	sched    Sleeper
}

/// NewCondition constructs an empty condition variable.
func NewCondition(name string, in *Interrupts, sched Sleeper) *Condition {
	return &Condition{name: name, in: in, sched: sched}
}

/// Wait releases lock, blocks the caller, and reacquires lock before
/// returning. The caller must hold lock.
func (c *Condition) Wait(lock *Lock) {
	if !lock.IsHeldByCurrentThread() {
		panic("ksync: Condition.Wait called without holding lock")
	}
	waiter := NewSemaphore(c.name+"-waiter", 0, c.in, c.sched)
	old := c.in.Disable()
	c.waitlist = append(c.waitlist, waiter)
	c.in.SetLevel(old)

	lock.Release()
	waiter.P()
	lock.Acquire()
}

/// Signal wakes the longest-waiting thread, if any.
func (c *Condition) Signal() {
	old := c.in.Disable()
	var waiter *Semaphore
	if len(c.waitlist) > 0 {
		waiter = c.waitlist[0]
		c.waitlist = c.waitlist[1:]
	}
	c.in.SetLevel(old)
	if waiter != nil {
		waiter.V()
	}
}

/// Broadcast wakes every waiting thread.
func (c *Condition) Broadcast() {
	old := c.in.Disable()
	waiters := c.waitlist
	c.waitlist = nil
	c.in.SetLevel(old)
	for _, w := range waiters {
		w.V()
	}
}
