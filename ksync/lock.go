package ksync

/// Lock implements spec.md §4.6's Lock: "Binary semaphore plus holder
/// identity; Release requires holder == currentThread."
type Lock struct {
	name   string
	sem    *Semaphore
	sched  Sleeper
	holder int
	held   bool
}

/// NoHolder is the holder value of an unheld lock.
const NoHolder = -1

/// NewLock constructs an initially-unheld lock.
func NewLock(name string, in *Interrupts, sched Sleeper) *Lock {
	return &Lock{name: name, sem: NewSemaphore(name+"-sem", 1, in, sched), sched: sched, holder: NoHolder}
}

/// Acquire blocks until the lock is free, then takes it.
func (l *Lock) Acquire() {
	l.sem.P()
	l.holder = l.sched.Current()
	l.held = true
}

/// Release hands the lock to the next waiter (or frees it). Panics if
/// the caller is not the current holder.
func (l *Lock) Release() {
	if !l.held || l.holder != l.sched.Current() {
		panic("ksync: Release by non-holder")
	}
	l.held = false
	l.holder = NoHolder
	l.sem.V()
}

/// IsHeldByCurrentThread reports whether the calling thread holds l,
/// used by Condition.Wait to assert correct usage.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.held && l.holder == l.sched.Current()
}
