package proc

import (
	"sort"
	"sync"
	"sync/atomic"

	"gonachos/defs"
	"gonachos/ksync"
	"gonachos/limits"
	"gonachos/tinfo"
)

/// Policy selects one of spec.md §3's four ready structures.
type Policy int

const (
	PolicyFIFO Policy = iota
	PolicyStaticPriority
	PolicyRoundRobin
	PolicyMLFQ
)

/// Scheduler implements spec.md §4.5: ReadyToRun, FindNextToRun, Run,
/// Yield, Sleep, plus Fork and Finish from §3's lifecycle. Grounded on
/// original_source/code/threads/scheduler.cc and thread.cc. It
/// satisfies ksync.Sleeper so every ksync primitive can block on it.
type Scheduler struct {
	in     *ksync.Interrupts
	policy Policy

	mu      sync.Mutex /// guards the maps below; never held across a block
	threads map[defs.Tid_t]*Thread
	runChan map[defs.Tid_t]chan struct{}
	nextTid defs.Tid_t

	current defs.Tid_t

	fifo     *ringQueue   /// PolicyFIFO, PolicyRoundRobin
	priority []defs.Tid_t /// PolicyStaticPriority: sorted ascending, ties FIFO
	mlfq     [limits.QueueNum]*ringQueue

	timeSlice int
	Notes     *tinfo.Registry

	/// ticks counts timer interrupts delivered so far: the kernel's own
	/// monotonic clock (the Clock syscall's source, spec.md §6), which
	/// is a simulated tick count rather than wall-clock time.
	ticks int64

	/// live counts down from limits.MaxThreadNum as threads are forked
	/// and back up as they're destroyed, enforcing spec.md §3's "global
	/// thread table of capacity MaxThreadNum" bound.
	live limits.Sysatomic_t

	/// Done is closed once the last thread in the system finishes with
	/// nothing left ready to run -- ordinary shutdown, not a deadlock
	/// (see finishLocked).
	Done     chan struct{}
	doneOnce sync.Once
}

/// New constructs a scheduler under the given policy, with tid 0
/// reserved for the first thread Fork creates (conventionally the
/// kernel's initial thread, matching original_source's mainThread).
func New(policy Policy, in *ksync.Interrupts) *Scheduler {
	sch := &Scheduler{
		in:        in,
		policy:    policy,
		threads:   make(map[defs.Tid_t]*Thread),
		runChan:   make(map[defs.Tid_t]chan struct{}),
		fifo:      newRingQueue(limits.MaxThreadNum),
		timeSlice: limits.DefaultTimeSlice,
		Notes:     tinfo.NewRegistry(),
		Done:      make(chan struct{}),
		live:      limits.Sysatomic_t(limits.MaxThreadNum),
	}
	for i := range sch.mlfq {
		sch.mlfq[i] = newRingQueue(limits.MaxThreadNum)
	}
	return sch
}

/// Fork creates a new thread and schedules it to run (spec.md §3:
/// "transitions to READY via Fork -> ReadyToRun"). entry runs on the
/// thread's own goroutine once the scheduler first switches to it.
/// For PolicyStaticPriority, Fork immediately yields the caller if the
/// newly readied thread outranks it (spec.md §4.5's preemption
/// policy).
func (sch *Scheduler) Fork(name string, ownerUID, priority int, entry func(*Thread)) *Thread {
	if !sch.live.Taken(1) {
		panic("proc: thread table exhausted (MaxThreadNum reached)")
	}

	old := sch.in.Disable()

	sch.mu.Lock()
	tid := sch.nextTid
	sch.nextTid++
	t := newThread(tid, name, ownerUID, priority)
	sch.threads[tid] = t
	sch.runChan[tid] = make(chan struct{})
	sch.mu.Unlock()
	sch.Notes.Register(tid)

	first := len(sch.threads) == 1
	if first {
		sch.current = tid
		t.status = Running
	}

	go func() {
		if !first {
			<-sch.runChan[tid]
		}
		entry(t)
		/// entry may already have called Finish itself (except's
		/// sysExit does, on every syscall-driven exit); Run's finishing
		/// branch returns control to this same goroutine instead of
		/// truly abandoning its stack, so without this guard the
		/// implicit finish below would run a second time against
		/// whichever thread happens to be current by then.
		if !t.toBeDestroyed {
			sch.finishLocked(t)
		}
	}()

	if !first {
		sch.readyToRunLocked(t)
		if sch.policy == PolicyStaticPriority {
			me := sch.threads[sch.current]
			if t.Priority < me.Priority {
				sch.yieldLocked()
			}
		}
	}
	sch.in.SetLevel(old)
	return t
}

/// ReadyToRun implements spec.md §4.5: moves t to READY and enqueues
/// it per the configured policy. Requires interrupts already
/// disabled -- exported for ksync.Sleeper and other callers that
/// already hold the lock.
func (sch *Scheduler) ReadyToRun(tidInt int) {
	sch.in.Lockassert()
	t := sch.threads[defs.Tid_t(tidInt)]
	if t == nil {
		panic("proc: ReadyToRun on unknown tid")
	}
	sch.readyToRunLocked(t)
}

func (sch *Scheduler) readyToRunLocked(t *Thread) {
	t.status = Ready
	switch sch.policy {
	case PolicyStaticPriority:
		sch.insertPriority(t.Tid)
	case PolicyRoundRobin:
		t.remainTime = sch.timeSlice
		sch.fifo.push(t.Tid)
	case PolicyMLFQ:
		if t.Priority < limits.QueueNum-1 {
			t.Priority++
		}
		t.remainTime = limits.MLFQQuantum[t.Priority]
		sch.mlfq[t.Priority].push(t.Tid)
	default: // PolicyFIFO
		sch.fifo.push(t.Tid)
	}
}

func (sch *Scheduler) insertPriority(tid defs.Tid_t) {
	p := sch.threads[tid].Priority
	i := sort.Search(len(sch.priority), func(i int) bool {
		return sch.threads[sch.priority[i]].Priority > p
	})
	sch.priority = append(sch.priority, 0)
	copy(sch.priority[i+1:], sch.priority[i:])
	sch.priority[i] = tid
}

/// FindNextToRun returns the head of the highest-priority non-empty
/// queue (level 0 first, under MLFQ), or nil if every queue is empty.
func (sch *Scheduler) FindNextToRun() *Thread {
	sch.in.Lockassert()
	switch sch.policy {
	case PolicyStaticPriority:
		if len(sch.priority) == 0 {
			return nil
		}
		tid := sch.priority[0]
		sch.priority = sch.priority[1:]
		return sch.threads[tid]
	case PolicyMLFQ:
		for _, q := range sch.mlfq {
			if tid, ok := q.pop(); ok {
				return sch.threads[tid]
			}
		}
		return nil
	default: // PolicyFIFO, PolicyRoundRobin
		if tid, ok := sch.fifo.pop(); ok {
			return sch.threads[tid]
		}
		return nil
	}
}

/// Run implements spec.md §4.5: requires interrupts disabled. It
/// marks the outgoing thread toBeDestroyed if finishing, checks its
/// stack fencepost, switches currentThread to next, wakes next's
/// goroutine, and -- unless finishing, in which case the caller's
/// goroutine is about to exit for good -- blocks the caller until it
/// is itself woken by some future Run call, then runs
/// checkToBeDestroyed.
func (sch *Scheduler) Run(next *Thread, finishing bool) {
	sch.in.Lockassert()
	prev := sch.threads[sch.current]

	if finishing {
		prev.toBeDestroyed = true
	}
	if !prev.stack.ok() {
		panic("proc: stack fencepost corrupted")
	}

	sch.current = next.Tid
	next.status = Running

	wake := sch.runChan[next.Tid]
	go func() { wake <- struct{}{} }()

	if finishing {
		return
	}

	sch.in.SetLevel(ksync.IntOn)
	<-sch.runChan[prev.Tid]
	sch.in.Disable()

	sch.checkToBeDestroyed()
}

// checkToBeDestroyed frees the thread table slot of whichever zombie
// was marked toBeDestroyed by the Run call that switched away from
// it -- deferred exactly one switch, per spec.md §3's lifecycle note
// ("destroyed by the next thread scheduled, to avoid destroying a
// stack currently in use").
func (sch *Scheduler) checkToBeDestroyed() {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	for tid, t := range sch.threads {
		if t.toBeDestroyed {
			delete(sch.threads, tid)
			delete(sch.runChan, tid)
			sch.Notes.Forget(tid)
			sch.live.Given(1)
		}
	}
}

/// Yield implements spec.md §4.5: voluntarily give up the CPU,
/// re-enqueueing the caller, if any other thread is ready to run.
func (sch *Scheduler) Yield() {
	old := sch.in.Disable()
	sch.yieldLocked()
	sch.in.SetLevel(old)
}

func (sch *Scheduler) yieldLocked() {
	me := sch.threads[sch.current]
	sch.readyToRunLocked(me)
	next := sch.FindNextToRun()
	if next == nil {
		me.status = Running /// nobody else is ready; stay running
		return
	}
	sch.Run(next, false)
}

/// Sleep implements ksync.Sleeper: block the caller until some other
/// call reschedules it via ReadyToRun, handing the CPU to whichever
/// other thread is ready. Panics if no other thread is ready --
/// spec.md's synchronization primitives only ever call this after
/// putting the caller on a wait list another thread is guaranteed to
/// wake, so an empty ready queue here means a genuine deadlock.
func (sch *Scheduler) Sleep(in *ksync.Interrupts) {
	in.Lockassert()
	me := sch.threads[sch.current]
	me.status = Blocked
	next := sch.FindNextToRun()
	if next == nil {
		panic("proc: Sleep with no other thread ready to run (deadlock)")
	}
	since := me.Accnt.Now()
	sch.Run(next, false)
	// Time spent blocked waiting on a synchronization primitive isn't
	// kernel work on me's behalf; except.Handler.Dispatch charges the
	// whole syscall as system time once it returns, so back that
	// portion back out.
	me.Accnt.Sleep_time(since)
}

/// Current returns the running thread's id, satisfying ksync.Sleeper.
func (sch *Scheduler) Current() int { return int(sch.current) }

/// CurrentThread returns the running thread's full record.
func (sch *Scheduler) CurrentThread() *Thread {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.threads[sch.current]
}

/// Lookup returns the thread for tid, if it is still in the table.
func (sch *Scheduler) Lookup(tid defs.Tid_t) (*Thread, bool) {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	t, ok := sch.threads[tid]
	return t, ok
}

/// finishLocked ends t. If another thread is ready, control switches
/// to it exactly as spec.md §4.5 describes. If none is ready, that
/// means t was the last thread left in the system -- ordinary
/// shutdown (every demo/test program's last thread ends this way),
/// not the deadlock Sleep's "no thread ready" case would be -- so t is
/// torn down directly and Done is closed rather than panicking.
func (sch *Scheduler) finishLocked(t *Thread) {
	old := sch.in.Disable()
	t.status = Zombie
	if !t.stack.ok() {
		panic("proc: stack fencepost corrupted")
	}
	next := sch.FindNextToRun()
	if next == nil {
		t.toBeDestroyed = true
		sch.checkToBeDestroyed()
		sch.current = defs.NoTid
		sch.in.SetLevel(old)
		sch.doneOnce.Do(func() { close(sch.Done) })
		return
	}
	sch.Run(next, true)
	sch.in.SetLevel(old)
}

/// Finish ends the calling thread for good (spec.md §3: "ends in
/// ZOMBIE when Finish is called"), recording status for any Joiner
/// before handing the CPU to the next thread. except's SysExit and
/// ThreadExit call it directly; the goroutine wrapper Fork installs
/// calls finishLocked itself when entry returns without calling Finish.
func (sch *Scheduler) Finish(t *Thread, status defs.Err_t) {
	if note, ok := sch.Notes.Lookup(t.Tid); ok {
		note.Finish(status)
	}
	sch.finishLocked(t)
}

/// Tick implements the timer-interrupt half of spec.md §4.5's
/// preemption policy: decrements the running thread's remainTime
/// under round-robin/MLFQ and reports whether a Yield is now due. The
/// caller (the simulated timer source, per §1's external-collaborator
/// boundary) is responsible for invoking Yield at the next safe point.
func (sch *Scheduler) Tick() bool {
	atomic.AddInt64(&sch.ticks, 1)
	if sch.policy != PolicyRoundRobin && sch.policy != PolicyMLFQ {
		return false
	}
	old := sch.in.Disable()
	defer sch.in.SetLevel(old)
	me := sch.threads[sch.current]
	me.remainTime--
	return me.remainTime <= 0
}

/// Ticks returns the number of timer interrupts delivered so far,
/// regardless of policy -- the Clock syscall's monotonic counter.
func (sch *Scheduler) Ticks() int64 {
	return atomic.LoadInt64(&sch.ticks)
}

/// Live returns the number of thread-table slots currently occupied,
/// derived from the same Sysatomic_t Fork/checkToBeDestroyed maintain
/// against limits.MaxThreadNum.
func (sch *Scheduler) Live() int64 {
	return int64(limits.MaxThreadNum) - sch.live.Value()
}
