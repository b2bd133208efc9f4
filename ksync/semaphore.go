package ksync

/// Semaphore implements spec.md §4.6's P/V pair: "Guarded by disabling
/// interrupts. P: if value == 0, enqueue the caller on a wait list and
/// Sleep; else decrement. V: if wait list non-empty, dequeue and
/// ReadyToRun; else increment."
type Semaphore struct {
	name     string
	value    int
	waitlist []int
	in       *Interrupts
	sched    Sleeper
}

/// NewSemaphore constructs a semaphore with the given initial value.
func NewSemaphore(name string, value int, in *Interrupts, sched Sleeper) *Semaphore {
	return &Semaphore{name: name, value: value, in: in, sched: sched}
}

/// P blocks until the semaphore's value is positive, then consumes one
/// unit. This follows spec.md's direct-handoff variant literally: a
/// thread woken by V() has already had its unit handed to it by the
/// dequeue, so it does not re-check value or decrement on return --
/// only the value>0 branch decrements.
func (s *Semaphore) P() {
	old := s.in.Disable()
	if s.value == 0 {
		s.waitlist = append(s.waitlist, s.sched.Current())
		s.sched.Sleep(s.in)
	} else {
		s.value--
	}
	s.in.SetLevel(old)
}

/// V releases one unit, waking the longest-waiting blocked thread if
/// any, else incrementing the stored value.
func (s *Semaphore) V() {
	old := s.in.Disable()
	if len(s.waitlist) > 0 {
		tid := s.waitlist[0]
		s.waitlist = s.waitlist[1:]
		s.sched.ReadyToRun(tid)
	} else {
		s.value++
	}
	s.in.SetLevel(old)
}

/// Value returns the current count, for diagnostics and tests only.
func (s *Semaphore) Value() int {
	old := s.in.Disable()
	defer s.in.SetLevel(old)
	return s.value
}
