package proc

import (
	"gonachos/accnt"
	"gonachos/defs"
)

/// Status is a thread's position in spec.md §3's lifecycle:
/// JustCreated -> Ready <-> Running -> {Blocked, Suspended} -> ... -> Zombie.
type Status int

const (
	JustCreated Status = iota
	Ready
	Running
	Blocked
	Suspended
	Zombie
)

func (s Status) String() string {
	switch s {
	case JustCreated:
		return "JUST_CREATED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Suspended:
		return "SUSPENDED"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

/// fenceSentinel is written at both ends of a thread's simulated
/// kernel stack at construction and checked at every Run (spec.md
/// §4.5 step iii, "checks stack fencepost"). This kernel has no raw
/// stack of its own -- goroutines manage their own -- so "the stack"
/// here is a small byte buffer that exists purely to carry this
/// canary, the way original_source/code/threads/thread.cc's
/// stackTop/CheckOverflow does for a real machine stack.
const fenceSentinel = 0xdeadbeef

/// stackGuard is a thread's simulated kernel stack: nothing is ever
/// pushed onto it, it exists only to host the fencepost canary at
/// each end so Run's overflow check has something real to compare.
type stackGuard [2]uint32

func newStackGuard() stackGuard {
	return stackGuard{fenceSentinel, fenceSentinel}
}

func (g stackGuard) ok() bool {
	return g[0] == fenceSentinel && g[1] == fenceSentinel
}

/// Thread is one schedulable unit of execution (spec.md §3). Fields
/// not relevant to this kernel's boundary (saved machine registers,
/// the user address space) are carried by the caller -- `kernel`
/// ties a Thread's Tid to its mmu.AddrSpace and register file, since
/// those live on the instruction-model side of the §1 boundary.
type Thread struct {
	Tid      defs.Tid_t
	Name     string
	OwnerUID int
	Priority int /// smaller wins under PolicyStaticPriority

	remainTime int
	status     Status
	stack      stackGuard
	toBeDestroyed bool

	Accnt *accnt.Accnt_t
}

/// newThread allocates a just-created thread with an intact stack
/// guard. Scheduler.Fork is the only caller; tid allocation and
/// table registration happen there.
func newThread(tid defs.Tid_t, name string, ownerUID, priority int) *Thread {
	return &Thread{
		Tid:      tid,
		Name:     name,
		OwnerUID: ownerUID,
		Priority: priority,
		status:   JustCreated,
		stack:    newStackGuard(),
		Accnt:    &accnt.Accnt_t{},
	}
}

/// Status returns the thread's current lifecycle state.
func (t *Thread) Status() Status { return t.status }
