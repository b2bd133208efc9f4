package kernel

import (
	"fmt"
	"io"
	"sync"

	"gonachos/accnt"
	"gonachos/backingstore"
	"gonachos/defs"
	"gonachos/except"
	"gonachos/fd"
	"gonachos/ksync"
	"gonachos/mem"
	"gonachos/mmu"
	"gonachos/pagetable"
	"gonachos/proc"
	"gonachos/stats"
	"gonachos/ustr"

	"github.com/google/pprof/profile"
)

/// Kernel_t is the single running instance: the scheduler, the MMU,
/// the thread table, and the syscall/exception handler, wired together
/// per spec.md §9's Design Notes ("a Kernel_t/Config_t pair threaded
/// explicitly through every call, never a package-level global").
type Kernel_t struct {
	Cfg     Config_t
	Sched   *proc.Scheduler
	MMU     *mmu.MMU
	Handler *except.Handler
	In      *ksync.Interrupts

	mu     sync.Mutex
	procs  map[defs.Tid_t]*Proc
	swapAt string /// directory holding per-thread swap files

	consoleIn  *consoleFdops
	consoleOut *consoleFdops
}

/// New constructs a Kernel_t from cfg. swapDir is where per-thread
/// backing-store files are created (Fork) and removed (SysExit).
func New(cfg Config_t, swapDir string, log io.Writer) *Kernel_t {
	in := ksync.New()
	var schedPolicy proc.Policy
	switch cfg.SchedPolicy {
	case SchedStaticPriority:
		schedPolicy = proc.PolicyStaticPriority
	case SchedRoundRobin:
		schedPolicy = proc.PolicyRoundRobin
	case SchedMLFQ:
		schedPolicy = proc.PolicyMLFQ
	default:
		schedPolicy = proc.PolicyFIFO
	}

	phys := mem.NewPhysmem(cfg.NumPhysPages, cfg.PageSize)
	m := mmu.New(phys, cfg.TLBSize, mmu.Config{
		Mode:     cfg.Mode,
		TLBOnly:  cfg.TLBOnly,
		Policy:   cfg.Policy,
		PageSize: cfg.PageSize,
	})

	k := &Kernel_t{
		Cfg:        cfg,
		Sched:      proc.New(schedPolicy, in),
		MMU:        m,
		In:         in,
		procs:      make(map[defs.Tid_t]*Proc),
		swapAt:     swapDir,
		consoleIn:  newConsoleIn(cfg.ConsoleIn),
		consoleOut: newConsoleOut(cfg.ConsoleOut),
	}
	k.Handler = except.New(k.Sched, k.MMU, log)
	k.Handler.OnExit = k.Forget
	if cfg.Mode == pagetable.ModeReverse {
		k.MMU.SetStoreLookup(k)
	}
	return k
}

/// StoreFor implements mmu.StoreLookup: reverse-mode eviction needs
/// the victim frame's owning thread's store, not the faulting
/// thread's own (spec.md §4.2).
func (k *Kernel_t) StoreFor(tid defs.Tid_t) (mmu.Store, bool) {
	k.mu.Lock()
	p, ok := k.procs[tid]
	k.mu.Unlock()
	if !ok {
		return nil, false
	}
	return p.store, true
}

/// Rusage returns tid's accumulated accounting usage, encoded exactly
/// as accnt.Accnt_t.To_rusage formats it (two timeval pairs: user then
/// system), for diagnostics or a future getrusage-style syscall.
func (k *Kernel_t) Rusage(tid defs.Tid_t) ([]byte, bool) {
	k.mu.Lock()
	p, ok := k.procs[tid]
	k.mu.Unlock()
	if !ok {
		return nil, false
	}
	return p.thread.Accnt.Fetch(), true
}

/// Spawn forks a new thread and its associated Proc (forward page
/// table sized pageTableSize, a fresh backing store), returning as
/// soon as the thread is forked. The backing store, console fds and
/// procs-table entry are set up on the new thread when it first runs,
/// just before entry is called. Mirrors spec.md §3's
/// Fork -> ReadyToRun transition plus the per-thread setup
/// original_source's AddrSpace/Thread constructors do together.
func (k *Kernel_t) Spawn(name string, ownerUID, priority, pageTableSize int, entry func(*Proc, *proc.Thread)) (*Proc, error) {
	p := &Proc{}
	if k.Cfg.Mode == pagetable.ModeForward {
		p.fwd = pagetable.NewForward(defs.NoTid, pageTableSize)
	}

	k.Sched.Fork(name, ownerUID, priority, func(th *proc.Thread) {
		p.thread = th
		if p.fwd != nil {
			p.fwd.Owner = th.Tid
		}
		store, err := backingstore.Create(swapPath(k.swapAt, th.Tid), th.Tid, k.Cfg.PageSize)
		if err != nil {
			panic(fmt.Sprintf("kernel: creating swap file for tid %d: %v", th.Tid, err))
		}
		p.store = store

		// Pre-open the console at fds 0/1, spec.md §6's fixed
		// descriptor convention (except.ConsoleIn/except.ConsoleOut).
		p.SetFd(except.ConsoleIn, &fd.Fd_t{Fops: k.consoleIn, Perms: fd.FD_READ})
		p.SetFd(except.ConsoleOut, &fd.Fd_t{Fops: k.consoleOut, Perms: fd.FD_WRITE})

		k.mu.Lock()
		k.procs[th.Tid] = p
		k.mu.Unlock()

		entry(p, th)
	})

	return p, nil
}

/// swapPath builds the per-thread swap-file path by extending dir the
/// same way original_source's path-joining does it (a component
/// appended after a '/'), rather than a bare Sprintf.
func swapPath(dir string, tid defs.Tid_t) string {
	return ustr.Ustr(dir).ExtendStr(fmt.Sprintf("swap.%d", tid)).String()
}

/// Forget drops tid's Proc from the table, once SysExit has run
/// (except.Handler.sysExit calls p.DeleteStore itself; Forget removes
/// the bookkeeping entry that keyed reverse-mode eviction lookups).
func (k *Kernel_t) Forget(tid defs.Tid_t) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.procs, tid)
}

/// counters is the struct stats.Profile reflects over:
/// one field per kernel-wide counter SPEC_FULL.md's stat dump names.
type counters struct {
	NumAddressTranslation stats.Counter_t
	NumPageFaults         stats.Counter_t
	UserNanos             stats.Counter_t
	SysNanos              stats.Counter_t
	ThreadsLive           stats.Counter_t
}

/// Profile packages the kernel-wide MMU counters and every live
/// thread's accounting into one pprof profile (SPEC_FULL.md's
/// cmd/gonachos -u stat dump).
func (k *Kernel_t) Profile() *profile.Profile {
	total := k.accountingSnapshot()
	c := counters{
		NumAddressTranslation: stats.Counter_t(k.MMU.NumAddressTranslation),
		NumPageFaults:         stats.Counter_t(k.MMU.NumPageFaults),
		UserNanos:             stats.Counter_t(total.Userns),
		SysNanos:              stats.Counter_t(total.Sysns),
		ThreadsLive:           stats.Counter_t(k.Sched.Live()),
	}
	return stats.Profile(c)
}

/// accountingSnapshot merges every live thread's Accnt_t, for the
/// stat dump.
func (k *Kernel_t) accountingSnapshot() *accnt.Accnt_t {
	total := &accnt.Accnt_t{}
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, p := range k.procs {
		total.Add(p.thread.Accnt)
	}
	return total
}
