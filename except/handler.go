package except

import (
	"fmt"
	"io"

	"golang.org/x/arch/x86/x86asm"

	"gonachos/caller"
	"gonachos/defs"
	"gonachos/fd"
	"gonachos/mmu"
	"gonachos/proc"
)

/// Process is what the handler needs about the faulting/calling
/// thread beyond its Regs: its address space (mmu.AddrSpace), its
/// thread record, and its small fixed-size fd table. kernel.Proc is
/// the concrete implementation; keeping this as an interface here
/// avoids except importing kernel (kernel imports except instead).
type Process interface {
	mmu.AddrSpace
	Thread() *proc.Thread
	/// DeleteStore removes the thread's backing-store file, for
	/// SysExit cleanup (spec.md §4.7).
	DeleteStore() error
	Fd(n int) (*fd.Fd_t, bool)
	SetFd(n int, f *fd.Fd_t)
	ClearFds()
}

/// Handler ties the scheduler and MMU together into spec.md §4.7's
/// dispatch table. One Handler serves every thread; Process supplies
/// the per-thread state each call needs.
type Handler struct {
	Sched *proc.Scheduler
	MMU   *mmu.MMU
	Ipc   *proc.IpcRegistry
	Log   io.Writer

	/// Halted is closed the first time SysHalt runs.
	Halted chan struct{}

	/// Diagnostics enables caller.Callerdump on fatal terminations: the
	/// host-side call stack leading into Dispatch, useful when
	/// debugging the kernel itself rather than a guest program (which
	/// has no stack trace to offer -- §1, no instruction decoder).
	Diagnostics bool

	/// distinctFaults logs a fatal-exception line only the first time a
	/// given host call chain reaches Dispatch's termination branch,
	/// so a guest program that hits the same fault in a tight retry
	/// loop doesn't flood h.Log with identical lines.
	distinctFaults caller.Distinct_caller_t

	/// OnExit, if set, runs after every SysExit-style termination, once
	/// Finish has returned (the scheduler drops the thread's own record
	/// later, when its successor runs). kernel wires this to
	/// Kernel_t.Forget, since except cannot import kernel to call it
	/// directly (kernel imports except, not the reverse).
	OnExit func(defs.Tid_t)
}

/// New returns a handler wired to sched and m.
func New(sched *proc.Scheduler, m *mmu.MMU, log io.Writer) *Handler {
	h := &Handler{Sched: sched, MMU: m, Ipc: proc.NewIpcRegistry(), Log: log, Halted: make(chan struct{})}
	h.distinctFaults.Enabled = true
	return h
}

/// Dispatch implements spec.md §4.7's table: syscalls advance the PC
/// on return and call through to the matching Sys* method; PageFault
/// and TLBMiss are recovered in place without advancing the PC;
/// every other exception is fatal to p's thread.
func (h *Handler) Dispatch(p Process, r Regs, kind defs.ExceptionKind) {
	inttime := p.Thread().Accnt.Now()
	defer p.Thread().Accnt.Finish(inttime)

	switch kind {
	case defs.SyscallException:
		h.dispatchSyscall(p, r)
		advancePC(r)
	case defs.PageFaultException:
		if err := h.MMU.HandlePageFault(p, r.FaultAddr()); err != 0 {
			fmt.Fprintf(h.Log, "except: unrecoverable page fault in tid %d: %v\n", p.Tid(), err)
			h.terminate(p)
		}
	case defs.TLBMissException:
		if err := h.MMU.HandlePageFault(p, r.FaultAddr()); err != 0 {
			fmt.Fprintf(h.Log, "except: unrecoverable TLB miss in tid %d: %v\n", p.Tid(), err)
			h.terminate(p)
		}
	case defs.ReadOnlyException, defs.AddressErrorException, defs.BusErrorException, defs.OverflowException:
		if isNew, _ := h.distinctFaults.Distinct(); isNew {
			fmt.Fprintf(h.Log, "except: tid %d terminated by %v at pc=0x%x\n", p.Tid(), kind, r.PC())
		}
		if h.Diagnostics {
			caller.Callerdump(2)
		}
		h.terminate(p)
	case defs.IllegalInstrException:
		h.logIllegalInstr(p, r)
		if h.Diagnostics {
			caller.Callerdump(2)
		}
		h.terminate(p)
	case defs.NoException:
		panic("except: Dispatch called with NoException")
	default:
		panic("except: unknown exception kind")
	}
}

/// logIllegalInstr disassembles the faulting instruction word for the
/// log line, the same "explain what we're about to kill" spirit as
/// caller.Callerdump -- a diagnostic, not a decoder: the instruction
/// is never executed, only decoded for the message.
func (h *Handler) logIllegalInstr(p Process, r Regs) {
	word := r.FaultWord()
	if word == nil {
		fmt.Fprintf(h.Log, "except: tid %d illegal instruction at pc=0x%x (no instruction bytes available)\n", p.Tid(), r.PC())
		return
	}
	inst, err := x86asm.Decode(word, 32)
	if err != nil {
		fmt.Fprintf(h.Log, "except: tid %d illegal instruction at pc=0x%x: %x (undecodable: %v)\n", p.Tid(), r.PC(), word, err)
		return
	}
	fmt.Fprintf(h.Log, "except: tid %d illegal instruction at pc=0x%x: %s\n", p.Tid(), r.PC(), inst.String())
}

/// terminate implements SysExit(-1) semantics for a thread killed by a
/// fatal exception: SysExit below does the actual resource release.
func (h *Handler) terminate(p Process) {
	h.sysExit(p, -1)
}
