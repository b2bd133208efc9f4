package kernel

import (
	"gonachos/backingstore"
	"gonachos/defs"
	"gonachos/fd"
	"gonachos/mmu"
	"gonachos/pagetable"
	"gonachos/proc"
)

/// maxOpenFiles bounds the per-process descriptor table; spec.md §6
/// pre-opens console fds 0 and 1, leaving the rest for Open.
const maxOpenFiles = 16

/// Proc is one thread's view of kernel state beyond its Thread
/// record: its forward page table (nil in reverse mode), its backing
/// store, and its open file descriptors. Implements mmu.AddrSpace and
/// except.Process.
type Proc struct {
	thread *proc.Thread
	fwd    *pagetable.Forward /// nil in reverse mode
	store  *backingstore.Store
	fds    [maxOpenFiles]*fd.Fd_t
}

/// Tid implements mmu.AddrSpace.
func (p *Proc) Tid() defs.Tid_t { return p.thread.Tid }

/// ForwardTable implements mmu.AddrSpace.
func (p *Proc) ForwardTable() *pagetable.Forward { return p.fwd }

/// Store implements mmu.AddrSpace, returning p's backing store as the
/// narrower mmu.Store interface.
func (p *Proc) Store() mmu.Store { return p.store }

/// Thread implements except.Process.
func (p *Proc) Thread() *proc.Thread { return p.thread }

/// DeleteStore implements except.Process: removes the backing-store
/// file (spec.md §4.7's SysExit cleanup).
func (p *Proc) DeleteStore() error { return p.store.Delete() }

/// Fd implements except.Process.
func (p *Proc) Fd(n int) (*fd.Fd_t, bool) {
	if n < 0 || n >= len(p.fds) || p.fds[n] == nil {
		return nil, false
	}
	return p.fds[n], true
}

/// SetFd implements except.Process.
func (p *Proc) SetFd(n int, f *fd.Fd_t) {
	if n < 0 || n >= len(p.fds) {
		panic("kernel: fd number out of range")
	}
	p.fds[n] = f
}

/// ClearFds implements except.Process: closes every open descriptor,
/// for SysExit cleanup.
func (p *Proc) ClearFds() {
	for i, f := range p.fds {
		if f != nil {
			f.Fops.Close()
			p.fds[i] = nil
		}
	}
}
