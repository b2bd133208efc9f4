package except

import (
	"fmt"

	"gonachos/defs"
	"gonachos/fd"
	"gonachos/fdops"
)

/// dispatchSyscall reads the syscall number from register 2 (§6) and
/// routes to the matching Sys* method. advancePC is applied by the
/// caller (Dispatch) after this returns, uniformly for every syscall.
func (h *Handler) dispatchSyscall(p Process, r Regs) {
	switch SyscallNum(r.Reg(2)) {
	case Halt:
		h.sysHalt(p, r)
	case Exit:
		h.sysExit(p, r.Reg(4))
	case Add:
		h.sysAdd(p, r)
	case ThreadFork:
		h.sysThreadFork(p, r)
	case ThreadYield:
		h.sysThreadYield(p, r)
	case ThreadExit:
		h.sysExit(p, r.Reg(4))
	case ThreadJoin:
		h.sysThreadJoin(p, r)
	case GetSpaceID:
		r.SetReg(2, int(p.Tid()))
	case GetThreadID:
		r.SetReg(2, int(p.Thread().Tid))
	case Ipc:
		h.sysIpc(p, r)
	case Clock:
		r.SetReg(2, int(h.Sched.Ticks()))
	case Read:
		h.sysRead(p, r)
	case Write:
		h.sysWrite(p, r)
	case Seek:
		h.sysSeek(p, r)
	case Close:
		h.sysClose(p, r)
	case Open, Delete, Create, Remove, Exec, ExecV, Join:
		/// These need an on-disk file system or an instruction loader,
		/// both external collaborators out of scope here (spec.md §1)
		/// -- the routing exists so a fuller build only needs to
		/// supply the backend, not touch dispatch. Read/Write/Seek/
		/// Close above only need an already-open fd.Fd_t, which the
		/// pre-opened console descriptors (fds 0/1) always provide.
		errReg(r, defs.ENOTSUP)
	default:
		fmt.Fprintf(h.Log, "except: tid %d unknown syscall %d\n", p.Tid(), r.Reg(2))
		errReg(r, defs.EINVAL)
	}
}

func (h *Handler) sysHalt(p Process, r Regs) {
	select {
	case <-h.Halted:
	default:
		close(h.Halted)
	}
}

/// sysAdd implements the sample Add syscall (spec.md §6, code 42):
/// result = reg4 + reg5, matching original_source's SysAdd example
/// used to smoke-test the syscall path before anything else works.
func (h *Handler) sysAdd(p Process, r Regs) {
	r.SetReg(2, r.Reg(4)+r.Reg(5))
}

/// sysExit implements spec.md §4.7's SysExit cleanup: release page
/// table entries, invalidate TLB state, delete the swap file, then
/// Finish. It is also the IllegalInstr/ReadOnly/etc. termination path.
func (h *Handler) sysExit(p Process, status int) {
	p.ClearFds()
	if err := p.DeleteStore(); err != nil {
		fmt.Fprintf(h.Log, "except: tid %d: swap file cleanup: %v\n", p.Tid(), err)
	}
	tid := p.Tid()
	h.MMU.Lock()
	if h.MMU.Reverse != nil {
		for _, ppn := range h.MMU.Reverse.InvalidateOwnedBy(tid) {
			h.MMU.Phys.FreeFrame(ppn)
		}
		if h.MMU.TLB != nil {
			h.MMU.TLB.InvalidateOwnedBy(tid)
		}
	} else if ft := p.ForwardTable(); ft != nil {
		for _, e := range ft.Entries() {
			if e.Valid() {
				e.WValid(false)
				h.MMU.Phys.FreeFrame(e.PPN())
			}
		}
		if h.MMU.TLB != nil {
			h.MMU.TLB.InvalidateAll()
		}
	}
	h.MMU.Unlock()
	h.Sched.Finish(p.Thread(), defs.Err_t(status))
	if h.OnExit != nil {
		h.OnExit(tid)
	}
}

func (h *Handler) sysThreadYield(p Process, r Regs) {
	h.Sched.Yield()
}

/// sysThreadFork implements ThreadFork (§6) by returning ENOTSUP:
/// register 4 would hold the child's entry-point pc, but except has no
/// instruction model of its own to start a child thread at it.
func (h *Handler) sysThreadFork(p Process, r Regs) {
	errReg(r, defs.ENOTSUP)
}

func (h *Handler) sysThreadJoin(p Process, r Regs) {
	tid := defs.Tid_t(r.Reg(4))
	note, ok := h.Sched.Notes.Lookup(tid)
	if !ok {
		errReg(r, defs.ESRCH)
		return
	}
	<-note.Done
	r.SetReg(2, int(note.Status))
}

/// sysIpc implements the minimal rendezvous SPEC_FULL.md supplements
/// (§6 names Ipc=19 without specifying it): register 4 selects the
/// mailbox id, register 5 nonzero means send (payload length in
/// register 6, read from the caller's address space at register 7),
/// zero means receive.
func (h *Handler) sysIpc(p Process, r Regs) {
	mbox := h.Ipc.Mailbox(r.Reg(4))
	if r.Reg(5) != 0 {
		n := r.Reg(6)
		data, exc := h.MMU.ReadMem(p, r.Reg(7), n)
		if exc != defs.NoException {
			errReg(r, defs.EFAULT)
			return
		}
		mbox <- data
		r.SetReg(2, n)
		return
	}
	since := p.Thread().Accnt.Now()
	data := <-mbox
	// Waiting for a sender isn't kernel work done on p's behalf.
	p.Thread().Accnt.Io_time(since)
	if exc := h.MMU.WriteMem(p, r.Reg(7), data); exc != defs.NoException {
		errReg(r, defs.EFAULT)
		return
	}
	r.SetReg(2, len(data))
}

/// sysRead implements Read (§6): register 4 is the fd, register 5 the
/// guest buffer address, register 6 the requested length. The backend
/// (the console, currently the only pre-opened descriptor) fills a
/// host-side buffer, which is then copied into the guest's address
/// space via MMU.WriteMem.
func (h *Handler) sysRead(p Process, r Regs) {
	f, ok := p.Fd(r.Reg(4))
	if !ok {
		errReg(r, defs.EBADF)
		return
	}
	if f.Perms&fd.FD_READ == 0 {
		errReg(r, defs.EACCES)
		return
	}
	buf := make([]byte, r.Reg(6))
	n, err := f.Fops.Read(buf)
	if err != 0 {
		errReg(r, err)
		return
	}
	if exc := h.MMU.WriteMem(p, r.Reg(5), buf[:n]); exc != defs.NoException {
		errReg(r, defs.EFAULT)
		return
	}
	r.SetReg(2, n)
}

/// sysWrite implements Write (§6): the mirror of sysRead -- the guest
/// buffer at register 5, length register 6, is copied out via
/// MMU.ReadMem before being handed to the fd's backend.
func (h *Handler) sysWrite(p Process, r Regs) {
	f, ok := p.Fd(r.Reg(4))
	if !ok {
		errReg(r, defs.EBADF)
		return
	}
	if f.Perms&fd.FD_WRITE == 0 {
		errReg(r, defs.EACCES)
		return
	}
	data, exc := h.MMU.ReadMem(p, r.Reg(5), r.Reg(6))
	if exc != defs.NoException {
		errReg(r, defs.EFAULT)
		return
	}
	n, err := f.Fops.Write(data)
	if err != 0 {
		errReg(r, err)
		return
	}
	r.SetReg(2, n)
}

/// sysSeek implements Seek (§6): register 4 the fd, register 5 the
/// offset, register 6 the fdops.Whence. The console backend rejects
/// every call with EINVAL, since it has no seekable offset; a future
/// on-disk-file backend would honor it through the same fdops.Fdops_i
/// call.
func (h *Handler) sysSeek(p Process, r Regs) {
	f, ok := p.Fd(r.Reg(4))
	if !ok {
		errReg(r, defs.EBADF)
		return
	}
	pos, err := f.Fops.Seek(r.Reg(5), fdops.Whence(r.Reg(6)))
	if err != 0 {
		errReg(r, err)
		return
	}
	r.SetReg(2, pos)
}

/// sysClose implements Close (§6): releases the fd.Fd_t's backend and
/// clears the table slot, without waiting for SysExit's ClearFds.
func (h *Handler) sysClose(p Process, r Regs) {
	f, ok := p.Fd(r.Reg(4))
	if !ok {
		errReg(r, defs.EBADF)
		return
	}
	err := f.Fops.Close()
	p.SetFd(r.Reg(4), nil)
	if err != 0 {
		errReg(r, err)
		return
	}
	r.SetReg(2, 0)
}
