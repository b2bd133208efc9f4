package except_test

import (
	"bytes"
	"testing"
	"time"

	"gonachos/defs"
	"gonachos/except"
	"gonachos/kernel"
	"gonachos/proc"
)

// testRegs is a minimal except.Regs: a small register file with no
// attached instruction memory, mirroring cmd/gonachos's demoRegs.
type testRegs struct {
	r              [8]int
	pc, npc, ppc   int
	faultAddr      int
	faultWordBytes []byte
}

func newTestRegs() *testRegs { return &testRegs{npc: 4} }

func (d *testRegs) Reg(i int) int       { return d.r[i] }
func (d *testRegs) SetReg(i int, v int) { d.r[i] = v }
func (d *testRegs) PC() int             { return d.pc }
func (d *testRegs) SetPC(v int)         { d.pc = v }
func (d *testRegs) NextPC() int         { return d.npc }
func (d *testRegs) SetNextPC(v int)     { d.npc = v }
func (d *testRegs) PrevPC() int         { return d.ppc }
func (d *testRegs) SetPrevPC(v int)     { d.ppc = v }
func (d *testRegs) FaultWord() []byte   { return d.faultWordBytes }
func (d *testRegs) FaultAddr() int      { return d.faultAddr }

// newTestKernel builds a Kernel_t with a scratch swap directory, for
// tests that need a real except.Process (kernel.Proc) rather than a
// hand-rolled fake.
func newTestKernel(t *testing.T) *kernel.Kernel_t {
	t.Helper()
	var log bytes.Buffer
	return kernel.New(kernel.DefaultConfig(), t.TempDir(), &log)
}

func spawnIdle(t *testing.T, k *kernel.Kernel_t) (*kernel.Proc, chan struct{}) {
	t.Helper()
	ready := make(chan struct{})
	p, err := k.Spawn("t", 0, 0, 8, func(_ *kernel.Proc, _ *proc.Thread) {
		close(ready)
		<-make(chan struct{}) // park forever; test drives syscalls from here
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for thread to start")
	}
	return p, ready
}

func TestDispatchSyscallAdvancesPCBy4(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetReg(2, int(except.Add))
	r.SetReg(4, 3)
	r.SetReg(5, 4)

	k.Handler.Dispatch(p, r, defs.SyscallException)

	if got := r.Reg(2); got != 7 {
		t.Fatalf("Add result = %d, want 7", got)
	}
	if r.PC() != 4 || r.NextPC() != 8 {
		t.Fatalf("pc=%d nextpc=%d, want pc=4 nextpc=8 (advanced by 4)", r.PC(), r.NextPC())
	}
}

func TestDispatchFatalExceptionDoesNotAdvancePC(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetPC(100)
	r.SetNextPC(104)

	note, ok := k.Sched.Notes.Lookup(p.Thread().Tid)
	if !ok {
		t.Fatal("no join note for terminated thread")
	}

	k.Handler.Dispatch(p, r, defs.OverflowException)

	if r.PC() != 100 || r.NextPC() != 104 {
		t.Fatalf("pc=%d nextpc=%d, want unchanged (fatal exceptions never advance the PC)", r.PC(), r.NextPC())
	}

	select {
	case <-note.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("fatal exception never finished the thread")
	}
	if note.Status != defs.Err_t(-1) {
		t.Fatalf("status = %d, want -1 (terminate implements SysExit(-1))", note.Status)
	}
}

func TestSysExitRecordsStatusAndClearsFds(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetReg(2, int(except.Exit))
	r.SetReg(4, 9)

	note, ok := k.Sched.Notes.Lookup(p.Thread().Tid)
	if !ok {
		t.Fatal("no join note for exited thread")
	}

	k.Handler.Dispatch(p, r, defs.SyscallException)

	select {
	case <-note.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Exit never finished the thread")
	}
	if note.Status != 9 {
		t.Fatalf("status = %d, want 9", note.Status)
	}
	if _, ok := p.Fd(0); ok {
		t.Fatal("Fd(0) still present after Exit's ClearFds")
	}
}

func TestSysWriteCopiesGuestBufferToConsole(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	msg := "hello"
	if err := k.MMU.HandlePageFault(p, 0); err != 0 {
		t.Fatalf("HandlePageFault: %v", err)
	}
	if exc := k.MMU.WriteMem(p, 0, []byte(msg)); exc != defs.NoException {
		t.Fatalf("WriteMem: %v", exc)
	}

	r := newTestRegs()
	r.SetReg(2, int(except.Write))
	r.SetReg(4, except.ConsoleOut)
	r.SetReg(5, 0)
	r.SetReg(6, len(msg))
	k.Handler.Dispatch(p, r, defs.SyscallException)

	if got := r.Reg(2); got != len(msg) {
		t.Fatalf("Write returned %d, want %d", got, len(msg))
	}
}

func TestSysReadFromConsoleOutRejectedForWriteOnlyFd(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetReg(2, int(except.Read))
	r.SetReg(4, except.ConsoleOut) // write-only fd
	r.SetReg(5, 0)
	r.SetReg(6, 16)
	k.Handler.Dispatch(p, r, defs.SyscallException)

	if got := defs.Err_t(r.Reg(2)); got != defs.EACCES {
		t.Fatalf("Read on a write-only fd returned %d, want EACCES", got)
	}
}

func TestSysSeekOnConsoleIsUnsupported(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetReg(2, int(except.Seek))
	r.SetReg(4, except.ConsoleOut)
	r.SetReg(5, 0)
	r.SetReg(6, 0)
	k.Handler.Dispatch(p, r, defs.SyscallException)

	if got := defs.Err_t(r.Reg(2)); got != defs.EINVAL {
		t.Fatalf("Seek on the console returned %d, want EINVAL", got)
	}
}

func TestSysCloseClearsFdSlot(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetReg(2, int(except.Close))
	r.SetReg(4, except.ConsoleOut)
	k.Handler.Dispatch(p, r, defs.SyscallException)

	if r.Reg(2) != 0 {
		t.Fatalf("Close returned %d, want 0", r.Reg(2))
	}
	if _, ok := p.Fd(except.ConsoleOut); ok {
		t.Fatal("fd table still has an entry for ConsoleOut after Close")
	}

	r2 := newTestRegs()
	r2.SetReg(2, int(except.Close))
	r2.SetReg(4, except.ConsoleOut)
	k.Handler.Dispatch(p, r2, defs.SyscallException)
	if got := defs.Err_t(r2.Reg(2)); got != defs.EBADF {
		t.Fatalf("Close on an already-closed fd returned %d, want EBADF", got)
	}
}

func TestSysHaltIsIdempotent(t *testing.T) {
	k := newTestKernel(t)
	p, _ := spawnIdle(t, k)

	r := newTestRegs()
	r.SetReg(2, int(except.Halt))

	// Halt must tolerate being dispatched twice (e.g. two threads both
	// reaching Halt) without panicking on a double-close.
	k.Handler.Dispatch(p, r, defs.SyscallException)
	k.Handler.Dispatch(p, r, defs.SyscallException)

	select {
	case <-k.Handler.Halted:
	default:
		t.Fatal("Halted never closed")
	}
}

func TestSysThreadJoinReturnsChildStatus(t *testing.T) {
	k := newTestKernel(t)

	child, err := k.Spawn("child", 0, 0, 8, func(cp *kernel.Proc, _ *proc.Thread) {
		r := newTestRegs()
		r.SetReg(2, int(except.Exit))
		r.SetReg(4, 42)
		k.Handler.Dispatch(cp, r, defs.SyscallException)
	})
	if err != nil {
		t.Fatalf("Spawn child: %v", err)
	}

	joined := make(chan int, 1)
	_, err = k.Spawn("parent", 0, 0, 8, func(pp *kernel.Proc, _ *proc.Thread) {
		r := newTestRegs()
		r.SetReg(2, int(except.ThreadJoin))
		r.SetReg(4, int(child.Thread().Tid))
		k.Handler.Dispatch(pp, r, defs.SyscallException)
		joined <- r.Reg(2)

		r2 := newTestRegs()
		r2.SetReg(2, int(except.Exit))
		k.Handler.Dispatch(pp, r2, defs.SyscallException)
	})
	if err != nil {
		t.Fatalf("Spawn parent: %v", err)
	}

	select {
	case status := <-joined:
		if status != 42 {
			t.Fatalf("joined status = %d, want 42", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ThreadJoin never returned")
	}
}

func TestSysIpcRoundTripsThroughMailboxAndGuestMemory(t *testing.T) {
	k := newTestKernel(t)

	const mbox = 5
	const payload = "hi"
	received := make(chan string, 1)

	_, err := k.Spawn("sender", 0, 0, 8, func(sp *kernel.Proc, _ *proc.Thread) {
		if err := k.MMU.HandlePageFault(sp, 0); err != 0 {
			t.Errorf("sender HandlePageFault: %v", err)
			return
		}
		if exc := k.MMU.WriteMem(sp, 0, []byte(payload)); exc != defs.NoException {
			t.Errorf("sender WriteMem: %v", exc)
			return
		}
		r := newTestRegs()
		r.SetReg(2, int(except.Ipc))
		r.SetReg(4, mbox)
		r.SetReg(5, 1) // send
		r.SetReg(6, len(payload))
		r.SetReg(7, 0)
		k.Handler.Dispatch(sp, r, defs.SyscallException)

		r2 := newTestRegs()
		r2.SetReg(2, int(except.Exit))
		k.Handler.Dispatch(sp, r2, defs.SyscallException)
	})
	if err != nil {
		t.Fatalf("Spawn sender: %v", err)
	}

	_, err = k.Spawn("receiver", 0, 0, 8, func(rp *kernel.Proc, _ *proc.Thread) {
		if err := k.MMU.HandlePageFault(rp, 0); err != 0 {
			t.Errorf("receiver HandlePageFault: %v", err)
			return
		}
		r := newTestRegs()
		r.SetReg(2, int(except.Ipc))
		r.SetReg(4, mbox)
		r.SetReg(5, 0) // receive
		r.SetReg(7, 0)
		k.Handler.Dispatch(rp, r, defs.SyscallException)

		got, exc := k.MMU.ReadMem(rp, 0, r.Reg(2))
		if exc != defs.NoException {
			t.Errorf("receiver ReadMem: %v", exc)
			return
		}
		received <- string(got)

		r2 := newTestRegs()
		r2.SetReg(2, int(except.Exit))
		k.Handler.Dispatch(rp, r2, defs.SyscallException)
	})
	if err != nil {
		t.Fatalf("Spawn receiver: %v", err)
	}

	select {
	case got := <-received:
		if got != payload {
			t.Fatalf("received payload = %q, want %q", got, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("IPC send/receive never completed")
	}
}
