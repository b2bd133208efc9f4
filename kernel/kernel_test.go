package kernel_test

import (
	"bytes"
	"testing"
	"time"

	"gonachos/defs"
	"gonachos/except"
	"gonachos/kernel"
	"gonachos/proc"
	"gonachos/util"
)

type regs struct {
	r            [8]int
	pc, npc, ppc int
}

func (d *regs) Reg(i int) int       { return d.r[i] }
func (d *regs) SetReg(i int, v int) { d.r[i] = v }
func (d *regs) PC() int             { return d.pc }
func (d *regs) SetPC(v int)         { d.pc = v }
func (d *regs) NextPC() int         { return d.npc }
func (d *regs) SetNextPC(v int)     { d.npc = v }
func (d *regs) PrevPC() int         { return d.ppc }
func (d *regs) SetPrevPC(v int)     { d.ppc = v }
func (d *regs) FaultWord() []byte   { return nil }
func (d *regs) FaultAddr() int      { return 0 }

func TestNewWiresSchedulerPolicyFromConfig(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.SchedPolicy = kernel.SchedMLFQ
	var log bytes.Buffer
	k := kernel.New(cfg, t.TempDir(), &log)

	done := make(chan struct{})
	k.Sched.Fork("solo", 0, 0, func(*proc.Thread) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forked thread never ran")
	}
}

func TestSpawnRegistersProcAndCleansUpOnExit(t *testing.T) {
	var log bytes.Buffer
	k := kernel.New(kernel.DefaultConfig(), t.TempDir(), &log)

	var tid defs.Tid_t
	registered := make(chan struct{})
	exited := make(chan struct{})
	_, err := k.Spawn("a", 0, 0, 8, func(pp *kernel.Proc, _ *proc.Thread) {
		tid = pp.Tid()
		if _, ok := k.StoreFor(tid); !ok {
			t.Error("StoreFor can't find the Proc's own store while it is still running")
		}
		close(registered)
		r := &regs{}
		r.SetReg(2, int(except.Exit))
		r.SetReg(4, 0)
		k.Handler.Dispatch(pp, r, defs.SyscallException)
		close(exited)
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("spawned thread never registered")
	}
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("spawned thread never exited")
	}

	// sysExit's OnExit hook (wired to Kernel_t.Forget) runs by the time
	// Dispatch returns, so the Proc is already gone from the table.
	if _, ok := k.StoreFor(tid); ok {
		t.Fatal("StoreFor still finds the Proc after SysExit ran")
	}
}

func TestProfileReportsAddressTranslationAndPageFaultCounts(t *testing.T) {
	var log bytes.Buffer
	k := kernel.New(kernel.DefaultConfig(), t.TempDir(), &log)

	touched := make(chan struct{})
	_, err := k.Spawn("a", 0, 0, 8, func(pp *kernel.Proc, _ *proc.Thread) {
		// A first touch of vpn 0 raises a page fault; HandlePageFault
		// pages it in (counting the fault) and the retried write
		// translates successfully.
		if exc := k.MMU.WriteMem(pp, 0, []byte{1, 2, 3}); exc != defs.PageFaultException {
			t.Errorf("first WriteMem: %v, want PageFaultException", exc)
		}
		if err := k.MMU.HandlePageFault(pp, 0); err != 0 {
			t.Errorf("HandlePageFault: %v", err)
		}
		if exc := k.MMU.WriteMem(pp, 0, []byte{1, 2, 3}); exc != defs.NoException {
			t.Errorf("WriteMem: %v", exc)
		}
		close(touched)
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case <-touched:
	case <-time.After(2 * time.Second):
		t.Fatal("spawned thread never ran")
	}

	prof := k.Profile()
	values := map[string]int64{}
	for _, s := range prof.Sample {
		names := s.Label["name"]
		if len(names) == 0 || len(s.Value) == 0 {
			continue
		}
		values[names[0]] = s.Value[0]
	}

	if values["NumAddressTranslation"] == 0 {
		t.Fatal("Profile reports zero address translations after a WriteMem")
	}
	if values["NumPageFaults"] == 0 {
		t.Fatal("Profile reports zero page faults after a first touch of an unmapped page")
	}
}

func TestRusageEncodesAccumulatedUserTime(t *testing.T) {
	var log bytes.Buffer
	k := kernel.New(kernel.DefaultConfig(), t.TempDir(), &log)

	var tid defs.Tid_t
	done := make(chan struct{})
	_, err := k.Spawn("a", 0, 0, 8, func(pp *kernel.Proc, th *proc.Thread) {
		tid = pp.Tid()
		th.Accnt.Utadd(2_500_000) // 2.5ms of simulated user time
		close(done)
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("spawned thread never ran")
	}

	ru, ok := k.Rusage(tid)
	if !ok {
		t.Fatal("Rusage can't find the still-running thread")
	}
	// accnt.Accnt_t.To_rusage lays out two timeval pairs (secs, usecs)
	// of 8 bytes each: user then system.
	userSecs := util.Readn(ru, 8, 0)
	userUsecs := util.Readn(ru, 8, 8)
	if userSecs != 0 || userUsecs != 2500 {
		t.Fatalf("user timeval = %ds %dus, want 0s 2500us", userSecs, userUsecs)
	}
}

func TestAccountingSnapshotMergesAllLiveThreads(t *testing.T) {
	var log bytes.Buffer
	k := kernel.New(kernel.DefaultConfig(), t.TempDir(), &log)

	const n = 3
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		_, err := k.Spawn("w", 0, 0, 8, func(pp *kernel.Proc, th *proc.Thread) {
			th.Accnt.Utadd(1000)
			done <- struct{}{}
		})
		if err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("not all workers ran")
		}
	}

	prof := k.Profile()
	for _, s := range prof.Sample {
		names := s.Label["name"]
		if len(names) > 0 && names[0] == "UserNanos" && len(s.Value) > 0 {
			if s.Value[0] < n*1000 {
				t.Fatalf("UserNanos = %d, want at least %d (n threads each added 1000, none yet Forgotten)", s.Value[0], n*1000)
			}
			return
		}
	}
	t.Fatal("Profile has no UserNanos sample")
}
