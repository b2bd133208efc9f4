// Command gonachos is the demo/driver binary: it builds a Kernel_t
// from the §6 CLI surface, forks a handful of demo threads that drive
// the syscall ABI directly (there is no instruction decoder in scope,
// per spec.md §1, so each demo thread is its own tiny hardcoded
// "program" of register setups and Dispatch calls rather than fetched
// instructions), waits for Halt, and optionally prints a stat dump.
// Grounded on kernel/chentry.go's role as the teacher's standalone
// driver command, generalized from ELF-patching to this kernel's
// actual external interface.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/message"

	"gonachos/defs"
	"gonachos/except"
	"gonachos/kernel"
	"gonachos/proc"
	"gonachos/util"
)

func main() {
	var (
		rsSeed   = flag.Int64("rs", 0, "randomized time slicing seed (recorded in the config; the scheduler always uses the fixed slice)")
		single   = flag.Bool("s", false, "single-step user programs")
		consIn   = flag.String("ci", "", "alternate console input source")
		consOut  = flag.String("co", "", "alternate console output sink")
		format   = flag.Bool("f", false, "format the file system (ignored: no file system in scope)")
		netRel   = flag.Float64("n", 1.0, "network reliability in [0,1]")
		hostID   = flag.Int("m", 0, "host id")
		usage    = flag.Bool("u", false, "print a usage/statistics dump on exit")
		swapDir  = flag.String("swapdir", ".", "directory for per-thread swap files")
		numDemo  = flag.Int("threads", 3, "number of demo threads to fork")
		progSize = flag.Int("progsize", 0, "demo program size in bytes, rounded up to a whole number of pages (0: one page)")
	)
	flag.Parse()

	cfg := kernel.DefaultConfig()
	cfg.RandomSlice = *rsSeed != 0
	cfg.RandSeed = *rsSeed
	cfg.SingleStep = *single
	cfg.ConsoleIn = *consIn
	cfg.ConsoleOut = *consOut
	cfg.NetReliability = *netRel
	cfg.HostID = *hostID
	_ = *format // no file system to format; flag accepted for CLI-surface parity only

	k := kernel.New(cfg, *swapDir, os.Stderr)

	// A demo program always occupies at least one page; larger -progsize
	// values round up to a whole number of pages, the same unit Spawn's
	// pageTableSize argument counts in.
	pageTableSize := 1
	if *progSize > 0 {
		pageTableSize = util.Roundup(*progSize, cfg.PageSize) / cfg.PageSize
	}

	for i := 0; i < *numDemo; i++ {
		i := i
		_, err := k.Spawn(fmt.Sprintf("demo%d", i), 0, 0, pageTableSize, func(p *kernel.Proc, th *proc.Thread) {
			runDemoProgram(k, p, i)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "gonachos: spawn demo%d: %v\n", i, err)
			os.Exit(1)
		}
	}

	select {
	case <-k.Handler.Halted:
	case <-k.Sched.Done:
	case <-time.After(5 * time.Second):
		fmt.Fprintln(os.Stderr, "gonachos: timed out waiting for Halt")
	}

	if *usage {
		dumpStats(k)
	}
}

// runDemoProgram drives a fixed sequence of syscalls through the
// exception handler on behalf of one demo thread: Add (smoke-test the
// ABI), ThreadYield (exercise the scheduler), then Exit. The first demo
// thread (idx 0) additionally calls Halt.
func runDemoProgram(k *kernel.Kernel_t, p *kernel.Proc, idx int) {
	r := newDemoRegs()

	r.SetReg(2, int(except.Add))
	r.SetReg(4, idx)
	r.SetReg(5, 10)
	k.Handler.Dispatch(p, r, defs.SyscallException)

	r.SetReg(2, int(except.ThreadYield))
	k.Handler.Dispatch(p, r, defs.SyscallException)

	if idx == 0 {
		r.SetReg(2, int(except.Halt))
		k.Handler.Dispatch(p, r, defs.SyscallException)
	}

	status := r.Reg(2)
	r.SetReg(2, int(except.Exit))
	r.SetReg(4, status)
	k.Handler.Dispatch(p, r, defs.SyscallException)
}

func dumpStats(k *kernel.Kernel_t) {
	prof := k.Profile()
	p := message.NewPrinter(message.MatchLanguage("en"))
	p.Fprintln(os.Stdout, "gonachos: usage statistics")
	for _, s := range prof.Sample {
		name := "?"
		if names, ok := s.Label["name"]; ok && len(names) > 0 {
			name = names[0]
		}
		if len(s.Value) > 0 {
			p.Printf("  %-24s %d\n", name, s.Value[0])
		}
	}
}
