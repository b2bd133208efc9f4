// Package kernel threads the translation subsystem, the scheduler,
// and the syscall/exception façade together into one runnable
// instance -- the role the teacher's kernel/chentry.go standalone
// ELF-patching command does not fill (that tool has no equivalent
// need once there is no ELF loader in scope; see DESIGN.md), so this
// package is built fresh, grounded on spec.md §9's "Config_t" and
// "Kernel_t" Design Notes guidance and on how Physmem_t/MMU/Scheduler
// are each constructed in their own packages.
package kernel

import (
	"gonachos/limits"
	"gonachos/pagetable"
)

/// Config_t carries every build-time tunable SPEC_FULL.md's CLI
/// surface (cmd/gonachos) parses flags into.
type Config_t struct {
	NumPhysPages int
	PageSize     int
	TLBSize      int
	MaxThreadNum int
	QueueNum     int
	MLFQQuantum  [limits.QueueNum]int

	Mode    pagetable.Mode
	TLBOnly bool
	Policy  pagetable.Policy

	SchedPolicy SchedPolicy

	/// RandomSlice and RandSeed record -rs. The scheduler does not read
	/// them: every time slice is the fixed DefaultTimeSlice, and no
	/// randomized slicing takes place.
	RandomSlice bool
	RandSeed    int64

	/// SingleStep enables -s: the instruction model (out of scope
	/// here) is expected to halt after each instruction; kernel only
	/// threads the flag through for that external collaborator.
	SingleStep bool

	ConsoleIn  string
	ConsoleOut string

	/// NetReliability is -n: probability in [0,1] a simulated network
	/// packet is delivered. Threaded through for the network device
	/// model, an external collaborator out of scope here (§1).
	NetReliability float64

	HostID int
}

/// SchedPolicy mirrors proc.Policy so kernel/cmd/gonachos don't need
/// to import proc just to spell out flag values.
type SchedPolicy int

const (
	SchedFIFO SchedPolicy = iota
	SchedStaticPriority
	SchedRoundRobin
	SchedMLFQ
)

/// DefaultConfig returns SPEC_FULL.md's baseline configuration: a
/// forward-mode page table backing a small TLB, FIFO replacement,
/// FIFO scheduling -- the simplest legal combination under Open
/// Question (i)'s TLB-needs-a-page-table rule.
func DefaultConfig() Config_t {
	return Config_t{
		NumPhysPages: 64,
		PageSize:     4096,
		TLBSize:      limits.DefaultTLBSize,
		MaxThreadNum: limits.MaxThreadNum,
		QueueNum:     limits.QueueNum,
		MLFQQuantum:  limits.MLFQQuantum,
		Mode:         pagetable.ModeForward,
		Policy:       pagetable.PolicyFIFO,
		SchedPolicy:  SchedFIFO,
	}
}
