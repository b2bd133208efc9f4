// Package except implements spec.md §4.7's exception dispatch table
// and the syscall dispatch façade named in §6. Grounded on
// original_source/code/userprog/exception.cc for dispatch order and
// on caller.Callerdump's diagnostic-logging style for the
// IllegalInstr disassembly. The instruction decoder and register file
// themselves are out of scope (§1 Non-goals) -- except depends only
// on the Regs interface below, satisfied by whatever instruction
// model a caller supplies.
package except

import "gonachos/defs"

/// SyscallNum enumerates spec.md §6's syscall codes, numbered exactly
/// as specified.
type SyscallNum int

const (
	Halt SyscallNum = iota
	Exit
	Exec
	Join
	Create
	Remove
	Open
	Read
	Write
	Seek
	Close
	Delete
	ThreadFork
	ThreadYield
	ExecV
	ThreadExit
	ThreadJoin
	GetSpaceID
	GetThreadID
	Ipc
	Clock
)

/// Add is syscall 42, spec.md §6 -- out of sequence with the rest,
/// kept as its own constant rather than padding the iota block with
/// 21 unused placeholders.
const Add SyscallNum = 42

/// Open modes, spec.md §6.
const (
	OpenRO     = 1
	OpenRW     = 2
	OpenAppend = 3
)

/// Console file ids are pre-opened at these fixed descriptors.
const (
	ConsoleIn  = 0
	ConsoleOut = 1
)

/// Regs is the register-file surface the syscall ABI needs: syscall
/// number and result in register 2, arguments in registers 4-7 (§6),
/// plus the three program-counter registers the handler advances (or
/// doesn't) depending on exception kind. Index semantics beyond "2"
/// and "4-7" are the instruction model's concern, not this package's.
type Regs interface {
	Reg(i int) int
	SetReg(i int, v int)
	PC() int
	SetPC(v int)
	NextPC() int
	SetNextPC(v int)
	PrevPC() int
	SetPrevPC(v int)
	/// FaultWord returns the 4 raw bytes of the instruction at PC, for
	/// IllegalInstr diagnostics. May return nil if unavailable.
	FaultWord() []byte
	/// FaultAddr returns the virtual address that triggered a
	/// PageFault or TLBMiss -- the instruction model's BadVAddr
	/// register, not necessarily PC (a faulting load/store's operand
	/// address, most commonly).
	FaultAddr() int
}

/// advancePC implements spec.md §4.7's "on return advance PC/NextPC by
/// 4" -- syscalls only, never faults.
func advancePC(r Regs) {
	r.SetPrevPC(r.PC())
	r.SetPC(r.NextPC())
	r.SetNextPC(r.NextPC() + 4)
}

func errReg(r Regs, e defs.Err_t) {
	r.SetReg(2, int(e))
}
