package defs

/// Syscall numbers, passed to the kernel in register 2 (see except's
/// syscall dispatch and the ABI in SPEC_FULL.md).
const (
	SysHalt        = 0
	SysExit        = 1
	SysExec        = 2
	SysJoin        = 3
	SysCreate      = 4
	SysRemove      = 5
	SysOpen        = 6
	SysRead        = 7
	SysWrite       = 8
	SysSeek        = 9
	SysClose       = 10
	SysDelete      = 11
	SysThreadFork  = 12
	SysThreadYield = 13
	SysExecV       = 14
	SysThreadExit  = 15
	SysThreadJoin  = 16
	SysGetSpaceID  = 17
	SysGetThreadID = 18
	SysIpc         = 19
	SysClock       = 20
	SysAdd         = 42
)

/// Open modes for the Open syscall.
const (
	ORO     = 1 /// read only
	ORW     = 2 /// read/write
	OAPPEND = 3 /// append-only
)

/// Pre-open console file descriptors.
const (
	ConsoleIn  = 0
	ConsoleOut = 1
)

/// InstrSize is the width, in bytes, of one simulated instruction.
/// On a syscall return the handler advances PCReg, PrevPCReg, and
/// NextPCReg each by InstrSize; on a fault, none of them move.
const InstrSize = 4

/// Seek whence values, in the conventional (position, whence) order --
/// see SPEC_FULL's Open Question (iii) decision.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

/// Register indices used by the syscall ABI: number in Reg2, args in
/// Reg4..Reg7, result written back to Reg2.
const (
	RegSyscallNum = 2
	RegArg0       = 4
	RegArg1       = 5
	RegArg2       = 6
	RegArg3       = 7
	RegResult     = 2
)
