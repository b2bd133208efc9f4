// Package fdops defines the operations surface every open file
// descriptor backend implements. SPEC_FULL.md's §6 syscall table names
// Open/Read/Write/Seek/Close/Delete without specifying any concrete
// backend (console and on-disk files are external collaborators, out
// of scope per §1) -- except's syscall dispatch only needs the
// interface shape to call through, the same role fdops.Fdops_i plays
// in the teacher tree.
package fdops

import "gonachos/defs"

/// Whence selects Seek's reference point, mirroring lseek(2).
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

/// Fdops_i is implemented by any open-file backend: an in-memory
/// console buffer, a swap-backed page file, or (in a fuller kernel) an
/// on-disk inode. except.SysRead/SysWrite/SysSeek/SysClose dispatch
/// through this interface without knowing which backend they're
/// talking to.
type Fdops_i interface {
	/// Read copies up to len(dst) bytes starting at the descriptor's
	/// current offset into dst, returning the count read.
	Read(dst []byte) (int, defs.Err_t)
	/// Write copies src to the descriptor's current offset, returning
	/// the count written.
	Write(src []byte) (int, defs.Err_t)
	/// Seek repositions the descriptor's offset per whence and
	/// returns the new absolute offset.
	Seek(offset int, whence Whence) (int, defs.Err_t)
	/// Close releases any resources the backend holds open.
	Close() defs.Err_t
	/// Reopen is called by Copyfd to give the backend a chance to
	/// bump a refcount or duplicate an underlying handle.
	Reopen() defs.Err_t
}
