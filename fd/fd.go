// Package fd is the open-file-descriptor table entry the syscall
// dispatch façade hands out and operates on. Adapted from the
// teacher's fd.go, narrowed to the descriptor shape itself --
// SPEC_FULL.md's §1 scope excludes the on-disk file system, so the
// teacher's Cwd_t/path-canonicalization machinery (which exists to
// resolve relative paths against a filesystem) has nothing left to
// serve and is dropped; see DESIGN.md.
package fd

import "gonachos/defs"
import "gonachos/fdops"

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
	// Fops is an interface implemented via a pointer receiver, thus
	// Fops is a reference, not a value.
	Fops  fdops.Fdops_i /// descriptor operations
	Perms int           /// permission bits
}

/// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics on failure.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}
