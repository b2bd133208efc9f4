package defs

/// Err_t is a negative errno-style result, as returned by every kernel
/// operation that can fail. Zero means success.
type Err_t int

/// Common errors returned across the kernel. Values mirror the handful
/// biscuit's own defs package would define for the corresponding UNIX
/// errnos, kept small since the translation/scheduling core only needs
/// a few of them.
const (
	EFAULT  Err_t = -14
	ENOMEM  Err_t = -12
	EINVAL  Err_t = -22
	ENOENT  Err_t = -2
	EAGAIN  Err_t = -11
	ENOSPC  Err_t = -28
	EBADF   Err_t = -9
	ESRCH   Err_t = -3
	EACCES  Err_t = -13
	ENOTSUP Err_t = -95
)

/// Tid_t is a thread identifier: an index into the kernel's thread table.
type Tid_t int

/// NoTid is the zero value meaning "no thread".
const NoTid Tid_t = -1
