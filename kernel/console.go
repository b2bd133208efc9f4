package kernel

import (
	"io"
	"os"
	"sync"

	"gonachos/defs"
	"gonachos/fdops"
)

// consoleFdops implements fdops.Fdops_i over a single io.Reader or
// io.Writer: the console device SPEC_FULL.md's §6 pre-opens at fds 0
// and 1, an external collaborator (spec.md §1) whose real hardware is
// out of scope, but whose file-descriptor surface every thread needs
// something to dispatch Read/Write through. -ci/-co (Config_t's
// ConsoleIn/ConsoleOut) redirect it at a file instead of the host
// process's own stdin/stdout.
//
// One instance is shared by every thread's fd table (console is a
// kernel-wide device, not a per-thread resource), so Close is a no-op:
// a thread's SysExit must not tear down the console for everyone
// else. The host file, if any, is only ever closed by the host
// process exiting.
type consoleFdops struct {
	mu sync.Mutex
	r  io.Reader
	w  io.Writer
}

func newConsoleIn(path string) *consoleFdops {
	if path == "" {
		return &consoleFdops{r: os.Stdin}
	}
	f, err := os.Open(path)
	if err != nil {
		return &consoleFdops{r: os.Stdin}
	}
	return &consoleFdops{r: f}
}

func newConsoleOut(path string) *consoleFdops {
	if path == "" {
		return &consoleFdops{w: os.Stdout}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return &consoleFdops{w: os.Stdout}
	}
	return &consoleFdops{w: f}
}

func (c *consoleFdops) Read(dst []byte) (int, defs.Err_t) {
	if c.r == nil {
		return 0, defs.EBADF
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.r.Read(dst)
	if err != nil && err != io.EOF {
		return n, defs.EINVAL
	}
	return n, 0
}

func (c *consoleFdops) Write(src []byte) (int, defs.Err_t) {
	if c.w == nil {
		return 0, defs.EBADF
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.w.Write(src)
	if err != nil {
		return n, defs.EINVAL
	}
	return n, 0
}

// Seek implements fdops.Fdops_i: the console has no seekable offset.
func (c *consoleFdops) Seek(offset int, whence fdops.Whence) (int, defs.Err_t) {
	return 0, defs.EINVAL
}

func (c *consoleFdops) Close() defs.Err_t { return 0 }

func (c *consoleFdops) Reopen() defs.Err_t { return 0 }
