// Package tinfo tracks per-thread join/kill bookkeeping: the
// notification channel a joiner blocks on and the exit status a
// killed or exited thread leaves behind. Adapted from Tnote_t /
// Threadinfo_t; the original's runtime.Gptr/Setgptr "get the note for
// the currently running goroutine" hook does not exist in the
// standard runtime (biscuit assumes a patched one) and is dropped
// entirely -- callers look a note up by defs.Tid_t through
// Registry, and proc.Scheduler is the only place that tracks
// "which tid is current" (as an explicit field, not an ambient
// singleton), per spec.md's Design Notes on avoiding hidden globals.
package tinfo

import (
	"sync"

	"gonachos/defs"
)

/// Note is one thread's join/kill state.
type Note struct {
	sync.Mutex
	Alive  bool
	Killed bool

	/// Done is closed exactly once, when the thread finishes (normally
	/// or via Kill), waking every blocked Joiner.
	Done   chan struct{}
	Status defs.Err_t /// the thread's Exit status, valid once Done is closed
}

/// NewNote returns a freshly allocated, live note.
func NewNote() *Note {
	return &Note{Alive: true, Done: make(chan struct{})}
}

/// Finish marks the note as exited with the given status and wakes
/// every Joiner. Idempotent is not assumed: calling it twice panics,
/// since Thread.Finish only ever runs once per thread (spec.md §3's
/// lifecycle ends in ZOMBIE exactly once).
func (n *Note) Finish(status defs.Err_t) {
	n.Lock()
	defer n.Unlock()
	if !n.Alive {
		panic("tinfo: Finish called twice")
	}
	n.Alive = false
	n.Status = status
	close(n.Done)
}

/// MarkKilled records that the thread was killed rather than exiting
/// on its own, for SysExit(-1)-style termination (spec.md §4.7).
func (n *Note) MarkKilled() {
	n.Lock()
	defer n.Unlock()
	n.Killed = true
}

/// Registry maps thread ids to their join/kill Note: proc.Scheduler
/// registers and forgets notes as threads are forked and destroyed,
/// and the ThreadJoin syscall waits on them.
type Registry struct {
	sync.Mutex
	notes map[defs.Tid_t]*Note
}

/// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{notes: make(map[defs.Tid_t]*Note)}
}

/// Register installs a fresh note for tid, overwriting nothing --
/// panics if tid is already registered (thread ids are reused only
/// after the thread-table slot is freed).
func (r *Registry) Register(tid defs.Tid_t) *Note {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.notes[tid]; ok {
		panic("tinfo: tid already registered")
	}
	n := NewNote()
	r.notes[tid] = n
	return n
}

/// Lookup returns tid's note, if any.
func (r *Registry) Lookup(tid defs.Tid_t) (*Note, bool) {
	r.Lock()
	defer r.Unlock()
	n, ok := r.notes[tid]
	return n, ok
}

/// Forget removes tid's note once no joiner can reference it again
/// (after the thread-table slot is recycled).
func (r *Registry) Forget(tid defs.Tid_t) {
	r.Lock()
	defer r.Unlock()
	delete(r.notes, tid)
}
