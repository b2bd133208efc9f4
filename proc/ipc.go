package proc

import "gonachos/hashtable"

/// IpcRegistry implements SPEC_FULL.md's minimal rendezvous for the
/// Ipc syscall (§6 names Ipc=19 without specifying it further): a
/// small-integer mailbox id maps to a buffered byte-slice channel.
/// Adapted from hashtable.Hashtable_t, reusing its lock-free Get and
/// per-bucket-locked Set/Del directly rather than just its idiom --
/// the key type it already supports (int) is exactly a mailbox id.
type IpcRegistry struct {
	ht *hashtable.Hashtable_t
}

/// ipcBuckets is a small fixed bucket count: a kernel-wide IPC
/// facility for a handful of threads doesn't need the sizing original
/// callers gave Hashtable_t for inode/dentry caches.
const ipcBuckets = 64

/// NewIpcRegistry returns an empty mailbox registry.
func NewIpcRegistry() *IpcRegistry {
	return &IpcRegistry{ht: hashtable.MkHash(ipcBuckets)}
}

/// Mailbox returns the channel for id, creating a fresh buffered one
/// (capacity 1, matching Nachos's synchronous single-message Ipc) if
/// this is the first reference to id.
func (r *IpcRegistry) Mailbox(id int) chan []byte {
	if v, ok := r.ht.Get(id); ok {
		return v.(chan []byte)
	}
	ch := make(chan []byte, 1)
	if v, inserted := r.ht.Set(id, ch); !inserted {
		return v.(chan []byte) /// lost the race to another caller
	}
	return ch
}

/// Forget removes id's mailbox once both sides are done with it.
func (r *IpcRegistry) Forget(id int) {
	if _, ok := r.ht.Get(id); ok {
		r.ht.Del(id)
	}
}
