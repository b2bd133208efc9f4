// Package stat describes the header of a thread's backing-store (swap)
// file: a page count plus the owning thread id, using the same
// Wfoo/foo bit-accessor idiom the teacher's Stat_t uses for file
// metadata (stat/stat.go), narrowed to the two fields the swap-file
// format (spec.md §6) actually needs.
package stat

/// Header_t is the fixed-width header written at offset 0 of every
/// per-thread swap file: a count of pages currently saved, followed
/// by the owning thread id for diagnostics.
type Header_t struct {
	_npages uint32
	_owner  uint32
}

/// Wnpages stores the page count.
func (h *Header_t) Wnpages(v uint32) {
	h._npages = v
}

/// Npages returns the stored page count.
func (h *Header_t) Npages() uint32 {
	return h._npages
}

/// Wowner stores the owning thread id.
func (h *Header_t) Wowner(v uint32) {
	h._owner = v
}

/// Owner returns the stored owning thread id.
func (h *Header_t) Owner() uint32 {
	return h._owner
}

/// HeaderSize is the on-disk size, in bytes, of Header_t (two
/// 4-byte fields; see backingstore's reader/writer).
const HeaderSize = 8
