// Package pte defines the translation entry: the record describing one
// virtual-to-physical mapping, shared by the TLB and both page-table
// layouts (spec.md §3). Grounded on
// original_source/code/machine/translate.cc's TranslationEntry, with
// the PPN-field swap-slot overloading the original used (Open Question
// (ii)) replaced by an explicit SwapSlot field.
package pte

import "gonachos/defs"

/// Entry describes one virtual page's mapping.
type Entry struct {
	VPN int /// virtual page number

	valid    bool
	ppn      int /// physical page number; meaningful only if valid
	readOnly bool
	use      bool /// referenced since last clear (clock/LRU input)
	dirty    bool /// written since loaded

	/// TID is the owning thread, used only by the reverse page table
	/// (spec.md §3: "tID -- owning thread identifier -- reverse-table
	/// mode only").
	TID defs.Tid_t

	/// SwapSlot records whether this VPN's data has been saved to the
	/// backing store (which is keyed by VPN); only its sign is
	/// consulted, and eviction sets it to 0. -1 means "never paged out":
	/// a genuine page fault (spec.md §4.1 step 6, forward mode) rather
	/// than a recoverable page-in. Documented explicitly here instead
	/// of overloading PPN, per spec.md's Open Question (ii).
	SwapSlot int32

	/// LastUseTime and LoadTime are policy metadata for LRU and FIFO
	/// replacement respectively (spec.md §3).
	LastUseTime int64
	LoadTime    int64
}

/// NewSwappable constructs an entry for a VPN that has never been
/// loaded and carries no swap slot -- referencing it raises a genuine
/// page fault.
func NewSwappable(vpn int) *Entry {
	return &Entry{VPN: vpn, SwapSlot: -1}
}

/// Valid reports whether the mapping is currently usable.
func (e *Entry) Valid() bool { return e.valid }

/// WValid sets the valid bit.
func (e *Entry) WValid(v bool) { e.valid = v }

/// PPN returns the physical page number. Only meaningful if Valid().
func (e *Entry) PPN() int { return e.ppn }

/// WPPN sets the physical page number.
func (e *Entry) WPPN(ppn int) { e.ppn = ppn }

/// ReadOnly reports whether writes to this page are forbidden.
func (e *Entry) ReadOnly() bool { return e.readOnly }

/// WReadOnly sets the read-only bit.
func (e *Entry) WReadOnly(v bool) { e.readOnly = v }

/// Use reports the reference bit.
func (e *Entry) Use() bool { return e.use }

/// WUse sets the reference bit.
func (e *Entry) WUse(v bool) { e.use = v }

/// Dirty reports whether the page has been written since it was
/// loaded.
func (e *Entry) Dirty() bool { return e.dirty }

/// WDirty sets the dirty bit.
func (e *Entry) WDirty(v bool) { e.dirty = v }

/// HasSwapSlot reports whether a swap slot is recorded for this VPN.
func (e *Entry) HasSwapSlot() bool { return e.SwapSlot >= 0 }

/// Clone returns a value copy, used when a reverse-table entry is
/// handed to a caller that must not alias kernel state.
func (e *Entry) Clone() Entry { return *e }
