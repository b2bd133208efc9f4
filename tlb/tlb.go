// Package tlb implements the translation lookaside buffer: a small
// fixed-size associative cache of pte.Entry values (spec.md §3, §4.3).
// Grounded on original_source/code/machine/translate.cc's linear-scan
// TLB lookup and on the teacher's mem.Physmem_t.Tlbaddr, which tracks
// per-frame TLB residency bits in the same "small fixed array,
// invalidate wholesale on context switch" spirit.
package tlb

import (
	"gonachos/defs"
	"gonachos/pte"
)

/// ReplacementPolicy selects how TLB.Refill picks a victim slot when
/// every slot is occupied (spec.md §4.3).
type ReplacementPolicy int

const (
	LRU ReplacementPolicy = iota
	FIFO
)

/// TLB is a fixed-size array of translation entries. All valid entries
/// belong to the currently running thread (spec.md §3 invariant).
type TLB struct {
	slots  []pte.Entry
	valid  []bool
	policy ReplacementPolicy
	clock  int64 /// logical clock, advanced once per lookup/refill
}

/// New constructs a TLB with the given number of entries. size == 0 is
/// legal and models "no TLB" (spec.md's TLB-only vs. combined mode
/// switch lives in mmu, not here).
func New(size int, policy ReplacementPolicy) *TLB {
	return &TLB{
		slots:  make([]pte.Entry, size),
		valid:  make([]bool, size),
		policy: policy,
	}
}

/// Size returns the number of TLB slots.
func (t *TLB) Size() int { return len(t.slots) }

/// Lookup performs the linear scan of spec.md §4.1 step 5: the first
/// valid entry whose VPN matches is returned. A miss raises
/// defs.TLBMissException via the second result.
func (t *TLB) Lookup(vpn int) (pte.Entry, defs.ExceptionKind) {
	t.clock++
	for i, ok := range t.valid {
		if ok && t.slots[i].VPN == vpn {
			return t.slots[i], defs.NoException
		}
	}
	return pte.Entry{}, defs.TLBMissException
}

/// Refill installs entry into the TLB under the configured
/// replacement policy (spec.md §4.3): an invalid slot first, else LRU
/// or FIFO eviction among the occupied slots.
func (t *TLB) Refill(entry pte.Entry) {
	if len(t.slots) == 0 {
		return
	}
	t.clock++
	entry.LastUseTime = t.clock
	entry.LoadTime = t.clock

	for i, ok := range t.valid {
		if !ok {
			t.slots[i] = entry
			t.valid[i] = true
			return
		}
	}

	victim := 0
	best := t.slots[0].LastUseTime
	if t.policy == FIFO {
		best = t.slots[0].LoadTime
	}
	for i := 1; i < len(t.slots); i++ {
		cand := t.slots[i].LastUseTime
		if t.policy == FIFO {
			cand = t.slots[i].LoadTime
		}
		if cand < best {
			best = cand
			victim = i
		}
	}
	t.slots[victim] = entry
}

/// Touch records a fresh reference on the entry matching vpn, used by
/// the MMU after a hit to keep LRU ordering current without another
/// linear scan from scratch.
func (t *TLB) Touch(vpn int, writing bool) {
	t.clock++
	for i, ok := range t.valid {
		if ok && t.slots[i].VPN == vpn {
			t.slots[i].WUse(true)
			t.slots[i].LastUseTime = t.clock
			if writing {
				t.slots[i].WDirty(true)
			}
			return
		}
	}
}

/// InvalidateAll clears every TLB entry. Called on every
// address-space switch (spec.md §4.3: "invalidate every TLB entry").
func (t *TLB) InvalidateAll() {
	for i := range t.valid {
		t.valid[i] = false
	}
}

/// InvalidateOwnedBy clears only entries whose VPN was loaded on
/// behalf of tid, for SysExit cleanup in reverse-table mode (spec.md
/// §4.7: "invalidate any TLB slots belonging to it (reverse mode)").
func (t *TLB) InvalidateOwnedBy(tid defs.Tid_t) {
	for i, ok := range t.valid {
		if ok && t.slots[i].TID == tid {
			t.valid[i] = false
		}
	}
}

/// Dump returns a snapshot of the valid entries, for tests and
/// diagnostics.
func (t *TLB) Dump() []pte.Entry {
	out := make([]pte.Entry, 0, len(t.slots))
	for i, ok := range t.valid {
		if ok {
			out = append(out, t.slots[i])
		}
	}
	return out
}
