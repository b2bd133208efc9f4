// Package pagetable implements the two mutually-exclusive page-table
// layouts of spec.md §3/§4.2: a per-thread forward table indexed by
// VPN, and a single system-wide reverse table indexed by physical
// frame. Grounded on vm/as.go's Vm_t (the pgfltaken-guarded address
// space lock, adapted here as Lock/Unlock/Lockassert) and on
// original_source/code/machine/translate.cc for the lookup and
// eviction algorithms; FIFO/LRU victim selection additionally follows
// the shape used by other_examples/wechicken456-Go-Page-Replacement.
package pagetable

import (
	"sync"

	"gonachos/defs"
	"gonachos/pte"
)

/// Policy selects the replacement algorithm FindVictim applies
/// (spec.md §4.2).
type Policy int

const (
	PolicyFIFO Policy = iota
	PolicyLRU
	PolicyClock
)

/// Mode selects which of the two layouts a Table uses. Exactly one is
/// active for the lifetime of a kernel instance (spec.md §4.1 step 3,
/// and the Design Notes' "compile-time switch" -- here a run-time
/// field set once at construction).
type Mode int

const (
	ModeForward Mode = iota
	ModeReverse
)

// / guard is the pgfltaken-style address-space lock shared by both
// / table layouts, adapted from vm.Vm_t's Lock_pmap/Unlock_pmap/
// / Lockassert_pmap.
type guard struct {
	sync.Mutex
	taken bool
}

func (g *guard) Lock() {
	g.Mutex.Lock()
	g.taken = true
}

func (g *guard) Unlock() {
	g.taken = false
	g.Mutex.Unlock()
}

func (g *guard) Lockassert() {
	if !g.taken {
		panic("pagetable: address-space lock must be held")
	}
}

/// Forward is the per-thread dense page table: entries[v] describes
/// the mapping for VPN v. Length is the thread's pageTableSize (code +
/// stack + data pages), per spec.md §3.
type Forward struct {
	guard
	Owner   defs.Tid_t
	entries []*pte.Entry
}

/// NewForward allocates an all-invalid forward table of the given
/// size, each entry pre-populated with a SwapSlot of -1 (never
/// written back); mmu's eviction sets it to 0 once a dirty page has
/// been saved to the backing store.
func NewForward(owner defs.Tid_t, size int) *Forward {
	f := &Forward{Owner: owner, entries: make([]*pte.Entry, size)}
	for v := range f.entries {
		f.entries[v] = pte.NewSwappable(v)
	}
	return f
}

/// Size returns the table's VPN range.
func (f *Forward) Size() int { return len(f.entries) }

/// Lookup returns the entry for vpn, or AddressErrorException if vpn
/// is out of range (spec.md §4.1 step 6, forward mode).
func (f *Forward) Lookup(vpn int) (*pte.Entry, defs.ExceptionKind) {
	if vpn < 0 || vpn >= len(f.entries) {
		return nil, defs.AddressErrorException
	}
	return f.entries[vpn], defs.NoException
}

/// Install overwrites the entry for e.VPN, e.g. after a page-in.
func (f *Forward) Install(e pte.Entry) {
	*f.entries[e.VPN] = e
}

/// Entries exposes the underlying slice for FindVictim.
func (f *Forward) Entries() []*pte.Entry { return f.entries }

/// Reverse is the system-wide reverse page table: entries[frame]
/// describes what currently resides in physical frame `frame`
/// (spec.md §3). A frame is free iff its entry is !valid and the
/// frame bitmap bit is clear -- this package only tracks validity;
/// the bitmap itself lives in mem.Physmem_t and is kept in lockstep by
/// the mmu package.
type Reverse struct {
	guard
	entries []*pte.Entry
}

/// NewReverse allocates a reverse table with one slot per physical
/// frame.
func NewReverse(numPhysPages int) *Reverse {
	r := &Reverse{entries: make([]*pte.Entry, numPhysPages)}
	for f := range r.entries {
		r.entries[f] = &pte.Entry{SwapSlot: -1}
	}
	return r
}

/// Lookup performs the linear scan for a (tid, vpn) match (spec.md
/// §4.1 step 6, reverse mode); PageFaultException if absent.
func (r *Reverse) Lookup(tid defs.Tid_t, vpn int) (*pte.Entry, defs.ExceptionKind) {
	for _, e := range r.entries {
		if e.Valid() && e.TID == tid && e.VPN == vpn {
			return e, defs.NoException
		}
	}
	return nil, defs.PageFaultException
}

/// InstallFrame overwrites the entry owning physical frame ppn.
func (r *Reverse) InstallFrame(ppn int, e pte.Entry) {
	*r.entries[ppn] = e
}

/// FrameEntry returns the entry describing frame ppn (valid or not).
func (r *Reverse) FrameEntry(ppn int) *pte.Entry { return r.entries[ppn] }

/// Entries exposes the underlying slice for FindVictim.
func (r *Reverse) Entries() []*pte.Entry { return r.entries }

/// InvalidateOwnedBy clears every valid entry belonging to tid, for
/// SysExit cleanup (spec.md §4.7).
func (r *Reverse) InvalidateOwnedBy(tid defs.Tid_t) []int {
	var freed []int
	for i, e := range r.entries {
		if e.Valid() && e.TID == tid {
			e.WValid(false)
			freed = append(freed, i)
		}
	}
	return freed
}

/// FindVictim implements spec.md §4.2: pick the valid entry with the
/// smallest loadTime (FIFO), smallest lastUseTime (LRU), or the first
/// entry found with use==false while circularly clearing use bits
/// (clock). It returns -1 if no entry is currently valid.
func FindVictim(entries []*pte.Entry, policy Policy, clockHand *int) int {
	switch policy {
	case PolicyClock:
		return findVictimClock(entries, clockHand)
	case PolicyLRU:
		return findVictimBy(entries, func(e *pte.Entry) int64 { return e.LastUseTime })
	default:
		return findVictimBy(entries, func(e *pte.Entry) int64 { return e.LoadTime })
	}
}

func findVictimBy(entries []*pte.Entry, key func(*pte.Entry) int64) int {
	victim := -1
	var best int64
	for i, e := range entries {
		if !e.Valid() {
			continue
		}
		k := key(e)
		if victim == -1 || k < best {
			victim = i
			best = k
		}
	}
	return victim
}

func findVictimClock(entries []*pte.Entry, hand *int) int {
	n := len(entries)
	if n == 0 {
		return -1
	}
	anyValid := false
	for _, e := range entries {
		if e.Valid() {
			anyValid = true
			break
		}
	}
	if !anyValid {
		return -1
	}
	for i := 0; i < 2*n; i++ {
		idx := *hand % n
		*hand = idx + 1
		e := entries[idx]
		if !e.Valid() {
			continue
		}
		if !e.Use() {
			return idx
		}
		e.WUse(false)
	}
	// every valid entry was referenced within one full sweep; the
	// second pass above already cleared every use bit, so take the
	// first valid entry now -- it is guaranteed unreferenced.
	for i, e := range entries {
		if e.Valid() {
			return i
		}
	}
	return -1
}
