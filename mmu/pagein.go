package mmu

import (
	"gonachos/defs"
	"gonachos/oommsg"
	"gonachos/pagetable"
	"gonachos/pte"
)

/// outOfMemory reports the shortage on oommsg.OomCh (the teacher's
/// memory-pressure signal) and waits for whatever reaper is listening
/// to resume it. If nothing is listening, there's no one to free
/// memory on our behalf, so the caller's "no free frame and no victim"
/// condition is a genuine assertion failure, not a recoverable one.
func (m *MMU) outOfMemory() bool {
	msg := oommsg.Oommsg_t{Need: 1, Resume: make(chan bool)}
	select {
	case oommsg.OomCh <- msg:
		return <-msg.Resume
	default:
		return false
	}
}

/// StoreLookup resolves a thread's backing store by id, needed only in
/// reverse mode where FindVictim may pick a frame belonging to a
/// thread other than the one that faulted (spec.md §4.2: the reverse
/// table's victim search ranges over every resident frame, not just
/// the faulting thread's own pages).
type StoreLookup interface {
	StoreFor(tid defs.Tid_t) (Store, bool)
}

/// SetStoreLookup wires in the thread table lookup used by reverse-mode
/// eviction. Forward mode never calls it -- a forward table only ever
/// evicts its own owner's frames, reachable through AddrSpace.Store().
func (m *MMU) SetStoreLookup(l StoreLookup) { m.storeLookup = l }

/// pageIn resolves entry's page into a physical frame: find a free
/// frame or evict a victim (writing it back if dirty), then read
/// entry's VPN in from the owning thread's backing store. A VPN with
/// no record in its store yet reads as a zero-filled page -- this
/// kernel's simplified model treats a never-saved-but-mapped page as
/// anonymous memory rather than a distinct fault class, so spec.md
/// §4.1 step 6's "otherwise fail with PageFault" and §4.4's "read its
/// contents from the swap file" share this one code path.
func (m *MMU) pageIn(as AddrSpace, ft *pagetable.Forward, entry *pte.Entry, vpn int) defs.Err_t {
	ppn, ok := m.Phys.AllocFrame()
	if !ok {
		victim := pagetable.FindVictim(ft.Entries(), m.cfg.Policy, &m.clockHand)
		if victim < 0 {
			if !m.outOfMemory() {
				panic("mmu: no free frame and no victim to evict")
			}
			if ppn, ok = m.Phys.AllocFrame(); !ok {
				panic("mmu: no free frame and no victim to evict")
			}
		} else {
			ve := ft.Entries()[victim]
			ppn = ve.PPN()
			if err := m.evict(as.Store(), ve, ppn); err != 0 {
				return err
			}
		}
	}

	page := m.Phys.FramePage(ppn)
	if as.Store().Has(vpn) {
		if err := as.Store().SwapIn(vpn, page); err != 0 {
			m.Phys.FreeFrame(ppn)
			return err
		}
	} else {
		for i := range page {
			page[i] = 0
		}
	}

	entry.WPPN(ppn)
	entry.WValid(true)
	entry.WUse(false)
	entry.WDirty(false)
	entry.LoadTime++
	entry.TID = as.Tid()
	if m.TLB != nil {
		m.TLB.InvalidateAll()
	}
	return 0
}

// evict writes ve's page back (if dirty) to store and marks ve
// invalid, freeing nothing -- the caller reuses the freed frame
// immediately, so the bitmap bit stays set throughout.
func (m *MMU) evict(store Store, ve *pte.Entry, ppn int) defs.Err_t {
	if ve.Valid() && ve.Dirty() {
		if err := store.SwapOut(ve.VPN, m.Phys.FramePage(ppn)); err != 0 {
			return err
		}
		ve.SwapSlot = 0
	}
	ve.WValid(false)
	return 0
}

/// HandlePageFault implements spec.md §4.4 and §4.7's TLBMiss path
/// alike: called by the exception handler after Translate returns
/// either PageFaultException (demand-paging needed) or
/// TLBMissException (the mapping may already be resident -- TLB-only
/// mode never consults the page table before raising the miss, unlike
/// the combined-mode Translate path, which falls through to
/// resolveViaPageTable itself). If the page table already holds a
/// valid entry for vaddr, this is a pure TLB refill (§4.7: "Resolve via
/// page-table path; install into TLB" -- distinct from a real fault);
/// only an invalid entry triggers the frame-allocating demand-paging
/// path below.
func (m *MMU) HandlePageFault(as AddrSpace, vaddr int) defs.Err_t {
	m.Lock()
	defer m.Unlock()

	pageSize := m.Phys.PageSize()
	vpn := vaddr / pageSize

	if m.cfg.Mode == pagetable.ModeReverse {
		if e, exc := m.Reverse.Lookup(as.Tid(), vpn); exc == defs.NoException {
			if m.TLB != nil {
				m.TLB.Refill(*e)
			}
			return 0
		}
		m.NumPageFaults++
		return m.handlePageFaultReverse(as, vpn)
	}

	ft := as.ForwardTable()
	entry, exc := ft.Lookup(vpn)
	if exc != defs.NoException {
		return defs.EINVAL
	}
	if entry.Valid() {
		if m.TLB != nil {
			m.TLB.Refill(*entry)
		}
		return 0
	}

	m.NumPageFaults++
	return m.pageIn(as, ft, entry, vpn)
}

func (m *MMU) handlePageFaultReverse(as AddrSpace, vpn int) defs.Err_t {
	ppn, ok := m.Phys.AllocFrame()
	if !ok {
		victim := pagetable.FindVictim(m.Reverse.Entries(), m.cfg.Policy, &m.clockHand)
		if victim < 0 {
			if !m.outOfMemory() {
				panic("mmu: no free frame and no victim to evict")
			}
			if ppn, ok = m.Phys.AllocFrame(); !ok {
				panic("mmu: no free frame and no victim to evict")
			}
		} else {
			ve := m.Reverse.FrameEntry(victim)
			store, ok := m.storeLookupFor(ve.TID)
			if !ok {
				panic("mmu: victim's owning thread has no backing store")
			}
			if err := m.evict(store, ve, victim); err != 0 {
				return err
			}
			ppn = victim
		}
	}

	page := m.Phys.FramePage(ppn)
	if as.Store().Has(vpn) {
		if err := as.Store().SwapIn(vpn, page); err != 0 {
			m.Phys.FreeFrame(ppn)
			return err
		}
	} else {
		for i := range page {
			page[i] = 0
		}
	}

	e := pte.Entry{VPN: vpn, TID: as.Tid(), SwapSlot: -1}
	e.WPPN(ppn)
	e.WValid(true)
	m.Reverse.InstallFrame(ppn, e)
	m.Phys.MarkUsed(ppn, true)
	if m.TLB != nil {
		m.TLB.InvalidateAll()
	}
	return 0
}

func (m *MMU) storeLookupFor(tid defs.Tid_t) (Store, bool) {
	if m.storeLookup == nil {
		return nil, false
	}
	return m.storeLookup.StoreFor(tid)
}
