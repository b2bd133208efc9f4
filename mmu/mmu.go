// Package mmu implements spec.md §4.1: Translate, ReadMem, and
// WriteMem. It ties together pte.Entry, tlb.TLB, pagetable's two
// layouts, and a per-thread backingstore.Store. Grounded on
// vm/as.go's Userdmap8_inner (lock, look up, fault if needed, commit)
// and original_source/code/machine/translate.cc for the exact
// ordering of checks.
package mmu

import (
	"sync"

	"gonachos/defs"
	"gonachos/mem"
	"gonachos/pagetable"
	"gonachos/pte"
	"gonachos/tlb"
)

/// AddrSpace is what Translate needs from the currently running
/// thread's address space: its forward page table (nil in reverse
/// mode, where the MMU owns one system-wide table instead) and its
/// backing store.
type AddrSpace interface {
	Tid() defs.Tid_t
	ForwardTable() *pagetable.Forward /// nil in reverse mode
	Store() Store
}

/// Store is the subset of backingstore.Store that mmu depends on,
/// kept as an interface so tests can substitute an in-memory fake.
type Store interface {
	SwapIn(vpn int, buf []byte) defs.Err_t
	SwapOut(vpn int, data []byte) defs.Err_t
	Has(vpn int) bool
}

/// Config selects the MMU's build-time behavior (spec.md §4.1 step 3,
/// §9 Design Notes "Dual translation layouts").
type Config struct {
	Mode     pagetable.Mode
	TLBOnly  bool /// true: a TLB miss raises TLBMissException, no page-table fallback
	Policy   pagetable.Policy
	PageSize int
}

/// MMU holds the shared pieces of the translation subsystem: physical
/// memory, the optional TLB, and -- in reverse mode only -- the single
/// system-wide reverse page table (forward-mode tables live on each
/// thread's AddrSpace instead).
type MMU struct {
	sync.Mutex
	Phys    *mem.Physmem_t
	TLB     *tlb.TLB /// nil if this build has no TLB at all
	cfg     Config
	Reverse *pagetable.Reverse /// non-nil iff cfg.Mode == pagetable.ModeReverse

	clockHand   int
	storeLookup StoreLookup

	NumAddressTranslation int64
	NumPageFaults         int64
}

/// New validates the Open Question (i) invariant -- "a TLB without a
/// page table is forbidden" -- and constructs an MMU. tlbSize == 0
/// means no TLB; reverse mode additionally allocates the system-wide
/// table.
func New(phys *mem.Physmem_t, tlbSize int, cfg Config) *MMU {
	if tlbSize > 0 && cfg.TLBOnly == false && cfg.Mode != pagetable.ModeForward && cfg.Mode != pagetable.ModeReverse {
		panic("mmu: TLB configured without a backing page table")
	}
	m := &MMU{Phys: phys, cfg: cfg}
	if tlbSize > 0 {
		policy := tlb.LRU
		if cfg.Policy == pagetable.PolicyFIFO {
			policy = tlb.FIFO
		}
		m.TLB = tlb.New(tlbSize, policy)
	}
	if cfg.Mode == pagetable.ModeReverse {
		m.Reverse = pagetable.NewReverse(phys.NumPhysPages())
	}
	return m
}

/// aligned reports whether a size-byte access at addr satisfies the
/// alignment rule of spec.md §4.1 step 2.
func aligned(addr, size int) bool {
	switch size {
	case 4:
		return addr&0x3 == 0
	case 2:
		return addr&0x1 == 0
	default:
		return true
	}
}

/// Translate resolves a virtual address to a physical address,
/// following spec.md §4.1 exactly. On success it returns the physical
/// address and defs.NoException; on failure, 0 and the exception the
/// caller (the instruction model, then possibly the exception
/// handler) must act on.
func (m *MMU) Translate(as AddrSpace, vaddr, size int, writing bool) (int, defs.ExceptionKind) {
	m.Lock()
	defer m.Unlock()

	m.NumAddressTranslation++

	if !aligned(vaddr, size) {
		return 0, defs.AddressErrorException
	}
	if vaddr < 0 {
		return 0, defs.AddressErrorException
	}

	pageSize := m.Phys.PageSize()
	vpn := vaddr / pageSize
	offset := vaddr % pageSize

	var entry *pte.Entry
	var fromTLB bool

	if m.TLB != nil {
		e, exc := m.TLB.Lookup(vpn)
		if exc == defs.NoException {
			entry = &e
			fromTLB = true
		} else if m.cfg.TLBOnly {
			return 0, defs.TLBMissException
		}
	}

	if entry == nil {
		e, exc := m.resolveViaPageTable(as, vpn)
		if exc != defs.NoException {
			return 0, exc
		}
		entry = e
	}

	if writing && entry.ReadOnly() {
		return 0, defs.ReadOnlyException
	}

	ppn := entry.PPN()
	if !m.Phys.InRange(ppn) {
		return 0, defs.BusErrorException
	}

	entry.WUse(true)
	if writing {
		entry.WDirty(true)
	}
	if fromTLB {
		m.TLB.Touch(vpn, writing)
	} else if m.TLB != nil {
		m.TLB.Refill(*entry)
	}

	physAddr := ppn*pageSize + offset
	if physAddr+size > m.Phys.MemorySize() {
		return 0, defs.BusErrorException
	}
	return physAddr, defs.NoException
}

// resolveViaPageTable implements spec.md §4.1 step 6: the
// forward-mode dense-array lookup (with inline demand page-in when a
// swap slot is already on record) or the reverse-mode linear scan.
func (m *MMU) resolveViaPageTable(as AddrSpace, vpn int) (*pte.Entry, defs.ExceptionKind) {
	if m.cfg.Mode == pagetable.ModeReverse {
		return m.Reverse.Lookup(as.Tid(), vpn)
	}

	ft := as.ForwardTable()
	entry, exc := ft.Lookup(vpn)
	if exc != defs.NoException {
		return nil, exc
	}
	if entry.Valid() {
		return entry, defs.NoException
	}
	if entry.HasSwapSlot() {
		if err := m.pageIn(as, ft, entry, vpn); err != 0 {
			return nil, defs.PageFaultException
		}
		return entry, defs.NoException
	}
	return nil, defs.PageFaultException
}
