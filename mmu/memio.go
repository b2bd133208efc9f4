package mmu

import (
	"gonachos/defs"
	"gonachos/util"
)

/// ReadMem copies size bytes starting at the virtual address vaddr out
/// of simulated physical memory, translating once per page crossed
/// (spec.md §4.1: "every memory access ... is individually
/// translated"). It stops and returns the first exception hit.
func (m *MMU) ReadMem(as AddrSpace, vaddr, size int) ([]byte, defs.ExceptionKind) {
	out := make([]byte, size)
	if err := m.copyMem(as, vaddr, out, false); err != defs.NoException {
		return nil, err
	}
	return out, defs.NoException
}

/// WriteMem copies data into simulated physical memory starting at
/// vaddr, translating each page crossed with writing=true so
/// read-only violations are caught per page.
func (m *MMU) WriteMem(as AddrSpace, vaddr int, data []byte) defs.ExceptionKind {
	return m.copyMem(as, vaddr, data, true)
}

func (m *MMU) copyMem(as AddrSpace, vaddr int, buf []byte, writing bool) defs.ExceptionKind {
	pageSize := m.Phys.PageSize()
	done := 0
	for done < len(buf) {
		addr := vaddr + done
		offset := addr % pageSize
		chunk := util.Min(pageSize-offset, len(buf)-done)

		phys, exc := m.Translate(as, addr, 1, writing)
		if exc != defs.NoException {
			return exc
		}
		frame := m.Phys.Bytes[phys-offset : phys-offset+pageSize]
		if writing {
			copy(frame[offset:offset+chunk], buf[done:done+chunk])
		} else {
			copy(buf[done:done+chunk], frame[offset:offset+chunk])
		}
		done += chunk
	}
	return defs.NoException
}
