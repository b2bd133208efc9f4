package mem

import "encoding/binary"

// The simulated machine is little-endian (spec.md §6). On a
// little-endian host these conversions are no-ops; on a big-endian
// host they byte-swap, exactly as original_source/code/machine/
// translate.cc's WordToHost/ShortToHost do for the C++ original.

/// LoadWord reads a little-endian 32-bit word from b at off.
func LoadWord(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

/// StoreWord writes v as a little-endian 32-bit word into b at off.
func StoreWord(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

/// LoadShort reads a little-endian 16-bit halfword from b at off.
func LoadShort(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

/// StoreShort writes v as a little-endian 16-bit halfword into b at off.
func StoreShort(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}
