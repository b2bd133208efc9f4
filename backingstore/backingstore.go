// Package backingstore implements the per-thread swap file described
// in spec.md §6: a fixed-width page-count header at offset 0, then one
// record per saved page -- a fixed-width VPN followed by PageSize raw
// bytes -- read and written at page granularity. Grounded on the
// teacher's fs/blk.go cached-block pattern (adapted into fs.Store_i)
// and mkfs/mkfs.go's "build an on-disk artifact" shape (see
// cmd/mkswap). Uses golang.org/x/sys/unix.Pread/Pwrite so that two
// threads' backing stores -- and concurrent evictions against the
// same one -- never race over a shared file cursor the way a
// Seek-then-Read/Write pair would.
package backingstore

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"gonachos/defs"
	"gonachos/fs"
	"gonachos/stat"
)

/// recordSize is the on-disk size of one saved page: a 4-byte VPN
/// followed by the page payload.
func recordSize(pageSize int) int64 { return 4 + int64(pageSize) }

/// Store is one thread's backing store: a single file holding whatever
/// pages of that thread are not currently resident.
type Store struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	pageSize int
	owner    defs.Tid_t
	slotOf   map[int]int64 /// VPN -> record index
	nslots   int64
}

/// Create makes a fresh, empty backing store at path for the given
/// thread and page size, writing the spec.md §6 header.
func Create(path string, owner defs.Tid_t, pageSize int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	s := &Store{f: f, path: path, pageSize: pageSize, owner: owner, slotOf: make(map[int]int64)}
	if err := s.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

/// Open reopens an existing backing store, rebuilding the VPN->slot
/// index by reading every record's VPN field.
func Open(path string, pageSize int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s := &Store{f: f, path: path, pageSize: pageSize, slotOf: make(map[int]int64)}
	var hdr [stat.HeaderSize]byte
	if _, err := unix.Pread(int(f.Fd()), hdr[:], 0); err != nil {
		f.Close()
		return nil, err
	}
	h := &stat.Header_t{}
	h.Wnpages(le32(hdr[0:4]))
	h.Wowner(le32(hdr[4:8]))
	s.owner = defs.Tid_t(h.Owner())
	s.nslots = int64(h.Npages())

	rec := recordSize(pageSize)
	vpnbuf := make([]byte, 4)
	for i := int64(0); i < s.nslots; i++ {
		off := int64(stat.HeaderSize) + i*rec
		if _, err := unix.Pread(int(f.Fd()), vpnbuf, off); err != nil {
			f.Close()
			return nil, err
		}
		s.slotOf[int(le32(vpnbuf))] = i
	}
	return s, nil
}

func (s *Store) writeHeader() error {
	var hdr [stat.HeaderSize]byte
	h := &stat.Header_t{}
	h.Wnpages(uint32(s.nslots))
	h.Wowner(uint32(s.owner))
	putLE32(hdr[0:4], h.Npages())
	putLE32(hdr[4:8], h.Owner())
	_, err := unix.Pwrite(int(s.f.Fd()), hdr[:], 0)
	return err
}

/// SwapOut writes data (one page) for vpn, allocating a new record if
/// this VPN has never been saved before.
func (s *Store) SwapOut(vpn int, data []byte) defs.Err_t {
	if len(data) != s.pageSize {
		panic("backingstore: wrong page size")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slotOf[vpn]
	if !ok {
		slot = s.nslots
		s.slotOf[vpn] = slot
		s.nslots++
		if err := s.writeHeader(); err != nil {
			return defs.ENOSPC
		}
	}
	off := int64(stat.HeaderSize) + slot*recordSize(s.pageSize)
	var vpnbuf [4]byte
	putLE32(vpnbuf[:], uint32(vpn))
	if _, err := unix.Pwrite(int(s.f.Fd()), vpnbuf[:], off); err != nil {
		return defs.ENOSPC
	}
	if _, err := unix.Pwrite(int(s.f.Fd()), data, off+4); err != nil {
		return defs.ENOSPC
	}
	return 0
}

/// SwapIn reads the saved page for vpn into buf, which must be exactly
/// PageSize bytes. It returns defs.ENOENT if vpn was never saved.
func (s *Store) SwapIn(vpn int, buf []byte) defs.Err_t {
	if len(buf) != s.pageSize {
		panic("backingstore: wrong page size")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slotOf[vpn]
	if !ok {
		return defs.ENOENT
	}
	off := int64(stat.HeaderSize) + slot*recordSize(s.pageSize) + 4
	if _, err := unix.Pread(int(s.f.Fd()), buf, off); err != nil {
		return defs.ENOENT
	}
	return 0
}

/// Has reports whether vpn has a saved slot.
func (s *Store) Has(vpn int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slotOf[vpn]
	return ok
}

/// Start implements fs.Store_i, dispatching onto SwapIn/SwapOut.
func (s *Store) Start(req *fs.Request) {
	var err defs.Err_t
	switch req.Cmd {
	case fs.CmdRead:
		err = s.SwapIn(req.VPN, req.Data)
	case fs.CmdWrite:
		err = s.SwapOut(req.VPN, req.Data)
	}
	if err != 0 {
		req.AckCh <- os.ErrInvalid
	} else {
		req.AckCh <- nil
	}
}

/// Delete closes and removes the backing file, for SysExit cleanup
/// (spec.md §4.7: "delete its swap file").
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.f.Close()
	return os.Remove(s.path)
}

/// Close closes the backing file without removing it, for callers
/// (cmd/mkswap) that want the on-disk artifact to persist.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
