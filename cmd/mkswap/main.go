// Command mkswap creates an empty per-thread backing-store (swap)
// file in the spec.md §6 format, so one can be prepared outside the
// kernel process -- by a test fixture, or by hand before running
// cmd/gonachos. Adapted from the teacher's mkfs/mkfs.go, which built a
// bootable disk image out-of-process the same way; narrowed to the
// one artifact this kernel's backing store actually reads, now that
// the on-disk file system mkfs/mkfs.go served is out of scope (see
// DESIGN.md's dropped-packages section).
package main

import (
	"flag"
	"fmt"
	"os"

	"gonachos/backingstore"
	"gonachos/defs"
)

func main() {
	path := flag.String("o", "", "output swap file path (required)")
	tid := flag.Int("tid", 0, "owning thread id recorded in the header")
	pageSize := flag.Int("pagesize", 4096, "page size in bytes")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "mkswap: -o is required")
		flag.Usage()
		os.Exit(1)
	}

	s, err := backingstore.Create(*path, defs.Tid_t(*tid), *pageSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkswap: %v\n", err)
		os.Exit(1)
	}
	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "mkswap: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("mkswap: wrote empty swap file %s (tid %d, pagesize %d)\n", *path, *tid, *pageSize)
}
