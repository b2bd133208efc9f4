// Package limits holds the kernel's fixed sizing constants: how many
// threads the thread table can hold, how many MLFQ levels exist and
// their quanta, and the default TLB size. Adapted from the teacher's
// Syslimit_t/Sysatomic_t (limits/limits.go) pattern of a struct of
// tunables plus an atomically-checked counter type, narrowed to the
// handful of limits the translation/scheduling core actually needs.
package limits

import "sync/atomic"

/// MaxThreadNum bounds the size of the global thread table (spec.md
/// §3 "Thread... integer thread id (index into a global thread table
/// of capacity MaxThreadNum)").
const MaxThreadNum = 1024

/// QueueNum is the number of MLFQ priority levels.
const QueueNum = 5

/// MLFQQuantum is the per-level quantum vector for the multi-level
/// feedback queue, as named in spec.md §3.
var MLFQQuantum = [QueueNum]int{3, 4, 5, 6, 7}

/// DefaultTLBSize is the number of entries in the TLB absent an
/// explicit configuration (spec.md §3: "typically 4-16").
const DefaultTLBSize = 4

/// DefaultTimeSlice is the quantum, in simulated ticks, used by the
/// fixed-quantum round-robin policy.
const DefaultTimeSlice = 100

/// Sysatomic_t is a numeric limit that can be atomically taken and
/// given back, used for the thread-table occupancy count.
type Sysatomic_t int64

/// Taken tries to decrement the counter by n; it returns false and
/// leaves the counter unchanged if that would take it negative.
func (s *Sysatomic_t) Taken(n uint) bool {
	if atomic.AddInt64((*int64)(s), -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), int64(n))
	return false
}

/// Given increases the counter by n, e.g. when a thread table slot is
/// freed.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64((*int64)(s), int64(n))
}

/// Value returns the current counter value.
func (s *Sysatomic_t) Value() int64 {
	return atomic.LoadInt64((*int64)(s))
}
