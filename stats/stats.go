// Package stats holds the kernel's runtime counters -- MMU
// translation/fault counts (spec.md §7), summed user/system time,
// and whatever else a future subsystem wants to track -- plus the
// means to dump them as a pprof profile (Profile: SPEC_FULL.md wires
// the teacher's otherwise-unused google/pprof/profile dependency into
// the §7 stat dump so it can be opened directly in `pprof`). Adapted
// from stats/stats.go; the teacher's Rdtsc hook assumed a patched
// runtime exposing RDTSC and does not exist in the standard one, so
// cycle counting is dropped in favor of wall-clock nanoseconds, which
// every Counter_t/Cycles_t caller already measures in (see
// accnt.Accnt_t, whose Userns/Sysns are nanosecond counts). The
// teacher's Stats/Timing on-off switches and the Counter_t.Inc/
// Cycles_t.Add methods gated behind them are dropped: this kernel's
// counters are maintained directly by their owners (mmu.MMU,
// accnt.Accnt_t) and only ever reflected into a Counter_t/Cycles_t at
// dump time, so there is no increment call site for Inc/Add to serve.
package stats

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/pprof/profile"
)

/// Counter_t is a statistical counter.
type Counter_t int64

/// Cycles_t holds an elapsed-time accumulator, in nanoseconds.
type Cycles_t int64

/// Profile packages a struct of Counter_t/Cycles_t fields as a
/// pprof profile.Profile: one Sample per field, named by its struct
/// field name, valued in the counter's raw units. Callers write the
/// result with (*profile.Profile).Write to get a pprof file
/// `go tool pprof` can open directly -- the §7 "diagnostics ...
/// counters, no deeper profiling" requirement, given a standard
/// container to live in rather than a bespoke text dump.
func Profile(st interface{}) *profile.Profile {
	countType := &profile.ValueType{Type: "count", Unit: "count"}
	p := &profile.Profile{
		SampleType: []*profile.ValueType{countType},
		PeriodType: countType,
		Period:     1,
		TimeNanos:  time.Now().UnixNano(),
	}

	v := reflect.ValueOf(st)
	for i := 0; i < v.NumField(); i++ {
		name := v.Type().Field(i).Name
		t := v.Field(i).Type().String()
		var val int64
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			val = int64(v.Field(i).Interface().(Counter_t))
		case strings.HasSuffix(t, "Cycles_t"):
			val = int64(v.Field(i).Interface().(Cycles_t))
		default:
			continue
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{val},
			Label: map[string][]string{"name": {name}},
		})
	}
	return p
}
