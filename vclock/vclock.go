package vclock

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// Ordering is the result of comparing two vector times under their partial
// order.
type Ordering int

const (
	Before Ordering = iota - 2
	Concurrent
	Equal
	After
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case Concurrent:
		return "concurrent"
	case Equal:
		return "equal"
	case After:
		return "after"
	}
	return "invalid"
}

// VectorTime is a logical timestamp mapping process ids to logical clock
// values. Entries at zero are never stored; a missing entry and a zero entry
// compare equal. All operations copy, values are safe to share across
// goroutines.
type VectorTime map[string]uint64

func New() VectorTime {
	return VectorTime{}
}

// LocalTime returns the logical time recorded for processId, zero when
// absent.
func (vt VectorTime) LocalTime(processId string) uint64 {
	return vt[processId]
}

// Tick returns a copy of vt with processId's entry incremented by one.
func (vt VectorTime) Tick(processId string) VectorTime {
	out := maps.Clone(vt)
	if out == nil {
		out = VectorTime{}
	}
	out[processId]++
	return out
}

// Merge returns the pairwise maximum of vt and other, dominating both.
func (vt VectorTime) Merge(other VectorTime) VectorTime {
	out := maps.Clone(vt)
	if out == nil {
		out = VectorTime{}
	}
	for p, t := range other {
		if t > out[p] {
			out[p] = t
		}
	}
	return out
}

func (vt VectorTime) Equal(other VectorTime) bool {
	return vt.leq(other) && other.leq(vt)
}

func (vt VectorTime) leq(other VectorTime) bool {
	for p, t := range vt {
		if t > other[p] {
			return false
		}
	}
	return true
}

// Compare places vt relative to other in the partial order.
func (vt VectorTime) Compare(other VectorTime) Ordering {
	le := vt.leq(other)
	ge := other.leq(vt)
	switch {
	case le && ge:
		return Equal
	case le:
		return Before
	case ge:
		return After
	}
	return Concurrent
}

// Before reports strict causal precedence.
func (vt VectorTime) Before(other VectorTime) bool {
	return vt.Compare(other) == Before
}

// Concurrent reports that neither value causally precedes the other.
func (vt VectorTime) Concurrent(other VectorTime) bool {
	return vt.Compare(other) == Concurrent
}

func (vt VectorTime) String() string {
	processes := maps.Keys(vt)
	sort.Strings(processes)
	parts := make([]string, 0, len(processes))
	for _, p := range processes {
		parts = append(parts, fmt.Sprintf("%s:%d", p, vt[p]))
	}
	return "VectorTime(" + strings.Join(parts, ",") + ")"
}
