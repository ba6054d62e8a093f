package event

import (
	"encoding/json"
	"sort"

	"golang.org/x/exp/maps"
)

// Destinations is a set of aggregate ids. The zero value is a valid empty
// set. Operations return copies; a Destinations value reachable from an
// Event must never be mutated.
type Destinations map[string]struct{}

func NewDestinations(ids ...string) Destinations {
	out := make(Destinations, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (d Destinations) Contains(id string) bool {
	_, ok := d[id]
	return ok
}

// Union returns a new set holding every id of d and other. Either side may
// be nil.
func (d Destinations) Union(other Destinations) Destinations {
	out := make(Destinations, len(d)+len(other))
	maps.Copy(out, d)
	maps.Copy(out, other)
	return out
}

func (d Destinations) Equal(other Destinations) bool {
	if len(d) != len(other) {
		return false
	}
	for id := range d {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in lexical order, the deterministic form used on
// the wire.
func (d Destinations) Sorted() []string {
	ids := maps.Keys(d)
	sort.Strings(ids)
	return ids
}

func (d Destinations) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Sorted())
}

func (d *Destinations) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*d = NewDestinations(ids...)
	return nil
}
