// AngelaMos | 2026
// snapshot.go

package cache

import (
	"reflect"
)

// Snapshot is a point-in-time copy of the entries under a set of prefixes.
// It is a plain value; restoring it does not depend on any live state.
type Snapshot struct {
	prefixes []Key
	entries  map[string]Entry
}

func (s Snapshot) Prefixes() []Key {
	return append([]Key(nil), s.prefixes...)
}

func (s Snapshot) Lookup(key Key) (Entry, bool) {
	e, ok := s.entries[key.String()]
	return e, ok
}

func (s Snapshot) Len() int {
	return len(s.entries)
}

// Values returns the cached values by key string, ignoring freshness
// metadata.
func (s Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.entries))
	for k, e := range s.entries {
		if e.HasValue {
			out[k] = e.Value
		}
	}
	return out
}

// SameValues reports whether both snapshots hold the same keys with equal
// values.
func (s Snapshot) SameValues(other Snapshot) bool {
	return reflect.DeepEqual(s.Values(), other.Values())
}
