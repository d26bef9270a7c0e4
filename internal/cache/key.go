// AngelaMos | 2026
// key.go

package cache

import (
	"strings"
)

// Key addresses a cache entry as a path of segments. Prefix matching is
// segment-wise, so users/detail/1 never matches users/detail/10.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

func (k Key) Append(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	return append(out, segments...)
}

func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}
