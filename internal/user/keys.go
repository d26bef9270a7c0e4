// AngelaMos | 2026
// keys.go

package user

import (
	"github.com/carterperez-dev/templates/user-admin/internal/cache"
)

var (
	KeyAll     = cache.Key{"users"}
	KeyLists   = KeyAll.Append("list")
	KeyDetails = KeyAll.Append("detail")
)

// ListKey addresses a cached collection. The empty filter is the plain
// list; other filters live under it so invalidating KeyLists covers all.
func ListKey(filter string) cache.Key {
	if filter == "" {
		return KeyLists
	}
	return KeyLists.Append(filter)
}

func DetailKey(id string) cache.Key {
	return KeyDetails.Append(id)
}
