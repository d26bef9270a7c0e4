// AngelaMos | 2026
// transaction.go

package mutation

import (
	"time"

	"github.com/carterperez-dev/templates/user-admin/internal/cache"
)

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusAborted Status = "aborted"
)

// Transaction records one optimistic mutation from its optimistic write to
// its settle. Before is what a rollback restores; After is the cache as the
// optimistic write left it.
type Transaction struct {
	ID        string
	Kind      Kind
	Targets   []string
	Keys      []cache.Key
	Before    cache.Snapshot
	After     cache.Snapshot
	Status    Status
	Err       error
	StartedAt time.Time
	SettledAt time.Time
}

func (t Transaction) Settled() bool {
	return t.Status != StatusPending
}

func (t Transaction) Duration() time.Duration {
	if t.SettledAt.IsZero() {
		return 0
	}
	return t.SettledAt.Sub(t.StartedAt)
}
