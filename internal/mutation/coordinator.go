// AngelaMos | 2026
// coordinator.go

package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/user-admin/internal/cache"
	"github.com/carterperez-dev/templates/user-admin/internal/metrics"
)

var ErrSettled = errors.New("mutation already settled")

// Mutation describes one optimistic write against the cache and the remote
// call that confirms it.
type Mutation struct {
	Kind Kind
	// Targets are the entity ids the mutation touches. Mutations sharing a
	// target run one at a time.
	Targets []string
	// Keys are the cache prefixes that are suspended, snapshotted and
	// restored on failure.
	Keys []cache.Key
	// Invalidate lists the prefixes marked stale on settle. Defaults to Keys.
	Invalidate []cache.Key

	Optimistic func(store *cache.Store)
	Commit     func(ctx context.Context) (any, error)
	Reconcile  func(store *cache.Store, result any)
}

type Coordinator struct {
	store  *cache.Store
	locks  *keyLocks
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(store *cache.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		store:  store,
		locks:  newKeyLocks(),
		logger: logger,
		now:    time.Now,
	}
}

// Run applies m optimistically, issues its remote call and settles it.
func (c *Coordinator) Run(ctx context.Context, m Mutation) (Transaction, any, error) {
	p, err := c.Begin(ctx, m)
	if err != nil {
		return Transaction{
			Kind:    m.Kind,
			Targets: m.Targets,
			Status:  StatusError,
			Err:     err,
		}, nil, err
	}
	return p.Commit(ctx)
}

// Begin waits for any in-flight mutation on the same targets, then suspends
// refetches of m.Keys, snapshots them and applies the optimistic write. The
// caller owns the returned Pending and must Commit or Abort it.
func (c *Coordinator) Begin(ctx context.Context, m Mutation) (*Pending, error) {
	if m.Commit == nil {
		return nil, fmt.Errorf("begin %s: missing commit", m.Kind)
	}

	unlock, err := c.locks.acquire(ctx, m.Targets)
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", m.Kind, err)
	}

	release := c.store.Suspend(m.Keys...)

	tx := Transaction{
		ID:        uuid.NewString(),
		Kind:      m.Kind,
		Targets:   append([]string(nil), m.Targets...),
		Keys:      append([]cache.Key(nil), m.Keys...),
		Status:    StatusPending,
		StartedAt: c.now(),
	}

	tx.Before = c.store.Snapshot(m.Keys...)
	if m.Optimistic != nil {
		m.Optimistic(c.store)
	}
	tx.After = c.store.Snapshot(m.Keys...)

	return &Pending{
		c:       c,
		m:       m,
		tx:      tx,
		release: release,
		unlock:  unlock,
	}, nil
}

// InFlight reports whether a mutation currently holds id.
func (c *Coordinator) InFlight(id string) bool {
	return c.locks.busy(id)
}

// Pending is a mutation whose optimistic write is applied and whose remote
// call has not been settled.
type Pending struct {
	c       *Coordinator
	m       Mutation
	tx      Transaction
	release func()
	unlock  func()

	mu      sync.Mutex
	settled bool
}

func (p *Pending) Transaction() Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx
}

// Commit issues the remote call. On success the result is reconciled into
// the cache; on failure the cache is restored to the Before snapshot. Either
// way the affected keys are invalidated and the suspension is released.
func (p *Pending) Commit(ctx context.Context) (Transaction, any, error) {
	if err := p.claim(); err != nil {
		return p.Transaction(), nil, err
	}

	result, err := p.m.Commit(ctx)

	store := p.c.store
	outcome := StatusSuccess
	if err != nil {
		store.Restore(p.tx.Before)
		outcome = StatusError
		metrics.RollbacksTotal.WithLabelValues(string(p.m.Kind)).Inc()
	} else if p.m.Reconcile != nil {
		p.m.Reconcile(store, result)
	}

	store.Invalidate(p.invalidateKeys()...)

	tx := p.finish(outcome, err)
	if err != nil {
		return tx, nil, err
	}
	return tx, result, nil
}

// Abort restores the Before snapshot without issuing the remote call. If
// something else wrote to the keys since the optimistic write, they are
// also invalidated so the restore does not hide that write for long.
func (p *Pending) Abort() (Transaction, error) {
	if err := p.claim(); err != nil {
		return p.Transaction(), err
	}

	store := p.c.store
	current := store.Snapshot(p.m.Keys...)
	store.Restore(p.tx.Before)
	if !current.SameValues(p.tx.After) {
		store.Invalidate(p.invalidateKeys()...)
	}
	return p.finish(StatusAborted, nil), nil
}

func (p *Pending) invalidateKeys() []cache.Key {
	if p.m.Invalidate != nil {
		return p.m.Invalidate
	}
	return p.m.Keys
}

func (p *Pending) claim() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settled {
		return ErrSettled
	}
	p.settled = true
	return nil
}

func (p *Pending) finish(status Status, err error) Transaction {
	p.release()
	p.unlock()

	p.mu.Lock()
	p.tx.Status = status
	p.tx.Err = err
	p.tx.SettledAt = p.c.now()
	tx := p.tx
	p.mu.Unlock()

	kind := string(tx.Kind)
	metrics.MutationsTotal.WithLabelValues(kind, string(status)).Inc()
	metrics.MutationDuration.WithLabelValues(kind).Observe(tx.Duration().Seconds())

	if err != nil {
		p.c.logger.Warn("mutation rolled back",
			"tx", tx.ID,
			"kind", kind,
			"targets", tx.Targets,
			"error", err,
		)
	} else {
		p.c.logger.Debug("mutation settled",
			"tx", tx.ID,
			"kind", kind,
			"targets", tx.Targets,
			"status", string(status),
			"duration", tx.Duration(),
		)
	}

	return tx
}
