// AngelaMos | 2026
// scheduler.go

package undo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/user-admin/internal/metrics"
)

var (
	ErrTicketNotFound   = errors.New("undo ticket not found")
	ErrTicketSettled    = errors.New("undo ticket no longer pending")
	ErrAlreadyScheduled = errors.New("target already has a pending undo ticket")
	ErrSchedulerClosed  = errors.New("undo scheduler closed")
	errNoTargets        = errors.New("no targets")
)

const defaultRetention = time.Minute

// Prepare applies the optimistic side of a destructive action and returns
// the work to run when its window elapses.
type Prepare func(ctx context.Context) (Action, error)

// Scheduler defers destructive actions by a fixed window during which they
// can be cancelled.
type Scheduler struct {
	window        time.Duration
	commitTimeout time.Duration
	retention     time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu       sync.Mutex
	tickets  map[string]*Ticket
	reserved map[string]string
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

// WithCommitTimeout bounds the remote call run when a window elapses. By
// default it is unbounded and a hung call holds the ticket in committing.
func WithCommitTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.commitTimeout = d
	}
}

// WithRetention sets how long settled tickets stay queryable.
func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) {
		s.retention = d
	}
}

func New(window time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		window:    window,
		retention: defaultRetention,
		logger:    logger,
		now:       time.Now,
		tickets:   make(map[string]*Ticket),
		reserved:  make(map[string]string),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Schedule reserves ids, runs prepare and starts the undo window. While a
// ticket is pending no other ticket may claim any of its ids.
func (s *Scheduler) Schedule(ctx context.Context, ids []string, prepare Prepare) (*Ticket, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("schedule: %w", errNoTargets)
	}

	t := &Ticket{
		id:    uuid.NewString(),
		ids:   append([]string(nil), ids...),
		state: StatePending,
		done:  make(chan struct{}),
	}

	if err := s.reserve(t); err != nil {
		return nil, err
	}

	action, err := prepare(ctx)
	if err != nil {
		s.unreserve(t)
		return nil, fmt.Errorf("schedule: %w", err)
	}
	t.action = action

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.unreserve(t)
		if action.Restore != nil {
			action.Restore()
		}
		return nil, ErrSchedulerClosed
	}
	t.createdAt = s.now()
	t.expiresAt = t.createdAt.Add(s.window)
	t.onSettle = s.settled
	s.tickets[t.id] = t
	s.wg.Add(1)
	t.mu.Lock()
	t.timer = time.AfterFunc(s.window, func() { s.fire(t) })
	t.mu.Unlock()
	s.mu.Unlock()

	metrics.UndoTicketsTotal.WithLabelValues("scheduled").Inc()
	s.logger.Info("undo window opened",
		"ticket", t.id,
		"ids", t.ids,
		"window", s.window,
	)

	return t, nil
}

func (s *Scheduler) Get(id string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (s *Scheduler) Cancel(id string) (*Ticket, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := t.Cancel(); err != nil {
		return t, err
	}
	return t, nil
}

// Scheduled reports whether target is claimed by a ticket that has not
// settled yet.
func (s *Scheduler) Scheduled(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.reserved[target]
	return ok
}

// Pending lists unsettled tickets, oldest first.
func (s *Scheduler) Pending() []TicketInfo {
	s.mu.Lock()
	tickets := make([]*Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		tickets = append(tickets, t)
	}
	s.mu.Unlock()

	out := make([]TicketInfo, 0, len(tickets))
	for _, t := range tickets {
		info := t.Info()
		if !info.State.Settled() {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close cancels every pending ticket, restoring its prior state, and waits
// for commits already running. A closed scheduler rejects new tickets.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	tickets := make([]*Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		tickets = append(tickets, t)
	}
	s.mu.Unlock()

	for _, t := range tickets {
		_ = t.Cancel()
	}

	s.wg.Wait()
	s.cancel()
}

func (s *Scheduler) reserve(t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	for _, id := range t.ids {
		if _, ok := s.reserved[id]; ok {
			return fmt.Errorf("schedule %s: %w", id, ErrAlreadyScheduled)
		}
	}
	for _, id := range t.ids {
		s.reserved[id] = t.id
	}
	return nil
}

func (s *Scheduler) unreserve(t *Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.ids {
		if s.reserved[id] == t.id {
			delete(s.reserved, id)
		}
	}
}

func (s *Scheduler) fire(t *Ticket) {
	if !t.begin() {
		return
	}

	ctx, cancel := s.commitContext()
	defer cancel()

	var err error
	if t.action.Commit != nil {
		err = t.action.Commit(ctx)
	}

	state := t.settle(err)
	if err != nil {
		s.logger.Error("undo commit failed",
			"ticket", t.id,
			"ids", t.ids,
			"error", err,
		)
	}
	s.settled(t, state)
}

func (s *Scheduler) commitContext() (context.Context, context.CancelFunc) {
	if s.commitTimeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.commitTimeout)
}

func (s *Scheduler) settled(t *Ticket, state State) {
	defer s.wg.Done()
	s.unreserve(t)

	metrics.UndoTicketsTotal.WithLabelValues(string(state)).Inc()
	s.logger.Info("undo ticket settled",
		"ticket", t.id,
		"state", string(state),
	)

	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.tickets, t.id)
		s.mu.Unlock()
	})
}
