// AngelaMos | 2026
// ticket.go

package undo

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StatePending    State = "pending"
	StateCommitting State = "committing"
	StateCancelled  State = "cancelled"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

func (s State) Settled() bool {
	return s == StateCancelled || s == StateCommitted || s == StateFailed
}

// Action is the deferred work behind a ticket. Commit runs once the window
// elapses; Restore runs if the ticket is cancelled first.
type Action struct {
	Commit  func(ctx context.Context) error
	Restore func()
}

// Ticket is one scheduled destructive action that can still be undone.
type Ticket struct {
	id        string
	ids       []string
	createdAt time.Time
	expiresAt time.Time
	action    Action

	mu    sync.Mutex
	state State
	err   error
	timer *time.Timer
	done  chan struct{}

	onSettle func(*Ticket, State)
}

type TicketInfo struct {
	ID        string    `json:"id"`
	IDs       []string  `json:"ids"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Error     string    `json:"error,omitempty"`
}

func (t *Ticket) ID() string           { return t.id }
func (t *Ticket) CreatedAt() time.Time { return t.createdAt }
func (t *Ticket) ExpiresAt() time.Time { return t.expiresAt }

func (t *Ticket) IDs() []string {
	return append([]string(nil), t.ids...)
}

func (t *Ticket) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Ticket) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the ticket is cancelled, committed or failed.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

func (t *Ticket) Info() TicketInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := TicketInfo{
		ID:        t.id,
		IDs:       append([]string(nil), t.ids...),
		State:     t.state,
		CreatedAt: t.createdAt,
		ExpiresAt: t.expiresAt,
	}
	if t.err != nil {
		info.Error = t.err.Error()
	}
	return info
}

// Cancel stops the pending commit and restores the prior state. It fails
// with ErrTicketSettled once the window has elapsed.
func (t *Ticket) Cancel() error {
	t.mu.Lock()
	if t.state != StatePending {
		t.mu.Unlock()
		return ErrTicketSettled
	}
	t.state = StateCancelled
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	if t.action.Restore != nil {
		t.action.Restore()
	}
	close(t.done)

	if t.onSettle != nil {
		t.onSettle(t, StateCancelled)
	}
	return nil
}

// begin moves a pending ticket to committing. It reports false when the
// ticket was cancelled first.
func (t *Ticket) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePending {
		return false
	}
	t.state = StateCommitting
	return true
}

func (t *Ticket) settle(err error) State {
	t.mu.Lock()
	if err != nil {
		t.state = StateFailed
		t.err = err
	} else {
		t.state = StateCommitted
	}
	state := t.state
	t.mu.Unlock()

	close(t.done)
	return state
}
