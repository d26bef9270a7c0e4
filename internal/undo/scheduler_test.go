// AngelaMos | 2026
// scheduler_test.go

package undo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	commits  atomic.Int32
	restores atomic.Int32
	err      error
}

func (r *recorder) prepare(context.Context) (Action, error) {
	return Action{
		Commit: func(context.Context) error {
			r.commits.Add(1)
			return r.err
		},
		Restore: func() {
			r.restores.Add(1)
		},
	}, nil
}

func waitDone(t *testing.T, tk *Ticket) {
	t.Helper()
	select {
	case <-tk.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("ticket %s never settled", tk.ID())
	}
}

func TestTicketCommitsAfterWindow(t *testing.T) {
	s := New(20*time.Millisecond, nil)
	defer s.Close()

	var r recorder
	tk, err := s.Schedule(context.Background(), []string{"a"}, r.prepare)
	require.NoError(t, err)
	assert.Equal(t, StatePending, tk.State())
	assert.True(t, s.Scheduled("a"))
	assert.Equal(t, 20*time.Millisecond, tk.ExpiresAt().Sub(tk.CreatedAt()))

	waitDone(t, tk)
	assert.Equal(t, StateCommitted, tk.State())
	assert.EqualValues(t, 1, r.commits.Load())
	assert.Zero(t, r.restores.Load())
	assert.False(t, s.Scheduled("a"))
}

func TestCancelWithinWindowRestores(t *testing.T) {
	s := New(time.Hour, nil)
	defer s.Close()

	var r recorder
	tk, err := s.Schedule(context.Background(), []string{"a", "b"}, r.prepare)
	require.NoError(t, err)

	got, err := s.Cancel(tk.ID())
	require.NoError(t, err)
	assert.Same(t, tk, got)

	waitDone(t, tk)
	assert.Equal(t, StateCancelled, tk.State())
	assert.EqualValues(t, 1, r.restores.Load())
	assert.Zero(t, r.commits.Load())
	assert.False(t, s.Scheduled("a"))
	assert.False(t, s.Scheduled("b"))
	assert.Empty(t, s.Pending())

	_, err = s.Cancel(tk.ID())
	assert.ErrorIs(t, err, ErrTicketSettled)
}

func TestCancelAfterWindowIsRejected(t *testing.T) {
	s := New(10*time.Millisecond, nil)
	defer s.Close()

	var r recorder
	tk, err := s.Schedule(context.Background(), []string{"a"}, r.prepare)
	require.NoError(t, err)
	waitDone(t, tk)

	assert.ErrorIs(t, tk.Cancel(), ErrTicketSettled)
	assert.Zero(t, r.restores.Load())
}

func TestFailedCommitIsRecorded(t *testing.T) {
	s := New(10*time.Millisecond, nil)
	defer s.Close()

	r := recorder{err: errors.New("upstream down")}
	tk, err := s.Schedule(context.Background(), []string{"a"}, r.prepare)
	require.NoError(t, err)
	waitDone(t, tk)

	assert.Equal(t, StateFailed, tk.State())
	assert.EqualError(t, tk.Err(), "upstream down")
	assert.Equal(t, "upstream down", tk.Info().Error)
}

func TestScheduleRejectsClaimedTargets(t *testing.T) {
	s := New(time.Hour, nil)
	defer s.Close()

	var r recorder
	_, err := s.Schedule(context.Background(), []string{"a", "b"}, r.prepare)
	require.NoError(t, err)

	var prepared atomic.Bool
	_, err = s.Schedule(context.Background(), []string{"c", "b"}, func(ctx context.Context) (Action, error) {
		prepared.Store(true)
		return r.prepare(ctx)
	})
	assert.ErrorIs(t, err, ErrAlreadyScheduled)
	assert.False(t, prepared.Load())
	assert.False(t, s.Scheduled("c"))
}

func TestPrepareErrorReleasesTargets(t *testing.T) {
	s := New(time.Hour, nil)
	defer s.Close()

	boom := errors.New("boom")
	_, err := s.Schedule(context.Background(), []string{"a"}, func(context.Context) (Action, error) {
		return Action{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Scheduled("a"))
	assert.Empty(t, s.Pending())
}

func TestGetUnknownTicket(t *testing.T) {
	s := New(time.Hour, nil)
	defer s.Close()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestPendingListsOldestFirst(t *testing.T) {
	s := New(time.Hour, nil)
	defer s.Close()

	var r recorder
	first, err := s.Schedule(context.Background(), []string{"a"}, r.prepare)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := s.Schedule(context.Background(), []string{"b"}, r.prepare)
	require.NoError(t, err)

	pending := s.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID(), pending[0].ID)
	assert.Equal(t, second.ID(), pending[1].ID)
}

func TestCloseRestoresPendingTickets(t *testing.T) {
	s := New(time.Hour, nil)

	var r recorder
	tk, err := s.Schedule(context.Background(), []string{"a"}, r.prepare)
	require.NoError(t, err)

	s.Close()
	assert.Equal(t, StateCancelled, tk.State())
	assert.EqualValues(t, 1, r.restores.Load())
	assert.Zero(t, r.commits.Load())

	_, err = s.Schedule(context.Background(), []string{"b"}, r.prepare)
	assert.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestCommitHasNoDeadlineByDefault(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		deadline bool
	}{
		{name: "default", deadline: false},
		{name: "bounded", opts: []Option{WithCommitTimeout(time.Minute)}, deadline: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(10*time.Millisecond, nil, tt.opts...)
			defer s.Close()

			var hasDeadline atomic.Bool
			tk, err := s.Schedule(context.Background(), []string{"a"},
				func(context.Context) (Action, error) {
					return Action{Commit: func(ctx context.Context) error {
						_, ok := ctx.Deadline()
						hasDeadline.Store(ok)
						return nil
					}}, nil
				})
			require.NoError(t, err)

			waitDone(t, tk)
			assert.Equal(t, StateCommitted, tk.State())
			assert.Equal(t, tt.deadline, hasDeadline.Load())
		})
	}
}
