// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/templates/user-admin/internal/cache"
	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/mutation"
	"github.com/carterperez-dev/templates/user-admin/internal/undo"
)

const deleteConcurrency = 4

// Service is the cache-backed user collection. Reads go through the cache;
// writes go through the mutation coordinator so every change is applied
// optimistically and rolled back on failure.
type Service struct {
	repo      Repository
	store     *cache.Store
	coord     *mutation.Coordinator
	undo      *undo.Scheduler
	validator *validator.Validate
	logger    *slog.Logger

	detailRetries int
	retryInterval time.Duration
}

type Option func(*Service)

// WithDetailRetries sets how many times a failed detail fetch is retried.
// NotFound is never retried.
func WithDetailRetries(n int) Option {
	return func(s *Service) {
		s.detailRetries = n
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(s *Service) {
		s.retryInterval = d
	}
}

func NewService(
	repo Repository,
	store *cache.Store,
	coord *mutation.Coordinator,
	scheduler *undo.Scheduler,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		repo:          repo,
		store:         store,
		coord:         coord,
		undo:          scheduler,
		validator:     NewValidator(),
		logger:        logger,
		detailRetries: 2,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	v, err := s.store.Fetch(ctx, ListKey(""), func(ctx context.Context) (any, error) {
		return s.repo.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return v.([]User), nil
}

// ListEntry exposes the cached list with its status for callers that render
// loading and error states.
func (s *Service) ListEntry() (cache.Entry, bool) {
	return s.store.Read(ListKey(""))
}

// Watch subscribes fn to changes of the plain list. While at least one
// watcher is registered, invalidations refetch the list in the background.
func (s *Service) Watch(fn cache.Listener) func() {
	return s.store.Subscribe(ListKey(""), fn)
}

func (s *Service) Detail(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, fmt.Errorf("get user: %w", core.ErrInvalidInput)
	}

	v, err := s.store.Fetch(ctx, DetailKey(id), func(ctx context.Context) (any, error) {
		return s.fetchDetail(ctx, id)
	})
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return v.(User), nil
}

func (s *Service) fetchDetail(ctx context.Context, id string) (User, error) {
	var u User
	op := func() error {
		var err error
		u, err = s.repo.Get(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(
		backoff.WithMaxRetries(eb, uint64(max(s.detailRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return User{}, err
	}
	return u, nil
}

// Create validates form, appends a placeholder with a temporary id to every
// cached list, and swaps it for the server record once the API confirms.
func (s *Service) Create(ctx context.Context, form Form) (User, error) {
	if err := s.validator.Struct(form); err != nil {
		return User{}, fmt.Errorf(
			"create user: %w",
			core.ValidationError(core.FormatValidationError(err)),
		)
	}

	draft := form.User()
	tempID := TempIDPrefix + uuid.NewString()
	placeholder := draft
	placeholder.ID = tempID

	_, result, err := s.coord.Run(ctx, mutation.Mutation{
		Kind:    mutation.KindCreate,
		Targets: []string{tempID},
		Keys:    []cache.Key{KeyLists},
		Optimistic: func(st *cache.Store) {
			updateLists(st, func(users []User) []User {
				next := make([]User, 0, len(users)+1)
				next = append(next, users...)
				return append(next, placeholder)
			})
		},
		Commit: func(ctx context.Context) (any, error) {
			return s.repo.Create(ctx, draft)
		},
		Reconcile: func(st *cache.Store, result any) {
			created := result.(User)
			updateLists(st, func(users []User) []User {
				return substitute(users, tempID, created)
			})
			st.Write(DetailKey(created.ID), created)
		},
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return result.(User), nil
}

// Update merges patch into the cached list and detail entries, then sends
// it to the API.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (User, error) {
	if err := s.writable(id); err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	if err := s.validator.Struct(patch); err != nil {
		return User{}, fmt.Errorf(
			"update user: %w",
			core.ValidationError(core.FormatValidationError(err)),
		)
	}

	detail := DetailKey(id)

	_, result, err := s.coord.Run(ctx, mutation.Mutation{
		Kind:    mutation.KindUpdate,
		Targets: []string{id},
		Keys:    []cache.Key{KeyLists, detail},
		Optimistic: func(st *cache.Store) {
			updateLists(st, func(users []User) []User {
				return replace(users, id, patch.Apply)
			})
			st.Update(detail, func(old any, ok bool) (any, bool) {
				u, isUser := old.(User)
				if !ok || !isUser {
					return nil, false
				}
				return patch.Apply(u), true
			})
		},
		Commit: func(ctx context.Context) (any, error) {
			return s.repo.Update(ctx, id, patch)
		},
		Reconcile: func(st *cache.Store, result any) {
			updated := result.(User)
			updateLists(st, func(users []User) []User {
				return replace(users, id, func(User) User { return updated })
			})
			st.Write(detail, updated)
		},
	})
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return result.(User), nil
}

// Delete removes ids immediately, without an undo window.
func (s *Service) Delete(ctx context.Context, ids ...string) error {
	ids, err := s.deletable(ids)
	if err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	for _, id := range ids {
		if s.undo.Scheduled(id) {
			return fmt.Errorf("delete users: %w: user %s has a pending delete", core.ErrConflict, id)
		}
	}

	if _, _, err := s.coord.Run(ctx, s.deleteMutation(ids)); err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	return nil
}

// RequestDelete removes ids from the cached lists now and deletes them on
// the API once the undo window elapses, unless the ticket is cancelled
// first.
func (s *Service) RequestDelete(ctx context.Context, ids ...string) (*undo.Ticket, error) {
	ids, err := s.deletable(ids)
	if err != nil {
		return nil, fmt.Errorf("request delete: %w", err)
	}

	ticket, err := s.undo.Schedule(ctx, ids, func(ctx context.Context) (undo.Action, error) {
		pending, err := s.coord.Begin(ctx, s.deleteMutation(ids))
		if err != nil {
			return undo.Action{}, err
		}

		return undo.Action{
			Commit: func(ctx context.Context) error {
				_, _, err := pending.Commit(ctx)
				return err
			},
			Restore: func() {
				if _, err := pending.Abort(); err != nil {
					s.logger.Warn("undo restore skipped", "ids", ids, "error", err)
				}
			},
		}, nil
	})
	if errors.Is(err, undo.ErrAlreadyScheduled) {
		return nil, fmt.Errorf("request delete: %w: %w", core.ErrConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("request delete: %w", err)
	}
	return ticket, nil
}

func (s *Service) CancelDelete(ticketID string) (*undo.Ticket, error) {
	t, err := s.undo.Cancel(ticketID)
	if err != nil {
		return t, fmt.Errorf("cancel delete: %w", undoError(err))
	}
	return t, nil
}

func (s *Service) Ticket(ticketID string) (*undo.Ticket, error) {
	t, err := s.undo.Get(ticketID)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", undoError(err))
	}
	return t, nil
}

func (s *Service) deleteMutation(ids []string) mutation.Mutation {
	return mutation.Mutation{
		Kind:    mutation.KindDelete,
		Targets: ids,
		Keys:    []cache.Key{KeyLists},
		Optimistic: func(st *cache.Store) {
			updateLists(st, func(users []User) []User {
				return slices.DeleteFunc(slices.Clone(users), func(u User) bool {
					return slices.Contains(ids, u.ID)
				})
			})
		},
		Commit: func(ctx context.Context) (any, error) {
			return nil, s.deleteRemote(ctx, ids)
		},
		Reconcile: func(st *cache.Store, _ any) {
			for _, id := range ids {
				st.Remove(DetailKey(id))
			}
		},
	}
}

// deleteRemote deletes ids concurrently. An id the API no longer knows
// counts as deleted.
func (s *Service) deleteRemote(ctx context.Context, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			err := s.repo.Delete(ctx, id)
			if err != nil && !errors.Is(err, core.ErrNotFound) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) writable(id string) error {
	if id == "" {
		return core.ErrInvalidInput
	}
	if strings.HasPrefix(id, TempIDPrefix) {
		return fmt.Errorf("%w: user %s is still being created", core.ErrConflict, id)
	}
	if s.undo.Scheduled(id) {
		return fmt.Errorf("%w: user %s has a pending delete", core.ErrConflict, id)
	}
	return nil
}

func (s *Service) deletable(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		if strings.HasPrefix(id, TempIDPrefix) {
			return nil, fmt.Errorf("%w: user %s is still being created", core.ErrConflict, id)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no ids: %w", core.ErrInvalidInput)
	}
	return out, nil
}

func undoError(err error) error {
	switch {
	case errors.Is(err, undo.ErrTicketNotFound):
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	case errors.Is(err, undo.ErrTicketSettled):
		return fmt.Errorf("%w: %w", core.ErrConflict, err)
	}
	return err
}

// updateLists rewrites every cached list that holds a value. Lists that were
// never fetched stay absent.
func updateLists(st *cache.Store, fn func([]User) []User) {
	for _, key := range st.Keys(KeyLists) {
		st.Update(key, func(old any, ok bool) (any, bool) {
			users, isUsers := old.([]User)
			if !ok || !isUsers {
				return nil, false
			}
			return fn(users), true
		})
	}
}

func replace(users []User, id string, fn func(User) User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		if u.ID == id {
			u = fn(u)
		}
		out[i] = u
	}
	return out
}

// substitute swaps the placeholder for the confirmed record, dropping any
// copy of the confirmed record that a refetch may already have added.
func substitute(users []User, tempID string, created User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		switch u.ID {
		case tempID:
			out = append(out, created)
		case created.ID:
		default:
			out = append(out, u)
		}
	}
	return out
}
