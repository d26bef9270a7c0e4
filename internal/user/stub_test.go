// AngelaMos | 2026
// stub_test.go

package user

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/carterperez-dev/templates/user-admin/internal/cache"
	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/mutation"
	"github.com/carterperez-dev/templates/user-admin/internal/undo"
)

// stubRepo is an in-memory user API.
type stubRepo struct {
	mu      sync.Mutex
	users   []User
	nextID  int
	deleted []string
	calls   map[string]int

	createErr error
	updateErr error
	deleteErr error
	// getFailures fails that many Get calls with a network error first.
	getFailures int

	// gate, when set, holds Create/Update/Delete until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newStubRepo(users ...User) *stubRepo {
	return &stubRepo{
		users:  slices.Clone(users),
		nextID: 100,
		calls:  make(map[string]int),
	}
}

func (r *stubRepo) hold() {
	r.gate = make(chan struct{})
	r.entered = make(chan struct{}, 1)
}

func (r *stubRepo) wait() {
	if r.gate == nil {
		return
	}
	r.entered <- struct{}{}
	<-r.gate
}

func (r *stubRepo) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *stubRepo) List(context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["list"]++
	return slices.Clone(r.users), nil
}

func (r *stubRepo) Get(_ context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["get"]++

	if r.getFailures > 0 {
		r.getFailures--
		return User{}, fmt.Errorf("get: %w", core.ErrNetwork)
	}
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("get: %w", core.ErrNotFound)
}

func (r *stubRepo) Create(_ context.Context, u User) (User, error) {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["create"]++

	if r.createErr != nil {
		return User{}, r.createErr
	}
	r.nextID++
	u.ID = strconv.Itoa(r.nextID)
	u.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r.users = append(r.users, u)
	return u, nil
}

func (r *stubRepo) Update(_ context.Context, id string, patch Patch) (User, error) {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["update"]++

	if r.updateErr != nil {
		return User{}, r.updateErr
	}
	for i, u := range r.users {
		if u.ID == id {
			r.users[i] = patch.Apply(u)
			return r.users[i], nil
		}
	}
	return User{}, fmt.Errorf("update: %w", core.ErrNotFound)
}

func (r *stubRepo) Delete(_ context.Context, id string) error {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["delete"]++

	if r.deleteErr != nil {
		return r.deleteErr
	}
	idx := slices.IndexFunc(r.users, func(u User) bool { return u.ID == id })
	if idx < 0 {
		return fmt.Errorf("delete: %w", core.ErrNotFound)
	}
	r.users = slices.Delete(r.users, idx, idx+1)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubRepo) Ping(context.Context) error {
	return nil
}

type fixture struct {
	svc   *Service
	repo  *stubRepo
	store *cache.Store
	undo  *undo.Scheduler
}

func newFixture(t *testing.T, window time.Duration, users ...User) *fixture {
	t.Helper()

	repo := newStubRepo(users...)
	store := cache.New()
	sched := undo.New(window, nil)
	t.Cleanup(func() {
		sched.Close()
		store.Close()
	})

	svc := NewService(
		repo,
		store,
		mutation.NewCoordinator(store, nil),
		sched,
		nil,
		WithRetryInterval(time.Millisecond),
	)
	return &fixture{svc: svc, repo: repo, store: store, undo: sched}
}

// cachedList reads the plain list straight from the cache without
// triggering a fetch.
func (f *fixture) cachedList(t *testing.T) []User {
	t.Helper()
	e, ok := f.svc.ListEntry()
	if !ok || !e.HasValue {
		t.Fatalf("list not cached")
	}
	return e.Value.([]User)
}

func userIDs(users []User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

var (
	alice = User{
		ID:          "1",
		Name:        "Alice",
		Email:       "alice@example.com",
		PhoneNumber: "+15550001",
		Role:        RoleAdmin,
		Active:      true,
		CreatedAt:   time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC),
	}
	bob = User{
		ID:          "2",
		Name:        "Bob",
		Email:       "bob@example.com",
		PhoneNumber: "+15550002",
		Role:        RoleUser,
		Active:      false,
		CreatedAt:   time.Date(2024, 3, 2, 0, 0, 1, 0, time.UTC),
	}
)

func ptr[T any](v T) *T {
	return &v
}
