// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/table"
	"github.com/carterperez-dev/templates/user-admin/internal/undo"
)

func validForm() Form {
	form := DefaultForm()
	form.Name = "Carol"
	form.Email = "carol@example.com"
	form.PhoneNumber = "+15550003"
	form.Role = RoleGuest
	return form
}

func TestListIsServedFromCache(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()

	first, err := f.svc.List(ctx)
	require.NoError(t, err)
	second, err := f.svc.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, userIDs(first))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.repo.count("list"))
}

func TestDetailRetriesNetworkErrors(t *testing.T) {
	f := newFixture(t, time.Hour, alice)
	f.repo.getFailures = 2

	u, err := f.svc.Detail(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, alice, u)
	assert.Equal(t, 3, f.repo.count("get"))
}

func TestDetailDoesNotRetryNotFound(t *testing.T) {
	f := newFixture(t, time.Hour, alice)

	_, err := f.svc.Detail(context.Background(), "404")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 1, f.repo.count("get"))
}

func TestDetailRequiresID(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.svc.Detail(context.Background(), "")
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Zero(t, f.repo.count("get"))
}

func TestCreateSubstitutesTemporaryID(t *testing.T) {
	f := newFixture(t, time.Hour, alice)
	ctx := context.Background()
	_, err := f.svc.List(ctx)
	require.NoError(t, err)

	f.repo.hold()
	done := make(chan User, 1)
	go func() {
		u, err := f.svc.Create(ctx, validForm())
		assert.NoError(t, err)
		done <- u
	}()

	<-f.repo.entered
	inflight := f.cachedList(t)
	require.Len(t, inflight, 2)
	assert.True(t, inflight[1].IsTemporary())
	assert.Equal(t, "Carol", inflight[1].Name)

	close(f.repo.gate)
	created := <-done
	assert.Equal(t, "101", created.ID)

	users := f.cachedList(t)
	assert.Equal(t, []string{"1", "101"}, userIDs(users))
	for _, u := range users {
		assert.False(t, strings.HasPrefix(u.ID, TempIDPrefix))
	}
	assert.Equal(t, "carol@example.com", users[1].Email)
	assert.True(t, users[1].Active)

	e, ok := f.store.Read(DetailKey("101"))
	require.True(t, ok)
	assert.Equal(t, created, e.Value)
}

func TestCreateDropsDuplicateOfConfirmedRecord(t *testing.T) {
	confirmed := User{ID: "101", Name: "Carol"}
	users := []User{alice, confirmed, {ID: "temp-x", Name: "Carol"}}

	got := substitute(users, "temp-x", confirmed)
	assert.Equal(t, []string{"1", "101"}, userIDs(got))
}

func TestCreateValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t, time.Hour, alice)
	ctx := context.Background()
	_, err := f.svc.List(ctx)
	require.NoError(t, err)

	form := validForm()
	form.Email = "not-an-email"
	form.Bio = strings.Repeat("x", 501)

	_, err = f.svc.Create(ctx, form)
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Email must be a valid email")
	assert.Contains(t, err.Error(), "Bio must be 500 characters or less")
	assert.Zero(t, f.repo.count("create"))
	assert.Equal(t, []User{alice}, f.cachedList(t))
}

func TestCreateFailureRestoresList(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()
	before, err := f.svc.List(ctx)
	require.NoError(t, err)

	f.repo.createErr = errors.New("upstream: " + core.ErrNetwork.Error())

	_, err = f.svc.Create(ctx, validForm())
	require.Error(t, err)
	assert.Equal(t, before, f.cachedList(t))
}

func TestCreateWithoutCachedListLeavesCacheEmpty(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.svc.Create(context.Background(), validForm())
	require.NoError(t, err)

	_, ok := f.svc.ListEntry()
	assert.False(t, ok)
}

func TestUpdatePatchesListAndDetail(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()
	_, err := f.svc.List(ctx)
	require.NoError(t, err)
	_, err = f.svc.Detail(ctx, "2")
	require.NoError(t, err)

	f.repo.hold()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Update(ctx, "2", Patch{Active: ptr(true)})
		done <- err
	}()

	<-f.repo.entered
	assert.True(t, f.cachedList(t)[1].Active)
	e, _ := f.store.Read(DetailKey("2"))
	assert.True(t, e.Value.(User).Active)

	close(f.repo.gate)
	require.NoError(t, <-done)

	list := f.cachedList(t)
	assert.True(t, list[1].Active)
	assert.Equal(t, "Bob", list[1].Name)
	assert.Equal(t, alice, list[0])
}

func TestUpdateFailureRestoresListAndDetail(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()
	beforeList, err := f.svc.List(ctx)
	require.NoError(t, err)
	beforeDetail, err := f.svc.Detail(ctx, "1")
	require.NoError(t, err)

	f.repo.updateErr = core.ErrNetwork

	_, err = f.svc.Update(ctx, "1", Patch{Name: ptr("Alicia"), Role: ptr(RoleGuest)})
	require.ErrorIs(t, err, core.ErrNetwork)

	assert.Equal(t, beforeList, f.cachedList(t))
	e, _ := f.store.Read(DetailKey("1"))
	assert.Equal(t, beforeDetail, e.Value)
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	f := newFixture(t, time.Hour, alice)

	_, err := f.svc.Update(context.Background(), "1", Patch{Name: ptr("")})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.Update(context.Background(), "1", Patch{Role: ptr(Role("Root"))})
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Zero(t, f.repo.count("update"))
}

func TestUpdateRejectsTemporaryID(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.svc.Update(context.Background(), "temp-abc", Patch{Name: ptr("x")})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestDeleteRemovesImmediately(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()
	_, err := f.svc.List(ctx)
	require.NoError(t, err)
	_, err = f.svc.Detail(ctx, "1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "1", "404"))

	assert.Equal(t, []string{"2"}, userIDs(f.cachedList(t)))
	assert.Equal(t, []string{"1"}, f.repo.deleted)
	_, ok := f.store.Read(DetailKey("1"))
	assert.False(t, ok)
}

func TestDeleteFailureRestoresList(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()
	before, err := f.svc.List(ctx)
	require.NoError(t, err)

	f.repo.deleteErr = core.ErrNetwork

	err = f.svc.Delete(ctx, "1", "2")
	require.ErrorIs(t, err, core.ErrNetwork)
	assert.Equal(t, before, f.cachedList(t))
}

func TestRequestDeleteCommitsAfterWindow(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond, alice, bob)
	ctx := context.Background()
	_, err := f.svc.List(ctx)
	require.NoError(t, err)

	ticket, err := f.svc.RequestDelete(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, userIDs(f.cachedList(t)))
	assert.Zero(t, f.repo.count("delete"))

	select {
	case <-ticket.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("undo window never closed")
	}

	assert.Equal(t, undo.StateCommitted, ticket.State())
	assert.Equal(t, []string{"1"}, f.repo.deleted)
	assert.Equal(t, []string{"2"}, userIDs(f.cachedList(t)))
}

func TestRequestDeleteRejectsOverlap(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()

	_, err := f.svc.RequestDelete(ctx, "1")
	require.NoError(t, err)

	_, err = f.svc.RequestDelete(ctx, "2", "1")
	require.ErrorIs(t, err, core.ErrConflict)

	_, err = f.svc.Update(ctx, "1", Patch{Name: ptr("x")})
	require.ErrorIs(t, err, core.ErrConflict)

	err = f.svc.Delete(ctx, "1")
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestCancelUnknownTicket(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.svc.CancelDelete("missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

// Filter to active users, delete Alice through the undo flow, cancel inside
// the window: the list is back to {Alice, Bob} and nothing is selected.
func TestUndoCancelRestoresFilteredList(t *testing.T) {
	f := newFixture(t, time.Hour, alice, bob)
	ctx := context.Background()
	tbl := NewTable(time.UTC)

	before, err := f.svc.List(ctx)
	require.NoError(t, err)

	state := table.NewState().SetFilter(ColumnActive, []bool{true})
	view := tbl.Compute(before, state)
	require.Equal(t, []string{"1"}, userIDs(view.Rows))

	state = state.ToggleRow("1")
	ids := tbl.SelectedIDs(before, state)
	require.Equal(t, []string{"1"}, ids)

	ticket, err := f.svc.RequestDelete(ctx, ids...)
	require.NoError(t, err)
	state = state.Deselect(ids...)

	users, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tbl.Compute(users, state).Rows)

	_, err = f.svc.CancelDelete(ticket.ID())
	require.NoError(t, err)
	assert.Equal(t, undo.StateCancelled, ticket.State())

	users, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, users)

	view = tbl.Compute(users, state)
	assert.Equal(t, []string{"1"}, userIDs(view.Rows))
	assert.Empty(t, view.Selected)
	assert.Equal(t, []string{"1", "2"}, userIDs(tbl.Compute(users, state.ClearFilters()).Rows))
	assert.Zero(t, f.repo.count("delete"))

	_, err = f.svc.CancelDelete(ticket.ID())
	require.ErrorIs(t, err, core.ErrConflict)
}
