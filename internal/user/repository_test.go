// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/user-admin/internal/core"
)

func newAPI(t *testing.T, r http.Handler) *APIClient {
	t.Helper()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := NewAPIClient(srv.URL+"/api/v1/", srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func TestAPIClientList(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/user", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":"1","name":"Alice","email":"alice@example.com","role":"Admin","active":true,"createdAt":"2024-03-01T23:59:59.000Z"},
			{"id":"2","name":"Bob","email":"bob@example.com","role":"User","active":false,"createdAt":"2024-03-02T00:00:01.000Z"}
		]`)
	})

	users, err := newAPI(t, r).List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, RoleAdmin, users[0].Role)
	assert.Equal(t, alice.CreatedAt, users[0].CreatedAt.UTC())
	assert.False(t, users[1].Active)
}

func TestAPIClientGetNotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/user/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `"Not found"`, http.StatusNotFound)
	})

	_, err := newAPI(t, r).Get(context.Background(), "9")
	require.ErrorIs(t, err, core.ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "/user/9", apiErr.Path)
}

func TestAPIClientServerErrorIsNetworkError(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/api/v1/user/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := newAPI(t, r).Delete(context.Background(), "1")
	require.ErrorIs(t, err, core.ErrNetwork)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestAPIClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := NewAPIClient(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	srv.Close()

	_, err = c.List(context.Background())
	require.ErrorIs(t, err, core.ErrNetwork)
}

func TestAPIClientCreateOmitsIDAndDecodesServerRecord(t *testing.T) {
	var got map[string]any
	r := chi.NewRouter()
	r.Post("/api/v1/user", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"55","name":"Carol","role":"Guest","active":true,"createdAt":"2024-03-01T10:00:00Z"}`)
	})

	created, err := newAPI(t, r).Create(context.Background(), User{
		ID:     "temp-1",
		Name:   "Carol",
		Role:   RoleGuest,
		Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "55", created.ID)
	assert.NotContains(t, got, "id")
	assert.NotContains(t, got, "createdAt")
	assert.Equal(t, "Carol", got["name"])
}

func TestAPIClientUpdateSendsOnlyPatchedFields(t *testing.T) {
	var got map[string]any
	r := chi.NewRouter()
	r.Put("/api/v1/user/{id}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "7", chi.URLParam(req, "id"))
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"7","name":"Dan","active":false}`)
	})

	u, err := newAPI(t, r).Update(context.Background(), "7", Patch{Active: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Dan", u.Name)
	assert.Equal(t, map[string]any{"active": false}, got)
}

func TestAPIClientPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/user", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "1", req.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `[]`)
	})

	require.NoError(t, newAPI(t, r).Ping(context.Background()))
}

func TestNewAPIClientRejectsRelativeURL(t *testing.T) {
	_, err := NewAPIClient("/api/v1", nil, nil)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}
