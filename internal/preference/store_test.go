// AngelaMos | 2026
// store_test.go

package preference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	values map[string]string
	err    error
}

func newStubClient() *stubClient {
	return &stubClient{values: make(map[string]string)}
}

func (c *stubClient) Get(_ context.Context, key string) *redis.StringCmd {
	if c.err != nil {
		return redis.NewStringResult("", c.err)
	}
	v, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *stubClient) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if c.err != nil {
		return redis.NewStatusResult("", c.err)
	}
	c.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestThemeDefaultsToSystem(t *testing.T) {
	s := NewStore(newStubClient())

	theme, err := s.Theme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, theme)
}

func TestSetThemePersists(t *testing.T) {
	c := newStubClient()
	s := NewStore(c)

	require.NoError(t, s.SetTheme(context.Background(), ThemeDark))
	assert.Equal(t, "dark", c.values[ThemeKey])

	theme, err := s.Theme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	c := newStubClient()
	s := NewStore(c)

	err := s.SetTheme(context.Background(), Theme("sepia"))
	require.ErrorIs(t, err, ErrInvalidTheme)
	assert.Empty(t, c.values)
}

func TestUnknownStoredThemeFallsBack(t *testing.T) {
	c := newStubClient()
	c.values[ThemeKey] = "neon"

	theme, err := NewStore(c).Theme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, theme)
}

func TestThemeSurfacesRedisErrors(t *testing.T) {
	c := newStubClient()
	c.err = errors.New("connection refused")

	_, err := NewStore(c).Theme(context.Background())
	require.Error(t, err)
}

func TestThemeHandler(t *testing.T) {
	c := newStubClient()
	r := chi.NewRouter()
	NewHandler(NewStore(c)).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPut, "/preferences/theme", strings.NewReader(`{"theme":"light"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/preferences/theme", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"theme":"light"}}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/preferences/theme", strings.NewReader(`{"theme":"sepia"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
