// AngelaMos | 2026
// store.go

package preference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThemeKey is the storage key of the UI theme.
const ThemeKey = "THEME_USER_MANAGEMENT"

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

var ErrInvalidTheme = errors.New("theme must be light, dark or system")

// Client is the part of *redis.Client the store uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Store struct {
	client Client
}

func NewStore(client Client) *Store {
	return &Store{client: client}
}

// Theme returns the stored theme, or ThemeSystem when none or an unknown
// value is stored.
func (s *Store) Theme(ctx context.Context) (Theme, error) {
	val, err := s.client.Get(ctx, ThemeKey).Result()
	if errors.Is(err, redis.Nil) {
		return ThemeSystem, nil
	}
	if err != nil {
		return "", fmt.Errorf("get theme: %w", err)
	}

	t := Theme(val)
	if !t.Valid() {
		return ThemeSystem, nil
	}
	return t, nil
}

func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("set theme %q: %w", t, ErrInvalidTheme)
	}

	if err := s.client.Set(ctx, ThemeKey, string(t), 0).Err(); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}
