// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/metrics"
)

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	Logger     *slog.Logger
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	OnLimited  func(http.ResponseWriter, *http.Request, *redis_rate.Result)
}

type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		config:   cfg,
	}
}

// Close stops the local fallback's eviction loop.
func (rl *RateLimiter) Close() {
	rl.fallback.close()
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				rl.config.Logger.Warn("rate limiter error, failing open",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.NewAppError(
				http.StatusServiceUnavailable,
				"RATE_LIMITER_UNAVAILABLE",
				"rate limiter unavailable",
				err,
			))
			return
		}

		setRateLimitHeaders(w, res, rl.config.Limit)

		if res.Allowed == 0 {
			if rl.config.OnLimited != nil {
				rl.config.OnLimited(w, r, res)
				return
			}
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	backend := "redis"
	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err != nil {
		backend = "local"
		res, err = rl.fallback.allow(key, rl.config.Limit)
		if err != nil {
			return nil, err
		}
	}

	result := "allowed"
	if res.Allowed == 0 {
		result = "limited"
	}
	metrics.RateLimitDecisionsTotal.WithLabelValues(backend, result).Inc()
	return res, nil
}

// KeyByIP keys on the client address, trusting the last X-Forwarded-For hop.
func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

// KeyByIPAndEndpoint gives every route its own budget, with id segments
// collapsed so /users/1 and /users/2 share one bucket.
func KeyByIPAndEndpoint(r *http.Request) string {
	return fmt.Sprintf(
		"%s:%s:%s",
		KeyByIP(r),
		r.Method,
		normalizeEndpoint(r.URL.Path),
	)
}

// BypassPaths skips limiting for probes and scrapes.
func BypassPaths(paths ...string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return slices.Contains(paths, r.URL.Path)
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	normalized := make([]string, 0, len(parts))

	for _, part := range parts {
		if isUUID(part) || isNumeric(part) {
			normalized = append(normalized, "{id}")
		} else {
			normalized = append(normalized, part)
		}
	}

	return "/" + strings.Join(normalized, "/")
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	return s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-'
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))

	windowSecs := int(limit.Period.Seconds())
	h.Set("RateLimit-Policy", fmt.Sprintf(`%d;w=%d`, limit.Rate, windowSecs))
	h.Set(
		"RateLimit",
		fmt.Sprintf(`%d;t=%d`, res.Remaining, int(res.ResetAfter.Seconds())),
	)
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.NewAppError(
		http.StatusTooManyRequests,
		"RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retryAfter),
		nil,
	))
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

// localLimiter is the in-process token bucket used while redis is
// unreachable. Buckets idle for entryTTL are dropped.
type localLimiter struct {
	limiters sync.Map
	stop     chan struct{}
	once     sync.Once
}

const (
	cleanupInterval = 5 * time.Minute
	entryTTL        = 10 * time.Minute
)

func newLocalLimiter() *localLimiter {
	l := &localLimiter{stop: make(chan struct{})}
	go l.cleanup()
	return l
}

func (l *localLimiter) close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *localLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evict(now.Add(-entryTTL).Unix())
		}
	}
}

func (l *localLimiter) evict(cutoff int64) {
	l.limiters.Range(func(key, value any) bool {
		if entry, ok := value.(*limiterEntry); ok && entry.lastAccess.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

func (l *localLimiter) bucket(key string, limit redis_rate.Limit) (*limiterEntry, error) {
	if v, ok := l.limiters.Load(key); ok {
		if entry, ok := v.(*limiterEntry); ok {
			return entry, nil
		}
		return nil, errors.New("invalid limiter entry type")
	}

	perSec := float64(limit.Rate) / limit.Period.Seconds()
	fresh := &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
	v, _ := l.limiters.LoadOrStore(key, fresh)
	entry, ok := v.(*limiterEntry)
	if !ok {
		return nil, errors.New("invalid limiter entry type")
	}
	return entry, nil
}

// allow answers in redis_rate's shape so both backends share the header
// and rejection code.
func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	entry, err := l.bucket(key, limit)
	if err != nil {
		return nil, err
	}
	entry.lastAccess.Store(time.Now().Unix())

	interval := time.Duration(float64(limit.Period) / float64(limit.Rate))
	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(entry.limiter.Tokens())-1, 0),
		RetryAfter: -1,
		ResetAfter: interval,
	}

	if entry.limiter.Allow() {
		res.Allowed = 1
	} else {
		res.Remaining = 0
		res.RetryAfter = interval
	}
	return res, nil
}

func Per(rate, burst int, period time.Duration) redis_rate.Limit {
	if period <= 0 {
		period = time.Minute
	}
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: period,
	}
}
