// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/user-admin/internal/cache"
	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/undo"
)

type Handler struct {
	cacheStats   func() cache.Stats
	invalidate   func() int
	pendingUndo  func() []undo.TicketInfo
	redisStats   func() *redis.PoolStats
	redisPing    func(ctx context.Context) error
	upstreamPing func(ctx context.Context) error
}

type HandlerConfig struct {
	CacheStats   func() cache.Stats
	Invalidate   func() int
	PendingUndo  func() []undo.TicketInfo
	RedisStats   func() *redis.PoolStats
	RedisPing    func(ctx context.Context) error
	UpstreamPing func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		cacheStats:   cfg.CacheStats,
		invalidate:   cfg.Invalidate,
		pendingUndo:  cfg.PendingUndo,
		redisStats:   cfg.RedisStats,
		redisPing:    cfg.RedisPing,
		upstreamPing: cfg.UpstreamPing,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/cache", h.GetCacheStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Get("/undo", h.GetPendingUndo)
		r.Post("/cache/invalidate", h.InvalidateCache)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	core.OK(w, SystemStatsResponse{
		Upstream: UpstreamStatus{
			Healthy: ping(ctx, h.upstreamPing),
		},
		Cache: h.getCacheStats(),
		Undo: UndoStatus{
			Pending: len(h.getPending()),
		},
		Redis: RedisStatus{
			Healthy: ping(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntimeStats(),
	})
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getCacheStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

func (h *Handler) GetPendingUndo(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getPending())
}

// InvalidateCache marks every cached user query stale and refetches the
// ones somebody is subscribed to.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	n := 0
	if h.invalidate != nil {
		n = h.invalidate()
	}
	core.OK(w, InvalidateResponse{Invalidated: n})
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func (h *Handler) getCacheStats() *cache.Stats {
	if h.cacheStats == nil {
		return nil
	}
	stats := h.cacheStats()
	return &stats
}

func (h *Handler) getPending() []undo.TicketInfo {
	if h.pendingUndo == nil {
		return []undo.TicketInfo{}
	}
	return h.pendingUndo()
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

type SystemStatsResponse struct {
	Upstream UpstreamStatus `json:"upstream"`
	Cache    *cache.Stats   `json:"cache,omitempty"`
	Undo     UndoStatus     `json:"undo"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type UpstreamStatus struct {
	Healthy bool `json:"healthy"`
}

type UndoStatus struct {
	Pending int `json:"pending"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type InvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
