// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/book"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/session"
)

type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID string) error
}

type BookStats interface {
	Stats(ctx context.Context) (*book.Stats, error)
}

type AccessCounter interface {
	Counts(ctx context.Context) (access.Counts, error)
}

type Handler struct {
	dbStats       func() sql.DBStats
	redisStats    func() *redis.PoolStats
	redisPing     func(ctx context.Context) error
	dbPing        func(ctx context.Context) error
	storagePing   func(ctx context.Context) error
	sessionStats  func() session.Stats
	eventsDropped func() int64
	books         BookStats
	grants        AccessCounter
	sessions      SessionRevoker
}

type HandlerConfig struct {
	DBStats       func() sql.DBStats
	RedisStats    func() *redis.PoolStats
	RedisPing     func(ctx context.Context) error
	DBPing        func(ctx context.Context) error
	StoragePing   func(ctx context.Context) error
	SessionStats  func() session.Stats
	EventsDropped func() int64
	Books         BookStats
	Grants        AccessCounter
	Sessions      SessionRevoker
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:       cfg.DBStats,
		redisStats:    cfg.RedisStats,
		redisPing:     cfg.RedisPing,
		dbPing:        cfg.DBPing,
		storagePing:   cfg.StoragePing,
		sessionStats:  cfg.SessionStats,
		eventsDropped: cfg.EventsDropped,
		books:         cfg.Books,
		grants:        cfg.Grants,
		sessions:      cfg.Sessions,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Get("/stats/library", h.GetLibraryStats)
		r.Delete("/sessions/{userID}", h.RevokeUserSessions)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	storageHealthy := true
	if h.storagePing != nil {
		if err := h.storagePing(ctx); err != nil {
			storageHealthy = false
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Storage: StorageStatus{Healthy: storageHealthy},
		Runtime: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     memStats.Alloc,
			MemSys:       memStats.Sys,
			NumGC:        memStats.NumGC,
		},
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}

	core.OK(w, response)
}

// GetLibraryStats reports catalog size, grant counts and the session event
// pipeline in one response.
func (h *Handler) GetLibraryStats(w http.ResponseWriter, r *http.Request) {
	var resp LibraryStatsResponse

	g, ctx := errgroup.WithContext(r.Context())

	if h.books != nil {
		g.Go(func() error {
			stats, err := h.books.Stats(ctx)
			resp.Books = stats
			return err
		})
	}

	if h.grants != nil {
		g.Go(func() error {
			counts, err := h.grants.Counts(ctx)
			resp.Grants = counts
			return err
		})
	}

	if err := g.Wait(); err != nil {
		core.InternalServerError(w, err)
		return
	}

	if h.sessionStats != nil {
		stats := h.sessionStats()
		resp.Sessions.Handled = stats.Handled
		resp.Sessions.Failed = stats.Failed
		resp.Sessions.Purged = stats.Purged
	}
	if h.eventsDropped != nil {
		resp.Sessions.Dropped = h.eventsDropped()
	}

	core.OK(w, resp)
}

// RevokeUserSessions signs a user out of every device.
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		core.InternalServerError(w, errors.New("session revoker not configured"))
		return
	}

	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		core.NotFound(w, "user")
		return
	}

	if err := h.sessions.LogoutAll(r.Context(), userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
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
