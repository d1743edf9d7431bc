package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"enos-mapping-backend/config"
	"enos-mapping-backend/internal/classify"
	"enos-mapping-backend/internal/mw"
	"enos-mapping-backend/internal/notification"
	"enos-mapping-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, mapper Mapper, engine *classify.Engine, pool *notification.WorkerPool, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	// Behind a reverse proxy the real client IP arrives in a header; the
	// rate limiter keys on ClientIP, so resolution must follow it.
	if cfg.RequestIPHeader != "" {
		r.RemoteIPHeaders = []string{cfg.RequestIPHeader}
	}

	handler := NewHandler(s, mapper, engine, pool, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/mappings", handler.PostMappings)
		api.POST("/mappings/local", handler.PostLocalMappings)
		api.GET("/mappings", caching, handler.ListMappingTasks)
		api.GET("/mappings/:task_id", handler.GetMappingTask)
		api.GET("/mappings/:task_id/quality", caching, handler.GetQualityReport)
		api.POST("/mappings/:task_id/improve", handler.PostImprove)
		api.GET("/mappings/:task_id/export", handler.ExportMappings)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
