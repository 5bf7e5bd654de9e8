package main

import (
	"context"
	"log/slog"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/machine-health-o-meter/docs"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/cache"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/config"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/encoding"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/middleware"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/resilience"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/security"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
)

const historyService = "history_store"

// server owns every long-lived dependency of the HTTP API
type server struct {
	cfg         *config.Config
	scorer      *health.Scorer
	store       storage.HistoryStore
	redis       *storage.RedisClient
	cache       *cache.Cache
	codec       *encoding.Codec
	metrics     *monitoring.Metrics
	prom        *monitoring.PromCollectors
	logger      *monitoring.Logger
	limiter     *ratelimit.RateLimiter
	security    *security.SecurityMiddleware
	compression *middleware.CompressionMiddleware
	degradation *resilience.DegradationManager
	startedAt   time.Time

	closeOnce sync.Once
}

func newServer(cfg *config.Config, table health.ReferenceTable, store storage.HistoryStore, redisClient *storage.RedisClient, logger *monitoring.Logger) *server {
	metrics := monitoring.NewMetrics()
	prom := monitoring.NewPromCollectors()

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.RateLimitPerMin
	limiterConfig.Burst = cfg.RateLimitPerMin

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = cfg.AllowedOrigins
	securityConfig.RequestTimeout = cfg.RequestTimeout
	securityConfig.EnableHSTS = cfg.EnableHSTS

	s := &server{
		cfg:         cfg,
		scorer:      health.NewScorer(table),
		store:       store,
		redis:       redisClient,
		cache:       cache.NewCache(cfg.CacheTTL),
		codec:       encoding.NewCodec(50),
		metrics:     metrics,
		prom:        prom,
		logger:      logger,
		limiter:     ratelimit.NewRateLimiter(redisClient, limiterConfig, metrics, prom),
		security:    security.NewSecurityMiddleware(securityConfig),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		degradation: resilience.NewDegradationManager(resilience.DefaultDegradationConfig()),
		startedAt:   time.Now(),
	}

	var check resilience.HealthCheckFunc
	if redisClient.IsEnabled() {
		check = redisClient.HealthCheck
	}
	s.degradation.RegisterService(historyService, check)

	return s
}

// Close releases the store, cache janitor, limiter and redis connection
func (s *server) Close() {
	s.closeOnce.Do(func() {
		s.cache.Close()
		s.limiter.Close()
		errors.SafeClose(s.store, "history store")
		if s.redis != nil {
			errors.SafeClose(s.redis, "redis client")
		}
	})
}

// routes builds the gin engine. Compression sits outside the error handler
// so rendered errors are buffered and compressed like any other body.
func (s *server) routes() *gin.Engine {
	r := gin.New()

	r.Use(errors.RecoveryHandler())
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.prom, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger))

	r.Use(security.SecurityHeadersMiddleware(s.cfg.EnableHSTS))
	r.Use(security.CSPMiddleware(s.security.Config().CSPReportURI))
	r.Use(s.security.CORS())

	r.Use(s.compression.Handler())
	r.Use(errors.ErrorHandler())

	r.Use(s.security.RequestTimeout)
	r.Use(s.security.LimitBody)
	r.Use(s.security.ValidateContentType)
	r.Use(s.limiter.IPRateLimitMiddleware())

	// Scoring and history
	r.POST("/machine-health", s.handleScore)
	r.GET("/machine-health", s.handleHistory)
	r.DELETE("/machine-health", s.handleClearHistory)
	r.POST("/machine",
		s.limiter.EndpointRateLimitMiddleware("record", s.cfg.RecordLimitPerMin),
		s.handleRecord)
	r.GET("/machines", s.handleMachines)

	// Serverless function surface
	api := r.Group("/api")
	api.GET("/hello", s.handleHello)
	api.POST("/machine-health", s.handleScore)
	r.GET("/hello-world", s.handleHelloWorld)

	// Operations
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/metrics/prometheus", gin.WrapH(s.prom.Handler()))
	r.GET("/cache/stats", s.handleCacheStats)
	r.GET("/ratelimit/status", s.limiter.HandleRateLimitStatus())

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Performance profiling endpoints (development only)
	if s.cfg.EnableProfiling {
		slog.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
		r.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
		r.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
	}

	return r
}

// runRetention prunes expired snapshots every interval until ctx is done
func (s *server) runRetention(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneHistory(ctx, retention)
		}
	}
}

func (s *server) pruneHistory(ctx context.Context, retention time.Duration) int {
	start := time.Now()
	removed, err := s.store.Prune(ctx, start.Add(-retention))
	s.degradation.Record(historyService, err)
	s.logger.StoreLogger("prune", "", removed, time.Since(start), err)
	if err != nil {
		slog.Error("Failed to prune history", "retention", retention.String(), "error", err)
	}
	return removed
}
