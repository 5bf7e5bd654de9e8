package main

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/cache"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/resilience"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/types"
)

// bindBody decodes the request body into dst. On failure the error is
// attached to the context and false is returned.
func (s *server) bindBody(c *gin.Context, dst interface{}) bool {
	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			_ = c.Error(errors.NewAppError(
				errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg("Request body too large"),
				errors.CategoryValidation,
				http.StatusRequestEntityTooLarge,
			))
			return false
		}
		_ = c.Error(errors.NewInvalidInputError("request body could not be read"))
		return false
	}

	if len(body) == 0 {
		_ = c.Error(errors.NewInvalidInputError("request body is empty"))
		return false
	}

	if err := s.codec.Unmarshal(body, dst); err != nil {
		_ = c.Error(errors.NewInvalidInputError("request body is not a valid machines payload"))
		return false
	}
	return true
}

// requireUser validates a user id, attaching the error to the context
func (s *server) requireUser(c *gin.Context, user string) (string, bool) {
	user = s.security.SanitizeInput(user)
	if err := s.security.ValidateUserID(user); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return user, true
}

// score returns the factory result for machines, serving repeats from the cache
func (s *server) score(machines types.Machines) health.FactoryScore {
	start := time.Now()

	key, err := cache.KeyFor(machines)
	if err != nil {
		slog.Warn("Failed to derive score cache key", "error", err)
	}

	var result health.FactoryScore
	cacheHit := key != "" && s.cache.GetJSON(key, &result)
	if cacheHit {
		s.metrics.IncrementCacheHit()
	} else {
		s.metrics.IncrementCacheMiss()
		result = s.scorer.ScoreFactory(health.ReadingsFromPayload(machines))
		if key != "" {
			if err := s.cache.SetJSON(key, result); err != nil {
				slog.Warn("Failed to cache score", "error", err)
			}
		}
	}
	s.prom.CacheLookup(cacheHit)

	s.observeScore(result)
	s.logger.ScoreLogger(len(machines), result.Factory, time.Since(start), cacheHit)
	return result
}

func (s *server) observeScore(result health.FactoryScore) {
	machineTypes := make([]string, 0, len(result.MachineScores))
	for machineType, score := range result.MachineScores {
		machineTypes = append(machineTypes, string(machineType))
		s.prom.ObserveMachineScore(string(machineType), health.ParseReading(score))
	}
	s.metrics.RecordScore(machineTypes)
	s.prom.ObserveFactoryScore(health.ParseReading(result.Factory))
}

// appendSnapshot stores a scored payload for user and feeds the outcome to
// metrics and the degradation manager
func (s *server) appendSnapshot(c *gin.Context, user string, machines types.Machines, result health.FactoryScore) (*storage.Snapshot, error) {
	snapshot := storage.NewSnapshot(user, machines, result)

	start := time.Now()
	err := s.store.Append(c.Request.Context(), user, snapshot)
	s.degradation.Record(historyService, err)
	s.prom.HistoryAppend(err == nil)
	s.logger.StoreLogger("append", user, 1, time.Since(start), err)

	if err != nil {
		s.metrics.IncrementHistoryError()
		return nil, err
	}
	s.metrics.IncrementHistoryAppend()
	return snapshot, nil
}

// handleScore godoc
// @Summary Score a factory
// @Tags scoring
// @Accept json
// @Produce json
// @Param request body types.MachineHealthRequest true "Machine readings"
// @Success 200 {object} types.FactoryScoreResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /machine-health [post]
func (s *server) handleScore(c *gin.Context) {
	var req types.MachineHealthRequest
	if !s.bindBody(c, &req) {
		return
	}
	if req.Machines == nil {
		_ = c.Error(errors.NewInvalidInputError("machines is required"))
		return
	}

	user := ""
	if req.User != "" {
		var ok bool
		if user, ok = s.requireUser(c, req.User); !ok {
			return
		}
	}

	result := s.score(req.Machines)

	// Recording is best effort here; the score is still returned when the store fails.
	if user != "" {
		if _, err := s.appendSnapshot(c, user, req.Machines, result); err != nil {
			slog.Warn("Score computed but not recorded", "user", user, "error", err)
		}
	}

	c.JSON(http.StatusOK, types.FactoryScoreResponse{
		Factory:       result.Factory,
		MachineScores: result.MachineScores,
	})
}

// handleRecord godoc
// @Summary Score and record a snapshot for a user
// @Tags history
// @Accept json
// @Produce json
// @Param request body types.RecordRequest true "Machine readings and owner"
// @Success 200 {object} types.RecordResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /machine [post]
func (s *server) handleRecord(c *gin.Context) {
	var req types.RecordRequest
	if !s.bindBody(c, &req) {
		return
	}
	if req.Machines == nil {
		_ = c.Error(errors.NewInvalidInputError("machines is required"))
		return
	}
	user, ok := s.requireUser(c, req.User)
	if !ok {
		return
	}

	result := s.score(req.Machines)

	snapshot, err := s.appendSnapshot(c, user, req.Machines, result)
	if err != nil {
		_ = c.Error(errors.NewStorageError("append", err))
		return
	}

	c.JSON(http.StatusOK, types.NewRecordResponse(snapshot))
}

// handleHistory godoc
// @Summary List a user's recorded snapshots
// @Tags history
// @Produce json
// @Param user query string true "User id"
// @Success 200 {array} storage.Snapshot
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /machine-health [get]
func (s *server) handleHistory(c *gin.Context) {
	user, ok := s.requireUser(c, c.Query("user"))
	if !ok {
		return
	}

	start := time.Now()
	snapshots, err := s.store.List(c.Request.Context(), user)
	s.degradation.Record(historyService, err)
	s.logger.StoreLogger("list", user, len(snapshots), time.Since(start), err)
	if err != nil {
		_ = c.Error(errors.NewStorageError("list", err))
		return
	}

	if snapshots == nil {
		snapshots = []storage.Snapshot{}
	}
	c.JSON(http.StatusOK, types.HistoryResponse(snapshots))
}

// handleClearHistory godoc
// @Summary Clear a user's history
// @Tags history
// @Produce json
// @Param user query string true "User id"
// @Success 200 {object} types.ClearResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /machine-health [delete]
func (s *server) handleClearHistory(c *gin.Context) {
	user, ok := s.requireUser(c, c.Query("user"))
	if !ok {
		return
	}

	start := time.Now()
	deleted, err := s.store.Clear(c.Request.Context(), user)
	s.degradation.Record(historyService, err)
	s.logger.StoreLogger("clear", user, deleted, time.Since(start), err)
	if err != nil {
		_ = c.Error(errors.NewStorageError("clear", err))
		return
	}

	c.JSON(http.StatusOK, types.ClearResponse{Deleted: deleted})
}

// handleMachines godoc
// @Summary List machine types, parts and reference ranges
// @Tags reference
// @Produce json
// @Success 200 {object} types.MachinesResponse
// @Router /machines [get]
func (s *server) handleMachines(c *gin.Context) {
	c.JSON(http.StatusOK, types.NewMachinesResponse(s.scorer.Table()))
}

func (s *server) handleHello(c *gin.Context) {
	c.String(http.StatusOK, "Hello World!")
}

func (s *server) handleHelloWorld(c *gin.Context) {
	name := s.security.SanitizeInput(c.Query("name"))
	if name == "" {
		name = "stranger"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hello, " + name + "!"})
}

// handleHealth godoc
// @Summary Service health
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *server) handleHealth(c *gin.Context) {
	services := s.degradation.GetAllServiceHealth()

	response := gin.H{
		"status":        "ok",
		"timestamp":     time.Now().Format(time.RFC3339),
		"version":       "1.0.0",
		"uptime":        time.Since(s.startedAt).Round(time.Second).String(),
		"store_backend": s.cfg.StoreBackend,
		"services":      services,
	}

	store := gin.H{}
	if breaker, ok := s.store.(interface {
		BreakerStats() map[string]interface{}
		BreakerState() resilience.CircuitBreakerState
	}); ok {
		store["circuit_breaker"] = breaker.BreakerStats()
		s.prom.SetCircuitBreakerState(historyService, float64(breaker.BreakerState()))
	}
	if pool, ok := s.store.(interface{ PoolStats() map[string]interface{} }); ok {
		store["pool"] = pool.PoolStats()
	}
	if s.redis.IsEnabled() {
		store["redis_pool"] = s.redis.GetPoolStats()
	}
	if len(store) > 0 {
		response["store"] = store
	}

	for _, service := range services {
		if service.Level == resilience.LevelCritical.String() {
			response["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}

func (s *server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	stats["compression"] = s.compression.GetStats()
	stats["codec"] = s.codec.Stats()
	stats["rate_limiter"] = s.limiter.GetStats()
	c.JSON(http.StatusOK, stats)
}

func (s *server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats())
}
