package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/errors"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// DegradationConfig holds thresholds on the observed error rate (0.0-1.0)
type DegradationConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	HealthCheckTimeout  time.Duration `json:"health_check_timeout"`
	DegradedThreshold   float64       `json:"degraded_threshold"`
	CriticalThreshold   float64       `json:"critical_threshold"`
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		DegradedThreshold:   0.1,
		CriticalThreshold:   0.5,
	}
}

// ServiceHealth is the reported status of one dependency
type ServiceHealth struct {
	ServiceName   string    `json:"service_name"`
	Level         string    `json:"level"`
	ErrorRate     float64   `json:"error_rate"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorTime time.Time `json:"last_error_time,omitempty"`
}

type serviceState struct {
	level         DegradationLevel
	total         int64
	errorCount    int64
	lastError     error
	lastErrorTime time.Time
}

// HealthCheckFunc checks a dependency
type HealthCheckFunc func(ctx context.Context) error

// DegradationManager tracks error rates of the backing stores so that
// /health can report them
type DegradationManager struct {
	config       DegradationConfig
	services     map[string]*serviceState
	healthChecks map[string]HealthCheckFunc
	mutex        sync.RWMutex
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:       config,
		services:     make(map[string]*serviceState),
		healthChecks: make(map[string]HealthCheckFunc),
	}
}

// RegisterService registers a service with an optional health check
func (dm *DegradationManager) RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.services[serviceName] = &serviceState{level: LevelNormal}
	if healthCheck != nil {
		dm.healthChecks[serviceName] = healthCheck
	}

	slog.Info("Registered service for degradation management", "service", serviceName)
}

// Record records the outcome of one call
func (dm *DegradationManager) Record(serviceName string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return
	}

	service.total++
	if err != nil {
		service.errorCount++
		service.lastError = err
		service.lastErrorTime = time.Now()
	}

	dm.updateLevel(serviceName, service)
}

func (dm *DegradationManager) updateLevel(name string, service *serviceState) {
	rate := float64(service.errorCount) / float64(service.total)

	var level DegradationLevel
	switch {
	case rate >= dm.config.CriticalThreshold:
		level = LevelCritical
	case rate >= dm.config.DegradedThreshold:
		level = LevelDegraded
	default:
		level = LevelNormal
	}

	if level != service.level {
		slog.Warn("Service degradation level changed",
			"service", name,
			"old_level", service.level.String(),
			"new_level", level.String(),
			"error_rate", rate)
		service.level = level
	}
}

// Level returns the current level, LevelNormal for unknown services
func (dm *DegradationManager) Level(serviceName string) DegradationLevel {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if service, ok := dm.services[serviceName]; ok {
		return service.level
	}
	return LevelNormal
}

// GetAllServiceHealth returns a copy of every tracked service
func (dm *DegradationManager) GetAllServiceHealth() map[string]ServiceHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	result := make(map[string]ServiceHealth, len(dm.services))
	for name, service := range dm.services {
		health := ServiceHealth{
			ServiceName:   name,
			Level:         service.level.String(),
			TotalRequests: service.total,
			ErrorCount:    service.errorCount,
			LastErrorTime: service.lastErrorTime,
		}
		if service.total > 0 {
			health.ErrorRate = float64(service.errorCount) / float64(service.total)
		}
		if service.lastError != nil {
			health.LastError = service.lastError.Error()
		}
		result[name] = health
	}

	return result
}

// StartHealthChecks runs the registered checks until ctx is done
func (dm *DegradationManager) StartHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.runHealthChecks(ctx)
		}
	}
}

func (dm *DegradationManager) runHealthChecks(ctx context.Context) {
	dm.mutex.RLock()
	checks := make(map[string]HealthCheckFunc, len(dm.healthChecks))
	for name, check := range dm.healthChecks {
		checks[name] = check
	}
	dm.mutex.RUnlock()

	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, dm.config.HealthCheckTimeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			err = errors.WrapError(err, "health check failed for service %s", name)
		}
		dm.Record(name, err)
	}
}
