package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	defaultCheckTimeout = 2 * time.Second
)

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    []namedCheck
	timeout   time.Duration
	logger    *zap.Logger
}

// HealthOption customises HealthHandler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck registers a dependency probe for the readiness endpoint.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

// WithCheckTimeout bounds each readiness probe.
func WithCheckTimeout(timeout time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithHealthLogger sets the logger used for failing probes.
func WithHealthLogger(logger *zap.Logger) HealthOption {
	return func(h *HealthHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		startedAt: time.Now().UTC(),
		timeout:   defaultCheckTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status reports that the process is serving requests.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Message:   "AuthentiCute is running!",
		StartedAt: h.startedAt,
	})
}

// Readiness runs every registered probe concurrently and answers 503 if any fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		healthy = true
	)

	for _, nc := range h.checks {
		wg.Add(1)
		go func(nc namedCheck) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
			defer cancel()

			err := nc.check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[nc.name] = statusUnhealthy
				h.logger.Warn("readiness check failed", zap.String("check", nc.name), zap.Error(err))
				return
			}
			results[nc.name] = statusHealthy
		}(nc)
	}
	wg.Wait()

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:  statusUnhealthy,
			Message: "Dependency check failed: " + failingChecks(results),
			Checks:  results,
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:  statusHealthy,
		Message: "Database connection is working!",
		Checks:  results,
	})
}

func failingChecks(results map[string]string) string {
	var names []string
	for name, status := range results {
		if status != statusHealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
