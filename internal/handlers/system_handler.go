package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker reports whether a backing service is reachable.
type Checker func(ctx context.Context) error

// StatsSource returns a flat set of runtime figures for a backing service.
type StatsSource func(ctx context.Context) (map[string]string, error)

type SystemHandler struct {
	counter   func(ctx context.Context) (int64, error)
	database  Checker
	redis     Checker
	redisInfo StatsSource
}

// NewSystemHandler wires the health and stats endpoints. redis and redisInfo
// may be nil when Redis is disabled.
func NewSystemHandler(counter func(ctx context.Context) (int64, error), database, redis Checker, redisInfo StatsSource) *SystemHandler {
	return &SystemHandler{
		counter:   counter,
		database:  database,
		redis:     redis,
		redisInfo: redisInfo,
	}
}

func (h *SystemHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/system/stats", h.Stats)
}

func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	services := gin.H{"database": "connected", "redis": "disabled"}

	if err := h.database(ctx); err != nil {
		status = http.StatusServiceUnavailable
		services["database"] = "unavailable: " + err.Error()
	}
	if h.redis != nil {
		services["redis"] = "connected"
		if err := h.redis(ctx); err != nil {
			services["redis"] = "unavailable: " + err.Error()
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.counter(ctx)
	if err != nil {
		respondError(c, "failed to count readings", err)
		return
	}

	var redisStats interface{} = "disabled"
	if h.redisInfo != nil {
		stats, err := h.redisInfo(ctx)
		if err != nil {
			redisStats = gin.H{"error": err.Error()}
		} else {
			redisStats = stats
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"database": gin.H{"readings": count},
		"redis":    redisStats,
	})
}
