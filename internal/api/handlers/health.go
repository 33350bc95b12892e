package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	redisClient *redis.Client
	logger      *logrus.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(redisClient *redis.Client, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "fpl-optimizer",
		"timestamp": time.Now().UTC(),
	})
}

// GetReady handles GET /ready. The solver itself needs nothing external;
// readiness only degrades when the optional result cache is configured but
// unreachable.
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK

	if h.redisClient != nil {
		if err := h.redisClient.Ping(c.Request.Context()).Err(); err != nil {
			h.logger.WithError(err).Warn("Redis ping failed")
			checks["redis"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status":    statusWord(status),
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ready"
	}
	return "degraded"
}
