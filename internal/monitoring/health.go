package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
)

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler pings Mongo and Redis and reports per-component status.
// Degraded dependencies turn the overall status to "unhealthy" with a 503.
func HealthHandler(db *repository.Database, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		components := make(map[string]componentStatus)
		healthy := true

		if err := db.Ping(ctx); err != nil {
			components["mongodb"] = componentStatus{Status: "down", Error: err.Error()}
			healthy = false
		} else {
			components["mongodb"] = componentStatus{Status: "up"}
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			components["redis"] = componentStatus{Status: "down", Error: err.Error()}
			healthy = false
		} else {
			components["redis"] = componentStatus{Status: "up"}
		}

		status := "healthy"
		code := http.StatusOK
		if !healthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":     status,
			"components": components,
			"timestamp":  time.Now().UTC(),
		})
	}
}
