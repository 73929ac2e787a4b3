package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/engine/infra/server/appstate"
)

const (
	statusHealthy      = "healthy"
	statusDegraded     = "degraded"
	healthCheckTimeout = 2 * time.Second
)

// CreateHealthHandler reports service health and the state of every
// registered dependency.
//
//	@Summary      Get server health
//	@Tags         health
//	@Produce      json
//	@Success      200 {object} map[string]interface{} "Service is healthy"
//	@Failure      503 {object} map[string]interface{} "A dependency is unavailable"
//	@Router       /api/v1/health [get]
func CreateHealthHandler(state *appstate.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ready, components := runHealthChecks(c.Request.Context(), state.HealthChecks())
		status := statusHealthy
		code := http.StatusOK
		if !ready {
			status = statusDegraded
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"data": gin.H{
				"status":     status,
				"version":    state.Version,
				"ready":      ready,
				"components": components,
			},
			"message": "Success",
		})
	}
}

func runHealthChecks(ctx context.Context, checks map[string]appstate.HealthCheck) (bool, gin.H) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	ready := true
	components := gin.H{}
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := checks[name](checkCtx)
		cancel()
		entry := gin.H{"healthy": err == nil}
		if err != nil {
			ready = false
			entry["error"] = core.RedactError(err)
		}
		components[name] = entry
	}
	return ready, components
}
