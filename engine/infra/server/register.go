package server

import (
	"github.com/gin-gonic/gin"

	"github.com/compozy/arag/engine/infra/server/appstate"
	"github.com/compozy/arag/engine/infra/server/middleware/size"
	"github.com/compozy/arag/engine/infra/server/routes"
)

// maxAskBodyBytes bounds the JSON body of an ask request.
const maxAskBodyBytes = 64 << 10

// RegisterRoutes mounts the API. limit guards the ask endpoint and may be nil.
func RegisterRoutes(r *gin.Engine, state *appstate.State, limit gin.HandlerFunc) {
	health := CreateHealthHandler(state)
	r.GET(routes.Health(), health)
	api := r.Group(routes.Base())
	api.GET("/health", health)
	api.GET("/graph", graphHandler)
	askHandlers := []gin.HandlerFunc{size.BodySizeLimiter(maxAskBodyBytes)}
	if limit != nil {
		askHandlers = append(askHandlers, limit)
	}
	askHandlers = append(askHandlers, askHandler)
	api.POST("/ask", askHandlers...)
}
