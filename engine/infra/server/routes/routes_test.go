package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	t.Run("Should build paths under the versioned base", func(t *testing.T) {
		assert.Equal(t, "/api/v1", Base())
		assert.Equal(t, "/api/v1/ask", Ask())
		assert.Equal(t, "/api/v1/graph", Graph())
		assert.Equal(t, "/api/v1/health", HealthVersioned())
		assert.Equal(t, "/health", Health())
	})
}
