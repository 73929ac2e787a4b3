package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/engine/core"
)

func TestRespondProblemWithCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should write a problem document and abort", func(t *testing.T) {
		r := gin.New()
		called := false
		r.GET("/x", func(c *gin.Context) {
			RespondProblemWithCode(c, http.StatusBadRequest, ErrBadRequestCode, "question is required")
		}, func(_ *gin.Context) { called = true })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, float64(http.StatusBadRequest), body["status"])
		assert.Equal(t, "Bad Request", body["error"])
		assert.Equal(t, ErrBadRequestCode, body["code"])
		assert.Equal(t, "question is required", body["details"])
		assert.False(t, called)
	})

	t.Run("Should wrap success payloads in the envelope", func(t *testing.T) {
		r := gin.New()
		r.GET("/ok", func(c *gin.Context) { RespondOK(c, "done", gin.H{"a": 1}) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":200,"message":"done","data":{"a":1},"error":null}`, w.Body.String())
	})
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should lift coded error details into the problem body", func(t *testing.T) {
		r := gin.New()
		r.POST("/ask", func(c *gin.Context) {
			coded := core.NewError(errors.New("model offline"), ErrGenerationFailedCode, map[string]any{
				"route": "knowledge_base",
				"tries": 3,
				"code":  "ignored",
			})
			RespondError(c, http.StatusBadGateway, coded)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", http.NoBody))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, ErrGenerationFailedCode, body["code"])
		assert.Equal(t, "model offline", body["details"])
		assert.Equal(t, "knowledge_base", body["route"])
		assert.Equal(t, float64(3), body["tries"])
	})
}
