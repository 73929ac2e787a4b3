package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/arag/engine/infra/server/router"
	"github.com/compozy/arag/engine/pipeline"
)

// graphHandler renders the pipeline state machine. ?format= accepts
// mermaid (default), mermaid-flow and graphviz.
func graphHandler(c *gin.Context) {
	diagram, err := pipeline.Graph(pipeline.GraphFormat(c.Query("format")))
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
		return
	}
	c.String(http.StatusOK, diagram)
}
