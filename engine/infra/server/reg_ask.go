package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/engine/infra/server/appstate"
	"github.com/compozy/arag/engine/infra/server/router"
	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/pkg/config"
)

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// askHandler answers one question.
//
//	@Summary      Ask a question
//	@Description  Routes the question, gathers evidence, generates and verifies an answer.
//	@Tags         ask
//	@Accept       json
//	@Produce      json
//	@Param        request body AskRequest true "Question"
//	@Success      200 {object} router.Response "Final pipeline state"
//	@Failure      400 {object} core.Problem "Invalid request"
//	@Failure      429 {object} core.Problem "Rate limit exceeded"
//	@Failure      502 {object} core.Problem "Answer generation failed"
//	@Router       /api/v1/ask [post]
func askHandler(c *gin.Context) {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode, router.ErrMsgAppStateNotInitialized)
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "body must be JSON with a non-empty question")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "question is required")
		return
	}
	ctx := c.Request.Context()
	if timeout := config.FromContext(ctx).Pipeline.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := state.Answerer.Process(ctx, question)
	if err != nil {
		respondPipelineError(c, result, err)
		return
	}
	router.RespondOK(c, "question answered", result)
}

func respondPipelineError(c *gin.Context, result *pipeline.State, err error) {
	var details map[string]any
	if result != nil {
		details = result.Audit()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		coded := core.NewError(err, router.ErrRequestTimeoutCode, details)
		coded.Message = "the question could not be answered in time"
		router.RespondError(c, http.StatusGatewayTimeout, coded)
	case pipeline.IsGenerationFailure(err):
		router.RespondError(c, http.StatusBadGateway, core.NewError(err, router.ErrGenerationFailedCode, details))
	default:
		router.RespondError(c, http.StatusInternalServerError, core.NewError(err, router.ErrInternalCode, details))
	}
}
