package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type insightService interface {
	Ask(ctx context.Context, actor service.Actor, req service.InsightQueryRequest) (*insight.Insight, error)
	History(ctx context.Context, userID string, limit int) ([]models.InsightTranscript, error)
}

// InsightHandler answers attendance questions.
type InsightHandler struct {
	insights insightService
}

// NewInsightHandler constructs InsightHandler.
func NewInsightHandler(insights insightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// Query godoc
// @Summary Ask an attendance question
// @Description Routes a free-text question to an intent and answers it from the attendance window.
// @Tags Insights
// @Accept json
// @Produce json
// @Param payload body service.InsightQueryRequest true "Question"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /insights/query [post]
func (h *InsightHandler) Query(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.InsightQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.insights.Ask(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Recent questions of the current user
// @Tags Insights
// @Produce json
// @Param limit query int false "Number of entries"
// @Success 200 {object} response.Envelope
// @Router /insights/history [get]
func (h *InsightHandler) History(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.insights.History(c.Request.Context(), actor.UserID, queryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
