package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/http/response"
	"github.com/yungbote/trainwatch-backend/internal/insights"
)

type InsightReader interface {
	ConceptInsights(ctx context.Context, programID string) ([]insights.ConceptInsight, error)
	ClusterInsights(ctx context.Context, programID string) ([]insights.ClusterInsight, error)
}

type InsightsHandler struct {
	insights InsightReader
}

func NewInsightsHandler(r InsightReader) *InsightsHandler {
	return &InsightsHandler{insights: r}
}

// GET /api/programs/:id/insights/concepts
func (h *InsightsHandler) Concepts(c *gin.Context) {
	programID := strings.TrimSpace(c.Param("id"))
	out, err := h.insights.ConceptInsights(c.Request.Context(), programID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"programId": programID, "concepts": out})
}

// GET /api/programs/:id/insights/clusters
func (h *InsightsHandler) Clusters(c *gin.Context) {
	programID := strings.TrimSpace(c.Param("id"))
	out, err := h.insights.ClusterInsights(c.Request.Context(), programID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"programId": programID, "clusters": out})
}
