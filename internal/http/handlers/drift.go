package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/http/response"
	"github.com/yungbote/trainwatch-backend/internal/reconcile"
)

type DriftChecker interface {
	Check(ctx context.Context, traineeID, sessionID string) (reconcile.DriftReport, error)
	Repair(ctx context.Context, traineeID, sessionID string) (reconcile.DriftReport, int, error)
}

type DriftHandler struct {
	drift DriftChecker
}

func NewDriftHandler(d DriftChecker) *DriftHandler {
	return &DriftHandler{drift: d}
}

// GET /api/drift?traineeId=&sessionId=
func (h *DriftHandler) Check(c *gin.Context) {
	report, err := h.drift.Check(c.Request.Context(), c.Query("traineeId"), c.Query("sessionId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"drift": report, "clean": report.Clean()})
}

type repairDriftRequest struct {
	TraineeID string `json:"traineeId" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

// POST /api/drift/repair
func (h *DriftHandler) Repair(c *gin.Context) {
	var req repairDriftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	report, scheduled, err := h.drift.Repair(c.Request.Context(), req.TraineeID, req.SessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondStatus(c, http.StatusAccepted, gin.H{"drift": report, "scheduled": scheduled})
}
