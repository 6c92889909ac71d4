package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/http/response"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
	"github.com/yungbote/trainwatch-backend/internal/services"
)

type TraineeHandler struct {
	log      *logger.Logger
	trainees services.TraineeService
}

func NewTraineeHandler(log *logger.Logger, trainees services.TraineeService) *TraineeHandler {
	return &TraineeHandler{log: log.With("handler", "TraineeHandler"), trainees: trainees}
}

// GET /api/trainees/:id
func (h *TraineeHandler) GetTrainee(c *gin.Context) {
	progress, err := h.trainees.GetTrainee(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trainee": progress})
}

// POST /api/trainees/:id/sessions
func (h *TraineeHandler) AssignSession(c *gin.Context) {
	var in services.AssignSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	traineeID := strings.TrimSpace(c.Param("id"))
	entry, err := h.trainees.AssignSession(c.Request.Context(), traineeID, in)
	if err != nil {
		h.log.Warn("AssignSession failed", "trainee_id", traineeID, "session_id", in.SessionID, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondStatus(c, http.StatusCreated, gin.H{"session": entry})
}

type assignClusterRequest struct {
	Cluster views.Cluster `json:"cluster" binding:"required"`
}

// PUT /api/trainees/:id/cluster
func (h *TraineeHandler) AssignCluster(c *gin.Context) {
	var req assignClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	traineeID := strings.TrimSpace(c.Param("id"))
	if err := h.trainees.AssignCluster(c.Request.Context(), traineeID, req.Cluster); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"traineeId": traineeID, "cluster": req.Cluster})
}
