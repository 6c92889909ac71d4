package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/http/response"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
	"github.com/yungbote/trainwatch-backend/internal/services"
)

// ProgramHandler serves programs and the trainers that own them.
type ProgramHandler struct {
	log      *logger.Logger
	programs services.ProgramService
}

func NewProgramHandler(log *logger.Logger, programs services.ProgramService) *ProgramHandler {
	return &ProgramHandler{log: log.With("handler", "ProgramHandler"), programs: programs}
}

// POST /api/programs
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	var in services.CreateProgramInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	program, err := h.programs.CreateProgram(c.Request.Context(), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Info("program created", "program_id", program.ProgramID, "trainer_id", program.TrainerID)
	response.RespondStatus(c, http.StatusCreated, gin.H{"program": program})
}

// GET /api/programs/:id
func (h *ProgramHandler) GetProgram(c *gin.Context) {
	summary, err := h.programs.GetProgram(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"program": summary})
}

// POST /api/programs/:id/sessions
func (h *ProgramHandler) AddSession(c *gin.Context) {
	var in services.SessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	entry, err := h.programs.AddSession(c.Request.Context(), strings.TrimSpace(c.Param("id")), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondStatus(c, http.StatusCreated, gin.H{"session": entry})
}

// GET /api/trainers/:id
func (h *ProgramHandler) GetTrainer(c *gin.Context) {
	summary, err := h.programs.GetTrainer(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trainer": summary})
}

// GET /api/trainers/:id/programs
func (h *ProgramHandler) ListTrainerPrograms(c *gin.Context) {
	programs, err := h.programs.ListTrainerPrograms(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"programs": programs})
}

// GET /api/trainers/:id/sessions
func (h *ProgramHandler) ListTrainerSessions(c *gin.Context) {
	sessions, err := h.programs.ListTrainerSessions(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}
