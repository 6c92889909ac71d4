package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/http/response"
	"github.com/yungbote/trainwatch-backend/internal/ingestion"
	"github.com/yungbote/trainwatch-backend/internal/platform/apierr"
)

const (
	maxBatchEvents = 200
	maxEventBody   = 2 << 20
)

type EventRecorder interface {
	Record(ctx context.Context, ev playback.Event) (ingestion.Result, error)
}

type EventHandler struct {
	events EventRecorder
}

func NewEventHandler(events EventRecorder) *EventHandler {
	return &EventHandler{events: events}
}

type batchRequest struct {
	Events []playback.Event `json:"events"`
}

type batchItem struct {
	Result *ingestion.Result  `json:"result,omitempty"`
	Error  *response.APIError `json:"error,omitempty"`
}

type batchResponse struct {
	Recorded int         `json:"recorded"`
	Degraded int         `json:"degraded"`
	Failed   int         `json:"failed"`
	Items    []batchItem `json:"items"`
}

// POST /api/events
//
// Accepts one event or {"events": [...]}. A degraded fan-out answers 202.
func (h *EventHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(body) > maxEventBody {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "payload_too_large", errors.New("request body too large"))
		return
	}

	if isBatch(body) {
		var req batchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		h.ingestBatch(c, req.Events)
		return
	}

	var ev playback.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.respondRecord(c, ev)
}

func (h *EventHandler) respondRecord(c *gin.Context, ev playback.Event) {
	res, err := h.events.Record(c.Request.Context(), ev)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if res.Degraded() {
		response.RespondStatus(c, http.StatusAccepted, res)
		return
	}
	response.RespondOK(c, res)
}

func (h *EventHandler) ingestBatch(c *gin.Context, events []playback.Event) {
	if len(events) == 0 {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("events must not be empty"))
		return
	}
	if len(events) > maxBatchEvents {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("at most 200 events per batch"))
		return
	}

	out := batchResponse{Items: make([]batchItem, len(events))}
	for i, ev := range events {
		res, err := h.events.Record(c.Request.Context(), ev)
		if err != nil {
			ae := apierr.FromAggregate(err)
			msg := err.Error()
			if ae.Status == http.StatusInternalServerError {
				_ = c.Error(err)
				msg = "internal error"
			}
			out.Items[i] = batchItem{Error: &response.APIError{Message: msg, Code: ae.Code}}
			out.Failed++
			continue
		}
		out.Items[i] = batchItem{Result: &res}
		if res.Degraded() {
			out.Degraded++
		} else {
			out.Recorded++
		}
	}

	status := http.StatusOK
	if out.Degraded > 0 || out.Failed > 0 {
		status = http.StatusAccepted
	}
	response.RespondStatus(c, status, out)
}

func isBatch(body []byte) bool {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return false
	}
	_, ok := envelope["events"]
	return ok
}

type rewindPayload struct {
	ID              string   `json:"id"`
	FromTime        float64  `json:"fromTime"`
	ToTime          float64  `json:"toTime"`
	RewindAmount    *float64 `json:"rewindAmount"`
	FromConceptID   string   `json:"fromConceptId"`
	FromConceptName string   `json:"fromConceptName"`
	ToConceptID     string   `json:"toConceptId"`
	ToConceptName   string   `json:"toConceptName"`
	Timestamp       float64  `json:"timestamp"`
}

type trackRewindRequest struct {
	UserID               string         `json:"userId"`
	PseudonymID          string         `json:"pseudonymId"`
	TrainingSessionID    string         `json:"trainingSessionId"`
	TrainingSessionTitle string         `json:"trainingSessionTitle"`
	TrainingProgramID    string         `json:"trainingProgramId"`
	RewindEvent          *rewindPayload `json:"rewindEvent"`
}

// POST /api/analytics/rewind
//
// Dashboard clients that predate /api/events post rewinds here. Events
// without an id get one.
func (h *EventHandler) TrackRewind(c *gin.Context) {
	var req trackRewindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.TrainingSessionID) == "" || req.RewindEvent == nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("missing required fields"))
		return
	}

	rw := req.RewindEvent
	ev := playback.Event{
		ID:           strings.TrimSpace(rw.ID),
		TraineeID:    req.UserID,
		PseudonymID:  req.PseudonymID,
		ProgramID:    req.TrainingProgramID,
		SessionID:    req.TrainingSessionID,
		SessionTitle: req.TrainingSessionTitle,
		Kind:         playback.KindRewind,
		Timestamp:    rw.Timestamp,
		Rewind: &playback.Rewind{
			FromTime:        rw.FromTime,
			ToTime:          rw.ToTime,
			Amount:          rw.RewindAmount,
			FromConceptID:   rw.FromConceptID,
			FromConceptName: rw.FromConceptName,
			ToConceptID:     rw.ToConceptID,
			ToConceptName:   rw.ToConceptName,
		},
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	res, err := h.events.Record(c.Request.Context(), ev)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	status := http.StatusOK
	if res.Degraded() {
		status = http.StatusAccepted
	}
	response.RespondStatus(c, status, gin.H{
		"success": true,
		"message": "Rewind event tracked",
		"result":  res,
	})
}
