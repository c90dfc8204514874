package survey

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civiq-care/backend/internal/middleware"
	"github.com/civiq-care/backend/pkg/response"
)

// AnswerRequest is the body for POST /survey/answers.
type AnswerRequest struct {
	Ordinal int `json:"ordinal" binding:"required"`
	Value   int `json:"value" binding:"required"`
}

// Handler exposes the survey engine over HTTP. The authenticated user's ID
// is the session key.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a survey handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Start handles POST /survey/start.
func (h *Handler) Start(c *gin.Context) {
	d, err := h.engine.Start(c.Request.Context(), userID(c))
	if err != nil {
		h.logger.Error("survey start", zap.Error(err))
		response.Internal(c, "failed to start survey")
		return
	}
	response.OK(c, directivePayload(d))
}

// Answer handles POST /survey/answers.
func (h *Handler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.engine.Submit(c.Request.Context(), userID(c), req.Ordinal, req.Value)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.BadRequest(c, "survey not started")
		return
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(c, err.Error())
		return
	case err != nil:
		h.logger.Error("survey answer", zap.Error(err))
		response.Internal(c, "failed to record answer")
		return
	}
	response.OK(c, directivePayload(d))
}

// Cancel handles POST /survey/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	d, err := h.engine.Cancel(c.Request.Context(), userID(c))
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.BadRequest(c, "no survey in progress")
		return
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(c, "survey already completed; use reset to start over")
		return
	case err != nil:
		response.Internal(c, "failed to cancel survey")
		return
	}
	response.OK(c, directivePayload(d))
}

// Reset handles POST /survey/reset.
func (h *Handler) Reset(c *gin.Context) {
	d, err := h.engine.Reset(c.Request.Context(), userID(c))
	if err != nil {
		response.Internal(c, "failed to reset survey")
		return
	}
	response.OK(c, directivePayload(d))
}

// Results handles GET /survey/results.
func (h *Handler) Results(c *gin.Context) {
	d, err := h.engine.Results(c.Request.Context(), userID(c))
	if errors.Is(err, ErrNotCompleted) {
		response.OK(c, gin.H{
			"completed": false,
			"message":   "survey not completed yet; start or finish the questionnaire first",
		})
		return
	}
	if err != nil {
		response.Internal(c, "failed to load results")
		return
	}
	response.OK(c, directivePayload(d))
}

// userID keys sessions by the authenticated user's UUID.
func userID(c *gin.Context) string {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID).String()
}

// directivePayload maps a render directive to a JSON body.
func directivePayload(d Directive) gin.H {
	switch v := d.(type) {
	case Question:
		return gin.H{
			"question": gin.H{
				"ordinal": v.Ordinal,
				"total":   v.Total,
				"text":    v.Text,
				"options": v.Options,
			},
		}
	case AlreadyCompleted:
		return gin.H{
			"already_completed": true,
			"message":           "survey already completed; use reset to start over or fetch your results",
		}
	case CompletionSummary:
		out := gin.H{
			"completed":   true,
			"total_score": v.Score.TotalScore,
			"max_score":   v.Score.MaxScore,
			"percentage":  v.Score.Percentage,
		}
		if v.PersistWarning {
			out["warning"] = "result could not be stored durably yet; it will be retried"
		}
		return out
	case Results:
		return gin.H{
			"completed":   true,
			"answers":     v.Answers,
			"total_score": v.Score.TotalScore,
			"max_score":   v.Score.MaxScore,
			"percentage":  v.Score.Percentage,
		}
	case ResetConfirmation:
		return gin.H{"reset": true}
	case Cancelled:
		return gin.H{"cancelled": true}
	default:
		return gin.H{"message": fmt.Sprintf("unexpected directive %T", d)}
	}
}
