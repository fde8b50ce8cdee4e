package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/reviewquiz-backend/internal/services"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

// EventsHandler receives LMS webhook events and fans them into the
// event service. The LMS fires these on flag toggles, attempt
// submission, and quiz view; the handler only validates and delegates.
type EventsHandler struct {
	events services.EventService
}

func NewEventsHandler(events services.EventService) *EventsHandler {
	return &EventsHandler{events: events}
}

type flagEventRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	QuestionID int64  `json:"question_id" binding:"required"`
	Color      string `json:"color"`
	Added      bool   `json:"added"`
	QuizID     int64  `json:"quiz_id"`
}

// POST /api/events/flag
func (h *EventsHandler) FlagChanged(c *gin.Context) {
	var req flagEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Added && req.Color != types.FlagColorBlue && req.Color != types.FlagColorRed {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("unknown flag color %q", req.Color))
		return
	}
	if err := h.events.OnFlagChanged(c.Request.Context(), req.UserID, req.QuestionID, req.Color, req.Added, req.QuizID); err != nil {
		RespondError(c, http.StatusInternalServerError, "flag_event_failed", err)
		return
	}
	RespondOK(c, gin.H{"accepted": true})
}

type attemptEventRequest struct {
	UserID    int64 `json:"user_id" binding:"required"`
	QuizID    int64 `json:"quiz_id" binding:"required"`
	AttemptID int64 `json:"attempt_id" binding:"required"`
}

// POST /api/events/attempt
func (h *EventsHandler) AttemptSubmitted(c *gin.Context) {
	var req attemptEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.events.OnAttemptSubmitted(c.Request.Context(), req.UserID, req.QuizID, req.AttemptID); err != nil {
		RespondError(c, http.StatusInternalServerError, "attempt_event_failed", err)
		return
	}
	RespondAccepted(c, gin.H{"accepted": true})
}

type quizViewEventRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	QuizID int64 `json:"quiz_id" binding:"required"`
}

// POST /api/events/quiz-view
func (h *EventsHandler) QuizViewed(c *gin.Context) {
	var req quizViewEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.events.OnQuizViewed(c.Request.Context(), req.UserID, req.QuizID); err != nil {
		RespondError(c, http.StatusInternalServerError, "quiz_view_event_failed", err)
		return
	}
	RespondOK(c, gin.H{"accepted": true})
}
