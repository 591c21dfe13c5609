package questions

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/i18n"
	"github.com/connect-event/backend/internal/middleware"
	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/internal/talks"
	"github.com/connect-event/backend/pkg/response"
)

// SubmitRequest is the body for POST /talks/:id/questions.
type SubmitRequest struct {
	Text string `json:"text" binding:"required"`
}

// ModerateRequest is the body for PATCH /questions/:id/status.
type ModerateRequest struct {
	Status string `json:"status" binding:"required"`
}

// AnswerRequest is the body for PUT /questions/:id/answer.
type AnswerRequest struct {
	Answer       string `json:"answer" binding:"required"`
	AnswererName string `json:"answerer_name" binding:"required"`
}

// VotesSummary is the response for GET /talks/:id/votes/me.
type VotesSummary struct {
	Used        int         `json:"used"`
	Remaining   int         `json:"remaining"`
	Limit       int         `json:"limit"`
	QuestionIDs []uuid.UUID `json:"question_ids"`
}

// windowClosedBody is returned with 403 when the voting window rejects a request.
type windowClosedBody struct {
	Reason   string `json:"reason"`
	Boundary string `json:"boundary,omitempty"`
}

// Handler handles question HTTP endpoints.
type Handler struct {
	svc    *Service
	tr     *i18n.Translator
	logger *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(svc *Service, tr *i18n.Translator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, tr: tr, logger: logger}
}

// Submit handles POST /talks/:id/questions.
func (h *Handler) Submit(c *gin.Context) {
	talkID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid talk id")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.Submit(c.Request.Context(), SubmitInput{TalkID: talkID, Text: req.Text}, *actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, q)
}

// List handles GET /talks/:id/questions?status=.
func (h *Handler) List(c *gin.Context) {
	talkID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid talk id")
		return
	}
	var filter *models.QuestionStatus
	if raw := c.Query("status"); raw != "" {
		s, ok := models.ParseQuestionStatus(raw)
		if !ok {
			response.BadRequest(c, "invalid status")
			return
		}
		filter = &s
	}
	actor, _ := actorFrom(c)
	list, err := h.svc.List(c.Request.Context(), talkID, filter, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// MyVotes handles GET /talks/:id/votes/me.
func (h *Handler) MyVotes(c *gin.Context) {
	talkID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid talk id")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	ids, err := h.svc.MyVotes(c.Request.Context(), actor.ParticipantID, talkID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	limit := h.svc.VoteBudget()
	remaining := limit - len(ids)
	if remaining < 0 {
		remaining = 0
	}
	response.OK(c, VotesSummary{Used: len(ids), Remaining: remaining, Limit: limit, QuestionIDs: ids})
}

// Get handles GET /questions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	actor, _ := actorFrom(c)
	q, err := h.svc.Get(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, q)
}

// ToggleVote handles PUT /questions/:id/vote.
func (h *Handler) ToggleVote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	res, err := h.svc.ToggleVote(c.Request.Context(), id, *actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, res)
}

// Moderate handles PATCH /questions/:id/status (admin).
func (h *Handler) Moderate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	var req ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	to, valid := models.ParseQuestionStatus(req.Status)
	if !valid {
		response.BadRequest(c, "invalid status")
		return
	}
	q, err := h.svc.Moderate(c.Request.Context(), id, to, *actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, q)
}

// Answer handles PUT /questions/:id/answer (admin or speaker).
func (h *Handler) Answer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.Answer(c.Request.Context(), id, AnswerInput{Answer: req.Answer, AnswererName: req.AnswererName}, *actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /questions/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, *actor); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// ListByParticipant handles GET /participants/:id/questions (self or admin).
func (h *Handler) ListByParticipant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid participant id")
		return
	}
	list, err := h.svc.ListByParticipant(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

func actorFrom(c *gin.Context) (*Actor, bool) {
	id, role, ok := middleware.Identity(c)
	if !ok {
		return nil, false
	}
	return &Actor{ParticipantID: id, Role: role}, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	locale := c.GetHeader("Accept-Language")
	var closed *WindowClosedError
	switch {
	case errors.As(err, &closed):
		body := windowClosedBody{Reason: string(closed.Decision.Reason.Code)}
		if !closed.Decision.Reason.Boundary.IsZero() {
			body.Boundary = closed.Decision.Reason.Boundary.UTC().Format(time.RFC3339)
		}
		response.Fail(c, http.StatusForbidden, h.tr.WindowReason(locale, closed.Decision), body)
	case errors.Is(err, ErrQuestionNotFound):
		response.NotFound(c, h.tr.T(locale, i18n.KeyQuestionNotFound, nil))
	case errors.Is(err, talks.ErrTalkNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSelfVote):
		response.Forbidden(c, h.tr.T(locale, i18n.KeySelfVote, nil))
	case errors.Is(err, ErrNotVotable):
		response.Forbidden(c, h.tr.T(locale, i18n.KeyNotVotable, nil))
	case errors.Is(err, ErrNotAdmin), errors.Is(err, ErrAnswerForbidden), errors.Is(err, ErrDeleteForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrVoteBudgetExceeded):
		response.BadRequest(c, h.tr.Plural(locale, i18n.KeyVoteBudgetExceeded, h.svc.VoteBudget()))
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusChanged):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("question request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.Internal(c, "internal error")
	}
}
