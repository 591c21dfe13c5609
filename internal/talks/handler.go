package talks

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/i18n"
	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/internal/votingwindow"
	"github.com/connect-event/backend/pkg/response"
)

// Store is the talk persistence used by the handler.
type Store interface {
	GetTalk(ctx context.Context, id uuid.UUID) (*models.Talk, error)
	SetVotingWindow(ctx context.Context, id uuid.UUID, start, end time.Time) error
	ClearVotingWindow(ctx context.Context, id uuid.UUID) error
}

// SetWindowRequest is the body for PUT /talks/:id/voting-window.
type SetWindowRequest struct {
	StartsAt time.Time `json:"starts_at" binding:"required"`
	EndsAt   time.Time `json:"ends_at" binding:"required"`
}

// WindowResponse describes a talk's voting window right now.
type WindowResponse struct {
	TalkID         uuid.UUID            `json:"talk_id"`
	VotingStartsAt *time.Time           `json:"voting_starts_at"`
	VotingEndsAt   *time.Time           `json:"voting_ends_at"`
	Effective      *votingwindow.Window `json:"effective"`
	IsDefault      bool                 `json:"is_default"`
	Open           bool                 `json:"open"`
	Reason         string               `json:"reason,omitempty"`
	Message        string               `json:"message"`
}

// Handler handles voting window HTTP endpoints.
type Handler struct {
	repo   Store
	tr     *i18n.Translator
	grace  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a talks handler.
func NewHandler(repo Store, tr *i18n.Translator, grace time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grace < 0 {
		grace = votingwindow.DefaultGrace
	}
	return &Handler{repo: repo, tr: tr, grace: grace, now: time.Now, logger: logger}
}

// GetWindow handles GET /talks/:id/voting-window.
func (h *Handler) GetWindow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid talk id")
		return
	}
	h.respondWindow(c, id)
}

// SetWindow handles PUT /talks/:id/voting-window (admin).
func (h *Handler) SetWindow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid talk id")
		return
	}
	var req SetWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(c, ErrInvalidWindow.Error())
		return
	}
	if err := h.repo.SetVotingWindow(c.Request.Context(), id, req.StartsAt, req.EndsAt); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("voting window set",
		zap.String("talk_id", id.String()),
		zap.Time("starts_at", req.StartsAt),
		zap.Time("ends_at", req.EndsAt),
	)
	h.respondWindow(c, id)
}

// ClearWindow handles DELETE /talks/:id/voting-window (admin).
func (h *Handler) ClearWindow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid talk id")
		return
	}
	if err := h.repo.ClearVotingWindow(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("voting window cleared", zap.String("talk_id", id.String()))
	h.respondWindow(c, id)
}

func (h *Handler) respondWindow(c *gin.Context, id uuid.UUID) {
	t, err := h.repo.GetTalk(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	d := votingwindow.Evaluate(t, h.now(), h.grace)
	res := WindowResponse{
		TalkID:         t.ID,
		VotingStartsAt: t.VotingStartsAt,
		VotingEndsAt:   t.VotingEndsAt,
		Effective:      d.Window,
		IsDefault:      d.Window != nil && d.Window.IsDefault,
		Open:           d.Open,
		Reason:         string(d.Reason.Code),
		Message:        h.tr.WindowReason(c.GetHeader("Accept-Language"), d),
	}
	response.OK(c, res)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTalkNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidWindow):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("talk request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
