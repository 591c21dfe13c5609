package engagement

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/middleware"
	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/response"
)

// RankingQuery is the query string for GET /ranking.
type RankingQuery struct {
	Name           string `form:"name"`
	Email          string `form:"email"`
	Role           string `form:"role"`
	TalkID         string `form:"talk_id"`
	Premiated      string `form:"premiated"`
	MinFeedbacks   int    `form:"min_feedbacks"`
	MinVotes       int    `form:"min_votes"`
	MinAttendances int    `form:"min_attendances"`
	MinQuizScore   int    `form:"min_quiz_score"`
}

// Filter converts the query into a ranking filter.
func (q RankingQuery) Filter() (Filter, error) {
	f := Filter{
		NameContains:   q.Name,
		EmailContains:  q.Email,
		Role:           models.Role(q.Role),
		Premiated:      PremiatedFilter(q.Premiated),
		MinFeedbacks:   q.MinFeedbacks,
		MinVotes:       q.MinVotes,
		MinAttendances: q.MinAttendances,
		MinQuizScore:   q.MinQuizScore,
	}
	if q.TalkID != "" {
		id, err := uuid.Parse(q.TalkID)
		if err != nil {
			return f, ErrInvalidFilter
		}
		f.TalkID = &id
	}
	return f, nil
}

// Handler handles engagement ranking endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an engagement handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Ranking handles GET /ranking (admin).
func (h *Handler) Ranking(c *gin.Context) {
	var q RankingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query: "+err.Error())
		return
	}
	f, err := q.Filter()
	if err != nil {
		h.writeError(c, err)
		return
	}
	list, err := h.svc.Ranking(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// ForParticipant handles GET /participants/:id/engagement (self or admin).
func (h *Handler) ForParticipant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid participant id")
		return
	}
	score, err := h.svc.ForParticipant(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, score)
}

// RequestExport handles POST /ranking/exports (admin). The body is an optional filter.
func (h *Handler) RequestExport(c *gin.Context) {
	participantID, _, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "missing participant context")
		return
	}
	var f Filter
	if err := c.ShouldBindJSON(&f); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	exp, err := h.svc.RequestExport(c.Request.Context(), participantID, f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, exp)
}

// GetExport handles GET /ranking/exports/:id (admin).
func (h *Handler) GetExport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	exp, err := h.svc.GetExport(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, exp)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidFilter):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrParticipantNotFound), errors.Is(err, ErrExportNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrExportsDisabled):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error("engagement request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
