package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/response"
	"github.com/connect-event/backend/pkg/utils"
)

// dummyHash is a bcrypt hash at default cost that matches no password.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOa8bQ3gjNbZ2bF4mQ8zJ6n0gq3m2HkQe"

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token       string                   `json:"token"`
	Participant models.ParticipantPublic `json:"participant"`
}

// ParticipantFinder loads participants for login.
type ParticipantFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   ParticipantFinder
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo ParticipantFinder, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	p, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrParticipantNotFound) {
			h.logger.Error("login lookup", zap.Error(err))
		}
		// same bcrypt cost as a real mismatch, so unknown emails are not faster
		utils.CheckPassword(req.Password, dummyHash)
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, p.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(p.ID, p.Email, p.Role)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, Participant: p.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	raw, ok := c.Get("participant_id")
	id, valid := raw.(uuid.UUID)
	if !ok || !valid {
		response.Unauthorized(c, "missing participant context")
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "participant not found")
		return
	}
	response.OK(c, p.ToPublic())
}
