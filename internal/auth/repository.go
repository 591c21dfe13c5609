package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/utils"
)

// ErrParticipantNotFound is returned when no participant matches.
var ErrParticipantNotFound = errors.New("participant not found")

// Repository reads participants for authentication.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const participantColumns = `id, email, password_hash, full_name, role, created_at`

func (r *Repository) getOne(ctx context.Context, where string, arg interface{}) (*models.Participant, error) {
	var p models.Participant
	err := r.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE `+where, arg).
		Scan(&p.ID, &p.Email, &p.Password, &p.FullName, &p.Role, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByID returns a participant by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByEmail returns a participant by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	return r.getOne(ctx, `lower(email) = $1`, utils.NormalizeEmail(email))
}
