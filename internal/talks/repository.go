package talks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-event/backend/internal/models"
)

var (
	ErrTalkNotFound  = errors.New("talk not found")
	ErrInvalidWindow = errors.New("voting window end must be after start")
)

// Repository handles talk persistence. Talks and their slots are written by the
// schedule sync; this service only reads them and manages the voting override.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a talk repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTalk returns a talk with its slots ordered by start time.
func (r *Repository) GetTalk(ctx context.Context, id uuid.UUID) (*models.Talk, error) {
	const q = `SELECT id, title, voting_starts_at, voting_ends_at, created_at, updated_at FROM talks WHERE id = $1`
	var t models.Talk
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Title, &t.VotingStartsAt, &t.VotingEndsAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTalkNotFound
		}
		return nil, err
	}

	const slots = `SELECT starts_at, ends_at FROM talk_slots WHERE talk_id = $1 ORDER BY starts_at NULLS LAST, id`
	rows, err := r.pool.Query(ctx, slots, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	t.Slots = []models.TalkSlot{}
	for rows.Next() {
		var s models.TalkSlot
		if err := rows.Scan(&s.StartsAt, &s.EndsAt); err != nil {
			return nil, err
		}
		t.Slots = append(t.Slots, s)
	}
	return &t, rows.Err()
}

// SetVotingWindow stores an admin override of the voting window.
func (r *Repository) SetVotingWindow(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidWindow
	}
	const q = `UPDATE talks SET voting_starts_at = $1, voting_ends_at = $2, updated_at = NOW() WHERE id = $3`
	return r.exec(ctx, q, start, end, id)
}

// ClearVotingWindow removes the override so the schedule default applies again.
func (r *Repository) ClearVotingWindow(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE talks SET voting_starts_at = NULL, voting_ends_at = NULL, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, q, id)
}

func (r *Repository) exec(ctx context.Context, q string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTalkNotFound
	}
	return nil
}
