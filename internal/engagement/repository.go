package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-event/backend/internal/models"
)

// Repository reads activity counters and stores ranking export jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an engagement repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// activitySelect counts feedbacks, attendances (optionally for one talk, $1) and quiz points.
const activitySelect = `SELECT p.id, p.full_name, p.email, p.role,
		(SELECT COUNT(*) FROM feedbacks f WHERE f.participant_id = p.id),
		(SELECT COUNT(*) FROM attendances a WHERE a.participant_id = p.id AND ($1::uuid IS NULL OR a.talk_id = $1)),
		(SELECT COALESCE(SUM(qa.points), 0) FROM quiz_attempts qa WHERE qa.participant_id = p.id)
	FROM participants p`

func scanActivity(row pgx.Row, s *models.EngagementScore) error {
	return row.Scan(&s.ParticipantID, &s.FullName, &s.Email, &s.Role, &s.Feedbacks, &s.Attendances, &s.QuizScore)
}

// ListActivity returns participants matching the name, email and role filters with
// their non-question counters.
func (r *Repository) ListActivity(ctx context.Context, f Filter) ([]models.EngagementScore, error) {
	query := activitySelect + ` WHERE ($2 = '' OR p.full_name ILIKE '%' || $2 || '%' ESCAPE '\')
		AND ($3 = '' OR p.email ILIKE '%' || $3 || '%' ESCAPE '\')
		AND ($4 = '' OR p.role = $4)
		ORDER BY p.full_name, p.id`
	rows, err := r.pool.Query(ctx, query, f.TalkID, escapeLike(f.NameContains), escapeLike(f.EmailContains), string(f.Role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EngagementScore
	for rows.Next() {
		var s models.EngagementScore
		if err := scanActivity(rows, &s); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetActivity returns one participant's non-question counters.
func (r *Repository) GetActivity(ctx context.Context, participantID uuid.UUID) (*models.EngagementScore, error) {
	var s models.EngagementScore
	err := scanActivity(r.pool.QueryRow(ctx, activitySelect+` WHERE p.id = $2`, nil, participantID), &s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &s, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes a search term match literally inside a LIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

const exportColumns = `id, requested_by, status, filter, s3_key, row_count, error, created_at, completed_at`

func scanExport(row pgx.Row) (*models.RankingExport, error) {
	var e models.RankingExport
	err := row.Scan(&e.ID, &e.RequestedBy, &e.Status, &e.Filter, &e.S3Key, &e.Rows, &e.Error, &e.CreatedAt, &e.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExportNotFound
		}
		return nil, err
	}
	return &e, nil
}

// CreateExport inserts a pending export with its filter.
func (r *Repository) CreateExport(ctx context.Context, requestedBy uuid.UUID, f Filter) (*models.RankingExport, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	const q = `INSERT INTO ranking_exports (id, requested_by, status, filter)
		VALUES (gen_random_uuid(), $1, 'pending', $2)
		RETURNING ` + exportColumns
	return scanExport(r.pool.QueryRow(ctx, q, requestedBy, raw))
}

// GetExport returns an export by ID.
func (r *Repository) GetExport(ctx context.Context, id uuid.UUID) (*models.RankingExport, error) {
	return scanExport(r.pool.QueryRow(ctx, `SELECT `+exportColumns+` FROM ranking_exports WHERE id = $1`, id))
}

// CompleteExport marks an export as uploaded.
func (r *Repository) CompleteExport(ctx context.Context, id uuid.UUID, key string, rows int) error {
	const q = `UPDATE ranking_exports SET status = 'completed', s3_key = $1, row_count = $2, error = NULL, completed_at = NOW() WHERE id = $3`
	return r.exec(ctx, q, key, rows, id)
}

// FailExport marks an export as failed with a reason.
func (r *Repository) FailExport(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE ranking_exports SET status = 'failed', error = $1, completed_at = NOW() WHERE id = $2`
	return r.exec(ctx, q, reason, id)
}

func (r *Repository) exec(ctx context.Context, q string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExportNotFound
	}
	return nil
}
