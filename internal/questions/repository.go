package questions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-event/backend/internal/models"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a question repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const questionColumns = `q.id, q.talk_id, q.participant_id, COALESCE(p.full_name, ''), q.text, q.status, q.votes,
	q.answer, q.answerer_name, q.answered_at, q.created_at`

const questionFrom = ` FROM questions q LEFT JOIN participants p ON p.id = q.participant_id`

func scanQuestion(row pgx.Row, q *models.Question) error {
	return row.Scan(&q.ID, &q.TalkID, &q.ParticipantID, &q.ParticipantName, &q.Text, &q.Status, &q.Votes,
		&q.Answer, &q.AnswererName, &q.AnsweredAt, &q.CreatedAt)
}

func collectQuestions(rows pgx.Rows) ([]models.Question, error) {
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		var q models.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// CreateQuestion inserts a question with zero votes.
func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	const stmt = `INSERT INTO questions (id, talk_id, participant_id, text, status, votes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 0)
		RETURNING id, votes, created_at`
	err := r.pool.QueryRow(ctx, stmt, q.TalkID, q.ParticipantID, q.Text, q.Status).
		Scan(&q.ID, &q.Votes, &q.CreatedAt)
	if err != nil {
		return err
	}
	const name = `SELECT full_name FROM participants WHERE id = $1`
	if err := r.pool.QueryRow(ctx, name, q.ParticipantID).Scan(&q.ParticipantName); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

// GetQuestion returns a question by ID.
func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	var q models.Question
	err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+questionFrom+` WHERE q.id = $1`, id), &q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return &q, nil
}

// ListByTalk returns a talk's questions in ranking order.
func (r *Repository) ListByTalk(ctx context.Context, talkID uuid.UUID, statuses []models.QuestionStatus) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + questionFrom + ` WHERE q.talk_id = $1`
	args := []interface{}{talkID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND q.status = ANY($2)`
		args = append(args, names)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY q.votes DESC, q.created_at ASC, q.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ListByParticipant returns the participant's questions, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+questionFrom+
		` WHERE q.participant_id = $1 ORDER BY q.created_at DESC, q.id ASC`, participantID)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// UpdateStatus sets the status only if it is still from.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.QuestionStatus) error {
	const stmt = `UPDATE questions SET status = $1 WHERE id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, stmt, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, id, ErrStatusChanged)
	}
	return nil
}

// SetAnswer stores the answer and its author.
func (r *Repository) SetAnswer(ctx context.Context, id uuid.UUID, answer, answererName string, at time.Time) error {
	const stmt = `UPDATE questions SET answer = $1, answerer_name = $2, answered_at = $3 WHERE id = $4`
	tag, err := r.pool.Exec(ctx, stmt, answer, answererName, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// DeleteQuestion removes the question. question_votes rows go with it through ON DELETE CASCADE.
func (r *Repository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// HasVote reports whether the ledger holds a row for the pair.
func (r *Repository) HasVote(ctx context.Context, participantID, questionID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM question_votes WHERE participant_id = $1 AND question_id = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, participantID, questionID).Scan(&exists)
	return exists, err
}

const countVotesQuery = `SELECT COUNT(*) FROM question_votes v
	JOIN questions q ON q.id = v.question_id
	WHERE v.participant_id = $1 AND q.talk_id = $2`

// CountVotes returns the participant's active votes within a talk.
func (r *Repository) CountVotes(ctx context.Context, participantID, talkID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, countVotesQuery, participantID, talkID).Scan(&n)
	return n, err
}

// VotedQuestionIDs returns the talk's questions the participant voted for.
func (r *Repository) VotedQuestionIDs(ctx context.Context, participantID, talkID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT v.question_id FROM question_votes v
		JOIN questions q ON q.id = v.question_id
		WHERE v.participant_id = $1 AND q.talk_id = $2
		ORDER BY v.created_at`
	rows, err := r.pool.Query(ctx, q, participantID, talkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddVote records the vote and bumps the counter in one transaction. A
// transaction-scoped advisory lock on (participant, talk) serializes budget checks
// for the same participant, so parallel votes on different questions cannot
// overshoot the budget.
func (r *Repository) AddVote(ctx context.Context, participantID, questionID, talkID uuid.UUID, budget int) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			participantID.String()+":"+talkID.String()); err != nil {
			return err
		}
		var exists bool
		const existsQuery = `SELECT EXISTS (SELECT 1 FROM question_votes WHERE participant_id = $1 AND question_id = $2)`
		if err := tx.QueryRow(ctx, existsQuery, participantID, questionID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrVoteConflict
		}
		var used int
		if err := tx.QueryRow(ctx, countVotesQuery, participantID, talkID).Scan(&used); err != nil {
			return err
		}
		if used >= budget {
			return ErrVoteBudgetExceeded
		}
		const insert = `INSERT INTO question_votes (id, participant_id, question_id) VALUES (gen_random_uuid(), $1, $2)`
		if _, err := tx.Exec(ctx, insert, participantID, questionID); err != nil {
			switch {
			case isUniqueViolation(err):
				return ErrVoteConflict
			case isForeignKeyViolation(err):
				return ErrQuestionNotFound
			}
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE questions SET votes = votes + 1 WHERE id = $1`, questionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrQuestionNotFound
		}
		return nil
	})
}

// RemoveVote deletes the ledger row and decrements the counter in one transaction.
func (r *Repository) RemoveVote(ctx context.Context, participantID, questionID uuid.UUID) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const del = `DELETE FROM question_votes WHERE participant_id = $1 AND question_id = $2 RETURNING id`
		var id uuid.UUID
		if err := tx.QueryRow(ctx, del, participantID, questionID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrVoteNotFound
			}
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE questions SET votes = votes - 1 WHERE id = $1 AND votes > 0`, questionID)
		return err
	})
}

// StatsByParticipants aggregates authored questions per participant.
func (r *Repository) StatsByParticipants(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID]models.QuestionStats, error) {
	const q = `SELECT participant_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'premiated'),
			COALESCE(SUM(votes), 0)
		FROM questions
		WHERE participant_id = ANY($1)
		GROUP BY participant_id`
	rows, err := r.pool.Query(ctx, q, participantIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]models.QuestionStats)
	for rows.Next() {
		var id uuid.UUID
		var s models.QuestionStats
		if err := rows.Scan(&id, &s.Questions, &s.Premiated, &s.VotesReceived); err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, rows.Err()
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// missingOr returns ErrQuestionNotFound if id no longer exists, otherwise fallback.
func (r *Repository) missingOr(ctx context.Context, id uuid.UUID, fallback error) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrQuestionNotFound
	}
	return fallback
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
