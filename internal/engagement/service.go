// Package engagement computes the participant engagement ranking used for raffles.
package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/queue"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrExportNotFound      = errors.New("ranking export not found")
	ErrInvalidFilter       = errors.New("invalid ranking filter")
	ErrExportsDisabled     = errors.New("ranking exports are not configured")
)

// Store reads activity counters and persists export jobs.
type Store interface {
	ListActivity(ctx context.Context, f Filter) ([]models.EngagementScore, error)
	GetActivity(ctx context.Context, participantID uuid.UUID) (*models.EngagementScore, error)
	CreateExport(ctx context.Context, requestedBy uuid.UUID, f Filter) (*models.RankingExport, error)
	GetExport(ctx context.Context, id uuid.UUID) (*models.RankingExport, error)
	CompleteExport(ctx context.Context, id uuid.UUID, key string, rows int) error
	FailExport(ctx context.Context, id uuid.UUID, reason string) error
}

// QuestionStats supplies per-author question totals in one batch.
type QuestionStats interface {
	StatsByParticipants(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID]models.QuestionStats, error)
}

// Enqueuer schedules export jobs.
type Enqueuer interface {
	EnqueueRankingExport(ctx context.Context, payload queue.RankingExportPayload) error
}

// Presigner issues download links for stored exports.
type Presigner interface {
	PresignExport(ctx context.Context, key string) (string, error)
}

// Service builds the engagement ranking.
type Service struct {
	store     Store
	questions QuestionStats
	enqueuer  Enqueuer
	presigner Presigner
	logger    *zap.Logger
}

// NewService creates the engagement service. enqueuer and presigner may be nil,
// in which case exports are unavailable.
func NewService(store Store, questions QuestionStats, enqueuer Enqueuer, presigner Presigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, questions: questions, enqueuer: enqueuer, presigner: presigner, logger: logger}
}

// Ranking returns scored participants passing f, highest score first, ties by name.
func (s *Service) Ranking(ctx context.Context, f Filter) ([]models.EngagementScore, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	list, err := s.store.ListActivity(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if len(list) == 0 {
		return []models.EngagementScore{}, nil
	}
	ids := make([]uuid.UUID, len(list))
	for i := range list {
		ids[i] = list[i].ParticipantID
	}
	stats, err := s.questions.StatsByParticipants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("question stats: %w", err)
	}

	out := make([]models.EngagementScore, 0, len(list))
	for i := range list {
		score := list[i]
		applyQuestionStats(&score, stats[score.ParticipantID])
		if f.Keep(&score) {
			out = append(out, score)
		}
	}
	SortScores(out)
	return out, nil
}

// ForParticipant returns one participant's score without filters.
func (s *Service) ForParticipant(ctx context.Context, participantID uuid.UUID) (*models.EngagementScore, error) {
	score, err := s.store.GetActivity(ctx, participantID)
	if err != nil {
		return nil, err
	}
	stats, err := s.questions.StatsByParticipants(ctx, []uuid.UUID{participantID})
	if err != nil {
		return nil, fmt.Errorf("question stats: %w", err)
	}
	applyQuestionStats(score, stats[participantID])
	return score, nil
}

// RequestExport records a pending export and queues it for the worker.
func (s *Service) RequestExport(ctx context.Context, requestedBy uuid.UUID, f Filter) (*models.RankingExport, error) {
	if s.enqueuer == nil {
		return nil, ErrExportsDisabled
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	exp, err := s.store.CreateExport(ctx, requestedBy, f)
	if err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	if err := s.enqueuer.EnqueueRankingExport(ctx, queue.RankingExportPayload{ExportID: exp.ID}); err != nil {
		if ferr := s.store.FailExport(ctx, exp.ID, "enqueue failed"); ferr != nil {
			s.logger.Error("mark export failed", zap.String("export_id", exp.ID.String()), zap.Error(ferr))
		}
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	s.logger.Info("ranking export requested",
		zap.String("export_id", exp.ID.String()),
		zap.String("requested_by", requestedBy.String()),
	)
	return exp, nil
}

// GetExport returns an export, with a fresh download link once completed.
func (s *Service) GetExport(ctx context.Context, id uuid.UUID) (*models.RankingExport, error) {
	exp, err := s.store.GetExport(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.Status == models.ExportCompleted && exp.S3Key != nil && s.presigner != nil {
		url, err := s.presigner.PresignExport(ctx, *exp.S3Key)
		if err != nil {
			return nil, fmt.Errorf("presign export: %w", err)
		}
		exp.DownloadURL = url
	}
	return exp, nil
}

// ExportFilter decodes the filter stored with an export.
func ExportFilter(exp *models.RankingExport) (Filter, error) {
	var f Filter
	if len(exp.Filter) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(exp.Filter, &f); err != nil {
		return f, fmt.Errorf("decode export filter: %w", err)
	}
	return f, nil
}

// CompleteExport marks an export as uploaded.
func (s *Service) CompleteExport(ctx context.Context, id uuid.UUID, key string, rows int) error {
	return s.store.CompleteExport(ctx, id, key, rows)
}

// FailExport marks an export as failed.
func (s *Service) FailExport(ctx context.Context, id uuid.UUID, reason string) error {
	return s.store.FailExport(ctx, id, reason)
}

func applyQuestionStats(score *models.EngagementScore, st models.QuestionStats) {
	score.Questions = st.Questions
	score.Premiated = st.Premiated
	score.VotesReceived = st.VotesReceived
	score.ScoreTotal = score.Feedbacks + score.Attendances + score.Questions + score.VotesReceived + score.QuizScore
}

// SortScores orders by total score descending, then name, then id.
func SortScores(list []models.EngagementScore) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		if a.ScoreTotal != b.ScoreTotal {
			return a.ScoreTotal > b.ScoreTotal
		}
		an, bn := strings.ToLower(a.FullName), strings.ToLower(b.FullName)
		if an != bn {
			return an < bn
		}
		return a.ParticipantID.String() < b.ParticipantID.String()
	})
}
