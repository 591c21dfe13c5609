package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/queue"
)

type fakeStore struct {
	activity []models.EngagementScore
	exports  map[uuid.UUID]*models.RankingExport
	lastList Filter
}

func newFakeStore(activity ...models.EngagementScore) *fakeStore {
	return &fakeStore{activity: activity, exports: make(map[uuid.UUID]*models.RankingExport)}
}

func (f *fakeStore) ListActivity(_ context.Context, filter Filter) ([]models.EngagementScore, error) {
	f.lastList = filter
	out := make([]models.EngagementScore, len(f.activity))
	copy(out, f.activity)
	return out, nil
}

func (f *fakeStore) GetActivity(_ context.Context, id uuid.UUID) (*models.EngagementScore, error) {
	for _, s := range f.activity {
		if s.ParticipantID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrParticipantNotFound
}

func (f *fakeStore) CreateExport(_ context.Context, requestedBy uuid.UUID, filter Filter) (*models.RankingExport, error) {
	raw, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	exp := &models.RankingExport{ID: uuid.New(), RequestedBy: requestedBy, Status: models.ExportPending, Filter: raw}
	f.exports[exp.ID] = exp
	cp := *exp
	return &cp, nil
}

func (f *fakeStore) GetExport(_ context.Context, id uuid.UUID) (*models.RankingExport, error) {
	exp, ok := f.exports[id]
	if !ok {
		return nil, ErrExportNotFound
	}
	cp := *exp
	return &cp, nil
}

func (f *fakeStore) CompleteExport(_ context.Context, id uuid.UUID, key string, rows int) error {
	exp, ok := f.exports[id]
	if !ok {
		return ErrExportNotFound
	}
	exp.Status, exp.S3Key, exp.Rows = models.ExportCompleted, &key, rows
	return nil
}

func (f *fakeStore) FailExport(_ context.Context, id uuid.UUID, reason string) error {
	exp, ok := f.exports[id]
	if !ok {
		return ErrExportNotFound
	}
	exp.Status, exp.Error = models.ExportFailed, &reason
	return nil
}

type fakeQuestions map[uuid.UUID]models.QuestionStats

func (f fakeQuestions) StatsByParticipants(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.QuestionStats, error) {
	out := make(map[uuid.UUID]models.QuestionStats)
	for _, id := range ids {
		if s, ok := f[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type fakeEnqueuer struct {
	err      error
	payloads []queue.RankingExportPayload
}

func (f *fakeEnqueuer) EnqueueRankingExport(_ context.Context, p queue.RankingExportPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type fakePresigner struct{}

func (fakePresigner) PresignExport(_ context.Context, key string) (string, error) {
	return "https://exports.example.com/" + key + "?sig=abc", nil
}

var (
	ana   = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bruno = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carla = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

func activity() []models.EngagementScore {
	return []models.EngagementScore{
		{ParticipantID: ana, FullName: "Ana", Role: models.RoleParticipant, Feedbacks: 2, Attendances: 3, QuizScore: 1},
		{ParticipantID: bruno, FullName: "bruno", Role: models.RoleParticipant, Feedbacks: 1, Attendances: 1},
		{ParticipantID: carla, FullName: "Carla", Role: models.RoleSpeaker, Attendances: 5},
	}
}

func stats() fakeQuestions {
	return fakeQuestions{
		bruno: {Questions: 2, Premiated: 1, VotesReceived: 4},
		carla: {Questions: 1, VotesReceived: 0},
	}
}

func TestRankingScoresAndOrder(t *testing.T) {
	svc := NewService(newFakeStore(activity()...), stats(), nil, nil, nil)

	list, err := svc.Ranking(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, list, 3)

	// bruno: 1+1+2+4 = 8, carla: 5+1 = 6, ana: 2+3+1 = 6
	assert.Equal(t, bruno, list[0].ParticipantID)
	assert.Equal(t, 8, list[0].ScoreTotal)
	assert.Equal(t, 1, list[0].Premiated)
	assert.Equal(t, ana, list[1].ParticipantID, "ties are broken by name")
	assert.Equal(t, carla, list[2].ParticipantID)
	assert.Equal(t, 6, list[1].ScoreTotal)
	assert.Equal(t, 6, list[2].ScoreTotal)
}

func TestRankingFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []uuid.UUID
	}{
		{name: "premiated only", filter: Filter{Premiated: PremiatedOnly}, want: []uuid.UUID{bruno}},
		{name: "not premiated", filter: Filter{Premiated: PremiatedNone}, want: []uuid.UUID{ana, carla}},
		{name: "min votes", filter: Filter{MinVotes: 1}, want: []uuid.UUID{bruno}},
		{name: "min attendances", filter: Filter{MinAttendances: 3}, want: []uuid.UUID{ana, carla}},
		{name: "min feedbacks and quiz", filter: Filter{MinFeedbacks: 1, MinQuizScore: 1}, want: []uuid.UUID{ana}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFakeStore(activity()...), stats(), nil, nil, nil)
			list, err := svc.Ranking(context.Background(), tt.filter)
			require.NoError(t, err)
			var got []uuid.UUID
			for _, s := range list {
				got = append(got, s.ParticipantID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRankingValidatesFilter(t *testing.T) {
	store := newFakeStore(activity()...)
	svc := NewService(store, stats(), nil, nil, nil)

	_, err := svc.Ranking(context.Background(), Filter{Premiated: "sometimes"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = svc.Ranking(context.Background(), Filter{Role: "guest"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = svc.Ranking(context.Background(), Filter{MinVotes: -1})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.Ranking(context.Background(), Filter{NameContains: "  ana "})
	require.NoError(t, err)
	assert.Equal(t, "ana", store.lastList.NameContains)
	assert.Equal(t, PremiatedAll, store.lastList.Premiated)
}

func TestRankingEmpty(t *testing.T) {
	svc := NewService(newFakeStore(), stats(), nil, nil, nil)
	list, err := svc.Ranking(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestForParticipant(t *testing.T) {
	svc := NewService(newFakeStore(activity()...), stats(), nil, nil, nil)

	score, err := svc.ForParticipant(context.Background(), bruno)
	require.NoError(t, err)
	assert.Equal(t, 8, score.ScoreTotal)
	assert.Equal(t, 2, score.Questions)

	_, err = svc.ForParticipant(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestRequestExport(t *testing.T) {
	store := newFakeStore(activity()...)
	enq := &fakeEnqueuer{}
	svc := NewService(store, stats(), enq, fakePresigner{}, nil)
	admin := uuid.New()

	exp, err := svc.RequestExport(context.Background(), admin, Filter{MinVotes: 2})
	require.NoError(t, err)
	assert.Equal(t, models.ExportPending, exp.Status)
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, exp.ID, enq.payloads[0].ExportID)

	f, err := ExportFilter(exp)
	require.NoError(t, err)
	assert.Equal(t, 2, f.MinVotes)
	assert.Equal(t, PremiatedAll, f.Premiated)

	got, err := svc.GetExport(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DownloadURL)

	require.NoError(t, svc.CompleteExport(context.Background(), exp.ID, "exports/ranking/x.csv", 3))
	got, err = svc.GetExport(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportCompleted, got.Status)
	assert.Equal(t, "https://exports.example.com/exports/ranking/x.csv?sig=abc", got.DownloadURL)

	_, err = svc.GetExport(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrExportNotFound)
}

func TestRequestExportEnqueueFailure(t *testing.T) {
	store := newFakeStore(activity()...)
	svc := NewService(store, stats(), &fakeEnqueuer{err: errors.New("redis down")}, nil, nil)

	_, err := svc.RequestExport(context.Background(), uuid.New(), Filter{})
	require.Error(t, err)
	require.Len(t, store.exports, 1)
	for _, exp := range store.exports {
		assert.Equal(t, models.ExportFailed, exp.Status)
	}
}

func TestRequestExportDisabled(t *testing.T) {
	svc := NewService(newFakeStore(), stats(), nil, nil, nil)
	_, err := svc.RequestExport(context.Background(), uuid.New(), Filter{})
	assert.ErrorIs(t, err, ErrExportsDisabled)
}

func TestExportFilterEmpty(t *testing.T) {
	f, err := ExportFilter(&models.RankingExport{})
	require.NoError(t, err)
	assert.Equal(t, Filter{}, f)

	_, err = ExportFilter(&models.RankingExport{Filter: json.RawMessage(`{"min_votes":`)})
	assert.Error(t, err)
}
