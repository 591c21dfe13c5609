package questions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/internal/talks"
)

type votePair struct {
	participant uuid.UUID
	question    uuid.UUID
}

// memStore is an in-memory Store. Every mutation holds the mutex for its whole
// duration, which gives AddVote and RemoveVote the same all-or-nothing behaviour
// as the Postgres transactions.
type memStore struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*models.Question
	votes     map[votePair]time.Time
	names     map[uuid.UUID]string
	clock     time.Time

	// afterHasVote, when set, runs after HasVote has read the ledger.
	afterHasVote func()
}

func newMemStore() *memStore {
	return &memStore{
		questions: make(map[uuid.UUID]*models.Question),
		votes:     make(map[votePair]time.Time),
		names:     make(map[uuid.UUID]string),
		clock:     time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateQuestion(_ context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = uuid.New()
	q.Votes = 0
	q.CreatedAt = m.tick()
	q.ParticipantName = m.names[q.ParticipantID]
	cp := *q
	m.questions[q.ID] = &cp
	return nil
}

// seed stores q as-is, including its vote count.
func (m *memStore) seed(q models.Question) *models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = m.tick()
	}
	cp := q
	m.questions[q.ID] = &cp
	return &q
}

func (m *memStore) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memStore) ListByTalk(_ context.Context, talkID uuid.UUID, statuses []models.QuestionStatus) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Question
	for _, q := range m.questions {
		if q.TalkID != talkID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, q.Status) {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func containsStatus(list []models.QuestionStatus, s models.QuestionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Question
	for _, q := range m.questions {
		if q.ParticipantID == participantID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.QuestionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return ErrQuestionNotFound
	}
	if q.Status != from {
		return ErrStatusChanged
	}
	q.Status = to
	return nil
}

func (m *memStore) SetAnswer(_ context.Context, id uuid.UUID, answer, answererName string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return ErrQuestionNotFound
	}
	q.Answer = &answer
	q.AnswererName = &answererName
	q.AnsweredAt = &at
	return nil
}

func (m *memStore) DeleteQuestion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return ErrQuestionNotFound
	}
	delete(m.questions, id)
	for k := range m.votes {
		if k.question == id {
			delete(m.votes, k)
		}
	}
	return nil
}

func (m *memStore) HasVote(_ context.Context, participantID, questionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	_, ok := m.votes[votePair{participantID, questionID}]
	hook := m.afterHasVote
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ok, nil
}

func (m *memStore) countLocked(participantID, talkID uuid.UUID) int {
	n := 0
	for k := range m.votes {
		if k.participant != participantID {
			continue
		}
		if q, ok := m.questions[k.question]; ok && q.TalkID == talkID {
			n++
		}
	}
	return n
}

func (m *memStore) CountVotes(_ context.Context, participantID, talkID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(participantID, talkID), nil
}

func (m *memStore) VotedQuestionIDs(_ context.Context, participantID, talkID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uuid.UUID{}
	for k := range m.votes {
		if k.participant != participantID {
			continue
		}
		if q, ok := m.questions[k.question]; ok && q.TalkID == talkID {
			ids = append(ids, k.question)
		}
	}
	return ids, nil
}

func (m *memStore) AddVote(_ context.Context, participantID, questionID, talkID uuid.UUID, budget int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok {
		return ErrQuestionNotFound
	}
	key := votePair{participantID, questionID}
	if _, exists := m.votes[key]; exists {
		return ErrVoteConflict
	}
	if m.countLocked(participantID, talkID) >= budget {
		return ErrVoteBudgetExceeded
	}
	m.votes[key] = m.tick()
	q.Votes++
	return nil
}

func (m *memStore) RemoveVote(_ context.Context, participantID, questionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := votePair{participantID, questionID}
	if _, exists := m.votes[key]; !exists {
		return ErrVoteNotFound
	}
	delete(m.votes, key)
	if q, ok := m.questions[questionID]; ok && q.Votes > 0 {
		q.Votes--
	}
	return nil
}

func (m *memStore) StatsByParticipants(_ context.Context, participantIDs []uuid.UUID) (map[uuid.UUID]models.QuestionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(participantIDs))
	for _, id := range participantIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID]models.QuestionStats)
	for _, q := range m.questions {
		if !want[q.ParticipantID] {
			continue
		}
		s := out[q.ParticipantID]
		s.Questions++
		if q.Status == models.QuestionPremiated {
			s.Premiated++
		}
		s.VotesReceived += q.Votes
		out[q.ParticipantID] = s
	}
	return out, nil
}

// ledgerRows returns how many ledger rows reference questionID.
func (m *memStore) ledgerRows(questionID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.votes {
		if k.question == questionID {
			n++
		}
	}
	return n
}

type memTalks struct {
	talks map[uuid.UUID]*models.Talk
}

func newMemTalks(list ...*models.Talk) *memTalks {
	m := &memTalks{talks: make(map[uuid.UUID]*models.Talk)}
	for _, t := range list {
		m.talks[t.ID] = t
	}
	return m
}

func (m *memTalks) GetTalk(_ context.Context, id uuid.UUID) (*models.Talk, error) {
	t, ok := m.talks[id]
	if !ok {
		return nil, talks.ErrTalkNotFound
	}
	cp := *t
	return &cp, nil
}
