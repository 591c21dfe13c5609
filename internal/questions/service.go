package questions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/internal/votingwindow"
)

// DefaultVoteBudget is the number of active votes a participant may hold per talk.
const DefaultVoteBudget = 3

// Store persists questions and the vote ledger. AddVote and RemoveVote must change
// the ledger row and the question's vote counter in one atomic unit; the counter is
// never written anywhere else.
type Store interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	// ListByTalk returns questions in ranking order. Empty statuses means all.
	ListByTalk(ctx context.Context, talkID uuid.UUID, statuses []models.QuestionStatus) ([]models.Question, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Question, error)
	// UpdateStatus moves id from one status to another and fails with ErrStatusChanged
	// if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.QuestionStatus) error
	SetAnswer(ctx context.Context, id uuid.UUID, answer, answererName string, at time.Time) error
	// DeleteQuestion removes the question together with its ledger rows.
	DeleteQuestion(ctx context.Context, id uuid.UUID) error

	HasVote(ctx context.Context, participantID, questionID uuid.UUID) (bool, error)
	CountVotes(ctx context.Context, participantID, talkID uuid.UUID) (int, error)
	VotedQuestionIDs(ctx context.Context, participantID, talkID uuid.UUID) ([]uuid.UUID, error)
	// AddVote inserts the ledger row and increments the counter. It re-checks budget
	// inside the unit and returns ErrVoteBudgetExceeded or ErrVoteConflict.
	AddVote(ctx context.Context, participantID, questionID, talkID uuid.UUID, budget int) error
	// RemoveVote deletes the ledger row and decrements the counter, or returns ErrVoteNotFound.
	RemoveVote(ctx context.Context, participantID, questionID uuid.UUID) error

	StatsByParticipants(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID]models.QuestionStats, error)
}

// TalkLookup loads the talk snapshot the voting window is evaluated against.
type TalkLookup interface {
	GetTalk(ctx context.Context, id uuid.UUID) (*models.Talk, error)
}

// Actor is the authenticated caller.
type Actor struct {
	ParticipantID uuid.UUID
	Role          models.Role
}

// IsAdmin reports whether the actor may moderate.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// IsStaff reports whether the actor may answer and see unmoderated questions.
func (a Actor) IsStaff() bool { return a.Role == models.RoleAdmin || a.Role == models.RoleSpeaker }

// Action is the outcome of a vote toggle.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
)

// QuestionView is a question as returned to clients. VotedByMe is set only for
// authenticated callers and is derived from the ledger.
type QuestionView struct {
	models.Question
	Answered  bool  `json:"answered"`
	VotedByMe *bool `json:"voted_by_me,omitempty"`
}

// ToggleResult is returned by ToggleVote.
type ToggleResult struct {
	Action   Action        `json:"action"`
	Question *QuestionView `json:"question"`
}

// SubmitInput is the data needed to submit a question.
type SubmitInput struct {
	TalkID uuid.UUID
	Text   string
}

// AnswerInput is the data needed to answer a question.
type AnswerInput struct {
	Answer       string
	AnswererName string
}

// Options tunes the engine. Zero values fall back to defaults; a nil Grace
// means votingwindow.DefaultGrace, a zero one closes at the end of the slot.
type Options struct {
	VoteBudget int
	Grace      *time.Duration
	Clock      func() time.Time
}

// Service implements question submission, voting, moderation and ranking.
type Service struct {
	store  Store
	talks  TalkLookup
	budget int
	grace  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates the question service.
func NewService(store Store, talks TalkLookup, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.VoteBudget <= 0 {
		opts.VoteBudget = DefaultVoteBudget
	}
	grace := votingwindow.DefaultGrace
	if opts.Grace != nil && *opts.Grace >= 0 {
		grace = *opts.Grace
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		store:  store,
		talks:  talks,
		budget: opts.VoteBudget,
		grace:  grace,
		now:    opts.Clock,
		logger: logger,
	}
}

// VoteBudget returns the per-talk vote limit.
func (s *Service) VoteBudget() int { return s.budget }

// Submit creates a pending question for the actor on a talk whose window is open.
func (s *Service) Submit(ctx context.Context, in SubmitInput, actor Actor) (*QuestionView, error) {
	text := strings.TrimSpace(in.Text)
	switch {
	case text == "":
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	case actor.ParticipantID == uuid.Nil:
		return nil, fmt.Errorf("%w: participant is required", ErrInvalidInput)
	case in.TalkID == uuid.Nil:
		return nil, fmt.Errorf("%w: talk is required", ErrInvalidInput)
	}

	talk, err := s.talks.GetTalk(ctx, in.TalkID)
	if err != nil {
		return nil, err
	}
	if d := votingwindow.Evaluate(talk, s.now(), s.grace); !d.Open {
		return nil, &WindowClosedError{Decision: d}
	}

	q := &models.Question{
		TalkID:        in.TalkID,
		ParticipantID: actor.ParticipantID,
		Text:          text,
		Status:        models.QuestionPending,
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	s.logger.Info("question submitted",
		zap.String("question_id", q.ID.String()),
		zap.String("talk_id", q.TalkID.String()),
		zap.String("participant_id", q.ParticipantID.String()),
	)
	return s.view(q, nil), nil
}

// Get returns one question. Questions hidden by moderation are visible only to
// their author and to staff.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor *Actor) (*QuestionView, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.Visible() && (actor == nil || (!actor.IsStaff() && actor.ParticipantID != q.ParticipantID)) {
		return nil, ErrQuestionNotFound
	}
	var voted *bool
	if actor != nil {
		has, err := s.store.HasVote(ctx, actor.ParticipantID, id)
		if err != nil {
			return nil, fmt.Errorf("load vote: %w", err)
		}
		voted = &has
	}
	return s.view(q, voted), nil
}

// List returns the ranked questions of a talk. Participants only ever see
// approved and premiated questions; staff may filter by any status or pass nil for all.
func (s *Service) List(ctx context.Context, talkID uuid.UUID, filter *models.QuestionStatus, actor *Actor) ([]QuestionView, error) {
	var statuses []models.QuestionStatus
	switch {
	case actor != nil && actor.IsStaff():
		if filter != nil {
			statuses = []models.QuestionStatus{*filter}
		}
	case filter != nil:
		if !filter.Visible() {
			return nil, ErrNotAdmin
		}
		statuses = []models.QuestionStatus{*filter}
	default:
		statuses = []models.QuestionStatus{models.QuestionApproved, models.QuestionPremiated}
	}

	if _, err := s.talks.GetTalk(ctx, talkID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByTalk(ctx, talkID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	SortRanking(list)

	var voted map[uuid.UUID]bool
	if actor != nil {
		ids, err := s.store.VotedQuestionIDs(ctx, actor.ParticipantID, talkID)
		if err != nil {
			return nil, fmt.Errorf("load votes: %w", err)
		}
		voted = make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			voted[id] = true
		}
	}

	out := make([]QuestionView, 0, len(list))
	for i := range list {
		var mine *bool
		if voted != nil {
			v := voted[list[i].ID]
			mine = &v
		}
		out = append(out, *s.view(&list[i], mine))
	}
	return out, nil
}

// ListByParticipant returns every question the participant authored, newest first.
func (s *Service) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]QuestionView, error) {
	list, err := s.store.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list participant questions: %w", err)
	}
	out := make([]QuestionView, 0, len(list))
	for i := range list {
		out = append(out, *s.view(&list[i], nil))
	}
	return out, nil
}

// ToggleVote adds the actor's vote to a question, or removes it if already present.
//
// Checks run in order: question exists, not the author, window open. Adding further
// requires a visible question and a free budget slot, checked atomically by the store. A duplicate insert lost to a
// concurrent request is treated as already added, and a row removed concurrently
// as already removed, so the counter never moves twice.
func (s *Service) ToggleVote(ctx context.Context, questionID uuid.UUID, actor Actor) (*ToggleResult, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.ParticipantID == actor.ParticipantID {
		return nil, ErrSelfVote
	}
	talk, err := s.talks.GetTalk(ctx, q.TalkID)
	if err != nil {
		return nil, err
	}
	if d := votingwindow.Evaluate(talk, s.now(), s.grace); !d.Open {
		s.logger.Debug("vote rejected, window closed",
			zap.String("question_id", questionID.String()),
			zap.String("reason", string(d.Reason.Code)),
		)
		return nil, &WindowClosedError{Decision: d}
	}

	present, err := s.store.HasVote(ctx, actor.ParticipantID, questionID)
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}

	var action Action
	if present {
		action = ActionRemoved
		err = s.store.RemoveVote(ctx, actor.ParticipantID, questionID)
		if errors.Is(err, ErrVoteNotFound) {
			s.logger.Info("vote already removed concurrently",
				zap.String("question_id", questionID.String()),
				zap.String("participant_id", actor.ParticipantID.String()),
			)
			err = nil
		}
	} else {
		action = ActionAdded
		if !q.Status.Visible() {
			return nil, ErrNotVotable
		}
		// AddVote checks the pair and then the budget under a per-talk lock, so a
		// duplicate that lost the race reports a conflict rather than a full budget.
		err = s.store.AddVote(ctx, actor.ParticipantID, questionID, q.TalkID, s.budget)
		if errors.Is(err, ErrVoteConflict) {
			s.logger.Info("vote already added concurrently",
				zap.String("question_id", questionID.String()),
				zap.String("participant_id", actor.ParticipantID.String()),
			)
			err = nil
		}
	}
	if err != nil {
		if errors.Is(err, ErrVoteBudgetExceeded) || errors.Is(err, ErrQuestionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("toggle vote: %w", err)
	}

	fresh, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	mine := action == ActionAdded
	s.logger.Info("question vote toggled",
		zap.String("question_id", questionID.String()),
		zap.String("participant_id", actor.ParticipantID.String()),
		zap.String("action", string(action)),
		zap.Int("votes", fresh.Votes),
	)
	return &ToggleResult{Action: action, Question: s.view(fresh, &mine)}, nil
}

// VotesUsed returns how many votes the participant currently holds in a talk.
func (s *Service) VotesUsed(ctx context.Context, participantID, talkID uuid.UUID) (int, error) {
	if _, err := s.talks.GetTalk(ctx, talkID); err != nil {
		return 0, err
	}
	return s.store.CountVotes(ctx, participantID, talkID)
}

// MyVotes returns the ids of the talk's questions the participant voted for.
func (s *Service) MyVotes(ctx context.Context, participantID, talkID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.talks.GetTalk(ctx, talkID); err != nil {
		return nil, err
	}
	return s.store.VotedQuestionIDs(ctx, participantID, talkID)
}

// Moderate moves a question to a new status. Admin only.
func (s *Service) Moderate(ctx context.Context, id uuid.UUID, to models.QuestionStatus, actor Actor) (*QuestionView, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, q.Status, to)
	}
	if err := s.store.UpdateStatus(ctx, id, q.Status, to); err != nil {
		return nil, err
	}
	s.logger.Info("question moderated",
		zap.String("question_id", id.String()),
		zap.String("from", string(q.Status)),
		zap.String("to", string(to)),
		zap.String("admin_id", actor.ParticipantID.String()),
	)
	fresh, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(fresh, nil), nil
}

// Answer records the speaker's answer. Admin or speaker only.
func (s *Service) Answer(ctx context.Context, id uuid.UUID, in AnswerInput, actor Actor) (*QuestionView, error) {
	if !actor.IsStaff() {
		return nil, ErrAnswerForbidden
	}
	answer := strings.TrimSpace(in.Answer)
	name := strings.TrimSpace(in.AnswererName)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: answerer name is required", ErrInvalidInput)
	}
	if _, err := s.store.GetQuestion(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.SetAnswer(ctx, id, answer, name, s.now()); err != nil {
		return nil, err
	}
	fresh, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(fresh, nil), nil
}

// Delete removes a question and its votes. Admins may delete any question,
// authors only their own while it is still pending.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && (q.ParticipantID != actor.ParticipantID || q.Status != models.QuestionPending) {
		return ErrDeleteForbidden
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.logger.Info("question deleted",
		zap.String("question_id", id.String()),
		zap.String("actor_id", actor.ParticipantID.String()),
	)
	return nil
}

// StatsByParticipants returns question totals per author for the engagement ranking.
// Participants without questions are absent from the map.
func (s *Service) StatsByParticipants(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID]models.QuestionStats, error) {
	if len(participantIDs) == 0 {
		return map[uuid.UUID]models.QuestionStats{}, nil
	}
	return s.store.StatsByParticipants(ctx, participantIDs)
}

func (s *Service) view(q *models.Question, votedByMe *bool) *QuestionView {
	return &QuestionView{Question: *q, Answered: q.IsAnswered(), VotedByMe: votedByMe}
}

// SortRanking orders questions by votes descending, then oldest first, then id.
func SortRanking(list []models.Question) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
