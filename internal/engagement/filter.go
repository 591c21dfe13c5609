package engagement

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/connect-event/backend/internal/models"
)

// PremiatedFilter selects participants by whether they authored a premiated question.
type PremiatedFilter string

const (
	PremiatedAll  PremiatedFilter = "all"
	PremiatedOnly PremiatedFilter = "premiated"
	PremiatedNone PremiatedFilter = "not_premiated"
)

// Filter narrows the ranking. Zero values mean no restriction.
type Filter struct {
	NameContains   string          `json:"name_contains,omitempty"`
	EmailContains  string          `json:"email_contains,omitempty"`
	Role           models.Role     `json:"role,omitempty"`
	TalkID         *uuid.UUID      `json:"talk_id,omitempty"`
	Premiated      PremiatedFilter `json:"premiated,omitempty"`
	MinFeedbacks   int             `json:"min_feedbacks,omitempty"`
	MinVotes       int             `json:"min_votes,omitempty"`
	MinAttendances int             `json:"min_attendances,omitempty"`
	MinQuizScore   int             `json:"min_quiz_score,omitempty"`
}

// Keep reports whether a fully computed score passes the non-SQL parts of the filter.
func (f Filter) Keep(s *models.EngagementScore) bool {
	switch f.Premiated {
	case PremiatedOnly:
		if s.Premiated == 0 {
			return false
		}
	case PremiatedNone:
		if s.Premiated > 0 {
			return false
		}
	}
	return s.Feedbacks >= f.MinFeedbacks &&
		s.VotesReceived >= f.MinVotes &&
		s.Attendances >= f.MinAttendances &&
		s.QuizScore >= f.MinQuizScore
}

// Validate normalizes f and rejects unknown values.
func (f *Filter) Validate() error {
	f.NameContains = strings.TrimSpace(f.NameContains)
	f.EmailContains = strings.TrimSpace(f.EmailContains)
	switch f.Premiated {
	case "":
		f.Premiated = PremiatedAll
	case PremiatedAll, PremiatedOnly, PremiatedNone:
	default:
		return fmt.Errorf("%w: premiated must be all, premiated or not_premiated", ErrInvalidFilter)
	}
	switch f.Role {
	case "", models.RoleAdmin, models.RoleSpeaker, models.RoleParticipant:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidFilter, f.Role)
	}
	if f.MinFeedbacks < 0 || f.MinVotes < 0 || f.MinAttendances < 0 || f.MinQuizScore < 0 {
		return fmt.Errorf("%w: minimums must not be negative", ErrInvalidFilter)
	}
	return nil
}
