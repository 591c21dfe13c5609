package questions

import (
	"errors"

	"github.com/connect-event/backend/internal/votingwindow"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrSelfVote           = errors.New("cannot vote on own question")
	ErrNotVotable         = errors.New("question is not open for voting")
	ErrVoteBudgetExceeded = errors.New("vote limit per talk reached")
	ErrVoteConflict       = errors.New("vote already recorded")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrNotAdmin           = errors.New("moderation requires admin role")
	ErrAnswerForbidden    = errors.New("answering requires admin or speaker role")
	ErrDeleteForbidden    = errors.New("not allowed to delete this question")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStatusChanged      = errors.New("question status changed concurrently")
)

// WindowClosedError is returned when a talk's voting window rejects a submission or vote.
type WindowClosedError struct {
	Decision votingwindow.Decision
}

func (e *WindowClosedError) Error() string {
	switch e.Decision.Reason.Code {
	case votingwindow.ReasonNotStarted:
		return "voting period has not started yet, starts at " + e.Decision.Reason.Boundary.Format("2006-01-02T15:04:05Z07:00")
	case votingwindow.ReasonEnded:
		return "voting period for this talk has ended"
	}
	return "voting period is closed"
}
