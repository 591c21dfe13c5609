package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatus is the moderation state of a question.
type QuestionStatus string

const (
	QuestionPending   QuestionStatus = "pending"
	QuestionApproved  QuestionStatus = "approved"
	QuestionRejected  QuestionStatus = "rejected"
	QuestionPremiated QuestionStatus = "premiated"
)

// questionTransitions lists the allowed moderation moves. premiated is terminal.
var questionTransitions = map[QuestionStatus][]QuestionStatus{
	QuestionPending:  {QuestionApproved, QuestionRejected},
	QuestionApproved: {QuestionPremiated},
	QuestionRejected: {QuestionApproved},
}

// ParseQuestionStatus returns the status named by s, or false if s is not a known status.
func ParseQuestionStatus(s string) (QuestionStatus, bool) {
	switch QuestionStatus(s) {
	case QuestionPending, QuestionApproved, QuestionRejected, QuestionPremiated:
		return QuestionStatus(s), true
	}
	return "", false
}

// CanTransition reports whether a question in status s may be moved to status to.
func (s QuestionStatus) CanTransition(to QuestionStatus) bool {
	for _, next := range questionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Visible reports whether ordinary participants see questions in this status.
func (s QuestionStatus) Visible() bool {
	return s == QuestionApproved || s == QuestionPremiated
}

// Question is a participant-submitted question attached to a talk.
// Votes is a cache of the question_votes rows referencing it.
type Question struct {
	ID              uuid.UUID      `json:"id"`
	TalkID          uuid.UUID      `json:"talk_id"`
	ParticipantID   uuid.UUID      `json:"participant_id"`
	ParticipantName string         `json:"participant_name"`
	Text            string         `json:"text"`
	Status          QuestionStatus `json:"status"`
	Votes           int            `json:"votes"`
	Answer          *string        `json:"answer,omitempty"`
	AnswererName    *string        `json:"answerer_name,omitempty"`
	AnsweredAt      *time.Time     `json:"answered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// IsAnswered reports whether the question has an answer.
func (q *Question) IsAnswered() bool {
	return q.AnsweredAt != nil
}

// QuestionVote is one ledger row: participant endorses question. Unique per (participant, question).
type QuestionVote struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuestionStats is the per-author question activity consumed by the engagement ranking.
type QuestionStats struct {
	Questions     int `json:"questions"`
	Premiated     int `json:"premiated"`
	VotesReceived int `json:"votes_received"`
}
