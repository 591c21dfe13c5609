package models

import (
	"time"

	"github.com/google/uuid"
)

// Talk is a scheduled session. Slots come from the registration platform sync;
// VotingStartsAt/VotingEndsAt are an admin override of the voting window.
type Talk struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Slots          []TalkSlot `json:"slots"`
	VotingStartsAt *time.Time `json:"voting_starts_at,omitempty"`
	VotingEndsAt   *time.Time `json:"voting_ends_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TalkSlot is one scheduled time range of a talk. Either bound may be missing.
type TalkSlot struct {
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}
