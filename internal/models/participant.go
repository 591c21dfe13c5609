package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents participant role in the event.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleSpeaker     Role = "speaker"
	RoleParticipant Role = "participant"
)

// Participant is an event attendee able to log in.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ParticipantPublic is Participant without sensitive fields for API responses.
type ParticipantPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Participant to ParticipantPublic.
func (p *Participant) ToPublic() ParticipantPublic {
	return ParticipantPublic{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
	}
}
