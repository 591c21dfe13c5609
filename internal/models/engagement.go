package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EngagementScore is one participant's row in the raffle ranking.
type EngagementScore struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	Feedbacks     int       `json:"feedbacks"`
	Attendances   int       `json:"attendances"`
	Questions     int       `json:"questions"`
	Premiated     int       `json:"premiated_questions"`
	VotesReceived int       `json:"votes_received"`
	QuizScore     int       `json:"quiz_score"`
	ScoreTotal    int       `json:"score_total"`
}

// ExportStatus is the lifecycle of a ranking export job.
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// RankingExport records a CSV export of the engagement ranking stored in S3.
type RankingExport struct {
	ID          uuid.UUID       `json:"id"`
	RequestedBy uuid.UUID       `json:"requested_by"`
	Status      ExportStatus    `json:"status"`
	Filter      json.RawMessage `json:"filter"`
	S3Key       *string         `json:"s3_key,omitempty"`
	Rows        int             `json:"rows"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	// DownloadURL is a short-lived presigned link, filled for completed exports on read.
	DownloadURL string `json:"download_url,omitempty"`
}
