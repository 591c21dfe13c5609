package engagement

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/connect-event/backend/internal/models"
)

var csvHeader = []string{
	"position", "participant_id", "full_name", "email", "role",
	"feedbacks", "attendances", "questions", "premiated_questions", "votes_received", "quiz_score", "score_total",
}

// WriteCSV renders a ranking in the order given, one row per participant.
func WriteCSV(w io.Writer, scores []models.EngagementScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, s := range scores {
		record := []string{
			strconv.Itoa(i + 1),
			s.ParticipantID.String(),
			safeCell(s.FullName),
			safeCell(s.Email),
			string(s.Role),
			strconv.Itoa(s.Feedbacks),
			strconv.Itoa(s.Attendances),
			strconv.Itoa(s.Questions),
			strconv.Itoa(s.Premiated),
			strconv.Itoa(s.VotesReceived),
			strconv.Itoa(s.QuizScore),
			strconv.Itoa(s.ScoreTotal),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// safeCell keeps spreadsheet applications from reading free text as a formula.
func safeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
