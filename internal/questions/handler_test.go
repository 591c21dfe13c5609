package questions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-event/backend/internal/i18n"
	"github.com/connect-event/backend/internal/middleware"
	"github.com/connect-event/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// newTestRouter mounts the handler behind a stub that sets the caller from
// X-Participant and X-Role, the way the JWT middleware would.
func newTestRouter(f *fixture) *gin.Engine {
	h := NewHandler(f.svc, i18n.NewTranslator("pt-BR", time.UTC, nil), nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Participant"); raw != "" {
			c.Set(middleware.ContextParticipantID, uuid.MustParse(raw))
			c.Set(middleware.ContextRole, models.Role(c.GetHeader("X-Role")))
		}
		c.Next()
	})
	r.POST("/talks/:id/questions", h.Submit)
	r.GET("/talks/:id/questions", h.List)
	r.GET("/talks/:id/votes/me", h.MyVotes)
	r.GET("/questions/:id", h.Get)
	r.PUT("/questions/:id/vote", h.ToggleVote)
	r.PATCH("/questions/:id/status", h.Moderate)
	r.PUT("/questions/:id/answer", h.Answer)
	r.DELETE("/questions/:id", h.Delete)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, actor *Actor, body any, lang string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("X-Participant", actor.ParticipantID.String())
		req.Header.Set("X-Role", string(actor.Role))
	}
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandlerSubmitAndVote(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w, env := do(t, r, http.MethodPost, "/talks/"+f.talk.ID.String()+"/questions", &f.author, SubmitRequest{Text: "What time is lunch?"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var created QuestionView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, models.QuestionPending, created.Status)

	w, _ = do(t, r, http.MethodPatch, "/questions/"+created.ID.String()+"/status", &f.admin, ModerateRequest{Status: "approved"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, r, http.MethodPut, "/questions/"+created.ID.String()+"/vote", &f.voter, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res ToggleResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, ActionAdded, res.Action)
	assert.Equal(t, 1, res.Question.Votes)

	w, env = do(t, r, http.MethodGet, "/talks/"+f.talk.ID.String()+"/votes/me", &f.voter, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary VotesSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, VotesSummary{Used: 1, Remaining: 2, Limit: 3, QuestionIDs: []uuid.UUID{created.ID}}, summary)
}

func TestHandlerWindowClosed(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	q := f.approved(t, "early")
	f.now = windowStart.Add(-time.Minute)

	w, env := do(t, r, http.MethodPut, "/questions/"+q.ID.String()+"/vote", &f.voter, nil, "en")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Voting for this talk has not started yet. It opens at 20/05/2025 10:00.", env.Error)

	var body windowClosedBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "not_started", body.Reason)
	assert.Equal(t, "2025-05-20T10:00:00Z", body.Boundary)

	f.now = windowEnd.Add(time.Minute)
	w, env = do(t, r, http.MethodPut, "/questions/"+q.ID.String()+"/vote", &f.voter, nil, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "O período de votação desta palestra foi encerrado.", env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "ended", body.Reason)
}

func TestHandlerErrorStatuses(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	own := f.approved(t, "own")
	pending := f.store.seed(models.Question{TalkID: f.talk.ID, ParticipantID: f.author.ParticipantID, Text: "p", Status: models.QuestionPending})
	budget := make([]*models.Question, 4)
	for i := range budget {
		budget[i] = f.approved(t, "b")
	}
	for _, q := range budget[:3] {
		w, _ := do(t, r, http.MethodPut, "/questions/"+q.ID.String()+"/vote", &f.voter, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	tests := []struct {
		name    string
		method  string
		path    string
		actor   *Actor
		body    any
		lang    string
		code    int
		message string
	}{
		{
			name: "budget exceeded", method: http.MethodPut, path: "/questions/" + budget[3].ID.String() + "/vote",
			actor: &f.voter, lang: "en", code: http.StatusBadRequest,
			message: "You have already used your 3 votes for this talk. Remove a vote to vote for another question.",
		},
		{
			name: "self vote", method: http.MethodPut, path: "/questions/" + own.ID.String() + "/vote",
			actor: &f.author, code: http.StatusForbidden, message: "Você não pode votar na sua própria pergunta.",
		},
		{
			name: "not votable", method: http.MethodPut, path: "/questions/" + pending.ID.String() + "/vote",
			actor: &f.voter, lang: "en", code: http.StatusForbidden, message: "Only approved questions can be voted on.",
		},
		{
			name: "unknown question", method: http.MethodPut, path: "/questions/" + uuid.NewString() + "/vote",
			actor: &f.voter, lang: "en", code: http.StatusNotFound, message: "Question not found.",
		},
		{
			name: "invalid question id", method: http.MethodPut, path: "/questions/nope/vote",
			actor: &f.voter, code: http.StatusBadRequest,
		},
		{
			name: "vote without identity", method: http.MethodPut, path: "/questions/" + own.ID.String() + "/vote",
			code: http.StatusUnauthorized,
		},
		{
			name: "invalid transition", method: http.MethodPatch, path: "/questions/" + own.ID.String() + "/status",
			actor: &f.admin, body: ModerateRequest{Status: "pending"}, code: http.StatusConflict,
		},
		{
			name: "unknown status", method: http.MethodPatch, path: "/questions/" + own.ID.String() + "/status",
			actor: &f.admin, body: ModerateRequest{Status: "archived"}, code: http.StatusBadRequest,
		},
		{
			name: "moderate as participant", method: http.MethodPatch, path: "/questions/" + pending.ID.String() + "/status",
			actor: &f.voter, body: ModerateRequest{Status: "approved"}, code: http.StatusForbidden,
		},
		{
			name: "hidden status filter", method: http.MethodGet, path: "/talks/" + f.talk.ID.String() + "/questions?status=pending",
			actor: &f.voter, code: http.StatusForbidden,
		},
		{
			name: "bad status filter", method: http.MethodGet, path: "/talks/" + f.talk.ID.String() + "/questions?status=nope",
			code: http.StatusBadRequest,
		},
		{
			name: "empty question", method: http.MethodPost, path: "/talks/" + f.talk.ID.String() + "/questions",
			actor: &f.author, body: SubmitRequest{Text: "   "}, code: http.StatusBadRequest,
		},
		{
			name: "unknown talk", method: http.MethodPost, path: "/talks/" + uuid.NewString() + "/questions",
			actor: &f.author, body: SubmitRequest{Text: "hi"}, code: http.StatusNotFound,
		},
		{
			name: "list unknown talk", method: http.MethodGet, path: "/talks/" + uuid.NewString() + "/questions",
			code: http.StatusNotFound,
		},
		{
			name: "votes of unknown talk", method: http.MethodGet, path: "/talks/" + uuid.NewString() + "/votes/me",
			actor: &f.voter, code: http.StatusNotFound,
		},
		{
			name: "answer as participant", method: http.MethodPut, path: "/questions/" + own.ID.String() + "/answer",
			actor: &f.voter, body: AnswerRequest{Answer: "a", AnswererName: "b"}, code: http.StatusForbidden,
		},
		{
			name: "delete approved as author", method: http.MethodDelete, path: "/questions/" + own.ID.String(),
			actor: &f.author, code: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, tt.method, tt.path, tt.actor, tt.body, tt.lang)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.False(t, env.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Error)
			}
		})
	}
}

func TestHandlerListAnonymousAndStaff(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	f.approved(t, "visible")
	f.store.seed(models.Question{TalkID: f.talk.ID, ParticipantID: f.author.ParticipantID, Text: "hidden", Status: models.QuestionPending})

	w, env := do(t, r, http.MethodGet, "/talks/"+f.talk.ID.String()+"/questions", nil, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []QuestionView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Nil(t, list[0].VotedByMe)

	w, env = do(t, r, http.MethodGet, "/talks/"+f.talk.ID.String()+"/questions?status=pending", &f.admin, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "hidden", list[0].Text)
}

func TestHandlerAnswerAndDelete(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	q := f.approved(t, "answer me")
	speaker := Actor{ParticipantID: uuid.New(), Role: models.RoleSpeaker}

	w, env := do(t, r, http.MethodPut, "/questions/"+q.ID.String()+"/answer", &speaker,
		AnswerRequest{Answer: "Noon", AnswererName: "Carla"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var answered QuestionView
	require.NoError(t, json.Unmarshal(env.Data, &answered))
	assert.True(t, answered.Answered)
	assert.Equal(t, "Noon", *answered.Answer)

	w, _ = do(t, r, http.MethodDelete, "/questions/"+q.ID.String(), &f.admin, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, r, http.MethodGet, "/questions/"+q.ID.String(), &f.admin, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
