package engagement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/internal/testdb"
)

func TestRepositoryActivity(t *testing.T) {
	pool := testdb.Start(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	keynote := testdb.Talk(t, pool, "Keynote")
	workshop := testdb.Talk(t, pool, "Workshop")
	ana := testdb.Participant(t, pool, "Ana Souza", "participant")
	carla := testdb.Participant(t, pool, "Carla Dias", "speaker")

	_, err := pool.Exec(ctx, `INSERT INTO attendances (participant_id, talk_id) VALUES ($1, $2), ($1, $3), ($4, $2)`,
		ana, keynote, workshop, carla)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO feedbacks (participant_id, talk_id, stars) VALUES ($1, $2, 5)`, ana, keynote)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO quiz_attempts (participant_id, points) VALUES ($1, 3), ($1, 4)`, carla)
	require.NoError(t, err)

	all, err := repo.ListActivity(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ana, all[0].ParticipantID)
	assert.Equal(t, 2, all[0].Attendances)
	assert.Equal(t, 1, all[0].Feedbacks)
	assert.Equal(t, 7, all[1].QuizScore)

	byTalk, err := repo.ListActivity(ctx, Filter{TalkID: &workshop})
	require.NoError(t, err)
	require.Len(t, byTalk, 2)
	assert.Equal(t, 1, byTalk[0].Attendances)
	assert.Equal(t, 0, byTalk[1].Attendances)

	speakers, err := repo.ListActivity(ctx, Filter{Role: models.RoleSpeaker, NameContains: "dias"})
	require.NoError(t, err)
	require.Len(t, speakers, 1)
	assert.Equal(t, carla, speakers[0].ParticipantID)

	one, err := repo.GetActivity(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", one.FullName)
	assert.Equal(t, 2, one.Attendances)

	_, err = repo.GetActivity(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestRepositoryActivityMatchesWildcardsLiterally(t *testing.T) {
	pool := testdb.Start(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	underscore := testdb.Participant(t, pool, "Ana_B", "participant")
	testdb.Participant(t, pool, "AnaxB", "participant")
	percent := testdb.Participant(t, pool, "100% Bruno", "participant")
	testdb.Participant(t, pool, "1000 Bruno", "participant")

	got, err := repo.ListActivity(ctx, Filter{NameContains: "a_b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, underscore, got[0].ParticipantID)

	got, err = repo.ListActivity(ctx, Filter{NameContains: "0%"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, percent, got[0].ParticipantID)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "ana", escapeLike("ana"))
}

func TestRepositoryExportLifecycle(t *testing.T) {
	pool := testdb.Start(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	admin := testdb.Participant(t, pool, "Admin", "admin")

	exp, err := repo.CreateExport(ctx, admin, Filter{MinVotes: 2, Premiated: PremiatedOnly})
	require.NoError(t, err)
	assert.Equal(t, models.ExportPending, exp.Status)

	f, err := ExportFilter(exp)
	require.NoError(t, err)
	assert.Equal(t, 2, f.MinVotes)
	assert.Equal(t, PremiatedOnly, f.Premiated)

	require.NoError(t, repo.CompleteExport(ctx, exp.ID, "exports/ranking/2025-05-20/x.csv", 12))
	got, err := repo.GetExport(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportCompleted, got.Status)
	assert.Equal(t, 12, got.Rows)
	require.NotNil(t, got.S3Key)
	require.NotNil(t, got.CompletedAt)

	require.NoError(t, repo.FailExport(ctx, exp.ID, "boom"))
	got, err = repo.GetExport(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, got.Status)
	assert.Equal(t, "boom", *got.Error)

	_, err = repo.GetExport(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrExportNotFound)
	assert.ErrorIs(t, repo.FailExport(ctx, uuid.New(), "x"), ErrExportNotFound)
}
