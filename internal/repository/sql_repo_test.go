package repository

import (
	"context"
	"github.com/jaam8/polls/internal/models"
	"github.com/jaam8/polls/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"path/filepath"
	"testing"
	"time"
)

func newSQLRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := database.New(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "polls.db"),
	}, &models.Question{}, &models.Choice{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return NewSQL(db, zaptest.NewLogger(t))
}

func createQuestion(t *testing.T, r *SQLRepository, text string, published time.Time, choices ...string) *models.Question {
	t.Helper()
	q := &models.Question{Text: text, PublishedAt: published.UTC()}
	for _, c := range choices {
		q.Choices = append(q.Choices, models.Choice{Text: c})
	}
	require.NoError(t, r.CreateQuestion(context.Background(), q))
	return q
}

func TestSQLUpdateQuestion(t *testing.T) {
	r := newSQLRepo(t)
	ctx := context.Background()
	q := createQuestion(t, r, "Before", time.Now())

	q.Text = "After"
	require.NoError(t, r.UpdateQuestion(ctx, q))
	got, err := r.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Text)

	err = r.UpdateQuestion(ctx, &models.Question{ID: q.ID + 1, Text: "x", PublishedAt: time.Now()})
	assert.ErrorIs(t, err, models.ErrQuestionNotFound)
}

func TestSQLDeleteQuestionCascades(t *testing.T) {
	r := newSQLRepo(t)
	ctx := context.Background()
	q := createQuestion(t, r, "Doomed", time.Now(), "A", "B")
	keep := createQuestion(t, r, "Kept", time.Now(), "C")

	require.NoError(t, r.DeleteQuestion(ctx, q.ID))

	_, err := r.GetQuestion(ctx, q.ID)
	assert.ErrorIs(t, err, models.ErrQuestionNotFound)
	var orphans int64
	require.NoError(t, r.db.Model(&models.Choice{}).Where("question_id = ?", q.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	got, err := r.GetQuestion(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, got.Choices, 1)

	assert.ErrorIs(t, r.DeleteQuestion(ctx, q.ID), models.ErrQuestionNotFound)
}

func TestSQLAddAndDeleteChoice(t *testing.T) {
	r := newSQLRepo(t)
	ctx := context.Background()
	q := createQuestion(t, r, "Q", time.Now())

	c := &models.Choice{QuestionID: q.ID, Text: "New"}
	require.NoError(t, r.AddChoice(ctx, c))
	require.NotZero(t, c.ID)

	err := r.AddChoice(ctx, &models.Choice{QuestionID: q.ID + 1, Text: "Lost"})
	assert.ErrorIs(t, err, models.ErrQuestionNotFound)

	assert.ErrorIs(t, r.DeleteChoice(ctx, q.ID+1, c.ID), models.ErrChoiceNotFound)
	require.NoError(t, r.DeleteChoice(ctx, q.ID, c.ID))
	assert.ErrorIs(t, r.DeleteChoice(ctx, q.ID, c.ID), models.ErrChoiceNotFound)
}

func ids(questions []models.Question) []uint64 {
	out := make([]uint64, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.ID)
	}
	return out
}
