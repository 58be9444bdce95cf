package repository

import (
	"github.com/jaam8/polls/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestQuestionFromTuple(t *testing.T) {
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	q, err := questionFromTuple([]interface{}{uint64(7), "Favorite color?", published.UnixNano()})
	require.NoError(t, err)
	assert.EqualValues(t, 7, q.ID)
	assert.Equal(t, "Favorite color?", q.Text)
	assert.True(t, published.Equal(q.PublishedAt))

	q, err = questionFromTuple([]interface{}{int64(8), "Other", uint64(published.UnixNano())})
	require.NoError(t, err)
	assert.EqualValues(t, 8, q.ID)

	_, err = questionFromTuple([]interface{}{"7", "Favorite color?", int64(0)})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)

	_, err = questionFromTuple("not a tuple")
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)
}

func TestChoiceFromTuple(t *testing.T) {
	c, err := choiceFromTuple([]interface{}{uint64(3), uint64(7), "Blue", uint64(42)})
	require.NoError(t, err)
	assert.Equal(t, models.Choice{ID: 3, QuestionID: 7, Text: "Blue", VoteCount: 42}, *c)

	_, err = choiceFromTuple([]interface{}{uint64(3), uint64(7), "Blue"})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)

	_, err = choiceFromTuple([]interface{}{uint64(3), int64(-1), "Blue", uint64(0)})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)
}

func TestCreatedQuestionFromResult(t *testing.T) {
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	q, err := createdQuestionFromResult([]interface{}{
		[]interface{}{uint64(7), "Favorite color?", published.UnixNano()},
		[]interface{}{
			[]interface{}{uint64(1), uint64(7), "Red", uint64(0)},
			[]interface{}{uint64(2), uint64(7), "Blue", uint64(0)},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, q.ID)
	require.Len(t, q.Choices, 2)
	assert.EqualValues(t, 2, q.Choices[1].ID)
	assert.Equal(t, "Blue", q.Choices[1].Text)

	q, err = createdQuestionFromResult([]interface{}{
		[]interface{}{uint64(8), "No choices", published.UnixNano()},
		map[interface{}]interface{}{},
	})
	require.NoError(t, err)
	assert.Empty(t, q.Choices)

	_, err = createdQuestionFromResult([]interface{}{
		[]interface{}{uint64(9), "Broken", published.UnixNano()},
		[]interface{}{[]interface{}{uint64(1), "Red"}},
	})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)

	_, err = createdQuestionFromResult([]interface{}{uint64(1)})
	assert.ErrorIs(t, err, models.ErrFailedToProcessData)
}
