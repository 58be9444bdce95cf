package repository

import (
	"context"
	"fmt"
	"github.com/jaam8/polls/internal/models"
	"github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
	"math"
	"time"
)

const (
	questionsSpace = "questions"
	choicesSpace   = "choices"

	// choices tuple: {id, question_id, text, vote_count}
	voteCountField = 3
)

// PollRepository keeps questions and choices in Tarantool spaces created
// by deploy/tarantool/init.lua.
type PollRepository struct {
	db *tarantool.Connection
	l  *zap.Logger
}

func New(db *tarantool.Connection, l *zap.Logger) *PollRepository {
	return &PollRepository{
		db: db,
		l:  l,
	}
}

func (r *PollRepository) GetQuestion(_ context.Context, id uint64) (*models.Question, error) {
	resp, err := r.db.Select(questionsSpace, "primary", 0, 1, tarantool.IterEq, []interface{}{id})
	if err != nil {
		r.l.Debug("failed to select question", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data))
	if len(resp.Data) == 0 {
		r.l.Debug("question not found", zap.Uint64("question_id", id))
		return nil, models.ErrQuestionNotFound
	}
	q, err := questionFromTuple(resp.Data[0])
	if err != nil {
		return nil, err
	}
	if q.Choices, err = r.choicesOf(q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *PollRepository) GetChoice(_ context.Context, questionID, choiceID uint64) (*models.Choice, error) {
	resp, err := r.db.Select(choicesSpace, "primary", 0, 1, tarantool.IterEq, []interface{}{choiceID})
	if err != nil {
		r.l.Debug("failed to select choice", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	if len(resp.Data) == 0 {
		r.l.Debug("choice not found", zap.Uint64("choice_id", choiceID))
		return nil, models.ErrChoiceNotFound
	}
	c, err := choiceFromTuple(resp.Data[0])
	if err != nil {
		return nil, err
	}
	if c.QuestionID != questionID {
		r.l.Debug("choice belongs to another question",
			zap.Uint64("question_id", questionID),
			zap.Uint64("owner_id", c.QuestionID),
			zap.Uint64("choice_id", choiceID))
		return nil, models.ErrChoiceNotFound
	}
	return c, nil
}

// IncrementVotes uses the '+' update operator, which Tarantool applies
// atomically to the stored tuple.
func (r *PollRepository) IncrementVotes(ctx context.Context, questionID, choiceID uint64) error {
	if _, err := r.GetChoice(ctx, questionID, choiceID); err != nil {
		return err
	}
	resp, err := r.db.Update(choicesSpace, "primary",
		[]interface{}{choiceID},
		[]interface{}{[]interface{}{"+", voteCountField, 1}})
	if err != nil {
		r.l.Debug("failed to increment votes", zap.Error(err))
		return fmt.Errorf("repository: database update error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	if len(resp.Data) == 0 {
		return models.ErrChoiceNotFound
	}
	return nil
}

func (r *PollRepository) ListQuestions(_ context.Context, filter ListFilter) ([]models.Question, error) {
	limit := uint32(math.MaxUint32)
	if filter.Limit > 0 {
		limit = uint32(filter.Limit)
	}
	iterator, key := uint32(tarantool.IterReq), []interface{}{}
	if filter.PublishedBefore != nil {
		iterator, key = tarantool.IterLe, []interface{}{filter.PublishedBefore.UnixNano()}
	}

	resp, err := r.db.Select(questionsSpace, "published", 0, limit, iterator, key)
	if err != nil {
		r.l.Debug("failed to list questions", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	questions := make([]models.Question, 0, len(resp.Data))
	for _, tuple := range resp.Data {
		q, err := questionFromTuple(tuple)
		if err != nil {
			return nil, err
		}
		if q.Choices, err = r.choicesOf(q.ID); err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, nil
}

// CreateQuestion calls create_question from init.lua, which inserts the
// question and all of its choices in one box.atomic block.
func (r *PollRepository) CreateQuestion(_ context.Context, q *models.Question) error {
	r.l.Debug("creating question", zap.Any("question", q))
	texts := make([]string, 0, len(q.Choices))
	for _, c := range q.Choices {
		texts = append(texts, c.Text)
	}
	resp, err := r.db.Call17("create_question", []interface{}{q.Text, q.PublishedAt.UnixNano(), texts})
	if err != nil {
		r.l.Debug("error inserting question", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	if len(resp.Data) == 0 {
		return models.ErrFailedToProcessData
	}
	created, err := createdQuestionFromResult(resp.Data[0])
	if err != nil {
		return err
	}
	if len(created.Choices) != len(q.Choices) {
		return fmt.Errorf("repository: created %d of %d choices: %w",
			len(created.Choices), len(q.Choices), models.ErrFailedToProcessData)
	}
	q.ID = created.ID
	for i := range q.Choices {
		q.Choices[i].ID = created.Choices[i].ID
		q.Choices[i].QuestionID = q.ID
		q.Choices[i].VoteCount = created.Choices[i].VoteCount
	}
	return nil
}

func (r *PollRepository) UpdateQuestion(_ context.Context, q *models.Question) error {
	resp, err := r.db.Update(questionsSpace, "primary",
		[]interface{}{q.ID},
		[]interface{}{
			[]interface{}{"=", 1, q.Text},
			[]interface{}{"=", 2, q.PublishedAt.UnixNano()},
		})
	if err != nil {
		r.l.Debug("failed to update question", zap.Error(err))
		return fmt.Errorf("repository: database update error: %w", err)
	}
	if len(resp.Data) == 0 {
		return models.ErrQuestionNotFound
	}
	return nil
}

// DeleteQuestion calls delete_question from init.lua, which removes the
// question and its choices in one box.atomic block.
func (r *PollRepository) DeleteQuestion(_ context.Context, id uint64) error {
	resp, err := r.db.Call17("delete_question", []interface{}{id})
	if err != nil {
		r.l.Debug("failed to delete question", zap.Error(err))
		return fmt.Errorf("repository: database delete error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	if len(resp.Data) == 0 {
		return models.ErrFailedToProcessData
	}
	if deleted, _ := resp.Data[0].(bool); !deleted {
		return models.ErrQuestionNotFound
	}
	return nil
}

func (r *PollRepository) AddChoice(_ context.Context, c *models.Choice) error {
	exists, err := r.db.Select(questionsSpace, "primary", 0, 1, tarantool.IterEq, []interface{}{c.QuestionID})
	if err != nil {
		return fmt.Errorf("repository: database select error: %w", err)
	}
	if len(exists.Data) == 0 {
		return models.ErrQuestionNotFound
	}
	resp, err := r.db.Insert(choicesSpace, []interface{}{nil, c.QuestionID, c.Text, c.VoteCount})
	if err != nil {
		r.l.Debug("error inserting choice", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	if len(resp.Data) == 0 {
		return models.ErrFailedToProcessData
	}
	created, err := choiceFromTuple(resp.Data[0])
	if err != nil {
		return err
	}
	c.ID = created.ID
	return nil
}

func (r *PollRepository) DeleteChoice(ctx context.Context, questionID, choiceID uint64) error {
	if _, err := r.GetChoice(ctx, questionID, choiceID); err != nil {
		return err
	}
	if _, err := r.db.Delete(choicesSpace, "primary", []interface{}{choiceID}); err != nil {
		r.l.Debug("failed to delete choice", zap.Error(err))
		return fmt.Errorf("repository: database delete error: %w", err)
	}
	return nil
}

func (r *PollRepository) choicesOf(questionID uint64) ([]models.Choice, error) {
	resp, err := r.db.Select(choicesSpace, "question", 0, math.MaxUint32, tarantool.IterEq, []interface{}{questionID})
	if err != nil {
		r.l.Debug("failed to select choices", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	choices := make([]models.Choice, 0, len(resp.Data))
	for _, tuple := range resp.Data {
		c, err := choiceFromTuple(tuple)
		if err != nil {
			return nil, err
		}
		choices = append(choices, *c)
	}
	return choices, nil
}

func questionFromTuple(raw interface{}) (*models.Question, error) {
	tuple, ok := raw.([]interface{})
	if !ok || len(tuple) < 3 {
		return nil, fmt.Errorf("repository: unexpected question tuple %v: %w", raw, models.ErrFailedToProcessData)
	}
	id, ok := toUint64(tuple[0])
	if !ok {
		return nil, fmt.Errorf("repository: unexpected question id %v: %w", tuple[0], models.ErrFailedToProcessData)
	}
	text, ok := tuple[1].(string)
	if !ok {
		return nil, fmt.Errorf("repository: unexpected question text %v: %w", tuple[1], models.ErrFailedToProcessData)
	}
	nanos, ok := toInt64(tuple[2])
	if !ok {
		return nil, fmt.Errorf("repository: unexpected published_at %v: %w", tuple[2], models.ErrFailedToProcessData)
	}
	return &models.Question{
		ID:          id,
		Text:        text,
		PublishedAt: time.Unix(0, nanos).UTC(),
	}, nil
}

// createdQuestionFromResult decodes the {question, {choice, ...}} table
// returned by create_question.
func createdQuestionFromResult(raw interface{}) (*models.Question, error) {
	result, ok := raw.([]interface{})
	if !ok || len(result) != 2 {
		return nil, fmt.Errorf("repository: unexpected create_question result %v: %w", raw, models.ErrFailedToProcessData)
	}
	q, err := questionFromTuple(result[0])
	if err != nil {
		return nil, err
	}
	var tuples []interface{}
	switch v := result[1].(type) {
	case []interface{}:
		tuples = v
	case map[interface{}]interface{}:
		// an empty Lua table comes back as a map
		if len(v) != 0 {
			return nil, fmt.Errorf("repository: unexpected choices %v: %w", v, models.ErrFailedToProcessData)
		}
	default:
		return nil, fmt.Errorf("repository: unexpected choices %v: %w", result[1], models.ErrFailedToProcessData)
	}
	q.Choices = make([]models.Choice, 0, len(tuples))
	for _, tuple := range tuples {
		c, err := choiceFromTuple(tuple)
		if err != nil {
			return nil, err
		}
		q.Choices = append(q.Choices, *c)
	}
	return q, nil
}

func choiceFromTuple(raw interface{}) (*models.Choice, error) {
	tuple, ok := raw.([]interface{})
	if !ok || len(tuple) < 4 {
		return nil, fmt.Errorf("repository: unexpected choice tuple %v: %w", raw, models.ErrFailedToProcessData)
	}
	id, okID := toUint64(tuple[0])
	questionID, okQuestion := toUint64(tuple[1])
	text, okText := tuple[2].(string)
	votes, okVotes := toUint64(tuple[3])
	if !okID || !okQuestion || !okText || !okVotes {
		return nil, fmt.Errorf("repository: unexpected choice tuple %v: %w", raw, models.ErrFailedToProcessData)
	}
	return &models.Choice{
		ID:         id,
		QuestionID: questionID,
		Text:       text,
		VoteCount:  votes,
	}, nil
}

func toUint64(v interface{}) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint32:
		return uint64(x), true
	case uint:
		return uint64(x), true
	case int64:
		return uint64(x), x >= 0
	case int32:
		return uint64(x), x >= 0
	case int:
		return uint64(x), x >= 0
	case int8:
		return uint64(x), x >= 0
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case int16:
		return uint64(x), x >= 0
	default:
		return 0, false
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	default:
		u, ok := toUint64(v)
		return int64(u), ok
	}
}
