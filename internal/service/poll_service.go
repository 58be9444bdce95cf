package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/jaam8/polls/internal/models"
	"github.com/jaam8/polls/internal/repository"
	"go.uber.org/zap"
	"time"
)

const DefaultIndexLimit = 5

// Repository is the persistence the poll service needs. IncrementVotes
// must add exactly one vote atomically in the store.
type Repository interface {
	GetQuestion(ctx context.Context, id uint64) (*models.Question, error)
	GetChoice(ctx context.Context, questionID, choiceID uint64) (*models.Choice, error)
	IncrementVotes(ctx context.Context, questionID, choiceID uint64) error
	ListQuestions(ctx context.Context, filter repository.ListFilter) ([]models.Question, error)
	CreateQuestion(ctx context.Context, q *models.Question) error
	UpdateQuestion(ctx context.Context, q *models.Question) error
	DeleteQuestion(ctx context.Context, id uint64) error
	AddChoice(ctx context.Context, c *models.Choice) error
	DeleteChoice(ctx context.Context, questionID, choiceID uint64) error
}

type PollService struct {
	r          Repository
	l          *zap.Logger
	now        func() time.Time
	indexLimit int
}

type Option func(*PollService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *PollService) {
		s.now = now
	}
}

func WithIndexLimit(limit int) Option {
	return func(s *PollService) {
		if limit > 0 {
			s.indexLimit = limit
		}
	}
}

func New(r Repository, l *zap.Logger, opts ...Option) *PollService {
	s := &PollService{
		r:          r,
		l:          l,
		now:        time.Now,
		indexLimit: DefaultIndexLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordVote adds one vote to choiceID of questionID and returns the
// question with fresh counts. Failures leave every count untouched, and
// once the vote is stored the call succeeds.
func (s *PollService) RecordVote(ctx context.Context, questionID, choiceID uint64) (*models.Question, error) {
	s.l.Debug("recording vote",
		zap.Uint64("question_id", questionID),
		zap.Uint64("choice_id", choiceID))

	loaded, err := s.r.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, s.wrap("failed to load question", err)
	}
	if _, err := s.r.GetChoice(ctx, questionID, choiceID); err != nil {
		if errors.Is(err, models.ErrChoiceNotFound) {
			return nil, models.ErrInvalidSelection
		}
		return nil, s.wrap("failed to load choice", err)
	}
	if err := s.r.IncrementVotes(ctx, questionID, choiceID); err != nil {
		if errors.Is(err, models.ErrChoiceNotFound) {
			return nil, models.ErrInvalidSelection
		}
		return nil, s.wrap("failed to vote", err)
	}

	s.l.Info("vote recorded",
		zap.Uint64("question_id", questionID),
		zap.Uint64("choice_id", choiceID))

	// The vote is stored; a failed reload returns the counts read before it.
	question, err := s.r.GetQuestion(ctx, questionID)
	if err != nil {
		s.l.Warn("failed to reload question after vote",
			zap.Uint64("question_id", questionID),
			zap.Error(err))
		return loaded, nil
	}
	return question, nil
}

// LatestQuestions returns the newest published questions, never the
// scheduled ones.
func (s *PollService) LatestQuestions(ctx context.Context) ([]models.Question, error) {
	now := s.now().UTC()
	questions, err := s.r.ListQuestions(ctx, repository.ListFilter{
		PublishedBefore: &now,
		Limit:           s.indexLimit,
	})
	if err != nil {
		return nil, s.wrap("failed to list questions", err)
	}
	return questions, nil
}

// PublishedQuestion hides scheduled questions behind ErrQuestionNotFound.
func (s *PollService) PublishedQuestion(ctx context.Context, id uint64) (*models.Question, error) {
	q, err := s.r.GetQuestion(ctx, id)
	if err != nil {
		return nil, s.wrap("failed to get question", err)
	}
	if !q.IsPublished(s.now()) {
		s.l.Debug("question is not published yet", zap.Uint64("question_id", id))
		return nil, models.ErrQuestionNotFound
	}
	return q, nil
}

func (s *PollService) Question(ctx context.Context, id uint64) (*models.Question, error) {
	q, err := s.r.GetQuestion(ctx, id)
	if err != nil {
		return nil, s.wrap("failed to get question", err)
	}
	return q, nil
}

func (s *PollService) AllQuestions(ctx context.Context) ([]models.Question, error) {
	questions, err := s.r.ListQuestions(ctx, repository.ListFilter{})
	if err != nil {
		return nil, s.wrap("failed to list questions", err)
	}
	return questions, nil
}

// CreateQuestion stores a question with its choices. A zero publishedAt
// publishes it immediately.
func (s *PollService) CreateQuestion(ctx context.Context, text string, publishedAt time.Time, choiceTexts []string) (*models.Question, error) {
	s.l.Debug("creating question", zap.String("text", text), zap.Strings("choices", choiceTexts))
	if err := models.ValidateQuestionText(text); err != nil {
		return nil, err
	}
	if publishedAt.IsZero() {
		publishedAt = s.now()
	}
	q := &models.Question{
		Text:        text,
		PublishedAt: publishedAt.UTC(),
		Choices:     make([]models.Choice, 0, len(choiceTexts)),
	}
	for _, c := range choiceTexts {
		if err := models.ValidateChoiceText(c); err != nil {
			return nil, err
		}
		q.Choices = append(q.Choices, models.Choice{Text: c})
	}

	if err := s.r.CreateQuestion(ctx, q); err != nil {
		return nil, s.wrap("failed to create question", err)
	}
	s.l.Info("question created", zap.Uint64("question_id", q.ID), zap.Int("choices", len(q.Choices)))
	return q, nil
}

// UpdateQuestion changes the text and/or publication date; nil leaves a
// field as it is.
func (s *PollService) UpdateQuestion(ctx context.Context, id uint64, text *string, publishedAt *time.Time) (*models.Question, error) {
	q, err := s.r.GetQuestion(ctx, id)
	if err != nil {
		return nil, s.wrap("failed to get question", err)
	}
	if text != nil {
		if err = models.ValidateQuestionText(*text); err != nil {
			return nil, err
		}
		q.Text = *text
	}
	if publishedAt != nil {
		q.PublishedAt = publishedAt.UTC()
	}
	if err = s.r.UpdateQuestion(ctx, q); err != nil {
		return nil, s.wrap("failed to update question", err)
	}
	return q, nil
}

func (s *PollService) DeleteQuestion(ctx context.Context, id uint64) error {
	if err := s.r.DeleteQuestion(ctx, id); err != nil {
		return s.wrap("failed to delete question", err)
	}
	s.l.Info("question deleted", zap.Uint64("question_id", id))
	return nil
}

func (s *PollService) AddChoice(ctx context.Context, questionID uint64, text string) (*models.Choice, error) {
	if err := models.ValidateChoiceText(text); err != nil {
		return nil, err
	}
	c := &models.Choice{QuestionID: questionID, Text: text}
	if err := s.r.AddChoice(ctx, c); err != nil {
		return nil, s.wrap("failed to add choice", err)
	}
	return c, nil
}

func (s *PollService) DeleteChoice(ctx context.Context, questionID, choiceID uint64) error {
	if err := s.r.DeleteChoice(ctx, questionID, choiceID); err != nil {
		return s.wrap("failed to delete choice", err)
	}
	return nil
}

// wrap passes domain errors through and marks everything else as a
// persistence failure.
func (s *PollService) wrap(msg string, err error) error {
	switch {
	case errors.Is(err, models.ErrQuestionNotFound):
		return err
	case errors.Is(err, models.ErrChoiceNotFound):
		return err
	default:
		s.l.Error(msg, zap.Error(err))
		return fmt.Errorf("service: %s: %w: %w", msg, models.ErrPersistence, err)
	}
}
