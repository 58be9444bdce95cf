package repository

import (
	"context"
	"errors"
	"fmt"
	"github.com/jaam8/polls/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"time"
)

// ListFilter narrows ListQuestions. Zero values disable a condition.
type ListFilter struct {
	PublishedBefore *time.Time
	Limit           int
}

type SQLRepository struct {
	db *gorm.DB
	l  *zap.Logger
}

func NewSQL(db *gorm.DB, l *zap.Logger) *SQLRepository {
	return &SQLRepository{
		db: db,
		l:  l,
	}
}

func (r *SQLRepository) GetQuestion(ctx context.Context, id uint64) (*models.Question, error) {
	var q models.Question
	err := r.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.l.Debug("question not found", zap.Uint64("question_id", id))
		return nil, models.ErrQuestionNotFound
	}
	if err != nil {
		r.l.Debug("failed to select question", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return &q, nil
}

func (r *SQLRepository) GetChoice(ctx context.Context, questionID, choiceID uint64) (*models.Choice, error) {
	var c models.Choice
	err := r.db.WithContext(ctx).
		Where("id = ? AND question_id = ?", choiceID, questionID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.l.Debug("choice not found",
			zap.Uint64("question_id", questionID),
			zap.Uint64("choice_id", choiceID))
		return nil, models.ErrChoiceNotFound
	}
	if err != nil {
		r.l.Debug("failed to select choice", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return &c, nil
}

// IncrementVotes adds one vote in a single UPDATE so concurrent votes
// on the same choice are never lost.
func (r *SQLRepository) IncrementVotes(ctx context.Context, questionID, choiceID uint64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Choice{}).
		Where("id = ? AND question_id = ?", choiceID, questionID).
		UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
	if res.Error != nil {
		r.l.Debug("failed to increment votes", zap.Error(res.Error))
		return fmt.Errorf("repository: database update error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.l.Debug("choice vanished before increment",
			zap.Uint64("question_id", questionID),
			zap.Uint64("choice_id", choiceID))
		return models.ErrChoiceNotFound
	}
	return nil
}

func (r *SQLRepository) ListQuestions(ctx context.Context, filter ListFilter) ([]models.Question, error) {
	query := r.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("published_at DESC").
		Order("id DESC")
	if filter.PublishedBefore != nil {
		query = query.Where("published_at <= ?", *filter.PublishedBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var questions []models.Question
	if err := query.Find(&questions).Error; err != nil {
		r.l.Debug("failed to list questions", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	return questions, nil
}

// CreateQuestion inserts the question together with its choices and
// fills in the generated ids.
func (r *SQLRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	r.l.Debug("creating question", zap.Any("question", q))
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		r.l.Debug("failed to insert question", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateQuestion(ctx context.Context, q *models.Question) error {
	res := r.db.WithContext(ctx).
		Model(&models.Question{ID: q.ID}).
		Updates(map[string]interface{}{
			"text":         q.Text,
			"published_at": q.PublishedAt,
		})
	if res.Error != nil {
		r.l.Debug("failed to update question", zap.Error(res.Error))
		return fmt.Errorf("repository: database update error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrQuestionNotFound
	}
	return nil
}

// DeleteQuestion removes the question and its choices. Choices are deleted
// explicitly so the cascade holds on sqlite without foreign_keys enabled.
func (r *SQLRepository) DeleteQuestion(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&models.Choice{}).Error; err != nil {
			r.l.Debug("failed to delete choices", zap.Error(err))
			return fmt.Errorf("repository: database delete error: %w", err)
		}
		res := tx.Delete(&models.Question{}, id)
		if res.Error != nil {
			r.l.Debug("failed to delete question", zap.Error(res.Error))
			return fmt.Errorf("repository: database delete error: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrQuestionNotFound
		}
		return nil
	})
}

func (r *SQLRepository) AddChoice(ctx context.Context, c *models.Choice) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", c.QuestionID).Count(&count).Error; err != nil {
		return fmt.Errorf("repository: database select error: %w", err)
	}
	if count == 0 {
		return models.ErrQuestionNotFound
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		r.l.Debug("failed to insert choice", zap.Error(err))
		return fmt.Errorf("repository: database insert error: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteChoice(ctx context.Context, questionID, choiceID uint64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND question_id = ?", choiceID, questionID).
		Delete(&models.Choice{})
	if res.Error != nil {
		r.l.Debug("failed to delete choice", zap.Error(res.Error))
		return fmt.Errorf("repository: database delete error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrChoiceNotFound
	}
	return nil
}
