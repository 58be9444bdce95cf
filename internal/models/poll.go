package models

import (
	"errors"
	"time"
	"unicode/utf8"
)

const (
	MaxQuestionTextLen = 200
	MaxChoiceTextLen   = 200
)

var (
	ErrQuestionNotFound    = errors.New("question is not found")
	ErrChoiceNotFound      = errors.New("choice is not found")
	ErrInvalidSelection    = errors.New("you did not select a choice")
	ErrPersistence         = errors.New("persistence failure")
	ErrFailedToProcessData = errors.New("failed to process data")
	ErrQuestionTextEmpty   = errors.New("question text is empty")
	ErrQuestionTextTooLong = errors.New("question text should be at most 200 characters")
	ErrChoiceTextEmpty     = errors.New("choice text is empty")
	ErrChoiceTextTooLong   = errors.New("choice text should be at most 200 characters")
)

type Question struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Text        string    `json:"text" gorm:"size:200;not null"`
	PublishedAt time.Time `json:"published_at" gorm:"not null;index"`
	Choices     []Choice  `json:"choices" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

type Choice struct {
	ID         uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	QuestionID uint64 `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"size:200;not null"`
	// VoteCount only ever changes through an atomic increment in the store.
	VoteCount uint64 `json:"vote_count" gorm:"not null;default:0"`
}

func (q Question) String() string {
	return q.Text
}

// IsPublished reports whether the question is visible at now.
func (q Question) IsPublished(now time.Time) bool {
	return !q.PublishedAt.After(now)
}

// WasPublishedRecently is true for questions published within the last day.
// Scheduled questions are never recent.
func (q Question) WasPublishedRecently(now time.Time) bool {
	return !q.PublishedAt.Before(now.Add(-24*time.Hour)) && q.IsPublished(now)
}

func (q Question) TotalVotes() uint64 {
	var total uint64
	for _, c := range q.Choices {
		total += c.VoteCount
	}
	return total
}

// Choice returns the choice with the given id if it belongs to q.
func (q Question) Choice(id uint64) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

func ValidateQuestionText(text string) error {
	switch n := utf8.RuneCountInString(text); {
	case n == 0:
		return ErrQuestionTextEmpty
	case n > MaxQuestionTextLen:
		return ErrQuestionTextTooLong
	}
	return nil
}

func ValidateChoiceText(text string) error {
	switch n := utf8.RuneCountInString(text); {
	case n == 0:
		return ErrChoiceTextEmpty
	case n > MaxChoiceTextLen:
		return ErrChoiceTextTooLong
	}
	return nil
}
