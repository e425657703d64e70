package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQuestionText    = errors.New("question text is empty")
	ErrQuestionOptions = errors.New("question needs at least two options")
	ErrQuestionAnswer  = errors.New("correct answer is not one of the options")
)

// Question is a single multiple-choice trivia question.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Text          string   `json:"text" yaml:"text"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	TimeLimitMs   int64    `json:"time_limit_ms,omitempty" yaml:"time_limit_ms,omitempty"`
	BasePoints    int      `json:"base_points,omitempty" yaml:"base_points,omitempty"`
}

// Validate reports whether the question can be served as a round.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrQuestionText
	}
	if len(q.Options) < 2 {
		return ErrQuestionOptions
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return ErrQuestionAnswer
	}
	found := false
	for _, opt := range q.Options {
		if q.IsCorrect(opt) {
			found = true
			break
		}
	}
	if !found {
		return ErrQuestionAnswer
	}
	if q.TimeLimitMs < 0 {
		return fmt.Errorf("negative time limit %dms", q.TimeLimitMs)
	}
	if q.BasePoints < 0 {
		return fmt.Errorf("negative base points %d", q.BasePoints)
	}
	return nil
}

// IsCorrect compares a choice against the correct answer, ignoring case and
// surrounding whitespace.
func (q Question) IsCorrect(choice string) bool {
	return strings.EqualFold(strings.TrimSpace(choice), strings.TrimSpace(q.CorrectAnswer))
}
