package models

import (
	"time"
)

// QuestionStatus is the lifecycle state of a question.
type QuestionStatus string

const (
	StatusPending   QuestionStatus = "Pending"
	StatusEscalated QuestionStatus = "Escalated"
	StatusAnswered  QuestionStatus = "Answered"
)

// Valid reports whether s is one of the known statuses.
func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusEscalated, StatusAnswered:
		return true
	}
	return false
}

// Question is a visitor question. UserID and Username are nil for anonymous questions.
type Question struct {
	ID        int64          `json:"question_id"`
	UserID    *int64         `json:"user_id"`
	Username  *string        `json:"username"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"timestamp"`
	Status    QuestionStatus `json:"status"`
	Answers   []Answer       `json:"answers"`
}

// Answer is a reply to a question. UserID and Username are nil for anonymous answers.
type Answer struct {
	ID         int64     `json:"answer_id"`
	QuestionID int64     `json:"question_id"`
	UserID     *int64    `json:"user_id"`
	Username   *string   `json:"username"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"timestamp"`
}
