// Package lifecycle owns the question/answer state machine and the events it emits.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/apperror"
	"github.com/qa-dashboard/backend/internal/metrics"
	"github.com/qa-dashboard/backend/internal/models"
)

// QuestionStore persists questions and answers. Each call is atomic; lookups of
// absent records fail with an apperror NotFound. ListQuestions returns Escalated
// questions first, newest first within each status; ListAnswers returns answers
// oldest first.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	UpdateQuestionStatus(ctx context.Context, id int64, status models.QuestionStatus) (*models.Question, error)
	ListQuestions(ctx context.Context) ([]models.Question, error)
	CreateAnswer(ctx context.Context, a *models.Answer) error
	ListAnswers(ctx context.Context, questionID int64) ([]models.Answer, error)
}

// UserLookup resolves author ids to users.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Broadcaster fans an event out to live viewers. It must not block on delivery.
type Broadcaster interface {
	Broadcast(ev Event)
}

// Notifier forwards an event to external systems. It must not block on delivery.
type Notifier interface {
	Notify(ev Event)
}

// Engine validates lifecycle operations, persists them and emits one Event per
// successful mutation. Any status may be set from any status.
type Engine struct {
	questions   QuestionStore
	users       UserLookup
	broadcaster Broadcaster
	notifier    Notifier
	clock       clockwork.Clock
	logger      *zap.Logger
}

// NewEngine creates a lifecycle engine. broadcaster and notifier may be nil.
func NewEngine(questions QuestionStore, users UserLookup, broadcaster Broadcaster, notifier Notifier, clock clockwork.Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		questions:   questions,
		users:       users,
		broadcaster: broadcaster,
		notifier:    notifier,
		clock:       clock,
		logger:      logger,
	}
}

// SubmitQuestion records a new Pending question and emits KindNewQuestion.
func (e *Engine) SubmitQuestion(ctx context.Context, message string, authorID *int64) (*models.Question, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.Validation("question cannot be empty")
	}
	authorID, username, err := e.resolveAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		UserID:    authorID,
		Username:  username,
		Message:   message,
		CreatedAt: e.now(),
		Status:    models.StatusPending,
		Answers:   []models.Answer{},
	}
	if err := e.questions.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	e.publish(Event{Kind: KindNewQuestion, Question: q})
	e.logger.Debug("question submitted", zap.Int64("question_id", q.ID))
	return q, nil
}

// SubmitAnswer records an answer to an existing question and emits KindNewAnswer.
// The question's status is left untouched.
func (e *Engine) SubmitAnswer(ctx context.Context, questionID int64, message string, authorID *int64) (*models.Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.Validation("answer cannot be empty")
	}
	if _, err := e.questions.GetQuestion(ctx, questionID); err != nil {
		return nil, fmt.Errorf("get question %d: %w", questionID, err)
	}
	authorID, username, err := e.resolveAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	a := &models.Answer{
		QuestionID: questionID,
		UserID:     authorID,
		Username:   username,
		Message:    message,
		CreatedAt:  e.now(),
	}
	if err := e.questions.CreateAnswer(ctx, a); err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}

	e.publish(Event{Kind: KindNewAnswer, Answer: a})
	e.logger.Debug("answer submitted", zap.Int64("answer_id", a.ID), zap.Int64("question_id", questionID))
	return a, nil
}

// SetStatus overwrites the status of an existing question and emits KindStatusChanged.
// Only Escalated and Answered may be requested; Pending is the creation state.
func (e *Engine) SetStatus(ctx context.Context, questionID int64, target models.QuestionStatus) (*models.Question, error) {
	if !target.Valid() || target == models.StatusPending {
		return nil, apperror.Validation(fmt.Sprintf("invalid target status %q", target))
	}
	q, err := e.questions.UpdateQuestionStatus(ctx, questionID, target)
	if err != nil {
		return nil, fmt.Errorf("update question %d: %w", questionID, err)
	}

	e.publish(Event{Kind: KindStatusChanged, Question: q})
	e.logger.Debug("question status changed", zap.Int64("question_id", q.ID), zap.String("status", string(q.Status)))

	answers, err := e.questions.ListAnswers(ctx, questionID)
	if err != nil {
		// The status change is committed and published; the caller still gets the question.
		e.logger.Warn("list answers after status change", zap.Int64("question_id", questionID), zap.Error(err))
		answers = []models.Answer{}
	}
	out := *q
	out.Answers = answers
	return &out, nil
}

// GetQuestion returns one question with its answers.
func (e *Engine) GetQuestion(ctx context.Context, questionID int64) (*models.Question, error) {
	q, err := e.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", questionID, err)
	}
	answers, err := e.questions.ListAnswers(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers %d: %w", questionID, err)
	}
	q.Answers = answers
	return q, nil
}

// ListQuestions returns all questions in display order, each with its answers.
func (e *Engine) ListQuestions(ctx context.Context) ([]models.Question, error) {
	list, err := e.questions.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for i := range list {
		answers, err := e.questions.ListAnswers(ctx, list[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list answers %d: %w", list[i].ID, err)
		}
		list[i].Answers = answers
	}
	return list, nil
}

// resolveAuthor maps an author id to its username. Ids that no longer resolve
// are treated as anonymous.
func (e *Engine) resolveAuthor(ctx context.Context, authorID *int64) (*int64, *string, error) {
	if authorID == nil || e.users == nil {
		return nil, nil, nil
	}
	u, err := e.users.GetUserByID(ctx, *authorID)
	if apperror.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get user %d: %w", *authorID, err)
	}
	id, name := u.ID, u.Username
	return &id, &name, nil
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) publish(ev Event) {
	metrics.LifecycleEvents.WithLabelValues(string(ev.Kind)).Inc()
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(ev)
	}
	if e.notifier != nil {
		e.notifier.Notify(ev)
	}
}
