package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/qa-dashboard/backend/internal/models"
)

// Kind identifies the committed change an Event describes.
type Kind string

const (
	KindNewQuestion   Kind = "new_question"
	KindNewAnswer     Kind = "new_answer"
	KindStatusChanged Kind = "status_update"
)

// Webhook event names.
const (
	WebhookNewQuestion       = "new_question"
	WebhookNewAnswer         = "new_answer"
	WebhookQuestionAnswered  = "question_answered"
	WebhookQuestionEscalated = "question_escalated"
)

// Event is one committed state change. Question is set for KindNewQuestion and
// KindStatusChanged, Answer for KindNewAnswer. Both carry the author's username
// so viewers can render without a follow-up fetch.
type Event struct {
	Kind     Kind
	Question *models.Question
	Answer   *models.Answer
}

// frame is the websocket envelope.
type frame struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

type answerFrame struct {
	QuestionID int64          `json:"question_id"`
	Answer     *models.Answer `json:"answer"`
}

// Frame encodes the event as a websocket text frame.
func (e Event) Frame() ([]byte, error) {
	var data any
	switch e.Kind {
	case KindNewAnswer:
		data = answerFrame{QuestionID: e.Answer.QuestionID, Answer: e.Answer}
	default:
		q := *e.Question
		q.Answers = []models.Answer{}
		data = q
	}
	return json.Marshal(frame{Type: e.Kind, Data: data})
}

// WebhookName returns the external event name.
func (e Event) WebhookName() string {
	switch e.Kind {
	case KindNewQuestion:
		return WebhookNewQuestion
	case KindNewAnswer:
		return WebhookNewAnswer
	}
	if e.Question.Status == models.StatusAnswered {
		return WebhookQuestionAnswered
	}
	return WebhookQuestionEscalated
}

// WebhookPayload returns the flat JSON object posted to the webhook.
func (e Event) WebhookPayload() map[string]any {
	payload := map[string]any{"event": e.WebhookName()}
	switch e.Kind {
	case KindNewQuestion:
		payload["question_id"] = e.Question.ID
		payload["message"] = e.Question.Message
		payload["username"] = e.Question.Username
		payload["timestamp"] = e.Question.CreatedAt.Format(time.RFC3339Nano)
	case KindNewAnswer:
		payload["answer_id"] = e.Answer.ID
		payload["question_id"] = e.Answer.QuestionID
		payload["message"] = e.Answer.Message
		payload["username"] = e.Answer.Username
		payload["timestamp"] = e.Answer.CreatedAt.Format(time.RFC3339Nano)
	case KindStatusChanged:
		payload["question_id"] = e.Question.ID
		payload["message"] = e.Question.Message
		payload["timestamp"] = e.Question.CreatedAt.Format(time.RFC3339Nano)
	}
	return payload
}
