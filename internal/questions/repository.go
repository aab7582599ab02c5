package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qa-dashboard/backend/internal/apperror"
	"github.com/qa-dashboard/backend/internal/models"
)

const pgForeignKeyViolation = "23503"

// Repository handles question and answer persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const questionColumns = `q.question_id, q.user_id, u.username, q.message, q.created_at, q.status`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.UserID, &q.Username, &q.Message, &q.CreatedAt, &q.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("question not found")
	}
	if err != nil {
		return nil, err
	}
	q.CreatedAt = q.CreatedAt.UTC()
	return &q, nil
}

// CreateQuestion inserts a new question and assigns its ID.
func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	const query = `INSERT INTO questions (user_id, message, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING question_id`
	err := r.pool.QueryRow(ctx, query, q.UserID, q.Message, string(q.Status), q.CreatedAt).Scan(&q.ID)
	if err != nil {
		return translate(err, "question author not found")
	}
	return nil
}

// GetQuestion returns a question by ID without answers.
func (r *Repository) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions q LEFT JOIN users u ON u.user_id = q.user_id
		WHERE q.question_id = $1`
	return scanQuestion(r.pool.QueryRow(ctx, query, id))
}

// UpdateQuestionStatus overwrites the status and returns the updated question.
func (r *Repository) UpdateQuestionStatus(ctx context.Context, id int64, status models.QuestionStatus) (*models.Question, error) {
	query := `WITH q AS (
			UPDATE questions SET status = $2 WHERE question_id = $1
			RETURNING question_id, user_id, message, created_at, status
		)
		SELECT ` + questionColumns + `
		FROM q LEFT JOIN users u ON u.user_id = q.user_id`
	return scanQuestion(r.pool.QueryRow(ctx, query, id, string(status)))
}

// ListQuestions returns Escalated questions first, newest first within each status.
func (r *Repository) ListQuestions(ctx context.Context) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions q LEFT JOIN users u ON u.user_id = q.user_id
		ORDER BY CASE WHEN q.status = 'Escalated' THEN 0 ELSE 1 END,
			q.created_at DESC, q.question_id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// CreateAnswer inserts an answer and assigns its ID. A missing question fails with NotFound.
func (r *Repository) CreateAnswer(ctx context.Context, a *models.Answer) error {
	const query = `INSERT INTO answers (question_id, user_id, message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING answer_id`
	err := r.pool.QueryRow(ctx, query, a.QuestionID, a.UserID, a.Message, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return translate(err, "question not found")
	}
	return nil
}

// ListAnswers returns the answers of a question oldest first.
func (r *Repository) ListAnswers(ctx context.Context, questionID int64) ([]models.Answer, error) {
	const query = `SELECT a.answer_id, a.question_id, a.user_id, u.username, a.message, a.created_at
		FROM answers a LEFT JOIN users u ON u.user_id = a.user_id
		WHERE a.question_id = $1
		ORDER BY a.created_at, a.answer_id`
	rows, err := r.pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Answer{}
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Username, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		list = append(list, a)
	}
	return list, rows.Err()
}

func translate(err error, notFound string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return apperror.NotFound(notFound)
	}
	return fmt.Errorf("questions: %w", err)
}
