// Package memory is an in-process Lifecycle Store. It honours the same ordering
// and error contract as the PostgreSQL repositories and backs STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/qa-dashboard/backend/internal/apperror"
	"github.com/qa-dashboard/backend/internal/models"
)

// Store holds users, questions and answers in memory.
type Store struct {
	mu        sync.RWMutex
	users     map[int64]models.User
	questions map[int64]models.Question
	answers   map[int64][]models.Answer // by question id
	nextUser  int64
	nextQ     int64
	nextA     int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:     make(map[int64]models.User),
		questions: make(map[int64]models.Question),
		answers:   make(map[int64][]models.Answer),
	}
}

// CreateUser inserts a user and assigns its ID. Duplicate email or username fails with Conflict.
func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apperror.Conflict("email already registered")
		}
		if existing.Username == u.Username {
			return apperror.Conflict("username already taken")
		}
	}
	s.nextUser++
	u.ID = s.nextUser
	s.users[u.ID] = *u
	return nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user not found")
	}
	return &u, nil
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user not found")
}

// CreateQuestion inserts a question and assigns its ID.
func (s *Store) CreateQuestion(_ context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQ++
	q.ID = s.nextQ
	stored := *q
	stored.Username = nil
	stored.Answers = nil
	s.questions[q.ID] = stored
	return nil
}

// GetQuestion returns a question without answers.
func (s *Store) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, apperror.NotFound("question not found")
	}
	out := s.withUsername(q)
	return &out, nil
}

// UpdateQuestionStatus overwrites the status and returns the updated question.
func (s *Store) UpdateQuestionStatus(_ context.Context, id int64, status models.QuestionStatus) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, apperror.NotFound("question not found")
	}
	q.Status = status
	s.questions[id] = q
	out := s.withUsername(q)
	return &out, nil
}

// ListQuestions returns Escalated questions first, newest first within each status.
func (s *Store) ListQuestions(_ context.Context) ([]models.Question, error) {
	s.mu.RLock()
	list := make([]models.Question, 0, len(s.questions))
	for _, q := range s.questions {
		list = append(list, s.withUsername(q))
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		ei, ej := list[i].Status == models.StatusEscalated, list[j].Status == models.StatusEscalated
		if ei != ej {
			return ei
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

// CreateAnswer inserts an answer. The question must exist.
func (s *Store) CreateAnswer(_ context.Context, a *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[a.QuestionID]; !ok {
		return apperror.NotFound("question not found")
	}
	s.nextA++
	a.ID = s.nextA
	stored := *a
	stored.Username = nil
	s.answers[a.QuestionID] = append(s.answers[a.QuestionID], stored)
	return nil
}

// ListAnswers returns the answers of a question oldest first.
func (s *Store) ListAnswers(_ context.Context, questionID int64) ([]models.Answer, error) {
	s.mu.RLock()
	list := make([]models.Answer, 0, len(s.answers[questionID]))
	for _, a := range s.answers[questionID] {
		if a.UserID != nil {
			if u, ok := s.users[*a.UserID]; ok {
				name := u.Username
				a.Username = &name
			}
		}
		list = append(list, a)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// withUsername joins the author's username. Caller holds s.mu.
func (s *Store) withUsername(q models.Question) models.Question {
	q.Username = nil
	if q.UserID != nil {
		if u, ok := s.users[*q.UserID]; ok {
			name := u.Username
			q.Username = &name
		}
	}
	return q
}
