package services

import (
	"context"
	"strings"

	"github.com/i-gras/apiserver/types"
)

// QuestionRepository defines persistence operations for questions.
type QuestionRepository interface {
	List(ctx context.Context) ([]types.Question, error)
	Create(ctx context.Context, question types.Question) (types.Question, error)
	Delete(ctx context.Context, id int) error
}

// QuestionService encapsulates exam question use-cases.
type QuestionService struct {
	repo QuestionRepository
}

func NewQuestionService(repo QuestionRepository) *QuestionService {
	return &QuestionService{repo: repo}
}

func (s *QuestionService) List(ctx context.Context) ([]types.Question, error) {
	return s.repo.List(ctx)
}

func (s *QuestionService) Create(ctx context.Context, question types.Question) (types.Question, error) {
	question.Prompt = strings.TrimSpace(question.Prompt)
	if question.Prompt == "" {
		return types.Question{}, ValidationError("prompt is required")
	}
	if strings.TrimSpace(question.Type) == "" {
		question.Type = "long-answer"
	}
	return s.repo.Create(ctx, question)
}

func (s *QuestionService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
