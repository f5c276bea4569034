package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/i-gras/apiserver/types"
)

// QuestionRepository handles persistence for exam questions.
type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) List(ctx context.Context) ([]types.Question, error) {
	const query = `
		SELECT id, type, prompt, created_at
		FROM questions
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []types.Question
	for rows.Next() {
		var q types.Question
		if err := rows.Scan(&q.ID, &q.Type, &q.Prompt, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *QuestionRepository) Create(ctx context.Context, question types.Question) (types.Question, error) {
	question.CreatedAt = time.Now()

	const query = `
		INSERT INTO questions (type, prompt, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		question.Type,
		question.Prompt,
		question.CreatedAt,
	).Scan(&question.ID); err != nil {
		return types.Question{}, err
	}
	return question, nil
}

func (r *QuestionRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM questions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
