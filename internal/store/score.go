package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/i-gras/apiserver/types"
)

// ScoreRepository handles persistence for essay score records.
type ScoreRepository struct {
	db *sql.DB
}

func NewScoreRepository(db *sql.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) GetByUserID(ctx context.Context, userID int) (types.Score, error) {
	const query = `
		SELECT id, user_id, task_achievement_average, coherence_and_cohesion_average,
		       lexical_resource_average, grammatical_range_average, created_at
		FROM scores
		WHERE user_id = $1`
	var score types.Score
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&score.ID,
		&score.UserID,
		&score.TaskAchievement,
		&score.CoherenceCohesion,
		&score.LexicalResource,
		&score.GrammaticalRange,
		&score.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Score{}, ErrNotFound
		}
		return types.Score{}, err
	}
	return score, nil
}

// Save inserts the score for a user, replacing any previous record.
// The unique index on user_id keeps the relation one-to-one.
func (r *ScoreRepository) Save(ctx context.Context, score types.Score) (types.Score, error) {
	score.CreatedAt = time.Now()

	const query = `
		INSERT INTO scores (
			user_id, task_achievement_average, coherence_and_cohesion_average,
			lexical_resource_average, grammatical_range_average, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET task_achievement_average = EXCLUDED.task_achievement_average,
			coherence_and_cohesion_average = EXCLUDED.coherence_and_cohesion_average,
			lexical_resource_average = EXCLUDED.lexical_resource_average,
			grammatical_range_average = EXCLUDED.grammatical_range_average,
			created_at = EXCLUDED.created_at
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		score.UserID,
		score.TaskAchievement,
		score.CoherenceCohesion,
		score.LexicalResource,
		score.GrammaticalRange,
		score.CreatedAt,
	).Scan(&score.ID); err != nil {
		return types.Score{}, err
	}
	return score, nil
}

// DeleteByUserID removes a user's score record. Deleting an absent
// record is not an error; DELETE /exam is idempotent.
func (r *ScoreRepository) DeleteByUserID(ctx context.Context, userID int) error {
	const query = `DELETE FROM scores WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
