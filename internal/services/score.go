package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/i-gras/apiserver/internal/scoring"
	"github.com/i-gras/apiserver/types"
)

// scoreEventChannel receives a score.recorded event after each persisted
// submission when an event publisher is configured.
const scoreEventChannel = "score-events"

// ScoreRepository defines persistence operations for score records.
type ScoreRepository interface {
	GetByUserID(ctx context.Context, userID int) (types.Score, error)
	Save(ctx context.Context, score types.Score) (types.Score, error)
	DeleteByUserID(ctx context.Context, userID int) error
}

// EssayScorer submits essay batches to the external scoring service.
type EssayScorer interface {
	ScoreBatch(ctx context.Context, texts []string) (scoring.Averages, error)
}

// EventPublisher publishes domain events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ScoreService scores submitted essays and manages the per-user record.
type ScoreService struct {
	repo      ScoreRepository
	scorer    EssayScorer
	publisher EventPublisher
}

// NewScoreService constructs a ScoreService. The publisher may be nil,
// in which case no events are emitted.
func NewScoreService(repo ScoreRepository, scorer EssayScorer, publisher EventPublisher) *ScoreService {
	return &ScoreService{
		repo:      repo,
		scorer:    scorer,
		publisher: publisher,
	}
}

// SubmitEssays forwards the essays to the scoring service, bands the
// returned averages, and persists the result for the user. Submitting
// again replaces the previous record.
func (s *ScoreService) SubmitEssays(ctx context.Context, userID int, essays []string) (types.Score, error) {
	if allBlank(essays) {
		return types.Score{}, ValidationError("at least one essay is required")
	}

	averages, err := s.scorer.ScoreBatch(ctx, essays)
	if err != nil {
		return types.Score{}, err
	}

	saved, err := s.repo.Save(ctx, types.Score{
		UserID:            userID,
		TaskAchievement:   scoring.Band(averages.TaskAchievement),
		CoherenceCohesion: scoring.Band(averages.CoherenceCohesion),
		LexicalResource:   scoring.Band(averages.LexicalResource),
		GrammaticalRange:  scoring.Band(averages.GrammaticalRange),
	})
	if err != nil {
		return types.Score{}, err
	}

	s.publishRecorded(ctx, saved)
	return saved, nil
}

// GetByUserID returns the user's persisted score record.
func (s *ScoreService) GetByUserID(ctx context.Context, userID int) (types.Score, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// DeleteByUserID removes the user's score record.
func (s *ScoreService) DeleteByUserID(ctx context.Context, userID int) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// publishRecorded emits a score.recorded event. Broker failures are
// logged and dropped; the submission already succeeded.
func (s *ScoreService) publishRecorded(ctx context.Context, score types.Score) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(scoreRecordedEvent{
		UserID:            score.UserID,
		TaskAchievement:   score.TaskAchievement,
		CoherenceCohesion: score.CoherenceCohesion,
		LexicalResource:   score.LexicalResource,
		GrammaticalRange:  score.GrammaticalRange,
		RecordedAt:        score.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	attrs := map[string]string{"event": "score.recorded"}
	if _, err := s.publisher.Publish(ctx, scoreEventChannel, payload, attrs); err != nil {
		slog.Warn("failed to publish score event",
			slog.Int("user_id", score.UserID),
			slog.Any("error", err),
		)
	}
}

type scoreRecordedEvent struct {
	UserID            int     `json:"user_id"`
	TaskAchievement   float64 `json:"task_achievement_average"`
	CoherenceCohesion float64 `json:"coherence_and_cohesion_average"`
	LexicalResource   float64 `json:"lexical_resource_average"`
	GrammaticalRange  float64 `json:"grammatical_range_average"`
	RecordedAt        string  `json:"recorded_at"`
}

func allBlank(essays []string) bool {
	for _, essay := range essays {
		if strings.TrimSpace(essay) != "" {
			return false
		}
	}
	return true
}
