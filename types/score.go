package types

import "time"

// Score is the per-user aggregate of the four essay band averages.
// At most one row exists per user; resubmission replaces it.
type Score struct {
	// ID is the unique identifier of the score record.
	ID int `json:"id" db:"id"`

	// UserID is the owner of the score.
	UserID int `json:"user_id" db:"user_id"`

	// TaskAchievement is the task achievement band average.
	TaskAchievement float64 `json:"task_achievement_average" db:"task_achievement_average"`

	// CoherenceCohesion is the coherence and cohesion band average.
	CoherenceCohesion float64 `json:"coherence_and_cohesion_average" db:"coherence_and_cohesion_average"`

	// LexicalResource is the lexical resource band average.
	LexicalResource float64 `json:"lexical_resource_average" db:"lexical_resource_average"`

	// GrammaticalRange is the grammatical range band average.
	GrammaticalRange float64 `json:"grammatical_range_average" db:"grammatical_range_average"`

	// CreatedAt is the timestamp when the score was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
