package types

import "time"

// Question is an exam prompt shown to students.
type Question struct {
	// ID is the unique identifier of the question.
	ID int `json:"id" db:"id"`

	// Type categorizes the question (e.g., "long-answer").
	Type string `json:"type" db:"type"`

	// Prompt is the question text presented to the student.
	Prompt string `json:"prompt" db:"prompt"`

	// CreatedAt is the timestamp when the question was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
