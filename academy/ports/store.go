package ports

import (
	"context"
	"time"
)

// Attempt is one persisted traversal of a quiz.
type Attempt struct {
	ID        string            `json:"id"`
	QuizID    string            `json:"quiz_id"`
	UserID    string            `json:"user_id"`
	Score     int               `json:"score"`
	Answers   map[string]string `json:"answers"` // question id -> selected option
	CreatedAt time.Time         `json:"created_at"`
}

// Progress aggregates a user's attempts.
type Progress struct {
	UserID           string    `json:"user_id"`
	TotalPoints      int       `json:"total_points"`
	QuizzesCompleted int       `json:"quizzes_completed"`
	LastActivity     time.Time `json:"last_activity"`
}

// ProgressStore persists quiz attempts and per-user progress.
// Failures are reported as errs.PersistenceError; a missing progress row
// is errs.NotFoundError.
type ProgressStore interface {
	InsertAttempt(ctx context.Context, attempt Attempt) (Attempt, error)
	UpsertProgress(ctx context.Context, userID string, points int, at time.Time) (Progress, error)
	// RecordAttempt inserts the attempt and credits its score to the user's
	// progress atomically. An attempt id that is already stored is not
	// credited again; the current progress is returned instead.
	RecordAttempt(ctx context.Context, attempt Attempt) (Progress, error)
	GetProgress(ctx context.Context, userID string) (Progress, error)
	ListAttempts(ctx context.Context, userID string, limit int) ([]Attempt, error) // newest first
}
