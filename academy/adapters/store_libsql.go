package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// LibSQLProgressStore implements ProgressStore using LibSQL.
type LibSQLProgressStore struct {
	db *sql.DB
}

// NewLibSQLProgressStore creates a new LibSQL progress store. The schema is
// expected to be migrated already (see db.Connect).
func NewLibSQLProgressStore(db *sql.DB) *LibSQLProgressStore {
	return &LibSQLProgressStore{db: db}
}

const (
	insertAttempt = `
		INSERT INTO quiz_attempts (id, quiz_id, user_id, score, answers, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	creditProgress = `
		INSERT INTO user_progress (user_id, total_points, quizzes_completed, last_activity)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_points = user_progress.total_points + excluded.total_points,
			quizzes_completed = user_progress.quizzes_completed + 1,
			last_activity = excluded.last_activity
	`
)

func prepareAttempt(attempt ports.Attempt) (ports.Attempt, string, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	if attempt.Answers == nil {
		attempt.Answers = map[string]string{}
	}

	answersJSON, err := json.Marshal(attempt.Answers)
	if err != nil {
		return ports.Attempt{}, "", fmt.Errorf("failed to marshal answers: %w", err)
	}
	return attempt, string(answersJSON), nil
}

// InsertAttempt stores a finished quiz attempt. Re-inserting an existing id is a no-op.
func (s *LibSQLProgressStore) InsertAttempt(ctx context.Context, attempt ports.Attempt) (ports.Attempt, error) {
	attempt, answers, err := prepareAttempt(attempt)
	if err != nil {
		return ports.Attempt{}, &errs.PersistenceError{Op: "insert attempt", Err: err}
	}

	_, err = s.db.ExecContext(ctx, insertAttempt,
		attempt.ID, attempt.QuizID, attempt.UserID, attempt.Score, answers, attempt.CreatedAt.UnixMilli())
	if err != nil {
		return ports.Attempt{}, &errs.PersistenceError{Op: "insert attempt", Err: err}
	}

	return attempt, nil
}

// UpsertProgress adds points to the user's running total and stamps the activity time.
func (s *LibSQLProgressStore) UpsertProgress(ctx context.Context, userID string, points int, at time.Time) (ports.Progress, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "upsert progress", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	if _, err := tx.ExecContext(ctx, creditProgress, userID, points, at.UnixMilli()); err != nil {
		_ = tx.Rollback()
		return ports.Progress{}, &errs.PersistenceError{Op: "upsert progress", Err: err}
	}

	progress, err := scanProgress(tx.QueryRowContext(ctx, selectProgress, userID))
	if err != nil {
		_ = tx.Rollback()
		return ports.Progress{}, &errs.PersistenceError{Op: "upsert progress", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "upsert progress", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	return progress, nil
}

// RecordAttempt inserts the attempt and credits the user's progress in one
// transaction. The credit is applied only when the insert added a row, so
// replaying an attempt id leaves both tables unchanged.
func (s *LibSQLProgressStore) RecordAttempt(ctx context.Context, attempt ports.Attempt) (ports.Progress, error) {
	attempt, answers, err := prepareAttempt(attempt)
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertAttempt,
		attempt.ID, attempt.QuizID, attempt.UserID, attempt.Score, answers, attempt.CreatedAt.UnixMilli())
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: err}
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: err}
	}

	if inserted > 0 {
		if _, err := tx.ExecContext(ctx, creditProgress, attempt.UserID, attempt.Score, attempt.CreatedAt.UnixMilli()); err != nil {
			return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: err}
		}
	}

	progress, err := scanProgress(tx.QueryRowContext(ctx, selectProgress, attempt.UserID))
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "record attempt", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return progress, nil
}

const selectProgress = `
	SELECT user_id, total_points, quizzes_completed, last_activity
	FROM user_progress
	WHERE user_id = ?
`

// GetProgress loads the aggregate progress for a user.
func (s *LibSQLProgressStore) GetProgress(ctx context.Context, userID string) (ports.Progress, error) {
	progress, err := scanProgress(s.db.QueryRowContext(ctx, selectProgress, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Progress{}, &errs.NotFoundError{Resource: "progress", ID: userID}
	}
	if err != nil {
		return ports.Progress{}, &errs.PersistenceError{Op: "get progress", Err: err}
	}
	return progress, nil
}

func scanProgress(row *sql.Row) (ports.Progress, error) {
	var (
		p            ports.Progress
		lastActivity int64
	)
	if err := row.Scan(&p.UserID, &p.TotalPoints, &p.QuizzesCompleted, &lastActivity); err != nil {
		return ports.Progress{}, err
	}
	p.LastActivity = time.UnixMilli(lastActivity)
	return p, nil
}

// ListAttempts returns the user's most recent attempts, newest first.
func (s *LibSQLProgressStore) ListAttempts(ctx context.Context, userID string, limit int) ([]ports.Attempt, error) {
	if limit <= 0 {
		limit = academy.DefaultAttemptListLimit
	}
	limit = min(limit, academy.MaxAttemptListLimit)

	query := `
		SELECT id, quiz_id, user_id, score, answers, created_at
		FROM quiz_attempts
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list attempts", Err: fmt.Errorf("failed to query attempts: %w", err)}
	}
	defer rows.Close()

	var attempts []ports.Attempt
	for rows.Next() {
		var (
			a           ports.Attempt
			answersJSON string
			createdAt   int64
		)
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Score, &answersJSON, &createdAt); err != nil {
			return nil, &errs.PersistenceError{Op: "list attempts", Err: fmt.Errorf("failed to scan attempt: %w", err)}
		}
		if err := json.Unmarshal([]byte(answersJSON), &a.Answers); err != nil {
			return nil, &errs.PersistenceError{Op: "list attempts", Err: fmt.Errorf("failed to unmarshal answers: %w", err)}
		}
		a.CreatedAt = time.UnixMilli(createdAt)
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, &errs.PersistenceError{Op: "list attempts", Err: fmt.Errorf("error iterating attempts: %w", err)}
	}

	return attempts, nil
}

// Ensure LibSQLProgressStore implements the ProgressStore interface.
var _ ports.ProgressStore = (*LibSQLProgressStore)(nil)
