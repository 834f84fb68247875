package quiz

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// StoreRecorder persists results into a ProgressStore. The attempt and the
// progress credit are written together, keyed by the attempt id.
type StoreRecorder struct {
	store ports.ProgressStore
}

// NewStoreRecorder creates a recorder backed by store.
func NewStoreRecorder(store ports.ProgressStore) *StoreRecorder {
	return &StoreRecorder{store: store}
}

// RecordAttempt writes the attempt and credits its score. Recording an
// attempt id that is already stored changes nothing, so retries are safe.
func (r *StoreRecorder) RecordAttempt(ctx context.Context, result Result) error {
	_, err := r.store.RecordAttempt(ctx, ports.Attempt{
		ID:        result.AttemptID,
		QuizID:    result.QuizID,
		UserID:    result.UserID,
		Score:     result.Score,
		Answers:   result.Answers,
		CreatedAt: result.CompletedAt,
	})
	if err != nil {
		return asPersistence("record attempt", err)
	}
	return nil
}

func asPersistence(op string, err error) error {
	if errors.Is(err, errs.ErrPersistence) {
		return err
	}
	return &errs.PersistenceError{Op: op, Err: err}
}

var _ Recorder = (*StoreRecorder)(nil)
