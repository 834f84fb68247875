package quiz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/crypto-academy/academy/adapters"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// Recorder persists a completed quiz.
type Recorder interface {
	RecordAttempt(ctx context.Context, result Result) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, result Result) error

func (f RecorderFunc) RecordAttempt(ctx context.Context, result Result) error { return f(ctx, result) }

// Snapshot is a read-only view of a session for presentation layers.
type Snapshot struct {
	QuizID       string
	CurrentIndex int
	Total        int
	Current      *Question // nil once completed
	Last         bool      // the next Advance submits
	Selected     string
	HasSelection bool
	Revealed     bool
	Completed    bool
	Submitting   bool
	Score        int
	Answers      map[string]string
}

// Session drives one user through one quiz. It is safe for concurrent use;
// the terminal submission is single-flight.
type Session struct {
	mu         sync.Mutex
	quiz       Quiz
	userID     string
	attemptID  string
	state      State
	submitting bool
	result     *Result

	recorder Recorder
	tracer   ports.Tracer
	logger   zerolog.Logger
	now      func() time.Time

	listeners    map[int]func(Snapshot)
	nextListener int
}

// Option customizes a Session.
type Option func(*Session)

func WithTracer(t ports.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.logger = l } }

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAttemptID fixes the attempt id instead of generating one.
func WithAttemptID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.attemptID = id
		}
	}
}

// NewSession opens quiz for userID. recorder may be nil when nothing needs persisting.
func NewSession(quiz Quiz, userID string, recorder Recorder, opts ...Option) (*Session, error) {
	if len(quiz.Questions) == 0 {
		return nil, &errs.ValidationError{Field: "questions", Message: "quiz has no questions"}
	}

	s := &Session{
		quiz:      quiz,
		userID:    userID,
		attemptID: uuid.NewString(),
		state:     NewState(),
		recorder:  recorder,
		tracer:    adapters.NoopTracer{},
		logger:    zerolog.Nop(),
		now:       time.Now,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Quiz returns the quiz being taken.
func (s *Session) Quiz() Quiz { return s.quiz }

// SelectAnswer records answer for the current question.
func (s *Session) SelectAnswer(answer string) error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return &errs.InvalidStateError{Op: "select answer", State: "submission in progress"}
	}
	next, err := s.state.Select(s.quiz.Questions, answer)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// RevealFeedback shows feedback for the current question.
func (s *Session) RevealFeedback() {
	s.mu.Lock()
	if s.state.Completed || s.state.Revealed {
		s.mu.Unlock()
		return
	}
	s.state = s.state.Reveal()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Advance moves to the next question. On the last question it scores the quiz
// and records it; the returned Result is non-nil only for that terminal step.
//
// If recording fails the session stays on the last question and the recorder's
// error is returned unchanged, so the caller may Advance again.
func (s *Session) Advance(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return nil, &errs.InvalidStateError{Op: "advance", State: "submission in progress"}
	}

	next, err := s.state.Advance(s.quiz.Questions)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if !next.Completed {
		s.state = next
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return nil, nil
	}

	// Terminal step: claim the single-flight slot before releasing the lock.
	s.submitting = true
	result := Result{
		AttemptID:    s.attemptID,
		QuizID:       s.quiz.ID,
		UserID:       s.userID,
		Score:        next.Score,
		CorrectCount: CorrectCount(s.quiz.Questions, next.Answers),
		Total:        len(s.quiz.Questions),
		Answers:      next.clone().Answers,
		CompletedAt:  s.now(),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	err = s.record(ctx, result)

	s.mu.Lock()
	s.submitting = false
	if err == nil {
		s.state = next
		s.result = &result
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("quiz_id", result.QuizID).
			Str("user_id", result.UserID).
			Msg("Failed to record quiz attempt")
		return nil, err
	}

	s.logger.Info().
		Str("quiz_id", result.QuizID).
		Str("user_id", result.UserID).
		Int("score", result.Score).
		Msg("Quiz completed")
	return &result, nil
}

func (s *Session) record(ctx context.Context, result Result) error {
	if s.recorder == nil {
		return nil
	}
	ctx, finish := s.tracer.StartSpan(ctx, "quiz.record_attempt", map[string]any{
		"quiz_id": result.QuizID,
		"score":   result.Score,
	})
	err := s.recorder.RecordAttempt(ctx, result)
	finish(err)
	return err
}

// Result returns the recorded result once the session is completed.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.state.clone()
	snap := Snapshot{
		QuizID:       s.quiz.ID,
		CurrentIndex: st.CurrentIndex,
		Total:        len(s.quiz.Questions),
		Revealed:     st.Revealed,
		Completed:    st.Completed,
		Submitting:   s.submitting,
		Score:        st.Score,
		Answers:      st.Answers,
	}
	if !st.Completed {
		q := s.quiz.Questions[st.CurrentIndex]
		snap.Current = &q
		snap.Last = st.IsLast(s.quiz.Questions)
		snap.Selected, snap.HasSelection = st.Answers[q.ID]
	}
	return snap
}

// Subscribe registers fn to receive a Snapshot after every change.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
