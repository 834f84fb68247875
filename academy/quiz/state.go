package quiz

import (
	"math"

	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
)

// State is a snapshot of quiz progress. Transitions never modify the receiver;
// they return a new State.
type State struct {
	CurrentIndex int
	Answers      map[string]string // question id -> selected option
	Revealed     bool
	Completed    bool
	Score        int
}

// NewState returns the initial InProgress(0, false) state.
func NewState() State {
	return State{Answers: map[string]string{}}
}

func (s State) clone() State {
	answers := make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	s.Answers = answers
	return s
}

// Select records answer for the current question without moving on.
func (s State) Select(questions []Question, answer string) (State, error) {
	if s.Completed {
		return s, &errs.InvalidStateError{Op: "select answer", State: "quiz already completed"}
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(questions) {
		return s, &errs.InvalidStateError{Op: "select answer", State: "no current question"}
	}

	next := s.clone()
	next.Answers[questions[s.CurrentIndex].ID] = answer
	return next, nil
}

// Reveal marks feedback for the current question as shown.
func (s State) Reveal() State {
	s.Revealed = true
	return s
}

// Advance moves to the next question, or completes the quiz when the current
// question is the last one. The current question must have an answer.
func (s State) Advance(questions []Question) (State, error) {
	if s.Completed {
		return s, &errs.InvalidStateError{Op: "advance", State: "quiz already completed"}
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(questions) {
		return s, &errs.InvalidStateError{Op: "advance", State: "no current question"}
	}
	if _, answered := s.Answers[questions[s.CurrentIndex].ID]; !answered {
		return s, &errs.ValidationError{Field: "answer", Message: errs.MsgSelectAnswer}
	}

	next := s.clone()
	if !s.IsLast(questions) {
		next.CurrentIndex++
		next.Revealed = false
		return next, nil
	}

	next.Completed = true
	next.Score = Score(questions, next.Answers)
	return next, nil
}

// IsLast reports whether the current question is the final one.
func (s State) IsLast(questions []Question) bool {
	return s.CurrentIndex == len(questions)-1
}

// CorrectCount counts questions whose recorded answer is correct.
func CorrectCount(questions []Question, answers map[string]string) int {
	correct := 0
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && q.IsCorrect(a) {
			correct++
		}
	}
	return correct
}

// Score returns round(100 * correct / total). Unanswered questions count as
// incorrect; an empty quiz scores 0.
func Score(questions []Question, answers map[string]string) int {
	if len(questions) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(CorrectCount(questions, answers)) / float64(len(questions))))
}
