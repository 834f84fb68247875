// Package quiz implements quiz progression independent of any UI framework:
// pure State transitions plus a Session that guards concurrent use and
// hands the final result to a Recorder.
package quiz

import (
	"time"
)

// Feedback is optional text shown after an answer is revealed.
type Feedback struct {
	Correct   string `json:"correct,omitempty"`
	Incorrect string `json:"incorrect,omitempty"`
}

// Question is a single multiple-choice prompt.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Feedback      Feedback `json:"feedback,omitempty"`
}

// IsCorrect reports whether answer matches the correct option.
func (q Question) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}

// FeedbackFor returns the feedback text for the given answer, falling back
// to the explanation when no outcome-specific text exists.
func (q Question) FeedbackFor(answer string) string {
	text := q.Feedback.Incorrect
	if q.IsCorrect(answer) {
		text = q.Feedback.Correct
	}
	if text == "" {
		return q.Explanation
	}
	return text
}

// Quiz is an ordered set of questions.
type Quiz struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	Questions   []Question `json:"questions"`
}

// Result is the outcome of a completed quiz, handed to the Recorder.
type Result struct {
	AttemptID    string            `json:"attempt_id"`
	QuizID       string            `json:"quiz_id"`
	UserID       string            `json:"user_id"`
	Score        int               `json:"score"`
	CorrectCount int               `json:"correct_count"`
	Total        int               `json:"total"`
	Answers      map[string]string `json:"answers"`
	CompletedAt  time.Time         `json:"completed_at"`
}
