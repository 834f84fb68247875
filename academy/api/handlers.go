package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/content"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/market"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
)

const attemptsSuffix = "/attempts"

func (s *Server) listCoins(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}

	coins, err := s.deps.Market.ListCoins(c.Request.Context(), market.ListOptions{
		Limit: limit,
		Type:  c.Query("type"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	switch mode := c.Query("stablecoins"); mode {
	case "":
	case "include":
		coins = market.FilterStablecoins(coins, true)
	case "exclude":
		coins = market.FilterStablecoins(coins, false)
	default:
		s.fail(c, &errs.ValidationError{Field: "stablecoins", Message: "must be include or exclude"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coins": market.RankByMarketCap(coins)})
}

func (s *Server) topMovers(c *gin.Context) {
	n, err := intQuery(c, "n", 5)
	if err != nil {
		s.fail(c, err)
		return
	}

	coins, err := s.deps.Market.ListCoins(c.Request.Context(), market.ListOptions{})
	if err != nil {
		s.fail(c, err)
		return
	}

	gainers, losers := market.TopMovers(coins, n)
	c.JSON(http.StatusOK, gin.H{"gainers": nonNil(gainers), "losers": nonNil(losers)})
}

func (s *Server) summary(c *gin.Context) {
	coins, err := s.deps.Market.ListCoins(c.Request.Context(), market.ListOptions{Type: c.Query("type")})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, market.Summarize(coins))
}

func (s *Server) getCoin(c *gin.Context) {
	coin, err := s.deps.Market.GetCoin(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, coin)
}

// quizListing is the catalog view of a quiz.
type quizListing struct {
	ID            string `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	QuestionCount int    `json:"question_count"`
}

func (s *Server) listQuizzes(c *gin.Context) {
	quizzes := s.deps.Quizzes.List(c.Query("prefix"))
	out := make([]quizListing, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, quizListing{
			ID:            q.ID,
			Slug:          q.Slug,
			Title:         q.Title,
			Description:   q.Description,
			Category:      q.Category,
			Difficulty:    q.Difficulty,
			QuestionCount: len(q.Questions),
		})
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": out})
}

func (s *Server) getQuiz(c *gin.Context) {
	q, err := s.deps.Quizzes.Get(slugParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, content.Public(q))
}

// attemptRequest is a full quiz submission. Clients retrying a submission
// resend the attempt_id from their first try so it is recorded once.
type attemptRequest struct {
	AttemptID string            `json:"attempt_id,omitempty"`
	UserID    string            `json:"user_id"`
	Answers   map[string]string `json:"answers"` // question id -> selected option
}

const maxAttemptIDLen = 128

type questionReview struct {
	QuestionID    string `json:"question_id"`
	Selected      string `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Feedback      string `json:"feedback,omitempty"`
}

// submitAttempt drives a quiz session through every question with the
// submitted answers and records the result.
func (s *Server) submitAttempt(c *gin.Context) {
	raw := slugParam(c)
	if !strings.HasSuffix(raw, attemptsSuffix) {
		s.fail(c, &errs.NotFoundError{Resource: "route", ID: c.Request.URL.Path})
		return
	}
	slug := strings.TrimSuffix(raw, attemptsSuffix)

	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &errs.ValidationError{Field: "body", Message: "invalid JSON body"})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		s.fail(c, &errs.ValidationError{Field: "user_id", Message: "user_id is required"})
		return
	}
	req.AttemptID = strings.TrimSpace(req.AttemptID)
	if len(req.AttemptID) > maxAttemptIDLen {
		s.fail(c, &errs.ValidationError{Field: "attempt_id", Message: "attempt_id is too long"})
		return
	}

	q, err := s.deps.Quizzes.Get(slug)
	if err != nil {
		s.fail(c, err)
		return
	}

	opts := []quiz.Option{quiz.WithLogger(s.logger)}
	if req.AttemptID != "" {
		opts = append(opts, quiz.WithAttemptID(req.AttemptID))
	}
	if s.deps.Tracer != nil {
		opts = append(opts, quiz.WithTracer(s.deps.Tracer))
	}
	session, err := quiz.NewSession(q, req.UserID, quiz.NewStoreRecorder(s.deps.Store), opts...)
	if err != nil {
		s.fail(c, err)
		return
	}

	var result *quiz.Result
	for _, question := range q.Questions {
		if answer, ok := req.Answers[question.ID]; ok {
			if !slices.Contains(question.Options, answer) {
				s.fail(c, &errs.ValidationError{Field: "answers." + question.ID, Message: "answer is not one of the options"})
				return
			}
			if err := session.SelectAnswer(answer); err != nil {
				s.fail(c, err)
				return
			}
		}
		if result, err = session.Advance(c.Request.Context()); err != nil {
			s.fail(c, err)
			return
		}
	}
	if result == nil {
		s.fail(c, errors.New("quiz session ended without a result"))
		return
	}

	review := make([]questionReview, 0, len(q.Questions))
	for _, question := range q.Questions {
		selected := result.Answers[question.ID]
		review = append(review, questionReview{
			QuestionID:    question.ID,
			Selected:      selected,
			Correct:       question.IsCorrect(selected),
			CorrectAnswer: question.CorrectAnswer,
			Feedback:      question.FeedbackFor(selected),
		})
	}

	c.JSON(http.StatusCreated, gin.H{"result": result, "review": review})
}

func (s *Server) getProgress(c *gin.Context) {
	progress, err := s.deps.Store.GetProgress(c.Request.Context(), c.Param("user"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (s *Server) listAttempts(c *gin.Context) {
	limit, err := intQuery(c, "limit", academy.DefaultAttemptListLimit)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit = min(limit, academy.MaxAttemptListLimit)

	attempts, err := s.deps.Store.ListAttempts(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": nonNil(attempts)})
}

// fail writes err as a JSON error. Validation, not-found and state errors
// carry their own message; everything else collapses to a generic one.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrNetwork), errors.Is(err, errs.ErrRateLimited):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errs.UserMessage(err)})
}

func slugParam(c *gin.Context) string {
	return strings.Trim(c.Param("slug"), "/")
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &errs.ValidationError{Field: key, Message: key + " must be a non-negative integer"}
	}
	return n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
