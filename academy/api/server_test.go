package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/config"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/market"
	"github.com/ZanzyTHEbar/crypto-academy/academy/metrics"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubMarket struct {
	coins []market.Coin
	err   error
}

func (m *stubMarket) ListCoins(_ context.Context, opts market.ListOptions) ([]market.Coin, error) {
	if m.err != nil {
		return nil, m.err
	}
	return market.FilterByType(m.coins, opts.Type), nil
}

func (m *stubMarket) GetCoin(_ context.Context, id string) (market.Coin, error) {
	if m.err != nil {
		return market.Coin{}, m.err
	}
	for _, c := range m.coins {
		if c.ID == id {
			return c, nil
		}
	}
	return market.Coin{}, &errs.NotFoundError{Resource: "coin", ID: id}
}

type stubCatalog map[string]quiz.Quiz

func (s stubCatalog) Get(slug string) (quiz.Quiz, error) {
	q, ok := s[slug]
	if !ok {
		return quiz.Quiz{}, &errs.NotFoundError{Resource: "quiz", ID: slug}
	}
	return q, nil
}

func (s stubCatalog) List(string) []quiz.Quiz {
	out := make([]quiz.Quiz, 0, len(s))
	for _, q := range s {
		out = append(out, q)
	}
	return out
}

type stubStore struct {
	mu       sync.Mutex
	attempts []ports.Attempt
	progress map[string]ports.Progress
	fail     error
	// lostAcks makes the next n records commit but report a failure.
	lostAcks int
}

func (s *stubStore) InsertAttempt(_ context.Context, a ports.Attempt) (ports.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return ports.Attempt{}, s.fail
	}
	s.attempts = append(s.attempts, a)
	return a, nil
}

func (s *stubStore) UpsertProgress(_ context.Context, userID string, points int, at time.Time) (ports.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress[userID]
	p.UserID = userID
	p.TotalPoints += points
	p.QuizzesCompleted++
	p.LastActivity = at
	s.progress[userID] = p
	return p, nil
}

func (s *stubStore) RecordAttempt(_ context.Context, a ports.Attempt) (ports.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return ports.Progress{}, s.fail
	}
	for _, existing := range s.attempts {
		if existing.ID == a.ID {
			return s.progress[a.UserID], nil
		}
	}
	s.attempts = append(s.attempts, a)
	p := s.progress[a.UserID]
	p.UserID = a.UserID
	p.TotalPoints += a.Score
	p.QuizzesCompleted++
	p.LastActivity = a.CreatedAt
	s.progress[a.UserID] = p

	if s.lostAcks > 0 {
		s.lostAcks--
		return ports.Progress{}, errors.New("connection reset before commit acknowledged")
	}
	return p, nil
}

func (s *stubStore) GetProgress(_ context.Context, userID string) (ports.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID]
	if !ok {
		return ports.Progress{}, &errs.NotFoundError{Resource: "progress", ID: userID}
	}
	return p, nil
}

func (s *stubStore) ListAttempts(_ context.Context, userID string, limit int) ([]ports.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.Attempt
	for i := len(s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.attempts[i].UserID == userID {
			out = append(out, s.attempts[i])
		}
	}
	return out, nil
}

type fixture struct {
	market *stubMarket
	store  *stubStore
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		market: &stubMarket{coins: []market.Coin{
			{ID: "tether", Symbol: "USDT", MarketCapUSD: 100, PercentChange24h: 0.1, IsStablecoin: true, Type: "token"},
			{ID: "bitcoin", Symbol: "BTC", MarketCapUSD: 1000, PercentChange24h: 4, Type: "coin"},
			{ID: "ethereum", Symbol: "ETH", MarketCapUSD: 500, PercentChange24h: -3, Type: "coin"},
		}},
		store: &stubStore{progress: map[string]ports.Progress{}},
	}
	catalog := stubCatalog{
		"basics/wallets": {
			ID:    "wallets",
			Slug:  "basics/wallets",
			Title: "Wallets",
			Questions: []quiz.Question{
				{ID: "q1", Prompt: "First?", Options: []string{"A", "B"}, CorrectAnswer: "A", Explanation: "A is right."},
				{ID: "q2", Prompt: "Second?", Options: []string{"C", "D"}, CorrectAnswer: "D", Feedback: quiz.Feedback{Incorrect: "Nope."}},
			},
		},
	}
	f.server = NewServer(config.ServerConfig{}, Deps{
		Market:  f.market,
		Quizzes: catalog,
		Store:   f.store,
		Logger:  zerolog.Nop(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListCoins(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/coins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct{ Coins []market.Coin }](t, rec)
	require.Len(t, body.Coins, 3)
	assert.Equal(t, "bitcoin", body.Coins[0].ID, "ranked by market cap")

	rec = f.do(t, http.MethodGet, "/api/v1/coins?stablecoins=exclude&type=coin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[struct{ Coins []market.Coin }](t, rec)
	assert.Len(t, body.Coins, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/coins?stablecoins=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/coins?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCoinsUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.market.err = &errs.NetworkError{Op: "coins.list", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}

	rec := f.do(t, http.MethodGet, "/api/v1/coins", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, errs.MsgActionFailed, body["error"])
	assert.NotContains(t, rec.Body.String(), "down", "upstream details stay server-side")
}

func TestMoversAndSummary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/coins/movers?n=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	movers := decode[struct{ Gainers, Losers []market.Coin }](t, rec)
	require.Len(t, movers.Gainers, 1)
	assert.Equal(t, "bitcoin", movers.Gainers[0].ID)
	require.Len(t, movers.Losers, 1)
	assert.Equal(t, "ethereum", movers.Losers[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/coins/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[market.Summary](t, rec)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 1, summary.StablecoinCount)
	assert.InDelta(t, 1600, summary.TotalMarketCap, 1e-9)
}

func TestGetCoin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/coins/ethereum", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ETH", decode[market.Coin](t, rec).Symbol)

	rec = f.do(t, http.MethodGet, "/api/v1/coins/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.MsgNotFound, decode[map[string]string](t, rec)["error"])
}

func TestQuizzes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/quizzes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Quizzes []quizListing }](t, rec)
	require.Len(t, list.Quizzes, 1)
	assert.Equal(t, 2, list.Quizzes[0].QuestionCount)

	rec = f.do(t, http.MethodGet, "/api/v1/quizzes/basics/wallets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "A is right.")
	q := decode[quiz.Quiz](t, rec)
	require.Len(t, q.Questions, 2)
	assert.Empty(t, q.Questions[0].CorrectAnswer)

	rec = f.do(t, http.MethodGet, "/api/v1/quizzes/basics/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type attemptResponse struct {
	Result quiz.Result      `json:"result"`
	Review []questionReview `json:"review"`
}

func TestSubmitAttempt(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/quizzes/basics/wallets/attempts", attemptRequest{
		UserID:  "u1",
		Answers: map[string]string{"q1": "A", "q2": "C"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[attemptResponse](t, rec)
	assert.Equal(t, 50, body.Result.Score)
	assert.Equal(t, "wallets", body.Result.QuizID)
	require.Len(t, body.Review, 2)
	assert.True(t, body.Review[0].Correct)
	assert.Equal(t, "A is right.", body.Review[0].Feedback)
	assert.False(t, body.Review[1].Correct)
	assert.Equal(t, "Nope.", body.Review[1].Feedback)
	assert.Equal(t, "D", body.Review[1].CorrectAnswer)

	require.Len(t, f.store.attempts, 1)
	assert.Equal(t, map[string]string{"q1": "A", "q2": "C"}, f.store.attempts[0].Answers)

	rec = f.do(t, http.MethodGet, "/api/v1/users/u1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[ports.Progress](t, rec)
	assert.Equal(t, 50, progress.TotalPoints)
	assert.Equal(t, 1, progress.QuizzesCompleted)

	rec = f.do(t, http.MethodGet, "/api/v1/users/u1/attempts?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[struct{ Attempts []ports.Attempt }](t, rec)
	assert.Len(t, attempts.Attempts, 1)
}

func TestSubmitAttempt_Validation(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/quizzes/basics/wallets/attempts"

	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"missing user", attemptRequest{Answers: map[string]string{"q1": "A", "q2": "D"}}, http.StatusBadRequest, "user_id is required"},
		{"unanswered question", attemptRequest{UserID: "u1", Answers: map[string]string{"q1": "A"}}, http.StatusBadRequest, errs.MsgSelectAnswer},
		{"unknown option", attemptRequest{UserID: "u1", Answers: map[string]string{"q1": "Z", "q2": "D"}}, http.StatusBadRequest, "answer is not one of the options"},
		{"not json", "plain string", http.StatusBadRequest, "invalid JSON body"},
		{"attempt id too long", attemptRequest{AttemptID: strings.Repeat("x", maxAttemptIDLen+1), UserID: "u1", Answers: map[string]string{"q1": "A", "q2": "D"}}, http.StatusBadRequest, "attempt_id is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode[map[string]string](t, rec)["error"])
		})
	}
	assert.Empty(t, f.store.attempts)
}

func TestSubmitAttempt_UnknownQuizOrRoute(t *testing.T) {
	f := newFixture(t)
	body := attemptRequest{UserID: "u1", Answers: map[string]string{"q1": "A"}}

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/quizzes/missing/attempts", body).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/quizzes/basics/wallets", body).Code)
}

func TestSubmitAttempt_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.store.fail = errors.New("database is locked")

	rec := f.do(t, http.MethodPost, "/api/v1/quizzes/basics/wallets/attempts", attemptRequest{
		UserID:  "u1",
		Answers: map[string]string{"q1": "A", "q2": "D"},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errs.MsgActionFailed, decode[map[string]string](t, rec)["error"])
}

func TestSubmitAttempt_RetryWithAttemptIDRecordsOnce(t *testing.T) {
	f := newFixture(t)
	f.store.lostAcks = 1
	path := "/api/v1/quizzes/basics/wallets/attempts"
	body := attemptRequest{
		AttemptID: "client-attempt-1",
		UserID:    "u1",
		Answers:   map[string]string{"q1": "A", "q2": "D"},
	}

	rec := f.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "client-attempt-1", decode[attemptResponse](t, rec).Result.AttemptID)

	require.Len(t, f.store.attempts, 1)
	assert.Equal(t, "client-attempt-1", f.store.attempts[0].ID)
	progress := f.store.progress["u1"]
	assert.Equal(t, 100, progress.TotalPoints)
	assert.Equal(t, 1, progress.QuizzesCompleted)
}

func TestSubmitAttempt_ConcurrentDuplicatesRecordOnce(t *testing.T) {
	f := newFixture(t)
	body := attemptRequest{
		AttemptID: "client-attempt-2",
		UserID:    "u1",
		Answers:   map[string]string{"q1": "A", "q2": "C"},
	}

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = f.do(t, http.MethodPost, "/api/v1/quizzes/basics/wallets/attempts", body).Code
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}
	require.Len(t, f.store.attempts, 1)
	assert.Equal(t, 50, f.store.progress["u1"].TotalPoints)
	assert.Equal(t, 1, f.store.progress["u1"].QuizzesCompleted)
}

func TestSubmitAttempt_WithoutAttemptIDRecordsEachSubmission(t *testing.T) {
	f := newFixture(t)
	body := attemptRequest{UserID: "u1", Answers: map[string]string{"q1": "A", "q2": "D"}}

	for range 2 {
		rec := f.do(t, http.MethodPost, "/api/v1/quizzes/basics/wallets/attempts", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Len(t, f.store.attempts, 2)
	assert.NotEqual(t, f.store.attempts[0].ID, f.store.attempts[1].ID)
	assert.Equal(t, 200, f.store.progress["u1"].TotalPoints)
}

func TestListAttemptsClampsLimit(t *testing.T) {
	f := newFixture(t)
	for i := range academy.MaxAttemptListLimit + 3 {
		f.store.attempts = append(f.store.attempts, ports.Attempt{ID: strconv.Itoa(i), UserID: "u1"})
	}

	rec := f.do(t, http.MethodGet, "/api/v1/users/u1/attempts?limit=100000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[struct{ Attempts []ports.Attempt }](t, rec)
	assert.Len(t, attempts.Attempts, academy.MaxAttemptListLimit)
}

func TestProgressNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/users/ghost/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.server.cfg.Addr = "127.0.0.1:0"
	f.server.cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	collector := metrics.NewCollector()
	f.server = NewServer(config.ServerConfig{}, Deps{
		Market:  f.market,
		Quizzes: stubCatalog{},
		Store:   f.store,
		Metrics: collector,
		Logger:  zerolog.Nop(),
	})

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/coins", nil).Code)
	f.market.err = errors.New("boom")
	require.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodGet, "/api/v1/coins", nil).Code)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Operations map[string]metrics.OpSummary `json:"operations"`
	}](t, rec)

	coins := body.Operations["GET /api/v1/coins"]
	assert.Equal(t, int64(2), coins.Count)
	assert.Equal(t, int64(1), coins.Errors)
}

func TestMetricsEndpointAbsentWithoutCollector(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/metrics", nil).Code)
}
