// Package api exposes market data, the quiz bank and learner progress over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/crypto-academy/academy/config"
	"github.com/ZanzyTHEbar/crypto-academy/academy/market"
	"github.com/ZanzyTHEbar/crypto-academy/academy/metrics"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
)

// MarketService is the subset of market.Client the API needs.
type MarketService interface {
	ListCoins(ctx context.Context, opts market.ListOptions) ([]market.Coin, error)
	GetCoin(ctx context.Context, id string) (market.Coin, error)
}

// QuizCatalog looks up quizzes by slug.
type QuizCatalog interface {
	Get(slug string) (quiz.Quiz, error)
	List(prefix string) []quiz.Quiz
}

// Deps are the collaborators behind the routes. Tracer and Metrics are optional.
type Deps struct {
	Market  MarketService
	Quizzes QuizCatalog
	Store   ports.ProgressStore
	Tracer  ports.Tracer
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger
	engine *gin.Engine
}

// NewServer builds the router. It does not start listening.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "api").Logger(),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", s.metricsSummary)
	}

	v1 := s.engine.Group("/api/v1")

	coins := v1.Group("/coins")
	coins.GET("", s.listCoins)
	coins.GET("/movers", s.topMovers)
	coins.GET("/summary", s.summary)
	coins.GET("/:id", s.getCoin)

	quizzes := v1.Group("/quizzes")
	quizzes.GET("", s.listQuizzes)
	quizzes.GET("/*slug", s.getQuiz)
	quizzes.POST("/*slug", s.submitAttempt)

	users := v1.Group("/users/:user")
	users.GET("/progress", s.getProgress)
	users.GET("/attempts", s.listAttempts)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		failed := c.Writer.Status() >= http.StatusInternalServerError

		if s.deps.Metrics != nil && c.FullPath() != "" {
			var err error
			if failed {
				err = errRequestFailed
			}
			s.deps.Metrics.Record(c.Request.Method+" "+c.FullPath(), elapsed, err)
		}

		event := s.logger.Debug()
		if failed {
			event = s.logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", elapsed).
			Msg("Request handled")
	}
}

var errRequestFailed = errors.New("request failed")

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) metricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": s.deps.Metrics.Summary()})
}
