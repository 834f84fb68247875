package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/adapters"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
	"github.com/ZanzyTHEbar/crypto-academy/academy/retry"
)

const (
	limiterKey  = "market"
	maxBodySize = 4 << 20
)

// Options configures a Client. Cache, Limiter, Tracer and Executor are optional.
type Options struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
	DefaultLimit int
	Concurrency  int

	HTTPClient *http.Client
	Cache      ports.Cache
	Limiter    ports.RateLimiter
	Tracer     ports.Tracer
	Executor   *retry.Executor
	Logger     zerolog.Logger
}

// Client reads the price API. Responses are memoized in the cache under the
// request signature; misses go through the retry executor.
type Client struct {
	baseURL      string
	apiKey       string
	keyHeader    string
	defaultLimit int
	concurrency  int

	http    *http.Client
	cache   ports.Cache
	limiter ports.RateLimiter
	tracer  ports.Tracer
	exec    *retry.Executor
	logger  zerolog.Logger
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, &errs.ValidationError{Field: "market.base_url", Message: "must not be empty"}
	}
	if _, err := url.Parse(base); err != nil {
		return nil, &errs.ValidationError{Field: "market.base_url", Message: err.Error()}
	}

	c := &Client{
		baseURL:      base,
		apiKey:       opts.APIKey,
		keyHeader:    opts.APIKeyHeader,
		defaultLimit: opts.DefaultLimit,
		concurrency:  opts.Concurrency,
		http:         opts.HTTPClient,
		cache:        opts.Cache,
		limiter:      opts.Limiter,
		tracer:       opts.Tracer,
		exec:         opts.Executor,
		logger:       opts.Logger,
	}
	if c.keyHeader == "" {
		c.keyHeader = academy.DefaultMarketKeyHeader
	}
	if c.defaultLimit <= 0 {
		c.defaultLimit = academy.DefaultMarketListLimit
	}
	if c.concurrency <= 0 {
		c.concurrency = 4
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = academy.DefaultMarketTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.cache == nil {
		c.cache = adapters.NoopCache{}
	}
	if c.limiter == nil {
		c.limiter = adapters.NoopRateLimiter{}
	}
	if c.tracer == nil {
		c.tracer = adapters.NoopTracer{}
	}
	if c.exec == nil {
		policy := retry.DefaultPolicy()
		policy.ShouldRetry = errs.IsRetryable
		c.exec = retry.New(policy, retry.WithLogger(c.logger))
	}
	return c, nil
}

// ListCoins returns coins as ordered by the upstream. A type filter is also
// applied locally since not every upstream honours the parameter.
func (c *Client) ListCoins(ctx context.Context, opts ListOptions) ([]Coin, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = c.defaultLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if opts.Type != "" {
		query.Set("type", opts.Type)
	}

	coins, err := fetch[[]Coin](ctx, c, "coins.list", "/coins", query)
	if err != nil {
		return nil, err
	}
	return FilterByType(coins, opts.Type), nil
}

// GetCoin returns one coin. An unknown id yields errs.NotFoundError.
func (c *Client) GetCoin(ctx context.Context, id string) (Coin, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Coin{}, &errs.ValidationError{Field: "id", Message: "coin id is required"}
	}

	coin, err := fetch[Coin](ctx, c, "coins.get", "/coins/"+url.PathEscape(id), url.Values{})
	if err != nil {
		var netErr *errs.NetworkError
		if errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound {
			return Coin{}, &errs.NotFoundError{Resource: "coin", ID: id}
		}
		return Coin{}, err
	}
	return coin, nil
}

// GetCoins fetches several coins concurrently and returns them in the order of ids.
// The first failure cancels the remaining fetches.
func (c *Client) GetCoins(ctx context.Context, ids []string) ([]Coin, error) {
	type indexed struct {
		pos  int
		coin Coin
	}

	p := pool.NewWithResults[indexed]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(c.concurrency)

	for i, id := range ids {
		p.Go(func(ctx context.Context) (indexed, error) {
			coin, err := c.GetCoin(ctx, id)
			if err != nil {
				return indexed{}, err
			}
			return indexed{pos: i, coin: coin}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	coins := make([]Coin, len(ids))
	for _, r := range results {
		coins[r.pos] = r.coin
	}
	return coins, nil
}

// signature is the cache key of a request: the operation followed by its
// sorted query parameters.
func signature(op, path string, query url.Values) string {
	return op + ":" + path + "?" + query.Encode()
}

func fetch[T any](ctx context.Context, c *Client, op, path string, query url.Values) (T, error) {
	var zero T
	key := signature(op, path, query)

	ctx, finish := c.tracer.StartSpan(ctx, op, map[string]any{"signature": key})

	if raw, ok := c.cache.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.tracer.Event(ctx, "cache_hit", map[string]any{"signature": key})
			finish(nil)
			return cached, nil
		}
		c.logger.Warn().Str("signature", key).Msg("Discarding undecodable cache entry")
	}

	raw, err := retry.Do(ctx, c.exec, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, op, path, query)
	})
	if err != nil {
		finish(err)
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		err = &errs.NetworkError{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
		finish(err)
		return zero, err
	}

	if err := c.cache.Set(ctx, key, raw); err != nil {
		c.logger.Warn().Err(err).Str("signature", key).Msg("Failed to cache response")
	}
	finish(nil)
	return out, nil
}

// get performs one rate-limited HTTP round trip.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	release, err := c.limiter.Acquire(ctx, limiterKey)
	if err != nil {
		return nil, err
	}
	defer release()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &errs.ValidationError{Field: "url", Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
	}
	if err != nil {
		return nil, &errs.NetworkError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
