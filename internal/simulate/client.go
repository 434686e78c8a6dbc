package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/types"
)

// Client talks to the bull or bear HTTP API. Rate-limited calls are retried
// with exponential backoff; every other failure is returned as is.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries atomic.Int64
}

// Resolution is the body returned by POST /posts/resolve.
type Resolution struct {
	Post     model.Post      `json:"post"`
	Guesses  []model.Guess   `json:"guesses"`
	Guessers []model.Guesser `json:"guessers"`
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Retries returns how many rate-limited calls were retried.
func (c *Client) Retries() int64 { return c.retries.Load() }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response: %w", err))
		}

		if resp.StatusCode >= http.StatusBadRequest {
			se := &StatusError{Status: resp.StatusCode}
			var e struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(data, &e) == nil {
				se.Code, se.Message = e.Code, e.Message
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				return se
			}
			return backoff.Permanent(se)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode %s %s: %w", method, path, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = c.timeout
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(error, time.Duration) {
		c.retries.Add(1)
	})
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// RegisterGuesser logs in or creates the guesser with handle.
func (c *Client) RegisterGuesser(ctx context.Context, handle string) (model.Guesser, error) {
	var out struct {
		Guesser model.Guesser `json:"guesser"`
	}
	err := c.do(ctx, http.MethodPost, "/guessers", map[string]string{"handle": handle}, &out)
	return out.Guesser, err
}

// CurrentPost returns the pending post.
func (c *Client) CurrentPost(ctx context.Context) (model.Post, error) {
	var p model.Post
	err := c.do(ctx, http.MethodGet, "/posts/current", nil, &p)
	return p, err
}

// LatestPost returns the newest post.
func (c *Client) LatestPost(ctx context.Context) (model.Post, error) {
	var p model.Post
	err := c.do(ctx, http.MethodGet, "/posts/latest", nil, &p)
	return p, err
}

// TrackPost opens a post at priceBefore.
func (c *Client) TrackPost(ctx context.Context, content string, priceBefore decimal.Decimal) (model.Post, error) {
	var p model.Post
	body := map[string]string{"content": content, "price_before": priceBefore.String()}
	err := c.do(ctx, http.MethodPost, "/posts", body, &p)
	return p, err
}

// SubmitGuess places a guess on postID.
func (c *Client) SubmitGuess(ctx context.Context, guesserID, postID string, d model.Direction) (model.Guess, error) {
	var g model.Guess
	body := map[string]string{"guesser_id": guesserID, "post_id": postID, "direction": d.String()}
	err := c.do(ctx, http.MethodPost, "/guesses", body, &g)
	return g, err
}

// ResolvePost resolves postID at priceAfter.
func (c *Client) ResolvePost(ctx context.Context, postID string, priceAfter decimal.Decimal) (Resolution, error) {
	var r Resolution
	body := map[string]string{"post_id": postID, "price_after": priceAfter.String()}
	err := c.do(ctx, http.MethodPost, "/posts/resolve", body, &r)
	return r, err
}

// Stats returns the service statistics.
func (c *Client) Stats(ctx context.Context) (types.Stats, error) {
	var s types.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &s)
	return s, err
}

// Leaderboard returns the top n entries.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	var out []types.Entry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leaderboard?limit=%d", n), nil, &out)
	return out, err
}

// Rank returns the entry of one guesser.
func (c *Client) Rank(ctx context.Context, guesserID string) (types.Entry, error) {
	var e types.Entry
	err := c.do(ctx, http.MethodGet, "/rank/"+guesserID, nil, &e)
	return e, err
}
